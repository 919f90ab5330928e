package models

import (
	"database/sql"
	"errors"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// Permission is what a grantee may do with a shared note.
type Permission string

const (
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
)

func (p Permission) Valid() bool {
	return p == PermissionView || p == PermissionEdit
}

// SharedAccess is one grant on a note. The owner never appears here.
type SharedAccess struct {
	GranteeGUID string     `json:"grantee_guid"`
	Permission  Permission `json:"permission"`
	GrantedAt   time.Time  `json:"granted_at"`
}

// GrantAccessInput is the body of a share request.
type GrantAccessInput struct {
	GranteeGUID string     `json:"grantee_guid"`
	Permission  Permission `json:"permission"`
}

// GrantAccess adds or replaces the grantee's entry on the owner's note.
// The note's server_updated_at is bumped so the grantee's next pull sees it.
func GrantAccess(ownerGUID, noteGUID string, input GrantAccessInput) (*SharedAccess, error) {
	if input.GranteeGUID == "" {
		return nil, malformed("grantee_guid is required")
	}
	if !input.Permission.Valid() {
		return nil, malformed("permission must be view or edit")
	}
	if input.GranteeGUID == ownerGUID {
		return nil, malformed("owner cannot be a grantee")
	}

	grantee, err := GetUserByGUID(input.GranteeGUID)
	if err != nil {
		return nil, err
	}
	if grantee == nil {
		return nil, ErrNotFound
	}

	share := &SharedAccess{GranteeGUID: input.GranteeGUID, Permission: input.Permission}

	err = inTx(func(tx *sql.Tx) error {
		meta, err := loadNoteRow(tx, noteGUID)
		if err != nil {
			return err
		}
		if meta == nil {
			return ErrNotFound
		}
		if meta.OwnerGUID != ownerGUID {
			return ErrForbidden
		}

		now := serverNow()
		share.GrantedAt = now

		var existing string
		err = tx.QueryRow(`SELECT permission FROM note_shares WHERE note_guid = ? AND grantee_guid = ?`,
			noteGUID, input.GranteeGUID).Scan(&existing)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.Exec(`INSERT INTO note_shares (note_guid, grantee_guid, permission, granted_by, granted_at)
				VALUES (?, ?, ?, ?, ?)`, noteGUID, input.GranteeGUID, string(input.Permission), ownerGUID, now)
		case err == nil:
			_, err = tx.Exec(`UPDATE note_shares SET permission = ?, granted_by = ?, granted_at = ?
				WHERE note_guid = ? AND grantee_guid = ?`, string(input.Permission), ownerGUID, now, noteGUID, input.GranteeGUID)
		}
		if err != nil {
			return serr.Wrap(err, "failed to write share")
		}

		return bumpServerUpdatedAt(tx, noteGUID, meta.ServerUpdatedAt, now)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Note shared", "note_guid", noteGUID, "grantee", input.GranteeGUID, "permission", string(input.Permission))
	return share, nil
}

// RevokeAccess removes a grantee. Revoking a missing grant is a no-op.
func RevokeAccess(ownerGUID, noteGUID, granteeGUID string) error {
	return inTx(func(tx *sql.Tx) error {
		meta, err := loadNoteRow(tx, noteGUID)
		if err != nil {
			return err
		}
		if meta == nil {
			return ErrNotFound
		}
		if meta.OwnerGUID != ownerGUID {
			return ErrForbidden
		}

		if _, err := tx.Exec(`DELETE FROM note_shares WHERE note_guid = ? AND grantee_guid = ?`,
			noteGUID, granteeGUID); err != nil {
			return serr.Wrap(err, "failed to delete share")
		}
		return bumpServerUpdatedAt(tx, noteGUID, meta.ServerUpdatedAt, serverNow())
	})
}

// ListShares returns the grants on a note the caller can view.
func ListShares(userGUID, noteGUID string) ([]SharedAccess, error) {
	meta, err := GetNoteMetadata(noteGUID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ErrNotFound
	}
	if !meta.CanView(userGUID) {
		return nil, ErrForbidden
	}
	return meta.Shares, nil
}

func listSharesFor(q querier, noteGUID string) ([]SharedAccess, error) {
	rows, err := q.Query(`SELECT grantee_guid, permission, granted_at FROM note_shares
		WHERE note_guid = ? ORDER BY grantee_guid`, noteGUID)
	if err != nil {
		return nil, serr.Wrap(err, "failed to query shares")
	}
	defer rows.Close()

	shares := []SharedAccess{}
	for rows.Next() {
		var (
			s    SharedAccess
			perm string
		)
		if err := rows.Scan(&s.GranteeGUID, &perm, &s.GrantedAt); err != nil {
			return nil, serr.Wrap(err, "failed to scan share")
		}
		s.Permission = Permission(perm)
		shares = append(shares, s)
	}
	return shares, rows.Err()
}

// permissionFor returns the grantee's permission on a note, or "" when none.
func permissionFor(q querier, noteGUID, userGUID string) (Permission, error) {
	var perm string
	err := q.QueryRow(`SELECT permission FROM note_shares WHERE note_guid = ? AND grantee_guid = ?`,
		noteGUID, userGUID).Scan(&perm)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", serr.Wrap(err, "failed to query share permission")
	}
	return Permission(perm), nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}
