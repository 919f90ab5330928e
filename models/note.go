package models

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// NoteMetadata is the hub's record of a note, apart from its content.
// UpdatedAt is asserted by the client; ServerUpdatedAt is the hub's
// receipt time and never decreases.
type NoteMetadata struct {
	ID              string         `json:"id"`
	OwnerGUID       string         `json:"owner_guid"`
	Title           string         `json:"title"`
	Type            NoteType       `json:"type"`
	IsDeleted       bool           `json:"is_deleted"`
	UpdatedAt       time.Time      `json:"updated_at"`
	ServerUpdatedAt time.Time      `json:"server_updated_at"`
	CreatedAt       time.Time      `json:"created_at"`
	Shares          []SharedAccess `json:"shares,omitempty"`
}

// CanView reports whether userGUID owns the note or holds any grant on it.
func (m *NoteMetadata) CanView(userGUID string) bool {
	if m.OwnerGUID == userGUID {
		return true
	}
	for _, s := range m.Shares {
		if s.GranteeGUID == userGUID {
			return true
		}
	}
	return false
}

// CanEdit reports whether userGUID owns the note or holds an edit grant.
func (m *NoteMetadata) CanEdit(userGUID string) bool {
	if m.OwnerGUID == userGUID {
		return true
	}
	for _, s := range m.Shares {
		if s.GranteeGUID == userGUID && s.Permission == PermissionEdit {
			return true
		}
	}
	return false
}

// NoteMetadataInput is one record of a metadata push.
type NoteMetadataInput struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      NoteType  `json:"type"`
	IsDeleted bool      `json:"is_deleted"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (in NoteMetadataInput) validate() error {
	switch {
	case strings.TrimSpace(in.ID) == "":
		return malformed("note id is required")
	case !in.Type.Valid():
		return malformed("unknown note type: " + string(in.Type))
	case in.UpdatedAt.IsZero():
		return malformed("updated_at is required")
	}
	return nil
}

// Rejection reasons reported per id in a metadata push.
const (
	RejectForbidden = "forbidden"
	RejectMalformed = "malformed"
	RejectStale     = "stale"
)

const noteColumns = `guid, owner_guid, title, note_type, is_deleted, updated_at, server_updated_at, created_at`

func scanNote(scan func(dest ...any) error) (*NoteMetadata, error) {
	var (
		m        NoteMetadata
		noteType string
	)
	if err := scan(&m.ID, &m.OwnerGUID, &m.Title, &noteType, &m.IsDeleted,
		&m.UpdatedAt, &m.ServerUpdatedAt, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Type = NoteType(noteType)
	m.UpdatedAt = m.UpdatedAt.UTC()
	m.ServerUpdatedAt = m.ServerUpdatedAt.UTC()
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

// loadNoteRow reads one note without its shares; nil when absent.
func loadNoteRow(q querier, noteGUID string) (*NoteMetadata, error) {
	row := q.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE guid = ?`, noteGUID)
	m, err := scanNote(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, serr.Wrap(err, "failed to load note")
	}
	return m, nil
}

// loadNote reads one note with its shares; nil when absent.
func loadNote(q querier, noteGUID string) (*NoteMetadata, error) {
	m, err := loadNoteRow(q, noteGUID)
	if err != nil || m == nil {
		return m, err
	}
	if m.Shares, err = listSharesFor(q, noteGUID); err != nil {
		return nil, err
	}
	return m, nil
}

// GetNoteMetadata returns the note or nil when it does not exist.
func GetNoteMetadata(noteGUID string) (*NoteMetadata, error) {
	if db == nil {
		return nil, serr.New("database not initialized")
	}
	return loadNote(db, noteGUID)
}

// UpsertNoteMetadataBatch applies a metadata push from userGUID. Each record
// is decided on its own; a store failure aborts the whole batch so the
// caller can retry it.
func UpsertNoteMetadataBatch(userGUID string, inputs []NoteMetadataInput) (*PushNotesResponse, error) {
	resp := &PushNotesResponse{Written: []string{}, Rejected: []PushRejection{}}

	// A repeated id keeps its latest version.
	order := make([]string, 0, len(inputs))
	latest := make(map[string]NoteMetadataInput, len(inputs))
	for _, in := range inputs {
		if err := in.validate(); err != nil {
			resp.Rejected = append(resp.Rejected, PushRejection{ID: in.ID, Reason: RejectMalformed})
			continue
		}
		in.UpdatedAt = normalizeTime(in.UpdatedAt)
		if in.CreatedAt.IsZero() {
			in.CreatedAt = in.UpdatedAt
		}
		in.CreatedAt = normalizeTime(in.CreatedAt)

		prev, seen := latest[in.ID]
		if !seen {
			order = append(order, in.ID)
		}
		if !seen || !prev.UpdatedAt.After(in.UpdatedAt) {
			latest[in.ID] = in
		}
	}

	err := inTx(func(tx *sql.Tx) error {
		now := serverNow()
		resp.ServerTime = now

		for _, id := range order {
			in := latest[id]
			reason, err := upsertNoteTx(tx, userGUID, in, now)
			if err != nil {
				return err
			}
			if reason == "" {
				resp.Written = append(resp.Written, id)
			} else {
				resp.Rejected = append(resp.Rejected, PushRejection{ID: id, Reason: reason})
			}
		}
		return nil
	})
	if err != nil {
		return nil, serr.Wrap(err, "failed to push note metadata")
	}

	logger.Debug("Metadata push applied", "user", userGUID,
		"written", len(resp.Written), "rejected", len(resp.Rejected))
	return resp, nil
}

// upsertNoteTx writes one record, or returns the rejection reason.
func upsertNoteTx(tx *sql.Tx, userGUID string, in NoteMetadataInput, now time.Time) (string, error) {
	existing, err := loadNoteRow(tx, in.ID)
	if err != nil {
		return "", err
	}

	if existing == nil {
		// Content may have arrived first; it names the owner.
		contentOwner, err := contentOwnerOf(tx, in.ID)
		if err != nil {
			return "", err
		}
		if contentOwner != "" && contentOwner != userGUID {
			return RejectForbidden, nil
		}

		_, err = tx.Exec(`INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			in.ID, userGUID, in.Title, string(in.Type), in.IsDeleted, in.UpdatedAt, now, in.CreatedAt)
		if err != nil {
			return "", serr.Wrap(err, "failed to insert note")
		}
		return "", nil
	}

	if existing.OwnerGUID != userGUID {
		perm, err := permissionFor(tx, in.ID, userGUID)
		if err != nil {
			return "", err
		}
		if perm != PermissionEdit {
			return RejectForbidden, nil
		}
	}
	if existing.Type != in.Type {
		return RejectMalformed, nil
	}

	same := existing.Title == in.Title && existing.IsDeleted == in.IsDeleted
	switch Decide(existing.UpdatedAt, true, in.UpdatedAt, same) {
	case ResolutionStale:
		recordConflict(ConflictRecord{
			EntityType: "note", EntityKey: in.ID, UserGUID: userGUID,
			Resolution: ResolutionStale.String(), StoredAt: existing.UpdatedAt, IncomingAt: in.UpdatedAt,
		})
		return RejectStale, nil
	case ResolutionDuplicate:
		return RejectStale, nil
	}

	_, err = tx.Exec(`UPDATE notes SET title = ?, is_deleted = ?, updated_at = ?, server_updated_at = ?
		WHERE guid = ?`, in.Title, in.IsDeleted, in.UpdatedAt, laterOf(now, existing.ServerUpdatedAt), in.ID)
	if err != nil {
		return "", serr.Wrap(err, "failed to update note")
	}
	return "", nil
}

// GetNotesChangedSince returns every note visible to userGUID whose
// updated_at or server_updated_at is strictly after since. ServerTime is
// the newest stamp among the returned notes, capped at the hub clock and
// never below since, so it can be used as the next watermark directly.
func GetNotesChangedSince(userGUID string, since time.Time) (*PullResponse, error) {
	resp := &PullResponse{Notes: []NoteMetadata{}}

	// Reads share the write lock so a pull never observes half a batch.
	writeMu.Lock()
	defer writeMu.Unlock()

	if db == nil {
		return nil, serr.New("database not initialized")
	}

	now := serverNow()
	query := `SELECT ` + noteColumns + ` FROM notes n
		WHERE (n.owner_guid = ? OR EXISTS (
			SELECT 1 FROM note_shares s WHERE s.note_guid = n.guid AND s.grantee_guid = ?))`
	args := []any{userGUID, userGUID}
	if !since.IsZero() {
		since = normalizeTime(since)
		query += ` AND (n.updated_at > ? OR n.server_updated_at > ?)`
		args = append(args, since, since)
	}
	query += ` ORDER BY n.server_updated_at, n.guid`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, serr.Wrap(err, "failed to query changed notes")
	}
	defer rows.Close()

	var newest time.Time
	for rows.Next() {
		m, err := scanNote(rows.Scan)
		if err != nil {
			return nil, serr.Wrap(err, "failed to scan note")
		}
		newest = laterOf(newest, laterOf(m.UpdatedAt, m.ServerUpdatedAt))
		resp.Notes = append(resp.Notes, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, serr.Wrap(err, "failed to iterate notes")
	}

	for i := range resp.Notes {
		if resp.Notes[i].Shares, err = listSharesFor(db, resp.Notes[i].ID); err != nil {
			return nil, err
		}
	}

	if len(resp.Notes) == 0 {
		newest = now
	} else if newest.After(now) {
		newest = now
	}
	resp.ServerTime = laterOf(since, newest)
	return resp, nil
}

// SoftDeleteNote flags the note deleted. Repeating it is a no-op.
func SoftDeleteNote(userGUID, noteGUID string) (*NoteMetadata, error) {
	return setDeleted(userGUID, noteGUID, true)
}

// RestoreNote clears the deleted flag. Repeating it is a no-op.
func RestoreNote(userGUID, noteGUID string) (*NoteMetadata, error) {
	return setDeleted(userGUID, noteGUID, false)
}

func setDeleted(userGUID, noteGUID string, deleted bool) (*NoteMetadata, error) {
	var out *NoteMetadata
	err := inTx(func(tx *sql.Tx) error {
		meta, err := loadNoteRow(tx, noteGUID)
		if err != nil {
			return err
		}
		if meta == nil {
			return ErrNotFound
		}
		if meta.OwnerGUID != userGUID {
			return ErrForbidden
		}
		if meta.IsDeleted != deleted {
			now := serverNow()
			// The flip is a new version of the note on every device.
			updatedAt := laterOf(now, meta.UpdatedAt)
			serverUpdatedAt := laterOf(now, meta.ServerUpdatedAt)
			if _, err := tx.Exec(`UPDATE notes SET is_deleted = ?, updated_at = ?, server_updated_at = ? WHERE guid = ?`,
				deleted, updatedAt, serverUpdatedAt, noteGUID); err != nil {
				return serr.Wrap(err, "failed to update deleted flag")
			}
		}
		out, err = loadNote(tx, noteGUID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PermanentlyDeleteNote removes content, pages, shares and then metadata
// in one transaction. Deleting a note that is already gone is a no-op.
func PermanentlyDeleteNote(userGUID, noteGUID string) error {
	err := inTx(func(tx *sql.Tx) error {
		meta, err := loadNoteRow(tx, noteGUID)
		if err != nil {
			return err
		}
		if meta == nil {
			owner, err := contentOwnerOf(tx, noteGUID)
			if err != nil {
				return err
			}
			if owner == "" {
				return nil
			}
			if owner != userGUID {
				return ErrForbidden
			}
		} else if meta.OwnerGUID != userGUID {
			return ErrForbidden
		}

		steps := []struct{ what, sql string }{
			{"content", `DELETE FROM note_contents WHERE note_guid = ?`},
			{"pages", `DELETE FROM pages WHERE notebook_guid = ?`},
			{"shares", `DELETE FROM note_shares WHERE note_guid = ?`},
			{"metadata", `DELETE FROM notes WHERE guid = ?`},
		}
		for _, step := range steps {
			if _, err := tx.Exec(step.sql, noteGUID); err != nil {
				return serr.Wrap(err, "failed to delete note "+step.what)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("Note permanently deleted", "note_guid", noteGUID, "user", userGUID)
	return nil
}

// bumpServerUpdatedAt marks a note changed on the hub without touching the
// client-asserted updated_at.
func bumpServerUpdatedAt(tx *sql.Tx, noteGUID string, current, now time.Time) error {
	if _, err := tx.Exec(`UPDATE notes SET server_updated_at = ? WHERE guid = ?`,
		laterOf(now, current), noteGUID); err != nil {
		return serr.Wrap(err, "failed to bump server_updated_at")
	}
	return nil
}

// CountNotes returns live and soft-deleted note counts.
func CountNotes() (live, deleted int64, err error) {
	err = db.QueryRow(`SELECT
		COUNT(*) FILTER (WHERE NOT is_deleted),
		COUNT(*) FILTER (WHERE is_deleted)
		FROM notes`).Scan(&live, &deleted)
	if err != nil {
		return 0, 0, serr.Wrap(err, "failed to count notes")
	}
	return live, deleted, nil
}
