package models

import (
	"bytes"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/rohanthewiz/serr"
)

// Page is one page of a paginated canvas notebook, synced on its own.
type Page struct {
	NotebookGUID    string    `json:"notebook_id"`
	Index           int       `json:"index"`
	OwnerGUID       string    `json:"owner_guid"`
	Layers          []Layer   `json:"layers"`
	UpdatedAt       time.Time `json:"updated_at"`
	ServerUpdatedAt time.Time `json:"server_updated_at"`
}

func pageKey(notebookGUID string, index int) string {
	return notebookGUID + "#" + strconv.Itoa(index)
}

type storedPage struct {
	ownerGUID       string
	layers          []byte
	updatedAt       time.Time
	serverUpdatedAt time.Time
}

func loadPageRow(q querier, notebookGUID string, index int) (*storedPage, error) {
	var sp storedPage
	err := q.QueryRow(`SELECT owner_guid, layers, updated_at, server_updated_at FROM pages
		WHERE notebook_guid = ? AND page_index = ?`, notebookGUID, index).
		Scan(&sp.ownerGUID, &sp.layers, &sp.updatedAt, &sp.serverUpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, serr.Wrap(err, "failed to load page")
	}
	sp.updatedAt = sp.updatedAt.UTC()
	sp.serverUpdatedAt = sp.serverUpdatedAt.UTC()
	return &sp, nil
}

// pageAccess resolves who may touch a notebook's pages: the notebook's
// note metadata when it exists, else the owner of any page already stored.
func pageAccess(q querier, notebookGUID, userGUID string, write bool) (owner string, err error) {
	meta, err := loadNote(q, notebookGUID)
	if err != nil {
		return "", err
	}
	if meta != nil {
		allowed := meta.CanView(userGUID)
		if write {
			allowed = meta.CanEdit(userGUID)
		}
		if !allowed {
			return "", ErrForbidden
		}
		return meta.OwnerGUID, nil
	}

	var existing string
	err = q.QueryRow(`SELECT owner_guid FROM pages WHERE notebook_guid = ? LIMIT 1`, notebookGUID).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return userGUID, nil
	}
	if err != nil {
		return "", serr.Wrap(err, "failed to load notebook owner")
	}
	if existing != userGUID {
		return "", ErrForbidden
	}
	return existing, nil
}

// UpsertPage applies a page push under the same conflict policy as content.
func UpsertPage(userGUID, notebookGUID string, index int, layers []Layer, updatedAt time.Time) (*ContentPushResponse, error) {
	if notebookGUID == "" {
		return nil, malformed("notebook id is required")
	}
	if index < 0 {
		return nil, malformed("page index must not be negative")
	}
	if updatedAt.IsZero() {
		return nil, malformed("updated_at is required")
	}
	updatedAt = normalizeTime(updatedAt)

	payload, err := EncodeLayers(layers)
	if err != nil {
		return nil, err
	}

	var (
		resp  *ContentPushResponse
		stale *ConflictRecord
	)
	err = inTx(func(tx *sql.Tx) error {
		owner, err := pageAccess(tx, notebookGUID, userGUID, true)
		if err != nil {
			return err
		}
		stored, err := loadPageRow(tx, notebookGUID, index)
		if err != nil {
			return err
		}

		var storedAt time.Time
		same := false
		if stored != nil {
			storedAt = stored.updatedAt
			same = bytes.Equal(stored.layers, payload)
		}

		switch Decide(storedAt, stored != nil, updatedAt, same) {
		case ResolutionStale:
			stale = &ConflictRecord{
				EntityType: "page", EntityKey: pageKey(notebookGUID, index), UserGUID: userGUID,
				Resolution: ResolutionStale.String(), StoredAt: storedAt, IncomingAt: updatedAt,
			}
			fallthrough
		case ResolutionDuplicate:
			resp = &ContentPushResponse{Status: ContentStatusIgnored, Reason: RejectStale}
			return nil
		}

		now := serverNow()
		if stored == nil {
			_, err = tx.Exec(`INSERT INTO pages (notebook_guid, page_index, owner_guid, layers, updated_at, server_updated_at, updated_by)
				VALUES (?, ?, ?, ?, ?, ?, ?)`, notebookGUID, index, owner, payload, updatedAt, now, userGUID)
		} else {
			_, err = tx.Exec(`UPDATE pages SET layers = ?, updated_at = ?, server_updated_at = ?, updated_by = ?
				WHERE notebook_guid = ? AND page_index = ?`,
				payload, updatedAt, laterOf(now, stored.serverUpdatedAt), userGUID, notebookGUID, index)
		}
		if err != nil {
			return serr.Wrap(err, "failed to write page")
		}
		resp = &ContentPushResponse{Status: ContentStatusSynced}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if stale != nil {
		recordConflict(*stale)
	}
	return resp, nil
}

// GetPage returns one page when userGUID may view the notebook.
func GetPage(userGUID, notebookGUID string, index int) (*Page, error) {
	if db == nil {
		return nil, serr.New("database not initialized")
	}
	if _, err := pageAccess(db, notebookGUID, userGUID, false); err != nil {
		return nil, err
	}
	stored, err := loadPageRow(db, notebookGUID, index)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrNotFound
	}
	layers, err := DecodeLayers(stored.layers)
	if err != nil {
		return nil, err
	}
	return &Page{
		NotebookGUID:    notebookGUID,
		Index:           index,
		OwnerGUID:       stored.ownerGUID,
		Layers:          layers,
		UpdatedAt:       stored.updatedAt,
		ServerUpdatedAt: stored.serverUpdatedAt,
	}, nil
}

// CountPages returns the number of stored pages.
func CountPages() (int64, error) {
	var n int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM pages`).Scan(&n); err != nil {
		return 0, serr.Wrap(err, "failed to count pages")
	}
	return n, nil
}
