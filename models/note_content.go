package models

import (
	"bytes"
	"database/sql"
	"errors"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// NoteContent is the stored payload of one note.
type NoteContent struct {
	NoteGUID        string
	OwnerGUID       string
	Type            NoteType
	Content         Content
	UpdatedAt       time.Time
	ServerUpdatedAt time.Time
	UpdatedBy       string
}

type storedContent struct {
	ownerGUID       string
	noteType        NoteType
	payload         []byte
	updatedAt       time.Time
	serverUpdatedAt time.Time
	updatedBy       sql.NullString
}

func loadContentRow(q querier, noteGUID string) (*storedContent, error) {
	var (
		sc       storedContent
		noteType string
	)
	err := q.QueryRow(`SELECT owner_guid, note_type, payload, updated_at, server_updated_at, updated_by
		FROM note_contents WHERE note_guid = ?`, noteGUID).
		Scan(&sc.ownerGUID, &noteType, &sc.payload, &sc.updatedAt, &sc.serverUpdatedAt, &sc.updatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, serr.Wrap(err, "failed to load note content")
	}
	sc.noteType = NoteType(noteType)
	sc.updatedAt = sc.updatedAt.UTC()
	sc.serverUpdatedAt = sc.serverUpdatedAt.UTC()
	return &sc, nil
}

// contentOwnerOf returns the owner recorded with a note's content or pages,
// or "" when neither has been stored.
func contentOwnerOf(q querier, noteGUID string) (string, error) {
	sc, err := loadContentRow(q, noteGUID)
	if err != nil {
		return "", err
	}
	if sc != nil {
		return sc.ownerGUID, nil
	}

	var owner string
	err = q.QueryRow(`SELECT owner_guid FROM pages WHERE notebook_guid = ? LIMIT 1`, noteGUID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", serr.Wrap(err, "failed to load page owner")
	}
	return owner, nil
}

// UpsertNoteContent replaces a note's content when the incoming version
// is not older than the stored one. Content may arrive before its
// metadata; the first writer then becomes the recorded owner.
func UpsertNoteContent(userGUID, noteGUID string, content Content, updatedAt time.Time) (*ContentPushResponse, error) {
	if noteGUID == "" {
		return nil, malformed("note id is required")
	}
	if updatedAt.IsZero() {
		return nil, malformed("updated_at is required")
	}
	if content == nil {
		return nil, malformed("content data is required")
	}
	updatedAt = normalizeTime(updatedAt)
	noteType := content.NoteType()

	payload, err := EncodeContentPayload(content)
	if err != nil {
		return nil, err
	}

	var (
		resp     *ContentPushResponse
		conflict *ConflictRecord
	)
	err = inTx(func(tx *sql.Tx) error {
		meta, err := loadNote(tx, noteGUID)
		if err != nil {
			return err
		}
		stored, err := loadContentRow(tx, noteGUID)
		if err != nil {
			return err
		}

		owner := userGUID
		switch {
		case meta != nil:
			if !meta.CanEdit(userGUID) {
				return ErrForbidden
			}
			if meta.Type != noteType {
				return malformed("content type does not match note type " + string(meta.Type))
			}
			owner = meta.OwnerGUID
		case stored != nil:
			if stored.ownerGUID != userGUID {
				return ErrForbidden
			}
		}

		var storedAt time.Time
		same := false
		if stored != nil {
			storedAt = stored.updatedAt
			same = stored.noteType == noteType && bytes.Equal(stored.payload, payload)
		}

		switch Decide(storedAt, stored != nil, updatedAt, same) {
		case ResolutionStale:
			conflict = &ConflictRecord{
				EntityType: "content", EntityKey: noteGUID, UserGUID: userGUID,
				Resolution: ResolutionStale.String(), StoredAt: storedAt, IncomingAt: updatedAt,
				DiffSummary: contentDiffSummary(stored, content),
			}
			resp = &ContentPushResponse{Status: ContentStatusIgnored, Reason: RejectStale}
			return nil
		case ResolutionDuplicate:
			resp = &ContentPushResponse{Status: ContentStatusIgnored, Reason: RejectStale}
			return nil
		}

		now := serverNow()
		if stored == nil {
			_, err = tx.Exec(`INSERT INTO note_contents (note_guid, owner_guid, note_type, payload, updated_at, server_updated_at, updated_by)
				VALUES (?, ?, ?, ?, ?, ?, ?)`, noteGUID, owner, string(noteType), payload, updatedAt, now, userGUID)
		} else {
			_, err = tx.Exec(`UPDATE note_contents SET note_type = ?, payload = ?, updated_at = ?, server_updated_at = ?, updated_by = ?
				WHERE note_guid = ?`, string(noteType), payload, updatedAt, laterOf(now, stored.serverUpdatedAt), userGUID, noteGUID)
		}
		if err != nil {
			return serr.Wrap(err, "failed to write note content")
		}
		resp = &ContentPushResponse{Status: ContentStatusSynced}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if conflict != nil {
		recordConflict(*conflict)
		logger.Info("Stale content push ignored", "note_guid", noteGUID, "user", userGUID)
	}
	return resp, nil
}

// contentDiffSummary is only meaningful for structured text.
func contentDiffSummary(stored *storedContent, incoming Content) string {
	text, ok := incoming.(StructuredText)
	if !ok || stored == nil || stored.noteType != NoteTypeStructuredText {
		return ""
	}
	prev, err := DecodeContentPayload(NoteTypeStructuredText, stored.payload)
	if err != nil {
		return ""
	}
	return textDiffSummary(prev.(StructuredText).PlainText(), text.PlainText())
}

// GetNoteContent returns a note's content when userGUID may view it.
func GetNoteContent(userGUID, noteGUID string) (*NoteContent, error) {
	if db == nil {
		return nil, serr.New("database not initialized")
	}

	meta, err := loadNote(db, noteGUID)
	if err != nil {
		return nil, err
	}
	stored, err := loadContentRow(db, noteGUID)
	if err != nil {
		return nil, err
	}

	switch {
	case meta != nil:
		if !meta.CanView(userGUID) {
			return nil, ErrForbidden
		}
	case stored != nil:
		if stored.ownerGUID != userGUID {
			return nil, ErrForbidden
		}
	}
	if stored == nil {
		return nil, ErrNotFound
	}

	content, err := DecodeContentPayload(stored.noteType, stored.payload)
	if err != nil {
		return nil, err
	}
	return &NoteContent{
		NoteGUID:        noteGUID,
		OwnerGUID:       stored.ownerGUID,
		Type:            stored.noteType,
		Content:         content,
		UpdatedAt:       stored.updatedAt,
		ServerUpdatedAt: stored.serverUpdatedAt,
		UpdatedBy:       stored.updatedBy.String,
	}, nil
}

// CountContents returns the number of stored content records.
func CountContents() (int64, error) {
	var n int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM note_contents`).Scan(&n); err != nil {
		return 0, serr.Wrap(err, "failed to count note contents")
	}
	return n, nil
}
