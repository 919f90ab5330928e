package models

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Sync Protocol
//
// Wire types shared by the hub handlers and the client transport. Metadata
// is pushed in batches, content and pages one record at a time, and pulls
// return metadata only. Every response carries hub time so the client never
// derives a watermark from its own clock.
// ============================================================================

// PushNotesRequest is the body of POST /api/v1/sync/notes.
type PushNotesRequest struct {
	Notes []NoteMetadataInput `json:"notes"`
}

// PushNotesResponse lists the ids actually written and those rejected.
type PushNotesResponse struct {
	Written    []string        `json:"written"`
	Rejected   []PushRejection `json:"rejected"`
	ServerTime time.Time       `json:"server_time"`
}

// PushRejection explains why one id was not written.
type PushRejection struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// ContentStatus is the outcome of a content or page push.
type ContentStatus string

const (
	ContentStatusSynced  ContentStatus = "synced"
	ContentStatusIgnored ContentStatus = "ignored"
)

// ContentPushRequest is the body of PUT /api/v1/sync/notes/:id/content.
// Data is decoded against Type by DecodeContent.
type ContentPushRequest struct {
	Type      NoteType        `json:"type"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ContentPushResponse is {status:"synced"} or {status:"ignored",reason:"stale"}.
type ContentPushResponse struct {
	Status ContentStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

// ContentOutput is the body of GET /api/v1/sync/notes/:id/content.
type ContentOutput struct {
	ID              string          `json:"id"`
	Type            NoteType        `json:"type"`
	Data            json.RawMessage `json:"data"`
	UpdatedAt       time.Time       `json:"updated_at"`
	ServerUpdatedAt time.Time       `json:"server_updated_at"`
}

// ToOutput renders stored content in its canonical JSON form.
func (c *NoteContent) ToOutput() (*ContentOutput, error) {
	data, err := EncodeContentJSON(c.Content)
	if err != nil {
		return nil, err
	}
	return &ContentOutput{
		ID:              c.NoteGUID,
		Type:            c.Type,
		Data:            data,
		UpdatedAt:       c.UpdatedAt,
		ServerUpdatedAt: c.ServerUpdatedAt,
	}, nil
}

// PullResponse is the body of GET /api/v1/sync/pull.
type PullResponse struct {
	Notes      []NoteMetadata `json:"notes"`
	ServerTime time.Time      `json:"server_time"`
}

// PagePushRequest is the body of PUT /api/v1/sync/pages/:notebook/:index.
type PagePushRequest struct {
	Layers    []Layer   `json:"layers"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status     string    `json:"status"`
	ServerTime time.Time `json:"server_time"`
}

// NewHealthResponse stamps the hub clock.
func NewHealthResponse() HealthResponse {
	return HealthResponse{Status: "ok", ServerTime: serverNow()}
}

// SyncStatusResponse summarizes the hub store for the status page.
// The checksum lets two operators compare hubs without listing records.
type SyncStatusResponse struct {
	LiveNotes    int64            `json:"live_notes"`
	DeletedNotes int64            `json:"deleted_notes"`
	Contents     int64            `json:"contents"`
	Pages        int64            `json:"pages"`
	Checksum     string           `json:"checksum"`
	Conflicts    []ConflictRecord `json:"conflicts"`
	ServerTime   time.Time        `json:"server_time"`
}

// GetSyncStatus collects counts, a checksum and the latest conflicts.
func GetSyncStatus() (*SyncStatusResponse, error) {
	if db == nil {
		return nil, serr.New("database not initialized")
	}

	status := &SyncStatusResponse{ServerTime: serverNow()}
	var err error

	if status.LiveNotes, status.DeletedNotes, err = CountNotes(); err != nil {
		return nil, err
	}
	if status.Contents, err = CountContents(); err != nil {
		return nil, err
	}
	if status.Pages, err = CountPages(); err != nil {
		return nil, err
	}
	if status.Checksum, err = computeSyncChecksum(); err != nil {
		return nil, serr.Wrap(err, "failed to compute sync checksum")
	}
	if status.Conflicts, err = ListRecentConflicts(10); err != nil {
		return nil, err
	}
	return status, nil
}

// computeSyncChecksum hashes every note id with its updated_at, in id order.
// Two hubs holding the same versions produce the same checksum.
func computeSyncChecksum() (string, error) {
	rows, err := db.Query(`SELECT guid, updated_at FROM notes ORDER BY guid`)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var sb strings.Builder
	for rows.Next() {
		var (
			guid      string
			updatedAt time.Time
		)
		if err := rows.Scan(&guid, &updatedAt); err != nil {
			return "", err
		}
		sb.WriteString(guid)
		sb.WriteByte('@')
		sb.WriteString(updatedAt.UTC().Format(time.RFC3339Nano))
		sb.WriteByte(',')
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	h := sha256.Sum256([]byte(sb.String()))
	return fmt.Sprintf("%x", h), nil
}
