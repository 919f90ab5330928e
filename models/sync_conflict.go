package models

import (
	"fmt"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// ============================================================================
// Conflict Resolution Policy
//
// One rule reconciles every pair of versions of the same entity, on the hub
// (metadata, content and page pushes) and on clients (merging pulls):
//
//   - no stored version: the incoming write applies
//   - stored updated_at strictly after incoming: the incoming write is stale
//   - equal updated_at and identical payload: a duplicate, nothing to do
//   - otherwise the incoming write replaces the stored one in full
//
// This is last-writer-wins at whole-object granularity. Concurrent edits
// from two devices keep the later one; the loser is recorded in the
// sync_conflicts audit table on the hub.
// ============================================================================

// Resolution is the outcome of Decide.
type Resolution int

const (
	ResolutionApply Resolution = iota
	ResolutionStale
	ResolutionDuplicate
)

func (r Resolution) String() string {
	switch r {
	case ResolutionApply:
		return "apply"
	case ResolutionStale:
		return "stale"
	case ResolutionDuplicate:
		return "duplicate"
	}
	return fmt.Sprintf("resolution(%d)", int(r))
}

// Decide applies the conflict policy to one incoming write.
func Decide(stored time.Time, hasStored bool, incoming time.Time, samePayload bool) Resolution {
	if !hasStored {
		return ResolutionApply
	}
	if stored.After(incoming) {
		return ResolutionStale
	}
	if stored.Equal(incoming) && samePayload {
		return ResolutionDuplicate
	}
	return ResolutionApply
}

// ConflictRecord is one rejected write kept for auditing.
type ConflictRecord struct {
	ID          int64     `json:"id"`
	EntityType  string    `json:"entity_type"` // "note", "content" or "page"
	EntityKey   string    `json:"entity_key"`
	UserGUID    string    `json:"user_guid"`
	Resolution  string    `json:"resolution"`
	StoredAt    time.Time `json:"stored_at"`
	IncomingAt  time.Time `json:"incoming_at"`
	DiffSummary string    `json:"diff_summary,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

const DDLCreateSyncConflictsSequence = `
CREATE SEQUENCE IF NOT EXISTS sync_conflicts_id_seq START 1;
`

const DDLCreateSyncConflictsTable = `
CREATE TABLE IF NOT EXISTS sync_conflicts (
    id           BIGINT PRIMARY KEY DEFAULT nextval('sync_conflicts_id_seq'),
    entity_type  VARCHAR NOT NULL,
    entity_key   VARCHAR NOT NULL,
    user_guid    VARCHAR,
    resolution   VARCHAR NOT NULL,
    stored_at    TIMESTAMP,
    incoming_at  TIMESTAMP,
    diff_summary VARCHAR,
    created_at   TIMESTAMP NOT NULL
);
`

// maxDiffSummary bounds the patch text kept per conflict.
const maxDiffSummary = 2048

// recordConflict logs a rejected write. Errors are logged, never returned:
// auditing must not fail a sync call.
func recordConflict(rec ConflictRecord) {
	if db == nil {
		return
	}
	_, err := db.Exec(
		`INSERT INTO sync_conflicts (entity_type, entity_key, user_guid, resolution, stored_at, incoming_at, diff_summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.EntityType, rec.EntityKey, rec.UserGUID, rec.Resolution,
		rec.StoredAt, rec.IncomingAt, rec.DiffSummary, serverNow(),
	)
	if err != nil {
		logger.LogErr(err, "failed to insert sync conflict record",
			"entity_type", rec.EntityType,
			"entity_key", rec.EntityKey,
			"resolution", rec.Resolution,
		)
	}
}

// ListRecentConflicts returns the newest conflict records first.
func ListRecentConflicts(limit int) ([]ConflictRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(
		`SELECT id, entity_type, entity_key, user_guid, resolution, stored_at, incoming_at, diff_summary, created_at
		 FROM sync_conflicts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, serr.Wrap(err, "failed to query sync conflicts")
	}
	defer rows.Close()

	var out []ConflictRecord
	for rows.Next() {
		var (
			rec                  ConflictRecord
			userGUID, summary    *string
			storedAt, incomingAt *time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.EntityType, &rec.EntityKey, &userGUID, &rec.Resolution,
			&storedAt, &incomingAt, &summary, &rec.CreatedAt); err != nil {
			return nil, serr.Wrap(err, "failed to scan sync conflict")
		}
		if userGUID != nil {
			rec.UserGUID = *userGUID
		}
		if summary != nil {
			rec.DiffSummary = *summary
		}
		if storedAt != nil {
			rec.StoredAt = *storedAt
		}
		if incomingAt != nil {
			rec.IncomingAt = *incomingAt
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// textDiffSummary describes what a rejected structured-text write would
// have changed, as a count line followed by a truncated patch.
func textDiffSummary(stored, incoming string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(stored, incoming, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	inserted, deleted := 0, 0
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			inserted += len(d.Text)
		case diffmatchpatch.DiffDelete:
			deleted += len(d.Text)
		}
	}

	summary := fmt.Sprintf("+%d -%d chars\n", inserted, deleted)
	summary += dmp.PatchToText(dmp.PatchMake(stored, diffs))
	if len(summary) > maxDiffSummary {
		summary = summary[:maxDiffSummary]
	}
	return summary
}
