package pages

import (
	"errors"
	"strings"
	"testing"
	"time"

	"notesync/models"
)

// TestStatusPageShowsCounts verifies the counters and checksum are rendered
func TestStatusPageShowsCounts(t *testing.T) {
	status := &models.SyncStatusResponse{
		LiveNotes:    7,
		DeletedNotes: 2,
		Contents:     5,
		Pages:        11,
		Checksum:     "abc123",
		ServerTime:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	html := NewStatusPage(status, nil).Render()

	for _, want := range []string{"<html", "notesync hub", "abc123", "in trash", ">11<", "None"} {
		if !strings.Contains(html, want) {
			t.Errorf("status page should contain %q", want)
		}
	}
}

// TestStatusPageListsConflicts verifies recent conflicts are listed
func TestStatusPageListsConflicts(t *testing.T) {
	status := &models.SyncStatusResponse{
		Conflicts: []models.ConflictRecord{{
			EntityType: "content",
			EntityKey:  "note-42",
			Resolution: "stale",
			StoredAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			IncomingAt: time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
		}},
	}

	html := NewStatusPage(status, nil).Render()

	if !strings.Contains(html, "note-42") {
		t.Error("conflict key should be listed")
	}
	if !strings.Contains(html, "stale: stored 2026-03-01T12:00:00Z") {
		t.Error("conflict resolution and timestamps should be listed")
	}
	if strings.Contains(html, ">None<") {
		t.Error("conflict list should not say None")
	}
}

// TestStatusPageError verifies a store failure is reported instead of counts
func TestStatusPageError(t *testing.T) {
	html := NewStatusPage(nil, errors.New("database not initialized")).Render()

	if !strings.Contains(html, "Status unavailable") {
		t.Error("status page should report the failure")
	}
	if strings.Contains(html, "class=\"stat\"") {
		t.Error("no counters should render without a status")
	}
}
