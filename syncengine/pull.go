package syncengine

import (
	"context"
	"time"

	"notesync/models"

	"github.com/rohanthewiz/logger"
)

// PullResult counts how pulled records merged into the local store.
type PullResult struct {
	Applied    []string
	Stale      []string // local copy is newer and was kept
	Duplicates int
	ServerTime time.Time
}

// Pull fetches metadata changed since the watermark and merges it.
// Content is left for OpenNote.
func (e *SyncEngine) Pull(ctx context.Context) (*PullResult, error) {
	res, err := e.pull(ctx)
	e.recordOutcome(err)
	return res, err
}

// Resync pulls every note the hub holds, ignoring the watermark. It is for
// a fresh local store that shares a state file with an earlier run. The
// watermark still only moves forward.
func (e *SyncEngine) Resync(ctx context.Context) (*PullResult, error) {
	res, err := e.pullFrom(ctx, func() time.Time { return time.Time{} })
	e.recordOutcome(err)
	return res, err
}

func (e *SyncEngine) pull(ctx context.Context) (*PullResult, error) {
	return e.pullFrom(ctx, e.Watermark)
}

func (e *SyncEngine) pullFrom(ctx context.Context, lowerBound func() time.Time) (*PullResult, error) {
	if e.identity.UserGUID() == "" {
		return nil, ErrNoIdentity
	}

	e.pullMu.Lock()
	defer e.pullMu.Unlock()

	since := lowerBound()
	resp, err := e.transport.Pull(ctx, since)
	if err != nil {
		return nil, err
	}

	res := &PullResult{ServerTime: resp.ServerTime}
	for _, note := range resp.Notes {
		switch e.store.MergeNote(note) {
		case models.ResolutionApply:
			res.Applied = append(res.Applied, note.ID)
		case models.ResolutionStale:
			res.Stale = append(res.Stale, note.ID)
		case models.ResolutionDuplicate:
			res.Duplicates++
		}
	}
	e.advanceWatermark(resp.ServerTime)

	logger.Debug("Pull complete",
		"since", since,
		"received", len(resp.Notes),
		"applied", len(res.Applied),
		"server_time", resp.ServerTime,
	)
	return res, nil
}

// OpenNote fetches a note body from the hub and merges it. When the hub
// cannot be reached the local copy is returned instead.
func (e *SyncEngine) OpenNote(ctx context.Context, noteID string) (LocalContent, error) {
	local, hasLocal := e.store.Content(noteID)

	out, err := e.transport.FetchContent(ctx, noteID)
	if err != nil {
		if hasLocal && KindOf(err) != KindAuth {
			logger.Debug("Using local content", "note_id", noteID, "error", err.Error())
			return local, nil
		}
		return LocalContent{}, err
	}

	content, err := models.DecodeContent(out.Type, out.Data)
	if err != nil {
		logger.LogErr(err, "hub returned undecodable content", "note_id", noteID)
		if hasLocal {
			return local, nil
		}
		return LocalContent{}, err
	}

	res := e.store.MergeContent(noteID, LocalContent{Type: out.Type, Content: content, UpdatedAt: out.UpdatedAt})
	if res == models.ResolutionStale {
		logger.Debug("Kept newer local content", "note_id", noteID)
	}

	merged, _ := e.store.Content(noteID)
	return merged, nil
}
