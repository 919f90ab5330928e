package syncengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"notesync/models"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
	"golang.org/x/sync/errgroup"
)

// PushResult lists what happened to each drained id.
type PushResult struct {
	Skipped    bool      // another push was in flight
	Written    []string  // metadata accepted by the hub
	Synced     []string  // content accepted
	Ignored    []string  // content the hub already had newer
	Requeued   []string  // transient failures, back in the ledger
	Dropped    []string  // not retried
	ServerTime time.Time // watermark after the push, zero if unchanged
}

type contentOutcome int

const (
	outcomeSynced contentOutcome = iota
	outcomeIgnored
	outcomeRequeue
	outcomeDrop
)

// Push sends every dirty note: all metadata in one call, then each body
// individually. An overlapping call returns a Skipped result.
//
// A pending debounce is dropped since this run covers it. Ids marked while
// the run was in flight re-arm the debounce once it succeeds; after a
// failure the flush ticker retries under backoff.
func (e *SyncEngine) Push(ctx context.Context) (*PushResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		logger.Debug("Push already in flight, skipping")
		return &PushResult{Skipped: true}, nil
	}
	e.debouncer.Cancel()

	res, err := e.push(ctx)
	e.recordOutcome(err)

	e.running.Store(false)
	if err == nil && e.ledger.Len() > 0 {
		e.debouncer.Schedule()
	}
	return res, err
}

func (e *SyncEngine) push(ctx context.Context) (*PushResult, error) {
	res := &PushResult{}
	if e.identity.UserGUID() == "" {
		return res, ErrNoIdentity
	}

	ids := e.ledger.Drain()
	if len(ids) == 0 {
		return res, nil
	}

	inputs := make([]models.NoteMetadataInput, 0, len(ids))
	for _, id := range ids {
		meta, ok := e.store.Note(id)
		if !ok {
			logger.Debug("Dropping dirty id without local metadata", "note_id", id)
			res.Dropped = append(res.Dropped, id)
			continue
		}
		inputs = append(inputs, models.NoteMetadataInput{
			ID:        meta.ID,
			Title:     meta.Title,
			Type:      meta.Type,
			IsDeleted: meta.IsDeleted,
			UpdatedAt: meta.UpdatedAt,
			CreatedAt: meta.CreatedAt,
		})
	}
	if len(inputs) == 0 {
		return res, nil
	}

	sent := make([]string, len(inputs))
	for i, in := range inputs {
		sent[i] = in.ID
	}

	// Phase 1: metadata batch
	pushed, err := e.transport.PushNotes(ctx, inputs)
	if err != nil {
		if KindOf(err) == KindTransient {
			e.ledger.Requeue(sent...)
			res.Requeued = sent
		} else {
			logger.LogErr(err, "metadata push rejected, dropping batch", "count", len(sent))
			res.Dropped = append(res.Dropped, sent...)
		}
		return res, err
	}
	res.Written = pushed.Written

	skip := make(map[string]bool)
	for _, rej := range pushed.Rejected {
		if rej.Reason == models.RejectStale {
			logger.Debug("Hub holds newer metadata", "note_id", rej.ID)
			continue
		}
		logger.Info("Note rejected by hub", "note_id", rej.ID, "reason", rej.Reason)
		skip[rej.ID] = true
		res.Dropped = append(res.Dropped, rej.ID)
	}

	// Phase 2: content fan-out, one failure never aborts its siblings
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrency)

	for _, id := range sent {
		if skip[id] {
			continue
		}
		local, ok := e.store.Content(id)
		if !ok {
			continue
		}
		g.Go(func() error {
			outcome := e.pushContent(gctx, id, local)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeSynced:
				res.Synced = append(res.Synced, id)
			case outcomeIgnored:
				res.Ignored = append(res.Ignored, id)
			case outcomeRequeue:
				res.Requeued = append(res.Requeued, id)
			case outcomeDrop:
				res.Dropped = append(res.Dropped, id)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(res.Requeued) > 0 {
		e.ledger.Requeue(res.Requeued...)
		return res, serr.New(fmt.Sprintf("%d content pushes failed and were requeued", len(res.Requeued)))
	}

	// Phase 3: catch up on writes other devices made since the last pull,
	// then move the watermark to the later of the two hub times.
	pulled, err := e.pull(ctx)
	if err != nil {
		return res, err
	}
	e.advanceWatermark(pushed.ServerTime)

	res.ServerTime = pulled.ServerTime
	if pushed.ServerTime.After(res.ServerTime) {
		res.ServerTime = pushed.ServerTime
	}

	logger.Debug("Push complete",
		"written", len(res.Written),
		"synced", len(res.Synced),
		"ignored", len(res.Ignored),
		"dropped", len(res.Dropped),
	)
	return res, nil
}

func (e *SyncEngine) pushContent(ctx context.Context, id string, local LocalContent) contentOutcome {
	data, err := models.EncodeContentJSON(local.Content)
	if err != nil {
		logger.LogErr(err, "unencodable local content, dropping", "note_id", id)
		return outcomeDrop
	}

	resp, err := e.transport.PushContent(ctx, id, models.ContentPushRequest{
		Type:      local.Type,
		Data:      data,
		UpdatedAt: local.UpdatedAt,
	})
	if err != nil {
		switch kind := KindOf(err); kind {
		case KindTransient:
			logger.Debug("Content push failed, requeueing", "note_id", id, "error", err.Error())
			return outcomeRequeue
		default:
			logger.LogErr(err, "content push rejected, dropping", "note_id", id, "kind", kind.String())
			return outcomeDrop
		}
	}

	if resp.Status == models.ContentStatusIgnored {
		logger.Debug("Hub ignored content", "note_id", id, "reason", resp.Reason)
		return outcomeIgnored
	}
	return outcomeSynced
}
