package syncengine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"notesync/models"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
	"golang.org/x/sync/errgroup"
)

// PageKey names one page of a canvas notebook.
type PageKey struct {
	NotebookID string
	Index      int
}

func (k PageKey) String() string { return fmt.Sprintf("%s/%d", k.NotebookID, k.Index) }

// PageSyncer pushes dirty canvas pages one at a time on a fixed debounce.
// Pages have no pull counterpart; FetchPage loads them on demand.
type PageSyncer struct {
	store          PageStore
	transport      Transport
	ledger         *Ledger[PageKey]
	debouncer      *Debouncer
	running        atomic.Bool
	maxConcurrency int
}

func NewPageSyncer(identity Identity, store PageStore, transport Transport, cfg Config) *PageSyncer {
	cfg = withDefaults(cfg)
	p := &PageSyncer{
		store:          store,
		transport:      transport,
		ledger:         NewLedger[PageKey](identity),
		maxConcurrency: cfg.MaxConcurrency,
	}
	p.debouncer = NewDebouncer(cfg.PageDebounce, func() {
		if _, err := p.Push(context.Background()); err != nil {
			logger.LogErr(err, "debounced page push failed")
		}
	})
	return p
}

// MarkDirty records a page edit and arms the debounce timer.
func (p *PageSyncer) MarkDirty(key PageKey) {
	if !p.ledger.MarkDirty(key) {
		return
	}
	if !p.running.Load() {
		p.debouncer.Schedule()
	}
}

func (p *PageSyncer) Pending() int { return p.ledger.Len() }

// PagePushResult lists what happened to each drained page.
type PagePushResult struct {
	Skipped  bool
	Synced   []PageKey
	Ignored  []PageKey
	Requeued []PageKey
	Dropped  []PageKey
}

// Push sends each dirty page individually. Transient failures requeue only
// the page that failed. Pages have no periodic tick, so anything left in
// the ledger afterwards (requeued or marked mid-run) re-arms the debounce.
func (p *PageSyncer) Push(ctx context.Context) (*PagePushResult, error) {
	if !p.running.CompareAndSwap(false, true) {
		return &PagePushResult{Skipped: true}, nil
	}
	p.debouncer.Cancel()

	res, err := p.push(ctx)

	p.running.Store(false)
	if p.ledger.Len() > 0 {
		p.debouncer.Schedule()
	}
	return res, err
}

func (p *PageSyncer) push(ctx context.Context) (*PagePushResult, error) {
	res := &PagePushResult{}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrency)

	for _, key := range p.ledger.Drain() {
		page, ok := p.store.Page(key)
		if !ok {
			mu.Lock()
			res.Dropped = append(res.Dropped, key)
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			resp, err := p.transport.PushPage(gctx, key, models.PagePushRequest{
				Layers:    page.Layers,
				UpdatedAt: page.UpdatedAt,
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && KindOf(err) == KindTransient:
				res.Requeued = append(res.Requeued, key)
			case err != nil:
				logger.LogErr(err, "page push rejected, dropping", "page", key.String())
				res.Dropped = append(res.Dropped, key)
			case resp.Status == models.ContentStatusIgnored:
				res.Ignored = append(res.Ignored, key)
			default:
				res.Synced = append(res.Synced, key)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(res.Requeued) > 0 {
		p.ledger.Requeue(res.Requeued...)
		return res, serr.New(fmt.Sprintf("%d page pushes failed and were requeued", len(res.Requeued)))
	}
	return res, nil
}

// FetchPage loads a page from the hub and merges it into the store.
func (p *PageSyncer) FetchPage(ctx context.Context, notebookID string, index int) (LocalPage, error) {
	key := PageKey{NotebookID: notebookID, Index: index}
	page, err := p.transport.FetchPage(ctx, key)
	if err != nil {
		if local, ok := p.store.Page(key); ok && KindOf(err) == KindTransient {
			return local, nil
		}
		return LocalPage{}, err
	}

	if res := p.store.MergePage(key, LocalPage{Layers: page.Layers, UpdatedAt: page.UpdatedAt}); res == models.ResolutionStale {
		logger.Debug("Kept newer local page", "page", key.String())
	}
	merged, _ := p.store.Page(key)
	return merged, nil
}

// Close stops the debounce timer.
func (p *PageSyncer) Close() { p.debouncer.Stop() }
