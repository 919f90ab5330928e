package syncengine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Sync Engine
//
// The engine owns the dirty ledger, the debounce timer and the pull
// watermark for one signed-in device. Local edits call MarkDirty and return
// at once; the push runs later from the debounce timer, the flush ticker or
// FlushNow. At most one push runs at a time.
//
// Consecutive failures back the periodic loop off exponentially (1s, 2s,
// 4s ... capped at maxBackoff) and reset on the first success.
// ============================================================================

// maxBackoff caps the wait between retries while the hub is unreachable.
const maxBackoff = 5 * time.Minute

// SyncEngine drives push and pull for one device.
type SyncEngine struct {
	identity  Identity
	store     LocalStore
	transport Transport
	cfg       Config

	ledger    *Ledger[string]
	debouncer *Debouncer
	running   atomic.Bool // a push is in flight
	pullMu    sync.Mutex  // one pull at a time

	mu                  sync.Mutex // guards the fields below
	state               *State
	lastErr             error
	lastAttempt         time.Time
	consecutiveFailures int
	baseCtx             context.Context
	cancel              context.CancelFunc
	wg                  sync.WaitGroup
}

// Status is a snapshot for display.
type Status struct {
	DeviceID            string     `json:"device_id"`
	InProgress          bool       `json:"in_progress"`
	Pending             int        `json:"pending"`
	Watermark           time.Time  `json:"watermark"`
	LastSuccess         *time.Time `json:"last_success"` // nil if never synced
	LastError           string     `json:"last_error,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
}

// New builds an engine and loads the device state from cfg.StateFile.
func New(identity Identity, store LocalStore, transport Transport, cfg Config) (*SyncEngine, error) {
	if identity == nil || store == nil || transport == nil {
		return nil, serr.New("identity, store and transport are required")
	}
	cfg = withDefaults(cfg)

	state, err := LoadState(cfg.StateFile)
	if err != nil {
		return nil, err
	}

	e := &SyncEngine{
		identity:  identity,
		store:     store,
		transport: transport,
		cfg:       cfg,
		ledger:    NewLedger[string](identity),
		state:     state,
		baseCtx:   context.Background(),
	}
	e.debouncer = NewDebouncer(cfg.Debounce, e.debouncedPush)
	return e, nil
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.PullInterval <= 0 {
		cfg.PullInterval = def.PullInterval
	}
	if cfg.PageDebounce <= 0 {
		cfg.PageDebounce = def.PageDebounce
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	return cfg
}

// MarkDirty records a local edit and arms the debounce timer. Without an
// identity nothing is recorded.
func (e *SyncEngine) MarkDirty(noteID string) {
	if !e.ledger.MarkDirty(noteID) {
		return
	}
	e.Schedule()
}

// Schedule re-arms the debounce timer. It does nothing while a push is in
// flight; the dirty ids wait for the next trigger.
func (e *SyncEngine) Schedule() {
	if e.running.Load() {
		return
	}
	e.debouncer.Schedule()
}

// FlushNow cancels the pending debounce and pushes immediately. Callers
// use it when the user goes idle or the app is backgrounded.
func (e *SyncEngine) FlushNow(ctx context.Context) (*PushResult, error) {
	e.debouncer.Cancel()
	return e.Push(ctx)
}

func (e *SyncEngine) debouncedPush() {
	e.mu.Lock()
	ctx := e.baseCtx
	e.mu.Unlock()

	if _, err := e.Push(ctx); err != nil {
		logger.LogErr(err, "debounced push failed")
	}
}

// Pending is the number of ids waiting to be pushed.
func (e *SyncEngine) Pending() int { return e.ledger.Len() }

// Watermark is the lower bound of the next pull.
func (e *SyncEngine) Watermark() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Watermark
}

// advanceWatermark moves the watermark forward to t. It never moves back.
func (e *SyncEngine) advanceWatermark(t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t.After(e.state.Watermark) {
		e.state.Watermark = t.UTC()
	}
	e.state.LastSuccess = time.Now().UTC()
	if err := e.state.Save(e.cfg.StateFile); err != nil {
		logger.LogErr(err, "failed to persist sync state")
	}
}

// recordOutcome updates the failure counters that drive backoff.
func (e *SyncEngine) recordOutcome(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastAttempt = time.Now()
	if err != nil {
		e.lastErr = err
		e.consecutiveFailures++
		return
	}
	e.lastErr = nil
	e.consecutiveFailures = 0
}

// calculateBackoff returns the wait after the current run of failures.
// Caller holds e.mu.
func (e *SyncEngine) calculateBackoff() time.Duration {
	backoff := time.Second
	for i := 0; i < e.consecutiveFailures; i++ {
		backoff *= 2
		if backoff > maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}

func (e *SyncEngine) inBackoff() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.consecutiveFailures == 0 {
		return false
	}
	return time.Since(e.lastAttempt) < e.calculateBackoff()
}

// Start runs an initial pull and then the periodic flush and pull loop
// until ctx is done or Close is called.
func (e *SyncEngine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.baseCtx = ctx
	e.cancel = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.loop(ctx)

	logger.Info("Sync engine started",
		"device_id", e.state.DeviceID,
		"flush_interval", e.cfg.FlushInterval.String(),
		"pull_interval", e.cfg.PullInterval.String(),
	)
}

func (e *SyncEngine) loop(ctx context.Context) {
	defer e.wg.Done()

	if _, err := e.Pull(ctx); err != nil {
		logger.LogErr(err, "initial pull failed")
	}

	flush := time.NewTicker(e.cfg.FlushInterval)
	defer flush.Stop()
	pull := time.NewTicker(e.cfg.PullInterval)
	defer pull.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-flush.C:
			if e.inBackoff() {
				continue
			}
			if _, err := e.Push(ctx); err != nil {
				logger.LogErr(err, "periodic push failed", "consecutive_failures", e.Status().ConsecutiveFailures)
			}
		case <-pull.C:
			if e.inBackoff() {
				continue
			}
			if _, err := e.Pull(ctx); err != nil {
				logger.LogErr(err, "periodic pull failed", "consecutive_failures", e.Status().ConsecutiveFailures)
			}
		}
	}
}

// Close stops the timers and the loop. Pending ids are not flushed; call
// FlushNow first for that.
func (e *SyncEngine) Close() {
	e.debouncer.Stop()

	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

// Status reports the engine state.
func (e *SyncEngine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		DeviceID:            e.state.DeviceID,
		InProgress:          e.running.Load(),
		Pending:             e.ledger.Len(),
		Watermark:           e.state.Watermark,
		ConsecutiveFailures: e.consecutiveFailures,
	}
	if !e.state.LastSuccess.IsZero() {
		t := e.state.LastSuccess
		st.LastSuccess = &t
	}
	if e.lastErr != nil {
		st.LastError = e.lastErr.Error()
	}
	return st
}
