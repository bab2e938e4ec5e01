package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tgrall/gears-explorer/internal/gears"
	"github.com/tgrall/gears-explorer/internal/logger"
)

// Event is a typed settings change.
type Event interface {
	event()
}

// EndpointChanged means the Redis URL changed and the session must be
// rebuilt against URL.
type EndpointChanged struct {
	URL string
}

// AggregationModeChanged means only the execution site of the fold changed.
type AggregationModeChanged struct {
	Mode gears.Mode
}

func (EndpointChanged) event()        {}
func (AggregationModeChanged) event() {}

// Handler receives events in the order they were detected.
type Handler func(ctx context.Context, ev Event)

// Watcher polls the settings store and emits events for what changed.
type Watcher struct {
	store         *Store
	handler       Handler
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}

	reloadMu sync.Mutex
	mu       sync.Mutex
	current  Settings
	loaded   bool
}

// NewWatcher creates a watcher. An interval <= 0 disables polling; manual
// triggers and Update still work.
func NewWatcher(store *Store, handler Handler, log logger.Logger, interval time.Duration) *Watcher {
	return &Watcher{
		store:         store,
		handler:       handler,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: make(chan struct{}, 1),
	}
}

// Start loads the settings once, emitting the initial events, then keeps
// watching until Stop or ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.Reload(ctx); err != nil {
		return fmt.Errorf("initial settings load failed: %w", err)
	}

	var tick <-chan time.Time
	stop := func() {}
	if w.interval > 0 && w.store.Path() != "" {
		ticker := time.NewTicker(w.interval)
		tick, stop = ticker.C, ticker.Stop
	}
	go w.loop(ctx, tick, stop)
	return nil
}

func (w *Watcher) loop(ctx context.Context, tick <-chan time.Time, stop func()) {
	defer stop()
	for {
		select {
		case <-tick:
			if err := w.Reload(ctx); err != nil {
				w.logger.Error("failed to reload settings", logger.Error(err))
			}
		case <-w.manualTrigger:
			w.logger.Info("manual settings reload triggered")
			if err := w.Reload(ctx); err != nil {
				w.logger.Error("failed to reload settings", logger.Error(err))
			}
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the watch loop. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// Trigger asks the loop for a reload without waiting for it.
func (w *Watcher) Trigger() {
	select {
	case w.manualTrigger <- struct{}{}:
	default:
	}
}

// Current returns the last loaded settings.
func (w *Watcher) Current() Settings {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Update saves new settings and applies them immediately.
func (w *Watcher) Update(ctx context.Context, set Settings) error {
	if err := w.store.Save(set); err != nil {
		return err
	}
	return w.Reload(ctx)
}

// Reload reads the store and emits an event for every field that differs
// from the last load. The first load always emits EndpointChanged.
func (w *Watcher) Reload(ctx context.Context) error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	next, err := w.store.Load()
	if err != nil {
		return err
	}

	w.mu.Lock()
	prev, first := w.current, !w.loaded
	w.current, w.loaded = next, true
	w.mu.Unlock()

	if first || prev.AggregationMode != next.AggregationMode {
		w.logger.Info("aggregation mode set", logger.String("mode", string(next.AggregationMode)))
		w.handler(ctx, AggregationModeChanged{Mode: next.AggregationMode})
	}
	if first || prev.URL != next.URL {
		w.logger.Info("redis endpoint set", logger.Bool("empty", next.URL == ""))
		w.handler(ctx, EndpointChanged{URL: next.URL})
	}
	if !first && prev == next {
		w.logger.Debug("settings unchanged")
	}
	return nil
}
