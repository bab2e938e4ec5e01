package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgrall/gears-explorer/internal/gears"
	"github.com/tgrall/gears-explorer/internal/logger"
)

var defaults = Settings{URL: "redis://localhost:6379", AggregationMode: gears.ModePushdown}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) take() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func TestStoreMissingFileYieldsDefaults(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.yaml"), defaults)

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, defaults, got)
}

func TestStoreSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	store := NewStore(path, defaults)

	want := Settings{URL: "rediss://:pw@gears.internal:6380", AggregationMode: gears.ModeLocal}
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestStorePartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: redis://other:6379\n"), 0o644))

	got, err := NewStore(path, defaults).Load()
	require.NoError(t, err)
	assert.Equal(t, "redis://other:6379", got.URL)
	assert.Equal(t, gears.ModePushdown, got.AggregationMode)
}

func TestStoreRejectsUnknownMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aggregation_mode: remote\n"), 0o644))
	store := NewStore(path, defaults)

	_, err := store.Load()
	assert.Error(t, err)
	assert.Error(t, store.Save(Settings{AggregationMode: "remote"}))
}

func TestStoreInMemory(t *testing.T) {
	store := NewStore("", defaults)
	next := Settings{URL: "redis://mem:6379", AggregationMode: gears.ModeLocal}

	require.NoError(t, store.Save(next))
	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, next, got)
}

func TestWatcherInitialLoadEmitsEndpoint(t *testing.T) {
	rec := &recorder{}
	w := NewWatcher(NewStore("", defaults), rec.handle, logger.NewNop(), 0)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Equal(t, []Event{
		AggregationModeChanged{Mode: gears.ModePushdown},
		EndpointChanged{URL: "redis://localhost:6379"},
	}, rec.take())
	assert.Equal(t, defaults, w.Current())
}

func TestWatcherEmitsOnlyWhatChanged(t *testing.T) {
	rec := &recorder{}
	w := NewWatcher(NewStore("", defaults), rec.handle, logger.NewNop(), 0)
	ctx := context.Background()
	require.NoError(t, w.Reload(ctx))
	rec.take()

	require.NoError(t, w.Update(ctx, Settings{URL: defaults.URL, AggregationMode: gears.ModeLocal}))
	assert.Equal(t, []Event{AggregationModeChanged{Mode: gears.ModeLocal}}, rec.take(),
		"a mode edit must not cycle the session")

	require.NoError(t, w.Update(ctx, Settings{URL: "redis://other:6379", AggregationMode: gears.ModeLocal}))
	assert.Equal(t, []Event{EndpointChanged{URL: "redis://other:6379"}}, rec.take())

	require.NoError(t, w.Reload(ctx))
	assert.Empty(t, rec.take())
}

func TestWatcherPollsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	store := NewStore(path, defaults)
	rec := &recorder{}
	w := NewWatcher(store, rec.handle, logger.NewNop(), 10*time.Millisecond)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()
	rec.take()

	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte("url: redis://edited:6379\naggregation_mode: pushdown\n"), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	var got []Event
	assert.Eventually(t, func() bool {
		got = append(got, rec.take()...)
		return len(got) > 0
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []Event{EndpointChanged{URL: "redis://edited:6379"}}, got)
	assert.Equal(t, "redis://edited:6379", w.Current().URL)
}

func TestWatcherTriggerReloadsWithoutPolling(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	rec := &recorder{}
	w := NewWatcher(NewStore(path, defaults), rec.handle, logger.NewNop(), 0)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()
	rec.take()

	require.NoError(t, os.WriteFile(path, []byte("aggregation_mode: local\n"), 0o644))
	w.Trigger()

	var got []Event
	assert.Eventually(t, func() bool {
		got = append(got, rec.take()...)
		return len(got) > 0
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []Event{AggregationModeChanged{Mode: gears.ModeLocal}}, got)
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w := NewWatcher(NewStore("", defaults), func(context.Context, Event) {}, logger.NewNop(), 0)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}
