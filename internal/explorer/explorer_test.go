package explorer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgrall/gears-explorer/internal/errs"
	"github.com/tgrall/gears-explorer/internal/gears"
	"github.com/tgrall/gears-explorer/internal/logger"
	"github.com/tgrall/gears-explorer/internal/notify"
	"github.com/tgrall/gears-explorer/internal/redis"
	"github.com/tgrall/gears-explorer/internal/settings"
)

type fakeDirectory struct {
	regs       []gears.Registration
	status     gears.ModuleStatus
	statusErr  error
	sources    [][]byte
	removed    []string
	reconnects []string
}

func (d *fakeDirectory) ListRegistrations(context.Context) []gears.Registration { return d.regs }

func (d *fakeDirectory) RegisterFromSource(_ context.Context, src []byte) error {
	d.sources = append(d.sources, src)
	return nil
}

func (d *fakeDirectory) Unregister(id string) error {
	d.removed = append(d.removed, id)
	return nil
}

func (d *fakeDirectory) ModuleStatus(context.Context) (gears.ModuleStatus, error) {
	return d.status, d.statusErr
}

func (d *fakeDirectory) Reconnect(_ context.Context, url string) error {
	d.reconnects = append(d.reconnects, url)
	return nil
}

func (d *fakeDirectory) State() redis.State { return redis.Connected }

type harness struct {
	dir    *fakeDirectory
	center *notify.Center
	events []settings.Event
	exp    *Explorer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{dir: &fakeDirectory{}, center: notify.NewCenter(10)}
	store := settings.NewStore("", settings.Settings{
		URL:             "redis://localhost:6379",
		AggregationMode: gears.ModePushdown,
	})
	w := settings.NewWatcher(store, func(_ context.Context, ev settings.Event) {
		h.events = append(h.events, ev)
	}, logger.NewNop(), 0)
	require.NoError(t, w.Reload(context.Background()))
	h.events = nil
	h.exp = New(h.dir, w, h.center, logger.NewNop())
	return h
}

func TestTopLevel(t *testing.T) {
	h := newHarness(t)
	h.dir.status = gears.ModuleStatus{Installed: true, Version: 10206}

	nodes := h.exp.TopLevel(context.Background())

	require.Len(t, nodes, 1)
	assert.Equal(t, Node{Key: "redis://localhost:6379 (v10206)", Type: Server, Version: "1.2.6"}, nodes[0])
}

func TestTopLevelWithoutGears(t *testing.T) {
	h := newHarness(t)

	nodes := h.exp.TopLevel(context.Background())
	assert.Equal(t, "redis://localhost:6379 (No gear)", nodes[0].Key)

	h.dir.statusErr = errs.New("session", errs.ErrNotConnected, nil)
	nodes = h.exp.TopLevel(context.Background())
	assert.Equal(t, "redis://localhost:6379", nodes[0].Key)
	assert.Empty(t, nodes[0].Version)
}

func TestChildren(t *testing.T) {
	h := newHarness(t)
	h.dir.regs = []gears.Registration{
		{ID: "0000-1", Reader: "KeysReader"},
		{ID: "0000-2", Reader: "StreamReader", Data: gears.RegistrationData{
			LastError: []string{"boom", gears.ShardWarning},
		}},
	}
	ctx := context.Background()

	items := h.exp.Children(ctx, Node{Type: Server})
	require.Len(t, items, 2)
	assert.Equal(t, "KeysReader:1", items[0].Key)
	assert.Equal(t, Item, items[0].Type)
	assert.Equal(t, "0000-2", items[1].ID)
	assert.Equal(t, "StreamReader", items[1].Registration.Reader)
	assert.False(t, items[0].Warning)
	assert.True(t, items[1].Warning)

	assert.Empty(t, h.exp.Children(ctx, items[0]))
}

func TestRegisterFile(t *testing.T) {
	h := newHarness(t)
	h.exp.WithReadFile(func(path string) ([]byte, error) {
		if path == "/gears/audit.py" {
			return []byte("GB().register()"), nil
		}
		return nil, os.ErrNotExist
	})
	ctx := context.Background()

	require.NoError(t, h.exp.RegisterFile(ctx, "/gears/audit.py"))
	assert.Equal(t, [][]byte{[]byte("GB().register()")}, h.dir.sources)

	err := h.exp.RegisterFile(ctx, "/gears/missing.py")
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Len(t, h.dir.sources, 1)
	assert.Equal(t, uint64(1), h.center.Count())
}

func TestRegisterWithoutSource(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.exp.RegisterFile(ctx, ""), ErrNoSource)
	assert.ErrorIs(t, h.exp.RegisterSource(ctx, nil), ErrNoSource)

	assert.Empty(t, h.dir.sources)
	require.Equal(t, uint64(2), h.center.Count())
	assert.Equal(t, "Error: You must open a Gear Source file", h.center.Recent(1)[0].Message)
}

func TestUnregister(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.exp.Unregister("0000-1"))
	assert.Equal(t, []string{"0000-1"}, h.dir.removed)
}

func TestRefreshReconnectsCurrentEndpoint(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.exp.Refresh(context.Background()))
	assert.Equal(t, []string{"redis://localhost:6379"}, h.dir.reconnects)
}

func TestReloadSettingsPicksUpFileEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	store := settings.NewStore(path, settings.Settings{
		URL:             "redis://localhost:6379",
		AggregationMode: gears.ModePushdown,
	})
	var mu sync.Mutex
	var events []settings.Event
	w := settings.NewWatcher(store, func(_ context.Context, ev settings.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}, logger.NewNop(), 0)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()
	exp := New(&fakeDirectory{}, w, notify.NewCenter(10), logger.NewNop())

	require.NoError(t, os.WriteFile(path, []byte("url: redis://edited:6379\n"), 0o644))
	exp.ReloadSettings()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 3
	}, time.Second, 10*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, settings.EndpointChanged{URL: "redis://edited:6379"}, events[2])
}

func TestSetEndpoint(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.exp.SetEndpoint(ctx, " redis://other:6380 "))
	assert.Equal(t, []settings.Event{settings.EndpointChanged{URL: "redis://other:6380"}}, h.events)
	assert.Empty(t, h.dir.reconnects)

	h.events = nil
	require.NoError(t, h.exp.SetEndpoint(ctx, "redis://other:6380"))
	assert.Empty(t, h.events)
	assert.Equal(t, []string{"redis://other:6380"}, h.dir.reconnects)
}

func TestSetEndpointEmpty(t *testing.T) {
	h := newHarness(t)

	err := h.exp.SetEndpoint(context.Background(), "  ")

	assert.ErrorIs(t, err, ErrEmptyEndpoint)
	assert.Empty(t, h.events)
	require.Equal(t, uint64(1), h.center.Count())
	assert.Equal(t, "Enter Redis URL", h.center.Recent(1)[0].Message)
}

func TestSetAggregationMode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.exp.SetAggregationMode(ctx, "local"))
	assert.Equal(t, []settings.Event{settings.AggregationModeChanged{Mode: gears.ModeLocal}}, h.events)

	assert.Error(t, h.exp.SetAggregationMode(ctx, "remote"))
}
