package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgrall/gears-explorer/internal/errs"
	"github.com/tgrall/gears-explorer/internal/explorer"
	"github.com/tgrall/gears-explorer/internal/gears"
	"github.com/tgrall/gears-explorer/internal/httpserver/deps"
	"github.com/tgrall/gears-explorer/internal/logger"
	"github.com/tgrall/gears-explorer/internal/notify"
	"github.com/tgrall/gears-explorer/internal/redis"
)

type fakeExplorer struct {
	state       redis.State
	registerErr error
	sources     []string
	paths       []string
	removed     []string
	refreshes   int
	reloads     int
	endpoint    string
	mode        string
}

func (f *fakeExplorer) TopLevel(context.Context) []explorer.Node {
	return []explorer.Node{{Key: "redis://localhost:6379 (v10206)", Type: explorer.Server}}
}

func (f *fakeExplorer) Children(_ context.Context, parent explorer.Node) []explorer.Node {
	if parent.Type != explorer.Server {
		return nil
	}
	reg := gears.Registration{ID: "0000-1", Reader: "KeysReader"}
	return []explorer.Node{{Key: reg.Key(), Type: explorer.Item, ID: reg.ID, Registration: &reg}}
}

func (f *fakeExplorer) RegisterFile(_ context.Context, path string) error {
	if path == "" {
		return explorer.ErrNoSource
	}
	f.paths = append(f.paths, path)
	return f.registerErr
}

func (f *fakeExplorer) RegisterSource(_ context.Context, source []byte) error {
	f.sources = append(f.sources, string(source))
	return f.registerErr
}

func (f *fakeExplorer) Unregister(id string) error {
	if f.state != redis.Connected {
		return errs.New("session", errs.ErrNotConnected, nil)
	}
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeExplorer) Refresh(context.Context) error {
	f.refreshes++
	return nil
}

func (f *fakeExplorer) ReloadSettings() { f.reloads++ }

func (f *fakeExplorer) SetEndpoint(_ context.Context, url string) error {
	if url == "" {
		return explorer.ErrEmptyEndpoint
	}
	f.endpoint = url
	return nil
}

func (f *fakeExplorer) SetAggregationMode(_ context.Context, mode string) error {
	f.mode = mode
	return nil
}

func (f *fakeExplorer) State() redis.State { return f.state }

func newTestRouter(t *testing.T, exp *fakeExplorer, cidrs ...string) (http.Handler, *notify.Center) {
	t.Helper()
	center := notify.NewCenter(10)
	log := logger.NewNop()
	d := deps.Deps{
		Logger:        log,
		StartTime:     time.Now(),
		Version:       "test",
		Explorer:      exp,
		Notifications: center,
		AllowedCIDRS:  cidrs,
	}
	return NewRouter(5*time.Second, log, d), center
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestProbes(t *testing.T) {
	exp := &fakeExplorer{state: redis.Disconnected}
	h, _ := newTestRouter(t, exp)

	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"disconnected"`)

	rec = do(t, h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	exp.state = redis.Connected
	rec = do(t, h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ready":true,"state":"connected"}`, rec.Body.String())
}

func TestTree(t *testing.T) {
	h, _ := newTestRouter(t, &fakeExplorer{state: redis.Connected})

	rec := do(t, h, http.MethodGet, "/api/tree", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var top []explorer.Node
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &top))
	require.Len(t, top, 1)
	assert.Equal(t, explorer.Server, top[0].Type)

	rec = do(t, h, http.MethodGet, "/api/tree/server/children", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []explorer.Node
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "KeysReader:1", items[0].Key)

	rec = do(t, h, http.MethodGet, "/api/tree/KeysReader:1/children?type=item", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRegister(t *testing.T) {
	exp := &fakeExplorer{state: redis.Connected}
	// httptest requests come from 192.0.2.1
	h, _ := newTestRouter(t, exp, "192.0.2.0/24")

	rec := do(t, h, http.MethodPost, "/api/registrations", `{"source":"GB().register()"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"GB().register()"}, exp.sources)

	rec = do(t, h, http.MethodPost, "/api/registrations", `{"path":"/gears/audit.py"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"/gears/audit.py"}, exp.paths)

	rec = do(t, h, http.MethodPost, "/api/registrations", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/registrations", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterFromPathNeedsAllowList(t *testing.T) {
	exp := &fakeExplorer{state: redis.Connected}
	h, _ := newTestRouter(t, exp)

	rec := do(t, h, http.MethodPost, "/api/registrations", `{"path":"/etc/passwd"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, exp.paths)

	rec = do(t, h, http.MethodPost, "/api/registrations", `{"source":"GB().register()"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/registrations", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"not connected", errs.New("session", errs.ErrNotConnected, nil), http.StatusServiceUnavailable, "not connected"},
		{"script error", errs.New("RG.PYEXECUTE", errs.ErrRemoteExecution, nil), http.StatusUnprocessableEntity, "remote execution error"},
		{"transport", errs.New("RG.PYEXECUTE", errs.ErrTransport, nil), http.StatusBadGateway, "transport error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestRouter(t, &fakeExplorer{state: redis.Connected, registerErr: tt.err})

			rec := do(t, h, http.MethodPost, "/api/registrations", `{"source":"GB()"}`)

			assert.Equal(t, tt.code, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.kind, body["kind"])
		})
	}
}

func TestUnregister(t *testing.T) {
	exp := &fakeExplorer{state: redis.Connected}
	h, _ := newTestRouter(t, exp)

	rec := do(t, h, http.MethodDelete, "/api/registrations/0000-1", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"0000-1"}, exp.removed)

	exp.state = redis.Disconnected
	rec = do(t, h, http.MethodDelete, "/api/registrations/0000-2", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSettingsEndpoints(t *testing.T) {
	exp := &fakeExplorer{state: redis.Connected}
	h, _ := newTestRouter(t, exp)

	rec := do(t, h, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, exp.refreshes)

	rec = do(t, h, http.MethodPost, "/api/settings/reload", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, exp.reloads)

	rec = do(t, h, http.MethodPut, "/api/endpoint", `{"url":"redis://other:6380"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "redis://other:6380", exp.endpoint)

	rec = do(t, h, http.MethodPut, "/api/endpoint", `{"url":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/mode", `{"mode":"local"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "local", exp.mode)

	rec = do(t, h, http.MethodPut, "/api/mode", `{"mode":"remote"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "local", exp.mode)
}

func TestNotifications(t *testing.T) {
	h, center := newTestRouter(t, &fakeExplorer{})
	center.Error("Error: Cannot connect to Redis: refused")
	center.Info("Your Redis Gear is registered!")

	rec := do(t, h, http.MethodGet, "/api/notifications?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Total uint64                `json:"total"`
		Items []notify.Notification `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint64(2), body.Total)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Your Redis Gear is registered!", body.Items[0].Message)

	rec = do(t, h, http.MethodGet, "/api/notifications?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMutatingRoutesHonorCIDRs(t *testing.T) {
	exp := &fakeExplorer{state: redis.Connected}
	// httptest requests come from 192.0.2.1
	h, _ := newTestRouter(t, exp, "10.0.0.0/8")

	rec := do(t, h, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, exp.refreshes)

	rec = do(t, h, http.MethodPost, "/api/settings/reload", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, exp.reloads)

	rec = do(t, h, http.MethodGet, "/api/tree", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, &fakeExplorer{state: redis.Connected})
	do(t, h, http.MethodGet, "/api/tree", "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gears_http_requests_total{code="200",method="GET",route="/api/tree"}`)
}
