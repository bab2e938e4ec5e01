package deps

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tgrall/gears-explorer/internal/explorer"
	"github.com/tgrall/gears-explorer/internal/logger"
	"github.com/tgrall/gears-explorer/internal/notify"
	"github.com/tgrall/gears-explorer/internal/redis"
)

// Explorer is the tree and command surface the API exposes.
type Explorer interface {
	TopLevel(ctx context.Context) []explorer.Node
	Children(ctx context.Context, parent explorer.Node) []explorer.Node
	RegisterFile(ctx context.Context, path string) error
	RegisterSource(ctx context.Context, source []byte) error
	Unregister(id string) error
	Refresh(ctx context.Context) error
	ReloadSettings()
	SetEndpoint(ctx context.Context, url string) error
	SetAggregationMode(ctx context.Context, mode string) error
	State() redis.State
}

// Notifications is the read side of the notification center.
type Notifications interface {
	Recent(n int) []notify.Notification
	Count() uint64
}

type Deps struct {
	Logger        logger.Logger
	StartTime     time.Time
	Version       string
	Commit        string
	BuildDate     string
	GoVersion     string
	Explorer      Explorer
	Notifications Notifications
	Gatherer      prometheus.Gatherer // source for /metrics, defaults to the global registry
	AllowedCIDRS  []string            // IPs allowed to call mutating endpoints
	TrustProxy    bool                // true if running behind a trusted reverse proxy
}
