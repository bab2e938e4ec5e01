package redis

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tgrall/gears-explorer/internal/errs"
	"github.com/tgrall/gears-explorer/internal/logger"
	"github.com/tgrall/gears-explorer/internal/metrics"
	"github.com/tgrall/gears-explorer/internal/notify"
)

// Client is the subset of go-redis the gears layer needs. *redis.Client
// satisfies it; tests substitute a scripted fake.
type Client interface {
	Do(ctx context.Context, args ...interface{}) *redis.Cmd
	Ping(ctx context.Context) *redis.StatusCmd
	AddHook(hook redis.Hook)
	Close() error
}

// ClientFactory builds a Client from parsed options.
type ClientFactory func(opts *redis.Options) Client

// ConnectOptions defines how sessions are opened.
type ConnectOptions struct {
	DialTimeout  time.Duration // Redis dial timeout
	ReadTimeout  time.Duration // Redis read timeout
	WriteTimeout time.Duration // Redis write timeout
	PoolSize     int           // Redis connection pool size
	PingTimeout  time.Duration // timeout for the readiness ping after opening a session
	NewClient    ClientFactory // nil => redis.NewClient
}

// State is the lifecycle state of the managed session.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// maxRetriesPerRequest is fixed: a hung administrative connection is worse
// than a visible failure.
const maxRetriesPerRequest = 1

type session struct {
	url    string
	client Client
}

// connectionLogger handles all Redis connection logging.
type connectionLogger struct {
	logger logger.Logger
}

func (cl *connectionLogger) logConnectionStart(addr string, timeout time.Duration) {
	cl.logger.Info("connecting to redis",
		logger.String("url", addr),
		logger.Duration("ping_timeout", timeout))
}

func (cl *connectionLogger) logSuccess(addr string, elapsed time.Duration) {
	cl.logger.Info("connected to redis",
		logger.String("url", addr),
		logger.Duration("elapsed", elapsed))
}

func (cl *connectionLogger) logFailure(addr string, state State, err error) {
	cl.logger.Error("redis connection failed, giving up",
		logger.String("url", addr),
		logger.String("state", state.String()),
		logger.Error(err))
}

func (cl *connectionLogger) logNoEndpoint() {
	cl.logger.Info("no redis endpoint configured, set one to connect")
}

func (cl *connectionLogger) logClosed(addr string, err error) {
	if err != nil {
		cl.logger.Warn("failed to close redis session",
			logger.String("url", addr),
			logger.Error(err))
		return
	}
	cl.logger.Info("redis session closed", logger.String("url", addr))
}

// Manager owns the single logical Redis session. It is the only component
// that opens or tears down sessions.
type Manager struct {
	opts     ConnectOptions
	log      *connectionLogger
	notifier notify.Notifier

	mu      sync.RWMutex
	session *session
	state   State
}

// NewManager creates a manager in the Disconnected state.
func NewManager(opts ConnectOptions, log logger.Logger, notifier notify.Notifier) *Manager {
	if opts.NewClient == nil {
		opts.NewClient = func(o *redis.Options) Client { return redis.NewClient(o) }
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 5 * time.Second
	}
	m := &Manager{
		opts:     opts,
		log:      &connectionLogger{logger: log},
		notifier: notifier,
	}
	metrics.ConnectionState.Set(float64(Disconnected))
	return m
}

// Connect opens a session to url. It is idempotent for the current url, and
// an empty url tears down any current session and returns without error. Failures are
// reported once to the notifier and the manager ends up Disconnected.
func (m *Manager) Connect(ctx context.Context, rawURL string) error {
	if rawURL == "" {
		m.Disconnect()
		m.log.logNoEndpoint()
		return nil
	}

	m.mu.Lock()
	if m.session != nil && m.session.url == rawURL && m.state != Disconnected {
		m.mu.Unlock()
		return nil
	}
	previous := m.detachLocked()
	m.mu.Unlock()
	m.closeSession(previous)

	opts, err := m.options(rawURL)
	if err != nil {
		m.reportFailure(rawURL, Disconnected, err)
		return errs.New("connect", errs.ErrConnectFailed, err)
	}

	s := &session{url: rawURL, client: m.opts.NewClient(opts)}
	s.client.AddHook(&failFastHook{m: m, s: s})

	m.mu.Lock()
	m.session = s
	m.setStateLocked(Connecting)
	m.mu.Unlock()

	m.log.logConnectionStart(redact(rawURL), m.opts.PingTimeout)
	start := time.Now()

	pingCtx, cancel := context.WithTimeout(ctx, m.opts.PingTimeout)
	err = s.client.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		m.fail(s, err)
		return errs.New("connect", errs.ErrConnectFailed, err)
	}

	m.mu.Lock()
	if m.session != s {
		// torn down while pinging
		m.mu.Unlock()
		return errs.New("connect", errs.ErrConnectFailed, fmt.Errorf("session to %s closed during connect", redact(rawURL)))
	}
	m.setStateLocked(Connected)
	m.mu.Unlock()

	m.log.logSuccess(redact(rawURL), time.Since(start))
	return nil
}

// Reconnect tears down the current session, if any, and connects to url.
func (m *Manager) Reconnect(ctx context.Context, rawURL string) error {
	m.Disconnect()
	return m.Connect(ctx, rawURL)
}

// Disconnect tears down the session. Safe to call when already disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	s := m.detachLocked()
	m.mu.Unlock()
	m.closeSession(s)
}

// IsConnected reports whether a session exists and is ready.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session != nil && m.state == Connected
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// URL returns the endpoint of the installed session, or "".
func (m *Manager) URL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return ""
	}
	return m.session.url
}

// Session returns the ready client, or ErrNotConnected.
func (m *Manager) Session() (Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil || m.state != Connected {
		return nil, errs.New("session", errs.ErrNotConnected, nil)
	}
	return m.session.client, nil
}

func (m *Manager) options(rawURL string) (*redis.Options, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.MaxRetries = maxRetriesPerRequest
	opts.MinRetryBackoff = -1
	opts.MaxRetryBackoff = -1
	opts.Protocol = 2
	if m.opts.DialTimeout > 0 {
		opts.DialTimeout = m.opts.DialTimeout
	}
	if m.opts.ReadTimeout > 0 {
		opts.ReadTimeout = m.opts.ReadTimeout
	}
	if m.opts.WriteTimeout > 0 {
		opts.WriteTimeout = m.opts.WriteTimeout
	}
	if m.opts.PoolSize > 0 {
		opts.PoolSize = m.opts.PoolSize
	}
	return opts, nil
}

// fail tears down s if it is still the installed session and reports the
// failure. Later failures of the same session are ignored, so retries inside
// go-redis never produce a second notification.
func (m *Manager) fail(s *session, err error) bool {
	m.mu.Lock()
	if m.session != s {
		m.mu.Unlock()
		return false
	}
	state := m.state
	m.detachLocked()
	m.mu.Unlock()

	m.reportFailure(s.url, state, err)
	// Close outside the hook call chain; the failing dial may still hold pool locks.
	go m.closeSession(s)
	return true
}

func (m *Manager) reportFailure(rawURL string, state State, err error) {
	metrics.ConnectionFailures.Inc()
	m.log.logFailure(redact(rawURL), state, err)
	m.notifier.Error(fmt.Sprintf("Error: Cannot connect to Redis: %v", err))
}

func (m *Manager) detachLocked() *session {
	s := m.session
	m.session = nil
	m.setStateLocked(Disconnected)
	return s
}

func (m *Manager) setStateLocked(state State) {
	m.state = state
	metrics.ConnectionState.Set(float64(state))
}

func (m *Manager) closeSession(s *session) {
	if s == nil {
		return
	}
	m.log.logClosed(redact(s.url), s.client.Close())
}

// redact hides the password of a redis URL for logging.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
