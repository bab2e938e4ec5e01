// Package directory is the Gears directory: it lists, registers and removes
// Gears registrations over the session owned by the connection manager.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tgrall/gears-explorer/internal/errs"
	"github.com/tgrall/gears-explorer/internal/gears"
	"github.com/tgrall/gears-explorer/internal/logger"
	"github.com/tgrall/gears-explorer/internal/metrics"
	"github.com/tgrall/gears-explorer/internal/notify"
	"github.com/tgrall/gears-explorer/internal/redis"
)

// Connection is the session lifecycle the directory relies on.
type Connection interface {
	Connect(ctx context.Context, url string) error
	Reconnect(ctx context.Context, url string) error
	Disconnect()
	IsConnected() bool
	State() redis.State
	URL() string
	Session() (redis.Client, error)
}

// Service lists and mutates registrations. Every operation opens its own
// request on the shared session; nothing is cached between calls.
type Service struct {
	conn     Connection
	notifier notify.Notifier
	logger   logger.Logger

	mu   sync.RWMutex
	mode gears.Mode

	background sync.WaitGroup
}

// New creates a directory service folding registrations where mode says.
func New(conn Connection, notifier notify.Notifier, log logger.Logger, mode gears.Mode) *Service {
	return &Service{
		conn:     conn,
		notifier: notifier,
		logger:   log,
		mode:     mode,
	}
}

func (s *Service) Connect(ctx context.Context, url string) error   { return s.conn.Connect(ctx, url) }
func (s *Service) Reconnect(ctx context.Context, url string) error { return s.conn.Reconnect(ctx, url) }
func (s *Service) Disconnect()                                     { s.conn.Disconnect() }
func (s *Service) State() redis.State                              { return s.conn.State() }
func (s *Service) URL() string                                     { return s.conn.URL() }

// Mode returns the current aggregation execution site.
func (s *Service) Mode() gears.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode switches the aggregation execution site. The session is untouched.
func (s *Service) SetMode(mode gears.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != mode {
		s.logger.Info("aggregation mode changed",
			logger.String("from", string(s.mode)),
			logger.String("to", string(mode)))
	}
	s.mode = mode
}

// ListRegistrations returns one merged record per registration. It never
// fails: without a session, or when the remote pass errors, the result is
// empty. Remote errors are reported once to the notifier.
func (s *Service) ListRegistrations(ctx context.Context) []gears.Registration {
	client, err := s.conn.Session()
	if err != nil {
		s.logger.Debug("registration listing skipped", logger.Error(err))
		return []gears.Registration{}
	}

	mode := s.Mode()
	regs, err := gears.NewCommands(client).Registrations(ctx, mode)
	if err != nil {
		metrics.AggregationPasses.WithLabelValues(string(mode), metrics.StatusError).Inc()
		s.logger.Error("failed to list registrations",
			logger.String("mode", string(mode)),
			logger.Error(err))
		if !s.sessionDropped(err) {
			s.notifier.Error(fmt.Sprintf("Error: Cannot retrieve the list of Gears : %v", err))
		}
		return []gears.Registration{}
	}

	metrics.AggregationPasses.WithLabelValues(string(mode), metrics.StatusOK).Inc()
	metrics.RegistrationsListed.Set(float64(len(regs)))
	s.logger.Debug("listed registrations",
		logger.String("mode", string(mode)),
		logger.Int("count", len(regs)))
	return regs
}

// RegisterFromSource submits a Gears script. Failures are returned and shown
// to the user. An existing registration with the same function is not
// detected or replaced.
func (s *Service) RegisterFromSource(ctx context.Context, source []byte) error {
	client, err := s.conn.Session()
	if err != nil {
		s.notifier.Error(fmt.Sprintf("Error Registering Gears %v", err))
		return err
	}

	if _, err := gears.NewCommands(client).PyExecute(ctx, string(source)); err != nil {
		metrics.RegistrationOps.WithLabelValues("register", metrics.StatusError).Inc()
		s.logger.Error("failed to register gear",
			logger.Int("source_bytes", len(source)),
			logger.Error(err))
		s.notifier.Error(fmt.Sprintf("Error Registering Gears %v", err))
		return err
	}

	metrics.RegistrationOps.WithLabelValues("register", metrics.StatusOK).Inc()
	s.logger.Info("gear registered", logger.Int("source_bytes", len(source)))
	s.notifier.Info("Your Redis Gear is registered!")
	return nil
}

// Unregister removes a registration without waiting for the outcome, which
// is only logged. The one synchronous failure is ErrNotConnected.
func (s *Service) Unregister(id string) error {
	client, err := s.conn.Session()
	if err != nil {
		s.logger.Warn("unregister skipped", logger.String("id", id), logger.Error(err))
		return err
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ack, err := gears.NewCommands(client).Unregister(context.Background(), id)
		if err != nil {
			metrics.RegistrationOps.WithLabelValues("unregister", metrics.StatusError).Inc()
			s.logger.Warn("failed to delete gear",
				logger.String("id", id),
				logger.Error(err))
			return
		}
		metrics.RegistrationOps.WithLabelValues("unregister", metrics.StatusOK).Inc()
		s.logger.Info("gear deleted",
			logger.String("id", id),
			logger.String("reply", ack))
	}()
	return nil
}

// Wait blocks until background unregisters have finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// ModuleStatus reports whether Redis Gears is loaded. ErrNotConnected means
// there is no session; ErrTransport or ErrRemoteExecution mean the query
// itself failed, which is also reported to the notifier.
func (s *Service) ModuleStatus(ctx context.Context) (gears.ModuleStatus, error) {
	client, err := s.conn.Session()
	if err != nil {
		return gears.ModuleStatus{}, err
	}

	modules, err := gears.NewCommands(client).Modules(ctx)
	if err != nil {
		s.logger.Warn("failed to query module list", logger.Error(err))
		if !s.sessionDropped(err) {
			s.notifier.Warn(fmt.Sprintf("Cannot read Redis modules: %v", err))
		}
		return gears.ModuleStatus{}, err
	}
	return gears.StatusOf(modules), nil
}

// sessionDropped reports whether err is a transport failure that already
// tore the session down. The connection manager has notified the user of
// those.
func (s *Service) sessionDropped(err error) bool {
	return errors.Is(err, errs.ErrTransport) && !s.conn.IsConnected()
}
