package redis

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/redis/go-redis/v9"
)

// failFastHook gives up on a session at the first connection-level failure
// instead of letting go-redis redial in the background.
type failFastHook struct {
	m *Manager
	s *session
}

var _ redis.Hook = (*failFastHook)(nil)

func (h *failFastHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil && !isCallerCancel(err) {
			h.m.fail(h.s, err)
		}
		return conn, err
	}
}

func (h *failFastHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if isConnectionLost(err) {
			h.m.fail(h.s, err)
		}
		return err
	}
}

func (h *failFastHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if isConnectionLost(err) {
			h.m.fail(h.s, err)
		}
		return err
	}
}

func isCallerCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// isConnectionLost reports whether a request error means the transport is
// gone. Server error replies, caller cancellation and read timeouts leave the
// session alone.
func isConnectionLost(err error) bool {
	if err == nil || isCallerCancel(err) {
		return false
	}
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return !netErr.Timeout()
	}
	return false
}
