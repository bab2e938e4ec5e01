// Package redistest provides a scripted stand-in for the redis.Client seam.
// Replies are real go-redis commands, and registered hooks run around every
// call, so failure handling can be exercised without a server.
package redistest

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tgrall/gears-explorer/internal/redis"
)

// Handler produces the reply for one command.
type Handler func(args []interface{}) (interface{}, error)

// Client is a fake redis.Client.
type Client struct {
	mu       sync.Mutex
	hooks    []goredis.Hook
	handlers map[string]Handler
	calls    [][]interface{}
	closed   bool
	pingErr  error
	opts     *goredis.Options
}

var _ redis.Client = (*Client)(nil)

// NewClient returns a fake answering PING with PONG and nothing else.
func NewClient() *Client {
	return &Client{handlers: make(map[string]Handler)}
}

// Factory returns a redis.ClientFactory that always hands out c.
func (c *Client) Factory() redis.ClientFactory {
	return func(opts *goredis.Options) redis.Client {
		c.mu.Lock()
		c.opts = opts
		c.mu.Unlock()
		return c
	}
}

// On registers a fixed reply for a command name (case-insensitive).
func (c *Client) On(name string, val interface{}, err error) {
	c.Handle(name, func([]interface{}) (interface{}, error) { return val, err })
}

// Handle registers a handler for a command name (case-insensitive).
func (c *Client) Handle(name string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[strings.ToUpper(name)] = h
}

// FailPing makes every PING fail with err.
func (c *Client) FailPing(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingErr = err
}

// Options returns the options the factory was last called with.
func (c *Client) Options() *goredis.Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// Calls returns the argument lists of every Do call so far.
func (c *Client) Calls() [][]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]interface{}, len(c.calls))
	copy(out, c.calls)
	return out
}

// Closed reports whether Close was called.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) AddHook(hook goredis.Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hook)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Client) Ping(ctx context.Context) *goredis.StatusCmd {
	cmd := goredis.NewStatusCmd(ctx, "ping")
	_ = c.process(ctx, cmd, func(context.Context, goredis.Cmder) error {
		c.mu.Lock()
		err := c.pingErr
		c.mu.Unlock()
		if err != nil {
			cmd.SetErr(err)
			return err
		}
		cmd.SetVal("PONG")
		return nil
	})
	return cmd
}

func (c *Client) Do(ctx context.Context, args ...interface{}) *goredis.Cmd {
	cmd := goredis.NewCmd(ctx, args...)
	_ = c.process(ctx, cmd, func(context.Context, goredis.Cmder) error {
		c.mu.Lock()
		c.calls = append(c.calls, args)
		closed := c.closed
		var h Handler
		if len(args) > 0 {
			h = c.handlers[strings.ToUpper(fmt.Sprint(args[0]))]
		}
		c.mu.Unlock()

		if closed {
			cmd.SetErr(goredis.ErrClosed)
			return goredis.ErrClosed
		}
		if h == nil {
			err := fmt.Errorf("redistest: no handler for %v", args)
			cmd.SetErr(err)
			return err
		}
		val, err := h(args)
		if err != nil {
			cmd.SetErr(err)
			return err
		}
		cmd.SetVal(val)
		return nil
	})
	return cmd
}

// FailDial runs the registered dial hooks around a dial that fails with err,
// the way go-redis does when it has to open a new connection.
func (c *Client) FailDial(ctx context.Context, err error) error {
	c.mu.Lock()
	hooks := append([]goredis.Hook(nil), c.hooks...)
	c.mu.Unlock()

	dial := goredis.DialHook(func(context.Context, string, string) (net.Conn, error) {
		return nil, err
	})
	for i := len(hooks) - 1; i >= 0; i-- {
		dial = hooks[i].DialHook(dial)
	}
	_, dialErr := dial(ctx, "tcp", "fake:6379")
	return dialErr
}

func (c *Client) process(ctx context.Context, cmd goredis.Cmder, base goredis.ProcessHook) error {
	c.mu.Lock()
	hooks := append([]goredis.Hook(nil), c.hooks...)
	c.mu.Unlock()

	run := base
	for i := len(hooks) - 1; i >= 0; i-- {
		run = hooks[i].ProcessHook(run)
	}
	return run(ctx, cmd)
}

// ServerError is a Redis error reply, as go-redis would surface it.
type ServerError string

func (e ServerError) Error() string { return string(e) }

// RedisError marks ServerError as a redis.Error.
func (e ServerError) RedisError() {}
