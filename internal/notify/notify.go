// Package notify is the user-visible message channel: connection failures,
// listing errors and registration outcomes end up here so the presentation
// layer can show them.
package notify

import (
	"sync"
	"time"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notifier receives user-facing messages.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// Notification is one message shown to the user.
type Notification struct {
	Seq     uint64    `json:"seq"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Center keeps the most recent notifications in a bounded ring.
type Center struct {
	mu   sync.RWMutex
	buf  []Notification
	next int
	full bool
	seq  uint64
	now  func() time.Time
}

// NewCenter creates a center retaining at most size notifications.
func NewCenter(size int) *Center {
	if size < 1 {
		size = 1
	}
	return &Center{
		buf: make([]Notification, size),
		now: time.Now,
	}
}

func (c *Center) Info(msg string)  { c.push(LevelInfo, msg) }
func (c *Center) Warn(msg string)  { c.push(LevelWarn, msg) }
func (c *Center) Error(msg string) { c.push(LevelError, msg) }

func (c *Center) push(level Level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.buf[c.next] = Notification{
		Seq:     c.seq,
		Level:   level,
		Message: msg,
		Time:    c.now(),
	}
	c.next = (c.next + 1) % len(c.buf)
	if c.next == 0 {
		c.full = true
	}
}

// Count returns how many notifications were ever emitted.
func (c *Center) Count() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seq
}

// Recent returns up to n notifications, newest first. n <= 0 returns all retained.
func (c *Center) Recent(n int) []Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()

	size := c.next
	if c.full {
		size = len(c.buf)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]Notification, 0, n)
	idx := c.next
	for i := 0; i < n; i++ {
		idx = (idx - 1 + len(c.buf)) % len(c.buf)
		out = append(out, c.buf[idx])
	}
	return out
}
