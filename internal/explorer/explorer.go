// Package explorer shapes the Gears directory into a two-level tree (the
// server, then its registrations) and carries out the user's commands on it.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tgrall/gears-explorer/internal/gears"
	"github.com/tgrall/gears-explorer/internal/logger"
	"github.com/tgrall/gears-explorer/internal/notify"
	"github.com/tgrall/gears-explorer/internal/redis"
	"github.com/tgrall/gears-explorer/internal/settings"
)

var (
	ErrNoSource      = errors.New("no gear source file")
	ErrEmptyEndpoint = errors.New("empty redis url")
)

type NodeType string

const (
	Server NodeType = "server"
	Item   NodeType = "item"
)

// Node is one tree entry. Version is only set on the server node, Warning
// only on items that were not found on every shard.
type Node struct {
	Key          string              `json:"key"`
	Type         NodeType            `json:"type"`
	ID           string              `json:"id,omitempty"`
	Version      string              `json:"version,omitempty"`
	Warning      bool                `json:"warning,omitempty"`
	Registration *gears.Registration `json:"registration,omitempty"`
}

// Directory is what the explorer needs from the Gears directory.
type Directory interface {
	ListRegistrations(ctx context.Context) []gears.Registration
	RegisterFromSource(ctx context.Context, source []byte) error
	Unregister(id string) error
	ModuleStatus(ctx context.Context) (gears.ModuleStatus, error)
	Reconnect(ctx context.Context, url string) error
	State() redis.State
}

// SettingsSource reads and updates the persisted settings.
type SettingsSource interface {
	Current() settings.Settings
	Update(ctx context.Context, set settings.Settings) error
	Trigger()
}

// ReadFileFunc loads a gear source file.
type ReadFileFunc func(path string) ([]byte, error)

type Explorer struct {
	dir      Directory
	settings SettingsSource
	notifier notify.Notifier
	logger   logger.Logger
	readFile ReadFileFunc
}

// New creates an explorer reading gear sources from the local filesystem.
func New(dir Directory, set SettingsSource, notifier notify.Notifier, log logger.Logger) *Explorer {
	return &Explorer{
		dir:      dir,
		settings: set,
		notifier: notifier,
		logger:   log,
		readFile: os.ReadFile,
	}
}

// WithReadFile replaces the file reader.
func (e *Explorer) WithReadFile(fn ReadFileFunc) *Explorer {
	e.readFile = fn
	return e
}

// TopLevel returns the single server node, keyed by the endpoint and the
// Gears module status. The status is left out when it cannot be read.
func (e *Explorer) TopLevel(ctx context.Context) []Node {
	node := Node{Key: e.settings.Current().URL, Type: Server}
	if status, err := e.dir.ModuleStatus(ctx); err == nil {
		node.Key += " " + status.String()
		node.Version = status.SemVer()
	}
	return []Node{node}
}

// Children lists the registrations under the server node. Items are leaves.
func (e *Explorer) Children(ctx context.Context, parent Node) []Node {
	if parent.Type != Server {
		return nil
	}
	regs := e.dir.ListRegistrations(ctx)
	nodes := make([]Node, 0, len(regs))
	for i := range regs {
		reg := regs[i]
		nodes = append(nodes, Node{
			Key:          reg.Key(),
			Type:         Item,
			ID:           reg.ID,
			Warning:      reg.HasShardWarning(),
			Registration: &reg,
		})
	}
	return nodes
}

// RegisterFile submits the gear source stored at path.
func (e *Explorer) RegisterFile(ctx context.Context, path string) error {
	if path == "" {
		e.notifier.Error("Error: You must open a Gear Source file")
		return ErrNoSource
	}
	source, err := e.readFile(path)
	if err != nil {
		e.logger.Error("failed to read gear source", logger.String("path", path), logger.Error(err))
		e.notifier.Error(fmt.Sprintf("Error Registering Gears %v", err))
		return err
	}
	return e.dir.RegisterFromSource(ctx, source)
}

// RegisterSource submits gear source sent inline.
func (e *Explorer) RegisterSource(ctx context.Context, source []byte) error {
	if len(source) == 0 {
		e.notifier.Error("Error: You must open a Gear Source file")
		return ErrNoSource
	}
	return e.dir.RegisterFromSource(ctx, source)
}

func (e *Explorer) Unregister(id string) error {
	return e.dir.Unregister(id)
}

// Refresh rebuilds the session against the current endpoint.
func (e *Explorer) Refresh(ctx context.Context) error {
	return e.dir.Reconnect(ctx, e.settings.Current().URL)
}

// ReloadSettings asks for the settings file to be read again. Changes are
// applied asynchronously through the usual settings events.
func (e *Explorer) ReloadSettings() {
	e.logger.Info("settings reload requested")
	e.settings.Trigger()
}

// SetEndpoint stores a new Redis URL. The session follows through the
// settings change event; an unchanged URL is reconnected directly.
func (e *Explorer) SetEndpoint(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		e.notifier.Info("Enter Redis URL")
		return ErrEmptyEndpoint
	}

	current := e.settings.Current()
	if current.URL == url {
		return e.Refresh(ctx)
	}
	current.URL = url
	return e.settings.Update(ctx, current)
}

// SetAggregationMode stores where the registration fold runs.
func (e *Explorer) SetAggregationMode(ctx context.Context, mode string) error {
	m, ok := gears.ParseMode(mode)
	if !ok {
		return fmt.Errorf("unknown aggregation mode %q", mode)
	}
	current := e.settings.Current()
	current.AggregationMode = m
	return e.settings.Update(ctx, current)
}

// State reports the session state for the presentation layer.
func (e *Explorer) State() redis.State {
	return e.dir.State()
}
