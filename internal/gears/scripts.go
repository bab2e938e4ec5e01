package gears

import _ "embed"

// Mode selects where the registration fold runs.
type Mode string

const (
	// ModePushdown runs the fold inside Redis Gears and ships merged records back.
	ModePushdown Mode = "pushdown"
	// ModeLocal ships each shard's raw dump back and folds it with Aggregate.
	ModeLocal Mode = "local"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModePushdown, ModeLocal:
		return Mode(s), true
	default:
		return "", false
	}
}

// aggregateScript merges registrations on the cluster; each result is one
// JSON-encoded Registration.
//
//go:embed scripts/aggregate.py
var aggregateScript string

// dumpScript returns, per shard, the JSON-encoded RG.DUMPREGISTRATIONS reply.
//
//go:embed scripts/dump.py
var dumpScript string
