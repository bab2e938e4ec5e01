// Package gears implements the Redis Gears administrative surface: the
// registration aggregation fold, cluster topology and module status parsing,
// and the commands that fetch them.
package gears

import "strings"

// Registration is one logical registration, merged across every shard that
// holds a copy of it.
type Registration struct {
	ID        string           `json:"id"`
	Reader    string           `json:"reader"`
	Desc      string           `json:"desc,omitempty"`
	Data      RegistrationData `json:"RegistrationData"`
	NumShards int              `json:"NumShards"`
}

// RegistrationData holds the execution counters of a registration. Counters
// are cluster-wide sums once merged.
type RegistrationData struct {
	Mode         string                 `json:"mode,omitempty"`
	NumTriggered int64                  `json:"numTriggered"`
	NumSuccess   int64                  `json:"numSuccess"`
	NumFailures  int64                  `json:"numFailures"`
	NumAborted   int64                  `json:"numAborted"`
	LastError    []string               `json:"lastError"`
	Args         map[string]interface{} `json:"args,omitempty"`
}

// Key is the display key of a registration: "<reader>:<sequence>", where the
// sequence is the part of the id after the last '-'.
func (r Registration) Key() string {
	seq := r.ID
	if i := strings.LastIndexByte(r.ID, '-'); i >= 0 {
		seq = r.ID[i+1:]
	}
	return r.Reader + ":" + seq
}

// HasShardWarning reports whether the merge flagged partial propagation.
func (r Registration) HasShardWarning() bool {
	for _, e := range r.Data.LastError {
		if e == ShardWarning {
			return true
		}
	}
	return false
}
