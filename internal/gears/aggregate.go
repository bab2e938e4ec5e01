package gears

import "github.com/tgrall/gears-explorer/internal/metrics"

// ShardWarning is appended to lastError when a registration was seen on
// fewer shards than the cluster has.
const ShardWarning = "Warning: not all shards contains the registration."

// Aggregate folds per-shard registration dumps into one Registration per id.
// shards holds one list of raw records per shard, in traversal order; a shard
// holding no registrations contributes an empty list. Output order is the
// order in which ids are first seen.
func Aggregate(shards [][]interface{}, topo Topology) ([]Registration, error) {
	var order []string
	groups := make(map[string]*Registration)

	for _, shard := range shards {
		for _, raw := range shard {
			rec, err := RecordFromRaw(raw)
			if err != nil {
				return nil, err
			}
			acc, seen := groups[rec.ID]
			if !seen {
				acc = &Registration{}
				groups[rec.ID] = acc
				order = append(order, rec.ID)
			}
			merge(acc, rec, !seen)
		}
	}

	out := make([]Registration, 0, len(order))
	for _, id := range order {
		reg := groups[id]
		CheckShards(reg, topo)
		out = append(out, *reg)
	}
	return out, nil
}

// merge folds rec into acc. The first record of a group seeds the
// accumulator; later ones add their counters and errors.
func merge(acc *Registration, rec Registration, seed bool) {
	if seed {
		*acc = rec
		acc.NumShards = 1
		acc.Data.LastError = append([]string{}, rec.Data.LastError...)
		return
	}
	acc.NumShards++
	acc.Data.NumTriggered += rec.Data.NumTriggered
	acc.Data.NumSuccess += rec.Data.NumSuccess
	acc.Data.NumFailures += rec.Data.NumFailures
	acc.Data.NumAborted += rec.Data.NumAborted
	acc.Data.LastError = append(acc.Data.LastError, rec.Data.LastError...)
}

// CheckShards appends ShardWarning when reg was observed on a different
// number of shards than the cluster has. Standalone deployments are skipped.
func CheckShards(reg *Registration, topo Topology) {
	if !topo.Clustered {
		return
	}
	if reg.NumShards != topo.NumShards {
		reg.Data.LastError = append(reg.Data.LastError, ShardWarning)
		metrics.ShardMismatches.Inc()
	}
}
