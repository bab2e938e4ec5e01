package gears

import (
	"fmt"

	"github.com/tgrall/gears-explorer/internal/errs"
)

// noClusterMode is what RG.INFOCLUSTER answers on a standalone deployment.
const noClusterMode = "no cluster mode"

// Topology is the shard layout reported by RG.INFOCLUSTER.
type Topology struct {
	Clustered bool
	NumShards int
}

// Standalone is the topology of a non-clustered deployment.
var Standalone = Topology{Clustered: false, NumShards: 1}

// ParseTopology reads an RG.INFOCLUSTER reply: either the "no cluster mode"
// status or an array whose third element lists the shards.
func ParseTopology(reply interface{}) (Topology, error) {
	if s := asString(reply); s == noClusterMode {
		return Standalone, nil
	}
	arr, ok := reply.([]interface{})
	if !ok || len(arr) < 3 {
		return Topology{}, errs.New("infocluster", errs.ErrParse, fmt.Errorf("unexpected reply %v", reply))
	}
	shards, ok := arr[2].([]interface{})
	if !ok {
		return Topology{}, errs.New("infocluster", errs.ErrParse, fmt.Errorf("shard list is %T", arr[2]))
	}
	return Topology{Clustered: true, NumShards: len(shards)}, nil
}
