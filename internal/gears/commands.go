package gears

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/tgrall/gears-explorer/internal/errs"
)

// Executor sends one raw command. Any redis client satisfies it.
type Executor interface {
	Do(ctx context.Context, args ...interface{}) *redis.Cmd
}

// Commands issues the Redis Gears administrative commands.
type Commands struct {
	client Executor
}

// NewCommands wraps an executor.
func NewCommands(client Executor) *Commands {
	return &Commands{client: client}
}

// PyExecute runs a Python script through RG.PYEXECUTE. Registration scripts
// answer "OK" and yield no results; run() scripts answer [results, errors],
// and any reported error makes the call fail with ErrRemoteExecution.
func (c *Commands) PyExecute(ctx context.Context, script string) ([]interface{}, error) {
	reply, err := c.client.Do(ctx, "RG.PYEXECUTE", script).Result()
	if err != nil {
		return nil, errs.Classify("RG.PYEXECUTE", err)
	}

	arr, ok := reply.([]interface{})
	if !ok {
		// "OK" from a registration
		return nil, nil
	}
	if len(arr) == 0 {
		return nil, nil
	}
	results, _ := arr[0].([]interface{})
	if len(arr) > 1 {
		if remoteErrs, _ := arr[1].([]interface{}); len(remoteErrs) > 0 {
			msgs := make([]string, 0, len(remoteErrs))
			for _, e := range remoteErrs {
				msgs = append(msgs, asString(e))
			}
			return results, errs.New("RG.PYEXECUTE", errs.ErrRemoteExecution, fmt.Errorf("%s", strings.Join(msgs, "; ")))
		}
	}
	return results, nil
}

// Unregister removes a registration by id and returns the acknowledgement.
func (c *Commands) Unregister(ctx context.Context, id string) (string, error) {
	reply, err := c.client.Do(ctx, "RG.UNREGISTER", id).Result()
	if err != nil {
		return "", errs.Classify("RG.UNREGISTER", err)
	}
	return asString(reply), nil
}

// Modules lists the loaded modules.
func (c *Commands) Modules(ctx context.Context) ([]Module, error) {
	reply, err := c.client.Do(ctx, "MODULE", "LIST").Result()
	if err != nil {
		return nil, errs.Classify("MODULE LIST", err)
	}
	return ParseModules(reply)
}

// InfoCluster returns the shard layout.
func (c *Commands) InfoCluster(ctx context.Context) (Topology, error) {
	reply, err := c.client.Do(ctx, "RG.INFOCLUSTER").Result()
	if err != nil {
		return Topology{}, errs.Classify("RG.INFOCLUSTER", err)
	}
	return ParseTopology(reply)
}

// AggregateRegistrations runs the fold inside Redis Gears and decodes the
// merged records it returns.
func (c *Commands) AggregateRegistrations(ctx context.Context) ([]Registration, error) {
	results, err := c.PyExecute(ctx, aggregateScript)
	if err != nil {
		return nil, err
	}
	regs := make([]Registration, 0, len(results))
	for _, r := range results {
		var reg Registration
		if err := json.Unmarshal([]byte(asString(r)), &reg); err != nil {
			return nil, errs.New("aggregate", errs.ErrParse, err)
		}
		if reg.Data.LastError == nil {
			reg.Data.LastError = []string{}
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

// DumpRegistrations returns every shard's raw RG.DUMPREGISTRATIONS reply,
// one list per shard.
func (c *Commands) DumpRegistrations(ctx context.Context) ([][]interface{}, error) {
	results, err := c.PyExecute(ctx, dumpScript)
	if err != nil {
		return nil, err
	}
	shards := make([][]interface{}, 0, len(results))
	for _, r := range results {
		dec := json.NewDecoder(bytes.NewReader([]byte(asString(r))))
		dec.UseNumber()
		var records []interface{}
		if err := dec.Decode(&records); err != nil {
			return nil, errs.New("dump", errs.ErrParse, err)
		}
		shards = append(shards, records)
	}
	return shards, nil
}

// CollectRegistrations dumps every shard and folds the records locally.
func (c *Commands) CollectRegistrations(ctx context.Context) ([]Registration, error) {
	shards, err := c.DumpRegistrations(ctx)
	if err != nil {
		return nil, err
	}
	topo, err := c.InfoCluster(ctx)
	if err != nil {
		return nil, err
	}
	return Aggregate(shards, topo)
}

// Registrations lists merged registrations, folding where mode says.
func (c *Commands) Registrations(ctx context.Context, mode Mode) ([]Registration, error) {
	if mode == ModeLocal {
		return c.CollectRegistrations(ctx)
	}
	return c.AggregateRegistrations(ctx)
}
