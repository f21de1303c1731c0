package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"agentforge/core/pkg/dynamic"
	"agentforge/core/pkg/ids"
	"agentforge/core/services/graph"
)

// outputCacheSize bounds how many distinct (workflow version, node, input
// hash) tuples are cached before the least-recently-used entry is evicted.
const outputCacheSize = 1024

// outputCache memoizes a cacheable agent node's prior output keyed on
// workflow version, node ID, and the hash of that run's inputs, so a
// NODE_CACHE_HIT can be served without re-invoking the execution runtime.
// Only agents with AgentDefinition.Cacheable = true are ever written here.
type outputCache struct {
	lru *lru.Cache[string, dynamic.Value]
}

func newOutputCache() *outputCache {
	c, _ := lru.New[string, dynamic.Value](outputCacheSize)
	return &outputCache{lru: c}
}

func cacheKey(workflowID ids.WorkflowID, version int, nodeID ids.NodeID, inputs dynamic.Value) string {
	sum := sha256.Sum256(inputs.Raw())
	return fmt.Sprintf("%s:%d:%s:%s", workflowID, version, nodeID, hex.EncodeToString(sum[:]))
}

func (c *outputCache) get(workflowID ids.WorkflowID, version int, nodeID ids.NodeID, inputs dynamic.Value) (dynamic.Value, bool) {
	return c.lru.Get(cacheKey(workflowID, version, nodeID, inputs))
}

func (c *outputCache) put(workflowID ids.WorkflowID, version int, nodeID ids.NodeID, inputs, output dynamic.Value) {
	c.lru.Add(cacheKey(workflowID, version, nodeID, inputs), output)
}

// cacheableAgentOutput reports whether nodeID in wf is an agent node backed
// by a cacheable AgentDefinition, and if so returns that definition's ID.
func cacheableAgentOutput(ctx context.Context, wf *graph.Workflow, reg interface {
	Get(ctx context.Context, id ids.AgentID) (graph.AgentDefinition, error)
}, nodeID ids.NodeID) (graph.AgentDefinition, bool) {
	n, ok := wf.Nodes.Get(nodeID)
	if !ok || n.Type != graph.NodeTypeAgent {
		return graph.AgentDefinition{}, false
	}
	cfg, ok := n.Config.(graph.AgentNodeConfig)
	if !ok {
		return graph.AgentDefinition{}, false
	}
	def, err := reg.Get(ctx, cfg.AgentID)
	if err != nil || !def.Cacheable {
		return graph.AgentDefinition{}, false
	}
	return def, true
}
