package graph

import (
	"encoding/json"
	"fmt"

	"agentforge/core/pkg/dynamic"
	"agentforge/core/pkg/ids"
)

// NodeConfig is the tagged-union payload keyed on Node.Type. Each node
// type has exactly one concrete implementation below.
type NodeConfig interface {
	nodeConfig()
}

// AgentNodeConfig backs an agent-typed node.
type AgentNodeConfig struct {
	AgentID    ids.AgentID
	Parameters dynamic.Value
}

func (AgentNodeConfig) nodeConfig() {}

// ToolNodeConfig backs a tool-typed node.
type ToolNodeConfig struct {
	ToolID     string
	Parameters dynamic.Value
}

func (ToolNodeConfig) nodeConfig() {}

// InputNodeConfig backs an input-typed node: a declared workflow entry.
type InputNodeConfig struct {
	DataType PortType
}

func (InputNodeConfig) nodeConfig() {}

// OutputNodeConfig backs an output-typed node: a declared workflow exit.
type OutputNodeConfig struct {
	DataType PortType
}

func (OutputNodeConfig) nodeConfig() {}

// wireNode is the on-the-wire shape of a Node: the tag (type) lives
// alongside a single config object whose fields vary by tag. This is what
// gets preserved across persistence and transport boundaries.
type wireNode struct {
	ID       ids.NodeID      `json:"id"`
	Type     NodeType        `json:"type"`
	Label    string          `json:"label"`
	Position Position        `json:"position"`
	Config   json.RawMessage `json:"config"`
}

type wireAgentConfig struct {
	AgentID    ids.AgentID    `json:"agentId"`
	Parameters *dynamic.Value `json:"parameters,omitempty"`
}

type wireToolConfig struct {
	ToolID     string         `json:"toolId"`
	Parameters *dynamic.Value `json:"parameters,omitempty"`
}

type wirePortConfig struct {
	DataType PortType `json:"dataType"`
}

// MarshalJSON preserves the type tag next to its matching config shape.
func (n Node) MarshalJSON() ([]byte, error) {
	var cfg any
	switch c := n.Config.(type) {
	case AgentNodeConfig:
		wc := wireAgentConfig{AgentID: c.AgentID}
		if !c.Parameters.IsNull() {
			wc.Parameters = &c.Parameters
		}
		cfg = wc
	case ToolNodeConfig:
		wc := wireToolConfig{ToolID: c.ToolID}
		if !c.Parameters.IsNull() {
			wc.Parameters = &c.Parameters
		}
		cfg = wc
	case InputNodeConfig:
		cfg = wirePortConfig{DataType: c.DataType}
	case OutputNodeConfig:
		cfg = wirePortConfig{DataType: c.DataType}
	case nil:
		cfg = struct{}{}
	default:
		return nil, fmt.Errorf("node %q: unknown config type %T", n.ID, n.Config)
	}

	rawCfg, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("node %q: marshal config: %w", n.ID, err)
	}

	return json.Marshal(wireNode{
		ID:       n.ID,
		Type:     n.Type,
		Label:    n.Label,
		Position: n.Position,
		Config:   rawCfg,
	})
}

// UnmarshalJSON decodes the config into the concrete variant matching Type.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("unmarshal node envelope: %w", err)
	}

	n.ID = w.ID
	n.Type = w.Type
	n.Label = w.Label
	n.Position = w.Position

	switch w.Type {
	case NodeTypeAgent:
		var wc wireAgentConfig
		if err := json.Unmarshal(w.Config, &wc); err != nil {
			return fmt.Errorf("node %q: unmarshal agent config: %w", w.ID, err)
		}
		cfg := AgentNodeConfig{AgentID: wc.AgentID}
		if wc.Parameters != nil {
			cfg.Parameters = *wc.Parameters
		}
		n.Config = cfg
	case NodeTypeTool:
		var wc wireToolConfig
		if err := json.Unmarshal(w.Config, &wc); err != nil {
			return fmt.Errorf("node %q: unmarshal tool config: %w", w.ID, err)
		}
		cfg := ToolNodeConfig{ToolID: wc.ToolID}
		if wc.Parameters != nil {
			cfg.Parameters = *wc.Parameters
		}
		n.Config = cfg
	case NodeTypeInput:
		var wc wirePortConfig
		if err := json.Unmarshal(w.Config, &wc); err != nil {
			return fmt.Errorf("node %q: unmarshal input config: %w", w.ID, err)
		}
		n.Config = InputNodeConfig{DataType: wc.DataType}
	case NodeTypeOutput:
		var wc wirePortConfig
		if err := json.Unmarshal(w.Config, &wc); err != nil {
			return fmt.Errorf("node %q: unmarshal output config: %w", w.ID, err)
		}
		n.Config = OutputNodeConfig{DataType: wc.DataType}
	default:
		return fmt.Errorf("node %q: unknown node type %q", w.ID, w.Type)
	}

	return nil
}
