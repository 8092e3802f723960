package pipeline

import (
	"fmt"

	"go.uber.org/zap"
)

// NodeConfig is one node's declarative configuration: which registered
// type to construct it as, its raw string parameters, and the names of
// any other nodes its parameters reference as inputs.
type NodeConfig struct {
	ID         NodeID
	Type       string
	Parameters map[string]string
	// Inputs maps a parameter name (one the node's ParametersDescriptor
	// declares as ParameterNodeInput) to the NodeID that must be built
	// before this one.
	Inputs map[string]NodeID
}

// GraphConfig is the full declarative description of a processing graph:
// every node's configuration, and which nodes are sinks to be run rather
// than pulled.
type GraphConfig struct {
	Nodes []NodeConfig
	Sinks []NodeID
}

// Graph is a fully constructed, ready-to-run processing graph: every node
// built in dependency order, addressable by ID.
type Graph struct {
	Nodes map[NodeID]Node
	Sinks map[NodeID]SinkNode
}

// Build constructs every node in cfg against registry, resolving
// NodeInput parameters to already-built Node instances. Construction order
// follows a worklist algorithm: nodes whose inputs are all already built
// are constructed next; if no node can make progress, the remaining
// configuration contains a cycle (or a reference to an undeclared node),
// which is reported as a CategoryGraph error rather than silently
// deadlocking.
func Build(cfg GraphConfig, registry *Registry, ctx *Context) (*Graph, error) {
	byID := make(map[NodeID]NodeConfig, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		if _, dup := byID[n.ID]; dup {
			return nil, Wrap(CategoryConfig, n.ID, fmt.Errorf("duplicate node id"))
		}
		byID[n.ID] = n
	}

	built := make(map[NodeID]Node, len(cfg.Nodes))

	// isInputTo is the reverse of NodeConfig.Inputs: for every node, the
	// set of other declared nodes that consume it as an input. A
	// constructor (the cache node, in particular) uses its own entry to
	// learn its downstream fan-out before any of those consumers exist.
	isInputTo := make(map[NodeID][]NodeID, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		for _, dep := range n.Inputs {
			isInputTo[dep] = append(isInputTo[dep], n.ID)
		}
	}

	queue := make([]NodeID, 0, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		queue = append(queue, n.ID)
	}

	for len(queue) > 0 {
		progressed := false
		var deferred []NodeID

		for _, id := range queue {
			conf := byID[id]
			if !inputsReady(conf, built) {
				deferred = append(deferred, id)
				continue
			}
			node, err := construct(conf, byID, built, isInputTo[id], registry, ctx)
			if err != nil {
				return nil, err
			}
			built[id] = node
			progressed = true
			if ctx.Logger != nil {
				ctx.Logger.Debug("constructed node", zap.String("node_id", string(id)), zap.String("node_type", conf.Type))
			}
		}

		if !progressed {
			err := Wrap(CategoryGraph, deferred[0], fmt.Errorf(
				"cannot make progress building the graph: remaining nodes form a cycle or reference an undeclared node",
			))
			if ctx.Logger != nil {
				ctx.Logger.Error("graph build stalled", zap.Error(err))
			}
			return nil, err
		}
		queue = deferred
	}

	sinks := make(map[NodeID]SinkNode, len(cfg.Sinks))
	for _, id := range cfg.Sinks {
		node, ok := built[id]
		if !ok {
			return nil, Wrap(CategoryGraph, id, fmt.Errorf("sink references undeclared node"))
		}
		sink, ok := node.(SinkNode)
		if !ok {
			return nil, Wrap(CategoryGraph, id, fmt.Errorf("node is not a sink"))
		}
		sinks[id] = sink
	}

	return &Graph{Nodes: built, Sinks: sinks}, nil
}

func inputsReady(conf NodeConfig, built map[NodeID]Node) bool {
	for _, dep := range conf.Inputs {
		if _, ok := built[dep]; !ok {
			return false
		}
	}
	return true
}

func construct(conf NodeConfig, byID map[NodeID]NodeConfig, built map[NodeID]Node, isInputTo []NodeID, registry *Registry, ctx *Context) (Node, error) {
	factory, err := registry.Lookup(conf.Type)
	if err != nil {
		return nil, Wrap(CategoryConfig, conf.ID, err)
	}

	for paramName, dep := range conf.Inputs {
		if _, exists := byID[dep]; !exists {
			return nil, Wrap(CategoryGraph, conf.ID, fmt.Errorf("parameter %q references undeclared node %q", paramName, dep))
		}
	}

	params, err := Resolve(factory.Describe(), conf.Parameters, conf.Inputs)
	if err != nil {
		return nil, Wrap(CategoryConfig, conf.ID, err)
	}

	inputs := make(map[string]Node, len(conf.Inputs))
	for paramName, dep := range conf.Inputs {
		inputs[paramName] = built[dep]
	}

	node, err := factory.FromParameters(params, inputs, isInputTo, ctx)
	if err != nil {
		return nil, Wrap(CategoryConfig, conf.ID, err)
	}
	return node, nil
}

// Input returns the built Node with the given ID, or an error if no node
// was built under that ID. Node constructors do not use it: construct()
// hands each constructor its input Nodes directly through FromParameters.
func (g *Graph) Input(id NodeID) (Node, error) {
	n, ok := g.Nodes[id]
	if !ok {
		return nil, fmt.Errorf("pipeline: no node built with id %q", id)
	}
	return n, nil
}
