package pipeline

import (
	"fmt"
	"strconv"
)

// ParameterKind identifies the shape a ParameterValue holds, matching the
// original's ParameterValue enum (FloatRange/IntRange/StringParameter/
// BoolParameter/NodeInput/VulkanContext collapsed to our device context).
type ParameterKind int

const (
	ParameterFloat ParameterKind = iota
	ParameterInt
	ParameterString
	ParameterBool
	ParameterNodeInput
)

func (k ParameterKind) String() string {
	switch k {
	case ParameterFloat:
		return "float"
	case ParameterInt:
		return "int"
	case ParameterString:
		return "string"
	case ParameterBool:
		return "bool"
	case ParameterNodeInput:
		return "node-input"
	default:
		return "unknown"
	}
}

// ParameterValue is a single resolved parameter value, tagged with the
// kind it was parsed as so ParametersDescriptor validation can catch a
// config author passing a string where a node input was required.
type ParameterValue struct {
	Kind     ParameterKind
	Float    float64
	Int      int64
	String   string
	Bool     bool
	NodeID   NodeID
}

// Parameters is the resolved, name-keyed argument bag passed to a node
// constructor, built by merging a config section's raw values against the
// node's ParametersDescriptor (defaults filled in, types checked).
type Parameters map[string]ParameterValue

func (p Parameters) Float(name string) (float64, error) {
	v, ok := p[name]
	if !ok || v.Kind != ParameterFloat {
		return 0, fmt.Errorf("parameter %q: expected float", name)
	}
	return v.Float, nil
}

func (p Parameters) Int(name string) (int64, error) {
	v, ok := p[name]
	if !ok || v.Kind != ParameterInt {
		return 0, fmt.Errorf("parameter %q: expected int", name)
	}
	return v.Int, nil
}

func (p Parameters) String(name string) (string, error) {
	v, ok := p[name]
	if !ok || v.Kind != ParameterString {
		return "", fmt.Errorf("parameter %q: expected string", name)
	}
	return v.String, nil
}

func (p Parameters) Bool(name string) (bool, error) {
	v, ok := p[name]
	if !ok || v.Kind != ParameterBool {
		return false, fmt.Errorf("parameter %q: expected bool", name)
	}
	return v.Bool, nil
}

func (p Parameters) NodeInput(name string) (NodeID, error) {
	v, ok := p[name]
	if !ok || v.Kind != ParameterNodeInput {
		return "", fmt.Errorf("parameter %q: expected node input", name)
	}
	return v.NodeID, nil
}

// ParameterTypeDescriptor documents one named parameter a node constructor
// accepts: its kind, whether it is mandatory, and (if optional) the
// default value substituted when absent.
type ParameterTypeDescriptor struct {
	Kind     ParameterKind
	Optional bool
	Default  ParameterValue
}

// Mandatory builds a required parameter descriptor of the given kind.
func Mandatory(kind ParameterKind) ParameterTypeDescriptor {
	return ParameterTypeDescriptor{Kind: kind}
}

// Optional builds an optional parameter descriptor with a default value
// substituted when the config omits it.
func Optional(kind ParameterKind, def ParameterValue) ParameterTypeDescriptor {
	return ParameterTypeDescriptor{Kind: kind, Optional: true, Default: def}
}

// ParametersDescriptor documents every parameter a node constructor
// accepts, name to descriptor. The graph builder validates a config
// section's raw parameters against this before construction, so
// constructors never see a malformed Parameters bag.
type ParametersDescriptor map[string]ParameterTypeDescriptor

// Parameterizable is implemented by every node type registered in the
// node registry: it both documents its parameters (for config validation)
// and constructs an instance from a resolved
// Parameters bag.
type Parameterizable interface {
	Describe() ParametersDescriptor
	// FromParameters constructs a Node instance. inputs contains, for
	// every parameter the descriptor marked ParameterNodeInput, the
	// already-built Node it resolved to — the graph builder constructs
	// nodes in dependency order specifically so this map is always
	// complete by the time a node's turn comes up. isInputTo lists every
	// other node in the graph that declared this one as one of its own
	// inputs, letting a constructor size itself to its actual downstream
	// fan-out (the cache node's eviction refcount, in particular).
	FromParameters(params Parameters, inputs map[string]Node, isInputTo []NodeID, ctx *Context) (Node, error)
}

// Resolve merges raw string-keyed config values against a
// ParametersDescriptor: every mandatory key must be present and parseable
// as its declared kind; every missing optional key is filled from its
// default. Node inputs are not in raw: they arrive separately in
// nodeInputs and become ParameterNodeInput values holding the NodeID.
func Resolve(desc ParametersDescriptor, raw map[string]string, nodeInputs map[string]NodeID) (Parameters, error) {
	out := make(Parameters, len(desc))
	for name, d := range desc {
		if nodeID, ok := nodeInputs[name]; ok {
			out[name] = ParameterValue{Kind: ParameterNodeInput, NodeID: nodeID}
			continue
		}
		raw, present := raw[name]
		if !present {
			if !d.Optional {
				return nil, fmt.Errorf("missing mandatory parameter %q", name)
			}
			out[name] = d.Default
			continue
		}
		v, err := parseValue(d.Kind, raw)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func parseValue(kind ParameterKind, raw string) (ParameterValue, error) {
	switch kind {
	case ParameterFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return ParameterValue{}, err
		}
		return ParameterValue{Kind: ParameterFloat, Float: f}, nil
	case ParameterInt:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return ParameterValue{}, err
		}
		return ParameterValue{Kind: ParameterInt, Int: i}, nil
	case ParameterBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return ParameterValue{}, err
		}
		return ParameterValue{Kind: ParameterBool, Bool: b}, nil
	case ParameterString:
		return ParameterValue{Kind: ParameterString, String: raw}, nil
	default:
		return ParameterValue{}, fmt.Errorf("cannot parse kind %s from a raw string", kind)
	}
}
