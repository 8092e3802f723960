// Package config loads a processing graph's declarative configuration
// from YAML, translating it into a pipeline.GraphConfig the graph builder
// can consume directly.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

// nodeDocument is one node entry as it appears in YAML: parameters are
// kept as raw strings so pipeline.Resolve can apply each node type's
// ParametersDescriptor for type coercion and default-filling, rather than
// this package guessing at types itself.
type nodeDocument struct {
	ID         string            `yaml:"id"`
	Type       string            `yaml:"type"`
	Parameters map[string]string `yaml:"parameters"`
	Inputs     map[string]string `yaml:"inputs"`
}

// document is the top-level shape of a graph configuration file.
type document struct {
	Nodes []nodeDocument `yaml:"nodes"`
	Sinks []string       `yaml:"sinks"`
}

// Load reads and parses a graph configuration file at path.
func Load(path string) (pipeline.GraphConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.GraphConfig{}, fmt.Errorf("config: reading %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes into a pipeline.GraphConfig.
func Parse(data []byte) (pipeline.GraphConfig, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return pipeline.GraphConfig{}, fmt.Errorf("config: parsing yaml: %w", err)
	}

	cfg := pipeline.GraphConfig{
		Nodes: make([]pipeline.NodeConfig, 0, len(doc.Nodes)),
		Sinks: make([]pipeline.NodeID, 0, len(doc.Sinks)),
	}
	for _, n := range doc.Nodes {
		if n.ID == "" {
			return pipeline.GraphConfig{}, fmt.Errorf("config: a node entry is missing its id")
		}
		if n.Type == "" {
			return pipeline.GraphConfig{}, fmt.Errorf("config: node %q is missing its type", n.ID)
		}
		inputs := make(map[string]pipeline.NodeID, len(n.Inputs))
		for param, dep := range n.Inputs {
			inputs[param] = pipeline.NodeID(dep)
		}
		cfg.Nodes = append(cfg.Nodes, pipeline.NodeConfig{
			ID:         pipeline.NodeID(n.ID),
			Type:       n.Type,
			Parameters: n.Parameters,
			Inputs:     inputs,
		})
	}
	for _, s := range doc.Sinks {
		cfg.Sinks = append(cfg.Sinks, pipeline.NodeID(s))
	}
	return cfg, nil
}
