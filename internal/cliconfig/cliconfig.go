// Package cliconfig parses the bang-separated pipeline grammar used for
// specifying a processing graph directly on the command line, without a
// YAML file: a sequence of node commands separated by a bare "!" token,
// each one's single input wired to the previous node's output.
//
//	raw_blob_reader --path in.raw --width 4096 --height 3072 ! debayer ! raw_blob_writer --path out.raw
//
// No off-the-shelf flag-parsing library models this bespoke
// bang-separated-chain grammar (it needs to split a single argv into
// independent per-node argument groups before any flag parsing happens),
// so it is hand-written against the standard library.
package cliconfig

import (
	"fmt"
	"strings"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

// chainSeparator splits one pipeline argument list into per-node segments.
const chainSeparator = "!"

// Parse turns a flat argument list (as received after the program name,
// with no further shell interpretation) into a GraphConfig chaining each
// node's output into the next one's "input" parameter. The final node
// becomes the graph's sole sink.
func Parse(args []string) (pipeline.GraphConfig, error) {
	segments := splitChain(args)
	if len(segments) == 0 {
		return pipeline.GraphConfig{}, fmt.Errorf("cliconfig: no nodes given")
	}

	cfg := pipeline.GraphConfig{Nodes: make([]pipeline.NodeConfig, 0, len(segments))}

	var previousID pipeline.NodeID
	for i, segment := range segments {
		if len(segment) == 0 {
			return pipeline.GraphConfig{}, fmt.Errorf("cliconfig: empty node segment at position %d", i)
		}
		nodeType := segment[0]
		params, err := parseFlags(segment[1:])
		if err != nil {
			return pipeline.GraphConfig{}, fmt.Errorf("cliconfig: node %d (%s): %w", i, nodeType, err)
		}

		id := pipeline.NodeID(fmt.Sprintf("node%d", i))
		node := pipeline.NodeConfig{ID: id, Type: nodeType, Parameters: params}
		if i > 0 {
			node.Inputs = map[string]pipeline.NodeID{"input": previousID}
		}
		cfg.Nodes = append(cfg.Nodes, node)
		previousID = id
	}

	cfg.Sinks = []pipeline.NodeID{previousID}
	return cfg, nil
}

// splitChain breaks args into segments delimited by a bare "!" token,
// dropping empty segments produced by leading/trailing/consecutive
// separators.
func splitChain(args []string) [][]string {
	var segments [][]string
	var current []string
	for _, a := range args {
		if a == chainSeparator {
			if len(current) > 0 {
				segments = append(segments, current)
				current = nil
			}
			continue
		}
		current = append(current, a)
	}
	if len(current) > 0 {
		segments = append(segments, current)
	}
	return segments
}

// parseFlags reads a node's own argument segment as --key value pairs.
// Boolean flags (no following value, or a following flag) are not
// supported: every node parameter that matters here (width, height, path,
// bit depth, ...) takes an explicit value.
func parseFlags(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args)/2)
	i := 0
	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			return nil, fmt.Errorf("expected a --flag, got %q", arg)
		}
		key := strings.TrimPrefix(arg, "--")
		if i+1 >= len(args) {
			return nil, fmt.Errorf("flag --%s is missing its value", key)
		}
		params[key] = args[i+1]
		i += 2
	}
	return params, nil
}
