package util

import (
	"context"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

// Split lets one node's output be referenced by more than one consumer in
// graph configuration without the config format needing special syntax
// for "more than one thing reads from here": each Split instance wraps
// the same upstream Node and forwards Pull unchanged. Go's shared pointer
// semantics already make every node safely shareable by multiple
// consumers, so Split exists here purely for configuration ergonomics (a
// config author can name a "tap point" once and reference it by name from
// several places) and for Pull concurrency clarity in a graph diagram.
type Split struct {
	input pipeline.Node
}

// NewSplit wraps input for fan-out referencing.
func NewSplit(input pipeline.Node) *Split {
	return &Split{input: input}
}

func (s *Split) Caps() pipeline.Caps { return s.input.Caps() }

func (s *Split) Pull(ctx context.Context, req pipeline.Request) (payload.Payload, error) {
	return s.input.Pull(ctx, req)
}

// SplitFactory registers Split under the name "split".
type SplitFactory struct{}

func (SplitFactory) Describe() pipeline.ParametersDescriptor {
	return pipeline.ParametersDescriptor{"input": pipeline.Mandatory(pipeline.ParameterNodeInput)}
}

func (SplitFactory) FromParameters(_ pipeline.Parameters, inputs map[string]pipeline.Node, _ []pipeline.NodeID, _ *pipeline.Context) (pipeline.Node, error) {
	return NewSplit(inputs["input"]), nil
}
