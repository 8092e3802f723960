// Package util implements small utility nodes that don't belong to any
// one domain concern: a synthetic zero-filled source for testing graphs
// without real camera data, and a fan-out node that lets one output feed
// more than one downstream consumer.
package util

import (
	"context"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/buffer"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/frame"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

// NullSource produces frameCount zero-filled frames (or an unbounded
// stream if frameCount is nil) at the given interpretation, useful for
// exercising a graph's downstream nodes without a real reader.
type NullSource struct {
	interp     frame.Interpretation
	frameCount *uint64
}

// NewNullSource creates a NullSource. frameCount of nil means the source
// never reports end-of-stream via Caps.
func NewNullSource(interp frame.Interpretation, frameCount *uint64) *NullSource {
	return &NullSource{interp: interp, frameCount: frameCount}
}

func (n *NullSource) Caps() pipeline.Caps {
	return pipeline.Caps{FrameCount: n.frameCount}
}

func (n *NullSource) Pull(_ context.Context, _ pipeline.Request) (payload.Payload, error) {
	required, err := n.interp.RequiredBytes()
	if err != nil {
		return payload.Payload{}, err
	}
	f, err := frame.New(n.interp, buffer.FromCpu(buffer.NewCpuBuffer(required)))
	if err != nil {
		return payload.Payload{}, err
	}
	return payload.New(f), nil
}

// NullSourceFactory registers NullSource under the name "null_source".
type NullSourceFactory struct{}

func (NullSourceFactory) Describe() pipeline.ParametersDescriptor {
	return pipeline.ParametersDescriptor{
		"width":       pipeline.Mandatory(pipeline.ParameterInt),
		"height":      pipeline.Mandatory(pipeline.ParameterInt),
		"bit_depth":   pipeline.Optional(pipeline.ParameterInt, pipeline.ParameterValue{Kind: pipeline.ParameterInt, Int: 8}),
		"frame_count": pipeline.Optional(pipeline.ParameterInt, pipeline.ParameterValue{Kind: pipeline.ParameterInt, Int: -1}),
	}
}

func (NullSourceFactory) FromParameters(params pipeline.Parameters, _ map[string]pipeline.Node, _ []pipeline.NodeID, _ *pipeline.Context) (pipeline.Node, error) {
	width, err := params.Int("width")
	if err != nil {
		return nil, err
	}
	height, err := params.Int("height")
	if err != nil {
		return nil, err
	}
	bitDepth, err := params.Int("bit_depth")
	if err != nil {
		return nil, err
	}
	frameCountRaw, err := params.Int("frame_count")
	if err != nil {
		return nil, err
	}

	interp := frame.Interpretation{
		Layout: frame.LayoutBayer, Sample: frame.SampleUInt,
		BitDepth: int(bitDepth), Width: int(width), Height: int(height),
	}

	var frameCount *uint64
	if frameCountRaw >= 0 {
		v := uint64(frameCountRaw)
		frameCount = &v
	}
	return NewNullSource(interp, frameCount), nil
}
