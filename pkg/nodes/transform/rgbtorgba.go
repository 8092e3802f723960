package transform

import (
	"context"
	"fmt"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/buffer"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/frame"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

// RgbToRgba expands a 3-channel Rgb frame into a 4-channel Rgba frame,
// filling the alpha channel with a fixed opaque value. Some GPU display
// and encoder paths require 4-byte-aligned pixels, which RGB alone does
// not provide.
type RgbToRgba struct {
	input pipeline.Node
	alpha byte
}

// NewRgbToRgba wraps input, which must produce 8-bit unsigned Rgb frames.
// alpha is the constant value written to every output pixel's alpha
// channel.
func NewRgbToRgba(input pipeline.Node, alpha byte) *RgbToRgba {
	return &RgbToRgba{input: input, alpha: alpha}
}

func (n *RgbToRgba) Caps() pipeline.Caps { return n.input.Caps() }

func (n *RgbToRgba) Pull(ctx context.Context, req pipeline.Request) (payload.Payload, error) {
	in, err := n.input.Pull(ctx, req)
	if err != nil {
		return payload.Payload{}, err
	}
	f, err := payload.Downcast[frame.Frame](in)
	if err != nil {
		return payload.Payload{}, err
	}
	interp := f.Interpretation
	if interp.Layout != frame.LayoutRgb || interp.Sample != frame.SampleUInt || interp.BitDepth != 8 {
		return payload.Payload{}, fmt.Errorf("nodes/transform: rgb_to_rgba requires an 8-bit rgb frame")
	}
	if f.Buffer.Cpu == nil {
		return payload.Payload{}, fmt.Errorf("nodes/transform: rgb_to_rgba requires a cpu-resident buffer")
	}

	outInterp := interp
	outInterp.Layout = frame.LayoutRgba
	outBytes, err := outInterp.RequiredBytes()
	if err != nil {
		return payload.Payload{}, err
	}

	src := f.Buffer.Cpu.AsSlice()
	dst := buffer.NewCpuBuffer(outBytes)
	dst.WithWriteLock(func(out []byte) {
		pixels := interp.Width * interp.Height
		for i := 0; i < pixels; i++ {
			out[i*4] = src[i*3]
			out[i*4+1] = src[i*3+1]
			out[i*4+2] = src[i*3+2]
			out[i*4+3] = n.alpha
		}
	})

	outFrame, err := frame.New(outInterp, buffer.FromCpu(dst))
	if err != nil {
		return payload.Payload{}, err
	}
	return payload.New(outFrame), nil
}

// RgbToRgbaFactory registers RgbToRgba under the name "rgb_to_rgba".
type RgbToRgbaFactory struct{}

func (RgbToRgbaFactory) Describe() pipeline.ParametersDescriptor {
	return pipeline.ParametersDescriptor{
		"input": pipeline.Mandatory(pipeline.ParameterNodeInput),
		"alpha": pipeline.Optional(pipeline.ParameterInt, pipeline.ParameterValue{Kind: pipeline.ParameterInt, Int: 255}),
	}
}

func (RgbToRgbaFactory) FromParameters(params pipeline.Parameters, inputs map[string]pipeline.Node, _ []pipeline.NodeID, _ *pipeline.Context) (pipeline.Node, error) {
	alpha, err := params.Int("alpha")
	if err != nil {
		return nil, err
	}
	return NewRgbToRgba(inputs["input"], byte(alpha)), nil
}
