package transform

import (
	"context"
	"fmt"
	"math"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/buffer"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/frame"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

// FpToUint converts a floating-point frame (values assumed normalized to
// [0, 1]) into an 8-bit unsigned integer frame by scaling and clamping
// each sample. It is the inverse of a linear-to-float conversion some raw
// pipelines apply for HDR tone mapping before writing a viewable output.
type FpToUint struct {
	input pipeline.Node
}

// NewFpToUint wraps input, which must produce FP32 frames; Pull rejects
// FP16 input.
func NewFpToUint(input pipeline.Node) *FpToUint {
	return &FpToUint{input: input}
}

func (n *FpToUint) Caps() pipeline.Caps { return n.input.Caps() }

func (n *FpToUint) Pull(ctx context.Context, req pipeline.Request) (payload.Payload, error) {
	in, err := n.input.Pull(ctx, req)
	if err != nil {
		return payload.Payload{}, err
	}
	f, err := payload.Downcast[frame.Frame](in)
	if err != nil {
		return payload.Payload{}, err
	}
	interp := f.Interpretation
	if interp.Sample != frame.SampleFP32 {
		return payload.Payload{}, fmt.Errorf("nodes/transform: fp_to_uint requires an fp32 frame, got %s", interp.Sample)
	}
	if f.Buffer.Cpu == nil {
		return payload.Payload{}, fmt.Errorf("nodes/transform: fp_to_uint requires a cpu-resident buffer")
	}

	outInterp := interp
	outInterp.Sample = frame.SampleUInt
	outInterp.BitDepth = 8
	outBytes, err := outInterp.RequiredBytes()
	if err != nil {
		return payload.Payload{}, err
	}

	src := f.Buffer.Cpu.AsSlice()
	dst := buffer.NewCpuBuffer(outBytes)
	dst.WithWriteLock(func(out []byte) {
		for i := 0; i < outBytes; i++ {
			bits := uint32(src[i*4]) | uint32(src[i*4+1])<<8 | uint32(src[i*4+2])<<16 | uint32(src[i*4+3])<<24
			v := math.Float32frombits(bits)
			out[i] = clampToByte(v)
		}
	})

	outFrame, err := frame.New(outInterp, buffer.FromCpu(dst))
	if err != nil {
		return payload.Payload{}, err
	}
	return payload.New(outFrame), nil
}

func clampToByte(v float32) byte {
	scaled := v * 255.0
	switch {
	case scaled <= 0:
		return 0
	case scaled >= 255:
		return 255
	default:
		return byte(scaled + 0.5)
	}
}

// FpToUintFactory registers FpToUint under the name "fp_to_uint".
type FpToUintFactory struct{}

func (FpToUintFactory) Describe() pipeline.ParametersDescriptor {
	return pipeline.ParametersDescriptor{"input": pipeline.Mandatory(pipeline.ParameterNodeInput)}
}

func (FpToUintFactory) FromParameters(_ pipeline.Parameters, inputs map[string]pipeline.Node, _ []pipeline.NodeID, _ *pipeline.Context) (pipeline.Node, error) {
	return NewFpToUint(inputs["input"]), nil
}
