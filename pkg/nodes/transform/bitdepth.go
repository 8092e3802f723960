// Package transform implements the CPU reference nodes that reshape a
// frame's bytes without changing what camera it came from: bit-depth
// conversion, debayering, dual-frame raw reassembly, row-noise removal,
// floating-point/integer conversion, channel expansion, and SZ3-style
// compression.
package transform

import (
	"context"
	"fmt"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/buffer"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/frame"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

// BitDepthConverter reduces an unsigned-integer Bayer/Rgb/Rgba frame's bit
// depth to 8 bits per sample. A pass-through is returned unchanged when
// the input is already 8-bit; 12-bit input takes a fast byte-shuffle path,
// and any other bit depth falls back to the general bit-stream unpacker.
type BitDepthConverter struct {
	input pipeline.Node
}

// NewBitDepthConverter wraps input, truncating every sample it produces to
// 8 bits.
func NewBitDepthConverter(input pipeline.Node) *BitDepthConverter {
	return &BitDepthConverter{input: input}
}

func (n *BitDepthConverter) Caps() pipeline.Caps { return n.input.Caps() }

func (n *BitDepthConverter) Pull(ctx context.Context, req pipeline.Request) (payload.Payload, error) {
	in, err := n.input.Pull(ctx, req)
	if err != nil {
		return payload.Payload{}, err
	}
	f, err := payload.Downcast[frame.Frame](in)
	if err != nil {
		return payload.Payload{}, err
	}
	if f.Interpretation.Sample != frame.SampleUInt {
		return payload.Payload{}, fmt.Errorf("nodes/transform: bitdepth conversion requires an integer sample frame, got %s", f.Interpretation.Sample)
	}
	if f.Interpretation.BitDepth == 8 {
		return in, nil
	}

	src := f.Buffer.Cpu
	if src == nil {
		return payload.Payload{}, fmt.Errorf("nodes/transform: bitdepth conversion requires a cpu-resident buffer")
	}

	outInterp := f.Interpretation
	outInterp.BitDepth = 8
	outBytes, err := outInterp.RequiredBytes()
	if err != nil {
		return payload.Payload{}, err
	}
	dst := buffer.NewCpuBuffer(outBytes)

	srcBytes := src.AsSlice()
	dst.WithWriteLock(func(out []byte) {
		if f.Interpretation.BitDepth == 12 {
			convert12To8(srcBytes, out)
		} else {
			unpackToByte(srcBytes, out, f.Interpretation.BitDepth)
		}
	})

	outFrame, err := frame.New(outInterp, buffer.FromCpu(dst))
	if err != nil {
		return payload.Payload{}, err
	}
	return payload.New(outFrame), nil
}

// BitDepthConverterFactory registers BitDepthConverter with the node
// registry under the name "bitdepth_convert".
type BitDepthConverterFactory struct{}

func (BitDepthConverterFactory) Describe() pipeline.ParametersDescriptor {
	return pipeline.ParametersDescriptor{
		"input": pipeline.Mandatory(pipeline.ParameterNodeInput),
	}
}

func (BitDepthConverterFactory) FromParameters(_ pipeline.Parameters, inputs map[string]pipeline.Node, _ []pipeline.NodeID, _ *pipeline.Context) (pipeline.Node, error) {
	return NewBitDepthConverter(inputs["input"]), nil
}

// convert12To8 takes the top 8 bits of every 12-bit sample packed two
// samples to three bytes (big-endian nibble packing), discarding the low
// 4 bits — a straight truncation, not a rounding conversion, matching the
// original's fast path for the common 12-bit raw case.
func convert12To8(src, dst []byte) {
	pairs := len(src) / 3
	for i := 0; i < pairs; i++ {
		s := src[i*3 : i*3+3]
		dst[i*2] = s[0]
		dst[i*2+1] = (s[1] << 4) | (s[2] >> 4)
	}
}

// unpackToByte unpacks a stream of bitDepth-wide big-endian-packed
// unsigned samples into one byte per sample, keeping only the top 8 bits
// of each sample. It walks the input as a bit stream using an accumulator
// (restValue/restBits), which generalizes convert12To8 to any bit depth.
func unpackToByte(src, dst []byte, bitDepth int) {
	var restValue uint32
	var restBits int
	out := 0

	for _, b := range src {
		restValue = (restValue << 8) | uint32(b)
		restBits += 8

		for restBits >= bitDepth && out < len(dst) {
			shift := restBits - bitDepth
			sample := (restValue >> shift) & ((1 << bitDepth) - 1)
			restBits -= bitDepth
			restValue &= (1 << restBits) - 1

			if bitDepth >= 8 {
				dst[out] = byte(sample >> (bitDepth - 8))
			} else {
				dst[out] = byte(sample << (8 - bitDepth))
			}
			out++
		}
	}
}
