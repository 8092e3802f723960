package transform

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/buffer"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/frame"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

// Sz3Compress wraps a frame's buffer in entropy coding, tagging the
// resulting Interpretation as SZ3-compressed. The scientific-data SZ3
// compressor this format is named for is tuned for bounded-error float
// compression; this project substitutes github.com/klauspost/compress/zstd
// as the concrete codec behind the same wrap/unwrap contract (see
// DESIGN.md) since the SZ3 algorithm itself is out of scope here.
type Sz3Compress struct {
	input pipeline.Node
	level zstd.EncoderLevel
}

// NewSz3Compress wraps input at the given zstd compression level.
func NewSz3Compress(input pipeline.Node, level zstd.EncoderLevel) *Sz3Compress {
	return &Sz3Compress{input: input, level: level}
}

func (n *Sz3Compress) Caps() pipeline.Caps { return n.input.Caps() }

func (n *Sz3Compress) Pull(ctx context.Context, req pipeline.Request) (payload.Payload, error) {
	in, err := n.input.Pull(ctx, req)
	if err != nil {
		return payload.Payload{}, err
	}
	f, err := payload.Downcast[frame.Frame](in)
	if err != nil {
		return payload.Payload{}, err
	}
	if f.Interpretation.SZ3 {
		return in, nil
	}
	if f.Buffer.Cpu == nil {
		return payload.Payload{}, fmt.Errorf("nodes/transform: sz3 compression requires a cpu-resident buffer")
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(n.level))
	if err != nil {
		return payload.Payload{}, fmt.Errorf("nodes/transform: creating zstd encoder: %w", err)
	}
	defer enc.Close()

	compressed := enc.EncodeAll(f.Buffer.Cpu.AsSlice(), nil)

	outFrame, err := frame.New(f.Interpretation.WithSZ3(len(compressed)), buffer.FromCpu(buffer.WrapCpuBuffer(compressed)))
	if err != nil {
		return payload.Payload{}, err
	}
	return payload.New(outFrame), nil
}

// Sz3Decompress is the inverse of Sz3Compress: it expects an
// SZ3-compressed frame and produces the uncompressed frame at the
// interpretation the compressed wrapper described.
type Sz3Decompress struct {
	input   pipeline.Node
	decoded frame.Interpretation
}

// NewSz3Decompress wraps input, which must produce SZ3-compressed frames.
// decoded is the Interpretation the decompressed bytes should be
// reinterpreted as (the compressor itself records only a byte count, not
// frame shape).
func NewSz3Decompress(input pipeline.Node, decoded frame.Interpretation) *Sz3Decompress {
	return &Sz3Decompress{input: input, decoded: decoded}
}

func (n *Sz3Decompress) Caps() pipeline.Caps { return n.input.Caps() }

func (n *Sz3Decompress) Pull(ctx context.Context, req pipeline.Request) (payload.Payload, error) {
	in, err := n.input.Pull(ctx, req)
	if err != nil {
		return payload.Payload{}, err
	}
	f, err := payload.Downcast[frame.Frame](in)
	if err != nil {
		return payload.Payload{}, err
	}
	if !f.Interpretation.SZ3 {
		return payload.Payload{}, fmt.Errorf("nodes/transform: sz3 decompression requires a compressed frame")
	}
	if f.Buffer.Cpu == nil {
		return payload.Payload{}, fmt.Errorf("nodes/transform: sz3 decompression requires a cpu-resident buffer")
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return payload.Payload{}, fmt.Errorf("nodes/transform: creating zstd decoder: %w", err)
	}
	defer dec.Close()

	decompressed, err := dec.DecodeAll(f.Buffer.Cpu.AsSlice(), nil)
	if err != nil {
		return payload.Payload{}, fmt.Errorf("nodes/transform: decompressing sz3 frame: %w", err)
	}

	outFrame, err := frame.New(n.decoded, buffer.FromCpu(buffer.WrapCpuBuffer(decompressed)))
	if err != nil {
		return payload.Payload{}, err
	}
	return payload.New(outFrame), nil
}

// Sz3CompressFactory registers Sz3Compress under the name "sz3_compress".
type Sz3CompressFactory struct{}

func (Sz3CompressFactory) Describe() pipeline.ParametersDescriptor {
	return pipeline.ParametersDescriptor{
		"input": pipeline.Mandatory(pipeline.ParameterNodeInput),
		"level": pipeline.Optional(pipeline.ParameterInt, pipeline.ParameterValue{Kind: pipeline.ParameterInt, Int: int64(zstd.SpeedDefault)}),
	}
}

func (Sz3CompressFactory) FromParameters(params pipeline.Parameters, inputs map[string]pipeline.Node, _ []pipeline.NodeID, _ *pipeline.Context) (pipeline.Node, error) {
	level, err := params.Int("level")
	if err != nil {
		return nil, err
	}
	return NewSz3Compress(inputs["input"], zstd.EncoderLevel(level)), nil
}

// Sz3DecompressFactory registers Sz3Decompress under the name
// "sz3_decompress".
type Sz3DecompressFactory struct{}

func (Sz3DecompressFactory) Describe() pipeline.ParametersDescriptor {
	return pipeline.ParametersDescriptor{
		"input":     pipeline.Mandatory(pipeline.ParameterNodeInput),
		"width":     pipeline.Mandatory(pipeline.ParameterInt),
		"height":    pipeline.Mandatory(pipeline.ParameterInt),
		"bit_depth": pipeline.Optional(pipeline.ParameterInt, pipeline.ParameterValue{Kind: pipeline.ParameterInt, Int: 8}),
	}
}

func (Sz3DecompressFactory) FromParameters(params pipeline.Parameters, inputs map[string]pipeline.Node, _ []pipeline.NodeID, _ *pipeline.Context) (pipeline.Node, error) {
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
	decoded := frame.Interpretation{
		Layout: frame.LayoutBayer, Sample: frame.SampleUInt,
		BitDepth: int(bitDepth), Width: int(width), Height: int(height),
	}
	return NewSz3Decompress(inputs["input"], decoded), nil
}
