package transform

import (
	"context"
	"fmt"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/buffer"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/frame"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

// RowNoiseRemoval subtracts a per-row fixed-pattern offset estimated from
// a strip of optically-dark reference columns at the left edge of the
// sensor. Each row's offset is the mean of its dark columns; that offset
// is subtracted (with clamping to avoid wraparound) from every remaining
// column in the row. If stripDarkColumns is set the reference columns are
// dropped from the output, narrowing the frame by that many columns.
type RowNoiseRemoval struct {
	input            pipeline.Node
	darkColumns      int
	stripDarkColumns bool
}

// NewRowNoiseRemoval wraps input, which must produce 8-bit unsigned Bayer
// or Rgb frames with at least darkColumns columns of optically-dark
// reference pixels at the left edge.
func NewRowNoiseRemoval(input pipeline.Node, darkColumns int, stripDarkColumns bool) *RowNoiseRemoval {
	return &RowNoiseRemoval{input: input, darkColumns: darkColumns, stripDarkColumns: stripDarkColumns}
}

func (n *RowNoiseRemoval) Caps() pipeline.Caps { return n.input.Caps() }

func (n *RowNoiseRemoval) Pull(ctx context.Context, req pipeline.Request) (payload.Payload, error) {
	in, err := n.input.Pull(ctx, req)
	if err != nil {
		return payload.Payload{}, err
	}
	f, err := payload.Downcast[frame.Frame](in)
	if err != nil {
		return payload.Payload{}, err
	}
	interp := f.Interpretation
	if interp.Sample != frame.SampleUInt || interp.BitDepth != 8 {
		return payload.Payload{}, fmt.Errorf("nodes/transform: row noise removal requires an 8-bit integer frame")
	}
	if interp.Width <= n.darkColumns {
		return payload.Payload{}, fmt.Errorf("nodes/transform: frame width %d is not greater than dark column count %d", interp.Width, n.darkColumns)
	}
	if f.Buffer.Cpu == nil {
		return payload.Payload{}, fmt.Errorf("nodes/transform: row noise removal requires a cpu-resident buffer")
	}

	channels := 1
	if interp.Layout == frame.LayoutRgb {
		channels = 3
	} else if interp.Layout == frame.LayoutRgba {
		channels = 4
	}

	src := f.Buffer.Cpu.AsSlice()
	srcStride := interp.Width * channels
	darkBytes := n.darkColumns * channels

	outWidth := interp.Width
	colOffset := 0
	if n.stripDarkColumns {
		outWidth -= n.darkColumns
		colOffset = n.darkColumns
	}
	outInterp := interp
	outInterp.Width = outWidth
	outBytes, err := outInterp.RequiredBytes()
	if err != nil {
		return payload.Payload{}, err
	}
	dstStride := outWidth * channels
	dst := buffer.NewCpuBuffer(outBytes)

	dst.WithWriteLock(func(out []byte) {
		for row := 0; row < interp.Height; row++ {
			srcRow := src[row*srcStride : (row+1)*srcStride]
			offset := rowMean(srcRow[:darkBytes])

			dstRow := out[row*dstStride : (row+1)*dstStride]
			for i := 0; i < dstStride; i++ {
				dstRow[i] = subtractClamped(srcRow[colOffset*channels+i], offset)
			}
		}
	})

	outFrame, err := frame.New(outInterp, buffer.FromCpu(dst))
	if err != nil {
		return payload.Payload{}, err
	}
	return payload.New(outFrame), nil
}

func rowMean(dark []byte) byte {
	if len(dark) == 0 {
		return 0
	}
	var sum int
	for _, v := range dark {
		sum += int(v)
	}
	return byte(sum / len(dark))
}

func subtractClamped(v, offset byte) byte {
	if v < offset {
		return 0
	}
	return v - offset
}

// RowNoiseRemovalFactory registers RowNoiseRemoval under the name
// "row_noise_removal".
type RowNoiseRemovalFactory struct{}

func (RowNoiseRemovalFactory) Describe() pipeline.ParametersDescriptor {
	return pipeline.ParametersDescriptor{
		"input":              pipeline.Mandatory(pipeline.ParameterNodeInput),
		"dark_columns":       pipeline.Optional(pipeline.ParameterInt, pipeline.ParameterValue{Kind: pipeline.ParameterInt, Int: 8}),
		"strip_dark_columns": pipeline.Optional(pipeline.ParameterBool, pipeline.ParameterValue{Kind: pipeline.ParameterBool, Bool: true}),
	}
}

func (RowNoiseRemovalFactory) FromParameters(params pipeline.Parameters, inputs map[string]pipeline.Node, _ []pipeline.NodeID, _ *pipeline.Context) (pipeline.Node, error) {
	dc, err := params.Int("dark_columns")
	if err != nil {
		return nil, err
	}
	strip, err := params.Bool("strip_dark_columns")
	if err != nil {
		return nil, err
	}
	return NewRowNoiseRemoval(inputs["input"], int(dc), strip), nil
}
