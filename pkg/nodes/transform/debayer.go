package transform

import (
	"context"
	"fmt"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/buffer"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/frame"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

// Debayer converts a single-channel Bayer frame into a 3-channel Rgb frame
// by nearest-neighbor demosaicing: each pixel takes the R/G/B triple of the
// 2x2 quad it belongs to. Output dimensions match the input's exactly.
type Debayer struct {
	input pipeline.Node
}

// NewDebayer wraps input, which must produce 8-bit unsigned Bayer frames.
func NewDebayer(input pipeline.Node) *Debayer {
	return &Debayer{input: input}
}

func (n *Debayer) Caps() pipeline.Caps { return n.input.Caps() }

func (n *Debayer) Pull(ctx context.Context, req pipeline.Request) (payload.Payload, error) {
	in, err := n.input.Pull(ctx, req)
	if err != nil {
		return payload.Payload{}, err
	}
	f, err := payload.Downcast[frame.Frame](in)
	if err != nil {
		return payload.Payload{}, err
	}
	interp := f.Interpretation
	if interp.Layout != frame.LayoutBayer || interp.Sample != frame.SampleUInt || interp.BitDepth != 8 {
		return payload.Payload{}, fmt.Errorf("nodes/transform: debayer requires an 8-bit bayer frame, got layout=%s sample=%s depth=%d", interp.Layout, interp.Sample, interp.BitDepth)
	}
	if f.Buffer.Cpu == nil {
		return payload.Payload{}, fmt.Errorf("nodes/transform: debayer requires a cpu-resident buffer")
	}

	outInterp := frame.Interpretation{
		Layout: frame.LayoutRgb, Sample: frame.SampleUInt, BitDepth: 8,
		Width: interp.Width, Height: interp.Height, Fps: interp.Fps,
	}
	outBytes, err := outInterp.RequiredBytes()
	if err != nil {
		return payload.Payload{}, err
	}
	dst := buffer.NewCpuBuffer(outBytes)

	src := f.Buffer.Cpu.AsSlice()
	dst.WithWriteLock(func(out []byte) {
		debayerQuads(src, out, interp.Width, interp.Width, interp.Height, interp.Cfa)
	})

	outFrame, err := frame.New(outInterp, buffer.FromCpu(dst))
	if err != nil {
		return payload.Payload{}, err
	}
	return payload.New(outFrame), nil
}

// debayerQuads demosaics each 2x2 input quad into its R/G/B triple and
// replicates that triple across all four output pixels the quad covers, so
// output resolution matches input resolution. redCol/redRow (from cfa)
// identify which corner of the quad holds the red sample; the diagonal
// corner holds blue, and the remaining two corners are averaged into green.
func debayerQuads(src, dst []byte, srcStride, width, height int, cfa frame.CfaDescriptor) {
	redCol, redRow := 0, 0
	if cfa.RedInFirstCol {
		redCol = 0
	} else {
		redCol = 1
	}
	if cfa.RedInFirstRow {
		redRow = 0
	} else {
		redRow = 1
	}
	blueCol, blueRow := 1-redCol, 1-redRow

	at := func(x, y int) byte { return src[y*srcStride+x] }
	put := func(x, y int, r, g, b byte) {
		di := (y*width + x) * 3
		dst[di] = r
		dst[di+1] = g
		dst[di+2] = b
	}

	for y0 := 0; y0 < height; y0 += 2 {
		for x0 := 0; x0 < width; x0 += 2 {
			r := at(x0+redCol, y0+redRow)
			b := at(x0+blueCol, y0+blueRow)
			g1 := at(x0+redCol, y0+blueRow)
			g2 := at(x0+blueCol, y0+redRow)
			g := byte((uint16(g1) + uint16(g2)) / 2)

			for dy := 0; dy < 2 && y0+dy < height; dy++ {
				for dx := 0; dx < 2 && x0+dx < width; dx++ {
					put(x0+dx, y0+dy, r, g, b)
				}
			}
		}
	}
}

// DebayerFactory registers Debayer with the node registry under the name
// "debayer".
type DebayerFactory struct{}

func (DebayerFactory) Describe() pipeline.ParametersDescriptor {
	return pipeline.ParametersDescriptor{
		"input": pipeline.Mandatory(pipeline.ParameterNodeInput),
	}
}

func (DebayerFactory) FromParameters(_ pipeline.Parameters, inputs map[string]pipeline.Node, _ []pipeline.NodeID, _ *pipeline.Context) (pipeline.Node, error) {
	return NewDebayer(inputs["input"]), nil
}
