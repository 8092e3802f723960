package transform

import (
	"context"
	"fmt"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/buffer"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/frame"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

// ReverseDualFrameRawDecoder is the inverse of DualFrameRawDecoder: it
// splits one full-height frame into its two constituent half-frames at
// double the frame rate, re-attaching the marker/wrsel/ctr header each
// half needs to round-trip back through DualFrameRawDecoder. It exists to
// let a recorded raw stream be re-split for transport to two ports, or to
// test the forward decoder against frames of known provenance.
type ReverseDualFrameRawDecoder struct {
	input pipeline.Node
	flip  bool // swap which physical half is emitted as port A vs B
	wrsel byte
}

// NewReverseDualFrameRawDecoder wraps input, which must produce full-height
// 12-bit unsigned Bayer frames with an even height.
func NewReverseDualFrameRawDecoder(input pipeline.Node, flip bool) *ReverseDualFrameRawDecoder {
	return &ReverseDualFrameRawDecoder{input: input, flip: flip}
}

func (n *ReverseDualFrameRawDecoder) Caps() pipeline.Caps {
	caps := n.input.Caps()
	if caps.FrameCount != nil {
		doubled := *caps.FrameCount * 2
		caps.FrameCount = &doubled
	}
	return caps
}

// Pull produces one half-frame per call; the caller is expected to pull
// sequentially, alternating A and B halves, exactly as
// DualFrameRawDecoder's input stream is shaped.
func (n *ReverseDualFrameRawDecoder) Pull(ctx context.Context, req pipeline.Request) (payload.Payload, error) {
	sourceFrameNumber := req.FrameNumber / 2
	wantsA := req.FrameNumber%2 == 0

	in, err := n.input.Pull(ctx, pipeline.Request{FrameNumber: sourceFrameNumber})
	if err != nil {
		return payload.Payload{}, err
	}
	f, err := payload.Downcast[frame.Frame](in)
	if err != nil {
		return payload.Payload{}, err
	}
	interp := f.Interpretation
	if interp.Layout != frame.LayoutBayer || interp.Sample != frame.SampleUInt || interp.BitDepth != 12 {
		return payload.Payload{}, fmt.Errorf("nodes/transform: reverse dual-frame decoder requires a 12-bit bayer frame")
	}
	if interp.Height%2 != 0 {
		return payload.Payload{}, fmt.Errorf("nodes/transform: reverse dual-frame decoder requires an even height, got %d", interp.Height)
	}
	if f.Buffer.Cpu == nil {
		return payload.Payload{}, fmt.Errorf("nodes/transform: reverse dual-frame decoder requires a cpu-resident buffer")
	}

	halfHeight := interp.Height / 2
	halfInterp := frame.Interpretation{Layout: interp.Layout, Sample: interp.Sample, BitDepth: interp.BitDepth, Width: interp.Width, Height: halfHeight}
	halfBytes, err := halfInterp.RequiredBytes()
	if err != nil {
		return payload.Payload{}, err
	}
	lineBytes := halfBytes / halfHeight

	src := f.Buffer.Cpu.AsSlice()
	marker := frameAMarker
	rowOffset := 0
	if wantsA == n.flip {
		marker = frameBMarker
		rowOffset = 1
	}

	out := buffer.NewCpuBuffer(halfHeaderLen + halfBytes)
	out.WithWriteLock(func(buf []byte) {
		buf[0], buf[1], buf[2] = marker, n.wrsel^byte(sourceFrameNumber&1), byte(2*sourceFrameNumber)+byte(rowOffset)
		for row := 0; row < halfHeight; row++ {
			srcRow := row*2 + rowOffset
			copy(buf[halfHeaderLen+row*lineBytes:halfHeaderLen+(row+1)*lineBytes], src[srcRow*lineBytes:(srcRow+1)*lineBytes])
		}
	})

	outFrame, err := frame.New(frame.Interpretation{Layout: interp.Layout, Sample: interp.Sample, BitDepth: interp.BitDepth, Width: interp.Width, Height: halfHeight}, buffer.FromCpu(out))
	if err != nil {
		return payload.Payload{}, err
	}
	return payload.New(outFrame), nil
}

// ReverseDualFrameRawDecoderFactory registers ReverseDualFrameRawDecoder
// under the name "reverse_dual_frame_raw_decoder".
type ReverseDualFrameRawDecoderFactory struct{}

func (ReverseDualFrameRawDecoderFactory) Describe() pipeline.ParametersDescriptor {
	return pipeline.ParametersDescriptor{
		"input": pipeline.Mandatory(pipeline.ParameterNodeInput),
		"flip":  pipeline.Optional(pipeline.ParameterBool, pipeline.ParameterValue{Kind: pipeline.ParameterBool, Bool: false}),
	}
}

func (ReverseDualFrameRawDecoderFactory) FromParameters(params pipeline.Parameters, inputs map[string]pipeline.Node, _ []pipeline.NodeID, _ *pipeline.Context) (pipeline.Node, error) {
	flip, err := params.Bool("flip")
	if err != nil {
		return nil, err
	}
	return NewReverseDualFrameRawDecoder(inputs["input"], flip), nil
}
