package transform

import (
	"context"
	"fmt"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/buffer"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/frame"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/notifier"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

const (
	frameAMarker  byte = 0xAA
	frameBMarker  byte = 0x55
	halfHeaderLen      = 4
)

// halfFrame is one raw sensor readout as emitted by a dual-port camera: a
// small header (marker byte identifying port A vs B, a write-select bit
// tagging which half of a double-buffered capture it belongs to, and a
// wrapping readout counter) followed by the pixel bytes.
type halfFrame struct {
	marker byte
	wrsel  byte
	ctr    byte
	pixels []byte
	width  int
	height int
}

func parseHalfFrame(f frame.Frame) (halfFrame, error) {
	if f.Buffer.Cpu == nil {
		return halfFrame{}, fmt.Errorf("nodes/transform: dual-frame decoder requires a cpu-resident buffer")
	}
	raw := f.Buffer.Cpu.AsSlice()
	if len(raw) < halfHeaderLen {
		return halfFrame{}, fmt.Errorf("nodes/transform: half-frame shorter than its header")
	}
	return halfFrame{
		marker: raw[0], wrsel: raw[1], ctr: raw[2],
		pixels: raw[halfHeaderLen:],
		width:  f.Interpretation.Width, height: f.Interpretation.Height,
	}, nil
}

type decoderState struct {
	nextOutput uint64
	nextInput  uint64
	lastWrsel  byte
	hasWrsel   bool
	leftover   *halfFrame
}

// DualFrameRawDecoder reassembles full-resolution frames out of a stream
// of per-port half-frame readouts. A dual-port sensor emits two readouts
// (marked A and B) per output frame; DualFrameRawDecoder pairs them up by
// matching write-select bit and consecutive readout counter, interleaving
// their rows into one frame at double the input height and half the input
// frame rate. When consecutive readouts do not form a valid pair — a
// dropped or duplicated readout, a "slip" — the decoder discards the
// unmatched one and keeps trying with the next, recovering automatically
// once the stream resynchronizes rather than failing the pull outright.
type DualFrameRawDecoder struct {
	input pipeline.Node
	cfa   frame.CfaDescriptor
	st    *notifier.Notifier[decoderState]
}

// NewDualFrameRawDecoder wraps input, which must produce a stream of
// 12-bit unsigned Bayer half-frames as described above.
func NewDualFrameRawDecoder(input pipeline.Node, cfa frame.CfaDescriptor) *DualFrameRawDecoder {
	return &DualFrameRawDecoder{input: input, cfa: cfa, st: notifier.New(decoderState{})}
}

func (n *DualFrameRawDecoder) Caps() pipeline.Caps {
	caps := n.input.Caps()
	if caps.FrameCount != nil {
		half := *caps.FrameCount / 2
		caps.FrameCount = &half
	}
	return caps
}

func (n *DualFrameRawDecoder) Pull(ctx context.Context, req pipeline.Request) (payload.Payload, error) {
	// Only one decode may be in flight at a time: the decoder's state
	// (next input index, last write-select, leftover half-frame) is
	// inherently sequential. Concurrent Pull calls for different output
	// frame numbers serialize here, each waiting its turn.
	for {
		_, err := n.st.Wait(ctx, func(s decoderState) bool { return s.nextOutput == req.FrameNumber })
		if err != nil {
			return payload.Payload{}, err
		}

		out, produced, err := n.decodeOne(ctx)
		if err != nil {
			return payload.Payload{}, err
		}
		if produced {
			return payload.New(out), nil
		}
		// A slip was detected and discarded; loop to retry the same
		// output frame number with the next input readout.
	}
}

// decodeOne consumes one or two input half-frames and attempts to produce
// the next output frame. produced is false when a slip was detected and
// discarded without advancing nextOutput, in which case the caller should
// retry.
func (n *DualFrameRawDecoder) decodeOne(ctx context.Context) (frame.Frame, bool, error) {
	var a halfFrame
	var haveLeftover bool
	notifier.Update(n.st, func(s *decoderState) struct{} {
		if s.leftover != nil {
			a, haveLeftover = *s.leftover, true
			s.leftover = nil
		}
		return struct{}{}
	})

	if !haveLeftover {
		pulled, err := n.pullHalf(ctx, n.consumeInputIndex())
		if err != nil {
			return frame.Frame{}, false, err
		}
		a = pulled
	}

	b, err := n.pullHalf(ctx, n.consumeInputIndex())
	if err != nil {
		return frame.Frame{}, false, err
	}

	if a.marker != frameAMarker {
		a, b = b, a
	}

	var valid bool
	notifier.Update(n.st, func(s *decoderState) struct{} {
		valid = a.marker == frameAMarker && b.marker == frameBMarker &&
			a.wrsel == b.wrsel &&
			b.ctr-a.ctr == 1 &&
			(!s.hasWrsel || a.wrsel != s.lastWrsel)
		return struct{}{}
	})

	if !valid {
		notifier.Update(n.st, func(s *decoderState) struct{} {
			leftover := b
			s.leftover = &leftover
			return struct{}{}
		})
		return frame.Frame{}, false, nil
	}

	out, err := interleaveHalves(a, b, n.cfa)
	if err != nil {
		return frame.Frame{}, false, err
	}

	notifier.Update(n.st, func(s *decoderState) struct{} {
		s.lastWrsel, s.hasWrsel = a.wrsel, true
		s.nextOutput++
		return struct{}{}
	})

	return out, true, nil
}

func (n *DualFrameRawDecoder) consumeInputIndex() uint64 {
	return notifier.Update(n.st, func(s *decoderState) uint64 {
		idx := s.nextInput
		s.nextInput++
		return idx
	})
}

func (n *DualFrameRawDecoder) pullHalf(ctx context.Context, inputIndex uint64) (halfFrame, error) {
	p, err := n.input.Pull(ctx, pipeline.Request{FrameNumber: inputIndex})
	if err != nil {
		return halfFrame{}, err
	}
	f, err := payload.Downcast[frame.Frame](p)
	if err != nil {
		return halfFrame{}, err
	}
	return parseHalfFrame(f)
}

// interleaveHalves zips a's and b's rows into one frame with twice the
// height, matching the sensor's interleaved scan-out order.
func interleaveHalves(a, b halfFrame, cfa frame.CfaDescriptor) (frame.Frame, error) {
	if a.width != b.width || a.height != b.height {
		return frame.Frame{}, fmt.Errorf("nodes/transform: dual-frame halves have mismatched dimensions")
	}
	outInterp := frame.Interpretation{
		Layout: frame.LayoutBayer, Sample: frame.SampleUInt, BitDepth: 12,
		Width: a.width, Height: a.height * 2, Cfa: cfa,
	}
	if _, err := outInterp.RequiredBytes(); err != nil {
		return frame.Frame{}, err
	}
	// Every row starts on a byte boundary: ceil(width*12/8) bytes per row.
	lineBytes := (a.width*outInterp.BitDepth + 7) / 8

	dst := buffer.NewCpuBuffer(lineBytes * a.height * 2)
	dst.WithWriteLock(func(out []byte) {
		for row := 0; row < a.height; row++ {
			copy(out[(row*2)*lineBytes:(row*2+1)*lineBytes], a.pixels[row*lineBytes:(row+1)*lineBytes])
			copy(out[(row*2+1)*lineBytes:(row*2+2)*lineBytes], b.pixels[row*lineBytes:(row+1)*lineBytes])
		}
	})

	return frame.New(outInterp, buffer.FromCpu(dst))
}

// DualFrameRawDecoderFactory registers DualFrameRawDecoder under the name
// "dual_frame_raw_decoder".
type DualFrameRawDecoderFactory struct{}

func (DualFrameRawDecoderFactory) Describe() pipeline.ParametersDescriptor {
	return pipeline.ParametersDescriptor{
		"input":            pipeline.Mandatory(pipeline.ParameterNodeInput),
		"red_in_first_col": pipeline.Optional(pipeline.ParameterBool, pipeline.ParameterValue{Kind: pipeline.ParameterBool, Bool: true}),
		"red_in_first_row": pipeline.Optional(pipeline.ParameterBool, pipeline.ParameterValue{Kind: pipeline.ParameterBool, Bool: true}),
	}
}

func (DualFrameRawDecoderFactory) FromParameters(params pipeline.Parameters, inputs map[string]pipeline.Node, _ []pipeline.NodeID, _ *pipeline.Context) (pipeline.Node, error) {
	col, err := params.Bool("red_in_first_col")
	if err != nil {
		return nil, err
	}
	row, err := params.Bool("red_in_first_row")
	if err != nil {
		return nil, err
	}
	return NewDualFrameRawDecoder(inputs["input"], frame.CfaDescriptor{RedInFirstCol: col, RedInFirstRow: row}), nil
}
