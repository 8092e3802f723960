package transform

import (
	"context"
	"testing"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/buffer"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/frame"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

type staticSource struct {
	frame frame.Frame
	caps  pipeline.Caps
}

func (s staticSource) Pull(_ context.Context, _ pipeline.Request) (payload.Payload, error) {
	return payload.New(s.frame), nil
}
func (s staticSource) Caps() pipeline.Caps { return s.caps }

func newFrame(t *testing.T, interp frame.Interpretation, data []byte) frame.Frame {
	t.Helper()
	f, err := frame.New(interp, buffer.FromCpu(buffer.WrapCpuBuffer(data)))
	if err != nil {
		t.Fatalf("unexpected error building frame: %v", err)
	}
	return f
}

func TestConvert12To8TruncatesLowBits(t *testing.T) {
	t.Parallel()

	// One 12-bit pair packed into 3 bytes: samples 0xABC and 0xDEF.
	src := []byte{0xAB, 0xCD, 0xEF}
	dst := make([]byte, 2)
	convert12To8(src, dst)

	if dst[0] != 0xAB {
		t.Fatalf("got %#x, want 0xab", dst[0])
	}
	if dst[1] != 0xDE {
		t.Fatalf("got %#x, want 0xde", dst[1])
	}
}

func TestBitDepthConverterPassesThroughEightBit(t *testing.T) {
	t.Parallel()

	interp := frame.Interpretation{Layout: frame.LayoutBayer, Sample: frame.SampleUInt, BitDepth: 8, Width: 2, Height: 1}
	f := newFrame(t, interp, []byte{1, 2})
	conv := NewBitDepthConverter(staticSource{frame: f})

	out, err := conv.Pull(context.Background(), pipeline.Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := payload.Downcast[frame.Frame](out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Interpretation.BitDepth != 8 {
		t.Fatalf("got bit depth %d, want 8", got.Interpretation.BitDepth)
	}
}

func TestBitDepthConverterConverts12To8(t *testing.T) {
	t.Parallel()

	interp := frame.Interpretation{Layout: frame.LayoutBayer, Sample: frame.SampleUInt, BitDepth: 12, Width: 2, Height: 1}
	f := newFrame(t, interp, []byte{0xAB, 0xCD, 0xEF})
	conv := NewBitDepthConverter(staticSource{frame: f})

	out, err := conv.Pull(context.Background(), pipeline.Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := payload.Downcast[frame.Frame](out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Interpretation.BitDepth != 8 {
		t.Fatalf("got bit depth %d, want 8", got.Interpretation.BitDepth)
	}
	bytes := got.Buffer.Cpu.AsSlice()
	if bytes[0] != 0xAB || bytes[1] != 0xDE {
		t.Fatalf("got %v, want [0xab 0xde]", bytes)
	}
}
