package transform

import (
	"context"
	"testing"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/frame"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

func TestRgbToRgbaFillsConstantAlpha(t *testing.T) {
	t.Parallel()

	interp := frame.Interpretation{Layout: frame.LayoutRgb, Sample: frame.SampleUInt, BitDepth: 8, Width: 1, Height: 1}
	f := newFrame(t, interp, []byte{10, 20, 30})

	n := NewRgbToRgba(staticSource{frame: f}, 200)
	out, err := n.Pull(context.Background(), pipeline.Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := payload.Downcast[frame.Frame](out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	px := got.Buffer.Cpu.AsSlice()
	if px[0] != 10 || px[1] != 20 || px[2] != 30 || px[3] != 200 {
		t.Fatalf("got %v, want [10 20 30 200]", px)
	}
}
