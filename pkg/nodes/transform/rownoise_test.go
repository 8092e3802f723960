package transform

import (
	"context"
	"testing"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/frame"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

func TestRowNoiseRemovalSubtractsDarkColumnMean(t *testing.T) {
	t.Parallel()

	// 1 row, 4 columns, bayer, 2 dark columns with mean 10, then 50 and 60.
	interp := frame.Interpretation{Layout: frame.LayoutBayer, Sample: frame.SampleUInt, BitDepth: 8, Width: 4, Height: 1}
	f := newFrame(t, interp, []byte{8, 12, 50, 60})

	n := NewRowNoiseRemoval(staticSource{frame: f}, 2, true)
	out, err := n.Pull(context.Background(), pipeline.Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := payload.Downcast[frame.Frame](out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Interpretation.Width != 2 {
		t.Fatalf("got width %d, want 2 after stripping dark columns", got.Interpretation.Width)
	}
	px := got.Buffer.Cpu.AsSlice()
	if px[0] != 40 || px[1] != 50 {
		t.Fatalf("got %v, want [40 50]", px)
	}
}

func TestRowNoiseRemovalClampsInsteadOfWrapping(t *testing.T) {
	t.Parallel()

	interp := frame.Interpretation{Layout: frame.LayoutBayer, Sample: frame.SampleUInt, BitDepth: 8, Width: 3, Height: 1}
	f := newFrame(t, interp, []byte{100, 100, 5})

	n := NewRowNoiseRemoval(staticSource{frame: f}, 2, false)
	out, err := n.Pull(context.Background(), pipeline.Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := payload.Downcast[frame.Frame](out)
	px := got.Buffer.Cpu.AsSlice()
	if px[2] != 0 {
		t.Fatalf("got %d, want 0 (clamped, not wrapped)", px[2])
	}
}
