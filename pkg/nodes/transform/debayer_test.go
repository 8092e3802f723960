package transform

import (
	"context"
	"testing"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/frame"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

func TestDebayerReplicatesQuadAcrossFullResolution(t *testing.T) {
	t.Parallel()

	// RGGB 2x2 quad: R=10, G1=20, G2=30, B=40 -> demosaiced green = (20+30)/2 = 25.
	// Output must match input dimensions (spec: debayer preserves width/height),
	// so the single quad's triple is replicated across all 4 output pixels.
	interp := frame.Interpretation{
		Layout: frame.LayoutBayer, Sample: frame.SampleUInt, BitDepth: 8, Width: 2, Height: 2,
		Cfa: frame.CfaDescriptor{RedInFirstCol: true, RedInFirstRow: true},
	}
	f := newFrame(t, interp, []byte{10, 20, 30, 40})

	d := NewDebayer(staticSource{frame: f})
	out, err := d.Pull(context.Background(), pipeline.Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := payload.Downcast[frame.Frame](out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Interpretation.Layout != frame.LayoutRgb {
		t.Fatalf("got layout %v, want rgb", got.Interpretation.Layout)
	}
	if got.Interpretation.Width != 2 || got.Interpretation.Height != 2 {
		t.Fatalf("got %dx%d, want 2x2 (same as input)", got.Interpretation.Width, got.Interpretation.Height)
	}
	px := got.Buffer.Cpu.AsSlice()
	want := []byte{10, 25, 40}
	for i := 0; i < 4; i++ {
		got := px[i*3 : i*3+3]
		if got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
			t.Fatalf("pixel %d: got rgb %v, want %v", i, got, want)
		}
	}
}
