package transform

import (
	"context"
	"math"
	"testing"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/frame"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

func float32Bytes(v float32) []byte {
	bits := math.Float32bits(v)
	return []byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)}
}

func TestFpToUintScalesAndClamps(t *testing.T) {
	t.Parallel()

	interp := frame.Interpretation{Layout: frame.LayoutRgb, Sample: frame.SampleFP32, Width: 1, Height: 1}
	var data []byte
	data = append(data, float32Bytes(0.0)...)
	data = append(data, float32Bytes(0.5)...)
	data = append(data, float32Bytes(2.0)...) // out of range, should clamp to 255

	f := newFrame(t, interp, data)
	n := NewFpToUint(staticSource{frame: f})

	out, err := n.Pull(context.Background(), pipeline.Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := payload.Downcast[frame.Frame](out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	px := got.Buffer.Cpu.AsSlice()
	if px[0] != 0 {
		t.Fatalf("got %d, want 0", px[0])
	}
	if px[2] != 255 {
		t.Fatalf("got %d, want 255 (clamped)", px[2])
	}
}
