package transform

import (
	"bytes"
	"context"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/frame"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

func TestSz3CompressDecompressRoundTrip(t *testing.T) {
	t.Parallel()

	interp := frame.Interpretation{Layout: frame.LayoutBayer, Sample: frame.SampleUInt, BitDepth: 8, Width: 4, Height: 4}
	original := make([]byte, 16)
	for i := range original {
		original[i] = byte(i * 7)
	}
	f := newFrame(t, interp, original)

	compress := NewSz3Compress(staticSource{frame: f}, zstd.SpeedDefault)
	compressedPayload, err := compress.Pull(context.Background(), pipeline.Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	compressedFrame, err := payload.Downcast[frame.Frame](compressedPayload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !compressedFrame.Interpretation.SZ3 {
		t.Fatal("expected compressed frame to be tagged SZ3")
	}

	decompress := NewSz3Decompress(staticSource{frame: compressedFrame}, interp)
	decompressedPayload, err := decompress.Pull(context.Background(), pipeline.Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decompressedFrame, err := payload.Downcast[frame.Frame](decompressedPayload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !bytes.Equal(decompressedFrame.Buffer.Cpu.AsSlice(), original) {
		t.Fatalf("round trip mismatch: got %v, want %v", decompressedFrame.Buffer.Cpu.AsSlice(), original)
	}
}
