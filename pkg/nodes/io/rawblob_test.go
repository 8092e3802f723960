package io

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/buffer"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/frame"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

func testInterp() frame.Interpretation {
	return frame.Interpretation{Layout: frame.LayoutBayer, Sample: frame.SampleUInt, BitDepth: 8, Width: 2, Height: 2}
}

type sliceSource struct {
	frames [][]byte
	interp frame.Interpretation
}

func (s sliceSource) Caps() pipeline.Caps {
	fc := uint64(len(s.frames))
	return pipeline.Caps{FrameCount: &fc}
}

func (s sliceSource) Pull(_ context.Context, req pipeline.Request) (payload.Payload, error) {
	f, err := frame.New(s.interp, buffer.FromCpu(buffer.WrapCpuBuffer(s.frames[req.FrameNumber])))
	if err != nil {
		return payload.Payload{}, err
	}
	return payload.New(f), nil
}

func TestRawBlobWriterThenReaderRoundTrips(t *testing.T) {
	t.Parallel()

	interp := testInterp()
	frames := [][]byte{
		{1, 2, 3, 4},
		{5, 6, 7, 8},
		{9, 10, 11, 12},
	}
	src := sliceSource{frames: frames, interp: interp}

	dir := t.TempDir()
	path := filepath.Join(dir, "out.raw")

	writer := NewRawBlobWriter(src, path)
	if err := writer.Run(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error writing: %v", err)
	}

	reader, err := OpenRawBlobReader(path, interp)
	if err != nil {
		t.Fatalf("unexpected error opening: %v", err)
	}
	defer reader.Close()

	if got := *reader.Caps().FrameCount; got != uint64(len(frames)) {
		t.Fatalf("frame count = %d, want %d", got, len(frames))
	}

	for i, want := range frames {
		p, err := reader.Pull(context.Background(), pipeline.Request{FrameNumber: uint64(i)})
		if err != nil {
			t.Fatalf("unexpected error pulling frame %d: %v", i, err)
		}
		fr, err := payload.Downcast[frame.Frame](p)
		if err != nil {
			t.Fatalf("unexpected error downcasting: %v", err)
		}
		got := fr.Buffer.Cpu.AsSlice()
		if len(got) != len(want) {
			t.Fatalf("frame %d length = %d, want %d", i, len(got), len(want))
		}
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("frame %d byte %d = %d, want %d", i, j, got[j], want[j])
			}
		}
	}
}

func TestOpenRawBlobReaderRejectsSizeNotAMultipleOfFrameSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.raw")
	if err := os.WriteFile(path, make([]byte, 5), 0o644); err != nil {
		t.Fatalf("unexpected error writing fixture: %v", err)
	}

	_, err := OpenRawBlobReader(path, testInterp())
	if err == nil {
		t.Fatal("expected an error for a file size that is not a multiple of the frame size")
	}
}

func TestRawBlobReaderPullOutOfRangeErrors(t *testing.T) {
	t.Parallel()

	interp := testInterp()
	src := sliceSource{frames: [][]byte{{1, 2, 3, 4}}, interp: interp}
	dir := t.TempDir()
	path := filepath.Join(dir, "out.raw")

	if err := NewRawBlobWriter(src, path).Run(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error writing: %v", err)
	}
	reader, err := OpenRawBlobReader(path, interp)
	if err != nil {
		t.Fatalf("unexpected error opening: %v", err)
	}
	defer reader.Close()

	if _, err := reader.Pull(context.Background(), pipeline.Request{FrameNumber: 5}); err == nil {
		t.Fatal("expected an out-of-range error")
	}
}

func TestRawBlobWriterRequiresBoundedInput(t *testing.T) {
	t.Parallel()

	unbounded := sliceSource{frames: nil, interp: testInterp()}
	writer := NewRawBlobWriter(unboundedCapsSource{unbounded}, filepath.Join(t.TempDir(), "out.raw"))
	if err := writer.Run(context.Background(), nil); err == nil {
		t.Fatal("expected an error for an unbounded input stream")
	}
}

type unboundedCapsSource struct {
	sliceSource
}

func (unboundedCapsSource) Caps() pipeline.Caps { return pipeline.Caps{FrameCount: nil} }
