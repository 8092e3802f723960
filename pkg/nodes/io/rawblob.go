// Package io implements the nodes at the edges of a graph: sources that
// read frames from files, sinks that write them back out or aggregate
// them for benchmarking.
package io

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/buffer"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/frame"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

// RawBlobReader reads a fixed-format sequence of equal-sized frames
// concatenated in a single file: no container, no per-frame header, just
// frameCount copies of a frame sized by interp back to back. It is the
// simplest possible raw source and the format RawBlobWriter produces.
type RawBlobReader struct {
	mu         sync.Mutex
	file       *os.File
	interp     frame.Interpretation
	frameBytes int
	frameCount uint64
}

// OpenRawBlobReader opens path and validates its size is an exact multiple
// of the per-frame byte count implied by interp.
func OpenRawBlobReader(path string, interp frame.Interpretation) (*RawBlobReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("nodes/io: opening raw blob %q: %w", path, err)
	}
	frameBytes, err := interp.RequiredBytes()
	if err != nil {
		f.Close()
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("nodes/io: statting raw blob %q: %w", path, err)
	}
	if frameBytes == 0 || info.Size()%int64(frameBytes) != 0 {
		f.Close()
		return nil, fmt.Errorf("nodes/io: raw blob %q size %d is not a multiple of frame size %d", path, info.Size(), frameBytes)
	}
	return &RawBlobReader{
		file: f, interp: interp, frameBytes: frameBytes,
		frameCount: uint64(info.Size()) / uint64(frameBytes),
	}, nil
}

func (r *RawBlobReader) Caps() pipeline.Caps {
	fc := r.frameCount
	return pipeline.Caps{FrameCount: &fc}
}

func (r *RawBlobReader) Pull(_ context.Context, req pipeline.Request) (payload.Payload, error) {
	if req.FrameNumber >= r.frameCount {
		return payload.Payload{}, fmt.Errorf("nodes/io: frame %d out of range (have %d frames)", req.FrameNumber, r.frameCount)
	}

	buf := make([]byte, r.frameBytes)
	r.mu.Lock()
	_, err := r.file.ReadAt(buf, int64(req.FrameNumber)*int64(r.frameBytes))
	r.mu.Unlock()
	if err != nil && err != io.EOF {
		return payload.Payload{}, fmt.Errorf("nodes/io: reading frame %d: %w", req.FrameNumber, err)
	}

	f, err := frame.New(r.interp, buffer.FromCpu(buffer.WrapCpuBuffer(buf)))
	if err != nil {
		return payload.Payload{}, err
	}
	return payload.New(f), nil
}

func (r *RawBlobReader) Close() error {
	return r.file.Close()
}

// RawBlobWriter is a SinkNode that pulls frames from its input in order
// and appends each one's bytes to a file, producing the format
// RawBlobReader expects.
type RawBlobWriter struct {
	input pipeline.Node
	path  string
}

// NewRawBlobWriter creates a writer that will pull every available frame
// from input and write it to path, truncating any existing file there.
func NewRawBlobWriter(input pipeline.Node, path string) *RawBlobWriter {
	return &RawBlobWriter{input: input, path: path}
}

// Caps and Pull exist only so RawBlobWriter satisfies Node alongside
// SinkNode, which graph construction requires of every node named as a
// sink; a writer has nothing to produce and Pull always fails.
func (w *RawBlobWriter) Caps() pipeline.Caps { return pipeline.Caps{} }

func (w *RawBlobWriter) Pull(context.Context, pipeline.Request) (payload.Payload, error) {
	return payload.Payload{}, fmt.Errorf("nodes/io: raw blob writer is a sink and cannot be pulled")
}

func (w *RawBlobWriter) Run(ctx context.Context, onProgress func(pipeline.ProgressUpdate)) error {
	caps := w.input.Caps()
	if caps.FrameCount == nil {
		return fmt.Errorf("nodes/io: raw blob writer requires a bounded input stream")
	}

	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("nodes/io: creating raw blob %q: %w", w.path, err)
	}
	defer f.Close()

	total := *caps.FrameCount
	for i := uint64(0); i < total; i++ {
		p, err := w.input.Pull(ctx, pipeline.Request{FrameNumber: i})
		if err != nil {
			return fmt.Errorf("nodes/io: pulling frame %d: %w", i, err)
		}
		fr, err := payload.Downcast[frame.Frame](p)
		if err != nil {
			return err
		}
		if fr.Buffer.Cpu == nil {
			return fmt.Errorf("nodes/io: raw blob writer requires a cpu-resident buffer")
		}
		if _, err := f.Write(fr.Buffer.Cpu.AsSlice()); err != nil {
			return fmt.Errorf("nodes/io: writing frame %d: %w", i, err)
		}
		if onProgress != nil {
			done := i + 1
			onProgress(pipeline.ProgressUpdate{FramesDone: done, FramesTotal: &total})
		}
	}
	return nil
}

// RawBlobReaderFactory registers RawBlobReader under "raw_blob_reader".
type RawBlobReaderFactory struct{}

func (RawBlobReaderFactory) Describe() pipeline.ParametersDescriptor {
	return pipeline.ParametersDescriptor{
		"path":      pipeline.Mandatory(pipeline.ParameterString),
		"width":     pipeline.Mandatory(pipeline.ParameterInt),
		"height":    pipeline.Mandatory(pipeline.ParameterInt),
		"bit_depth": pipeline.Optional(pipeline.ParameterInt, pipeline.ParameterValue{Kind: pipeline.ParameterInt, Int: 12}),
	}
}

func (RawBlobReaderFactory) FromParameters(params pipeline.Parameters, _ map[string]pipeline.Node, _ []pipeline.NodeID, _ *pipeline.Context) (pipeline.Node, error) {
	path, err := params.String("path")
	if err != nil {
		return nil, err
	}
	width, err := params.Int("width")
	if err != nil {
		return nil, err
	}
	height, err := params.Int("height")
	if err != nil {
		return nil, err
	}
	bitDepth, err := params.Int("bit_depth")
	if err != nil {
		return nil, err
	}
	interp := frame.Interpretation{Layout: frame.LayoutBayer, Sample: frame.SampleUInt, BitDepth: int(bitDepth), Width: int(width), Height: int(height)}
	return OpenRawBlobReader(path, interp)
}

// RawBlobWriterFactory registers RawBlobWriter under "raw_blob_writer".
type RawBlobWriterFactory struct{}

func (RawBlobWriterFactory) Describe() pipeline.ParametersDescriptor {
	return pipeline.ParametersDescriptor{
		"input": pipeline.Mandatory(pipeline.ParameterNodeInput),
		"path":  pipeline.Mandatory(pipeline.ParameterString),
	}
}

func (RawBlobWriterFactory) FromParameters(params pipeline.Parameters, inputs map[string]pipeline.Node, _ []pipeline.NodeID, _ *pipeline.Context) (pipeline.Node, error) {
	path, err := params.String("path")
	if err != nil {
		return nil, err
	}
	return NewRawBlobWriter(inputs["input"], path), nil
}
