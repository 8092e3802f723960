package frame

import (
	"context"
	"fmt"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/buffer"
)

// Frame pairs an Interpretation with the buffer holding its bytes. It is
// the value type that travels wrapped in a Payload between nodes.
type Frame struct {
	Interpretation Interpretation
	Buffer         buffer.Buffer
}

// New validates that buf is large enough for in before constructing a
// Frame, refusing to silently truncate or wrap around a too-small buffer.
func New(in Interpretation, buf buffer.Buffer) (Frame, error) {
	required, err := in.RequiredBytes()
	if err != nil {
		return Frame{}, err
	}
	if buf.IsCpu() && buf.Cpu.Len() < required {
		return Frame{}, fmt.Errorf("frame: buffer has %d bytes, interpretation requires %d", buf.Cpu.Len(), required)
	}
	if buf.IsGpu() && int(buf.Gpu.Size()) < required {
		return Frame{}, fmt.Errorf("frame: gpu buffer has %d bytes, interpretation requires %d", buf.Gpu.Size(), required)
	}
	return Frame{Interpretation: in, Buffer: buf}, nil
}

// EnsureCpu returns a CPU-resident view of f, promoting via uploader if f
// currently lives on the GPU. Unlike buffer.EnsureCpu, this also rewraps
// the result as a Frame carrying the same Interpretation, matching the
// original's ensure_cpu_buffer which returns a new Frame rather than a
// bare buffer.
func (f Frame) EnsureCpu(ctx context.Context, uploader buffer.Uploader) (Frame, error) {
	cpu, err := buffer.EnsureCpu(ctx, f.Buffer, uploader)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Interpretation: f.Interpretation, Buffer: buffer.FromCpu(cpu)}, nil
}

// EnsureGpu returns a GPU-resident view of f, promoting via uploader if f
// currently lives in host memory.
func (f Frame) EnsureGpu(ctx context.Context, uploader buffer.Uploader) (Frame, error) {
	gpu, err := buffer.EnsureGpu(ctx, f.Buffer, uploader)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Interpretation: f.Interpretation, Buffer: buffer.FromGpu(gpu)}, nil
}
