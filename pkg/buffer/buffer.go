// Package buffer implements the two storage backends a Frame's bytes can
// live in — host memory (CpuBuffer) and device memory (GpuBuffer) — plus
// the on-demand promotion between them that lets most nodes stay agnostic
// to where their input actually lives. Promotion is lazy: a CPU-only node
// downstream of a GPU producer pays the transfer cost once, the first time
// it asks, not on every frame the producer happens to emit.
package buffer

import (
	"context"
	"fmt"
	"sync"
)

// CpuBuffer is a host-memory byte buffer shared by reference. Unlike a
// plain []byte, it carries its own mutex so that a node mutating it
// in-place (e.g. an in-place bit-depth conversion) does not race a
// concurrent reader on another pull of the same cached frame.
type CpuBuffer struct {
	mu  sync.RWMutex
	buf []byte
}

// NewCpuBuffer allocates a zeroed CpuBuffer of the given size.
func NewCpuBuffer(size int) *CpuBuffer {
	return &CpuBuffer{buf: make([]byte, size)}
}

// WrapCpuBuffer wraps an existing byte slice without copying it. The
// caller must not retain a separate mutable alias to buf.
func WrapCpuBuffer(buf []byte) *CpuBuffer {
	return &CpuBuffer{buf: buf}
}

// AsSlice returns the buffer's bytes for reading. Callers must not mutate
// the returned slice; use WithWriteLock for in-place mutation.
func (b *CpuBuffer) AsSlice() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.buf
}

// WithWriteLock runs fn with exclusive access to the buffer's bytes.
func (b *CpuBuffer) WithWriteLock(fn func(buf []byte)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.buf)
}

// Len reports the buffer's size in bytes.
func (b *CpuBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.buf)
}

// GpuHandle is the minimal surface a device buffer must expose for
// promotion bookkeeping; pkg/gpu's buffer type satisfies it without
// pkg/buffer needing to import pkg/gpu (which itself depends on this
// package for staging).
type GpuHandle interface {
	Size() uint64
	Release()
}

// GpuBuffer wraps a device-resident buffer. It stores the handle as the
// GpuHandle interface so this package has no compile-time dependency on
// the concrete GPU backend; pkg/gpu supplies the concrete *gpu.Buffer.
type GpuBuffer struct {
	handle GpuHandle
}

// NewGpuBuffer wraps a device buffer handle.
func NewGpuBuffer(handle GpuHandle) *GpuBuffer {
	return &GpuBuffer{handle: handle}
}

// Handle returns the underlying device buffer handle for backend-specific
// operations (binding, dispatch) that this package intentionally does not
// know about.
func (g *GpuBuffer) Handle() GpuHandle {
	return g.handle
}

// Size reports the device buffer's size in bytes.
func (g *GpuBuffer) Size() uint64 {
	return g.handle.Size()
}

// Release frees the device-side allocation. Safe to call once; calling it
// again is a caller error, matching the non-reentrant Release semantics of
// the underlying WebGPU handle.
func (g *GpuBuffer) Release() {
	g.handle.Release()
}

// Uploader allocates a device buffer from CPU bytes and reads a device
// buffer back to CPU bytes. pkg/gpu.Device implements this; it is defined
// here, rather than imported from there, to keep the dependency arrow
// pointing from pkg/gpu down to pkg/buffer, not the other way around.
type Uploader interface {
	Upload(ctx context.Context, data []byte) (GpuHandle, error)
	Download(ctx context.Context, handle GpuHandle) ([]byte, error)
}

// Buffer is the union type a Frame actually stores: exactly one of Cpu or
// Gpu is non-nil at any time, standing in for a tagged CpuBuffer/GpuBuffer
// sum type that Go has no direct syntax for.
type Buffer struct {
	Cpu *CpuBuffer
	Gpu *GpuBuffer
}

// FromCpu wraps a CpuBuffer as a Buffer.
func FromCpu(b *CpuBuffer) Buffer { return Buffer{Cpu: b} }

// FromGpu wraps a GpuBuffer as a Buffer.
func FromGpu(b *GpuBuffer) Buffer { return Buffer{Gpu: b} }

// IsCpu reports whether the buffer currently lives in host memory.
func (b Buffer) IsCpu() bool { return b.Cpu != nil }

// IsGpu reports whether the buffer currently lives in device memory.
func (b Buffer) IsGpu() bool { return b.Gpu != nil }

// EnsureCpu returns a CpuBuffer view of b, promoting from the device via
// uploader.Download if b currently lives on the GPU. The result is not
// cached back onto b; callers that want memoized promotion should do so at
// the Frame level (see pkg/frame), which rewraps the owning Frame on
// success.
func EnsureCpu(ctx context.Context, b Buffer, uploader Uploader) (*CpuBuffer, error) {
	if b.Cpu != nil {
		return b.Cpu, nil
	}
	if b.Gpu == nil {
		return nil, fmt.Errorf("buffer: neither cpu nor gpu side is populated")
	}
	data, err := uploader.Download(ctx, b.Gpu.handle)
	if err != nil {
		return nil, fmt.Errorf("buffer: downloading gpu buffer to cpu: %w", err)
	}
	return WrapCpuBuffer(data), nil
}

// EnsureGpu returns a GpuBuffer view of b, promoting from the host via
// uploader.Upload if b currently lives in CPU memory.
func EnsureGpu(ctx context.Context, b Buffer, uploader Uploader) (*GpuBuffer, error) {
	if b.Gpu != nil {
		return b.Gpu, nil
	}
	if b.Cpu == nil {
		return nil, fmt.Errorf("buffer: neither cpu nor gpu side is populated")
	}
	handle, err := uploader.Upload(ctx, b.Cpu.AsSlice())
	if err != nil {
		return nil, fmt.Errorf("buffer: uploading cpu buffer to gpu: %w", err)
	}
	return NewGpuBuffer(handle), nil
}
