// Package gpu wraps the WebGPU device, queue, and buffer types used as
// this project's device context for compute dispatch: every GPU-capable
// node talks to a Device rather than to the wgpu package directly, so the
// compute-dispatch contract stays stable if
// the backend is ever swapped.
package gpu

import (
	"context"
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/buffer"
)

// Device owns a WebGPU adapter, logical device, and command queue. It is
// created headlessly — no surface, no swapchain — since every use in this
// project is compute dispatch over frame buffers, never presentation.
type Device struct {
	mu       sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
}

// NewDevice requests a headless adapter and logical device. forceFallback
// requests a software adapter, useful in CI environments without a real
// GPU; production use leaves it false.
func NewDevice(forceFallback bool) (*Device, error) {
	instance := wgpu.CreateInstance(nil)

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallback,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: requesting adapter: %w", err)
	}

	limits := wgpu.DefaultLimits()
	d, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "recorder compute device",
		RequiredLimits: &wgpu.RequiredLimits{Limits: limits},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: requesting device: %w", err)
	}

	return &Device{
		instance: instance,
		adapter:  adapter,
		device:   d,
		queue:    d.GetQueue(),
	}, nil
}

// Close releases the logical device handle. The queue, adapter and
// instance handles are not released.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
}

// Buffer wraps a *wgpu.Buffer as a buffer.GpuHandle so pkg/buffer's
// promotion helpers can operate on it without importing this package.
type Buffer struct {
	buf  *wgpu.Buffer
	size uint64
}

func (b *Buffer) Size() uint64 { return b.size }
func (b *Buffer) Release()     { b.buf.Release() }

// Raw returns the underlying *wgpu.Buffer for use in bind group creation
// and compute dispatch, which this package's callers (pkg/gpu.Kernel) need
// but pkg/buffer intentionally does not.
func (b *Buffer) Raw() *wgpu.Buffer { return b.buf }

// Upload allocates a storage buffer sized to len(data), copy-dst capable,
// and writes data into it via the queue. It implements buffer.Uploader.
func (d *Device) Upload(_ context.Context, data []byte) (buffer.GpuHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	size := uint64(len(data))
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            "frame storage buffer",
		Size:             size,
		Usage:            wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: creating storage buffer: %w", err)
	}
	d.queue.WriteBuffer(buf, 0, data)
	return &Buffer{buf: buf, size: size}, nil
}

// Download reads a device buffer back to host memory by copying it into a
// map-read staging buffer, mapping it, and copying the mapped range out.
// It implements buffer.Uploader.
func (d *Device) Download(ctx context.Context, handle buffer.GpuHandle) ([]byte, error) {
	b, ok := handle.(*Buffer)
	if !ok {
		return nil, fmt.Errorf("gpu: download called with a non-gpu buffer handle")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            "readback staging buffer",
		Size:             b.size,
		Usage:            wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: creating staging buffer: %w", err)
	}
	defer staging.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("gpu: creating command encoder: %w", err)
	}
	encoder.CopyBufferToBuffer(b.buf, 0, staging, 0, b.size)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return nil, fmt.Errorf("gpu: finishing readback command buffer: %w", err)
	}
	d.queue.Submit(cmd)
	cmd.Release()
	encoder.Release()

	done := make(chan error, 1)
	staging.MapAsync(wgpu.MapModeRead, 0, b.size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			done <- fmt.Errorf("gpu: mapping staging buffer failed: %v", status)
			return
		}
		done <- nil
	})

	for {
		d.device.Poll(true, nil)
		select {
		case err := <-done:
			if err != nil {
				return nil, err
			}
			mapped := staging.GetMappedRange(0, uint(b.size))
			out := make([]byte, len(mapped))
			copy(out, mapped)
			staging.Unmap()
			return out, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
}
