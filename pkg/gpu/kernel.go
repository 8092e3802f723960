package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Kernel is a compiled compute shader plus the pipeline layout it was
// built against. A Kernel can be built once and reused across dispatches;
// no transform node in this repository builds one, since every shipped
// transform runs on the CPU.
type Kernel struct {
	device   *Device
	pipeline *wgpu.ComputePipeline
	layout   *wgpu.BindGroupLayout
}

// NewKernel compiles a WGSL compute shader and builds the single bind
// group layout its entry point declares, mirroring the relevant half of
// the renderer backend's RegisterRenderPipeline (compute side only: one
// shader stage, one bind group, no vertex/fragment pairing).
func NewKernel(d *Device, label, wgslSource, entryPoint string, layoutEntries []wgpu.BindGroupLayoutEntry) (*Kernel, error) {
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: wgslSource,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: compiling shader %q: %w", label, err)
	}

	bgl, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label + " bind group layout",
		Entries: layoutEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: creating bind group layout for %q: %w", label, err)
	}

	pipelineLayout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label + " pipeline layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: creating pipeline layout for %q: %w", label, err)
	}

	pipeline, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  label + " compute pipeline",
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: entryPoint,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: creating compute pipeline for %q: %w", label, err)
	}

	return &Kernel{device: d, pipeline: pipeline, layout: bgl}, nil
}

// BindGroup creates a bind group for this kernel's layout from a set of
// buffers keyed by binding index. Kernels are stateless across frames, so
// a fresh bind group is built per dispatch rather than cached; the
// buffers bound to a given frame change every call anyway.
func (k *Kernel) BindGroup(label string, bindings map[uint32]*Buffer) (*wgpu.BindGroup, error) {
	entries := make([]wgpu.BindGroupEntry, 0, len(bindings))
	for binding, buf := range bindings {
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: binding,
			Buffer:  buf.buf,
			Size:    buf.size,
		})
	}
	bg, err := k.device.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  k.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: creating bind group %q: %w", label, err)
	}
	return bg, nil
}

// Dispatch runs one compute pass of the kernel over bindings, sized to
// workGroupCount in each of the three dimensions, and blocks until the
// queue submission completes.
func (k *Kernel) Dispatch(label string, bindings map[uint32]*Buffer, workGroupCount [3]uint32) error {
	bg, err := k.BindGroup(label, bindings)
	if err != nil {
		return err
	}
	defer bg.Release()

	k.device.mu.Lock()
	defer k.device.mu.Unlock()

	encoder, err := k.device.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("gpu: creating command encoder for dispatch %q: %w", label, err)
	}

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(workGroupCount[0], workGroupCount[1], workGroupCount[2])
	pass.End()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return fmt.Errorf("gpu: finishing dispatch %q: %w", label, err)
	}
	k.device.queue.Submit(cmd)
	cmd.Release()
	encoder.Release()
	k.device.device.Poll(true, nil)
	return nil
}
