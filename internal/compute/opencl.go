//go:build opencl

package compute

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jgillich/go-opencl/cl"
)

const solverKernelSource = `__kernel void coefficients(
    const int cells,
    const float dt,
    const float cell_size,
    __global const float* material,
    __global float* coeffs)
{
    int i = get_global_id(0);
    if (i >= cells) {
        return;
    }
    float mu = material[i * 3];
    float eps = material[i * 3 + 1];
    float sigma = material[i * 3 + 2];
    float ce = sigma * dt / (2.0f * mu);
    float de = 1.0f / (1.0f + ce);
    float cm = sigma * dt / (2.0f * eps);
    float dm = 1.0f / (1.0f + cm);
    int o = i * 4;
    coeffs[o]     = (1.0f - ce) * de;
    coeffs[o + 1] = dt / (mu * cell_size) * de;
    coeffs[o + 2] = (1.0f - cm) * dm;
    coeffs[o + 3] = dt / (eps * cell_size) * dm;
}

__kernel void inject(
    const int n,
    const float dt,
    __global const float* prev_e,
    __global const float* prev_s,
    __global float* e)
{
    int i = get_global_id(0);
    if (i >= n) {
        return;
    }
    e[i] = prev_e[i] + dt * prev_s[i];
}

__kernel void decay(
    const int n,
    const float factor,
    __global const float* prev_s,
    __global float* s)
{
    int i = get_global_id(0);
    if (i >= n) {
        return;
    }
    s[i] = prev_s[i] * factor;
}

__kernel void stamp(
    const int width,
    const int height,
    const float cx,
    const float cy,
    const float rx,
    const float ry,
    const float vx,
    const float vy,
    const float vz,
    const float keep,
    __global const float* prev_s,
    __global float* s)
{
    int i = get_global_id(0);
    if (i >= width * height) {
        return;
    }
    float dx = ((float)(i % width) - cx) / rx;
    float dy = ((float)(i / width) - cy) / ry;
    int o = i * 3;
    if (dx * dx + dy * dy <= 1.0f) {
        s[o]     = vx + keep * prev_s[o];
        s[o + 1] = vy + keep * prev_s[o + 1];
        s[o + 2] = vz + keep * prev_s[o + 2];
    } else {
        s[o]     = prev_s[o];
        s[o + 1] = prev_s[o + 1];
        s[o + 2] = prev_s[o + 2];
    }
}

__kernel void update_electric(
    const int width,
    const int height,
    const int open_boundary,
    __global const float* prev_e,
    __global const float* h,
    __global const float* coeffs,
    __global float* e)
{
    int i = get_global_id(0);
    if (i >= width * height) {
        return;
    }
    int x = i % width;
    int y = i / width;
    int o = i * 3;
    if (open_boundary != 0) {
        int sx = x;
        int sy = y;
        int band = 0;
        if (x < 2) { sx = x + 2; band = 1; } else if (x >= width - 2) { sx = x - 2; band = 1; }
        if (y < 2) { sy = y + 2; band = 1; } else if (y >= height - 2) { sy = y - 2; band = 1; }
        if (band != 0) {
            int so = (clamp(sy, 0, height - 1) * width + clamp(sx, 0, width - 1)) * 3;
            e[o]     = prev_e[so];
            e[o + 1] = prev_e[so + 1];
            e[o + 2] = prev_e[so + 2];
            return;
        }
    }
    int xm = max(x - 1, 0);
    int ym = max(y - 1, 0);
    int ox = (y * width + xm) * 3;
    int oy = (ym * width + x) * 3;
    float ae = coeffs[i * 4];
    float be = coeffs[i * 4 + 1];
    e[o]     = ae * prev_e[o]     + be * (h[o + 2] - h[oy + 2]);
    e[o + 1] = ae * prev_e[o + 1] + be * (h[ox + 2] - h[o + 2]);
    e[o + 2] = ae * prev_e[o + 2] + be * ((h[o + 1] - h[ox + 1]) - (h[o] - h[oy]));
}

__kernel void update_magnetic(
    const int width,
    const int height,
    const int open_boundary,
    __global const float* prev_h,
    __global const float* e,
    __global const float* coeffs,
    __global float* h)
{
    int i = get_global_id(0);
    if (i >= width * height) {
        return;
    }
    int x = i % width;
    int y = i / width;
    int o = i * 3;
    if (open_boundary != 0) {
        int sx = x;
        int sy = y;
        int band = 0;
        if (x < 2) { sx = x + 2; band = 1; } else if (x >= width - 2) { sx = x - 2; band = 1; }
        if (y < 2) { sy = y + 2; band = 1; } else if (y >= height - 2) { sy = y - 2; band = 1; }
        if (band != 0) {
            int so = (clamp(sy, 0, height - 1) * width + clamp(sx, 0, width - 1)) * 3;
            h[o]     = prev_h[so];
            h[o + 1] = prev_h[so + 1];
            h[o + 2] = prev_h[so + 2];
            return;
        }
    }
    int xp = min(x + 1, width - 1);
    int yp = min(y + 1, height - 1);
    int ox = (y * width + xp) * 3;
    int oy = (yp * width + x) * 3;
    float am = coeffs[i * 4 + 2];
    float bm = coeffs[i * 4 + 3];
    h[o]     = am * prev_h[o]     - bm * (e[oy + 2] - e[o + 2]);
    h[o + 1] = am * prev_h[o + 1] - bm * (e[o + 2] - e[ox + 2]);
    h[o + 2] = am * prev_h[o + 2] - bm * ((e[ox + 1] - e[o + 1]) - (e[oy] - e[o]));
}`

// OpenCLBackend dispatches the grid passes to an OpenCL device. Inputs are
// uploaded and the output read back around every pass; device buffers are
// reused across calls and grown on demand.
type OpenCLBackend struct {
	context *cl.Context
	queue   *cl.CommandQueue
	program *cl.Program

	coeffKernel    *cl.Kernel
	injectKernel   *cl.Kernel
	decayKernel    *cl.Kernel
	stampKernel    *cl.Kernel
	electricKernel *cl.Kernel
	magneticKernel *cl.Kernel

	in    [3]*cl.MemObject
	inCap [3]int

	out    *cl.MemObject
	outCap int

	deviceName string
}

// NewOpenCLBackend finds a device (GPU preferred, CPU device as fallback),
// compiles the solver kernels, and returns the ready backend.
func NewOpenCLBackend() (Backend, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms; install OpenCL drivers and verify with `clinfo`"
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	if len(platforms) == 0 {
		return nil, errors.New("no OpenCL platforms available; ensure a vendor driver is installed and detected by `clinfo`")
	}

	var device *cl.Device
	for _, p := range platforms {
		devices, derr := p.GetDevices(cl.DeviceTypeGPU)
		if derr != nil && derr != cl.ErrDeviceNotFound {
			continue
		}
		if len(devices) > 0 {
			device = devices[0]
			break
		}
	}
	if device == nil {
		for _, p := range platforms {
			devices, derr := p.GetDevices(cl.DeviceTypeCPU)
			if derr != nil && derr != cl.ErrDeviceNotFound {
				continue
			}
			if len(devices) > 0 {
				device = devices[0]
				break
			}
		}
	}
	if device == nil {
		return nil, errors.New("no suitable OpenCL devices found")
	}

	context, err := cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, fmt.Errorf("creating OpenCL context: %w", err)
	}
	queue, err := context.CreateCommandQueue(device, 0)
	if err != nil {
		context.Release()
		return nil, fmt.Errorf("creating OpenCL command queue: %w", err)
	}
	program, err := context.CreateProgramWithSource([]string{solverKernelSource})
	if err != nil {
		queue.Release()
		context.Release()
		return nil, fmt.Errorf("creating OpenCL program: %w", err)
	}
	if err := program.BuildProgram([]*cl.Device{device}, ""); err != nil {
		program.Release()
		queue.Release()
		context.Release()
		if buildErr, ok := err.(cl.BuildError); ok {
			return nil, fmt.Errorf("building OpenCL program: %s", string(buildErr))
		}
		return nil, fmt.Errorf("building OpenCL program: %w", err)
	}

	names := []string{"coefficients", "inject", "decay", "stamp", "update_electric", "update_magnetic"}
	kernels := make([]*cl.Kernel, len(names))
	for i, name := range names {
		k, kerr := program.CreateKernel(name)
		if kerr != nil {
			for _, created := range kernels[:i] {
				created.Release()
			}
			program.Release()
			queue.Release()
			context.Release()
			return nil, fmt.Errorf("creating %s kernel: %w", name, kerr)
		}
		kernels[i] = k
	}

	return &OpenCLBackend{
		context:        context,
		queue:          queue,
		program:        program,
		coeffKernel:    kernels[0],
		injectKernel:   kernels[1],
		decayKernel:    kernels[2],
		stampKernel:    kernels[3],
		electricKernel: kernels[4],
		magneticKernel: kernels[5],
		deviceName:     device.Name(),
	}, nil
}

func (b *OpenCLBackend) Name() string       { return "opencl" }
func (b *OpenCLBackend) Available() bool    { return true }
func (b *OpenCLBackend) DeviceName() string { return b.deviceName }

func (b *OpenCLBackend) Cleanup() {
	for i, buf := range b.in {
		if buf != nil {
			buf.Release()
			b.in[i] = nil
		}
	}
	if b.out != nil {
		b.out.Release()
		b.out = nil
	}
	for _, k := range []**cl.Kernel{&b.coeffKernel, &b.injectKernel, &b.decayKernel, &b.stampKernel, &b.electricKernel, &b.magneticKernel} {
		if *k != nil {
			(*k).Release()
			*k = nil
		}
	}
	if b.program != nil {
		b.program.Release()
		b.program = nil
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.context != nil {
		b.context.Release()
		b.context = nil
	}
}

func (b *OpenCLBackend) upload(slot int, data []float32) (*cl.MemObject, error) {
	byteSize := len(data) * 4
	if b.in[slot] == nil || b.inCap[slot] < byteSize {
		if b.in[slot] != nil {
			b.in[slot].Release()
			b.in[slot] = nil
		}
		buf, err := b.context.CreateEmptyBuffer(cl.MemReadOnly, byteSize)
		if err != nil {
			return nil, fmt.Errorf("allocating input buffer: %w", err)
		}
		b.in[slot] = buf
		b.inCap[slot] = byteSize
	}
	if _, err := b.queue.EnqueueWriteBufferFloat32(b.in[slot], false, 0, data, nil); err != nil {
		return nil, fmt.Errorf("writing input buffer: %w", err)
	}
	return b.in[slot], nil
}

func (b *OpenCLBackend) output(n int) (*cl.MemObject, error) {
	byteSize := n * 4
	if b.out == nil || b.outCap < byteSize {
		if b.out != nil {
			b.out.Release()
			b.out = nil
		}
		buf, err := b.context.CreateEmptyBuffer(cl.MemWriteOnly, byteSize)
		if err != nil {
			return nil, fmt.Errorf("allocating output buffer: %w", err)
		}
		b.out = buf
		b.outCap = byteSize
	}
	return b.out, nil
}

func (b *OpenCLBackend) run(pass string, k *cl.Kernel, global int, dst *cl.MemObject, out []float32) error {
	if _, err := b.queue.EnqueueNDRangeKernel(k, nil, []int{global}, nil, nil); err != nil {
		return fmt.Errorf("enqueueing %s kernel: %w", pass, err)
	}
	if _, err := b.queue.EnqueueReadBufferFloat32(dst, true, 0, out, nil); err != nil {
		return fmt.Errorf("reading %s output: %w", pass, err)
	}
	return nil
}

func (b *OpenCLBackend) Coefficients(material, coeffs []float32, d Dims, dt, cellSize float32) error {
	if err := checkGrid("coefficients", d, matComps, material); err != nil {
		return err
	}
	if err := checkGrid("coefficients", d, coeffComps, coeffs); err != nil {
		return err
	}
	mat, err := b.upload(0, material)
	if err != nil {
		return err
	}
	dst, err := b.output(len(coeffs))
	if err != nil {
		return err
	}
	if err := b.coeffKernel.SetArgs(int32(d.Cells()), dt, cellSize, mat, dst); err != nil {
		return fmt.Errorf("setting coefficients kernel arguments: %w", err)
	}
	return b.run("coefficients", b.coeffKernel, d.Cells(), dst, coeffs)
}

func (b *OpenCLBackend) Inject(prevElectric, prevSource, electric []float32, d Dims, dt float32) error {
	if err := checkGrid("inject", d, fieldComps, prevElectric, prevSource, electric); err != nil {
		return err
	}
	pe, err := b.upload(0, prevElectric)
	if err != nil {
		return err
	}
	ps, err := b.upload(1, prevSource)
	if err != nil {
		return err
	}
	dst, err := b.output(len(electric))
	if err != nil {
		return err
	}
	n := d.Cells() * fieldComps
	if err := b.injectKernel.SetArgs(int32(n), dt, pe, ps, dst); err != nil {
		return fmt.Errorf("setting inject kernel arguments: %w", err)
	}
	return b.run("inject", b.injectKernel, n, dst, electric)
}

func (b *OpenCLBackend) Decay(prevSource, source []float32, d Dims, factor float32) error {
	if err := checkGrid("decay", d, fieldComps, prevSource, source); err != nil {
		return err
	}
	ps, err := b.upload(0, prevSource)
	if err != nil {
		return err
	}
	dst, err := b.output(len(source))
	if err != nil {
		return err
	}
	n := d.Cells() * fieldComps
	if err := b.decayKernel.SetArgs(int32(n), factor, ps, dst); err != nil {
		return fmt.Errorf("setting decay kernel arguments: %w", err)
	}
	return b.run("decay", b.decayKernel, n, dst, source)
}

func (b *OpenCLBackend) Stamp(prevSource, source []float32, d Dims, m Mask, value [3]float32, keep float32) error {
	if err := checkGrid("stamp", d, fieldComps, prevSource, source); err != nil {
		return err
	}
	ps, err := b.upload(0, prevSource)
	if err != nil {
		return err
	}
	dst, err := b.output(len(source))
	if err != nil {
		return err
	}
	if err := b.stampKernel.SetArgs(
		int32(d.W), int32(d.H),
		m.CX, m.CY, m.RX, m.RY,
		value[0], value[1], value[2], keep,
		ps, dst,
	); err != nil {
		return fmt.Errorf("setting stamp kernel arguments: %w", err)
	}
	return b.run("stamp", b.stampKernel, d.Cells(), dst, source)
}

func (b *OpenCLBackend) UpdateElectric(prevElectric, magnetic, coeffs, electric []float32, d Dims, bd Boundary) error {
	if err := checkGrid("electric", d, fieldComps, prevElectric, magnetic, electric); err != nil {
		return err
	}
	if err := checkGrid("electric", d, coeffComps, coeffs); err != nil {
		return err
	}
	pe, err := b.upload(0, prevElectric)
	if err != nil {
		return err
	}
	h, err := b.upload(1, magnetic)
	if err != nil {
		return err
	}
	cf, err := b.upload(2, coeffs)
	if err != nil {
		return err
	}
	dst, err := b.output(len(electric))
	if err != nil {
		return err
	}
	open := int32(0)
	if bd == BoundaryOpen {
		open = 1
	}
	if err := b.electricKernel.SetArgs(int32(d.W), int32(d.H), open, pe, h, cf, dst); err != nil {
		return fmt.Errorf("setting electric kernel arguments: %w", err)
	}
	return b.run("electric", b.electricKernel, d.Cells(), dst, electric)
}

func (b *OpenCLBackend) UpdateMagnetic(prevMagnetic, electric, coeffs, magnetic []float32, d Dims, bd Boundary) error {
	if err := checkGrid("magnetic", d, fieldComps, prevMagnetic, electric, magnetic); err != nil {
		return err
	}
	if err := checkGrid("magnetic", d, coeffComps, coeffs); err != nil {
		return err
	}
	ph, err := b.upload(0, prevMagnetic)
	if err != nil {
		return err
	}
	e, err := b.upload(1, electric)
	if err != nil {
		return err
	}
	cf, err := b.upload(2, coeffs)
	if err != nil {
		return err
	}
	dst, err := b.output(len(magnetic))
	if err != nil {
		return err
	}
	open := int32(0)
	if bd == BoundaryOpen {
		open = 1
	}
	if err := b.magneticKernel.SetArgs(int32(d.W), int32(d.H), open, ph, e, cf, dst); err != nil {
		return fmt.Errorf("setting magnetic kernel arguments: %w", err)
	}
	return b.run("magnetic", b.magneticKernel, d.Cells(), dst, magnetic)
}
