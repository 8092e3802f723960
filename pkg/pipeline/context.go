package pipeline

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"go.uber.org/zap"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/gpu"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/reactor"
)

// envNumThreads overrides the reactor's worker pool size when set.
const envNumThreads = "RECORDER_NUM_THREADS"

// Context bundles everything a node needs beyond its own parameters:
// the priority reactor all asynchronous pulls schedule work on, and the
// GPU device, if one was requested by the graph's configuration. Device
// is nil when the graph uses no GPU nodes, since initializing WebGPU has
// real cost and most graphs (the CLI's CPU-only raw pipelines, in
// particular) never touch it.
type Context struct {
	Reactor    *reactor.Reactor
	Device     *gpu.Device
	NumThreads int
	Logger     *zap.Logger
}

// NewContext creates a Context with a reactor sized either from the
// RECORDER_NUM_THREADS environment variable or runtime.NumCPU. device may
// be nil. logger may be nil, in which case the reactor recovers panics
// silently instead of logging them.
func NewContext(device *gpu.Device, logger *zap.Logger) *Context {
	n := numThreads()
	return &Context{
		Reactor:    reactor.New(n, 256, 0, logger),
		Device:     device,
		NumThreads: n,
		Logger:     logger,
	}
}

func numThreads() int {
	if raw := os.Getenv(envNumThreads); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

// RequireDevice returns the Context's GPU device or an error if the graph
// was built without one, for nodes whose constructor demands GPU access.
func (c *Context) RequireDevice() (*gpu.Device, error) {
	if c.Device == nil {
		return nil, fmt.Errorf("pipeline: this node requires a gpu device but none was configured")
	}
	return c.Device, nil
}

// Spawn schedules fn on the reactor at the given priority. It is a thin
// forwarding method so node implementations depend on *Context rather than
// reaching into pkg/reactor directly.
func (c *Context) Spawn(priority reactor.Priority, fn func()) {
	c.Reactor.Spawn(priority, fn)
}

// Close releases the Context's reactor and, if present, its GPU device.
func (c *Context) Close() {
	c.Reactor.Close()
	if c.Device != nil {
		c.Device.Close()
	}
}

// BlockOn runs fn to completion, blocking the calling goroutine. It exists
// to give synchronous call sites (tests, the CLI's single-shot commands) a
// named spot for "run this pipeline operation and wait", even though in Go
// the call itself is already synchronous — the value is documentation,
// not behavior.
func BlockOn[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	return fn(ctx)
}
