// Package pipeline implements the DAG-structured, pull-based processing
// graph: node contracts, the parameter system nodes are constructed from,
// graph building from a declarative configuration, and the ordered and
// unordered pullers that drive frames through the graph in priority order.
package pipeline

import (
	"context"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/reactor"
)

// NodeID names a node within a built graph. Configuration refers to nodes
// by NodeID when wiring one node's input to another's output.
type NodeID string

// Caps describes what a node promises about the stream of frames it can
// produce: how many frames exist (nil for an unbounded/live source) and
// whether the source is live, which affects whether the ordered puller's
// lookahead window is even meaningful (a live source cannot be pulled out
// of order relative to wall-clock arrival).
type Caps struct {
	FrameCount *uint64
	IsLive     bool
}

// Request is everything a node needs to answer a single Pull: which frame
// and at what scheduling priority. Cancellation travels in the ctx passed
// to Pull alongside it.
type Request struct {
	FrameNumber uint64
	Priority    reactor.Priority
}

// Extra keys let a puller attach side-band hints to a Request without
// widening the Request struct for every one-off case; the cache node's
// PinCache flag (§4.6) is the motivating example: most nodes ignore it
// entirely.
type extraKey string

// ExtraKeyPinCache marks a request as wanting its result kept in cache
// past the point where the requesting puller itself is done with it.
const ExtraKeyPinCache extraKey = "pin-cache"

// WithExtra attaches a side-band value to ctx, retrievable via Extra.
func WithExtra(ctx context.Context, key any, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

// Extra retrieves a side-band value attached via WithExtra, reporting
// whether it was present.
func Extra[T any](ctx context.Context, key any) (T, bool) {
	v, ok := ctx.Value(key).(T)
	return v, ok
}

// Node is implemented by every processing node that produces payloads on
// demand. Pull must be safe to call concurrently for different frame
// numbers; a node that cannot support concurrent pulls (e.g. the dual-frame
// decoder, which maintains ordering state) must serialize internally.
type Node interface {
	// Pull produces the payload for the requested frame, blocking until it
	// is available or ctx is cancelled.
	Pull(ctx context.Context, req Request) (payload.Payload, error)
	// Caps reports what this node promises about its output stream.
	Caps() Caps
}

// SinkNode is implemented by terminal nodes that drive the graph by
// pulling from their own inputs rather than being pulled themselves (e.g.
// a writer or a benchmark sink). Run blocks until the node's work is
// complete or ctx is cancelled.
type SinkNode interface {
	Run(ctx context.Context, progress func(ProgressUpdate)) error
}

// ProgressUpdate reports a sink's advancement through its input stream,
// used to drive CLI progress reporting.
type ProgressUpdate struct {
	FramesDone  uint64
	FramesTotal *uint64
}
