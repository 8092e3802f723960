// Package cache implements the demand-deduplicating cache node: when
// several consumers pull the same frame concurrently, only one of them
// actually drives the upstream Pull, and the rest wait on the shared
// result. An entry's reference count is seeded from the number of distinct
// downstream nodes declared to use this cache as an input (is_input_to) and
// decremented automatically as each of them is served, rather than by a
// caller-driven release call: a frame becomes evictable exactly once every
// consumer the graph declared for it has received its value. A pinned
// request (pipeline.ExtraKeyPinCache) keeps its entry alive past that
// point, trading memory for avoiding a redundant re-decode later in the
// same run.
package cache

import (
	"context"
	"fmt"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/notifier"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

type entry struct {
	value  payload.Payload
	err    error
	ready  bool
	refs   int
	pinned bool
}

type table struct {
	entries map[uint64]*entry
}

// Node caches the output of a single upstream input, keyed by frame
// number. capacity bounds how many distinct frame numbers may be resident
// at once; once full, admitting a new frame number requires evicting an
// existing entry that is ready, unpinned, and has no outstanding
// references. fanOut is the number of distinct downstream nodes declared
// to pull from this cache, and seeds every entry's refcount: an entry
// becomes evictable once it has been served that many times.
type Node struct {
	input    pipeline.Node
	capacity int
	fanOut   int
	ctx      *pipeline.Context
	t        *notifier.Notifier[table]
}

// New wraps input in a Cache node with room for capacity distinct frames.
// fanOut is the number of other nodes in the graph declared to use this
// cache as an input; it is clamped to at least 1 so a cache with no
// declared consumer (used standalone, e.g. in tests) still evicts. pctx
// may be nil, in which case the owning caller's upstream pull runs
// directly rather than through a reactor runnable (only ever true in
// tests that construct a Node without a full graph Context).
func New(input pipeline.Node, capacity, fanOut int, pctx *pipeline.Context) *Node {
	if fanOut < 1 {
		fanOut = 1
	}
	return &Node{
		input:    input,
		capacity: capacity,
		fanOut:   fanOut,
		ctx:      pctx,
		t:        notifier.New(table{entries: make(map[uint64]*entry)}),
	}
}

// Caps forwards the input's capability description unchanged; caching
// does not change what frames exist, only how many times they are
// recomputed.
func (n *Node) Caps() pipeline.Caps {
	return n.input.Caps()
}

// Pull returns the cached payload for req.FrameNumber, driving the
// upstream pull itself if this is the first request for that frame, or
// waiting for an in-flight pull by another caller otherwise. Every served
// call — the owner's and every waiter's — decrements the entry's refcount
// by one once its value has been handed back, unless the request carries
// ExtraKeyPinCache, in which case this particular serve does not count
// against the frame's remaining demand. No separate release call is
// required from the caller either way.
func (n *Node) Pull(ctx context.Context, req pipeline.Request) (payload.Payload, error) {
	pinned, _ := pipeline.Extra[bool](ctx, pipeline.ExtraKeyPinCache)
	frameNumber := req.FrameNumber

	owns, err := n.admit(ctx, frameNumber, pinned)
	if err != nil {
		return payload.Payload{}, err
	}

	if owns {
		value, pullErr := n.pullUpstream(ctx, req)
		notifier.Update(n.t, func(tb *table) struct{} {
			e := tb.entries[frameNumber]
			e.value, e.err, e.ready = value, pullErr, true
			return struct{}{}
		})
		if !pinned {
			n.release(frameNumber)
		}
		if pullErr != nil {
			return payload.Payload{}, pullErr
		}
		return value, nil
	}

	tb, err := n.t.Wait(ctx, func(tb table) bool {
		e, ok := tb.entries[frameNumber]
		return ok && e.ready
	})
	if err != nil {
		return payload.Payload{}, err
	}
	e := tb.entries[frameNumber]
	value, pullErr := e.value, e.err
	if !pinned {
		n.release(frameNumber)
	}
	if pullErr != nil {
		return payload.Payload{}, pullErr
	}
	return value, nil
}

// pullUpstream drives the single upstream Pull that serves every consumer
// of frameNumber, dispatching it through the reactor (when one is
// configured) so its priority governs when it actually runs relative to
// every other in-flight pull in the graph.
func (n *Node) pullUpstream(ctx context.Context, req pipeline.Request) (payload.Payload, error) {
	if n.ctx == nil {
		return n.input.Pull(ctx, req)
	}
	resultCh := make(chan struct {
		value payload.Payload
		err   error
	}, 1)
	n.ctx.Spawn(req.Priority, func() {
		v, err := n.input.Pull(ctx, req)
		resultCh <- struct {
			value payload.Payload
			err   error
		}{v, err}
	})
	select {
	case res := <-resultCh:
		return res.value, res.err
	case <-ctx.Done():
		return payload.Payload{}, ctx.Err()
	}
}

// admit registers the caller's interest in frameNumber, blocking until
// either an existing entry can be joined or capacity allows a new one to
// be created. It reports whether the caller must drive the upstream pull.
// A freshly created entry's refcount is seeded from fanOut, not
// incremented per joiner: fanOut already counts every distinct consumer
// that will eventually call Pull for this frame.
func (n *Node) admit(ctx context.Context, frameNumber uint64, pinned bool) (bool, error) {
	tb, err := n.t.Wait(ctx, func(tb table) bool {
		if _, ok := tb.entries[frameNumber]; ok {
			return true
		}
		return len(tb.entries) < n.capacity || findEvictable(tb) != noEvictable
	})
	if err != nil {
		return false, err
	}

	return notifier.Update(n.t, func(tb *table) bool {
		if e, ok := tb.entries[frameNumber]; ok {
			if pinned {
				e.pinned = true
			}
			return false
		}
		if len(tb.entries) >= n.capacity {
			if victim := findEvictable(*tb); victim != noEvictable {
				delete(tb.entries, victim)
			}
		}
		tb.entries[frameNumber] = &entry{refs: n.fanOut, pinned: pinned}
		return true
	}), nil
}

// findEvictable returns the frame number of an entry eligible for
// eviction (ready, unpinned, unreferenced), or noEvictable if none
// qualifies. Frame numbers are assigned sequentially from zero, so the
// all-ones sentinel is never a real frame number.
func findEvictable(tb table) uint64 {
	for fn, e := range tb.entries {
		if e.ready && !e.pinned && e.refs == 0 {
			return fn
		}
	}
	return noEvictable
}

// noEvictable is a sentinel outside the valid frame-number domain used
// internally by findEvictable; frame numbers are compared against it with
// plain equality since a real capture never produces this value.
const noEvictable = ^uint64(0)

// release decrements frameNumber's entry refcount after it has been
// served to one caller, making the entry eligible for eviction once the
// count reaches zero (unless pinned). Called automatically from Pull;
// never exposed for callers to invoke themselves.
func (n *Node) release(frameNumber uint64) {
	notifier.Update(n.t, func(tb *table) struct{} {
		e, ok := tb.entries[frameNumber]
		if !ok {
			return struct{}{}
		}
		e.refs--
		if e.refs < 0 {
			panic(fmt.Sprintf("cache: refcount underflow for frame %d", frameNumber))
		}
		return struct{}{}
	})
}

// Factory registers Node under the name "cache".
type Factory struct{}

func (Factory) Describe() pipeline.ParametersDescriptor {
	return pipeline.ParametersDescriptor{
		"input":    pipeline.Mandatory(pipeline.ParameterNodeInput),
		"capacity": pipeline.Optional(pipeline.ParameterInt, pipeline.ParameterValue{Kind: pipeline.ParameterInt, Int: 4}),
	}
}

func (Factory) FromParameters(params pipeline.Parameters, inputs map[string]pipeline.Node, isInputTo []pipeline.NodeID, ctx *pipeline.Context) (pipeline.Node, error) {
	capacity, err := params.Int("capacity")
	if err != nil {
		return nil, err
	}
	return New(inputs["input"], int(capacity), len(isInputTo), ctx), nil
}
