package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

type countingNode struct {
	calls atomic.Int64
	delay time.Duration
}

func (n *countingNode) Pull(_ context.Context, req pipeline.Request) (payload.Payload, error) {
	n.calls.Add(1)
	if n.delay > 0 {
		time.Sleep(n.delay)
	}
	return payload.New(req.FrameNumber), nil
}
func (n *countingNode) Caps() pipeline.Caps { return pipeline.Caps{} }

func TestPullDeduplicatesConcurrentRequestsForSameFrame(t *testing.T) {
	t.Parallel()

	src := &countingNode{delay: 20 * time.Millisecond}
	// fanOut=8 models 8 distinct downstream nodes each declared to pull
	// this cache once; all 8 concurrent calls below drain its refcount to
	// zero exactly, with no caller-driven release required.
	c := New(src, 4, 8, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_, err := c.Pull(ctx, pipeline.Request{FrameNumber: 3})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := src.calls.Load(); got != 1 {
		t.Fatalf("upstream Pull called %d times, want 1", got)
	}
}

func TestPullWithPinCacheDoesNotDecrementRefcount(t *testing.T) {
	t.Parallel()

	src := &countingNode{}
	// fanOut=1: the lone declared consumer pins its request, so its serve
	// must not drain the entry's refcount to zero.
	c := New(src, 1, 1, nil)
	pinnedCtx := pipeline.WithExtra(context.Background(), pipeline.ExtraKeyPinCache, true)

	if _, err := c.Pull(pinnedCtx, pipeline.Request{FrameNumber: 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A second, unpinned pull for a different frame should not be able to
	// evict frame 0: its refcount is still at its initial value.
	waitCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := c.Pull(waitCtx, pipeline.Request{FrameNumber: 1})
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected frame 1 to block: pinned frame 0 should not have been evicted")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("pull for frame 1 did not return even after its context timed out")
	}
}

func TestPullEvictsUnpinnedEntriesUnderCapacityPressure(t *testing.T) {
	t.Parallel()

	src := &countingNode{}
	// fanOut=1: a single declared consumer, so the frame-0 entry's
	// refcount drains to zero as soon as this one Pull is served, making
	// it evictable without any caller-driven release.
	c := New(src, 1, 1, nil)
	ctx := context.Background()

	_, err := c.Pull(ctx, pipeline.Request{FrameNumber: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.Pull(ctx, pipeline.Request{FrameNumber: 1})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out: frame 1 should have evicted released frame 0")
	}
}
