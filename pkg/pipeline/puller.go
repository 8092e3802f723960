package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/reactor"
)

// PullUnordered pulls every frame in [start, start+count) from node
// concurrently, fanning out across the reactor, and reports progress as
// frames complete — but does not preserve completion order. It is the
// right choice for a sink that only aggregates results (a benchmark sink,
// a histogram) and does not care which frame finishes first. Every pull
// runs as a reactor runnable rather than a plain goroutine, so pctx's
// priority heap — not ambient goroutine scheduling — decides which frame
// actually executes next when the worker pool is saturated.
func PullUnordered(
	ctx context.Context,
	pctx *Context,
	node Node,
	outputPriority uint8,
	start, count uint64,
	onProgress func(ProgressUpdate),
) error {
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var done uint64
	total := count

	for i := uint64(0); i < count; i++ {
		frameNumber := start + i
		g.Go(func() error {
			priority := reactor.NewPriority(outputPriority, frameNumber)
			resultCh := make(chan error, 1)
			pctx.Spawn(priority, func() {
				_, err := node.Pull(gctx, Request{
					FrameNumber: frameNumber,
					Priority:    priority,
				})
				resultCh <- err
			})
			select {
			case err := <-resultCh:
				if err != nil {
					return err
				}
			case <-gctx.Done():
				return gctx.Err()
			}
			mu.Lock()
			done++
			d := done
			mu.Unlock()
			if onProgress != nil {
				onProgress(ProgressUpdate{FramesDone: d, FramesTotal: &total})
			}
			return nil
		})
	}

	return g.Wait()
}

// OrderedPuller pulls frames from node in strictly increasing order,
// keeping up to windowSize pulls in flight ahead of the last frame
// handed to the consumer's queue. A background goroutine keeps the
// lookahead window full: as soon as the oldest in-flight pull completes and
// its result is queued for Next, it launches the next one. Up to
// windowSize completed results can wait in that queue.
type OrderedPuller struct {
	node           Node
	pctx           *Context
	outputPriority uint8
	windowSize     int
	results        chan pullResult
	cancel         context.CancelFunc
	wg             sync.WaitGroup
}

type pullResult struct {
	frameNumber uint64
	payload     payload.Payload
	err         error
}

// NewOrderedPuller starts pulling frames [start, start+count) from node in
// order, keeping windowSize pulls in flight. Close must be called once the
// consumer is done to stop the background goroutine. Each in-flight pull
// is dispatched through pctx's reactor, so priority — not raw goroutine
// scheduling — governs execution order once the worker pool is saturated.
func NewOrderedPuller(ctx context.Context, pctx *Context, node Node, outputPriority uint8, start, count uint64, windowSize int) *OrderedPuller {
	pullCtx, cancel := context.WithCancel(ctx)
	p := &OrderedPuller{
		node:           node,
		pctx:           pctx,
		outputPriority: outputPriority,
		windowSize:     windowSize,
		results:        make(chan pullResult, windowSize),
		cancel:         cancel,
	}

	p.wg.Add(1)
	go p.run(pullCtx, start, count)
	return p
}

func (p *OrderedPuller) run(ctx context.Context, start, count uint64) {
	defer p.wg.Done()
	defer close(p.results)

	type inflight struct {
		frameNumber uint64
		ch          chan pullResult
	}

	window := make([]inflight, 0, p.windowSize)
	next := start
	end := start + count

	launch := func(frameNumber uint64) inflight {
		ch := make(chan pullResult, 1)
		fn := frameNumber
		priority := reactor.NewPriority(p.outputPriority, fn)
		p.pctx.Spawn(priority, func() {
			v, err := p.node.Pull(ctx, Request{
				FrameNumber: fn,
				Priority:    priority,
			})
			ch <- pullResult{frameNumber: fn, payload: v, err: err}
		})
		return inflight{frameNumber: frameNumber, ch: ch}
	}

	for len(window) < p.windowSize && next < end {
		window = append(window, launch(next))
		next++
	}

	for len(window) > 0 {
		head := window[0]
		var res pullResult
		select {
		case res = <-head.ch:
		case <-ctx.Done():
			return
		}

		select {
		case p.results <- res:
		case <-ctx.Done():
			return
		}
		if res.err != nil {
			return
		}

		window = window[1:]
		if next < end {
			window = append(window, launch(next))
			next++
		}
	}
}

// Next blocks for the next frame in order. Once every frame has been
// delivered it returns ok=false with a nil error; it returns the pull's
// error if a pull failed, and ctx's error if ctx is cancelled first.
func (p *OrderedPuller) Next(ctx context.Context) (payload.Payload, uint64, bool, error) {
	select {
	case res, ok := <-p.results:
		if !ok {
			return payload.Payload{}, 0, false, nil
		}
		if res.err != nil {
			return payload.Payload{}, res.frameNumber, false, res.err
		}
		return res.payload, res.frameNumber, true, nil
	case <-ctx.Done():
		return payload.Payload{}, 0, false, ctx.Err()
	}
}

// Close stops the background pulling goroutine and waits for it to exit.
func (p *OrderedPuller) Close() {
	p.cancel()
	p.wg.Wait()
}
