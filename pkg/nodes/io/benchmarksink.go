package io

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/payload"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/reactor"
)

// BenchmarkSink pulls every frame its input can produce, as fast as
// concurrency allows, discarding the payloads and recording throughput.
// It exists to measure a graph's steady-state frame rate without the cost
// of actually writing frames anywhere.
type BenchmarkSink struct {
	input       pipeline.Node
	concurrency int
	ctx         *pipeline.Context

	Result BenchmarkResult
}

// BenchmarkResult summarizes one BenchmarkSink run.
type BenchmarkResult struct {
	FramesProcessed uint64
	Elapsed         time.Duration
	FramesPerSecond float64
}

// NewBenchmarkSink creates a sink that drives input with up to concurrency
// frames in flight at once. concurrency <= 0 is treated as 1. Every pull
// is dispatched through pctx's reactor so the benchmark's frame ordering
// is governed by the same priority heap as any other sink.
func NewBenchmarkSink(input pipeline.Node, concurrency int, pctx *pipeline.Context) *BenchmarkSink {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BenchmarkSink{input: input, concurrency: concurrency, ctx: pctx}
}

// Caps and Pull exist only so BenchmarkSink satisfies Node alongside
// SinkNode, which graph construction requires of every node named as a
// sink; a benchmark sink has nothing to produce and Pull always fails.
func (s *BenchmarkSink) Caps() pipeline.Caps { return pipeline.Caps{} }

func (s *BenchmarkSink) Pull(context.Context, pipeline.Request) (payload.Payload, error) {
	return payload.Payload{}, fmt.Errorf("nodes/io: benchmark sink is a sink and cannot be pulled")
}

func (s *BenchmarkSink) Run(ctx context.Context, onProgress func(pipeline.ProgressUpdate)) error {
	caps := s.input.Caps()
	if caps.FrameCount == nil {
		return fmt.Errorf("nodes/io: benchmark sink requires a bounded input stream")
	}
	total := *caps.FrameCount

	start := timeNow()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := uint64(0); i < total; i++ {
		i := i
		g.Go(func() error {
			priority := reactor.NewPriority(0, i)
			pullDone := make(chan error, 1)
			s.ctx.Spawn(priority, func() {
				_, err := s.input.Pull(gctx, pipeline.Request{FrameNumber: i, Priority: priority})
				pullDone <- err
			})
			select {
			case err := <-pullDone:
				if err != nil {
					return fmt.Errorf("nodes/io: pulling frame %d: %w", i, err)
				}
			case <-gctx.Done():
				return gctx.Err()
			}
			if onProgress != nil {
				onProgress(pipeline.ProgressUpdate{FramesDone: i + 1, FramesTotal: &total})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	elapsed := timeSince(start)
	s.Result = BenchmarkResult{FramesProcessed: total, Elapsed: elapsed}
	if elapsed > 0 {
		s.Result.FramesPerSecond = float64(total) / elapsed.Seconds()
	}
	return nil
}

// timeNow and timeSince are indirections over the time package so tests
// can substitute a fake clock instead of depending on wall-clock timing;
// outside tests they are time.Now and time.Since.
var (
	timeNow   = time.Now
	timeSince = time.Since
)

// BenchmarkSinkFactory registers BenchmarkSink under "benchmark_sink".
type BenchmarkSinkFactory struct{}

func (BenchmarkSinkFactory) Describe() pipeline.ParametersDescriptor {
	return pipeline.ParametersDescriptor{
		"input":       pipeline.Mandatory(pipeline.ParameterNodeInput),
		"concurrency": pipeline.Optional(pipeline.ParameterInt, pipeline.ParameterValue{Kind: pipeline.ParameterInt, Int: 1}),
	}
}

func (BenchmarkSinkFactory) FromParameters(params pipeline.Parameters, inputs map[string]pipeline.Node, _ []pipeline.NodeID, ctx *pipeline.Context) (pipeline.Node, error) {
	concurrency, err := params.Int("concurrency")
	if err != nil {
		return nil, err
	}
	return NewBenchmarkSink(inputs["input"], int(concurrency), ctx), nil
}
