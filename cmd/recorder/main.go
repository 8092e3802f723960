// Command recorder drives a processing graph described either directly on
// the command line (a bang-separated chain of node commands) or by a YAML
// configuration file, running every sink to completion.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/apertus-open-source-cinema/axiom-recorder-go/internal/cliconfig"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/internal/config"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/internal/rlog"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/gpu"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/nodes"
	"github.com/apertus-open-source-cinema/axiom-recorder-go/pkg/pipeline"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "\n\nrecorder: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, "\nrecorder finished successfully")
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: recorder <from-cli|from-file> [--verbose] [--gpu] ...")
	}

	verbose := false
	useGPU := false
	rest := args[1:]
	filtered := rest[:0:0]
	for _, a := range rest {
		switch a {
		case "--verbose", "-v":
			verbose = true
		case "--gpu":
			useGPU = true
		default:
			filtered = append(filtered, a)
		}
	}

	logger, err := rlog.New(verbose)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer logger.Sync()

	var graphCfg pipeline.GraphConfig
	switch args[0] {
	case "from-cli":
		graphCfg, err = cliconfig.Parse(filtered)
	case "from-file":
		if len(filtered) == 0 {
			return fmt.Errorf("from-file requires a configuration file path")
		}
		graphCfg, err = config.Load(filtered[0])
	default:
		return fmt.Errorf("unknown subcommand %q (expected from-cli or from-file)", args[0])
	}
	if err != nil {
		return fmt.Errorf("loading pipeline configuration: %w", err)
	}

	var device *gpu.Device
	if useGPU {
		device, err = gpu.NewDevice(false)
		if err != nil {
			return fmt.Errorf("initializing gpu device: %w", err)
		}
	}

	ctx := pipeline.NewContext(device, logger)
	defer ctx.Close()

	registry := nodes.NewRegistry()
	graph, err := pipeline.Build(graphCfg, registry, ctx)
	if err != nil {
		return fmt.Errorf("building graph: %w", err)
	}

	logger.Info("graph built", zap.Int("node_count", len(graph.Nodes)), zap.Int("sink_count", len(graph.Sinks)))

	runCtx := context.Background()
	for id, sink := range graph.Sinks {
		sinkLogger := rlog.ForNode(logger, string(id), "sink")
		sinkLogger.Info("running sink")
		err := sink.Run(runCtx, func(p pipeline.ProgressUpdate) {
			if p.FramesTotal != nil {
				sinkLogger.Debug("progress", zap.Uint64("frames_done", p.FramesDone), zap.Uint64("frames_total", *p.FramesTotal))
			} else {
				sinkLogger.Debug("progress", zap.Uint64("frames_done", p.FramesDone))
			}
		})
		if err != nil {
			return fmt.Errorf("running sink %q: %w", id, err)
		}
	}

	return nil
}
