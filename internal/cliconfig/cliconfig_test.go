package cliconfig

import "testing"

func TestParseChainsNodesThroughInputParameter(t *testing.T) {
	t.Parallel()

	args := []string{
		"raw_blob_reader", "--path", "in.raw", "--width", "4096", "--height", "3072",
		"!", "debayer",
		"!", "raw_blob_writer", "--path", "out.raw",
	}
	cfg, err := Parse(args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Nodes) != 3 {
		t.Fatalf("node count = %d, want 3", len(cfg.Nodes))
	}
	if cfg.Nodes[0].Type != "raw_blob_reader" || cfg.Nodes[0].Parameters["path"] != "in.raw" {
		t.Fatalf("unexpected first node: %+v", cfg.Nodes[0])
	}
	if cfg.Nodes[1].Type != "debayer" {
		t.Fatalf("unexpected second node: %+v", cfg.Nodes[1])
	}
	if cfg.Nodes[1].Inputs["input"] != cfg.Nodes[0].ID {
		t.Fatalf("second node does not chain from first: %+v", cfg.Nodes[1].Inputs)
	}
	if cfg.Nodes[2].Inputs["input"] != cfg.Nodes[1].ID {
		t.Fatalf("third node does not chain from second: %+v", cfg.Nodes[2].Inputs)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0] != cfg.Nodes[2].ID {
		t.Fatalf("unexpected sinks: %+v", cfg.Sinks)
	}
}

func TestParseRejectsEmptyPipeline(t *testing.T) {
	t.Parallel()

	if _, err := Parse(nil); err == nil {
		t.Fatal("expected an error for an empty pipeline")
	}
}

func TestParseRejectsFlagMissingValue(t *testing.T) {
	t.Parallel()

	_, err := Parse([]string{"null_source", "--width"})
	if err == nil {
		t.Fatal("expected an error for a flag missing its value")
	}
}

func TestParseRejectsNonFlagArgument(t *testing.T) {
	t.Parallel()

	_, err := Parse([]string{"null_source", "width", "16"})
	if err == nil {
		t.Fatal("expected an error for a bare value that is not a --flag")
	}
}

func TestParseIgnoresConsecutiveSeparators(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]string{"null_source", "!", "!", "debayer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Nodes) != 2 {
		t.Fatalf("node count = %d, want 2", len(cfg.Nodes))
	}
}
