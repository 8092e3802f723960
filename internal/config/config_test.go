package config

import (
	"os"
	"testing"
)

const sampleYAML = `
nodes:
  - id: source
    type: null_source
    parameters:
      width: "16"
      height: "16"
      bit_depth: "8"
  - id: debayer
    type: debayer
    inputs:
      input: source
sinks:
  - debayer
`

func TestParseBuildsGraphConfigFromYAML(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Nodes) != 2 {
		t.Fatalf("node count = %d, want 2", len(cfg.Nodes))
	}
	if cfg.Nodes[0].ID != "source" || cfg.Nodes[0].Type != "null_source" {
		t.Fatalf("unexpected first node: %+v", cfg.Nodes[0])
	}
	if cfg.Nodes[0].Parameters["width"] != "16" {
		t.Fatalf("unexpected parameters: %+v", cfg.Nodes[0].Parameters)
	}
	if cfg.Nodes[1].Inputs["input"] != "source" {
		t.Fatalf("unexpected inputs: %+v", cfg.Nodes[1].Inputs)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0] != "debayer" {
		t.Fatalf("unexpected sinks: %+v", cfg.Sinks)
	}
}

func TestParseRejectsNodeWithoutID(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("nodes:\n  - type: null_source\n"))
	if err == nil {
		t.Fatal("expected an error for a node missing its id")
	}
}

func TestParseRejectsNodeWithoutType(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("nodes:\n  - id: source\n"))
	if err == nil {
		t.Fatal("expected an error for a node missing its type")
	}
}

func TestLoadReadsFromDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := dir + "/graph.yaml"
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("unexpected error writing fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Nodes) != 2 {
		t.Fatalf("node count = %d, want 2", len(cfg.Nodes))
	}
}
