package rlog

import "testing"

func TestNewBuildsAWorkingLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer logger.Sync()

	logger.Info("smoke test")
}

func TestForNodeAttachesNodeFields(t *testing.T) {
	t.Parallel()

	child := ForNode(Nop(), "source-1", "raw_blob_reader")
	if child == nil {
		t.Fatal("expected a non-nil logger")
	}
}
