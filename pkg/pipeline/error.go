package pipeline

import "fmt"

// ErrorCategory tags a pipeline Error with the broad area of the system
// that raised it, so callers (notably the CLI's top-level error printer)
// can decide how much detail to surface without string-matching messages.
type ErrorCategory string

const (
	// CategoryConfig covers malformed or internally inconsistent graph
	// configuration discovered before any node runs.
	CategoryConfig ErrorCategory = "config"
	// CategoryGraph covers structural problems in the built graph: cycles,
	// dangling inputs, unreachable sinks.
	CategoryGraph ErrorCategory = "graph"
	// CategoryType covers payload downcast failures between incompatible
	// port types.
	CategoryType ErrorCategory = "type"
	// CategoryIO covers failures reading or writing frame data.
	CategoryIO ErrorCategory = "io"
	// CategoryDevice covers GPU device, queue, or buffer failures.
	CategoryDevice ErrorCategory = "device"
)

// Error is the error type returned across package pipeline boundaries. It
// carries a category alongside the wrapped cause so higher layers can
// react categorically (e.g. retry IO errors, never retry type errors)
// without parsing messages.
type Error struct {
	Category ErrorCategory
	NodeID   NodeID
	Cause    error
}

func (e *Error) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s: node %q: %v", e.Category, e.NodeID, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Category, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Wrap builds an Error tagging cause with category and the node that
// raised it. node may be empty for errors not attributable to a single
// node (e.g. graph-wide cycle detection).
func Wrap(category ErrorCategory, node NodeID, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Category: category, NodeID: node, Cause: cause}
}
