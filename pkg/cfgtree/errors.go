package cfgtree

import "fmt"

// MergeIOError wraps any read or write failure during configuration merge.
// A failed merge is fatal for the run; no partial merged tree may be used.
type MergeIOError struct {
	Op   string // Operation being performed (e.g., "walk", "copy", "append")
	Path string // File or directory involved
	Err  error  // Underlying error
}

func (e *MergeIOError) Error() string {
	return fmt.Sprintf("config merge %s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e *MergeIOError) Unwrap() error {
	return e.Err
}

// ResolveIOError wraps any failure during symlink resolution. Execution must
// not proceed against a partially resolved tree.
type ResolveIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *ResolveIOError) Error() string {
	return fmt.Sprintf("config resolve %s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e *ResolveIOError) Unwrap() error {
	return e.Err
}
