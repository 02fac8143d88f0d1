package graph

import "fmt"

// InvalidNodeIDError reports a node id (or parent id) that is not a base-10
// non-negative integer. It aborts the whole run: a skipped node would corrupt
// ancestry for its entire subtree.
type InvalidNodeIDError struct {
	Value  string
	Source string // record file name or field the value came from
	Cause  error
}

func (e *InvalidNodeIDError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("invalid node id %q in %s: must be a base-10 integer", e.Value, e.Source)
	}
	return fmt.Sprintf("invalid node id %q: must be a base-10 integer", e.Value)
}

func (e *InvalidNodeIDError) Unwrap() error {
	return e.Cause
}

// MalformedIndexError reports a log-index that cannot be paired into ranges.
type MalformedIndexError struct {
	Line    int // 1-based, counting blank lines
	Content string
	NodeID  int // 0 when the line carries no node id
	Reason  string
}

func (e *MalformedIndexError) Error() string {
	if e.NodeID != 0 {
		return fmt.Sprintf("malformed log-index at line %d (%q), node %d: %s", e.Line, e.Content, e.NodeID, e.Reason)
	}
	return fmt.Sprintf("malformed log-index at line %d (%q): %s", e.Line, e.Content, e.Reason)
}

// OrphanParallelBranchError reports a labeled parallel branch with no
// enclosing labeled stage.
type OrphanParallelBranchError struct {
	NodeID int
	Branch string
}

func (e *OrphanParallelBranchError) Error() string {
	return fmt.Sprintf("parallel branch %q (node %d) has no enclosing labeled stage", e.Branch, e.NodeID)
}

// DanglingParentError reports a parent id that does not resolve in the registry.
type DanglingParentError struct {
	NodeID   int
	ParentID int
}

func (e *DanglingParentError) Error() string {
	return fmt.Sprintf("node %d references unknown parent %d", e.NodeID, e.ParentID)
}

// ParentCycleError reports a parent chain that loops back on itself.
type ParentCycleError struct {
	NodeID int
}

func (e *ParentCycleError) Error() string {
	return fmt.Sprintf("parent chain of node %d contains a cycle", e.NodeID)
}
