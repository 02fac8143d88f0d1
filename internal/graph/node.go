package graph

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Field names understood by a FieldSource.
const (
	FieldStepKind    = "step_kind"
	FieldParentID    = "parent_id"
	FieldStageLabel  = "stage_label"
	FieldBranchLabel = "branch_label"
	FieldNodeClass   = "node_class"
)

// FieldSource is read-only access to per-node metadata. A missing field
// reports ok == false; it is never an error.
type FieldSource interface {
	Field(nodeID int, field string) (value string, ok bool)
}

// Kinds names the step kinds that open a stage or a parallel branch.
type Kinds struct {
	Stage    string
	Parallel string
}

// DefaultKinds returns the Jenkins pipeline step kinds.
func DefaultKinds() Kinds {
	return Kinds{Stage: "StageStep", Parallel: "ParallelStep"}
}

// Range is a [Start, End) byte span of the shared log stream.
type Range struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Len returns the number of bytes covered by the range.
func (r Range) Len() int64 { return r.End - r.Start }

// Node is one pipeline step
type Node struct {
	ID          int     `json:"id"`
	ParentID    *int    `json:"parent_id"`
	StepKind    string  `json:"step_kind"`
	NodeClass   string  `json:"node_class,omitempty"`
	StageLabel  *string `json:"stage_label,omitempty"`
	BranchLabel *string `json:"branch_label,omitempty"`
	Ranges      []Range `json:"ranges,omitempty"`
}

// AddRange appends a byte range. Ranges keep insertion order.
func (n *Node) AddRange(start, end int64) {
	n.Ranges = append(n.Ranges, Range{Start: start, End: end})
}

// OutputLen returns the total number of log bytes attributed to the node.
func (n *Node) OutputLen() int64 {
	var total int64
	for _, r := range n.Ranges {
		total += r.Len()
	}
	return total
}

// Extract reads every range of the node from log, in order, and returns the
// concatenation. Each range is read independently so a shared *os.File can
// serve concurrent callers.
func (n *Node) Extract(log io.ReaderAt) ([]byte, error) {
	if len(n.Ranges) == 0 {
		return nil, nil
	}
	buf := make([]byte, 0, n.OutputLen())
	for _, r := range n.Ranges {
		part := make([]byte, r.Len())
		if _, err := io.ReadFull(io.NewSectionReader(log, r.Start, r.Len()), part); err != nil {
			return nil, fmt.Errorf("reading node %d bytes [%d,%d): %w", n.ID, r.Start, r.End, err)
		}
		buf = append(buf, part...)
	}
	return buf, nil
}

// IsStage reports whether the node opens a labeled stage.
func (n *Node) IsStage() bool { return n.StageLabel != nil }

// IsBranch reports whether the node opens a labeled parallel branch.
func (n *Node) IsBranch() bool { return n.BranchLabel != nil }

// Registry owns every Node of a run, keyed by id.
type Registry struct {
	nodes map[int]*Node
}

// NewRegistry builds a registry from already constructed nodes.
func NewRegistry(nodes []*Node) *Registry {
	m := make(map[int]*Node, len(nodes))
	for _, n := range nodes {
		m[n.ID] = n
	}
	return &Registry{nodes: m}
}

// Get returns the node with the given id, or nil.
func (r *Registry) Get(id int) *Node {
	return r.nodes[id]
}

// Len returns the number of nodes.
func (r *Registry) Len() int { return len(r.nodes) }

// IDs returns all node ids in ascending order.
func (r *Registry) IDs() []int {
	ids := make([]int, 0, len(r.nodes))
	for id := range r.nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ParseNodeID parses a base-10 non-negative node id. source names where the
// value came from and ends up in the error.
func ParseNodeID(value, source string) (int, error) {
	if value == "" {
		return 0, &InvalidNodeIDError{Value: value, Source: source}
	}
	for _, c := range value {
		if c < '0' || c > '9' {
			return 0, &InvalidNodeIDError{Value: value, Source: source}
		}
	}
	id, err := strconv.Atoi(value)
	if err != nil {
		return 0, &InvalidNodeIDError{Value: value, Source: source, Cause: err}
	}
	return id, nil
}

// StepKindFromDescriptor cuts the package path off a step descriptor id:
// "org.jenkinsci.plugins.workflow.steps.EchoStep" becomes "EchoStep".
func StepKindFromDescriptor(descriptor string) string {
	if i := strings.LastIndexByte(descriptor, '.'); i >= 0 {
		return descriptor[i+1:]
	}
	return descriptor
}

// BuildRegistry creates one Node per id, reading its fields from src.
func BuildRegistry(ids []int, src FieldSource, kinds Kinds) (*Registry, error) {
	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		n := &Node{ID: id}
		if v, ok := src.Field(id, FieldStepKind); ok {
			n.StepKind = StepKindFromDescriptor(v)
		}
		if v, ok := src.Field(id, FieldNodeClass); ok {
			n.NodeClass = v
		}
		if v, ok := src.Field(id, FieldParentID); ok {
			pid, err := ParseNodeID(v, fmt.Sprintf("parent of node %d", id))
			if err != nil {
				return nil, err
			}
			n.ParentID = &pid
		}
		if n.StepKind == kinds.Stage {
			if v, ok := src.Field(id, FieldStageLabel); ok {
				label := v
				n.StageLabel = &label
			}
		}
		if n.StepKind == kinds.Parallel {
			if v, ok := src.Field(id, FieldBranchLabel); ok {
				label := v
				n.BranchLabel = &label
			}
		}
		nodes = append(nodes, n)
	}
	return NewRegistry(nodes), nil
}
