package workflow

import "jenkinslog/logsplit/internal/graph"

// FieldPaths maps the fields read by the node registry to key paths inside a
// record.
type FieldPaths struct {
	StepKind    string `yaml:"step_kind"`
	ParentID    string `yaml:"parent_id"`
	StageLabel  string `yaml:"stage_label"`
	BranchLabel string `yaml:"branch_label"`
	NodeClass   string `yaml:"node_class"`
}

// DefaultFieldPaths returns the key paths used by Jenkins workflow records.
func DefaultFieldPaths() FieldPaths {
	return FieldPaths{
		StepKind:    "node/descriptorId",
		ParentID:    "node/parentIds/string",
		StageLabel:  "actions/wf.a.LabelAction/displayName",
		BranchLabel: "actions/org.jenkinsci.plugins.workflow.cps.steps.ParallelStepExecution_-ParallelLabelAction/branchName",
		NodeClass:   "node@class",
	}
}

func (p FieldPaths) path(field string) string {
	switch field {
	case graph.FieldStepKind:
		return p.StepKind
	case graph.FieldParentID:
		return p.ParentID
	case graph.FieldStageLabel:
		return p.StageLabel
	case graph.FieldBranchLabel:
		return p.BranchLabel
	case graph.FieldNodeClass:
		return p.NodeClass
	}
	return ""
}

// Store holds the records of a run and serves them as a graph.FieldSource.
type Store struct {
	paths   FieldPaths
	records map[int]*Record
}

// NewStore returns an empty store resolving fields through paths.
func NewStore(paths FieldPaths) *Store {
	return &Store{paths: paths, records: make(map[int]*Record)}
}

// Add registers the record of a node.
func (s *Store) Add(nodeID int, rec *Record) {
	s.records[nodeID] = rec
}

// Len returns the number of records.
func (s *Store) Len() int { return len(s.records) }

// Field implements graph.FieldSource.
func (s *Store) Field(nodeID int, field string) (string, bool) {
	rec, ok := s.records[nodeID]
	if !ok {
		return "", false
	}
	path := s.paths.path(field)
	if path == "" {
		return "", false
	}
	return rec.Lookup(path)
}
