package graph

import "go.uber.org/zap"

// BranchEntry is a parallel branch registered under a stage.
type BranchEntry struct {
	Label          string `json:"label"`
	Representative int    `json:"representative"`
}

// StageEntry is a labeled stage and its parallel branches, in the order they
// were first seen.
type StageEntry struct {
	Label          string         `json:"label"`
	Representative int            `json:"representative"`
	Branches       []*BranchEntry `json:"branches,omitempty"`
	branchByLabel  map[string]*BranchEntry
}

// Branch returns the branch registered under label, or nil.
func (s *StageEntry) Branch(label string) *BranchEntry {
	return s.branchByLabel[label]
}

// Duplicate is a stage or branch occurrence whose label was already taken.
type Duplicate struct {
	NodeID int    `json:"node_id"`
	Stage  string `json:"stage"`
	Branch string `json:"branch,omitempty"`
	KeptID int    `json:"kept_id"`
}

// Enclosure is the nearest labeled stage and branch above a node.
type Enclosure struct {
	Stage  *string
	Branch *string
}

// ShadowIndex maps stage labels to representative nodes. It is built once by
// Classify and read-only afterwards.
type ShadowIndex struct {
	Stages     []*StageEntry
	Duplicates []Duplicate
	byLabel    map[string]*StageEntry
	enclosing  map[int]Enclosure
}

// Stage returns the stage registered under label, or nil.
func (idx *ShadowIndex) Stage(label string) *StageEntry {
	return idx.byLabel[label]
}

// Enclosing returns the cached nearest stage/branch labels above nodeID.
func (idx *ShadowIndex) Enclosing(reg *Registry, nodeID int) Enclosure {
	if e, ok := idx.enclosing[nodeID]; ok {
		return e
	}
	return enclosureOf(reg, nodeID)
}

func enclosureOf(reg *Registry, nodeID int) Enclosure {
	var e Enclosure
	if s, ok := NearestStage(reg, nodeID); ok {
		e.Stage = s.StageLabel
	}
	if b, ok := NearestBranch(reg, nodeID); ok {
		e.Branch = b.BranchLabel
	}
	return e
}

func (idx *ShadowIndex) registerStage(label string, nodeID int) (*StageEntry, bool) {
	if s, ok := idx.byLabel[label]; ok {
		return s, false
	}
	s := &StageEntry{
		Label:          label,
		Representative: nodeID,
		branchByLabel:  make(map[string]*BranchEntry),
	}
	idx.byLabel[label] = s
	idx.Stages = append(idx.Stages, s)
	return s, true
}

// Classify walks every node once and registers labeled stages and their
// parallel branches. The first occurrence of a label wins.
func Classify(reg *Registry, tree *Tree, logger *zap.Logger) (*ShadowIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := &ShadowIndex{
		byLabel:   make(map[string]*StageEntry),
		enclosing: make(map[int]Enclosure, reg.Len()),
	}

	walker := NewWalker(reg, tree)
	for node, ok := walker.Next(); ok; node, ok = walker.Next() {
		idx.enclosing[node.ID] = enclosureOf(reg, node.ID)

		if node.IsStage() {
			label := *node.StageLabel
			s, added := idx.registerStage(label, node.ID)
			if added {
				logger.Debug("registered stage", zap.String("stage", label), zap.Int("node_id", node.ID))
			} else if s.Representative != node.ID {
				idx.Duplicates = append(idx.Duplicates, Duplicate{NodeID: node.ID, Stage: label, KeptID: s.Representative})
				logger.Warn("stage label reused, later occurrence is not split",
					zap.String("stage", label), zap.Int("node_id", node.ID), zap.Int("kept_id", s.Representative))
			}
		}

		if node.IsBranch() {
			branch := *node.BranchLabel
			parent, ok := NearestStage(reg, node.ID)
			if !ok {
				return nil, &OrphanParallelBranchError{NodeID: node.ID, Branch: branch}
			}
			// the enclosing stage may not have been yielded yet
			s, _ := idx.registerStage(*parent.StageLabel, parent.ID)
			if existing := s.branchByLabel[branch]; existing != nil {
				idx.Duplicates = append(idx.Duplicates, Duplicate{NodeID: node.ID, Stage: s.Label, Branch: branch, KeptID: existing.Representative})
				logger.Warn("branch label reused, later occurrence is not split",
					zap.String("stage", s.Label), zap.String("branch", branch), zap.Int("node_id", node.ID))
				continue
			}
			b := &BranchEntry{Label: branch, Representative: node.ID}
			s.branchByLabel[branch] = b
			s.Branches = append(s.Branches, b)
			logger.Debug("registered branch", zap.String("stage", s.Label), zap.String("branch", branch), zap.Int("node_id", node.ID))
		}
	}
	return idx, nil
}
