package graph

import (
	"fmt"
	"sort"

	"jenkinslog/logsplit/internal/db"
)

// CatalogData converts a processed run into catalog rows. outputs may be nil
// when nothing was split.
func CatalogData(location string, reg *Registry, idx *ShadowIndex, outputs []Output) db.RunData {
	data := db.RunData{Location: location}
	for _, id := range reg.IDs() {
		n := reg.Get(id)
		data.Nodes = append(data.Nodes, db.Node{
			ID:          n.ID,
			ParentID:    n.ParentID,
			StepKind:    n.StepKind,
			NodeClass:   n.NodeClass,
			StageLabel:  n.StageLabel,
			BranchLabel: n.BranchLabel,
		})
		for seq, r := range n.Ranges {
			data.Ranges = append(data.Ranges, db.Range{NodeID: n.ID, Seq: seq, Start: r.Start, End: r.End})
		}
	}

	if idx != nil {
		seq := 0
		for _, s := range idx.Stages {
			data.Stages = append(data.Stages, db.Stage{Seq: seq, Label: s.Label, Representative: s.Representative})
			seq++
			for _, b := range s.Branches {
				branch := b.Label
				data.Stages = append(data.Stages, db.Stage{Seq: seq, Label: s.Label, Branch: &branch, Representative: b.Representative})
				seq++
			}
		}
	}

	for _, o := range outputs {
		row := db.Output{
			Path:      o.Path,
			Kind:      string(o.Kind),
			Stage:     o.Stage,
			NodeCount: o.Nodes,
			Bytes:     o.Bytes,
		}
		if o.Branch != "" {
			branch := o.Branch
			row.Branch = &branch
		}
		data.Outputs = append(data.Outputs, row)
	}
	return data
}

// RegistryFromCatalog rebuilds the registry of a stored run, ranges included
func RegistryFromCatalog(d *db.DB, runID string) (*Registry, error) {
	rows, err := d.AllNodes(runID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("run %s not found in catalog", runID)
	}
	ranges, err := d.RangesForRun(runID)
	if err != nil {
		return nil, err
	}

	nodes := make([]*Node, 0, len(rows))
	byID := make(map[int]*Node, len(rows))
	for _, r := range rows {
		n := &Node{
			ID:          r.ID,
			ParentID:    r.ParentID,
			StepKind:    r.StepKind,
			NodeClass:   r.NodeClass,
			StageLabel:  r.StageLabel,
			BranchLabel: r.BranchLabel,
		}
		nodes = append(nodes, n)
		byID[n.ID] = n
	}

	sort.SliceStable(ranges, func(i, j int) bool {
		if ranges[i].NodeID != ranges[j].NodeID {
			return ranges[i].NodeID < ranges[j].NodeID
		}
		return ranges[i].Seq < ranges[j].Seq
	})
	for _, r := range ranges {
		n, ok := byID[r.NodeID]
		if !ok {
			return nil, fmt.Errorf("range of unknown node %d in run %s", r.NodeID, runID)
		}
		n.AddRange(r.Start, r.End)
	}
	return NewRegistry(nodes), nil
}
