package graph

import "sort"

// DepthBucket is one bucket in the depth histogram
type DepthBucket struct {
	Depth int `json:"depth"`
	Count int `json:"count"`
}

// KindCount is the number of nodes of one step kind
type KindCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// StageSummary describes one stage of the shadow index
type StageSummary struct {
	Label          string   `json:"label"`
	Representative int      `json:"representative"`
	Depth          int      `json:"depth"`
	Branches       []string `json:"branches,omitempty"`
	Nodes          int      `json:"nodes"` // nodes below the representative
}

// RootTree is one root and the size of the tree below it
type RootTree struct {
	Root  int `json:"root"`
	Nodes int `json:"nodes"`
}

// TopologyReport contains the structural summary of a run
type TopologyReport struct {
	TotalNodes      int            `json:"total_nodes"`
	NodesWithOutput int            `json:"nodes_with_output"`
	TotalBytes      int64          `json:"total_bytes"`
	Roots           []int          `json:"roots"`
	RootTrees       []RootTree     `json:"root_trees"`
	Trees           int            `json:"trees"`
	LargestTree     int            `json:"largest_tree"`
	MaxDepth        int            `json:"max_depth"`
	DepthHistogram  []DepthBucket  `json:"depth_histogram"`
	Kinds           []KindCount    `json:"kinds"`
	Stages          []StageSummary `json:"stages"`
	Duplicates      []Duplicate    `json:"duplicates,omitempty"`
}

// ComputeTopology summarizes the node tree and, when idx is not nil, its stages
func ComputeTopology(reg *Registry, tree *Tree, idx *ShadowIndex) *TopologyReport {
	report := &TopologyReport{TotalNodes: reg.Len()}
	if reg.Len() == 0 {
		return report
	}

	// Disjoint trees via UnionFind over parent links
	ids := tree.IDs()
	uf := NewUnionFind(ids)
	for _, id := range ids {
		if p := reg.Get(id).ParentID; p != nil {
			uf.Union(id, *p)
		}
	}
	components := uf.Components()
	report.Trees = len(components)
	for _, size := range components {
		if size > report.LargestTree {
			report.LargestTree = size
		}
	}
	report.Roots = append([]int(nil), tree.Roots...)
	for _, root := range tree.Roots {
		report.RootTrees = append(report.RootTrees, RootTree{Root: root, Nodes: uf.Size(root)})
	}

	depths := make(map[int]int)
	kinds := make(map[string]int)
	for _, id := range ids {
		node := reg.Get(id)
		d := Depth(reg, id)
		depths[d]++
		if d > report.MaxDepth {
			report.MaxDepth = d
		}
		kind := node.StepKind
		if kind == "" {
			kind = "unknown"
		}
		kinds[kind]++
		if len(node.Ranges) > 0 {
			report.NodesWithOutput++
			report.TotalBytes += node.OutputLen()
		}
	}

	for d := 1; d <= report.MaxDepth; d++ {
		report.DepthHistogram = append(report.DepthHistogram, DepthBucket{Depth: d, Count: depths[d]})
	}
	for k, c := range kinds {
		report.Kinds = append(report.Kinds, KindCount{Kind: k, Count: c})
	}
	sort.Slice(report.Kinds, func(i, j int) bool {
		if report.Kinds[i].Count != report.Kinds[j].Count {
			return report.Kinds[i].Count > report.Kinds[j].Count
		}
		return report.Kinds[i].Kind < report.Kinds[j].Kind
	})

	if idx == nil {
		return report
	}
	for _, s := range idx.Stages {
		summary := StageSummary{
			Label:          s.Label,
			Representative: s.Representative,
			Depth:          Depth(reg, s.Representative),
		}
		for _, b := range s.Branches {
			summary.Branches = append(summary.Branches, b.Label)
		}
		for _, id := range ids {
			if IsAncestor(reg, s.Representative, id) {
				summary.Nodes++
			}
		}
		report.Stages = append(report.Stages, summary)
	}
	report.Duplicates = idx.Duplicates
	return report
}
