package graph

import (
	"reflect"
	"strings"
	"testing"
)

func intPtr(v int) *int       { return &v }
func strPtr(s string) *string { return &s }

// nodeSpec describes a test node; parent 0 means root. label becomes the
// stage label of a StageStep or the branch label of a ParallelStep.
type nodeSpec struct {
	id     int
	parent int
	kind   string
	label  string
}

func quickRegistry(specs ...nodeSpec) *Registry {
	nodes := make([]*Node, 0, len(specs))
	for _, s := range specs {
		n := &Node{ID: s.id, StepKind: s.kind}
		if s.parent != 0 {
			n.ParentID = intPtr(s.parent)
		}
		if s.label != "" {
			switch s.kind {
			case "StageStep":
				n.StageLabel = strPtr(s.label)
			case "ParallelStep":
				n.BranchLabel = strPtr(s.label)
			}
		}
		nodes = append(nodes, n)
	}
	return NewRegistry(nodes)
}

func mustTree(t *testing.T, reg *Registry) *Tree {
	t.Helper()
	tree, err := BuildTree(reg)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	return tree
}

// pipelineRegistry is a run with a plain stage and a stage that forks into
// the branches "unit" and "integration":
//
//	1 root
//	├── 2 stage Checkout ── 3 echo
//	└── 4 stage Build
//	    ├── 5 sh
//	    ├── 6 parallel
//	    │   ├── 7 branch unit ── 9 sh
//	    │   └── 8 branch integration ── 10 sh
//	    └── 11 echo
func pipelineRegistry() *Registry {
	return quickRegistry(
		nodeSpec{id: 1},
		nodeSpec{id: 2, parent: 1, kind: "StageStep", label: "Checkout"},
		nodeSpec{id: 3, parent: 2, kind: "EchoStep"},
		nodeSpec{id: 4, parent: 1, kind: "StageStep", label: "Build"},
		nodeSpec{id: 5, parent: 4, kind: "ShStep"},
		nodeSpec{id: 6, parent: 4, kind: "ParallelStep"},
		nodeSpec{id: 7, parent: 6, kind: "ParallelStep", label: "unit"},
		nodeSpec{id: 8, parent: 6, kind: "ParallelStep", label: "integration"},
		nodeSpec{id: 9, parent: 7, kind: "ShStep"},
		nodeSpec{id: 10, parent: 8, kind: "ShStep"},
		nodeSpec{id: 11, parent: 4, kind: "EchoStep"},
	)
}

// pipelineLog is the console stream of pipelineRegistry and pipelineIndex.
const pipelineLog = "checkout\ncompile\nunit ok\nintegration ok\ndone\n"

const pipelineIndex = "0 3\n9 5\n17 9\n25 10\n40 11\n45\n"

func loadedPipeline(t *testing.T) (*Registry, *Tree) {
	t.Helper()
	reg := pipelineRegistry()
	if err := LoadIndex(strings.NewReader(pipelineIndex), reg); err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	return reg, mustTree(t, reg)
}

// --- Topology Tests ---

func TestTopology_EmptyRegistry(t *testing.T) {
	reg := NewRegistry(nil)
	r := ComputeTopology(reg, mustTree(t, reg), nil)
	if r.TotalNodes != 0 || r.Trees != 0 || r.MaxDepth != 0 {
		t.Errorf("empty registry should have all zeros, got nodes=%d trees=%d depth=%d",
			r.TotalNodes, r.Trees, r.MaxDepth)
	}
}

func TestTopology_Pipeline(t *testing.T) {
	reg, tree := loadedPipeline(t)
	idx, err := Classify(reg, tree, nil)
	if err != nil {
		t.Fatal(err)
	}
	r := ComputeTopology(reg, tree, idx)

	if r.TotalNodes != 11 {
		t.Errorf("expected 11 nodes, got %d", r.TotalNodes)
	}
	if r.Trees != 1 || r.LargestTree != 11 {
		t.Errorf("expected one tree of 11, got trees=%d largest=%d", r.Trees, r.LargestTree)
	}
	if len(r.RootTrees) != 1 || r.RootTrees[0] != (RootTree{Root: 1, Nodes: 11}) {
		t.Errorf("expected root 1 with 11 nodes, got %v", r.RootTrees)
	}
	if r.NodesWithOutput != 5 {
		t.Errorf("expected 5 nodes with output, got %d", r.NodesWithOutput)
	}
	if r.TotalBytes != int64(len(pipelineLog)) {
		t.Errorf("expected %d bytes, got %d", len(pipelineLog), r.TotalBytes)
	}
	if r.MaxDepth != 5 {
		t.Errorf("expected max depth 5, got %d", r.MaxDepth)
	}
	if len(r.DepthHistogram) != 5 || r.DepthHistogram[0].Count != 1 || r.DepthHistogram[1].Count != 2 {
		t.Errorf("unexpected depth histogram %+v", r.DepthHistogram)
	}
	if len(r.Kinds) == 0 || r.Kinds[0].Kind != "ParallelStep" || r.Kinds[0].Count != 3 {
		t.Errorf("expected ParallelStep x3 first, got %+v", r.Kinds)
	}
	if len(r.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(r.Stages))
	}
	build := r.Stages[1]
	if build.Label != "Build" || build.Nodes != 7 || len(build.Branches) != 2 {
		t.Errorf("unexpected Build summary %+v", build)
	}
}

func TestTopology_Forest(t *testing.T) {
	reg := quickRegistry(
		nodeSpec{id: 1},
		nodeSpec{id: 2, parent: 1},
		nodeSpec{id: 3},
		nodeSpec{id: 4, parent: 3},
		nodeSpec{id: 5, parent: 3},
	)
	r := ComputeTopology(reg, mustTree(t, reg), nil)
	if r.Trees != 2 {
		t.Errorf("expected 2 trees, got %d", r.Trees)
	}
	if r.LargestTree != 3 {
		t.Errorf("expected largest=3, got %d", r.LargestTree)
	}
	if len(r.Roots) != 2 || r.Roots[0] != 1 || r.Roots[1] != 3 {
		t.Errorf("expected roots [1 3], got %v", r.Roots)
	}
	wantTrees := []RootTree{{Root: 1, Nodes: 2}, {Root: 3, Nodes: 3}}
	if !reflect.DeepEqual(r.RootTrees, wantTrees) {
		t.Errorf("expected root trees %v, got %v", wantTrees, r.RootTrees)
	}
	if r.Stages != nil {
		t.Errorf("no shadow index should give no stages, got %v", r.Stages)
	}
}

// --- UnionFind Tests ---

func TestUnionFind(t *testing.T) {
	uf := NewUnionFind([]int{1, 2, 3, 4})
	if !uf.Union(1, 2) {
		t.Error("1 and 2 should start separate")
	}
	if uf.Union(2, 1) {
		t.Error("1 and 2 are already joined")
	}
	uf.Union(3, 4)
	uf.Union(4, 2)
	if uf.Find(1) != uf.Find(3) {
		t.Error("all four should be joined")
	}
	if uf.Size(4) != 4 {
		t.Errorf("expected size 4, got %d", uf.Size(4))
	}
	if len(uf.Components()) != 1 {
		t.Errorf("expected 1 component, got %d", len(uf.Components()))
	}
	if uf.Find(99) != 99 {
		t.Error("unknown ids are their own representative")
	}
}
