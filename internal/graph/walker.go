package graph

// Walker traverses a Tree in execution order: it descends into the first
// unvisited child of the last yielded node and otherwise jumps to the lowest
// unvisited id, so disjoint subtrees are reached too. A Walker owns its
// cursor and visited set; never share one between traversals.
type Walker struct {
	reg     *Registry
	tree    *Tree
	current int
	started bool
	visited map[int]bool
	low     int // index into tree.ids; every id before it is visited
}

// NewWalker returns a fresh traversal over tree.
func NewWalker(reg *Registry, tree *Tree) *Walker {
	return &Walker{
		reg:     reg,
		tree:    tree,
		visited: make(map[int]bool, tree.Len()),
	}
}

// Next yields the next node, or ok == false once every node was visited.
func (w *Walker) Next() (*Node, bool) {
	if !w.started {
		w.started = true
		if len(w.tree.Roots) == 0 {
			return w.fallback()
		}
		return w.yield(w.tree.Roots[0]), true
	}

	for _, child := range w.tree.Children[w.current] {
		if !w.visited[child] {
			return w.yield(child), true
		}
	}
	return w.fallback()
}

// fallback yields the lowest unvisited id. The visited set only grows, so the
// lowest unvisited id never moves backwards and the scan resumes at w.low.
func (w *Walker) fallback() (*Node, bool) {
	for w.low < len(w.tree.ids) {
		id := w.tree.ids[w.low]
		if !w.visited[id] {
			return w.yield(id), true
		}
		w.low++
	}
	return nil, false
}

func (w *Walker) yield(id int) *Node {
	w.current = id
	w.visited[id] = true
	return w.reg.Get(id)
}

// IsAncestor reports whether ancestorID is on the parent chain of nodeID. A
// node is not its own ancestor.
func (w *Walker) IsAncestor(ancestorID, nodeID int) bool {
	return IsAncestor(w.reg, ancestorID, nodeID)
}

// Depth returns the number of parent-chain steps from nodeID up past its
// root; a root has depth 1.
func (w *Walker) Depth(nodeID int) int {
	return Depth(w.reg, nodeID)
}

// Ancestors lists nodeID's ancestors, nearest parent first.
func (w *Walker) Ancestors(nodeID int) []*Node {
	return Ancestors(w.reg, nodeID)
}

// IsAncestor reports whether ancestorID is on the parent chain of nodeID.
func IsAncestor(reg *Registry, ancestorID, nodeID int) bool {
	node := reg.Get(nodeID)
	for node != nil && node.ParentID != nil {
		if *node.ParentID == ancestorID {
			return true
		}
		node = reg.Get(*node.ParentID)
	}
	return false
}

// Depth counts the steps from nodeID to "no parent". Unknown ids have depth 0.
func Depth(reg *Registry, nodeID int) int {
	depth := 0
	node := reg.Get(nodeID)
	for node != nil {
		depth++
		if node.ParentID == nil {
			break
		}
		node = reg.Get(*node.ParentID)
	}
	return depth
}

// Ancestors returns the parent chain of nodeID from nearest to outermost.
// The chain ends at the root; no placeholder is appended for "no parent".
func Ancestors(reg *Registry, nodeID int) []*Node {
	var out []*Node
	node := reg.Get(nodeID)
	for node != nil && node.ParentID != nil {
		parent := reg.Get(*node.ParentID)
		if parent == nil {
			break
		}
		out = append(out, parent)
		node = parent
	}
	return out
}

// NearestStage returns the closest labeled stage above nodeID.
func NearestStage(reg *Registry, nodeID int) (*Node, bool) {
	for _, a := range Ancestors(reg, nodeID) {
		if a.IsStage() {
			return a, true
		}
	}
	return nil, false
}

// NearestBranch returns the closest labeled parallel branch above nodeID.
func NearestBranch(reg *Registry, nodeID int) (*Node, bool) {
	for _, a := range Ancestors(reg, nodeID) {
		if a.IsBranch() {
			return a, true
		}
	}
	return nil, false
}
