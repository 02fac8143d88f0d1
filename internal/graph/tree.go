package graph

// Tree is the parent -> children adjacency of a registry. Roots plays the
// role of the entry keyed by "no parent". Child lists are in ascending id
// order so traversals are reproducible across runs.
type Tree struct {
	Roots    []int
	Children map[int][]int
	ids      []int // every node id, ascending
}

// BuildTree derives the adjacency structure from reg's parent links. It fails
// when a parent does not resolve or a parent chain loops.
func BuildTree(reg *Registry) (*Tree, error) {
	ids := reg.IDs()
	t := &Tree{
		Children: make(map[int][]int, len(ids)),
		ids:      ids,
	}

	for _, id := range ids {
		node := reg.Get(id)
		if node.ParentID == nil {
			t.Roots = append(t.Roots, id)
		} else {
			pid := *node.ParentID
			if reg.Get(pid) == nil {
				return nil, &DanglingParentError{NodeID: id, ParentID: pid}
			}
			t.Children[pid] = append(t.Children[pid], id)
		}
		if _, ok := t.Children[id]; !ok {
			t.Children[id] = nil // ensure entry exists
		}
	}

	if err := checkAcyclic(reg, ids); err != nil {
		return nil, err
	}
	return t, nil
}

// IDs returns every node id in ascending order.
func (t *Tree) IDs() []int { return t.ids }

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return len(t.ids) }

func checkAcyclic(reg *Registry, ids []int) error {
	// 0 = unseen, 1 = on the current chain, 2 = reaches a root
	state := make(map[int]int, len(ids))
	for _, id := range ids {
		var chain []int
		current := id
		for {
			s := state[current]
			if s == 2 {
				break
			}
			if s == 1 {
				return &ParentCycleError{NodeID: current}
			}
			state[current] = 1
			chain = append(chain, current)
			node := reg.Get(current)
			if node.ParentID == nil {
				break
			}
			current = *node.ParentID
		}
		for _, c := range chain {
			state[c] = 2
		}
	}
	return nil
}
