package graph

// UnionFind implements union-find with path compression and union by rank
type UnionFind struct {
	parent map[int]int
	rank   map[int]int
	size   map[int]int
}

// NewUnionFind creates a new UnionFind where each node is its own component
func NewUnionFind(ids []int) *UnionFind {
	uf := &UnionFind{
		parent: make(map[int]int, len(ids)),
		rank:   make(map[int]int, len(ids)),
		size:   make(map[int]int, len(ids)),
	}
	for _, id := range ids {
		uf.parent[id] = id
		uf.size[id] = 1
	}
	return uf
}

// Find returns the representative of id's component, with path compression
func (uf *UnionFind) Find(id int) int {
	parent, ok := uf.parent[id]
	if !ok {
		return id
	}
	if parent != id {
		root := uf.Find(parent)
		uf.parent[id] = root
		return root
	}
	return id
}

// Union merges the components containing a and b. Returns true if they were separate.
func (uf *UnionFind) Union(a, b int) bool {
	rootA := uf.Find(a)
	rootB := uf.Find(b)
	if rootA == rootB {
		return false
	}

	if uf.rank[rootA] < uf.rank[rootB] {
		rootA, rootB = rootB, rootA
	}
	uf.parent[rootB] = rootA
	uf.size[rootA] += uf.size[rootB]
	if uf.rank[rootA] == uf.rank[rootB] {
		uf.rank[rootA]++
	}
	return true
}

// Size returns the number of members in id's component
func (uf *UnionFind) Size(id int) int {
	return uf.size[uf.Find(id)]
}

// Components returns the size of every component, keyed by representative
func (uf *UnionFind) Components() map[int]int {
	out := make(map[int]int)
	for id := range uf.parent {
		root := uf.Find(id)
		out[root] = uf.size[root]
	}
	return out
}
