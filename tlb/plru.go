package tlb

// plru is a binary-tree pseudo-LRU over a power-of-two number of ways.
// Internal nodes are numbered heap-style from 1; a set node points at the
// right subtree as the next victim, a clear one at the left.
type plru struct {
	nWays int
	depth int
	nodes []bool
}

func newPLRU(nWays int) plru {
	return plru{nWays: nWays, depth: log2(nWays), nodes: make([]bool, nWays)}
}

// Touch marks a way as recently used, flipping every node on its path to
// point away from it.
func (p *plru) Touch(way int) {
	node := 1
	for d := p.depth - 1; d >= 0; d-- {
		dir := (way >> uint(d)) & 1
		p.nodes[node] = dir == 0
		node = node*2 + dir
	}
}

// Victim returns the pseudo-least-recently-used way.
func (p *plru) Victim() int {
	node := 1
	way := 0
	for d := 0; d < p.depth; d++ {
		dir := 0
		if p.nodes[node] {
			dir = 1
		}
		way = way<<1 | dir
		node = node*2 + dir
	}
	return way
}
