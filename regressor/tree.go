package regressor

import (
	"cmp"
	"math"
	"math/rand"
	"slices"
)

// Node is one node of a fitted tree. Leaves have Feature == -1. Internal
// nodes send a sample left when its value is NaN or <= Threshold.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

// DecisionTree is a fitted CART regression tree stored as a flat node slice
// with the root at index 0.
type DecisionTree struct {
	Nodes []Node
}

// PredictRow walks the tree for one feature vector.
func (t *DecisionTree) PredictRow(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if goesLeft(x[n.Feature], n.Threshold) {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth is the length of the longest root-to-leaf path.
func (t *DecisionTree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}

// Leaves counts the leaf nodes.
func (t *DecisionTree) Leaves() int {
	count := 0
	for _, n := range t.Nodes {
		if n.Feature < 0 {
			count++
		}
	}
	return count
}

func goesLeft(v, threshold float64) bool {
	return math.IsNaN(v) || v <= threshold
}

// treeParams are the growth limits of a single tree.
type treeParams struct {
	maxDepth    int // 0 => unlimited
	minSplit    int
	minLeaf     int
	maxFeatures int
}

// treeBuilder grows one tree over a row-major feature matrix.
type treeBuilder struct {
	x         []float64
	stride    int
	nFeatures int
	y         []float64
	params    treeParams
	rng       *rand.Rand

	nodes []Node
	order []int
}

func (b *treeBuilder) at(row, feature int) float64 {
	return b.x[row*b.stride+feature]
}

// fitTree grows a tree on the samples in idx, which it reorders.
func fitTree(x []float64, stride, nFeatures int, y []float64, idx []int, p treeParams, seed int64) *DecisionTree {
	b := &treeBuilder{
		x:         x,
		stride:    stride,
		nFeatures: nFeatures,
		y:         y,
		params:    p,
		rng:       rand.New(rand.NewSource(seed)),
		order:     make([]int, 0, len(idx)),
	}
	b.build(idx, 0)
	return &DecisionTree{Nodes: b.nodes}
}

func (b *treeBuilder) build(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Value: b.mean(idx)})

	n := len(idx)
	if n < b.params.minSplit || n < 2*b.params.minLeaf {
		return id
	}
	if b.params.maxDepth > 0 && depth >= b.params.maxDepth {
		return id
	}
	if b.pure(idx) {
		return id
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return id
	}

	nl := b.partition(idx, feature, threshold)
	left := b.build(idx[:nl], depth+1)
	right := b.build(idx[nl:], depth+1)

	node := &b.nodes[id]
	node.Feature = feature
	node.Threshold = threshold
	node.Left = left
	node.Right = right
	return id
}

// bestSplit scans features in random order until maxFeatures non-constant
// ones have been evaluated and returns the split with the lowest summed
// squared error.
func (b *treeBuilder) bestSplit(idx []int) (feature int, threshold float64, ok bool) {
	n := len(idx)
	var total float64
	for _, i := range idx {
		total += b.y[i]
	}

	bestScore := math.Inf(-1)
	visited := 0
	for _, f := range b.rng.Perm(b.nFeatures) {
		if visited >= b.params.maxFeatures {
			break
		}
		if b.constant(idx, f) {
			continue
		}
		visited++

		b.order = append(b.order[:0], idx...)
		slices.SortFunc(b.order, func(r1, r2 int) int {
			return cmp.Compare(b.at(r1, f), b.at(r2, f))
		})

		// Maximising sumL²/nL + sumR²/nR minimises the children's SSE.
		var sumL float64
		for i := 0; i < n-1; i++ {
			sumL += b.y[b.order[i]]
			nL, nR := i+1, n-i-1
			if nL < b.params.minLeaf {
				continue
			}
			if nR < b.params.minLeaf {
				break
			}
			lo, hi := b.at(b.order[i], f), b.at(b.order[i+1], f)
			if cmp.Compare(lo, hi) == 0 {
				continue
			}
			sumR := total - sumL
			score := sumL*sumL/float64(nL) + sumR*sumR/float64(nR)
			if score > bestScore {
				bestScore = score
				feature = f
				threshold = midpoint(lo, hi)
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

// midpoint returns a threshold t with lo <= t < hi. It falls back to lo when
// the midpoint rounds up to hi or is not finite.
func midpoint(lo, hi float64) float64 {
	m := lo + (hi-lo)/2
	if !(m < hi) || math.IsInf(m, 0) || m < lo {
		return lo
	}
	return m
}

// partition moves the samples that go left to the front of idx and returns
// their count.
func (b *treeBuilder) partition(idx []int, feature int, threshold float64) int {
	i, j := 0, len(idx)-1
	for i <= j {
		if goesLeft(b.at(idx[i], feature), threshold) {
			i++
			continue
		}
		idx[i], idx[j] = idx[j], idx[i]
		j--
	}
	return i
}

func (b *treeBuilder) constant(idx []int, f int) bool {
	first := b.at(idx[0], f)
	for _, i := range idx[1:] {
		if cmp.Compare(b.at(i, f), first) != 0 {
			return false
		}
	}
	return true
}

func (b *treeBuilder) pure(idx []int) bool {
	first := b.y[idx[0]]
	for _, i := range idx[1:] {
		if b.y[i] != first {
			return false
		}
	}
	return true
}

func (b *treeBuilder) mean(idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += b.y[i]
	}
	return sum / float64(len(idx))
}
