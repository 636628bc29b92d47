// Package tree implements CART decision trees for classification and
// regression on gonum matrices.
package tree

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabflow/pkg/errors"
)

// Node is one node of a fitted tree. Children are indices into Tree.Nodes;
// leaves have Left == -1.
type Node struct {
	Feature   int
	Threshold float64 // x <= Threshold goes left
	Left      int
	Right     int
	// Value is the class distribution for classifiers and the mean target
	// (one element) for regressors.
	Value    []float64
	NSamples int
	Impurity float64
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool { return n.Left < 0 }

// Tree is the fitted structure shared by both estimators.
type Tree struct {
	Nodes       []Node
	NFeatures   int
	Importances []float64
}

// Columns is a column-major copy of a feature matrix. Building it once lets
// many trees share the same training data.
type Columns [][]float64

// NewColumns copies X into column-major order.
func NewColumns(X mat.Matrix) Columns {
	r, c := X.Dims()
	cols := make(Columns, c)
	for j := 0; j < c; j++ {
		cols[j] = make([]float64, r)
		mat.Col(cols[j], j, X)
	}
	return cols
}

// Rows returns the number of samples.
func (c Columns) Rows() int {
	if len(c) == 0 {
		return 0
	}
	return len(c[0])
}

type builder struct {
	params   Params
	cols     Columns
	y        []float64
	nClasses int // 0 for regression
	acc      accumulator
	rng      *rand.Rand
	tree     *Tree
}

func build(params Params, cols Columns, y []float64, idx []int, nClasses int) (*Tree, error) {
	if len(idx) == 0 {
		return nil, errors.NewModelError("tree.build", "empty data", errors.ErrEmptyData)
	}
	b := &builder{
		params:   params,
		cols:     cols,
		y:        y,
		nClasses: nClasses,
		rng:      rand.New(rand.NewSource(params.RandomState)),
		tree: &Tree{
			NFeatures:   len(cols),
			Importances: make([]float64, len(cols)),
		},
	}
	if nClasses > 0 {
		b.acc = newClassAccumulator(params.Criterion, nClasses)
	} else {
		b.acc = &varianceAccumulator{}
	}

	work := make([]int, len(idx))
	copy(work, idx)
	b.grow(work, 0)

	total := 0.0
	for _, v := range b.tree.Importances {
		total += v
	}
	if total > 0 {
		for j := range b.tree.Importances {
			b.tree.Importances[j] /= total
		}
	}
	return b.tree, nil
}

type split struct {
	feature   int
	threshold float64
	nLeft     int
	score     float64 // weighted child impurity
}

// grow appends the subtree for idx and returns its root index. idx is
// reordered in place.
func (b *builder) grow(idx []int, depth int) int {
	b.acc.reset(b.y, idx)
	_, impurity := b.acc.impurities()

	id := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{
		Left:     -1,
		Right:    -1,
		Value:    b.leafValue(idx),
		NSamples: len(idx),
		Impurity: impurity,
	})

	n := len(idx)
	if (b.params.MaxDepth > 0 && depth >= b.params.MaxDepth) ||
		n < b.params.MinSamplesSplit ||
		n < 2*b.params.MinSamplesLeaf ||
		impurity <= 1e-12 {
		return id
	}

	sp, ok := b.bestSplit(idx)
	if !ok {
		return id
	}
	gain := float64(n)*impurity - sp.score
	if b.params.MinImpurityDecrease > 0 && gain/float64(n) < b.params.MinImpurityDecrease {
		return id
	}

	// partition: x <= threshold first
	col := b.cols[sp.feature]
	sort.SliceStable(idx, func(a, c int) bool {
		return col[idx[a]] <= sp.threshold && col[idx[c]] > sp.threshold
	})
	left, right := idx[:sp.nLeft], idx[sp.nLeft:]

	if gain > 0 {
		b.tree.Importances[sp.feature] += gain
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)

	node := &b.tree.Nodes[id]
	node.Feature = sp.feature
	node.Threshold = sp.threshold
	node.Left = l
	node.Right = r
	return id
}

func (b *builder) candidateFeatures() []int {
	nf := len(b.cols)
	if b.params.MaxFeatures <= 0 || b.params.MaxFeatures >= nf {
		all := make([]int, nf)
		for j := range all {
			all[j] = j
		}
		return all
	}
	return b.rng.Perm(nf)[:b.params.MaxFeatures]
}

func (b *builder) bestSplit(idx []int) (split, bool) {
	n := len(idx)
	minLeaf := b.params.MinSamplesLeaf
	best := split{score: math.Inf(1)}
	found := false
	sorted := make([]int, n)

	for _, f := range b.candidateFeatures() {
		col := b.cols[f]
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return col[sorted[a]] < col[sorted[c]] })

		b.acc.reset(b.y, sorted)
		for i := 0; i < n-1; i++ {
			b.acc.move(b.y[sorted[i]])
			lo, hi := col[sorted[i]], col[sorted[i+1]]
			if lo == hi {
				continue
			}
			nl := i + 1
			if nl < minLeaf || n-nl < minLeaf {
				continue
			}
			li, ri := b.acc.impurities()
			score := float64(nl)*li + float64(n-nl)*ri
			if score < best.score {
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				best = split{feature: f, threshold: threshold, nLeft: nl, score: score}
				found = true
			}
		}
	}
	return best, found
}

func (b *builder) leafValue(idx []int) []float64 {
	if b.nClasses > 0 {
		v := make([]float64, b.nClasses)
		for _, i := range idx {
			v[int(b.y[i])]++
		}
		for k := range v {
			v[k] /= float64(len(idx))
		}
		return v
	}
	sum := 0.0
	for _, i := range idx {
		sum += b.y[i]
	}
	return []float64{sum / float64(len(idx))}
}

// Leaf returns the leaf reached by row i of X.
func (t *Tree) Leaf(X mat.Matrix, i int) *Node {
	node := &t.Nodes[0]
	for !node.IsLeaf() {
		if X.At(i, node.Feature) <= node.Threshold {
			node = &t.Nodes[node.Left]
		} else {
			node = &t.Nodes[node.Right]
		}
	}
	return node
}

// Depth returns the length of the longest root to leaf path.
func (t *Tree) Depth() int {
	var walk func(id int) int
	walk = func(id int) int {
		n := &t.Nodes[id]
		if n.IsLeaf() {
			return 0
		}
		l, r := walk(n.Left), walk(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}

// NLeaves returns the number of leaves.
func (t *Tree) NLeaves() int {
	count := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			count++
		}
	}
	return count
}

func checkFitInput(op string, X, y mat.Matrix) (int, int, error) {
	r, c := X.Dims()
	ry, cy := y.Dims()
	if r == 0 || c == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return 0, 0, errors.NewDimensionError(op, r, ry, 0)
	}
	if cy != 1 {
		return 0, 0, errors.NewValueError(op, "y must be a column vector")
	}
	if err := errors.CheckMatrix(op, X); err != nil {
		return 0, 0, err
	}
	return r, c, nil
}
