package forest

import (
	"errors"
	"math/rand"
	"sort"
)

// Tree is a CART classifier using Gini impurity on numeric features.
type Tree struct {
	MaxDepth        int // 0 => unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 => all features
	RandomState     int64

	root        *node
	nClasses    int
	importances []float64
}

type node struct {
	leaf      bool
	feature   int
	threshold float64 // x <= threshold => left
	left      *node
	right     *node
	probas    []float64
}

// TreeOption configures a Tree.
type TreeOption func(*Tree)

func WithTreeMaxDepth(d int) TreeOption      { return func(t *Tree) { t.MaxDepth = d } }
func WithTreeMaxFeatures(k int) TreeOption   { return func(t *Tree) { t.MaxFeatures = k } }
func WithTreeRandomState(s int64) TreeOption { return func(t *Tree) { t.RandomState = s } }
func WithTreeMinSamplesLeaf(n int) TreeOption {
	return func(t *Tree) { t.MinSamplesLeaf = n }
}

// NewTree returns a tree with sklearn-like defaults.
func NewTree(opts ...TreeOption) *Tree {
	t := &Tree{MinSamplesSplit: 2, MinSamplesLeaf: 1}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Fit trains on every row of X. Labels must be in [0, max(y)].
func (t *Tree) Fit(X [][]float64, y []int) error {
	nClasses, err := checkXY(X, y)
	if err != nil {
		return err
	}
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	return t.fitIndices(X, y, idx, nClasses)
}

func checkXY(X [][]float64, y []int) (int, error) {
	if len(X) == 0 {
		return 0, errors.New("empty X")
	}
	if len(y) != len(X) {
		return 0, errors.New("X and y length mismatch")
	}
	p := len(X[0])
	if p == 0 {
		return 0, errors.New("X has no features")
	}
	maxLabel := 0
	for i := range X {
		if len(X[i]) != p {
			return 0, errors.New("inconsistent number of features in X rows")
		}
		if y[i] < 0 {
			return 0, errors.New("labels must be non-negative")
		}
		if y[i] > maxLabel {
			maxLabel = y[i]
		}
	}
	return maxLabel + 1, nil
}

// fitIndices grows the tree on the rows named by idx, which may repeat.
func (t *Tree) fitIndices(X [][]float64, y []int, idx []int, nClasses int) error {
	p := len(X[0])
	t.nClasses = nClasses
	t.importances = make([]float64, p)
	b := &builder{
		tree:  t,
		X:     X,
		y:     y,
		p:     p,
		rnd:   rand.New(rand.NewSource(t.RandomState)),
		total: float64(len(idx)),
	}
	t.root = b.grow(idx, 0)

	var sum float64
	for _, v := range t.importances {
		sum += v
	}
	if sum > 0 {
		for i := range t.importances {
			t.importances[i] /= sum
		}
	}
	return nil
}

type builder struct {
	tree  *Tree
	X     [][]float64
	y     []int
	p     int
	rnd   *rand.Rand
	total float64
}

func (b *builder) counts(idx []int) []int {
	c := make([]int, b.tree.nClasses)
	for _, i := range idx {
		c[b.y[i]]++
	}
	return c
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		f := float64(c) / float64(n)
		g -= f * f
	}
	return g
}

func (b *builder) leaf(counts []int, n int) *node {
	probas := make([]float64, len(counts))
	for i, c := range counts {
		probas[i] = float64(c) / float64(n)
	}
	return &node{leaf: true, probas: probas}
}

func (b *builder) grow(idx []int, depth int) *node {
	t := b.tree
	n := len(idx)
	counts := b.counts(idx)
	imp := gini(counts, n)
	if imp == 0 || n < t.MinSamplesSplit || n < 2*t.MinSamplesLeaf || (t.MaxDepth > 0 && depth >= t.MaxDepth) {
		return b.leaf(counts, n)
	}

	feat, thr, childImp, ok := b.bestSplit(idx, counts)
	if !ok || childImp >= imp*float64(n) {
		return b.leaf(counts, n)
	}
	var left, right []int
	for _, i := range idx {
		if b.X[i][feat] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	t.importances[feat] += imp*float64(n) - childImp
	return &node{
		feature:   feat,
		threshold: thr,
		left:      b.grow(left, depth+1),
		right:     b.grow(right, depth+1),
	}
}

// bestSplit scans a random subset of features and returns the split with the
// lowest weighted child impurity (n_left*gini_left + n_right*gini_right).
func (b *builder) bestSplit(idx []int, parent []int) (int, float64, float64, bool) {
	t := b.tree
	k := t.MaxFeatures
	if k <= 0 || k > b.p {
		k = b.p
	}
	features := b.rnd.Perm(b.p)[:k]

	n := len(idx)
	sorted := make([]int, n)
	bestFeat, bestThr, bestImp, found := -1, 0.0, 0.0, false
	left := make([]int, len(parent))
	right := make([]int, len(parent))
	for _, f := range features {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })
		for c := range left {
			left[c] = 0
			right[c] = parent[c]
		}
		for pos := 0; pos < n-1; pos++ {
			cls := b.y[sorted[pos]]
			left[cls]++
			right[cls]--
			cur, next := b.X[sorted[pos]][f], b.X[sorted[pos+1]][f]
			if cur == next {
				continue
			}
			nl, nr := pos+1, n-pos-1
			if nl < t.MinSamplesLeaf || nr < t.MinSamplesLeaf {
				continue
			}
			w := float64(nl)*gini(left, nl) + float64(nr)*gini(right, nr)
			if !found || w < bestImp {
				thr := cur + (next-cur)/2
				if thr == next {
					thr = cur
				}
				bestFeat, bestThr, bestImp, found = f, thr, w, true
			}
		}
	}
	return bestFeat, bestThr, bestImp, found
}

// PredictProba returns the class distribution of the leaf x falls into.
func (t *Tree) PredictProba(x []float64) []float64 {
	nd := t.root
	for nd != nil && !nd.leaf {
		if x[nd.feature] <= nd.threshold {
			nd = nd.left
		} else {
			nd = nd.right
		}
	}
	if nd == nil {
		return make([]float64, t.nClasses)
	}
	return nd.probas
}

// Importances returns normalized impurity decrease per feature.
func (t *Tree) Importances() []float64 { return t.importances }
