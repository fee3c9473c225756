// Package forest implements a bagged ensemble of CART trees used to rank
// features by mean impurity decrease.
package forest

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Classifier is a random forest for classification.
type Classifier struct {
	NEstimators    int
	MaxDepth       int
	MinSamplesLeaf int
	// MaxFeatures is the number of features tried per split; 0 => sqrt(p).
	MaxFeatures int
	Bootstrap   bool
	RandomState int64
	// Workers bounds concurrent tree fits; 0 => GOMAXPROCS.
	Workers int

	Trees     []*Tree
	nFeatures int
	nClasses  int
}

// Option functional config for Classifier.
type Option func(*Classifier)

func WithEstimators(n int) Option     { return func(c *Classifier) { c.NEstimators = n } }
func WithMaxDepth(d int) Option       { return func(c *Classifier) { c.MaxDepth = d } }
func WithMaxFeatures(k int) Option    { return func(c *Classifier) { c.MaxFeatures = k } }
func WithBootstrap(b bool) Option     { return func(c *Classifier) { c.Bootstrap = b } }
func WithRandomState(s int64) Option  { return func(c *Classifier) { c.RandomState = s } }
func WithWorkers(n int) Option        { return func(c *Classifier) { c.Workers = n } }
func WithMinSamplesLeaf(n int) Option { return func(c *Classifier) { c.MinSamplesLeaf = n } }

// New initializes the forest: 100 trees, bootstrap, seed 42.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		NEstimators:    100,
		MinSamplesLeaf: 1,
		Bootstrap:      true,
		RandomState:    42,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fit trains every tree concurrently. Tree i draws its bootstrap sample and
// feature subsets from seed RandomState+i, so the result does not depend on
// scheduling.
func (c *Classifier) Fit(ctx context.Context, X [][]float64, y []int) error {
	if c.NEstimators < 1 {
		return errors.New("forest needs at least one estimator")
	}
	nClasses, err := checkXY(X, y)
	if err != nil {
		return err
	}
	n, p := len(X), len(X[0])
	maxFeatures := c.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(p)))))
	}
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*Tree, c.NEstimators)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			seed := c.RandomState + int64(i)
			rnd := rand.New(rand.NewSource(seed))
			idx := make([]int, n)
			for j := range idx {
				if c.Bootstrap {
					idx[j] = rnd.Intn(n)
				} else {
					idx[j] = j
				}
			}
			tree := NewTree(
				WithTreeMaxDepth(c.MaxDepth),
				WithTreeMaxFeatures(maxFeatures),
				WithTreeMinSamplesLeaf(c.MinSamplesLeaf),
				WithTreeRandomState(seed),
			)
			if err := tree.fitIndices(X, y, idx, nClasses); err != nil {
				return err
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	c.Trees, c.nFeatures, c.nClasses = trees, p, nClasses
	return nil
}

// PredictProba averages the trees' class distributions.
func (c *Classifier) PredictProba(x []float64) []float64 {
	out := make([]float64, c.nClasses)
	for _, t := range c.Trees {
		for k, v := range t.PredictProba(x) {
			out[k] += v
		}
	}
	if len(c.Trees) > 0 {
		for k := range out {
			out[k] /= float64(len(c.Trees))
		}
	}
	return out
}

// Predict returns the most probable class per row; ties go to the lower label.
func (c *Classifier) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i, x := range X {
		probs := c.PredictProba(x)
		best := 0
		for k := 1; k < len(probs); k++ {
			if probs[k] > probs[best] {
				best = k
			}
		}
		out[i] = best
	}
	return out
}

// FeatureImportances is the mean of per-tree normalized impurity decreases,
// renormalized to sum to 1. All zeros when no tree could split.
func (c *Classifier) FeatureImportances() []float64 {
	out := make([]float64, c.nFeatures)
	for _, t := range c.Trees {
		for j, v := range t.Importances() {
			out[j] += v
		}
	}
	var sum float64
	for _, v := range out {
		sum += v
	}
	if sum > 0 {
		for j := range out {
			out[j] /= sum
		}
	}
	return out
}
