// Package boost implements a gradient-boosted decision tree classifier for
// binary targets: log-loss, histogram split finding and leaf-wise growth.
package boost

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Params are the tunable hyperparameters.
type Params struct {
	NEstimators     int     `json:"n_estimators" msgpack:"n_estimators"`
	MaxDepth        int     `json:"max_depth" msgpack:"max_depth"` // <= 0 => unlimited
	LearningRate    float64 `json:"learning_rate" msgpack:"learning_rate"`
	NumLeaves       int     `json:"num_leaves" msgpack:"num_leaves"`
	MinChildSamples int     `json:"min_child_samples" msgpack:"min_child_samples"`
	Lambda          float64 `json:"lambda" msgpack:"lambda"`
	MaxBin          int     `json:"max_bin" msgpack:"max_bin"`
}

// DefaultParams mirrors common LightGBM defaults.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		MaxDepth:        -1,
		LearningRate:    0.1,
		NumLeaves:       31,
		MinChildSamples: 20,
		MaxBin:          255,
	}
}

// Set assigns a parameter by its snake_case name. Integer parameters are
// rounded.
func (p *Params) Set(name string, v float64) error {
	switch name {
	case "n_estimators":
		p.NEstimators = int(math.Round(v))
	case "max_depth":
		p.MaxDepth = int(math.Round(v))
	case "learning_rate":
		p.LearningRate = v
	case "num_leaves":
		p.NumLeaves = int(math.Round(v))
	case "min_child_samples":
		p.MinChildSamples = int(math.Round(v))
	case "lambda", "reg_lambda":
		p.Lambda = v
	case "max_bin":
		p.MaxBin = int(math.Round(v))
	default:
		return fmt.Errorf("unknown parameter %q", name)
	}
	return nil
}

func (p Params) validate() error {
	switch {
	case p.NEstimators < 1:
		return fmt.Errorf("n_estimators must be >= 1, got %d", p.NEstimators)
	case p.LearningRate <= 0:
		return fmt.Errorf("learning_rate must be > 0, got %g", p.LearningRate)
	case p.NumLeaves < 2:
		return fmt.Errorf("num_leaves must be >= 2, got %d", p.NumLeaves)
	case p.MaxBin < 2 || p.MaxBin > math.MaxUint16:
		return fmt.Errorf("max_bin must be in [2, %d], got %d", math.MaxUint16, p.MaxBin)
	case p.Lambda < 0:
		return fmt.Errorf("lambda must be >= 0, got %g", p.Lambda)
	}
	return nil
}

// Tree is one regression tree stored as flat arrays; node 0 is the root and
// Left[i] < 0 marks a leaf.
type Tree struct {
	Feature   []int     `msgpack:"feature"`
	Threshold []float64 `msgpack:"threshold"`
	Left      []int     `msgpack:"left"`
	Right     []int     `msgpack:"right"`
	Value     []float64 `msgpack:"value"`
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for t.Left[i] >= 0 {
		// Missing values go right, matching the open-ended last bin.
		if x[t.Feature[i]] <= t.Threshold[i] {
			i = t.Left[i]
		} else {
			i = t.Right[i]
		}
	}
	return t.Value[i]
}

// Classifier is a fitted (or unfitted) boosted ensemble.
type Classifier struct {
	Params    Params  `msgpack:"params"`
	InitScore float64 `msgpack:"init_score"`
	Trees     []Tree  `msgpack:"trees"`
	NFeatures int     `msgpack:"n_features"`
}

// New returns an unfitted classifier.
func New(p Params) *Classifier {
	return &Classifier{Params: p}
}

// Fit trains on X with labels y in {0,1}. Both classes must be present.
func (c *Classifier) Fit(ctx context.Context, X [][]float64, y []int) error {
	if err := c.Params.validate(); err != nil {
		return err
	}
	if len(X) == 0 {
		return errors.New("empty X")
	}
	if len(y) != len(X) {
		return errors.New("X and y length mismatch")
	}
	p := len(X[0])
	if p == 0 {
		return errors.New("X has no features")
	}
	var pos int
	for i := range X {
		if len(X[i]) != p {
			return errors.New("inconsistent number of features in X rows")
		}
		switch y[i] {
		case 0:
		case 1:
			pos++
		default:
			return fmt.Errorf("label %d at row %d is not binary", y[i], i)
		}
	}
	n := len(X)
	if pos == 0 || pos == n {
		return errors.New("training data has a single class")
	}

	bn := newBinner(X, c.Params.MaxBin)
	binned := bn.transform(X)
	rate := float64(pos) / float64(n)
	c.InitScore = math.Log(rate / (1 - rate))
	c.NFeatures = p
	c.Trees = c.Trees[:0]

	score := make([]float64, n)
	for i := range score {
		score[i] = c.InitScore
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	g := &grower{params: c.Params, binned: binned, bins: bn, grad: grad, hess: hess}
	for it := 0; it < c.Params.NEstimators; it++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range score {
			pr := sigmoid(score[i])
			grad[i] = pr - float64(y[i])
			hess[i] = math.Max(pr*(1-pr), 1e-16)
		}
		tree, leafOf := g.grow(n)
		for i := range score {
			score[i] += tree.Value[leafOf[i]]
		}
		c.Trees = append(c.Trees, tree)
	}
	return nil
}

// Margin returns the raw log-odds for one row.
func (c *Classifier) Margin(x []float64) float64 {
	s := c.InitScore
	for i := range c.Trees {
		s += c.Trees[i].predict(x)
	}
	return s
}

// PredictProba returns P(y=1) per row.
func (c *Classifier) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = sigmoid(c.Margin(x))
	}
	return out
}

// Predict thresholds PredictProba at 0.5.
func (c *Classifier) Predict(X [][]float64) []int {
	probs := c.PredictProba(X)
	out := make([]int, len(probs))
	for i, p := range probs {
		if p > 0.5 {
			out[i] = 1
		}
	}
	return out
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }
