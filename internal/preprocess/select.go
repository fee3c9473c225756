package preprocess

import (
	"context"
	"math"
	"sort"

	"github.com/KaramelBytes/reservo/internal/failure"
	"github.com/KaramelBytes/reservo/internal/forest"
	"github.com/KaramelBytes/reservo/internal/table"
)

// Importance is one feature's score in the auxiliary forest.
type Importance struct {
	Feature string  `json:"feature"`
	Score   float64 `json:"score"`
}

// SelectOptions configures the auxiliary random forest.
type SelectOptions struct {
	// Estimators defaults to 100.
	Estimators  int
	RandomState int64
	// Workers bounds parallel tree fits; 0 => GOMAXPROCS.
	Workers int
	// MaxDepth 0 => unlimited; MaxFeatures 0 => sqrt(features).
	MaxDepth       int
	MinSamplesLeaf int
	MaxFeatures    int
	NoBootstrap    bool
}

// SelectFeatures ranks features by random-forest importance and returns a
// table with the top k features (in rank order) followed by target.
func SelectFeatures(ctx context.Context, t *table.Table, target string, k int, opts SelectOptions) (*table.Table, []Importance, error) {
	const op = "select features"
	if !t.Has(target) {
		return nil, nil, failure.Errorf(failure.KindFeatureSelection, op, "target column %q not in table", target)
	}
	features := make([]string, 0, len(t.Names()))
	for _, n := range t.Names() {
		if n != target {
			features = append(features, n)
		}
	}
	if k < 1 || k > len(features) {
		return nil, nil, failure.Errorf(failure.KindFeatureSelection, op,
			"no_of_features=%d must be between 1 and the %d available feature columns", k, len(features))
	}

	X, err := t.Matrix(features)
	if err != nil {
		return nil, nil, failure.Wrap(failure.KindFeatureSelection, op, err)
	}
	yf, err := t.Floats(target)
	if err != nil {
		return nil, nil, failure.Wrap(failure.KindFeatureSelection, op, err)
	}
	y := make([]int, len(yf))
	for i, v := range yf {
		if v < 0 || v != math.Trunc(v) {
			return nil, nil, failure.Errorf(failure.KindFeatureSelection, op, "target value %g at row %d is not a class code", v, i)
		}
		y[i] = int(v)
	}

	estimators := opts.Estimators
	if estimators <= 0 {
		estimators = 100
	}
	minLeaf := opts.MinSamplesLeaf
	if minLeaf <= 0 {
		minLeaf = 1
	}
	rf := forest.New(
		forest.WithEstimators(estimators),
		forest.WithRandomState(opts.RandomState),
		forest.WithWorkers(opts.Workers),
		forest.WithMaxDepth(opts.MaxDepth),
		forest.WithMinSamplesLeaf(minLeaf),
		forest.WithMaxFeatures(opts.MaxFeatures),
		forest.WithBootstrap(!opts.NoBootstrap),
	)
	if err := rf.Fit(ctx, X, y); err != nil {
		return nil, nil, failure.Wrap(failure.KindFeatureSelection, op, err)
	}

	scores := rf.FeatureImportances()
	ranking := make([]Importance, len(features))
	for i, f := range features {
		ranking[i] = Importance{Feature: f, Score: scores[i]}
	}
	sort.SliceStable(ranking, func(i, j int) bool { return ranking[i].Score > ranking[j].Score })

	keep := make([]string, 0, k+1)
	for _, imp := range ranking[:k] {
		keep = append(keep, imp.Feature)
	}
	keep = append(keep, target)
	out, err := t.Select(keep...)
	if err != nil {
		return nil, nil, failure.Wrap(failure.KindFeatureSelection, op, err)
	}
	return out, ranking, nil
}
