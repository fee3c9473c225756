package preprocess

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/KaramelBytes/reservo/internal/failure"
	"github.com/KaramelBytes/reservo/internal/table"
)

// BalanceOptions configures SMOTE oversampling.
type BalanceOptions struct {
	// KNeighbors is the neighbourhood size; 0 => 5. It is capped at the
	// minority class size minus one.
	KNeighbors  int
	RandomState int64
}

// Balance oversamples every minority class of target up to the majority
// count with SMOTE. Original rows come first; synthetic rows are appended.
func Balance(in *table.Table, target string, opts BalanceOptions) (*table.Table, error) {
	const op = "balance"
	if !in.Has(target) {
		return nil, failure.Errorf(failure.KindBalance, op, "target column %q not in table", target)
	}
	names := in.Names()
	for _, n := range names {
		if !in.IsNumeric(n) {
			return nil, failure.Errorf(failure.KindBalance, op, "column %q is not numeric; encode it first", n)
		}
	}
	k := opts.KNeighbors
	if k <= 0 {
		k = 5
	}

	y, _ := in.Floats(target)
	byClass := map[float64][]int{}
	for i, v := range y {
		if math.IsNaN(v) {
			return nil, failure.Errorf(failure.KindBalance, op, "target is missing at row %d", i)
		}
		byClass[v] = append(byClass[v], i)
	}
	if len(byClass) < 2 {
		return nil, failure.Errorf(failure.KindBalance, op, "need at least 2 classes, found %d", len(byClass))
	}
	classes := make([]float64, 0, len(byClass))
	majority := 0
	for c, rows := range byClass {
		classes = append(classes, c)
		if len(rows) > majority {
			majority = len(rows)
		}
	}
	sort.Float64s(classes)

	features := make([]string, 0, len(names)-1)
	for _, n := range names {
		if n != target {
			features = append(features, n)
		}
	}
	X, err := in.Matrix(features)
	if err != nil {
		return nil, failure.Wrap(failure.KindBalance, op, err)
	}
	for i, row := range X {
		for j, v := range row {
			if math.IsNaN(v) {
				return nil, failure.Errorf(failure.KindBalance, op, "feature %q is missing at row %d", features[j], i)
			}
		}
	}

	rnd := rand.New(rand.NewSource(opts.RandomState))
	out := in.Clone()
	for _, c := range classes {
		rows := byClass[c]
		need := majority - len(rows)
		if need == 0 {
			continue
		}
		if len(rows) < 2 {
			return nil, failure.Errorf(failure.KindBalance, op, "class %g has %d sample(s); SMOTE needs at least 2", c, len(rows))
		}
		synth := smote(X, rows, need, min(k, len(rows)-1), rnd)
		full := make([][]float64, len(synth))
		for i, s := range synth {
			full[i] = assemble(names, target, c, s)
		}
		if err := out.AppendFloatRows(full); err != nil {
			return nil, failure.Wrap(failure.KindBalance, op, err)
		}
	}
	return out, nil
}

// smote draws need synthetic samples for the class whose rows are given.
// Each sample interpolates a random member towards one of its k nearest
// neighbours within the class.
func smote(X [][]float64, rows []int, need, k int, rnd *rand.Rand) [][]float64 {
	type draw struct {
		base, nn int
		step     float64
	}
	draws := make([]draw, need)
	for i := range draws {
		r := rnd.Intn(len(rows) * k)
		draws[i] = draw{base: r / k, nn: r % k}
	}
	for i := range draws {
		draws[i].step = rnd.Float64()
	}

	neighbours := map[int][]int{}
	out := make([][]float64, need)
	for i, d := range draws {
		nn, ok := neighbours[d.base]
		if !ok {
			nn = nearest(X, rows, d.base, k)
			neighbours[d.base] = nn
		}
		a, b := X[rows[d.base]], X[rows[nn[d.nn]]]
		s := make([]float64, len(a))
		for j := range s {
			s[j] = a[j] + d.step*(b[j]-a[j])
		}
		out[i] = s
	}
	return out
}

// nearest returns positions (into rows) of the k members closest to rows[self],
// excluding self. Equal distances keep row order.
func nearest(X [][]float64, rows []int, self, k int) []int {
	type cand struct {
		pos  int
		dist float64
	}
	base := X[rows[self]]
	cands := make([]cand, 0, len(rows)-1)
	for p, r := range rows {
		if p == self {
			continue
		}
		cands = append(cands, cand{pos: p, dist: floats.Distance(base, X[r], 2)})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	out := make([]int, k)
	for i := range out {
		out[i] = cands[i].pos
	}
	return out
}

func assemble(names []string, target string, class float64, feats []float64) []float64 {
	row := make([]float64, len(names))
	j := 0
	for i, n := range names {
		if n == target {
			row[i] = class
			continue
		}
		row[i] = feats[j]
		j++
	}
	return row
}

// ClassCounts returns the number of rows per target value.
func ClassCounts(t *table.Table, target string) (map[float64]int, error) {
	y, err := t.Floats(target)
	if err != nil {
		return nil, fmt.Errorf("class counts: %w", err)
	}
	out := map[float64]int{}
	for _, v := range y {
		out[v]++
	}
	return out, nil
}
