// Package search tunes boost.Params by randomized search with stratified
// k-fold cross-validation.
package search

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/reservo/internal/boost"
	"github.com/KaramelBytes/reservo/internal/config"
	"github.com/KaramelBytes/reservo/internal/evaluate"
)

// Candidate is one sampled configuration and its cross-validation scores.
type Candidate struct {
	Params map[string]float64 `json:"params"`
	Scores []float64          `json:"scores"`
	Mean   float64            `json:"mean"`
}

// Result is the outcome of a search.
type Result struct {
	Candidates []Candidate
	BestIndex  int
	BestParams boost.Params
	Model      *boost.Classifier
}

// Best returns the winning candidate.
func (r *Result) Best() Candidate { return r.Candidates[r.BestIndex] }

// Randomized samples NIter configurations from Space, scores each with CV
// folds and refits the best one on all data.
type Randomized struct {
	Base        boost.Params
	Space       map[string]config.Distribution
	NIter       int
	CV          int
	Scoring     string
	RandomState int64
	// Workers bounds concurrently evaluated candidates; 0 => GOMAXPROCS.
	Workers int
	Logger  zerolog.Logger
}

// Sample draws NIter parameter maps. Names are visited in sorted order so
// the draw only depends on RandomState.
func (s *Randomized) Sample() ([]map[string]float64, error) {
	if s.NIter < 1 {
		return nil, fmt.Errorf("n_iter must be >= 1, got %d", s.NIter)
	}
	names := make([]string, 0, len(s.Space))
	for n := range s.Space {
		names = append(names, n)
	}
	sort.Strings(names)

	rnd := rand.New(rand.NewSource(s.RandomState))
	out := make([]map[string]float64, s.NIter)
	for i := range out {
		m := make(map[string]float64, len(names))
		for _, n := range names {
			v, err := draw(rnd, s.Space[n])
			if err != nil {
				return nil, fmt.Errorf("param %s: %w", n, err)
			}
			m[n] = v
		}
		out[i] = m
	}
	return out, nil
}

func draw(rnd *rand.Rand, d config.Distribution) (float64, error) {
	switch d.Type {
	case "int_range":
		lo, hi := int(math.Ceil(d.Min)), int(math.Floor(d.Max))
		if hi < lo {
			return 0, fmt.Errorf("empty int range [%g, %g]", d.Min, d.Max)
		}
		return float64(lo + rnd.Intn(hi-lo+1)), nil
	case "float_range":
		if d.Max < d.Min {
			return 0, fmt.Errorf("empty float range [%g, %g]", d.Min, d.Max)
		}
		return d.Min + rnd.Float64()*(d.Max-d.Min), nil
	case "choice":
		if len(d.Values) == 0 {
			return 0, fmt.Errorf("choice without values")
		}
		return d.Values[rnd.Intn(len(d.Values))], nil
	}
	return 0, fmt.Errorf("unknown distribution type %q", d.Type)
}

func (s *Randomized) params(m map[string]float64) (boost.Params, error) {
	p := s.Base
	for n, v := range m {
		if err := p.Set(n, v); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Fit runs the search over X, y.
func (s *Randomized) Fit(ctx context.Context, X [][]float64, y []int) (*Result, error) {
	scoring := s.Scoring
	if scoring == "" {
		scoring = "accuracy"
	}
	if _, err := evaluate.Score(scoring, nil, nil); err != nil {
		return nil, err
	}
	samples, err := s.Sample()
	if err != nil {
		return nil, err
	}
	folds, err := StratifiedKFold(y, s.CV, s.RandomState)
	if err != nil {
		return nil, err
	}

	cands := make([]Candidate, len(samples))
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, m := range samples {
		g.Go(func() error {
			p, err := s.params(m)
			if err != nil {
				return err
			}
			scores := make([]float64, len(folds))
			for j, f := range folds {
				sc, err := fitScore(gctx, p, X, y, f, scoring)
				if err != nil {
					return fmt.Errorf("candidate %d fold %d: %w", i, j, err)
				}
				scores[j] = sc
			}
			var sum float64
			for _, sc := range scores {
				sum += sc
			}
			cands[i] = Candidate{Params: m, Scores: scores, Mean: sum / float64(len(scores))}
			s.Logger.Debug().Int("candidate", i).Interface("params", m).Float64(scoring, cands[i].Mean).Msg("candidate scored")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := 0
	for i := 1; i < len(cands); i++ {
		if cands[i].Mean > cands[best].Mean {
			best = i
		}
	}
	bp, err := s.params(cands[best].Params)
	if err != nil {
		return nil, err
	}
	model := boost.New(bp)
	if err := model.Fit(ctx, X, y); err != nil {
		return nil, fmt.Errorf("refit best: %w", err)
	}
	return &Result{Candidates: cands, BestIndex: best, BestParams: bp, Model: model}, nil
}

func fitScore(ctx context.Context, p boost.Params, X [][]float64, y []int, f Fold, scoring string) (float64, error) {
	Xtr, ytr := subset(X, y, f.Train)
	Xte, yte := subset(X, y, f.Test)
	m := boost.New(p)
	if err := m.Fit(ctx, Xtr, ytr); err != nil {
		return 0, err
	}
	return evaluate.Score(scoring, yte, m.Predict(Xte))
}

func subset(X [][]float64, y []int, rows []int) ([][]float64, []int) {
	xs := make([][]float64, len(rows))
	ys := make([]int, len(rows))
	for i, r := range rows {
		xs[i], ys[i] = X[r], y[r]
	}
	return xs, ys
}
