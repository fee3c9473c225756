package train

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/KaramelBytes/reservo/internal/boost"
	"github.com/KaramelBytes/reservo/internal/config"
	"github.com/KaramelBytes/reservo/internal/evaluate"
	"github.com/KaramelBytes/reservo/internal/failure"
	"github.com/KaramelBytes/reservo/internal/preprocess"
	"github.com/KaramelBytes/reservo/internal/runs"
	"github.com/KaramelBytes/reservo/internal/search"
	"github.com/KaramelBytes/reservo/internal/table"
)

// Trainer runs the model training stage over the processed CSVs.
type Trainer struct {
	Paths    config.Paths
	Training config.Training
	Target   string
	// Workers bounds concurrently scored candidates; 0 => GOMAXPROCS.
	Workers int
	Logger  zerolog.Logger
}

// Result is what a training run produced.
type Result struct {
	Artifact *Artifact
	Run      *runs.Run
	Search   *search.Result
}

// Dataset is a numeric feature matrix and binary labels.
type Dataset struct {
	Features []string
	X        [][]float64
	Y        []int
}

// SplitXY separates the target column from the features. Every column must
// be numeric and the target must only hold 0 and 1.
func SplitXY(t *table.Table, target string) (*Dataset, error) {
	if !t.Has(target) {
		return nil, failure.Errorf(failure.KindTraining, "split features", "target column %q not found", target)
	}
	var features []string
	for _, n := range t.Names() {
		if err := t.ParseFloats(n); err != nil {
			return nil, failure.Wrap(failure.KindTraining, "split features", err)
		}
		if n != target {
			features = append(features, n)
		}
	}
	if len(features) == 0 {
		return nil, failure.Errorf(failure.KindTraining, "split features", "no feature columns besides %q", target)
	}
	X, err := t.Matrix(features)
	if err != nil {
		return nil, failure.Wrap(failure.KindTraining, "split features", err)
	}
	labels, err := t.Floats(target)
	if err != nil {
		return nil, failure.Wrap(failure.KindTraining, "split features", err)
	}
	y := make([]int, len(labels))
	for i, v := range labels {
		switch v {
		case 0, 1:
			y[i] = int(v)
		default:
			return nil, failure.Errorf(failure.KindTraining, "split features",
				"target %q must be binary 0/1, row %d has %g", target, i, v)
		}
	}
	return &Dataset{Features: features, X: X, Y: y}, nil
}

// Medians returns the median of each feature, ignoring NaN.
func (d *Dataset) Medians() map[string]float64 {
	out := make(map[string]float64, len(d.Features))
	for j, f := range d.Features {
		col := make([]float64, 0, len(d.X))
		for _, row := range d.X {
			if !math.IsNaN(row[j]) {
				col = append(col, row[j])
			}
		}
		out[f] = table.Median(col)
	}
	return out
}

func (tr *Trainer) load(path string) (*Dataset, error) {
	t, err := table.Load(path)
	if err != nil {
		return nil, failure.Wrap(failure.KindPersistence, "load "+path, err)
	}
	return SplitXY(t, tr.Target)
}

func (tr *Trainer) manifest() (*preprocess.Manifest, error) {
	m, err := preprocess.LoadManifest(tr.Paths.ManifestFile())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, failure.Wrap(failure.KindPersistence, "load manifest", err)
	}
	return m, nil
}

func (tr *Trainer) runParams(features []string) map[string]any {
	space := make(map[string]any, len(tr.Training.Params))
	for k, d := range tr.Training.Params {
		space[k] = d
	}
	return map[string]any{
		"n_iter":       tr.Training.NIter,
		"cv":           tr.Training.CV,
		"scoring":      tr.Training.Scoring,
		"random_state": tr.Training.RandomState,
		"features":     features,
		"space":        space,
	}
}

// Run executes the training stage end to end.
func (tr *Trainer) Run(ctx context.Context) (*Result, error) {
	log := tr.Logger.With().Str("stage", "train").Logger()

	train, err := tr.load(tr.Paths.ProcessedTrainFile())
	if err != nil {
		return nil, err
	}
	test, err := tr.load(tr.Paths.ProcessedTestFile())
	if err != nil {
		return nil, err
	}
	if fmt.Sprint(train.Features) != fmt.Sprint(test.Features) {
		return nil, failure.Errorf(failure.KindTraining, "check columns",
			"train features %v differ from test features %v", train.Features, test.Features)
	}
	man, err := tr.manifest()
	if err != nil {
		return nil, err
	}
	if man == nil {
		log.Warn().Str("path", tr.Paths.ManifestFile()).Msg("no preprocessing manifest, raw inputs will not be transformed at serving")
	}
	log.Info().Int("train_rows", len(train.Y)).Int("test_rows", len(test.Y)).Strs("features", train.Features).Msg("loaded processed data")

	run, err := runs.Start(tr.Paths.RunsDir(), tr.runParams(train.Features))
	if err != nil {
		return nil, failure.Wrap(failure.KindPersistence, "start run", err)
	}
	log = log.With().Str("run_id", run.ID).Logger()

	res, err := tr.fit(ctx, log, run, train, test, man)
	if ferr := run.Finish(err); ferr != nil && err == nil {
		err = failure.Wrap(failure.KindPersistence, "finish run", ferr)
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("model", tr.Paths.ModelFile()).Str("run_dir", run.Dir()).Msg("training finished")
	return res, nil
}

func (tr *Trainer) fit(ctx context.Context, log zerolog.Logger, run *runs.Run, train, test *Dataset, man *preprocess.Manifest) (*Result, error) {
	s := &search.Randomized{
		Base:        boost.DefaultParams(),
		Space:       tr.Training.Params,
		NIter:       tr.Training.NIter,
		CV:          tr.Training.CV,
		Scoring:     tr.Training.Scoring,
		RandomState: tr.Training.RandomState,
		Workers:     tr.Workers,
		Logger:      log,
	}
	start := time.Now()
	sr, err := s.Fit(ctx, train.X, train.Y)
	if err != nil {
		return nil, failure.Wrap(failure.KindTraining, "randomized search", err)
	}
	best := sr.Best()
	log.Info().Interface("best_params", best.Params).Float64(s.Scoring, best.Mean).
		Dur("elapsed", time.Since(start)).Msg("hyperparameter search done")

	metrics, err := evaluate.Evaluate(test.Y, sr.Model.Predict(test.X))
	if err != nil {
		return nil, failure.Wrap(failure.KindTraining, "evaluate", err)
	}
	log.Info().Float64("accuracy", metrics.Accuracy).Float64("precision", metrics.Precision).
		Float64("recall", metrics.Recall).Float64("f1", metrics.F1).Msg("test metrics")

	art := &Artifact{
		Features:  train.Features,
		Target:    tr.Target,
		Model:     sr.Model,
		Params:    sr.BestParams,
		Fill:      train.Medians(),
		Metrics:   metrics,
		TrainedAt: time.Now().UTC(),
	}
	if man != nil {
		art.Log1p = man.Log1p
		art.Encoders = man.Encoders
		art.TargetClasses = man.Encoders[tr.Target].Classes
	}
	if err := SaveArtifact(tr.Paths.ModelFile(), art); err != nil {
		return nil, err
	}

	run.BestParams = best.Params
	run.Metrics = map[string]float64{
		"accuracy":        metrics.Accuracy,
		"precision":       metrics.Precision,
		"recall":          metrics.Recall,
		"f1":              metrics.F1,
		"cv_" + s.Scoring: best.Mean,
	}
	if err := run.LogArtifact(tr.Paths.ProcessedTrainFile(), "dataset"); err != nil {
		return nil, failure.Wrap(failure.KindPersistence, "log dataset", err)
	}
	for _, f := range []string{tr.Paths.ModelFile(), BoosterPath(tr.Paths.ModelFile())} {
		if err := run.LogArtifact(f, "model"); err != nil {
			return nil, failure.Wrap(failure.KindPersistence, "log model", err)
		}
	}
	return &Result{Artifact: art, Run: run, Search: sr}, nil
}
