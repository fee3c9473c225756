package preprocess

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/KaramelBytes/reservo/internal/config"
	"github.com/KaramelBytes/reservo/internal/failure"
	"github.com/KaramelBytes/reservo/internal/table"
)

// Config bundles every knob of the processing stage.
type Config struct {
	Roles         Roles
	SkewThreshold float64
	NoOfFeatures  int
	Balance       BalanceOptions
	Select        SelectOptions
}

// ConfigFrom maps the data_processing section onto a stage Config.
func ConfigFrom(c config.Processing) Config {
	return Config{
		Roles: Roles{
			Categorical: c.CategoricalColumns,
			Numerical:   c.NumericalColumns,
			Target:      c.TargetColumn,
			Drop:        c.DropColumns,
		},
		SkewThreshold: c.SkewnessThreshold,
		NoOfFeatures:  c.NoOfFeatures,
		Balance:       BalanceOptions{KNeighbors: c.SMOTEKNeighbors, RandomState: c.RandomState},
		Select: SelectOptions{
			Estimators:     c.ForestEstimators,
			RandomState:    c.RandomState,
			MaxDepth:       c.ForestMaxDepth,
			MinSamplesLeaf: c.ForestMinSamplesLeaf,
			MaxFeatures:    c.ForestMaxFeatures,
			NoBootstrap:    !c.ForestBootstrap,
		},
	}
}

// Result is the output of Process.
type Result struct {
	Train       *table.Table
	Test        *table.Table
	Encoders    Encoders
	Importances []Importance
	// Log1p lists train columns that were skew corrected.
	Log1p []string
}

// Manifest returns what serving needs to map raw inputs into model space.
func (r *Result) Manifest(target string) Manifest {
	return Manifest{
		Target:      target,
		Features:    r.Train.Names()[:len(r.Train.Names())-1],
		Encoders:    r.Encoders,
		Log1p:       r.Log1p,
		Importances: r.Importances,
	}
}

// Process runs preprocess, balance and feature selection on train, then
// preprocesses test with the train encoders, balances it and projects it
// onto the train-selected columns. Selection never looks at test.
func Process(ctx context.Context, train, test *table.Table, cfg Config) (*Result, error) {
	target := cfg.Roles.Target

	tr, enc, skewed, err := preprocess(train, cfg.Roles, cfg.SkewThreshold, nil)
	if err != nil {
		return nil, err
	}
	if avail := len(tr.Names()) - 1; cfg.NoOfFeatures < 1 || cfg.NoOfFeatures > avail {
		return nil, failure.Errorf(failure.KindFeatureSelection, "select features",
			"no_of_features=%d must be between 1 and the %d available feature columns", cfg.NoOfFeatures, avail)
	}
	tr, err = Balance(tr, target, cfg.Balance)
	if err != nil {
		return nil, err
	}
	tr, ranking, err := SelectFeatures(ctx, tr, target, cfg.NoOfFeatures, cfg.Select)
	if err != nil {
		return nil, err
	}

	te, err := PreprocessWith(test, cfg.Roles, cfg.SkewThreshold, enc)
	if err != nil {
		return nil, err
	}
	te, err = Balance(te, target, cfg.Balance)
	if err != nil {
		return nil, err
	}
	te, err = te.Select(tr.Names()...)
	if err != nil {
		var mc *table.MissingColumnError
		if errors.As(err, &mc) {
			return nil, failure.Wrap(failure.KindConfig, "project test onto train columns", err)
		}
		return nil, failure.Wrap(failure.KindPreprocess, "project test onto train columns", err)
	}

	return &Result{Train: tr, Test: te, Encoders: enc, Importances: ranking, Log1p: skewed}, nil
}

// Processor reads the split artifacts, processes them and writes the
// processed CSVs.
type Processor struct {
	Paths  config.Paths
	Config Config
	Logger zerolog.Logger
}

// Run executes the processing stage end to end.
func (p *Processor) Run(ctx context.Context) (*Result, error) {
	log := p.Logger.With().Str("stage", "process").Logger()

	train, err := table.Load(p.Paths.TrainFile())
	if err != nil {
		return nil, failure.Wrap(failure.KindPersistence, "load train", err)
	}
	test, err := table.Load(p.Paths.TestFile())
	if err != nil {
		return nil, failure.Wrap(failure.KindPersistence, "load test", err)
	}
	log.Info().Int("train_rows", train.Rows()).Int("test_rows", test.Rows()).Msg("loaded split data")

	res, err := Process(ctx, train, test, p.Config)
	if err != nil {
		return nil, err
	}
	for i, imp := range res.Importances {
		log.Debug().Int("rank", i+1).Str("feature", imp.Feature).Float64("score", imp.Score).Msg("feature importance")
	}
	log.Info().Strs("features", res.Train.Names()).Int("train_rows", res.Train.Rows()).Int("test_rows", res.Test.Rows()).Msg("features selected")

	if err := res.Train.Save(p.Paths.ProcessedTrainFile()); err != nil {
		return nil, failure.Wrap(failure.KindPersistence, "save processed train", err)
	}
	if err := res.Test.Save(p.Paths.ProcessedTestFile()); err != nil {
		return nil, failure.Wrap(failure.KindPersistence, "save processed test", err)
	}
	if err := SaveManifest(p.Paths.ManifestFile(), res.Manifest(p.Config.Roles.Target)); err != nil {
		return nil, failure.Wrap(failure.KindPersistence, "save manifest", err)
	}
	log.Info().Str("path", p.Paths.ProcessedTrainFile()).Strs("log1p", res.Log1p).Msg("processed data saved")
	return res, nil
}
