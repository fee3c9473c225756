// Package ingest pulls the raw bookings file and splits it into train and test sets.
package ingest

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/KaramelBytes/reservo/internal/config"
	"github.com/KaramelBytes/reservo/internal/failure"
	"github.com/KaramelBytes/reservo/internal/table"
)

// Split shuffles rows with a seeded permutation and returns train and test
// tables. The test set gets ceil(n*(1-trainRatio)) rows.
func Split(t *table.Table, trainRatio float64, seed int64) (*table.Table, *table.Table, error) {
	if trainRatio <= 0 || trainRatio >= 1 {
		return nil, nil, fmt.Errorf("train ratio %.4g must be in (0,1)", trainRatio)
	}
	n := t.Rows()
	nTest := int(math.Ceil(float64(n)*(1-trainRatio) - 1e-9))
	nTrain := n - nTest
	if nTest == 0 || nTrain == 0 {
		return nil, nil, fmt.Errorf("split of %d rows at ratio %.4g leaves an empty set", n, trainRatio)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return t.Take(perm[nTest:]), t.Take(perm[:nTest]), nil
}

// Result summarizes an ingestion run.
type Result struct {
	RawPath   string
	TrainPath string
	TestPath  string
	Rows      int
	TrainRows int
	TestRows  int
}

// Ingestor fetches the raw file and writes the split artifacts.
type Ingestor struct {
	Source     Source
	Paths      config.Paths
	TrainRatio float64
	Seed       int64
	Logger     zerolog.Logger
}

// Run executes fetch, split and save. All failures are IngestionErrors.
func (in *Ingestor) Run(ctx context.Context) (*Result, error) {
	log := in.Logger.With().Str("stage", "ingest").Logger()
	res := &Result{
		RawPath:   in.Paths.RawFile(),
		TrainPath: in.Paths.TrainFile(),
		TestPath:  in.Paths.TestFile(),
	}

	log.Info().Str("source", in.Source.Describe()).Str("path", res.RawPath).Msg("fetching raw data")
	if err := in.Source.Fetch(ctx, res.RawPath); err != nil {
		return nil, failure.Wrap(failure.KindIngestion, "fetch raw data", err)
	}

	raw, err := table.Load(res.RawPath)
	if err != nil {
		return nil, failure.Wrap(failure.KindIngestion, "load raw data", err)
	}
	train, test, err := Split(raw, in.TrainRatio, in.Seed)
	if err != nil {
		return nil, failure.Wrap(failure.KindIngestion, "split", err)
	}
	if err := train.Save(res.TrainPath); err != nil {
		return nil, failure.Wrap(failure.KindIngestion, "save train", err)
	}
	if err := test.Save(res.TestPath); err != nil {
		return nil, failure.Wrap(failure.KindIngestion, "save test", err)
	}
	res.Rows, res.TrainRows, res.TestRows = raw.Rows(), train.Rows(), test.Rows()
	log.Info().Int("rows", res.Rows).Int("train_rows", res.TrainRows).Int("test_rows", res.TestRows).Msg("raw data split")
	return res, nil
}
