package preprocess

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/reservo/internal/config"
	"github.com/KaramelBytes/reservo/internal/failure"
	"github.com/KaramelBytes/reservo/internal/table"
)

func processConfig(k int) Config {
	return Config{
		Roles:         testRoles,
		SkewThreshold: 5,
		NoOfFeatures:  k,
		Balance:       BalanceOptions{KNeighbors: 5, RandomState: 42},
		Select:        SelectOptions{Estimators: 20, RandomState: 42},
	}
}

func TestProcessEndToEnd(t *testing.T) {
	train := bookings(t, 100, 30)
	test := bookings(t, 30, 31)

	res, err := Process(context.Background(), train, test, processConfig(3))
	require.NoError(t, err)

	require.Len(t, res.Train.Names(), 4)
	assert.Equal(t, "booking_status", res.Train.Names()[3])
	counts, err := ClassCounts(res.Train, "booking_status")
	require.NoError(t, err)
	assert.Equal(t, counts[0], counts[1])

	assert.Equal(t, res.Train.Names(), res.Test.Names())
	assert.GreaterOrEqual(t, res.Test.Rows(), 30)
	testCounts, err := ClassCounts(res.Test, "booking_status")
	require.NoError(t, err)
	assert.Equal(t, testCounts[0], testCounts[1])

	assert.Len(t, res.Importances, 5)
	assert.Contains(t, res.Encoders, "meal_plan")
}

func TestProcessFeatureCountTooLarge(t *testing.T) {
	_, err := Process(context.Background(), bookings(t, 40, 32), bookings(t, 20, 33), processConfig(12))
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrFeatureSelection)
}

func TestProcessTestSchemaMismatch(t *testing.T) {
	test := bookings(t, 30, 35)
	test.Drop("lead_time")
	_, err := Process(context.Background(), bookings(t, 100, 34), test, processConfig(3))
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrConfig)
}

func TestProcessSelectedUnlistedColumnMissingFromTest(t *testing.T) {
	// signal is numeric but in no role list, so it passes through train
	// preprocessing, gets selected, and is absent from test.
	train := bookings(t, 100, 38)
	status, err := train.Strings("booking_status")
	require.NoError(t, err)
	signal := make([]float64, len(status))
	for i, s := range status {
		if s == "Canceled" {
			signal[i] = 1
		}
	}
	require.NoError(t, train.AddFloats("signal", signal))

	// Every feature column is kept, signal included.
	_, err = Process(context.Background(), train, bookings(t, 30, 39), processConfig(6))
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrConfig)
	assert.Contains(t, err.Error(), "project test onto train columns")
	var mc *table.MissingColumnError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, "signal", mc.Name)
}

func TestProcessorRunWritesProcessedArtifacts(t *testing.T) {
	paths := config.Paths{ArtifactsDir: t.TempDir()}
	require.NoError(t, bookings(t, 100, 36).Save(paths.TrainFile()))
	require.NoError(t, bookings(t, 30, 37).Save(paths.TestFile()))

	p := &Processor{Paths: paths, Config: processConfig(2), Logger: zerolog.Nop()}
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	back, err := table.Load(paths.ProcessedTrainFile())
	require.NoError(t, err)
	assert.Equal(t, res.Train.Names(), back.Names())
	assert.Equal(t, res.Train.Rows(), back.Rows())

	backTest, err := table.Load(filepath.Join(paths.ArtifactsDir, "processed", "processed_test.csv"))
	require.NoError(t, err)
	assert.Equal(t, back.Names(), backTest.Names())
}

func TestProcessorRunMissingInputIsPersistenceError(t *testing.T) {
	p := &Processor{Paths: config.Paths{ArtifactsDir: t.TempDir()}, Config: processConfig(2), Logger: zerolog.Nop()}
	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, failure.ErrPersistence)
}

func TestConfigFromMapsProcessingSection(t *testing.T) {
	c := ConfigFrom(config.Processing{
		CategoricalColumns:   []string{"a"},
		NumericalColumns:     []string{"b"},
		TargetColumn:         "booking_status",
		DropColumns:          []string{"Booking_ID"},
		SkewnessThreshold:    5,
		NoOfFeatures:         1,
		RandomState:          42,
		SMOTEKNeighbors:      5,
		ForestEstimators:     100,
		ForestMaxDepth:       8,
		ForestMinSamplesLeaf: 3,
		ForestMaxFeatures:    2,
		ForestBootstrap:      false,
	})
	assert.Equal(t, "booking_status", c.Roles.Target)
	assert.Equal(t, int64(42), c.Balance.RandomState)
	assert.Equal(t, 100, c.Select.Estimators)
	assert.Equal(t, 8, c.Select.MaxDepth)
	assert.Equal(t, 3, c.Select.MinSamplesLeaf)
	assert.Equal(t, 2, c.Select.MaxFeatures)
	assert.True(t, c.Select.NoBootstrap)
	assert.Equal(t, []string{"Booking_ID"}, c.Roles.Drop)
}

func TestProcessorWritesManifest(t *testing.T) {
	paths := config.Paths{ArtifactsDir: t.TempDir()}
	require.NoError(t, bookings(t, 100, 38).Save(paths.TrainFile()))
	require.NoError(t, bookings(t, 30, 39).Save(paths.TestFile()))

	cfg := processConfig(3)
	cfg.SkewThreshold = 1
	p := &Processor{Paths: paths, Config: cfg, Logger: zerolog.Nop()}
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	m, err := LoadManifest(paths.ManifestFile())
	require.NoError(t, err)
	assert.Equal(t, "booking_status", m.Target)
	assert.Len(t, m.Features, 3)
	assert.Equal(t, res.Train.Names()[:3], m.Features)
	assert.Contains(t, m.Log1p, "avg_price_per_room")
	assert.Equal(t, []string{"Canceled", "Not_Canceled"}, m.Encoders["booking_status"].Classes)
}
