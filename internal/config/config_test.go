package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/reservo/internal/failure"
)

const sampleYAML = `data_ingestion:
  bucket_name: hotel-data
  bucket_filename: Hotel_Reservations.csv
  train_ratio: 0.8
data_processing:
  categorical_columns: [type_of_meal_plan, room_type_reserved, booking_status]
  numerical_columns: [lead_time, avg_price_per_room, no_of_special_requests]
  skewness_threshold: 5
  no_of_features: 3
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "hotel-data", c.DataIngestion.BucketName)
	assert.Equal(t, "booking_status", c.DataProcessing.TargetColumn)
	assert.Equal(t, []string{"Unnamed: 0", "Booking_ID"}, c.DataProcessing.DropColumns)
	assert.Equal(t, int64(42), c.DataProcessing.RandomState)
	assert.Equal(t, 5, c.DataProcessing.SMOTEKNeighbors)
	assert.Equal(t, 4, c.ModelTraining.NIter)
	assert.Equal(t, 2, c.ModelTraining.CV)
	assert.Equal(t, "accuracy", c.ModelTraining.Scoring)
	assert.Equal(t, DefaultParams(), c.ModelTraining.Params)
	assert.Equal(t, filepath.Join("artifacts", "models", "model.msgpack"), c.Paths.ModelFile())

	assert.Equal(t, 0, c.DataProcessing.ForestMaxDepth)
	assert.Equal(t, 1, c.DataProcessing.ForestMinSamplesLeaf)
	assert.Equal(t, 0, c.DataProcessing.ForestMaxFeatures)
	assert.True(t, c.DataProcessing.ForestBootstrap)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RESERVO_SERVING_ADDR", ":9191")
	t.Setenv("RESERVO_DATA_INGESTION_BUCKET_NAME", "other-bucket")
	c, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, ":9191", c.Serving.Addr)
	assert.Equal(t, "other-bucket", c.DataIngestion.BucketName)
}

func TestLoadCustomParams(t *testing.T) {
	body := sampleYAML + `model_training:
  scoring: f1
  params:
    n_estimators: {type: int_range, min: 10, max: 20}
    learning_rate: {type: choice, values: [0.05, 0.1]}
`
	c, err := Load(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, "f1", c.ModelTraining.Scoring)
	require.Len(t, c.ModelTraining.Params, 2)
	assert.Equal(t, []float64{0.05, 0.1}, c.ModelTraining.Params["learning_rate"].Values)
}

func TestLoadValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty bucket", strings.Replace(sampleYAML, "bucket_name: hotel-data", "bucket_name: \"\"", 1)},
		{"ratio out of range", strings.Replace(sampleYAML, "train_ratio: 0.8", "train_ratio: 1.5", 1)},
		{"overlapping roles", strings.Replace(sampleYAML, "numerical_columns: [lead_time,", "numerical_columns: [room_type_reserved, lead_time,", 1)},
		{"bad scoring", sampleYAML + `model_training:
  scoring: roc_auc
`},
		{"inverted range", sampleYAML + `model_training:
  params:
    max_depth: {type: int_range, min: 9, max: 3}
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, failure.ErrConfig), "want ConfigError, got %v", err)
		})
	}
}

func TestLoadMissingRequiredKey(t *testing.T) {
	lines := map[string]string{
		"data_ingestion.bucket_name":          "  bucket_name: hotel-data\n",
		"data_ingestion.bucket_filename":      "  bucket_filename: Hotel_Reservations.csv\n",
		"data_ingestion.train_ratio":          "  train_ratio: 0.8\n",
		"data_processing.categorical_columns": "  categorical_columns: [type_of_meal_plan, room_type_reserved, booking_status]\n",
		"data_processing.numerical_columns":   "  numerical_columns: [lead_time, avg_price_per_room, no_of_special_requests]\n",
		"data_processing.skewness_threshold":  "  skewness_threshold: 5\n",
		"data_processing.no_of_features":      "  no_of_features: 3\n",
	}
	require.Len(t, lines, len(RequiredKeys))
	for _, key := range RequiredKeys {
		t.Run(key, func(t *testing.T) {
			line, ok := lines[key]
			require.True(t, ok, key)
			body := strings.Replace(sampleYAML, line, "", 1)
			require.NotEqual(t, sampleYAML, body)
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
			assert.Equal(t, failure.KindConfig, failure.KindOf(err), "got %v", err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoadRequiredKeyFromEnv(t *testing.T) {
	t.Setenv("RESERVO_DATA_PROCESSING_NO_OF_FEATURES", "2")
	c, err := Load(writeConfig(t, strings.Replace(sampleYAML, "  no_of_features: 3\n", "", 1)))
	require.NoError(t, err)
	assert.Equal(t, 2, c.DataProcessing.NoOfFeatures)
}

func TestLoadTooManyFeaturesIsFeatureSelectionError(t *testing.T) {
	_, err := Load(writeConfig(t, strings.Replace(sampleYAML, "no_of_features: 3", "no_of_features: 9", 1)))
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrFeatureSelection)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, failure.KindConfig, failure.KindOf(err))
}

func TestSetAndSaveRoundTrip(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	c, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, Set(c, "serving.addr", ":7000"))
	require.NoError(t, Set(c, "model_training.n_iter", "8"))
	require.NoError(t, Save(c, path))

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", again.Serving.Addr)
	assert.Equal(t, 8, again.ModelTraining.NIter)
}

func TestSetRejects(t *testing.T) {
	c, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Error(t, Set(c, "nope", "1"))
	assert.ErrorIs(t, Set(c, "model_training.cv", "many"), failure.ErrConfig)
	assert.Equal(t, 2, c.ModelTraining.CV, "a value that does not parse leaves the config alone")
	assert.ErrorIs(t, Set(c, "data_processing.no_of_features", "99"), failure.ErrFeatureSelection)
	assert.Equal(t, 3, c.DataProcessing.NoOfFeatures, "an invalid value is not kept")
	assert.ErrorIs(t, Set(c, "model_training.cv", "1"), failure.ErrConfig)
	require.NoError(t, Set(c, "model_training.cv", "3"))
	assert.Equal(t, 3, c.ModelTraining.CV)

	require.NoError(t, Set(c, "data_processing.forest_bootstrap", "false"))
	assert.ErrorIs(t, Set(c, "data_processing.forest_bootstrap", "maybe"), failure.ErrConfig)
	assert.False(t, c.DataProcessing.ForestBootstrap)
	assert.ErrorIs(t, Set(c, "data_processing.forest_min_samples_leaf", "0"), failure.ErrConfig)
	assert.Equal(t, 1, c.DataProcessing.ForestMinSamplesLeaf)
	require.NoError(t, Set(c, "data_processing.forest_max_depth", "6"))
	assert.Equal(t, 6, c.DataProcessing.ForestMaxDepth)
}
