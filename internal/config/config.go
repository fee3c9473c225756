package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/reservo/internal/failure"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "config/config.yaml"

// RequiredKeys must be present in the file or the environment.
var RequiredKeys = []string{
	"data_ingestion.bucket_name",
	"data_ingestion.bucket_filename",
	"data_ingestion.train_ratio",
	"data_processing.categorical_columns",
	"data_processing.numerical_columns",
	"data_processing.skewness_threshold",
	"data_processing.no_of_features",
}

// Pipeline configuration structure.
type Pipeline struct {
	DataIngestion  Ingestion  `mapstructure:"data_ingestion" yaml:"data_ingestion"`
	DataProcessing Processing `mapstructure:"data_processing" yaml:"data_processing"`
	ModelTraining  Training   `mapstructure:"model_training" yaml:"model_training"`
	Paths          Paths      `mapstructure:"paths" yaml:"paths"`
	Serving        Serving    `mapstructure:"serving" yaml:"serving"`
	Logging        Logging    `mapstructure:"logging" yaml:"logging"`
}

type Ingestion struct {
	BucketName      string  `mapstructure:"bucket_name" yaml:"bucket_name" validate:"required"`
	BucketFilename  string  `mapstructure:"bucket_filename" yaml:"bucket_filename" validate:"required"`
	TrainRatio      float64 `mapstructure:"train_ratio" yaml:"train_ratio" validate:"gt=0,lt=1"`
	CredentialsFile string  `mapstructure:"credentials_file" yaml:"credentials_file,omitempty"`
}

type Processing struct {
	CategoricalColumns []string `mapstructure:"categorical_columns" yaml:"categorical_columns" validate:"required,dive,required"`
	NumericalColumns   []string `mapstructure:"numerical_columns" yaml:"numerical_columns" validate:"required,dive,required"`
	SkewnessThreshold  float64  `mapstructure:"skewness_threshold" yaml:"skewness_threshold"`
	NoOfFeatures       int      `mapstructure:"no_of_features" yaml:"no_of_features" validate:"gte=1"`
	TargetColumn       string   `mapstructure:"target_column" yaml:"target_column" validate:"required"`
	DropColumns        []string `mapstructure:"drop_columns" yaml:"drop_columns"`
	RandomState        int64    `mapstructure:"random_state" yaml:"random_state"`
	SMOTEKNeighbors    int      `mapstructure:"smote_k_neighbors" yaml:"smote_k_neighbors" validate:"gte=1"`
	ForestEstimators   int      `mapstructure:"forest_estimators" yaml:"forest_estimators" validate:"gte=1"`
	// ForestMaxDepth 0 => unlimited; ForestMaxFeatures 0 => sqrt(features).
	ForestMaxDepth       int  `mapstructure:"forest_max_depth" yaml:"forest_max_depth" validate:"gte=0"`
	ForestMinSamplesLeaf int  `mapstructure:"forest_min_samples_leaf" yaml:"forest_min_samples_leaf" validate:"gte=1"`
	ForestMaxFeatures    int  `mapstructure:"forest_max_features" yaml:"forest_max_features" validate:"gte=0"`
	ForestBootstrap      bool `mapstructure:"forest_bootstrap" yaml:"forest_bootstrap"`
}

type Training struct {
	NIter       int                     `mapstructure:"n_iter" yaml:"n_iter" validate:"gte=1"`
	CV          int                     `mapstructure:"cv" yaml:"cv" validate:"gte=2"`
	Scoring     string                  `mapstructure:"scoring" yaml:"scoring" validate:"oneof=accuracy precision recall f1"`
	RandomState int64                   `mapstructure:"random_state" yaml:"random_state"`
	Params      map[string]Distribution `mapstructure:"params" yaml:"params" validate:"dive"`
}

// Distribution describes how one hyperparameter is sampled.
// int_range and float_range draw uniformly from [Min, Max]; choice picks one of Values.
type Distribution struct {
	Type   string    `mapstructure:"type" yaml:"type" validate:"oneof=int_range float_range choice"`
	Min    float64   `mapstructure:"min" yaml:"min"`
	Max    float64   `mapstructure:"max" yaml:"max"`
	Values []float64 `mapstructure:"values" yaml:"values,omitempty"`
}

type Paths struct {
	ArtifactsDir string `mapstructure:"artifacts_dir" yaml:"artifacts_dir" validate:"required"`
}

type Serving struct {
	Addr string `mapstructure:"addr" yaml:"addr" validate:"required"`
}

type Logging struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=console json"`
	Dir    string `mapstructure:"dir" yaml:"dir,omitempty"`
}

// DefaultParams mirrors the search space of the reference training job.
func DefaultParams() map[string]Distribution {
	return map[string]Distribution{
		"n_estimators":  {Type: "int_range", Min: 100, Max: 500},
		"max_depth":     {Type: "int_range", Min: 5, Max: 50},
		"learning_rate": {Type: "float_range", Min: 0.01, Max: 0.21},
		"num_leaves":    {Type: "int_range", Min: 20, Max: 100},
	}
}

// RawFile is where the downloaded source CSV lands.
func (p Paths) RawFile() string   { return filepath.Join(p.ArtifactsDir, "raw", "raw.csv") }
func (p Paths) TrainFile() string { return filepath.Join(p.ArtifactsDir, "raw", "train.csv") }
func (p Paths) TestFile() string  { return filepath.Join(p.ArtifactsDir, "raw", "test.csv") }
func (p Paths) ProcessedTrainFile() string {
	return filepath.Join(p.ArtifactsDir, "processed", "processed_train.csv")
}
func (p Paths) ProcessedTestFile() string {
	return filepath.Join(p.ArtifactsDir, "processed", "processed_test.csv")
}
func (p Paths) ManifestFile() string {
	return filepath.Join(p.ArtifactsDir, "processed", "manifest.json")
}
func (p Paths) ModelFile() string { return filepath.Join(p.ArtifactsDir, "models", "model.msgpack") }
func (p Paths) RunsDir() string   { return filepath.Join(p.ArtifactsDir, "runs") }

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to DefaultPath, creating the directory if necessary.
func Save(c *Pipeline, cfgFile string) error {
	path := cfgFile
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults, then validates it.
// Precedence: env > config file > defaults. Any failure is a ConfigError.
func Load(cfgFile string) (*Pipeline, error) {
	v := viper.New()
	v.SetEnvPrefix("RESERVO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, failure.Wrap(failure.KindConfig, "read config", err)
		}
	} else {
		v.AddConfigPath("config")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, failure.Wrap(failure.KindConfig, "read config", err)
			}
		}
	}

	for _, key := range RequiredKeys {
		if !v.IsSet(key) {
			return nil, failure.Errorf(failure.KindConfig, "load config", "required key %s is missing", key)
		}
		// Pin the value so Unmarshal sees keys supplied only through the environment.
		v.Set(key, v.Get(key))
	}

	var c Pipeline
	if err := v.Unmarshal(&c); err != nil {
		return nil, failure.Wrap(failure.KindConfig, "unmarshal config", err)
	}
	if len(c.ModelTraining.Params) == 0 {
		c.ModelTraining.Params = DefaultParams()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	// Registered so AutomaticEnv can see keys the file omits. Required keys
	// get no default; Load checks them with IsSet.
	v.SetDefault("data_ingestion.credentials_file", "")

	v.SetDefault("data_processing.target_column", "booking_status")
	v.SetDefault("data_processing.drop_columns", []string{"Unnamed: 0", "Booking_ID"})
	v.SetDefault("data_processing.random_state", 42)
	v.SetDefault("data_processing.smote_k_neighbors", 5)
	v.SetDefault("data_processing.forest_estimators", 100)
	v.SetDefault("data_processing.forest_max_depth", 0)
	v.SetDefault("data_processing.forest_min_samples_leaf", 1)
	v.SetDefault("data_processing.forest_max_features", 0)
	v.SetDefault("data_processing.forest_bootstrap", true)

	v.SetDefault("model_training.n_iter", 4)
	v.SetDefault("model_training.cv", 2)
	v.SetDefault("model_training.scoring", "accuracy")
	v.SetDefault("model_training.random_state", 42)

	v.SetDefault("paths.artifacts_dir", "artifacts")
	v.SetDefault("serving.addr", ":8080")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.dir", "")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct tag validation and the cross-field checks tags cannot express.
func (c *Pipeline) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return failure.Errorf(failure.KindConfig, "validate config", "%s", strings.Join(msgs, "; "))
		}
		return failure.Wrap(failure.KindConfig, "validate config", err)
	}

	dp := c.DataProcessing
	seen := make(map[string]string)
	for _, col := range dp.CategoricalColumns {
		seen[col] = "categorical"
	}
	for _, col := range dp.NumericalColumns {
		if seen[col] == "categorical" {
			return failure.Errorf(failure.KindConfig, "validate config", "column %q is both categorical and numerical", col)
		}
		seen[col] = "numerical"
	}
	features := len(seen)
	if _, ok := seen[dp.TargetColumn]; ok {
		features--
	}
	if dp.NoOfFeatures > features {
		return failure.Errorf(failure.KindFeatureSelection, "validate config",
			"no_of_features=%d exceeds the %d configured feature columns", dp.NoOfFeatures, features)
	}

	for name, d := range c.ModelTraining.Params {
		switch d.Type {
		case "int_range", "float_range":
			if d.Min > d.Max {
				return failure.Errorf(failure.KindConfig, "validate config", "param %s: min %.4g > max %.4g", name, d.Min, d.Max)
			}
		case "choice":
			if len(d.Values) == 0 {
				return failure.Errorf(failure.KindConfig, "validate config", "param %s: choice needs values", name)
			}
		}
	}
	return nil
}

// Set assigns a scalar key in dotted form (e.g. serving.addr) and revalidates.
// c is only changed when the value parses and the result is valid.
func Set(c *Pipeline, key, val string) error {
	next := *c
	var err error
	switch key {
	case "data_ingestion.bucket_name":
		next.DataIngestion.BucketName = val
	case "data_ingestion.bucket_filename":
		next.DataIngestion.BucketFilename = val
	case "data_ingestion.train_ratio":
		err = setFloat(&next.DataIngestion.TrainRatio, val)
	case "data_ingestion.credentials_file":
		next.DataIngestion.CredentialsFile = val
	case "data_processing.skewness_threshold":
		err = setFloat(&next.DataProcessing.SkewnessThreshold, val)
	case "data_processing.no_of_features":
		err = setInt(&next.DataProcessing.NoOfFeatures, val)
	case "data_processing.target_column":
		next.DataProcessing.TargetColumn = val
	case "data_processing.random_state":
		err = setInt64(&next.DataProcessing.RandomState, val)
	case "data_processing.smote_k_neighbors":
		err = setInt(&next.DataProcessing.SMOTEKNeighbors, val)
	case "data_processing.forest_estimators":
		err = setInt(&next.DataProcessing.ForestEstimators, val)
	case "data_processing.forest_max_depth":
		err = setInt(&next.DataProcessing.ForestMaxDepth, val)
	case "data_processing.forest_min_samples_leaf":
		err = setInt(&next.DataProcessing.ForestMinSamplesLeaf, val)
	case "data_processing.forest_max_features":
		err = setInt(&next.DataProcessing.ForestMaxFeatures, val)
	case "data_processing.forest_bootstrap":
		err = setBool(&next.DataProcessing.ForestBootstrap, val)
	case "model_training.n_iter":
		err = setInt(&next.ModelTraining.NIter, val)
	case "model_training.cv":
		err = setInt(&next.ModelTraining.CV, val)
	case "model_training.scoring":
		next.ModelTraining.Scoring = val
	case "model_training.random_state":
		err = setInt64(&next.ModelTraining.RandomState, val)
	case "paths.artifacts_dir":
		next.Paths.ArtifactsDir = val
	case "serving.addr":
		next.Serving.Addr = val
	case "logging.level":
		next.Logging.Level = val
	case "logging.format":
		next.Logging.Format = val
	case "logging.dir":
		next.Logging.Dir = val
	default:
		return failure.Errorf(failure.KindConfig, "set config", "unknown key: %s", key)
	}
	if err != nil {
		return failure.Wrap(failure.KindConfig, "set config", fmt.Errorf("invalid value for %s: %w", key, err))
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// The setters leave dst untouched when val does not parse.
func setBool(dst *bool, val string) error {
	b, err := strconv.ParseBool(val)
	if err == nil {
		*dst = b
	}
	return err
}

func setInt(dst *int, val string) error {
	n, err := strconv.Atoi(val)
	if err == nil {
		*dst = n
	}
	return err
}

func setInt64(dst *int64, val string) error {
	n, err := strconv.ParseInt(val, 10, 64)
	if err == nil {
		*dst = n
	}
	return err
}

func setFloat(dst *float64, val string) error {
	f, err := strconv.ParseFloat(val, 64)
	if err == nil {
		*dst = f
	}
	return err
}
