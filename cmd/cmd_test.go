package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	cfgpkg "github.com/KaramelBytes/reservo/internal/config"
	"github.com/KaramelBytes/reservo/internal/failure"
)

// resetFlags clears values and Changed state that cobra keeps between
// Execute calls on the same command tree.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	closeLog()
	return out.String(), err
}

func writeBookings(t *testing.T, path string, n int) {
	t.Helper()
	rnd := rand.New(rand.NewSource(7))
	var b strings.Builder
	b.WriteString("Booking_ID,type_of_meal_plan,room_type_reserved,lead_time,avg_price_per_room,no_of_special_requests,arrival_month,arrival_date,booking_status\n")
	meals := []string{"Meal Plan 1", "Meal Plan 2", "Not Selected"}
	for i := 0; i < n; i++ {
		status, lead, req := "Not_Canceled", rnd.Intn(60), 1+rnd.Intn(3)
		if i%4 == 0 {
			status, lead, req = "Canceled", 120+rnd.Intn(250), rnd.Intn(2)
		}
		price := 70 + rnd.Float64()*80
		if i%19 == 0 {
			price = 500 + rnd.Float64()*300
		}
		fmt.Fprintf(&b, "INN%05d,%s,Room_Type %d,%d,%.2f,%d,%d,%d,%s\n",
			i, meals[i%3], 1+i%2, lead, price, req, 1+rnd.Intn(12), 1+rnd.Intn(28), status)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write bookings: %v", err)
	}
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	yml := fmt.Sprintf(`data_ingestion:
  bucket_name: test-bucket
  bucket_filename: Hotel_Reservations.csv
  train_ratio: 0.8
data_processing:
  categorical_columns: [type_of_meal_plan, room_type_reserved, booking_status]
  numerical_columns: [lead_time, avg_price_per_room, no_of_special_requests, arrival_month, arrival_date]
  skewness_threshold: 1.5
  no_of_features: 4
  forest_estimators: 20
model_training:
  n_iter: 2
  cv: 2
  scoring: f1
  params:
    n_estimators: {type: int_range, min: 10, max: 20}
    num_leaves: {type: int_range, min: 4, max: 8}
    learning_rate: {type: float_range, min: 0.1, max: 0.2}
paths:
  artifacts_dir: %s
logging:
  level: disabled
`, filepath.Join(dir, "artifacts"))
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestCLI_RunLocalEndToEnd(t *testing.T) {
	dir := t.TempDir()
	csv := filepath.Join(dir, "bookings.csv")
	writeBookings(t, csv, 200)
	cfgPath := writeConfig(t, dir)
	promFile := filepath.Join(dir, "reservo.prom")

	out, err := execute(t, "run", "--config", cfgPath, "--local", csv, "--metrics-textfile", promFile)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	for _, want := range []string{"✓ Ingested 200 rows", "✓ Processed data", "✓ Model saved"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	for _, rel := range []string{"raw/train.csv", "processed/processed_train.csv", "processed/manifest.json", "models/model.msgpack", "models/model.txt"} {
		if _, err := os.Stat(filepath.Join(dir, "artifacts", rel)); err != nil {
			t.Fatalf("expected artifact %s: %v", rel, err)
		}
	}
	prom, err := os.ReadFile(promFile)
	if err != nil {
		t.Fatalf("read metrics file: %v", err)
	}
	if !strings.Contains(string(prom), `stage="train"`) {
		t.Fatalf("metrics file missing train stage:\n%s", prom)
	}

	out, err = execute(t, "runs", "list", "--config", cfgPath)
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	if strings.Count(out, "[finished]") != 1 || !strings.Contains(out, "accuracy=") {
		t.Fatalf("unexpected runs list:\n%s", out)
	}
}

func TestCLI_StagesRunSeparately(t *testing.T) {
	dir := t.TempDir()
	csv := filepath.Join(dir, "bookings.csv")
	writeBookings(t, csv, 150)
	cfgPath := writeConfig(t, dir)

	if _, err := execute(t, "process", "--config", cfgPath); !errors.Is(err, failure.ErrPersistence) {
		t.Fatalf("process before ingest: expected PersistenceError, got %v", err)
	}
	for _, args := range [][]string{
		{"ingest", "--config", cfgPath, "--local", csv},
		{"process", "--config", cfgPath},
		{"train", "--config", cfgPath},
	} {
		if out, err := execute(t, args...); err != nil {
			t.Fatalf("%v failed: %v\n%s", args, err, out)
		}
	}
}

func TestCLI_FeatureCountTooLargeFailsBeforeFitting(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	b, _ := os.ReadFile(cfgPath)
	bad := strings.Replace(string(b), "no_of_features: 4", "no_of_features: 40", 1)
	if err := os.WriteFile(cfgPath, []byte(bad), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	_, err := execute(t, "ingest", "--config", cfgPath, "--local", filepath.Join(dir, "none.csv"))
	if !errors.Is(err, failure.ErrFeatureSelection) {
		t.Fatalf("expected FeatureSelectionError, got %v", err)
	}
}

func TestCLI_IngestMissingLocalFileIsIngestionError(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	_, err := execute(t, "ingest", "--config", cfgPath, "--local", filepath.Join(dir, "none.csv"))
	if !errors.Is(err, failure.ErrIngestion) {
		t.Fatalf("expected IngestionError, got %v", err)
	}
}

func TestCLI_ConfigShowAndSet(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	out, err := execute(t, "config", "set", "serving.addr", ":9191", "--config", cfgPath)
	if err != nil {
		t.Fatalf("config set: %v", err)
	}
	if !strings.Contains(out, "✓ Saved serving.addr=:9191") {
		t.Fatalf("unexpected output: %s", out)
	}
	reloaded, err := cfgpkg.Load(cfgPath)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Serving.Addr != ":9191" {
		t.Fatalf("addr not saved, got %q", reloaded.Serving.Addr)
	}

	out, err = execute(t, "config", "show", "--config", cfgPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "bucket_name: test-bucket") || !strings.Contains(out, "9191") {
		t.Fatalf("unexpected config show:\n%s", out)
	}

	if _, err := execute(t, "config", "set", "nope", "1", "--config", cfgPath); !errors.Is(err, failure.ErrConfig) {
		t.Fatalf("expected ConfigError for unknown key, got %v", err)
	}
	if _, err := execute(t, "config", "set", "data_ingestion.train_ratio", "1.5", "--config", cfgPath); !errors.Is(err, failure.ErrConfig) {
		t.Fatalf("expected ConfigError for out of range ratio, got %v", err)
	}
}

func TestCLI_DescribeWorksWithoutConfig(t *testing.T) {
	dir := t.TempDir()
	csv := filepath.Join(dir, "bookings.csv")
	writeBookings(t, csv, 60)

	out, err := execute(t, "describe", csv, "--config", filepath.Join(dir, "missing.yaml"), "--skew-threshold", "1")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	for _, want := range []string{"[SCHEMA]", "avg_price_per_room", "log1p candidate"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in describe output:\n%s", want, out)
		}
	}

	md := filepath.Join(dir, "profile.md")
	if _, err := execute(t, "describe", csv, "-o", md, "--config", filepath.Join(dir, "missing.yaml")); err != nil {
		t.Fatalf("describe -o: %v", err)
	}
	if b, err := os.ReadFile(md); err != nil || !strings.Contains(string(b), "[DATASET SUMMARY]") {
		t.Fatalf("profile not written: %v", err)
	}
}

func TestCLI_ServeWithoutModelFails(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	_, err := execute(t, "serve", "--config", cfgPath)
	if !errors.Is(err, failure.ErrPersistence) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
}
