// Package train fits the cancellation classifier and persists it.
package train

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/KaramelBytes/reservo/internal/boost"
	"github.com/KaramelBytes/reservo/internal/evaluate"
	"github.com/KaramelBytes/reservo/internal/failure"
	"github.com/KaramelBytes/reservo/internal/preprocess"
	"github.com/KaramelBytes/reservo/internal/utils"
)

// CancelLabel is the target label that marks a cancelled booking.
const CancelLabel = "Canceled"

// Artifact is the persisted model together with what is needed to map raw
// inputs onto its feature vector.
type Artifact struct {
	Features []string          `msgpack:"features"`
	Target   string            `msgpack:"target"`
	Model    *boost.Classifier `msgpack:"model"`
	Params   boost.Params      `msgpack:"params"`
	// Fill holds the training median of every feature, in model space.
	Fill          map[string]float64  `msgpack:"fill"`
	Log1p         []string            `msgpack:"log1p"`
	Encoders      preprocess.Encoders `msgpack:"encoders"`
	TargetClasses []string            `msgpack:"target_classes"`
	Metrics       evaluate.Metrics    `msgpack:"metrics"`
	TrainedAt     time.Time           `msgpack:"trained_at"`

	// booster is set by LoadArtifact; it scores through the LightGBM export.
	booster *Booster
}

// SaveArtifact writes a to path as msgpack and its model in LightGBM text
// format to BoosterPath(path).
func SaveArtifact(path string, a *Artifact) error {
	if a.Model == nil {
		return failure.Errorf(failure.KindPersistence, "encode model", "artifact has no model")
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(a); err != nil {
		return failure.Wrap(failure.KindPersistence, "encode model", err)
	}
	if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
		return failure.Wrap(failure.KindPersistence, "write model", err)
	}
	return SaveBooster(BoosterPath(path), a.Model, a.Features)
}

// exportTolerance bounds how far the LightGBM export may drift from the
// in-process ensemble on the fill vector.
const exportTolerance = 1e-9

// LoadArtifact reads a model written by SaveArtifact.
func LoadArtifact(path string) (*Artifact, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.Wrap(failure.KindPersistence, "read model", err)
	}
	var a Artifact
	if err := msgpack.Unmarshal(b, &a); err != nil {
		return nil, failure.Wrap(failure.KindPersistence, "decode model", fmt.Errorf("%s: %w", path, err))
	}
	if a.Model == nil || len(a.Features) == 0 {
		return nil, failure.Errorf(failure.KindPersistence, "decode model", "%s: artifact has no model or features", path)
	}
	if a.Model.NFeatures != len(a.Features) {
		return nil, failure.Errorf(failure.KindPersistence, "decode model",
			"%s: model expects %d features, artifact lists %d", path, a.Model.NFeatures, len(a.Features))
	}
	booster, err := LoadBooster(BoosterPath(path), len(a.Features))
	if err != nil {
		return nil, err
	}
	ref := make([]float64, len(a.Features))
	for i, f := range a.Features {
		ref[i] = a.Fill[f]
	}
	got, err := booster.Proba([][]float64{ref})
	if err != nil {
		return nil, failure.Wrap(failure.KindPersistence, "load lightgbm", err)
	}
	if want := a.Model.PredictProba([][]float64{ref})[0]; math.Abs(got[0]-want) > exportTolerance {
		return nil, failure.Errorf(failure.KindPersistence, "load lightgbm",
			"%s: export scores %.12f, model scores %.12f", BoosterPath(path), got[0], want)
	}
	a.booster = booster
	return &a, nil
}

// CancelClass returns the model class code that means "cancelled".
func (a *Artifact) CancelClass() int {
	for i, c := range a.TargetClasses {
		if c == CancelLabel {
			return i
		}
	}
	return 0
}

// Missing lists the features that raw inputs keyed by given do not carry,
// in feature order.
func (a *Artifact) Missing(given []string) []string {
	have := make(map[string]bool, len(given))
	for _, g := range given {
		have[g] = true
	}
	var out []string
	for _, f := range a.Features {
		if !have[f] {
			out = append(out, f)
		}
	}
	return out
}

// Vector maps raw feature values onto the model's feature vector. Values
// for skew corrected features get log1p; absent features take their Fill
// value.
func (a *Artifact) Vector(raw map[string]float64) ([]float64, error) {
	skewed := make(map[string]bool, len(a.Log1p))
	for _, c := range a.Log1p {
		skewed[c] = true
	}
	x := make([]float64, len(a.Features))
	for i, f := range a.Features {
		v, ok := raw[f]
		if !ok {
			x[i] = a.Fill[f]
			continue
		}
		if skewed[f] {
			out, err := preprocess.Log1p([]float64{v})
			if err != nil {
				return nil, fmt.Errorf("feature %s: %w", f, err)
			}
			v = out[0]
		}
		x[i] = v
	}
	return x, nil
}

// CancelProbability returns the probability that the booking described by
// raw is cancelled. Loaded artifacts score through the LightGBM export;
// artifacts built in memory use Model directly.
func (a *Artifact) CancelProbability(raw map[string]float64) (float64, error) {
	x, err := a.Vector(raw)
	if err != nil {
		return 0, err
	}
	var p float64
	if a.booster != nil {
		probs, err := a.booster.Proba([][]float64{x})
		if err != nil {
			return 0, err
		}
		p = probs[0]
	} else {
		p = a.Model.PredictProba([][]float64{x})[0]
	}
	if a.CancelClass() == 0 {
		p = 1 - p
	}
	return p, nil
}
