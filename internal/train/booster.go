package train

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/YuminosukeSato/scigo/sklearn/lightgbm"
	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/reservo/internal/boost"
	"github.com/KaramelBytes/reservo/internal/failure"
	"github.com/KaramelBytes/reservo/internal/utils"
)

// BoosterPath is where the LightGBM text export of the artifact at
// artifactPath lives: same directory and stem, ".txt" extension.
func BoosterPath(artifactPath string) string {
	return strings.TrimSuffix(artifactPath, filepath.Ext(artifactPath)) + ".txt"
}

// SaveBooster writes m in LightGBM text format to path.
func SaveBooster(path string, m *boost.Classifier, features []string) error {
	var buf bytes.Buffer
	if err := m.WriteLightGBM(&buf, features); err != nil {
		return failure.Wrap(failure.KindPersistence, "export lightgbm", err)
	}
	if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
		return failure.Wrap(failure.KindPersistence, "write lightgbm", err)
	}
	return nil
}

// Booster scores rows with a LightGBM text model through scigo's predictor.
type Booster struct {
	nFeatures int

	mu      sync.Mutex
	predict func(*mat.Dense) ([]float64, error)
}

// LoadBooster parses a LightGBM text model for nFeatures inputs.
func LoadBooster(path string, nFeatures int) (*Booster, error) {
	model, err := lightgbm.LoadFromFile(path)
	if err != nil {
		return nil, failure.Wrap(failure.KindPersistence, "load lightgbm", fmt.Errorf("%s: %w", path, err))
	}
	p := lightgbm.NewPredictor(model)
	p.SetDeterministic(true)
	return &Booster{
		nFeatures: nFeatures,
		predict: func(X *mat.Dense) ([]float64, error) {
			out, err := p.Predict(X)
			if err != nil {
				return nil, err
			}
			r, _ := X.Dims()
			probs := make([]float64, r)
			for i := range probs {
				probs[i] = out.At(i, 0)
			}
			return probs, nil
		},
	}, nil
}

// Proba returns P(y=1) for every row of X.
func (b *Booster) Proba(X [][]float64) ([]float64, error) {
	if len(X) == 0 {
		return nil, nil
	}
	data := make([]float64, 0, len(X)*b.nFeatures)
	for i, row := range X {
		if len(row) != b.nFeatures {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(row), b.nFeatures)
		}
		data = append(data, row...)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.predict(mat.NewDense(len(X), b.nFeatures, data))
}
