package preprocess

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/KaramelBytes/reservo/internal/utils"
)

// Manifest records the train-side transforms so raw inputs can be mapped
// into the space the model was trained in.
type Manifest struct {
	Target      string       `json:"target"`
	Features    []string     `json:"features"`
	Encoders    Encoders     `json:"encoders"`
	Log1p       []string     `json:"log1p"`
	Importances []Importance `json:"importances"`
}

func SaveManifest(path string, m Manifest) error {
	b, err := utils.PrettyJSON(m)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(path, b)
}

func LoadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
