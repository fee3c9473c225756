// Package runs records training runs on the local filesystem: parameters,
// metrics and copies of the artifacts each run produced.
package runs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/reservo/internal/utils"
)

const runFileName = "run.json"

const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// Artifact is a file attached to a run, relative to the run directory.
type Artifact struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Run is one training run persisted as run.json.
type Run struct {
	ID         string             `json:"id"`
	Status     string             `json:"status"`
	Error      string             `json:"error,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
	Params     map[string]any     `json:"params"`
	BestParams map[string]float64 `json:"best_params,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Artifacts  []Artifact         `json:"artifacts,omitempty"`

	// Not serialized: on-disk location of run.json
	rootDir string `json:"-"`
}

// Start creates a run with a fresh id under root and persists it.
func Start(root string, params map[string]any) (*Run, error) {
	id := uuid.NewString()
	r := &Run{
		ID:        id,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
		Params:    params,
		rootDir:   filepath.Join(root, id),
	}
	if err := r.Save(); err != nil {
		return nil, err
	}
	return r, nil
}

// Load reads run.json from dir.
func Load(dir string) (*Run, error) {
	path := filepath.Join(dir, runFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("run not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read run: %w", err)
	}
	var r Run
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("parse run: %w", err)
	}
	r.rootDir = dir
	return &r, nil
}

// Dir returns the run directory.
func (r *Run) Dir() string { return r.rootDir }

// Save writes run.json using atomic write.
func (r *Run) Save() error {
	if r.rootDir == "" {
		return errors.New("run directory not set")
	}
	data, err := utils.PrettyJSON(r)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(r.rootDir, runFileName), data)
}

// LogArtifact copies src into the run directory under subdir and records it.
func (r *Run) LogArtifact(src, subdir string) error {
	rel := filepath.Join(subdir, filepath.Base(src))
	if err := utils.CopyFile(src, filepath.Join(r.rootDir, rel)); err != nil {
		return fmt.Errorf("log artifact %s: %w", src, err)
	}
	r.Artifacts = append(r.Artifacts, Artifact{Name: filepath.Base(src), Path: rel})
	return nil
}

// Finish stamps the end time and status and saves the run. A non-nil err
// marks the run failed.
func (r *Run) Finish(err error) error {
	now := time.Now().UTC()
	r.FinishedAt = &now
	r.Status = StatusFinished
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
	}
	return r.Save()
}

// List loads every run under root, newest first. Directories without a
// readable run.json are skipped.
func List(root string) ([]*Run, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var out []*Run
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		r, err := Load(filepath.Join(root, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}
