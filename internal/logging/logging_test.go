package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(Config{Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)
	defer closer.Close()

	log.Info().Str("stage", "ingest").Int("rows", 3).Msg("done")
	out := buf.String()
	assert.Contains(t, out, `"stage":"ingest"`)
	assert.Contains(t, out, `"rows":3`)
	assert.Contains(t, out, `"message":"done"`)
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(Config{Level: "warn", Format: "json", Output: &buf})
	require.NoError(t, err)
	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestNewDailyFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	fixed := func() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC) }
	log, closer, err := New(Config{Format: "json", Output: &buf, Dir: dir, Now: fixed})
	require.NoError(t, err)
	log.Info().Msg("to file")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(filepath.Join(dir, "log_2024-03-09.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "to file")
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	_, err := ParseLevel("loud")
	assert.Error(t, err)
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, lvl)
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, _, err := New(Config{Format: "xml"})
	assert.Error(t, err)
}
