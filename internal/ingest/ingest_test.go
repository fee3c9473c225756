package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/reservo/internal/config"
	"github.com/KaramelBytes/reservo/internal/failure"
	"github.com/KaramelBytes/reservo/internal/table"
)

func bookings(n int) *table.Table {
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("INN%05d", i), fmt.Sprint(i * 3)}
	}
	t, _ := table.FromRecords([]string{"Booking_ID", "lead_time"}, rows)
	return t
}

func TestSplitSizesFollowCeilOfTestShare(t *testing.T) {
	cases := []struct {
		n, train, test int
		ratio          float64
	}{
		{100, 80, 20, 0.8},
		{10, 7, 3, 0.75},
		{7, 5, 2, 0.8},
	}
	for _, tc := range cases {
		tr, te, err := Split(bookings(tc.n), tc.ratio, 42)
		require.NoError(t, err)
		assert.Equal(t, tc.train, tr.Rows(), "n=%d", tc.n)
		assert.Equal(t, tc.test, te.Rows(), "n=%d", tc.n)
	}
}

func TestSplitIsDeterministicAndDisjoint(t *testing.T) {
	src := bookings(50)
	a1, b1, err := Split(src, 0.8, 7)
	require.NoError(t, err)
	a2, _, err := Split(src, 0.8, 7)
	require.NoError(t, err)

	ids1, _ := a1.Strings("Booking_ID")
	ids2, _ := a2.Strings("Booking_ID")
	assert.Equal(t, ids1, ids2)

	testIDs, _ := b1.Strings("Booking_ID")
	all := append(append([]string{}, ids1...), testIDs...)
	sort.Strings(all)
	want, _ := src.Strings("Booking_ID")
	assert.Equal(t, want, all)
}

func TestSplitRejectsDegenerate(t *testing.T) {
	_, _, err := Split(bookings(1), 0.8, 42)
	assert.Error(t, err)
	_, _, err = Split(bookings(10), 1, 42)
	assert.Error(t, err)
}

func TestIngestorRunWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "Hotel_Reservations.csv")
	var b strings.Builder
	b.WriteString("Booking_ID,lead_time,booking_status\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "INN%d,%d,Not_Canceled\n", i, i)
	}
	require.NoError(t, os.WriteFile(src, []byte(b.String()), 0o644))

	paths := config.Paths{ArtifactsDir: filepath.Join(dir, "artifacts")}
	in := &Ingestor{Source: LocalSource{Path: src}, Paths: paths, TrainRatio: 0.8, Seed: 42, Logger: zerolog.Nop()}
	res, err := in.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, res.Rows)
	assert.Equal(t, 16, res.TrainRows)
	assert.Equal(t, 4, res.TestRows)

	for _, p := range []string{paths.RawFile(), paths.TrainFile(), paths.TestFile()} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
	test, err := table.Load(paths.TestFile())
	require.NoError(t, err)
	assert.Equal(t, []string{"Booking_ID", "lead_time", "booking_status"}, test.Names())
}

func TestIngestorMissingSourceIsIngestionError(t *testing.T) {
	dir := t.TempDir()
	in := &Ingestor{
		Source:     LocalSource{Path: filepath.Join(dir, "absent.csv")},
		Paths:      config.Paths{ArtifactsDir: dir},
		TrainRatio: 0.8,
		Logger:     zerolog.Nop(),
	}
	_, err := in.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrIngestion)
}

func TestNewGCSSourceMissingKey(t *testing.T) {
	_, err := NewGCSSource(context.Background(), "b", "o", filepath.Join(t.TempDir(), "key.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service account key not found")
}
