package preprocess

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/reservo/internal/failure"
)

func TestSelectFeaturesReturnsKPlusTargetDeterministically(t *testing.T) {
	tb := bookings(t, 100, 20)
	clean, _, err := Preprocess(tb, testRoles, 5)
	require.NoError(t, err)
	bal, err := Balance(clean, "booking_status", BalanceOptions{RandomState: 42})
	require.NoError(t, err)

	opts := SelectOptions{Estimators: 20, RandomState: 42}
	a, rankA, err := SelectFeatures(context.Background(), bal, "booking_status", 3, opts)
	require.NoError(t, err)
	b, rankB, err := SelectFeatures(context.Background(), bal, "booking_status", 3, opts)
	require.NoError(t, err)

	require.Len(t, a.Names(), 4)
	assert.Equal(t, "booking_status", a.Names()[3])
	assert.Equal(t, a.Names(), b.Names())
	assert.Equal(t, rankA, rankB)
	assert.Equal(t, "lead_time", a.Names()[0], "lead time carries the cancellation signal")
	for i := 1; i < len(rankA); i++ {
		assert.GreaterOrEqual(t, rankA[i-1].Score, rankA[i].Score)
	}
}

func TestSelectFeaturesPassesForestShape(t *testing.T) {
	tb := bookings(t, 100, 22)
	clean, _, err := Preprocess(tb, testRoles, 5)
	require.NoError(t, err)

	// Unbootstrapped stumps over every feature all pick the same root split.
	opts := SelectOptions{Estimators: 5, RandomState: 7, MaxDepth: 1, MaxFeatures: 99, NoBootstrap: true}
	_, rank, err := SelectFeatures(context.Background(), clean, "booking_status", 2, opts)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rank[0].Score, 1e-9)
	for _, r := range rank[1:] {
		assert.Zero(t, r.Score, r.Feature)
	}
}

func TestSelectFeaturesRejectsKBeforeFitting(t *testing.T) {
	tb := bookings(t, 30, 21)
	clean, _, err := Preprocess(tb, testRoles, 5)
	require.NoError(t, err)

	// A cancelled context would make any forest fit fail; the k check must come first.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, k := range []int{0, 6, 99} {
		_, _, err := SelectFeatures(ctx, clean, "booking_status", k, SelectOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, failure.ErrFeatureSelection)
		assert.Contains(t, err.Error(), "no_of_features")
	}
}
