package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/reservo/internal/failure"
	"github.com/KaramelBytes/reservo/internal/table"
)

func numericTable(t *testing.T, cols map[string][]float64, order ...string) *table.Table {
	t.Helper()
	tb := table.New()
	for _, name := range order {
		require.NoError(t, tb.AddFloats(name, cols[name]))
	}
	return tb
}

func TestBalanceEqualizesBinaryClasses(t *testing.T) {
	tb := bookings(t, 100, 10)
	clean, _, err := Preprocess(tb, testRoles, 5)
	require.NoError(t, err)

	out, err := Balance(clean, "booking_status", BalanceOptions{KNeighbors: 5, RandomState: 42})
	require.NoError(t, err)
	counts, err := ClassCounts(out, "booking_status")
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, counts[0], counts[1])
	assert.Equal(t, 80, counts[0])
	assert.Equal(t, clean.Names(), out.Names())

	// original rows are kept in front
	before, _ := clean.Floats("lead_time")
	after, _ := out.Floats("lead_time")
	assert.Equal(t, before, after[:len(before)])
}

func TestBalanceSyntheticRowsInterpolateWithinClass(t *testing.T) {
	tb := numericTable(t, map[string][]float64{
		"x": {0, 1, 2, 3, 4, 5, 100, 101, 102},
		"y": {0, 0, 0, 0, 0, 0, 1, 1, 1},
	}, "x", "y")
	out, err := Balance(tb, "y", BalanceOptions{KNeighbors: 5, RandomState: 1})
	require.NoError(t, err)
	require.Equal(t, 12, out.Rows())
	xs, _ := out.Floats("x")
	ys, _ := out.Floats("y")
	for i := 9; i < 12; i++ {
		assert.Equal(t, 1.0, ys[i])
		assert.GreaterOrEqual(t, xs[i], 100.0)
		assert.LessOrEqual(t, xs[i], 102.0)
	}
}

func TestBalanceIsDeterministic(t *testing.T) {
	tb := bookings(t, 60, 11)
	clean, _, err := Preprocess(tb, testRoles, 5)
	require.NoError(t, err)
	a, err := Balance(clean, "booking_status", BalanceOptions{RandomState: 42})
	require.NoError(t, err)
	b, err := Balance(clean, "booking_status", BalanceOptions{RandomState: 42})
	require.NoError(t, err)
	_, ra := a.Records()
	_, rb := b.Records()
	assert.Equal(t, ra, rb)
}

func TestBalanceFailures(t *testing.T) {
	single := numericTable(t, map[string][]float64{"x": {1, 2}, "y": {1, 1}}, "x", "y")
	_, err := Balance(single, "y", BalanceOptions{})
	assert.ErrorIs(t, err, failure.ErrBalance)

	lonely := numericTable(t, map[string][]float64{"x": {1, 2, 3}, "y": {0, 0, 1}}, "x", "y")
	_, err = Balance(lonely, "y", BalanceOptions{})
	assert.ErrorIs(t, err, failure.ErrBalance)

	mixed, err := table.FromRecords([]string{"room", "y"}, [][]string{{"A", "0"}, {"B", "1"}})
	require.NoError(t, err)
	require.NoError(t, mixed.ParseFloats("y"))
	_, err = Balance(mixed, "y", BalanceOptions{})
	assert.ErrorIs(t, err, failure.ErrBalance)

	_, err = Balance(single, "absent", BalanceOptions{})
	assert.ErrorIs(t, err, failure.ErrBalance)
}

func TestBalanceAlreadyBalancedIsUnchanged(t *testing.T) {
	tb := numericTable(t, map[string][]float64{"x": {1, 2, 3, 4}, "y": {0, 1, 0, 1}}, "x", "y")
	out, err := Balance(tb, "y", BalanceOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, out.Rows())
}
