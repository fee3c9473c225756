package boost

import (
	"math"
	"sort"
)

// binner maps raw feature values to histogram bins. bounds[f][b] is the
// inclusive upper edge of bin b; the last bin is open ended and also
// receives missing values.
type binner struct {
	bounds [][]float64
}

func newBinner(X [][]float64, maxBin int) *binner {
	p := len(X[0])
	b := &binner{bounds: make([][]float64, p)}
	col := make([]float64, 0, len(X))
	for f := 0; f < p; f++ {
		col = col[:0]
		for _, row := range X {
			if !math.IsNaN(row[f]) {
				col = append(col, row[f])
			}
		}
		sort.Float64s(col)
		b.bounds[f] = edges(col, maxBin)
	}
	return b
}

// edges returns bin upper edges for sorted values: midpoints between distinct
// values when they fit in maxBin, otherwise quantile cut points.
func edges(sorted []float64, maxBin int) []float64 {
	distinct := make([]float64, 0, 16)
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			distinct = append(distinct, v)
		}
	}
	var out []float64
	if len(distinct) <= maxBin {
		for i := 0; i+1 < len(distinct); i++ {
			out = append(out, distinct[i]+(distinct[i+1]-distinct[i])/2)
		}
	} else {
		n := len(sorted)
		for q := 1; q < maxBin; q++ {
			v := sorted[q*n/maxBin]
			if len(out) == 0 || v > out[len(out)-1] {
				out = append(out, v)
			}
		}
	}
	return append(out, math.Inf(1))
}

func (b *binner) bin(f int, v float64) int {
	bounds := b.bounds[f]
	if math.IsNaN(v) {
		return len(bounds) - 1
	}
	return sort.SearchFloat64s(bounds, v)
}

func (b *binner) transform(X [][]float64) [][]uint16 {
	out := make([][]uint16, len(X))
	for i, row := range X {
		r := make([]uint16, len(row))
		for f, v := range row {
			r[f] = uint16(b.bin(f, v))
		}
		out[i] = r
	}
	return out
}
