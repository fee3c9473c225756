package table

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DescribeOptions controls the profile produced by Describe.
type DescribeOptions struct {
	// SampleRows is how many head rows to include; 0 means 5, negative disables.
	SampleRows int
	// TopValues caps the categorical value list; 0 means 8.
	TopValues int
	// OutlierThreshold is the robust |z| cutoff (MAD based); 0 means 3.5.
	OutlierThreshold float64
	// SkewThreshold adds a note for numeric columns skewed beyond it; 0 disables.
	SkewThreshold float64
}

// Report is a markdown-friendly profile of a table.
type Report struct {
	Name     string
	Rows     int
	Cols     []ColumnSummary
	Samples  [][]string
	Warnings []string
}

// ColumnSummary captures inferred kind and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    string // numeric|categorical|empty
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Min    float64
	Max    float64
	Mean   float64
	Median float64
	Std    float64
	Skew   float64
	// Outliers (robust Z via MAD)
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
	// Categorical top values
	TopValues []CategoryCount
}

type CategoryCount struct {
	Value string
	Count int
}

// Describe profiles every column of t. String columns whose non-missing
// cells all parse as numbers are treated as numeric.
func Describe(t *Table, name string, opt DescribeOptions) *Report {
	rep := &Report{Name: name, Rows: t.Rows()}
	topN := opt.TopValues
	if topN <= 0 {
		topN = 8
	}
	thr := opt.OutlierThreshold
	if thr <= 0 {
		thr = 3.5
	}

	for _, c := range t.cols {
		s := ColumnSummary{Name: c.name}
		vals, ok := numericValues(c)
		s.Missing = t.rows - len(vals)
		if ok && len(vals) > 0 {
			s.Kind = "numeric"
			s.NonNull = len(vals)
			summarizeNumeric(&s, vals, thr)
			if opt.SkewThreshold > 0 && !math.IsNaN(s.Skew) && s.Skew > opt.SkewThreshold {
				rep.Warnings = append(rep.Warnings,
					fmt.Sprintf("%s: skewness %.3f exceeds %.3g (log1p candidate)", c.name, s.Skew, opt.SkewThreshold))
			}
		} else {
			counts := map[string]int{}
			s.Missing = 0
			for i := 0; i < t.rows; i++ {
				v := strings.TrimSpace(c.cell(i))
				if v == "" || v == "NaN" {
					s.Missing++
					continue
				}
				s.NonNull++
				counts[v]++
			}
			s.Kind = "categorical"
			if s.NonNull == 0 {
				s.Kind = "empty"
			}
			s.Unique = len(counts)
			tops := make([]CategoryCount, 0, len(counts))
			for k, v := range counts {
				tops = append(tops, CategoryCount{Value: k, Count: v})
			}
			sort.Slice(tops, func(i, j int) bool {
				if tops[i].Count == tops[j].Count {
					return tops[i].Value < tops[j].Value
				}
				return tops[i].Count > tops[j].Count
			})
			if len(tops) > topN {
				tops = tops[:topN]
			}
			s.TopValues = tops
		}
		rep.Cols = append(rep.Cols, s)
	}

	sampleRows := opt.SampleRows
	if sampleRows == 0 {
		sampleRows = 5
	}
	for i := 0; i < t.rows && i < sampleRows; i++ {
		row := make([]string, len(t.cols))
		for j, c := range t.cols {
			row[j] = c.cell(i)
		}
		rep.Samples = append(rep.Samples, row)
	}
	return rep
}

// numericValues returns the non-missing values of a column and whether the
// column is numeric.
func numericValues(c *column) ([]float64, bool) {
	var out []float64
	if c.numeric {
		for _, v := range c.nums {
			if !math.IsNaN(v) {
				out = append(out, v)
			}
		}
		return out, true
	}
	for _, s := range c.strs {
		v, err := ParseCell(s)
		if err != nil {
			return nil, false
		}
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out, true
}

func summarizeNumeric(s *ColumnSummary, vals []float64, thr float64) {
	s.Min = floats.Min(vals)
	s.Max = floats.Max(vals)
	s.Mean, s.Std = stat.MeanStdDev(vals, nil)
	if len(vals) < 2 {
		s.Std = 0
	}
	s.Skew = Skewness(vals)

	median, mad := medianMAD(vals)
	s.Median = median
	s.OutlierThreshold = thr
	if len(vals) >= 8 && mad > 0 {
		for _, v := range vals {
			az := math.Abs(0.6745 * (v - median) / mad)
			if az > thr {
				s.OutliersCount++
			}
			if az > s.OutliersMaxAbsZ {
				s.OutliersMaxAbsZ = az
			}
		}
	}
	uniq := map[float64]struct{}{}
	for _, v := range vals {
		uniq[v] = struct{}{}
	}
	s.Unique = len(uniq)
}

// Skewness is the adjusted Fisher-Pearson sample skewness (G1). Columns with
// fewer than three values or zero variance have skewness 0.
func Skewness(vals []float64) float64 {
	if len(vals) < 3 {
		return 0
	}
	_, std := stat.MeanStdDev(vals, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return stat.Skew(vals, nil)
}

// Median returns the middle value of vals, or the mean of the two middle
// values when len(vals) is even. NaN must be filtered by the caller; an
// empty slice has median 0.
func Median(vals []float64) float64 {
	n := len(vals)
	if n == 0 {
		return 0
	}
	cp := append([]float64(nil), vals...)
	sort.Float64s(cp)
	if n%2 == 1 {
		return cp[n/2]
	}
	return (cp[n/2-1] + cp[n/2]) / 2
}

func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	median = Median(vals)
	dev := make([]float64, len(vals))
	for i, v := range vals {
		dev[i] = math.Abs(v - median)
	}
	return median, Median(dev)
}

// Markdown renders a compact report for terminals or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(r.Cols)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.Kind, c.NonNull, missPct))
		switch c.Kind {
		case "numeric":
			b.WriteString(fmt.Sprintf(": min %.4g, max %.4g, mean %.4g, median %.4g, std %.4g, skew %.3f",
				c.Min, c.Max, c.Mean, c.Median, c.Std, c.Skew))
			if c.OutliersCount > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f (max |z|≈%.2f)", c.OutliersCount, c.OutlierThreshold, c.OutliersMaxAbsZ))
			}
		case "categorical":
			if len(c.TopValues) > 0 {
				b.WriteString(": top: ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
				if c.Unique > len(c.TopValues) {
					b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
				}
			}
		}
		b.WriteString("\n")
	}
	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n| ")
		for i, c := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c.Name))
		}
		b.WriteString(" |\n| ")
		for i := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString("---")
		}
		b.WriteString(" |\n")
		for _, row := range r.Samples {
			b.WriteString("| ")
			for i, val := range row {
				if i > 0 {
					b.WriteString(" | ")
				}
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
