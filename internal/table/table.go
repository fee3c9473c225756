// Package table holds the in-memory column store every pipeline stage works on.
//
// A column is either string-valued (raw or categorical data) or float64-valued.
// Stages clone a table on entry and only mutate their private copy.
package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type column struct {
	name    string
	strs    []string
	nums    []float64
	numeric bool
}

func (c *column) cell(i int) string {
	if c.numeric {
		return FormatFloat(c.nums[i])
	}
	return c.strs[i]
}

func (c *column) clone() *column {
	out := &column{name: c.name, numeric: c.numeric}
	if c.numeric {
		out.nums = append([]float64(nil), c.nums...)
	} else {
		out.strs = append([]string(nil), c.strs...)
	}
	return out
}

// Table is an ordered set of equally long named columns.
type Table struct {
	cols  []*column
	index map[string]int
	rows  int
}

// MissingColumnError reports a column name absent from a table.
type MissingColumnError struct {
	Name string
}

func (e *MissingColumnError) Error() string { return fmt.Sprintf("column %q not found", e.Name) }

// New returns an empty table.
func New() *Table {
	return &Table{index: make(map[string]int)}
}

// FromRecords builds a string-valued table from a header and rows.
func FromRecords(header []string, rows [][]string) (*Table, error) {
	t := New()
	for j, name := range header {
		vals := make([]string, len(rows))
		for i, r := range rows {
			if j < len(r) {
				vals[i] = r[j]
			}
		}
		if err := t.AddStrings(name, vals); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Table) add(c *column, n int) error {
	if _, dup := t.index[c.name]; dup {
		return fmt.Errorf("duplicate column %q", c.name)
	}
	if len(t.cols) > 0 && n != t.rows {
		return fmt.Errorf("column %q has %d rows, table has %d", c.name, n, t.rows)
	}
	t.rows = n
	t.index[c.name] = len(t.cols)
	t.cols = append(t.cols, c)
	return nil
}

// AddStrings appends a string-valued column.
func (t *Table) AddStrings(name string, vals []string) error {
	return t.add(&column{name: name, strs: vals}, len(vals))
}

// AddFloats appends a numeric column.
func (t *Table) AddFloats(name string, vals []float64) error {
	return t.add(&column{name: name, nums: vals, numeric: true}, len(vals))
}

// Rows returns the row count.
func (t *Table) Rows() int { return t.rows }

// Names returns column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.name
	}
	return out
}

// Has reports whether the column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// IsNumeric reports whether the named column holds float64 values.
func (t *Table) IsNumeric(name string) bool {
	i, ok := t.index[name]
	return ok && t.cols[i].numeric
}

func (t *Table) col(name string) (*column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, &MissingColumnError{Name: name}
	}
	return t.cols[i], nil
}

// Strings returns the cells of a column rendered as strings.
// For string-valued columns the backing slice is returned.
func (t *Table) Strings(name string) ([]string, error) {
	c, err := t.col(name)
	if err != nil {
		return nil, err
	}
	if !c.numeric {
		return c.strs, nil
	}
	out := make([]string, t.rows)
	for i := range out {
		out[i] = c.cell(i)
	}
	return out, nil
}

// Floats returns the backing slice of a numeric column.
func (t *Table) Floats(name string) ([]float64, error) {
	c, err := t.col(name)
	if err != nil {
		return nil, err
	}
	if !c.numeric {
		return nil, fmt.Errorf("column %q is not numeric", name)
	}
	return c.nums, nil
}

// SetFloats replaces a column's values with numbers, keeping its position.
func (t *Table) SetFloats(name string, vals []float64) error {
	c, err := t.col(name)
	if err != nil {
		return err
	}
	if len(vals) != t.rows {
		return fmt.Errorf("column %q: got %d values for %d rows", name, len(vals), t.rows)
	}
	c.numeric, c.nums, c.strs = true, vals, nil
	return nil
}

// ParseFloats converts a string column to float64 in place. Already numeric
// columns are left alone. Empty cells and NA markers parse as NaN.
func (t *Table) ParseFloats(name string) error {
	c, err := t.col(name)
	if err != nil {
		return err
	}
	if c.numeric {
		return nil
	}
	nums := make([]float64, len(c.strs))
	for i, s := range c.strs {
		v, err := ParseCell(s)
		if err != nil {
			return fmt.Errorf("column %q row %d: %w", name, i, err)
		}
		nums[i] = v
	}
	c.numeric, c.nums, c.strs = true, nums, nil
	return nil
}

// ParseCell parses one numeric cell.
func ParseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "NA", "NaN", "nan":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}

// FormatFloat renders a number the way CSV artifacts store it.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Cell returns one cell as a string.
func (t *Table) Cell(name string, row int) (string, error) {
	c, err := t.col(name)
	if err != nil {
		return "", err
	}
	if row < 0 || row >= t.rows {
		return "", fmt.Errorf("row %d out of range", row)
	}
	return c.cell(row), nil
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{index: make(map[string]int, len(t.cols)), rows: t.rows}
	for i, c := range t.cols {
		out.cols = append(out.cols, c.clone())
		out.index[c.name] = i
	}
	return out
}

// Drop removes the named columns in place. Unknown names are ignored.
func (t *Table) Drop(names ...string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := t.cols[:0]
	for _, c := range t.cols {
		if !drop[c.name] {
			kept = append(kept, c)
		}
	}
	t.cols = kept
	t.reindex()
	if len(t.cols) == 0 {
		t.rows = 0
	}
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.cols))
	for i, c := range t.cols {
		t.index[c.name] = i
	}
}

// DropDuplicates removes rows identical to an earlier row, in place, keeping
// first occurrences in their original order. It returns the number removed.
func (t *Table) DropDuplicates() int {
	seen := make(map[string]struct{}, t.rows)
	keep := make([]int, 0, t.rows)
	var key strings.Builder
	for i := 0; i < t.rows; i++ {
		key.Reset()
		for _, c := range t.cols {
			key.WriteString(c.cell(i))
			key.WriteByte(0x1f)
		}
		k := key.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keep = append(keep, i)
	}
	removed := t.rows - len(keep)
	if removed > 0 {
		t.takeRows(keep)
	}
	return removed
}

// Take returns a new table holding the given rows in the given order.
func (t *Table) Take(rows []int) *Table {
	out := t.Clone()
	out.takeRows(rows)
	return out
}

func (t *Table) takeRows(rows []int) {
	for _, c := range t.cols {
		if c.numeric {
			nums := make([]float64, len(rows))
			for i, r := range rows {
				nums[i] = c.nums[r]
			}
			c.nums = nums
		} else {
			strs := make([]string, len(rows))
			for i, r := range rows {
				strs[i] = c.strs[r]
			}
			c.strs = strs
		}
	}
	t.rows = len(rows)
}

// Select returns a new table with exactly the named columns in that order.
func (t *Table) Select(names ...string) (*Table, error) {
	out := New()
	out.rows = t.rows
	for _, n := range names {
		c, err := t.col(n)
		if err != nil {
			return nil, err
		}
		if err := out.add(c.clone(), t.rows); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AppendFloatRows appends rows to an all-numeric table. Each row lists values
// in column order.
func (t *Table) AppendFloatRows(rows [][]float64) error {
	for _, c := range t.cols {
		if !c.numeric {
			return fmt.Errorf("column %q is not numeric", c.name)
		}
	}
	for i, r := range rows {
		if len(r) != len(t.cols) {
			return fmt.Errorf("row %d has %d values, table has %d columns", i, len(r), len(t.cols))
		}
	}
	for j, c := range t.cols {
		for _, r := range rows {
			c.nums = append(c.nums, r[j])
		}
	}
	t.rows += len(rows)
	return nil
}

// Matrix returns the named numeric columns as row-major data.
func (t *Table) Matrix(names []string) ([][]float64, error) {
	cols := make([][]float64, len(names))
	for j, n := range names {
		v, err := t.Floats(n)
		if err != nil {
			return nil, err
		}
		cols[j] = v
	}
	out := make([][]float64, t.rows)
	for i := range out {
		row := make([]float64, len(names))
		for j := range cols {
			row[j] = cols[j][i]
		}
		out[i] = row
	}
	return out, nil
}

// Records renders the table as a header plus string rows.
func (t *Table) Records() ([]string, [][]string) {
	rows := make([][]string, t.rows)
	for i := range rows {
		r := make([]string, len(t.cols))
		for j, c := range t.cols {
			r[j] = c.cell(i)
		}
		rows[i] = r
	}
	return t.Names(), rows
}
