package table

import (
	"fmt"
	"io"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/KaramelBytes/reservo/internal/utils"
)

// ReadCSV loads a headed CSV stream. Every column is loaded as strings;
// callers convert numeric columns with ParseFloats.
func ReadCSV(r io.Reader) (*Table, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("read csv: %w", df.Err)
	}
	t := New()
	for _, name := range df.Names() {
		if err := t.AddStrings(name, df.Col(name).Records()); err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
	}
	return t, nil
}

// WriteCSV writes the table with a header row.
func (t *Table) WriteCSV(w io.Writer) error {
	if len(t.cols) == 0 {
		return fmt.Errorf("write csv: table has no columns")
	}
	ss := make([]series.Series, len(t.cols))
	for j, c := range t.cols {
		vals := make([]string, t.rows)
		for i := range vals {
			vals[i] = c.cell(i)
		}
		ss[j] = series.New(vals, series.String, c.name)
	}
	df := dataframe.New(ss...)
	if df.Err != nil {
		return fmt.Errorf("write csv: %w", df.Err)
	}
	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// Load reads a CSV file from disk.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// Save writes the table to path atomically, creating parent directories.
func (t *Table) Save(path string) error {
	return utils.SafeWriteWith(path, t.WriteCSV)
}
