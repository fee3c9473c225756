// Package preprocess turns a raw bookings table into a model-ready one:
// label encoding, skew correction, class balancing and feature selection.
package preprocess

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/reservo/internal/failure"
	"github.com/KaramelBytes/reservo/internal/table"
)

// Roles partitions column names. Categorical and Numerical must be disjoint;
// Target may also be listed as categorical.
type Roles struct {
	Categorical []string
	Numerical   []string
	Target      string
	// Drop lists identifier or index columns removed before anything else.
	// Names absent from the table are ignored.
	Drop []string
}

// Validate checks the roles against the columns of t.
func (r Roles) Validate(t *table.Table) error {
	if r.Target == "" {
		return failure.Errorf(failure.KindConfig, "validate roles", "target column is not set")
	}
	if !t.Has(r.Target) {
		return failure.Errorf(failure.KindConfig, "validate roles", "target column %q not in table", r.Target)
	}
	cat := make(map[string]bool, len(r.Categorical))
	for _, c := range r.Categorical {
		if !t.Has(c) {
			return failure.Errorf(failure.KindConfig, "validate roles", "categorical column %q not in table", c)
		}
		cat[c] = true
	}
	for _, c := range r.Numerical {
		if cat[c] {
			return failure.Errorf(failure.KindConfig, "validate roles", "column %q is both categorical and numerical", c)
		}
		if c == r.Target {
			return failure.Errorf(failure.KindConfig, "validate roles", "target %q listed as numerical", c)
		}
		if !t.Has(c) {
			return failure.Errorf(failure.KindConfig, "validate roles", "numerical column %q not in table", c)
		}
	}
	return nil
}

func (r Roles) targetIsCategorical() bool {
	for _, c := range r.Categorical {
		if c == r.Target {
			return true
		}
	}
	return false
}

// Preprocess cleans t and fits fresh label encoders on its own values.
// t itself is not modified.
func Preprocess(t *table.Table, roles Roles, skewThreshold float64) (*table.Table, Encoders, error) {
	out, enc, _, err := preprocess(t, roles, skewThreshold, nil)
	return out, enc, err
}

// PreprocessWith cleans t using encoders fitted elsewhere (normally on the
// training table). A label the encoders have never seen is a PreprocessError.
func PreprocessWith(t *table.Table, roles Roles, skewThreshold float64, enc Encoders) (*table.Table, error) {
	out, _, _, err := preprocess(t, roles, skewThreshold, enc)
	return out, err
}

// preprocess also returns the columns that received log1p.
func preprocess(in *table.Table, roles Roles, skewThreshold float64, fitted Encoders) (*table.Table, Encoders, []string, error) {
	t := in.Clone()
	t.Drop(roles.Drop...)
	t.DropDuplicates()
	if err := roles.Validate(t); err != nil {
		return nil, nil, nil, err
	}

	encoders := make(Encoders, len(roles.Categorical)+1)
	encode := func(col string) error {
		vals, err := t.Strings(col)
		if err != nil {
			return err
		}
		enc, ok := fitted[col]
		if fitted == nil {
			enc, ok = FitLabelEncoder(col, vals), true
		}
		if !ok {
			return fmt.Errorf("no encoder fitted for column %q", col)
		}
		codes, err := enc.Transform(vals)
		if err != nil {
			return err
		}
		encoders[col] = enc
		return t.SetFloats(col, codes)
	}

	for _, col := range roles.Categorical {
		if err := encode(col); err != nil {
			return nil, nil, nil, failure.Wrap(failure.KindPreprocess, "encode "+col, err)
		}
	}
	if !roles.targetIsCategorical() {
		// A string-valued target is encoded like a categorical column.
		if err := t.ParseFloats(roles.Target); err != nil {
			if err := encode(roles.Target); err != nil {
				return nil, nil, nil, failure.Wrap(failure.KindPreprocess, "encode target", err)
			}
		}
	}

	for _, col := range roles.Numerical {
		if err := t.ParseFloats(col); err != nil {
			return nil, nil, nil, failure.Wrap(failure.KindPreprocess, "parse numerical", err)
		}
	}
	for _, col := range t.Names() {
		// Unlisted numeric columns pass through as numbers; others stay strings.
		_ = t.ParseFloats(col)
	}

	skewed, err := CorrectSkew(t, roles.Numerical, skewThreshold)
	if err != nil {
		return nil, nil, nil, err
	}
	return t, encoders, skewed, nil
}

// CorrectSkew applies log1p in place to every listed column whose skewness
// strictly exceeds threshold. It returns the transformed column names.
func CorrectSkew(t *table.Table, columns []string, threshold float64) ([]string, error) {
	var changed []string
	for _, col := range columns {
		vals, err := t.Floats(col)
		if err != nil {
			return nil, failure.Wrap(failure.KindPreprocess, "skew "+col, err)
		}
		if ColumnSkew(vals) <= threshold {
			continue
		}
		out, err := Log1p(vals)
		if err != nil {
			return nil, failure.Wrap(failure.KindPreprocess, "log1p "+col, err)
		}
		if err := t.SetFloats(col, out); err != nil {
			return nil, failure.Wrap(failure.KindPreprocess, "log1p "+col, err)
		}
		changed = append(changed, col)
	}
	return changed, nil
}

// ColumnSkew is the sample skewness over the non-missing values.
func ColumnSkew(vals []float64) float64 {
	clean := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	return table.Skewness(clean)
}

// DomainError reports a value outside log1p's domain.
type DomainError struct {
	Row   int
	Value float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("log1p undefined for value %g at row %d", e.Value, e.Row)
}

// Log1p returns log(1+x) for every value. Any value <= -1 is a DomainError.
func Log1p(vals []float64) ([]float64, error) {
	out := make([]float64, len(vals))
	for i, v := range vals {
		if v <= -1 {
			return nil, &DomainError{Row: i, Value: v}
		}
		out[i] = math.Log1p(v)
	}
	return out, nil
}
