package preprocess

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// LabelEncoder maps a column's labels to contiguous codes. Classes are sorted
// numerically when every label parses as a number, lexicographically
// otherwise; a label's code is its index in Classes.
type LabelEncoder struct {
	Column  string   `json:"column" msgpack:"column"`
	Classes []string `json:"classes" msgpack:"classes"`
}

// Encoders holds one fitted encoder per column.
type Encoders map[string]LabelEncoder

// FitLabelEncoder learns the distinct labels of values.
func FitLabelEncoder(column string, values []string) LabelEncoder {
	seen := make(map[string]struct{}, 8)
	for _, v := range values {
		seen[v] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sortClasses(classes)
	return LabelEncoder{Column: column, Classes: classes}
}

func sortClasses(classes []string) {
	nums := make(map[string]float64, len(classes))
	for _, c := range classes {
		v, err := strconv.ParseFloat(c, 64)
		if err != nil || math.IsNaN(v) {
			sort.Strings(classes)
			return
		}
		nums[c] = v
	}
	sort.Slice(classes, func(i, j int) bool {
		a, b := nums[classes[i]], nums[classes[j]]
		if a != b {
			return a < b
		}
		return classes[i] < classes[j]
	})
}

// UnseenLabelError reports a label the encoder was not fitted on.
type UnseenLabelError struct {
	Column string
	Label  string
}

func (e *UnseenLabelError) Error() string {
	return fmt.Sprintf("column %q: label %q was not seen during fit", e.Column, e.Label)
}

// Code returns the code for one label.
func (e LabelEncoder) Code(label string) (int, error) {
	for i, c := range e.Classes {
		if c == label {
			return i, nil
		}
	}
	return 0, &UnseenLabelError{Column: e.Column, Label: label}
}

// Transform encodes values, failing on the first unseen label.
func (e LabelEncoder) Transform(values []string) ([]float64, error) {
	codes := make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		codes[c] = i
	}
	out := make([]float64, len(values))
	for i, v := range values {
		c, ok := codes[v]
		if !ok {
			return nil, &UnseenLabelError{Column: e.Column, Label: v}
		}
		out[i] = float64(c)
	}
	return out, nil
}

// Label returns the original label for a code.
func (e LabelEncoder) Label(code int) (string, bool) {
	if code < 0 || code >= len(e.Classes) {
		return "", false
	}
	return e.Classes[code], true
}
