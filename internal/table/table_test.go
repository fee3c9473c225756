package table

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func sample(t *testing.T) *Table {
	t.Helper()
	tb, err := FromRecords(
		[]string{"Booking_ID", "lead_time", "room"},
		[][]string{
			{"INN1", "10", "A"},
			{"INN2", "20", "B"},
			{"INN1", "10", "A"},
			{"INN3", "30", "A"},
		},
	)
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}
	return tb
}

func TestDropDuplicatesKeepsFirstInOrder(t *testing.T) {
	tb := sample(t)
	if n := tb.DropDuplicates(); n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}
	ids, _ := tb.Strings("Booking_ID")
	if !reflect.DeepEqual(ids, []string{"INN1", "INN2", "INN3"}) {
		t.Fatalf("unexpected order: %v", ids)
	}
}

func TestDropIgnoresUnknownColumns(t *testing.T) {
	tb := sample(t)
	tb.Drop("Unnamed: 0", "Booking_ID")
	if !reflect.DeepEqual(tb.Names(), []string{"lead_time", "room"}) {
		t.Fatalf("names: %v", tb.Names())
	}
	if tb.Rows() != 4 {
		t.Fatalf("rows: %d", tb.Rows())
	}
}

func TestCloneIsDeep(t *testing.T) {
	tb := sample(t)
	if err := tb.ParseFloats("lead_time"); err != nil {
		t.Fatal(err)
	}
	cp := tb.Clone()
	v, _ := cp.Floats("lead_time")
	v[0] = 999
	orig, _ := tb.Floats("lead_time")
	if orig[0] != 10 {
		t.Fatalf("clone shares storage")
	}
}

func TestParseFloatsReportsBadCell(t *testing.T) {
	tb, _ := FromRecords([]string{"x"}, [][]string{{"1"}, {"abc"}})
	if err := tb.ParseFloats("x"); err == nil {
		t.Fatalf("expected error")
	}
	tb2, _ := FromRecords([]string{"x"}, [][]string{{"1"}, {""}})
	if err := tb2.ParseFloats("x"); err != nil {
		t.Fatal(err)
	}
	v, _ := tb2.Floats("x")
	if !math.IsNaN(v[1]) {
		t.Fatalf("empty cell should be NaN, got %v", v[1])
	}
}

func TestSelectAndMissingColumn(t *testing.T) {
	tb := sample(t)
	out, err := tb.Select("room", "lead_time")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(out.Names(), []string{"room", "lead_time"}) {
		t.Fatalf("names: %v", out.Names())
	}
	_, err = tb.Select("nope")
	var mc *MissingColumnError
	if !errors.As(err, &mc) || mc.Name != "nope" {
		t.Fatalf("expected MissingColumnError, got %v", err)
	}
}

func TestAppendFloatRowsRequiresNumeric(t *testing.T) {
	tb := New()
	_ = tb.AddFloats("a", []float64{1})
	_ = tb.AddFloats("b", []float64{2})
	if err := tb.AppendFloatRows([][]float64{{3, 4}}); err != nil {
		t.Fatal(err)
	}
	m, err := tb.Matrix([]string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(m, [][]float64{{1, 2}, {3, 4}}) {
		t.Fatalf("matrix: %v", m)
	}
	_ = tb.AddStrings("c", []string{"x", "y"})
	if err := tb.AppendFloatRows([][]float64{{5, 6, 7}}); err == nil {
		t.Fatalf("expected error with a string column")
	}
}

func TestAddRejectsLengthMismatch(t *testing.T) {
	tb := New()
	_ = tb.AddFloats("a", []float64{1, 2})
	if err := tb.AddFloats("b", []float64{1}); err == nil {
		t.Fatalf("expected length error")
	}
	if err := tb.AddFloats("a", []float64{1, 2}); err == nil {
		t.Fatalf("expected duplicate error")
	}
}

func TestTake(t *testing.T) {
	tb := sample(t)
	out := tb.Take([]int{3, 0})
	ids, _ := out.Strings("Booking_ID")
	if !reflect.DeepEqual(ids, []string{"INN3", "INN1"}) {
		t.Fatalf("take: %v", ids)
	}
	if tb.Rows() != 4 {
		t.Fatalf("source mutated")
	}
}
