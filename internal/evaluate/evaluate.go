// Package evaluate computes binary classification metrics with the positive
// class 1. Undefined ratios (zero division) evaluate to 0.
package evaluate

import "fmt"

// Confusion counts predictions against truth.
type Confusion struct {
	TP, FP, TN, FN int
}

// Count builds a confusion matrix. Any label other than 1 counts as negative.
func Count(yTrue, yPred []int) (Confusion, error) {
	var c Confusion
	if len(yTrue) != len(yPred) {
		return c, fmt.Errorf("length mismatch: %d labels, %d predictions", len(yTrue), len(yPred))
	}
	for i := range yTrue {
		switch {
		case yTrue[i] == 1 && yPred[i] == 1:
			c.TP++
		case yTrue[i] != 1 && yPred[i] == 1:
			c.FP++
		case yTrue[i] == 1:
			c.FN++
		default:
			c.TN++
		}
	}
	return c, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func (c Confusion) Accuracy() float64  { return ratio(c.TP+c.TN, c.TP+c.TN+c.FP+c.FN) }
func (c Confusion) Precision() float64 { return ratio(c.TP, c.TP+c.FP) }
func (c Confusion) Recall() float64    { return ratio(c.TP, c.TP+c.FN) }

func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Metrics is the report stored with every training run.
type Metrics struct {
	Accuracy  float64   `json:"accuracy"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	F1        float64   `json:"f1"`
	Confusion Confusion `json:"confusion"`
}

// Evaluate computes all metrics.
func Evaluate(yTrue, yPred []int) (Metrics, error) {
	c, err := Count(yTrue, yPred)
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{
		Accuracy:  c.Accuracy(),
		Precision: c.Precision(),
		Recall:    c.Recall(),
		F1:        c.F1(),
		Confusion: c,
	}, nil
}

// Scorers lists the metric names accepted by Score.
var Scorers = []string{"accuracy", "precision", "recall", "f1"}

// Score computes one named metric.
func Score(name string, yTrue, yPred []int) (float64, error) {
	c, err := Count(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	switch name {
	case "accuracy":
		return c.Accuracy(), nil
	case "precision":
		return c.Precision(), nil
	case "recall":
		return c.Recall(), nil
	case "f1":
		return c.F1(), nil
	}
	return 0, fmt.Errorf("unknown scoring %q", name)
}
