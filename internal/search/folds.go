package search

import (
	"fmt"
	"math/rand"
	"sort"
)

// Fold holds row indices for one train/validation split.
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold splits rows into k folds that preserve class proportions.
// Rows of each class are shuffled with seed and dealt round-robin.
func StratifiedKFold(y []int, k int, seed int64) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("cv must be >= 2, got %d", k)
	}
	byClass := map[int][]int{}
	for i, c := range y {
		byClass[c] = append(byClass[c], i)
	}
	classes := make([]int, 0, len(byClass))
	for c, rows := range byClass {
		if len(rows) < k {
			return nil, fmt.Errorf("cv=%d is greater than the %d members of class %d", k, len(rows), c)
		}
		classes = append(classes, c)
	}
	sort.Ints(classes)

	rnd := rand.New(rand.NewSource(seed))
	assign := make([]int, len(y))
	for _, c := range classes {
		rows := byClass[c]
		rnd.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		for pos, r := range rows {
			assign[r] = pos % k
		}
	}

	folds := make([]Fold, k)
	for i, f := range assign {
		for j := range folds {
			if j == f {
				folds[j].Test = append(folds[j].Test, i)
			} else {
				folds[j].Train = append(folds[j].Train, i)
			}
		}
	}
	return folds, nil
}
