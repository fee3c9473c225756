package boost

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// decisionNaNRight is a LightGBM decision_type for a numerical split with
// missing type NaN and default_left unset: NaN goes right, as in Tree.predict.
const decisionNaNRight = 8

// WriteLightGBM writes the fitted ensemble in LightGBM's text model format
// ("tree" / "version=v3"), so any LightGBM compatible runtime can score it.
// InitScore is folded into the leaves of the first tree.
func (c *Classifier) WriteLightGBM(w io.Writer, features []string) error {
	if len(c.Trees) == 0 {
		return errors.New("classifier is not fitted")
	}
	if len(features) != c.NFeatures {
		return fmt.Errorf("got %d feature names for %d features", len(features), c.NFeatures)
	}
	names := make([]string, len(features))
	for i, f := range features {
		if f == "" || strings.ContainsAny(f, " \t\n=") {
			return fmt.Errorf("feature name %q is not valid in a LightGBM model", f)
		}
		names[i] = f
	}

	blocks := make([]string, len(c.Trees))
	sizes := make([]string, len(c.Trees))
	used := make([]int, c.NFeatures)
	for i := range c.Trees {
		bias := 0.0
		if i == 0 {
			bias = c.InitScore
		}
		blocks[i] = c.Trees[i].lightgbm(i, bias, c.Params.LearningRate, used)
		sizes[i] = strconv.Itoa(len(blocks[i]))
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "tree")
	fmt.Fprintln(bw, "version=v3")
	fmt.Fprintln(bw, "num_class=1")
	fmt.Fprintln(bw, "num_tree_per_iteration=1")
	fmt.Fprintln(bw, "label_index=0")
	fmt.Fprintf(bw, "max_feature_idx=%d\n", c.NFeatures-1)
	fmt.Fprintln(bw, "objective=binary sigmoid:1")
	fmt.Fprintf(bw, "feature_names=%s\n", strings.Join(names, " "))
	infos := make([]string, c.NFeatures)
	for i := range infos {
		infos[i] = "none"
	}
	fmt.Fprintf(bw, "feature_infos=%s\n", strings.Join(infos, " "))
	fmt.Fprintf(bw, "tree_sizes=%s\n\n", strings.Join(sizes, " "))
	for _, b := range blocks {
		bw.WriteString(b)
	}
	fmt.Fprint(bw, "end of trees\n\n")

	fmt.Fprintln(bw, "feature_importances:")
	for f, n := range used {
		if n > 0 {
			fmt.Fprintf(bw, "%s=%d\n", names[f], n)
		}
	}
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "parameters:")
	fmt.Fprintln(bw, "[boosting: gbdt]")
	fmt.Fprintln(bw, "[objective: binary]")
	fmt.Fprintf(bw, "[num_iterations: %d]\n", c.Params.NEstimators)
	fmt.Fprintf(bw, "[learning_rate: %s]\n", formatFloat(c.Params.LearningRate))
	fmt.Fprintf(bw, "[num_leaves: %d]\n", c.Params.NumLeaves)
	fmt.Fprintf(bw, "[max_depth: %d]\n", c.Params.MaxDepth)
	fmt.Fprintf(bw, "[min_data_in_leaf: %d]\n", c.Params.MinChildSamples)
	fmt.Fprintf(bw, "[lambda_l2: %s]\n", formatFloat(c.Params.Lambda))
	fmt.Fprintf(bw, "[max_bin: %d]\n", c.Params.MaxBin)
	fmt.Fprintln(bw, "end of parameters")
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "pandas_categorical:null")
	return bw.Flush()
}

// lightgbm renders tree idx. LightGBM numbers internal nodes and leaves
// separately; a child reference < 0 is ^leaf.
func (t *Tree) lightgbm(idx int, bias, shrinkage float64, used []int) string {
	var (
		splitFeature, left, right []int
		threshold, leafValue      []float64
	)
	var walk func(node int) int
	walk = func(node int) int {
		if t.Left[node] < 0 {
			leafValue = append(leafValue, t.Value[node]+bias)
			return ^(len(leafValue) - 1)
		}
		id := len(splitFeature)
		splitFeature = append(splitFeature, t.Feature[node])
		threshold = append(threshold, t.Threshold[node])
		left = append(left, 0)
		right = append(right, 0)
		used[t.Feature[node]]++
		l := walk(t.Left[node])
		r := walk(t.Right[node])
		left[id], right[id] = l, r
		return id
	}
	walk(0)

	internal := len(splitFeature)
	decision := make([]int, internal)
	for i := range decision {
		decision[i] = decisionNaNRight
	}
	zerosF := make([]float64, internal)
	leafZeros := make([]float64, len(leafValue))
	leafCount := make([]int, len(leafValue))
	internalCount := make([]int, internal)

	var b strings.Builder
	fmt.Fprintf(&b, "Tree=%d\n", idx)
	fmt.Fprintf(&b, "num_leaves=%d\n", len(leafValue))
	b.WriteString("num_cat=0\n")
	fmt.Fprintf(&b, "split_feature=%s\n", joinInts(splitFeature))
	fmt.Fprintf(&b, "split_gain=%s\n", joinFloats(zerosF))
	fmt.Fprintf(&b, "threshold=%s\n", joinFloats(threshold))
	fmt.Fprintf(&b, "decision_type=%s\n", joinInts(decision))
	fmt.Fprintf(&b, "left_child=%s\n", joinInts(left))
	fmt.Fprintf(&b, "right_child=%s\n", joinInts(right))
	fmt.Fprintf(&b, "leaf_value=%s\n", joinFloats(leafValue))
	fmt.Fprintf(&b, "leaf_weight=%s\n", joinFloats(leafZeros))
	fmt.Fprintf(&b, "leaf_count=%s\n", joinInts(leafCount))
	fmt.Fprintf(&b, "internal_value=%s\n", joinFloats(zerosF))
	fmt.Fprintf(&b, "internal_weight=%s\n", joinFloats(zerosF))
	fmt.Fprintf(&b, "internal_count=%s\n", joinInts(internalCount))
	b.WriteString("is_linear=0\n")
	fmt.Fprintf(&b, "shrinkage=%s\n\n\n", formatFloat(shrinkage))
	return b.String()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', 17, 64) }

func joinFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, " ")
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}
