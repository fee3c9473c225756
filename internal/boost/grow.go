package boost

const minChildHessian = 1e-3

type grower struct {
	params Params
	binned [][]uint16
	bins   *binner
	grad   []float64
	hess   []float64

	histG, histH []float64
	histN        []int
}

type split struct {
	ok      bool
	feature int
	bin     int
	gain    float64
}

type leaf struct {
	node       int
	rows       []int
	depth      int
	sumG, sumH float64
	best       split
}

// grow fits one tree to the current gradients and returns it together with
// the leaf node each training row ended in.
func (g *grower) grow(n int) (Tree, []int) {
	var t Tree
	newNode := func() int {
		t.Feature = append(t.Feature, -1)
		t.Threshold = append(t.Threshold, 0)
		t.Left = append(t.Left, -1)
		t.Right = append(t.Right, -1)
		t.Value = append(t.Value, 0)
		return len(t.Left) - 1
	}

	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	root := g.newLeaf(newNode(), rows, 0)
	leaves := []*leaf{root}

	for len(leaves) < g.params.NumLeaves {
		bestIdx := -1
		for i, l := range leaves {
			if l.best.ok && (bestIdx < 0 || l.best.gain > leaves[bestIdx].best.gain) {
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		l := leaves[bestIdx]
		f, b := l.best.feature, l.best.bin
		var left, right []int
		for _, r := range l.rows {
			if int(g.binned[r][f]) <= b {
				left = append(left, r)
			} else {
				right = append(right, r)
			}
		}
		t.Feature[l.node] = f
		t.Threshold[l.node] = g.bins.bounds[f][b]
		ln, rn := newNode(), newNode()
		t.Left[l.node], t.Right[l.node] = ln, rn

		leaves[bestIdx] = g.newLeaf(ln, left, l.depth+1)
		leaves = append(leaves, g.newLeaf(rn, right, l.depth+1))
	}

	leafOf := make([]int, n)
	for _, l := range leaves {
		t.Value[l.node] = -l.sumG / (l.sumH + g.params.Lambda) * g.params.LearningRate
		for _, r := range l.rows {
			leafOf[r] = l.node
		}
	}
	return t, leafOf
}

func (g *grower) newLeaf(node int, rows []int, depth int) *leaf {
	l := &leaf{node: node, rows: rows, depth: depth}
	for _, r := range rows {
		l.sumG += g.grad[r]
		l.sumH += g.hess[r]
	}
	if g.params.MaxDepth <= 0 || depth < g.params.MaxDepth {
		l.best = g.findSplit(l)
	}
	return l
}

// findSplit scans per-feature gradient histograms for the split with the
// largest second-order gain.
func (g *grower) findSplit(l *leaf) split {
	minChild := g.params.MinChildSamples
	if minChild < 1 {
		minChild = 1
	}
	var best split
	if len(l.rows) < 2*minChild {
		return best
	}
	lambda := g.params.Lambda
	parent := l.sumG * l.sumG / (l.sumH + lambda)

	for f := range g.bins.bounds {
		nb := len(g.bins.bounds[f])
		if nb < 2 {
			continue
		}
		g.resetHist(nb)
		for _, r := range l.rows {
			b := g.binned[r][f]
			g.histG[b] += g.grad[r]
			g.histH[b] += g.hess[r]
			g.histN[b]++
		}
		var gl, hl float64
		var nl int
		for b := 0; b < nb-1; b++ {
			gl += g.histG[b]
			hl += g.histH[b]
			nl += g.histN[b]
			nr := len(l.rows) - nl
			if nl < minChild {
				continue
			}
			if nr < minChild {
				break
			}
			gr, hr := l.sumG-gl, l.sumH-hl
			if hl < minChildHessian || hr < minChildHessian {
				continue
			}
			gain := gl*gl/(hl+lambda) + gr*gr/(hr+lambda) - parent
			if gain > 1e-12 && (!best.ok || gain > best.gain) {
				best = split{ok: true, feature: f, bin: b, gain: gain}
			}
		}
	}
	return best
}

func (g *grower) resetHist(nb int) {
	if cap(g.histG) < nb {
		g.histG = make([]float64, nb)
		g.histH = make([]float64, nb)
		g.histN = make([]int, nb)
	}
	g.histG, g.histH, g.histN = g.histG[:nb], g.histH[:nb], g.histN[:nb]
	for i := range g.histG {
		g.histG[i], g.histH[i], g.histN[i] = 0, 0, 0
	}
}
