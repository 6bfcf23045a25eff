package cluster

import (
	"math"
	"sort"
)

// Noise is the label of points that belong to no cluster.
const Noise = -1

// minDistance keeps lambda = 1/distance finite for coincident points.
const minDistance = 1e-10

// HDBSCAN is a density-based clusterer over Euclidean space. It needs no
// cluster count and labels sparse points as Noise.
//
// The implementation is the exact O(n^2) variant: core distances and a Prim
// minimum spanning tree over mutual reachability distances, a single-linkage
// hierarchy, the condensed tree for MinClusterSize, and excess-of-mass
// selection. The root cluster is never selected.
type HDBSCAN struct {
	MinClusterSize int
	MinSamples     int
}

type mstEdge struct {
	a, b int
	w    float64
}

type linkage struct {
	left, right int
	dist        float64
	size        int
}

type condensedRow struct {
	parent, child int
	lambda        float64
	size          int
}

// Fit clusters points and returns a label per point (Noise or 0..k-1, in
// condensed-tree order) and a membership strength in [0,1].
func (h HDBSCAN) Fit(points [][]float64) ([]int, []float64) {
	n := len(points)
	labels := make([]int, n)
	probs := make([]float64, n)
	for i := range labels {
		labels[i] = Noise
	}

	mcs := h.MinClusterSize
	if mcs < 2 {
		mcs = 2
	}
	if n < mcs || n < 2 {
		return labels, probs
	}
	k := h.MinSamples
	if k < 1 {
		k = mcs
	}
	if k > n {
		k = n
	}

	core := coreDistances(points, k)
	edges := primMST(points, core)
	tree := singleLinkage(edges, n)
	rows, numLabels := condense(tree, n, mcs)
	selected := selectClusters(rows, n, numLabels)
	labelPoints(rows, n, selected, labels, probs)
	return labels, probs
}

func euclidean(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return math.Sqrt(s)
}

// coreDistances returns, per point, the distance to its k-th nearest point
// counting the point itself.
func coreDistances(points [][]float64, k int) []float64 {
	n := len(points)
	core := make([]float64, n)
	row := make([]float64, n)
	for i := range points {
		for j := range points {
			row[j] = euclidean(points[i], points[j])
		}
		sort.Float64s(row)
		core[i] = row[k-1]
	}
	return core
}

func primMST(points [][]float64, core []float64) []mstEdge {
	n := len(points)
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	edges := make([]mstEdge, 0, n-1)
	cur := 0
	inTree[cur] = true
	for len(edges) < n-1 {
		next := -1
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			d := math.Max(euclidean(points[cur], points[j]), math.Max(core[cur], core[j]))
			if d < best[j] {
				best[j] = d
				from[j] = cur
			}
			if next < 0 || best[j] < best[next] {
				next = j
			}
		}
		inTree[next] = true
		edges = append(edges, mstEdge{a: from[next], b: next, w: best[next]})
		cur = next
	}

	sort.SliceStable(edges, func(i, j int) bool { return edges[i].w < edges[j].w })
	return edges
}

// singleLinkage turns sorted MST edges into a merge hierarchy. Merge i
// creates node n+i.
func singleLinkage(edges []mstEdge, n int) []linkage {
	parent := make([]int, 2*n-1)
	size := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
		if i < n {
			size[i] = 1
		}
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	tree := make([]linkage, 0, n-1)
	next := n
	for _, e := range edges {
		a, b := find(e.a), find(e.b)
		size[next] = size[a] + size[b]
		tree = append(tree, linkage{left: a, right: b, dist: e.w, size: size[next]})
		parent[a] = next
		parent[b] = next
		next++
	}
	return tree
}

func lambdaOf(dist float64) float64 {
	return 1 / math.Max(dist, minDistance)
}

// condense walks the hierarchy from the root and keeps only splits where both
// sides have at least mcs points. Cluster labels start at n (the root).
func condense(tree []linkage, n, mcs int) ([]condensedRow, int) {
	sizeOf := func(node int) int {
		if node < n {
			return 1
		}
		return tree[node-n].size
	}

	root := 2*n - 2
	relabel := make([]int, 2*n-1)
	relabel[root] = n
	nextLabel := n + 1

	var rows []condensedRow
	fallOut := func(sub, parentLabel int, lambda float64) {
		stack := []int{sub}
		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if node < n {
				rows = append(rows, condensedRow{parent: parentLabel, child: node, lambda: lambda, size: 1})
				continue
			}
			m := tree[node-n]
			stack = append(stack, m.right, m.left)
		}
	}

	queue := []int{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		m := tree[node-n]
		lambda := lambdaOf(m.dist)
		label := relabel[node]
		lc, rc := sizeOf(m.left), sizeOf(m.right)

		switch {
		case lc >= mcs && rc >= mcs:
			for _, child := range []int{m.left, m.right} {
				relabel[child] = nextLabel
				nextLabel++
				rows = append(rows, condensedRow{parent: label, child: relabel[child], lambda: lambda, size: sizeOf(child)})
				if child >= n {
					queue = append(queue, child)
				}
			}
		case lc < mcs && rc < mcs:
			fallOut(m.left, label, lambda)
			fallOut(m.right, label, lambda)
		case lc < mcs:
			fallOut(m.left, label, lambda)
			relabel[m.right] = label
			if m.right >= n {
				queue = append(queue, m.right)
			}
		default:
			fallOut(m.right, label, lambda)
			relabel[m.left] = label
			if m.left >= n {
				queue = append(queue, m.left)
			}
		}
	}
	return rows, nextLabel - n
}

// selectClusters runs excess-of-mass selection and returns the selected
// cluster labels in ascending order.
func selectClusters(rows []condensedRow, n, numLabels int) []int {
	birth := make([]float64, numLabels)
	stability := make([]float64, numLabels)
	children := make([][]int, numLabels)
	for _, r := range rows {
		if r.child >= n {
			birth[r.child-n] = r.lambda
			children[r.parent-n] = append(children[r.parent-n], r.child)
		}
	}
	for _, r := range rows {
		stability[r.parent-n] += (r.lambda - birth[r.parent-n]) * float64(r.size)
	}

	isCluster := make([]bool, numLabels)
	for i := 1; i < numLabels; i++ {
		isCluster[i] = true
	}

	var unselect func(label int)
	unselect = func(label int) {
		for _, c := range children[label-n] {
			isCluster[c-n] = false
			unselect(c)
		}
	}

	// Children always carry larger labels than their parent.
	for label := n + numLabels - 1; label > n; label-- {
		var sub float64
		for _, c := range children[label-n] {
			sub += stability[c-n]
		}
		if sub > stability[label-n] {
			isCluster[label-n] = false
			stability[label-n] = sub
		} else {
			unselect(label)
		}
	}

	var selected []int
	for i := 1; i < numLabels; i++ {
		if isCluster[i] {
			selected = append(selected, n+i)
		}
	}
	return selected
}

func labelPoints(rows []condensedRow, n int, selected []int, labels []int, probs []float64) {
	if len(selected) == 0 {
		return
	}
	index := make(map[int]int, len(selected))
	for i, c := range selected {
		index[c] = i
	}

	parentOf := make(map[int]int)
	deaths := make(map[int]float64)
	pointParent := make([]int, n)
	pointLambda := make([]float64, n)
	for _, r := range rows {
		if r.lambda > deaths[r.parent] {
			deaths[r.parent] = r.lambda
		}
		if r.child >= n {
			parentOf[r.child] = r.parent
			continue
		}
		pointParent[r.child] = r.parent
		pointLambda[r.child] = r.lambda
	}

	root := n
	for p := 0; p < n; p++ {
		c := pointParent[p]
		for c != root {
			if _, ok := index[c]; ok {
				break
			}
			c = parentOf[c]
		}
		if c == root {
			continue
		}
		labels[p] = index[c]

		death := deaths[c]
		if death == 0 || math.IsInf(pointLambda[p], 1) {
			probs[p] = 1
			continue
		}
		probs[p] = math.Min(pointLambda[p], death) / death
	}
}
