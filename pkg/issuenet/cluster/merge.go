package cluster

import "sort"

// mergeSimilar repeatedly joins the two clusters whose centroids have the
// highest cosine similarity, while that similarity is at least threshold.
// The larger cluster absorbs the smaller; on equal size the lower label wins.
// It returns the number of merges performed.
func mergeSimilar(points [][]float64, labels []int, threshold float64) int {
	if threshold <= 0 || threshold > 1 {
		return 0
	}

	members := make(map[int][]int)
	for i, l := range labels {
		if l != Noise {
			members[l] = append(members[l], i)
		}
	}

	merges := 0
	for len(members) > 1 {
		ids := sortedKeys(members)
		centroids := make(map[int][]float64, len(ids))
		for _, id := range ids {
			centroids[id] = centroid(points, members[id])
		}

		bestA, bestB, bestSim := -1, -1, threshold
		for x := 0; x < len(ids); x++ {
			for y := x + 1; y < len(ids); y++ {
				sim := cosine(centroids[ids[x]], centroids[ids[y]])
				if sim > bestSim || (sim == bestSim && bestA < 0) {
					bestA, bestB, bestSim = ids[x], ids[y], sim
				}
			}
		}
		if bestA < 0 {
			break
		}

		keep, drop := bestA, bestB
		if len(members[drop]) > len(members[keep]) {
			keep, drop = drop, keep
		}
		for _, i := range members[drop] {
			labels[i] = keep
		}
		members[keep] = append(members[keep], members[drop]...)
		delete(members, drop)
		merges++
	}
	return merges
}

func centroid(points [][]float64, idx []int) []float64 {
	if len(idx) == 0 || len(points) == 0 {
		return nil
	}
	c := make([]float64, len(points[idx[0]]))
	for _, i := range idx {
		for k, x := range points[i] {
			c[k] += x
		}
	}
	for k := range c {
		c[k] /= float64(len(idx))
	}
	return c
}

func sortedKeys(m map[int][]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
