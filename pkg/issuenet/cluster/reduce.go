package cluster

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Reduce projects row vectors onto their top dims singular directions
// (document coordinates U*S of a truncated SVD) and L2-normalizes each row.
// When dims is not smaller than both matrix dimensions the vectors are only
// normalized.
func Reduce(vectors [][]float64, dims int) ([][]float64, error) {
	n := len(vectors)
	if n == 0 {
		return nil, nil
	}
	d := len(vectors[0])
	for i, v := range vectors {
		if len(v) != d {
			return nil, fmt.Errorf("reduce: row %d has %d columns, want %d", i, len(v), d)
		}
	}

	if d == 0 || dims <= 0 || dims >= min(n, d) {
		out := make([][]float64, n)
		for i, v := range vectors {
			out[i] = normalized(v)
		}
		return out, nil
	}

	data := make([]float64, 0, n*d)
	for _, v := range vectors {
		data = append(data, v...)
	}
	a := mat.NewDense(n, d, data)

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("reduce: svd factorization failed for %dx%d matrix", n, d)
	}
	var u mat.Dense
	svd.UTo(&u)
	values := svd.Values(nil)

	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, dims)
		for k := 0; k < dims; k++ {
			row[k] = u.At(i, k) * values[k]
		}
		out[i] = normalized(row)
	}
	return out, nil
}

func normalized(v []float64) []float64 {
	out := append([]float64(nil), v...)
	if norm := floats.Norm(out, 2); norm > 0 {
		floats.Scale(1/norm, out)
	}
	return out
}

func cosine(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}
