/*
Copyright © 2018 the drift authors.
This file is part of drift.

drift is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

drift is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with drift.  If not, see <http://www.gnu.org/licenses/>.
*/

package drift

import (
	"math"
	"testing"

	"github.com/ctessum/sparse"
)

const testTolerance = 1e-8

func absDifferent(a, b, tolerance float64) bool {
	if math.Abs(a-b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func linspace(lo, hi float64, n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return v
}

func constDense(val float64, dims ...int) *sparse.DenseArray {
	a := sparse.ZerosDense(dims...)
	for i := range a.Elements {
		a.Elements[i] = val
	}
	return a
}

// uniformFieldSet builds a flat-mesh field set with constant
// velocities on a square grid spanning [-100, 100] in both
// directions.
func uniformFieldSet(t *testing.T, u, v float64) *FieldSet {
	t.Helper()
	ax := linspace(-100, 100, 21)
	fs, err := NewFieldSetFromData(constDense(u, 21, 21), constDense(v, 21, 21),
		ax, ax, nil, nil, MeshFlat)
	if err != nil {
		t.Fatal(err)
	}
	return fs
}
