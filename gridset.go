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

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// axisEqualTol is the relative tolerance for considering two
// coordinate axes pointwise equal during grid deduplication.
const axisEqualTol = 1e-6

// A GridSet holds the distinct Grids that the Fields of a FieldSet
// are defined on. Logically identical grids registered through
// AddGrid collapse onto a single shared instance, so that fields
// defined on the same geometry reuse one cell search per query.
type GridSet struct {
	Grids []*Grid
}

// Size returns the number of distinct grids.
func (gs *GridSet) Size() int { return len(gs.Grids) }

// sameGeometry reports whether a and b have the same time origin and
// pointwise-equal coordinate axes within floating tolerance.
func sameGeometry(a, b *Grid) bool {
	if !a.TimeOrigin.Equal(b.TimeOrigin) {
		return false
	}
	if !axesEqual(a.Lon, b.Lon) || !axesEqual(a.Lat, b.Lat) {
		return false
	}
	switch {
	case a.Depth == nil && b.Depth == nil:
	case a.Depth == nil || b.Depth == nil:
		return false
	case !axesEqual(a.Depth, b.Depth):
		return false
	}
	if len(a.Time) != len(b.Time) {
		return false
	}
	return floats.EqualApprox(a.Time, b.Time, axisEqualTol)
}

func axesEqual(a, b *sparse.DenseArray) bool {
	if len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return floats.EqualApprox(a.Elements, b.Elements, axisEqualTol)
}

// AddGrid registers field's grid. If an already registered grid has
// the same geometry, field is repointed to that canonical instance
// and the chunking descriptors are reconciled; otherwise the grid is
// appended as a new entry. The field's grid index is set either way.
func (gs *GridSet) AddGrid(field *Field) error {
	grid := field.grid
	for i, g := range gs.Grids {
		if g == grid {
			field.igrid = i
			return nil
		}
		if !sameGeometry(g, grid) {
			continue
		}
		// Reconcile chunking before repointing anything, so a failed
		// merge leaves the field untouched.
		if !grid.Chunking.Equal(g.Chunking) {
			if !grid.Chunking.compatible(g.Chunking) {
				return configErrorf("grids %s and %s share geometry but have incompatible chunking descriptors", g.Name, grid.Name)
			}
			log.Warnf("drift: field %s requests chunking different from shared grid %s; using the grid's chunking", field.Name, g.Name)
		}
		field.grid = g
		field.igrid = i
		g.refs++
		grid.refs--
		return nil
	}
	gs.Grids = append(gs.Grids, grid)
	field.igrid = len(gs.Grids) - 1
	return nil
}

// DimRange returns the tightest range along dim that is covered by
// every grid with more than one sample along it: the maximum of the
// lower bounds and the minimum of the upper bounds. Grids with a
// single sample along dim do not constrain the range; if every grid
// is single-valued along dim, DimRange returns (0, 0).
func (gs *GridSet) DimRange(dim Dim) (lo, hi float64) {
	lo, hi = math.Inf(-1), math.Inf(1)
	for _, g := range gs.Grids {
		if g.dimCount(dim) <= 1 {
			continue
		}
		glo, ghi := g.dimBounds(dim)
		lo = math.Max(lo, glo)
		hi = math.Min(hi, ghi)
	}
	if math.IsInf(lo, -1) {
		lo = 0
	}
	if math.IsInf(hi, 1) {
		hi = 0
	}
	return lo, hi
}
