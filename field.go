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
	"github.com/ctessum/unit"
)

// InterpMethod selects how field values are interpolated within a
// grid cell.
type InterpMethod int

const (
	// InterpLinear is bi-, tri- or quadrilinear interpolation.
	InterpLinear InterpMethod = iota
	// InterpNearest samples the nearest grid node.
	InterpNearest
)

// A Field is one physical variable defined on a Grid. The data array
// is read-only after construction; only the grid reference may be
// repointed, by GridSet deduplication.
type Field struct {
	Name string

	// Units are the physical units of the data, e.g. meters per
	// second for velocity components.
	Units unit.Dimensions

	Interp InterpMethod

	// AllowTimeExtrapolation clamps queries outside the time axis to
	// the nearest boundary sample instead of failing. It defaults to
	// true for fields without a time dimension.
	AllowTimeExtrapolation bool

	// TimePeriodic wraps queries modulo the time axis span.
	TimePeriodic bool

	data  *sparse.DenseArray // shape [tdim][zdim][ydim][xdim]
	grid  *Grid
	igrid int

	conv unitConverter
}

// NewField wraps data defined on grid. Accepted data shapes are
// [ydim][xdim], [zdim or tdim][ydim][xdim] (disambiguated against the
// grid), and [tdim][zdim][ydim][xdim]; the array is reshaped to the
// full four dimensions.
func NewField(name string, data *sparse.DenseArray, grid *Grid) (*Field, error) {
	xdim, ydim, zdim, tdim := grid.xdim(), grid.ydim(), grid.zdim(), grid.tdim()
	var shape []int
	switch len(data.Shape) {
	case 2:
		shape = []int{1, 1, data.Shape[0], data.Shape[1]}
	case 3:
		if data.Shape[0] == zdim && zdim > 1 {
			shape = []int{1, data.Shape[0], data.Shape[1], data.Shape[2]}
		} else {
			shape = []int{data.Shape[0], 1, data.Shape[1], data.Shape[2]}
		}
	case 4:
		shape = data.Shape
	default:
		return nil, configErrorf("field %s: data must have 2 to 4 dimensions, got %d", name, len(data.Shape))
	}
	if shape[0] != tdim || shape[1] != zdim || shape[2] != ydim || shape[3] != xdim {
		return nil, configErrorf("field %s: data shape %v does not match grid %s dimensions [%d %d %d %d]",
			name, data.Shape, grid.Name, tdim, zdim, ydim, xdim)
	}
	reshaped := sparse.ZerosDense(shape...)
	copy(reshaped.Elements, data.Elements)
	grid.refs++
	return &Field{
		Name:                   name,
		data:                   reshaped,
		grid:                   grid,
		AllowTimeExtrapolation: tdim <= 1,
	}, nil
}

// Grid returns the grid the field is defined on.
func (f *Field) Grid() *Grid { return f.grid }

// GridIndex returns the index of the field's grid in the owning
// GridSet.
func (f *Field) GridIndex() int { return f.igrid }

// Data returns the field data with shape [tdim][zdim][ydim][xdim].
func (f *Field) Data() *sparse.DenseArray { return f.data }

func (f *Field) wrapSearchErr(err error, t, x, y, z float64) error {
	switch err {
	case nil:
		return nil
	case errNotConverged, errDegenerateAxis:
		return &InterpolationError{Field: f.Name, Reason: err.Error()}
	default:
		return &OutOfBoundsError{Field: f.Name, Time: t, Lon: x, Lat: y, Depth: z}
	}
}

// sample interpolates the field within the cell located by idx at
// time index ti.
func (f *Field) sample(ti int, idx *searchIndex, xsi, eta, zeta float64) float64 {
	if f.Interp == InterpNearest {
		xi, yi, zi := idx.xi, idx.yi, idx.zi
		if xsi >= .5 {
			xi++
		}
		if eta >= .5 {
			yi++
		}
		if f.grid.zdim() > 1 && zeta >= .5 {
			zi++
		}
		return f.data.Get(ti, zi, yi, xi)
	}
	w00 := (1 - xsi) * (1 - eta)
	w10 := xsi * (1 - eta)
	w11 := xsi * eta
	w01 := (1 - xsi) * eta
	bilin := func(zi int) float64 {
		return w00*f.data.Get(ti, zi, idx.yi, idx.xi) +
			w10*f.data.Get(ti, zi, idx.yi, idx.xi+1) +
			w11*f.data.Get(ti, zi, idx.yi+1, idx.xi+1) +
			w01*f.data.Get(ti, zi, idx.yi+1, idx.xi)
	}
	if f.grid.zdim() == 1 {
		return bilin(0)
	}
	f0 := bilin(idx.zi)
	f1 := bilin(idx.zi + 1)
	return (1-zeta)*f0 + zeta*f1
}

// eval interpolates the field at the query point using the given
// cached search index.
func (f *Field) eval(t, x, y, z float64, idx *searchIndex) (float64, error) {
	g := f.grid
	tdim := g.tdim()
	if tdim > 1 && !f.TimePeriodic && !f.AllowTimeExtrapolation {
		tol := axisTol(g.Time[0], g.Time[tdim-1])
		if t < g.Time[0]-tol || t > g.Time[tdim-1]+tol {
			return 0, &OutOfBoundsError{Field: f.Name, Time: t, TimeExtrapolation: true}
		}
	}
	tq := g.searchTime(t, idx, f.TimePeriodic)

	var v float64
	if idx.ti < tdim-1 && tq > g.Time[idx.ti] {
		t0, t1 := g.Time[idx.ti], g.Time[idx.ti+1]
		xsi, eta, zeta, err := g.search(x, y, z, idx, tq, t0, t1)
		if err != nil {
			return 0, f.wrapSearchErr(err, t, x, y, z)
		}
		f0 := f.sample(idx.ti, idx, xsi, eta, zeta)
		f1 := f.sample(idx.ti+1, idx, xsi, eta, zeta)
		v = f0 + (f1-f0)*(tq-t0)/(t1-t0)
	} else {
		t0 := g.Time[idx.ti]
		xsi, eta, zeta, err := g.search(x, y, z, idx, t0, t0, t0+1)
		if err != nil {
			return 0, f.wrapSearchErr(err, t, x, y, z)
		}
		v = f.sample(idx.ti, idx, xsi, eta, zeta)
	}
	if f.conv != nil {
		v = f.conv.toTarget(v, x, y, z)
	}
	return v, nil
}

// Eval interpolates the field at the query point on behalf of
// particle p, reusing and updating p's cached cell indices so that
// consecutive queries and sibling fields on the same grid avoid
// redundant searches.
func (f *Field) Eval(t, x, y, z float64, p *Particle) (float64, error) {
	return f.eval(t, x, y, z, p.searchIndexFor(f.igrid))
}

// At interpolates the field at the query point without a particle
// context. Each call searches the grid from scratch.
func (f *Field) At(t, x, y, z float64) (float64, error) {
	var idx searchIndex
	return f.eval(t, x, y, z, &idx)
}

// degrees of latitude per meter
const degPerMeter = 1. / (1852. * 60.)

// unitConverter converts an interpolated value from its source units
// to the units of the coordinate mesh; velocities in m/s become
// degrees/s on spherical meshes.
type unitConverter interface {
	toTarget(v, x, y, z float64) float64
}

type geographicConverter struct{}

func (geographicConverter) toTarget(v, x, y, z float64) float64 {
	return v * degPerMeter
}

type geographicPolarConverter struct{}

func (geographicPolarConverter) toTarget(v, x, y, z float64) float64 {
	return v * degPerMeter / math.Cos(y*math.Pi/180)
}

// A VectorField groups the component fields of a vector quantity so
// they can be interpolated together. The components typically share
// one grid, in which case a combined query performs a single cell
// search.
type VectorField struct {
	Name    string
	U, V, W *Field
}

// Eval interpolates the horizontal components at the query point on
// behalf of p. If the vector field has a vertical component it is
// evaluated by EvalW.
func (vf *VectorField) Eval(t, x, y, z float64, p *Particle) (u, v float64, err error) {
	u, err = vf.U.Eval(t, x, y, z, p)
	if err != nil {
		return 0, 0, err
	}
	v, err = vf.V.Eval(t, x, y, z, p)
	if err != nil {
		return 0, 0, err
	}
	return u, v, nil
}

// EvalW interpolates the vertical component at the query point on
// behalf of p.
func (vf *VectorField) EvalW(t, x, y, z float64, p *Particle) (float64, error) {
	if vf.W == nil {
		return 0, nil
	}
	return vf.W.Eval(t, x, y, z, p)
}
