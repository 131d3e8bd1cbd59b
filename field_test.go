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
	"time"

	"github.com/ctessum/sparse"
)

// A bilinear interpolation of a function that is linear in both
// coordinates must reproduce it exactly.
func TestFieldLinearInterpolation(t *testing.T) {
	ax := linspace(0, 10, 11)
	grid := NewRectilinearZGrid("g", ax, ax, nil, nil, time.Time{}, MeshFlat)
	data := sparse.ZerosDense(11, 11)
	for yi := 0; yi < 11; yi++ {
		for xi := 0; xi < 11; xi++ {
			data.Set(3*ax[xi]+2*ax[yi], yi, xi)
		}
	}
	f, err := NewField("T", data, grid)
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range [][2]float64{{2.5, 7.25}, {0, 0}, {10, 10}, {9.99, 0.01}} {
		v, err := f.At(0, q[0], q[1], 0)
		if err != nil {
			t.Fatalf("(%g, %g): %v", q[0], q[1], err)
		}
		if want := 3*q[0] + 2*q[1]; absDifferent(v, want, testTolerance) {
			t.Errorf("(%g, %g): got %g, want %g", q[0], q[1], v, want)
		}
	}
	if _, err := f.At(0, 10.5, 5, 0); StatusFromError(err) != StatusErrorOutOfBounds {
		t.Errorf("out-of-bounds query: got %v, want out of bounds", err)
	}
}

func TestFieldNearestInterpolation(t *testing.T) {
	ax := linspace(0, 10, 11)
	grid := NewRectilinearZGrid("g", ax, ax, nil, nil, time.Time{}, MeshFlat)
	data := sparse.ZerosDense(11, 11)
	for yi := 0; yi < 11; yi++ {
		for xi := 0; xi < 11; xi++ {
			data.Set(float64(100*xi+yi), yi, xi)
		}
	}
	f, err := NewField("T", data, grid)
	if err != nil {
		t.Fatal(err)
	}
	f.Interp = InterpNearest
	v, err := f.At(0, 2.4, 6.8, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v != 207 {
		t.Errorf("got %g, want 207 (node 2, 7)", v)
	}
}

func TestFieldTimeInterpolation(t *testing.T) {
	ax := linspace(0, 10, 11)
	grid := NewRectilinearZGrid("g", ax, ax, nil, []float64{0, 10}, time.Time{}, MeshFlat)
	data := sparse.ZerosDense(2, 11, 11)
	for yi := 0; yi < 11; yi++ {
		for xi := 0; xi < 11; xi++ {
			data.Set(10, 1, yi, xi)
		}
	}
	f, err := NewField("T", data, grid)
	if err != nil {
		t.Fatal(err)
	}
	if f.AllowTimeExtrapolation {
		t.Fatal("time extrapolation should default to off for time-varying fields")
	}

	v, err := f.At(4, 5, 5, 0)
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(v, 4, testTolerance) {
		t.Errorf("interpolated in time: got %g, want 4", v)
	}

	if _, err := f.At(12, 5, 5, 0); StatusFromError(err) != StatusErrorTimeExtrapolation {
		t.Errorf("query past time axis: got %v, want time extrapolation error", err)
	}

	f.AllowTimeExtrapolation = true
	v, err = f.At(12, 5, 5, 0)
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(v, 10, testTolerance) {
		t.Errorf("extrapolated past time axis: got %g, want 10", v)
	}

	f.AllowTimeExtrapolation = false
	f.TimePeriodic = true
	v, err = f.At(14, 5, 5, 0)
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(v, 4, testTolerance) {
		t.Errorf("periodic time wrap: got %g, want 4", v)
	}
}

func TestFieldVerticalInterpolation(t *testing.T) {
	ax := linspace(0, 10, 11)
	depth := []float64{0, 5, 10}
	grid := NewRectilinearZGrid("g", ax, ax, depth, nil, time.Time{}, MeshFlat)
	data := sparse.ZerosDense(3, 11, 11)
	for zi, z := range depth {
		for yi := 0; yi < 11; yi++ {
			for xi := 0; xi < 11; xi++ {
				data.Set(z, zi, yi, xi)
			}
		}
	}
	f, err := NewField("T", data, grid)
	if err != nil {
		t.Fatal(err)
	}
	v, err := f.At(0, 5, 5, 2.5)
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(v, 2.5, testTolerance) {
		t.Errorf("got %g, want 2.5", v)
	}
	if _, err := f.At(0, 5, 5, 11); StatusFromError(err) != StatusErrorOutOfBounds {
		t.Errorf("query below grid: got %v, want out of bounds", err)
	}
}

// On terrain-following grids the depth of each level varies with
// horizontal position. A field whose node values equal the node
// depths must interpolate back the query depth.
func TestFieldSGridInterpolation(t *testing.T) {
	nx, ny, nz := 21, 2, 5
	lon := linspace(0, 20, nx)
	lat := linspace(0, 1, ny)
	// Bathymetry deepens from 10 at the western edge to 20 at the
	// eastern edge.
	depth := sparse.ZerosDense(nz, ny, nx)
	data := sparse.ZerosDense(nz, ny, nx)
	for zi := 0; zi < nz; zi++ {
		for yi := 0; yi < ny; yi++ {
			for xi := 0; xi < nx; xi++ {
				bottom := 10 + 10*float64(xi)/float64(nx-1)
				d := bottom * float64(zi) / float64(nz-1)
				depth.Set(d, zi, yi, xi)
				data.Set(d, zi, yi, xi)
			}
		}
	}
	grid := NewRectilinearSGrid("s", lon, lat, depth, nil, time.Time{}, MeshFlat)
	f, err := NewField("T", data, grid)
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range [][2]float64{{0, 4}, {10, 7.5}, {20, 19}, {5, 0}} {
		v, err := f.At(0, q[0], 0.5, q[1])
		if err != nil {
			t.Fatalf("(x=%g, z=%g): %v", q[0], q[1], err)
		}
		if absDifferent(v, q[1], testTolerance) {
			t.Errorf("(x=%g, z=%g): got %g, want %g", q[0], q[1], v, q[1])
		}
	}
	// Deeper than the local bottom but shallower than the deepest
	// point of the grid.
	if _, err := f.At(0, 0, 0.5, 15); StatusFromError(err) != StatusErrorOutOfBounds {
		t.Errorf("query below local bottom: got %v, want out of bounds", err)
	}
}

// Velocities on spherical meshes are given in m/s but positions are
// kept in degrees, so sampling applies the unit conversion.
func TestFieldSphericalVelocityConversion(t *testing.T) {
	lon := linspace(-10, 10, 21)
	lat := linspace(30, 70, 41)
	fs, err := NewFieldSetFromData(constDense(1, 41, 21), constDense(1, 41, 21),
		lon, lat, nil, nil, MeshSpherical)
	if err != nil {
		t.Fatal(err)
	}
	u, err := fs.U.At(0, 0, 60, 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := degPerMeter / math.Cos(60*math.Pi/180); absDifferent(u, want, 1e-12) {
		t.Errorf("zonal velocity at 60N: got %g, want %g", u, want)
	}
	v, err := fs.V.At(0, 0, 60, 0)
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(v, degPerMeter, 1e-12) {
		t.Errorf("meridional velocity: got %g, want %g", v, degPerMeter)
	}
}

// A spherical grid that does not span the globe rejects queries
// outside its longitude range unless it is marked zonally periodic.
func TestFieldZonalBounds(t *testing.T) {
	lon := linspace(-180, 170, 36)
	lat := linspace(-80, 80, 17)
	grid := NewRectilinearZGrid("g", lon, lat, nil, nil, time.Time{}, MeshSpherical)
	u, err := NewField("U", constDense(1, 17, 36), grid)
	if err != nil {
		t.Fatal(err)
	}
	v, err := NewField("V", constDense(0, 17, 36), grid)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewFieldSet(u, v); err != nil {
		t.Fatal(err)
	}
	if _, err := u.At(0, 175, 10, 0); StatusFromError(err) != StatusErrorOutOfBounds {
		t.Errorf("query east of axis: got %v, want out of bounds", err)
	}
	if _, err := u.At(0, 165, 10, 0); err != nil {
		t.Errorf("query within axis: %v", err)
	}
}

func TestNewFieldShapeValidation(t *testing.T) {
	ax := linspace(0, 10, 11)
	grid := NewRectilinearZGrid("g", ax, ax, nil, nil, time.Time{}, MeshFlat)
	if _, err := NewField("T", sparse.ZerosDense(5, 7), grid); err == nil {
		t.Error("mismatched shape should fail")
	}
	if _, err := NewField("T", sparse.ZerosDense(11), grid); err == nil {
		t.Error("1-d data should fail")
	}
}

func TestVectorFieldEval(t *testing.T) {
	fs := uniformFieldSet(t, 2, 3)
	s, err := NewParticleSet(fs, nil, []float64{0}, []float64{0}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := s.Particle(0)
	u, v, err := fs.UV().Eval(0, 0, 0, 0, p)
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(u, 2, testTolerance) || absDifferent(v, 3, testTolerance) {
		t.Errorf("got (%g, %g), want (2, 3)", u, v)
	}
}
