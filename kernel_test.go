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
	"context"
	"math"
	"testing"

	"github.com/ctessum/sparse"
)

func TestAdvectionRK4UniformFlow(t *testing.T) {
	fs := uniformFieldSet(t, 2, -1)
	s, err := NewParticleSet(fs, nil, []float64{0}, []float64{0}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = s.Execute(context.Background(), AdvectionRK4, ExecuteOptions{Runtime: 10, Dt: 1})
	if err != nil {
		t.Fatal(err)
	}
	p := s.Particle(0)
	if absDifferent(p.Lon, 20, testTolerance) || absDifferent(p.Lat, -10, testTolerance) {
		t.Errorf("got (%g, %g), want (20, -10)", p.Lon, p.Lat)
	}
}

// Solid-body rotation: u = -ω y, v = ω x. The velocity field is linear
// so bilinear interpolation is exact, and the fourth-order integrator
// should return the particle to its start after one full period.
func TestAdvectionRK4Rotation(t *testing.T) {
	const period = 1000.0
	omega := 2 * math.Pi / period
	ax := linspace(-100, 100, 21)
	u := sparse.ZerosDense(21, 21)
	v := sparse.ZerosDense(21, 21)
	for yi := 0; yi < 21; yi++ {
		for xi := 0; xi < 21; xi++ {
			u.Set(-omega*ax[yi], yi, xi)
			v.Set(omega*ax[xi], yi, xi)
		}
	}
	fs, err := NewFieldSetFromData(u, v, ax, ax, nil, nil, MeshFlat)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewParticleSet(fs, nil, []float64{50}, []float64{0}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = s.Execute(context.Background(), AdvectionRK4, ExecuteOptions{Runtime: period, Dt: 1})
	if err != nil {
		t.Fatal(err)
	}
	p := s.Particle(0)
	if absDifferent(p.Lon, 50, 1e-4) || absDifferent(p.Lat, 0, 1e-4) {
		t.Errorf("after one period: got (%g, %g), want (50, 0)", p.Lon, p.Lat)
	}

	// First-order Euler accumulates a much larger error on the same
	// trajectory.
	s, err = NewParticleSet(fs, nil, []float64{50}, []float64{0}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = s.Execute(context.Background(), AdvectionEE, ExecuteOptions{Runtime: period, Dt: 1})
	if err != nil {
		t.Fatal(err)
	}
	ee := s.Particle(0)
	if r := math.Hypot(ee.Lon-50, ee.Lat); r < 0.1 {
		t.Errorf("Euler error suspiciously small: %g", r)
	}
}

func TestAdvectionRK43D(t *testing.T) {
	ax := linspace(-100, 100, 21)
	depth := []float64{0, 10}
	fs, err := NewFieldSetFromData(constDense(1, 2, 21, 21), constDense(0, 2, 21, 21),
		ax, ax, depth, nil, MeshFlat)
	if err != nil {
		t.Fatal(err)
	}
	w, err := NewField("W", constDense(0.1, 2, 21, 21), fs.U.Grid())
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.AddField(w); err != nil {
		t.Fatal(err)
	}
	s, err := NewParticleSet(fs, nil, []float64{0}, []float64{0}, []float64{2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = s.Execute(context.Background(), AdvectionRK43D, ExecuteOptions{Runtime: 5, Dt: 1})
	if err != nil {
		t.Fatal(err)
	}
	p := s.Particle(0)
	if absDifferent(p.Lon, 5, testTolerance) {
		t.Errorf("lon: got %g, want 5", p.Lon)
	}
	if absDifferent(p.Depth, 2.5, testTolerance) {
		t.Errorf("depth: got %g, want 2.5", p.Depth)
	}
}

func TestAdvectionRK43DRequiresW(t *testing.T) {
	fs := uniformFieldSet(t, 1, 0)
	s, err := NewParticleSet(fs, nil, []float64{0}, []float64{0}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res := AdvectionRK43D(s.Particle(0), fs, 0); res == StatusSuccess {
		t.Error("3-d advection without a W field should fail")
	}
}

func TestChain(t *testing.T) {
	fs := uniformFieldSet(t, 0, 0)
	s, err := NewParticleSet(fs, nil, []float64{0}, []float64{0}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := s.Particle(0)
	var ran []int
	mk := func(i int, res Status) Kernel {
		return func(p *Particle, fs *FieldSet, t float64) Status {
			ran = append(ran, i)
			return res
		}
	}
	k := Chain(mk(0, StatusSuccess), mk(1, StatusRepeat), mk(2, StatusSuccess))
	if res := k(p, fs, 0); res != StatusRepeat {
		t.Errorf("got %v, want repeat", res)
	}
	if len(ran) != 2 || ran[0] != 0 || ran[1] != 1 {
		t.Errorf("kernels run: %v, want [0 1]", ran)
	}
}
