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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/cdf"
)

// writeTestNC writes a small hydrodynamic file with a 5×4 grid and two
// hourly time steps. The zonal velocity equals the longitude
// coordinate, the meridional velocity is one everywhere.
func writeTestNC(t *testing.T) string {
	t.Helper()
	lon := linspace(0, 40, 5)
	lat := linspace(0, 30, 4)

	h := cdf.NewHeader([]string{"time", "lat", "lon"}, []int{2, 4, 5})
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddVariable("time", []string{"time"}, []float32{0})
	h.AddAttribute("time", "units", "hours since 2000-01-01")
	h.AddVariable("uvel", []string{"time", "lat", "lon"}, []float32{0})
	h.AddVariable("vvel", []string{"time", "lat", "lon"}, []int16{0})
	h.Define()

	name := filepath.Join(t.TempDir(), "hydro.nc")
	ff, err := os.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		t.Fatal(err)
	}

	u := make([]float32, 2*4*5)
	v := make([]int16, 2*4*5)
	for ti := 0; ti < 2; ti++ {
		for yi := 0; yi < 4; yi++ {
			for xi := 0; xi < 5; xi++ {
				u[ti*4*5+yi*5+xi] = float32(lon[xi])
				v[ti*4*5+yi*5+xi] = 1
			}
		}
	}
	for _, w := range []struct {
		name string
		data interface{}
	}{
		{"lon", lon},
		{"lat", lat},
		{"time", []float32{0, 1}},
		{"uvel", u},
		{"vvel", v},
	} {
		if err := writeVar(f, w.name, w.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := cdf.UpdateNumRecs(ff); err != nil {
		t.Fatal(err)
	}
	return name
}

func TestReadFieldSet(t *testing.T) {
	name := writeTestNC(t)
	fs, err := ReadFieldSet(name,
		map[string]string{"U": "uvel", "V": "vvel"},
		Dimensions{Lon: "lon", Lat: "lat", Time: "time"}, MeshFlat)
	if err != nil {
		t.Fatal(err)
	}

	grid := fs.U.Grid()
	if grid.Code != RectilinearZGrid {
		t.Errorf("grid code: got %v, want rectilinear", grid.Code)
	}
	// The hourly time axis is rescaled to seconds.
	if len(grid.Time) != 2 || grid.Time[0] != 0 || grid.Time[1] != 3600 {
		t.Errorf("time axis: got %v, want [0 3600]", grid.Time)
	}
	if want := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC); !grid.TimeOrigin.Equal(want) {
		t.Errorf("time origin: got %v, want %v", grid.TimeOrigin, want)
	}

	u, err := fs.U.At(0, 10, 15, 0)
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(u, 10, 1e-5) {
		t.Errorf("u(10, 15): got %g, want 10", u)
	}
	u, err = fs.U.At(1800, 25, 15, 0)
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(u, 25, 1e-5) {
		t.Errorf("u at t=1800: got %g, want 25", u)
	}
	v, err := fs.V.At(0, 10, 15, 0)
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(v, 1, testTolerance) {
		t.Errorf("v: got %g, want 1", v)
	}
}

func TestReadFieldSetMissingVariable(t *testing.T) {
	name := writeTestNC(t)
	_, err := ReadFieldSet(name,
		map[string]string{"U": "nope", "V": "vvel"},
		Dimensions{Lon: "lon", Lat: "lat", Time: "time"}, MeshFlat)
	if err == nil {
		t.Error("missing variable should fail")
	}
}

func TestReadFieldIntoSet(t *testing.T) {
	name := writeTestNC(t)
	dims := Dimensions{Lon: "lon", Lat: "lat", Time: "time"}
	fs, err := ReadFieldSet(name,
		map[string]string{"U": "uvel", "V": "vvel"}, dims, MeshFlat)
	if err != nil {
		t.Fatal(err)
	}
	f, err := ReadField(name, "T", "uvel", dims, MeshFlat)
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.AddField(f); err != nil {
		t.Fatal(err)
	}
	// The extra field's grid has the same geometry, so it is
	// deduplicated against the velocity grid.
	if fs.GridSet.Size() != 1 {
		t.Errorf("got %d grids, want 1", fs.GridSet.Size())
	}
	if f.Grid() != fs.U.Grid() {
		t.Error("extra field should share the velocity grid")
	}
}
