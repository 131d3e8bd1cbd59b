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
	"time"

	"github.com/ctessum/sparse"
	"github.com/ctessum/unit"
)

// A FieldSet is the named collection of Fields that drives a
// simulation. It always contains the horizontal velocity components
// U and V, and owns the GridSet that deduplicates the fields' grids.
type FieldSet struct {
	// U and V are the zonal and meridional velocity components.
	U, V *Field

	GridSet *GridSet

	fields map[string]*Field
}

// NewFieldSet creates a field set from the velocity components and
// any number of additional fields. Field names must be unique.
func NewFieldSet(u, v *Field, others ...*Field) (*FieldSet, error) {
	fs := &FieldSet{
		GridSet: &GridSet{},
		fields:  make(map[string]*Field),
	}
	if err := fs.AddField(u); err != nil {
		return nil, err
	}
	if err := fs.AddField(v); err != nil {
		return nil, err
	}
	for _, f := range others {
		if err := fs.AddField(f); err != nil {
			return nil, err
		}
	}
	fs.U = fs.fields["U"]
	fs.V = fs.fields["V"]
	if fs.U == nil || fs.V == nil {
		return nil, configErrorf("field set must contain velocity fields named U and V")
	}
	return fs, nil
}

// NewFieldSetFromData creates a field set on a single rectilinear
// Z grid from raw velocity arrays, in the shapes accepted by
// NewField. depth and times may be nil.
func NewFieldSetFromData(uData, vData *sparse.DenseArray, lon, lat, depth, times []float64, mesh Mesh) (*FieldSet, error) {
	grid := NewRectilinearZGrid("grid0", lon, lat, depth, times, time.Time{}, mesh)
	u, err := NewField("U", uData, grid)
	if err != nil {
		return nil, err
	}
	v, err := NewField("V", vData, grid)
	if err != nil {
		return nil, err
	}
	return NewFieldSet(u, v)
}

// AddField registers an additional field, deduplicating its grid
// against the grids already present. Duplicate names are
// configuration errors.
func (fs *FieldSet) AddField(f *Field) error {
	if _, ok := fs.fields[f.Name]; ok {
		return configErrorf("field set already contains a field named %s", f.Name)
	}
	if err := fs.GridSet.AddGrid(f); err != nil {
		return err
	}
	if f.grid.Mesh == MeshSpherical {
		switch f.Name {
		case "U":
			f.conv = geographicPolarConverter{}
			f.Units = unit.Dimensions{unit.LengthDim: 1, unit.TimeDim: -1}
		case "V":
			f.conv = geographicConverter{}
			f.Units = unit.Dimensions{unit.LengthDim: 1, unit.TimeDim: -1}
		}
	}
	fs.fields[f.Name] = f
	return nil
}

// Field returns the field with the given name.
func (fs *FieldSet) Field(name string) (*Field, error) {
	f, ok := fs.fields[name]
	if !ok {
		return nil, configErrorf("field set has no field named %s", name)
	}
	return f, nil
}

// Names returns the names of all fields in the set.
func (fs *FieldSet) Names() []string {
	names := make([]string, 0, len(fs.fields))
	for n := range fs.fields {
		names = append(names, n)
	}
	return names
}

// UV returns the horizontal velocity vector field.
func (fs *FieldSet) UV() *VectorField {
	return &VectorField{Name: "UV", U: fs.U, V: fs.V}
}

// UVW returns the three-dimensional velocity vector field. The W
// component must have been added to the set.
func (fs *FieldSet) UVW() (*VectorField, error) {
	w, err := fs.Field("W")
	if err != nil {
		return nil, err
	}
	return &VectorField{Name: "UVW", U: fs.U, V: fs.V, W: w}, nil
}
