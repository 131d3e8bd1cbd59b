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
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// Dimensions names the coordinate variables of a NetCDF hydrodynamic
// file. Lon and Lat are required; Depth and Time may be empty for
// files without those axes.
type Dimensions struct {
	Lon, Lat, Depth, Time string
}

// ReadFieldSet reads a field set from a NetCDF file. variables maps
// field names to the NetCDF variables holding them and must include
// U and V. One-dimensional lon and lat coordinates produce a
// rectilinear grid; two-dimensional ones a curvilinear grid.
func ReadFieldSet(filename string, variables map[string]string, dims Dimensions, mesh Mesh) (*FieldSet, error) {
	ff, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("drift: opening %s: %v", filename, err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("drift: reading %s: %v", filename, err)
	}

	grid, err := readGrid(f, filename, dims, mesh)
	if err != nil {
		return nil, err
	}

	fields := make([]*Field, 0, len(variables))
	for name, ncVar := range variables {
		data, err := readVar(f, ncVar)
		if err != nil {
			return nil, fmt.Errorf("drift: %s: %v", filename, err)
		}
		fld, err := NewField(name, data, grid)
		if err != nil {
			return nil, err
		}
		fields = append(fields, fld)
	}
	var u, v *Field
	var others []*Field
	for _, fld := range fields {
		switch fld.Name {
		case "U":
			u = fld
		case "V":
			v = fld
		default:
			others = append(others, fld)
		}
	}
	if u == nil || v == nil {
		return nil, configErrorf("%s: variables must include U and V", filename)
	}
	return NewFieldSet(u, v, others...)
}

// ReadField reads a single field from a NetCDF file, for adding to an
// existing field set with AddField.
func ReadField(filename, name, ncVar string, dims Dimensions, mesh Mesh) (*Field, error) {
	ff, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("drift: opening %s: %v", filename, err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("drift: reading %s: %v", filename, err)
	}
	grid, err := readGrid(f, name, dims, mesh)
	if err != nil {
		return nil, err
	}
	data, err := readVar(f, ncVar)
	if err != nil {
		return nil, fmt.Errorf("drift: %s: %v", filename, err)
	}
	return NewField(name, data, grid)
}

func readGrid(f *cdf.File, name string, dims Dimensions, mesh Mesh) (*Grid, error) {
	lon, err := readVar(f, dims.Lon)
	if err != nil {
		return nil, fmt.Errorf("drift: reading longitude: %v", err)
	}
	lat, err := readVar(f, dims.Lat)
	if err != nil {
		return nil, fmt.Errorf("drift: reading latitude: %v", err)
	}
	var depth []float64
	if dims.Depth != "" {
		d, err := readVar(f, dims.Depth)
		if err != nil {
			return nil, fmt.Errorf("drift: reading depth: %v", err)
		}
		depth = d.Elements
	}
	var times []float64
	origin := time.Time{}
	if dims.Time != "" {
		t, err := readVar(f, dims.Time)
		if err != nil {
			return nil, fmt.Errorf("drift: reading time: %v", err)
		}
		times = t.Elements
		origin, err = timeOrigin(f, dims.Time, times)
		if err != nil {
			return nil, err
		}
	}
	switch len(lon.Shape) {
	case 1:
		return NewRectilinearZGrid(name, lon.Elements, lat.Elements, depth, times, origin, mesh), nil
	case 2:
		return NewCurvilinearZGrid(name, lon, lat, depth, times, origin, mesh), nil
	}
	return nil, configErrorf("longitude variable %s must have 1 or 2 dimensions, not %d", dims.Lon, len(lon.Shape))
}

// timeOrigin parses a CF time units attribute ("<unit> since
// <timestamp>") and rescales times to seconds in place.
func timeOrigin(f *cdf.File, timeVar string, times []float64) (time.Time, error) {
	attr := f.Header.GetAttribute(timeVar, "units")
	if attr == nil {
		return time.Time{}, nil
	}
	units, ok := attr.(string)
	if !ok {
		return time.Time{}, nil
	}
	parts := strings.SplitN(units, " since ", 2)
	if len(parts) != 2 {
		return time.Time{}, nil
	}
	var scale float64
	switch strings.TrimSpace(parts[0]) {
	case "seconds", "second", "s":
		scale = 1
	case "minutes", "minute":
		scale = 60
	case "hours", "hour", "h":
		scale = 3600
	case "days", "day", "d":
		scale = 86400
	default:
		return time.Time{}, configErrorf("unsupported time unit in %q", units)
	}
	stamp := strings.TrimSpace(parts[1])
	var origin time.Time
	var err error
	for _, layout := range []string{
		"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02",
	} {
		origin, err = time.Parse(layout, stamp)
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, configErrorf("unsupported time origin in %q", units)
	}
	if scale != 1 {
		for i := range times {
			times[i] *= scale
		}
	}
	return origin, nil
}

// readVar reads an entire variable into a dense array, converting
// from the on-disk element type.
func readVar(f *cdf.File, name string) (*sparse.DenseArray, error) {
	dims := f.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("variable %s not in file", name)
	}
	nread := 1
	for _, d := range dims {
		nread *= d
	}
	start, end := make([]int, len(dims)), make([]int, len(dims))
	copy(end, dims)
	r := f.Reader(name, start, end)
	buf := r.Zero(nread)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading variable %s: %v", name, err)
	}
	data := sparse.ZerosDense(dims...)
	switch b := buf.(type) {
	case []float64:
		copy(data.Elements, b)
	case []float32:
		for i, v := range b {
			data.Elements[i] = float64(v)
		}
	case []int32:
		for i, v := range b {
			data.Elements[i] = float64(v)
		}
	case []int16:
		for i, v := range b {
			data.Elements[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("variable %s has unsupported type %T", name, buf)
	}
	return data, nil
}
