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
	"math"
	"os"
	"time"

	"github.com/ctessum/cdf"
)

// An obsRecord is one observation of one particle.
type obsRecord struct {
	time, lon, lat, depth float64
	vars                  []float64
}

// A ParticleFile buffers particle trajectories in memory during a
// simulation and exports them as a CF-convention trajectory NetCDF
// file on Close. Each particle occupies one row along the trajectory
// dimension; rows are never reused, so particles released after
// others were deleted still get fresh rows.
type ParticleFile struct {
	// Name is the path of the NetCDF file written by Close.
	Name string

	// OutputDt is the elapsed-time interval between snapshots.
	OutputDt float64

	// WriteOnDelete suppresses interval snapshots; each particle is
	// written exactly once, when it is deleted.
	WriteOnDelete bool

	ptype  *ParticleType
	origin time.Time

	ids  []int64
	rows [][]obsRecord
	once [][]float64 // first-observation values of WriteOnce variables

	lastTime float64
	hasLast  bool
}

// NewParticleFile creates a trajectory writer that snapshots the
// particle set every outputDt seconds of elapsed simulation time.
func NewParticleFile(name string, outputDt float64) *ParticleFile {
	return &ParticleFile{Name: name, OutputDt: outputDt}
}

// row returns the particle's trajectory row, assigning a fresh one on
// first use.
func (pf *ParticleFile) row(p *Particle) int {
	if p.fileID >= 0 {
		return p.fileID
	}
	p.fileID = len(pf.ids)
	pf.ids = append(pf.ids, p.ID)
	pf.rows = append(pf.rows, nil)
	pf.once = append(pf.once, nil)
	return p.fileID
}

// record appends one observation of p stamped with the requested
// write time t. Pending delayed-release particles carry their future
// release time in Time, so stamping t keeps each trajectory's time
// axis strictly increasing.
func (pf *ParticleFile) record(p *Particle, t float64) {
	i := pf.row(p)
	rec := obsRecord{time: t, lon: p.Lon, lat: p.Lat, depth: p.Depth}
	var onceVals []float64
	for j, v := range pf.ptype.vars {
		switch v.Write {
		case WriteAlways:
			rec.vars = append(rec.vars, p.vars[j])
		case WriteOnce:
			onceVals = append(onceVals, p.vars[j])
		}
	}
	if pf.once[i] == nil {
		pf.once[i] = onceVals
	}
	pf.rows[i] = append(pf.rows[i], rec)
}

func (pf *ParticleFile) adopt(s *ParticleSet) {
	if pf.ptype == nil {
		pf.ptype = s.ptype
	}
	if pf.origin.IsZero() && s.fieldset != nil && s.fieldset.GridSet.Size() > 0 {
		pf.origin = s.fieldset.GridSet.Grids[0].TimeOrigin
	}
}

// Write appends one observation for every particle in the set. The
// requested time t deduplicates writes: a second call with the same t
// is a no-op, so stepping loops restarted from a checkpoint do not
// produce duplicate records.
func (pf *ParticleFile) Write(s *ParticleSet, t float64) {
	if pf.hasLast && pf.lastTime == t {
		return
	}
	if s.Size() == 0 {
		log.Warnf("drift: particle set is empty on writing %s at time %g", pf.Name, t)
		return
	}
	pf.adopt(s)
	for _, p := range s.particles {
		pf.record(p, t)
	}
	pf.lastTime = t
	pf.hasLast = true
}

// writeDeleted records the final state of particles removed from the
// set, bypassing time deduplication.
func (pf *ParticleFile) writeDeleted(particles []*Particle, t float64) {
	for _, p := range particles {
		if pf.ptype == nil {
			pf.ptype = p.ptype
		}
		pf.record(p, t)
	}
}

// timeUnits is the CF units string of the time variable.
func (pf *ParticleFile) timeUnits() string {
	if pf.origin.IsZero() {
		return "seconds"
	}
	return "seconds since " + pf.origin.UTC().Format("2006-01-02 15:04:05")
}

// Close exports the buffered trajectories to Name as a NetCDF file
// and releases the buffers.
func (pf *ParticleFile) Close() error {
	if len(pf.ids) == 0 {
		return configErrorf("particle file %s: no observations were written", pf.Name)
	}
	ntraj := len(pf.ids)
	nobs := 0
	for _, r := range pf.rows {
		if len(r) > nobs {
			nobs = len(r)
		}
	}

	h := cdf.NewHeader([]string{"trajectory", "obs"}, []int{ntraj, nobs})
	h.AddAttribute("", "feature_type", "trajectory")
	h.AddAttribute("", "Conventions", "CF-1.6/CF-1.7")
	h.AddAttribute("", "source", "drift "+Version)

	h.AddVariable("trajectory", []string{"trajectory"}, []int32{0})
	h.AddAttribute("trajectory", "long_name", "Unique identifier for each particle")
	h.AddVariable("time", []string{"trajectory", "obs"}, []float64{0})
	h.AddAttribute("time", "standard_name", "time")
	h.AddAttribute("time", "units", pf.timeUnits())
	h.AddVariable("lon", []string{"trajectory", "obs"}, []float64{0})
	h.AddAttribute("lon", "standard_name", "longitude")
	h.AddAttribute("lon", "units", "degrees_east")
	h.AddVariable("lat", []string{"trajectory", "obs"}, []float64{0})
	h.AddAttribute("lat", "standard_name", "latitude")
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddVariable("z", []string{"trajectory", "obs"}, []float64{0})
	h.AddAttribute("z", "standard_name", "depth")
	h.AddAttribute("z", "units", "m")
	h.AddAttribute("z", "positive", "down")

	for _, v := range pf.ptype.vars {
		switch v.Write {
		case WriteAlways:
			pf.addVarHeader(h, v, []string{"trajectory", "obs"})
		case WriteOnce:
			pf.addVarHeader(h, v, []string{"trajectory"})
		}
	}
	h.Define()

	ff, err := os.Create(pf.Name)
	if err != nil {
		return fmt.Errorf("drift: creating particle file: %v", err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("drift: writing particle file header: %v", err)
	}

	ids := make([]int32, ntraj)
	for i, id := range pf.ids {
		ids[i] = int32(id)
	}
	if err := writeVar(f, "trajectory", ids); err != nil {
		return err
	}
	obsData := func(get func(r obsRecord) float64) []float64 {
		data := make([]float64, ntraj*nobs)
		for i := range data {
			data[i] = math.NaN()
		}
		for i, row := range pf.rows {
			for j, rec := range row {
				data[i*nobs+j] = get(rec)
			}
		}
		return data
	}
	if err := writeVar(f, "time", obsData(func(r obsRecord) float64 { return r.time })); err != nil {
		return err
	}
	if err := writeVar(f, "lon", obsData(func(r obsRecord) float64 { return r.lon })); err != nil {
		return err
	}
	if err := writeVar(f, "lat", obsData(func(r obsRecord) float64 { return r.lat })); err != nil {
		return err
	}
	if err := writeVar(f, "z", obsData(func(r obsRecord) float64 { return r.depth })); err != nil {
		return err
	}

	always, once := 0, 0
	for _, v := range pf.ptype.vars {
		switch v.Write {
		case WriteAlways:
			k := always
			always++
			data := obsData(func(r obsRecord) float64 {
				if k < len(r.vars) {
					return r.vars[k]
				}
				return math.NaN()
			})
			if err := pf.writeTyped(f, v, data); err != nil {
				return err
			}
		case WriteOnce:
			k := once
			once++
			data := make([]float64, ntraj)
			for i := range data {
				data[i] = math.NaN()
				if k < len(pf.once[i]) {
					data[i] = pf.once[i][k]
				}
			}
			if err := pf.writeTyped(f, v, data); err != nil {
				return err
			}
		}
	}

	if err := cdf.UpdateNumRecs(ff); err != nil {
		return fmt.Errorf("drift: finalizing particle file: %v", err)
	}
	pf.rows, pf.once, pf.ids = nil, nil, nil
	return nil
}

func (pf *ParticleFile) addVarHeader(h *cdf.Header, v Variable, dims []string) {
	if v.Kind == KindInt {
		h.AddVariable(v.Name, dims, []int32{0})
	} else {
		h.AddVariable(v.Name, dims, []float64{0})
	}
	h.AddAttribute(v.Name, "long_name", v.Name)
}

// writeTyped writes a variable's data, rounding to int32 for integral
// variables.
func (pf *ParticleFile) writeTyped(f *cdf.File, v Variable, data []float64) error {
	if v.Kind == KindInt {
		idata := make([]int32, len(data))
		for i, x := range data {
			if !math.IsNaN(x) {
				idata[i] = int32(math.Round(x))
			}
		}
		return writeVar(f, v.Name, idata)
	}
	return writeVar(f, v.Name, data)
}

func writeVar(f *cdf.File, name string, data interface{}) error {
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("drift: writing variable %s: %v", name, err)
	}
	return nil
}
