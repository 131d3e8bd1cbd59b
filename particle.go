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

import "math"

// State is the lifecycle state of a particle.
type State int

const (
	// StateActive particles are stepped by Execute.
	StateActive State = iota
	// StateDeleted particles have been removed from the active set;
	// their ids are never reused.
	StateDeleted
	// StateErrored particles failed their last kernel evaluation with
	// a code that no recovery kernel healed.
	StateErrored
)

// WritePolicy controls how often a particle variable is written to
// the trajectory file.
type WritePolicy int

const (
	// WriteAlways writes the variable at every output interval.
	WriteAlways WritePolicy = iota
	// WriteOnce writes the variable only at the particle's first
	// output record.
	WriteOnce
	// WriteNever excludes the variable from output.
	WriteNever
)

// VarKind is the semantic type of a particle variable.
type VarKind int

const (
	// KindFloat variables hold continuous values.
	KindFloat VarKind = iota
	// KindInt variables hold integral values (stored as float64,
	// rounded on output).
	KindInt
)

// A Variable declares one extra per-particle quantity: its name,
// semantic kind, initial value, and write policy.
type Variable struct {
	Name    string
	Kind    VarKind
	Initial float64
	Write   WritePolicy
}

// A ParticleType is the fixed schema of a particle population: an
// ordered list of extra variables declared once, before any particle
// is created. Kernels resolve variable names to record offsets at
// registration time through Index.
type ParticleType struct {
	Name string

	vars  []Variable
	index map[string]int
}

// reserved names collide with the built-in particle fields.
var reservedVarNames = map[string]bool{
	"id": true, "lon": true, "lat": true, "depth": true,
	"z": true, "time": true, "dt": true,
}

// NewParticleType declares a particle schema. Duplicate or reserved
// variable names are configuration errors.
func NewParticleType(name string, vars ...Variable) (*ParticleType, error) {
	pt := &ParticleType{
		Name:  name,
		vars:  vars,
		index: make(map[string]int),
	}
	for i, v := range vars {
		if v.Name == "" {
			return nil, configErrorf("particle type %s: variable %d has no name", name, i)
		}
		if reservedVarNames[v.Name] {
			return nil, configErrorf("particle type %s: variable name %s is reserved", name, v.Name)
		}
		if _, ok := pt.index[v.Name]; ok {
			return nil, configErrorf("particle type %s: duplicate variable %s", name, v.Name)
		}
		pt.index[v.Name] = i
	}
	return pt, nil
}

// Index returns the record offset of the named variable.
func (pt *ParticleType) Index(name string) (int, error) {
	i, ok := pt.index[name]
	if !ok {
		return 0, configErrorf("particle type %s has no variable %s", pt.Name, name)
	}
	return i, nil
}

// Variables returns the declared variables in order.
func (pt *ParticleType) Variables() []Variable { return pt.vars }

// A Particle is one Lagrangian particle: a position, a time, a
// signed per-particle step size, and the extra variables declared by
// its type. Particles are created through a ParticleSet.
type Particle struct {
	ID              int64
	Lon, Lat, Depth float64

	// Time is the particle's current simulation time in seconds
	// relative to the grid time origin.
	Time float64

	// Dt is the signed time increment applied per stepping iteration.
	// A zero or NaN Dt marks the particle as non-advancing; it is
	// skipped by Execute but stays in the set.
	Dt float64

	ptype  *ParticleType
	vars   []float64
	state  State
	fileID int
	cache  []searchIndex

	// stepping-loop bookkeeping, valid within one Execute call
	t0     float64 // time when the particle became active
	offset float64 // elapsed loop time at activation
}

func newParticle(pt *ParticleType, id int64, lon, lat, depth, t float64) *Particle {
	p := &Particle{
		ID:     id,
		Lon:    lon,
		Lat:    lat,
		Depth:  depth,
		Time:   t,
		Dt:     math.NaN(),
		ptype:  pt,
		fileID: -1,
	}
	if len(pt.vars) > 0 {
		p.vars = make([]float64, len(pt.vars))
		for i, v := range pt.vars {
			p.vars[i] = v.Initial
		}
	}
	return p
}

// Type returns the particle's schema.
func (p *Particle) Type() *ParticleType { return p.ptype }

// State returns the particle's lifecycle state.
func (p *Particle) State() State { return p.state }

// Delete marks the particle for removal after the current step
// completes.
func (p *Particle) Delete() { p.state = StateDeleted }

// Var returns the value of the variable at record offset i.
func (p *Particle) Var(i int) float64 { return p.vars[i] }

// SetVar sets the variable at record offset i.
func (p *Particle) SetVar(i int, v float64) { p.vars[i] = v }

// VarByName returns the value of the named variable. Kernels on a
// hot path should resolve the offset once with ParticleType.Index
// and use Var instead.
func (p *Particle) VarByName(name string) (float64, error) {
	i, err := p.ptype.Index(name)
	if err != nil {
		return 0, err
	}
	return p.vars[i], nil
}

// searchIndexFor returns the particle's cached search index for the
// grid at position igrid in the GridSet, growing the cache as
// needed.
func (p *Particle) searchIndexFor(igrid int) *searchIndex {
	for len(p.cache) <= igrid {
		p.cache = append(p.cache, searchIndex{})
	}
	return &p.cache[igrid]
}

// clone duplicates the particle template for a repeated release,
// resetting variables to their initial values.
func (p *Particle) clone(id int64, t float64) *Particle {
	c := newParticle(p.ptype, id, p.Lon, p.Lat, p.Depth, t)
	c.Dt = p.Dt
	return c
}
