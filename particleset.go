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
	"fmt"
	"math"
)

// A ParticleSet is an ordered collection of particles together with
// the FieldSet that drives them. It owns id assignment (ids are
// monotone and never reused, even after deletion) and the
// time-stepping loop.
type ParticleSet struct {
	fieldset *FieldSet
	ptype    *ParticleType

	particles []*Particle
	nextID    int64

	// repeatDt > 0 re-releases clones of the initial particles every
	// repeatDt time units during Execute.
	repeatDt float64
	template []*Particle
}

// NewParticleSet creates a particle set with one particle per entry
// of lon and lat. depth and times may be nil, in which case they
// default to zero. times entries in the future of the earliest
// particle delay that particle's release during Execute.
func NewParticleSet(fs *FieldSet, pt *ParticleType, lon, lat, depth, times []float64) (*ParticleSet, error) {
	if len(lon) != len(lat) {
		return nil, configErrorf("particle set: lon and lat lengths differ (%d != %d)", len(lon), len(lat))
	}
	if depth != nil && len(depth) != len(lon) {
		return nil, configErrorf("particle set: depth length %d does not match %d particles", len(depth), len(lon))
	}
	if times != nil && len(times) != len(lon) {
		return nil, configErrorf("particle set: time length %d does not match %d particles", len(times), len(lon))
	}
	if pt == nil {
		pt, _ = NewParticleType("Particle")
	}
	s := &ParticleSet{
		fieldset: fs,
		ptype:    pt,
	}
	for i := range lon {
		var z, t float64
		if depth != nil {
			z = depth[i]
		}
		if times != nil {
			t = times[i]
		}
		s.Add(lon[i], lat[i], z, t)
	}
	return s, nil
}

// FromLine creates a particle set with n particles evenly spaced
// between (lon0, lat0) and (lon1, lat1).
func FromLine(fs *FieldSet, pt *ParticleType, lon0, lat0, lon1, lat1 float64, n int) (*ParticleSet, error) {
	lon := make([]float64, n)
	lat := make([]float64, n)
	for i := 0; i < n; i++ {
		frac := 0.0
		if n > 1 {
			frac = float64(i) / float64(n-1)
		}
		lon[i] = lon0 + (lon1-lon0)*frac
		lat[i] = lat0 + (lat1-lat0)*frac
	}
	return NewParticleSet(fs, pt, lon, lat, nil, nil)
}

// FieldSet returns the field set driving this particle set.
func (s *ParticleSet) FieldSet() *FieldSet { return s.fieldset }

// Type returns the particle schema shared by all particles in the
// set.
func (s *ParticleSet) Type() *ParticleType { return s.ptype }

// Size returns the number of particles currently in the set.
func (s *ParticleSet) Size() int { return len(s.particles) }

// Particle returns the i'th particle. A negative index counts from
// the end of the set.
func (s *ParticleSet) Particle(i int) *Particle {
	if i < 0 {
		i += len(s.particles)
	}
	return s.particles[i]
}

// Particles returns the particles in insertion order.
func (s *ParticleSet) Particles() []*Particle { return s.particles }

// Add appends a new particle at the given position and time,
// assigning it a fresh id, and returns it.
func (s *ParticleSet) Add(lon, lat, depth, t float64) *Particle {
	p := newParticle(s.ptype, s.nextID, lon, lat, depth, t)
	s.nextID++
	s.particles = append(s.particles, p)
	return p
}

// Remove deletes the i'th particle from the set and returns it. A
// negative index counts from the end. The removed particle's id is
// never reassigned.
func (s *ParticleSet) Remove(i int) *Particle {
	if i < 0 {
		i += len(s.particles)
	}
	p := s.particles[i]
	p.state = StateDeleted
	s.particles = append(s.particles[:i], s.particles[i+1:]...)
	return p
}

// SetRepeat configures repeated release: every repeatDt time units
// of Execute, clones of the particles currently in the set are
// released with fresh ids and reset variables. The release state is
// snapshotted here, so particles advected after this call do not
// change what gets released.
func (s *ParticleSet) SetRepeat(repeatDt float64) {
	s.repeatDt = repeatDt
	s.template = nil
	for _, p := range s.particles {
		s.template = append(s.template, p.clone(p.ID, p.Time))
	}
}

// ExecuteOptions configures one call of the stepping loop.
type ExecuteOptions struct {
	// Runtime is the elapsed duration to simulate. Ignored when
	// EndTime is set.
	Runtime float64

	// EndTime, if non-NaN, is the absolute time at which stepping
	// ends. Set UseEndTime to enable it.
	EndTime    float64
	UseEndTime bool

	// Dt is assigned to every particle whose step size is undefined
	// (NaN) at the start of the call and to particles released during
	// it. Particles with an already defined step size keep it, so one
	// set may mix forward and backward stepping particles.
	Dt float64

	// Output receives particle snapshots every OutputDt of elapsed
	// time. If OutputDt is zero the writer's configured interval is
	// used.
	Output   *ParticleFile
	OutputDt float64

	// Recovery maps kernel error status codes to recovery kernels.
	Recovery RecoveryMap
}

// stepTol is the tolerance, relative to the step size, within which
// a particle is considered to have reached a time boundary.
func stepTol(dt float64) float64 { return 1e-6*math.Abs(dt) + 1e-12 }

func validDt(dt float64) bool { return dt != 0 && !math.IsNaN(dt) }

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

// refTime returns the reference start time for particles stepping in
// the given direction: the earliest particle time for forward
// stepping, the latest for backward.
func (s *ParticleSet) refTime(dir float64) float64 {
	ref := math.NaN()
	for _, p := range s.particles {
		if math.IsNaN(ref) || dir*(p.Time-ref) < 0 {
			ref = p.Time
		}
	}
	if math.IsNaN(ref) {
		ref = 0
	}
	return ref
}

// Execute advances every particle through the field set with the
// given kernel until each active particle has accumulated the
// requested elapsed time along its own signed step size.
//
// One step evaluates the kernel once per eligible particle; recovery
// kernels registered in opts.Recovery heal recognized error codes,
// and unrecovered errors abort the call. Cancellation of ctx is
// observed between steps, leaving every particle at a step boundary.
func (s *ParticleSet) Execute(ctx context.Context, kernel Kernel, opts ExecuteOptions) error {
	if kernel == nil {
		return configErrorf("particle set: no kernel to execute")
	}
	// Assign the default step size and compute per-direction
	// reference times before any promotion.
	for _, p := range s.particles {
		if math.IsNaN(p.Dt) && validDt(opts.Dt) {
			p.Dt = opts.Dt
		}
	}
	dirDefault := sign(opts.Dt)
	refFwd := s.refTime(1)
	refBwd := s.refTime(-1)

	// Promotion assigns each particle the elapsed loop time at which
	// it starts stepping: zero for particles at the reference time,
	// later for delayed releases.
	for _, p := range s.particles {
		dir := dirDefault
		if validDt(p.Dt) {
			dir = sign(p.Dt)
		}
		ref := refFwd
		if dir < 0 {
			ref = refBwd
		}
		p.offset = math.Max(0, dir*(p.Time-ref))
		p.t0 = p.Time
	}

	// Total elapsed budget.
	runtime := opts.Runtime
	if opts.UseEndTime {
		runtime = 0
		for _, p := range s.particles {
			runtime = math.Max(runtime, math.Abs(opts.EndTime-p.Time))
		}
	}
	if runtime < 0 {
		return configErrorf("particle set: negative runtime %g", runtime)
	}

	outputDt := math.Inf(1)
	if opts.Output != nil && !opts.Output.WriteOnDelete {
		outputDt = opts.Output.OutputDt
		if opts.OutputDt > 0 {
			outputDt = opts.OutputDt
		}
		if !(outputDt > 0) {
			outputDt = math.Inf(1)
		}
	}

	// The loop clock: elapsed time tau maps to the writer's time
	// axis through the reference time of the default direction.
	refClock := refFwd
	if dirDefault < 0 {
		refClock = refBwd
	}
	clock := func(tau float64) float64 { return refClock + dirDefault*tau }

	// Initial snapshot.
	if opts.Output != nil && !opts.Output.WriteOnDelete {
		opts.Output.Write(s, clock(0))
	}

	nextRelease := math.Inf(1)
	if s.repeatDt > 0 {
		nextRelease = s.repeatDt
	}

	onBoundary := func(tau float64) bool {
		if math.IsInf(outputDt, 1) {
			return false
		}
		k := math.Round(tau / outputDt)
		return math.Abs(tau-k*outputDt) < 1e-9*outputDt+1e-12
	}

	tau := 0.0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Next step boundary: output interval, repeated release,
		// pending promotion, or the end of the call.
		tauNext := runtime
		if !math.IsInf(outputDt, 1) {
			b := (math.Floor(tau/outputDt) + 1) * outputDt
			for b <= tau+1e-12 {
				b += outputDt
			}
			if b < tauNext {
				tauNext = b
			}
		}
		if nextRelease > tau && nextRelease < tauNext {
			tauNext = nextRelease
		}
		for _, p := range s.particles {
			if p.offset > tau && p.offset < tauNext {
				tauNext = p.offset
			}
		}

		if err := s.step(kernel, opts.Recovery, tauNext); err != nil {
			return err
		}
		s.reap(opts.Output, clock(tauNext))

		if opts.Output != nil && !opts.Output.WriteOnDelete &&
			(onBoundary(tauNext) || tauNext >= runtime-1e-12 && !math.IsInf(outputDt, 1)) {
			opts.Output.Write(s, clock(tauNext))
		}

		if tauNext >= nextRelease-1e-12 && s.repeatDt > 0 {
			s.release(tauNext, refFwd, refBwd, dirDefault, opts.Dt)
			nextRelease += s.repeatDt
		}

		tau = tauNext
		if tau >= runtime-1e-12 {
			break
		}
		if s.activeCount() == 0 && s.repeatDt <= 0 {
			break
		}
	}
	return nil
}

// step advances every eligible particle until its own elapsed time
// reaches the loop boundary tauNext.
func (s *ParticleSet) step(kernel Kernel, recovery RecoveryMap, tauNext float64) error {
	for _, p := range s.particles {
		if p.state != StateActive || !validDt(p.Dt) || p.offset > tauNext {
			continue
		}
		// Non-advancing evaluations (repeats and recoveries) are
		// bounded to surface kernels that make no progress.
		stalled := 0
		for p.state == StateActive && validDt(p.Dt) {
			dir := sign(p.Dt)
			elapsed := dir * (p.Time - p.t0)
			budget := tauNext - p.offset
			remaining := budget - elapsed
			if remaining <= stepTol(p.Dt) {
				break
			}
			// Truncate the final step so the particle lands exactly
			// on the boundary.
			dt := p.Dt
			if math.Abs(dt) > remaining+stepTol(p.Dt) {
				dt = dir * remaining
			}
			saved := p.Dt
			p.Dt = dt
			res, err := s.evalKernel(kernel, p, p.Time)
			if p.Dt == dt { // kernel may change its own step size
				p.Dt = saved
			}
			if err != nil {
				p.state = StateErrored
				return err
			}
			switch res {
			case StatusSuccess:
				p.Time += dt
				stalled = 0
				continue
			case StatusRepeat:
				// Try again at the next step boundary.
			case StatusDelete:
				p.state = StateDeleted
				continue
			default:
				rk, ok := recovery[res]
				if !ok {
					p.state = StateErrored
					return &FatalKernelError{ParticleID: p.ID, Status: res}
				}
				if rres := rk(p, s.fieldset, p.Time); rres != StatusSuccess && rres != StatusDelete {
					p.state = StateErrored
					return &FatalKernelError{ParticleID: p.ID, Status: rres,
						Err: fmt.Errorf("recovery kernel for %v failed", res)}
				}
			}
			stalled++
			if stalled > maxStalledEvals {
				p.state = StateErrored
				return &FatalKernelError{ParticleID: p.ID, Status: res,
					Err: fmt.Errorf("kernel made no progress after %d evaluations", stalled)}
			}
			if res == StatusRepeat {
				break
			}
		}
	}
	return nil
}

// maxStalledEvals bounds consecutive kernel evaluations that do not
// advance a particle's time.
const maxStalledEvals = 1000

// reap routes final states of deleted particles to the writer and
// removes them from the set.
func (s *ParticleSet) reap(out *ParticleFile, t float64) {
	var deleted []*Particle
	kept := s.particles[:0]
	for _, p := range s.particles {
		if p.state == StateDeleted {
			deleted = append(deleted, p)
		} else {
			kept = append(kept, p)
		}
	}
	s.particles = kept
	if out != nil && out.WriteOnDelete && len(deleted) > 0 {
		out.writeDeleted(deleted, t)
	}
}

// release clones the repeat templates into the set at elapsed time
// tau.
func (s *ParticleSet) release(tau, refFwd, refBwd, dirDefault, defaultDt float64) {
	for _, tpl := range s.template {
		dir := dirDefault
		if validDt(tpl.Dt) {
			dir = sign(tpl.Dt)
		}
		ref := refFwd
		if dir < 0 {
			ref = refBwd
		}
		p := tpl.clone(s.nextID, ref+dir*tau)
		s.nextID++
		if math.IsNaN(p.Dt) && validDt(defaultDt) {
			p.Dt = defaultDt
		}
		p.t0 = p.Time
		p.offset = tau
		s.particles = append(s.particles, p)
	}
}

func (s *ParticleSet) activeCount() int {
	n := 0
	for _, p := range s.particles {
		if p.state == StateActive && validDt(p.Dt) {
			n++
		}
	}
	return n
}

// evalKernel runs the kernel for one particle, converting panics
// into fatal kernel errors so one broken kernel cannot corrupt
// sibling particles.
func (s *ParticleSet) evalKernel(kernel Kernel, p *Particle, t float64) (res Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FatalKernelError{ParticleID: p.ID, Status: StatusError,
				Err: fmt.Errorf("kernel panic: %v", r)}
		}
	}()
	return kernel(p, s.fieldset, t), nil
}
