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

// A Kernel advances or updates one particle over one integration
// interval. It may mutate the particle's position, time-step, and
// variables, and may mark it for deletion. Field queries that fail
// should be reported by returning the corresponding status code (see
// StatusFromError) so the stepping loop can dispatch recovery.
type Kernel func(p *Particle, fs *FieldSet, t float64) Status

// A RecoveryMap associates error status codes with kernels invoked
// to heal particles that failed with that code.
type RecoveryMap map[Status]Kernel

// Chain combines kernels into one that evaluates them in order,
// stopping at the first non-success status.
func Chain(kernels ...Kernel) Kernel {
	return func(p *Particle, fs *FieldSet, t float64) Status {
		for _, k := range kernels {
			if res := k(p, fs, t); res != StatusSuccess {
				return res
			}
		}
		return StatusSuccess
	}
}

// RecoverDelete is a recovery kernel that deletes the erroring
// particle.
func RecoverDelete(p *Particle, fs *FieldSet, t float64) Status {
	p.Delete()
	return StatusSuccess
}

// AdvectionEE advects a particle horizontally with the explicit
// Euler method.
func AdvectionEE(p *Particle, fs *FieldSet, t float64) Status {
	u, err := fs.U.Eval(t, p.Lon, p.Lat, p.Depth, p)
	if err != nil {
		return StatusFromError(err)
	}
	v, err := fs.V.Eval(t, p.Lon, p.Lat, p.Depth, p)
	if err != nil {
		return StatusFromError(err)
	}
	p.Lon += u * p.Dt
	p.Lat += v * p.Dt
	return StatusSuccess
}

// AdvectionRK4 advects a particle horizontally with fourth-order
// Runge-Kutta integration.
func AdvectionRK4(p *Particle, fs *FieldSet, t float64) Status {
	dt := p.Dt
	sample := func(tt, x, y float64) (u, v float64, err error) {
		u, err = fs.U.Eval(tt, x, y, p.Depth, p)
		if err != nil {
			return 0, 0, err
		}
		v, err = fs.V.Eval(tt, x, y, p.Depth, p)
		return u, v, err
	}
	u1, v1, err := sample(t, p.Lon, p.Lat)
	if err != nil {
		return StatusFromError(err)
	}
	u2, v2, err := sample(t+.5*dt, p.Lon+u1*.5*dt, p.Lat+v1*.5*dt)
	if err != nil {
		return StatusFromError(err)
	}
	u3, v3, err := sample(t+.5*dt, p.Lon+u2*.5*dt, p.Lat+v2*.5*dt)
	if err != nil {
		return StatusFromError(err)
	}
	u4, v4, err := sample(t+dt, p.Lon+u3*dt, p.Lat+v3*dt)
	if err != nil {
		return StatusFromError(err)
	}
	p.Lon += (u1 + 2*u2 + 2*u3 + u4) / 6. * dt
	p.Lat += (v1 + 2*v2 + 2*v3 + v4) / 6. * dt
	return StatusSuccess
}

// AdvectionRK43D advects a particle in three dimensions with
// fourth-order Runge-Kutta integration. The field set must contain a
// vertical velocity field W.
func AdvectionRK43D(p *Particle, fs *FieldSet, t float64) Status {
	w, err := fs.Field("W")
	if err != nil {
		return StatusFromError(err)
	}
	dt := p.Dt
	sample := func(tt, x, y, z float64) (u, v, wv float64, err error) {
		u, err = fs.U.Eval(tt, x, y, z, p)
		if err != nil {
			return 0, 0, 0, err
		}
		v, err = fs.V.Eval(tt, x, y, z, p)
		if err != nil {
			return 0, 0, 0, err
		}
		wv, err = w.Eval(tt, x, y, z, p)
		return u, v, wv, err
	}
	u1, v1, w1, err := sample(t, p.Lon, p.Lat, p.Depth)
	if err != nil {
		return StatusFromError(err)
	}
	u2, v2, w2, err := sample(t+.5*dt, p.Lon+u1*.5*dt, p.Lat+v1*.5*dt, p.Depth+w1*.5*dt)
	if err != nil {
		return StatusFromError(err)
	}
	u3, v3, w3, err := sample(t+.5*dt, p.Lon+u2*.5*dt, p.Lat+v2*.5*dt, p.Depth+w2*.5*dt)
	if err != nil {
		return StatusFromError(err)
	}
	u4, v4, w4, err := sample(t+dt, p.Lon+u3*dt, p.Lat+v3*dt, p.Depth+w3*dt)
	if err != nil {
		return StatusFromError(err)
	}
	p.Lon += (u1 + 2*u2 + 2*u3 + u4) / 6. * dt
	p.Lat += (v1 + 2*v2 + 2*v3 + v4) / 6. * dt
	p.Depth += (w1 + 2*w2 + 2*w3 + w4) / 6. * dt
	return StatusSuccess
}
