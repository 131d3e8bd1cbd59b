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

import "fmt"

// Status is the result code returned by a kernel evaluation. The
// stepping loop dispatches non-success codes to recovery kernels
// registered for them; see ParticleSet.Execute.
type Status int

// Kernel status codes.
const (
	StatusSuccess Status = iota
	// StatusRepeat asks the stepping loop to evaluate the kernel again
	// for the same particle without advancing its time.
	StatusRepeat
	// StatusDelete marks the particle for removal after the current
	// step completes.
	StatusDelete
	// StatusError is a generic kernel failure.
	StatusError
	// StatusErrorOutOfBounds signals a field query outside the grid
	// domain.
	StatusErrorOutOfBounds
	// StatusErrorTimeExtrapolation signals a field query outside the
	// time axis of a field that disallows extrapolation.
	StatusErrorTimeExtrapolation
	// StatusErrorInterpolation signals a degenerate interpolation,
	// for example a search that failed to converge on a cell.
	StatusErrorInterpolation
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusRepeat:
		return "Repeat"
	case StatusDelete:
		return "Delete"
	case StatusError:
		return "Error"
	case StatusErrorOutOfBounds:
		return "ErrorOutOfBounds"
	case StatusErrorTimeExtrapolation:
		return "ErrorTimeExtrapolation"
	case StatusErrorInterpolation:
		return "ErrorInterpolation"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// An OutOfBoundsError occurs when a query point lies outside the
// spatial or temporal domain of a grid and extrapolation is not
// allowed.
type OutOfBoundsError struct {
	Field             string
	Time              float64
	Lon, Lat, Depth   float64
	TimeExtrapolation bool
}

func (e *OutOfBoundsError) Error() string {
	if e.TimeExtrapolation {
		return fmt.Sprintf("drift: field %s: time %g outside of time axis and extrapolation is not allowed", e.Field, e.Time)
	}
	return fmt.Sprintf("drift: field %s: point (lon=%g, lat=%g, depth=%g) at time %g is out of bounds", e.Field, e.Lon, e.Lat, e.Depth, e.Time)
}

// Status returns the kernel status code corresponding to this error.
func (e *OutOfBoundsError) Status() Status {
	if e.TimeExtrapolation {
		return StatusErrorTimeExtrapolation
	}
	return StatusErrorOutOfBounds
}

// An InterpolationError occurs when interpolation fails on a
// degenerate cell or the cell search does not converge.
type InterpolationError struct {
	Field  string
	Reason string
}

func (e *InterpolationError) Error() string {
	return fmt.Sprintf("drift: field %s: interpolation failed: %s", e.Field, e.Reason)
}

// Status returns the kernel status code corresponding to this error.
func (e *InterpolationError) Status() Status { return StatusErrorInterpolation }

// A ConfigurationError occurs during FieldSet or ParticleSet
// construction: incompatible chunking between grids sharing geometry,
// duplicate field or variable names, or malformed particle variable
// declarations. It is never recoverable.
type ConfigurationError struct {
	Context string
}

func (e *ConfigurationError) Error() string {
	return "drift: configuration: " + e.Context
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{Context: fmt.Sprintf(format, args...)}
}

// A FatalKernelError occurs when a kernel returns a status code with
// no registered recovery kernel, or panics. It aborts the entire
// Execute call.
type FatalKernelError struct {
	ParticleID int64
	Status     Status
	Err        error
}

func (e *FatalKernelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("drift: kernel failed for particle %d: %v", e.ParticleID, e.Err)
	}
	return fmt.Sprintf("drift: kernel failed for particle %d with unrecovered status %v", e.ParticleID, e.Status)
}

// StatusFromError translates errors returned by field evaluation into
// kernel status codes. Kernels use it to report interpolation
// failures to the stepping loop instead of propagating errors through
// it.
func StatusFromError(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	type statuser interface {
		Status() Status
	}
	if s, ok := err.(statuser); ok {
		return s.Status()
	}
	return StatusError
}
