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

// Package drift is a Lagrangian particle tracking engine. It advects
// virtual particles (ocean drifters, fish larvae, plastics) through
// time-varying velocity fields defined on structured or curvilinear
// grids, such as the output of ocean or atmosphere models.
//
// The main entry points are FieldSet, which collects the gridded
// variables that drive a simulation, and ParticleSet, which holds the
// particles and runs the time-stepping loop.
package drift

import (
	"github.com/sirupsen/logrus"
)

// Version is the drift release version.
const Version = "0.2.0"

var log logrus.FieldLogger = logrus.StandardLogger()

// SetLogger changes the logger used by this package. The default is
// the logrus standard logger.
func SetLogger(l logrus.FieldLogger) { log = l }
