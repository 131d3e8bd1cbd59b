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

package driftutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/drift"
	"github.com/spf13/cast"
)

// setLogLevel configures the verbosity of log output.
func setLogLevel(level string) error {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("drift: invalid log level %q: %v", level, err)
	}
	logrus.SetLevel(l)
	return nil
}

// GetStringMapString returns a map[string]string from a viper
// configuration, accounting for the fact that it may be a
// JSON-encoded string if it was set from a command-line flag.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch i.(type) {
	case map[string]string:
		return i.(map[string]string), nil
	case map[string]interface{}:
		return cast.ToStringMapString(i), nil
	case string:
		b := bytes.NewBuffer(([]byte)(i.(string)))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			return nil, fmt.Errorf("drift: decoding configuration variable %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("drift: invalid type for configuration variable %s: %#v", varName, i)
	}
}

// floatSlice converts a string-slice configuration variable to
// numbers.
func floatSlice(varName string, cfg *viper.Viper) ([]float64, error) {
	s := cfg.GetStringSlice(varName)
	o := make([]float64, len(s))
	for i, v := range s {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("drift: configuration variable %s: %v", varName, err)
		}
		o[i] = f
	}
	return o, nil
}

func mesh(name string) (drift.Mesh, error) {
	switch name {
	case "spherical":
		return drift.MeshSpherical, nil
	case "flat":
		return drift.MeshFlat, nil
	}
	return 0, fmt.Errorf("drift: invalid mesh %q; try 'spherical' or 'flat'", name)
}

func kernel(name string) (drift.Kernel, error) {
	switch name {
	case "EE":
		return drift.AdvectionEE, nil
	case "RK4":
		return drift.AdvectionRK4, nil
	case "RK4_3D":
		return drift.AdvectionRK43D, nil
	}
	return nil, fmt.Errorf("drift: invalid kernel %q; try 'EE', 'RK4', or 'RK4_3D'", name)
}

// Run performs a particle tracking simulation as specified by the
// configuration.
func Run(ctx context.Context, cfg *viper.Viper) error {
	m, err := mesh(cfg.GetString("Mesh"))
	if err != nil {
		return err
	}
	k, err := kernel(cfg.GetString("Kernel"))
	if err != nil {
		return err
	}
	variables, err := GetStringMapString("Variables", cfg)
	if err != nil {
		return err
	}
	dims := drift.Dimensions{
		Lon:   cfg.GetString("Dims.Lon"),
		Lat:   cfg.GetString("Dims.Lat"),
		Depth: cfg.GetString("Dims.Depth"),
		Time:  cfg.GetString("Dims.Time"),
	}
	fs, err := drift.ReadFieldSet(os.ExpandEnv(cfg.GetString("InputFile")), variables, dims, m)
	if err != nil {
		return err
	}

	lons, err := floatSlice("Release.Lons", cfg)
	if err != nil {
		return err
	}
	lats, err := floatSlice("Release.Lats", cfg)
	if err != nil {
		return err
	}
	depths, err := floatSlice("Release.Depths", cfg)
	if err != nil {
		return err
	}
	if len(lons) == 0 || len(lons) != len(lats) {
		return fmt.Errorf("drift: Release.Lons and Release.Lats must be nonempty and the same length")
	}
	if len(depths) == 0 {
		depths = nil
	}

	var pset *drift.ParticleSet
	if n := cfg.GetInt("Release.NumParticles"); n > 0 {
		last := len(lons) - 1
		pset, err = drift.FromLine(fs, nil, lons[0], lats[0], lons[last], lats[last], n)
	} else {
		pset, err = drift.NewParticleSet(fs, nil, lons, lats, depths, nil)
	}
	if err != nil {
		return err
	}
	if repeat := cfg.GetFloat64("Release.RepeatDt"); repeat > 0 {
		pset.SetRepeat(repeat)
	}

	outputFile := os.ExpandEnv(cfg.GetString("OutputFile"))
	out := drift.NewParticleFile(outputFile, cfg.GetFloat64("OutputDt"))
	if err := pset.Execute(ctx, k, drift.ExecuteOptions{
		Runtime:  cfg.GetFloat64("Runtime"),
		Dt:       cfg.GetFloat64("Dt"),
		Output:   out,
		OutputDt: out.OutputDt,
	}); err != nil {
		return err
	}
	return out.Close()
}
