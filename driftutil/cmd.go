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

// Package driftutil holds the configuration and command-line
// interface for the drift particle tracking model.
package driftutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/drift"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to drift.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel sets the verbosity of log output. It should be one of
              debug, info, warning, or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "InputFile",
			usage: `
              InputFile is the path to the NetCDF file holding the
              hydrodynamic fields that particles are advected in.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Variables",
			usage: `
              Variables maps field names to the NetCDF variables holding them.
              It must include the velocity components U and V, and may include
              a vertical velocity W and any number of tracer fields.`,
			defaultVal: map[string]string{"U": "u", "V": "v"},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Dims.Lon",
			usage: `
              Dims.Lon is the name of the NetCDF variable holding the
              longitude coordinate.`,
			defaultVal: "lon",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Dims.Lat",
			usage: `
              Dims.Lat is the name of the NetCDF variable holding the
              latitude coordinate.`,
			defaultVal: "lat",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Dims.Depth",
			usage: `
              Dims.Depth is the name of the NetCDF variable holding the depth
              coordinate. Leave empty for depth-independent fields.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Dims.Time",
			usage: `
              Dims.Time is the name of the NetCDF variable holding the time
              coordinate. Leave empty for steady fields.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Mesh",
			usage: `
              Mesh specifies the coordinate convention of the input fields:
              'spherical' for longitude and latitude in degrees with
              velocities in m/s, or 'flat' for positions and velocities in
              consistent units.`,
			defaultVal: "spherical",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Release.Lons",
			usage: `
              Release.Lons lists the release longitudes of the particles.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Release.Lats",
			usage: `
              Release.Lats lists the release latitudes of the particles. It
              must have the same length as Release.Lons.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Release.Depths",
			usage: `
              Release.Depths lists the release depths of the particles. Leave
              empty to release all particles at the surface.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Release.NumParticles",
			usage: `
              Release.NumParticles, if nonzero, releases particles evenly
              spaced on the line between the first and last points given in
              Release.Lons and Release.Lats, instead of one particle per
              point.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Release.RepeatDt",
			usage: `
              Release.RepeatDt, if positive, re-releases the initial particle
              configuration every RepeatDt seconds of simulation time.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Kernel",
			usage: `
              Kernel selects the advection scheme. It should be one of EE
              (explicit Euler), RK4 (fourth-order Runge-Kutta), or RK4_3D
              (three-dimensional fourth-order Runge-Kutta, which requires a
              W variable).`,
			defaultVal: "RK4",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Dt",
			usage: `
              Dt is the integration time step in seconds. Negative values run
              the simulation backward in time.`,
			defaultVal: 300.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Runtime",
			usage: `
              Runtime is the length of the simulation in seconds.`,
			defaultVal: 86400.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path of the NetCDF trajectory file to write.`,
			defaultVal: "drift_output.nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputDt",
			usage: `
              OutputDt is the interval in seconds between trajectory
              snapshots.`,
			defaultVal: 3600.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("DRIFT")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("drift: problem reading configuration file: %v", err)
		}
	}
	return setLogLevel(Cfg.GetString("LogLevel"))
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "drift",
	Short: "A Lagrangian ocean particle tracking model.",
	Long: `drift computes trajectories of virtual particles advected by
gridded hydrodynamic fields.

Refer to the subcommand documentation for configuration options and default
settings. Configuration can be changed by using a configuration file (and
providing the path to the file using the --config flag), by using
command-line arguments, or by setting environment variables in the format
'DRIFT_var' where 'var' is the name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration
information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of drift.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("drift v%s\n", drift.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a particle tracking simulation.",
	Long: `run advects particles through the fields in InputFile from their
release positions and writes the resulting trajectories to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Run(context.Background(), Cfg)
	},
	DisableAutoGenTag: true,
}
