// SPDX-License-Identifier: MIT
//
// Package build carries version metadata stamped into the binary with
// linker flags, e.g.
//
//	go build -ldflags "-X meowsense/pkg/build.buildName=meowsense \
//	  -X meowsense/pkg/build.buildVersion=v0.3.0 ..."
//
// Development builds run without the flags and report "dev" values.
package build

import (
	"errors"
	"fmt"
)

// Description is the one-line summary shown by the CLI.
const Description = "Classify short cat vocalisation clips with a mel-spectrogram model"

// Info is the resolved build metadata.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// String renders the version line printed by `version`.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = &Info{
		Name:    "meowsense",
		Time:    "dev",
		Commit:  "dev",
		Version: "dev",
	}
)

// Initialize copies the ldflags values into the package Info. It returns
// an error naming every missing flag; the dev defaults stay in place for
// any flag that was not provided.
func Initialize() error {
	var errs []error
	set := func(dst *string, val, flag string) {
		if val == "" {
			errs = append(errs, fmt.Errorf("%s is required", flag))
			return
		}
		*dst = val
	}

	set(&buildInfo.Name, buildName, "BuildName")
	set(&buildInfo.Time, buildTime, "BuildTime")
	set(&buildInfo.Commit, buildCommit, "BuildCommit")
	set(&buildInfo.Version, buildVersion, "BuildVersion")

	return errors.Join(errs...)
}

// Get returns a copy of the current build metadata.
func Get() Info {
	return *buildInfo
}
