/*
Copyright 2024 The CloudNet Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package version

import (
	"runtime"
	"runtime/debug"

	"github.com/nuclio/logger"
)

type Info struct {
	Label     string `json:"label"`
	GitCommit string `json:"gitCommit"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	GoVersion string `json:"goVersion"`
}

// set through -ldflags "-X github.com/cloudnetservice/cloudnet/pkg/version.label=..." by
// release builds
var (
	label     = ""
	gitCommit = ""
)

// Get returns the version information. Without a linked label it is taken from the build
// information embedded by the go toolchain
func Get() *Info {
	versionInfo := &Info{
		Label:     label,
		GitCommit: gitCommit,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		GoVersion: runtime.Version(),
	}

	if versionInfo.Label != "" {
		return versionInfo
	}

	versionInfo.Label = "unknown"

	buildInfo, found := debug.ReadBuildInfo()
	if !found {
		return versionInfo
	}

	if buildInfo.Main.Version != "" {
		versionInfo.Label = buildInfo.Main.Version
	}

	for _, setting := range buildInfo.Settings {
		if setting.Key == "vcs.revision" && versionInfo.GitCommit == "" {
			versionInfo.GitCommit = setting.Value
		}
	}

	return versionInfo
}

// Set overrides the linked version information, used by tests
func Set(info *Info) {
	label = info.Label
	gitCommit = info.GitCommit
}

// Log logs the version information
func Log(loggerInstance logger.Logger) {
	loggerInstance.DebugWith("Read version", "version", *Get())
}

func (i *Info) TableHeader() []interface{} {
	return []interface{}{"Label", "Git commit", "OS", "Arch", "Go version"}
}

func (i *Info) TableRows() [][]interface{} {
	return [][]interface{}{{i.Label, i.GitCommit, i.OS, i.Arch, i.GoVersion}}
}
