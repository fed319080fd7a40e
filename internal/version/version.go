// Package version holds build metadata for esdsn.
package version

import (
	"fmt"
	"runtime"
)

// Set at link time:
//
//	-ldflags "-X github.com/xabinapal/esdsn/internal/version.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build information of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns the long form shown by `esdsn version`.
func (i Info) String() string {
	return fmt.Sprintf("esdsn %s (%s) built on %s with %s for %s",
		i.Version, i.Commit, i.Date, i.GoVersion, i.Platform)
}

// Short returns "esdsn <version>".
func (i Info) Short() string {
	return "esdsn " + i.Version
}

// UserAgent is sent with every connection probe.
func (i Info) UserAgent() string {
	return fmt.Sprintf("esdsn/%s (%s)", i.Version, i.Platform)
}
