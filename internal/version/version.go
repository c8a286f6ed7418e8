package version

import "github.com/prometheus/common/version"

// Build information, set with -ldflags on github.com/prometheus/common/version.
var (
	Branch   = version.Branch
	Revision = version.Revision
)

func Info() string {
	return version.Info()
}

func BuildContext() string {
	return version.BuildContext()
}
