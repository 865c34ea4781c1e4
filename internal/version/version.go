package version

// Version is the notepress release, set at build time:
// go build -ldflags "-X github.com/himu-me/notepress/internal/version.Version=v0.4.0".
//
// It is part of the site-version fingerprint, so a new release re-renders every page.
var Version = "dev"

var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)
