package commands

import (
	"fmt"
	"runtime"

	"github.com/himu-me/notepress/internal/version"
)

// VersionCmd implements the 'version' command.
type VersionCmd struct{}

func (VersionCmd) Run() error {
	fmt.Printf("notepress %s (commit %s, built %s, %s)\n",
		version.Version, version.GitCommit, version.BuildTime, runtime.Version())
	return nil
}
