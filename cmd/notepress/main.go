package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/himu-me/notepress/cmd/notepress/commands"
	"github.com/himu-me/notepress/internal/foundation/errors"
	"github.com/himu-me/notepress/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("notepress"),
		kong.Description("Static site generator for markdown notes."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	global := &commands.Global{Logger: cli.Logger(), Context: ctx}
	err := parser.Run(global, cli)
	cancel()

	if err != nil {
		adapter := errors.NewCLIErrorAdapter(cli.Verbose, global.Logger)
		adapter.Log(err)
		fmt.Fprintln(os.Stderr, adapter.FormatError(err))
		os.Exit(adapter.ExitCodeFor(err))
	}
}
