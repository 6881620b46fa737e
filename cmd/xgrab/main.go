package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/xgrab/cmd/xgrab/commands"
	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
	"git.home.luguber.info/inful/xgrab/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := commands.NewGlobal(os.Stdin, os.Stdout, os.Stderr)

	parser := kong.Must(cli,
		kong.Name("xgrab"),
		kong.Description("XDCC grab daemon: classifies bot notices, schedules requests and keeps download state."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if err := ctx.Run(global, cli); err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
