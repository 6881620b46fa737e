package commands

import (
	"io"
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/xgrab/internal/config"
)

// Global carries the streams and log level shared by every command.
type Global struct {
	In       io.Reader
	Out      io.Writer
	Err      io.Writer
	LogLevel *slog.LevelVar
}

func NewGlobal(in io.Reader, out, errOut io.Writer) *Global {
	return &Global{In: in, Out: out, Err: errOut, LogLevel: new(slog.LevelVar)}
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"xgrab.yaml" type:"path"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log output format (text, json); defaults to the configured format"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Daemon   DaemonCmd   `cmd:"" help:"Run the grab daemon until interrupted"`
	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
	Classify ClassifyCmd `cmd:"" help:"Classify bot notices read from a file or stdin"`
	Inspect  InspectCmd  `cmd:"" help:"Summarize persisted state and the latest statistics"`
	Search   SearchCmd   `cmd:"" help:"Manage saved search terms"`
}

// AfterApply runs after flag parsing and installs the default logger.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	if c.Verbose {
		g.LogLevel.Set(slog.LevelDebug)
	}
	installLogger(g, c.LogFormat)
	return nil
}

func installLogger(g *Global, format string) {
	opts := &slog.HandlerOptions{Level: g.LogLevel}
	var h slog.Handler
	if config.NormalizeLogFormat(format) == config.LogFormatJSON {
		h = slog.NewJSONHandler(g.Err, opts)
	} else {
		h = slog.NewTextHandler(g.Err, opts)
	}
	slog.SetDefault(slog.New(h))
}

// applyLogging adopts the configured level and format unless flags already chose them.
func applyLogging(g *Global, root *CLI, cfg *config.Config) {
	if !root.Verbose {
		g.LogLevel.Set(cfg.Logging.Level.SlogLevel())
	}
	if root.LogFormat == "" {
		installLogger(g, string(cfg.Logging.Format))
	}
}
