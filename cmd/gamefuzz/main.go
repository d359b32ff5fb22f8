package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Run     RunCmd           `cmd:"" help:"Replay one saved fuzz input deterministically"`
	Corpus  CorpusCmd        `cmd:"" help:"Replay a directory of saved fuzz inputs"`
	Random  RandomCmd        `cmd:"" help:"Run an exploratory game with the random backend"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("gamefuzz"),
		kong.Description("Deterministic fuzzing driver for turn-based game-rule engines"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
