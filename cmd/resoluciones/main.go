package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"resoluciones/internal/cli"
	derrors "resoluciones/internal/errors"
	"resoluciones/internal/log"
)

// Global is handed to every command's Run.
type Global struct {
	App    *cli.App
	Logger *log.Logger
	Out    io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Verbose bool `short:"v" help:"Enable verbose logging and error detail"`

	Generate GenerateCmd `cmd:"" help:"Generate the resolution document from a budget record"`
	Validate ValidateCmd `cmd:"" help:"Validate a budget record without generating"`
	Draft    DraftCmd    `cmd:"" help:"Draft a budget record from the previous month's ledger expenses"`
	Check    CheckCmd    `cmd:"" help:"Check the compiler, template and output directory"`
	Serve    ServeCmd    `cmd:"" help:"Serve the HTTP API"`
}

func main() {
	var root CLI
	ctx := kong.Parse(&root,
		kong.Name("resoluciones"),
		kong.Description("Monthly budget resolution generator."),
		kong.UsageOnError())

	errs := derrors.NewCLIErrorAdapter(root.Verbose)
	os.Exit(run(ctx, root.Verbose, errs))
}

func run(ctx *kong.Context, verbose bool, errs *derrors.CLIErrorAdapter) int {
	cfg, warnings, err := cli.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, errs.FormatError(err))
		return 1
	}
	logger := cli.SetupLogger(cfg, verbose, os.Stderr)
	log.SetDefault(logger)
	for _, w := range warnings {
		logger.Warn("configuration warning", "warning", w)
	}

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, errs.FormatError(err))
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("close failed", log.FieldError, err.Error())
		}
	}()

	if err := ctx.Run(&Global{App: app, Logger: logger, Out: os.Stdout}); err != nil {
		fmt.Fprintln(os.Stderr, errs.FormatError(err))
		return errs.ExitCodeFor(err)
	}
	return 0
}
