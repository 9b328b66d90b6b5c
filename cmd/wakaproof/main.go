package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"wakaproof/internal/cli"
	"wakaproof/internal/di"
	"wakaproof/internal/models"
	"wakaproof/internal/structures"

	"github.com/spf13/pflag"
)

const usage = `Usage: wakaproof <command> [flags]

Commands:
  fetch      fetch, prove and store one day (default yesterday)
  import     fetch a range of days that are not stored yet
  run        daily run: fetch yesterday, rebuild buckets on week/month boundaries
  aggregate  rebuild the week containing --date, or --month
  verify     re-check the digest and proof of a stored day
  archive    pack a month into a compressed archive
  inspect    load an archive and verify every record in it
  serve      read API and daily scheduler
`

// exit codes
const (
	exitOK = iota
	exitError
	exitUsage
	exitUnavailable
	exitConflict
	exitInvalid
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(exitUsage)
	}
	os.Exit(run(os.Args[1], os.Args[2:]))
}

func run(command string, args []string) int {
	flags := &structures.CliFlags{}
	fs := pflag.NewFlagSet(command, pflag.ContinueOnError)
	fs.StringVarP(&flags.ConfigPath, "config", "c", "config.yml", "path to the YAML config file")
	fs.BoolVar(&flags.DebugMode, "debug", false, "mirror logs to stderr")
	date := fs.String("date", "", "day as YYYY-MM-DD")
	from := fs.String("from", "", "first day of an import as YYYY-MM-DD")
	to := fs.String("to", "", "last day of an import as YYYY-MM-DD (default yesterday)")
	days := fs.Int("days", 0, "import the last N days ending yesterday")
	month := fs.String("month", "", "month as YYYY-MM")
	file := fs.String("file", "", "archive file")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if command == "serve" {
		app, err := di.InitApp(flags)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitError
		}
		if err := app.Run(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitError
		}
		return exitOK
	}

	cmds, err := di.InitCommands(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	defer cmds.Logger().Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "fetch":
		err = cmds.Fetch(ctx, *date)
	case "import":
		err = cmds.Import(ctx, *from, *to, *days)
	case "run":
		err = cmds.Run(ctx)
	case "aggregate":
		err = cmds.Aggregate(ctx, *date, *month)
	case "verify":
		err = cmds.Verify(*date)
	case "archive":
		err = cmds.Archive(*month, *file)
	case "inspect":
		err = cmds.Inspect(*file)
	default:
		fmt.Fprint(os.Stderr, usage)
		return exitUsage
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, models.ErrSourceUnavailable):
		return exitUnavailable
	case errors.Is(err, models.ErrConflict):
		return exitConflict
	case errors.Is(err, models.ErrValidation), errors.Is(err, cli.ErrVerification):
		return exitInvalid
	default:
		return exitError
	}
}
