package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/mchat/internal/app"
	"github.com/matheus3301/mchat/internal/config"
	"github.com/matheus3301/mchat/internal/lock"
	"github.com/matheus3301/mchat/internal/logging"
	"github.com/matheus3301/mchat/internal/setup"
	"github.com/mattn/go-isatty"
	"go.uber.org/fx"
)

func main() {
	configDirFlag := flag.String("config-dir", "", "configuration directory (overrides $"+config.EnvDir+")")
	setupFlag := flag.Bool("setup", false, "create a profile and pair it")
	demoFlag := flag.Bool("demo", false, "run with an in-memory demo profile")
	verboseFlag := flag.Bool("verbose", false, "also log to stderr during setup")
	flag.Parse()

	if !isatty.IsTerminal(os.Stdin.Fd()) || !isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Fprintln(os.Stderr, "error: mchat needs an interactive terminal")
		os.Exit(1)
	}

	configDir := config.ResolveDir(*configDirFlag)
	if *setupFlag {
		os.Exit(runSetup(configDir, *verboseFlag))
	}
	os.Exit(runClient(app.Params{ConfigDir: configDir, Demo: *demoFlag}))
}

func runSetup(configDir string, verbose bool) int {
	logger, err := logging.New(logging.Path(configDir), "info", verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	w := &setup.Wizard{ConfigDir: configDir, In: os.Stdin, Out: os.Stdout, Logger: logger.Named("setup")}
	if _, err := w.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func runClient(p app.Params) int {
	fxApp := fx.New(app.Options(p))
	if err := fxApp.Err(); err != nil {
		report(err)
		return 1
	}

	startCtx, cancel := context.WithTimeout(context.Background(), fxApp.StartTimeout())
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		report(err)
		return 1
	}

	sig := <-fxApp.Wait()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), fxApp.StopTimeout())
	defer cancelStop()
	if err := fxApp.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return sig.ExitCode
}

// report prints startup failures without the dependency graph noise for
// the cases a user can act on.
func report(err error) {
	var held *lock.HeldError
	switch {
	case errors.As(err, &held):
		fmt.Fprintf(os.Stderr, "error: %v\n", held)
	case errors.Is(err, app.ErrNoProfiles):
		fmt.Fprintf(os.Stderr, "error: %v\n", app.ErrNoProfiles)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
}
