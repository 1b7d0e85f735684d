// Command ledger runs the workout ledger engines once, or serves them over
// HTTP.
//
//	ledger sync   [-window N]
//	ledger rollup [-mode full|distance]
//	ledger serve  [-port N]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	rebuilddashboard "github.com/fitglue/ledger/functions/rebuild-dashboard"
	syncactivities "github.com/fitglue/ledger/functions/sync-activities"
	"github.com/fitglue/ledger/pkg/bootstrap"
	"github.com/fitglue/ledger/pkg/framework"
	"github.com/fitglue/ledger/pkg/infrastructure/sentry"
)

const cliSource = "/ledger/cli"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: ledger <sync|rollup|serve> [flags]")
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}
	command := args[0]

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "configuration: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	switch command {
	case "sync":
		fs.IntVar(&cfg.Pipeline.FetchWindowSize, "window", cfg.Pipeline.FetchWindowSize, "number of recent activities to fetch")
	case "rollup":
		fs.StringVar(&cfg.Pipeline.SummaryMode, "mode", cfg.Pipeline.SummaryMode, "summary mode: full or distance")
	case "serve":
		fs.IntVar(&cfg.Port, "port", cfg.Port, "listen port")
	default:
		usage(stderr)
		return 2
	}
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	var validate func(*bootstrap.Config) error
	switch command {
	case "sync":
		validate = syncactivities.Validate
	case "rollup":
		validate = rebuilddashboard.Validate
	}
	if validate != nil {
		if err := validate(cfg); err != nil {
			fmt.Fprintf(stderr, "configuration: %v\n", err)
			return 1
		}
	}

	logger := bootstrap.NewLoggerWithWriter(stderr, "ledger", bootstrap.ParseLevel(cfg.LogLevel))
	if err := sentry.Init(cfg.Sentry, logger); err != nil {
		logger.Warn("Sentry disabled", "error", err)
	}
	defer sentry.Flush(2 * time.Second)
	defer sentry.RecoverAndCapture(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.NewService(ctx, cfg)
	if err != nil {
		logger.Error("Service init failed", "error", err)
		return 1
	}
	defer svc.Close()
	svc.Logger = logger

	switch command {
	case "sync":
		return runOnce(ctx, svc, syncactivities.ServiceName, syncactivities.Handler, stdout)
	case "rollup":
		return runOnce(ctx, svc, rebuilddashboard.ServiceName, rebuilddashboard.Handler, stdout)
	default:
		if err := serve(ctx, svc, cfg.Port, logger); err != nil {
			logger.Error("Server failed", "error", err)
			return 1
		}
		return 0
	}
}

// runOnce runs handler and prints its outputs as JSON. Fatal errors exit
// non-zero; per-activity errors do not.
func runOnce(ctx context.Context, svc *bootstrap.Service, service string, handler framework.HandlerFunc, stdout io.Writer) int {
	outputs, err := framework.Run(ctx, service, framework.TriggerCLI, svc, framework.ManualEvent(cliSource), handler)
	if outputs != nil {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(outputs); encErr != nil {
			slog.Warn("Failed to print outputs", "error", encErr)
		}
	}
	if err != nil {
		return 1
	}
	return 0
}
