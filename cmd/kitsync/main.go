// Command kitsync publishes emails drafted in a Notion database as Kit
// broadcasts, writes engagement stats back to Notion and posts carousel
// scripts for sent emails.
//
//	kitsync [-config path] [-dry-run] send|stats|carousel|preview <page-id>|serve|schedule
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/kitsync/internal/config"
	"github.com/ignite/kitsync/internal/domain"
	"github.com/ignite/kitsync/internal/pkg/distlock"
	"github.com/ignite/kitsync/internal/pkg/logger"
	"github.com/ignite/kitsync/internal/worker"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: kitsync [-config path] [-dry-run] send|stats|carousel|preview <page-id>|serve|schedule\n")
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	dryRun := flag.Bool("dry-run", false, "render and resolve without creating broadcasts or writing to Notion")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	command := args[0]

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *dryRun {
		cfg.Send.DryRun = true
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())

	if err := validate(cfg, command, args); err != nil {
		logger.Error("invalid configuration", "command", command, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		logger.Error("failed to start", "command", command, "error", err)
		os.Exit(1)
	}
	defer app.Close()

	switch command {
	case "send", "stats", "carousel":
		runOnce(ctx, app, domain.JobName(command))
	case "preview":
		preview(ctx, app, args[1])
	case "serve":
		if err := app.serve(ctx); err != nil {
			logger.Error("ops server stopped", "error", err)
		}
	case "schedule":
		if err := app.schedule(ctx); err != nil {
			logger.Error("scheduler failed to start", "error", err)
			os.Exit(1)
		}
	}
}

// validate checks the settings every job reached by command needs.
func validate(cfg *config.Config, command string, args []string) error {
	switch command {
	case "send", "stats", "carousel", "serve":
		return cfg.Validate(command)
	case "preview":
		if len(args) < 2 {
			return errors.New("preview needs a page id")
		}
		return cfg.Validate(command)
	case "schedule":
		specs := cfg.Schedule.Specs()
		if err := worker.CheckSchedule(cfg.Schedule.Timezone, specs); err != nil {
			return err
		}
		scheduled := 0
		for job, spec := range specs {
			if spec == "" {
				continue
			}
			scheduled++
			if err := cfg.Validate(job); err != nil {
				return err
			}
		}
		if scheduled == 0 {
			return errors.New("no jobs scheduled")
		}
		return nil
	}
	return fmt.Errorf("unknown command %q", command)
}

// runOnce runs one job. Document failures are reported, not fatal.
func runOnce(ctx context.Context, app *app, job domain.JobName) {
	report, err := app.runner.Run(ctx, job)
	switch {
	case errors.Is(err, distlock.ErrLocked):
		logger.Warn("job already running elsewhere, nothing to do", "job", job)
	case err != nil:
		logger.Error("job run aborted", "job", job, "error", err)
	default:
		logger.Info("job finished",
			"job", job,
			"run_id", report.RunID,
			"succeeded", report.Summary.Succeeded,
			"skipped", report.Summary.Skipped,
			"failed", report.Summary.Failed,
			"partial", report.Summary.Partial,
		)
	}
}

func preview(ctx context.Context, app *app, pageID string) {
	p, err := app.send.Preview(ctx, pageID)
	if err != nil {
		logger.Error("preview failed", "page_id", pageID, "error", err)
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		logger.Error("writing preview", "error", err)
	}
}
