package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/borzov/photo-validation-service/internal/checks"
	"github.com/borzov/photo-validation-service/internal/config"
	"github.com/borzov/photo-validation-service/internal/engine"
	"github.com/borzov/photo-validation-service/internal/history"
	"github.com/borzov/photo-validation-service/internal/logging"
	"github.com/borzov/photo-validation-service/internal/metrics"
	"github.com/borzov/photo-validation-service/internal/policy"
	"github.com/borzov/photo-validation-service/internal/scheduler"
	"github.com/borzov/photo-validation-service/pkg/schema"
)

const usage = `photovalid - photo validation engine

Usage:
  photovalid validate [-config FILE] [-db FILE] IMAGE...
  photovalid checks
  photovalid config init [-config FILE]
  photovalid config show [-config FILE]
  photovalid config validate [-config FILE]
  photovalid config reset [-config FILE]
  photovalid config export [-config FILE] [-out FILE]
  photovalid config restore [-config FILE]
  photovalid history [-db FILE] [-limit N]
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	logger := slog.New(logging.NewCorrelationHandler(
		slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
	slog.SetDefault(logger)

	if len(args) == 0 {
		fmt.Print(usage)
		return nil
	}

	switch args[0] {
	case "validate":
		return cmdValidate(args[1:], logger)
	case "checks":
		return cmdChecks()
	case "config":
		return cmdConfig(args[1:])
	case "history":
		return cmdHistory(args[1:])
	default:
		fmt.Print(usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func discover() (*checks.Registry, error) {
	return checks.Discover(checks.Builtins()...)
}

// loadHolder builds the configuration holder: the file when present,
// registry-derived defaults otherwise.
func loadHolder(path string, reg *checks.Registry) (*config.Holder, error) {
	store := config.NewFileStore(path)
	cfg, err := store.Load()
	if err != nil {
		var serr *schema.ServiceError
		if errors.As(err, &serr) && serr.Code == schema.ErrCodeNotFound {
			cfg = config.Defaults(reg)
		} else {
			return nil, err
		}
	}
	return config.NewHolder(cfg, reg)
}

func cmdValidate(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	cfgPath := fs.String("config", "config.json", "configuration file")
	dbPath := fs.String("db", "", "history database path (enables persistence)")
	retention := fs.Int("retention-days", 30, "history retention window")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("validate: at least one image path required")
	}

	reg, err := discover()
	if err != nil {
		return err
	}
	for _, issue := range reg.Issues() {
		logger.Warn("check excluded during discovery", "check", issue.Check)
	}

	holder, err := loadHolder(*cfgPath, reg)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(prometheus.NewRegistry())

	opts := engine.RunnerOptions{
		Registry: reg,
		Holder:   holder,
		Detector: checks.NewHeuristicDetector(),
		Policies: policy.NewEvaluator(),
		Observer: collector,
		Logger:   logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sched *scheduler.Scheduler
	if *dbPath != "" {
		store, err := history.NewLibSQLStore("file:" + *dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		recorder, err := history.NewRecorder(store, logger)
		if err != nil {
			return err
		}
		defer recorder.Close()
		opts.Sink = recorder

		sched = scheduler.NewScheduler(logger)
		err = sched.Register(scheduler.Task{
			Name: "history-prune",
			Cron: "0 3 * * *",
			Run: func(ctx context.Context) error {
				cutoff := time.Now().UTC().AddDate(0, 0, -*retention)
				n, err := store.Prune(ctx, cutoff)
				if err != nil {
					return err
				}
				if n > 0 {
					logger.Info("pruned validation history", "removed", n)
				}
				return store.Vacuum(ctx)
			},
		})
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	runner := engine.NewRunner(opts)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	for _, path := range fs.Args() {
		verdict, err := validateFile(ctx, runner, path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := enc.Encode(verdict); err != nil {
			return err
		}
	}
	return nil
}

func validateFile(ctx context.Context, runner *engine.Runner, path string) (*schema.Verdict, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return runner.Run(ctx, checks.NewImage(img, int(info.Size())))
}

func cmdChecks() error {
	reg, err := discover()
	if err != nil {
		return err
	}

	byCategory := reg.ByCategory()
	for _, cat := range []schema.Category{
		schema.CategoryFace, schema.CategoryQuality,
		schema.CategoryBackground, schema.CategoryContent,
	} {
		descs := byCategory[cat]
		if len(descs) == 0 {
			continue
		}
		fmt.Printf("%s:\n", cat)
		for _, d := range descs {
			enabled := " "
			if d.EnabledByDefault {
				enabled = "*"
			}
			fmt.Printf("  [%s] %-22s v%-8s %s\n", enabled, d.Name, d.Version, d.Description)
		}
	}
	return nil
}

func cmdConfig(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("config: subcommand required (init, show, validate, reset, export, restore)")
	}
	sub := args[0]

	fs := flag.NewFlagSet("config "+sub, flag.ContinueOnError)
	cfgPath := fs.String("config", "config.json", "configuration file")
	outPath := fs.String("out", "", "export destination (default stdout)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	reg, err := discover()
	if err != nil {
		return err
	}
	store := config.NewFileStore(*cfgPath)

	switch sub {
	case "init":
		cfg := config.Defaults(reg)
		if err := store.Save(cfg); err != nil {
			return err
		}
		fmt.Printf("wrote default configuration with %d checks to %s\n", reg.Count(), *cfgPath)
		return nil

	case "reset":
		// Save backs up the current file before overwriting with defaults.
		if err := store.Save(config.Defaults(reg)); err != nil {
			return err
		}
		fmt.Printf("reset %s to registry defaults\n", *cfgPath)
		return nil

	case "export":
		cfg, err := store.Load()
		if err != nil {
			return err
		}
		out, err := config.Export(cfg)
		if err != nil {
			return err
		}
		if *outPath == "" {
			fmt.Println(string(out))
			return nil
		}
		if err := os.WriteFile(*outPath, out, 0o644); err != nil {
			return err
		}
		fmt.Printf("exported configuration to %s\n", *outPath)
		return nil

	case "restore":
		cfg, err := store.Restore()
		if err != nil {
			return err
		}
		fmt.Printf("restored %s (version %s) from the most recent backup\n", *cfgPath, cfg.Version)
		return nil

	case "show":
		cfg, err := store.Load()
		if err != nil {
			return err
		}
		out, err := config.Export(cfg)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil

	case "validate":
		var cfg *schema.Configuration
		if filepath.Ext(*cfgPath) == ".yaml" || filepath.Ext(*cfgPath) == ".yml" {
			data, err := os.ReadFile(*cfgPath)
			if err != nil {
				return err
			}
			cfg, err = config.LoadYAML(data)
			if err != nil {
				return err
			}
		} else {
			var err error
			cfg, err = store.Load()
			if err != nil {
				return err
			}
		}
		result, err := config.Validate(cfg, reg)
		if err != nil {
			return err
		}
		for _, w := range result.Warnings {
			fmt.Printf("warning: %s: %s\n", w.Path, w.Message)
		}
		if !result.Valid() {
			for _, e := range result.Errors {
				fmt.Printf("error: %s: %s\n", e.Path, e.Message)
			}
			return fmt.Errorf("configuration is invalid (%d errors)", len(result.Errors))
		}
		fmt.Println("configuration is valid")
		return nil

	default:
		return fmt.Errorf("config: unknown subcommand %q", sub)
	}
}

func cmdHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	dbPath := fs.String("db", "photovalid.db", "history database path")
	limit := fs.Int("limit", 20, "max records")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := history.NewLibSQLStore("file:" + *dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(context.Background(), history.Filter{Limit: *limit})
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Printf("%s  %-14s %2d/%2d  %8s  %s\n",
			rec.CompletedAt.Format(time.RFC3339), rec.Status,
			rec.ChecksPassed, rec.TotalChecks,
			rec.ProcessingTime.Round(time.Millisecond), rec.RequestID)
	}
	return nil
}
