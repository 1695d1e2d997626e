// Package main is the entry point for the Pen Tracker daemon
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

	"go.uber.org/zap"

	"github.com/mrcode/pen-tracker/internal/app"
	"github.com/mrcode/pen-tracker/internal/logger"
	"github.com/mrcode/pen-tracker/internal/models"
	"github.com/mrcode/pen-tracker/internal/validation"
)

const serviceName = "pen-tracker"

type options struct {
	importPath string
	exportPath string
	add        string
	deleteID   string
	goal       string
	durability string
	window     string
	once       bool
	asJSON     bool
	compact    bool
	testAlert  bool
}

// edits reports whether any flag asks for a one-shot action
func (o options) edits() bool {
	return o.importPath != "" || o.exportPath != "" || o.add != "" || o.deleteID != "" || o.goal != "" || o.durability != ""
}

func main() {
	var opts options
	flag.StringVar(&opts.importPath, "import", "", "replace the log with a JSON snapshot file")
	flag.StringVar(&opts.exportPath, "export", "", "write the log to a file (.xlsx for a workbook, JSON otherwise)")
	flag.StringVar(&opts.add, "add", "", "add an entry: date=…,weight=…,dose=…,pen=…,strength=…,new,cost=…,note=…")
	flag.StringVar(&opts.deleteID, "delete", "", "delete the entry with this id")
	flag.StringVar(&opts.goal, "goal", "", "set the weight goal: target[,start] in kg")
	flag.StringVar(&opts.durability, "durability", "", "estimate how long a pen lasts: strength,dose[,cost]")
	flag.StringVar(&opts.window, "window", "", "chart window for this run: all, quarter or month")
	flag.BoolVar(&opts.once, "once", false, "compute a single report, print it and exit")
	flag.BoolVar(&opts.asJSON, "json", false, "print the report as JSON (with -once)")
	flag.BoolVar(&opts.compact, "compact", false, "print the short tooltip status (with -once)")
	flag.BoolVar(&opts.testAlert, "test-notification", false, "send a test notification and exit")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "pen-tracker:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	settings := models.DefaultSettings()
	if err := settings.Load(); err != nil {
		// Continue with defaults
		fmt.Fprintf(os.Stderr, "Error loading settings: %v\n", err)
	}
	settings.ApplyEnv()
	dir, err := models.GetConfigDir()
	if err != nil {
		return fmt.Errorf("config dir: %w", err)
	}
	settings.ResolvePaths(dir)

	log, err := logger.New(settings.LogLevel, settings.LogFormat, serviceName)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(settings, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Warn("close failed", zap.Error(err))
		}
	}()

	if opts.testAlert {
		return application.SendTestNotification()
	}

	if opts.window != "" {
		window, err := parseWindow(opts.window)
		if err != nil {
			return err
		}
		s := application.GetSettings()
		s.ChartWindow = window
		application.UpdateSettings(s)
	}

	if err := application.Load(ctx); err != nil {
		return err
	}

	if err := runEdits(ctx, application, opts); err != nil {
		return err
	}
	if opts.edits() && !opts.once {
		return nil
	}

	if opts.once {
		report, err := application.RunOnce(ctx)
		if err != nil {
			return err
		}
		if opts.asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		fmt.Println(application.Status(opts.compact))
		return nil
	}

	log.Info("starting", zap.String("storage", settings.StorageDriver))
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("stopped")
	return nil
}

// runEdits applies the one-shot flags in a fixed order: import, add,
// delete, goal, durability, then export
func runEdits(ctx context.Context, application *app.App, opts options) error {
	if opts.importPath != "" {
		rejected, err := application.Import(ctx, opts.importPath)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %s (%d records skipped)\n", opts.importPath, len(rejected))
	}

	if opts.add != "" {
		form, err := validation.ParseFields(opts.add)
		if err != nil {
			return err
		}
		o, warning, err := application.AddEntry(ctx, form)
		if err != nil {
			return err
		}
		fmt.Printf("Added %s\n", o.ID)
		if warning != nil {
			fmt.Printf("Warning: %v\n", warning)
		}
	}

	if opts.deleteID != "" {
		if err := application.DeleteEntry(ctx, opts.deleteID); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", opts.deleteID)
	}

	if opts.goal != "" {
		goal, err := parseGoal(opts.goal)
		if err != nil {
			return err
		}
		if err := application.SetGoal(ctx, goal); err != nil {
			return err
		}
		fmt.Printf("Goal set to %.1f kg\n", goal.TargetWeight)
	}

	if opts.durability != "" {
		strength, dose, cost, err := parseDurability(opts.durability)
		if err != nil {
			return err
		}
		est, err := application.Durability(strength, dose, cost)
		if err != nil {
			return err
		}
		fmt.Printf("A %g mg pen at %g mg lasts %d applications (%d weeks), %s per application\n",
			est.Strength, est.Dose, est.TotalApplications, est.WeeksOfUse, est.CostPerApplication.StringFixed(2))
	}

	if opts.exportPath != "" {
		if err := application.Export(ctx, opts.exportPath); err != nil {
			return err
		}
		fmt.Printf("Exported to %s\n", opts.exportPath)
	}
	return nil
}
