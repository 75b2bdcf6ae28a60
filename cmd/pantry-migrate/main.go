// Package main is the entry point for the pantry database migration tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/prn-tf/pantry/internal/config"
	"github.com/prn-tf/pantry/internal/logging"
	"github.com/prn-tf/pantry/internal/repository/postgres"
	"github.com/prn-tf/pantry/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	flags := pflag.NewFlagSet("pantry-migrate", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to the configuration file")
	target := flags.Int64("to", -1, "target version for up and down")
	flags.Usage = func() { printUsage(flags) }
	_ = flags.Parse(os.Args[1:])

	if flags.NArg() < 1 {
		printUsage(flags)
		os.Exit(1)
	}

	command := flags.Arg(0)
	if command == "version" {
		fmt.Printf("pantry-migrate %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
		return
	}

	if err := run(command, *configPath, *target); err != nil {
		fmt.Fprintf(os.Stderr, "pantry-migrate: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(flags *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `pantry-migrate - Database migration tool for pantry

Usage:
  pantry-migrate [flags] <command>

Commands:
  up        Apply pending migrations (up to --to when given)
  down      Roll back the latest migration (down to --to when given)
  status    Show the state of every migration
  current   Print the current schema version
  version   Show version information

Flags:
%s`, flags.FlagUsages())
}

func run(command, configPath string, target int64) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, closeDB, err := openMigrator(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	switch command {
	case "up":
		return migrateUp(ctx, provider, target, logger)
	case "down":
		return migrateDown(ctx, provider, target, logger)
	case "status":
		return printStatus(ctx, provider, os.Stdout)
	case "current":
		version, err := provider.GetDBVersion(ctx)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		fmt.Println(version)
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// openMigrator returns a goose provider for the configured driver and a
// function releasing every handle it opened.
func openMigrator(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*goose.Provider, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := postgres.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		provider, sqlDB, err := db.NewMigrator()
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to create migration provider: %w", err)
		}
		return provider, func() {
			_ = sqlDB.Close()
			_ = db.Close()
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.NewDB(ctx, sqlite.ConfigFromDatabase(cfg), logger)
		if err != nil {
			return nil, nil, err
		}
		provider, err := db.NewMigrator()
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to create migration provider: %w", err)
		}
		return provider, func() { _ = db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func migrateUp(ctx context.Context, provider *goose.Provider, target int64, logger zerolog.Logger) error {
	var (
		results []*goose.MigrationResult
		err     error
	)
	if target >= 0 {
		results, err = provider.UpTo(ctx, target)
	} else {
		results, err = provider.Up(ctx)
	}
	logResults(results, "applied", logger)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if len(results) == 0 {
		logger.Info().Msg("database is up to date")
	}
	return nil
}

func migrateDown(ctx context.Context, provider *goose.Provider, target int64, logger zerolog.Logger) error {
	if target >= 0 {
		results, err := provider.DownTo(ctx, target)
		logResults(results, "rolled back", logger)
		if err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		return nil
	}

	result, err := provider.Down(ctx)
	if err != nil {
		if errors.Is(err, goose.ErrNoNextVersion) {
			logger.Info().Msg("no migrations to roll back")
			return nil
		}
		return fmt.Errorf("rollback failed: %w", err)
	}
	logResults([]*goose.MigrationResult{result}, "rolled back", logger)
	return nil
}

func logResults(results []*goose.MigrationResult, action string, logger zerolog.Logger) {
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		logger.Info().
			Int64("version", r.Source.Version).
			Str("path", r.Source.Path).
			Dur("duration", r.Duration).
			Msg("migration " + action)
	}
}

func printStatus(ctx context.Context, provider *goose.Provider, out io.Writer) error {
	statuses, err := provider.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tSOURCE")
	for _, s := range statuses {
		applied := "-"
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Source.Version, s.State, applied, s.Source.Path)
	}
	return tw.Flush()
}
