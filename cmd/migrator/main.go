// Package main provides the database migration CLI for the biomarker
// worker. Migrations are embedded at build time, so the binary is
// self-contained: point DATABASE_URL at a Postgres instance and run
// up/down/status/version/drop.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/biomarker-io/worker/migrations"
)

// Build-time information variables (set via -ldflags during compilation).
//
//nolint:gochecknoglobals // Required for build-time version injection via -ldflags -X
var (
	version   = "1.0.0-dev"
	gitCommit = "unknown"
	buildTime = "unknown"
	name      = "migrator"
)

var (
	// ErrUnknownCommand is returned for an unrecognized subcommand.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrDropRequiresForce is returned when drop is used without --force.
	ErrDropRequiresForce = errors.New(
		"drop command requires --force flag for safety (this will destroy all data)",
	)
)

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help information")
		showVersion = flag.Bool("version", false, "Show version information")
		force       = flag.Bool("force", false, "Force dangerous operations without confirmation")
	)
	flag.Parse()

	if *showVersion {
		printVersionInfo()
		os.Exit(0)
	}

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	config, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	runner, err := NewMigrationRunner(config)
	if err != nil {
		log.Fatalf("Failed to create migration runner: %v", err)
	}

	defer func() {
		_ = runner.Close()
	}()

	err = executeCommand(args[0], runner, *force)
	if err != nil {
		log.Printf("Migration failed: %v\n", err)
	}
}

// executeCommand dispatches a subcommand to the runner.
func executeCommand(command string, runner MigrationRunner, force bool) error {
	switch command {
	case "up":
		return runner.Up()
	case "down":
		return runner.Down()
	case "status":
		return runner.Status()
	case "version":
		return runner.Version()
	case "drop":
		if !force {
			return ErrDropRequiresForce
		}

		return runner.Drop()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

func printVersionInfo() {
	log.Printf("%s v%s", name, version)
	log.Printf("Git Commit: %s", gitCommit)
	log.Printf("Build Time: %s", buildTime)
	log.Printf("Max Schema Version: v%03d", migrations.MaxVersion())
	log.Printf("Database migration tool for the biomarker worker")
}

func printUsage() {
	log.Printf(`%s v%s - database migration tool for the biomarker worker

USAGE:
    %s [OPTIONS] COMMAND

COMMANDS:
    up      Apply all pending migrations
    down    Rollback the last migration
    status  Show migration status
    version Show current migration version
    drop    Drop all tables (DESTRUCTIVE - requires --force flag)

OPTIONS:
    --help     Show this help message
    --version  Show version information
    --force    Force dangerous operations without confirmation

ENVIRONMENT VARIABLES:
    DATABASE_URL    PostgreSQL connection string (REQUIRED)
    MIGRATION_TABLE Name of the migration tracking table
                    (default: schema_migrations)

EXAMPLES:
    %s up             # Apply all pending migrations
    %s status         # Show current migration status
    %s drop --force   # Drop all tables (DESTRUCTIVE)
`, name, version, name, name, name, name)
}
