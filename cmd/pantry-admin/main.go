// Package main is the entry point for the pantry admin CLI.
// This tool provides administrative commands for managing users and tokens.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, args := os.Args[1], os.Args[2:]

	var err error
	switch command {
	case "version":
		fmt.Printf("pantry admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "createsuperuser":
		err = createSuperuser(ctx, args)

	case "user":
		err = userCommand(ctx, args)

	case "token":
		err = tokenCommand(ctx, args)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "pantry-admin: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`pantry admin CLI

Usage:
  pantry-admin <command> [arguments]

Commands:
  createsuperuser   Create a staff superuser
  user              Manage users (list, activate, deactivate)
  token             Manage API tokens (issue)
  version           Print version information
  help              Show this help message

Examples:
  pantry-admin createsuperuser --email admin@example.com --password s3cret-pass
  pantry-admin user list --limit 50
  pantry-admin user deactivate --email someone@example.com
  pantry-admin token issue --email admin@example.com

Every command except version and help accepts -c/--config.
Use "pantry-admin <command> --help" for more information about a command.`)
}

// newFlagSet returns a flag set carrying the shared --config flag.
func newFlagSet(name string) (*pflag.FlagSet, *string) {
	flags := pflag.NewFlagSet("pantry-admin "+name, pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to the configuration file")
	return flags, configPath
}
