// dittovault is the DittoVault server and command-line client.
//
// Usage:
//
//	dittovault init  [--config PATH] [--force]
//	dittovault serve [--config PATH]
//	dittovault gc    [--config PATH] [--dry-run]
//	dittovault push  --server URL --repo ID --author ID [--message MSG] LOCAL REMOTE
//	dittovault pull  --server URL --repo ID REMOTE [LOCAL]
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

var version = "dev"

type command struct {
	name    string
	summary string
	run     func(args []string) error
}

var commands = []command{
	{"init", "Write a default configuration file", runInit},
	{"serve", "Run the vault server", runServe},
	{"gc", "Run one collection pass against the configured stores", runGC},
	{"push", "Upload a local file as a new version", runPush},
	{"pull", "Download the current version of a file", runPull},
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return errors.New("missing command")
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
		return nil
	case "--version", "version":
		fmt.Printf("dittovault %s\n", version)
		return nil
	}

	for _, cmd := range commands {
		if cmd.name == args[0] {
			err := cmd.run(args[1:])
			if errors.Is(err, pflag.ErrHelp) {
				return nil
			}
			return err
		}
	}

	printUsage()
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "DittoVault - versioned, deduplicating file vault\n\nUsage: dittovault <command> [flags]\n\nCommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(os.Stderr, "  %-6s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintf(os.Stderr, "\nRun 'dittovault <command> --help' for command flags.\n")
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name, usage string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dittovault %s %s\n\nFlags:\n%s", name, usage, fs.FlagUsages())
	}
	return fs
}
