// Package main is the entry point for the key-mapper injection daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonasBoss/key-mapper/internal/daemon"
	"github.com/jonasBoss/key-mapper/internal/device"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts, listDevices := parseFlags()

	if listDevices {
		return printDevices()
	}

	d, err := daemon.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	// Handle signals for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := d.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags() (daemon.Options, bool) {
	var opts daemon.Options
	var showVersion bool
	var listDevices bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&listDevices, "list", false, "List available input devices and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "keymapperd - input event mapping daemon\n\n")
		fmt.Fprintf(os.Stderr, "Usage: keymapperd [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  keymapperd                      Run with the default config\n")
		fmt.Fprintf(os.Stderr, "  keymapperd -c daemon.toml       Run with a config file\n")
		fmt.Fprintf(os.Stderr, "  keymapperd -list                Show grabable input devices\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("keymapperd %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		os.Exit(0)
	}

	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
		// Valid
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	return opts, listDevices
}

// printDevices enumerates the evdev nodes without grabbing them.
func printDevices() int {
	paths, err := device.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	for _, path := range paths {
		dev, err := device.Open(path)
		if err != nil {
			continue
		}
		fmt.Printf("%s\t%s\n", path, dev.Name())
		dev.Close()
	}
	return 0
}
