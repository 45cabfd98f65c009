// Command warsim simulates an EtherNet/IP controller (ControlLogix or
// Micro800) on TCP 44818: it registers sessions, negotiates Forward Open
// connections, and answers Read Tag / Read Tag Fragmented requests
// against a tag table declared on the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"warsim/logging"
	"warsim/simconfig"
	"warsim/tcpsrv"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	cfg, store, err := simconfig.Parse("warsim", os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "warsim: %v\n", err)
		os.Exit(1)
	}

	if cfg.Version {
		fmt.Printf("warsim %s\n", Version)
		os.Exit(0)
	}

	var debugLogger *logging.DebugLogger
	if cfg.DebugEnabled {
		dl, err := logging.NewDebugLogger("debug.log")
		if err != nil {
			fmt.Fprintf(os.Stderr, "warsim: opening debug log: %v\n", err)
			os.Exit(1)
		}
		dl.SetFilter(cfg.DebugFilter)
		defer dl.Close()
		logging.SetGlobalDebugLogger(dl)
		debugLogger = dl
	}

	fileLogger, err := logging.NewFileLogger("warsim.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "warsim: opening log file: %v\n", err)
		os.Exit(1)
	}
	defer fileLogger.Close()

	fileLogger.Log("starting warsim %s as %s, listening on %s (%d tags declared)",
		Version, cfg.Kind, cfg.Listen, store.Len())

	srv := &tcpsrv.Server{
		Listen: cfg.Listen,
		Kind:   cfg.Kind,
		Path:   cfg.Path,
		Store:  store,
		Logger: fileLogger,
		Debug:  debugLogger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fileLogger.Log("shutdown signal received")
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warsim: %v\n", err)
		fileLogger.Log("fatal: %v", err)
		os.Exit(1)
	}
}
