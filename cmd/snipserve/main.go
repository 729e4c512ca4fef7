// Copyright 2026 The SnipServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the snippet completion server and CLI [DBG] application.

SnipServe provides fast trigger-based code snippet completion using a
character-level trie with multi-criteria ranking. It can operate as a JSON
IPC server for integration with editors, or as a CLI application for testing
and debugging.

The server keeps the full snippet corpus indexed in memory and backs it with
a SQLite database for persistence, full-text search, and per-user usage
analytics. Snippets are ranked deterministically: exact trigger matches
first, then trigger-prefix matches, shorter triggers, name substring hits,
and alphabetical order as the final tie break.

# Usage

Start the server with default settings:

	snipserve

Use a custom database file and enable debug mode:

	snipserve -db /path/to/snippets.db -d

Run in CLI mode for interactive testing:

	snipserve -c -limit 10 -lang typescript

A fresh database is created and seeded with a starter snippet set on first
run, so the server is usable out of the box.

# Configuration

Runtime configuration is managed through a TOML file that supports server
parameters, search tuning, and client cache settings:

	[server]
	max_limit = 64
	min_prefix = 1
	max_prefix = 60

	[search]
	fuzzy_max_distance = 2
	debounce_ms = 300
	timeout_ms = 1000

The config file is automatically created with defaults if it doesn't exist.

# IPC Protocol

The server communicates via line-delimited JSON over stdin/stdout. Search
requests are processed synchronously with millisecond timing information
included in responses.

Send a search request:

	{"action": "search", "query": "yap", "language": "typescript"}

Receive ranked snippets:

	{"success": true, "results": [...], "count": 2, "search_time_ms": 1, "method": "trie"}

Usage events, corpus fetches, snippet mutations, and analytics queries use
the same envelope; see the server package docs for the full action list.

# CLI Mode

CLI mode provides an interactive interface for testing and debugging search
behavior. It reads queries from stdin and displays matching snippets with
usage counts, falling back to fuzzy matching when a query has no exact hits.
This mode is primarily intended for development: new ranking or index
changes get exercised here before server deployments.

# Command Line Flags

The following flags control application behavior:

	-db string
	    Path to the SQLite snippet database (default resolved per platform)
	-d  Enable debug mode with detailed logging
	-c  Run in CLI mode instead of server mode
	-lang string
	    Language scope for CLI queries (e.g. "typescript")
	-limit int
	    Number of results to return (default from config)
	-prmin int
	    Minimum query length for suggestions
	-prmax int
	    Maximum query length for suggestions
	-no-filter
	    Disable input filtering for debugging

The application automatically resolves database and config paths relative to
the platform config directory, supporting both development and production
deployments.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/sneap/snipserve/internal/cli"
	"github.com/sneap/snipserve/internal/logger"
	"github.com/sneap/snipserve/internal/utils"
	"github.com/sneap/snipserve/pkg/config"
	"github.com/sneap/snipserve/pkg/server"
	"github.com/sneap/snipserve/pkg/store"
)

const (
	Version = "0.3.0"
	AppName = "snipserve"
	gh      = "https://github.com/sneap/snipserve"
)

// sigHandler is a simple handler for OS signals to exit normally.
func sigHandler(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		cancel()
		os.Exit(0)
	}()
}

// main calls other packages to initialize the server or CLI inputs.
// main() does not implement logic for them and only manages the flow.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigHandler(cancel)

	defaultConfig := config.DefaultConfig()

	// custom Flags
	showVersion := flag.Bool("version", false, "Show current version")
	dbPath := flag.String("db", "", "Path to the SQLite snippet database")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for testing and debugging")
	language := flag.String("lang", "", "Language scope for CLI queries")
	limit := flag.Int("limit", 10, "Number of results to return")
	minQuery := flag.Int("prmin", defaultConfig.Server.MinPrefix, "Minimum query length for suggestions (1 < n <= prmax)")
	maxQuery := flag.Int("prmax", defaultConfig.Server.MaxPrefix, "Maximum query length for suggestions")
	noFilter := flag.Bool("no-filter", false, "Disable input filtering (DBG only) - accepts raw queries (numbers, symbols, etc)")

	flag.Parse()

	if *showVersion {
		banner := logger.NewPlain()

		styles := log.DefaultStyles()

		styles.Values["version"] = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
		styles.Values["version"] = lipgloss.NewStyle().
			Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})

		styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})

		banner.SetStyles(styles)

		banner.Print("")
		banner.Print("[ SnipServe ] Serves really Fast snippet completions!")
		banner.Print("", "version", Version)
		banner.Print("")
		banner.Print("use -h or --help to see available options")
		banner.Print("Github Repo", "gh", gh)

		os.Exit(0)
	}

	pathResolver, err := utils.NewPathResolver()
	if err != nil {
		log.Fatalf("Failed to initialize path resolver: %v", err)
	}

	if *debugMode {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	resolvedDBPath, err := pathResolver.GetDatabasePath(*dbPath)
	if err != nil {
		log.Fatalf("Failed to resolve database path: (%v)", err)
	}
	log.Debugf("Using database at: %s", resolvedDBPath)

	configPath, err := pathResolver.GetConfigPath("snipserve-config.toml")
	if err != nil {
		log.Fatalf("Failed to determine config path: (%v)", err)
	}
	log.Debugf("Using config file: (%s)", configPath)

	appConfig, err := config.InitConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	st, err := store.Open(resolvedDBPath)
	if err != nil {
		log.Fatalf("Failed to open snippet store: %v", err)
	}
	defer st.Close()

	engine := server.NewEngine(st, appConfig)
	if err := engine.Init(ctx); err != nil {
		log.Fatalf("Failed to init engine: %v", err)
	}
	log.Debug("Engine init done")

	// CLI would be mainly used for testing and dbg purposes.
	// Any new features or changes should be tested in CLI mode first.
	if *cliMode {
		log.SetReportTimestamp(false)
		log.Debug("Input info:",
			"minQuery", *minQuery,
			"maxQuery", *maxQuery,
			"limit", *limit,
			"language", *language,
			"noFilter", *noFilter)

		inputHandler := cli.NewInputHandler(engine, *language, *minQuery, *maxQuery, *limit, *noFilter)
		if err := inputHandler.Start(); err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		return
	}

	log.Debug("spawning IPC")
	srv := server.NewServer(engine)

	showStartupInfo(resolvedDBPath)

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// showStartupInfo displays some basic info about the init process.
func showStartupInfo(dbPath string) {
	pid := os.Getpid()
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	println("===========")
	println(" SnipServe ")
	println("===========")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", pid)
	log.Info("init: OK")
	log.Infof("database: ( %s )", dbPath)
	log.Info("status: ready")
	println("===========")
	println("Press Ctrl+C to exit")

	log.SetLevel(currentLevel)
}
