/*
Package main implements the imecored daemon: the host-facing process that
wraps the Orchestrator behind the msgpack transport for editor/IME-shell
integration.

# Server Mode

The daemon opens Storage, loads every enabled dictionary, and serves
KeyEvent requests over stdin/stdout using pkg/transport.

# Data Files

The data directory holds RIME-compatible `.dict.yaml` files referenced by
`dictionary_meta.source_path`; the SQLite database defaults to
`data/core.db` unless `-db` overrides it.

# Config

A `config.toml` file with input/frequency/learning/cloud settings is
loaded at start, and created with defaults if it does not exist. The
settings the core uses at run time are read from the config table of the
SQLite database; the values in `config.toml` are not applied to it.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/bastiangx/imecore/pkg/config"
	"github.com/bastiangx/imecore/pkg/orchestrator"
	"github.com/bastiangx/imecore/pkg/transport"
)

func nowMs() int64 { return time.Now().UnixMilli() }

const (
	Version = "0.1.0-beta"
	AppName = "imecored"
	gh      = "https://github.com/bastiangx/imecore"
)

// sigHandler runs shutdown and then exits on interrupt/termination, so
// storage is closed even though os.Exit skips main's deferred Shutdown.
func sigHandler(shutdown func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		shutdown()
		os.Exit(0)
	}()
}

func main() {
	showVersion := flag.Bool("version", false, "Show current version")
	configFile := flag.String("config", "", "Path to custom config.toml file")
	dataDir := flag.String("data", "data/", "Directory containing dictionary files")
	dbPath := flag.String("db", "data/core.db", "Path to the SQLite database")
	debugMode := flag.Bool("v", false, "Toggle verbose mode")
	flag.Parse()

	if *debugMode {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	configPath := *configFile
	if configPath == "" {
		configPath = "config.toml"
	}
	if _, err := config.InitConfig(configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	orch := orchestrator.New(nil, nowMs)
	if err := orch.Init(orchestrator.Paths{DBPath: *dbPath, DataDir: *dataDir}); err != nil {
		log.Fatalf("failed to init orchestrator: %v", err)
	}
	sigHandler(func() { orch.Shutdown() })
	defer orch.Shutdown()

	showStartupInfo(*dataDir)

	srv := transport.NewServer(orch)
	if err := srv.Start(); err != nil {
		log.Fatalf("transport server error: %v", err)
	}
}

func printVersion() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})
	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	logger.SetStyles(styles)

	logger.Print("")
	logger.Print("[imecored] pinyin IME core daemon")
	logger.Print("", "version", Version)
	logger.Print("")
	logger.Print("Find out more at", "gh", gh)
}

func showStartupInfo(dataDir string) {
	pid := os.Getpid()
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	println("===========")
	println(" imecored  ")
	println("===========")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", pid)
	log.Infof("data dir: ( %s )", dataDir)
	log.Info("status: ready")
	println("===========")
	println("Press Ctrl+C to exit")

	log.SetLevel(currentLevel)
}
