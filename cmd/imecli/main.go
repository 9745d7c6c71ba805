/*
Package main implements imecli: an interactive shell for exercising the
IME core directly, without any host editor or the msgpack transport.
Useful for debugging candidate assembly and the session FSM while
developing dictionaries and scoring.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/imecore/internal/cli"
	"github.com/bastiangx/imecore/pkg/config"
	"github.com/bastiangx/imecore/pkg/orchestrator"
	"github.com/bastiangx/imecore/pkg/session"
)

const focusID = "cli"

func nowMs() int64 { return time.Now().UnixMilli() }

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

	orch.FocusIn(focusID)
	defer orch.FocusOut(focusID)

	handler := cli.NewInputHandler(func(ev session.KeyEvent) session.Outcome {
		return orch.ProcessKey(focusID, ev)
	})
	if err := handler.Start(); err != nil {
		log.Fatalf("cli error: %v", err)
	}
}
