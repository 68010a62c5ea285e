// Command node runs a single NexLattice mesh node: it loads ./config.json
// (or the path given as the first argument), brings up the crypto, peer
// table, router, and transport layers, and runs until terminated. Exit code
// 0 on clean shutdown, non-zero on config or link failure, mirroring the
// ExitSetupSuccess/ExitSetupFailed pattern from the teacher's main command
// and its signal.Notify-based shutdown wait.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nexlattice/node/config"
	"github.com/nexlattice/node/logging"
	"github.com/nexlattice/node/node"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := "./config.json"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	logLevel := logLevelFromEnv()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitFailure
	}

	log := logging.New(logLevel, fmt.Sprintf("(%s) ", cfg.NodeName))
	log.Infof("loaded configuration from %s", configPath)

	n, err := node.New(cfg, log)
	if err != nil {
		log.Errorf("failed to build node: %v", err)
		return exitFailure
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- n.Run(ctx) }()

	term := make(chan os.Signal, 1)
	signal.Notify(term, syscall.SIGTERM, os.Interrupt)

	select {
	case <-term:
		log.Info("received shutdown signal")
		cancel()
		<-runErr
	case err := <-runErr:
		if err != nil {
			log.Errorf("node exited: %v", err)
			return exitFailure
		}
	}

	log.Info("shutdown complete")
	return exitSuccess
}

func logLevelFromEnv() int {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return logging.LevelDebug
	case "error":
		return logging.LevelError
	case "silent":
		return logging.LevelSilent
	default:
		return logging.LevelInfo
	}
}
