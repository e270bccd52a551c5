package main

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/forgelabs/forge/cmd"
	"github.com/forgelabs/forge/pkg/builder"
	"github.com/forgelabs/forge/pkg/config"
	"github.com/forgelabs/forge/pkg/daemon"
	"github.com/forgelabs/forge/pkg/forged"
	forgepkg "github.com/forgelabs/forge/pkg/forge"
	"github.com/forgelabs/forge/pkg/logging"
)

func daemonRunMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 0 {
		return errors.New("unexpected arguments provided")
	}

	// cmd/log.go discards the standard logger by default, since ordinary
	// client commands print through cmd.Error/cmd.Fatal instead. The daemon
	// itself is the one process that needs its log output to land
	// somewhere durable, so point it at the daemon log file.
	logFile, err := daemon.OpenLog()
	if err != nil {
		return fmt.Errorf("unable to open daemon log: %w", err)
	}
	defer logFile.Close()
	stdlog.SetOutput(logFile)

	level := logging.LevelInfo
	if forgeConfiguration.debug {
		level = logging.LevelDebug
	}
	forgepkg.DebugEnabled = forgeConfiguration.debug
	logger := logging.NewRoot(level)

	// Attempt to acquire the daemon lock and defer its release. If there is
	// a crash, the lock will be released by the OS, though this may take an
	// unspecified amount of time on some platforms.
	lock, err := daemon.AcquireLock(logger)
	if err != nil {
		return fmt.Errorf("unable to acquire daemon lock: %w", err)
	}
	defer lock.Release()

	cfg, err := config.Load(forgeConfiguration.configPath)
	if err != nil {
		return fmt.Errorf("unable to load configuration: %w", err)
	}

	// This repo ships no concrete builders (see DESIGN.md); any manifests
	// named in the configuration describe builders a separate loader would
	// register here. The registry starts empty.
	registry := builder.New(logger.Sublogger("builder"))

	core, err := forged.New(*cfg, registry, logger.Sublogger("forged"))
	if err != nil {
		return fmt.Errorf("unable to construct daemon core: %w", err)
	}
	defer core.Close()

	builderModulePaths := make([]string, 0, len(cfg.Builders))
	for _, manifest := range cfg.Builders {
		builderModulePaths = append(builderModulePaths, manifest.Path)
	}
	restart, err := forged.WatchForRestartTriggers(
		context.Background(),
		forgeConfiguration.configPath,
		builderModulePaths,
		logger.Sublogger("restart"),
	)
	if err != nil {
		logger.Warnf("Unable to watch for restart triggers: %s", err.Error())
		restart = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		core.Run(ctx)
		close(runDone)
	}()

	// Gate readiness on any critical builder's initial jobs completing (e.g.
	// a manifest the game client cannot start without) before logging that
	// the daemon is serving.
	readyCtx, readyCancel := context.WithCancel(ctx)
	go func() {
		if err := core.Scheduler.WaitForCriticalJobs(readyCtx); err != nil {
			return
		}
		logger.Info("Critical asset products are ready")
	}()
	defer readyCancel()

	signalTermination := make(chan os.Signal, 1)
	signal.Notify(signalTermination, cmd.TerminationSignals...)

	select {
	case sig := <-signalTermination:
		cancel()
		<-runDone
		return fmt.Errorf("terminated by signal: %s", sig)
	case <-restart:
		cancel()
		<-runDone
		os.Exit(forged.RestartExitCode)
		return nil
	case <-runDone:
		return nil
	}
}

var daemonRunCommand = &cobra.Command{
	Use:    "run",
	Short:  "Runs the Forge daemon",
	Run:    cmd.Mainify(daemonRunMain),
	Hidden: true,
}

func init() {
	flags := daemonRunCommand.Flags()
	flags.BoolVarP(&daemonRunConfiguration.help, "help", "h", false, "Show help information")
}

var daemonRunConfiguration struct {
	help bool
}
