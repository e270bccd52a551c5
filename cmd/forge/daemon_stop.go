package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgelabs/forge/cmd"
)

func daemonStopMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 0 {
		return errors.New("unexpected arguments provided")
	}

	pid, err := daemonPID()
	if err != nil {
		// Already stopped (or never started); nothing to do.
		return nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("unable to find daemon process %d: %w", pid, err)
	}
	if err := process.Signal(terminateSignal()); err != nil {
		return fmt.Errorf("unable to signal daemon process %d: %w", pid, err)
	}

	return nil
}

var daemonStopCommand = &cobra.Command{
	Use:   "stop",
	Short: "Stops the Forge daemon if it's running",
	Run:   cmd.Mainify(daemonStopMain),
}

var daemonStopConfiguration struct {
	help bool
}

func init() {
	flags := daemonStopCommand.Flags()
	flags.BoolVarP(&daemonStopConfiguration.help, "help", "h", false, "Show help information")
}
