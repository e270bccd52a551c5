package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/forgelabs/forge/cmd"
)

func daemonStartMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 0 {
		return errors.New("unexpected arguments provided")
	}

	if _, err := daemonPID(); err == nil {
		return nil
	}

	executablePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("unable to determine executable path: %w", err)
	}

	daemonProcess := &exec.Cmd{
		Path:        executablePath,
		Args:        []string{"forge", "--config", forgeConfiguration.configPath, "daemon", "run"},
		SysProcAttr: daemonProcessAttributes(),
	}
	if err := daemonProcess.Start(); err != nil {
		return fmt.Errorf("unable to fork daemon: %w", err)
	}

	return nil
}

var daemonStartCommand = &cobra.Command{
	Use:   "start",
	Short: "Starts the Forge daemon if it's not already running",
	Run:   cmd.Mainify(daemonStartMain),
}

var daemonStartConfiguration struct {
	help bool
}

func init() {
	flags := daemonStartCommand.Flags()
	flags.SortFlags = false
	flags.BoolVarP(&daemonStartConfiguration.help, "help", "h", false, "Show help information")
}
