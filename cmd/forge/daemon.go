package main

import (
	"github.com/spf13/cobra"

	"github.com/forgelabs/forge/cmd"
)

func daemonMain(command *cobra.Command, arguments []string) error {
	// If no subcommand was given, then print help information and bail.
	command.Help()
	return nil
}

var daemonCommand = &cobra.Command{
	Use:   "daemon",
	Short: "Controls the Forge daemon lifecycle",
	Run:   cmd.Mainify(daemonMain),
}

var daemonConfiguration struct {
	help bool
}

func init() {
	flags := daemonCommand.Flags()
	flags.SortFlags = false
	flags.BoolVarP(&daemonConfiguration.help, "help", "h", false, "Show help information")

	daemonCommand.AddCommand(
		daemonRunCommand,
		daemonStartCommand,
		daemonStopCommand,
	)
}
