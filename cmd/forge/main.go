package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgelabs/forge/pkg/forge"
)

// forgeConfiguration holds flags shared across every subcommand (bound as
// persistent flags on rootCommand).
var forgeConfiguration struct {
	configPath string
	debug      bool
}

func rootMain(command *cobra.Command, arguments []string) {
	// Print version information, if requested.
	if rootConfiguration.version {
		fmt.Println(forge.Version())
		return
	}

	// If no flags were set, then print help information and bail. We don't
	// have to worry about warning about arguments being present here (which
	// would be incorrect usage) because arguments can't even reach this
	// point (they will be mistaken for subcommands and an error displayed).
	command.Help()
}

var rootCommand = &cobra.Command{
	Use:   "forge",
	Short: "Forge watches source folders and builds per-platform asset products",
	Run:   rootMain,
}

var rootConfiguration struct {
	help    bool
	version bool
}

func init() {
	flags := rootCommand.Flags()
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")
	flags.BoolVarP(&rootConfiguration.version, "version", "V", false, "Show version information")

	persistent := rootCommand.PersistentFlags()
	persistent.StringVar(&forgeConfiguration.configPath, "config", "forge.yaml", "Path to the bootstrap configuration file")
	persistent.BoolVar(&forgeConfiguration.debug, "debug", false, "Enable verbose debug logging")

	cobra.EnableCommandSorting = false
	cobra.MousetrapHelpText = ""

	rootCommand.AddCommand(
		statusCommand,
		daemonCommand,
	)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
