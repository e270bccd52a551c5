package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgelabs/forge/cmd"
)

// statusMain reports whether the daemon is running. There's no RPC
// transport to query anything richer through (job counts, queue depth) from
// a separate client process; that would require wire framing this repo
// deliberately doesn't implement (see DESIGN.md).
func statusMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 0 {
		return errors.New("unexpected arguments provided")
	}

	if pid, err := daemonPID(); err == nil {
		fmt.Printf("Forge daemon is running (pid %d)\n", pid)
	} else {
		fmt.Println("Forge daemon is not running")
	}

	return nil
}

var statusCommand = &cobra.Command{
	Use:   "status",
	Short: "Shows the status of the Forge daemon",
	Run:   cmd.Mainify(statusMain),
}

var statusConfiguration struct {
	help bool
}

func init() {
	flags := statusCommand.Flags()
	flags.BoolVarP(&statusConfiguration.help, "help", "h", false, "Show help information")
}
