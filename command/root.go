// Package command assembles the relay CLI
package command

import (
	"github.com/spf13/cobra"

	"github.com/consensus-shipyard/go-ipc-relay/command/relay"
)

func GetRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ipc-relay",
		Short: "Checkpoint relay between IPC subnets",
	}

	rootCmd.AddCommand(relay.GetCommand())

	return rootCmd
}
