package relay

import (
	"github.com/spf13/cobra"
)

func GetCommand() *cobra.Command {
	relayCmd := &cobra.Command{
		Use:   "relay",
		Short: "Top level command for bottom-up checkpoint relaying. Only accepts subcommands.",
	}

	relayCmd.PersistentFlags().StringVar(
		&params.configPath,
		configFlag,
		"config.yaml",
		"path to the relay configuration file",
	)

	relayCmd.PersistentFlags().StringVar(
		&params.subnet,
		subnetFlag,
		"",
		"id of the child subnet to relay checkpoints for",
	)

	relayCmd.PersistentFlags().StringVar(
		&params.logLevel,
		logLevelFlag,
		"INFO",
		"log level",
	)

	_ = relayCmd.MarkPersistentFlagRequired(subnetFlag)

	registerSubcommands(relayCmd)

	return relayCmd
}

func registerSubcommands(baseCmd *cobra.Command) {
	// relay submit
	baseCmd.AddCommand(getSubmitCommand())

	// relay status
	baseCmd.AddCommand(getStatusCommand())
}
