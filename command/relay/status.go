package relay

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/consensus-shipyard/go-ipc-relay/lotus"
)

func getStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Shows the checkpointing status of a child subnet",
		RunE:  runStatusCommand,
	}
}

func runStatusCommand(cmd *cobra.Command, _ []string) error {
	pool, childID, err := params.newPool()
	if err != nil {
		return err
	}

	manager, err := pool.BottomUpManager(childID)
	if err != nil {
		return err
	}

	lastExecuted, err := manager.LastExecutedEpoch()
	if err != nil {
		return err
	}

	currentEpoch, err := manager.CurrentEpoch()
	if err != nil {
		return err
	}

	validators, err := manager.Validators()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "relay:               %s\n", manager)
	fmt.Fprintf(out, "checkpoint period:   %d\n", manager.CheckpointPeriod())
	fmt.Fprintf(out, "last executed epoch: %d\n", lastExecuted)
	fmt.Fprintf(out, "current child epoch: %d\n", currentEpoch)
	fmt.Fprintf(out, "validators:\n")

	for _, validator := range validators {
		fmt.Fprintf(out, "  %s\n", validator)
	}

	// FVM parents also expose their gateway actor state
	parentID, ok := childID.Parent()
	if !ok {
		return nil
	}

	conn, ok := pool.Connection(parentID)
	if !ok {
		return nil
	}

	if handler, ok := conn.Handler().(*lotus.Handler); ok {
		state, err := handler.GatewayState()
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "parent gateway:\n")
		fmt.Fprintf(out, "  check period:          %d\n", state.CheckPeriod)
		fmt.Fprintf(out, "  applied topdown nonce: %d\n", state.AppliedTopdownNonce)
	}

	return nil
}
