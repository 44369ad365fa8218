package relay

import (
	"fmt"

	"github.com/spf13/cobra"
)

func getSubmitCommand() *cobra.Command {
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Submits the bottom-up checkpoint of a child subnet for one epoch",
		RunE:  runSubmitCommand,
	}

	submitCmd.Flags().Int64Var(
		&params.epoch,
		epochFlag,
		0,
		"epoch to submit the checkpoint for, must be a multiple of the checkpoint period",
	)

	submitCmd.Flags().StringVar(
		&params.validator,
		validatorFlag,
		"",
		"validator address submitting the checkpoint",
	)

	_ = submitCmd.MarkFlagRequired(epochFlag)
	_ = submitCmd.MarkFlagRequired(validatorFlag)

	return submitCmd
}

func runSubmitCommand(cmd *cobra.Command, _ []string) error {
	manager, err := params.newManager()
	if err != nil {
		return err
	}

	validator, err := params.parseValidator()
	if err != nil {
		return err
	}

	shouldSubmit, err := manager.ShouldSubmitInEpoch(validator, params.epoch)
	if err != nil {
		return err
	}

	if !shouldSubmit {
		fmt.Fprintf(cmd.OutOrStdout(),
			"validator %s has already submitted for epoch %d\n", validator, params.epoch)

		return nil
	}

	inclusionEpoch, err := manager.SubmitCheckpoint(params.epoch, validator)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"checkpoint for epoch %d submitted, included at parent epoch %d\n",
		params.epoch, inclusionEpoch)

	return nil
}
