package checkpoint

import (
	"fmt"

	"github.com/consensus-shipyard/go-ipc-relay/config"
	"github.com/consensus-shipyard/go-ipc-relay/types"
)

// Manager is the capability set a relay direction exposes to the scheduler
// that decides when checkpoints are due. All methods are safe for concurrent
// use; implementations hold no mutable state beyond their frozen metadata.
type Manager interface {
	fmt.Stringer

	// TargetSubnet is the subnet checkpoints are submitted to. For the
	// bottom-up direction this is the parent subnet.
	TargetSubnet() *config.Subnet

	// ParentSubnet is the parent subnet config of the managed pair
	ParentSubnet() *config.Subnet

	// ChildSubnet is the child subnet config of the managed pair
	ChildSubnet() *config.Subnet

	// CheckpointPeriod is the number of epochs between submissions, frozen at
	// construction
	CheckpointPeriod() int64

	// Validators lists the child subnet's validators as tracked by the parent
	Validators() ([]types.FvmAddress, error)

	// LastExecutedEpoch is the highest epoch already checkpointed on the
	// target chain
	LastExecutedEpoch() (int64, error)

	// CurrentEpoch is the live epoch of the chain that drives this flow
	CurrentEpoch() (int64, error)

	// SubmitCheckpoint builds and submits the checkpoint for the epoch on
	// behalf of the validator. All-or-nothing: any failed step aborts the
	// submission. Returns the target-chain epoch of inclusion.
	SubmitCheckpoint(epoch int64, validator types.FvmAddress) (int64, error)

	// ShouldSubmitInEpoch reports whether the validator still has to submit
	// at the epoch, i.e. it has not voted yet
	ShouldSubmitInEpoch(validator types.FvmAddress, epoch int64) (bool, error)

	// PresubmissionCheck is the flow-specific readiness gate
	PresubmissionCheck() (bool, error)
}

// BottomUpHandler abstracts one chain runtime for the bottom-up flow. It is
// implemented once per runtime (FVM and EVM) and must tolerate concurrent
// outstanding calls from overlapping submissions.
type BottomUpHandler interface {
	// CheckpointPeriod reads the bottom-up checkpoint period configured for
	// the subnet
	CheckpointPeriod(subnet types.SubnetID) (int64, error)

	// Validators reads the current validator set of the subnet
	Validators(subnet types.SubnetID) ([]types.FvmAddress, error)

	// LastExecutedEpoch reads the highest epoch with an executed checkpoint
	// for the subnet
	LastExecutedEpoch(subnet types.SubnetID) (int64, error)

	// CurrentEpoch reads the chain head epoch
	CurrentEpoch() (int64, error)

	// HasVoted checks whether the validator already submitted for the epoch
	HasVoted(subnet types.SubnetID, epoch int64, validator types.FvmAddress) (bool, error)

	// CheckpointTemplate builds the native checkpoint for the epoch from
	// chain-local state. Proof and previous hash are left unset.
	CheckpointTemplate(epoch int64) (*BottomUpCheckpoint, error)

	// PopulateProof computes and attaches the proof over the template's
	// cross-message batch and child checks. Source, epoch, children and
	// cross messages are left untouched.
	PopulateProof(template *BottomUpCheckpoint) error

	// PopulatePrevHash fills the previous-checkpoint reference from the
	// checkpoint committed for the subnet at the previous epoch. Fails with
	// ErrCheckpointNotFound when no such checkpoint exists.
	PopulatePrevHash(template *BottomUpCheckpoint, subnet types.SubnetID, previousEpoch int64) error

	// Submit encodes the completed checkpoint into the runtime's wire format
	// and submits it as a signed transaction on behalf of the validator.
	// Returns the chain epoch of inclusion.
	Submit(validator types.FvmAddress, checkpoint *BottomUpCheckpoint) (int64, error)
}
