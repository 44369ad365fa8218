package checkpoint

import (
	"fmt"

	metrics "github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"

	"github.com/consensus-shipyard/go-ipc-relay/config"
	"github.com/consensus-shipyard/go-ipc-relay/types"
)

// metadata is resolved once at construction and frozen for the manager's
// lifetime. A period change on chain requires constructing a new manager.
type metadata struct {
	parent *config.Subnet
	child  *config.Subnet
	period int64
}

// BottomUpManager drives the bottom-up checkpoint flow over a pair of chain
// handlers, one per subnet side. It holds no mutable state, so distinct
// submissions may run concurrently; duplicate-submission safety comes from
// ShouldSubmitInEpoch and the parent chain's own conflict rules.
type BottomUpManager struct {
	metadata      metadata
	parentHandler BottomUpHandler
	childHandler  BottomUpHandler
	logger        hclog.Logger
}

// NewBottomUpManager resolves the checkpoint period from the parent chain and
// freezes the relay metadata
func NewBottomUpManager(
	parent *config.Subnet,
	child *config.Subnet,
	parentHandler BottomUpHandler,
	childHandler BottomUpHandler,
	logger hclog.Logger,
) (*BottomUpManager, error) {
	period, err := parentHandler.CheckpointPeriod(child.ID)
	if err != nil {
		return nil, fmt.Errorf("cannot read checkpoint period for subnet %s: %w", child.ID, err)
	}

	if period <= 0 {
		return nil, fmt.Errorf("invalid checkpoint period %d for subnet %s", period, child.ID)
	}

	return &BottomUpManager{
		metadata: metadata{
			parent: parent,
			child:  child,
			period: period,
		},
		parentHandler: parentHandler,
		childHandler:  childHandler,
		logger:        logger.Named("bottomup"),
	}, nil
}

func (m *BottomUpManager) String() string {
	return fmt.Sprintf("bottom-up, parent: %s, child: %s", m.metadata.parent.ID, m.metadata.child.ID)
}

// TargetSubnet is the parent subnet: bottom-up checkpoints land there
func (m *BottomUpManager) TargetSubnet() *config.Subnet {
	return m.metadata.parent
}

func (m *BottomUpManager) ParentSubnet() *config.Subnet {
	return m.metadata.parent
}

func (m *BottomUpManager) ChildSubnet() *config.Subnet {
	return m.metadata.child
}

func (m *BottomUpManager) CheckpointPeriod() int64 {
	return m.metadata.period
}

func (m *BottomUpManager) Validators() ([]types.FvmAddress, error) {
	return m.parentHandler.Validators(m.metadata.child.ID)
}

func (m *BottomUpManager) LastExecutedEpoch() (int64, error) {
	return m.parentHandler.LastExecutedEpoch(m.metadata.child.ID)
}

// CurrentEpoch reads the child chain: bottom-up checkpoints are cut at child
// chain heights
func (m *BottomUpManager) CurrentEpoch() (int64, error) {
	return m.childHandler.CurrentEpoch()
}

// SubmitCheckpoint builds and submits one checkpoint, strictly sequentially:
// template from the child, proof from the child, previous hash from the
// parent, submission on the parent. Any failed step aborts the whole
// submission; no partial state survives, so a retry restarts from the
// template.
func (m *BottomUpManager) SubmitCheckpoint(epoch int64, validator types.FvmAddress) (int64, error) {
	if epoch%m.metadata.period != 0 {
		return 0, &SubmitError{
			Stage: StageTemplate,
			Epoch: epoch,
			Err:   fmt.Errorf("epoch is not a multiple of the checkpoint period %d", m.metadata.period),
		}
	}

	template, err := m.childHandler.CheckpointTemplate(epoch)
	if err != nil {
		return 0, &SubmitError{Stage: StageTemplate, Epoch: epoch, Err: err}
	}

	m.logger.Debug("built checkpoint template", "subnet", m.metadata.child.ID, "epoch", epoch)

	if err := m.childHandler.PopulateProof(template); err != nil {
		return 0, &SubmitError{Stage: StageProof, Epoch: epoch, Err: err}
	}

	m.logger.Debug("populated checkpoint proof", "epoch", epoch, "proof size", len(template.Proof))

	previousEpoch := epoch - m.metadata.period
	if err := m.parentHandler.PopulatePrevHash(template, m.metadata.child.ID, previousEpoch); err != nil {
		return 0, &SubmitError{Stage: StagePrevHash, Epoch: epoch, Err: err}
	}

	m.logger.Debug("populated previous checkpoint hash", "epoch", epoch, "previous epoch", previousEpoch)

	inclusionEpoch, err := m.parentHandler.Submit(validator, template)
	if err != nil {
		return 0, &SubmitError{Stage: StageSubmit, Epoch: epoch, Err: err}
	}

	metrics.SetGauge([]string{"checkpoint", "bottomup", "submitted_epoch"}, float32(epoch))
	m.logger.Info("submitted bottom-up checkpoint",
		"subnet", m.metadata.child.ID,
		"epoch", epoch,
		"validator", validator,
		"inclusion epoch", inclusionEpoch)

	return inclusionEpoch, nil
}

// ShouldSubmitInEpoch reports true unless the validator already voted at the
// epoch
func (m *BottomUpManager) ShouldSubmitInEpoch(validator types.FvmAddress, epoch int64) (bool, error) {
	hasVoted, err := m.parentHandler.HasVoted(m.metadata.child.ID, epoch, validator)
	if err != nil {
		return false, fmt.Errorf("cannot check if validator %s has voted in epoch %d: %w", validator, epoch, err)
	}

	return !hasVoted, nil
}

// PresubmissionCheck always reports ready: the bottom-up flow has no extra
// precondition
func (m *BottomUpManager) PresubmissionCheck() (bool, error) {
	return true, nil
}
