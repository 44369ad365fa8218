package lotus

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/consensus-shipyard/go-ipc-relay/checkpoint"
	"github.com/consensus-shipyard/go-ipc-relay/config"
	"github.com/consensus-shipyard/go-ipc-relay/types"
)

var _ checkpoint.BottomUpHandler = (*Handler)(nil)

// submitCheckpointMethodNum is the subnet actor's checkpoint submission
// method ordinal
const submitCheckpointMethodNum = uint64(6)

// Handler talks to an FVM subnet through a Lotus node. Checkpoint state
// lives in the gateway and subnet actors; submission goes through the
// message pool.
type Handler struct {
	subnet      types.SubnetID
	gatewayAddr types.FvmAddress
	client      Client
	logger      hclog.Logger
}

func NewHandler(subnet *config.Subnet, client Client, logger hclog.Logger) (*Handler, error) {
	if subnet.FVM == nil {
		return nil, fmt.Errorf("subnet %s has no FVM runtime configured", subnet.ID)
	}

	gatewayAddr, err := types.ParseFvmAddress(subnet.FVM.GatewayAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway address for subnet %s: %w", subnet.ID, err)
	}

	return &Handler{
		subnet:      subnet.ID,
		gatewayAddr: gatewayAddr,
		client:      client,
		logger:      logger.Named("lotus"),
	}, nil
}

// GatewayState reads the state of the gateway actor this handler submits
// through
func (h *Handler) GatewayState() (*IPCReadGatewayStateResponse, error) {
	state, err := h.client.ReadGatewayState(h.gatewayAddr)
	if err != nil {
		return nil, fmt.Errorf("cannot read gateway state: %w", err)
	}

	return state, nil
}

func (h *Handler) CheckpointPeriod(subnet types.SubnetID) (int64, error) {
	state, err := h.client.ReadSubnetActorState(subnet)
	if err != nil {
		return 0, fmt.Errorf("cannot read subnet actor state: %w", err)
	}

	return state.CheckPeriod, nil
}

func (h *Handler) Validators(subnet types.SubnetID) ([]types.FvmAddress, error) {
	state, err := h.client.ReadSubnetActorState(subnet)
	if err != nil {
		return nil, fmt.Errorf("cannot read subnet actor state: %w", err)
	}

	validators := make([]types.FvmAddress, len(state.ValidatorSet.Validators))

	for i, validator := range state.ValidatorSet.Validators {
		addr, err := types.ParseFvmAddress(validator.Addr)
		if err != nil {
			return nil, fmt.Errorf("malformed validator address %q: %w", validator.Addr, err)
		}

		validators[i] = addr
	}

	return validators, nil
}

func (h *Handler) LastExecutedEpoch(subnet types.SubnetID) (int64, error) {
	state, err := h.client.ReadSubnetActorState(subnet)
	if err != nil {
		return 0, fmt.Errorf("cannot read subnet actor state: %w", err)
	}

	return state.LastVotingExecutedEpoch, nil
}

func (h *Handler) CurrentEpoch() (int64, error) {
	head, err := h.client.ChainHead()
	if err != nil {
		return 0, fmt.Errorf("cannot read chain head: %w", err)
	}

	return head.Height, nil
}

func (h *Handler) HasVoted(subnet types.SubnetID, epoch int64, validator types.FvmAddress) (bool, error) {
	votes, err := h.client.VotesForCheckpoint(subnet, epoch)
	if err != nil {
		return false, fmt.Errorf("cannot read votes for epoch %d: %w", epoch, err)
	}

	needle := validator.String()

	for _, voted := range votes.Validators {
		if voted == needle {
			return true, nil
		}
	}

	return false, nil
}

func (h *Handler) CheckpointTemplate(epoch int64) (*checkpoint.BottomUpCheckpoint, error) {
	response, err := h.client.CheckpointTemplate(h.gatewayAddr, epoch)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch checkpoint template for epoch %d: %w", epoch, err)
	}

	template, err := response.ToNative()
	if err != nil {
		return nil, err
	}

	template.Epoch = epoch

	return template, nil
}

// PopulateProof commits to the checkpoint contents: a content id derived
// from the canonical JSON of the cross-message batch and the child checks
func (h *Handler) PopulateProof(c *checkpoint.BottomUpCheckpoint) error {
	wire, err := NewCheckpointResponse(c)
	if err != nil {
		return err
	}

	material, err := json.Marshal(struct {
		Children  []CheckData           `json:"Children"`
		CrossMsgs *BatchCrossMsgWrapper `json:"CrossMsgs"`
	}{
		Children:  wire.Data.Children,
		CrossMsgs: wire.Data.CrossMsgs,
	})
	if err != nil {
		return fmt.Errorf("cannot encode checkpoint proof material: %w", err)
	}

	proofCid, err := RawCID(material)
	if err != nil {
		return fmt.Errorf("cannot derive checkpoint proof: %w", err)
	}

	c.Proof = proofCid.Bytes()

	return nil
}

// PopulatePrevHash fills the previous reference with the content id of the
// child's last committed checkpoint. The gateway only tracks the latest
// commitment, which for an in-order relay is the one at previousEpoch.
func (h *Handler) PopulatePrevHash(c *checkpoint.BottomUpCheckpoint, subnet types.SubnetID, previousEpoch int64) error {
	response, err := h.client.PrevCheckpointForChild(h.gatewayAddr, subnet)
	if err != nil {
		return fmt.Errorf("cannot fetch previous checkpoint for epoch %d: %w", previousEpoch, err)
	}

	if response.CID == nil {
		return fmt.Errorf("epoch %d: %w", previousEpoch, checkpoint.ErrCheckpointNotFound)
	}

	decoded, err := response.CID.Decode()
	if err != nil {
		return err
	}

	c.PrevCheck = decoded.Bytes()

	h.logger.Debug("resolved previous checkpoint", "subnet", subnet, "epoch", previousEpoch, "cid", decoded)

	return nil
}

// Submit pushes the checkpoint to the child's subnet actor as a message from
// the validator and waits for its execution
func (h *Handler) Submit(validator types.FvmAddress, c *checkpoint.BottomUpCheckpoint) (int64, error) {
	actor, ok := c.Source.Actor()
	if !ok {
		return 0, fmt.Errorf("checkpoint source %s has no subnet actor", c.Source)
	}

	wire, err := NewCheckpointResponse(c)
	if err != nil {
		return 0, err
	}

	params, err := json.Marshal(wire)
	if err != nil {
		return 0, fmt.Errorf("cannot encode checkpoint: %w", err)
	}

	pushed, err := h.client.PushMessage(&Message{
		To:         actor.String(),
		From:       validator.String(),
		Value:      "0",
		GasFeeCap:  "0",
		GasPremium: "0",
		Method:     submitCheckpointMethodNum,
		Params:     params,
	})
	if err != nil {
		return 0, fmt.Errorf("cannot push checkpoint message: %w", err)
	}

	h.logger.Debug("checkpoint message pushed", "cid", pushed.CID.Cid)

	lookup, err := h.client.WaitMessage(pushed.CID)
	if err != nil {
		return 0, fmt.Errorf("cannot wait for checkpoint message %s: %w", pushed.CID.Cid, err)
	}

	if lookup.Receipt.ExitCode != 0 {
		return 0, fmt.Errorf("checkpoint message %s failed with exit code %d",
			pushed.CID.Cid, lookup.Receipt.ExitCode)
	}

	return lookup.Height, nil
}
