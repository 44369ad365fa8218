package evm

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/go-hclog"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/abi"
	"golang.org/x/crypto/sha3"

	"github.com/consensus-shipyard/go-ipc-relay/checkpoint"
	"github.com/consensus-shipyard/go-ipc-relay/config"
	"github.com/consensus-shipyard/go-ipc-relay/txrelayer"
	"github.com/consensus-shipyard/go-ipc-relay/types"
)

var _ checkpoint.BottomUpHandler = (*Handler)(nil)

// receiptSuccess is the EVM receipt status of a non-reverted transaction
const receiptSuccess = uint64(1)

// Handler talks to an EVM-compatible subnet. Checkpoint state queries go to
// the subnet actor contract derived from the queried subnet's route; template
// reads go to the gateway on this handler's own chain.
type Handler struct {
	subnet      types.SubnetID
	gatewayAddr ethgo.Address
	relayer     txrelayer.TxRelayer
	key         ethgo.Key
	logger      hclog.Logger
}

func NewHandler(
	subnet *config.Subnet,
	relayer txrelayer.TxRelayer,
	key ethgo.Key,
	logger hclog.Logger,
) (*Handler, error) {
	if subnet.EVM == nil {
		return nil, fmt.Errorf("subnet %s has no EVM runtime configured", subnet.ID)
	}

	if err := types.IsValidAddress(subnet.EVM.GatewayAddr); err != nil {
		return nil, fmt.Errorf("invalid gateway address for subnet %s: %w", subnet.ID, err)
	}

	return &Handler{
		subnet:      subnet.ID,
		gatewayAddr: ethgo.Address(types.StringToAddress(subnet.EVM.GatewayAddr)),
		relayer:     relayer,
		key:         key,
		logger:      logger.Named("evm"),
	}, nil
}

// subnetActorAddr derives the subnet actor contract address from the last hop
// of the subnet's route
func (h *Handler) subnetActorAddr(subnet types.SubnetID) (ethgo.Address, error) {
	actor, ok := subnet.Actor()
	if !ok {
		return ethgo.Address{}, fmt.Errorf("root subnet %s has no subnet actor", subnet)
	}

	addr, err := FvmToEthAddress(actor)
	if err != nil {
		return ethgo.Address{}, fmt.Errorf("cannot derive subnet actor address for %s: %w", subnet, err)
	}

	return addr, nil
}

// call performs a read-only contract call and decodes its named outputs
func (h *Handler) call(target ethgo.Address, method *abi.Method, args map[string]interface{}) (map[string]interface{}, error) {
	input, err := method.Encode(args)
	if err != nil {
		return nil, err
	}

	response, err := h.relayer.Call(h.key.Address(), target, input)
	if err != nil {
		return nil, err
	}

	return decodeCallOutput(method, response)
}

func (h *Handler) CheckpointPeriod(subnet types.SubnetID) (int64, error) {
	actor, err := h.subnetActorAddr(subnet)
	if err != nil {
		return 0, err
	}

	output, err := h.call(actor, bottomUpCheckPeriodMethod, map[string]interface{}{})
	if err != nil {
		return 0, fmt.Errorf("cannot read checkpoint period: %w", err)
	}

	period, ok := output["0"].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("checkpoint period is not a uint256")
	}

	return period.Int64(), nil
}

func (h *Handler) Validators(subnet types.SubnetID) ([]types.FvmAddress, error) {
	actor, err := h.subnetActorAddr(subnet)
	if err != nil {
		return nil, err
	}

	output, err := h.call(actor, getValidatorsMethod, map[string]interface{}{})
	if err != nil {
		return nil, fmt.Errorf("cannot read validator set: %w", err)
	}

	rawValidators, ok := output["validators"].([]ethgo.Address)
	if !ok {
		return nil, fmt.Errorf("validator set is not an address array")
	}

	validators := make([]types.FvmAddress, len(rawValidators))
	for i, addr := range rawValidators {
		validators[i] = EthToFvmAddress(addr)
	}

	return validators, nil
}

func (h *Handler) LastExecutedEpoch(subnet types.SubnetID) (int64, error) {
	actor, err := h.subnetActorAddr(subnet)
	if err != nil {
		return 0, err
	}

	output, err := h.call(actor, lastVotingExecutedEpochMethod, map[string]interface{}{})
	if err != nil {
		return 0, fmt.Errorf("cannot read last executed epoch: %w", err)
	}

	epoch, ok := output["0"].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("last executed epoch is not a uint256")
	}

	return epoch.Int64(), nil
}

func (h *Handler) CurrentEpoch() (int64, error) {
	blockNumber, err := h.relayer.BlockNumber()
	if err != nil {
		return 0, fmt.Errorf("cannot read chain head: %w", err)
	}

	return int64(blockNumber), nil
}

func (h *Handler) HasVoted(subnet types.SubnetID, epoch int64, validator types.FvmAddress) (bool, error) {
	actor, err := h.subnetActorAddr(subnet)
	if err != nil {
		return false, err
	}

	submitter, err := FvmToEthAddress(validator)
	if err != nil {
		return false, fmt.Errorf("validator %s is not an EVM account: %w", validator, err)
	}

	output, err := h.call(actor, hasValidatorVotedForSubmissionMethod, map[string]interface{}{
		"epoch":     uint64(epoch),
		"submitter": submitter,
	})
	if err != nil {
		return false, fmt.Errorf("cannot check vote for epoch %d: %w", epoch, err)
	}

	hasVoted, ok := output["0"].(bool)
	if !ok {
		return false, fmt.Errorf("vote check result is not a bool")
	}

	return hasVoted, nil
}

// CheckpointTemplate reads the gateway's checkpoint for the epoch. The
// gateway accumulates cross messages and child checks into the template as
// the child chain advances; an epoch the gateway does not know yet yields an
// empty template.
func (h *Handler) CheckpointTemplate(epoch int64) (*checkpoint.BottomUpCheckpoint, error) {
	output, err := h.call(h.gatewayAddr, bottomUpCheckpointAtEpochMethod, map[string]interface{}{
		"epoch": uint64(epoch),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot read checkpoint template for epoch %d: %w", epoch, err)
	}

	exists, ok := output["exists"].(bool)
	if !ok {
		return nil, fmt.Errorf("template existence flag is not a bool")
	}

	if !exists {
		return &checkpoint.BottomUpCheckpoint{
			Source: h.subnet,
			Epoch:  epoch,
		}, nil
	}

	raw, err := mapField(output, "checkpoint")
	if err != nil {
		return nil, err
	}

	template, err := checkpointFromMap(raw)
	if err != nil {
		return nil, err
	}

	converted, err := CheckpointFromEVM(template)
	if err != nil {
		return nil, err
	}

	converted.Epoch = epoch

	return converted, nil
}

// PopulateProof commits to the checkpoint contents: the keccak256 hash over
// the ABI encoding of the cross-message batch and the child checks
func (h *Handler) PopulateProof(c *checkpoint.BottomUpCheckpoint) error {
	converted, err := CheckpointToEVM(c, h.logger)
	if err != nil {
		return err
	}

	crossMsgs := make([]map[string]interface{}, len(converted.CrossMsgs))
	for i := range converted.CrossMsgs {
		crossMsgs[i] = converted.CrossMsgs[i].ToMap()
	}

	children := make([]map[string]interface{}, len(converted.Children))
	for i := range converted.Children {
		children[i] = converted.Children[i].ToMap()
	}

	encoded, err := proofABIType.Encode(map[string]interface{}{
		"crossMsgs": crossMsgs,
		"children":  children,
	})
	if err != nil {
		return fmt.Errorf("cannot encode checkpoint proof: %w", err)
	}

	hw := sha3.NewLegacyKeccak256()
	hw.Write(encoded)

	c.Proof = hw.Sum(nil)

	return nil
}

func (h *Handler) PopulatePrevHash(c *checkpoint.BottomUpCheckpoint, subnet types.SubnetID, previousEpoch int64) error {
	actor, err := h.subnetActorAddr(subnet)
	if err != nil {
		return err
	}

	output, err := h.call(actor, bottomUpCheckpointHashAtEpochMethod, map[string]interface{}{
		"epoch": uint64(previousEpoch),
	})
	if err != nil {
		return fmt.Errorf("cannot read checkpoint hash for epoch %d: %w", previousEpoch, err)
	}

	exists, ok := output["exists"].(bool)
	if !ok {
		return fmt.Errorf("checkpoint existence flag is not a bool")
	}

	if !exists {
		return fmt.Errorf("epoch %d: %w", previousEpoch, checkpoint.ErrCheckpointNotFound)
	}

	hash, ok := output["hash"].([32]byte)
	if !ok {
		return fmt.Errorf("checkpoint hash is not bytes32")
	}

	prevHash := types.BytesToHash(hash[:])
	c.PrevCheck = prevHash.Bytes()

	h.logger.Debug("resolved previous checkpoint",
		"subnet", subnet,
		"epoch", previousEpoch,
		"hash", prevHash)

	return nil
}

// Submit sends the checkpoint to the subnet actor on behalf of the validator.
// The handler's signing key must be the validator's account.
func (h *Handler) Submit(validator types.FvmAddress, c *checkpoint.BottomUpCheckpoint) (int64, error) {
	submitter, err := FvmToEthAddress(validator)
	if err != nil {
		return 0, fmt.Errorf("validator %s is not an EVM account: %w", validator, err)
	}

	if submitter != h.key.Address() {
		return 0, fmt.Errorf("validator %s does not match the configured signing key %s",
			submitter, h.key.Address())
	}

	actor, err := h.subnetActorAddr(c.Source)
	if err != nil {
		return 0, err
	}

	converted, err := CheckpointToEVM(c, h.logger)
	if err != nil {
		return 0, err
	}

	input, err := submitCheckpointMethod.Encode(map[string]interface{}{
		"checkpoint": converted.ToMap(),
	})
	if err != nil {
		return 0, fmt.Errorf("cannot encode checkpoint: %w", err)
	}

	txn := &ethgo.Transaction{
		To:    &actor,
		Input: input,
	}

	receipt, err := h.relayer.SendTransaction(txn, h.key)
	if err != nil {
		return 0, fmt.Errorf("cannot send checkpoint transaction: %w", err)
	}

	if receipt.Status != receiptSuccess {
		return 0, fmt.Errorf("checkpoint transaction %s reverted in block %d",
			receipt.TransactionHash, receipt.BlockNumber)
	}

	h.logger.Debug("checkpoint transaction mined",
		"txn", receipt.TransactionHash,
		"block", receipt.BlockNumber)

	return int64(receipt.BlockNumber), nil
}
