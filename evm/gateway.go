// Package evm binds the checkpoint relay to an EVM-compatible runtime: the
// ABI struct representations used by the gateway contract, the conversions
// between those and the native model, and the chain handler submitting
// checkpoints through the tx relayer.
package evm

import (
	"fmt"
	"math/big"

	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/abi"

	"github.com/consensus-shipyard/go-ipc-relay/helper/hex"
	"github.com/consensus-shipyard/go-ipc-relay/types"
)

// ABI tuple layouts of the gateway contract structs. These mirror the
// on-chain definitions field by field; changing the order breaks the wire
// format.
const (
	subnetIDABI    = "tuple(uint64 root, address[] route)"
	fvmAddressABI  = "tuple(uint8 addrType, bytes payload)"
	ipcAddressABI  = "tuple(" + subnetIDABI + " subnetId, " + fvmAddressABI + " rawAddress)"
	storableMsgABI = "tuple(" + ipcAddressABI + " from, " + ipcAddressABI + " to, uint256 value, uint64 nonce, bytes4 method, bytes params)"
	crossMsgABI    = "tuple(" + storableMsgABI + " message, bool wrapped)"
	childCheckABI  = "tuple(" + subnetIDABI + " source, bytes32[] checks)"
	checkpointABI  = "tuple(" + subnetIDABI + " source, uint64 epoch, uint256 fee, " +
		crossMsgABI + "[] crossMsgs, " + childCheckABI + "[] children, bytes32 prevHash, bytes proof)"
)

var (
	// submitCheckpointMethod submits a bottom-up checkpoint on the gateway
	submitCheckpointMethod = abi.MustNewMethod("function submitCheckpoint(" +
		checkpointABI + " checkpoint) returns (uint256)")

	// bottomUpCheckpointAtEpochMethod reads the checkpoint the gateway holds
	// for the given epoch, template or committed
	bottomUpCheckpointAtEpochMethod = abi.MustNewMethod("function bottomUpCheckpointAtEpoch(uint64 epoch)" +
		" returns (bool exists, " + checkpointABI + " checkpoint)")

	// bottomUpCheckpointHashAtEpochMethod reads the hash of the committed
	// checkpoint for the given epoch
	bottomUpCheckpointHashAtEpochMethod = abi.MustNewMethod("function bottomUpCheckpointHashAtEpoch(uint64 epoch)" +
		" returns (bool exists, bytes32 hash)")

	// bottomUpCheckPeriodMethod reads the checkpoint period of the gateway
	bottomUpCheckPeriodMethod = abi.MustNewMethod("function bottomUpCheckPeriod() returns (uint256)")

	// lastVotingExecutedEpochMethod reads the highest epoch with an executed
	// checkpoint vote
	lastVotingExecutedEpochMethod = abi.MustNewMethod("function lastVotingExecutedEpoch() returns (uint256)")

	// hasValidatorVotedForSubmissionMethod checks the vote membership of a
	// validator at an epoch
	hasValidatorVotedForSubmissionMethod = abi.MustNewMethod(
		"function hasValidatorVotedForSubmission(uint64 epoch, address submitter) returns (bool)")

	// getValidatorsMethod reads the current validator set of the subnet actor
	getValidatorsMethod = abi.MustNewMethod("function getValidators() returns (address[] validators)")

	// delegatedAddrABIType is the payload layout of a delegated address:
	// namespace, sub-address length and raw sub-address bytes, in that exact
	// order
	delegatedAddrABIType = abi.MustNewType(
		"tuple(tuple(uint256 namespace, uint256 length, bytes raw) addr)")

	// proofABIType is what the EVM-side proof commits to: the cross-message
	// batch and the child checks
	proofABIType = abi.MustNewType(
		"tuple(" + crossMsgABI + "[] crossMsgs, " + childCheckABI + "[] children)")
)

// SubnetID is the gateway contract's subnet identity: root chain id plus the
// route of subnet actor addresses
type SubnetID struct {
	Root  uint64
	Route []ethgo.Address
}

// FvmAddress is the gateway contract's runtime-independent address form
type FvmAddress struct {
	AddrType uint8
	Payload  []byte
}

// IPCAddress is a subnet-scoped address in contract form
type IPCAddress struct {
	SubnetID   SubnetID
	RawAddress FvmAddress
}

// StorableMsg is the payload of a cross-subnet message in contract form
type StorableMsg struct {
	From   IPCAddress
	To     IPCAddress
	Value  *big.Int
	Nonce  uint64
	Method [4]byte
	Params []byte
}

// CrossMsg wraps a storable message in contract form
type CrossMsg struct {
	Message StorableMsg
	Wrapped bool
}

// ChildCheck is a descendant subnet's commitment in contract form
type ChildCheck struct {
	Source SubnetID
	Checks []types.Hash
}

// BottomUpCheckpoint is the gateway contract's checkpoint struct
type BottomUpCheckpoint struct {
	Source    SubnetID
	Epoch     uint64
	Fee       *big.Int
	CrossMsgs []CrossMsg
	Children  []ChildCheck
	PrevHash  types.Hash
	Proof     []byte
}

func (s *SubnetID) ToMap() map[string]interface{} {
	route := make([]ethgo.Address, len(s.Route))
	copy(route, s.Route)

	return map[string]interface{}{
		"root":  s.Root,
		"route": route,
	}
}

func (a *FvmAddress) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"addrType": a.AddrType,
		"payload":  a.Payload,
	}
}

func (a *IPCAddress) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"subnetId":   a.SubnetID.ToMap(),
		"rawAddress": a.RawAddress.ToMap(),
	}
}

func (m *StorableMsg) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"from":   m.From.ToMap(),
		"to":     m.To.ToMap(),
		"value":  m.Value,
		"nonce":  m.Nonce,
		"method": m.Method,
		"params": m.Params,
	}
}

func (m *CrossMsg) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"message": m.Message.ToMap(),
		"wrapped": m.Wrapped,
	}
}

func (c *ChildCheck) ToMap() map[string]interface{} {
	checks := make([][32]byte, len(c.Checks))
	for i, check := range c.Checks {
		checks[i] = check
	}

	return map[string]interface{}{
		"source": c.Source.ToMap(),
		"checks": checks,
	}
}

func (c *BottomUpCheckpoint) ToMap() map[string]interface{} {
	crossMsgs := make([]map[string]interface{}, len(c.CrossMsgs))
	for i := range c.CrossMsgs {
		crossMsgs[i] = c.CrossMsgs[i].ToMap()
	}

	children := make([]map[string]interface{}, len(c.Children))
	for i := range c.Children {
		children[i] = c.Children[i].ToMap()
	}

	fee := c.Fee
	if fee == nil {
		fee = big.NewInt(0)
	}

	return map[string]interface{}{
		"source":    c.Source.ToMap(),
		"epoch":     c.Epoch,
		"fee":       fee,
		"crossMsgs": crossMsgs,
		"children":  children,
		"prevHash":  [32]byte(c.PrevHash),
		"proof":     c.Proof,
	}
}

func mapField(raw map[string]interface{}, field string) (map[string]interface{}, error) {
	value, ok := raw[field].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("output field %s is not a tuple", field)
	}

	return value, nil
}

func subnetIDFromMap(raw map[string]interface{}) (SubnetID, error) {
	root, ok := raw["root"].(uint64)
	if !ok {
		return SubnetID{}, fmt.Errorf("output field root is not a uint64")
	}

	route, ok := raw["route"].([]ethgo.Address)
	if !ok {
		return SubnetID{}, fmt.Errorf("output field route is not an address array")
	}

	return SubnetID{Root: root, Route: route}, nil
}

func fvmAddressFromMap(raw map[string]interface{}) (FvmAddress, error) {
	addrType, ok := raw["addrType"].(uint8)
	if !ok {
		return FvmAddress{}, fmt.Errorf("output field addrType is not a uint8")
	}

	payload, ok := raw["payload"].([]byte)
	if !ok {
		return FvmAddress{}, fmt.Errorf("output field payload is not bytes")
	}

	return FvmAddress{AddrType: addrType, Payload: payload}, nil
}

func ipcAddressFromMap(raw map[string]interface{}) (IPCAddress, error) {
	subnetRaw, err := mapField(raw, "subnetId")
	if err != nil {
		return IPCAddress{}, err
	}

	subnetID, err := subnetIDFromMap(subnetRaw)
	if err != nil {
		return IPCAddress{}, err
	}

	addrRaw, err := mapField(raw, "rawAddress")
	if err != nil {
		return IPCAddress{}, err
	}

	rawAddress, err := fvmAddressFromMap(addrRaw)
	if err != nil {
		return IPCAddress{}, err
	}

	return IPCAddress{SubnetID: subnetID, RawAddress: rawAddress}, nil
}

func storableMsgFromMap(raw map[string]interface{}) (StorableMsg, error) {
	fromRaw, err := mapField(raw, "from")
	if err != nil {
		return StorableMsg{}, err
	}

	from, err := ipcAddressFromMap(fromRaw)
	if err != nil {
		return StorableMsg{}, err
	}

	toRaw, err := mapField(raw, "to")
	if err != nil {
		return StorableMsg{}, err
	}

	to, err := ipcAddressFromMap(toRaw)
	if err != nil {
		return StorableMsg{}, err
	}

	value, ok := raw["value"].(*big.Int)
	if !ok {
		return StorableMsg{}, fmt.Errorf("output field value is not a uint256")
	}

	nonce, ok := raw["nonce"].(uint64)
	if !ok {
		return StorableMsg{}, fmt.Errorf("output field nonce is not a uint64")
	}

	method, ok := raw["method"].([4]byte)
	if !ok {
		return StorableMsg{}, fmt.Errorf("output field method is not bytes4")
	}

	params, ok := raw["params"].([]byte)
	if !ok {
		return StorableMsg{}, fmt.Errorf("output field params is not bytes")
	}

	return StorableMsg{
		From:   from,
		To:     to,
		Value:  value,
		Nonce:  nonce,
		Method: method,
		Params: params,
	}, nil
}

func crossMsgFromMap(raw map[string]interface{}) (CrossMsg, error) {
	messageRaw, err := mapField(raw, "message")
	if err != nil {
		return CrossMsg{}, err
	}

	message, err := storableMsgFromMap(messageRaw)
	if err != nil {
		return CrossMsg{}, err
	}

	wrapped, ok := raw["wrapped"].(bool)
	if !ok {
		return CrossMsg{}, fmt.Errorf("output field wrapped is not a bool")
	}

	return CrossMsg{Message: message, Wrapped: wrapped}, nil
}

func childCheckFromMap(raw map[string]interface{}) (ChildCheck, error) {
	sourceRaw, err := mapField(raw, "source")
	if err != nil {
		return ChildCheck{}, err
	}

	source, err := subnetIDFromMap(sourceRaw)
	if err != nil {
		return ChildCheck{}, err
	}

	rawChecks, ok := raw["checks"].([][32]byte)
	if !ok {
		return ChildCheck{}, fmt.Errorf("output field checks is not a bytes32 array")
	}

	checks := make([]types.Hash, len(rawChecks))
	for i, check := range rawChecks {
		checks[i] = check
	}

	return ChildCheck{Source: source, Checks: checks}, nil
}

func checkpointFromMap(raw map[string]interface{}) (*BottomUpCheckpoint, error) {
	sourceRaw, err := mapField(raw, "source")
	if err != nil {
		return nil, err
	}

	source, err := subnetIDFromMap(sourceRaw)
	if err != nil {
		return nil, err
	}

	epoch, ok := raw["epoch"].(uint64)
	if !ok {
		return nil, fmt.Errorf("output field epoch is not a uint64")
	}

	fee, ok := raw["fee"].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("output field fee is not a uint256")
	}

	crossMsgsRaw, ok := raw["crossMsgs"].([]map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("output field crossMsgs is not a tuple array")
	}

	crossMsgs := make([]CrossMsg, len(crossMsgsRaw))

	for i, msgRaw := range crossMsgsRaw {
		crossMsgs[i], err = crossMsgFromMap(msgRaw)
		if err != nil {
			return nil, err
		}
	}

	childrenRaw, ok := raw["children"].([]map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("output field children is not a tuple array")
	}

	children := make([]ChildCheck, len(childrenRaw))

	for i, childRaw := range childrenRaw {
		children[i], err = childCheckFromMap(childRaw)
		if err != nil {
			return nil, err
		}
	}

	prevHash, ok := raw["prevHash"].([32]byte)
	if !ok {
		return nil, fmt.Errorf("output field prevHash is not bytes32")
	}

	proof, ok := raw["proof"].([]byte)
	if !ok {
		return nil, fmt.Errorf("output field proof is not bytes")
	}

	return &BottomUpCheckpoint{
		Source:    source,
		Epoch:     epoch,
		Fee:       fee,
		CrossMsgs: crossMsgs,
		Children:  children,
		PrevHash:  prevHash,
		Proof:     proof,
	}, nil
}

// decodeCallOutput decodes the raw hex string a contract call returned into
// the method's named outputs
func decodeCallOutput(method *abi.Method, response string) (map[string]interface{}, error) {
	buf, err := hex.DecodeHex(response)
	if err != nil {
		return nil, fmt.Errorf("unable to decode hex response: %w", err)
	}

	decoded, err := method.Outputs.Decode(buf)
	if err != nil {
		return nil, err
	}

	output, ok := decoded.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("could not convert decoded outputs to map")
	}

	return output, nil
}
