// Package lotus binds the checkpoint relay to an FVM runtime reached over a
// Lotus-style JSON-RPC endpoint. The wire structs mirror the actor state
// JSON: case-sensitive PascalCase fields, content identifiers as {"/": ...}
// maps, token amounts as decimal strings.
package lotus

import (
	"fmt"
	"math/big"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/consensus-shipyard/go-ipc-relay/checkpoint"
	"github.com/consensus-shipyard/go-ipc-relay/types"
)

// CIDMap is the JSON form of a content identifier
type CIDMap struct {
	Cid string `json:"/"`
}

func NewCIDMap(c cid.Cid) CIDMap {
	return CIDMap{Cid: c.String()}
}

func (m CIDMap) Decode() (cid.Cid, error) {
	c, err := cid.Decode(m.Cid)
	if err != nil {
		return cid.Undef, fmt.Errorf("malformed content id %q: %w", m.Cid, err)
	}

	return c, nil
}

// RawCID derives a content identifier committing to the given bytes,
// blake2b-256 over a raw block
func RawCID(data []byte) (cid.Cid, error) {
	mh, err := multihash.Sum(data, multihash.BLAKE2B_MIN+31, -1)
	if err != nil {
		return cid.Undef, err
	}

	return cid.NewCidV1(cid.Raw, mh), nil
}

// SubnetIDMap is the JSON form of a subnet id: the parent path and the subnet
// actor address
type SubnetIDMap struct {
	Parent string `json:"Parent"`
	Actor  string `json:"Actor"`
}

func NewSubnetIDMap(id types.SubnetID) (SubnetIDMap, error) {
	parent, ok := id.Parent()
	if !ok {
		return SubnetIDMap{}, fmt.Errorf("subnet %s has no parent", id)
	}

	actor, _ := id.Actor()

	return SubnetIDMap{Parent: parent.String(), Actor: actor.String()}, nil
}

func (m SubnetIDMap) ToSubnetID() (types.SubnetID, error) {
	parent, err := types.ParseSubnetID(m.Parent)
	if err != nil {
		return types.SubnetID{}, err
	}

	actor, err := types.ParseFvmAddress(m.Actor)
	if err != nil {
		return types.SubnetID{}, fmt.Errorf("malformed subnet actor %q: %w", m.Actor, err)
	}

	children := append([]types.FvmAddress(nil), parent.Children()...)

	return types.NewSubnetID(parent.Root(), append(children, actor)), nil
}

// IPCAddressMap is the JSON form of a subnet-scoped address
type IPCAddressMap struct {
	SubnetID   SubnetIDMap `json:"SubnetId"`
	RawAddress string      `json:"RawAddress"`
}

func NewIPCAddressMap(addr types.IPCAddress) (IPCAddressMap, error) {
	subnetID, err := NewSubnetIDMap(addr.SubnetID)
	if err != nil {
		return IPCAddressMap{}, err
	}

	return IPCAddressMap{SubnetID: subnetID, RawAddress: addr.RawAddr.String()}, nil
}

func (m IPCAddressMap) ToIPCAddress() (types.IPCAddress, error) {
	subnetID, err := m.SubnetID.ToSubnetID()
	if err != nil {
		return types.IPCAddress{}, err
	}

	rawAddr, err := types.ParseFvmAddress(m.RawAddress)
	if err != nil {
		return types.IPCAddress{}, fmt.Errorf("malformed raw address %q: %w", m.RawAddress, err)
	}

	return types.IPCAddress{SubnetID: subnetID, RawAddr: rawAddr}, nil
}

// StorableMsgWrapper is the JSON form of a cross-subnet message payload.
// Params travel base64 encoded, the value as a decimal string of the smallest
// unit.
type StorableMsgWrapper struct {
	From   IPCAddressMap `json:"From"`
	To     IPCAddressMap `json:"To"`
	Method uint64        `json:"Method"`
	Params []byte        `json:"Params"`
	Value  string        `json:"Value"`
	Nonce  uint64        `json:"Nonce"`
}

// CrossMsgWrapper is the JSON form of a cross-subnet message
type CrossMsgWrapper struct {
	Msg     StorableMsgWrapper `json:"Msg"`
	Wrapped bool               `json:"Wrapped"`
}

// BatchCrossMsgWrapper is the JSON form of a cross-message batch
type BatchCrossMsgWrapper struct {
	CrossMsgs []CrossMsgWrapper `json:"CrossMsgs,omitempty"`
	Fee       string            `json:"Fee"`
}

// CheckData is the JSON form of a descendant subnet's commitment
type CheckData struct {
	Source SubnetIDMap `json:"Source"`
	Checks []CIDMap    `json:"Checks"`
}

// CheckpointData is the JSON form of the checkpoint body. Proof, children,
// previous reference and the cross-message batch are all optional on the
// wire: a template fresh off the gateway carries none of them.
type CheckpointData struct {
	Source    SubnetIDMap           `json:"Source"`
	Proof     []byte                `json:"Proof,omitempty"`
	Epoch     int64                 `json:"Epoch"`
	Children  []CheckData           `json:"Children,omitempty"`
	PrevCheck *CIDMap               `json:"PrevCheck,omitempty"`
	CrossMsgs *BatchCrossMsgWrapper `json:"CrossMsgs,omitempty"`
}

// BottomUpCheckpointResponse is the JSON form of a full checkpoint
type BottomUpCheckpointResponse struct {
	Data CheckpointData `json:"Data"`
	Sig  []byte         `json:"Sig,omitempty"`
}

// Validator is one entry of an actor validator set
type Validator struct {
	Addr    string `json:"addr"`
	NetAddr string `json:"net_addr"`
	Weight  string `json:"weight"`
}

// ValidatorSet is the subnet actor's validator set. Unlike the rest of the
// actor state this nests under snake_case keys.
type ValidatorSet struct {
	Validators          []Validator `json:"validators,omitempty"`
	ConfigurationNumber uint64      `json:"configuration_number"`
}

// IPCReadGatewayStateResponse is the gateway actor state, restricted to the
// fields the relay needs
type IPCReadGatewayStateResponse struct {
	CheckPeriod         int64  `json:"CheckPeriod"`
	AppliedTopdownNonce uint64 `json:"AppliedTopdownNonce"`
}

// IPCReadSubnetActorStateResponse is the subnet actor state, restricted to
// the fields the relay needs
type IPCReadSubnetActorStateResponse struct {
	CheckPeriod             int64        `json:"CheckPeriod"`
	ValidatorSet            ValidatorSet `json:"ValidatorSet"`
	MinValidators           uint64       `json:"MinValidators"`
	LastVotingExecutedEpoch int64        `json:"LastVotingExecutedEpoch"`
}

// IPCGetPrevCheckpointForChildResponse carries the content id of the last
// committed checkpoint of a child subnet, absent when none was committed yet
type IPCGetPrevCheckpointForChildResponse struct {
	CID *CIDMap `json:"CID,omitempty"`
}

// Votes lists the validators that voted for a checkpoint submission
type Votes struct {
	Validators []string `json:"Validators"`
}

func parseTokenAmount(input string) (*big.Int, error) {
	if input == "" {
		return big.NewInt(0), nil
	}

	amount, ok := new(big.Int).SetString(input, 10)
	if !ok {
		return nil, fmt.Errorf("malformed token amount %q", input)
	}

	return amount, nil
}

func (w *StorableMsgWrapper) toNative() (checkpoint.StorableMsg, error) {
	from, err := w.From.ToIPCAddress()
	if err != nil {
		return checkpoint.StorableMsg{}, err
	}

	to, err := w.To.ToIPCAddress()
	if err != nil {
		return checkpoint.StorableMsg{}, err
	}

	value, err := parseTokenAmount(w.Value)
	if err != nil {
		return checkpoint.StorableMsg{}, err
	}

	return checkpoint.StorableMsg{
		From:   from,
		To:     to,
		Method: w.Method,
		Params: w.Params,
		Value:  value,
		Nonce:  w.Nonce,
	}, nil
}

func (w *BatchCrossMsgWrapper) toNative() (checkpoint.BatchCrossMsgs, error) {
	fee, err := parseTokenAmount(w.Fee)
	if err != nil {
		return checkpoint.BatchCrossMsgs{}, err
	}

	crossMsgs := make([]checkpoint.CrossMsg, len(w.CrossMsgs))

	for i, wrapper := range w.CrossMsgs {
		msg, err := wrapper.Msg.toNative()
		if err != nil {
			return checkpoint.BatchCrossMsgs{}, err
		}

		crossMsgs[i] = checkpoint.CrossMsg{Msg: msg, Wrapped: wrapper.Wrapped}
	}

	return checkpoint.BatchCrossMsgs{CrossMsgs: crossMsgs, Fee: fee}, nil
}

func (c *CheckData) toNative() (checkpoint.ChildCheck, error) {
	source, err := c.Source.ToSubnetID()
	if err != nil {
		return checkpoint.ChildCheck{}, err
	}

	checks := make([][]byte, len(c.Checks))

	for i, check := range c.Checks {
		decoded, err := check.Decode()
		if err != nil {
			return checkpoint.ChildCheck{}, err
		}

		checks[i] = decoded.Bytes()
	}

	return checkpoint.ChildCheck{Source: source, Checks: checks}, nil
}

// ToNative maps the wire checkpoint onto the native model. Absent optional
// fields map to their native absence forms: nil proof, nil previous
// reference, empty children and an empty zero-fee batch.
func (r *BottomUpCheckpointResponse) ToNative() (*checkpoint.BottomUpCheckpoint, error) {
	source, err := r.Data.Source.ToSubnetID()
	if err != nil {
		return nil, err
	}

	var prevCheck []byte

	if r.Data.PrevCheck != nil {
		decoded, err := r.Data.PrevCheck.Decode()
		if err != nil {
			return nil, err
		}

		prevCheck = decoded.Bytes()
	}

	children := make([]checkpoint.ChildCheck, len(r.Data.Children))

	for i, child := range r.Data.Children {
		children[i], err = child.toNative()
		if err != nil {
			return nil, err
		}
	}

	crossMsgs := checkpoint.BatchCrossMsgs{Fee: big.NewInt(0)}

	if r.Data.CrossMsgs != nil {
		crossMsgs, err = r.Data.CrossMsgs.toNative()
		if err != nil {
			return nil, err
		}
	}

	return &checkpoint.BottomUpCheckpoint{
		Source:    source,
		Proof:     r.Data.Proof,
		Epoch:     r.Data.Epoch,
		PrevCheck: prevCheck,
		Children:  children,
		CrossMsgs: crossMsgs,
		Sig:       r.Sig,
	}, nil
}

// NewCheckpointResponse maps a native checkpoint onto the wire form, the
// exact inverse of ToNative
func NewCheckpointResponse(c *checkpoint.BottomUpCheckpoint) (*BottomUpCheckpointResponse, error) {
	source, err := NewSubnetIDMap(c.Source)
	if err != nil {
		return nil, err
	}

	var prevCheck *CIDMap

	if len(c.PrevCheck) > 0 {
		decoded, err := cid.Cast(c.PrevCheck)
		if err != nil {
			return nil, fmt.Errorf("previous reference is not a content id: %w", err)
		}

		m := NewCIDMap(decoded)
		prevCheck = &m
	}

	children := make([]CheckData, len(c.Children))

	for i, child := range c.Children {
		childSource, err := NewSubnetIDMap(child.Source)
		if err != nil {
			return nil, err
		}

		checks := make([]CIDMap, len(child.Checks))

		for j, check := range child.Checks {
			decoded, err := cid.Cast(check)
			if err != nil {
				return nil, fmt.Errorf("child check is not a content id: %w", err)
			}

			checks[j] = NewCIDMap(decoded)
		}

		children[i] = CheckData{Source: childSource, Checks: checks}
	}

	crossMsgs := make([]CrossMsgWrapper, len(c.CrossMsgs.CrossMsgs))

	for i, msg := range c.CrossMsgs.CrossMsgs {
		from, err := NewIPCAddressMap(msg.Msg.From)
		if err != nil {
			return nil, err
		}

		to, err := NewIPCAddressMap(msg.Msg.To)
		if err != nil {
			return nil, err
		}

		value := "0"
		if msg.Msg.Value != nil {
			value = msg.Msg.Value.String()
		}

		crossMsgs[i] = CrossMsgWrapper{
			Msg: StorableMsgWrapper{
				From:   from,
				To:     to,
				Method: msg.Msg.Method,
				Params: msg.Msg.Params,
				Value:  value,
				Nonce:  msg.Msg.Nonce,
			},
			Wrapped: msg.Wrapped,
		}
	}

	var batch *BatchCrossMsgWrapper

	if len(crossMsgs) > 0 || c.CrossMsgs.Fee != nil {
		batch = &BatchCrossMsgWrapper{
			CrossMsgs: crossMsgs,
			Fee:       c.CrossMsgs.FeeOrZero().String(),
		}
	}

	return &BottomUpCheckpointResponse{
		Data: CheckpointData{
			Source:    source,
			Proof:     c.Proof,
			Epoch:     c.Epoch,
			Children:  children,
			PrevCheck: prevCheck,
			CrossMsgs: batch,
		},
		Sig: c.Sig,
	}, nil
}
