// Package checkpoint implements the bottom-up checkpoint relay: the
// chain-agnostic checkpoint model, the capability interfaces over the two
// chain runtimes and the orchestrator that builds, completes and submits a
// checkpoint on the parent chain.
package checkpoint

import (
	"math/big"

	"github.com/consensus-shipyard/go-ipc-relay/types"
)

// BottomUpCheckpoint is the native bottom-up checkpoint, independent of chain
// specific representations. Some fields take different types in different
// runtimes (the previous-checkpoint reference is a cid on FVM but fixed bytes
// on EVM), so the relay works on this common form and converts at the
// boundaries.
type BottomUpCheckpoint struct {
	// Source is the subnet the checkpoint was taken in
	Source types.SubnetID

	// Proof is the runtime-specific proof blob, nil until populated
	Proof []byte

	// Epoch is the child chain height the checkpoint commits to
	Epoch int64

	// PrevCheck references the checkpoint committed at the previous period,
	// as opaque hash bytes. Nil until populated.
	PrevCheck []byte

	// Children carries the commitments relayed by descendant subnets
	Children []ChildCheck

	// CrossMsgs is the batch of cross-subnet messages anchored by the
	// checkpoint
	CrossMsgs BatchCrossMsgs

	// Sig is the submitting validator's signature
	Sig []byte
}

// ChildCheck is the commitment a descendant subnet contributed
type ChildCheck struct {
	Source types.SubnetID
	Checks [][]byte
}

// BatchCrossMsgs is a batch of cross-subnet messages with an aggregate fee
type BatchCrossMsgs struct {
	CrossMsgs []CrossMsg
	Fee       *big.Int
}

// CrossMsg is a message routed between addresses in different subnets
type CrossMsg struct {
	Msg     StorableMsg
	Wrapped bool
}

// StorableMsg is the payload of a cross-subnet message
type StorableMsg struct {
	From   types.IPCAddress
	To     types.IPCAddress
	Method uint64
	Params []byte
	Value  *big.Int
	Nonce  uint64
}

// FeeOrZero returns the aggregate fee, never nil
func (b *BatchCrossMsgs) FeeOrZero() *big.Int {
	if b.Fee == nil {
		return big.NewInt(0)
	}

	return b.Fee
}

// Copy returns a deep copy of the checkpoint
func (c *BottomUpCheckpoint) Copy() *BottomUpCheckpoint {
	cc := &BottomUpCheckpoint{
		Source:    c.Source,
		Epoch:     c.Epoch,
		Proof:     append([]byte(nil), c.Proof...),
		PrevCheck: append([]byte(nil), c.PrevCheck...),
		Sig:       append([]byte(nil), c.Sig...),
		CrossMsgs: BatchCrossMsgs{
			Fee: new(big.Int).Set(c.CrossMsgs.FeeOrZero()),
		},
	}

	for _, child := range c.Children {
		checks := make([][]byte, len(child.Checks))
		for i, check := range child.Checks {
			checks[i] = append([]byte(nil), check...)
		}

		cc.Children = append(cc.Children, ChildCheck{Source: child.Source, Checks: checks})
	}

	for _, msg := range c.CrossMsgs.CrossMsgs {
		copied := msg
		copied.Msg.Params = append([]byte(nil), msg.Msg.Params...)

		if msg.Msg.Value != nil {
			copied.Msg.Value = new(big.Int).Set(msg.Msg.Value)
		}

		cc.CrossMsgs.CrossMsgs = append(cc.CrossMsgs.CrossMsgs, copied)
	}

	return cc
}
