package evm

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/go-hclog"
	"github.com/umbracle/ethgo"

	"github.com/consensus-shipyard/go-ipc-relay/checkpoint"
	"github.com/consensus-shipyard/go-ipc-relay/types"
)

// maxAmountBits bounds amounts representable on the EVM side
const maxAmountBits = 256

func conversionError(field string, err error) error {
	return &checkpoint.ConversionError{Field: field, Err: err}
}

// FvmToEthAddress maps a native address onto a 20-byte EVM address. Only
// secp256k1 addresses and EVM-namespace delegated addresses with a 20-byte
// sub-address are representable.
func FvmToEthAddress(addr types.FvmAddress) (ethgo.Address, error) {
	switch addr.Protocol() {
	case types.AddressSecp256k1:
		return ethgo.Address(types.BytesToAddress(addr.Payload())), nil
	case types.AddressDelegated:
		if addr.Namespace() != types.EthNamespace {
			return ethgo.Address{}, fmt.Errorf("delegated address namespace %d is not the EVM namespace", addr.Namespace())
		}

		if len(addr.SubAddress()) != types.AddressLength {
			return ethgo.Address{}, fmt.Errorf("delegated sub-address has %d bytes, want %d",
				len(addr.SubAddress()), types.AddressLength)
		}

		return ethgo.Address(types.BytesToAddress(addr.SubAddress())), nil
	default:
		return ethgo.Address{}, fmt.Errorf("address protocol %d not representable as an EVM address", addr.Protocol())
	}
}

// EthToFvmAddress maps a 20-byte EVM address onto its native delegated form
// under the EVM namespace
func EthToFvmAddress(addr ethgo.Address) types.FvmAddress {
	// 20-byte sub-addresses never exceed the maximum length
	converted, _ := types.NewDelegatedAddress(types.EthNamespace, addr[:])

	return converted
}

// SubnetIDToEVM maps a subnet identity onto the contract form. Loss-free
// provided every hop of the route is representable as an EVM address.
func SubnetIDToEVM(id types.SubnetID) (SubnetID, error) {
	route := make([]ethgo.Address, len(id.Children()))

	for i, child := range id.Children() {
		converted, err := FvmToEthAddress(child)
		if err != nil {
			return SubnetID{}, conversionError("subnet route", err)
		}

		route[i] = converted
	}

	return SubnetID{Root: id.Root(), Route: route}, nil
}

// SubnetIDFromEVM maps the contract form back onto the native subnet identity
func SubnetIDFromEVM(id SubnetID) (types.SubnetID, error) {
	children := make([]types.FvmAddress, len(id.Route))
	for i, hop := range id.Route {
		children[i] = EthToFvmAddress(hop)
	}

	return types.NewSubnetID(id.Root, children), nil
}

// FvmAddressToEVM maps a native address onto the contract's tagged form.
// Secp256k1 payloads are carried raw; delegated addresses are ABI encoded as
// the (namespace, length, raw) tuple. Other protocols are unsupported.
func FvmAddressToEVM(addr types.FvmAddress) (FvmAddress, error) {
	switch addr.Protocol() {
	case types.AddressSecp256k1:
		return FvmAddress{
			AddrType: uint8(types.AddressSecp256k1),
			Payload:  append([]byte(nil), addr.Payload()...),
		}, nil
	case types.AddressDelegated:
		subAddr := addr.SubAddress()

		encoded, err := delegatedAddrABIType.Encode(map[string]interface{}{
			"addr": map[string]interface{}{
				"namespace": new(big.Int).SetUint64(addr.Namespace()),
				"length":    new(big.Int).SetUint64(uint64(len(subAddr))),
				"raw":       subAddr,
			},
		})
		if err != nil {
			return FvmAddress{}, conversionError("delegated address", err)
		}

		return FvmAddress{
			AddrType: uint8(types.AddressDelegated),
			Payload:  encoded,
		}, nil
	default:
		return FvmAddress{}, conversionError("address",
			fmt.Errorf("protocol %d not supported", addr.Protocol()))
	}
}

// FvmAddressFromEVM maps the contract's tagged address form back onto the
// native address
func FvmAddressFromEVM(addr FvmAddress) (types.FvmAddress, error) {
	switch types.AddressProtocol(addr.AddrType) {
	case types.AddressSecp256k1:
		converted, err := types.NewSecp256k1Address(addr.Payload)
		if err != nil {
			return types.FvmAddress{}, conversionError("address", err)
		}

		return converted, nil
	case types.AddressDelegated:
		decoded, err := delegatedAddrABIType.Decode(addr.Payload)
		if err != nil {
			return types.FvmAddress{}, conversionError("delegated address", err)
		}

		output, ok := decoded.(map[string]interface{})
		if !ok {
			return types.FvmAddress{}, conversionError("delegated address",
				fmt.Errorf("decoded payload is not a tuple"))
		}

		inner, err := mapField(output, "addr")
		if err != nil {
			return types.FvmAddress{}, conversionError("delegated address", err)
		}

		namespace, ok := inner["namespace"].(*big.Int)
		if !ok {
			return types.FvmAddress{}, conversionError("delegated address",
				fmt.Errorf("namespace is not a uint256"))
		}

		length, ok := inner["length"].(*big.Int)
		if !ok {
			return types.FvmAddress{}, conversionError("delegated address",
				fmt.Errorf("length is not a uint256"))
		}

		raw, ok := inner["raw"].([]byte)
		if !ok {
			return types.FvmAddress{}, conversionError("delegated address",
				fmt.Errorf("raw sub-address is not bytes"))
		}

		if length.Uint64() != uint64(len(raw)) {
			return types.FvmAddress{}, conversionError("delegated address",
				fmt.Errorf("sub-address length %d does not match payload size %d", length.Uint64(), len(raw)))
		}

		converted, err := types.NewDelegatedAddress(namespace.Uint64(), raw)
		if err != nil {
			return types.FvmAddress{}, conversionError("delegated address", err)
		}

		return converted, nil
	default:
		return types.FvmAddress{}, conversionError("address",
			fmt.Errorf("protocol %d not supported", addr.AddrType))
	}
}

// AmountToEVM maps a smallest-unit amount onto a 256-bit unsigned integer.
// Fails when the value does not fit.
func AmountToEVM(amount *big.Int) (*big.Int, error) {
	if amount == nil {
		return big.NewInt(0), nil
	}

	if amount.Sign() < 0 {
		return nil, conversionError("amount", fmt.Errorf("amount %s is negative", amount))
	}

	if amount.BitLen() > maxAmountBits {
		return nil, conversionError("amount", fmt.Errorf("amount %s exceeds %d bits", amount, maxAmountBits))
	}

	return new(big.Int).Set(amount), nil
}

// AmountFromEVM maps a 256-bit integer back onto the smallest-unit amount
func AmountFromEVM(amount *big.Int) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}

	return new(big.Int).Set(amount)
}

// MethodToEVM maps a native method number onto the 4-byte big-endian contract
// tag. Only the low 32 bits are retained; the truncation is an intentional
// compatibility constraint of the contract wire format.
func MethodToEVM(method uint64) [4]byte {
	truncated := uint32(method)

	return [4]byte{
		byte(truncated >> 24),
		byte(truncated >> 16),
		byte(truncated >> 8),
		byte(truncated),
	}
}

// MethodFromEVM maps the 4-byte contract tag back onto a method number
func MethodFromEVM(tag [4]byte) uint64 {
	return uint64(tag[0])<<24 | uint64(tag[1])<<16 | uint64(tag[2])<<8 | uint64(tag[3])
}

// checkToHash copies a check hash into a zero-initialized fixed buffer.
// Hashes longer than 32 bytes keep only their first 32 bytes.
func checkToHash(check []byte, logger hclog.Logger) types.Hash {
	var buf types.Hash

	if len(check) > types.HashLength {
		logger.Warn("check hash longer than 32 bytes, keeping the first 32",
			"size", len(check))
		check = check[:types.HashLength]
	}

	copy(buf[:], check)

	return buf
}

// IPCAddressToEVM maps a subnet-scoped address onto the contract form
func IPCAddressToEVM(addr types.IPCAddress) (IPCAddress, error) {
	subnetID, err := SubnetIDToEVM(addr.SubnetID)
	if err != nil {
		return IPCAddress{}, err
	}

	rawAddress, err := FvmAddressToEVM(addr.RawAddr)
	if err != nil {
		return IPCAddress{}, err
	}

	return IPCAddress{SubnetID: subnetID, RawAddress: rawAddress}, nil
}

// IPCAddressFromEVM maps the contract form back onto a subnet-scoped address
func IPCAddressFromEVM(addr IPCAddress) (types.IPCAddress, error) {
	subnetID, err := SubnetIDFromEVM(addr.SubnetID)
	if err != nil {
		return types.IPCAddress{}, err
	}

	rawAddr, err := FvmAddressFromEVM(addr.RawAddress)
	if err != nil {
		return types.IPCAddress{}, err
	}

	return types.IPCAddress{SubnetID: subnetID, RawAddr: rawAddr}, nil
}

// StorableMsgToEVM maps a cross-subnet message payload onto the contract form
func StorableMsgToEVM(msg checkpoint.StorableMsg) (StorableMsg, error) {
	from, err := IPCAddressToEVM(msg.From)
	if err != nil {
		return StorableMsg{}, conversionError("from address", err)
	}

	to, err := IPCAddressToEVM(msg.To)
	if err != nil {
		return StorableMsg{}, conversionError("to address", err)
	}

	value, err := AmountToEVM(msg.Value)
	if err != nil {
		return StorableMsg{}, err
	}

	return StorableMsg{
		From:   from,
		To:     to,
		Value:  value,
		Nonce:  msg.Nonce,
		Method: MethodToEVM(msg.Method),
		Params: append([]byte(nil), msg.Params...),
	}, nil
}

// StorableMsgFromEVM maps the contract form back onto the native message
// payload
func StorableMsgFromEVM(msg StorableMsg) (checkpoint.StorableMsg, error) {
	from, err := IPCAddressFromEVM(msg.From)
	if err != nil {
		return checkpoint.StorableMsg{}, conversionError("from address", err)
	}

	to, err := IPCAddressFromEVM(msg.To)
	if err != nil {
		return checkpoint.StorableMsg{}, conversionError("to address", err)
	}

	return checkpoint.StorableMsg{
		From:   from,
		To:     to,
		Method: MethodFromEVM(msg.Method),
		Params: append([]byte(nil), msg.Params...),
		Value:  AmountFromEVM(msg.Value),
		Nonce:  msg.Nonce,
	}, nil
}

// CrossMsgToEVM maps a cross-subnet message onto the contract form
func CrossMsgToEVM(msg checkpoint.CrossMsg) (CrossMsg, error) {
	message, err := StorableMsgToEVM(msg.Msg)
	if err != nil {
		return CrossMsg{}, err
	}

	return CrossMsg{Message: message, Wrapped: msg.Wrapped}, nil
}

// CrossMsgFromEVM maps the contract form back onto a cross-subnet message
func CrossMsgFromEVM(msg CrossMsg) (checkpoint.CrossMsg, error) {
	message, err := StorableMsgFromEVM(msg.Message)
	if err != nil {
		return checkpoint.CrossMsg{}, err
	}

	return checkpoint.CrossMsg{Msg: message, Wrapped: msg.Wrapped}, nil
}

// ChildCheckToEVM maps a descendant commitment onto the contract form
func ChildCheckToEVM(check checkpoint.ChildCheck, logger hclog.Logger) (ChildCheck, error) {
	source, err := SubnetIDToEVM(check.Source)
	if err != nil {
		return ChildCheck{}, err
	}

	checks := make([]types.Hash, len(check.Checks))
	for i, c := range check.Checks {
		checks[i] = checkToHash(c, logger)
	}

	return ChildCheck{Source: source, Checks: checks}, nil
}

// ChildCheckFromEVM maps the contract form back onto a descendant commitment
func ChildCheckFromEVM(check ChildCheck) (checkpoint.ChildCheck, error) {
	source, err := SubnetIDFromEVM(check.Source)
	if err != nil {
		return checkpoint.ChildCheck{}, err
	}

	checks := make([][]byte, len(check.Checks))
	for i, c := range check.Checks {
		checks[i] = c.Bytes()
	}

	return checkpoint.ChildCheck{Source: source, Checks: checks}, nil
}

// CheckpointToEVM maps a native checkpoint onto the gateway contract form.
// An absent proof becomes empty bytes and an absent previous reference the
// all-zero hash; populated fields convert verbatim.
func CheckpointToEVM(c *checkpoint.BottomUpCheckpoint, logger hclog.Logger) (*BottomUpCheckpoint, error) {
	source, err := SubnetIDToEVM(c.Source)
	if err != nil {
		return nil, err
	}

	if c.Epoch < 0 {
		return nil, conversionError("epoch", fmt.Errorf("epoch %d is negative", c.Epoch))
	}

	fee, err := AmountToEVM(c.CrossMsgs.FeeOrZero())
	if err != nil {
		return nil, conversionError("fee", err)
	}

	crossMsgs := make([]CrossMsg, len(c.CrossMsgs.CrossMsgs))

	for i, msg := range c.CrossMsgs.CrossMsgs {
		crossMsgs[i], err = CrossMsgToEVM(msg)
		if err != nil {
			return nil, conversionError("cross msg", err)
		}
	}

	children := make([]ChildCheck, len(c.Children))

	for i, child := range c.Children {
		children[i], err = ChildCheckToEVM(child, logger)
		if err != nil {
			return nil, conversionError("child check", err)
		}
	}

	prevHash := types.ZeroHash
	if c.PrevCheck != nil {
		prevHash = checkToHash(c.PrevCheck, logger)
	}

	proof := []byte{}
	if c.Proof != nil {
		proof = append([]byte(nil), c.Proof...)
	}

	return &BottomUpCheckpoint{
		Source:    source,
		Epoch:     uint64(c.Epoch),
		Fee:       fee,
		CrossMsgs: crossMsgs,
		Children:  children,
		PrevHash:  prevHash,
		Proof:     proof,
	}, nil
}

// CheckpointFromEVM maps the gateway contract form back onto the native
// checkpoint. The all-zero previous hash maps back to an absent reference.
func CheckpointFromEVM(c *BottomUpCheckpoint) (*checkpoint.BottomUpCheckpoint, error) {
	source, err := SubnetIDFromEVM(c.Source)
	if err != nil {
		return nil, err
	}

	crossMsgs := make([]checkpoint.CrossMsg, len(c.CrossMsgs))

	for i, msg := range c.CrossMsgs {
		crossMsgs[i], err = CrossMsgFromEVM(msg)
		if err != nil {
			return nil, conversionError("cross msg", err)
		}
	}

	children := make([]checkpoint.ChildCheck, len(c.Children))

	for i, child := range c.Children {
		children[i], err = ChildCheckFromEVM(child)
		if err != nil {
			return nil, conversionError("child check", err)
		}
	}

	var prevCheck []byte
	if !types.EmptyHash(c.PrevHash) {
		prevCheck = c.PrevHash.Bytes()
	}

	return &checkpoint.BottomUpCheckpoint{
		Source:    source,
		Proof:     append([]byte(nil), c.Proof...),
		Epoch:     int64(c.Epoch),
		PrevCheck: prevCheck,
		Children:  children,
		CrossMsgs: checkpoint.BatchCrossMsgs{
			CrossMsgs: crossMsgs,
			Fee:       AmountFromEVM(c.Fee),
		},
	}, nil
}
