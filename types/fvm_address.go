package types

import (
	"bytes"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// AddressProtocol is the FVM address protocol tag
type AddressProtocol byte

const (
	AddressID        AddressProtocol = 0
	AddressSecp256k1 AddressProtocol = 1
	AddressActor     AddressProtocol = 2
	AddressBLS       AddressProtocol = 3
	AddressDelegated AddressProtocol = 4
)

const (
	// EthNamespace is the id of the namespace manager actor for EVM-compatible
	// delegated addresses
	EthNamespace uint64 = 10

	// PayloadHashLength is the payload size of secp256k1 and actor addresses
	PayloadHashLength = 20

	// MaxSubaddressLen is the maximum length of a delegated sub-address
	MaxSubaddressLen = 54

	checksumLength = 4
)

var addrEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// FvmAddress is the runtime-independent address form used by the native
// checkpoint model: a protocol tag plus a protocol-specific payload. ID
// addresses carry an actor id, delegated addresses a namespace and a
// variable-length sub-address, the remaining protocols a fixed-size hash.
type FvmAddress struct {
	protocol  AddressProtocol
	id        uint64
	namespace uint64
	payload   []byte
}

// NewIDAddress creates an address for the actor with the given id
func NewIDAddress(id uint64) FvmAddress {
	return FvmAddress{protocol: AddressID, id: id}
}

// NewSecp256k1Address creates an address from a secp256k1 public key hash
func NewSecp256k1Address(payload []byte) (FvmAddress, error) {
	if len(payload) != PayloadHashLength {
		return FvmAddress{}, fmt.Errorf("invalid secp256k1 payload length %d", len(payload))
	}

	return FvmAddress{protocol: AddressSecp256k1, payload: append([]byte{}, payload...)}, nil
}

// NewDelegatedAddress creates an address under the given namespace actor
func NewDelegatedAddress(namespace uint64, subAddr []byte) (FvmAddress, error) {
	if len(subAddr) > MaxSubaddressLen {
		return FvmAddress{}, fmt.Errorf("sub-address length %d exceeds maximum %d", len(subAddr), MaxSubaddressLen)
	}

	return FvmAddress{
		protocol:  AddressDelegated,
		namespace: namespace,
		payload:   append([]byte{}, subAddr...),
	}, nil
}

func (a FvmAddress) Protocol() AddressProtocol {
	return a.protocol
}

// ID returns the actor id of an ID address
func (a FvmAddress) ID() uint64 {
	return a.id
}

// Namespace returns the namespace actor id of a delegated address
func (a FvmAddress) Namespace() uint64 {
	return a.namespace
}

// SubAddress returns the raw sub-address bytes of a delegated address
func (a FvmAddress) SubAddress() []byte {
	return a.payload
}

// Payload returns the protocol-specific payload without the protocol tag
func (a FvmAddress) Payload() []byte {
	switch a.protocol {
	case AddressID:
		buf := make([]byte, binary.MaxVarintLen64)
		n := binary.PutUvarint(buf, a.id)

		return buf[:n]
	case AddressDelegated:
		buf := make([]byte, binary.MaxVarintLen64)
		n := binary.PutUvarint(buf, a.namespace)

		return append(buf[:n], a.payload...)
	default:
		return a.payload
	}
}

// Bytes returns the protocol tag followed by the payload
func (a FvmAddress) Bytes() []byte {
	return append([]byte{byte(a.protocol)}, a.Payload()...)
}

func (a FvmAddress) Equal(o FvmAddress) bool {
	return a.protocol == o.protocol &&
		a.id == o.id &&
		a.namespace == o.namespace &&
		bytes.Equal(a.payload, o.payload)
}

func (a FvmAddress) IsZero() bool {
	return a.protocol == AddressID && a.id == 0 && len(a.payload) == 0
}

// String renders the address in its textual form ("f0...", "f1...", "f4...")
func (a FvmAddress) String() string {
	switch a.protocol {
	case AddressID:
		return fmt.Sprintf("f0%d", a.id)
	case AddressDelegated:
		return fmt.Sprintf("f4%d%s%s", a.namespace, "f", addrEncoding.EncodeToString(
			append(append([]byte{}, a.payload...), addressChecksum(a)...)))
	default:
		return fmt.Sprintf("f%d%s", a.protocol, addrEncoding.EncodeToString(
			append(append([]byte{}, a.payload...), addressChecksum(a)...)))
	}
}

func (a FvmAddress) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *FvmAddress) UnmarshalText(input []byte) error {
	addr, err := ParseFvmAddress(string(input))
	if err != nil {
		return err
	}

	*a = addr

	return nil
}

// addressChecksum is the 4-byte blake2b digest over the binary address form
func addressChecksum(a FvmAddress) []byte {
	hasher, err := blake2b.New(checksumLength, nil)
	if err != nil {
		panic(err)
	}

	hasher.Write(a.Bytes())

	return hasher.Sum(nil)
}

// ParseFvmAddress parses the textual address form. Plain 0x-prefixed EVM
// addresses are accepted and mapped to their delegated form under the
// EVM namespace.
func ParseFvmAddress(input string) (FvmAddress, error) {
	if strings.HasPrefix(input, "0x") || strings.HasPrefix(input, "0X") {
		if err := IsValidAddress(input); err != nil {
			return FvmAddress{}, err
		}

		return NewDelegatedAddress(EthNamespace, StringToAddress(input).Bytes())
	}

	if len(input) < 3 {
		return FvmAddress{}, fmt.Errorf("address %q is too short", input)
	}

	if input[0] != 'f' && input[0] != 't' {
		return FvmAddress{}, fmt.Errorf("unknown address network prefix %q", input[0])
	}

	switch input[1] {
	case '0':
		id, err := strconv.ParseUint(input[2:], 10, 64)
		if err != nil {
			return FvmAddress{}, fmt.Errorf("invalid actor id in address %q: %w", input, err)
		}

		return NewIDAddress(id), nil
	case '1', '2', '3':
		protocol := AddressProtocol(input[1] - '0')

		payload, err := decodeAddressPayload(input[2:])
		if err != nil {
			return FvmAddress{}, fmt.Errorf("invalid address %q: %w", input, err)
		}

		addr := FvmAddress{protocol: protocol, payload: payload}
		if err := verifyChecksum(addr, input[2:]); err != nil {
			return FvmAddress{}, fmt.Errorf("invalid address %q: %w", input, err)
		}

		return addr, nil
	case '4':
		split := strings.IndexByte(input[2:], 'f')
		if split < 0 {
			return FvmAddress{}, fmt.Errorf("delegated address %q misses the namespace separator", input)
		}

		namespace, err := strconv.ParseUint(input[2:2+split], 10, 64)
		if err != nil {
			return FvmAddress{}, fmt.Errorf("invalid namespace in address %q: %w", input, err)
		}

		encoded := input[2+split+1:]

		subAddr, err := decodeAddressPayload(encoded)
		if err != nil {
			return FvmAddress{}, fmt.Errorf("invalid address %q: %w", input, err)
		}

		addr := FvmAddress{protocol: AddressDelegated, namespace: namespace, payload: subAddr}
		if err := verifyChecksum(addr, encoded); err != nil {
			return FvmAddress{}, fmt.Errorf("invalid address %q: %w", input, err)
		}

		return addr, nil
	default:
		return FvmAddress{}, fmt.Errorf("unknown address protocol %q", input[1])
	}
}

func decodeAddressPayload(encoded string) ([]byte, error) {
	decoded, err := addrEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	if len(decoded) < checksumLength {
		return nil, fmt.Errorf("payload too short")
	}

	return decoded[:len(decoded)-checksumLength], nil
}

func verifyChecksum(addr FvmAddress, encoded string) error {
	decoded, err := addrEncoding.DecodeString(encoded)
	if err != nil {
		return err
	}

	if !bytes.Equal(decoded[len(decoded)-checksumLength:], addressChecksum(addr)) {
		return fmt.Errorf("checksum mismatch")
	}

	return nil
}
