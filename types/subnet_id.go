package types

import (
	"fmt"
	"strconv"
	"strings"
)

// RootSubnetPrefix tags the root network id within a subnet path
const RootSubnetPrefix = "/r"

// SubnetID identifies a subnet in the hierarchy: the root network chain id
// followed by the route of subnet actor addresses, parent to child.
type SubnetID struct {
	root     uint64
	children []FvmAddress
}

// NewSubnetID assembles a subnet id from the root chain id and the route of
// subnet actors
func NewSubnetID(root uint64, children []FvmAddress) SubnetID {
	return SubnetID{root: root, children: children}
}

// NewRootSubnetID is the id of the root network itself
func NewRootSubnetID(root uint64) SubnetID {
	return SubnetID{root: root}
}

// ParseSubnetID parses the path form, e.g. "/r31415926/f0100/f0101"
func ParseSubnetID(input string) (SubnetID, error) {
	if !strings.HasPrefix(input, RootSubnetPrefix) {
		return SubnetID{}, fmt.Errorf("subnet id %q does not start with %q", input, RootSubnetPrefix)
	}

	segments := strings.Split(input[len(RootSubnetPrefix):], "/")

	root, err := strconv.ParseUint(segments[0], 10, 64)
	if err != nil {
		return SubnetID{}, fmt.Errorf("invalid root network id in %q: %w", input, err)
	}

	children := make([]FvmAddress, 0, len(segments)-1)

	for _, segment := range segments[1:] {
		if segment == "" {
			continue
		}

		child, err := ParseFvmAddress(segment)
		if err != nil {
			return SubnetID{}, fmt.Errorf("invalid child actor in subnet id %q: %w", input, err)
		}

		children = append(children, child)
	}

	return SubnetID{root: root, children: children}, nil
}

// Root returns the root network chain id
func (s SubnetID) Root() uint64 {
	return s.root
}

// Children returns the route of subnet actor addresses, parent to child
func (s SubnetID) Children() []FvmAddress {
	return s.children
}

// Actor returns the subnet actor address of the subnet itself, i.e. the last
// hop of the route. The root network has no actor.
func (s SubnetID) Actor() (FvmAddress, bool) {
	if len(s.children) == 0 {
		return FvmAddress{}, false
	}

	return s.children[len(s.children)-1], true
}

// Parent returns the id of the parent subnet. The second return value is
// false for the root network, which has no parent.
func (s SubnetID) Parent() (SubnetID, bool) {
	if len(s.children) == 0 {
		return SubnetID{}, false
	}

	return SubnetID{root: s.root, children: s.children[:len(s.children)-1]}, true
}

// IsRoot checks whether the id names the root network
func (s SubnetID) IsRoot() bool {
	return len(s.children) == 0
}

func (s SubnetID) Equal(o SubnetID) bool {
	if s.root != o.root || len(s.children) != len(o.children) {
		return false
	}

	for i := range s.children {
		if !s.children[i].Equal(o.children[i]) {
			return false
		}
	}

	return true
}

func (s SubnetID) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s%d", RootSubnetPrefix, s.root)

	for _, child := range s.children {
		sb.WriteByte('/')
		sb.WriteString(child.String())
	}

	return sb.String()
}

func (s SubnetID) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SubnetID) UnmarshalText(input []byte) error {
	id, err := ParseSubnetID(string(input))
	if err != nil {
		return err
	}

	*s = id

	return nil
}

// IPCAddress is an address scoped to a subnet in the hierarchy
type IPCAddress struct {
	SubnetID SubnetID
	RawAddr  FvmAddress
}

func (a IPCAddress) String() string {
	return fmt.Sprintf("%s:%s", a.SubnetID, a.RawAddr)
}

func (a IPCAddress) Equal(o IPCAddress) bool {
	return a.SubnetID.Equal(o.SubnetID) && a.RawAddr.Equal(o.RawAddr)
}
