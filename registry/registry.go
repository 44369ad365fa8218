// Package registry keeps one live connection per configured subnet and
// assembles checkpoint managers out of them
package registry

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/wallet"

	"github.com/consensus-shipyard/go-ipc-relay/checkpoint"
	"github.com/consensus-shipyard/go-ipc-relay/config"
	"github.com/consensus-shipyard/go-ipc-relay/evm"
	"github.com/consensus-shipyard/go-ipc-relay/helper/hex"
	"github.com/consensus-shipyard/go-ipc-relay/lotus"
	"github.com/consensus-shipyard/go-ipc-relay/txrelayer"
	"github.com/consensus-shipyard/go-ipc-relay/types"
)

// Connection is a configured subnet with its chain handler attached
type Connection struct {
	subnet  *config.Subnet
	handler checkpoint.BottomUpHandler
}

func (c *Connection) Subnet() *config.Subnet {
	return c.subnet
}

func (c *Connection) Handler() checkpoint.BottomUpHandler {
	return c.handler
}

// Pool holds the connections of all configured subnets, keyed by subnet id.
// It is built once from the config and read-only afterwards.
type Pool struct {
	connections map[string]*Connection
	logger      hclog.Logger
}

func NewPool(cfg *config.Config, logger hclog.Logger) (*Pool, error) {
	connections := make(map[string]*Connection, len(cfg.Subnets))

	for _, subnet := range cfg.Subnets {
		handler, err := newHandler(subnet, logger)
		if err != nil {
			return nil, fmt.Errorf("cannot connect subnet %s: %w", subnet.ID, err)
		}

		connections[subnet.ID.String()] = &Connection{subnet: subnet, handler: handler}

		logger.Info("subnet connected", "subnet", subnet.ID, "network", subnet.NetworkType())
	}

	return &Pool{connections: connections, logger: logger}, nil
}

func newHandler(subnet *config.Subnet, logger hclog.Logger) (checkpoint.BottomUpHandler, error) {
	switch subnet.NetworkType() {
	case config.NetworkEVM:
		relayer, err := txrelayer.NewTxRelayer(txrelayer.WithIPAddress(subnet.EVM.ProviderHTTP))
		if err != nil {
			return nil, err
		}

		key, err := readKey(subnet.EVM.PrivateKey)
		if err != nil {
			return nil, err
		}

		return evm.NewHandler(subnet, relayer, key, logger)
	case config.NetworkFVM:
		client := lotus.NewJSONRPCClient(subnet.FVM.JSONRPCHTTP, subnet.FVM.AuthToken)

		return lotus.NewHandler(subnet, client, logger)
	default:
		return nil, fmt.Errorf("unknown network type %q", subnet.NetworkType())
	}
}

func readKey(privateKey string) (ethgo.Key, error) {
	if privateKey == "" {
		return nil, fmt.Errorf("no private key configured")
	}

	raw, err := hex.DecodeHex(privateKey)
	if err != nil {
		return nil, fmt.Errorf("malformed private key: %w", err)
	}

	key, err := wallet.NewWalletFromPrivKey(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return key, nil
}

// Connection returns the live connection of the subnet, if configured
func (p *Pool) Connection(id types.SubnetID) (*Connection, bool) {
	connection, ok := p.connections[id.String()]

	return connection, ok
}

// BottomUpManager wires the parent and child connections into a bottom-up
// checkpoint manager for the child subnet
func (p *Pool) BottomUpManager(child types.SubnetID) (*checkpoint.BottomUpManager, error) {
	parentID, ok := child.Parent()
	if !ok {
		return nil, fmt.Errorf("subnet %s has no parent to checkpoint to", child)
	}

	parent, ok := p.Connection(parentID)
	if !ok {
		return nil, fmt.Errorf("parent subnet %s is not configured", parentID)
	}

	childConn, ok := p.Connection(child)
	if !ok {
		return nil, fmt.Errorf("subnet %s is not configured", child)
	}

	return checkpoint.NewBottomUpManager(
		parent.Subnet(),
		childConn.Subnet(),
		parent.Handler(),
		childConn.Handler(),
		p.logger,
	)
}
