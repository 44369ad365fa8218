// Package config reads the relay configuration file: the set of subnets the
// agent is connected to, each backed either by an FVM node endpoint or by an
// EVM provider with the gateway contracts deployed.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/consensus-shipyard/go-ipc-relay/types"
)

// NetworkType selects the chain runtime a subnet runs on
type NetworkType string

const (
	NetworkFVM NetworkType = "fvm"
	NetworkEVM NetworkType = "evm"
)

// Config is the top-level configuration
type Config struct {
	Subnets []*Subnet `yaml:"subnets"`
}

// Subnet is the configuration of a single subnet connection
type Subnet struct {
	ID          types.SubnetID `yaml:"id"`
	NetworkName string         `yaml:"network_name"`
	FVM         *FVMSubnet     `yaml:"fvm,omitempty"`
	EVM         *EVMSubnet     `yaml:"evm,omitempty"`
}

// FVMSubnet configures a subnet reachable through an FVM node JSON-RPC API
type FVMSubnet struct {
	GatewayAddr string   `yaml:"gateway_addr"`
	JSONRPCHTTP string   `yaml:"jsonrpc_api_http"`
	AuthToken   string   `yaml:"auth_token,omitempty"`
	Accounts    []string `yaml:"accounts,omitempty"`
}

// EVMSubnet configures a subnet reachable through an EVM provider
type EVMSubnet struct {
	ProviderHTTP string   `yaml:"provider_http"`
	GatewayAddr  string   `yaml:"gateway_addr"`
	RegistryAddr string   `yaml:"registry_addr,omitempty"`
	PrivateKey   string   `yaml:"private_key,omitempty"`
	Accounts     []string `yaml:"accounts,omitempty"`
}

// NetworkType reports which runtime backs the subnet
func (s *Subnet) NetworkType() NetworkType {
	if s.EVM != nil {
		return NetworkEVM
	}

	return NetworkFVM
}

// FromString parses a YAML configuration document
func FromString(content string) (*Config, error) {
	config := &Config{}
	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// FromFile reads the YAML configuration file at the given path
func FromFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return FromString(string(content))
}

// Validate checks every subnet entry and aggregates all violations
func (c *Config) Validate() error {
	var errs *multierror.Error

	seen := map[string]struct{}{}

	for _, subnet := range c.Subnets {
		id := subnet.ID.String()

		if _, ok := seen[id]; ok {
			errs = multierror.Append(errs, fmt.Errorf("subnet %s configured twice", id))
		}

		seen[id] = struct{}{}

		if subnet.FVM == nil && subnet.EVM == nil {
			errs = multierror.Append(errs, fmt.Errorf("subnet %s has neither fvm nor evm backend", id))
		}

		if subnet.FVM != nil && subnet.EVM != nil {
			errs = multierror.Append(errs, fmt.Errorf("subnet %s has both fvm and evm backends", id))
		}

		if subnet.FVM != nil && subnet.FVM.JSONRPCHTTP == "" {
			errs = multierror.Append(errs, fmt.Errorf("subnet %s misses the fvm jsonrpc endpoint", id))
		}

		if subnet.EVM != nil {
			if subnet.EVM.ProviderHTTP == "" {
				errs = multierror.Append(errs, fmt.Errorf("subnet %s misses the evm provider endpoint", id))
			}

			if err := types.IsValidAddress(subnet.EVM.GatewayAddr); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("subnet %s gateway address: %w", id, err))
			}
		}
	}

	return errs.ErrorOrNil()
}

// Subnet returns the configuration of the given subnet, or nil when the
// subnet is not configured
func (c *Config) Subnet(id types.SubnetID) *Subnet {
	for _, subnet := range c.Subnets {
		if subnet.ID.Equal(id) {
			return subnet
		}
	}

	return nil
}
