package relay

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/consensus-shipyard/go-ipc-relay/checkpoint"
	"github.com/consensus-shipyard/go-ipc-relay/config"
	"github.com/consensus-shipyard/go-ipc-relay/registry"
	"github.com/consensus-shipyard/go-ipc-relay/types"
)

const (
	configFlag    = "config"
	subnetFlag    = "subnet"
	epochFlag     = "epoch"
	validatorFlag = "validator"
	logLevelFlag  = "log-level"
)

type relayParams struct {
	configPath string
	subnet     string
	epoch      int64
	validator  string
	logLevel   string
}

var params = &relayParams{}

// newPool loads the config and connects every configured subnet
func (p *relayParams) newPool() (*registry.Pool, types.SubnetID, error) {
	cfg, err := config.FromFile(p.configPath)
	if err != nil {
		return nil, types.SubnetID{}, err
	}

	childID, err := types.ParseSubnetID(p.subnet)
	if err != nil {
		return nil, types.SubnetID{}, fmt.Errorf("invalid subnet id %q: %w", p.subnet, err)
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "ipc-relay",
		Level:  hclog.LevelFromString(p.logLevel),
		Output: os.Stderr,
	})

	pool, err := registry.NewPool(cfg, logger)
	if err != nil {
		return nil, types.SubnetID{}, err
	}

	return pool, childID, nil
}

// newManager connects the subnet pool and assembles the bottom-up manager for
// the requested child subnet
func (p *relayParams) newManager() (*checkpoint.BottomUpManager, error) {
	pool, childID, err := p.newPool()
	if err != nil {
		return nil, err
	}

	return pool.BottomUpManager(childID)
}

func (p *relayParams) parseValidator() (types.FvmAddress, error) {
	validator, err := types.ParseFvmAddress(p.validator)
	if err != nil {
		return types.FvmAddress{}, fmt.Errorf("invalid validator address %q: %w", p.validator, err)
	}

	return validator, nil
}
