package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consensus-shipyard/go-ipc-relay/types"
)

const testConfig = `
subnets:
  - id: /r31415926
    network_name: parent
    fvm:
      gateway_addr: f064
      jsonrpc_api_http: http://127.0.0.1:1234/rpc/v1
      auth_token: token
      accounts: [f01]
  - id: /r31415926/f0100
    network_name: child
    evm:
      provider_http: http://127.0.0.1:8545
      gateway_addr: "0x6be1ccf648c74800380d0520d797a170c808b624"
      registry_addr: "0x6be1ccf648c74800380d0520d797a170c808b624"
      accounts: ["0x6be1ccf648c74800380d0520d797a170c808b624"]
`

func TestConfigFromString(t *testing.T) {
	t.Parallel()

	config, err := FromString(testConfig)
	require.NoError(t, err)
	require.Len(t, config.Subnets, 2)

	parent := config.Subnets[0]
	assert.Equal(t, "/r31415926", parent.ID.String())
	assert.Equal(t, NetworkFVM, parent.NetworkType())
	require.NotNil(t, parent.FVM)
	assert.Equal(t, "http://127.0.0.1:1234/rpc/v1", parent.FVM.JSONRPCHTTP)

	childID, err := types.ParseSubnetID("/r31415926/f0100")
	require.NoError(t, err)

	child := config.Subnet(childID)
	require.NotNil(t, child)
	assert.Equal(t, NetworkEVM, child.NetworkType())

	unknown, err := types.ParseSubnetID("/r31415926/f0999")
	require.NoError(t, err)
	assert.Nil(t, config.Subnet(unknown))
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		config string
	}{
		{
			name: "no backend",
			config: `
subnets:
  - id: /r123
    network_name: broken
`,
		},
		{
			name: "both backends",
			config: `
subnets:
  - id: /r123
    network_name: broken
    fvm:
      jsonrpc_api_http: http://127.0.0.1:1234/rpc/v1
    evm:
      provider_http: http://127.0.0.1:8545
      gateway_addr: "0x6be1ccf648c74800380d0520d797a170c808b624"
`,
		},
		{
			name: "bad gateway address",
			config: `
subnets:
  - id: /r123
    network_name: broken
    evm:
      provider_http: http://127.0.0.1:8545
      gateway_addr: "0x123"
`,
		},
		{
			name: "duplicate subnet",
			config: `
subnets:
  - id: /r123
    network_name: one
    fvm:
      jsonrpc_api_http: http://127.0.0.1:1234/rpc/v1
  - id: /r123
    network_name: two
    fvm:
      jsonrpc_api_http: http://127.0.0.1:1234/rpc/v1
`,
		},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			_, err := FromString(c.config)
			require.Error(t, err)
		})
	}
}
