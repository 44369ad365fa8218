package lotus

import (
	"fmt"

	rpcc "github.com/ybbus/jsonrpc"

	"github.com/consensus-shipyard/go-ipc-relay/types"
)

// TipSet is a chain tipset, restricted to the fields the relay needs
type TipSet struct {
	Cids   []CIDMap `json:"Cids"`
	Height int64    `json:"Height"`
}

// Message is an FVM message in its JSON form
type Message struct {
	Version    uint64 `json:"Version"`
	To         string `json:"To"`
	From       string `json:"From"`
	Nonce      uint64 `json:"Nonce"`
	Value      string `json:"Value"`
	GasLimit   int64  `json:"GasLimit"`
	GasFeeCap  string `json:"GasFeeCap"`
	GasPremium string `json:"GasPremium"`
	Method     uint64 `json:"Method"`
	Params     []byte `json:"Params,omitempty"`
}

// SignedMessageResponse is what the message pool returns for a pushed
// message
type SignedMessageResponse struct {
	Message Message `json:"Message"`
	CID     CIDMap  `json:"CID"`
}

// MessageReceipt is the execution result of a message
type MessageReceipt struct {
	ExitCode int64  `json:"ExitCode"`
	Return   []byte `json:"Return,omitempty"`
	GasUsed  int64  `json:"GasUsed"`
}

// MsgLookup locates an executed message on chain
type MsgLookup struct {
	Receipt MessageReceipt `json:"Receipt"`
	Height  int64          `json:"Height"`
}

// Client is the subset of the Lotus API the relay depends on
type Client interface {
	// ChainHead returns the current head tipset
	ChainHead() (*TipSet, error)
	// ReadGatewayState reads the gateway actor state
	ReadGatewayState(gateway types.FvmAddress) (*IPCReadGatewayStateResponse, error)
	// ReadSubnetActorState reads the subnet actor state of the given subnet
	ReadSubnetActorState(subnet types.SubnetID) (*IPCReadSubnetActorStateResponse, error)
	// CheckpointTemplate fetches the gateway's checkpoint template at the epoch
	CheckpointTemplate(gateway types.FvmAddress, epoch int64) (*BottomUpCheckpointResponse, error)
	// PrevCheckpointForChild fetches the content id of the last committed
	// checkpoint of the child subnet
	PrevCheckpointForChild(gateway types.FvmAddress, subnet types.SubnetID) (*IPCGetPrevCheckpointForChildResponse, error)
	// VotesForCheckpoint lists the validators that voted for the subnet's
	// checkpoint at the epoch
	VotesForCheckpoint(subnet types.SubnetID, epoch int64) (*Votes, error)
	// PushMessage pushes an unsigned message into the message pool
	PushMessage(msg *Message) (*SignedMessageResponse, error)
	// WaitMessage blocks until the message executes and returns its lookup
	WaitMessage(c CIDMap) (*MsgLookup, error)
}

var _ Client = (*JSONRPCClient)(nil)

// JSONRPCClient reaches a Lotus node over its JSON-RPC endpoint
type JSONRPCClient struct {
	client *rpcc.RPCClient
}

// messageConfidence is the tipset depth WaitMessage waits for
const messageConfidence = 5

func NewJSONRPCClient(endpoint string, authToken string) *JSONRPCClient {
	client := rpcc.NewRPCClient(endpoint)

	if authToken != "" {
		client.SetCustomHeader("Authorization", "Bearer "+authToken)
	}

	return &JSONRPCClient{client: client}
}

// call invokes the RPC method with positional params and decodes the result
// into target
func (c *JSONRPCClient) call(method string, params []interface{}, target interface{}) error {
	response, err := c.client.Call(method, params...)
	if err != nil {
		return fmt.Errorf("%s failed: %w", method, err)
	}

	if response.Error != nil {
		return fmt.Errorf("%s failed: %s", method, response.Error.Message)
	}

	if err := response.GetObject(target); err != nil {
		return fmt.Errorf("cannot decode %s response: %w", method, err)
	}

	return nil
}

func (c *JSONRPCClient) ChainHead() (*TipSet, error) {
	var head TipSet
	if err := c.call("Filecoin.ChainHead", []interface{}{}, &head); err != nil {
		return nil, err
	}

	return &head, nil
}

func (c *JSONRPCClient) ReadGatewayState(gateway types.FvmAddress) (*IPCReadGatewayStateResponse, error) {
	var state IPCReadGatewayStateResponse
	if err := c.call("Filecoin.IPCReadGatewayState", []interface{}{gateway.String(), nil}, &state); err != nil {
		return nil, err
	}

	return &state, nil
}

func (c *JSONRPCClient) ReadSubnetActorState(subnet types.SubnetID) (*IPCReadSubnetActorStateResponse, error) {
	var state IPCReadSubnetActorStateResponse
	if err := c.call("Filecoin.IPCReadSubnetActorState", []interface{}{subnet.String(), nil}, &state); err != nil {
		return nil, err
	}

	return &state, nil
}

func (c *JSONRPCClient) CheckpointTemplate(gateway types.FvmAddress, epoch int64) (*BottomUpCheckpointResponse, error) {
	var template BottomUpCheckpointResponse
	if err := c.call("Filecoin.IPCGetCheckpointTemplate", []interface{}{gateway.String(), epoch}, &template); err != nil {
		return nil, err
	}

	return &template, nil
}

func (c *JSONRPCClient) PrevCheckpointForChild(gateway types.FvmAddress, subnet types.SubnetID) (*IPCGetPrevCheckpointForChildResponse, error) {
	var response IPCGetPrevCheckpointForChildResponse
	if err := c.call("Filecoin.IPCGetPrevCheckpointForChild",
		[]interface{}{gateway.String(), subnet.String()}, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

func (c *JSONRPCClient) VotesForCheckpoint(subnet types.SubnetID, epoch int64) (*Votes, error) {
	var votes Votes
	if err := c.call("Filecoin.IPCGetVotesForCheckpoint", []interface{}{subnet.String(), epoch}, &votes); err != nil {
		return nil, err
	}

	return &votes, nil
}

func (c *JSONRPCClient) PushMessage(msg *Message) (*SignedMessageResponse, error) {
	var pushed SignedMessageResponse
	if err := c.call("Filecoin.MpoolPushMessage", []interface{}{msg, nil}, &pushed); err != nil {
		return nil, err
	}

	return &pushed, nil
}

func (c *JSONRPCClient) WaitMessage(cidMap CIDMap) (*MsgLookup, error) {
	var lookup MsgLookup
	if err := c.call("Filecoin.StateWaitMsg", []interface{}{cidMap, messageConfidence}, &lookup); err != nil {
		return nil, err
	}

	return &lookup, nil
}
