package lotus

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/consensus-shipyard/go-ipc-relay/checkpoint"
	"github.com/consensus-shipyard/go-ipc-relay/config"
	"github.com/consensus-shipyard/go-ipc-relay/types"
)

var _ Client = (*clientMock)(nil)

type clientMock struct {
	mock.Mock
}

func (c *clientMock) ChainHead() (*TipSet, error) {
	args := c.Called()

	return args.Get(0).(*TipSet), args.Error(1) //nolint:forcetypeassert
}

func (c *clientMock) ReadGatewayState(gateway types.FvmAddress) (*IPCReadGatewayStateResponse, error) {
	args := c.Called(gateway)

	return args.Get(0).(*IPCReadGatewayStateResponse), args.Error(1) //nolint:forcetypeassert
}

func (c *clientMock) ReadSubnetActorState(subnet types.SubnetID) (*IPCReadSubnetActorStateResponse, error) {
	args := c.Called(subnet)

	return args.Get(0).(*IPCReadSubnetActorStateResponse), args.Error(1) //nolint:forcetypeassert
}

func (c *clientMock) CheckpointTemplate(gateway types.FvmAddress, epoch int64) (*BottomUpCheckpointResponse, error) {
	args := c.Called(gateway, epoch)

	return args.Get(0).(*BottomUpCheckpointResponse), args.Error(1) //nolint:forcetypeassert
}

func (c *clientMock) PrevCheckpointForChild(gateway types.FvmAddress, subnet types.SubnetID) (*IPCGetPrevCheckpointForChildResponse, error) {
	args := c.Called(gateway, subnet)

	return args.Get(0).(*IPCGetPrevCheckpointForChildResponse), args.Error(1) //nolint:forcetypeassert
}

func (c *clientMock) VotesForCheckpoint(subnet types.SubnetID, epoch int64) (*Votes, error) {
	args := c.Called(subnet, epoch)

	return args.Get(0).(*Votes), args.Error(1) //nolint:forcetypeassert
}

func (c *clientMock) PushMessage(msg *Message) (*SignedMessageResponse, error) {
	args := c.Called(msg)

	return args.Get(0).(*SignedMessageResponse), args.Error(1) //nolint:forcetypeassert
}

func (c *clientMock) WaitMessage(cidMap CIDMap) (*MsgLookup, error) {
	args := c.Called(cidMap)

	return args.Get(0).(*MsgLookup), args.Error(1) //nolint:forcetypeassert
}

func newTestHandler(t *testing.T, client Client) (*Handler, types.SubnetID) {
	t.Helper()

	child, err := types.ParseSubnetID("/r31415926/f0101")
	require.NoError(t, err)

	subnet := &config.Subnet{
		ID: child,
		FVM: &config.FVMSubnet{
			JSONRPCHTTP: "http://127.0.0.1:1234/rpc/v0",
			GatewayAddr: "f064",
		},
	}

	handler, err := NewHandler(subnet, client, hclog.NewNullLogger())
	require.NoError(t, err)

	return handler, child
}

func testActorState() *IPCReadSubnetActorStateResponse {
	return &IPCReadSubnetActorStateResponse{
		CheckPeriod: 100,
		ValidatorSet: ValidatorSet{
			Validators: []Validator{
				{Addr: "f0100", Weight: "1"},
				{Addr: "f0103", Weight: "2"},
			},
			ConfigurationNumber: 1,
		},
		MinValidators:           1,
		LastVotingExecutedEpoch: 1000,
	}
}

func TestHandlerSubnetActorState(t *testing.T) {
	t.Parallel()

	client := &clientMock{}
	handler, child := newTestHandler(t, client)

	client.On("ReadSubnetActorState", child).Return(testActorState(), error(nil)).Times(3)

	period, err := handler.CheckpointPeriod(child)
	require.NoError(t, err)
	require.Equal(t, int64(100), period)

	epoch, err := handler.LastExecutedEpoch(child)
	require.NoError(t, err)
	require.Equal(t, int64(1000), epoch)

	validators, err := handler.Validators(child)
	require.NoError(t, err)
	require.Len(t, validators, 2)
	require.True(t, validators[0].Equal(types.NewIDAddress(100)))
	require.True(t, validators[1].Equal(types.NewIDAddress(103)))

	client.AssertExpectations(t)
}

func TestHandlerGatewayState(t *testing.T) {
	t.Parallel()

	client := &clientMock{}
	handler, _ := newTestHandler(t, client)

	state := &IPCReadGatewayStateResponse{CheckPeriod: 100, AppliedTopdownNonce: 3}

	client.On("ReadGatewayState", types.NewIDAddress(64)).Return(state, error(nil)).Once()

	got, err := handler.GatewayState()
	require.NoError(t, err)
	require.Equal(t, int64(100), got.CheckPeriod)
	require.Equal(t, uint64(3), got.AppliedTopdownNonce)

	client.AssertExpectations(t)
}

func TestHandlerCurrentEpoch(t *testing.T) {
	t.Parallel()

	client := &clientMock{}
	handler, _ := newTestHandler(t, client)

	client.On("ChainHead").Return(&TipSet{Height: 4242}, error(nil)).Once()

	epoch, err := handler.CurrentEpoch()
	require.NoError(t, err)
	require.Equal(t, int64(4242), epoch)
}

func TestHandlerHasVoted(t *testing.T) {
	t.Parallel()

	client := &clientMock{}
	handler, child := newTestHandler(t, client)

	votes := &Votes{Validators: []string{"f0100"}}

	client.On("VotesForCheckpoint", child, int64(1100)).Return(votes, error(nil)).Twice()

	hasVoted, err := handler.HasVoted(child, 1100, types.NewIDAddress(100))
	require.NoError(t, err)
	require.True(t, hasVoted)

	hasVoted, err = handler.HasVoted(child, 1100, types.NewIDAddress(103))
	require.NoError(t, err)
	require.False(t, hasVoted)
}

func TestHandlerCheckpointTemplate(t *testing.T) {
	t.Parallel()

	client := &clientMock{}
	handler, child := newTestHandler(t, client)

	gateway := types.NewIDAddress(64)

	response := &BottomUpCheckpointResponse{
		Data: CheckpointData{
			Source: SubnetIDMap{Parent: "/r31415926", Actor: "f0101"},
			// the gateway reports the epoch it last cut, not the requested one
			Epoch: 0,
		},
	}

	client.On("CheckpointTemplate", gateway, int64(1100)).Return(response, error(nil)).Once()

	template, err := handler.CheckpointTemplate(1100)
	require.NoError(t, err)
	require.True(t, template.Source.Equal(child))
	require.Equal(t, int64(1100), template.Epoch)
	require.Nil(t, template.Proof)
	require.Nil(t, template.PrevCheck)

	client.AssertExpectations(t)
}

func TestHandlerPopulateProof(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler(t, &clientMock{})

	template := testNativeCheckpoint(t)
	template.Proof = nil

	require.NoError(t, handler.PopulateProof(template))
	require.NotEmpty(t, template.Proof)

	// proof population never touches the committed fields
	other := template.Copy()
	other.Proof = nil

	require.NoError(t, handler.PopulateProof(other))
	require.Equal(t, template.Proof, other.Proof)
	require.True(t, other.Source.Equal(template.Source))
	require.Equal(t, template.Epoch, other.Epoch)
	require.Equal(t, template.Children, other.Children)

	// but commits to the cross messages
	other.CrossMsgs.CrossMsgs[0].Msg.Nonce++
	require.NoError(t, handler.PopulateProof(other))
	require.NotEqual(t, template.Proof, other.Proof)
}

func TestHandlerPopulatePrevHash(t *testing.T) {
	t.Parallel()

	t.Run("committed predecessor", func(t *testing.T) {
		t.Parallel()

		client := &clientMock{}
		handler, child := newTestHandler(t, client)

		prev, err := RawCID([]byte("previous checkpoint"))
		require.NoError(t, err)

		m := NewCIDMap(prev)
		response := &IPCGetPrevCheckpointForChildResponse{CID: &m}

		client.On("PrevCheckpointForChild", types.NewIDAddress(64), child).
			Return(response, error(nil)).Once()

		template := &checkpoint.BottomUpCheckpoint{Source: child, Epoch: 1100}

		require.NoError(t, handler.PopulatePrevHash(template, child, 1000))
		require.Equal(t, prev.Bytes(), template.PrevCheck)

		client.AssertExpectations(t)
	})

	t.Run("missing predecessor", func(t *testing.T) {
		t.Parallel()

		client := &clientMock{}
		handler, child := newTestHandler(t, client)

		client.On("PrevCheckpointForChild", types.NewIDAddress(64), child).
			Return(&IPCGetPrevCheckpointForChildResponse{}, error(nil)).Once()

		template := &checkpoint.BottomUpCheckpoint{Source: child, Epoch: 1100}

		err := handler.PopulatePrevHash(template, child, 1000)
		require.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
	})
}

func TestHandlerSubmit(t *testing.T) {
	t.Parallel()

	t.Run("executed message", func(t *testing.T) {
		t.Parallel()

		client := &clientMock{}
		handler, _ := newTestHandler(t, client)

		template := testNativeCheckpoint(t)
		validator := types.NewIDAddress(100)

		msgCid, err := RawCID([]byte("message"))
		require.NoError(t, err)

		pushed := &SignedMessageResponse{CID: NewCIDMap(msgCid)}

		client.On("PushMessage", mock.MatchedBy(func(msg *Message) bool {
			return msg.To == "f0101" && msg.From == validator.String() &&
				msg.Method == submitCheckpointMethodNum && len(msg.Params) > 0
		})).Return(pushed, error(nil)).Once()

		client.On("WaitMessage", NewCIDMap(msgCid)).
			Return(&MsgLookup{Height: 1101, Receipt: MessageReceipt{ExitCode: 0}}, error(nil)).Once()

		inclusionEpoch, err := handler.Submit(validator, template)
		require.NoError(t, err)
		require.Equal(t, int64(1101), inclusionEpoch)

		client.AssertExpectations(t)
	})

	t.Run("aborted message", func(t *testing.T) {
		t.Parallel()

		client := &clientMock{}
		handler, _ := newTestHandler(t, client)

		template := testNativeCheckpoint(t)

		msgCid, err := RawCID([]byte("message"))
		require.NoError(t, err)

		client.On("PushMessage", mock.Anything).
			Return(&SignedMessageResponse{CID: NewCIDMap(msgCid)}, error(nil)).Once()
		client.On("WaitMessage", mock.Anything).
			Return(&MsgLookup{Height: 1101, Receipt: MessageReceipt{ExitCode: 16}}, error(nil)).Once()

		_, err = handler.Submit(types.NewIDAddress(100), template)
		require.ErrorContains(t, err, "exit code 16")
	})
}
