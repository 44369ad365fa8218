package lotus

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/consensus-shipyard/go-ipc-relay/checkpoint"
	"github.com/consensus-shipyard/go-ipc-relay/types"
)

func TestCIDMapRoundTrip(t *testing.T) {
	t.Parallel()

	c, err := RawCID([]byte("checkpoint material"))
	require.NoError(t, err)

	m := NewCIDMap(c)

	decoded, err := m.Decode()
	require.NoError(t, err)
	require.True(t, c.Equals(decoded))
}

func TestCIDMapDecode_Malformed(t *testing.T) {
	t.Parallel()

	_, err := CIDMap{Cid: "not a cid"}.Decode()
	require.ErrorContains(t, err, "malformed content id")
}

func TestSubnetIDMap(t *testing.T) {
	t.Parallel()

	t.Run("wire to native", func(t *testing.T) {
		t.Parallel()

		m := SubnetIDMap{Parent: "/r31415926", Actor: "f0101"}

		id, err := m.ToSubnetID()
		require.NoError(t, err)
		require.Equal(t, "/r31415926/f0101", id.String())
	})

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		id, err := types.ParseSubnetID("/r31415926/f0100/f0101")
		require.NoError(t, err)

		m, err := NewSubnetIDMap(id)
		require.NoError(t, err)
		require.Equal(t, "/r31415926/f0100", m.Parent)
		require.Equal(t, "f0101", m.Actor)

		back, err := m.ToSubnetID()
		require.NoError(t, err)
		require.True(t, back.Equal(id))
	})

	t.Run("root has no wire form", func(t *testing.T) {
		t.Parallel()

		_, err := NewSubnetIDMap(types.NewRootSubnetID(31415926))
		require.ErrorContains(t, err, "no parent")
	})
}

// checkpointResponseFixture is a checkpoint the way a Lotus endpoint returns
// it: PascalCase fields, base64 byte strings, decimal token amounts
func checkpointResponseFixture(t *testing.T) string {
	t.Helper()

	prev, err := RawCID([]byte("previous checkpoint"))
	require.NoError(t, err)

	check, err := RawCID([]byte("child check"))
	require.NoError(t, err)

	return `{
	  "Data": {
	    "Source": {"Parent": "/r31415926", "Actor": "f0101"},
	    "Epoch": 1100,
	    "PrevCheck": {"/": "` + prev.String() + `"},
	    "Children": [
	      {
	        "Source": {"Parent": "/r31415926/f0101", "Actor": "f0102"},
	        "Checks": [{"/": "` + check.String() + `"}]
	      }
	    ],
	    "CrossMsgs": {
	      "CrossMsgs": [
	        {
	          "Msg": {
	            "From": {"SubnetId": {"Parent": "/r31415926", "Actor": "f0101"}, "RawAddress": "f0100"},
	            "To": {"SubnetId": {"Parent": "/r31415926", "Actor": "f0101"}, "RawAddress": "f0103"},
	            "Method": 2,
	            "Params": "yv4=",
	            "Value": "100000000000000",
	            "Nonce": 7
	          },
	          "Wrapped": true
	        }
	      ],
	      "Fee": "42"
	    }
	  },
	  "Sig": "c2ln"
	}`
}

func TestCheckpointResponseToNative(t *testing.T) {
	t.Parallel()

	var response BottomUpCheckpointResponse

	require.NoError(t, json.Unmarshal([]byte(checkpointResponseFixture(t)), &response))

	native, err := response.ToNative()
	require.NoError(t, err)

	require.Equal(t, "/r31415926/f0101", native.Source.String())
	require.Equal(t, int64(1100), native.Epoch)
	require.NotEmpty(t, native.PrevCheck)
	require.Equal(t, []byte("sig"), native.Sig)

	require.Len(t, native.Children, 1)
	require.Equal(t, "/r31415926/f0101/f0102", native.Children[0].Source.String())
	require.Len(t, native.Children[0].Checks, 1)

	require.Zero(t, native.CrossMsgs.Fee.Cmp(big.NewInt(42)))
	require.Len(t, native.CrossMsgs.CrossMsgs, 1)

	msg := native.CrossMsgs.CrossMsgs[0]
	require.True(t, msg.Wrapped)
	require.Equal(t, uint64(2), msg.Msg.Method)
	require.Equal(t, []byte{0xca, 0xfe}, msg.Msg.Params)
	require.Equal(t, uint64(7), msg.Msg.Nonce)
	require.Equal(t, "100000000000000", msg.Msg.Value.String())
	require.Equal(t, "/r31415926/f0101:f0100", msg.Msg.From.String())
}

func TestCheckpointResponseToNative_AbsentFields(t *testing.T) {
	t.Parallel()

	input := `{"Data": {"Source": {"Parent": "/r31415926", "Actor": "f0101"}, "Epoch": 100}}`

	var response BottomUpCheckpointResponse

	require.NoError(t, json.Unmarshal([]byte(input), &response))

	native, err := response.ToNative()
	require.NoError(t, err)

	require.Nil(t, native.Proof)
	require.Nil(t, native.PrevCheck)
	require.Empty(t, native.Children)
	require.Empty(t, native.CrossMsgs.CrossMsgs)
	require.Zero(t, native.CrossMsgs.FeeOrZero().Sign())
}

func testNativeCheckpoint(t *testing.T) *checkpoint.BottomUpCheckpoint {
	t.Helper()

	source, err := types.ParseSubnetID("/r31415926/f0101")
	require.NoError(t, err)

	childSource, err := types.ParseSubnetID("/r31415926/f0101/f0102")
	require.NoError(t, err)

	prev, err := RawCID([]byte("previous checkpoint"))
	require.NoError(t, err)

	check, err := RawCID([]byte("child check"))
	require.NoError(t, err)

	return &checkpoint.BottomUpCheckpoint{
		Source:    source,
		Epoch:     1100,
		PrevCheck: prev.Bytes(),
		Children: []checkpoint.ChildCheck{
			{Source: childSource, Checks: [][]byte{check.Bytes()}},
		},
		CrossMsgs: checkpoint.BatchCrossMsgs{
			Fee: big.NewInt(42),
			CrossMsgs: []checkpoint.CrossMsg{
				{
					Msg: checkpoint.StorableMsg{
						From:   types.IPCAddress{SubnetID: source, RawAddr: types.NewIDAddress(100)},
						To:     types.IPCAddress{SubnetID: source, RawAddr: types.NewIDAddress(103)},
						Method: 2,
						Params: []byte{0xca, 0xfe},
						Value:  big.NewInt(100000000000000),
						Nonce:  7,
					},
					Wrapped: true,
				},
			},
		},
		Sig: []byte("sig"),
	}
}

func TestCheckpointResponseRoundTrip(t *testing.T) {
	t.Parallel()

	original := testNativeCheckpoint(t)

	wire, err := NewCheckpointResponse(original)
	require.NoError(t, err)

	back, err := wire.ToNative()
	require.NoError(t, err)

	require.True(t, back.Source.Equal(original.Source))
	require.Equal(t, original.Epoch, back.Epoch)
	require.Equal(t, original.PrevCheck, back.PrevCheck)
	require.Equal(t, original.Sig, back.Sig)

	require.Len(t, back.Children, 1)
	require.True(t, back.Children[0].Source.Equal(original.Children[0].Source))
	require.Equal(t, original.Children[0].Checks, back.Children[0].Checks)

	require.Zero(t, back.CrossMsgs.Fee.Cmp(original.CrossMsgs.Fee))
	require.Len(t, back.CrossMsgs.CrossMsgs, 1)

	msg := back.CrossMsgs.CrossMsgs[0].Msg
	want := original.CrossMsgs.CrossMsgs[0].Msg

	require.True(t, msg.From.Equal(want.From))
	require.True(t, msg.To.Equal(want.To))
	require.Equal(t, want.Method, msg.Method)
	require.Equal(t, want.Params, msg.Params)
	require.Zero(t, msg.Value.Cmp(want.Value))
	require.Equal(t, want.Nonce, msg.Nonce)
}

func TestNewCheckpointResponse_MalformedPrevCheck(t *testing.T) {
	t.Parallel()

	c := testNativeCheckpoint(t)
	c.PrevCheck = []byte{0x01, 0x02}

	_, err := NewCheckpointResponse(c)
	require.ErrorContains(t, err, "not a content id")
}
