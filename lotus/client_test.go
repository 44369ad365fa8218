package lotus

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/consensus-shipyard/go-ipc-relay/types"
)

// capturedRequest is the JSON-RPC request body the test server received
type capturedRequest struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

func newRPCTestServer(t *testing.T, result string, captured *capturedRequest, authorization *string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, captured))

		*authorization = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")

		_, err = w.Write([]byte(`{"jsonrpc":"2.0","id":0,"result":` + result + `}`))
		require.NoError(t, err)
	}))

	t.Cleanup(server.Close)

	return server
}

func TestJSONRPCClientGatewayState(t *testing.T) {
	t.Parallel()

	var (
		captured      capturedRequest
		authorization string
	)

	server := newRPCTestServer(t, `{"CheckPeriod":100,"AppliedTopdownNonce":3}`, &captured, &authorization)

	client := NewJSONRPCClient(server.URL, "token")

	state, err := client.ReadGatewayState(types.NewIDAddress(64))
	require.NoError(t, err)
	require.Equal(t, int64(100), state.CheckPeriod)
	require.Equal(t, uint64(3), state.AppliedTopdownNonce)

	require.Equal(t, "Bearer token", authorization)
	require.Equal(t, "Filecoin.IPCReadGatewayState", captured.Method)

	// params travel as one flat positional array, never nested
	require.Equal(t, []interface{}{"f064", nil}, captured.Params)
}

func TestJSONRPCClientVotes(t *testing.T) {
	t.Parallel()

	var (
		captured      capturedRequest
		authorization string
	)

	server := newRPCTestServer(t, `{"Validators":["f0100"]}`, &captured, &authorization)

	client := NewJSONRPCClient(server.URL, "")

	subnet, err := types.ParseSubnetID("/r31415926/f0101")
	require.NoError(t, err)

	votes, err := client.VotesForCheckpoint(subnet, 1100)
	require.NoError(t, err)
	require.Equal(t, []string{"f0100"}, votes.Validators)

	require.Empty(t, authorization)
	require.Equal(t, "Filecoin.IPCGetVotesForCheckpoint", captured.Method)
	require.Equal(t, []interface{}{"/r31415926/f0101", float64(1100)}, captured.Params)
}

func TestJSONRPCClientError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":0,"error":{"code":1,"message":"actor not found"}}`))
	}))
	t.Cleanup(server.Close)

	client := NewJSONRPCClient(server.URL, "")

	_, err := client.ChainHead()
	require.ErrorContains(t, err, "actor not found")
}
