package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/decred/melwalletd"
	"github.com/decred/melwalletd/nodetest"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &melwalletd.Config{
		WalletDir: filepath.Join(t.TempDir(), "wallets"),
		Network:   "testnet",
		Listen:    melwalletd.DefaultRPCListen,
	}
	daemon, err := melwalletd.NewDaemon(cfg, nodetest.New())
	require.NoError(t, err)
	t.Cleanup(func() { daemon.Stop() })

	s := NewServer(daemon, []string{"*"})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

// wireResponse mirrors response with a raw Result, so tests can decode
// the result into whatever concrete type each assertion needs.
type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

func doRPC(t *testing.T, srv *httptest.Server, method string, params interface{}) wireResponse {
	t.Helper()

	reqBody, err := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  method,
		Params:  mustMarshal(t, params),
	})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL, "application/json", bytes.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out wireResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestListWalletsEmpty(t *testing.T) {
	srv := newTestServer(t)
	resp := doRPC(t, srv, "list_wallets", nil)
	require.Nil(t, resp.Error)
	var names []string
	require.NoError(t, json.Unmarshal(resp.Result, &names))
	require.Empty(t, names)
}

func TestCreateWalletThenListWallets(t *testing.T) {
	srv := newTestServer(t)

	resp := doRPC(t, srv, "create_wallet", map[string]string{
		"name":     "alice",
		"password": "hunter2",
	})
	require.Nil(t, resp.Error)

	resp = doRPC(t, srv, "list_wallets", nil)
	require.Nil(t, resp.Error)
	var names []string
	require.NoError(t, json.Unmarshal(resp.Result, &names))
	require.Equal(t, []string{"alice"}, names)
}

func TestUnknownMethod(t *testing.T) {
	srv := newTestServer(t)
	resp := doRPC(t, srv, "not_a_real_method", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestWalletNotFoundMapsToDaemonErrorCode(t *testing.T) {
	srv := newTestServer(t)
	resp := doRPC(t, srv, "wallet_summary", map[string]string{"name": "nobody"})
	require.NotNil(t, resp.Error)
	require.Equal(t, errorCodeBase-int(melwalletd.KindWalletNotFound), resp.Error.Code)
}

func TestMissingParamsIsInternalError(t *testing.T) {
	srv := newTestServer(t)
	resp := doRPC(t, srv, "wallet_summary", nil)
	require.NotNil(t, resp.Error)
}
