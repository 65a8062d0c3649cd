package web3signer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T, handle func(req jsonRPCRequest) (interface{}, *JSONRPCError)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonRPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, rpcErr := handle(req)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(t *testing.T, url string) *Client {
	client, err := NewClient(&Config{BaseURL: url}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client
}

func Test_EthAccounts(t *testing.T) {
	server := newTestServer(t, func(req jsonRPCRequest) (interface{}, *JSONRPCError) {
		assert.Equal(t, "eth_accounts", req.Method)
		return []string{"0x1234567890123456789012345678901234567890"}, nil
	})
	defer server.Close()

	accounts, err := newTestClient(t, server.URL).EthAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0x1234567890123456789012345678901234567890"}, accounts)
}

func Test_EthSignTypedData(t *testing.T) {
	server := newTestServer(t, func(req jsonRPCRequest) (interface{}, *JSONRPCError) {
		assert.Equal(t, "eth_signTypedData", req.Method)
		require.Len(t, req.Params, 2)
		assert.Equal(t, "0xabc", req.Params[0])
		return "0xdeadbeef", nil
	})
	defer server.Close()

	sig, err := newTestClient(t, server.URL).EthSignTypedData(context.Background(), "0xabc", map[string]string{"primaryType": "Document"})
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", sig)
}

func Test_EthSignTransaction_SetsFrom(t *testing.T) {
	server := newTestServer(t, func(req jsonRPCRequest) (interface{}, *JSONRPCError) {
		require.Len(t, req.Params, 1)
		tx, ok := req.Params[0].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "0xfrom", tx["from"])
		assert.Equal(t, "0x2", tx["type"])
		return "0x02f8", nil
	})
	defer server.Close()

	signed, err := newTestClient(t, server.URL).EthSignTransaction(context.Background(), "0xfrom", map[string]interface{}{"type": "0x2"})
	require.NoError(t, err)
	assert.Equal(t, "0x02f8", signed)
}

func Test_RPCError(t *testing.T) {
	server := newTestServer(t, func(req jsonRPCRequest) (interface{}, *JSONRPCError) {
		return nil, &JSONRPCError{Code: -32000, Message: "signing key not found"}
	})
	defer server.Close()

	_, err := newTestClient(t, server.URL).EthAccounts(context.Background())
	require.Error(t, err)

	var rpcErr *JSONRPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32000, rpcErr.ErrorCode())
	assert.Contains(t, err.Error(), "signing key not found")
}

func Test_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).EthAccounts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
