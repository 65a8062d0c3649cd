package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// newChainIDServer answers eth_chainId with 31337 and fails every other method
func newChainIDServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if req.Method == "eth_chainId" {
			resp["result"] = "0x7a69"
		} else {
			resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestContext(t *testing.T, values map[string]string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("docsigner", flag.ContinueOnError)
	for name, value := range values {
		set.String(name, value, "")
	}
	set.Uint64("chain-id", 0, "")
	set.Bool("verbose", false, "")
	return cli.NewContext(cli.NewApp(), set, nil)
}

func Test_newEnv(t *testing.T) {
	t.Run("connects through the ethereum client", func(t *testing.T) {
		srv := newChainIDServer(t)
		c := newTestContext(t, map[string]string{
			"rpc-url":                 srv.URL,
			"document-signer-address": "0xc4CE88Db5D099CD68C5cb2554c2A54f4a90a111c",
			"mode":                    "relayed",
		})

		e, err := newEnv(c)
		require.NoError(t, err)
		defer e.Close()

		chainID, err := e.client.ChainID(c.Context)
		require.NoError(t, err)
		assert.Equal(t, int64(31337), chainID.Int64())
		assert.Equal(t, common.HexToAddress("0xc4CE88Db5D099CD68C5cb2554c2A54f4a90a111c"), e.caller.DocumentSignerAddress())
	})

	t.Run("invalid configuration never dials", func(t *testing.T) {
		c := newTestContext(t, map[string]string{
			"rpc-url":                 "http://127.0.0.1:1",
			"document-signer-address": "not-an-address",
		})
		_, err := newEnv(c)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}
