package web3signer

import (
	"testing"

	"github.com/docsigner/docsigner-go/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Test_ClientImplementsInterface verifies that Client implements IWeb3Signer
func Test_ClientImplementsInterface(t *testing.T) {
	logger := zaptest.NewLogger(t)

	client, err := NewClient(DefaultConfig(), logger)
	require.NoError(t, err)

	var signer IWeb3Signer = client
	assert.NotNil(t, signer)

	_ = signer.SetHttpClient
	_ = signer.EthAccounts
	_ = signer.EthSignTransaction
	_ = signer.EthSignTypedData
}

func Test_NewWeb3SignerClientFromRemoteSignerConfig(t *testing.T) {
	logger := zaptest.NewLogger(t)

	client, err := NewWeb3SignerClientFromRemoteSignerConfig(nil, logger)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, client.config.BaseURL)

	client, err = NewWeb3SignerClientFromRemoteSignerConfig(&config.RemoteSignerConfig{
		Url:         "http://signer:9000",
		FromAddress: "0x1234567890123456789012345678901234567890",
	}, logger)
	require.NoError(t, err)
	assert.Equal(t, "http://signer:9000", client.config.BaseURL)
}
