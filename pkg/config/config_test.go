package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ChainMaps(t *testing.T) {
	for id, name := range ChainIdToName {
		assert.Equal(t, id, ChainNameToId[name])
	}
	assert.True(t, IsEthereum(ChainId_EthereumSepolia))
	assert.False(t, IsEthereum(ChainId(10)))
}

func Test_GetContractsForChainId(t *testing.T) {
	contracts, err := GetContractsForChainId(ChainId_EthereumSepolia)
	require.NoError(t, err)
	assert.Equal(t, "0xc4CE88Db5D099CD68C5cb2554c2A54f4a90a111c", contracts.DocumentSigner)

	_, err = GetContractsForChainId(ChainId_EthereumMainnet)
	require.Error(t, err)
}

func Test_ClientConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ClientConfig
		wantErr string
		check   func(t *testing.T, cfg *ClientConfig)
	}{
		{
			name: "defaults document signer for sepolia",
			cfg:  ClientConfig{RpcUrl: "http://localhost:8545", ChainID: ChainId_EthereumSepolia},
			check: func(t *testing.T, cfg *ClientConfig) {
				assert.Equal(t, "0xc4CE88Db5D099CD68C5cb2554c2A54f4a90a111c", cfg.DocumentSignerAddress)
			},
		},
		{
			name:    "missing rpc url",
			cfg:     ClientConfig{DocumentSignerAddress: "0xc4CE88Db5D099CD68C5cb2554c2A54f4a90a111c"},
			wantErr: "rpcUrl",
		},
		{
			name:    "no default for chain",
			cfg:     ClientConfig{RpcUrl: "http://localhost:8545", ChainID: ChainId_EthereumMainnet},
			wantErr: "documentSignerAddress",
		},
		{
			name:    "bad registry address",
			cfg:     ClientConfig{RpcUrl: "http://localhost:8545", ChainID: ChainId_EthereumSepolia, AccreditationRegistryAddress: "0x12"},
			wantErr: "accreditationRegistryAddress",
		},
		{
			name:    "unsupported mode",
			cfg:     ClientConfig{RpcUrl: "http://localhost:8545", ChainID: ChainId_EthereumSepolia, Mode: "carrier-pigeon"},
			wantErr: "mode",
		},
		{
			name: "api mode alias",
			cfg:  ClientConfig{RpcUrl: "http://localhost:8545", ChainID: ChainId_EthereumSepolia, Mode: "API", RelayURL: DefaultRelayURL},
		},
		{
			name:    "bad relay url",
			cfg:     ClientConfig{RpcUrl: "http://localhost:8545", ChainID: ChainId_EthereumSepolia, RelayURL: "relay"},
			wantErr: "relayUrl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, &cfg)
			}
		})
	}
}

func validRelayConfig() RelayServerConfig {
	return RelayServerConfig{
		Host:                  DefaultRelayHost,
		Port:                  DefaultRelayPort,
		RpcUrl:                "http://localhost:8545",
		DocumentSignerAddress: "0xc4CE88Db5D099CD68C5cb2554c2A54f4a90a111c",
		KeyFile:               DefaultKeyFile,
	}
}

func Test_RelayServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *RelayServerConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(c *RelayServerConfig) {}},
		{name: "bad port", mutate: func(c *RelayServerConfig) { c.Port = 0 }, wantErr: "port"},
		{name: "missing rpc", mutate: func(c *RelayServerConfig) { c.RpcUrl = "" }, wantErr: "rpcUrl"},
		{name: "bad contract", mutate: func(c *RelayServerConfig) { c.DocumentSignerAddress = "nope" }, wantErr: "documentSignerAddress"},
		{name: "no key source", mutate: func(c *RelayServerConfig) { c.KeyFile = "" }, wantErr: "keySource"},
		{name: "two key sources", mutate: func(c *RelayServerConfig) { c.AWSKMSKeyID = "alias/relay" }, wantErr: "keySource"},
		{
			name: "web3signer missing from address",
			mutate: func(c *RelayServerConfig) {
				c.KeyFile = ""
				c.Web3Signer = &RemoteSignerConfig{Url: "http://localhost:9000"}
			},
			wantErr: "web3signer",
		},
		{name: "negative rate", mutate: func(c *RelayServerConfig) { c.RateLimit = -1 }, wantErr: "rateLimit"},
		{name: "jwks without audience", mutate: func(c *RelayServerConfig) { c.AuthJWKSURL = "https://auth/jwks.json" }, wantErr: "authAudience"},
		{name: "badger without path", mutate: func(c *RelayServerConfig) { c.Persistence = PersistenceType_Badger }, wantErr: "badgerPath"},
		{name: "redis without address", mutate: func(c *RelayServerConfig) { c.Persistence = PersistenceType_Redis }, wantErr: "redisAddress"},
		{name: "unknown persistence", mutate: func(c *RelayServerConfig) { c.Persistence = "sqlite" }, wantErr: "persistence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validRelayConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func Test_ListenAddress(t *testing.T) {
	cfg := validRelayConfig()
	assert.Equal(t, "127.0.0.1:8888", cfg.ListenAddress())
}
