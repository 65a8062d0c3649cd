package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the docsigner CLI
const (
	EnvDocSignerRPCURL                       = "DOCSIGNER_RPC_URL"
	EnvDocSignerChainID                      = "DOCSIGNER_CHAIN_ID"
	EnvDocSignerDocumentSignerAddress        = "DOCSIGNER_DOCUMENT_SIGNER_ADDRESS"
	EnvDocSignerAccreditationRegistryAddress = "DOCSIGNER_ACCREDITATION_REGISTRY_ADDRESS"
	EnvDocSignerRelayURL                     = "DOCSIGNER_RELAY_URL"
	EnvDocSignerRelayToken                   = "DOCSIGNER_RELAY_TOKEN"
	EnvDocSignerMode                         = "DOCSIGNER_MODE"
	EnvDocSignerPrivateKey                   = "DOCSIGNER_PRIVATE_KEY"
	EnvDocSignerKeystorePath                 = "DOCSIGNER_KEYSTORE_PATH"
	EnvDocSignerKeystorePassword             = "DOCSIGNER_KEYSTORE_PASSWORD"
	EnvDocSignerWeb3SignerURL                = "DOCSIGNER_WEB3SIGNER_URL"
	EnvDocSignerVerbose                      = "DOCSIGNER_VERBOSE"
)

// Environment variable names for the relay server
const (
	EnvRelayHost                  = "RELAY_HOST"
	EnvRelayPort                  = "RELAY_PORT"
	EnvRelayRPCURL                = "RELAY_RPC_URL"
	EnvRelayDocumentSignerAddress = "RELAY_DOCUMENT_SIGNER_ADDRESS"
	EnvRelayKeyFile               = "RELAY_KEY_FILE"
	EnvRelayAWSKMSKeyID           = "RELAY_AWS_KMS_KEY_ID"
	EnvRelayAWSRegion             = "RELAY_AWS_REGION"
	EnvRelayWeb3SignerURL         = "RELAY_WEB3SIGNER_URL"
	EnvRelayWeb3SignerFromAddress = "RELAY_WEB3SIGNER_FROM_ADDRESS"
	EnvRelayPersistenceType       = "RELAY_PERSISTENCE_TYPE"
	EnvRelayBadgerPath            = "RELAY_BADGER_PATH"
	EnvRelayRedisAddress          = "RELAY_REDIS_ADDRESS"
	EnvRelayRedisPassword         = "RELAY_REDIS_PASSWORD"
	EnvRelayRedisDB               = "RELAY_REDIS_DB"
	EnvRelayRateLimit             = "RELAY_RATE_LIMIT"
	EnvRelayRateBurst             = "RELAY_RATE_BURST"
	EnvRelayAuthJWKSURL           = "RELAY_AUTH_JWKS_URL"
	EnvRelayAuthAudience          = "RELAY_AUTH_AUDIENCE"
	EnvRelayVerbose               = "RELAY_VERBOSE"
)

// EIP-712 domain of the DocumentSigner contract
const (
	DocumentSignerDomainName    = "DocumentSigner"
	DocumentSignerDomainVersion = "1.0.0"
)

const (
	DefaultRelayHost = "127.0.0.1"
	DefaultRelayPort = 8888
	DefaultRelayURL  = "http://127.0.0.1:8888"
	DefaultKeyFile   = "secret.txt"

	// DefaultRelayGasLimit is used by the relay when gas estimation is not wanted.
	DefaultRelayGasLimit = 500000
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
}

var ChainNameToId = map[ChainName]ChainId{
	ChainName_EthereumMainnet: ChainId_EthereumMainnet,
	ChainName_EthereumSepolia: ChainId_EthereumSepolia,
	ChainName_EthereumAnvil:   ChainId_EthereumAnvil,
}

// IsEthereum reports whether the chain is an L1 (mainnet or a fork/testnet of it)
func IsEthereum(chainId ChainId) bool {
	_, ok := ChainIdToName[chainId]
	return ok
}

type ContractAddresses struct {
	DocumentSigner        string
	AccreditationRegistry string
}

var (
	// public DocumentSigner deployment on sepolia
	ethereumSepoliaContracts = &ContractAddresses{
		DocumentSigner: "0xc4CE88Db5D099CD68C5cb2554c2A54f4a90a111c",
	}

	Contracts = map[ChainId]*ContractAddresses{
		ChainId_EthereumSepolia: ethereumSepoliaContracts,
		ChainId_EthereumAnvil:   ethereumSepoliaContracts, // fork of ethereum sepolia
	}
)

func GetContractsForChainId(chainId ChainId) (*ContractAddresses, error) {
	contracts, ok := Contracts[chainId]
	if !ok {
		return nil, fmt.Errorf("no default contracts for chain ID: %d", chainId)
	}
	return contracts, nil
}

// GetSupportedChainIDsString returns supported chain IDs as strings for CLI help
func GetSupportedChainIDsString() string {
	return fmt.Sprintf("%d (mainnet), %d (sepolia), %d (anvil)",
		ChainId_EthereumMainnet, ChainId_EthereumSepolia, ChainId_EthereumAnvil)
}

// ReceiptTimeoutForChain bounds how long a client waits for a transaction to be mined
func ReceiptTimeoutForChain(chainId ChainId) time.Duration {
	switch chainId {
	case ChainId_EthereumAnvil:
		return 30 * time.Second
	default:
		return 5 * time.Minute
	}
}

// ClientConfig is the configuration of the docsigner CLI
type ClientConfig struct {
	RpcUrl                       string  `json:"rpc_url"`
	ChainID                      ChainId `json:"chain_id"`
	DocumentSignerAddress        string  `json:"document_signer_address"`
	AccreditationRegistryAddress string  `json:"accreditation_registry_address"`
	RelayURL                     string  `json:"relay_url"`
	RelayToken                   string  `json:"-"`
	Mode                         string  `json:"mode"`
	Verbose                      bool    `json:"verbose"`
}

// Validate checks the client configuration and fills in default contract
// addresses for known chains when none were given.
func (c *ClientConfig) Validate() error {
	var allErrors field.ErrorList

	if c.RpcUrl == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("rpcUrl"), "rpcUrl is required"))
	}

	if c.DocumentSignerAddress == "" && c.ChainID != 0 {
		if contracts, err := GetContractsForChainId(c.ChainID); err == nil {
			c.DocumentSignerAddress = contracts.DocumentSigner
			if c.AccreditationRegistryAddress == "" {
				c.AccreditationRegistryAddress = contracts.AccreditationRegistry
			}
		}
	}
	if c.DocumentSignerAddress == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("documentSignerAddress"), "documentSignerAddress is required"))
	} else if !common.IsHexAddress(c.DocumentSignerAddress) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("documentSignerAddress"), c.DocumentSignerAddress, "not a valid address"))
	}
	if c.AccreditationRegistryAddress != "" && !common.IsHexAddress(c.AccreditationRegistryAddress) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("accreditationRegistryAddress"), c.AccreditationRegistryAddress, "not a valid address"))
	}

	switch strings.ToLower(c.Mode) {
	case "", "direct", "solitary", "relayed", "api":
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("mode"), c.Mode, []string{"direct", "relayed"}))
	}
	if c.RelayURL != "" {
		if _, err := url.ParseRequestURI(c.RelayURL); err != nil {
			allErrors = append(allErrors, field.Invalid(field.NewPath("relayUrl"), c.RelayURL, err.Error()))
		}
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

type PersistenceType string

const (
	PersistenceType_Memory PersistenceType = "memory"
	PersistenceType_Badger PersistenceType = "badger"
	PersistenceType_Redis  PersistenceType = "redis"
)

// RelayServerConfig is the configuration of the relay service
type RelayServerConfig struct {
	Host                  string `json:"host"`
	Port                  int    `json:"port"`
	RpcUrl                string `json:"rpc_url"`
	DocumentSignerAddress string `json:"document_signer_address"`

	// exactly one key source
	KeyFile       string              `json:"key_file"`
	AWSKMSKeyID   string              `json:"aws_kms_key_id"`
	AWSRegion     string              `json:"aws_region"`
	Web3Signer    *RemoteSignerConfig `json:"web3signer,omitempty"`
	GasLimit      uint64              `json:"gas_limit"`
	RateLimit     float64             `json:"rate_limit"`
	RateBurst     int                 `json:"rate_burst"`
	AuthJWKSURL   string              `json:"auth_jwks_url"`
	AuthAudience  string              `json:"auth_audience"`
	JWKSRefresh   time.Duration       `json:"jwks_refresh"`
	Persistence   PersistenceType     `json:"persistence"`
	BadgerPath    string              `json:"badger_path"`
	RedisAddress  string              `json:"redis_address"`
	RedisPassword string              `json:"-"`
	RedisDB       int                 `json:"redis_db"`
	Verbose       bool                `json:"verbose"`
}

func (c *RelayServerConfig) Validate() error {
	var allErrors field.ErrorList

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "port must be between 1-65535"))
	}
	if c.RpcUrl == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("rpcUrl"), "rpcUrl is required"))
	}
	if !common.IsHexAddress(c.DocumentSignerAddress) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("documentSignerAddress"), c.DocumentSignerAddress, "not a valid address"))
	}

	sources := 0
	if c.KeyFile != "" {
		sources++
	}
	if c.AWSKMSKeyID != "" {
		sources++
	}
	if c.Web3Signer != nil {
		sources++
		if err := c.Web3Signer.Validate(); err != nil {
			allErrors = append(allErrors, field.Invalid(field.NewPath("web3signer"), c.Web3Signer.Url, err.Error()))
		}
	}
	if sources != 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("keySource"), sources, "exactly one of keyFile, awsKmsKeyId or web3signer is required"))
	}

	if c.RateLimit < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateLimit"), c.RateLimit, "must not be negative"))
	}
	if c.AuthJWKSURL != "" && c.AuthAudience == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("authAudience"), "authAudience is required when authJwksUrl is set"))
	}

	switch c.Persistence {
	case "", PersistenceType_Memory:
	case PersistenceType_Badger:
		if c.BadgerPath == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("badgerPath"), "badgerPath is required for badger persistence"))
		}
	case PersistenceType_Redis:
		if c.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"), "redisAddress is required for redis persistence"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("persistence"), c.Persistence,
			[]string{string(PersistenceType_Memory), string(PersistenceType_Badger), string(PersistenceType_Redis)}))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func (c *RelayServerConfig) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RemoteSignerConfig struct {
	Url         string `json:"url" yaml:"url"`
	FromAddress string `json:"fromAddress" yaml:"fromAddress"`
}

func (rsc *RemoteSignerConfig) Validate() error {
	var allErrors field.ErrorList
	if rsc.Url == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("url"), "url is required"))
	}
	if rsc.FromAddress == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("fromAddress"), "fromAddress is required"))
	} else if !common.IsHexAddress(rsc.FromAddress) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("fromAddress"), rsc.FromAddress, "not a valid address"))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}
