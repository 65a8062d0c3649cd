package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/docsigner/docsigner-go/pkg/clients/web3signer"
	"github.com/docsigner/docsigner-go/pkg/config"
	"github.com/docsigner/docsigner-go/pkg/contractCaller/caller"
	"github.com/docsigner/docsigner-go/pkg/digest"
	"github.com/docsigner/docsigner-go/pkg/keystore"
	"github.com/docsigner/docsigner-go/pkg/logger"
	"github.com/docsigner/docsigner-go/pkg/relay"
	"github.com/docsigner/docsigner-go/pkg/signingflow"
	"github.com/docsigner/docsigner-go/pkg/types"
	"github.com/docsigner/docsigner-go/pkg/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// env holds everything a command needs once flags are parsed
type env struct {
	cfg    *config.ClientConfig
	logger *zap.Logger
	client *ethclient.Client
	caller *caller.ContractCaller
}

func parseClientConfig(c *cli.Context) *config.ClientConfig {
	return &config.ClientConfig{
		RpcUrl:                       c.String("rpc-url"),
		ChainID:                      config.ChainId(c.Uint64("chain-id")),
		DocumentSignerAddress:        c.String("document-signer-address"),
		AccreditationRegistryAddress: c.String("registry-address"),
		RelayURL:                     c.String("relay-url"),
		RelayToken:                   c.String("relay-token"),
		Mode:                         c.String("mode"),
		Verbose:                      c.Bool("verbose"),
	}
}

func newEnv(c *cli.Context) (*env, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	cfg := parseClientConfig(c)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ethClient := ethereum.NewEthereumClient(&ethereum.EthereumClientConfig{
		BaseUrl:   cfg.RpcUrl,
		BlockType: ethereum.BlockType_Latest,
	}, l)
	client, err := ethClient.GetEthereumContractCaller()
	if err != nil {
		return nil, fmt.Errorf("failed to get Ethereum contract caller for %s: %w", cfg.RpcUrl, err)
	}

	var registryAddress common.Address
	if cfg.AccreditationRegistryAddress != "" {
		registryAddress = common.HexToAddress(cfg.AccreditationRegistryAddress)
	}
	cc, err := caller.NewContractCaller(client, common.HexToAddress(cfg.DocumentSignerAddress), registryAddress, l)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create contract caller: %w", err)
	}

	return &env{cfg: cfg, logger: l, client: client, caller: cc}, nil
}

func (e *env) Close() {
	e.client.Close()
	_ = e.logger.Sync()
}

func (e *env) requireRegistry() error {
	if e.cfg.AccreditationRegistryAddress == "" {
		return fmt.Errorf("--registry-address is required for this command")
	}
	return nil
}

// openWallet builds the wallet selected by the key flags: a raw private key,
// an encrypted keystore or a Web3Signer.
func (e *env) openWallet(c *cli.Context) (wallet.IWallet, error) {
	var (
		w   wallet.IWallet
		err error
	)
	switch {
	case c.String("private-key") != "":
		key, keyErr := keystore.ParseHexKey(c.String("private-key"))
		if keyErr != nil {
			return nil, keyErr
		}
		w, err = wallet.NewLocalWallet(e.client, e.logger, key)
	case c.String("keystore-path") != "":
		passphrase := c.String("keystore-password")
		if passphrase == "" {
			passphrase, err = keystore.PromptPassphrase("Keystore passphrase: ")
			if err != nil {
				return nil, err
			}
		}
		key, keyErr := keystore.LoadEncryptedKey(c.String("keystore-path"), passphrase)
		if keyErr != nil {
			return nil, keyErr
		}
		w, err = wallet.NewLocalWallet(e.client, e.logger, key)
	case c.String("web3signer-url") != "":
		signerClient, clientErr := web3signer.NewClient(&web3signer.Config{BaseURL: c.String("web3signer-url")}, e.logger)
		if clientErr != nil {
			return nil, clientErr
		}
		w, err = wallet.NewRemoteWallet(signerClient, e.client, e.logger)
	default:
		return nil, fmt.Errorf("one of --private-key, --keystore-path or --web3signer-url is required")
	}
	if err != nil {
		return nil, err
	}

	if c.Bool("confirm") {
		w = wallet.NewConfirmingWallet(w, wallet.NewTerminalPrompter(os.Stdin, os.Stderr))
	}
	return w, nil
}

// connect opens the wallet and a session on it
func (e *env) connect(c *cli.Context) (*wallet.Session, error) {
	w, err := e.openWallet(c)
	if err != nil {
		return nil, err
	}
	session := wallet.NewSession(w, e.logger)
	if _, err := session.Connect(c.Context); err != nil {
		return nil, fmt.Errorf("failed to connect wallet: %w", err)
	}
	return session, nil
}

func (e *env) relayClient() (*relay.Client, error) {
	relayURL := e.cfg.RelayURL
	if relayURL == "" {
		relayURL = config.DefaultRelayURL
	}
	return relay.NewClient(&relay.ClientConfig{
		BaseURL: relayURL,
		Token:   e.cfg.RelayToken,
		Timeout: config.ReceiptTimeoutForChain(e.cfg.ChainID),
	}, e.logger)
}

func (e *env) newController(session *wallet.Session) (*signingflow.Controller, error) {
	mode, err := types.ParseSubmissionMode(e.cfg.Mode)
	if err != nil {
		return nil, err
	}
	relayClient, err := e.relayClient()
	if err != nil {
		return nil, err
	}
	var chainID *big.Int
	if e.cfg.ChainID != 0 {
		chainID = new(big.Int).SetUint64(uint64(e.cfg.ChainID))
	}
	controller, err := signingflow.NewController(&signingflow.Config{
		Session:  session,
		Contract: e.caller,
		Relay:    relayClient,
		ChainID:  chainID,
		Mode:     mode,
		Logger:   e.logger,
	})
	if err != nil {
		return nil, err
	}
	controller.Observe(func(s signingflow.Snapshot) {
		e.logger.Sugar().Debugw("Signing flow state changed", "state", s.State.String(), "busy", s.Busy)
	})
	return controller, nil
}

func (e *env) submitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, config.ReceiptTimeoutForChain(e.cfg.ChainID))
}

// documentDigest reads --file or --hash
func documentDigest(c *cli.Context) (types.DocumentDigest, error) {
	switch {
	case c.String("file") != "":
		return digest.FromFile(c.String("file"))
	case c.String("hash") != "":
		return digest.Parse(c.String("hash"))
	default:
		return types.DocumentDigest{}, fmt.Errorf("one of --file or --hash is required")
	}
}

func printJSON(c *cli.Context, v interface{}) error {
	encoder := json.NewEncoder(c.App.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
