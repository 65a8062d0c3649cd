package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/docsigner/docsigner-go/internal/aws"
	"github.com/docsigner/docsigner-go/pkg/clients/web3signer"
	"github.com/docsigner/docsigner-go/pkg/config"
	"github.com/docsigner/docsigner-go/pkg/contractCaller/caller"
	"github.com/docsigner/docsigner-go/pkg/keystore"
	"github.com/docsigner/docsigner-go/pkg/logger"
	"github.com/docsigner/docsigner-go/pkg/persistence"
	badgerPersistence "github.com/docsigner/docsigner-go/pkg/persistence/badger"
	"github.com/docsigner/docsigner-go/pkg/persistence/memory"
	redisPersistence "github.com/docsigner/docsigner-go/pkg/persistence/redis"
	"github.com/docsigner/docsigner-go/pkg/relay"
	"github.com/docsigner/docsigner-go/pkg/transactionSigner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "docsigner-relay",
		Usage: "Relay that submits signed documents to the DocumentSigner contract",
		Description: `Accepts EIP-712 document signatures over HTTP and sends the signDocument /
invalidateSignature transactions from its own account, so signers need no gas.

The paying key comes from exactly one of a key file (created when missing),
an AWS KMS key or a Web3Signer account.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Usage:   "HTTP listen host",
				Value:   config.DefaultRelayHost,
				EnvVars: []string{config.EnvRelayHost},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "HTTP listen port",
				Value:   config.DefaultRelayPort,
				EnvVars: []string{config.EnvRelayPort},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Aliases: []string{"rpc"},
				Usage:   "Ethereum RPC endpoint URL",
				Value:   "http://localhost:8545",
				EnvVars: []string{config.EnvRelayRPCURL},
			},
			&cli.StringFlag{
				Name:    "document-signer-address",
				Usage:   "DocumentSigner contract address",
				EnvVars: []string{config.EnvRelayDocumentSignerAddress},
			},
			&cli.StringFlag{
				Name:    "key-file",
				Usage:   "Hex private key file, generated when missing or invalid",
				EnvVars: []string{config.EnvRelayKeyFile},
			},
			&cli.StringFlag{
				Name:    "aws-kms-key-id",
				Usage:   "AWS KMS secp256k1 key id or alias",
				EnvVars: []string{config.EnvRelayAWSKMSKeyID},
			},
			&cli.StringFlag{
				Name:    "aws-region",
				Usage:   "AWS region override for KMS",
				EnvVars: []string{config.EnvRelayAWSRegion},
			},
			&cli.StringFlag{
				Name:    "web3signer-url",
				Usage:   "Web3Signer URL",
				EnvVars: []string{config.EnvRelayWeb3SignerURL},
			},
			&cli.StringFlag{
				Name:    "web3signer-from-address",
				Usage:   "Account held by the Web3Signer",
				EnvVars: []string{config.EnvRelayWeb3SignerFromAddress},
			},
			&cli.Uint64Flag{
				Name:  "gas-limit",
				Usage: "Fixed gas limit per transaction, 0 to estimate",
				Value: config.DefaultRelayGasLimit,
			},
			&cli.Float64Flag{
				Name:    "rate-limit",
				Usage:   "Requests per second per client, 0 to disable",
				EnvVars: []string{config.EnvRelayRateLimit},
			},
			&cli.IntFlag{
				Name:    "rate-burst",
				Usage:   "Burst size for the rate limiter",
				Value:   5,
				EnvVars: []string{config.EnvRelayRateBurst},
			},
			&cli.StringFlag{
				Name:    "auth-jwks-url",
				Usage:   "JWKS URL; enables bearer-token auth when set",
				EnvVars: []string{config.EnvRelayAuthJWKSURL},
			},
			&cli.StringFlag{
				Name:    "auth-audience",
				Usage:   "Required token audience",
				EnvVars: []string{config.EnvRelayAuthAudience},
			},
			&cli.DurationFlag{
				Name:  "jwks-refresh",
				Usage: "JWKS refresh interval",
				Value: 15 * time.Minute,
			},
			&cli.StringFlag{
				Name:    "persistence",
				Usage:   "Receipt store: memory, badger or redis",
				Value:   string(config.PersistenceType_Memory),
				EnvVars: []string{config.EnvRelayPersistenceType},
			},
			&cli.StringFlag{
				Name:    "badger-path",
				Usage:   "Badger data directory",
				EnvVars: []string{config.EnvRelayBadgerPath},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis host:port",
				EnvVars: []string{config.EnvRelayRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				EnvVars: []string{config.EnvRelayRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				EnvVars: []string{config.EnvRelayRedisDB},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvRelayVerbose},
			},
		},
		Action: runRelay,
		Commands: []*cli.Command{
			createKMSKeyCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func parseRelayConfig(c *cli.Context) *config.RelayServerConfig {
	cfg := &config.RelayServerConfig{
		Host:                  c.String("host"),
		Port:                  c.Int("port"),
		RpcUrl:                c.String("rpc-url"),
		DocumentSignerAddress: c.String("document-signer-address"),
		KeyFile:               c.String("key-file"),
		AWSKMSKeyID:           c.String("aws-kms-key-id"),
		AWSRegion:             c.String("aws-region"),
		GasLimit:              c.Uint64("gas-limit"),
		RateLimit:             c.Float64("rate-limit"),
		RateBurst:             c.Int("rate-burst"),
		AuthJWKSURL:           c.String("auth-jwks-url"),
		AuthAudience:          c.String("auth-audience"),
		JWKSRefresh:           c.Duration("jwks-refresh"),
		Persistence:           config.PersistenceType(c.String("persistence")),
		BadgerPath:            c.String("badger-path"),
		RedisAddress:          c.String("redis-address"),
		RedisPassword:         c.String("redis-password"),
		RedisDB:               c.Int("redis-db"),
		Verbose:               c.Bool("verbose"),
	}
	if c.String("web3signer-url") != "" {
		cfg.Web3Signer = &config.RemoteSignerConfig{
			Url:         c.String("web3signer-url"),
			FromAddress: c.String("web3signer-from-address"),
		}
	}
	// the relay historically ran with ./secret.txt
	if cfg.KeyFile == "" && cfg.AWSKMSKeyID == "" && cfg.Web3Signer == nil {
		cfg.KeyFile = config.DefaultKeyFile
	}
	return cfg
}

func runRelay(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	cfg := parseRelayConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ethClient := ethereum.NewEthereumClient(&ethereum.EthereumClientConfig{
		BaseUrl:   cfg.RpcUrl,
		BlockType: ethereum.BlockType_Latest,
	}, l)
	client, err := ethClient.GetEthereumContractCaller()
	if err != nil {
		return fmt.Errorf("failed to get Ethereum contract caller for %s: %w", cfg.RpcUrl, err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain id: %w", err)
	}
	l.Sugar().Infow("Connected to chain", "chainId", chainID.String(), "rpcUrl", cfg.RpcUrl)

	txSigner, err := newTransactionSigner(ctx, cfg, client, l)
	if err != nil {
		return fmt.Errorf("failed to create transaction signer: %w", err)
	}

	contract, err := caller.NewContractCaller(client, common.HexToAddress(cfg.DocumentSignerAddress), common.Address{}, l)
	if err != nil {
		return fmt.Errorf("failed to create contract caller: %w", err)
	}

	store, err := newReceiptStore(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to create receipt store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			l.Sugar().Errorw("Failed to close receipt store", "error", err)
		}
	}()

	var verifier relay.TokenVerifier
	if cfg.AuthJWKSURL != "" {
		verifier, err = relay.NewJWKSVerifier(ctx, cfg.AuthJWKSURL, cfg.AuthAudience, cfg.JWKSRefresh)
		if err != nil {
			return fmt.Errorf("failed to set up token verification: %w", err)
		}
	}

	server, err := relay.NewServer(&relay.ServerConfig{
		Address:   cfg.ListenAddress(),
		Contract:  contract,
		Signer:    txSigner,
		Store:     store,
		Verifier:  verifier,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		Logger:    l,
	})
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}
	l.Sugar().Infow("Relay running",
		"address", server.Addr(),
		"relayAccount", txSigner.GetFromAddress().Hex(),
		"persistence", cfg.Persistence,
		"auth", cfg.AuthJWKSURL != "",
	)

	<-ctx.Done()
	l.Sugar().Info("Shutting down relay")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}

func newTransactionSigner(ctx context.Context, cfg *config.RelayServerConfig, client *ethclient.Client, l *zap.Logger) (transactionSigner.ITransactionSigner, error) {
	var opts []transactionSigner.Option
	if cfg.GasLimit > 0 {
		opts = append(opts, transactionSigner.WithFixedGasLimit(cfg.GasLimit))
	}

	switch {
	case cfg.AWSKMSKeyID != "":
		awsCfg, err := aws.LoadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		if identity, err := aws.GetCallerIdentity(ctx, awsCfg); err != nil {
			l.Sugar().Warnw("Failed to get AWS caller identity", "error", err)
		} else if identity.Arn != nil {
			l.Sugar().Infow("Using AWS KMS signer", "keyId", cfg.AWSKMSKeyID, "principal", *identity.Arn)
		}
		return transactionSigner.NewKMSTransactionSignerFromConfig(ctx, awsCfg, cfg.AWSKMSKeyID, client, l, opts...)
	case cfg.Web3Signer != nil:
		signerClient, err := web3signer.NewWeb3SignerClientFromRemoteSignerConfig(cfg.Web3Signer, l)
		if err != nil {
			return nil, err
		}
		return transactionSigner.NewWeb3TransactionSigner(signerClient, common.HexToAddress(cfg.Web3Signer.FromAddress), client, l, opts...)
	default:
		key, created, err := keystore.LoadOrCreateKey(cfg.KeyFile, l)
		if err != nil {
			return nil, err
		}
		if created {
			l.Sugar().Warnw("Created a new relay key, fund its address before relaying", "keyFile", cfg.KeyFile)
		}
		return transactionSigner.NewPrivateKeySignerFromKey(key, client, l, opts...)
	}
}

func newReceiptStore(cfg *config.RelayServerConfig, l *zap.Logger) (persistence.IReceiptStore, error) {
	switch cfg.Persistence {
	case config.PersistenceType_Badger:
		return badgerPersistence.NewBadgerPersistence(cfg.BadgerPath, l)
	case config.PersistenceType_Redis:
		return redisPersistence.NewRedisPersistence(&redisPersistence.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, l)
	default:
		return memory.NewMemoryPersistence(l), nil
	}
}

func createKMSKeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-kms-key",
		Usage: "Create an AWS KMS secp256k1 key for the relay account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Key name tag", Required: true},
			&cli.StringFlag{Name: "alias", Usage: "Alias to create for the key"},
			&cli.StringFlag{Name: "environment", Usage: "Environment tag", Value: "dev"},
		},
		Action: func(c *cli.Context) error {
			l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = l.Sync() }()

			awsCfg, err := aws.LoadAWSConfig(c.Context, c.String("aws-region"))
			if err != nil {
				return fmt.Errorf("failed to load aws config: %w", err)
			}
			created, err := aws.CreateRelaySigningKey(c.Context, kms.NewFromConfig(awsCfg), aws.RelayKeyRequest{
				Name:        c.String("name"),
				Alias:       c.String("alias"),
				Environment: c.String("environment"),
			})
			if created != nil {
				l.Sugar().Infow("Created KMS key", "keyId", created.KeyID, "arn", created.Arn, "alias", created.Alias)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]string{
				"keyId": created.KeyID,
				"arn":   created.Arn,
				"alias": created.Alias,
			})
		},
	}
}
