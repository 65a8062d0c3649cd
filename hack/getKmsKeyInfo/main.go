package main

import (
	"context"
	"os"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/docsigner/docsigner-go/internal/aws"
	"github.com/docsigner/docsigner-go/pkg/logger"
	"github.com/docsigner/docsigner-go/pkg/transactionSigner"
)

// Prints the relay account address backed by an AWS KMS key, so it can be
// funded before the relay is started with --aws-kms-key-id.
func main() {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	ctx := context.Background()

	keyId := os.Getenv("KEY_ID")
	if keyId == "" {
		l.Sugar().Fatal("KEY_ID environment variable is not set")
	}
	rpcUrl := os.Getenv("RPC_URL")
	if rpcUrl == "" {
		rpcUrl = "http://localhost:8545"
	}

	awsCfg, err := aws.LoadAWSConfig(ctx, os.Getenv("AWS_REGION"))
	if err != nil {
		l.Sugar().Fatalw("failed to load aws config", "error", err)
	}

	ethClient := ethereum.NewEthereumClient(&ethereum.EthereumClientConfig{
		BaseUrl:   rpcUrl,
		BlockType: ethereum.BlockType_Latest,
	}, l)
	client, err := ethClient.GetEthereumContractCaller()
	if err != nil {
		l.Sugar().Fatalw("failed to get Ethereum contract caller", "error", err)
	}
	defer client.Close()

	signer, err := transactionSigner.NewKMSTransactionSignerFromConfig(ctx, awsCfg, keyId, client, l)
	if err != nil {
		l.Sugar().Fatalw("failed to load KMS key", "error", err)
	}

	l.Sugar().Infow("KMS relay key",
		"keyId", keyId,
		"address", signer.GetFromAddress().Hex(),
		"chainId", signer.ChainID().String(),
	)
}
