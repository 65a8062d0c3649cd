package main

import (
	"context"
	"fmt"
	"math/big"
	"os"

	"github.com/docsigner/docsigner-go/pkg/clients/web3signer"
	"github.com/docsigner/docsigner-go/pkg/config"
	"github.com/docsigner/docsigner-go/pkg/digest"
	"github.com/docsigner/docsigner-go/pkg/eip712"
	"github.com/docsigner/docsigner-go/pkg/keystore"
	"github.com/docsigner/docsigner-go/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signs the same Document typed data with a Web3Signer and with the raw key it
// holds, and checks that both recover to the same account.
func main() {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	ctx := context.Background()

	key, err := keystore.ParseHexKey(os.Getenv("PRIVATE_KEY"))
	if err != nil {
		l.Sugar().Fatalw("PRIVATE_KEY must hold the key loaded in the Web3Signer", "error", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey)

	signerCfg := &config.RemoteSignerConfig{
		Url:         "http://localhost:9100",
		FromAddress: address.Hex(),
	}
	web3SignerClient, err := web3signer.NewWeb3SignerClientFromRemoteSignerConfig(signerCfg, l)
	if err != nil {
		l.Sugar().Fatalw("failed to create Web3Signer client", "error", err)
	}

	domain := eip712.NewDocumentSignerDomain(big.NewInt(int64(config.ChainId_EthereumAnvil)), common.HexToAddress("0xc4CE88Db5D099CD68C5cb2554c2A54f4a90a111c"))
	typedData, err := eip712.NewDocumentTypedData(domain, digest.ComputeDigest([]byte("Hello, Web3Signer!")), 0)
	if err != nil {
		l.Sugar().Fatalw("failed to build typed data", "error", err)
	}

	sigHex, err := web3SignerClient.EthSignTypedData(ctx, address.Hex(), typedData)
	if err != nil {
		l.Sugar().Fatalw("failed to sign typed data with Web3Signer", "error", err)
	}
	signatureWeb3, err := hexutil.Decode(sigHex)
	if err != nil {
		l.Sugar().Fatalw("failed to decode Web3Signer signature", "error", err)
	}

	hash, err := eip712.Hash(typedData)
	if err != nil {
		l.Sugar().Fatalw("failed to hash typed data", "error", err)
	}
	signaturePK, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		l.Sugar().Fatalw("failed to sign typed data with private key", "error", err)
	}
	signaturePK = eip712.ToWalletFormat(signaturePK)

	recovered, err := eip712.RecoverSigner(typedData, signatureWeb3)
	if err != nil {
		l.Sugar().Fatalw("failed to recover Web3Signer signature", "error", err)
	}

	fmt.Printf("Account:                 %s\n", address.Hex())
	fmt.Printf("Recovered (Web3Signer):  %s\n", recovered.Hex())
	fmt.Printf("Signature (Web3Signer):  %s\n", common.Bytes2Hex(signatureWeb3))
	fmt.Printf("Signature (Private Key): %s\n", common.Bytes2Hex(signaturePK))

	if recovered == address && common.Bytes2Hex(signatureWeb3) == common.Bytes2Hex(signaturePK) {
		fmt.Println("Signatures match!")
	} else {
		fmt.Println("Signatures do not match!")
	}
}
