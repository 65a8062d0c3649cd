package main

import (
	"fmt"
	"log"
	"os"

	"github.com/docsigner/docsigner-go/pkg/config"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "docsigner",
		Usage: "Sign documents on chain and query the accreditation registry",
		Description: `Computes keccak256 document digests, signs them as EIP-712 typed data and
commits the signature to the DocumentSigner contract, either directly from the
signing account or through a relay that pays the gas.

Keys come from --private-key, an encrypted --keystore-path or a Web3Signer.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Aliases: []string{"rpc"},
				Usage:   "Ethereum RPC endpoint URL",
				Value:   "http://localhost:8545",
				EnvVars: []string{config.EnvDocSignerRPCURL},
			},
			&cli.Uint64Flag{
				Name:    "chain-id",
				Aliases: []string{"chain"},
				Usage:   fmt.Sprintf("Expected chain ID: %s", config.GetSupportedChainIDsString()),
				EnvVars: []string{config.EnvDocSignerChainID},
			},
			&cli.StringFlag{
				Name:    "document-signer-address",
				Usage:   "DocumentSigner contract address (defaults per chain)",
				EnvVars: []string{config.EnvDocSignerDocumentSignerAddress},
			},
			&cli.StringFlag{
				Name:    "registry-address",
				Usage:   "AccreditationRegistry contract address",
				EnvVars: []string{config.EnvDocSignerAccreditationRegistryAddress},
			},
			&cli.StringFlag{
				Name:    "relay-url",
				Usage:   "Relay base URL for relayed submission",
				Value:   config.DefaultRelayURL,
				EnvVars: []string{config.EnvDocSignerRelayURL},
			},
			&cli.StringFlag{
				Name:    "relay-token",
				Usage:   "Bearer token sent to the relay",
				EnvVars: []string{config.EnvDocSignerRelayToken},
			},
			&cli.StringFlag{
				Name:    "mode",
				Usage:   "Submission mode: direct or relayed",
				Value:   "direct",
				EnvVars: []string{config.EnvDocSignerMode},
			},
			&cli.StringFlag{
				Name:    "private-key",
				Usage:   "Hex private key of the signing account",
				EnvVars: []string{config.EnvDocSignerPrivateKey},
			},
			&cli.StringFlag{
				Name:    "keystore-path",
				Usage:   "Encrypted keystore JSON of the signing account",
				EnvVars: []string{config.EnvDocSignerKeystorePath},
			},
			&cli.StringFlag{
				Name:    "keystore-password",
				Usage:   "Keystore passphrase (prompted when empty)",
				EnvVars: []string{config.EnvDocSignerKeystorePassword},
			},
			&cli.StringFlag{
				Name:    "web3signer-url",
				Usage:   "Web3Signer URL holding the signing account",
				EnvVars: []string{config.EnvDocSignerWeb3SignerURL},
			},
			&cli.BoolFlag{
				Name:  "confirm",
				Usage: "Ask for confirmation before every signature and transaction",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvDocSignerVerbose},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "digest",
				Usage:  "Print the keccak256 digest of a document",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true}},
				Action: digestCommand,
			},
			{
				Name:  "sign",
				Usage: "Sign a document and commit the signature",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true},
					&cli.BoolFlag{Name: "no-submit", Usage: "Only produce the signature"},
				},
				Action: signCommand,
			},
			{
				Name:   "invalidate",
				Usage:  "Invalidate the connected account's signature of a document",
				Flags:  append([]cli.Flag{&cli.StringFlag{Name: "signer", Usage: "Signer to invalidate (defaults to the connected account)"}}, documentFlags...),
				Action: invalidateCommand,
			},
			{
				Name:   "signers",
				Usage:  "List a document's signers with verification and registry identity",
				Flags:  documentFlags,
				Action: signersCommand,
			},
			{
				Name:   "verify",
				Usage:  "Verify a stored signature",
				Flags:  append([]cli.Flag{&cli.StringFlag{Name: "signer", Required: true}}, documentFlags...),
				Action: verifyCommand,
			},
			{
				Name:   "lab-info",
				Usage:  "Show a laboratory and its accreditations",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "lab", Required: true}},
				Action: labInfoCommand,
			},
			{
				Name:   "relay-address",
				Usage:  "Print the relay's paying account",
				Action: relayAddressCommand,
			},
			{
				Name:   "relay-receipts",
				Usage:  "List the relay's receipts for a document",
				Flags:  documentFlags,
				Action: relayReceiptsCommand,
			},
			registryCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
