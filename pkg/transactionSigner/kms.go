package transactionSigner

import (
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmsTypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// KMSAPI is the subset of the AWS KMS client used for signing
type KMSAPI interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
}

// KMSTransactionSigner signs transactions with an ECC_SECG_P256K1 key held in AWS KMS
type KMSTransactionSigner struct {
	*baseSigner
	kmsClient KMSAPI
	keyID     string
	publicKey *ecdsa.PublicKey
}

func NewKMSTransactionSignerFromConfig(ctx context.Context, awsCfg aws.Config, keyID string, backend EthBackend, logger *zap.Logger, opts ...Option) (*KMSTransactionSigner, error) {
	return NewKMSTransactionSigner(ctx, kms.NewFromConfig(awsCfg), keyID, backend, logger, opts...)
}

func NewKMSTransactionSigner(ctx context.Context, kmsClient KMSAPI, keyID string, backend EthBackend, logger *zap.Logger, opts ...Option) (*KMSTransactionSigner, error) {
	if keyID == "" {
		return nil, fmt.Errorf("kms key id is required")
	}
	pubKeyOutput, err := kmsClient.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyID)})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for key %s", keyID)
	}
	publicKey, err := parseECDSAPublicKey(pubKeyOutput.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for key %s", keyID)
	}

	base, err := newBaseSigner(backend, crypto.PubkeyToAddress(*publicKey), logger, opts)
	if err != nil {
		return nil, err
	}
	return &KMSTransactionSigner{
		baseSigner: base,
		kmsClient:  kmsClient,
		keyID:      keyID,
		publicKey:  publicKey,
	}, nil
}

// SignAndSendTransaction signs a transaction with KMS and sends it to the network
func (k *KMSTransactionSigner) SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	unsigned, err := k.prepare(ctx, tx)
	if err != nil {
		return nil, err
	}

	signer := types.LatestSignerForChainID(k.chainID)
	unsignedTx := types.NewTx(unsigned)

	sig, err := k.SignHash(ctx, signer.Hash(unsignedTx).Bytes())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign transaction with kms key %s", k.keyID)
	}

	signedTx, err := unsignedTx.WithSignature(signer, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to attach signature: %w", err)
	}
	return k.sendAndWait(ctx, signedTx)
}

// SignHash returns a 65 byte [R || S || V] signature with V in {0, 1}
func (k *KMSTransactionSigner) SignHash(ctx context.Context, hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be exactly 32 bytes, got %d", len(hash))
	}

	signOutput, err := k.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(k.keyID),
		Message:          hash,
		SigningAlgorithm: kmsTypes.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      kmsTypes.MessageTypeDigest,
	})
	if err != nil {
		return nil, err
	}

	var sigAsn1 asn1EcSig
	if _, err := asn1.Unmarshal(signOutput.Signature, &sigAsn1); err != nil {
		return nil, fmt.Errorf("failed to parse kms signature: %w", err)
	}

	r := new(big.Int).SetBytes(sigAsn1.R.Bytes)
	s := new(big.Int).SetBytes(sigAsn1.S.Bytes)

	// Ethereum only accepts low-S signatures
	curveOrder := crypto.S256().Params().N
	halfOrder := new(big.Int).Rsh(curveOrder, 1)
	if s.Cmp(halfOrder) > 0 {
		s = new(big.Int).Sub(curveOrder, s)
	}

	signature := make([]byte, crypto.SignatureLength)
	r.FillBytes(signature[0:32])
	s.FillBytes(signature[32:64])

	for recoveryID := byte(0); recoveryID < 2; recoveryID++ {
		signature[64] = recoveryID
		recovered, err := crypto.SigToPub(hash, signature)
		if err != nil {
			k.logger.Debug("Signature recovery failed",
				zap.Uint8("recoveryId", recoveryID),
				zap.Error(err),
			)
			continue
		}
		if recovered.X.Cmp(k.publicKey.X) == 0 && recovered.Y.Cmp(k.publicKey.Y) == 0 {
			return signature, nil
		}
	}
	return nil, fmt.Errorf("could not determine valid recovery ID for kms signature")
}

// parseECDSAPublicKey parses the DER-encoded SubjectPublicKeyInfo returned by KMS
func parseECDSAPublicKey(derBytes []byte) (*ecdsa.PublicKey, error) {
	var asn1pubk asn1EcPublicKey
	if _, err := asn1.Unmarshal(derBytes, &asn1pubk); err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}
	return crypto.UnmarshalPubkey(asn1pubk.PublicKey.Bytes)
}

type asn1EcSig struct {
	R asn1.RawValue
	S asn1.RawValue
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}
