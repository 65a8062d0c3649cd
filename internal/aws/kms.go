package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/pkg/errors"
)

// KeyCreator is the subset of the KMS client needed to provision a relay key
type KeyCreator interface {
	CreateKey(ctx context.Context, params *kms.CreateKeyInput, optFns ...func(*kms.Options)) (*kms.CreateKeyOutput, error)
	CreateAlias(ctx context.Context, params *kms.CreateAliasInput, optFns ...func(*kms.Options)) (*kms.CreateAliasOutput, error)
}

// RelayKeyRequest describes a new relay signing key
type RelayKeyRequest struct {
	Name        string
	Alias       string
	Environment string
}

// CreatedKey identifies a freshly created KMS key
type CreatedKey struct {
	KeyID string
	Arn   string
	Alias string
}

// CreateRelaySigningKey creates a secp256k1 SIGN_VERIFY key for the relay
// account and, when requested, an alias pointing at it.
func CreateRelaySigningKey(ctx context.Context, client KeyCreator, req RelayKeyRequest) (*CreatedKey, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("key name is required")
	}
	environment := req.Environment
	if environment == "" {
		environment = "dev"
	}

	out, err := client.CreateKey(ctx, &kms.CreateKeyInput{
		KeyUsage:    types.KeyUsageTypeSignVerify,
		KeySpec:     types.KeySpecEccSecgP256k1,
		Description: aws.String(fmt.Sprintf("Document relay transaction signing key - %s", req.Name)),
		Tags: []types.Tag{
			{TagKey: aws.String("Name"), TagValue: aws.String(req.Name)},
			{TagKey: aws.String("Environment"), TagValue: aws.String(environment)},
			{TagKey: aws.String("Purpose"), TagValue: aws.String("document-relay")},
			{TagKey: aws.String("Curve"), TagValue: aws.String("secp256k1")},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create KMS key")
	}
	if out.KeyMetadata == nil || out.KeyMetadata.KeyId == nil {
		return nil, fmt.Errorf("KMS returned no key metadata")
	}

	created := &CreatedKey{
		KeyID: aws.ToString(out.KeyMetadata.KeyId),
		Arn:   aws.ToString(out.KeyMetadata.Arn),
	}

	if req.Alias == "" {
		return created, nil
	}
	alias := req.Alias
	if !strings.HasPrefix(alias, "alias/") {
		alias = "alias/" + alias
	}
	if _, err := client.CreateAlias(ctx, &kms.CreateAliasInput{
		AliasName:   aws.String(alias),
		TargetKeyId: aws.String(created.KeyID),
	}); err != nil {
		return created, errors.Wrapf(err, "key %s created but alias %s failed", created.KeyID, alias)
	}
	created.Alias = alias
	return created, nil
}
