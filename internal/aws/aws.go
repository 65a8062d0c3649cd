package aws

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// LoadAWSConfig loads the default credential chain, using the shared profile
// outside of Kubernetes.
func LoadAWSConfig(ctx context.Context, regionOverride string) (aws.Config, error) {
	var options []func(*config.LoadOptions) error

	if !isInKubernetes() {
		options = append(options, config.WithSharedConfigProfile(getProfile()))
	}

	if regionOverride != "" {
		options = append(options, config.WithRegion(regionOverride))
	}

	return config.LoadDefaultConfig(ctx, options...)
}

func isInKubernetes() bool {
	_, err := os.Stat("/var/run/secrets/kubernetes.io/serviceaccount/token")
	return err == nil
}

func getProfile() string {
	if profile := os.Getenv("AWS_PROFILE"); profile != "" {
		return profile
	}
	return "default"
}

// GetCallerIdentity is used by the relay at startup to log which principal
// will be calling kms:Sign.
func GetCallerIdentity(ctx context.Context, cfg aws.Config) (*sts.GetCallerIdentityOutput, error) {
	stsClient := sts.NewFromConfig(cfg)
	return stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
}
