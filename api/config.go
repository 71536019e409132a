// Package api is an HTTP client for STAC APIs.
//
// It covers the read side of the STAC API: the landing page, collections,
// items and item search, with optional authentication (basic, bearer, API key
// header or AWS SigV4). It also carries the AWS configuration helpers shared
// with the S3 download strategy.
package api

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/helix-tools/stac-sdk-go/types"
)

// Credentials holds an AWS access key pair.
type Credentials struct {
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	SessionToken       string
}

// Anonymous reports whether no key pair is set.
func (c Credentials) Anonymous() bool {
	return c.AWSAccessKeyID == "" && c.AWSSecretAccessKey == ""
}

// TestConfig holds configuration for tests against a live catalog.
type TestConfig struct {
	// Endpoint is the catalog root (e.g., https://earth-search.aws.element84.com/v1).
	Endpoint string

	// CollectionID is a collection known to exist at Endpoint.
	CollectionID string

	// Region is the AWS region.
	Region string
}

// LoadTestConfig loads live-catalog test configuration from environment
// variables, skipping the test when no endpoint is configured:
//   - STAC_TEST_ENDPOINT: catalog root (required)
//   - STAC_TEST_COLLECTION: collection id (default: sentinel-2-l2a)
//   - STAC_TEST_REGION: AWS region (default: us-east-1)
func LoadTestConfig(t *testing.T) TestConfig {
	t.Helper()

	cfg := TestConfig{
		Endpoint:     os.Getenv("STAC_TEST_ENDPOINT"),
		CollectionID: getEnvOrDefault("STAC_TEST_COLLECTION", "sentinel-2-l2a"),
		Region:       getEnvOrDefault("STAC_TEST_REGION", types.DefaultRegion),
	}

	if cfg.Endpoint == "" {
		t.Skip("STAC_TEST_ENDPOINT not set")
	}

	return cfg
}

// LoadCredentialsFromSSM loads an access key pair from AWS SSM Parameter Store.
// It fetches:
//   - {prefix}/aws_access_key_id
//   - {prefix}/aws_secret_access_key
func LoadCredentialsFromSSM(ctx context.Context, prefix, region string) (Credentials, error) {
	if region == "" {
		region = types.DefaultRegion
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return loadCredentials(ctx, ssm.NewFromConfig(awsCfg), prefix)
}

// ParameterGetter is the subset of the SSM client used to read credentials.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

func loadCredentials(ctx context.Context, client ParameterGetter, prefix string) (Credentials, error) {
	prefix = strings.TrimRight(prefix, "/")

	accessKey, err := getParameter(ctx, client, prefix+"/aws_access_key_id")
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to get access key from SSM: %w", err)
	}

	secretKey, err := getParameter(ctx, client, prefix+"/aws_secret_access_key")
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to get secret key from SSM: %w", err)
	}

	return Credentials{
		AWSAccessKeyID:     accessKey,
		AWSSecretAccessKey: secretKey,
	}, nil
}

func getParameter(ctx context.Context, client ParameterGetter, name string) (string, error) {
	resp, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}

	if resp.Parameter == nil || resp.Parameter.Value == nil {
		return "", fmt.Errorf("%w: parameter %s has no value", types.ErrNotFound, name)
	}

	return *resp.Parameter.Value, nil
}

// NewAWSConfig creates an AWS config with static credentials, or anonymous
// credentials when creds is empty.
func NewAWSConfig(ctx context.Context, creds Credentials, region string) (aws.Config, error) {
	if region == "" {
		region = types.DefaultRegion
	}

	var provider aws.CredentialsProvider = aws.AnonymousCredentials{}
	if !creds.Anonymous() {
		provider = credentials.NewStaticCredentialsProvider(
			creds.AWSAccessKeyID,
			creds.AWSSecretAccessKey,
			creds.SessionToken,
		)
	}

	return config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(provider),
	)
}

// IdentityGetter is the subset of the STS client used to check credentials.
type IdentityGetter interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// ValidateCredentials checks that cfg carries working credentials and
// returns the caller ARN.
func ValidateCredentials(ctx context.Context, cfg aws.Config) (string, error) {
	return validateCredentials(ctx, sts.NewFromConfig(cfg))
}

func validateCredentials(ctx context.Context, client IdentityGetter) (string, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("invalid AWS credentials: %w", err)
	}

	return aws.ToString(out.Arn), nil
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultValue
}
