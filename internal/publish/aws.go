package publish

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ffyyc/web/internal/errors"
)

// ClientConfig selects the AWS credentials and endpoint.
type ClientConfig struct {
	// Region overrides AWS_REGION and the shared config.
	Region string

	// Profile selects a shared config profile.
	Profile string

	// Endpoint points the client at an S3-compatible store. Path-style
	// addressing is used with it.
	Endpoint string
}

// LoadAWSConfig loads the SDK configuration through the default chain.
func LoadAWSConfig(ctx context.Context, cfg ClientConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.New("E160").
			WithDetail("Loading AWS configuration failed").
			WithSuggestion("Check AWS_REGION, AWS_PROFILE and your credentials").
			Wrap(err)
	}
	return awsCfg, nil
}

// NewClient creates an S3 client for cfg.
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
