// Package aws implements the CloudWatch Logs backend for logkeep.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog/log"

	lkconfig "github.com/yairfalse/logkeep/internal/config"
	"github.com/yairfalse/logkeep/internal/plugin"
)

func init() {
	plugin.Register(lkconfig.BackendAWS, func(ctx context.Context, cfg *lkconfig.Config) (plugin.Backend, error) {
		return New(ctx, Config{Region: cfg.AWS.Region, Profile: cfg.AWS.Profile})
	})
}

// Backend drives CloudWatch Logs through the AWS SDK.
type Backend struct {
	region string

	// AWS clients (interfaces for testability)
	logsClient CloudWatchLogsAPI
	iamClient  IAMAPI
	stsClient  STSAPI
}

// Config holds AWS backend configuration.
type Config struct {
	Region  string
	Profile string
}

// New creates a new AWS backend.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Backend{
		region:     awsCfg.Region,
		logsClient: cloudwatchlogs.NewFromConfig(awsCfg),
		iamClient:  iam.NewFromConfig(awsCfg),
		stsClient:  sts.NewFromConfig(awsCfg),
	}, nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return lkconfig.BackendAWS
}

// Region returns the resolved AWS region.
func (b *Backend) Region() string {
	return b.region
}

// AccountID returns the caller's account, or "unknown" if the lookup fails.
func (b *Backend) AccountID(ctx context.Context) string {
	output, err := b.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		log.Debug().Err(err).Msg("caller identity lookup failed")
		return "unknown"
	}
	if account := aws.ToString(output.Account); account != "" {
		return account
	}
	return "unknown"
}
