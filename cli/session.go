package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/helix-tools/stac-sdk-go/api"
	"github.com/helix-tools/stac-sdk-go/download"
	"github.com/helix-tools/stac-sdk-go/fetcher"
	"github.com/helix-tools/stac-sdk-go/types"
)

// session holds the collaborators of one command invocation.
type session struct {
	cfg       types.Config
	client    *api.Client
	retriever *download.Retriever
	metrics   *fetcher.Metrics
}

// config resolves the settings of this invocation from flags, environment
// and config file.
func (a *app) config() (types.Config, error) {
	cfg := types.Config{
		Endpoint: a.v.GetString("stac.endpoint"),
		Auth: types.Authentication{
			Type:        types.AuthType(strings.ToUpper(a.v.GetString("auth.type"))),
			Username:    a.v.GetString("auth.username"),
			Password:    a.v.GetString("auth.password"),
			Token:       a.v.GetString("auth.token"),
			HeaderName:  a.v.GetString("auth.header_name"),
			HeaderValue: a.v.GetString("auth.header_value"),
			AWSRegion:   a.v.GetString("aws.region"),
			AWSService:  a.v.GetString("auth.aws_service"),
		},
		AWSAccessKeyID:     a.v.GetString("aws.access_key_id"),
		AWSSecretAccessKey: a.v.GetString("aws.secret_access_key"),
		Region:             a.v.GetString("aws.region"),
		OutputDir:          a.v.GetString("stac.output_dir"),
		MaxPages:           a.v.GetInt("stac.max_pages"),
		Limit:              a.v.GetInt("stac.limit"),
	}

	if cfg.Endpoint == "" {
		return cfg, fmt.Errorf("%w: an endpoint is required (--endpoint or STAC_ENDPOINT)", types.ErrInvalidArgument)
	}

	return cfg, nil
}

func (a *app) newSession(ctx context.Context) (*session, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}

	creds := api.Credentials{
		AWSAccessKeyID:     cfg.AWSAccessKeyID,
		AWSSecretAccessKey: cfg.AWSSecretAccessKey,
	}

	if prefix := a.v.GetString("aws.ssm_prefix"); prefix != "" {
		creds, err = api.LoadCredentialsFromSSM(ctx, prefix, cfg.Region)
		if err != nil {
			return nil, err
		}
		log.Info().Str("prefix", prefix).Msg("loaded AWS credentials from SSM")
	}

	awsCfg, err := api.NewAWSConfig(ctx, creds, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if a.v.GetBool("aws.validate") && !creds.Anonymous() {
		arn, err := api.ValidateCredentials(ctx, awsCfg)
		if err != nil {
			return nil, err
		}
		log.Info().Str("arn", arn).Msg("AWS credentials validated")
	}

	client, err := api.NewClient(cfg.Endpoint, cfg.Auth,
		api.WithAWSConfig(awsCfg),
		api.WithLogger(log.Logger),
	)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:       cfg,
		client:    client,
		retriever: newRetriever(client, awsCfg),
		metrics:   a.metrics(),
	}, nil
}

func newRetriever(client *api.Client, awsCfg aws.Config) *download.Retriever {
	return download.New(
		download.WithHTTP(client),
		download.WithS3(download.NewS3Strategy(awsCfg, download.WithS3Logger(log.Logger))),
		download.WithLogger(log.Logger),
	)
}

// metrics registers the traversal counters once per command tree.
func (a *app) metrics() *fetcher.Metrics {
	if a.walkMetrics == nil {
		a.walkMetrics = fetcher.NewMetrics(a.registry)
	}

	return a.walkMetrics
}

func (s *session) walker(visitor fetcher.AssetVisitor) *fetcher.Walker {
	return fetcher.New(s.client,
		fetcher.WithVisitor(visitor),
		fetcher.WithMetrics(s.metrics),
		fetcher.WithLogger(log.Logger),
	)
}

// report prints the run result and writes the metrics file if one is
// configured.
func (a *app) report(out io.Writer, summary *fetcher.Summary) error {
	skipped := summary.Skipped()

	fmt.Fprintf(out, "run %s: %s (%d units, %d skipped)\n", summary.RunID, summary.State(), len(summary.Outcomes), len(skipped))
	for _, o := range skipped {
		fmt.Fprintf(out, "  skipped %s %s: %v\n", o.Kind, o.ID, o.Err)
	}

	if file := a.v.GetString("metrics.file"); file != "" {
		if err := prometheus.WriteToTextfile(file, a.registry); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	return nil
}
