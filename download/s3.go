package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/helix-tools/stac-sdk-go/api"
	"github.com/helix-tools/stac-sdk-go/types"
)

var s3URLPattern = regexp.MustCompile(`^(?i:s3)://([^/]+)/(.+)$`)

// ParseS3URL splits s3://bucket/key into bucket and key.
func ParseS3URL(href string) (string, string, error) {
	m := s3URLPattern.FindStringSubmatch(href)
	if m == nil {
		return "", "", fmt.Errorf("%w: invalid S3 URL %q, expected s3://bucket/key", types.ErrInvalidArgument, href)
	}

	return m[1], m[2], nil
}

// ObjectGetter is the subset of the S3 client used to fetch objects.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// RegionResolver returns the region a bucket lives in.
type RegionResolver func(ctx context.Context, bucket string) (string, error)

// S3Option configures an S3Strategy.
type S3Option func(*S3Strategy)

// WithRegionResolver replaces the bucket region lookup.
func WithRegionResolver(resolve RegionResolver) S3Option {
	return func(s *S3Strategy) {
		s.resolve = resolve
	}
}

// WithClientFactory replaces how region-scoped S3 clients are built.
func WithClientFactory(newClient func(region string) ObjectGetter) S3Option {
	return func(s *S3Strategy) {
		s.newClient = newClient
	}
}

// WithS3Logger sets the logger used for diagnostics.
func WithS3Logger(l zerolog.Logger) S3Option {
	return func(s *S3Strategy) {
		s.logger = l
	}
}

// S3Strategy retrieves s3:// hrefs. Credentials are fixed at construction;
// each object is fetched with a client scoped to its bucket's region.
type S3Strategy struct {
	cfg       aws.Config
	resolve   RegionResolver
	newClient func(region string) ObjectGetter
	logger    zerolog.Logger

	mu      sync.Mutex
	clients map[string]ObjectGetter
}

// NewS3Strategy creates an S3 strategy from cfg. Bucket regions are looked up
// with HeadBucket by default.
func NewS3Strategy(cfg aws.Config, opts ...S3Option) *S3Strategy {
	s := &S3Strategy{
		cfg:     cfg,
		logger:  log.Logger,
		clients: map[string]ObjectGetter{},
	}

	s.resolve = func(ctx context.Context, bucket string) (string, error) {
		return manager.GetBucketRegion(ctx, s3.NewFromConfig(s.cfg), bucket)
	}
	s.newClient = func(region string) ObjectGetter {
		return s3.NewFromConfig(s.cfg, func(o *s3.Options) {
			o.Region = region
		})
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// NewS3StrategyFromCredentials creates an S3 strategy with static
// credentials, or anonymous access when creds is empty.
func NewS3StrategyFromCredentials(ctx context.Context, creds api.Credentials, region string, opts ...S3Option) (*S3Strategy, error) {
	cfg, err := api.NewAWSConfig(ctx, creds, region)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewS3Strategy(cfg, opts...), nil
}

// Retrieve downloads the object named by href into destination.
func (s *S3Strategy) Retrieve(ctx context.Context, href, destination string) error {
	bucket, key, err := ParseS3URL(href)
	if err != nil {
		return err
	}

	region, err := s.resolve(ctx, bucket)
	if err != nil {
		return fmt.Errorf("%w: failed to resolve region of bucket %s: %v", types.ErrRetrieval, bucket, err)
	}

	s.logger.Debug().Str("bucket", bucket).Str("key", key).Str("region", region).Msg("GetObject")

	out, err := s.client(region).GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return fmt.Errorf("%w: %w: %s", types.ErrRetrieval, types.ErrNotFound, href)
		}

		return fmt.Errorf("%w: failed to get %s: %v", types.ErrRetrieval, href, err)
	}
	defer out.Body.Close()

	return writeFile(destination, out.Body)
}

// Open is not supported for S3 objects.
func (s *S3Strategy) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("%w: streaming S3 objects", types.ErrUnsupportedOperation)
}

func (s *S3Strategy) client(region string) ObjectGetter {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[region]
	if !ok {
		c = s.newClient(region)
		s.clients[region] = c
	}

	return c
}
