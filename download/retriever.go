package download

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/helix-tools/stac-sdk-go/types"
)

// UnsupportedProtocolError reports an href whose scheme has no strategy.
type UnsupportedProtocolError struct {
	Scheme string
	Href   string
}

func (e *UnsupportedProtocolError) Error() string {
	if e.Scheme == "" {
		return fmt.Sprintf("unsupported protocol: %q has no scheme", e.Href)
	}

	return fmt.Sprintf("unsupported protocol %q in %q", e.Scheme, e.Href)
}

// Is matches types.ErrUnsupportedProtocol.
func (e *UnsupportedProtocolError) Is(target error) bool {
	return target == types.ErrUnsupportedProtocol
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithStrategy registers s for scheme, replacing any earlier registration.
func WithStrategy(scheme string, s Strategy) Option {
	return func(r *Retriever) {
		r.strategies[strings.ToLower(scheme)] = s
	}
}

// WithHTTP registers an HTTPStrategy backed by opener for http and https.
func WithHTTP(opener Opener) Option {
	return func(r *Retriever) {
		s := NewHTTPStrategy(opener)
		r.strategies["http"] = s
		r.strategies["https"] = s
	}
}

// WithS3 registers s for s3.
func WithS3(s *S3Strategy) Option {
	return WithStrategy("s3", s)
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Retriever) {
		r.logger = l
	}
}

// Retriever dispatches downloads by URL scheme. Its strategy table is fixed
// at construction.
type Retriever struct {
	strategies map[string]Strategy
	logger     zerolog.Logger
}

// New creates a Retriever with the given strategies.
func New(opts ...Option) *Retriever {
	r := &Retriever{
		strategies: map[string]Strategy{},
		logger:     log.Logger,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Schemes lists the registered schemes in sorted order.
func (r *Retriever) Schemes() []string {
	schemes := make([]string, 0, len(r.strategies))
	for s := range r.strategies {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)

	return schemes
}

// Strategy returns the strategy registered for the scheme of href.
func (r *Retriever) Strategy(href string) (Strategy, error) {
	scheme, _, ok := strings.Cut(href, "://")
	if !ok {
		return nil, &UnsupportedProtocolError{Href: href}
	}

	s, ok := r.strategies[strings.ToLower(scheme)]
	if !ok {
		return nil, &UnsupportedProtocolError{Scheme: scheme, Href: href}
	}

	return s, nil
}

// Retrieve downloads href into folder, naming the file after the last path
// segment of href, and returns the file's path. folder is created if absent.
func (r *Retriever) Retrieve(ctx context.Context, href, folder string) (string, error) {
	s, err := r.Strategy(href)
	if err != nil {
		return "", err
	}

	name, err := Filename(href)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create %s: %v", types.ErrRetrieval, folder, err)
	}

	destination := filepath.Join(folder, name)
	r.logger.Debug().Str("href", href).Str("destination", destination).Msg("retrieving")

	if err := s.Retrieve(ctx, href, destination); err != nil {
		return "", err
	}

	return destination, nil
}

// RetrieveAsset downloads an asset into folder.
func (r *Retriever) RetrieveAsset(ctx context.Context, asset types.Asset, folder string) (string, error) {
	return r.Retrieve(ctx, asset.Href, folder)
}

// Open streams href when its strategy supports it.
func (r *Retriever) Open(ctx context.Context, href string) (io.ReadCloser, error) {
	s, err := r.Strategy(href)
	if err != nil {
		return nil, err
	}

	streamer, ok := s.(Streamer)
	if !ok {
		return nil, fmt.Errorf("%w: streaming %s", types.ErrUnsupportedOperation, href)
	}

	return streamer.Open(ctx, href)
}

// RetrieveItem downloads every asset of item into folder/<item id>, in asset
// key order. A failing asset is recorded as skipped and the rest still run.
func (r *Retriever) RetrieveItem(ctx context.Context, item *types.Item, folder string) []types.Outcome {
	if len(item.Assets) == 0 {
		return nil
	}

	dir := filepath.Join(folder, item.ID)

	keys := make([]string, 0, len(item.Assets))
	for k := range item.Assets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outcomes := make([]types.Outcome, 0, len(keys))
	for _, key := range keys {
		id := item.ID + "/" + key

		path, err := r.RetrieveAsset(ctx, item.Assets[key], dir)
		if err != nil {
			r.logger.Debug().Err(err).Str("item", item.ID).Str("asset", key).Msg("asset not retrieved")
			outcomes = append(outcomes, types.Skip(types.UnitAsset, id, err))
			continue
		}

		o := types.Done(types.UnitAsset, id)
		o.Path = path
		outcomes = append(outcomes, o)
	}

	return outcomes
}

// Filename returns the name a download of href is stored under. For s3 it is
// the last segment of the object key, verbatim. For other schemes it is the
// last segment of the URL path with query and fragment dropped, unescaped
// when the escapes are valid.
func Filename(href string) (string, error) {
	scheme, rest, hasScheme := strings.Cut(href, "://")
	if !hasScheme {
		rest = href
	}

	var name string
	if hasScheme && strings.EqualFold(scheme, "s3") {
		_, key, err := ParseS3URL(href)
		if err != nil {
			return "", err
		}
		name = key[strings.LastIndex(key, "/")+1:]
	} else {
		rest, _, _ = strings.Cut(rest, "#")
		rest, _, _ = strings.Cut(rest, "?")
		if hasScheme {
			// drop the authority
			i := strings.Index(rest, "/")
			if i < 0 {
				return "", fmt.Errorf("%w: no file name in %q", types.ErrInvalidArgument, href)
			}
			rest = rest[i:]
		}

		name = rest[strings.LastIndex(rest, "/")+1:]
		if unescaped, err := url.PathUnescape(name); err == nil && !strings.Contains(unescaped, "/") {
			name = unescaped
		}
	}

	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: no file name in %q", types.ErrInvalidArgument, href)
	}

	return name, nil
}
