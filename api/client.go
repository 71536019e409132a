package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/helix-tools/stac-sdk-go/parser"
	"github.com/helix-tools/stac-sdk-go/types"
)

// maxErrorBody bounds how much of a failed response is kept in an APIError.
const maxErrorBody = 4096

// Client talks to a STAC API over HTTP.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	auth       types.Authentication
	awsConfig  *aws.Config
	parser     *parser.Parser
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithParser replaces the default document parser.
func WithParser(p *parser.Parser) Option {
	return func(c *Client) {
		c.parser = p
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithAWSConfig supplies the credentials used for AWS_SIGV4 authentication.
func WithAWSConfig(cfg aws.Config) Option {
	return func(c *Client) {
		c.awsConfig = &cfg
	}
}

// APIError is a non-2xx response. It matches types.ErrRetrieval, and
// types.ErrNotFound for 404 responses.
type APIError struct {
	URL        string
	StatusCode int
	Body       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.StatusCode, e.Message)
	}

	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case types.ErrRetrieval:
		return true
	case types.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}

	return false
}

// NewClient creates a client for the catalog rooted at baseURL.
func NewClient(baseURL string, auth types.Authentication, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid catalog URL %q: %v", types.ErrInvalidArgument, baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: catalog URL %q must be http or https", types.ErrInvalidArgument, baseURL)
	}

	if auth.Type == "" {
		auth.Type = types.AuthNone
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		auth:       auth,
		parser:     parser.New(),
		logger:     log.Logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	if auth.Type == types.AuthAWSSigV4 && c.awsConfig == nil {
		return nil, fmt.Errorf("%w: AWS_SIGV4 authentication requires an AWS config", types.ErrInvalidArgument)
	}

	return c, nil
}

// BaseURL returns the root URL of the catalog.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Parser returns the parser used to decode responses.
func (c *Client) Parser() *parser.Parser {
	return c.parser
}

// Open performs an authenticated GET of href and returns the response body
// positioned at its start. The caller closes it.
func (c *Client) Open(ctx context.Context, href string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request for %q: %v", types.ErrInvalidArgument, href, err)
	}

	req.Header.Set("Accept", "application/json, application/geo+json, */*")

	if err := c.authenticate(ctx, req); err != nil {
		return nil, err
	}

	c.logger.Debug().Str("url", href).Msg("GET")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", types.ErrRetrieval, href, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{
			URL:        href,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}

		// Try to extract error message from JSON response.
		var errResp struct {
			Code        string `json:"code"`
			Description string `json:"description"`
			Message     string `json:"message"`
		}

		if json.Unmarshal(respBody, &errResp) == nil {
			if errResp.Description != "" {
				apiErr.Message = errResp.Description
			} else if errResp.Message != "" {
				apiErr.Message = errResp.Message
			}
		}

		return nil, apiErr
	}

	return resp.Body, nil
}

// authenticate attaches the configured credentials to req.
func (c *Client) authenticate(ctx context.Context, req *http.Request) error {
	switch c.auth.Type {
	case types.AuthNone:
		return nil
	case types.AuthBasic:
		req.SetBasicAuth(c.auth.Username, c.auth.Password)
	case types.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+c.auth.Token)
	case types.AuthAPIKey:
		name := c.auth.HeaderName
		if name == "" {
			name = "X-API-Key"
		}
		req.Header.Set(name, c.auth.HeaderValue)
	case types.AuthAWSSigV4:
		creds, err := c.awsConfig.Credentials.Retrieve(ctx)
		if err != nil {
			return fmt.Errorf("failed to retrieve credentials: %w", err)
		}

		region := c.auth.AWSRegion
		if region == "" {
			region = c.awsConfig.Region
		}
		service := c.auth.AWSService
		if service == "" {
			service = "execute-api"
		}

		signer := v4.NewSigner()
		if err := signer.SignHTTP(ctx, creds, req, types.EmptyPayloadHash, service, region, time.Now()); err != nil {
			return fmt.Errorf("failed to sign request: %w", err)
		}
	default:
		return fmt.Errorf("%w: unknown authentication type %q", types.ErrInvalidArgument, c.auth.Type)
	}

	return nil
}

// endpoint builds an absolute URL under the catalog root.
func (c *Client) endpoint(query url.Values, segments ...string) string {
	u := c.baseURL.JoinPath(segments...)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	return u.String()
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return q
}

// IsNotFoundError checks if an error is a 404 Not Found error.
func IsNotFoundError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}

	return false
}

// IsForbiddenError checks if an error is a 403 Forbidden error.
func IsForbiddenError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusForbidden || apiErr.StatusCode == http.StatusUnauthorized
	}

	return false
}
