// Package types defines the STAC documents, authentication settings and
// result types shared across the SDK.
package types

// EmptyPayloadHash is the SHA256 hash of an empty payload.
const EmptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

const (
	// DefaultLimit is the page size used when none is configured.
	DefaultLimit = 10
	// DefaultMaxPages caps paging when no maximum is configured.
	DefaultMaxPages = 5
	// DefaultRegion is the AWS region used for region-independent calls.
	DefaultRegion = "us-east-1"
)

// Config contains configuration for a catalog session.
type Config struct {
	Endpoint           string
	Auth               Authentication
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	Region             string
	OutputDir          string
	MaxPages           int
	Limit              int
}

// AuthType enumerates the authentication schemes attached to outbound requests.
type AuthType string

const (
	AuthNone     AuthType = "NONE"
	AuthBasic    AuthType = "BASIC"
	AuthBearer   AuthType = "BEARER"
	AuthAPIKey   AuthType = "API_KEY"
	AuthAWSSigV4 AuthType = "AWS_SIGV4"
)

// Authentication describes how requests to the catalog are authenticated.
// Only the fields relevant to Type are read.
type Authentication struct {
	Type AuthType

	// BASIC
	Username string
	Password string

	// BEARER
	Token string

	// API_KEY
	HeaderName  string
	HeaderValue string

	// AWS_SIGV4
	AWSRegion  string
	AWSService string
}

// NoAuthentication returns an Authentication of type NONE.
func NoAuthentication() Authentication {
	return Authentication{Type: AuthNone}
}
