package download

import (
	"context"
	"io"
)

// Opener performs an authenticated GET. *api.Client satisfies it.
type Opener interface {
	Open(ctx context.Context, href string) (io.ReadCloser, error)
}

// HTTPStrategy retrieves http and https hrefs through an Opener, so asset
// downloads carry the same authentication as catalog requests.
type HTTPStrategy struct {
	opener Opener
}

// NewHTTPStrategy creates an HTTP strategy backed by opener.
func NewHTTPStrategy(opener Opener) *HTTPStrategy {
	return &HTTPStrategy{opener: opener}
}

// Retrieve downloads href into destination.
func (s *HTTPStrategy) Retrieve(ctx context.Context, href, destination string) error {
	body, err := s.opener.Open(ctx, href)
	if err != nil {
		return err
	}
	defer body.Close()

	return writeFile(destination, body)
}

// Open returns the response body of href. The caller closes it.
func (s *HTTPStrategy) Open(ctx context.Context, href string) (io.ReadCloser, error) {
	return s.opener.Open(ctx, href)
}
