// Package download retrieves STAC asset files over the protocols their hrefs
// name.
//
// A Retriever dispatches on the URL scheme to a Strategy: HTTPStrategy for
// http and https, S3Strategy for s3. Strategies write to an exact file path;
// the Retriever decides that path from the destination folder and the last
// segment of the href.
package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/helix-tools/stac-sdk-go/types"
)

// Strategy retrieves the resource at href into the file destination,
// replacing any existing file.
type Strategy interface {
	Retrieve(ctx context.Context, href, destination string) error
}

// Streamer is implemented by strategies that can hand out the resource as a
// stream instead of a file.
type Streamer interface {
	Open(ctx context.Context, href string) (io.ReadCloser, error)
}

// writeFile streams r into a temporary file next to destination and renames
// it into place, so a failed transfer never leaves a truncated destination.
func writeFile(destination string, r io.Reader) error {
	dir := filepath.Dir(destination)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create %s: %v", types.ErrRetrieval, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(destination)+".*.part")
	if err != nil {
		return fmt.Errorf("%w: failed to create temporary file: %v", types.ErrRetrieval, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: failed to write %s: %v", types.ErrRetrieval, destination, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", types.ErrRetrieval, destination, err)
	}

	if err := os.Rename(tmp.Name(), destination); err != nil {
		return fmt.Errorf("%w: failed to move file into %s: %v", types.ErrRetrieval, destination, err)
	}

	return nil
}
