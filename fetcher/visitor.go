package fetcher

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/helix-tools/stac-sdk-go/download"
	"github.com/helix-tools/stac-sdk-go/types"
)

// AssetVisitor is called for every selected asset of every visited item.
// Returning an error marks that asset skipped; the walk goes on.
type AssetVisitor interface {
	VisitAsset(ctx context.Context, item *types.Item, key string, asset types.Asset) error
}

// LogVisitor lists assets without fetching them.
type LogVisitor struct {
	Logger zerolog.Logger
}

func (v LogVisitor) VisitAsset(_ context.Context, item *types.Item, key string, asset types.Asset) error {
	v.Logger.Info().
		Str("item", item.ID).
		Str("asset", key).
		Str("href", asset.Href).
		Str("type", asset.Type).
		Msg("asset")

	return nil
}

// DownloadVisitor retrieves each asset into <Root>/<item id>/.
type DownloadVisitor struct {
	Retriever *download.Retriever
	Root      string
	Logger    zerolog.Logger
}

func (v DownloadVisitor) VisitAsset(ctx context.Context, item *types.Item, key string, asset types.Asset) error {
	path, err := v.Retriever.RetrieveAsset(ctx, asset, filepath.Join(v.Root, item.ID))
	if err != nil {
		return err
	}

	v.Logger.Info().Str("item", item.ID).Str("asset", key).Str("path", path).Msg("downloaded")

	return nil
}
