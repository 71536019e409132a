// Package fetcher walks a STAC catalog from collections through paged item
// listings down to assets.
//
// Traversal is sequential. A failing collection, page, item or asset is
// recorded in the run Summary and the walk moves on to the next sibling; only
// failing to list collections, or to fetch an explicitly named collection,
// ends a walk with an error.
//
// Paging starts at page 1 with a fixed limit and stops after the first page
// that is empty or returns fewer than limit items. The page counter is
// incremented after each page and compared with MaxPages, so at most MaxPages
// pages are requested per collection.
package fetcher

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/helix-tools/stac-sdk-go/types"
)

// Catalog is the read side of a STAC API. *api.Client satisfies it.
type Catalog interface {
	ListCollections(ctx context.Context) (*types.CollectionList, error)
	GetCollection(ctx context.Context, collectionID string) (*types.Collection, error)
	ListItems(ctx context.Context, collectionID string, page, limit int) (*types.ItemCollection, error)
	GetItem(ctx context.Context, collectionID, itemID string) (*types.Item, error)
	Search(ctx context.Context, collectionID string, params map[string]any, page, limit int) (*types.ItemCollection, error)
}

// Option configures a Walker.
type Option func(*Walker)

// WithVisitor sets what happens to each asset. The default logs it.
func WithVisitor(v AssetVisitor) Option {
	return func(w *Walker) {
		w.visitor = v
	}
}

// WithLogger sets the logger used for progress and skip reports.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Walker) {
		w.logger = l
	}
}

// WithMetrics records traversal counters.
func WithMetrics(m *Metrics) Option {
	return func(w *Walker) {
		w.metrics = m
	}
}

// Walker traverses a catalog.
type Walker struct {
	catalog  Catalog
	visitor  AssetVisitor
	logger   zerolog.Logger
	metrics  *Metrics
	validate *validator.Validate
}

// New creates a Walker over catalog.
func New(catalog Catalog, opts ...Option) *Walker {
	w := &Walker{
		catalog:  catalog,
		logger:   log.Logger,
		validate: newValidator(),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.visitor == nil {
		w.visitor = LogVisitor{Logger: w.logger}
	}

	return w
}

// run carries the state of one Walk or Search.
type run struct {
	*Walker
	summary *Summary
	logger  zerolog.Logger
}

func (w *Walker) newRun(kind string) *run {
	s := newSummary()

	return &run{
		Walker:  w,
		summary: s,
		logger:  w.logger.With().Str("run_id", s.RunID.String()).Str("run", kind).Logger(),
	}
}

// Walk visits the collections, items and assets selected by opts. The
// returned Summary is non-nil even when Walk fails.
func (w *Walker) Walk(ctx context.Context, opts Options) (*Summary, error) {
	opts = opts.withDefaults()

	r := w.newRun("walk")
	if err := validate(w.validate, opts); err != nil {
		return r.summary, err
	}

	r.logger.Info().
		Str("collection", opts.CollectionID).
		Str("item", opts.ItemID).
		Str("asset", opts.AssetKey).
		Int("max_pages", opts.MaxPages).
		Int("limit", opts.Limit).
		Msg("walk started")

	collections, err := r.collections(ctx, opts.CollectionID)
	if err != nil {
		r.logger.Error().Err(err).Msg("walk aborted")
		return r.summary, err
	}

	for _, col := range collections {
		if err := ctx.Err(); err != nil {
			return r.summary, err
		}

		if err := r.walkCollection(ctx, col.ID, opts); err != nil {
			return r.summary, err
		}
	}

	r.finish()

	return r.summary, nil
}

// Search pages through the search endpoint and visits the assets of every
// item found.
func (w *Walker) Search(ctx context.Context, opts SearchOptions) (*Summary, error) {
	opts = opts.withDefaults()

	r := w.newRun("search")
	if err := validate(w.validate, opts); err != nil {
		return r.summary, err
	}

	r.logger.Info().
		Str("collection", opts.CollectionID).
		Interface("params", opts.Params).
		Int("max_pages", opts.MaxPages).
		Int("limit", opts.Limit).
		Msg("search started")

	unit := "search"
	if opts.CollectionID != "" {
		unit = "search:" + opts.CollectionID
	}

	_, err := r.paginate(ctx, unit, opts.MaxPages, opts.Limit, opts.AssetKey, func(page int) (*types.ItemCollection, error) {
		return w.catalog.Search(ctx, opts.CollectionID, opts.Params, page, opts.Limit)
	})
	if err != nil {
		return r.summary, err
	}

	r.finish()

	return r.summary, nil
}

func (r *run) collections(ctx context.Context, collectionID string) ([]types.Collection, error) {
	if collectionID != "" {
		col, err := r.catalog.GetCollection(ctx, collectionID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch collection %s: %w", collectionID, err)
		}

		return []types.Collection{*col}, nil
	}

	list, err := r.catalog.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	r.logger.Info().Int("collections", len(list.Collections)).Msg("collections listed")

	return list.Collections, nil
}

// walkCollection visits one collection. Only context cancellation is
// returned; every other failure is recorded.
func (r *run) walkCollection(ctx context.Context, collectionID string, opts Options) error {
	r.logger.Info().Str("collection", collectionID).Msg("processing collection")

	if opts.ItemID != "" {
		item, err := r.catalog.GetItem(ctx, collectionID, opts.ItemID)
		if err != nil {
			r.record(types.Skip(types.UnitItem, collectionID+"/"+opts.ItemID, err))
			r.record(types.Skip(types.UnitCollection, collectionID, fmt.Errorf("item %s: %w", opts.ItemID, err)))
			return ctx.Err()
		}

		r.visitItem(ctx, item, opts.AssetKey)
		r.record(types.Done(types.UnitCollection, collectionID))

		return ctx.Err()
	}

	pageErr, err := r.paginate(ctx, collectionID, opts.MaxPages, opts.Limit, opts.AssetKey, func(page int) (*types.ItemCollection, error) {
		return r.catalog.ListItems(ctx, collectionID, page, opts.Limit)
	})
	if err != nil {
		return err
	}

	if pageErr != nil {
		r.record(types.Skip(types.UnitCollection, collectionID, pageErr))
		return nil
	}

	r.record(types.Done(types.UnitCollection, collectionID))

	return nil
}

// paginate requests pages 1..maxPages until a short or empty page. A failing
// page ends paging and is returned as pageErr; err is set only when ctx is
// done.
func (r *run) paginate(ctx context.Context, unit string, maxPages, limit int, assetKey string, fetch func(page int) (*types.ItemCollection, error)) (pageErr, err error) {
	for page := 1; ; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageID := fmt.Sprintf("%s#%d", unit, page)
		r.logger.Debug().Str("page", pageID).Int("limit", limit).Msg("fetching page")
		r.metrics.pageRequested()

		items, err := fetch(page)
		if err != nil {
			r.record(types.Skip(types.UnitPage, pageID, err))
			return fmt.Errorf("paging stopped at page %d: %w", page, err), ctx.Err()
		}

		for i := range items.Features {
			r.visitItem(ctx, &items.Features[i], assetKey)
		}
		r.record(types.Done(types.UnitPage, pageID))

		returned := len(items.Features)
		if items.Context != nil {
			returned = items.Context.Returned
		}

		if len(items.Features) == 0 || returned < limit {
			r.logger.Debug().Str("page", pageID).Int("returned", returned).Msg("last page")
			return nil, nil
		}

		page++
		if page > maxPages {
			r.logger.Info().Str("unit", unit).Int("max_pages", maxPages).Msg("page limit reached")
			return nil, nil
		}
	}
}

func (r *run) visitItem(ctx context.Context, item *types.Item, assetKey string) {
	r.logger.Debug().Str("item", item.ID).Int("assets", len(item.Assets)).Msg("processing item")

	var keys []string
	if assetKey != "" {
		if _, ok := item.Assets[assetKey]; !ok {
			r.record(types.Skip(types.UnitAsset, item.ID+"/"+assetKey, fmt.Errorf("%w: asset %s", types.ErrNotFound, assetKey)))
			r.record(types.Done(types.UnitItem, item.ID))
			return
		}
		keys = []string{assetKey}
	} else {
		keys = make([]string, 0, len(item.Assets))
		for k := range item.Assets {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}

	for _, key := range keys {
		id := item.ID + "/" + key
		if err := r.visitor.VisitAsset(ctx, item, key, item.Assets[key]); err != nil {
			r.record(types.Skip(types.UnitAsset, id, err))
			continue
		}
		r.record(types.Done(types.UnitAsset, id))
	}

	r.record(types.Done(types.UnitItem, item.ID))
}

func (r *run) record(o types.Outcome) {
	r.summary.Outcomes = append(r.summary.Outcomes, o)
	r.metrics.observe(o)

	if o.IsSkipped() {
		r.logger.Warn().Err(o.Err).Str("kind", string(o.Kind)).Str("id", o.ID).Msg("skipped")
	}
}

func (r *run) finish() {
	skipped := len(r.summary.Skipped())

	r.logger.Info().
		Str("state", string(r.summary.State())).
		Int("units", len(r.summary.Outcomes)).
		Int("skipped", skipped).
		Msg("run finished")
}
