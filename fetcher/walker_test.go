package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helix-tools/stac-sdk-go/api"
	"github.com/helix-tools/stac-sdk-go/download"
	"github.com/helix-tools/stac-sdk-go/stactest"
	"github.com/helix-tools/stac-sdk-go/types"
)

type recordingVisitor struct {
	visited []string
	fail    map[string]error
	onVisit func(id string)
}

func (v *recordingVisitor) VisitAsset(_ context.Context, item *types.Item, key string, _ types.Asset) error {
	id := item.ID + "/" + key
	v.visited = append(v.visited, id)

	if v.onVisit != nil {
		v.onVisit(id)
	}

	return v.fail[id]
}

func newWalker(t *testing.T, srv *stactest.Server, opts ...Option) *Walker {
	t.Helper()

	client, err := api.NewClient(srv.URL, types.NoAuthentication())
	require.NoError(t, err)

	return New(client, append([]Option{WithLogger(zerolog.Nop())}, opts...)...)
}

func itemsWithAssets(collection string, n int) []map[string]any {
	items := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, stactest.NewTestItem(fmt.Sprintf("%s-%d", collection, i), collection, map[string]string{
			"B1":        "s3://bucket/" + collection + "/B01.tif",
			"thumbnail": "https://example.com/" + collection + "/thumb.jpg",
		}))
	}

	return items
}

func TestWalkPageRule(t *testing.T) {
	tests := []struct {
		name      string
		items     int
		maxPages  int
		limit     int
		wantPages []int
	}{
		{name: "short second page ends paging", items: 13, maxPages: 5, limit: 10, wantPages: []int{1, 2}},
		{name: "empty page ends paging", items: 20, maxPages: 5, limit: 10, wantPages: []int{1, 2, 3}},
		{name: "max pages caps a long collection", items: 100, maxPages: 3, limit: 10, wantPages: []int{1, 2, 3}},
		{name: "single page", items: 100, maxPages: 1, limit: 10, wantPages: []int{1}},
		{name: "empty collection", items: 0, maxPages: 5, limit: 10, wantPages: []int{1}},
		{name: "exact multiple stops at max pages", items: 30, maxPages: 3, limit: 10, wantPages: []int{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := stactest.NewServer(t)
			srv.AddCollection("c", stactest.NewTestItems("c", tt.items)...)

			summary, err := newWalker(t, srv).Walk(context.Background(), Options{
				CollectionID: "c",
				MaxPages:     tt.maxPages,
				Limit:        tt.limit,
			})
			require.NoError(t, err)

			assert.Equal(t, tt.wantPages, srv.PagesRequested("c"))
			assert.Equal(t, StateCompleted, summary.State())
			assert.Equal(t, min(tt.items, tt.maxPages*tt.limit), summary.Count(types.UnitItem, types.StatusCompleted))
		})
	}
}

func TestWalkPageRuleWithItemCounts(t *testing.T) {
	srv := stactest.NewServer(t)
	srv.UseItemCounts()
	srv.AddCollection("c", stactest.NewTestItems("c", 13)...)

	_, err := newWalker(t, srv).Walk(context.Background(), Options{CollectionID: "c", Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, srv.PagesRequested("c"))
}

func TestWalkDefaults(t *testing.T) {
	srv := stactest.NewServer(t)
	srv.AddCollection("c", stactest.NewTestItems("c", 200)...)

	_, err := newWalker(t, srv).Walk(context.Background(), Options{CollectionID: "c"})
	require.NoError(t, err)

	assert.Len(t, srv.PagesRequested("c"), types.DefaultMaxPages)
	assert.Contains(t, srv.Requests(), fmt.Sprintf("/collections/c/items?limit=%d&page=1", types.DefaultLimit))
}

func TestWalkIsolatesFailingCollection(t *testing.T) {
	srv := stactest.NewServer(t)
	srv.AddCollection("a", stactest.NewTestItems("a", 3)...)
	srv.AddCollection("b", stactest.NewTestItems("b", 3)...)
	srv.AddCollection("c", stactest.NewTestItems("c", 3)...)
	srv.FailPage("b", 1, http.StatusInternalServerError)

	summary, err := newWalker(t, srv).Walk(context.Background(), Options{Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, StateCompletedWithSkips, summary.State())
	assert.Equal(t, 6, summary.Count(types.UnitItem, types.StatusCompleted))
	assert.Equal(t, 2, summary.Count(types.UnitCollection, types.StatusCompleted))

	skipped := summary.Skipped()
	require.Len(t, skipped, 2)
	assert.Equal(t, types.UnitPage, skipped[0].Kind)
	assert.Equal(t, "b#1", skipped[0].ID)
	assert.ErrorIs(t, skipped[0].Err, types.ErrRetrieval)
	assert.Equal(t, types.UnitCollection, skipped[1].Kind)
	assert.Equal(t, "b", skipped[1].ID)

	assert.Equal(t, []int{1}, srv.PagesRequested("c"))
}

func TestWalkPageFailureEndsCollectionPaging(t *testing.T) {
	srv := stactest.NewServer(t)
	srv.AddCollection("a", stactest.NewTestItems("a", 25)...)
	srv.FailPage("a", 2, http.StatusBadGateway)

	summary, err := newWalker(t, srv).Walk(context.Background(), Options{CollectionID: "a", Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, srv.PagesRequested("a"))
	assert.Equal(t, 10, summary.Count(types.UnitItem, types.StatusCompleted))
	assert.Equal(t, 1, summary.Count(types.UnitPage, types.StatusSkipped))
	assert.Equal(t, 1, summary.Count(types.UnitCollection, types.StatusSkipped))
}

func TestWalkFatalErrors(t *testing.T) {
	t.Run("listing collections fails", func(t *testing.T) {
		srv := stactest.NewServer(t)
		srv.AddCollection("a", stactest.NewTestItems("a", 1)...)
		srv.Fail("/collections", http.StatusServiceUnavailable)

		summary, err := newWalker(t, srv).Walk(context.Background(), Options{})
		require.ErrorIs(t, err, types.ErrRetrieval)
		require.NotNil(t, summary)
		assert.Empty(t, summary.Outcomes)
	})

	t.Run("named collection is missing", func(t *testing.T) {
		srv := stactest.NewServer(t)
		srv.AddCollection("a", stactest.NewTestItems("a", 1)...)

		_, err := newWalker(t, srv).Walk(context.Background(), Options{CollectionID: "missing"})
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.Empty(t, srv.PagesRequested("a"))
	})
}

func TestWalkSingleItem(t *testing.T) {
	srv := stactest.NewServer(t)
	srv.AddCollection("s2", itemsWithAssets("s2", 3)...)

	visitor := &recordingVisitor{}
	summary, err := newWalker(t, srv, WithVisitor(visitor)).Walk(context.Background(), Options{
		CollectionID: "s2",
		ItemID:       "s2-2",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"s2-2/B1", "s2-2/thumbnail"}, visitor.visited)
	assert.Empty(t, srv.PagesRequested("s2"))
	assert.Equal(t, StateCompleted, summary.State())
}

func TestWalkAssetSelection(t *testing.T) {
	srv := stactest.NewServer(t)
	srv.AddCollection("s2", itemsWithAssets("s2", 2)...)

	visitor := &recordingVisitor{}
	summary, err := newWalker(t, srv, WithVisitor(visitor)).Walk(context.Background(), Options{
		CollectionID: "s2",
		AssetKey:     "thumbnail",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"s2-1/thumbnail", "s2-2/thumbnail"}, visitor.visited)
	assert.Equal(t, StateCompleted, summary.State())

	visitor = &recordingVisitor{}
	summary, err = newWalker(t, srv, WithVisitor(visitor)).Walk(context.Background(), Options{
		CollectionID: "s2",
		AssetKey:     "B8A",
	})
	require.NoError(t, err)
	assert.Empty(t, visitor.visited)
	require.Len(t, summary.Skipped(), 2)
	assert.ErrorIs(t, summary.Skipped()[0].Err, types.ErrNotFound)
	assert.Equal(t, 2, summary.Count(types.UnitItem, types.StatusCompleted))
}

func TestWalkIsolatesItemAndAssetFailures(t *testing.T) {
	srv := stactest.NewServer(t)
	srv.AddCollection("a", itemsWithAssets("a", 2)...)
	srv.AddCollection("b", itemsWithAssets("b", 2)...)

	visitor := &recordingVisitor{fail: map[string]error{
		"a-1/B1": errors.New("access denied"),
	}}

	summary, err := newWalker(t, srv, WithVisitor(visitor)).Walk(context.Background(), Options{ItemID: "b-1"})
	require.NoError(t, err)

	// Collection a has no item b-1; collection b does.
	assert.Equal(t, []string{"b-1/B1", "b-1/thumbnail"}, visitor.visited)
	assert.Equal(t, 1, summary.Count(types.UnitItem, types.StatusSkipped))
	assert.Equal(t, 1, summary.Count(types.UnitCollection, types.StatusSkipped))
	assert.Equal(t, 1, summary.Count(types.UnitCollection, types.StatusCompleted))

	visitor.visited = nil
	summary, err = newWalker(t, srv, WithVisitor(visitor)).Walk(context.Background(), Options{CollectionID: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a-1/B1", "a-1/thumbnail", "a-2/B1", "a-2/thumbnail"}, visitor.visited)
	assert.Equal(t, 1, summary.Count(types.UnitAsset, types.StatusSkipped))
	assert.Equal(t, 3, summary.Count(types.UnitAsset, types.StatusCompleted))
	assert.Equal(t, StateCompletedWithSkips, summary.State())
}

func TestWalkRejectsInvalidOptions(t *testing.T) {
	srv := stactest.NewServer(t)
	w := newWalker(t, srv)

	for name, opts := range map[string]Options{
		"negative limit":     {Limit: -1},
		"limit too large":    {Limit: 10001},
		"negative max pages": {MaxPages: -2},
		"id with slash":      {CollectionID: "a/b"},
		"id with space":      {ItemID: "an item"},
	} {
		t.Run(name, func(t *testing.T) {
			summary, err := w.Walk(context.Background(), opts)
			assert.ErrorIs(t, err, types.ErrInvalidArgument)
			assert.NotNil(t, summary)
		})
	}

	assert.Empty(t, srv.Requests())
}

func TestWalkStopsWhenCancelled(t *testing.T) {
	srv := stactest.NewServer(t)
	srv.AddCollection("a", itemsWithAssets("a", 30)...)
	srv.AddCollection("b", itemsWithAssets("b", 30)...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	visitor := &recordingVisitor{onVisit: func(id string) {
		if id == "a-1/thumbnail" {
			cancel()
		}
	}}

	_, err := newWalker(t, srv, WithVisitor(visitor)).Walk(ctx, Options{Limit: 10})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []int{1}, srv.PagesRequested("a"))
	assert.Empty(t, srv.PagesRequested("b"))
}

func TestWalkMetrics(t *testing.T) {
	srv := stactest.NewServer(t)
	srv.AddCollection("a", stactest.NewTestItems("a", 13)...)
	srv.AddCollection("b", stactest.NewTestItems("b", 1)...)
	srv.FailPage("b", 1, http.StatusInternalServerError)

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	_, err := newWalker(t, srv, WithMetrics(metrics)).Walk(context.Background(), Options{Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.pages))
	assert.Equal(t, float64(13), testutil.ToFloat64(metrics.units.WithLabelValues("item", "completed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.units.WithLabelValues("page", "completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.units.WithLabelValues("page", "skipped")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.units.WithLabelValues("collection", "skipped")))

	count, err := testutil.GatherAndCount(reg, "stac_client_units_total", "stac_client_pages_total")
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}

func TestSearch(t *testing.T) {
	srv := stactest.NewServer(t)
	srv.AddCollection("s2", itemsWithAssets("s2", 13)...)
	srv.AddCollection("l8", itemsWithAssets("l8", 4)...)

	visitor := &recordingVisitor{}
	summary, err := newWalker(t, srv, WithVisitor(visitor)).Search(context.Background(), SearchOptions{
		CollectionID: "s2",
		Params: map[string]any{
			"bbox":     "10,45,11,46",
			"datetime": "2023-01-01T00:00:00Z/2023-12-31T23:59:59Z",
		},
		AssetKey: "thumbnail",
		Limit:    10,
	})
	require.NoError(t, err)

	assert.Len(t, visitor.visited, 13)
	assert.Equal(t, 2, summary.Count(types.UnitPage, types.StatusCompleted))
	assert.Equal(t, StateCompleted, summary.State())

	requests := srv.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t,
		"/search?bbox=10%2C45%2C11%2C46&collections=s2&datetime=2023-01-01T00%3A00%3A00Z%2F2023-12-31T23%3A59%3A59Z&limit=10&page=2",
		requests[1])
}

func TestSearchAcrossCollectionsRespectsMaxPages(t *testing.T) {
	srv := stactest.NewServer(t)
	srv.AddCollection("s2", stactest.NewTestItems("s2", 30)...)
	srv.AddCollection("l8", stactest.NewTestItems("l8", 30)...)

	summary, err := newWalker(t, srv).Search(context.Background(), SearchOptions{MaxPages: 4, Limit: 10})
	require.NoError(t, err)

	assert.Len(t, srv.Requests(), 4)
	assert.Equal(t, 40, summary.Count(types.UnitItem, types.StatusCompleted))
	assert.Equal(t, "search#4", summary.Outcomes[len(summary.Outcomes)-1].ID)
}

func TestDownloadVisitor(t *testing.T) {
	srv := stactest.NewServer(t)
	thumb := srv.AddFile("previews/thumb.jpg", []byte("jpeg"))
	srv.AddCollection("s2", stactest.NewTestItem("s2-1", "s2", map[string]string{
		"thumbnail": thumb,
		"B1":        "s3://bucket/B01.tif",
	}))

	client, err := api.NewClient(srv.URL, types.NoAuthentication())
	require.NoError(t, err)

	root := t.TempDir()
	visitor := DownloadVisitor{
		Retriever: download.New(download.WithHTTP(client)),
		Root:      root,
		Logger:    zerolog.Nop(),
	}

	summary, err := New(client, WithVisitor(visitor), WithLogger(zerolog.Nop())).Walk(context.Background(), Options{CollectionID: "s2"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "s2-1", "thumb.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	// No s3 strategy is registered, so the band is skipped as unsupported.
	skipped := summary.Skipped()
	require.Len(t, skipped, 1)
	assert.Equal(t, "s2-1/B1", skipped[0].ID)
	assert.ErrorIs(t, skipped[0].Err, types.ErrUnsupportedProtocol)
}

func TestSummaryRunIDsDiffer(t *testing.T) {
	srv := stactest.NewServer(t)
	srv.AddCollection("a")
	w := newWalker(t, srv)

	first, err := w.Walk(context.Background(), Options{})
	require.NoError(t, err)
	second, err := w.Walk(context.Background(), Options{})
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
}
