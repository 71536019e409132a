package parser

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helix-tools/stac-sdk-go/stactest"
	"github.com/helix-tools/stac-sdk-go/types"
)

const sentinelItem = `{
	"type": "Feature",
	"stac_version": "1.0.0",
	"stac_extensions": ["https://stac-extensions.github.io/eo/v1.1.0/schema.json"],
	"id": "S2B_33UUP_20230601_0_L2A",
	"collection": "sentinel-2-l2a",
	"bbox": [13.4, 52.3, 14.9, 53.3],
	"geometry": {"type": "Polygon", "coordinates": [[[13.4, 52.3], [14.9, 52.3], [14.9, 53.3], [13.4, 52.3]]]},
	"properties": {
		"datetime": "2023-06-01T10:15:59Z",
		"platform": "sentinel-2b",
		"eo:cloud_cover": 3.2,
		"eo:bands": [
			{"name": "B01", "common_name": "coastal", "center_wavelength": 0.443},
			{"name": "B02", "common_name": "blue", "center_wavelength": 0.49}
		],
		"proj:epsg": 32633,
		"proj:shape": [10980, 10980],
		"s2:mgrs_tile": "33UUP",
		"view.sun_azimuth": 160.1
	},
	"assets": {
		"B01": {"href": "s3://sentinel-cogs/B01.tif", "type": "image/tiff; application=geotiff", "roles": ["data"]},
		"thumbnail": {"href": "https://example.com/thumb.jpg", "type": "image/jpeg", "title": "Thumbnail"}
	},
	"links": [{"rel": "self", "href": "https://example.com/items/S2B_33UUP_20230601_0_L2A"}],
	"vendor_specific_top_level": {"anything": true}
}`

func TestItemMaterializesKnownExtensions(t *testing.T) {
	item, err := New().Item([]byte(sentinelItem))
	require.NoError(t, err)

	assert.Equal(t, "S2B_33UUP_20230601_0_L2A", item.ID)
	assert.Equal(t, "sentinel-2-l2a", item.Collection)
	require.NotNil(t, item.Geometry)
	assert.Equal(t, "Polygon", item.Geometry.Type)
	require.NotNil(t, item.Properties.Datetime)
	assert.Equal(t, 2023, item.Properties.Datetime.Year())

	eo, ok := item.Properties.EO()
	require.True(t, ok)
	require.Len(t, eo.Bands, 2)
	assert.Equal(t, "B01", eo.Bands[0].Name)
	assert.Equal(t, "coastal", eo.Bands[0].CommonName)
	require.NotNil(t, eo.CloudCover)
	assert.InDelta(t, 3.2, *eo.CloudCover, 1e-9)

	proj, ok := item.Properties.Projection()
	require.True(t, ok)
	assert.Equal(t, stactest.IntPtr(32633), proj.EPSG)
	assert.Equal(t, []int{10980, 10980}, proj.Shape)

	// Unknown namespaces and plain keys stay opaque.
	assert.Equal(t, "33UUP", item.Properties.Fields["s2:mgrs_tile"])
	assert.Equal(t, "sentinel-2b", item.Properties.Fields["platform"])
	assert.InDelta(t, 160.1, item.Properties.Fields["view.sun_azimuth"], 1e-9)
	assert.NotContains(t, item.Properties.Fields, "eo:bands")

	require.Len(t, item.Assets, 2)
	assert.Equal(t, "s3://sentinel-cogs/B01.tif", item.Assets["B01"].Href)
	assert.Equal(t, []string{"data"}, item.Assets["B01"].Roles)
	assert.Equal(t, "Thumbnail", item.Assets["thumbnail"].Title)
}

func TestItemUnknownNamespaceWhenExtensionDisabled(t *testing.T) {
	item, err := New(WithoutExtension(types.NamespaceEO)).Item([]byte(sentinelItem))
	require.NoError(t, err)

	_, ok := item.Properties.EO()
	assert.False(t, ok)
	assert.Contains(t, item.Properties.Fields, "eo:bands")
	assert.Contains(t, item.Properties.Fields, "eo:cloud_cover")
}

func TestItemCustomExtension(t *testing.T) {
	type sat struct {
		OrbitState string `json:"orbit_state"`
	}

	p := New(WithExtension("sat", func(data []byte) (any, error) {
		var s sat
		err := json.Unmarshal(data, &s)
		return &s, err
	}))

	item, err := p.Item([]byte(`{"id": "a", "properties": {"datetime": null, "sat:orbit_state": "ascending"}, "assets": {}}`))
	require.NoError(t, err)

	got, ok := item.Properties.Extensions["sat"].(*sat)
	require.True(t, ok)
	assert.Equal(t, "ascending", got.OrbitState)
	assert.Nil(t, item.Properties.Datetime)
}

func TestItemKnownExtensionTypeMismatch(t *testing.T) {
	_, err := New().Item([]byte(`{"id": "a", "properties": {"eo:bands": "not-a-list"}}`))
	require.Error(t, err)

	var de *DeserializationError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "Item", de.Target)
	assert.Contains(t, err.Error(), `"eo"`)
	assert.True(t, errors.Is(err, types.ErrDeserialization))
}

func TestItemWithoutAssets(t *testing.T) {
	item, err := New().Item([]byte(`{"id": "bare", "geometry": null, "properties": {}}`))
	require.NoError(t, err)
	assert.Empty(t, item.Assets)
	assert.NotNil(t, item.Assets)
	assert.Nil(t, item.Geometry)
}

func TestMalformedDocumentsFail(t *testing.T) {
	p := New()

	tests := []struct {
		name   string
		parse  func([]byte) (any, error)
		data   string
		target string
	}{
		{
			name:   "truncated item",
			parse:  func(b []byte) (any, error) { return p.Item(b) },
			data:   `{"id": "x", "assets": {"a": {"href": "https://`,
			target: "Item",
		},
		{
			name:   "id has wrong type",
			parse:  func(b []byte) (any, error) { return p.Item(b) },
			data:   `{"id": 42}`,
			target: "Item",
		},
		{
			name:   "datetime is not a date",
			parse:  func(b []byte) (any, error) { return p.Item(b) },
			data:   `{"id": "x", "properties": {"datetime": "last tuesday"}}`,
			target: "Item",
		},
		{
			name:   "collection with bad interval arity",
			parse:  func(b []byte) (any, error) { return p.Collection(b) },
			data:   `{"id": "c", "extent": {"spatial": {"bbox": [0, 0, 1, 1]}, "temporal": {"interval": [["2020-01-01T00:00:00Z"]]}}}`,
			target: "Collection",
		},
		{
			name:   "collection without extent",
			parse:  func(b []byte) (any, error) { return p.Collection(b) },
			data:   `{"id": "c", "description": "d"}`,
			target: "Collection",
		},
		{
			name:   "collection without temporal extent",
			parse:  func(b []byte) (any, error) { return p.Collection(b) },
			data:   `{"id": "c", "description": "d", "extent": {"spatial": {"bbox": [0, 0, 1, 1]}}}`,
			target: "Collection",
		},
		{
			name:   "collection list member without spatial extent",
			parse:  func(b []byte) (any, error) { return p.Collections(b) },
			data:   `{"collections": [{"id": "c", "extent": {"temporal": {"interval": [[null, null]]}}}]}`,
			target: "CollectionList",
		},
		{
			name:   "features is an object",
			parse:  func(b []byte) (any, error) { return p.ItemCollection(b) },
			data:   `{"type": "FeatureCollection", "features": {}}`,
			target: "ItemCollection",
		},
		{
			name:   "empty catalog",
			parse:  func(b []byte) (any, error) { return p.Catalog(b) },
			data:   ``,
			target: "Catalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.parse([]byte(tt.data))
			require.Error(t, err)

			var de *DeserializationError
			require.True(t, errors.As(err, &de), "got %T", err)
			assert.Equal(t, tt.target, de.Target)
			assert.True(t, errors.Is(err, types.ErrDeserialization))
			assert.Nil(t, v)
		})
	}
}

func TestCollectionExtents(t *testing.T) {
	data := `{
		"type": "Collection",
		"id": "io_lulc_v2",
		"description": "Land use / land cover",
		"license": "CC-BY-4.0",
		"extent": {
			"spatial": {"bbox": [-180, -90, 180, 90]},
			"temporal": {"interval": [["2017-01-01T00:00:00Z", null]]}
		},
		"links": [{"rel": "items", "href": "https://example.com/collections/io_lulc_v2/items"}],
		"summaries": {"ignored": true}
	}`

	c, err := New().Collection([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, "io_lulc_v2", c.ID)
	assert.Equal(t, [][]float64{{-180, -90, 180, 90}}, c.Extent.Spatial.BBox)
	require.Len(t, c.Extent.Temporal.Interval, 1)
	assert.NotNil(t, c.Extent.Temporal.Interval[0].Start)
	assert.Nil(t, c.Extent.Temporal.Interval[0].End)

	link, ok := types.LinkByRel(c.Links, "items")
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(link.Href, "/items"))
}

func TestCollectionsFromReader(t *testing.T) {
	data := `{"collections": [
		{"id": "a", "description": "first", "extent": {"spatial": {"bbox": [[0, 0, 1, 1]]}, "temporal": {"interval": [[null, null]]}}},
		{"id": "b", "description": "second", "extent": {"spatial": {"bbox": [[0, 0, 1, 1], [2, 2, 3, 3]]}, "temporal": {"interval": [[null, "2020-01-01T00:00:00Z"]]}}}
	], "links": []}`

	list, err := New().CollectionsFrom(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, list.Collections, 2)
	assert.Equal(t, "b", list.Collections[1].ID)
	assert.Len(t, list.Collections[1].Extent.Spatial.BBox, 2)
}

func TestReadFailureIsRetrievalError(t *testing.T) {
	readErr := errors.New("connection reset by peer")
	body := io.MultiReader(strings.NewReader(`{"type": "FeatureCollection", "feat`), iotest.ErrReader(readErr))

	ic, err := New().ItemCollectionFrom(body)
	require.Error(t, err)
	assert.Nil(t, ic)
	assert.ErrorIs(t, err, types.ErrRetrieval)
	assert.ErrorIs(t, err, readErr)
	assert.NotErrorIs(t, err, types.ErrDeserialization)
}

func TestItemCollectionContext(t *testing.T) {
	p := New()

	t.Run("context object", func(t *testing.T) {
		ic, err := p.ItemCollection([]byte(`{"type": "FeatureCollection", "features": [{"id": "a"}], "context": {"returned": 1, "limit": 10, "matched": 31}}`))
		require.NoError(t, err)
		require.NotNil(t, ic.Context)
		assert.Equal(t, 1, ic.Context.Returned)
		assert.Equal(t, 10, ic.Context.Limit)
		assert.Equal(t, stactest.IntPtr(31), ic.Context.Matched)
	})

	t.Run("numberReturned", func(t *testing.T) {
		ic, err := p.ItemCollectionFrom(strings.NewReader(`{"type": "FeatureCollection", "features": [{"id": "a"}, {"id": "b"}], "numberReturned": 2, "numberMatched": 40}`))
		require.NoError(t, err)
		require.NotNil(t, ic.Context)
		assert.Equal(t, 2, ic.Context.Returned)
		assert.Equal(t, stactest.IntPtr(40), ic.Context.Matched)
	})

	t.Run("no paging metadata", func(t *testing.T) {
		ic, err := p.ItemCollection([]byte(`{"type": "FeatureCollection", "features": []}`))
		require.NoError(t, err)
		assert.Nil(t, ic.Context)
		assert.Empty(t, ic.Features)
	})
}

func TestStandaloneFragments(t *testing.T) {
	p := New()

	link, err := p.Link([]byte(`{"rel": "next", "href": "https://example.com/search?page=2", "type": "application/geo+json"}`))
	require.NoError(t, err)
	assert.Equal(t, "next", link.Rel)

	band, err := p.Band([]byte(`{"name": "B08", "common_name": "nir", "center_wavelength": 0.842}`))
	require.NoError(t, err)
	assert.Equal(t, "nir", band.CommonName)

	v, err := p.Any([]byte(`{"a": [1, 2]}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": []any{float64(1), float64(2)}}, v)

	cat, err := p.CatalogFrom(strings.NewReader(`{"type": "Catalog", "id": "earth-search", "description": "root", "conformsTo": ["https://api.stacspec.org/v1.0.0/core"], "links": []}`))
	require.NoError(t, err)
	assert.Equal(t, "earth-search", cat.ID)
	assert.Len(t, cat.ConformsTo, 1)
}

func TestSplitNamespace(t *testing.T) {
	tests := []struct {
		key, ns, field string
		ok             bool
	}{
		{"eo:bands", "eo", "bands", true},
		{"view.sun_azimuth", "view", "sun_azimuth", true},
		{"platform", "", "", false},
		{":bands", "", "", false},
		{"eo:", "", "", false},
	}

	for _, tt := range tests {
		ns, field, ok := splitNamespace(tt.key)
		assert.Equal(t, tt.ok, ok, tt.key)
		assert.Equal(t, tt.ns, ns, tt.key)
		assert.Equal(t, tt.field, field, tt.key)
	}
}
