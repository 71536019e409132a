// Package stactest provides STAC documents and a fake paginated catalog
// server for tests.
package stactest

import "fmt"

// TestPrefix is used to identify fixture documents.
const TestPrefix = "TEST_"

// NewTestCollection creates a collection document with a global extent and
// an open-ended temporal interval.
func NewTestCollection(id string) map[string]any {
	return map[string]any{
		"type":         "Collection",
		"stac_version": "1.0.0",
		"id":           id,
		"title":        fmt.Sprintf("%scollection %s", TestPrefix, id),
		"description":  "Fixture collection",
		"license":      "proprietary",
		"extent": map[string]any{
			"spatial": map[string]any{
				"bbox": [][]float64{{-180, -90, 180, 90}},
			},
			"temporal": map[string]any{
				"interval": [][]any{{"2020-01-01T00:00:00Z", nil}},
			},
		},
		"links": []any{},
	}
}

// NewTestItem creates an item document. assets maps asset keys to hrefs.
func NewTestItem(id, collection string, assets map[string]string) map[string]any {
	docAssets := make(map[string]any, len(assets))
	for key, href := range assets {
		docAssets[key] = map[string]any{
			"href":  href,
			"type":  "application/octet-stream",
			"title": key,
			"roles": []string{"data"},
		}
	}

	return map[string]any{
		"type":         "Feature",
		"stac_version": "1.0.0",
		"id":           id,
		"collection":   collection,
		"bbox":         []float64{10, 45, 11, 46},
		"geometry": map[string]any{
			"type":        "Point",
			"coordinates": []float64{10.5, 45.5},
		},
		"properties": map[string]any{
			"datetime":       "2023-06-01T10:20:30Z",
			"platform":       "sentinel-2a",
			"eo:cloud_cover": 4.5,
			"proj:epsg":      32632,
		},
		"assets": docAssets,
		"links":  []any{},
	}
}

// NewTestItems creates n asset-less items named <collection>-item-<i>,
// starting at 1.
func NewTestItems(collection string, n int) []map[string]any {
	items := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, NewTestItem(fmt.Sprintf("%s-item-%d", collection, i), collection, nil))
	}

	return items
}

// IntPtr returns a pointer to an int.
func IntPtr(i int) *int {
	return &i
}
