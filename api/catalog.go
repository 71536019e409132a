package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/helix-tools/stac-sdk-go/types"
)

// Catalog fetches the landing page of the catalog.
func (c *Client) Catalog(ctx context.Context) (*types.Catalog, error) {
	body, err := c.Open(ctx, c.baseURL.String())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return c.parser.CatalogFrom(body)
}

// ListCollections fetches GET /collections.
func (c *Client) ListCollections(ctx context.Context) (*types.CollectionList, error) {
	body, err := c.Open(ctx, c.endpoint(nil, "collections"))
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer body.Close()

	return c.parser.CollectionsFrom(body)
}

// GetCollection fetches a single collection by id.
func (c *Client) GetCollection(ctx context.Context, collectionID string) (*types.Collection, error) {
	if collectionID == "" {
		return nil, fmt.Errorf("%w: collection id is required", types.ErrInvalidArgument)
	}

	body, err := c.Open(ctx, c.endpoint(nil, "collections", collectionID))
	if err != nil {
		return nil, fmt.Errorf("failed to get collection %s: %w", collectionID, err)
	}
	defer body.Close()

	return c.parser.CollectionFrom(body)
}

// ListItems fetches one page of the items of a collection.
func (c *Client) ListItems(ctx context.Context, collectionID string, page, limit int) (*types.ItemCollection, error) {
	if collectionID == "" {
		return nil, fmt.Errorf("%w: collection id is required", types.ErrInvalidArgument)
	}

	body, err := c.Open(ctx, c.endpoint(pageQuery(page, limit), "collections", collectionID, "items"))
	if err != nil {
		return nil, fmt.Errorf("failed to list items of %s (page %d): %w", collectionID, page, err)
	}
	defer body.Close()

	return c.parser.ItemCollectionFrom(body)
}

// GetItem fetches a single item of a collection.
func (c *Client) GetItem(ctx context.Context, collectionID, itemID string) (*types.Item, error) {
	if collectionID == "" || itemID == "" {
		return nil, fmt.Errorf("%w: collection id and item id are required", types.ErrInvalidArgument)
	}

	body, err := c.Open(ctx, c.endpoint(nil, "collections", collectionID, "items", itemID))
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s/%s: %w", collectionID, itemID, err)
	}
	defer body.Close()

	return c.parser.ItemFrom(body)
}

// Search fetches one page of GET /search. Each entry of params becomes a
// query parameter formatted with %v; collectionID, when set, restricts the
// search to that collection.
func (c *Client) Search(ctx context.Context, collectionID string, params map[string]any, page, limit int) (*types.ItemCollection, error) {
	body, err := c.Open(ctx, c.SearchURL(collectionID, params, page, limit))
	if err != nil {
		return nil, fmt.Errorf("search failed (page %d): %w", page, err)
	}
	defer body.Close()

	return c.parser.ItemCollectionFrom(body)
}

// SearchURL returns the URL Search requests for the given arguments.
func (c *Client) SearchURL(collectionID string, params map[string]any, page, limit int) string {
	query := url.Values{}
	for k, v := range params {
		if v != nil {
			query.Set(k, fmt.Sprint(v))
		}
	}

	if collectionID != "" {
		query.Set("collections", collectionID)
	}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	return c.endpoint(query, "search")
}
