package parser

import (
	"fmt"
	"io"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/helix-tools/stac-sdk-go/types"
)

// itemDocument mirrors an item on the wire; properties are kept raw until the
// extension registry has looked at them.
type itemDocument struct {
	Type           string                     `json:"type"`
	StacVersion    string                     `json:"stac_version"`
	StacExtensions []string                   `json:"stac_extensions"`
	ID             string                     `json:"id"`
	Collection     string                     `json:"collection"`
	BBox           []float64                  `json:"bbox"`
	Geometry       *types.Geometry            `json:"geometry"`
	Properties     map[string]json.RawMessage `json:"properties"`
	Assets         map[string]types.Asset     `json:"assets"`
	Links          []types.Link               `json:"links"`
}

type itemCollectionDocument struct {
	Type           string             `json:"type"`
	Features       []itemDocument     `json:"features"`
	Links          []types.Link       `json:"links"`
	Context        *types.PageContext `json:"context"`
	NumberMatched  *int               `json:"numberMatched"`
	NumberReturned *int               `json:"numberReturned"`
}

// Item decodes a single item, materializing known property extensions.
func (p *Parser) Item(data []byte) (*types.Item, error) {
	var doc itemDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, newError("Item", data, err)
	}

	item, err := p.buildItem(doc)
	if err != nil {
		return nil, &DeserializationError{Target: "Item", Offset: -1, Err: err}
	}

	return item, nil
}

// ItemFrom decodes a single item read from r.
func (p *Parser) ItemFrom(r io.Reader) (*types.Item, error) {
	return fromReader(r, p.Item)
}

// ItemCollection decodes an items listing or search response. When the
// response has no context object, one is derived from numberReturned and
// numberMatched.
func (p *Parser) ItemCollection(data []byte) (*types.ItemCollection, error) {
	var doc itemCollectionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, newError("ItemCollection", data, err)
	}

	features := make([]types.Item, 0, len(doc.Features))
	for i, f := range doc.Features {
		item, err := p.buildItem(f)
		if err != nil {
			return nil, &DeserializationError{
				Target: "ItemCollection",
				Offset: -1,
				Err:    fmt.Errorf("feature %d (%s): %w", i, f.ID, err),
			}
		}
		features = append(features, *item)
	}

	ctx := doc.Context
	if ctx == nil && doc.NumberReturned != nil {
		ctx = &types.PageContext{
			Returned: *doc.NumberReturned,
			Matched:  doc.NumberMatched,
		}
	}

	return &types.ItemCollection{
		Type:           doc.Type,
		Features:       features,
		Links:          doc.Links,
		Context:        ctx,
		NumberMatched:  doc.NumberMatched,
		NumberReturned: doc.NumberReturned,
	}, nil
}

// ItemCollectionFrom decodes an items listing read from r.
func (p *Parser) ItemCollectionFrom(r io.Reader) (*types.ItemCollection, error) {
	return fromReader(r, p.ItemCollection)
}

func (p *Parser) buildItem(doc itemDocument) (*types.Item, error) {
	props, err := p.buildProperties(doc.Properties)
	if err != nil {
		return nil, err
	}

	assets := doc.Assets
	if assets == nil {
		assets = map[string]types.Asset{}
	}

	return &types.Item{
		Type:           doc.Type,
		StacVersion:    doc.StacVersion,
		StacExtensions: doc.StacExtensions,
		ID:             doc.ID,
		Collection:     doc.Collection,
		BBox:           doc.BBox,
		Geometry:       doc.Geometry,
		Properties:     props,
		Assets:         assets,
		Links:          doc.Links,
	}, nil
}

func (p *Parser) buildProperties(raw map[string]json.RawMessage) (types.Properties, error) {
	props := types.Properties{
		Extensions: map[string]any{},
		Fields:     map[string]any{},
	}

	groups := map[string]map[string]json.RawMessage{}

	// Sorted so that the first failing key is stable across runs.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]

		var err error
		switch key {
		case "datetime":
			props.Datetime, err = parseTime(value)
		case "start_datetime":
			props.StartDatetime, err = parseTime(value)
		case "end_datetime":
			props.EndDatetime, err = parseTime(value)
		case "title":
			err = json.Unmarshal(value, &props.Title)
		default:
			if ns, field, ok := splitNamespace(key); ok && p.Knows(ns) {
				if groups[ns] == nil {
					groups[ns] = map[string]json.RawMessage{}
				}
				groups[ns][field] = value
				continue
			}

			var v any
			err = json.Unmarshal(value, &v)
			props.Fields[key] = v
		}
		if err != nil {
			return types.Properties{}, fmt.Errorf("property %q: %w", key, err)
		}
	}

	for ns, fields := range groups {
		data, err := json.Marshal(fields)
		if err != nil {
			return types.Properties{}, fmt.Errorf("extension %q: %w", ns, err)
		}

		ext, err := p.extensions[ns](data)
		if err != nil {
			return types.Properties{}, fmt.Errorf("extension %q: %w", ns, err)
		}
		props.Extensions[ns] = ext
	}

	return props, nil
}

// splitNamespace splits "eo:bands" or "eo.bands" at the first qualifier.
func splitNamespace(key string) (string, string, bool) {
	i := strings.IndexAny(key, ":.")
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}

	return key[:i], key[i+1:], true
}
