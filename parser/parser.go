// Package parser turns STAC JSON documents into the types of package types.
//
// A Parser is immutable once built; the set of property extensions it
// materializes is fixed by the options given to New.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/helix-tools/stac-sdk-go/types"
)

// fragmentLen bounds the slice of input quoted in a DeserializationError.
const fragmentLen = 48

// ExtensionDecoder decodes the fields of one property namespace. The input
// is a JSON object whose keys have the namespace prefix stripped.
type ExtensionDecoder func(data []byte) (any, error)

// DeserializationError reports a document that could not be decoded into
// the requested type. No partial value accompanies it.
type DeserializationError struct {
	Target   string
	Offset   int64
	Fragment string
	Err      error
}

func (e *DeserializationError) Error() string {
	switch {
	case e.Offset >= 0 && e.Fragment != "":
		return fmt.Sprintf("cannot decode %s at offset %d near %q: %v", e.Target, e.Offset, e.Fragment, e.Err)
	case e.Fragment != "":
		return fmt.Sprintf("cannot decode %s near %q: %v", e.Target, e.Fragment, e.Err)
	}

	return fmt.Sprintf("cannot decode %s: %v", e.Target, e.Err)
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}

// Is matches types.ErrDeserialization.
func (e *DeserializationError) Is(target error) bool {
	return target == types.ErrDeserialization
}

// Option configures a Parser.
type Option func(*Parser)

// WithExtension registers a decoder for a property namespace, replacing any
// built-in decoder for it.
func WithExtension(namespace string, decoder ExtensionDecoder) Option {
	return func(p *Parser) {
		p.extensions[namespace] = decoder
	}
}

// WithoutExtension drops a namespace, so its properties stay opaque.
func WithoutExtension(namespace string) Option {
	return func(p *Parser) {
		delete(p.extensions, namespace)
	}
}

// Parser decodes STAC documents.
type Parser struct {
	extensions map[string]ExtensionDecoder
}

// New creates a Parser with the eo and proj extensions registered.
func New(opts ...Option) *Parser {
	p := &Parser{
		extensions: map[string]ExtensionDecoder{
			types.NamespaceEO:         decodeAs[types.EO],
			types.NamespaceProjection: decodeAs[types.Projection],
		},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Knows reports whether namespace is materialized into a typed structure.
func (p *Parser) Knows(namespace string) bool {
	_, ok := p.extensions[namespace]
	return ok
}

// Catalog decodes a catalog document.
func (p *Parser) Catalog(data []byte) (*types.Catalog, error) {
	return decode[types.Catalog]("Catalog", data)
}

// CatalogFrom decodes a catalog document read from r.
func (p *Parser) CatalogFrom(r io.Reader) (*types.Catalog, error) {
	return fromReader(r, p.Catalog)
}

// Collections decodes a GET /collections response.
func (p *Parser) Collections(data []byte) (*types.CollectionList, error) {
	list, err := decode[types.CollectionList]("CollectionList", data)
	if err != nil {
		return nil, err
	}

	for _, c := range list.Collections {
		if err := c.Extent.Validate(); err != nil {
			return nil, newError("CollectionList", data, fmt.Errorf("collection %s: %w", c.ID, err))
		}
	}

	return list, nil
}

// CollectionsFrom decodes a GET /collections response read from r.
func (p *Parser) CollectionsFrom(r io.Reader) (*types.CollectionList, error) {
	return fromReader(r, p.Collections)
}

// Collection decodes a single collection.
func (p *Parser) Collection(data []byte) (*types.Collection, error) {
	c, err := decode[types.Collection]("Collection", data)
	if err != nil {
		return nil, err
	}

	if err := c.Extent.Validate(); err != nil {
		return nil, newError("Collection", data, err)
	}

	return c, nil
}

// CollectionFrom decodes a single collection read from r.
func (p *Parser) CollectionFrom(r io.Reader) (*types.Collection, error) {
	return fromReader(r, p.Collection)
}

// Link decodes a single link.
func (p *Parser) Link(data []byte) (*types.Link, error) {
	return decode[types.Link]("Link", data)
}

// Band decodes a single eo:bands entry.
func (p *Parser) Band(data []byte) (*types.Band, error) {
	return decode[types.Band]("Band", data)
}

// Any decodes arbitrary JSON into maps, slices and scalars.
func (p *Parser) Any(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, newError("any", data, err)
	}

	return v, nil
}

func decode[T any](target string, data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, newError(target, data, err)
	}

	return &v, nil
}

func decodeAs[T any](data []byte) (any, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}

	return &v, nil
}

func fromReader[T any](r io.Reader, parse func([]byte) (T, error)) (T, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: failed to read document: %w", types.ErrRetrieval, err)
	}

	return parse(data)
}

// newError wraps a decoding failure, quoting the input near the failing
// offset when the decoder reports one.
func newError(target string, data []byte, err error) *DeserializationError {
	de := &DeserializationError{Target: target, Offset: -1, Err: err}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.As(err, &syntaxErr):
		de.Offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		de.Offset = typeErr.Offset
	}

	if de.Offset >= 0 {
		de.Fragment = fragment(data, de.Offset)
	} else if len(bytes.TrimSpace(data)) > 0 {
		de.Fragment = fragment(data, 0)
	}

	return de
}

func fragment(data []byte, offset int64) string {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}

	start := max(offset-fragmentLen/2, 0)
	end := min(start+fragmentLen, int64(len(data)))

	return strings.TrimSpace(string(data[start:end]))
}

// parseTime decodes an RFC 3339 timestamp property; null yields nil.
func parseTime(raw json.RawMessage) (*time.Time, error) {
	var t *time.Time
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, err
	}

	return t, nil
}
