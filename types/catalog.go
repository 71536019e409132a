package types

import "errors"

// Link is a typed reference to another resource.
type Link struct {
	Rel    string `json:"rel"`
	Type   string `json:"type,omitempty"`
	Title  string `json:"title,omitempty"`
	Href   string `json:"href"`
	Method string `json:"method,omitempty"`
}

// Catalog is the root document of a STAC service.
type Catalog struct {
	Type        string   `json:"type"`
	StacVersion string   `json:"stac_version"`
	ID          string   `json:"id"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description"`
	ConformsTo  []string `json:"conformsTo,omitempty"`
	Links       []Link   `json:"links"`
}

// Extent holds the spatial and temporal coverage of a collection.
type Extent struct {
	Spatial  SpatialExtent  `json:"spatial"`
	Temporal TemporalExtent `json:"temporal"`
}

// Validate reports an extent with no bbox or no interval, which is what an
// absent extent, spatial or temporal member decodes to.
func (e Extent) Validate() error {
	if len(e.Spatial.BBox) == 0 {
		return errors.New("spatial extent: bbox is missing")
	}
	if len(e.Temporal.Interval) == 0 {
		return errors.New("temporal extent: interval is missing")
	}

	return nil
}

// Collection groups items sharing an extent.
type Collection struct {
	Type        string   `json:"type"`
	StacVersion string   `json:"stac_version"`
	ID          string   `json:"id"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description"`
	License     string   `json:"license,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Extent      Extent   `json:"extent"`
	Links       []Link   `json:"links"`
}

// CollectionList is the response of GET /collections.
type CollectionList struct {
	Collections    []Collection `json:"collections"`
	Links          []Link       `json:"links,omitempty"`
	NumberMatched  *int         `json:"numberMatched,omitempty"`
	NumberReturned *int         `json:"numberReturned,omitempty"`
}

// LinkByRel returns the first link with the given relation.
func LinkByRel(links []Link, rel string) (Link, bool) {
	for _, l := range links {
		if l.Rel == rel {
			return l, true
		}
	}

	return Link{}, false
}
