package types

import (
	"time"

	json "github.com/goccy/go-json"
)

// Extension namespaces materialized into typed structures by the parser.
const (
	NamespaceEO         = "eo"
	NamespaceProjection = "proj"
)

// Geometry is an opaque GeoJSON geometry.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	Geometries  json.RawMessage `json:"geometries,omitempty"`
}

// Asset is a retrievable resource referenced by an item.
type Asset struct {
	Href        string   `json:"href"`
	Type        string   `json:"type,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// Band describes one spectral band of the electro-optical extension.
type Band struct {
	Name              string   `json:"name,omitempty"`
	CommonName        string   `json:"common_name,omitempty"`
	Description       string   `json:"description,omitempty"`
	CenterWavelength  *float64 `json:"center_wavelength,omitempty"`
	FullWidthHalfMax  *float64 `json:"full_width_half_max,omitempty"`
	SolarIllumination *float64 `json:"solar_illumination,omitempty"`
}

// EO holds the eo:* item properties.
type EO struct {
	Bands      []Band   `json:"bands,omitempty"`
	CloudCover *float64 `json:"cloud_cover,omitempty"`
	SnowCover  *float64 `json:"snow_cover,omitempty"`
}

// Projection holds the proj:* item properties.
type Projection struct {
	EPSG      *int      `json:"epsg,omitempty"`
	Code      string    `json:"code,omitempty"`
	WKT2      string    `json:"wkt2,omitempty"`
	Shape     []int     `json:"shape,omitempty"`
	Transform []float64 `json:"transform,omitempty"`
	BBox      []float64 `json:"bbox,omitempty"`
}

// Properties are the item properties. Extension groups of a known namespace
// are kept typed in Extensions; everything else stays opaque in Fields.
type Properties struct {
	Datetime      *time.Time `json:"datetime"`
	StartDatetime *time.Time `json:"start_datetime,omitempty"`
	EndDatetime   *time.Time `json:"end_datetime,omitempty"`
	Title         string     `json:"title,omitempty"`

	Extensions map[string]any `json:"-"`
	Fields     map[string]any `json:"-"`
}

// EO returns the electro-optical extension, if present.
func (p Properties) EO() (*EO, bool) {
	eo, ok := p.Extensions[NamespaceEO].(*EO)
	return eo, ok
}

// Projection returns the projection extension, if present.
func (p Properties) Projection() (*Projection, bool) {
	proj, ok := p.Extensions[NamespaceProjection].(*Projection)
	return proj, ok
}

// MarshalJSON flattens extensions back into namespaced keys.
func (p Properties) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Fields)+4)
	for k, v := range p.Fields {
		out[k] = v
	}

	for ns, ext := range p.Extensions {
		raw, err := json.Marshal(ext)
		if err != nil {
			return nil, err
		}

		var group map[string]any
		if err := json.Unmarshal(raw, &group); err != nil {
			return nil, err
		}
		for k, v := range group {
			out[ns+":"+k] = v
		}
	}

	out["datetime"] = p.Datetime
	if p.StartDatetime != nil {
		out["start_datetime"] = p.StartDatetime
	}
	if p.EndDatetime != nil {
		out["end_datetime"] = p.EndDatetime
	}
	if p.Title != "" {
		out["title"] = p.Title
	}

	return json.Marshal(out)
}

// Item is a single catalog entry. Asset keys are unique by construction.
type Item struct {
	Type           string           `json:"type"`
	StacVersion    string           `json:"stac_version"`
	StacExtensions []string         `json:"stac_extensions,omitempty"`
	ID             string           `json:"id"`
	Collection     string           `json:"collection,omitempty"`
	BBox           []float64        `json:"bbox,omitempty"`
	Geometry       *Geometry        `json:"geometry"`
	Properties     Properties       `json:"properties"`
	Assets         map[string]Asset `json:"assets"`
	Links          []Link           `json:"links"`
}

// PageContext carries the paging metadata of a list response.
type PageContext struct {
	Returned int  `json:"returned"`
	Matched  *int `json:"matched,omitempty"`
	Limit    int  `json:"limit"`
}

// ItemCollection is the response of an items listing or a search.
type ItemCollection struct {
	Type           string       `json:"type"`
	Features       []Item       `json:"features"`
	Links          []Link       `json:"links,omitempty"`
	Context        *PageContext `json:"context,omitempty"`
	NumberMatched  *int         `json:"numberMatched,omitempty"`
	NumberReturned *int         `json:"numberReturned,omitempty"`
}
