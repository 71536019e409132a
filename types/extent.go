package types

import (
	"bytes"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// SpatialExtent holds one or more bounding boxes. The wire format allows
// either a single bbox or a list of them; in memory it is always a list.
type SpatialExtent struct {
	BBox [][]float64
}

// UnmarshalJSON accepts {"bbox": [x1, y1, x2, y2]} as well as
// {"bbox": [[x1, y1, x2, y2], ...]}.
func (s *SpatialExtent) UnmarshalJSON(data []byte) error {
	var wire struct {
		BBox json.RawMessage `json:"bbox"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	raw := bytes.TrimSpace(wire.BBox)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("spatial extent: bbox is missing")
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return fmt.Errorf("spatial extent: bbox must be an array: %w", err)
	}
	if len(elems) == 0 {
		return fmt.Errorf("spatial extent: bbox is empty")
	}

	var boxes [][]float64
	if first := bytes.TrimSpace(elems[0]); len(first) > 0 && first[0] == '[' {
		if err := json.Unmarshal(raw, &boxes); err != nil {
			return fmt.Errorf("spatial extent: invalid bbox list: %w", err)
		}
	} else {
		var box []float64
		if err := json.Unmarshal(raw, &box); err != nil {
			return fmt.Errorf("spatial extent: invalid bbox: %w", err)
		}
		boxes = [][]float64{box}
	}

	for i, box := range boxes {
		if len(box) != 4 && len(box) != 6 {
			return fmt.Errorf("spatial extent: bbox %d has %d coordinates, want 4 or 6", i, len(box))
		}
	}

	s.BBox = boxes
	return nil
}

// MarshalJSON always writes the list form.
func (s SpatialExtent) MarshalJSON() ([]byte, error) {
	boxes := s.BBox
	if boxes == nil {
		boxes = [][]float64{}
	}

	return json.Marshal(struct {
		BBox [][]float64 `json:"bbox"`
	}{BBox: boxes})
}

// Interval is a time range where either bound may be open (nil).
type Interval struct {
	Start *time.Time
	End   *time.Time
}

// UnmarshalJSON reads a two element array whose members are RFC 3339
// timestamps or null.
func (iv *Interval) UnmarshalJSON(data []byte) error {
	var pair []*time.Time
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("temporal extent: invalid interval %s: %w", data, err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("temporal extent: interval has %d bounds, want 2", len(pair))
	}

	iv.Start, iv.End = pair[0], pair[1]
	return nil
}

// MarshalJSON writes open bounds as null.
func (iv Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal([]*time.Time{iv.Start, iv.End})
}

// Open reports whether at least one bound is absent.
func (iv Interval) Open() bool {
	return iv.Start == nil || iv.End == nil
}

// TemporalExtent holds one or more intervals.
type TemporalExtent struct {
	Interval []Interval
}

func (t *TemporalExtent) UnmarshalJSON(data []byte) error {
	var wire struct {
		Interval []Interval `json:"interval"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if len(wire.Interval) == 0 {
		return fmt.Errorf("temporal extent: interval list is empty")
	}

	t.Interval = wire.Interval
	return nil
}

func (t TemporalExtent) MarshalJSON() ([]byte, error) {
	intervals := t.Interval
	if intervals == nil {
		intervals = []Interval{}
	}

	return json.Marshal(struct {
		Interval []Interval `json:"interval"`
	}{Interval: intervals})
}
