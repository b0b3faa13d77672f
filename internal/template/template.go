package template

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/ironsheep/docroi/internal/field"
)

// DefaultConfidenceThreshold is the minimum share of validating fields for a
// template to be considered a fit for an image.
const DefaultConfidenceThreshold = 0.6

// Rect is a region rectangle in canonical pixel coordinates. (X1, Y1) is
// inclusive and (X2, Y2) is exclusive. It is stored as [x1, y1, x2, y2].
type Rect struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

// Width returns X2 - X1.
func (r Rect) Width() int { return r.X2 - r.X1 }

// Height returns Y2 - Y1.
func (r Rect) Height() int { return r.Y2 - r.Y1 }

// Image converts r to an image.Rectangle without canonicalising it.
func (r Rect) Image() image.Rectangle {
	return image.Rectangle{Min: image.Pt(r.X1, r.Y1), Max: image.Pt(r.X2, r.Y2)}
}

// Within reports whether 0 <= x1 < x2 <= width and 0 <= y1 < y2 <= height.
func (r Rect) Within(width, height int) bool {
	return r.X1 >= 0 && r.X1 < r.X2 && r.X2 <= width &&
		r.Y1 >= 0 && r.Y1 < r.Y2 && r.Y2 <= height
}

// MarshalJSON implements json.Marshaler.
func (r Rect) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{r.X1, r.Y1, r.X2, r.Y2})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Rect) UnmarshalJSON(b []byte) error {
	var v [4]int
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("coords must be [x1,y1,x2,y2]: %w", err)
	}
	*r = Rect{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}
	return nil
}

// Region is one named field of a template.
type Region struct {
	Name         string     `json:"-"`
	Coords       Rect       `json:"coords"`
	Color        *Color     `json:"color,omitempty"`
	ExpectedType field.Type `json:"expected_type"`
}

// Regions is an ordered list of regions that serializes as a JSON object
// keyed by region name, preserving order.
type Regions []Region

// Names returns the region names in order.
func (rs Regions) Names() []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Name
	}
	return names
}

// Find returns the region called name.
func (rs Regions) Find(name string) (Region, bool) {
	for _, r := range rs {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// MarshalJSON writes the regions as an object whose key order follows the
// slice order.
func (rs Regions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range rs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(r.Name)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("region %q: %w", r.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a region object, keeping the key order of the input.
func (rs *Regions) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*rs = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("regions must be a JSON object")
	}

	out := Regions{}
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected region key %v", tok)
		}
		if seen[name] {
			return fmt.Errorf("duplicate region %q", name)
		}
		seen[name] = true

		var r Region
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("region %q: %w", name, err)
		}
		r.Name = name
		out = append(out, r)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*rs = out
	return nil
}

// Template is a named region set for one document type.
type Template struct {
	DocType             string    `json:"-"`
	Name                string    `json:"name"`
	Regions             Regions   `json:"regions"`
	ConfidenceThreshold float64   `json:"confidence_threshold"`
	CreatedAt           time.Time `json:"created_at"`
	ModifiedAt          time.Time `json:"modified_at"`
}

// Clone returns a deep copy of t.
func (t *Template) Clone() *Template {
	c := *t
	c.Regions = append(Regions(nil), t.Regions...)
	for i, r := range c.Regions {
		if r.Color != nil {
			col := *r.Color
			c.Regions[i].Color = &col
		}
	}
	return &c
}

// UnmarshalJSON decodes a template. Timestamps without a UTC offset, as
// older store files carry them, are read as local time.
func (t *Template) UnmarshalJSON(b []byte) error {
	type plain Template
	aux := struct {
		*plain
		CreatedAt  timestamp `json:"created_at"`
		ModifiedAt timestamp `json:"modified_at"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	t.CreatedAt = time.Time(aux.CreatedAt)
	t.ModifiedAt = time.Time(aux.ModifiedAt)
	return nil
}

// Layouts tried, in order, for timestamps that are not RFC 3339.
var localTimestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

type timestamp time.Time

func (ts *timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		*ts = timestamp{}
		return nil
	}
	if v, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*ts = timestamp(v)
		return nil
	}
	for _, layout := range localTimestampLayouts {
		if v, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			*ts = timestamp(v)
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// Fits reports whether an aggregate confidence meets the template threshold.
func (t *Template) Fits(confidence float64) bool {
	return confidence >= t.ConfidenceThreshold
}

// Validate checks the template against a canonical canvas of the given size.
// All problems are reported together, wrapped in ErrInvalidTemplate.
func (t *Template) Validate(width, height int) error {
	var problems []error
	if t.Name == "" {
		problems = append(problems, errors.New("template name is empty"))
	}
	if t.ConfidenceThreshold < 0 || t.ConfidenceThreshold > 1 {
		problems = append(problems, fmt.Errorf("confidence threshold %v outside [0,1]", t.ConfidenceThreshold))
	}

	seen := make(map[string]bool, len(t.Regions))
	for _, r := range t.Regions {
		if r.Name == "" {
			problems = append(problems, errors.New("region with empty name"))
			continue
		}
		if seen[r.Name] {
			problems = append(problems, fmt.Errorf("duplicate region %q", r.Name))
		}
		seen[r.Name] = true
		if !r.ExpectedType.Valid() {
			problems = append(problems, fmt.Errorf("region %q: unknown expected type %q", r.Name, r.ExpectedType))
		}
		if !r.Coords.Within(width, height) {
			problems = append(problems, fmt.Errorf("region %q: coords (%d,%d)-(%d,%d) outside canvas %dx%d",
				r.Name, r.Coords.X1, r.Coords.Y1, r.Coords.X2, r.Coords.Y2, width, height))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidTemplate, errors.Join(problems...))
}
