// Package leads models lead records and polls them from the platform API.
package leads

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrMalformed is returned for bodies that are not a lead list, and for
// non-empty lists in which no record can be placed on the map.
var ErrMalformed = errors.New("malformed lead response")

// ID is the opaque lead identifier. The API sends strings or numbers; both
// decode to the same canonical text so 1 and "1" name the same lead.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("lead id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Known reports whether p is one of the tokens the API documents. Matching is case-sensitive.
func (p Priority) Known() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

type Coordinates struct {
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
	City    string   `json:"city,omitempty"`
	State   string   `json:"state,omitempty"`
	Country string   `json:"country,omitempty"`
}

type Record struct {
	ID            ID           `json:"id"`
	Coordinates   *Coordinates `json:"coordinates,omitempty"`
	Priority      Priority     `json:"priority"`
	QNISScore     float64      `json:"qnis_score"`
	ValueEstimate float64      `json:"value_estimate"`
	CompanyName   string       `json:"company_name,omitempty"`
	Type          string       `json:"type,omitempty"`
	Industry      string       `json:"industry,omitempty"`
	City          string       `json:"city,omitempty"`
}

// wireRecord accepts both the snake_case and camelCase spellings the
// different API revisions have used, plus the flat lat/lng variant.
type wireRecord struct {
	ID                 ID           `json:"id"`
	Coordinates        *Coordinates `json:"coordinates"`
	Lat                *float64     `json:"lat"`
	Lng                *float64     `json:"lng"`
	City               string       `json:"city"`
	State              string       `json:"state"`
	Priority           Priority     `json:"priority"`
	QNISScore          *float64     `json:"qnis_score"`
	QNISScoreCamel     *float64     `json:"qnisScore"`
	ValueEstimate      *float64     `json:"value_estimate"`
	ValueEstimateCamel *float64     `json:"valueEstimate"`
	CompanyName        string       `json:"company_name"`
	CompanyNameCamel   string       `json:"companyName"`
	Type               string       `json:"type"`
	Industry           string       `json:"industry"`
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var w wireRecord
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = Record{
		ID:            w.ID,
		Coordinates:   w.Coordinates,
		Priority:      w.Priority,
		QNISScore:     firstOf(w.QNISScore, w.QNISScoreCamel),
		ValueEstimate: firstOf(w.ValueEstimate, w.ValueEstimateCamel),
		CompanyName:   w.CompanyName,
		Type:          w.Type,
		Industry:      w.Industry,
		City:          w.City,
	}
	if r.CompanyName == "" {
		r.CompanyName = w.CompanyNameCamel
	}
	if r.Coordinates == nil && (w.Lat != nil || w.Lng != nil) {
		r.Coordinates = &Coordinates{Lat: w.Lat, Lng: w.Lng, City: w.City, State: w.State}
	}
	return nil
}

func firstOf(vals ...*float64) float64 {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return 0
}

// Position returns the marker position. ok is false when either coordinate
// is missing, not finite or out of range; such records are not drawn.
func (r Record) Position() (lat, lng float64, ok bool) {
	c := r.Coordinates
	if c == nil || c.Lat == nil || c.Lng == nil {
		return 0, 0, false
	}
	lat, lng = *c.Lat, *c.Lng
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, false
	}
	return lat, lng, true
}

// CityName prefers the geocoded city over the flat field.
func (r Record) CityName() string {
	if r.Coordinates != nil && r.Coordinates.City != "" {
		return r.Coordinates.City
	}
	return r.City
}

// Placeable reports whether the record can become a marker.
func (r Record) Placeable() bool {
	if r.ID == "" {
		return false
	}
	_, _, ok := r.Position()
	return ok
}

// ParseLeads decodes a response body: a bare array, or an object with a
// "leads" array. Elements that fail to decode are dropped; see DecodeLeads.
func ParseLeads(data []byte) ([]Record, error) {
	records, _, err := DecodeLeads(data)
	return records, err
}

// DecodeLeads is ParseLeads that also reports how many array elements were
// skipped because they could not be decoded as a record.
func DecodeLeads(data []byte) (records []Record, skipped int, err error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("%w: empty body", ErrMalformed)
	}
	var raw []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case '{':
		var wrapped struct {
			Leads *[]json.RawMessage `json:"leads"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if wrapped.Leads == nil {
			return nil, 0, fmt.Errorf("%w: object without leads array", ErrMalformed)
		}
		raw = *wrapped.Leads
	default:
		return nil, 0, fmt.Errorf("%w: expected array, got %q", ErrMalformed, data[0])
	}

	records = make([]Record, 0, len(raw))
	for _, elem := range raw {
		var r Record
		if err := json.Unmarshal(elem, &r); err != nil {
			skipped++
			continue
		}
		records = append(records, r)
	}
	return records, skipped, nil
}

// CheckBatch rejects a non-empty list in which no record is placeable.
func CheckBatch(records []Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r.Placeable() {
			return nil
		}
	}
	return fmt.Errorf("%w: none of %d records has an id and coordinates", ErrMalformed, len(records))
}

// Changed is the cheap change test used between polls: the lists differ if
// their sets of ids differ. Field edits on a lead that keeps its id are not
// detected.
func Changed(prev, next []Record) bool {
	before := idSet(prev)
	after := idSet(next)
	if len(before) != len(after) {
		return true
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			return true
		}
	}
	return false
}

func idSet(records []Record) map[ID]struct{} {
	ids := make(map[ID]struct{}, len(records))
	for _, r := range records {
		ids[r.ID] = struct{}{}
	}
	return ids
}
