package maphost

import _ "embed"

// usOutlineGeoJSON is a coarse outline of the contiguous US for
// the offline canvas. It only needs to orient the viewer.
//
//go:embed data/us-outline.geo.json
var usOutlineGeoJSON []byte
