package markers

// Bounds is a lat/lng box. The zero value is empty.
type Bounds struct {
	MinLat, MinLng float64
	MaxLat, MaxLng float64
	valid          bool
}

func NewBounds(minLat, minLng, maxLat, maxLng float64) Bounds {
	return Bounds{MinLat: minLat, MinLng: minLng, MaxLat: maxLat, MaxLng: maxLng, valid: true}
}

func (b Bounds) Empty() bool { return !b.valid }

func (b Bounds) Extend(lat, lng float64) Bounds {
	if !b.valid {
		return NewBounds(lat, lng, lat, lng)
	}
	b.MinLat = min(b.MinLat, lat)
	b.MinLng = min(b.MinLng, lng)
	b.MaxLat = max(b.MaxLat, lat)
	b.MaxLng = max(b.MaxLng, lng)
	return b
}

func (b Bounds) Center() (lat, lng float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLng + b.MaxLng) / 2
}

// Pad grows the box by frac of its span on every side, with a minimum of
// half a degree so a single point still yields a usable area.
func (b Bounds) Pad(frac float64) Bounds {
	if !b.valid {
		return b
	}
	dLat := max((b.MaxLat-b.MinLat)*frac, 0.5)
	dLng := max((b.MaxLng-b.MinLng)*frac, 0.5)
	return NewBounds(
		max(b.MinLat-dLat, -85),
		max(b.MinLng-dLng, -180),
		min(b.MaxLat+dLat, 85),
		min(b.MaxLng+dLng, 180),
	)
}
