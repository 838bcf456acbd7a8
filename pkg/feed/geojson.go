package feed

import (
	geojson "github.com/paulmach/go.geojson"

	"github.com/dwc-systems/lead-map/pkg/markers"
)

// FeatureCollection exports markers as GeoJSON points in draw order. Styling
// is carried in the properties so web clients can paint them the same way.
func FeatureCollection(ms []*markers.Marker) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range ms {
		f := geojson.NewPointFeature([]float64{m.Lng, m.Lat})
		f.ID = string(m.ID)
		f.SetProperty("id", string(m.ID))
		f.SetProperty("priority", string(m.Priority))
		f.SetProperty("layer", string(m.Layer))
		f.SetProperty("color", markers.Hex(m.Style.Fill))
		f.SetProperty("radius", m.Style.Radius)
		f.SetProperty("title", m.Popup.Title)
		f.SetProperty("popup", m.Popup.Lines)
		f.SetProperty("qnis_score", m.Lead.QNISScore)
		f.SetProperty("value_estimate", m.Lead.ValueEstimate)
		if city := m.Lead.CityName(); city != "" {
			f.SetProperty("city", city)
		}
		fc.AddFeature(f)
	}
	return fc
}
