// Package sources holds the default remote endpoints the lead map talks to.
package sources

const (
	// LeadsEndpoint is the lead list served by the platform API.
	LeadsEndpoint = "http://localhost:5000/api/qnis/leads"

	OSMTileURL   = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	CartoTileURL = "https://a.basemaps.cartocdn.com/light_all/{z}/{x}/{y}.png"
	DarkTileURL  = "https://a.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}.png"
	TopoTileURL  = "https://a.tile.opentopomap.org/{z}/{x}/{y}.png"
	EsriTileURL  = "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}"
)

// TileURLs maps the base layer names offered by the layer control to their templates.
var TileURLs = map[string]string{
	"street":    OSMTileURL,
	"light":     CartoTileURL,
	"dark":      DarkTileURL,
	"terrain":   TopoTileURL,
	"satellite": EsriTileURL,
}
