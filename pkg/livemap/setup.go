package livemap

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dwc-systems/lead-map/pkg/config"
	"github.com/dwc-systems/lead-map/pkg/leads"
	"github.com/dwc-systems/lead-map/pkg/maphost"
	"github.com/dwc-systems/lead-map/pkg/utils"
)

// Setup assembles a controller from flags: an HTTP lead source, an optional
// snapshot store and a host drawing onto surface. The returned close func
// releases the snapshot store and must run after Destroy.
func Setup(m config.Map, surface maphost.Surface, log *zap.Logger, opts ...Option) (*Controller, func() error, error) {
	if log == nil {
		log = zap.NewNop()
	}
	closer := func() error { return nil }

	sourceOpts := []leads.SourceOption{leads.WithLogger(log)}
	if m.Snapshot != "" {
		store, err := utils.OpenDiskStore(m.Snapshot)
		if err != nil {
			return nil, nil, fmt.Errorf("open snapshot store: %w", err)
		}
		sourceOpts = append(sourceOpts, leads.WithSnapshot(leads.NewDiskSnapshot(store, "")))
		closer = store.Close
	}
	fetcher := leads.NewHTTPFetcher(m.Endpoint, m.FetchTimeout)
	fetcher.Log = log.Named("fetcher")
	source := leads.NewSource(fetcher, sourceOpts...)

	hostOpts := []maphost.Option{
		maphost.WithLogger(log),
		maphost.WithLoadTimeout(m.LoadTimeout),
		maphost.WithCenter(m.Lat, m.Lng),
		maphost.WithZoom(m.Zoom),
	}
	if !m.Offline {
		templates, err := m.TileTemplates()
		if err != nil {
			_ = closer()
			return nil, nil, err
		}
		tiles := maphost.NewHTTPTileSource(templates,
			maphost.WithTileCacheDir(m.TileCacheDir),
			maphost.WithTileLogger(log))
		hostOpts = append(hostOpts, maphost.WithTileSource(tiles))
	}
	host := maphost.New(surface, hostOpts...)

	cfg := Config{Interval: m.Interval, Title: m.Title, HighValueThreshold: m.HighValue}
	ctrl := New(cfg, source, host, append([]Option{WithLogger(log)}, opts...)...)
	return ctrl, closer, nil
}
