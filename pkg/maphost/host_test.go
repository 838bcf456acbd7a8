package maphost

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dwc-systems/lead-map/pkg/leads"
	"github.com/dwc-systems/lead-map/pkg/markers"
)

var tileColor = color.RGBA{90, 100, 110, 255}

func solidTile(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, TileSize, TileSize))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

func okTiles() TileSource {
	tile := solidTile(tileColor)
	return TileSourceFunc(func(ctx context.Context, key TileKey) (image.Image, error) {
		return tile, nil
	})
}

func failingTiles() TileSource {
	return TileSourceFunc(func(ctx context.Context, key TileKey) (image.Image, error) {
		return nil, errors.New("cdn unreachable")
	})
}

func ptr(f float64) *float64 { return &f }

func managerWith(records ...leads.Record) *markers.Manager {
	m := markers.NewManager()
	m.Rebuild(records)
	return m
}

func rec(id string, lat, lng float64, p leads.Priority) leads.Record {
	return leads.Record{ID: leads.ID(id), Coordinates: &leads.Coordinates{Lat: ptr(lat), Lng: ptr(lng)}, Priority: p}
}

func TestInitializeNative(t *testing.T) {
	surface := NewMemorySurface(320, 240)
	h := New(surface, WithTileSource(okTiles()))
	require.NoError(t, h.Initialize(context.Background()))
	assert.Equal(t, StateReady, h.State())
	assert.Equal(t, ModeNative, h.Mode())

	m := managerWith(rec("c", DefaultCenterLat, DefaultCenterLng, leads.PriorityHigh))
	require.NoError(t, h.Render(m))

	frame := surface.Frame()
	require.NotNil(t, frame)
	assert.Equal(t, tileColor, frame.RGBAAt(4, 235), "tiles must be composed under the markers")
	center := frame.RGBAAt(160, 120)
	assert.NotEqual(t, tileColor, center, "center marker must be drawn")
	assert.Greater(t, center.R, center.G)

	st := h.Stats()
	assert.Equal(t, 1, st.Frames)
	assert.Positive(t, st.Tiles)
	assert.Zero(t, st.TileFailures)
}

func TestTileFailuresUsePlaceholder(t *testing.T) {
	tile := solidTile(tileColor)
	probe := centerTile(DefaultCenterLat, DefaultCenterLng, DefaultZoom)
	tiles := TileSourceFunc(func(ctx context.Context, key TileKey) (image.Image, error) {
		if key == probe {
			return tile, nil
		}
		return nil, errors.New("404")
	})
	surface := NewMemorySurface(640, 480)
	h := New(surface, WithTileSource(tiles))
	require.NoError(t, h.Initialize(context.Background()))
	require.Equal(t, ModeNative, h.Mode())

	require.NoError(t, h.Render(nil))
	st := h.Stats()
	assert.Positive(t, st.TileFailures)
	assert.Less(t, st.TileFailures, st.Tiles)

	found := false
	frame := surface.Frame()
	for y := 0; y < 480 && !found; y += 7 {
		for x := 0; x < 640; x += 7 {
			if frame.RGBAAt(x, y) == placeholderBG {
				found = true
				break
			}
		}
	}
	assert.True(t, found, "failed tiles must be painted with the placeholder")
}

func TestFallbackContinuity(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"load failure", []Option{WithTileSource(failingTiles())}},
		{"no tile source", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			surface := NewMemorySurface(600, 300)
			h := New(surface, tt.opts...)
			require.NoError(t, h.Initialize(context.Background()))
			assert.Equal(t, ModeFallback, h.Mode())
			assert.Equal(t, StateReady, h.State())

			// 37.5,-95 is the middle of the default fallback box.
			m := managerWith(rec("a", 37.5, -95, leads.PriorityHigh))
			require.NoError(t, h.Render(m))

			assert.Positive(t, h.Stats().DrawCalls)
			frame := surface.Frame()
			require.NotNil(t, frame)
			assert.Equal(t, fallbackBG, frame.RGBAAt(2, 298))
			assert.Equal(t, markers.MustParseHex(markers.HighColor), frame.RGBAAt(300, 150))
		})
	}
}

func TestFallbackRendersEmptyManager(t *testing.T) {
	surface := NewMemorySurface(200, 120)
	h := New(surface)
	require.NoError(t, h.Initialize(context.Background()))
	require.NoError(t, h.Render(markers.NewManager()))
	assert.Positive(t, h.Stats().DrawCalls)
	assert.Equal(t, 1, surface.Frames())
}

func TestProbeTimeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	blocking := TileSourceFunc(func(ctx context.Context, key TileKey) (image.Image, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	h := New(NewMemorySurface(100, 100), WithTileSource(blocking), WithLoadTimeout(20*time.Millisecond))

	start := time.Now()
	require.NoError(t, h.Initialize(context.Background()))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, ModeFallback, h.Mode())
	h.Destroy()
}

func TestInvalidateSize(t *testing.T) {
	surface := NewMemorySurface(200, 100)
	h := New(surface)
	require.NoError(t, h.Initialize(context.Background()))

	surface.SetSize(400, 300)
	require.NoError(t, h.Render(nil))
	assert.Equal(t, image.Rect(0, 0, 200, 100), surface.Frame().Bounds(), "renderer keeps its size until invalidated")

	require.NoError(t, h.InvalidateSize())
	require.NoError(t, h.Render(nil))
	assert.Equal(t, image.Rect(0, 0, 400, 300), surface.Frame().Bounds())
	assert.Equal(t, 400, h.Stats().Width)
}

func TestStateMachine(t *testing.T) {
	h := New(NewMemorySurface(100, 100))
	assert.Equal(t, StateUninitialized, h.State())
	assert.Equal(t, ModeNone, h.Mode())
	assert.ErrorIs(t, h.Render(nil), ErrNotInitialized)
	assert.ErrorIs(t, h.InvalidateSize(), ErrNotInitialized)
	assert.NoError(t, h.SetSummary([]string{"early"}), "summary may be set before the map is ready")

	require.NoError(t, h.Initialize(context.Background()))
	assert.ErrorIs(t, h.Initialize(context.Background()), ErrAlreadyInitialized)

	h.Destroy()
	assert.Equal(t, StateDestroyed, h.State())
	assert.Equal(t, ModeNone, h.Mode())
	assert.ErrorIs(t, h.Render(nil), ErrDestroyed)
	assert.ErrorIs(t, h.InvalidateSize(), ErrDestroyed)
	assert.ErrorIs(t, h.SetSummary(nil), ErrDestroyed)
	assert.ErrorIs(t, h.FitBounds(markers.NewBounds(0, 0, 1, 1)), ErrDestroyed)
	assert.ErrorIs(t, h.Initialize(context.Background()), ErrDestroyed)
	h.Destroy()
}

func TestDestroyBeforeInitialize(t *testing.T) {
	h := New(NewMemorySurface(10, 10))
	h.Destroy()
	assert.ErrorIs(t, h.Initialize(context.Background()), ErrDestroyed)
}

func TestDestroyDuringLoading(t *testing.T) {
	started := make(chan struct{})
	blocking := TileSourceFunc(func(ctx context.Context, key TileKey) (image.Image, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	h := New(NewMemorySurface(10, 10), WithTileSource(blocking), WithLoadTimeout(time.Minute))

	errc := make(chan error, 1)
	go func() { errc <- h.Initialize(context.Background()) }()
	<-started
	assert.Equal(t, StateLoading, h.State())
	h.Destroy()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrDestroyed)
	case <-time.After(2 * time.Second):
		t.Fatal("Destroy must abort the tile probe")
	}
}

func TestSummaryPanel(t *testing.T) {
	surface := NewMemorySurface(400, 300)
	h := New(surface)
	require.NoError(t, h.Initialize(context.Background()))

	require.NoError(t, h.Render(nil))
	bare := h.Stats().DrawCalls

	require.NoError(t, h.SetSummary([]string{"Live Leads", "0 leads"}))
	require.NoError(t, h.Render(nil))
	assert.Greater(t, h.Stats().DrawCalls, bare)
	assert.Equal(t, panelBorder, surface.Frame().RGBAAt(400-12-1, 20), "panel border")
}

func TestFitBounds(t *testing.T) {
	h := New(NewMemorySurface(800, 600), WithTileSource(okTiles()))
	require.NoError(t, h.Initialize(context.Background()))

	nyc := markers.NewBounds(40.70, -74.02, 40.80, -73.93)
	require.NoError(t, h.FitBounds(nyc))
	tr := h.r.(*tileRenderer)
	assert.Greater(t, tr.zoom, DefaultZoom)
	assert.InDelta(t, 40.75, tr.lat, 1e-9)

	require.NoError(t, h.FitBounds(markers.Bounds{}))
	assert.InDelta(t, 40.75, tr.lat, 1e-9, "empty bounds leave the view alone")

	fb := New(NewMemorySurface(800, 600))
	require.NoError(t, fb.Initialize(context.Background()))
	require.NoError(t, fb.FitBounds(nyc))
	cr := fb.r.(*canvasRenderer)
	assert.Less(t, cr.bounds.MinLat, 40.70)
	assert.Greater(t, cr.bounds.MaxLng, -73.93)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "fallback", ModeFallback.String())
	assert.Equal(t, "State(9)", State(9).String())
}
