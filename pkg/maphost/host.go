// Package maphost renders the marker set into raster frames. A tile-backed
// renderer is used when the tile source answers during initialization;
// otherwise a self-contained canvas renderer keeps the map usable.
package maphost

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/font"

	"github.com/dwc-systems/lead-map/pkg/markers"
)

var (
	ErrDestroyed          = errors.New("map host destroyed")
	ErrNotInitialized     = errors.New("map host not initialized")
	ErrAlreadyInitialized = errors.New("map host already initialized")
)

type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Mode int

const (
	ModeNone Mode = iota
	ModeNative
	ModeFallback
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeNative:
		return "native"
	case ModeFallback:
		return "fallback"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

const (
	DefaultLoadTimeout  = 5 * time.Second
	DefaultFrameTimeout = 10 * time.Second
	DefaultCenterLat    = 39.8283
	DefaultCenterLng    = -98.5795
	DefaultZoom         = 4
)

// Stats describes the most recent frame.
type Stats struct {
	Frames       int
	DrawCalls    int
	Tiles        int
	TileFailures int
	Width        int
	Height       int
}

type Host struct {
	surface        Surface
	tiles          TileSource
	loadTimeout    time.Duration
	frameTimeout   time.Duration
	lat, lng       float64
	zoom           int
	fallbackBounds markers.Bounds
	log            *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	r       renderer
	c       *canvas
	face    font.Face
	summary []string
	stats   Stats
}

type Option func(*Host)

// WithTileSource enables the native renderer. Without one the host always
// falls back to the canvas.
func WithTileSource(t TileSource) Option {
	return func(h *Host) { h.tiles = t }
}

func WithLoadTimeout(d time.Duration) Option {
	return func(h *Host) { h.loadTimeout = d }
}

// WithFrameTimeout bounds tile fetching for a single frame.
func WithFrameTimeout(d time.Duration) Option {
	return func(h *Host) { h.frameTimeout = d }
}

func WithCenter(lat, lng float64) Option {
	return func(h *Host) { h.lat, h.lng = lat, lng }
}

func WithZoom(z int) Option {
	return func(h *Host) { h.zoom = min(max(z, MinZoom), MaxZoom) }
}

func WithFallbackBounds(b markers.Bounds) Option {
	return func(h *Host) { h.fallbackBounds = b }
}

func WithLogger(log *zap.Logger) Option {
	return func(h *Host) { h.log = log.Named("maphost") }
}

func New(surface Surface, opts ...Option) *Host {
	h := &Host{
		surface:        surface,
		loadTimeout:    DefaultLoadTimeout,
		frameTimeout:   DefaultFrameTimeout,
		lat:            DefaultCenterLat,
		lng:            DefaultCenterLng,
		zoom:           DefaultZoom,
		fallbackBounds: DefaultFallbackBounds,
		log:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	return h
}

// Initialize probes the tile source for the center tile and picks the
// renderer. A probe failure is not an error: the host becomes Ready in
// fallback mode.
func (h *Host) Initialize(ctx context.Context) error {
	h.mu.Lock()
	switch h.state {
	case StateDestroyed:
		h.mu.Unlock()
		return ErrDestroyed
	case StateUninitialized:
	default:
		h.mu.Unlock()
		return ErrAlreadyInitialized
	}
	h.state = StateLoading
	h.mu.Unlock()

	probeErr := h.probe(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateDestroyed {
		return ErrDestroyed
	}

	w, ht := h.surface.Size()
	if probeErr == nil {
		h.r = newTileRenderer(h.tiles, h.lat, h.lng, h.zoom, w, ht, h.frameTimeout, h.log)
	} else {
		h.log.Warn("tile layer unavailable, using canvas fallback", zap.Error(probeErr))
		h.r = newCanvasRenderer(h.fallbackBounds, w, ht, h.log)
	}
	h.c = newCanvas(w, ht)
	h.face = newFace(13)
	h.state = StateReady
	h.log.Info("map ready", zap.Stringer("mode", h.r.mode()), zap.Int("width", w), zap.Int("height", ht))
	return nil
}

func (h *Host) probe(ctx context.Context) error {
	if h.tiles == nil {
		return errors.New("no tile source configured")
	}
	ctx, cancel := context.WithTimeout(ctx, h.loadTimeout)
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	key := centerTile(h.lat, h.lng, h.zoom)
	if _, err := h.tiles.Tile(ctx, key); err != nil {
		return fmt.Errorf("probe tile %s: %w", key, err)
	}
	return nil
}

// ready must be called with mu held.
func (h *Host) ready() error {
	switch h.state {
	case StateReady:
		return nil
	case StateDestroyed:
		return ErrDestroyed
	}
	return ErrNotInitialized
}

// Render draws the visible markers of m and presents the frame. A nil
// manager renders an empty map.
func (h *Host) Render(m *markers.Manager) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ready(); err != nil {
		return err
	}

	var ms []*markers.Marker
	if m != nil {
		ms = m.VisibleMarkers()
	}
	w, ht := h.r.size()
	h.c.resize(w, ht)
	h.c.calls = 0

	fs := h.r.draw(h.ctx, h.c, ms)
	drawPanel(h.c, h.summary, h.face)

	h.stats = Stats{
		Frames:       h.stats.Frames + 1,
		DrawCalls:    h.c.calls,
		Tiles:        fs.tiles,
		TileFailures: fs.tileFailures,
		Width:        w,
		Height:       ht,
	}
	if err := h.surface.Present(h.c.img); err != nil {
		return fmt.Errorf("present frame: %w", err)
	}
	return nil
}

// InvalidateSize re-reads the surface size. The renderer keeps drawing at
// the previous size until this is called.
func (h *Host) InvalidateSize() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ready(); err != nil {
		return err
	}
	w, ht := h.surface.Size()
	ow, oh := h.r.size()
	if w == ow && ht == oh {
		return nil
	}
	h.r.resize(w, ht)
	h.c.resize(w, ht)
	h.log.Debug("size invalidated", zap.Int("width", w), zap.Int("height", ht))
	return nil
}

// SetSummary replaces the overlay panel lines; they are drawn on the next Render.
func (h *Host) SetSummary(lines []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateDestroyed {
		return ErrDestroyed
	}
	h.summary = slices.Clone(lines)
	return nil
}

// FitBounds focuses the view on b. An empty box leaves the view unchanged.
func (h *Host) FitBounds(b markers.Bounds) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ready(); err != nil {
		return err
	}
	h.r.fitBounds(b)
	return nil
}

func (h *Host) Mode() Mode {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.r == nil || h.state == StateDestroyed {
		return ModeNone
	}
	return h.r.mode()
}

func (h *Host) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Host) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// Cancel aborts a running tile probe and any tile fetches of the frame being
// drawn. Later frames draw placeholders until Destroy.
func (h *Host) Cancel() {
	h.cancel()
}

// Destroy releases the renderer. The host cannot be reused afterwards.
func (h *Host) Destroy() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateDestroyed {
		return
	}
	h.state = StateDestroyed
	h.r = nil
	h.c = nil
	h.summary = nil
	h.log.Info("map destroyed")
}
