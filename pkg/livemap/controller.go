// Package livemap wires the lead source, the marker layers and the map host
// into one owned lifecycle.
package livemap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dwc-systems/lead-map/pkg/leads"
	"github.com/dwc-systems/lead-map/pkg/maphost"
	"github.com/dwc-systems/lead-map/pkg/markers"
)

var (
	ErrDestroyed      = errors.New("live map destroyed")
	ErrNotInitialized = errors.New("live map not initialized")
	ErrUnknownLayer   = errors.New("unknown marker layer")
)

const (
	DefaultTitle              = "Live Leads"
	DefaultHighValueThreshold = 100000.0
)

type Config struct {
	Interval           time.Duration
	Title              string
	HighValueThreshold float64
}

// Update is passed to observers after every render.
type Update struct {
	Markers    []*markers.Marker
	Summary    Summary
	Mode       maphost.Mode
	RenderedAt time.Time
}

// Observer is notified synchronously on the render path and must not block.
type Observer interface {
	MapUpdated(Update)
}

// Controller owns polling, marker rebuilds and rendering for one map.
type Controller struct {
	cfg       Config
	source    *leads.Source
	host      *maphost.Host
	manager   *markers.Manager
	observers []Observer
	log       *zap.Logger
	now       func() time.Time

	mu          sync.Mutex
	initialized  bool
	initializing bool
	destroyed    bool
	cancel      context.CancelFunc

	stopped atomic.Bool
	renders atomic.Int64

	renderMu sync.Mutex
	summary  Summary
}

type Option func(*Controller)

func WithLogger(log *zap.Logger) Option {
	return func(c *Controller) { c.log = log.Named("livemap") }
}

func WithManager(m *markers.Manager) Option {
	return func(c *Controller) { c.manager = m }
}

func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, o) }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func New(cfg Config, source *leads.Source, host *maphost.Host, opts ...Option) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = leads.DefaultInterval
	}
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.HighValueThreshold <= 0 {
		cfg.HighValueThreshold = DefaultHighValueThreshold
	}
	c := &Controller{
		cfg:    cfg,
		source: source,
		host:   host,
		log:    zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.manager == nil {
		c.manager = markers.NewManager(markers.WithLogger(c.log))
	}
	return c
}

// Initialize brings up the map host, draws an empty frame and starts
// polling. A second call is a no-op; a destroyed controller cannot be
// initialized again.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	if c.initialized || c.initializing {
		c.mu.Unlock()
		c.log.Debug("already initialized")
		return nil
	}
	c.initializing = true
	c.mu.Unlock()

	// The probe runs unlocked so Destroy can abort it.
	err := c.host.Initialize(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.initializing = false
	if c.destroyed {
		return ErrDestroyed
	}
	if err != nil && !errors.Is(err, maphost.ErrAlreadyInitialized) {
		return err
	}

	c.renderMu.Lock()
	c.apply(nil)
	c.renderMu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.source.OnChange(c.onLeads)
	c.source.Start(runCtx, c.cfg.Interval)
	c.initialized = true
	c.log.Info("live map initialized", zap.Stringer("mode", c.host.Mode()), zap.Duration("interval", c.cfg.Interval))
	return nil
}

func (c *Controller) onLeads(records []leads.Record) {
	if c.stopped.Load() {
		return
	}
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	if c.stopped.Load() {
		return
	}
	c.apply(records)
}

// apply rebuilds markers, refreshes the summary and renders. Callers hold renderMu.
func (c *Controller) apply(records []leads.Record) {
	placed := c.manager.Rebuild(records)
	at := c.now()
	c.summary = Summarize(records, placed, at)

	if err := c.host.SetSummary(c.summary.Lines(c.cfg.Title)); err != nil {
		c.log.Debug("summary not pushed", zap.Error(err))
	}
	c.render()
}

// render draws the current marker set. Callers hold renderMu.
func (c *Controller) render() {
	if err := c.host.Render(c.manager); err != nil {
		c.log.Warn("render failed", zap.Error(err))
		return
	}
	c.renders.Add(1)
	if len(c.observers) == 0 {
		return
	}
	u := Update{
		Markers:    c.manager.Markers(),
		Summary:    c.summary,
		Mode:       c.host.Mode(),
		RenderedAt: c.now(),
	}
	for _, o := range c.observers {
		o.MapUpdated(u)
	}
}

func (c *Controller) ready() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return ErrDestroyed
	}
	if !c.initialized {
		return ErrNotInitialized
	}
	return nil
}

// Refresh re-reads the surface size, fetches immediately and re-renders even
// when the list did not change.
func (c *Controller) Refresh(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.host.InvalidateSize(); err != nil {
		return err
	}

	before := c.renders.Load()
	records := c.source.FetchOnce(ctx)

	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	if c.stopped.Load() {
		return ErrDestroyed
	}
	if c.renders.Load() == before {
		c.apply(records)
	}
	return nil
}

// SetLayerVisible shows or hides a priority layer and redraws.
func (c *Controller) SetLayerVisible(name markers.LayerName, visible bool) error {
	if !c.manager.SetVisible(name, visible) {
		return ErrUnknownLayer
	}
	if c.ready() != nil {
		return nil
	}
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	c.render()
	return nil
}

// FocusHighValue fits the view to leads worth more than the configured
// threshold, or to every marker when none qualifies. It reports false when
// there is nothing to focus on.
func (c *Controller) FocusHighValue() (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	threshold := c.cfg.HighValueThreshold
	b := c.manager.Bounds(func(m *markers.Marker) bool { return m.Lead.ValueEstimate > threshold })
	if b.Empty() {
		b = c.manager.Bounds(nil)
	}
	if b.Empty() {
		return false, nil
	}
	if err := c.host.FitBounds(b); err != nil {
		return false, err
	}
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	c.render()
	return true, nil
}

func (c *Controller) Summary() Summary {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	return c.summary
}

func (c *Controller) Markers() []*markers.Marker {
	return c.manager.Markers()
}

func (c *Controller) Mode() maphost.Mode {
	return c.host.Mode()
}

// Destroy stops polling, clears the markers and releases the host. It is
// safe before Initialize and on repeated calls.
func (c *Controller) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.stopped.Store(true)
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.host.Cancel()
	c.source.Stop()

	c.renderMu.Lock()
	c.manager.Clear()
	c.host.Destroy()
	c.renderMu.Unlock()
	c.log.Info("live map destroyed")
}
