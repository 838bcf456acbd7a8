// Package markers keeps the priority-layered marker set that mirrors the
// current lead list.
package markers

import (
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/dwc-systems/lead-map/pkg/leads"
)

type LayerName string

const (
	LayerHigh   LayerName = "highPriority"
	LayerMedium LayerName = "mediumPriority"
	LayerLow    LayerName = "lowPriority"
)

// DrawOrder paints high priority on top.
var DrawOrder = []LayerName{LayerLow, LayerMedium, LayerHigh}

type Marker struct {
	ID       leads.ID
	Lat, Lng float64
	Priority leads.Priority
	Layer    LayerName
	Style    Style
	Popup    Popup
	Lead     leads.Record
}

// Layer is a named bucket of markers. Hidden layers keep their markers.
type Layer struct {
	name    LayerName
	visible bool
	markers []*Marker
}

func (l *Layer) Name() LayerName { return l.name }
func (l *Layer) Visible() bool   { return l.visible }
func (l *Layer) Len() int        { return len(l.markers) }

// Manager owns the three priority layers. A rebuild replaces every marker;
// there is no incremental update, so the marker set is always a function of
// the last list passed to Rebuild.
type Manager struct {
	log *zap.Logger

	mu     sync.RWMutex
	layers map[LayerName]*Layer
	byID   map[leads.ID]*Marker
}

type Option func(*Manager)

func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) { m.log = log.Named("markers") }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		log:    zap.NewNop(),
		layers: make(map[LayerName]*Layer, len(DrawOrder)),
		byID:   make(map[leads.ID]*Marker),
	}
	for _, name := range DrawOrder {
		m.layers[name] = &Layer{name: name, visible: true}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Rebuild clears all layers and creates one marker per placeable record.
// Records without usable coordinates and repeated ids are skipped; the first
// occurrence of an id wins. It returns the number of markers placed.
func (m *Manager) Rebuild(records []leads.Record) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearLocked()
	var noCoords, dupes int
	for _, r := range records {
		lat, lng, ok := r.Position()
		if !ok || r.ID == "" {
			noCoords++
			continue
		}
		if _, seen := m.byID[r.ID]; seen {
			dupes++
			continue
		}
		mk := &Marker{
			ID:       r.ID,
			Lat:      lat,
			Lng:      lng,
			Priority: r.Priority,
			Layer:    LayerFor(r.Priority),
			Style:    StyleFor(r.Priority),
			Popup:    newPopup(r),
			Lead:     r,
		}
		l := m.layers[mk.Layer]
		l.markers = append(l.markers, mk)
		m.byID[r.ID] = mk
	}

	if noCoords > 0 || dupes > 0 {
		m.log.Debug("skipped records", zap.Int("no_coordinates", noCoords), zap.Int("duplicate_ids", dupes))
	}
	m.log.Debug("markers rebuilt",
		zap.Int("high", m.layers[LayerHigh].Len()),
		zap.Int("medium", m.layers[LayerMedium].Len()),
		zap.Int("low", m.layers[LayerLow].Len()))
	return len(m.byID)
}

func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

func (m *Manager) clearLocked() {
	for _, l := range m.layers {
		l.markers = nil
	}
	clear(m.byID)
}

// Count is the number of markers across all layers, hidden ones included.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// Layer returns a copy of the markers in the named layer.
func (m *Manager) Layer(name LayerName) ([]*Marker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.layers[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(l.markers), true
}

// Markers returns every marker in draw order.
func (m *Manager) Markers() []*Marker {
	return m.collect(false)
}

// VisibleMarkers returns the markers of visible layers in draw order.
func (m *Manager) VisibleMarkers() []*Marker {
	return m.collect(true)
}

func (m *Manager) collect(visibleOnly bool) []*Marker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Marker, 0, len(m.byID))
	for _, name := range DrawOrder {
		l := m.layers[name]
		if visibleOnly && !l.visible {
			continue
		}
		out = append(out, l.markers...)
	}
	return out
}

// SetVisible toggles a layer. It reports false for an unknown layer name.
func (m *Manager) SetVisible(name LayerName, visible bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.layers[name]
	if !ok {
		return false
	}
	l.visible = visible
	return true
}

func (m *Manager) Visible(name LayerName) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.layers[name]
	return ok && l.visible
}

func (m *Manager) Find(id leads.ID) (*Marker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mk, ok := m.byID[id]
	return mk, ok
}

// Bounds returns the box around the markers accepted by keep, or all
// markers when keep is nil.
func (m *Manager) Bounds(keep func(*Marker) bool) Bounds {
	var b Bounds
	for _, mk := range m.Markers() {
		if keep == nil || keep(mk) {
			b = b.Extend(mk.Lat, mk.Lng)
		}
	}
	return b
}
