package markers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwc-systems/lead-map/pkg/leads"
)

func ptr(f float64) *float64 { return &f }

func rec(id string, lat, lng float64, p leads.Priority) leads.Record {
	return leads.Record{
		ID:          leads.ID(id),
		Coordinates: &leads.Coordinates{Lat: ptr(lat), Lng: ptr(lng)},
		Priority:    p,
	}
}

func markerIDs(ms []*Marker) []leads.ID {
	out := make([]leads.ID, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}

func TestRebuildIsIdempotent(t *testing.T) {
	records := []leads.Record{
		rec("a", 40.71, -74.0, leads.PriorityHigh),
		rec("b", 34.05, -118.24, leads.PriorityMedium),
		rec("c", 41.87, -87.62, leads.PriorityLow),
	}
	m := NewManager()
	first := m.Rebuild(records)
	firstIDs := markerIDs(m.Markers())

	second := m.Rebuild(records)
	assert.Equal(t, 3, first)
	assert.Equal(t, first, second)
	assert.Equal(t, firstIDs, markerIDs(m.Markers()))
	assert.Equal(t, 3, m.Count())
}

func TestRebuildLeavesNoOrphans(t *testing.T) {
	m := NewManager()
	m.Rebuild([]leads.Record{
		rec("a", 1, 1, leads.PriorityHigh),
		rec("b", 2, 2, leads.PriorityLow),
	})
	m.Rebuild([]leads.Record{rec("c", 3, 3, leads.PriorityHigh)})

	assert.Equal(t, []leads.ID{"c"}, markerIDs(m.Markers()))
	_, found := m.Find("a")
	assert.False(t, found, "pruned lead must not keep its marker")
	low, _ := m.Layer(LayerLow)
	assert.Empty(t, low)
}

func TestPriorityPartition(t *testing.T) {
	m := NewManager()
	n := m.Rebuild([]leads.Record{
		rec("h", 1, 1, leads.PriorityHigh),
		rec("m", 2, 2, leads.PriorityMedium),
		rec("l", 3, 3, leads.PriorityLow),
		rec("u", 4, 4, "URGENT"),
		rec("e", 5, 5, ""),
		rec("lower", 6, 6, "high"),
	})
	require.Equal(t, 6, n)

	tests := []struct {
		layer LayerName
		want  []leads.ID
	}{
		{LayerHigh, []leads.ID{"h"}},
		{LayerMedium, []leads.ID{"m", "u", "e", "lower"}},
		{LayerLow, []leads.ID{"l"}},
	}
	total := 0
	for _, tt := range tests {
		got, ok := m.Layer(tt.layer)
		require.True(t, ok)
		assert.Equal(t, tt.want, markerIDs(got), "layer %s", tt.layer)
		for _, mk := range got {
			assert.Equal(t, tt.layer, mk.Layer)
		}
		total += len(got)
	}
	assert.Equal(t, n, total, "every marker belongs to exactly one layer")
}

func TestRebuildSkipsUnplaceableAndDuplicates(t *testing.T) {
	m := NewManager()
	n := m.Rebuild([]leads.Record{
		rec("a", 40.71, -74.0, leads.PriorityHigh),
		{ID: "no-coords", Priority: leads.PriorityHigh},
		{ID: "half", Coordinates: &leads.Coordinates{Lat: ptr(10)}},
		rec("a", 0, 0, leads.PriorityLow),
		rec("", 1, 1, leads.PriorityLow),
		rec("zero", 0, 0, leads.PriorityLow),
	})
	assert.Equal(t, 2, n)

	mk, ok := m.Find("a")
	require.True(t, ok)
	assert.Equal(t, 40.71, mk.Lat, "first occurrence of a duplicate id wins")
	_, ok = m.Find("zero")
	assert.True(t, ok, "0,0 is a real coordinate")
}

func TestMarkerStyle(t *testing.T) {
	m := NewManager()
	m.Rebuild([]leads.Record{
		rec("h", 1, 1, leads.PriorityHigh),
		rec("l", 2, 2, leads.PriorityLow),
		rec("x", 3, 3, "URGENT"),
	})

	h, _ := m.Find("h")
	assert.Equal(t, HighRadius, h.Style.Radius)
	assert.Equal(t, HighColor, Hex(h.Style.Fill))

	for _, id := range []leads.ID{"l", "x"} {
		mk, _ := m.Find(id)
		assert.Equal(t, DefaultRadius, mk.Style.Radius)
		assert.Equal(t, DefaultColor, Hex(mk.Style.Fill))
	}
}

func TestDrawOrderAndVisibility(t *testing.T) {
	m := NewManager()
	m.Rebuild([]leads.Record{
		rec("h", 1, 1, leads.PriorityHigh),
		rec("m", 2, 2, leads.PriorityMedium),
		rec("l", 3, 3, leads.PriorityLow),
	})
	assert.Equal(t, []leads.ID{"l", "m", "h"}, markerIDs(m.Markers()))

	require.True(t, m.SetVisible(LayerLow, false))
	assert.False(t, m.Visible(LayerLow))
	assert.Equal(t, []leads.ID{"m", "h"}, markerIDs(m.VisibleMarkers()))
	assert.Equal(t, 3, m.Count(), "hidden layers keep their markers")

	assert.False(t, m.SetVisible("nope", false))
	_, ok := m.Layer("nope")
	assert.False(t, ok)

	// Visibility survives a rebuild.
	m.Rebuild([]leads.Record{rec("l2", 3, 3, leads.PriorityLow)})
	assert.Empty(t, m.VisibleMarkers())
}

func TestScenario(t *testing.T) {
	m := NewManager()

	m.Rebuild([]leads.Record{rec("1", 40.71, -74.0, leads.PriorityHigh)})
	high, _ := m.Layer(LayerHigh)
	assert.Len(t, high, 1)

	assert.Equal(t, 0, m.Rebuild([]leads.Record{}))
	for _, name := range DrawOrder {
		got, _ := m.Layer(name)
		assert.Empty(t, got, "layer %s", name)
	}

	n := m.Rebuild([]leads.Record{
		rec("2", 34.05, -118.24, leads.PriorityMedium),
		{ID: "3", Priority: leads.PriorityLow},
	})
	assert.Equal(t, 1, n)
	assert.Len(t, m.Markers(), 1)
}

func TestClear(t *testing.T) {
	m := NewManager()
	m.Rebuild([]leads.Record{rec("a", 1, 1, leads.PriorityHigh)})
	m.Clear()
	assert.Equal(t, 0, m.Count())
	assert.Empty(t, m.Markers())
}

func TestBounds(t *testing.T) {
	m := NewManager()
	assert.True(t, m.Bounds(nil).Empty())

	m.Rebuild([]leads.Record{
		rec("a", 40.71, -74.0, leads.PriorityHigh),
		rec("b", 34.05, -118.24, leads.PriorityLow),
		rec("c", 25.76, -80.19, leads.PriorityHigh),
	})
	b := m.Bounds(nil)
	assert.Equal(t, NewBounds(25.76, -118.24, 40.71, -74.0), b)

	high := m.Bounds(func(mk *Marker) bool { return mk.Priority == leads.PriorityHigh })
	assert.Equal(t, -74.0, high.MaxLng)
	assert.Equal(t, -80.19, high.MinLng)

	single := NewBounds(10, 10, 10, 10).Pad(0.1)
	assert.InDelta(t, 9.5, single.MinLat, 1e-9)
	assert.InDelta(t, 10.5, single.MaxLng, 1e-9)
}
