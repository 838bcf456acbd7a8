package markers

import (
	"image/color"
	"strings"
	"testing"

	"github.com/dwc-systems/lead-map/pkg/leads"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#ff4444", color.RGBA{255, 68, 68, 255}, false},
		{"00ff88", color.RGBA{0, 255, 136, 255}, false},
		{"#fff", color.RGBA{255, 255, 255, 255}, false},
		{"#12", color.RGBA{}, true},
		{"#gggggg", color.RGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseHex(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHex(%q) error = %v; wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHex(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestPopup(t *testing.T) {
	r := leads.Record{
		ID: "7",
		Coordinates: &leads.Coordinates{
			Lat: ptr(52.52), Lng: ptr(13.40),
			City: "Berlin", Country: "DE",
		},
		Priority:      leads.PriorityHigh,
		QNISScore:     87,
		ValueEstimate: 1250000,
		CompanyName:   "Nordwind GmbH",
		Industry:      "Logistics",
	}
	p := newPopup(r)
	if p.Title != "Nordwind GmbH" {
		t.Errorf("Expected company title, got %q", p.Title)
	}
	body := p.String()
	for _, want := range []string{"Berlin, Germany", "QNIS Score: 87", "Value: $1,250,000", "Priority: HIGH", "Industry: Logistics"} {
		if !strings.Contains(body, want) {
			t.Errorf("Popup missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "Type:") {
		t.Errorf("Empty type must be omitted:\n%s", body)
	}

	cityOnly := newPopup(leads.Record{ID: "8", City: "Austin"})
	if cityOnly.Title != "Austin" {
		t.Errorf("Expected city title fallback, got %q", cityOnly.Title)
	}
	bare := newPopup(leads.Record{ID: "9"})
	if bare.Title != "Lead 9" {
		t.Errorf("Expected id title fallback, got %q", bare.Title)
	}
}

func TestCountryName(t *testing.T) {
	if got := CountryName("DE"); got != "Germany" {
		t.Errorf("CountryName(DE) = %q; want Germany", got)
	}
	if got := CountryName("Atlantis"); got != "Atlantis" {
		t.Errorf("Unknown country must pass through, got %q", got)
	}
}

func TestFormatThousands(t *testing.T) {
	tests := map[float64]string{
		0:         "0",
		999:       "999",
		1000:      "1,000",
		125000:    "125,000",
		1234567.6: "1,234,568",
		-45000:    "-45,000",
	}
	for in, want := range tests {
		if got := formatThousands(in); got != want {
			t.Errorf("formatThousands(%v) = %q; want %q", in, got, want)
		}
	}
}
