package markers

import (
	"fmt"
	"math"
	"strings"

	"github.com/biter777/countries"
	"github.com/dustin/go-humanize"

	"github.com/dwc-systems/lead-map/pkg/leads"
)

// Popup is the detail card shown for a marker.
type Popup struct {
	Title string
	Lines []string
}

func (p Popup) String() string {
	if len(p.Lines) == 0 {
		return p.Title
	}
	return p.Title + "\n" + strings.Join(p.Lines, "\n")
}

func newPopup(r leads.Record) Popup {
	title := r.CompanyName
	if title == "" {
		title = r.CityName()
	}
	if title == "" {
		title = "Lead " + string(r.ID)
	}

	var lines []string
	if loc := location(r); loc != "" {
		lines = append(lines, loc)
	}
	lines = append(lines,
		fmt.Sprintf("QNIS Score: %s", formatScore(r.QNISScore)),
		fmt.Sprintf("Value: $%s", formatThousands(r.ValueEstimate)),
		fmt.Sprintf("Priority: %s", priorityLabel(r.Priority)),
	)
	if r.Type != "" {
		lines = append(lines, "Type: "+r.Type)
	}
	if r.Industry != "" {
		lines = append(lines, "Industry: "+r.Industry)
	}
	return Popup{Title: title, Lines: lines}
}

func location(r leads.Record) string {
	var parts []string
	if city := r.CityName(); city != "" {
		parts = append(parts, city)
	}
	if r.Coordinates != nil {
		if r.Coordinates.State != "" {
			parts = append(parts, r.Coordinates.State)
		}
		if r.Coordinates.Country != "" {
			parts = append(parts, CountryName(r.Coordinates.Country))
		}
	}
	return strings.Join(parts, ", ")
}

// CountryName resolves an ISO code or name to a display name, leaving
// unrecognized values as given.
func CountryName(code string) string {
	name := countries.ByName(code).String()
	if name == "Unknown" || name == "" {
		return code
	}
	if idx := strings.Index(name, " ("); idx != -1 {
		name = name[:idx]
	}
	return name
}

func priorityLabel(p leads.Priority) string {
	if p == "" {
		return "UNSET"
	}
	return string(p)
}

func formatScore(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

// formatThousands renders a whole-dollar amount with comma separators.
func formatThousands(v float64) string {
	return humanize.Comma(int64(math.Round(v)))
}
