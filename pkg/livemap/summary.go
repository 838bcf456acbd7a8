package livemap

import (
	"fmt"
	"math"
	"time"

	"github.com/dwc-systems/lead-map/pkg/leads"
)

// Summary is what the overlay panel shows about the current lead list.
type Summary struct {
	Leads         int       `json:"leads"`
	Placed        int       `json:"placed"`
	High          int       `json:"high_priority"`
	PipelineValue float64   `json:"pipeline_value"`
	AverageQNIS   float64   `json:"average_qnis"`
	ActiveCities  int       `json:"active_cities"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Summarize computes the panel figures. placed is the number of markers the
// list produced, which is lower than Leads when records lack coordinates.
func Summarize(records []leads.Record, placed int, at time.Time) Summary {
	s := Summary{Leads: len(records), Placed: placed, UpdatedAt: at}
	cities := make(map[string]struct{})
	var qnis float64
	for _, r := range records {
		if r.Priority == leads.PriorityHigh {
			s.High++
		}
		s.PipelineValue += r.ValueEstimate
		qnis += r.QNISScore
		if city := r.CityName(); city != "" {
			cities[city] = struct{}{}
		}
	}
	if len(records) > 0 {
		s.AverageQNIS = qnis / float64(len(records))
	}
	s.ActiveCities = len(cities)
	return s
}

// PipelineK is the pipeline value in whole thousands of dollars.
func (s Summary) PipelineK() int64 {
	return int64(math.Round(s.PipelineValue / 1000))
}

func (s Summary) Lines(title string) []string {
	noun := "leads"
	if s.Leads == 1 {
		noun = "lead"
	}
	lines := make([]string, 0, 7)
	if title != "" {
		lines = append(lines, title)
	}
	lines = append(lines,
		fmt.Sprintf("%d %s", s.Leads, noun),
		fmt.Sprintf("High priority: %d", s.High),
		fmt.Sprintf("Pipeline: $%dK", s.PipelineK()),
		fmt.Sprintf("Avg QNIS: %.1f", s.AverageQNIS),
		fmt.Sprintf("Active cities: %d", s.ActiveCities),
	)
	if !s.UpdatedAt.IsZero() {
		lines = append(lines, "Updated: "+s.UpdatedAt.Format("15:04:05"))
	}
	return lines
}
