package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/dwc-systems/lead-map/pkg/leads"
)

type Churn struct {
	Added   int
	Removed int
}

type Stats struct {
	mu        sync.Mutex
	Polls     int
	Failures  int
	Malformed int
	Changes   int
	Current   []leads.Record
	ByID      map[leads.ID]int
	Churn     Churn
	LastErr   error
	LastPoll  time.Time
	StartTime time.Time
}

func NewStats(start time.Time) *Stats {
	return &Stats{ByID: make(map[leads.ID]int), StartTime: start}
}

// Record folds one poll result into the stats.
func (s *Stats) Record(records []leads.Record, err error, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Polls++
	s.LastPoll = at
	if err == nil {
		err = leads.CheckBatch(records)
	}
	if err != nil {
		s.Failures++
		if errors.Is(err, leads.ErrMalformed) {
			s.Malformed++
		}
		s.LastErr = err
		return
	}
	s.LastErr = nil

	next := make(map[leads.ID]int, len(records))
	for _, r := range records {
		next[r.ID]++
		if _, ok := s.ByID[r.ID]; !ok && s.Current != nil {
			s.Churn.Added++
		}
	}
	for id := range s.ByID {
		if _, ok := next[id]; !ok {
			s.Churn.Removed++
		}
	}
	if s.Current == nil || leads.Changed(s.Current, records) {
		s.Changes++
	}
	s.Current = records
	s.ByID = next
}

func (s *Stats) Report(w io.Writer, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := now.Sub(s.StartTime).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}

	fmt.Fprintf(w, "\033[H\033[2J") // Clear screen
	fmt.Fprintf(w, "Lead Feed Monitor (Running for %.1fs)\n", elapsed)
	fmt.Fprintf(w, "--------------------------------------------------\n")
	fmt.Fprintf(w, "Polls:         %d\n", s.Polls)
	fmt.Fprintf(w, "Failures:      %d (%.1f%%)\n", s.Failures, s.failureRate()*100)
	fmt.Fprintf(w, "Malformed:     %d\n", s.Malformed)
	fmt.Fprintf(w, "List Changes:  %d\n", s.Changes)
	fmt.Fprintf(w, "Leads:         %d (%d placeable)\n", len(s.Current), s.placeable())
	fmt.Fprintf(w, "--------------------------------------------------\n")

	fmt.Fprintf(w, "BY PRIORITY:\n")
	counts := s.priorities()
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		fmt.Fprintf(w, "  %-8s %d\n", k, counts[k])
	}
	fmt.Fprintf(w, "--------------------------------------------------\n")

	fmt.Fprintf(w, "ID CHURN:\n")
	fmt.Fprintf(w, "  Added:   %d\n", s.Churn.Added)
	fmt.Fprintf(w, "  Removed: %d\n", s.Churn.Removed)
	fmt.Fprintf(w, "--------------------------------------------------\n")

	fmt.Fprintf(w, "LIKELY CONCLUSIONS:\n")
	conclusions := s.analyze()
	if len(conclusions) == 0 {
		fmt.Fprintf(w, "  - Feed appears healthy\n")
	} else {
		for _, c := range conclusions {
			fmt.Fprintf(w, "  - %s\n", c)
		}
	}
	if s.LastErr != nil {
		fmt.Fprintf(w, "Last error: %v\n", s.LastErr)
	}
}

func (s *Stats) failureRate() float64 {
	if s.Polls == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Polls)
}

func (s *Stats) placeable() int {
	n := 0
	for _, r := range s.Current {
		if r.Placeable() {
			n++
		}
	}
	return n
}

func (s *Stats) priorities() map[string]int {
	counts := make(map[string]int)
	for _, r := range s.Current {
		p := string(r.Priority)
		if !r.Priority.Known() {
			p = "other"
		}
		counts[p]++
	}
	return counts
}

func (s *Stats) analyze() []string {
	var results []string

	if s.Polls >= 3 && s.failureRate() > 0.5 {
		results = append(results, "Endpoint unreliable (most polls fail; the map is running on stale data)")
	}
	if s.Malformed > 0 {
		results = append(results, "Malformed payloads (check the API for HTML error pages or schema changes)")
	}
	if n := len(s.Current); n > 0 && s.placeable() < n/2 {
		results = append(results, "Geocoding gaps (over half the leads have no usable coordinates)")
	}
	if len(s.ByID) < len(s.Current) {
		results = append(results, "Duplicate ids (only the first of each is drawn)")
	}
	if s.Polls >= 5 && s.Changes == s.Polls-s.Failures {
		results = append(results, "Constant churn (the list changes on every poll)")
	}
	if s.Current != nil && len(s.Current) == 0 {
		results = append(results, "Empty pipeline (the API returned no leads)")
	}
	return results
}
