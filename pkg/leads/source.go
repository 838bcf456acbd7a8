package leads

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval matches the server's own lead generation cadence; polling
// faster only re-reads identical data.
const DefaultInterval = 15 * time.Second

// PollState is the source's private view of the last good fetch.
type PollState struct {
	Leads               []Record
	FetchedAt           time.Time
	ConsecutiveFailures int
	// Fetched is false until the first accepted list (fetched or restored).
	Fetched bool
}

// Source polls a Fetcher and reports meaningful changes to a single listener.
// Fetch failures never reach the listener: the previous list is kept and the
// next tick is the retry.
type Source struct {
	fetcher  Fetcher
	log      *zap.Logger
	snapshot SnapshotStore
	now      func() time.Time

	mu       sync.Mutex
	state    PollState
	onChange func([]Record)

	inFlight atomic.Bool
	stopped  atomic.Bool

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type SourceOption func(*Source)

func WithLogger(log *zap.Logger) SourceOption {
	return func(s *Source) { s.log = log.Named("source") }
}

// WithSnapshot restores the last good list on Start and saves every accepted list.
func WithSnapshot(store SnapshotStore) SourceOption {
	return func(s *Source) { s.snapshot = store }
}

func WithClock(now func() time.Time) SourceOption {
	return func(s *Source) { s.now = now }
}

func NewSource(fetcher Fetcher, opts ...SourceOption) *Source {
	s := &Source{
		fetcher: fetcher,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers the change listener. It runs on the fetch goroutine and
// must not call Stop.
func (s *Source) OnChange(fn func([]Record)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Start fetches once immediately and then every interval until ctx is done or
// Stop is called. Starting a running or stopped source does nothing.
func (s *Source) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running || s.stopped.Load() {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.restore()
	s.log.Info("polling started", zap.Duration("interval", interval))
	s.tick(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop cancels polling and waits for an outstanding fetch to finish. A fetch
// that resolves after Stop is discarded. Safe to call repeatedly.
func (s *Source) Stop() {
	if s.stopped.Swap(true) {
		return
	}
	s.runMu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.running = false
	s.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.log.Info("polling stopped")
}

// tick starts an asynchronous fetch unless one is already outstanding.
func (s *Source) tick(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.Debug("previous fetch still in flight, skipping tick")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)
		s.fetch(ctx)
	}()
}

// FetchOnce fetches synchronously and returns the current list: the new one
// on success, the previous known-good one on failure. When another fetch is
// outstanding it returns the current list without issuing a request.
func (s *Source) FetchOnce(ctx context.Context) []Record {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.Debug("fetch already in flight")
		return s.Leads()
	}
	defer s.inFlight.Store(false)
	return s.fetch(ctx)
}

func (s *Source) fetch(ctx context.Context) []Record {
	records, err := s.fetcher.Fetch(ctx)
	if err == nil {
		err = CheckBatch(records)
	}
	if s.stopped.Load() {
		s.log.Debug("discarding fetch result after stop")
		return s.Leads()
	}

	s.mu.Lock()
	if err != nil {
		s.state.ConsecutiveFailures++
		failures := s.state.ConsecutiveFailures
		prev := s.state.Leads
		s.mu.Unlock()
		s.log.Warn("lead fetch failed, keeping previous data",
			zap.Error(err),
			zap.Int("consecutive_failures", failures),
			zap.Int("leads", len(prev)))
		return slices.Clone(prev)
	}

	changed := !s.state.Fetched || Changed(s.state.Leads, records)
	s.state = PollState{Leads: records, FetchedAt: s.now(), Fetched: true}
	fetchedAt := s.state.FetchedAt
	listener := s.onChange
	s.mu.Unlock()

	if !changed {
		s.log.Debug("lead list unchanged", zap.Int("leads", len(records)))
		return slices.Clone(records)
	}
	s.log.Info("lead list changed", zap.Int("leads", len(records)))

	if s.snapshot != nil {
		if err := s.snapshot.Save(Snapshot{FetchedAt: fetchedAt, Leads: records}); err != nil {
			s.log.Warn("saving lead snapshot", zap.Error(err))
		}
	}
	if listener != nil && !s.stopped.Load() {
		listener(slices.Clone(records))
	}
	return slices.Clone(records)
}

// restore seeds the state from the snapshot store before the first fetch so
// the map is not empty while the API is unreachable.
func (s *Source) restore() {
	if s.snapshot == nil {
		return
	}
	snap, ok, err := s.snapshot.Load()
	if err != nil {
		s.log.Warn("loading lead snapshot", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	s.mu.Lock()
	if s.state.Fetched {
		s.mu.Unlock()
		return
	}
	s.state = PollState{Leads: snap.Leads, FetchedAt: snap.FetchedAt, Fetched: true}
	listener := s.onChange
	s.mu.Unlock()

	s.log.Info("restored lead snapshot", zap.Int("leads", len(snap.Leads)), zap.Time("fetched_at", snap.FetchedAt))
	if listener != nil {
		listener(slices.Clone(snap.Leads))
	}
}

// Leads returns a copy of the last known-good list.
func (s *Source) Leads() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.Leads)
}

// State returns a copy of the poll state.
func (s *Source) State() PollState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Leads = slices.Clone(st.Leads)
	return st
}

// InFlight reports whether a fetch is outstanding.
func (s *Source) InFlight() bool {
	return s.inFlight.Load()
}
