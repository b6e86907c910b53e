package state

import (
	"sync"
	"time"

	"github.com/smarteating/tray/internal/cafeteria"
	"github.com/smarteating/tray/internal/meal"
)

// LoadErrorMessage is shown when the current meal could not be fetched.
const LoadErrorMessage = "Erro ao carregar dados da refeição"

// Phase is where the current-meal state machine sits.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseActive
	PhaseNoMeal
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseActive:
		return "active"
	case PhaseNoMeal:
		return "no_meal"
	case PhaseError:
		return "error"
	default:
		return "idle"
	}
}

// Snapshot represents the latest meal data available to readers.
type Snapshot struct {
	Phase               Phase
	Meal                *cafeteria.MealSnapshot
	Processed           meal.ProcessedMeal
	Error               string // user-facing message, empty unless Phase is PhaseError
	LastError           error
	Polling             bool // interval polling armed
	LastUpdated         time.Time
	ConsecutiveFailures int
	Seq                 uint64 // sequence of the last applied response
}

// IsLoading reports whether a manual fetch is outstanding.
func (s Snapshot) IsLoading() bool {
	return s.Phase == PhaseLoading
}

// IsOffline returns true when the API has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store holds the single cached copy of the current meal. The poller is its
// only writer. Responses are tagged with a sequence number taken before the
// request is sent, and a response older than the last applied one is
// discarded so a slow poll cannot overwrite a newer result.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	issued   uint64
	init     bool
	watchers []chan struct{}
}

// Next reserves the sequence number for a new request.
func (s *Store) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureInit()
	s.issued++
	return s.issued
}

// Refetch moves the store to PhaseLoading, re-arms polling and reserves a
// sequence number for the forced request.
func (s *Store) Refetch() uint64 {
	s.mu.Lock()
	s.ensureInit()
	s.issued++
	seq := s.issued
	s.snapshot.Phase = PhaseLoading
	s.snapshot.Polling = true
	s.mu.Unlock()

	s.notify()
	return seq
}

// Apply records the outcome of request seq and reports whether it was used.
// Cancelled requests and responses older than the last applied one are
// dropped. A 404 clears the meal and disarms polling; any other error clears
// the meal, records LoadErrorMessage and keeps polling armed.
func (s *Store) Apply(seq uint64, snap *cafeteria.MealSnapshot, err error) bool {
	if err != nil && cafeteria.IsCancelled(err) {
		return false
	}

	s.mu.Lock()
	s.ensureInit()
	if seq <= s.snapshot.Seq {
		s.mu.Unlock()
		return false
	}
	s.snapshot.Seq = seq
	s.snapshot.LastUpdated = time.Now()

	switch {
	case err == nil:
		s.snapshot.Phase = PhaseActive
		s.snapshot.Meal = cloneMeal(snap)
		s.snapshot.Processed = meal.Process(snap)
		s.snapshot.Error = ""
		s.snapshot.LastError = nil
		s.snapshot.Polling = true
		s.snapshot.ConsecutiveFailures = 0
	case cafeteria.IsNotFound(err):
		s.snapshot.Phase = PhaseNoMeal
		s.snapshot.Meal = nil
		s.snapshot.Processed = meal.Process(nil)
		s.snapshot.Error = ""
		s.snapshot.LastError = nil
		s.snapshot.Polling = false
		s.snapshot.ConsecutiveFailures = 0
	default:
		s.snapshot.Phase = PhaseError
		s.snapshot.Meal = nil
		s.snapshot.Processed = meal.Process(nil)
		s.snapshot.Error = LoadErrorMessage
		s.snapshot.LastError = err
		s.snapshot.Polling = true
		s.snapshot.ConsecutiveFailures++
	}
	s.mu.Unlock()

	s.notify()
	return true
}

// Reset clears the meal, disarms polling and invalidates every request still
// in flight.
func (s *Store) Reset() {
	s.mu.Lock()
	s.ensureInit()
	s.snapshot = Snapshot{
		Phase:     PhaseIdle,
		Processed: meal.Process(nil),
		Seq:       s.issued,
	}
	s.mu.Unlock()

	s.notify()
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	s.ensureInit()
	snap := s.snapshot
	s.mu.Unlock()

	snap.Meal = cloneMeal(snap.Meal)
	snap.Processed = cloneProcessed(snap.Processed)
	return snap
}

// Watch returns a channel that receives a value after every change. Sends
// never block: a slow reader sees one pending notification and should read
// Snapshot again.
func (s *Store) Watch() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// ensureInit makes the zero Store start idle with polling armed and an empty
// processed meal. Callers hold mu.
func (s *Store) ensureInit() {
	if s.init {
		return
	}
	s.init = true
	s.snapshot.Polling = true
	s.snapshot.Processed = meal.Process(nil)
}

func cloneMeal(m *cafeteria.MealSnapshot) *cafeteria.MealSnapshot {
	if m == nil {
		return nil
	}
	dup := *m
	if m.FoodMeasurements != nil {
		dup.FoodMeasurements = make([]cafeteria.FoodMeasurement, len(m.FoodMeasurements))
		copy(dup.FoodMeasurements, m.FoodMeasurements)
	}
	return &dup
}

func cloneProcessed(p meal.ProcessedMeal) meal.ProcessedMeal {
	dup := p
	dup.FoodMeasurements = append([]cafeteria.FoodMeasurement{}, p.FoodMeasurements...)
	dup.ChartSlices = append([]meal.ChartSlice{}, p.ChartSlices...)
	return dup
}
