package state

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/smarteating/tray/internal/cafeteria"
)

func sampleMeal(id int64) *cafeteria.MealSnapshot {
	return &cafeteria.MealSnapshot{
		ID:          id,
		TotalWeight: 200,
		FoodMeasurements: []cafeteria.FoodMeasurement{
			{ID: 1, Weight: 150, Food: cafeteria.Food{Name: "Arroz"}},
			{ID: 2, Weight: 50, Food: cafeteria.Food{Name: "Feijão"}},
		},
	}
}

func notFound() error {
	return &cafeteria.Error{Op: "GET /auth/meals/current", Kind: cafeteria.KindNotFound, Status: 404}
}

func TestStore_ZeroValueStartsIdleAndArmed(t *testing.T) {
	var s Store
	snap := s.Snapshot()
	if snap.Phase != PhaseIdle {
		t.Fatalf("Phase = %v, want idle", snap.Phase)
	}
	if !snap.Polling {
		t.Fatalf("Polling = false, want true")
	}
	if snap.Processed.ChartSlices == nil || len(snap.Processed.ChartSlices) != 0 {
		t.Fatalf("Processed = %+v, want empty meal", snap.Processed)
	}
}

func TestStore_ApplySuccessAndSnapshotClone(t *testing.T) {
	var s Store

	seq := s.Refetch()
	if !s.Snapshot().IsLoading() {
		t.Fatalf("Refetch should move to loading")
	}

	before := time.Now()
	if !s.Apply(seq, sampleMeal(7), nil) {
		t.Fatalf("Apply returned false, want true")
	}

	snap := s.Snapshot()
	if snap.Phase != PhaseActive || snap.Meal == nil || snap.Meal.ID != 7 {
		t.Fatalf("snapshot = %+v, want active meal 7", snap)
	}
	if len(snap.Processed.ChartSlices) != 2 || snap.Processed.ChartSlices[0].Percentage != 75 {
		t.Fatalf("processed slices = %+v, want 75/25", snap.Processed.ChartSlices)
	}
	if snap.LastUpdated.Before(before) {
		t.Fatalf("LastUpdated = %v, want >= %v", snap.LastUpdated, before)
	}

	snap.Meal.FoodMeasurements[0].Weight = 999
	snap.Processed.ChartSlices[0].Percentage = 1
	again := s.Snapshot()
	if again.Meal.FoodMeasurements[0].Weight != 150 || again.Processed.ChartSlices[0].Percentage != 75 {
		t.Fatalf("Snapshot should clone meal data")
	}
}

func TestStore_NotFoundDisarmsPolling(t *testing.T) {
	var s Store
	s.Apply(s.Next(), sampleMeal(1), nil)
	s.Apply(s.Next(), nil, notFound())

	snap := s.Snapshot()
	if snap.Phase != PhaseNoMeal {
		t.Fatalf("Phase = %v, want no_meal", snap.Phase)
	}
	if snap.Polling {
		t.Fatalf("Polling = true, want false after 404")
	}
	if snap.Meal != nil || snap.Error != "" {
		t.Fatalf("snapshot = %+v, want no meal and no error", snap)
	}

	s.Refetch()
	if snap := s.Snapshot(); !snap.Polling || snap.Phase != PhaseLoading {
		t.Fatalf("Refetch should re-arm polling, got %+v", snap)
	}
}

func TestStore_OtherErrorsKeepPolling(t *testing.T) {
	var s Store
	s.Apply(s.Next(), sampleMeal(1), nil)
	s.Apply(s.Next(), nil, errors.New("connection refused"))

	snap := s.Snapshot()
	if snap.Phase != PhaseError || snap.Error != LoadErrorMessage {
		t.Fatalf("snapshot = %+v, want error phase with load message", snap)
	}
	if !snap.Polling {
		t.Fatalf("Polling = false, want true after transient error")
	}
	if snap.Meal != nil || len(snap.Processed.ChartSlices) != 0 {
		t.Fatalf("meal should be cleared on error, got %+v", snap.Meal)
	}
}

func TestStore_DropsStaleResponses(t *testing.T) {
	var s Store
	slow := s.Next()
	fast := s.Next()

	if !s.Apply(fast, sampleMeal(2), nil) {
		t.Fatalf("newer response rejected")
	}
	if s.Apply(slow, sampleMeal(1), nil) {
		t.Fatalf("older response applied over newer one")
	}
	if got := s.Snapshot().Meal.ID; got != 2 {
		t.Fatalf("Meal.ID = %d, want 2", got)
	}
	if got := s.Snapshot().Seq; got != fast {
		t.Fatalf("Seq = %d, want %d", got, fast)
	}
}

func TestStore_IgnoresCancelled(t *testing.T) {
	var s Store
	s.Apply(s.Next(), sampleMeal(3), nil)
	cancelled := &cafeteria.Error{Kind: cafeteria.KindCancelled, Err: context.Canceled}
	if s.Apply(s.Next(), nil, cancelled) {
		t.Fatalf("cancelled response applied")
	}
	if s.Snapshot().Phase != PhaseActive {
		t.Fatalf("cancelled response changed phase")
	}
}

func TestStore_ResetInvalidatesInFlight(t *testing.T) {
	var s Store
	inflight := s.Next()
	s.Reset()

	if s.Apply(inflight, sampleMeal(4), nil) {
		t.Fatalf("response issued before Reset was applied")
	}
	snap := s.Snapshot()
	if snap.Phase != PhaseIdle || snap.Polling || snap.Meal != nil {
		t.Fatalf("snapshot after reset = %+v, want idle and disarmed", snap)
	}
}

func TestStore_ConsecutiveFailures(t *testing.T) {
	var s Store

	for i := 1; i <= 3; i++ {
		s.Apply(s.Next(), nil, fmt.Errorf("fail %d", i))
		snap := s.Snapshot()
		if snap.ConsecutiveFailures != i {
			t.Fatalf("ConsecutiveFailures = %d, want %d", snap.ConsecutiveFailures, i)
		}
		if snap.IsOffline() != (i >= 2) {
			t.Fatalf("IsOffline() = %v with %d failures", snap.IsOffline(), i)
		}
	}

	s.Apply(s.Next(), sampleMeal(1), nil)
	if snap := s.Snapshot(); snap.ConsecutiveFailures != 0 || snap.IsOffline() {
		t.Fatalf("success should reset failures, got %d", snap.ConsecutiveFailures)
	}
}

func TestStore_WatchNotifies(t *testing.T) {
	var s Store
	ch := s.Watch()

	s.Apply(s.Next(), sampleMeal(1), nil)
	s.Apply(s.Next(), sampleMeal(2), nil)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("no notification after Apply")
	}
	select {
	case <-ch:
		t.Fatalf("notifications should coalesce while unread")
	default:
	}
}
