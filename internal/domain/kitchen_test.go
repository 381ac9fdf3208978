package domain

import (
	"testing"
	"time"
)

func TestUnitAdvanceStampsTimestamps(t *testing.T) {
	now := time.Now()
	u := &PreparationUnit{State: UnitPending}

	if err := u.Advance(UnitInProgress, "", now); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if u.StartedAt == nil || !u.StartedAt.Equal(now) {
		t.Fatal("StartedAt not stamped on first IN_PROGRESS")
	}

	// Re-entering IN_PROGRESS keeps the original start time.
	later := now.Add(time.Minute)
	if err := u.Advance(UnitInProgress, "", later); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if !u.StartedAt.Equal(now) {
		t.Error("StartedAt overwritten on repeated IN_PROGRESS")
	}

	if err := u.Advance(UnitDone, "plated", later); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if u.CompletedAt == nil || !u.CompletedAt.Equal(later) {
		t.Error("CompletedAt not stamped on DONE")
	}
	if u.Notes != "plated" {
		t.Errorf("notes = %q, want plated", u.Notes)
	}
}

func TestUnitAdvanceRejectsUnknownState(t *testing.T) {
	u := &PreparationUnit{State: UnitPending}
	if err := u.Advance(UnitState("BURNT"), "", time.Now()); !IsBadRequest(err) {
		t.Fatalf("got %v, want bad request", err)
	}
}

func TestMetricsRecalculate(t *testing.T) {
	start := time.Now()
	onTime := start.Add(25 * time.Minute)
	late := start.Add(40 * time.Minute)

	m := &PreparationMetrics{TargetMinutes: 30, KitchenStartedAt: &start, KitchenCompletedAt: &onTime}
	m.Recalculate()
	if m.ActualMinutes == nil || *m.ActualMinutes != 25 {
		t.Fatalf("actual minutes = %v, want 25", m.ActualMinutes)
	}
	if !m.OnTime || m.DelayMinutes != 0 {
		t.Errorf("on time = %v, delay = %d; want true, 0", m.OnTime, m.DelayMinutes)
	}

	m.KitchenCompletedAt = &late
	m.Recalculate()
	if m.OnTime || m.DelayMinutes != 10 {
		t.Errorf("on time = %v, delay = %d; want false, 10", m.OnTime, m.DelayMinutes)
	}
}

func TestMetricsRecalculateWithoutCompletion(t *testing.T) {
	start := time.Now()
	m := &PreparationMetrics{TargetMinutes: 30, KitchenStartedAt: &start}
	m.Recalculate()
	if m.ActualMinutes != nil {
		t.Error("actual minutes should stay nil until completion")
	}
	if !m.OnTime {
		t.Error("incomplete order should not count as delayed")
	}
}
