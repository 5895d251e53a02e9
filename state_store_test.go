package main

import (
	"testing"
	"time"
)

func TestDuckDBStateStore(t *testing.T) {
	cleanupMonitorState(t)

	store := NewDuckDBStateStore(db)

	t.Run("get returns nil for unknown monitor", func(t *testing.T) {
		state, err := store.Get(t.Context(), "never-checked")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if state != nil {
			t.Errorf("expected nil state, got %+v", state)
		}
	})

	t.Run("upsert inserts and updates", func(t *testing.T) {
		changeAt := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
		checkedAt := changeAt

		err := store.Upsert(t.Context(), MonitorState{
			MonitorID:           "mon-a",
			Status:              StatusUp,
			ConsecutiveFailures: 0,
			LastChangeAt:        changeAt,
			LastCheckedAt:       checkedAt,
		})
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		state, err := store.Get(t.Context(), "mon-a")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if state == nil {
			t.Fatal("expected state after insert")
		}
		if state.Status != StatusUp || state.ConsecutiveFailures != 0 {
			t.Errorf("unexpected state: %+v", state)
		}
		if !state.LastChangeAt.Equal(changeAt) {
			t.Errorf("expected lastChangeAt %v, got %v", changeAt, state.LastChangeAt)
		}

		// Now flip to down, same row.
		checkedAt = checkedAt.Add(time.Minute)
		err = store.Upsert(t.Context(), MonitorState{
			MonitorID:           "mon-a",
			Status:              StatusDown,
			ConsecutiveFailures: 1,
			LastChangeAt:        checkedAt,
			LastCheckedAt:       checkedAt,
		})
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}

		state, err = store.Get(t.Context(), "mon-a")
		if err != nil {
			t.Fatalf("get after update failed: %v", err)
		}
		if state.Status != StatusDown || state.ConsecutiveFailures != 1 {
			t.Errorf("unexpected state after update: %+v", state)
		}
	})

	t.Run("monitors do not interfere", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Millisecond)
		for _, id := range []string{"mon-b", "mon-c"} {
			if err := store.Upsert(t.Context(), MonitorState{
				MonitorID:     id,
				Status:        StatusPending,
				LastChangeAt:  now,
				LastCheckedAt: now,
			}); err != nil {
				t.Fatalf("upsert %s failed: %v", id, err)
			}
		}

		state, err := store.Get(t.Context(), "mon-b")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if state.MonitorID != "mon-b" {
			t.Errorf("expected mon-b row, got %q", state.MonitorID)
		}
	})
}
