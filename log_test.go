package offline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestActionLogAppendAndLoad(t *testing.T) {
	ctx := context.Background()
	log := NewActionLog(newMemStore(), nil)

	log.Append(ctx, NewAction(KindJoin, "e1", "u1", nil))
	log.Append(ctx, NewAction(KindLeave, "e1", "u2", nil))

	actions := log.Load(ctx)
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].Kind != KindJoin || actions[1].Kind != KindLeave {
		t.Error("actions should load in enqueue order")
	}
}

func TestActionLogRejectsMalformed(t *testing.T) {
	ctx := context.Background()
	log := NewActionLog(newMemStore(), nil)

	log.Append(ctx, NewAction(KindJoin, "e1", "", nil))    // missing user id
	log.Append(ctx, NewAction(KindCreate, "", "", nil))    // missing payload
	log.Append(ctx, NewAction(KindUpdate, "", "", nil))    // missing event id
	log.Append(ctx, NewAction(Kind("bogus"), "", "", nil)) // unknown kind

	if n := log.Len(ctx); n != 0 {
		t.Errorf("malformed actions must never be persisted, got %d", n)
	}
}

func TestActionLogFailsSoftOnStorageErrors(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.loadErr = errors.New("disk exploded")
	store.saveErr = errors.New("disk exploded")
	log := NewActionLog(store, nil)

	// None of these may panic or surface the storage error.
	log.Append(ctx, NewAction(KindJoin, "e1", "u1", nil))
	if got := log.Load(ctx); len(got) != 0 {
		t.Errorf("expected empty log on load failure, got %d", len(got))
	}
	if n := log.Len(ctx); n != 0 {
		t.Errorf("expected zero length on load failure, got %d", n)
	}
}

func TestActionLogDropsFutureSchemaRecords(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	future := NewAction(KindJoin, "e1", "u1", nil)
	future.SchemaVersion = SchemaVersion + 5
	current := NewAction(KindJoin, "e1", "u2", nil)
	store.actions = []Action{future, current}

	log := NewActionLog(store, nil)
	actions := log.Load(ctx)
	if len(actions) != 1 || actions[0].UserID != "u2" {
		t.Errorf("expected only the current-schema record, got %+v", actions)
	}
}

func TestActionLogPrune(t *testing.T) {
	ctx := context.Background()
	log := NewActionLog(newMemStore(), nil)

	now := time.Now()

	fresh := NewAction(KindJoin, "e1", "u1", nil)
	stale := NewAction(KindJoin, "e1", "u2", nil)
	stale.EnqueuedAt = now.Add(-25 * time.Hour)
	failed := NewAction(KindJoin, "e1", "u3", nil)
	failed.Attempts = 2

	log.Append(ctx, fresh)
	log.Append(ctx, stale)
	log.Append(ctx, failed)

	if pruned := log.Prune(ctx, StaleBefore(now, 24*time.Hour)); pruned != 1 {
		t.Errorf("stale prune removed %d, want 1", pruned)
	}
	if pruned := log.Prune(ctx, AttemptsAtLeast(2)); pruned != 1 {
		t.Errorf("failed prune removed %d, want 1", pruned)
	}

	remaining := log.Load(ctx)
	if len(remaining) != 1 || remaining[0].UserID != "u1" {
		t.Errorf("expected only the fresh action to remain, got %+v", remaining)
	}
}

func TestActionLogReset(t *testing.T) {
	ctx := context.Background()
	log := NewActionLog(newMemStore(), nil)

	for i := 0; i < 5; i++ {
		log.Append(ctx, NewAction(KindDelete, "e1", "", nil))
	}
	log.Reset(ctx)

	if n := log.Len(ctx); n != 0 {
		t.Errorf("expected empty log after reset, got %d", n)
	}
}

func TestActionLogSaveIfFresh(t *testing.T) {
	ctx := context.Background()
	log := NewActionLog(newMemStore(), nil)

	gen := log.Generation()
	log.Append(ctx, NewAction(KindJoin, "e1", "u1", nil))

	// Appends do not invalidate the generation, only resets do.
	if !log.SaveIfFresh(ctx, []Action{NewAction(KindJoin, "e1", "u2", nil)}, gen) {
		t.Fatal("save against an unreset log must go through")
	}

	gen = log.Generation()
	log.Reset(ctx)
	if log.SaveIfFresh(ctx, []Action{NewAction(KindJoin, "e1", "u3", nil)}, gen) {
		t.Fatal("save with a stale generation must be refused")
	}
	if n := log.Len(ctx); n != 0 {
		t.Errorf("refused save must leave the log empty, got %d", n)
	}
}

func TestStaleScenarioTwentyFiveHours(t *testing.T) {
	ctx := context.Background()
	log := NewActionLog(newMemStore(), nil)

	a := NewAction(KindJoin, "e1", "u1", nil)
	a.EnqueuedAt = time.Now().Add(-25 * time.Hour)
	a.Attempts = 1 // attempt count is irrelevant to age pruning
	log.Append(ctx, a)

	if pruned := log.Prune(ctx, StaleBefore(time.Now(), 24*time.Hour)); pruned != 1 {
		t.Fatalf("expected the 25h-old action to be pruned, removed %d", pruned)
	}
}
