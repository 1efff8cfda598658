package pathsync

import (
	"context"
	"testing"
)

func TestSessionManager_CleanClose(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := testKey()

	mgr := NewSessionManager(store, Codec{}, nil, key)
	if _, err := mgr.Begin(ctx); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := mgr.CloseClean(ctx); err != nil {
		t.Fatalf("CloseClean: %v", err)
	}

	// A fresh manager over the same store sees no interruption.
	next := NewSessionManager(store, Codec{}, nil, key)
	record, err := next.DetectInterrupted(ctx)
	if err != nil {
		t.Fatalf("DetectInterrupted: %v", err)
	}
	if record != nil {
		t.Errorf("expected no interruption after clean close, got %+v", record)
	}
}

func TestSessionManager_DetectsInterruption(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := testKey()

	mgr := NewSessionManager(store, Codec{}, nil, key)
	started, err := mgr.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	progress := NewActivityProgress(key)
	progress.Status = StatusInProgress
	progress.Attempts = 2
	progress.TimeSpent = 40
	if err := mgr.Touch(ctx, progress); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if err := mgr.Touch(ctx, progress); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	// Process "crashes": no CloseClean. The next run detects it.
	next := NewSessionManager(store, Codec{}, nil, key)
	record, err := next.DetectInterrupted(ctx)
	if err != nil {
		t.Fatalf("DetectInterrupted: %v", err)
	}
	if record == nil {
		t.Fatal("expected interrupted session")
	}
	if record.SessionID != started.SessionID {
		t.Errorf("expected session %s, got %s", started.SessionID, record.SessionID)
	}
	if record.Progress == nil || record.Progress.Attempts != 2 {
		t.Errorf("expected checkpointed progress, got %+v", record.Progress)
	}
	if record.ActivityCount != 2 {
		t.Errorf("expected 2 checkpoints counted, got %d", record.ActivityCount)
	}
	if record.TotalTimeSpent != 40 {
		t.Errorf("expected cumulative time carried, got %d", record.TotalTimeSpent)
	}
	if record.InterruptedAt == nil {
		t.Fatal("expected interruption time stamped")
	}

	// The stamp is persisted with the record and survives re-detection.
	again, err := next.DetectInterrupted(ctx)
	if err != nil {
		t.Fatalf("DetectInterrupted: %v", err)
	}
	if again.InterruptedAt == nil || !again.InterruptedAt.Equal(*record.InterruptedAt) {
		t.Errorf("interruption stamp not durable: %v vs %v", again.InterruptedAt, record.InterruptedAt)
	}
}

func TestSessionManager_AdoptContinuesSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := testKey()

	mgr := NewSessionManager(store, Codec{}, nil, key)
	mgr.Begin(ctx)
	mgr.Touch(ctx, NewActivityProgress(key))

	next := NewSessionManager(store, Codec{}, nil, key)
	record, _ := next.DetectInterrupted(ctx)
	if err := next.Adopt(ctx, record); err != nil {
		t.Fatalf("Adopt: %v", err)
	}
	if next.Current() == nil || next.Current().SessionID != record.SessionID {
		t.Errorf("expected adopted session to be current")
	}

	// Checkpoints keep flowing into the adopted record.
	progress := NewActivityProgress(key)
	progress.Attempts = 5
	if err := next.Touch(ctx, progress); err != nil {
		t.Fatalf("Touch after adopt: %v", err)
	}
}

func TestSessionManager_Clear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := testKey()

	mgr := NewSessionManager(store, Codec{}, nil, key)
	mgr.Begin(ctx)

	if err := mgr.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	next := NewSessionManager(store, Codec{}, nil, key)
	record, err := next.DetectInterrupted(ctx)
	if err != nil {
		t.Fatalf("DetectInterrupted: %v", err)
	}
	if record != nil {
		t.Errorf("expected no interruption after clear")
	}
}

func TestSessionManager_TouchWithoutSession(t *testing.T) {
	mgr := NewSessionManager(NewMemoryStore(), Codec{}, nil, testKey())
	if err := mgr.Touch(context.Background(), NewActivityProgress(testKey())); err != nil {
		t.Errorf("Touch without session should be a no-op, got %v", err)
	}
}
