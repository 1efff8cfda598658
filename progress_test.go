package pathsync

import (
	"strings"
	"testing"
	"time"
)

func TestProgressKey_ID(t *testing.T) {
	key := ProgressKey{StudentID: "s1", PlanID: "p1", DayIndex: 3, Kind: ActivityWho}
	if got := key.ID(); got != "s1:p1:3:who" {
		t.Errorf("expected s1:p1:3:who, got %s", got)
	}

	// Same tuple always derives the same ID.
	same := ProgressKey{StudentID: "s1", PlanID: "p1", DayIndex: 3, Kind: ActivityWho}
	if same.ID() != key.ID() {
		t.Errorf("expected identical IDs for identical tuples")
	}
}

func TestProgressKey_Validate(t *testing.T) {
	valid := ProgressKey{StudentID: "s1", PlanID: "p1", DayIndex: 0, Kind: ActivityWhat}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cases := []struct {
		name string
		key  ProgressKey
	}{
		{"MissingStudent", ProgressKey{PlanID: "p1", Kind: ActivityWho}},
		{"MissingPlan", ProgressKey{StudentID: "s1", Kind: ActivityWho}},
		{"NegativeDay", ProgressKey{StudentID: "s1", PlanID: "p1", DayIndex: -1, Kind: ActivityWho}},
		{"UnknownKind", ProgressKey{StudentID: "s1", PlanID: "p1", Kind: "how"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.key.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestNewActivityProgress_Fresh(t *testing.T) {
	key := ProgressKey{StudentID: "s1", PlanID: "p1", DayIndex: 0, Kind: ActivityWhy}
	p := NewActivityProgress(key)

	if p.Status != StatusNotStarted {
		t.Errorf("expected not_started, got %s", p.Status)
	}
	if p.Attempts != 0 {
		t.Errorf("expected zero attempts, got %d", p.Attempts)
	}
	if len(p.Responses) != 0 {
		t.Errorf("expected empty responses, got %d", len(p.Responses))
	}
	if p.StartedAt != nil || p.CompletedAt != nil {
		t.Errorf("expected no timestamps on a fresh snapshot")
	}
	if p.ID != key.ID() {
		t.Errorf("expected ID %s, got %s", key.ID(), p.ID)
	}
}

func TestActivityProgress_EffectiveTimestamp(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)

	p := &ActivityProgress{}
	if _, ok := p.EffectiveTimestamp(); ok {
		t.Errorf("expected no effective timestamp on empty snapshot")
	}

	p.StartedAt = &started
	ts, ok := p.EffectiveTimestamp()
	if !ok || !ts.Equal(started) {
		t.Errorf("expected started timestamp, got %v ok=%v", ts, ok)
	}

	p.CompletedAt = &completed
	ts, ok = p.EffectiveTimestamp()
	if !ok || !ts.Equal(completed) {
		t.Errorf("expected completion to take precedence, got %v", ts)
	}
}

func TestActivityProgress_Clone(t *testing.T) {
	started := time.Now().UTC()
	p := &ActivityProgress{
		ID:        "x",
		Status:    StatusInProgress,
		Attempts:  2,
		StartedAt: &started,
		Responses: []ActivityResponse{{ID: "r1", Answer: "a"}},
	}

	clone := p.Clone()
	clone.Responses[0].Answer = "changed"
	*clone.StartedAt = clone.StartedAt.Add(time.Hour)

	if p.Responses[0].Answer != "a" {
		t.Errorf("clone shares response slice with original")
	}
	if !p.StartedAt.Equal(started) {
		t.Errorf("clone shares timestamp pointer with original")
	}

	var nilProgress *ActivityProgress
	if nilProgress.Clone() != nil {
		t.Errorf("expected nil clone of nil snapshot")
	}
}

func TestNewTimeOrderedID(t *testing.T) {
	a := newTimeOrderedID()
	time.Sleep(time.Millisecond)
	b := newTimeOrderedID()

	if a == b {
		t.Errorf("expected unique IDs")
	}
	if strings.Compare(a, b) >= 0 && len(a) == len(b) {
		t.Errorf("expected IDs to sort by creation time: %s vs %s", a, b)
	}
}
