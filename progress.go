package pathsync

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// ActivityKind identifies one kind of learning activity within a plan day.
type ActivityKind string

const (
	ActivityWho   ActivityKind = "who"
	ActivityWhat  ActivityKind = "what"
	ActivityWhen  ActivityKind = "when"
	ActivityWhere ActivityKind = "where"
	ActivityWhy   ActivityKind = "why"
)

// ActivityKinds lists every supported activity kind.
var ActivityKinds = []ActivityKind{
	ActivityWho, ActivityWhat, ActivityWhen, ActivityWhere, ActivityWhy,
}

// ValidKind reports whether k is a known activity kind.
func ValidKind(k ActivityKind) bool {
	for _, known := range ActivityKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ActivityStatus is the lifecycle state of an activity.
type ActivityStatus string

const (
	StatusNotStarted ActivityStatus = "not_started"
	StatusInProgress ActivityStatus = "in_progress"
	StatusCompleted  ActivityStatus = "completed"
)

// ProgressKey identifies one synchronizable progress record: the
// (student, plan, day, activity-kind) tuple.
type ProgressKey struct {
	StudentID string       `json:"student_id" yaml:"student_id"`
	PlanID    string       `json:"plan_id" yaml:"plan_id"`
	DayIndex  int          `json:"day_index" yaml:"day_index"`
	Kind      ActivityKind `json:"kind" yaml:"kind"`
}

// ID returns the stable composite identifier for the tuple. It is derived,
// never generated, so the same tuple always maps to the same record.
func (k ProgressKey) ID() string {
	return fmt.Sprintf("%s:%s:%d:%s", k.StudentID, k.PlanID, k.DayIndex, k.Kind)
}

// Validate checks that the key is fully specified.
func (k ProgressKey) Validate() error {
	if k.StudentID == "" {
		return fmt.Errorf("progress key: student ID is required")
	}
	if k.PlanID == "" {
		return fmt.Errorf("progress key: plan ID is required")
	}
	if k.DayIndex < 0 {
		return fmt.Errorf("progress key: day index must be >= 0")
	}
	if !ValidKind(k.Kind) {
		return fmt.Errorf("progress key: unknown activity kind %q", k.Kind)
	}
	return nil
}

// Storage key layout. The outbox lives under a single well-known key shared
// by every controller instance; everything else is partitioned per tuple.
const (
	outboxStorageKey = "pathsync:outbox"

	progressKeyPrefix       = "pathsync:progress:"
	sessionRecordKeyPrefix  = "pathsync:session:"
	sessionPointerKeyPrefix = "pathsync:session:current:"
)

func progressStorageKey(key ProgressKey) string {
	return progressKeyPrefix + key.ID()
}

func sessionStorageKey(sessionID string) string {
	return sessionRecordKeyPrefix + sessionID
}

func sessionPointerStorageKey(key ProgressKey) string {
	return sessionPointerKeyPrefix + key.ID()
}

// ActivityResponse is one recorded answer. All response payloads share this
// envelope; Kind tags the variant so consumers can dispatch without probing
// optional fields.
type ActivityResponse struct {
	ID        string       `json:"id"`
	Kind      ActivityKind `json:"kind,omitempty"`
	Question  string       `json:"question"`
	Answer    string       `json:"answer"`
	IsCorrect *bool        `json:"is_correct,omitempty"`
	Score     *float64     `json:"score,omitempty"`
	Feedback  string       `json:"feedback,omitempty"`
	TimeSpent int          `json:"time_spent,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// ActivityProgress is the unit of synchronized state for one tuple.
//
// Attempts counts response-save operations, not responses: SaveResponse adds
// one, CompleteActivity adds one per appended response, status-only updates
// add none. Attempts >= len(Responses) is therefore not an invariant.
type ActivityProgress struct {
	ID          string             `json:"id"`
	Kind        ActivityKind       `json:"activity_type"`
	Status      ActivityStatus     `json:"status"`
	Attempts    int                `json:"attempts"`
	Responses   []ActivityResponse `json:"responses"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	TimeSpent   int                `json:"time_spent"`
}

// NewActivityProgress returns a fresh not-started snapshot for the tuple.
func NewActivityProgress(key ProgressKey) *ActivityProgress {
	return &ActivityProgress{
		ID:        key.ID(),
		Kind:      key.Kind,
		Status:    StatusNotStarted,
		Attempts:  0,
		Responses: []ActivityResponse{},
	}
}

// EffectiveTimestamp returns CompletedAt if set, else StartedAt. The second
// return value reports whether any timestamp exists. It is the ordering key
// for last-writer-wins conflict resolution.
func (p *ActivityProgress) EffectiveTimestamp() (time.Time, bool) {
	if p.CompletedAt != nil {
		return *p.CompletedAt, true
	}
	if p.StartedAt != nil {
		return *p.StartedAt, true
	}
	return time.Time{}, false
}

// Clone returns a deep copy of the snapshot.
func (p *ActivityProgress) Clone() *ActivityProgress {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Responses = make([]ActivityResponse, len(p.Responses))
	copy(cp.Responses, p.Responses)
	if p.StartedAt != nil {
		t := *p.StartedAt
		cp.StartedAt = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// newTimeOrderedID generates a locally unique identifier that sorts by
// creation time. Used for queue items, responses, and session IDs.
func newTimeOrderedID() string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), hex.EncodeToString(suffix))
}
