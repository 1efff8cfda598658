package pathsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SessionStatus is the lifecycle state of a work session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// SessionRecord is the durable trace of one work session on a tuple. The
// record carries the latest checkpointed progress snapshot, so an
// interrupted session can be restored without consulting any other key.
type SessionRecord struct {
	SessionID      string            `json:"session_id"`
	Key            ProgressKey       `json:"key"`
	Status         SessionStatus     `json:"status"`
	StartedAt      time.Time         `json:"started_at"`
	LastActivity   time.Time         `json:"last_activity"`
	InterruptedAt  *time.Time        `json:"interrupted_at,omitempty"`
	TotalTimeSpent int               `json:"total_time_spent"`
	ActivityCount  int               `json:"activity_count"`
	Progress       *ActivityProgress `json:"progress,omitempty"`
}

// SessionManager tracks work sessions for a single tuple. Alongside each
// session record it keeps a current-session pointer key; a pointer that
// still names an active session at startup means the previous run ended
// without CloseClean, i.e. it was interrupted.
type SessionManager struct {
	store  LocalStore
	codec  Codec
	logger *slog.Logger
	key    ProgressKey

	mu      sync.Mutex
	current *SessionRecord
}

// NewSessionManager creates a session manager for one tuple.
func NewSessionManager(store LocalStore, codec Codec, logger *slog.Logger, key ProgressKey) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{store: store, codec: codec, logger: logger, key: key}
}

// DetectInterrupted returns the session record left active by a previous
// run, or nil if the last session closed cleanly. The record is stamped
// with the interruption time and persisted, but not consumed; callers
// decide whether to recover or clear it.
func (s *SessionManager) DetectInterrupted(ctx context.Context) (*SessionRecord, error) {
	sessionID, err := s.store.Get(ctx, sessionPointerStorageKey(s.key))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: read pointer: %w", err)
	}

	record, err := s.loadRecord(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if record == nil || record.Status != SessionActive {
		return nil, nil
	}

	if record.InterruptedAt == nil {
		now := time.Now().UTC()
		record.InterruptedAt = &now
		if err := s.saveRecord(ctx, record); err != nil {
			return nil, err
		}
	}
	return record, nil
}

func (s *SessionManager) loadRecord(ctx context.Context, sessionID string) (*SessionRecord, error) {
	raw, err := s.store.Get(ctx, sessionStorageKey(sessionID))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: read record %q: %w", sessionID, err)
	}

	var record SessionRecord
	if err := s.codec.Decode(raw, &record); err != nil {
		return nil, fmt.Errorf("session: decode record %q: %w", sessionID, err)
	}
	return &record, nil
}

func (s *SessionManager) saveRecord(ctx context.Context, record *SessionRecord) error {
	raw, err := s.codec.Encode(record)
	if err != nil {
		return fmt.Errorf("session: encode record: %w", err)
	}
	if err := s.store.Set(ctx, sessionStorageKey(record.SessionID), raw); err != nil {
		return fmt.Errorf("session: save record: %w", err)
	}
	return nil
}

// Begin starts a new session, replacing the current-session pointer.
func (s *SessionManager) Begin(ctx context.Context) (*SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	record := &SessionRecord{
		SessionID:    newTimeOrderedID(),
		Key:          s.key,
		Status:       SessionActive,
		StartedAt:    now,
		LastActivity: now,
	}

	if err := s.saveRecord(ctx, record); err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, sessionPointerStorageKey(s.key), record.SessionID); err != nil {
		return nil, fmt.Errorf("session: set pointer: %w", err)
	}

	s.current = record
	s.logger.Debug("session started", "session_id", record.SessionID, "progress_id", s.key.ID())
	return record, nil
}

// Touch checkpoints the current session with the latest progress snapshot,
// rewriting the activity time, cumulative time and mutation count. Without
// an active session it is a no-op.
func (s *SessionManager) Touch(ctx context.Context, progress *ActivityProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}

	s.current.LastActivity = time.Now().UTC()
	s.current.TotalTimeSpent = progress.TimeSpent
	s.current.ActivityCount++
	s.current.Progress = progress.Clone()
	return s.saveRecord(ctx, s.current)
}

// CloseClean marks the current session completed and removes the pointer,
// so the next startup does not report an interruption.
func (s *SessionManager) CloseClean(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}

	s.current.Status = SessionCompleted
	s.current.LastActivity = time.Now().UTC()
	if err := s.saveRecord(ctx, s.current); err != nil {
		return err
	}
	if err := s.store.Remove(ctx, sessionPointerStorageKey(s.key)); err != nil {
		return fmt.Errorf("session: remove pointer: %w", err)
	}

	s.logger.Debug("session closed", "session_id", s.current.SessionID)
	s.current = nil
	return nil
}

// Adopt resumes an interrupted session as the current one. Subsequent Touch
// calls checkpoint into the adopted record.
func (s *SessionManager) Adopt(ctx context.Context, record *SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record == nil {
		return errors.New("session: cannot adopt nil record")
	}

	s.current = record
	if err := s.store.Set(ctx, sessionPointerStorageKey(s.key), record.SessionID); err != nil {
		return fmt.Errorf("session: set pointer: %w", err)
	}
	return nil
}

// Clear discards the interrupted-session trace for this tuple: the pointer
// and, when present, the record it names.
func (s *SessionManager) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID, err := s.store.Get(ctx, sessionPointerStorageKey(s.key))
	if err == nil {
		if err := s.store.Remove(ctx, sessionStorageKey(sessionID)); err != nil {
			return fmt.Errorf("session: remove record: %w", err)
		}
	} else if !errors.Is(err, ErrKeyNotFound) {
		return fmt.Errorf("session: read pointer: %w", err)
	}

	if err := s.store.Remove(ctx, sessionPointerStorageKey(s.key)); err != nil {
		return fmt.Errorf("session: remove pointer: %w", err)
	}

	s.current = nil
	return nil
}

// Current returns the active session record, or nil.
func (s *SessionManager) Current() *SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
