package pathsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Restore sources reported by Initialize.
const (
	RestoredFresh   = "fresh"
	RestoredLocal   = "local"
	RestoredRemote  = "remote"
	RestoredSession = "session"
)

// ControllerConfig configures a progress controller.
type ControllerConfig struct {
	// Key is the tuple this controller tracks. Required.
	Key ProgressKey

	// Store is the durable local store. Required.
	Store LocalStore

	// Remote is the client for the authoritative server. Required.
	Remote RemoteClient

	// Queue is the shared outbox. When nil a queue is created over Store.
	// Controllers sharing a store should share a queue.
	Queue *SyncQueue

	// Monitor tracks connection quality. When nil every write attempts the
	// remote directly and drains are never quality-gated.
	Monitor *ConnectionMonitor

	// Codec serializes stored values.
	Codec Codec

	// Archive receives exported answer histories. Optional.
	Archive ArchiveSink

	// AutoFlushDelay is the debounce window between a local write and the
	// automatic queue flush it schedules. Zero disables auto-flush.
	// Default: 2s.
	AutoFlushDelay time.Duration

	// MinDrainQuality gates opportunistic drains. Default: QualityGood.
	MinDrainQuality ConnectionQuality

	// AttemptCeiling is the attempt count at or above which the activity
	// reports as locked. Default: 5.
	AttemptCeiling int

	// Logger for controller events. Default: slog.Default().
	Logger *slog.Logger

	// Metrics instruments the controller. Optional.
	Metrics *Metrics
}

// Controller synchronizes progress for a single (student, plan, day,
// activity) tuple. Every mutation lands in the local store first; the remote
// write is attempted immediately when the connection allows and queued in
// the outbox otherwise. All public methods are safe for concurrent use.
type Controller struct {
	config  ControllerConfig
	key     ProgressKey
	store   LocalStore
	remote  RemoteClient
	queue   *SyncQueue
	monitor *ConnectionMonitor
	codec   Codec
	logger  *slog.Logger
	metrics *Metrics
	session *SessionManager

	mu          sync.Mutex
	progress    *ActivityProgress
	interrupted *SessionRecord
	restored    string
	initErr     error
	initialized bool
	flushTimer  *time.Timer
	closed      bool

	localWrites  uint64
	remoteWrites uint64
	queuedWrites uint64
	lastSyncAt   time.Time
}

// InitResult reports what Initialize restored.
type InitResult struct {
	// Progress is the working snapshot, never nil.
	Progress *ActivityProgress

	// RestoredFrom names the source: "fresh", "local", "remote" or
	// "session".
	RestoredFrom string

	// Interrupted is the session record a previous run left active, or nil.
	Interrupted *SessionRecord
}

// NewController creates a controller for one tuple.
func NewController(config ControllerConfig) (*Controller, error) {
	if err := config.Key.Validate(); err != nil {
		return nil, err
	}
	if config.Store == nil {
		return nil, errors.New("controller: store is required")
	}
	if config.Remote == nil {
		return nil, errors.New("controller: remote client is required")
	}
	if config.AutoFlushDelay == 0 {
		config.AutoFlushDelay = 2 * time.Second
	}
	if config.MinDrainQuality == 0 {
		config.MinDrainQuality = QualityGood
	}
	if config.AttemptCeiling <= 0 {
		config.AttemptCeiling = 5
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("progress_id", config.Key.ID())

	queue := config.Queue
	if queue == nil {
		queue = NewSyncQueue(config.Store, config.Codec, logger)
	}

	c := &Controller{
		config:  config,
		key:     config.Key,
		store:   config.Store,
		remote:  config.Remote,
		queue:   queue,
		monitor: config.Monitor,
		codec:   config.Codec,
		logger:  logger,
		metrics: config.Metrics,
		session: NewSessionManager(config.Store, config.Codec, logger, config.Key),
	}

	// Drain opportunistically when the connection comes back. The callback
	// runs on the monitor's probing goroutine and must not block.
	if c.monitor != nil {
		c.monitor.OnChange(func(quality ConnectionQuality) {
			if !quality.AtLeast(c.config.MinDrainQuality) {
				return
			}
			go func() {
				if _, _, err := c.Flush(context.Background()); err != nil {
					c.logger.Warn("drain on reconnect failed", "error", err)
				}
			}()
		})
	}

	return c, nil
}

// Initialize loads the working snapshot. It always yields a usable state:
// restore failures degrade toward a fresh snapshot and are recorded, never
// returned. The snapshot is the newer of local and remote, else fresh. An
// interrupted session is only detected and retained here; restoring its
// checkpoint is the caller's decision via RecoverSession.
func (c *Controller) Initialize(ctx context.Context) InitResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return c.initResultLocked()
	}

	c.initErr = nil

	interrupted, err := c.session.DetectInterrupted(ctx)
	if err != nil {
		c.recordInitErr(fmt.Errorf("detect interrupted session: %w", err))
	}
	c.interrupted = interrupted

	local := c.loadLocal(ctx)
	remote := c.fetchRemote(ctx)

	if local == nil && remote == nil {
		c.progress = NewActivityProgress(c.key)
		c.restored = RestoredFresh
	} else {
		winner, decision := ResolveConflict(local, remote)
		c.progress = winner.Clone()
		if decision.Winner == WinnerRemote {
			c.restored = RestoredRemote
		} else {
			c.restored = RestoredLocal
		}
		if local != nil && remote != nil {
			c.metrics.ConflictResolved(decision.Winner)
		}
	}

	if err := c.persistLocalLocked(ctx); err != nil {
		c.recordInitErr(err)
	}

	// A local snapshot with no remote counterpart may be the only copy;
	// queue it so it reaches the server even if no mutation follows.
	if local != nil && remote == nil {
		if _, err := c.queue.Enqueue(ctx, ActionUpdate, c.key, c.progress); err != nil {
			c.recordInitErr(fmt.Errorf("queue local-only snapshot: %w", err))
		} else {
			c.queuedWrites++
			c.metrics.Queued()
			c.scheduleFlushLocked()
		}
	}

	if _, err := c.session.Begin(ctx); err != nil {
		c.recordInitErr(err)
	}

	c.initialized = true
	c.logger.Info("controller initialized",
		"restored_from", c.restored,
		"status", string(c.progress.Status),
		"attempts", c.progress.Attempts)
	return c.initResultLocked()
}

func (c *Controller) initResultLocked() InitResult {
	var interrupted *SessionRecord
	if c.interrupted != nil {
		cp := *c.interrupted
		interrupted = &cp
	}
	return InitResult{
		Progress:     c.progress.Clone(),
		RestoredFrom: c.restored,
		Interrupted:  interrupted,
	}
}

func (c *Controller) recordInitErr(err error) {
	if c.initErr == nil {
		c.initErr = err
	} else {
		c.initErr = errors.Join(c.initErr, err)
	}
	c.logger.Warn("initialization degraded", "error", err)
}

// InitError returns the error(s) recorded during Initialize, or nil.
func (c *Controller) InitError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initErr
}

func (c *Controller) loadLocal(ctx context.Context) *ActivityProgress {
	raw, err := c.store.Get(ctx, progressStorageKey(c.key))
	if errors.Is(err, ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		c.recordInitErr(fmt.Errorf("load local snapshot: %w", err))
		return nil
	}

	var progress ActivityProgress
	if err := c.codec.Decode(raw, &progress); err != nil {
		c.recordInitErr(fmt.Errorf("decode local snapshot: %w", err))
		return nil
	}
	return &progress
}

func (c *Controller) fetchRemote(ctx context.Context) *ActivityProgress {
	if c.monitor != nil && !c.monitor.Quality().AtLeast(QualityPoor) {
		return nil
	}

	result, err := c.remote.Fetch(ctx, c.key.StudentID, c.key.PlanID, c.key.DayIndex)
	if errors.Is(err, ErrRemoteNotFound) {
		return nil
	}
	if err != nil {
		c.recordInitErr(fmt.Errorf("fetch remote snapshot: %w", err))
		return nil
	}
	return result[c.key.Kind]
}

// UpdateProgress changes lifecycle status and accumulates time. The first
// transition to in-progress stamps StartedAt; completing stamps CompletedAt.
// Moving back out of completed clears CompletedAt, and returning to
// not-started clears both stamps, so CompletedAt is set exactly when the
// status says completed. The attempt count never changes here.
func (c *Controller) UpdateProgress(ctx context.Context, status ActivityStatus, timeSpent int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.readyLocked(); err != nil {
		return err
	}

	now := time.Now().UTC()
	switch status {
	case StatusNotStarted:
		c.progress.StartedAt = nil
		c.progress.CompletedAt = nil
	case StatusInProgress:
		if c.progress.StartedAt == nil {
			c.progress.StartedAt = &now
		}
		c.progress.CompletedAt = nil
	case StatusCompleted:
		if c.progress.StartedAt == nil {
			c.progress.StartedAt = &now
		}
		if c.progress.CompletedAt == nil {
			c.progress.CompletedAt = &now
		}
	default:
		return fmt.Errorf("controller: unknown status %q", status)
	}
	c.progress.Status = status
	if timeSpent > 0 {
		c.progress.TimeSpent += timeSpent
	}

	return c.commitLocked(ctx, ActionUpdate)
}

// SaveResponse appends one answer and counts one attempt. Status is not
// touched; lifecycle transitions go through UpdateProgress.
func (c *Controller) SaveResponse(ctx context.Context, response ActivityResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.readyLocked(); err != nil {
		return err
	}

	c.appendResponseLocked(response)
	return c.commitLocked(ctx, ActionSave)
}

func (c *Controller) appendResponseLocked(response ActivityResponse) {
	if response.ID == "" {
		response.ID = newTimeOrderedID()
	}
	if response.Kind == "" {
		response.Kind = c.key.Kind
	}
	if response.CreatedAt.IsZero() {
		response.CreatedAt = time.Now().UTC()
	}

	c.progress.Responses = append(c.progress.Responses, response)
	c.progress.Attempts++
	if response.TimeSpent > 0 {
		c.progress.TimeSpent += response.TimeSpent
	}
}

// CompleteActivity appends any final responses, marks the activity
// completed and stamps CompletedAt. Each appended response counts one
// attempt.
func (c *Controller) CompleteActivity(ctx context.Context, responses []ActivityResponse, timeSpent int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.readyLocked(); err != nil {
		return err
	}

	for _, response := range responses {
		c.appendResponseLocked(response)
	}

	now := time.Now().UTC()
	c.progress.Status = StatusCompleted
	if c.progress.StartedAt == nil {
		c.progress.StartedAt = &now
	}
	c.progress.CompletedAt = &now
	if timeSpent > 0 {
		c.progress.TimeSpent += timeSpent
	}

	return c.commitLocked(ctx, ActionComplete)
}

// ResetProgress discards all recorded work: the snapshot is removed from
// the local store, the working state returns to a fresh not-started
// snapshot with zero attempts, and the reset propagates to the server like
// any other write.
func (c *Controller) ResetProgress(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.readyLocked(); err != nil {
		return err
	}

	c.progress = NewActivityProgress(c.key)
	if err := c.store.Remove(ctx, progressStorageKey(c.key)); err != nil && !errors.Is(err, ErrKeyNotFound) {
		c.logger.Warn("remove local snapshot failed", "error", err)
	}
	c.localWrites++
	c.metrics.LocalWrite(string(ActionReset))

	if err := c.session.Touch(ctx, c.progress); err != nil {
		c.logger.Warn("session checkpoint failed", "error", err)
	}

	return c.pushOrQueueLocked(ctx, ActionReset, c.progress.Clone())
}

func (c *Controller) readyLocked() error {
	if c.closed {
		return errors.New("controller: closed")
	}
	if !c.initialized {
		return errors.New("controller: not initialized")
	}
	return nil
}

// commitLocked persists the current snapshot locally, checkpoints the
// session, then pushes to the remote or queues the write. A local persist
// failure is logged but never blocks the remote path.
func (c *Controller) commitLocked(ctx context.Context, action SyncAction) error {
	if err := c.persistLocalLocked(ctx); err != nil {
		c.logger.Warn("local persist failed", "action", string(action), "error", err)
	}
	c.localWrites++
	c.metrics.LocalWrite(string(action))

	if err := c.session.Touch(ctx, c.progress); err != nil {
		c.logger.Warn("session checkpoint failed", "error", err)
	}

	return c.pushOrQueueLocked(ctx, action, c.progress.Clone())
}

// pushOrQueueLocked pushes one snapshot to the remote when the connection
// allows, falling back to the outbox on failure or while offline.
func (c *Controller) pushOrQueueLocked(ctx context.Context, action SyncAction, snapshot *ActivityProgress) error {
	online := c.monitor == nil || c.monitor.Quality().AtLeast(QualityPoor)
	if online {
		err := c.remote.Persist(ctx, c.persistRequest(snapshot))
		c.metrics.RemoteWrite(err)
		if err == nil {
			c.remoteWrites++
			c.scheduleFlushLocked()
			return nil
		}
		c.logger.Warn("remote persist failed, queueing", "action", string(action), "error", err)
	}

	if _, err := c.queue.Enqueue(ctx, action, c.key, snapshot); err != nil {
		return fmt.Errorf("controller: queue write: %w", err)
	}
	c.queuedWrites++
	c.metrics.Queued()
	if depth, err := c.queue.Len(ctx); err == nil {
		c.metrics.SetQueueDepth(depth)
	}

	c.scheduleFlushLocked()
	return nil
}

func (c *Controller) persistLocalLocked(ctx context.Context) error {
	raw, err := c.codec.Encode(c.progress)
	if err != nil {
		return fmt.Errorf("controller: encode snapshot: %w", err)
	}
	if err := c.store.Set(ctx, progressStorageKey(c.key), raw); err != nil {
		return fmt.Errorf("controller: persist snapshot: %w", err)
	}
	return nil
}

func (c *Controller) persistRequest(snapshot *ActivityProgress) PersistRequest {
	return PersistRequest{
		StudentID:   c.key.StudentID,
		PlanID:      c.key.PlanID,
		DayIndex:    c.key.DayIndex,
		Kind:        c.key.Kind,
		Status:      snapshot.Status,
		TimeSpent:   snapshot.TimeSpent,
		Attempts:    snapshot.Attempts,
		StartedAt:   snapshot.StartedAt,
		CompletedAt: snapshot.CompletedAt,
		Responses:   snapshot.Responses,
	}
}

// scheduleFlushLocked arms the debounced auto-flush timer. Every write
// resets the window, so a burst of writes flushes once.
func (c *Controller) scheduleFlushLocked() {
	if c.config.AutoFlushDelay <= 0 || c.closed {
		return
	}
	if c.flushTimer != nil {
		c.flushTimer.Stop()
	}
	c.flushTimer = time.AfterFunc(c.config.AutoFlushDelay, func() {
		if _, _, err := c.Flush(context.Background()); err != nil {
			c.logger.Warn("auto-flush failed", "error", err)
		}
	})
}

// Flush drains the outbox if the connection is at or above the configured
// drain quality. It returns how many items were replayed and how many
// failed and stayed queued.
func (c *Controller) Flush(ctx context.Context) (flushed, failed int, err error) {
	if c.monitor != nil && !c.monitor.Quality().AtLeast(c.config.MinDrainQuality) {
		return 0, 0, nil
	}
	return c.drain(ctx)
}

// ForceSync refreshes connection quality and drains the outbox regardless
// of the drain gate. Use it for user-initiated "sync now".
func (c *Controller) ForceSync(ctx context.Context) (flushed, failed int, err error) {
	if c.monitor != nil {
		c.monitor.CheckNow(ctx)
	}
	return c.drain(ctx)
}

func (c *Controller) drain(ctx context.Context) (flushed, failed int, err error) {
	start := time.Now()
	c.mu.Lock()
	c.lastSyncAt = start.UTC()
	c.mu.Unlock()

	flushed, failed, err = c.queue.Drain(ctx, func(ctx context.Context, item SyncQueueItem) error {
		if item.Data == nil {
			return nil
		}
		req := PersistRequest{
			StudentID:   item.Key.StudentID,
			PlanID:      item.Key.PlanID,
			DayIndex:    item.Key.DayIndex,
			Kind:        item.Key.Kind,
			Status:      item.Data.Status,
			TimeSpent:   item.Data.TimeSpent,
			Attempts:    item.Data.Attempts,
			StartedAt:   item.Data.StartedAt,
			CompletedAt: item.Data.CompletedAt,
			Responses:   item.Data.Responses,
		}
		return c.remote.Persist(ctx, req)
	})

	c.metrics.FlushResult(flushed, failed, time.Since(start).Seconds())
	if depth, lenErr := c.queue.Len(ctx); lenErr == nil {
		c.metrics.SetQueueDepth(depth)
	}
	return flushed, failed, err
}

// SyncResult reports the outcome of a cross-device reconciliation.
type SyncResult struct {
	Decision ConflictDecision  `json:"decision"`
	Progress *ActivityProgress `json:"progress"`
}

// SyncCrossDevice reconciles the local snapshot against the server's. When
// the remote wins the local snapshot is replaced; when the local wins it is
// pushed to the server (queued if the push fails). The resolved snapshot is
// returned either way.
func (c *Controller) SyncCrossDevice(ctx context.Context) (SyncResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.readyLocked(); err != nil {
		return SyncResult{}, err
	}

	var remote *ActivityProgress
	result, err := c.remote.Fetch(ctx, c.key.StudentID, c.key.PlanID, c.key.DayIndex)
	if err != nil && !errors.Is(err, ErrRemoteNotFound) {
		return SyncResult{}, fmt.Errorf("controller: fetch remote: %w", err)
	}
	if result != nil {
		remote = result[c.key.Kind]
	}

	winner, decision := ResolveConflict(c.progress, remote)
	c.metrics.ConflictResolved(decision.Winner)
	c.logger.Info("cross-device sync resolved",
		"winner", string(decision.Winner),
		"reason", decision.Reason)

	if decision.Winner == WinnerRemote {
		if winner == nil {
			winner = NewActivityProgress(c.key)
		}
		c.progress = winner.Clone()
		if err := c.persistLocalLocked(ctx); err != nil {
			c.logger.Warn("local persist failed after sync", "error", err)
		}
		return SyncResult{Decision: decision, Progress: c.progress.Clone()}, nil
	}

	snapshot := c.progress.Clone()
	if err := c.remote.Persist(ctx, c.persistRequest(snapshot)); err != nil {
		c.logger.Warn("push after sync failed, queueing", "error", err)
		if _, qerr := c.queue.Enqueue(ctx, ActionUpdate, c.key, snapshot); qerr != nil {
			return SyncResult{}, fmt.Errorf("controller: queue after sync: %w", qerr)
		}
		c.metrics.Queued()
	}
	return SyncResult{Decision: decision, Progress: snapshot}, nil
}

// Progress returns a copy of the working snapshot.
func (c *Controller) Progress() *ActivityProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress.Clone()
}

// ActivityState is a read-side view of the controller. CanProceed reports
// whether at least one answer is recorded; Feedback carries the feedback
// attached to the most recent answer, if any.
type ActivityState struct {
	Progress      *ActivityProgress `json:"progress"`
	Locked        bool              `json:"locked"`
	CanProceed    bool              `json:"can_proceed"`
	Feedback      string            `json:"feedback,omitempty"`
	RestoredFrom  string            `json:"restored_from"`
	PendingWrites int               `json:"pending_writes"`
}

// ActivityState returns the snapshot, lock state and pending write count in
// one consistent view.
func (c *Controller) ActivityState(ctx context.Context) (ActivityState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.readyLocked(); err != nil {
		return ActivityState{}, err
	}

	pending, err := c.queue.Len(ctx)
	if err != nil {
		return ActivityState{}, err
	}

	var feedback string
	if n := len(c.progress.Responses); n > 0 {
		feedback = c.progress.Responses[n-1].Feedback
	}
	return ActivityState{
		Progress:      c.progress.Clone(),
		Locked:        c.progress.Attempts >= c.config.AttemptCeiling,
		CanProceed:    len(c.progress.Responses) > 0,
		Feedback:      feedback,
		RestoredFrom:  c.restored,
		PendingWrites: pending,
	}, nil
}

// RestoredFrom names the source Initialize restored from.
func (c *Controller) RestoredFrom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restored
}

// IsLocked reports whether the attempt count has reached the ceiling.
func (c *Controller) IsLocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress != nil && c.progress.Attempts >= c.config.AttemptCeiling
}

// AnswerHistory returns all recorded responses in order.
func (c *Controller) AnswerHistory() []ActivityResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.progress == nil {
		return nil
	}
	history := make([]ActivityResponse, len(c.progress.Responses))
	copy(history, c.progress.Responses)
	return history
}

// LastAnswer returns the most recent response, if any.
func (c *Controller) LastAnswer() (ActivityResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.progress == nil || len(c.progress.Responses) == 0 {
		return ActivityResponse{}, false
	}
	return c.progress.Responses[len(c.progress.Responses)-1], true
}

// AnswersByPrefix returns the responses whose question starts with prefix.
func (c *Controller) AnswersByPrefix(prefix string) []ActivityResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.progress == nil {
		return nil
	}
	var matched []ActivityResponse
	for _, response := range c.progress.Responses {
		if strings.HasPrefix(response.Question, prefix) {
			matched = append(matched, response)
		}
	}
	return matched
}

// answerExport is the JSON envelope produced by ExportAnswers.
type answerExport struct {
	Key        ProgressKey        `json:"key"`
	Status     ActivityStatus     `json:"status"`
	Attempts   int                `json:"attempts"`
	ExportedAt time.Time          `json:"exported_at"`
	Responses  []ActivityResponse `json:"responses"`
}

// ExportAnswers serializes the answer history as JSON.
func (c *Controller) ExportAnswers() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.progress == nil {
		return nil, errors.New("controller: not initialized")
	}

	export := answerExport{
		Key:        c.key,
		Status:     c.progress.Status,
		Attempts:   c.progress.Attempts,
		ExportedAt: time.Now().UTC(),
		Responses:  c.progress.Responses,
	}
	return json.MarshalIndent(export, "", "  ")
}

// ArchiveAnswers exports the answer history and uploads it to the
// configured archive sink.
func (c *Controller) ArchiveAnswers(ctx context.Context) error {
	if c.config.Archive == nil {
		return errors.New("controller: no archive sink configured")
	}

	data, err := c.ExportAnswers()
	if err != nil {
		return err
	}

	objectKey := fmt.Sprintf("answers/%s/%s/%d/%s/%d.json",
		c.key.StudentID, c.key.PlanID, c.key.DayIndex, c.key.Kind,
		time.Now().UTC().Unix())
	if err := c.config.Archive.Archive(ctx, objectKey, data); err != nil {
		return fmt.Errorf("controller: archive answers: %w", err)
	}

	c.logger.Info("answers archived", "object_key", objectKey)
	return nil
}

// ControllerStats is a snapshot of controller counters. LastSyncAt is the
// start time of the most recent drain attempt, successful or not; the zero
// value means no drain has run yet.
type ControllerStats struct {
	LocalWrites  uint64    `json:"local_writes"`
	RemoteWrites uint64    `json:"remote_writes"`
	QueuedWrites uint64    `json:"queued_writes"`
	RestoredFrom string    `json:"restored_from"`
	LastSyncAt   time.Time `json:"last_sync_at"`
}

// Stats returns current controller statistics.
func (c *Controller) Stats() ControllerStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ControllerStats{
		LocalWrites:  c.localWrites,
		RemoteWrites: c.remoteWrites,
		QueuedWrites: c.queuedWrites,
		RestoredFrom: c.restored,
		LastSyncAt:   c.lastSyncAt,
	}
}

// SessionInfo summarizes the active session.
type SessionInfo struct {
	SessionID      string    `json:"session_id"`
	StartedAt      time.Time `json:"started_at"`
	LastActivity   time.Time `json:"last_activity"`
	TotalTimeSpent int       `json:"total_time_spent"`
	ActivityCount  int       `json:"activity_count"`
	UnsavedChanges bool      `json:"unsaved_changes"`
}

// SessionInfo reports the active session's cumulative time, mutation count
// and whether queued writes still await the server.
func (c *Controller) SessionInfo(ctx context.Context) (SessionInfo, error) {
	record := c.session.Current()
	if record == nil {
		return SessionInfo{}, errors.New("controller: no active session")
	}

	pending, err := c.queue.Len(ctx)
	if err != nil {
		return SessionInfo{}, err
	}
	return SessionInfo{
		SessionID:      record.SessionID,
		StartedAt:      record.StartedAt,
		LastActivity:   record.LastActivity,
		TotalTimeSpent: record.TotalTimeSpent,
		ActivityCount:  record.ActivityCount,
		UnsavedChanges: pending > 0,
	}, nil
}

// InterruptedSession returns the session record a previous run left active,
// or nil.
func (c *Controller) InterruptedSession() *SessionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interrupted == nil {
		return nil
	}
	cp := *c.interrupted
	return &cp
}

// RecoverSession restores the working snapshot from the interrupted
// session's checkpoint.
func (c *Controller) RecoverSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interrupted == nil {
		return errors.New("controller: no interrupted session")
	}
	if c.interrupted.Progress != nil {
		c.progress = c.interrupted.Progress.Clone()
		if err := c.persistLocalLocked(ctx); err != nil {
			return err
		}
	}
	if err := c.session.Adopt(ctx, c.interrupted); err != nil {
		return err
	}
	c.restored = RestoredSession
	return nil
}

// ClearSession discards the session trace and resets the controller to an
// empty state. The local snapshot stays in the store; call Initialize again
// to resume work on the tuple.
func (c *Controller) ClearSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.session.Clear(ctx); err != nil {
		return err
	}
	if c.interrupted != nil {
		if err := c.store.Remove(ctx, sessionStorageKey(c.interrupted.SessionID)); err != nil && !errors.Is(err, ErrKeyNotFound) {
			c.logger.Warn("remove interrupted session record failed", "error", err)
		}
	}

	c.interrupted = nil
	c.progress = nil
	c.restored = ""
	c.initialized = false
	return nil
}

// Close stops the auto-flush timer, attempts a final drain and closes the
// session cleanly. The local store is owned by the caller and stays open.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.flushTimer != nil {
		c.flushTimer.Stop()
	}
	c.mu.Unlock()

	if _, _, err := c.Flush(ctx); err != nil {
		c.logger.Warn("final flush failed", "error", err)
	}

	if err := c.session.CloseClean(ctx); err != nil {
		return fmt.Errorf("controller: close session: %w", err)
	}
	return nil
}
