// Package pathsync implements offline-first synchronization of activity
// progress for multi-step learning plans.
//
// A Controller tracks one (student, plan, day, activity) tuple. Every write
// lands in a durable local store first and is pushed to the remote server
// when the connection allows; writes that cannot reach the server are queued
// in a durable outbox and replayed later. Conflicting snapshots from other
// devices are resolved last-writer-wins on the activity's effective
// timestamp.
//
// # Basic Usage
//
// Open a controller over a local store and remote client:
//
//	store, err := pathsync.NewSQLiteStore(pathsync.DefaultSQLiteStoreConfig("progress.db"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	remote, err := pathsync.NewHTTPRemoteClient(pathsync.HTTPRemoteClientConfig{
//	    BaseURL: "https://api.example.com",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctrl, err := pathsync.NewController(pathsync.ControllerConfig{
//	    Key: pathsync.ProgressKey{
//	        StudentID: "student-1",
//	        PlanID:    "plan-7",
//	        DayIndex:  3,
//	        Kind:      pathsync.ActivityWho,
//	    },
//	    Store:  store,
//	    Remote: remote,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ctrl.Close(context.Background())
//
// Record work:
//
//	result := ctrl.Initialize(ctx)
//	log.Printf("restored from %s", result.RestoredFrom)
//
//	err = ctrl.SaveResponse(ctx, pathsync.ActivityResponse{
//	    Question: "Who wrote it?",
//	    Answer:   "Ada",
//	})
//	err = ctrl.CompleteActivity(ctx, nil, 120)
//
// # Features
//
// Local persistence:
//   - Pluggable stores (memory, file, SQLite)
//   - Optional AES-256-GCM encryption at rest
//   - Optional snappy compression of large values
//
// Synchronization:
//   - Durable outbox with independent per-item replay
//   - Debounced automatic flushing after local writes
//   - Connection quality monitoring with opportunistic drains
//   - Deterministic last-writer-wins conflict resolution
//
// Sessions:
//   - Interrupted-session detection across restarts
//   - Checkpointed recovery of in-flight progress
//
// Extras:
//   - Answer history queries and JSON export
//   - S3 answer archival
//   - Prometheus metrics
//
// # Configuration
//
// Use [Config] with [LoadConfigFile] for YAML-driven setup, or construct
// components directly as above.
package pathsync
