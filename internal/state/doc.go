// Package state holds the session data shared between request commands and
// the UI.
//
// # Overview
//
// Store is a mutex-guarded Snapshot of everything the last queries produced:
// the point result and its chart annotations, the region series and
// per-pixel results, the collection list, the metric documentation and a
// bounded history of runs. Session drives a wcpms.PhenologyClient and writes
// into the Store.
//
// # Concurrency Model
//
//   - Begin/Finish bracket every request. Begin fails with ErrBusy while a
//     run is in flight, so at most one request reaches the service at a time.
//   - Setters take the write lock; Snapshot takes the read lock and returns
//     deep copies, so callers may keep or mutate what they receive.
//
// # Error Semantics
//
// A failed run keeps the previous data and records the error:
//
//	run, _ := store.Begin(state.KindPoint, cube, "-29.2, -55.95")
//	store.Finish(run, err)
//	→ snapshot.LastError = err
//	→ snapshot.ConsecutiveFailures++
//	→ snapshot.History gains the run with Err set
//
// IsOffline reports two or more consecutive transport failures.
//
// # Run History
//
// Each run gets a random UUID so that log lines written by the client and
// the session can be matched to the entry shown in the UI.
package state
