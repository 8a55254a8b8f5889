// Package async provides panic-safe goroutine helpers for background
// work.
//
// SafeGo bounds a fire-and-forget task with a deadline; Go runs a
// long-lived loop until its context is cancelled. Both recover panics
// and log failures through the observability logger, so a bad
// background task never crashes the process.
package async
