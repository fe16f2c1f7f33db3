// Package pipeline runs media files through the repair, reduce, optimize
// and optional finalize stages.
//
// A [Dispatcher] accepts a file or directory and launches one goroutine per
// supported file, bounded by a weighted semaphore when
// max_concurrent_jobs > 0. Each goroutine drives a [Machine], which enforces
// the stage transition table, verifies every artifact, gates success on a
// duration comparison, cleans up, and records exactly one history entry in
// the status sink. Failures are classified by [Classify] into the error
// taxonomy defined in errors.go.
package pipeline
