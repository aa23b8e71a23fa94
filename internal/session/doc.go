// Package session owns the single shared model session.
//
// Manager drives the Unloaded -> Loading -> Loaded/Failed state machine. Concurrent
// Acquire calls collapse onto one load via singleflight. Release and forced Teardown
// always leave the session Unloaded, whatever disposal does. The processor and
// generator handles never leave this package; callers go through Infer.
package session
