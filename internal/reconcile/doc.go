// Package reconcile owns the router convergence loop.
//
// Ownership boundary:
// - gateway contract consumed from callers
// - retrieve, diff, apply, verify passes
// - retry pacing and error budget
//
// reconcile never decides which routers exist and never dials them; it
// drives whatever Gateway it is handed until the router matches the desired
// configuration or the caller cancels.
package reconcile
