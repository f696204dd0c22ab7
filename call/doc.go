// Package call implements the call-session signaling core: the guarded
// state machine, the session aggregate, the outgoing ICE debouncer, the
// call manager, the command/event bridge, and the inbound message router.
//
// # Concurrency model
//
// All mutations of call state funnel through the Bridge's single worker
// goroutine. Network messages, user commands, timer fires, and media
// engine callbacks are each turned into tasks posted onto that worker, so
// the StateProcessor, the Manager, and the session aggregate carry no
// internal locking. The only components running off the worker are the
// scheduled timers and the ICE debouncer's quiescence timer, and both
// merely enqueue work back onto it.
//
// # Lifecycle
//
// One call session may be live at a time. Every path that ends a call
// (local or remote hangup, decline, ignore, timeout, transport or media
// failure, reconnect exhaustion) funnels into a single idempotent
// terminate routine that disposes the media handle exactly once, cancels
// all timers, records the call history outcome, and resets the session.
package call
