// Package media defines the collaborator surface between the call core and
// the media engine that actually negotiates codecs and moves audio/video
// packets. The core never touches a concrete engine; it drives an opaque
// Engine handle obtained from a Factory and reacts to Observer callbacks.
//
// Engine callbacks are delivered on the engine's own goroutines. Observer
// implementations must re-post work onto the call core's serial worker
// before touching call state; the callkit bridge does exactly that.
package media
