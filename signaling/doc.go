// Package signaling defines the typed envelopes exchanged with the remote
// party through the out-of-band messaging transport: pre-offers, offers,
// answers, batched ICE candidates, and end-call notices.
//
// The envelope schema (callId, sdp, sdpMid/sdpMLineIndex arrays, sent
// timestamp) is owned by the messaging layer and treated as given here;
// this package only provides the typed model, the JSON codec, and the
// Transport collaborator interface used to move envelopes.
package signaling
