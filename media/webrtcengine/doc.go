// Package webrtcengine implements the media.Engine contract on top of
// pion/webrtc. It owns a single peer connection per call attempt, the
// in-call control data channel, and the translation between pion's
// callback surface and the call core's observer interface.
//
// The engine does no capture or playback of its own; applications attach
// tracks to the peer connection through their own media pipeline. What the
// call core needs from this package is negotiation plumbing: offers,
// answers, ICE, connectivity, and the control channel.
package webrtcengine
