package media

// Observer receives engine callbacks. All methods are invoked on the
// engine's own goroutines; implementations re-post onto their own worker
// before touching shared state.
type Observer interface {
	// OnIceCandidate is invoked for every locally gathered ICE candidate.
	OnIceCandidate(candidate Candidate)

	// OnConnectivityChange is invoked whenever the media path's
	// connectivity changes.
	OnConnectivityChange(state Connectivity)

	// OnDataChannelMessage is invoked with the raw payload of each
	// message received on the in-call control channel.
	OnDataChannelMessage(payload []byte)

	// OnRemoteStream is invoked when the remote party adds a media stream.
	OnRemoteStream(streamID string)
}

// Engine is the opaque media handle owned by a single call session. It is
// allocated through a Factory when a call begins and disposed exactly once
// on teardown.
type Engine interface {
	// CreateOffer produces a local session description initiating
	// negotiation. With iceRestart set the offer requests fresh ICE
	// credentials, used to recover a dropped media path mid-call.
	CreateOffer(iceRestart bool) (SessionDescription, error)

	// CreateAnswer produces a local session description answering the
	// previously applied remote offer.
	CreateAnswer(iceRestart bool) (SessionDescription, error)

	// SetLocalDescription applies a locally created description.
	SetLocalDescription(desc SessionDescription) error

	// SetRemoteDescription applies the remote party's description.
	SetRemoteDescription(desc SessionDescription) error

	// AddIceCandidate feeds a remote candidate into connectivity
	// establishment. Only valid once ReadyForIce reports true.
	AddIceCandidate(candidate Candidate) error

	// ReadyForIce reports whether the engine can accept remote candidates,
	// i.e. a remote description has been applied.
	ReadyForIce() bool

	// SetAudioEnabled toggles outgoing audio.
	SetAudioEnabled(enabled bool)

	// SetVideoEnabled toggles outgoing video.
	SetVideoEnabled(enabled bool)

	// FlipCamera switches between available capture devices, if any.
	FlipCamera() error

	// SendControl transmits a payload on the in-call control channel.
	SendControl(payload []byte) error

	// Dispose releases all engine resources. Safe to call once; the call
	// core guarantees it is never invoked twice for the same handle.
	Dispose()
}

// Factory allocates engines. The call core requests one engine per call
// attempt and passes its own observer so callbacks can be serialized.
type Factory interface {
	// NewEngine allocates an engine wired to the given observer. The
	// initiator flag records which side will create the first offer and
	// therefore owns the in-call control channel.
	NewEngine(observer Observer, initiator bool) (Engine, error)
}
