package call

import "errors"

// Sentinel errors for call operations. These enable reliable error
// classification with errors.Is.

// Lifecycle errors.
var (
	// ErrAlreadyInCall indicates a new call was requested while a session
	// is live.
	ErrAlreadyInCall = errors.New("already in a call")

	// ErrNoActiveCall indicates an operation that requires a live session.
	ErrNoActiveCall = errors.New("no active call")

	// ErrIllegalTransition indicates the state machine rejected the
	// requested event.
	ErrIllegalTransition = errors.New("illegal state transition")
)

// Inbound message errors.
var (
	// ErrIdentityMismatch indicates a message for a call identity other
	// than the live session's.
	ErrIdentityMismatch = errors.New("call identity mismatch")

	// ErrPartyMismatch indicates a message from a party other than the
	// live session's remote party.
	ErrPartyMismatch = errors.New("remote party mismatch")

	// ErrStaleMessage indicates an offer or answer older than the
	// staleness window; treated as a missed call, not a failure.
	ErrStaleMessage = errors.New("stale signaling message")

	// ErrBusy indicates an inbound call while another is active.
	ErrBusy = errors.New("busy with another call")

	// ErrNoPendingOffer indicates an answer attempt without a stored
	// remote offer.
	ErrNoPendingOffer = errors.New("no pending offer")
)

// Collaborator errors.
var (
	// ErrNoEngine indicates a media operation before the engine was
	// allocated or after disposal.
	ErrNoEngine = errors.New("no media engine")

	// ErrMediaEngine wraps failures from the media engine collaborator;
	// these always force termination of the current call.
	ErrMediaEngine = errors.New("media engine failure")

	// ErrReconnectExhausted indicates the bounded reconnect loop gave up.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)
