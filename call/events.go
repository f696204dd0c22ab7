package call

import "fmt"

// UIState is the user-facing call phase published alongside the machine
// state. Failures surface here as terminal phases, never as raw errors.
type UIState uint8

const (
	// UIInitializing is the resting phase before and after calls.
	UIInitializing UIState = iota
	// UIPreOfferOutgoing indicates our call announcement is on its way.
	UIPreOfferOutgoing
	// UIPreOfferIncoming indicates someone is calling, offer pending.
	UIPreOfferIncoming
	// UIOfferOutgoing indicates our offer was dispatched.
	UIOfferOutgoing
	// UIOfferIncoming indicates the full offer arrived and we are ringing.
	UIOfferIncoming
	// UIAnswerOutgoing indicates the remote answer arrived.
	UIAnswerOutgoing
	// UIAnswerIncoming indicates we accepted and our answer is on its way.
	UIAnswerIncoming
	// UISendingIce indicates locally gathered candidates are being batched.
	UISendingIce
	// UIHandlingIce indicates remote candidates are being applied.
	UIHandlingIce
	// UIConnected indicates a live call.
	UIConnected
	// UIReconnecting indicates the media path dropped and recovery runs.
	UIReconnecting
	// UIDisconnected indicates the call ended normally.
	UIDisconnected
	// UINetworkFailure indicates the call ended due to a transport or
	// media failure.
	UINetworkFailure
	// UIRecipientUnavailable indicates the far end ended the call while
	// it was still ringing.
	UIRecipientUnavailable
)

// String returns a human-readable phase name.
func (u UIState) String() string {
	switch u {
	case UIInitializing:
		return "initializing"
	case UIPreOfferOutgoing:
		return "pre-offer-outgoing"
	case UIPreOfferIncoming:
		return "pre-offer-incoming"
	case UIOfferOutgoing:
		return "offer-outgoing"
	case UIOfferIncoming:
		return "offer-incoming"
	case UIAnswerOutgoing:
		return "answer-outgoing"
	case UIAnswerIncoming:
		return "answer-incoming"
	case UISendingIce:
		return "sending-ice"
	case UIHandlingIce:
		return "handling-ice"
	case UIConnected:
		return "connected"
	case UIReconnecting:
		return "reconnecting"
	case UIDisconnected:
		return "disconnected"
	case UINetworkFailure:
		return "network-failure"
	case UIRecipientUnavailable:
		return "recipient-unavailable"
	default:
		return fmt.Sprintf("ui(%d)", uint8(u))
	}
}

// VideoState carries the three video flags observed by the UI layer.
type VideoState struct {
	// Swapped reports whether the local and remote renderers traded places.
	Swapped bool
	// UserEnabled reports whether our camera feed is live.
	UserEnabled bool
	// RemoteEnabled reports whether the far end's camera feed is live.
	RemoteEnabled bool
}

// Snapshot is one immutable view of the session published on every state
// change. Observers never read the session directly.
type Snapshot struct {
	State        State
	UI           UIState
	RemoteParty  string
	AudioEnabled bool
	Video        VideoState
}

// SnapshotObserver receives snapshots on the bridge worker. Observers must
// not block and must not call back into the manager synchronously.
type SnapshotObserver func(Snapshot)
