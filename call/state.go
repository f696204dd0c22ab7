package call

import "fmt"

// State is one position in the call state machine. StateIdle is both the
// initial and the terminal resting state; every other state eventually
// returns to it through StateTerminated and cleanup.
type State uint8

const (
	// StateIdle indicates no call activity.
	StateIdle State = iota
	// StateSendingPreOffer indicates our pre-offer announcement is in flight.
	StateSendingPreOffer
	// StateRemotePreOffer indicates we received a pre-offer and are deciding.
	StateRemotePreOffer
	// StateLocalRinging indicates our offer was sent and the far end is ringing.
	StateLocalRinging
	// StateRemoteRinging indicates we are being rung with a full offer pending.
	StateRemoteRinging
	// StateSendingOffer indicates a renegotiation offer is in flight.
	StateSendingOffer
	// StateSendingAnswer indicates our answer is in flight.
	StateSendingAnswer
	// StateConnecting indicates descriptions are exchanged and ICE is running.
	StateConnecting
	// StateConnected indicates a working media path.
	StateConnected
	// StateReconnecting indicates the media path dropped and recovery is underway.
	StateReconnecting
	// StateTerminated indicates the call ended and awaits cleanup.
	StateTerminated
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSendingPreOffer:
		return "SendingPreOffer"
	case StateRemotePreOffer:
		return "RemotePreOffer"
	case StateLocalRinging:
		return "LocalRinging"
	case StateRemoteRinging:
		return "RemoteRinging"
	case StateSendingOffer:
		return "SendingOffer"
	case StateSendingAnswer:
		return "SendingAnswer"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return "Reconnecting"
	case StateTerminated:
		return "Terminated"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// In reports whether s is one of the given states.
func (s State) In(states ...State) bool {
	for _, candidate := range states {
		if s == candidate {
			return true
		}
	}
	return false
}

// AllStates lists every state, in declaration order.
var AllStates = []State{
	StateIdle, StateSendingPreOffer, StateRemotePreOffer, StateLocalRinging,
	StateRemoteRinging, StateSendingOffer, StateSendingAnswer, StateConnecting,
	StateConnected, StateReconnecting, StateTerminated,
}

// Named state subsets referenced by call policy.
var (
	// OutgoingStates are the states of a call we initiated before the
	// remote party answers.
	OutgoingStates = []State{StateSendingPreOffer, StateLocalRinging}

	// CanDeclineStates are the ringing states in which a decline is legal.
	CanDeclineStates = []State{StateRemotePreOffer, StateRemoteRinging}

	// CanHangupStates are every state except Idle and Terminated.
	CanHangupStates = []State{
		StateSendingPreOffer, StateRemotePreOffer, StateLocalRinging,
		StateRemoteRinging, StateSendingOffer, StateSendingAnswer,
		StateConnecting, StateConnected, StateReconnecting,
	}

	// PendingConnectionStates are the states with an offer or answer in
	// flight, including reconnection.
	PendingConnectionStates = []State{
		StateSendingPreOffer, StateRemotePreOffer, StateLocalRinging,
		StateRemoteRinging, StateSendingOffer, StateSendingAnswer,
		StateConnecting, StateReconnecting,
	}

	// CanReceiveIceStates are the states in which remote ICE candidates
	// are meaningful.
	CanReceiveIceStates = []State{
		StateLocalRinging, StateRemoteRinging, StateSendingOffer,
		StateSendingAnswer, StateConnecting, StateConnected, StateReconnecting,
	}
)

// Event is one input accepted by the state processor.
type Event uint8

const (
	// EventReceivePreOffer records an inbound pre-offer announcement.
	EventReceivePreOffer Event = iota
	// EventSendPreOffer records dispatch of our pre-offer.
	EventSendPreOffer
	// EventReceiveOffer records an inbound full offer.
	EventReceiveOffer
	// EventSendOffer records dispatch of our offer.
	EventSendOffer
	// EventSendAnswer records dispatch of our answer.
	EventSendAnswer
	// EventReceiveAnswer records an inbound answer.
	EventReceiveAnswer
	// EventConnect records the media path reaching connected.
	EventConnect
	// EventIceDisconnect records the media path dropping mid-call.
	EventIceDisconnect
	// EventPrepareForNewOffer arms the non-initiator to await a
	// renegotiation offer.
	EventPrepareForNewOffer
	// EventNetworkReconnect starts an ICE-restart renegotiation.
	EventNetworkReconnect
	// EventTimeOut records an answer or reconnect deadline expiring.
	EventTimeOut
	// EventDeclineCall records the user declining a ringing call.
	EventDeclineCall
	// EventIgnoreCall records the user dismissing a call without
	// notifying the caller.
	EventIgnoreCall
	// EventHangup records either party ending the call.
	EventHangup
	// EventError records an unrecoverable failure.
	EventError
	// EventCleanup resets the machine to idle after teardown.
	EventCleanup
)

// String returns a human-readable event name.
func (e Event) String() string {
	switch e {
	case EventReceivePreOffer:
		return "ReceivePreOffer"
	case EventSendPreOffer:
		return "SendPreOffer"
	case EventReceiveOffer:
		return "ReceiveOffer"
	case EventSendOffer:
		return "SendOffer"
	case EventSendAnswer:
		return "SendAnswer"
	case EventReceiveAnswer:
		return "ReceiveAnswer"
	case EventConnect:
		return "Connect"
	case EventIceDisconnect:
		return "IceDisconnect"
	case EventPrepareForNewOffer:
		return "PrepareForNewOffer"
	case EventNetworkReconnect:
		return "NetworkReconnect"
	case EventTimeOut:
		return "TimeOut"
	case EventDeclineCall:
		return "DeclineCall"
	case EventIgnoreCall:
		return "IgnoreCall"
	case EventHangup:
		return "Hangup"
	case EventError:
		return "Error"
	case EventCleanup:
		return "Cleanup"
	default:
		return fmt.Sprintf("Event(%d)", uint8(e))
	}
}
