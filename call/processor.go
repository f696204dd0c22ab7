package call

import "github.com/sirupsen/logrus"

// transition describes the guard and output of one event. A nil from slice
// means the event is legal from every state.
type transition struct {
	from []State
	to   State
}

// transitions is the complete table. Any (state, event) pair not covered
// here is rejected; rejection is an expected outcome, not an error, because
// many call paths attempt transitions opportunistically.
var transitions = map[Event]transition{
	EventReceivePreOffer:    {from: []State{StateIdle}, to: StateRemotePreOffer},
	EventSendPreOffer:       {from: []State{StateIdle}, to: StateSendingPreOffer},
	EventReceiveOffer:       {from: []State{StateRemotePreOffer, StateReconnecting}, to: StateRemoteRinging},
	EventSendOffer:          {from: []State{StateSendingPreOffer}, to: StateLocalRinging},
	EventSendAnswer:         {from: []State{StateRemoteRinging}, to: StateSendingAnswer},
	EventReceiveAnswer:      {from: []State{StateLocalRinging, StateSendingOffer}, to: StateConnecting},
	EventConnect:            {from: []State{StateConnecting, StateSendingAnswer, StateReconnecting}, to: StateConnected},
	EventIceDisconnect:      {from: []State{StateConnected}, to: StateReconnecting},
	EventNetworkReconnect:   {from: []State{StateReconnecting}, to: StateSendingOffer},
	EventPrepareForNewOffer: {from: []State{StateReconnecting}, to: StateReconnecting},
	EventTimeOut: {from: []State{
		StateLocalRinging, StateRemoteRinging, StateSendingOffer,
		StateSendingAnswer, StateConnecting, StateReconnecting,
	}, to: StateTerminated},
	EventDeclineCall: {from: CanDeclineStates, to: StateTerminated},
	EventIgnoreCall:  {from: nil, to: StateTerminated},
	EventHangup:      {from: CanHangupStates, to: StateTerminated},
	EventError:       {from: nil, to: StateTerminated},
	EventCleanup:     {from: nil, to: StateIdle},
}

// StateProcessor is the pure state machine. It is not safe for concurrent
// use; every call site runs on the bridge's serial worker.
type StateProcessor struct {
	current State
}

// NewStateProcessor creates a processor starting in the given state.
func NewStateProcessor(initial State) *StateProcessor {
	return &StateProcessor{current: initial}
}

// Current returns the committed state.
func (p *StateProcessor) Current() State {
	return p.current
}

// Process attempts a transition. When the event is legal from the current
// state the new state is committed first and the side effect (if any) runs
// afterwards, so any code the side effect calls observes the new state. A
// rejected transition leaves the state untouched, skips the side effect,
// and returns false.
func (p *StateProcessor) Process(event Event, sideEffect func()) bool {
	t, ok := transitions[event]
	if !ok || (t.from != nil && !p.current.In(t.from...)) {
		logrus.WithFields(logrus.Fields{
			"function": "Process",
			"state":    p.current.String(),
			"event":    event.String(),
		}).Debug("Rejected state transition")
		return false
	}

	logrus.WithFields(logrus.Fields{
		"function": "Process",
		"from":     p.current.String(),
		"to":       t.to.String(),
		"event":    event.String(),
	}).Info("Call state transition")

	p.current = t.to
	if sideEffect != nil {
		sideEffect()
	}
	return true
}
