package call

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStateProcessorFullTable sweeps every (state, event) pair and checks
// acceptance against the documented machine.
func TestStateProcessorFullTable(t *testing.T) {
	legal := map[Event][]State{
		EventReceivePreOffer:    {StateIdle},
		EventSendPreOffer:       {StateIdle},
		EventReceiveOffer:       {StateRemotePreOffer, StateReconnecting},
		EventSendOffer:          {StateSendingPreOffer},
		EventSendAnswer:         {StateRemoteRinging},
		EventReceiveAnswer:      {StateLocalRinging, StateSendingOffer},
		EventConnect:            {StateConnecting, StateSendingAnswer, StateReconnecting},
		EventIceDisconnect:      {StateConnected},
		EventNetworkReconnect:   {StateReconnecting},
		EventPrepareForNewOffer: {StateReconnecting},
		EventTimeOut: {
			StateLocalRinging, StateRemoteRinging, StateSendingOffer,
			StateSendingAnswer, StateConnecting, StateReconnecting,
		},
		EventDeclineCall: {StateRemotePreOffer, StateRemoteRinging},
		EventIgnoreCall:  AllStates,
		EventHangup: {
			StateSendingPreOffer, StateRemotePreOffer, StateLocalRinging,
			StateRemoteRinging, StateSendingOffer, StateSendingAnswer,
			StateConnecting, StateConnected, StateReconnecting,
		},
		EventError:   AllStates,
		EventCleanup: AllStates,
	}
	target := map[Event]State{
		EventReceivePreOffer:    StateRemotePreOffer,
		EventSendPreOffer:       StateSendingPreOffer,
		EventReceiveOffer:       StateRemoteRinging,
		EventSendOffer:          StateLocalRinging,
		EventSendAnswer:         StateSendingAnswer,
		EventReceiveAnswer:      StateConnecting,
		EventConnect:            StateConnected,
		EventIceDisconnect:      StateReconnecting,
		EventNetworkReconnect:   StateSendingOffer,
		EventPrepareForNewOffer: StateReconnecting,
		EventTimeOut:            StateTerminated,
		EventDeclineCall:        StateTerminated,
		EventIgnoreCall:         StateTerminated,
		EventHangup:             StateTerminated,
		EventError:              StateTerminated,
		EventCleanup:            StateIdle,
	}

	for event, states := range legal {
		for _, state := range AllStates {
			proc := NewStateProcessor(state)
			accepted := proc.Process(event, nil)
			if state.In(states...) {
				assert.True(t, accepted, "%s from %s should be accepted", event, state)
				assert.Equal(t, target[event], proc.Current(),
					"%s from %s should land in %s", event, state, target[event])
			} else {
				assert.False(t, accepted, "%s from %s should be rejected", event, state)
				assert.Equal(t, state, proc.Current(),
					"rejected %s must not move the machine", event)
			}
		}
	}
}

func TestStateProcessorSideEffectRunsAfterCommit(t *testing.T) {
	proc := NewStateProcessor(StateIdle)

	var observed State
	ok := proc.Process(EventSendPreOffer, func() {
		observed = proc.Current()
	})
	require.True(t, ok)
	assert.Equal(t, StateSendingPreOffer, observed,
		"side effect must observe the committed state")
}

func TestStateProcessorRejectionSkipsSideEffect(t *testing.T) {
	proc := NewStateProcessor(StateConnected)

	ran := false
	ok := proc.Process(EventSendAnswer, func() { ran = true })
	require.False(t, ok)
	assert.False(t, ran, "rejected transition must not run the side effect")
	assert.Equal(t, StateConnected, proc.Current())
}

func TestStateProcessorHappyPaths(t *testing.T) {
	t.Run("outgoing call", func(t *testing.T) {
		proc := NewStateProcessor(StateIdle)
		for _, event := range []Event{
			EventSendPreOffer, EventSendOffer, EventReceiveAnswer,
			EventConnect, EventHangup, EventCleanup,
		} {
			require.True(t, proc.Process(event, nil), "event %s", event)
		}
		assert.Equal(t, StateIdle, proc.Current())
	})

	t.Run("incoming call", func(t *testing.T) {
		proc := NewStateProcessor(StateIdle)
		for _, event := range []Event{
			EventReceivePreOffer, EventReceiveOffer, EventSendAnswer,
			EventConnect, EventHangup, EventCleanup,
		} {
			require.True(t, proc.Process(event, nil), "event %s", event)
		}
		assert.Equal(t, StateIdle, proc.Current())
	})

	t.Run("initiator reconnect cycle", func(t *testing.T) {
		proc := NewStateProcessor(StateConnected)
		require.True(t, proc.Process(EventIceDisconnect, nil))
		require.True(t, proc.Process(EventNetworkReconnect, nil))
		assert.Equal(t, StateSendingOffer, proc.Current())
		require.True(t, proc.Process(EventReceiveAnswer, nil))
		require.True(t, proc.Process(EventConnect, nil))
		assert.Equal(t, StateConnected, proc.Current())
	})

	t.Run("callee reconnect cycle", func(t *testing.T) {
		proc := NewStateProcessor(StateConnected)
		require.True(t, proc.Process(EventIceDisconnect, nil))
		require.True(t, proc.Process(EventPrepareForNewOffer, nil))
		assert.Equal(t, StateReconnecting, proc.Current())
		require.True(t, proc.Process(EventReceiveOffer, nil))
		require.True(t, proc.Process(EventSendAnswer, nil))
		require.True(t, proc.Process(EventConnect, nil))
		assert.Equal(t, StateConnected, proc.Current())
	})
}
