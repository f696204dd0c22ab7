package call

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilcomm/callkit/signaling"
)

type routerFixture struct {
	*bridgeFixture
	router       *Router
	callsEnabled bool
	approved     map[string]bool
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		bridgeFixture: newBridgeFixture(t, shortConfig()),
		callsEnabled:  true,
		approved:      map[string]bool{testRemoteParty: true},
	}
	router, err := NewRouter(shortConfig(), f.mgr, f.bridge, f.transport,
		ApproverFunc(func(party string) bool { return f.approved[party] }),
		func() bool { return f.callsEnabled })
	require.NoError(t, err)
	f.router = router
	return f
}

func (f *routerFixture) route(env *signaling.Envelope, sender string) {
	f.router.Route(signaling.Inbound{Envelope: env, Sender: sender})
	f.sync(func() {})
}

func TestRouterDispatchesPreOffer(t *testing.T) {
	f := newRouterFixture(t)

	f.route(signaling.NewPreOffer(uuid.New(), f.clock.Now()), testRemoteParty)
	assert.Equal(t, StateRemotePreOffer, f.state())
}

func TestRouterDropsSelfSentMessages(t *testing.T) {
	f := newRouterFixture(t)

	f.route(signaling.NewPreOffer(uuid.New(), f.clock.Now()), testLocalParty)
	assert.Equal(t, StateIdle, f.state(), "our own pre-offer echo must not ring")
}

func TestRouterSelfAnswerDismissesRingingCall(t *testing.T) {
	f := newRouterFixture(t)
	callID := f.ringIncoming(t)

	f.route(signaling.NewAnswer(callID, "v=0 answer", f.clock.Now()), testLocalParty)
	require.Eventually(t, func() bool {
		return f.state() == StateIdle
	}, time.Second, 5*time.Millisecond, "an answer from a linked device ends the ring here")
	assert.Empty(t, f.transport.sentOfType(signaling.TypeEndCall))
}

func TestRouterCallsDisabledRecordsMissed(t *testing.T) {
	f := newRouterFixture(t)
	f.callsEnabled = false

	f.route(signaling.NewPreOffer(uuid.New(), f.clock.Now()), testRemoteParty)
	assert.Equal(t, StateIdle, f.state())
	assert.Len(t, f.history.ofKind(HistoryMissed), 1,
		"a ring suppressed by policy still shows as missed")
	assert.Equal(t, 0, f.audio.incomingRings)
}

func TestRouterUnapprovedPreOfferDropped(t *testing.T) {
	f := newRouterFixture(t)

	f.route(signaling.NewPreOffer(uuid.New(), f.clock.Now()), "05dd-stranger")
	assert.Equal(t, StateIdle, f.state())
	assert.Empty(t, f.history.ofKind(HistoryMissed))
}

func TestRouterUnapprovedEndCallDropped(t *testing.T) {
	f := newRouterFixture(t)
	callID := f.ringIncoming(t)

	f.route(signaling.NewEndCall(callID, f.clock.Now()), "05dd-stranger")
	assert.Equal(t, StateRemoteRinging, f.state(),
		"an end-call from an unapproved party must not tear the call down")
}

func TestRouterStalePreOfferRecordsMissedWithoutRinging(t *testing.T) {
	f := newRouterFixture(t)

	sentAt := f.clock.Now().Add(-5 * time.Minute)
	f.route(signaling.NewPreOffer(uuid.New(), sentAt), testRemoteParty)
	assert.Equal(t, StateIdle, f.state())
	assert.Len(t, f.history.ofKind(HistoryMissed), 1,
		"a ring request abandoned by its caller shows as missed")
	assert.Equal(t, 0, f.audio.incomingRings)
}

func TestRouterVeryExpiredMessageDropped(t *testing.T) {
	f := newRouterFixture(t)

	sentAt := f.clock.Now().Add(-16 * time.Minute)
	f.route(signaling.NewPreOffer(uuid.New(), sentAt), testRemoteParty)
	assert.Equal(t, StateIdle, f.state())
	assert.Len(t, f.history.ofKind(HistoryMissed), 1)
}

func TestRouterMalformedCandidateBatchDropped(t *testing.T) {
	f := newRouterFixture(t)
	callID := f.ringIncoming(t)

	env := &signaling.Envelope{
		Type:            signaling.TypeIceCandidates,
		CallID:          callID,
		SDPs:            []string{"candidate:1", "candidate:2"},
		SDPMids:         []string{"0"},
		SDPMLineIndexes: []int{0, 0},
		SentAt:          f.clock.Now(),
	}
	f.route(env, testRemoteParty)

	f.sync(func() {})
	assert.Empty(t, f.mgr.sess.incomingIce, "uneven candidate arrays must not buffer")
}

func TestRouterEndCallForUnknownCallIgnored(t *testing.T) {
	f := newRouterFixture(t)
	f.ringIncoming(t)

	f.route(signaling.NewEndCall(uuid.New(), f.clock.Now()), testRemoteParty)
	assert.Equal(t, StateRemoteRinging, f.state(), "an end-call for another call changes nothing")
}

func TestRouterRunConsumesStream(t *testing.T) {
	f := newRouterFixture(t)
	go f.router.Run()
	defer f.router.Close()

	f.transport.inbound <- signaling.Inbound{
		Envelope: signaling.NewPreOffer(uuid.New(), f.clock.Now()),
		Sender:   testRemoteParty,
	}
	require.Eventually(t, func() bool {
		return f.state() == StateRemotePreOffer
	}, time.Second, 5*time.Millisecond)
}
