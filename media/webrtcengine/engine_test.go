package webrtcengine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilcomm/callkit/media"
)

type recordingObserver struct {
	mu           sync.Mutex
	candidates   []media.Candidate
	connectivity []media.Connectivity
	messages     [][]byte
	streams      []string
}

func (o *recordingObserver) OnIceCandidate(candidate media.Candidate) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.candidates = append(o.candidates, candidate)
}

func (o *recordingObserver) OnConnectivityChange(state media.Connectivity) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.connectivity = append(o.connectivity, state)
}

func (o *recordingObserver) OnDataChannelMessage(payload []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, payload)
}

func (o *recordingObserver) OnRemoteStream(streamID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streams = append(o.streams, streamID)
}

func TestFactoryRejectsNilObserver(t *testing.T) {
	factory, err := NewFactory(DefaultConfig())
	require.NoError(t, err)

	_, err = factory.NewEngine(nil, true)
	assert.Error(t, err)
}

func TestEngineProducesOffer(t *testing.T) {
	factory, err := NewFactory(DefaultConfig())
	require.NoError(t, err)

	engine, err := factory.NewEngine(&recordingObserver{}, true)
	require.NoError(t, err)
	defer engine.Dispose()

	assert.False(t, engine.ReadyForIce(), "no remote description yet")

	offer, err := engine.CreateOffer(false)
	require.NoError(t, err)
	assert.Equal(t, media.SDPOffer, offer.Kind)
	assert.Contains(t, offer.SDP, "m=audio")
	assert.Contains(t, offer.SDP, "m=video")
	assert.Contains(t, offer.SDP, "m=application", "the control channel must be negotiated")

	require.NoError(t, engine.SetLocalDescription(offer))
}

func TestEnginesNegotiate(t *testing.T) {
	factory, err := NewFactory(DefaultConfig())
	require.NoError(t, err)

	caller, err := factory.NewEngine(&recordingObserver{}, true)
	require.NoError(t, err)
	defer caller.Dispose()
	callee, err := factory.NewEngine(&recordingObserver{}, false)
	require.NoError(t, err)
	defer callee.Dispose()

	offer, err := caller.CreateOffer(false)
	require.NoError(t, err)
	require.NoError(t, caller.SetLocalDescription(offer))

	require.NoError(t, callee.SetRemoteDescription(offer))
	assert.True(t, callee.ReadyForIce(), "ready once the remote offer is applied")

	answer, err := callee.CreateAnswer(false)
	require.NoError(t, err)
	assert.Equal(t, media.SDPAnswer, answer.Kind)
	require.NoError(t, callee.SetLocalDescription(answer))

	require.NoError(t, caller.SetRemoteDescription(answer))
	assert.True(t, caller.ReadyForIce())
}

func TestSendControlBeforeOpen(t *testing.T) {
	factory, err := NewFactory(DefaultConfig())
	require.NoError(t, err)

	engine, err := factory.NewEngine(&recordingObserver{}, true)
	require.NoError(t, err)
	defer engine.Dispose()

	err = engine.SendControl([]byte(`{"video":true}`))
	assert.ErrorIs(t, err, ErrControlChannelClosed)
}

func TestDisposeIsIdempotent(t *testing.T) {
	factory, err := NewFactory(DefaultConfig())
	require.NoError(t, err)

	engine, err := factory.NewEngine(&recordingObserver{}, true)
	require.NoError(t, err)

	engine.Dispose()
	engine.Dispose()
}
