package call

import (
	"context"
	"sync"
	"time"

	"github.com/veilcomm/callkit/media"
	"github.com/veilcomm/callkit/signaling"
)

// mockClock is a controllable TimeProvider.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentEnvelope struct {
	env *signaling.Envelope
	to  string
}

// mockTransport records sends and exposes a controllable inbound queue.
type mockTransport struct {
	mu      sync.Mutex
	sent    []sentEnvelope
	sendErr error
	inbound chan signaling.Inbound
	once    sync.Once
}

func newMockTransport() *mockTransport {
	return &mockTransport{inbound: make(chan signaling.Inbound, 16)}
}

func (t *mockTransport) Send(_ context.Context, env *signaling.Envelope, to string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sent = append(t.sent, sentEnvelope{env: env, to: to})
	return nil
}

func (t *mockTransport) Receive() <-chan signaling.Inbound { return t.inbound }

func (t *mockTransport) Close() error {
	t.once.Do(func() { close(t.inbound) })
	return nil
}

func (t *mockTransport) setSendErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErr = err
}

func (t *mockTransport) sentOfType(typ signaling.Type) []sentEnvelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []sentEnvelope
	for _, s := range t.sent {
		if s.env.Type == typ {
			out = append(out, s)
		}
	}
	return out
}

// mockEngine is an inert media.Engine recording every interaction.
type mockEngine struct {
	mu         sync.Mutex
	localDesc  *media.SessionDescription
	remoteDesc *media.SessionDescription
	candidates []media.Candidate
	control    [][]byte
	audio      bool
	video      bool
	offerCount int
	restarts   int
	disposals  int
	offerErr   error
	remoteErr  error
	controlErr error
}

func (e *mockEngine) CreateOffer(iceRestart bool) (media.SessionDescription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.offerErr != nil {
		return media.SessionDescription{}, e.offerErr
	}
	e.offerCount++
	if iceRestart {
		e.restarts++
	}
	return media.SessionDescription{Kind: media.SDPOffer, SDP: "v=0 offer"}, nil
}

func (e *mockEngine) CreateAnswer(bool) (media.SessionDescription, error) {
	return media.SessionDescription{Kind: media.SDPAnswer, SDP: "v=0 answer"}, nil
}

func (e *mockEngine) SetLocalDescription(desc media.SessionDescription) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.localDesc = &desc
	return nil
}

func (e *mockEngine) SetRemoteDescription(desc media.SessionDescription) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.remoteErr != nil {
		return e.remoteErr
	}
	e.remoteDesc = &desc
	return nil
}

func (e *mockEngine) AddIceCandidate(candidate media.Candidate) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.candidates = append(e.candidates, candidate)
	return nil
}

func (e *mockEngine) ReadyForIce() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remoteDesc != nil
}

func (e *mockEngine) SetAudioEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audio = enabled
}

func (e *mockEngine) SetVideoEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.video = enabled
}

func (e *mockEngine) FlipCamera() error { return nil }

func (e *mockEngine) SendControl(payload []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.controlErr != nil {
		return e.controlErr
	}
	e.control = append(e.control, payload)
	return nil
}

func (e *mockEngine) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disposals++
}

func (e *mockEngine) disposed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposals
}

func (e *mockEngine) addedCandidates() []media.Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]media.Candidate(nil), e.candidates...)
}

// mockFactory hands out mockEngines and remembers the observer they were
// wired to.
type mockFactory struct {
	mu       sync.Mutex
	engines  []*mockEngine
	observer media.Observer
	err      error
}

func (f *mockFactory) NewEngine(observer media.Observer, _ bool) (media.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	e := &mockEngine{}
	f.engines = append(f.engines, e)
	f.observer = observer
	return e, nil
}

func (f *mockFactory) lastEngine() *mockEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.engines) == 0 {
		return nil
	}
	return f.engines[len(f.engines)-1]
}

type historyRecord struct {
	party string
	kind  HistoryKind
	at    time.Time
}

type mockHistory struct {
	mu      sync.Mutex
	records []historyRecord
}

func (h *mockHistory) RecordCall(remoteParty string, kind HistoryKind, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, historyRecord{party: remoteParty, kind: kind, at: at})
}

func (h *mockHistory) ofKind(kind HistoryKind) []historyRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []historyRecord
	for _, r := range h.records {
		if r.kind == kind {
			out = append(out, r)
		}
	}
	return out
}

type mockAudio struct {
	mu             sync.Mutex
	incomingRings  int
	outgoingRings  int
	silences       int
	communications int
	stops          []bool
	device         AudioDevice
}

func (a *mockAudio) StartIncomingRinger() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.incomingRings++
}

func (a *mockAudio) StartOutgoingRinger() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outgoingRings++
}

func (a *mockAudio) SilenceRinger() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.silences++
}

func (a *mockAudio) StartCommunication() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.communications++
}

func (a *mockAudio) Stop(wasOutgoing bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stops = append(a.stops, wasOutgoing)
}

func (a *mockAudio) SelectDevice(device AudioDevice) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.device = device
}

func (a *mockAudio) CurrentDevice() AudioDevice {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.device
}

type mockNotifier struct {
	mu          sync.Mutex
	incoming    []string
	ongoing     []string
	dismissals  int
	incomingErr error
}

func (n *mockNotifier) PresentIncoming(remoteParty string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.incomingErr != nil {
		return n.incomingErr
	}
	n.incoming = append(n.incoming, remoteParty)
	return nil
}

func (n *mockNotifier) PresentOngoing(remoteParty, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ongoing = append(n.ongoing, remoteParty)
	return nil
}

func (n *mockNotifier) Dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dismissals++
}

func (n *mockNotifier) dismissed() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dismissals
}

// inlineExecutor runs posted tasks synchronously, for manager-only tests.
type inlineExecutor struct{}

func (inlineExecutor) Post(task func()) { task() }
