package call

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/veilcomm/callkit/media"
	"github.com/veilcomm/callkit/signaling"
)

// controlMessage is the JSON payload exchanged over the in-call control
// channel: video enablement updates and data-channel hangups.
type controlMessage struct {
	Video  *bool `json:"video,omitempty"`
	Hangup *bool `json:"hangup,omitempty"`
}

// Manager owns the single call session: identity, remote party, media
// handle, enablement flags, timestamps, and the pending ICE queues. Every
// public operation validates its transition through the state processor
// before mutating the session, and every state change is published as a
// snapshot so UI and audio observers never read the session directly.
//
// The Manager carries no internal locking. All methods except OnSnapshot
// must run on the bridge worker.
type Manager struct {
	cfg        Config
	clock      TimeProvider
	localParty string

	proc *StateProcessor
	sess session
	ui   UIState

	transport signaling.Transport
	engines   media.Factory
	history   HistoryStore
	audio     AudioRouter

	iceDebounce *debouncer

	// Wired by the bridge: the serial worker, the engine observer that
	// re-posts callbacks onto it, and the hook for failed critical sends.
	exec           Executor
	engineObserver media.Observer
	onSendFailure  func(error)

	obsMu     sync.Mutex
	observers []SnapshotObserver
}

// NewManager creates a call manager. localParty is our own address on the
// signaling transport, used to suppress self-directed records and detect
// calls answered on a linked device.
func NewManager(cfg Config, localParty string, transport signaling.Transport, engines media.Factory, history HistoryStore, audio AudioRouter) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if transport == nil {
		return nil, errors.New("signaling transport cannot be nil")
	}
	if engines == nil {
		return nil, errors.New("media engine factory cannot be nil")
	}
	if history == nil {
		return nil, errors.New("history store cannot be nil")
	}
	if audio == nil {
		return nil, errors.New("audio router cannot be nil")
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewManager",
		"local_party": localParty,
	}).Info("Creating call manager")

	return &Manager{
		cfg:         cfg,
		clock:       DefaultTimeProvider{},
		localParty:  localParty,
		proc:        NewStateProcessor(StateIdle),
		ui:          UIInitializing,
		transport:   transport,
		engines:     engines,
		history:     history,
		audio:       audio,
		iceDebounce: newDebouncer(cfg.IceDebounceWindow),
	}, nil
}

// SetTimeProvider overrides the wall clock, for deterministic tests.
func (m *Manager) SetTimeProvider(clock TimeProvider) {
	if clock != nil {
		m.clock = clock
	}
}

// bind wires the manager to its serial worker. Called once by NewBridge.
func (m *Manager) bind(exec Executor, observer media.Observer, onSendFailure func(error)) {
	m.exec = exec
	m.engineObserver = observer
	m.onSendFailure = onSendFailure
}

// OnSnapshot registers an observer for session snapshots. Safe to call
// from any goroutine; observers run on the bridge worker.
func (m *Manager) OnSnapshot(fn SnapshotObserver) {
	if fn == nil {
		return
	}
	m.obsMu.Lock()
	m.observers = append(m.observers, fn)
	m.obsMu.Unlock()
}

func (m *Manager) snapshot() Snapshot {
	return Snapshot{
		State:        m.proc.Current(),
		UI:           m.ui,
		RemoteParty:  m.sess.remoteParty,
		AudioEnabled: m.sess.audioEnabled,
		Video:        m.sess.video,
	}
}

func (m *Manager) publish() {
	snap := m.snapshot()
	m.obsMu.Lock()
	observers := make([]SnapshotObserver, len(m.observers))
	copy(observers, m.observers)
	m.obsMu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}

// postUI updates the user-facing phase and publishes a snapshot.
func (m *Manager) postUI(ui UIState) {
	logrus.WithFields(logrus.Fields{
		"function": "postUI",
		"ui_state": ui.String(),
	}).Debug("Posting UI state")
	m.ui = ui
	m.publish()
}

// CurrentState returns the committed machine state.
func (m *Manager) CurrentState() State { return m.proc.Current() }

// CurrentUI returns the published user-facing phase.
func (m *Manager) CurrentUI() UIState { return m.ui }

// CallID returns the live call identity, if any.
func (m *Manager) CallID() (uuid.UUID, bool) {
	if m.sess.id == nil {
		return uuid.Nil, false
	}
	return *m.sess.id, true
}

// RemoteParty returns the live session's remote party, if any.
func (m *Manager) RemoteParty() string { return m.sess.remoteParty }

// IsIdle reports whether no call activity exists.
func (m *Manager) IsIdle() bool { return m.proc.Current() == StateIdle }

// IsPreOffer reports whether an inbound pre-offer is pending a decision.
func (m *Manager) IsPreOffer() bool { return m.proc.Current() == StateRemotePreOffer }

// IsBusy reports whether an inbound message for callID collides with a
// different live call.
func (m *Manager) IsBusy(callID uuid.UUID) bool {
	return !m.sess.matches(callID) && m.proc.Current() != StateIdle
}

// IsSelf reports whether the given party is our own address.
func (m *Manager) IsSelf(party string) bool { return party == m.localParty }

// IsInitiator reports whether we created the first offer of this call.
// The initiator drives renegotiation after an ICE disconnect.
func (m *Manager) IsInitiator() bool { return m.sess.initiator }

// HasPendingOffer reports whether a remote offer awaits an answer.
func (m *Manager) HasPendingOffer() bool { return m.sess.pendingOfferSDP != "" }

// PendingOfferAt returns the remote offer's send timestamp.
func (m *Manager) PendingOfferAt() time.Time { return m.sess.pendingOfferAt }

// PreOffer returns the pending pre-offer record, if any.
func (m *Manager) PreOffer() *PreOfferRecord { return m.sess.preOffer }

// BeginOutgoingCall mints a call identity, allocates the media engine,
// announces the call with a pre-offer, and dispatches the offer. Only
// legal from Idle. Media engine failures leave the state committed; the
// bridge converts the returned error into a forced termination.
func (m *Manager) BeginOutgoingCall(remoteParty string) (uuid.UUID, error) {
	if m.proc.Current() != StateIdle {
		return uuid.Nil, ErrAlreadyInCall
	}

	callID := uuid.New()
	logrus.WithFields(logrus.Fields{
		"function":     "BeginOutgoingCall",
		"call_id":      callID,
		"remote_party": remoteParty,
	}).Info("Starting outgoing call")

	var setupErr error
	m.proc.Process(EventSendPreOffer, func() {
		id := callID
		m.sess.id = &id
		m.sess.remoteParty = remoteParty
		m.sess.initiator = true
		m.postUI(UIPreOfferOutgoing)

		engine, err := m.engines.NewEngine(m.engineObserver, true)
		if err != nil {
			setupErr = fmt.Errorf("%w: allocate engine: %v", ErrMediaEngine, err)
			return
		}
		m.sess.engine = engine
		m.sess.audioEnabled = true
		engine.SetAudioEnabled(true)

		m.audio.StartOutgoingRinger()
		m.history.RecordCall(remoteParty, HistoryOutgoing, m.clock.Now())
		m.sendSignal(signaling.NewPreOffer(callID, m.clock.Now()), remoteParty, true)
	})
	if setupErr != nil {
		return uuid.Nil, setupErr
	}

	var offerErr error
	m.proc.Process(EventSendOffer, func() {
		desc, err := m.sess.engine.CreateOffer(false)
		if err != nil {
			offerErr = fmt.Errorf("%w: create offer: %v", ErrMediaEngine, err)
			return
		}
		if err := m.sess.engine.SetLocalDescription(desc); err != nil {
			offerErr = fmt.Errorf("%w: set local description: %v", ErrMediaEngine, err)
			return
		}
		m.postUI(UIOfferOutgoing)
		m.sendSignal(signaling.NewOffer(callID, desc.SDP, m.clock.Now()), remoteParty, true)
	})
	if offerErr != nil {
		return uuid.Nil, offerErr
	}
	return callID, nil
}

// OnPreOffer records an inbound pre-offer announcement and starts ringing.
// Only legal from Idle, which also gives pre-offers first-wins semantics:
// a second announcement while one is pending is simply rejected.
func (m *Manager) OnPreOffer(callID uuid.UUID, remoteParty string) error {
	ok := m.proc.Process(EventReceivePreOffer, func() {
		logrus.WithFields(logrus.Fields{
			"function":     "OnPreOffer",
			"call_id":      callID,
			"remote_party": remoteParty,
		}).Info("Incoming call announced, ringing")
		id := callID
		m.sess.id = &id
		m.sess.remoteParty = remoteParty
		m.sess.preOffer = &PreOfferRecord{CallID: callID, RemoteParty: remoteParty}
		m.sess.audioEnabled = true
		m.postUI(UIPreOfferIncoming)
		m.audio.StartIncomingRinger()
	})
	if !ok {
		return ErrIllegalTransition
	}
	return nil
}

// OnIncomingRing stores the full offer for a previously announced call so
// the user can answer it. The offer must match the pending pre-offer.
func (m *Manager) OnIncomingRing(callID uuid.UUID, remoteParty, sdp string, sentAt time.Time) error {
	if record := m.sess.preOffer; record != nil {
		if record.CallID != callID || record.RemoteParty != remoteParty {
			logrus.WithFields(logrus.Fields{
				"function": "OnIncomingRing",
				"call_id":  callID,
			}).Warn("Incoming offer does not match the pending pre-offer")
			return ErrIdentityMismatch
		}
	}

	ok := m.proc.Process(EventReceiveOffer, func() {
		id := callID
		m.sess.id = &id
		m.sess.remoteParty = remoteParty
		m.sess.pendingOfferSDP = sdp
		m.sess.pendingOfferAt = sentAt
		m.sess.preOffer = nil
		m.sess.outgoingIce = nil
		m.sess.incomingIce = nil
		m.postUI(UIOfferIncoming)
	})
	if !ok {
		return ErrIllegalTransition
	}
	return nil
}

// AcceptIncomingCall answers the pending offer: allocates the engine,
// applies the remote description, creates and dispatches our answer, and
// flushes any buffered remote candidates.
func (m *Manager) AcceptIncomingCall() error {
	if m.sess.id == nil {
		return ErrNoActiveCall
	}
	if m.sess.pendingOfferSDP == "" {
		return ErrNoPendingOffer
	}
	callID := *m.sess.id
	remoteParty := m.sess.remoteParty

	var acceptErr error
	ok := m.proc.Process(EventSendAnswer, func() {
		m.audio.SilenceRinger()
		m.postUI(UIAnswerIncoming)

		engine, err := m.engines.NewEngine(m.engineObserver, false)
		if err != nil {
			acceptErr = fmt.Errorf("%w: allocate engine: %v", ErrMediaEngine, err)
			return
		}
		m.sess.engine = engine
		engine.SetAudioEnabled(m.sess.audioEnabled)

		offer := media.SessionDescription{Kind: media.SDPOffer, SDP: m.sess.pendingOfferSDP}
		if err := engine.SetRemoteDescription(offer); err != nil {
			acceptErr = fmt.Errorf("%w: set remote offer: %v", ErrMediaEngine, err)
			return
		}
		answer, err := engine.CreateAnswer(false)
		if err != nil {
			acceptErr = fmt.Errorf("%w: create answer: %v", ErrMediaEngine, err)
			return
		}
		if err := engine.SetLocalDescription(answer); err != nil {
			acceptErr = fmt.Errorf("%w: set local answer: %v", ErrMediaEngine, err)
			return
		}

		m.history.RecordCall(remoteParty, HistoryIncoming, m.clock.Now())
		m.drainIncomingIce()
		m.sess.pendingOfferSDP = ""
		m.sess.pendingOfferAt = time.Time{}
		m.sendSignal(signaling.NewAnswer(callID, answer.SDP, m.clock.Now()), remoteParty, true)
	})
	if !ok {
		return ErrIllegalTransition
	}
	return acceptErr
}

// OnNewOffer handles a renegotiation offer for the live call while
// reconnecting: applies it, answers with an ICE restart, and flushes
// buffered candidates.
func (m *Manager) OnNewOffer(callID uuid.UUID, remoteParty, sdp string) error {
	if !m.sess.matches(callID) {
		return ErrIdentityMismatch
	}
	if remoteParty != m.sess.remoteParty {
		return ErrPartyMismatch
	}
	engine := m.sess.engine
	if engine == nil {
		return ErrNoEngine
	}

	reconnected := m.proc.Process(EventReceiveOffer, nil) && m.proc.Process(EventSendAnswer, nil)
	if !reconnected {
		return ErrIllegalTransition
	}

	logrus.WithFields(logrus.Fields{
		"function": "OnNewOffer",
		"call_id":  callID,
	}).Info("Handling renegotiation offer, restarting ice session")

	if err := engine.SetRemoteDescription(media.SessionDescription{Kind: media.SDPOffer, SDP: sdp}); err != nil {
		return fmt.Errorf("%w: set remote offer: %v", ErrMediaEngine, err)
	}
	answer, err := engine.CreateAnswer(true)
	if err != nil {
		return fmt.Errorf("%w: create restart answer: %v", ErrMediaEngine, err)
	}
	if err := engine.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("%w: set local answer: %v", ErrMediaEngine, err)
	}
	m.drainIncomingIce()
	m.sendSignal(signaling.NewAnswer(callID, answer.SDP, m.clock.Now()), remoteParty, true)
	return nil
}

// OnAnswerReceived applies the remote answer for the call we are dialing,
// then flushes buffered remote candidates and schedules the outgoing
// batch. Mismatched identity or party is rejected without state change.
func (m *Manager) OnAnswerReceived(callID uuid.UUID, remoteParty, sdp string) error {
	if !m.sess.matches(callID) || remoteParty != m.sess.remoteParty {
		logrus.WithFields(logrus.Fields{
			"function": "OnAnswerReceived",
			"call_id":  callID,
		}).Warn("Got answer for a call we are not currently dialing")
		return ErrIdentityMismatch
	}

	var applyErr error
	ok := m.proc.Process(EventReceiveAnswer, func() {
		m.postUI(UIAnswerOutgoing)
		engine := m.sess.engine
		if engine == nil {
			applyErr = ErrNoEngine
			return
		}
		if err := engine.SetRemoteDescription(media.SessionDescription{Kind: media.SDPAnswer, SDP: sdp}); err != nil {
			applyErr = fmt.Errorf("%w: set remote answer: %v", ErrMediaEngine, err)
			return
		}
		m.drainIncomingIce()
		m.queueOutgoingIce()
	})
	if !ok {
		return ErrIllegalTransition
	}
	return applyErr
}

// OnRemoteIceCandidates forwards remote candidates to the engine when it
// is ready for them, and buffers them otherwise. ICE can legitimately
// arrive before offer/answer signaling completes.
func (m *Manager) OnRemoteIceCandidates(callID uuid.UUID, candidates []media.Candidate) {
	if !m.sess.matches(callID) {
		logrus.WithFields(logrus.Fields{
			"function": "OnRemoteIceCandidates",
			"call_id":  callID,
		}).Warn("Got remote ice candidates for a call that is not active")
		return
	}
	if m.ui != UIConnected {
		m.postUI(UIHandlingIce)
	}

	engine := m.sess.engine
	if engine != nil && engine.ReadyForIce() && m.proc.Current() != StateReconnecting {
		for _, candidate := range candidates {
			if err := engine.AddIceCandidate(candidate); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "OnRemoteIceCandidates",
					"error":    err.Error(),
				}).Warn("Failed to add remote ice candidate")
			}
		}
		return
	}
	m.sess.incomingIce = append(m.sess.incomingIce, candidates...)
}

// OnLocalIceCandidate appends a locally gathered candidate to the pending
// batch and arms the debouncer once the engine can usefully signal.
func (m *Manager) OnLocalIceCandidate(candidate media.Candidate) {
	if m.sess.id == nil || m.sess.remoteParty == "" {
		return
	}
	m.sess.outgoingIce = append(m.sess.outgoingIce, candidate)
	if m.sess.engine == nil || !m.sess.engine.ReadyForIce() {
		return
	}
	m.queueOutgoingIce()
}

// queueOutgoingIce (re)arms the quiescence window for the outgoing batch.
// The flush re-checks the call identity on the worker, so batches for a
// superseded call are dropped, not sent.
func (m *Manager) queueOutgoingIce() {
	expectedID := *m.sess.id
	expectedParty := m.sess.remoteParty
	m.postUI(UISendingIce)
	m.iceDebounce.Publish(func() {
		m.exec.Post(func() {
			m.flushOutgoingIce(expectedID, expectedParty)
		})
	})
}

func (m *Manager) flushOutgoingIce(expectedID uuid.UUID, expectedParty string) {
	if !m.sess.matches(expectedID) || m.sess.remoteParty != expectedParty {
		logrus.WithFields(logrus.Fields{
			"function": "flushOutgoingIce",
			"call_id":  expectedID,
		}).Debug("Discarding ice batch for superseded call")
		return
	}
	if len(m.sess.outgoingIce) == 0 {
		return
	}
	batch := m.sess.outgoingIce
	m.sess.outgoingIce = nil

	logrus.WithFields(logrus.Fields{
		"function":   "flushOutgoingIce",
		"call_id":    expectedID,
		"batch_size": len(batch),
	}).Debug("Sending batched ice candidates")

	// ICE batches are best-effort; a failed send is logged, not fatal.
	m.sendSignal(signaling.NewIceCandidates(expectedID, batch, m.clock.Now()), expectedParty, false)
}

// HandleConnected commits the Connect transition and switches the device
// into in-call mode. Returns false when the transition is illegal.
func (m *Manager) HandleConnected() bool {
	return m.proc.Process(EventConnect, func() {
		m.sess.startedAt = m.clock.Now()
		m.postUI(UIConnected)
		m.audio.StartCommunication()
		m.sendVideoControl(m.sess.video.UserEnabled)
	})
}

// NetworkReestablished starts an ICE-restart renegotiation; only the
// call's initiator takes this path.
func (m *Manager) NetworkReestablished() error {
	if m.sess.id == nil || m.sess.engine == nil {
		return ErrNoActiveCall
	}
	callID := *m.sess.id

	var restartErr error
	ok := m.proc.Process(EventNetworkReconnect, func() {
		desc, err := m.sess.engine.CreateOffer(true)
		if err != nil {
			restartErr = fmt.Errorf("%w: create restart offer: %v", ErrMediaEngine, err)
			return
		}
		if err := m.sess.engine.SetLocalDescription(desc); err != nil {
			restartErr = fmt.Errorf("%w: set local description: %v", ErrMediaEngine, err)
			return
		}
		m.sendSignal(signaling.NewOffer(callID, desc.SDP, m.clock.Now()), m.sess.remoteParty, true)
	})
	if !ok {
		return ErrIllegalTransition
	}
	return restartErr
}

// HandleLocalHangup ends the call from our side, notifying the remote
// party over both the control channel and the signaling transport.
func (m *Manager) HandleLocalHangup() {
	if m.sess.id == nil || m.sess.remoteParty == "" {
		return
	}
	callID := *m.sess.id
	remoteParty := m.sess.remoteParty

	m.postUI(UIDisconnected)
	m.proc.Process(EventHangup, nil)
	m.sendHangupControl()
	m.sendSignal(signaling.NewEndCall(callID, m.clock.Now()), remoteParty, false)
}

// HandleRemoteHangup ends the call from the remote side. Returns whether
// the call was still ringing, in which case the caller records it missed.
func (m *Manager) HandleRemoteHangup() bool {
	wasRinging := m.proc.Current().In(CanDeclineStates...)
	if m.proc.Current().In(StateLocalRinging, StateRemoteRinging) {
		m.postUI(UIRecipientUnavailable)
	} else {
		m.postUI(UIDisconnected)
	}
	if !m.proc.Process(EventHangup, nil) {
		m.proc.Process(EventError, nil)
	}
	return wasRinging
}

// HandleDenyCall declines a ringing call, sending exactly one end-call
// notice and recording the call as incoming.
func (m *Manager) HandleDenyCall() bool {
	if m.sess.id == nil || m.sess.remoteParty == "" {
		return false
	}
	callID := *m.sess.id
	remoteParty := m.sess.remoteParty

	return m.proc.Process(EventDeclineCall, func() {
		m.sendSignal(signaling.NewEndCall(callID, m.clock.Now()), remoteParty, false)
		m.history.RecordCall(remoteParty, HistoryIncoming, m.clock.Now())
	})
}

// HandleIgnoreCall dismisses the call without notifying the caller.
func (m *Manager) HandleIgnoreCall() {
	m.proc.Process(EventIgnoreCall, nil)
}

// SetAudioEnabled toggles our outgoing audio while a call is live.
func (m *Manager) SetAudioEnabled(enabled bool) {
	if !m.proc.Current().In(CanHangupStates...) {
		return
	}
	m.sess.audioEnabled = enabled
	if m.sess.engine != nil {
		m.sess.engine.SetAudioEnabled(enabled)
	}
	m.publish()
}

// ToggleMute flips the outgoing audio flag.
func (m *Manager) ToggleMute() {
	m.SetAudioEnabled(!m.sess.audioEnabled)
}

// ToggleVideo flips our camera feed and tells the remote party over the
// control channel. Enabling video routes audio to the loudspeaker when
// the earpiece is active.
func (m *Manager) ToggleVideo() {
	enabled := !m.sess.video.UserEnabled
	m.sess.video.UserEnabled = enabled
	if m.sess.engine != nil {
		m.sess.engine.SetVideoEnabled(enabled)
	}
	m.sendVideoControl(enabled)
	if enabled && m.audio.CurrentDevice() == AudioDeviceEarpiece {
		m.audio.SelectDevice(AudioDeviceSpeakerphone)
	}
	m.publish()
}

// SwapVideos trades the local and remote renderer positions.
func (m *Manager) SwapVideos() {
	m.sess.video.Swapped = !m.sess.video.Swapped
	m.publish()
}

// FlipCamera switches capture devices on the engine.
func (m *Manager) FlipCamera() {
	if m.sess.engine == nil {
		return
	}
	if err := m.sess.engine.FlipCamera(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "FlipCamera",
			"error":    err.Error(),
		}).Warn("Camera flip failed")
	}
}

// ToggleSpeakerphone flips between the loudspeaker and the earpiece. The
// router may substitute a connected headset for the earpiece.
func (m *Manager) ToggleSpeakerphone() {
	inCall := m.proc.Current() == StateConnected ||
		m.proc.Current().In(PendingConnectionStates...)
	if !inCall {
		logrus.WithFields(logrus.Fields{
			"function": "ToggleSpeakerphone",
			"state":    m.proc.Current().String(),
		}).Warn("Ignoring audio command outside a call")
		return
	}
	if m.audio.CurrentDevice() == AudioDeviceSpeakerphone {
		m.audio.SelectDevice(AudioDeviceEarpiece)
	} else {
		m.audio.SelectDevice(AudioDeviceSpeakerphone)
	}
}

// HandleWiredHeadsetChanged reroutes audio when a headset is plugged or
// unplugged mid-call.
func (m *Manager) HandleWiredHeadsetChanged(present bool) {
	if !m.proc.Current().In(StateConnected, StateLocalRinging, StateRemoteRinging) {
		return
	}
	if present && m.audio.CurrentDevice() == AudioDeviceSpeakerphone {
		m.audio.SelectDevice(AudioDeviceWiredHeadset)
	} else if !present && m.sess.video.UserEnabled {
		m.audio.SelectDevice(AudioDeviceSpeakerphone)
	}
}

// HandleScreenOff silences the ringer when the user turns the screen off
// while a call is still ringing.
func (m *Manager) HandleScreenOff() {
	if m.proc.Current().In(StateConnecting, StateRemoteRinging) {
		m.audio.SilenceRinger()
	}
}

// HandleControlMessage processes one in-call control channel payload.
// Returns true when the payload is a data-channel hangup, which the
// bridge then funnels into the remote-hangup path.
func (m *Manager) HandleControlMessage(payload []byte) bool {
	var msg controlMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "HandleControlMessage",
			"error":    err.Error(),
		}).Error("Failed to decode control channel message")
		return false
	}
	if msg.Video != nil {
		m.sess.video.RemoteEnabled = *msg.Video
		m.publish()
	}
	return msg.Hangup != nil && *msg.Hangup
}

// RecordMissedCall writes a missed-call record, unless the party is our
// own address (a self-directed record would show a phantom missed call).
func (m *Manager) RecordMissedCall(remoteParty string) {
	if remoteParty == "" || m.IsSelf(remoteParty) {
		return
	}
	m.history.RecordCall(remoteParty, HistoryMissed, m.clock.Now())
}

/// Stop runs the final cleanup: stops call audio, disposes the media
// handle exactly once, clears every session field, and publishes the idle
// snapshot. Cleanup is always a legal transition, so Stop is safe from
// any state and idempotent.
func (m *Manager) Stop() {
	wasOutgoing := m.proc.Current().In(OutgoingStates...)
	m.proc.Process(EventCleanup, func() {
		m.iceDebounce.Stop()
		m.audio.Stop(wasOutgoing)
		m.sess.reset()
		m.ui = UIInitializing
		m.publish()
	})
}

// sendSignal dispatches an envelope off the worker. Failures of critical
// sends (pre-offer, offer, answer) are funneled back to the bridge and
// force termination; everything else is best-effort.
func (m *Manager) sendSignal(env *signaling.Envelope, to string, critical bool) {
	onFailure := m.onSendFailure
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SendTimeout)
		defer cancel()
		if err := m.transport.Send(ctx, env, to); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "sendSignal",
				"type":     env.Type.String(),
				"call_id":  env.CallID,
				"critical": critical,
				"error":    err.Error(),
			}).Error("Failed to send signaling envelope")
			if critical && onFailure != nil {
				onFailure(err)
			}
		}
	}()
}

func (m *Manager) drainIncomingIce() {
	engine := m.sess.engine
	if engine == nil {
		return
	}
	for _, candidate := range m.sess.incomingIce {
		if err := engine.AddIceCandidate(candidate); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "drainIncomingIce",
				"error":    err.Error(),
			}).Warn("Failed to add buffered ice candidate")
		}
	}
	m.sess.incomingIce = nil
}

func (m *Manager) sendVideoControl(enabled bool) {
	payload, _ := json.Marshal(controlMessage{Video: &enabled})
	m.sendControl(payload)
}

func (m *Manager) sendHangupControl() {
	hangup := true
	payload, _ := json.Marshal(controlMessage{Hangup: &hangup})
	m.sendControl(payload)
}

func (m *Manager) sendControl(payload []byte) {
	if m.sess.engine == nil {
		return
	}
	if err := m.sess.engine.SendControl(payload); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "sendControl",
			"error":    err.Error(),
		}).Warn("Failed to send control channel message")
	}
}
