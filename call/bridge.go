package call

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/veilcomm/callkit/media"
	"github.com/veilcomm/callkit/signaling"
)

// endReason classifies why a call is being torn down. It decides whether a
// missed-call record is written during termination; declined calls record
// their history in the decline side effect instead.
type endReason uint8

const (
	endedHangup endReason = iota
	endedDeclined
	endedIgnored
	endedTimeout
	endedMissed
	endedError
)

// Bridge is the serial worker that owns all call state mutations. UI
// commands, routed signaling messages, media engine callbacks, and timer
// expirations are all posted onto one goroutine, so the Manager and the
// state processor never need locks.
//
// The Bridge also owns the two call timers: the answer timeout that bounds
// every pre-connection phase, and the reconnect ticker driven after an ICE
// disconnect. At most one of each is armed at a time.
type Bridge struct {
	cfg      Config
	mgr      *Manager
	notifier NotificationPresenter

	tasks chan func()
	done  chan struct{}
	once  sync.Once

	// Worker-only state below.
	wantsToAnswer     bool
	networkAvailable  bool
	reconnectAttempts int
	timeoutTimer      *time.Timer
	reconnectTimer    *time.Timer
}

// NewBridge creates the bridge, wires itself into the manager as its
// serial executor and engine observer, and starts the worker goroutine.
func NewBridge(cfg Config, mgr *Manager, notifier NotificationPresenter) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if mgr == nil {
		return nil, errors.New("manager cannot be nil")
	}
	if notifier == nil {
		return nil, errors.New("notification presenter cannot be nil")
	}

	b := &Bridge{
		cfg:              cfg,
		mgr:              mgr,
		notifier:         notifier,
		tasks:            make(chan func(), 64),
		done:             make(chan struct{}),
		networkAvailable: true,
	}
	mgr.bind(b, b, func(err error) {
		b.Post(func() { b.failCall(err) })
	})
	go b.run()
	return b, nil
}

func (b *Bridge) run() {
	for {
		select {
		case task := <-b.tasks:
			task()
		case <-b.done:
			return
		}
	}
}

// Post enqueues a task onto the serial worker. Tasks posted after Close
// are dropped.
func (b *Bridge) Post(task func()) {
	select {
	case b.tasks <- task:
	case <-b.done:
	}
}

// Close tears down any live call and stops the worker.
func (b *Bridge) Close() {
	b.once.Do(func() {
		b.Post(func() {
			b.terminate(endedHangup)
			close(b.done)
		})
	})
}

// BeginOutgoingCall places a call to remoteParty. Failures surface as
// snapshot phases, never as synchronous errors.
func (b *Bridge) BeginOutgoingCall(remoteParty string) {
	b.Post(func() {
		if _, err := b.mgr.BeginOutgoingCall(remoteParty); err != nil {
			if errors.Is(err, ErrAlreadyInCall) {
				logrus.WithFields(logrus.Fields{
					"function":     "BeginOutgoingCall",
					"remote_party": remoteParty,
				}).Warn("Ignoring outgoing call attempt while a call is live")
				return
			}
			b.failCall(err)
			return
		}
		b.scheduleTimeout()
	})
}

// AnswerCall accepts the ringing call. If the full offer has not arrived
// yet, the acceptance is remembered and replayed when it does.
func (b *Bridge) AnswerCall() {
	b.Post(func() {
		if !b.mgr.HasPendingOffer() {
			if !b.mgr.IsPreOffer() {
				logrus.WithFields(logrus.Fields{
					"function": "AnswerCall",
					"state":    b.mgr.CurrentState().String(),
				}).Warn("Ignoring answer command, no ringing call")
				return
			}
			logrus.WithFields(logrus.Fields{
				"function": "AnswerCall",
				"state":    b.mgr.CurrentState().String(),
			}).Info("Answer pressed before the offer arrived, deferring")
			b.wantsToAnswer = true
			return
		}
		b.answerNow()
	})
}

func (b *Bridge) answerNow() {
	b.wantsToAnswer = false

	if age := b.mgr.clock.Now().Sub(b.mgr.PendingOfferAt()); age > b.cfg.AnswerTimeout {
		logrus.WithFields(logrus.Fields{
			"function":  "answerNow",
			"offer_age": age.String(),
			"error":     ErrStaleMessage.Error(),
		}).Warn("Answering a stale offer, treating the call as expired")
		b.mgr.postUI(UIDisconnected)
		b.mgr.proc.Process(EventTimeOut, nil)
		b.terminate(endedTimeout)
		return
	}

	if err := b.mgr.AcceptIncomingCall(); err != nil {
		b.failCall(err)
	}
}

// DeclineCall rejects the ringing call, notifying the caller.
func (b *Bridge) DeclineCall() {
	b.Post(func() {
		if b.mgr.HandleDenyCall() {
			b.terminate(endedDeclined)
		}
	})
}

// IgnoreCall dismisses the ringing call without notifying the caller.
func (b *Bridge) IgnoreCall() {
	b.Post(func() {
		b.mgr.HandleIgnoreCall()
		b.terminate(endedIgnored)
	})
}

// HangUp ends the live call from our side.
func (b *Bridge) HangUp() {
	b.Post(func() {
		b.mgr.HandleLocalHangup()
		b.terminate(endedHangup)
	})
}

// ToggleMute flips our outgoing audio.
func (b *Bridge) ToggleMute() { b.Post(b.mgr.ToggleMute) }

// ToggleVideo flips our camera feed.
func (b *Bridge) ToggleVideo() { b.Post(b.mgr.ToggleVideo) }

// SwapVideos trades the renderer positions.
func (b *Bridge) SwapVideos() { b.Post(b.mgr.SwapVideos) }

// FlipCamera switches capture devices.
func (b *Bridge) FlipCamera() { b.Post(b.mgr.FlipCamera) }

// ToggleSpeakerphone flips between loudspeaker and earpiece.
func (b *Bridge) ToggleSpeakerphone() { b.Post(b.mgr.ToggleSpeakerphone) }

// WiredHeadsetChanged reports a headset being plugged or unplugged.
func (b *Bridge) WiredHeadsetChanged(present bool) {
	b.Post(func() { b.mgr.HandleWiredHeadsetChanged(present) })
}

// ScreenOff reports the device screen turning off.
func (b *Bridge) ScreenOff() { b.Post(b.mgr.HandleScreenOff) }

// SetNetworkAvailable reports network reachability changes. Regaining the
// network while reconnecting restarts the initiator's renegotiation cycle
// immediately instead of waiting out the interval.
func (b *Bridge) SetNetworkAvailable(available bool) {
	b.Post(func() {
		if b.networkAvailable == available {
			return
		}
		b.networkAvailable = available
		logrus.WithFields(logrus.Fields{
			"function":  "SetNetworkAvailable",
			"available": available,
		}).Info("Network availability changed")

		if available && b.mgr.CurrentState() == StateReconnecting &&
			b.mgr.IsInitiator() && b.reconnectTimer == nil {
			b.scheduleReconnect()
		}
	})
}

// HandlePreOffer processes a routed inbound call announcement. A ring
// request already older than the answer timeout was abandoned by its
// caller; it records a missed call instead of ringing.
func (b *Bridge) HandlePreOffer(callID uuid.UUID, sender string, sentAt time.Time) {
	b.Post(func() {
		if age := b.mgr.clock.Now().Sub(sentAt); age > b.cfg.AnswerTimeout {
			logrus.WithFields(logrus.Fields{
				"function":  "HandlePreOffer",
				"call_id":   callID,
				"offer_age": age.String(),
				"error":     ErrStaleMessage.Error(),
			}).Warn("Dropping expired ring request, recording missed call")
			b.mgr.RecordMissedCall(sender)
			return
		}
		if b.mgr.IsBusy(callID) {
			b.rejectBusy(callID, sender)
			return
		}
		if err := b.mgr.OnPreOffer(callID, sender); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "HandlePreOffer",
				"call_id":  callID,
				"error":    err.Error(),
			}).Warn("Dropping pre-offer")
			return
		}
		if err := b.notifier.PresentIncoming(sender); err != nil {
			// Presentation failures must not lose the call; the snapshot
			// observer still sees the incoming phase and can fall back to a
			// direct full-screen surface.
			logrus.WithFields(logrus.Fields{
				"function": "HandlePreOffer",
				"error":    err.Error(),
			}).Warn("Failed to present incoming call notification")
		}
		b.scheduleTimeout()
	})
}

// HandleOffer processes a routed inbound offer: a renegotiation offer when
// reconnecting, otherwise the full offer of an announced incoming call.
func (b *Bridge) HandleOffer(callID uuid.UUID, sender, sdp string, sentAt time.Time) {
	b.Post(func() {
		if b.mgr.CurrentState() == StateReconnecting {
			if err := b.mgr.OnNewOffer(callID, sender, sdp); err != nil {
				if errors.Is(err, ErrMediaEngine) {
					b.failCall(err)
					return
				}
				logrus.WithFields(logrus.Fields{
					"function": "HandleOffer",
					"call_id":  callID,
					"error":    err.Error(),
				}).Warn("Dropping renegotiation offer")
			}
			return
		}
		if b.mgr.IsBusy(callID) {
			b.rejectBusy(callID, sender)
			return
		}
		if err := b.mgr.OnIncomingRing(callID, sender, sdp, sentAt); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "HandleOffer",
				"call_id":  callID,
				"error":    err.Error(),
			}).Warn("Dropping offer")
			return
		}
		b.scheduleTimeout()
		if b.wantsToAnswer {
			b.answerNow()
		}
	})
}

// HandleAnswer processes a routed inbound answer for a call we are dialing.
func (b *Bridge) HandleAnswer(callID uuid.UUID, sender, sdp string) {
	b.Post(func() {
		if err := b.mgr.OnAnswerReceived(callID, sender, sdp); err != nil {
			if errors.Is(err, ErrMediaEngine) {
				b.failCall(err)
				return
			}
			logrus.WithFields(logrus.Fields{
				"function": "HandleAnswer",
				"call_id":  callID,
				"error":    err.Error(),
			}).Warn("Dropping answer")
		}
	})
}

// HandleAnsweredElsewhere dismisses the ringing call because one of our
// own linked devices answered it first.
func (b *Bridge) HandleAnsweredElsewhere(callID uuid.UUID) {
	b.Post(func() {
		if !b.mgr.sess.matches(callID) {
			return
		}
		logrus.WithFields(logrus.Fields{
			"function": "HandleAnsweredElsewhere",
			"call_id":  callID,
		}).Info("Call answered on a linked device, dismissing here")
		b.mgr.HandleIgnoreCall()
		b.terminate(endedIgnored)
	})
}

// HandleIceCandidates processes a routed batch of remote candidates.
func (b *Bridge) HandleIceCandidates(callID uuid.UUID, sender string, candidates []media.Candidate) {
	b.Post(func() {
		if b.mgr.RemoteParty() != "" && sender != b.mgr.RemoteParty() {
			logrus.WithFields(logrus.Fields{
				"function": "HandleIceCandidates",
				"call_id":  callID,
			}).Warn("Dropping ice candidates from an unexpected party")
			return
		}
		b.mgr.OnRemoteIceCandidates(callID, candidates)
	})
}

// HandleRemoteHangup processes a routed end-call notice.
func (b *Bridge) HandleRemoteHangup(callID uuid.UUID, sender string) {
	b.Post(func() {
		if !b.mgr.sess.matches(callID) {
			logrus.WithFields(logrus.Fields{
				"function": "HandleRemoteHangup",
				"call_id":  callID,
			}).Debug("Dropping end-call notice for an inactive call")
			return
		}
		if b.mgr.HandleRemoteHangup() {
			b.terminate(endedMissed)
		} else {
			b.terminate(endedHangup)
		}
	})
}

// OnIceCandidate implements media.Observer.
func (b *Bridge) OnIceCandidate(candidate media.Candidate) {
	b.Post(func() { b.mgr.OnLocalIceCandidate(candidate) })
}

// OnConnectivityChange implements media.Observer.
func (b *Bridge) OnConnectivityChange(state media.Connectivity) {
	b.Post(func() { b.handleConnectivity(state) })
}

// OnDataChannelMessage implements media.Observer.
func (b *Bridge) OnDataChannelMessage(payload []byte) {
	b.Post(func() {
		if b.mgr.HandleControlMessage(payload) {
			if b.mgr.HandleRemoteHangup() {
				b.terminate(endedMissed)
			} else {
				b.terminate(endedHangup)
			}
		}
	})
}

// OnRemoteStream implements media.Observer.
func (b *Bridge) OnRemoteStream(streamID string) {
	logrus.WithFields(logrus.Fields{
		"function":  "OnRemoteStream",
		"stream_id": streamID,
	}).Debug("Remote media stream attached")
}

func (b *Bridge) handleConnectivity(state media.Connectivity) {
	logrus.WithFields(logrus.Fields{
		"function":     "handleConnectivity",
		"connectivity": state.String(),
	}).Info("Media connectivity changed")

	switch state {
	case media.ConnectivityConnected:
		if b.mgr.CurrentState() == StateConnected || b.mgr.CurrentUI() == UIConnected {
			return
		}
		if !b.mgr.HandleConnected() {
			// Connectivity without an applied answer means the negotiation
			// went off the rails; treat it like any other connection error.
			if _, ok := b.mgr.CallID(); ok {
				b.failCall(fmt.Errorf("%w: media connected in state %s",
					ErrIllegalTransition, b.mgr.CurrentState()))
			}
			return
		}
		b.cancelTimers()
		b.reconnectAttempts = 0
		if remote := b.mgr.RemoteParty(); remote != "" {
			if err := b.notifier.PresentOngoing(remote, "in call"); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "handleConnectivity",
					"error":    err.Error(),
				}).Warn("Failed to present ongoing call notification")
			}
		}

	case media.ConnectivityFailed, media.ConnectivityDisconnected:
		if _, ok := b.mgr.CallID(); !ok {
			b.mgr.HandleLocalHangup()
			b.terminate(endedError)
			return
		}
		// A timeout or reconnect cycle already in flight owns recovery.
		if b.timeoutTimer != nil || b.reconnectTimer != nil {
			return
		}
		if !b.mgr.proc.Process(EventIceDisconnect, nil) {
			return
		}
		b.mgr.postUI(UIReconnecting)
		if b.mgr.IsInitiator() {
			// Only the initiator renegotiates; the callee waits for the
			// restarted offer, bounded by the answer timeout.
			b.scheduleReconnect()
		} else {
			b.mgr.proc.Process(EventPrepareForNewOffer, nil)
			b.scheduleTimeout()
		}
	}
}

// rejectBusy turns a colliding pre-offer or offer into a missed call for
// the second caller and signals busy, leaving the live call untouched.
func (b *Bridge) rejectBusy(callID uuid.UUID, sender string) {
	logrus.WithFields(logrus.Fields{
		"function": "rejectBusy",
		"call_id":  callID,
		"sender":   sender,
		"reason":   ErrBusy.Error(),
	}).Info("Rejecting incoming call, already in a call")
	b.mgr.RecordMissedCall(sender)
	b.mgr.sendSignal(signaling.NewEndCall(callID, b.mgr.clock.Now()), sender, false)
}

func (b *Bridge) scheduleTimeout() {
	if b.timeoutTimer != nil {
		b.timeoutTimer.Stop()
		b.timeoutTimer = nil
	}
	callID, ok := b.mgr.CallID()
	if !ok {
		return
	}
	b.timeoutTimer = time.AfterFunc(b.cfg.AnswerTimeout, func() {
		b.Post(func() { b.handleCheckTimeout(callID) })
	})
}

func (b *Bridge) handleCheckTimeout(expected uuid.UUID) {
	b.timeoutTimer = nil
	if !b.mgr.sess.matches(expected) {
		return
	}
	state := b.mgr.CurrentState()
	if state == StateConnected || state == StateConnecting {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "handleCheckTimeout",
		"call_id":  expected,
		"state":    state.String(),
	}).Info("Call timed out without connecting")

	b.mgr.postUI(UIDisconnected)
	b.mgr.HandleLocalHangup()
	b.mgr.proc.Process(EventTimeOut, nil)
	b.terminate(endedTimeout)
}

func (b *Bridge) scheduleReconnect() {
	if b.reconnectTimer != nil {
		b.reconnectTimer.Stop()
		b.reconnectTimer = nil
	}
	callID, ok := b.mgr.CallID()
	if !ok {
		return
	}
	b.reconnectTimer = time.AfterFunc(b.cfg.ReconnectInterval, func() {
		b.Post(func() { b.handleCheckReconnect(callID) })
	})
}

func (b *Bridge) handleCheckReconnect(expected uuid.UUID) {
	b.reconnectTimer = nil
	if !b.mgr.sess.matches(expected) {
		return
	}
	if b.mgr.CurrentState() != StateReconnecting {
		return
	}
	b.reconnectAttempts++

	switch {
	case b.networkAvailable && b.reconnectAttempts <= b.cfg.MaxReconnectAttempts:
		logrus.WithFields(logrus.Fields{
			"function": "handleCheckReconnect",
			"call_id":  expected,
			"attempt":  b.reconnectAttempts,
		}).Info("Attempting ice restart")
		if err := b.mgr.NetworkReestablished(); err != nil {
			b.failCall(err)
			return
		}
		b.scheduleTimeout()

	case b.reconnectAttempts < b.cfg.MaxReconnectAttempts:
		// Network still down, burn an attempt and wait another interval.
		b.scheduleReconnect()

	default:
		b.failCall(ErrReconnectExhausted)
	}
}

func (b *Bridge) cancelTimers() {
	if b.timeoutTimer != nil {
		b.timeoutTimer.Stop()
		b.timeoutTimer = nil
	}
	if b.reconnectTimer != nil {
		b.reconnectTimer.Stop()
		b.reconnectTimer = nil
	}
}

// failCall forces termination after an unrecoverable failure: a media
// engine error or a failed critical send.
func (b *Bridge) failCall(err error) {
	logrus.WithFields(logrus.Fields{
		"function": "failCall",
		"error":    err.Error(),
	}).Error("Terminating call after unrecoverable failure")
	b.mgr.postUI(UINetworkFailure)
	b.mgr.HandleLocalHangup()
	b.mgr.proc.Process(EventError, nil)
	b.terminate(endedError)
}

// terminate is the single teardown path. It is idempotent: once the
// session is back at Idle with no identity, repeat calls are no-ops, so a
// missed-call record is written at most once per call.
func (b *Bridge) terminate(reason endReason) {
	if !b.mgr.sess.hasIdentity() && b.mgr.CurrentState() == StateIdle {
		return
	}
	remoteParty := b.mgr.RemoteParty()

	logrus.WithFields(logrus.Fields{
		"function":     "terminate",
		"remote_party": remoteParty,
		"reason":       reason,
	}).Info("Terminating call session")

	b.cancelTimers()
	b.reconnectAttempts = 0
	b.wantsToAnswer = false
	b.notifier.Dismiss()

	// Missed records are an incoming-side concept; a timed-out outgoing
	// call is not a missed call.
	if (reason == endedTimeout || reason == endedMissed) && !b.mgr.IsInitiator() {
		b.mgr.RecordMissedCall(remoteParty)
	}
	b.mgr.Stop()
}
