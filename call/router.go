package call

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/veilcomm/callkit/signaling"
)

// Approver answers whether a party's conversation is approved. Messages
// from unapproved parties never reach the call core.
type Approver interface {
	IsApproved(party string) bool
}

// ApproverFunc adapts a function to the Approver interface.
type ApproverFunc func(party string) bool

// IsApproved implements Approver.
func (f ApproverFunc) IsApproved(party string) bool { return f(party) }

// Router consumes the signaling transport's inbound stream, applies the
// admission filters, and dispatches surviving envelopes to the bridge.
// Filters run in order: self-send, calls-enabled policy, approval,
// staleness, then payload validation. Dropped ring requests still leave a
// missed-call record where the user would expect one.
type Router struct {
	cfg          Config
	mgr          *Manager
	bridge       *Bridge
	transport    signaling.Transport
	approver     Approver
	callsEnabled func() bool

	once sync.Once
	done chan struct{}
}

// NewRouter creates a router. callsEnabled is consulted per message so the
// user can flip the setting while the process runs; pass nil to always
// allow calls.
func NewRouter(cfg Config, mgr *Manager, bridge *Bridge, transport signaling.Transport, approver Approver, callsEnabled func() bool) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if mgr == nil || bridge == nil {
		return nil, errors.New("manager and bridge cannot be nil")
	}
	if transport == nil {
		return nil, errors.New("signaling transport cannot be nil")
	}
	if approver == nil {
		approver = ApproverFunc(func(string) bool { return true })
	}
	if callsEnabled == nil {
		callsEnabled = func() bool { return true }
	}
	return &Router{
		cfg:          cfg,
		mgr:          mgr,
		bridge:       bridge,
		transport:    transport,
		approver:     approver,
		callsEnabled: callsEnabled,
		done:         make(chan struct{}),
	}, nil
}

// Run consumes inbound envelopes until the transport closes its stream or
// Close is called. Blocks; run it on its own goroutine.
func (r *Router) Run() {
	for {
		select {
		case inbound, ok := <-r.transport.Receive():
			if !ok {
				logrus.WithFields(logrus.Fields{
					"function": "Run",
				}).Info("Signaling stream closed, router stopping")
				return
			}
			r.Route(inbound)
		case <-r.done:
			return
		}
	}
}

// Close stops Run.
func (r *Router) Close() {
	r.once.Do(func() { close(r.done) })
}

// Route applies the admission filters to one inbound envelope and
// dispatches it. Exported so transports with their own delivery loop can
// feed the router directly.
func (r *Router) Route(inbound signaling.Inbound) {
	env := inbound.Envelope
	sender := inbound.Sender
	if env == nil || sender == "" {
		return
	}

	log := logrus.WithFields(logrus.Fields{
		"function": "Route",
		"type":     env.Type.String(),
		"call_id":  env.CallID,
	})

	// Our own messages echo back from linked devices. The only one that
	// matters is an answer: it means the call was picked up elsewhere.
	if r.mgr.IsSelf(sender) {
		if env.Type == signaling.TypeAnswer {
			r.bridge.HandleAnsweredElsewhere(env.CallID)
		}
		return
	}

	if !r.callsEnabled() {
		log.Info("Dropping call message, calls are disabled")
		if env.Type == signaling.TypePreOffer {
			r.bridge.Post(func() { r.mgr.RecordMissedCall(sender) })
		}
		return
	}

	if !r.approver.IsApproved(sender) {
		log.Warn("Dropping call message from unapproved party")
		return
	}

	if age := r.mgr.clock.Now().Sub(env.SentAt); age > r.cfg.VeryExpiredWindow {
		log.WithField("age", age.String()).Warn("Dropping very expired call message")
		if env.Type == signaling.TypePreOffer {
			r.bridge.Post(func() { r.mgr.RecordMissedCall(sender) })
		}
		return
	}

	switch env.Type {
	case signaling.TypePreOffer:
		r.bridge.HandlePreOffer(env.CallID, sender, env.SentAt)
	case signaling.TypeOffer:
		r.bridge.HandleOffer(env.CallID, sender, env.SDP, env.SentAt)
	case signaling.TypeAnswer:
		r.bridge.HandleAnswer(env.CallID, sender, env.SDP)
	case signaling.TypeIceCandidates:
		candidates, err := env.Candidates()
		if err != nil {
			log.WithField("error", err.Error()).Warn("Dropping malformed ice candidate batch")
			return
		}
		if len(candidates) == 0 {
			return
		}
		r.bridge.HandleIceCandidates(env.CallID, sender, candidates)
	case signaling.TypeEndCall:
		r.bridge.HandleRemoteHangup(env.CallID, sender)
	default:
		log.Warn("Dropping call message of unknown type")
	}
}
