package callkit

import (
	"errors"
	"time"

	"github.com/veilcomm/callkit/call"
	"github.com/veilcomm/callkit/media"
	"github.com/veilcomm/callkit/signaling"
)

// Options configures a Stack. Transport and Engines are required; the
// other collaborators default to no-op implementations so embedders can
// adopt them incrementally.
type Options struct {
	// Config is the timing policy. The zero value selects the defaults.
	Config call.Config

	// LocalParty is our own address on the signaling transport.
	LocalParty string

	// Transport moves signaling envelopes between parties.
	Transport signaling.Transport

	// Engines allocates one media engine per call attempt.
	Engines media.Factory

	// History records call outcomes. Optional.
	History call.HistoryStore

	// Audio drives ringers and device routing. Optional.
	Audio call.AudioRouter

	// Notifier presents the call surface. Optional.
	Notifier call.NotificationPresenter

	// Approver gates ring requests by sender. Optional; nil approves all.
	Approver call.Approver

	// CallsEnabled is consulted per inbound message. Optional; nil means
	// calls are always enabled.
	CallsEnabled func() bool
}

// Stack wires the call core together: the manager owning session state,
// the bridge serializing all mutations, and the router feeding it from
// the transport. Create one per local account.
type Stack struct {
	Manager *call.Manager
	Bridge  *call.Bridge
	Router  *call.Router
}

// New assembles a stack and starts consuming the transport's inbound
// stream. Close releases everything.
func New(opts Options) (*Stack, error) {
	if opts.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if opts.Engines == nil {
		return nil, errors.New("media engine factory is required")
	}

	cfg := opts.Config
	if cfg == (call.Config{}) {
		cfg = call.DefaultConfig()
	}
	history := opts.History
	if history == nil {
		history = nopHistory{}
	}
	audio := opts.Audio
	if audio == nil {
		audio = nopAudio{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}

	mgr, err := call.NewManager(cfg, opts.LocalParty, opts.Transport, opts.Engines, history, audio)
	if err != nil {
		return nil, err
	}
	bridge, err := call.NewBridge(cfg, mgr, notifier)
	if err != nil {
		return nil, err
	}
	router, err := call.NewRouter(cfg, mgr, bridge, opts.Transport, opts.Approver, opts.CallsEnabled)
	if err != nil {
		bridge.Close()
		return nil, err
	}
	go router.Run()

	return &Stack{Manager: mgr, Bridge: bridge, Router: router}, nil
}

// Close stops the router and tears down any live call.
func (s *Stack) Close() {
	s.Router.Close()
	s.Bridge.Close()
}

type nopHistory struct{}

func (nopHistory) RecordCall(string, call.HistoryKind, time.Time) {}

type nopAudio struct{}

func (nopAudio) StartIncomingRinger()          {}
func (nopAudio) StartOutgoingRinger()          {}
func (nopAudio) SilenceRinger()                {}
func (nopAudio) StartCommunication()           {}
func (nopAudio) Stop(bool)                     {}
func (nopAudio) SelectDevice(call.AudioDevice) {}
func (nopAudio) CurrentDevice() call.AudioDevice {
	return call.AudioDeviceNone
}

type nopNotifier struct{}

func (nopNotifier) PresentIncoming(string) error        { return nil }
func (nopNotifier) PresentOngoing(string, string) error { return nil }
func (nopNotifier) Dismiss()                            {}
