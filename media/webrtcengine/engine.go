package webrtcengine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/veilcomm/callkit/media"
)

// controlChannelLabel is the label of the data channel carrying in-call
// control messages. The initiator creates the channel; the callee adopts
// it when it arrives.
const controlChannelLabel = "signaling"

// ErrControlChannelClosed is returned by SendControl when the control
// channel has not opened yet or was torn down.
var ErrControlChannelClosed = errors.New("control channel is not open")

// Config carries the peer connection settings shared by all engines a
// factory produces.
type Config struct {
	// ICEServers lists the STUN and TURN servers offered to ICE.
	ICEServers []webrtc.ICEServer
}

// DefaultConfig returns a config using a public STUN server.
func DefaultConfig() Config {
	return Config{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

// Factory allocates pion-backed engines. It implements media.Factory.
type Factory struct {
	cfg Config
	api *webrtc.API
}

// NewFactory creates an engine factory.
func NewFactory(cfg Config) (*Factory, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	return &Factory{
		cfg: cfg,
		api: webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine)),
	}, nil
}

// NewEngine implements media.Factory.
func (f *Factory) NewEngine(observer media.Observer, initiator bool) (media.Engine, error) {
	if observer == nil {
		return nil, errors.New("observer cannot be nil")
	}

	pc, err := f.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: f.cfg.ICEServers,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	e := &engine{
		pc:       pc,
		observer: observer,
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio); err != nil {
		pc.Close()
		return nil, fmt.Errorf("add audio transceiver: %w", err)
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo); err != nil {
		pc.Close()
		return nil, fmt.Errorf("add video transceiver: %w", err)
	}

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		init := candidate.ToJSON()
		out := media.Candidate{SDP: init.Candidate}
		if init.SDPMid != nil {
			out.SDPMid = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			out.SDPMLineIndex = int(*init.SDPMLineIndex)
		}
		observer.OnIceCandidate(out)
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		observer.OnConnectivityChange(mapConnectivity(state))
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		observer.OnRemoteStream(track.StreamID())
	})

	if initiator {
		dc, err := pc.CreateDataChannel(controlChannelLabel, nil)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("create control channel: %w", err)
		}
		e.adoptControlChannel(dc)
	} else {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			if dc.Label() != controlChannelLabel {
				logrus.WithFields(logrus.Fields{
					"function": "NewEngine",
					"label":    dc.Label(),
				}).Warn("Ignoring unexpected data channel")
				return
			}
			e.adoptControlChannel(dc)
		})
	}

	return e, nil
}

// engine wraps one peer connection. It implements media.Engine.
type engine struct {
	pc       *webrtc.PeerConnection
	observer media.Observer

	mu           sync.Mutex
	control      *webrtc.DataChannel
	controlOpen  bool
	audioEnabled bool
	videoEnabled bool

	disposeOnce sync.Once
}

func (e *engine) adoptControlChannel(dc *webrtc.DataChannel) {
	e.mu.Lock()
	e.control = dc
	e.mu.Unlock()

	dc.OnOpen(func() {
		e.mu.Lock()
		e.controlOpen = true
		e.mu.Unlock()
	})
	dc.OnClose(func() {
		e.mu.Lock()
		e.controlOpen = false
		e.mu.Unlock()
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		e.observer.OnDataChannelMessage(msg.Data)
	})
}

// CreateOffer implements media.Engine.
func (e *engine) CreateOffer(iceRestart bool) (media.SessionDescription, error) {
	var options *webrtc.OfferOptions
	if iceRestart {
		options = &webrtc.OfferOptions{ICERestart: true}
	}
	desc, err := e.pc.CreateOffer(options)
	if err != nil {
		return media.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	return media.SessionDescription{Kind: media.SDPOffer, SDP: desc.SDP}, nil
}

// CreateAnswer implements media.Engine. The iceRestart flag carries no
// options here: a restart answer is shaped by the restarted remote offer.
func (e *engine) CreateAnswer(iceRestart bool) (media.SessionDescription, error) {
	desc, err := e.pc.CreateAnswer(nil)
	if err != nil {
		return media.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	return media.SessionDescription{Kind: media.SDPAnswer, SDP: desc.SDP}, nil
}

// SetLocalDescription implements media.Engine.
func (e *engine) SetLocalDescription(desc media.SessionDescription) error {
	if err := e.pc.SetLocalDescription(toWebrtc(desc)); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return nil
}

// SetRemoteDescription implements media.Engine.
func (e *engine) SetRemoteDescription(desc media.SessionDescription) error {
	if err := e.pc.SetRemoteDescription(toWebrtc(desc)); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

// AddIceCandidate implements media.Engine.
func (e *engine) AddIceCandidate(candidate media.Candidate) error {
	mid := candidate.SDPMid
	index := uint16(candidate.SDPMLineIndex)
	init := webrtc.ICECandidateInit{
		Candidate:     candidate.SDP,
		SDPMid:        &mid,
		SDPMLineIndex: &index,
	}
	if err := e.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

// ReadyForIce implements media.Engine.
func (e *engine) ReadyForIce() bool {
	return e.pc.RemoteDescription() != nil
}

// SetAudioEnabled implements media.Engine. Applications that attach their
// own capture tracks read this flag through their pipeline; the engine
// records it so mute state survives renegotiation.
func (e *engine) SetAudioEnabled(enabled bool) {
	e.mu.Lock()
	e.audioEnabled = enabled
	e.mu.Unlock()
}

// SetVideoEnabled implements media.Engine.
func (e *engine) SetVideoEnabled(enabled bool) {
	e.mu.Lock()
	e.videoEnabled = enabled
	e.mu.Unlock()
}

// FlipCamera implements media.Engine. Capture devices live in the
// application's media pipeline, so there is nothing to flip here.
func (e *engine) FlipCamera() error {
	logrus.WithFields(logrus.Fields{
		"function": "FlipCamera",
	}).Debug("No capture pipeline attached, camera flip is a no-op")
	return nil
}

// SendControl implements media.Engine.
func (e *engine) SendControl(payload []byte) error {
	e.mu.Lock()
	dc := e.control
	open := e.controlOpen
	e.mu.Unlock()
	if dc == nil || !open {
		return ErrControlChannelClosed
	}
	if err := dc.Send(payload); err != nil {
		return fmt.Errorf("send control message: %w", err)
	}
	return nil
}

// Dispose implements media.Engine.
func (e *engine) Dispose() {
	e.disposeOnce.Do(func() {
		e.mu.Lock()
		dc := e.control
		e.control = nil
		e.controlOpen = false
		e.mu.Unlock()
		if dc != nil {
			if err := dc.Close(); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Dispose",
					"error":    err.Error(),
				}).Debug("Closing control channel failed")
			}
		}
		if err := e.pc.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Dispose",
				"error":    err.Error(),
			}).Warn("Closing peer connection failed")
		}
	})
}

func toWebrtc(desc media.SessionDescription) webrtc.SessionDescription {
	kind := webrtc.SDPTypeOffer
	if desc.Kind == media.SDPAnswer {
		kind = webrtc.SDPTypeAnswer
	}
	return webrtc.SessionDescription{Type: kind, SDP: desc.SDP}
}

func mapConnectivity(state webrtc.ICEConnectionState) media.Connectivity {
	switch state {
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		return media.ConnectivityConnected
	case webrtc.ICEConnectionStateDisconnected:
		return media.ConnectivityDisconnected
	case webrtc.ICEConnectionStateFailed:
		return media.ConnectivityFailed
	case webrtc.ICEConnectionStateClosed:
		return media.ConnectivityClosed
	default:
		return media.ConnectivityNew
	}
}
