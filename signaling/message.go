package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veilcomm/callkit/media"
)

// Type tags the kind of signaling envelope.
type Type uint8

const (
	// TypePreOffer announces an incoming call before SDP negotiation, so
	// the callee can start ringing immediately.
	TypePreOffer Type = iota + 1
	// TypeOffer carries the caller's session description.
	TypeOffer
	// TypeAnswer carries the callee's session description.
	TypeAnswer
	// TypeIceCandidates carries a batch of ICE candidates.
	TypeIceCandidates
	// TypeEndCall terminates the call thread, whether declined, hung up,
	// or answered busy.
	TypeEndCall
)

// String returns a human-readable name for the envelope type.
func (t Type) String() string {
	switch t {
	case TypePreOffer:
		return "pre-offer"
	case TypeOffer:
		return "offer"
	case TypeAnswer:
		return "answer"
	case TypeIceCandidates:
		return "ice-candidates"
	case TypeEndCall:
		return "end-call"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Envelope errors.
var (
	// ErrUnknownType indicates an envelope with an unrecognized type tag.
	ErrUnknownType = errors.New("unknown signaling envelope type")

	// ErrUnevenCandidates indicates candidate companion arrays of
	// mismatched length.
	ErrUnevenCandidates = errors.New("uneven ice candidate arrays")
)

// Envelope is one signaling message for a single call attempt. Which
// fields are populated depends on Type: offers and answers carry SDP,
// candidate batches carry the three parallel arrays, pre-offers and
// end-call notices carry only the identity.
type Envelope struct {
	Type            Type
	CallID          uuid.UUID
	SDP             string
	SDPs            []string
	SDPMids         []string
	SDPMLineIndexes []int
	SentAt          time.Time
}

// NewPreOffer builds a pre-offer announcement for the given call.
func NewPreOffer(callID uuid.UUID, sentAt time.Time) *Envelope {
	return &Envelope{Type: TypePreOffer, CallID: callID, SentAt: sentAt}
}

// NewOffer builds an offer envelope carrying the caller's description.
func NewOffer(callID uuid.UUID, sdp string, sentAt time.Time) *Envelope {
	return &Envelope{Type: TypeOffer, CallID: callID, SDP: sdp, SentAt: sentAt}
}

// NewAnswer builds an answer envelope carrying the callee's description.
func NewAnswer(callID uuid.UUID, sdp string, sentAt time.Time) *Envelope {
	return &Envelope{Type: TypeAnswer, CallID: callID, SDP: sdp, SentAt: sentAt}
}

// NewEndCall builds an end-call notice for the given call.
func NewEndCall(callID uuid.UUID, sentAt time.Time) *Envelope {
	return &Envelope{Type: TypeEndCall, CallID: callID, SentAt: sentAt}
}

// NewIceCandidates builds a batched candidate envelope preserving the
// order of the given candidates.
func NewIceCandidates(callID uuid.UUID, candidates []media.Candidate, sentAt time.Time) *Envelope {
	env := &Envelope{
		Type:            TypeIceCandidates,
		CallID:          callID,
		SentAt:          sentAt,
		SDPs:            make([]string, 0, len(candidates)),
		SDPMids:         make([]string, 0, len(candidates)),
		SDPMLineIndexes: make([]int, 0, len(candidates)),
	}
	for _, c := range candidates {
		env.SDPs = append(env.SDPs, c.SDP)
		env.SDPMids = append(env.SDPMids, c.SDPMid)
		env.SDPMLineIndexes = append(env.SDPMLineIndexes, c.SDPMLineIndex)
	}
	return env
}

// Candidates reconstructs the candidate batch carried by an ice-candidates
// envelope. Returns ErrUnevenCandidates when the three companion arrays
// disagree in length.
func (e *Envelope) Candidates() ([]media.Candidate, error) {
	if len(e.SDPMids) != len(e.SDPMLineIndexes) || len(e.SDPMLineIndexes) != len(e.SDPs) {
		return nil, ErrUnevenCandidates
	}
	candidates := make([]media.Candidate, 0, len(e.SDPs))
	for i := range e.SDPs {
		candidates = append(candidates, media.Candidate{
			SDPMid:        e.SDPMids[i],
			SDPMLineIndex: e.SDPMLineIndexes[i],
			SDP:           e.SDPs[i],
		})
	}
	return candidates, nil
}

// wireEnvelope is the JSON wire form. Timestamps travel as unix
// milliseconds, matching the messaging layer's sentTimestamp convention.
type wireEnvelope struct {
	Type            string   `json:"type"`
	CallID          string   `json:"callId"`
	SDP             string   `json:"sdp,omitempty"`
	SDPs            []string `json:"sdps,omitempty"`
	SDPMids         []string `json:"sdpMids,omitempty"`
	SDPMLineIndexes []int    `json:"sdpMLineIndexes,omitempty"`
	SentTimestamp   int64    `json:"sentTimestamp"`
}

var wireTypes = map[Type]string{
	TypePreOffer:      "preOffer",
	TypeOffer:         "offer",
	TypeAnswer:        "answer",
	TypeIceCandidates: "iceCandidates",
	TypeEndCall:       "endCall",
}

// Marshal serializes an envelope to its JSON wire form.
func Marshal(e *Envelope) ([]byte, error) {
	tag, ok := wireTypes[e.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, e.Type)
	}
	return json.Marshal(wireEnvelope{
		Type:            tag,
		CallID:          e.CallID.String(),
		SDP:             e.SDP,
		SDPs:            e.SDPs,
		SDPMids:         e.SDPMids,
		SDPMLineIndexes: e.SDPMLineIndexes,
		SentTimestamp:   e.SentAt.UnixMilli(),
	})
}

// Unmarshal parses the JSON wire form into an envelope.
func Unmarshal(data []byte) (*Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode signaling envelope: %w", err)
	}

	var typ Type
	for t, tag := range wireTypes {
		if tag == wire.Type {
			typ = t
			break
		}
	}
	if typ == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, wire.Type)
	}

	callID, err := uuid.Parse(wire.CallID)
	if err != nil {
		return nil, fmt.Errorf("parse callId: %w", err)
	}

	return &Envelope{
		Type:            typ,
		CallID:          callID,
		SDP:             wire.SDP,
		SDPs:            wire.SDPs,
		SDPMids:         wire.SDPMids,
		SDPMLineIndexes: wire.SDPMLineIndexes,
		SentAt:          time.UnixMilli(wire.SentTimestamp),
	}, nil
}
