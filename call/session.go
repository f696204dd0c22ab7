package call

import (
	"time"

	"github.com/google/uuid"

	"github.com/veilcomm/callkit/media"
)

// PreOfferRecord captures the identity announced by a pre-offer so the
// subsequent full offer can be validated against it. Discarded on teardown
// or on a successful offer match.
type PreOfferRecord struct {
	CallID      uuid.UUID
	RemoteParty string
}

// session is the single mutable call aggregate, owned exclusively by the
// Manager and mutated only on the bridge worker. Invariants: engine is
// non-nil only outside Idle/Terminated; id is non-nil only outside Idle.
// All fields are reset exactly once per call by reset.
type session struct {
	id          *uuid.UUID
	remoteParty string

	engine    media.Engine
	initiator bool

	audioEnabled bool
	video        VideoState

	startedAt time.Time

	pendingOfferSDP string
	pendingOfferAt  time.Time
	preOffer        *PreOfferRecord

	outgoingIce []media.Candidate
	incomingIce []media.Candidate
}

// hasIdentity reports whether a call attempt is live or being set up.
func (s *session) hasIdentity() bool {
	return s.id != nil
}

// matches reports whether the given identity belongs to this session.
func (s *session) matches(callID uuid.UUID) bool {
	return s.id != nil && *s.id == callID
}

// disposeEngine releases the media handle exactly once.
func (s *session) disposeEngine() {
	if s.engine != nil {
		s.engine.Dispose()
		s.engine = nil
	}
}

// reset clears every field, disposing the engine if still held.
func (s *session) reset() {
	s.disposeEngine()
	s.id = nil
	s.remoteParty = ""
	s.initiator = false
	s.audioEnabled = false
	s.video = VideoState{}
	s.startedAt = time.Time{}
	s.pendingOfferSDP = ""
	s.pendingOfferAt = time.Time{}
	s.preOffer = nil
	s.outgoingIce = nil
	s.incomingIce = nil
}
