package media

// Candidate is a network path descriptor proposed during connectivity
// establishment. The three fields travel together on the signaling wire;
// a candidate with mismatched companion arrays is rejected at decode time.
type Candidate struct {
	// SDPMid identifies the media description this candidate belongs to.
	SDPMid string

	// SDPMLineIndex is the index of the media description in the SDP.
	SDPMLineIndex int

	// SDP is the candidate-attribute line itself.
	SDP string
}

// SDPKind distinguishes offers from answers in a session description.
type SDPKind uint8

const (
	// SDPOffer marks a session description initiating negotiation.
	SDPOffer SDPKind = iota
	// SDPAnswer marks a session description answering an offer.
	SDPAnswer
)

// String returns a human-readable name for the SDP kind.
func (k SDPKind) String() string {
	switch k {
	case SDPOffer:
		return "offer"
	case SDPAnswer:
		return "answer"
	default:
		return "unknown"
	}
}

// SessionDescription pairs an SDP blob with its negotiation role.
type SessionDescription struct {
	Kind SDPKind
	SDP  string
}

// Connectivity reports the engine's view of the media path.
type Connectivity uint8

const (
	// ConnectivityNew indicates no connectivity attempt has completed yet.
	ConnectivityNew Connectivity = iota
	// ConnectivityConnected indicates a working media path.
	ConnectivityConnected
	// ConnectivityDisconnected indicates the media path dropped and may recover.
	ConnectivityDisconnected
	// ConnectivityFailed indicates connectivity establishment failed.
	ConnectivityFailed
	// ConnectivityClosed indicates the engine was disposed.
	ConnectivityClosed
)

// String returns a human-readable name for the connectivity state.
func (c Connectivity) String() string {
	switch c {
	case ConnectivityNew:
		return "new"
	case ConnectivityConnected:
		return "connected"
	case ConnectivityDisconnected:
		return "disconnected"
	case ConnectivityFailed:
		return "failed"
	case ConnectivityClosed:
		return "closed"
	default:
		return "unknown"
	}
}
