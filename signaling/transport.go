package signaling

import "context"

// Inbound is one decoded envelope received from the network, tagged with
// the sender's address.
type Inbound struct {
	Envelope *Envelope
	Sender   string
}

// Transport is the store-and-forward messaging collaborator that moves
// envelopes between parties. Sends are asynchronous from the call core's
// perspective: the core never blocks its serial worker on Send and treats
// delivery failures as reported events, not return paths.
//
// Receive exposes a single ordered queue. Messages for a given call are
// delivered in the order the transport observed them; the call core is the
// sole consumer.
type Transport interface {
	// Send delivers an envelope to the given party. Blocking is allowed;
	// callers invoke Send off the serial worker.
	Send(ctx context.Context, env *Envelope, to string) error

	// Receive returns the ordered inbound queue. The channel is closed
	// when the transport shuts down.
	Receive() <-chan Inbound

	// Close shuts the transport down and closes the inbound queue.
	Close() error
}
