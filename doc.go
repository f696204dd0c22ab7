// Package callkit implements peer-to-peer call session signaling: the
// offer/answer handshake, ICE candidate relay, the call state machine,
// and session lifecycle management for one-to-one calls.
//
// The package deliberately stops at the media boundary. Audio and video
// capture, encoding, and playback belong to the media engine behind the
// media.Engine interface; callkit negotiates the session that carries
// them and keeps both parties' views of the call consistent.
//
// # Getting Started
//
// Assemble a stack from a signaling transport and a media engine factory,
// then drive it with UI commands and observe it through snapshots:
//
//	relay, err := transport.DialRelay(ctx, "wss://relay.example.org/v1", transport.RelayOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	engines, err := webrtcengine.NewFactory(webrtcengine.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stack, err := callkit.New(callkit.Options{
//	    LocalParty: "05af...be",
//	    Transport:  relay,
//	    Engines:    engines,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stack.Close()
//
//	stack.Manager.OnSnapshot(func(snap call.Snapshot) {
//	    fmt.Printf("call phase: %s\n", snap.UI)
//	})
//
//	stack.Bridge.BeginOutgoingCall("05ff...01")
//
// All call state lives on the bridge's serial worker. Commands return
// immediately; outcomes arrive as snapshots.
package callkit
