package call

import "time"

// HistoryKind classifies a call history record.
type HistoryKind uint8

const (
	// HistoryOutgoing records a call we placed.
	HistoryOutgoing HistoryKind = iota
	// HistoryIncoming records a call we received, answered or declined.
	HistoryIncoming
	// HistoryMissed records a call that never reached us: expired, busy,
	// or hung up while still ringing.
	HistoryMissed
)

// String returns a human-readable kind name.
func (k HistoryKind) String() string {
	switch k {
	case HistoryOutgoing:
		return "outgoing"
	case HistoryIncoming:
		return "incoming"
	case HistoryMissed:
		return "missed"
	default:
		return "unknown"
	}
}

// HistoryStore records call outcomes for the conversation view.
type HistoryStore interface {
	RecordCall(remoteParty string, kind HistoryKind, at time.Time)
}

// NotificationPresenter shows the user-visible call surface. PresentIncoming
// returns an error when presentation is not possible (for example a missing
// permission); the bridge then falls back to a direct full-screen launch,
// but only for the incoming-ring case.
type NotificationPresenter interface {
	PresentIncoming(remoteParty string) error
	PresentOngoing(remoteParty, callLabel string) error
	Dismiss()
}

// AudioDevice identifies an audio route.
type AudioDevice uint8

const (
	// AudioDeviceNone indicates no route selected.
	AudioDeviceNone AudioDevice = iota
	// AudioDeviceEarpiece routes to the handset earpiece.
	AudioDeviceEarpiece
	// AudioDeviceSpeakerphone routes to the loudspeaker.
	AudioDeviceSpeakerphone
	// AudioDeviceWiredHeadset routes to a plugged headset.
	AudioDeviceWiredHeadset
	// AudioDeviceBluetooth routes to a bluetooth device.
	AudioDeviceBluetooth
)

// AudioRouter drives ringer playback and audio device routing. It is an
// external collaborator; implementations own the actual hardware.
type AudioRouter interface {
	// StartIncomingRinger plays the incoming ring tone.
	StartIncomingRinger()

	// StartOutgoingRinger plays the outgoing ring-back tone.
	StartOutgoingRinger()

	// SilenceRinger stops any ringer without ending the call.
	SilenceRinger()

	// StartCommunication switches the device into in-call audio mode.
	StartCommunication()

	// Stop tears down call audio. wasOutgoing selects the disconnect tone.
	Stop(wasOutgoing bool)

	// SelectDevice routes call audio to the given device.
	SelectDevice(device AudioDevice)

	// CurrentDevice reports the active route.
	CurrentDevice() AudioDevice
}

// Executor posts tasks onto the serial worker that owns all call state
// mutations. The Bridge is the production implementation.
type Executor interface {
	Post(task func())
}
