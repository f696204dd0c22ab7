package call

import (
	"errors"
	"time"
)

// Config carries the tunable timing policy of the call core. Zero values
// are invalid; start from DefaultConfig.
type Config struct {
	// AnswerTimeout bounds how long a call may sit between offer/answer
	// dispatch and a working media path, and doubles as the staleness
	// window for inbound offers and answers.
	AnswerTimeout time.Duration

	// ReconnectInterval is the delay between reconnect checks while the
	// network is unavailable.
	ReconnectInterval time.Duration

	// MaxReconnectAttempts bounds consecutive reconnect cycles before the
	// call is forcibly hung up.
	MaxReconnectAttempts int

	// IceDebounceWindow is the quiescence window for batching outgoing
	// ICE candidates.
	IceDebounceWindow time.Duration

	// VeryExpiredWindow is the router's hard drop threshold; messages
	// older than this never reach the bridge.
	VeryExpiredWindow time.Duration

	// SendTimeout bounds each asynchronous envelope send.
	SendTimeout time.Duration
}

// DefaultConfig returns the production timing policy.
func DefaultConfig() Config {
	return Config{
		AnswerTimeout:        30 * time.Second,
		ReconnectInterval:    5 * time.Second,
		MaxReconnectAttempts: 5,
		IceDebounceWindow:    200 * time.Millisecond,
		VeryExpiredWindow:    15 * time.Minute,
		SendTimeout:          10 * time.Second,
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	switch {
	case c.AnswerTimeout <= 0:
		return errors.New("answer timeout must be positive")
	case c.ReconnectInterval <= 0:
		return errors.New("reconnect interval must be positive")
	case c.MaxReconnectAttempts < 1:
		return errors.New("max reconnect attempts must be at least 1")
	case c.IceDebounceWindow <= 0:
		return errors.New("ice debounce window must be positive")
	case c.VeryExpiredWindow <= 0:
		return errors.New("very expired window must be positive")
	case c.SendTimeout <= 0:
		return errors.New("send timeout must be positive")
	}
	return nil
}

// TimeProvider abstracts the wall clock for deterministic tests.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider reads the system clock.
type DefaultTimeProvider struct{}

// Now returns the current system time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }
