package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/veilcomm/callkit/signaling"
)

const (
	pingPeriod   = 30 * time.Second
	readTimeout  = 75 * time.Second
	writeTimeout = 10 * time.Second
)

// ErrRelayClosed is returned by Send after the relay connection shut down.
var ErrRelayClosed = errors.New("relay connection is closed")

// frame is the relay's wire format: an addressed wrapper around one
// signaling envelope.
type frame struct {
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Message json.RawMessage `json:"message"`
}

// RelayOptions tunes the relay connection.
type RelayOptions struct {
	// Header is sent with the websocket handshake, typically carrying
	// authentication for the relay.
	Header http.Header

	// QueueSize bounds the inbound queue. Zero selects a default.
	QueueSize int
}

// WebsocketRelay is a websocket client for a signaling relay. It
// implements signaling.Transport. One goroutine reads frames into the
// ordered inbound queue; writes are serialized by a mutex so Send is safe
// from multiple goroutines.
type WebsocketRelay struct {
	conn    *websocket.Conn
	inbound chan signaling.Inbound

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// DialRelay connects to the relay at url and starts the read loop.
func DialRelay(ctx context.Context, url string, opts RelayOptions) (*WebsocketRelay, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	r := &WebsocketRelay{
		conn:    conn,
		inbound: make(chan signaling.Inbound, queueSize),
		done:    make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go r.readLoop()
	go r.pingLoop()

	logrus.WithFields(logrus.Fields{
		"function": "DialRelay",
		"url":      url,
	}).Info("Connected to signaling relay")
	return r, nil
}

// Send implements signaling.Transport.
func (r *WebsocketRelay) Send(ctx context.Context, env *signaling.Envelope, to string) error {
	select {
	case <-r.done:
		return ErrRelayClosed
	default:
	}

	payload, err := signaling.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	data, err := json.Marshal(frame{To: to, Message: payload})
	if err != nil {
		return fmt.Errorf("encode relay frame: %w", err)
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.conn.SetWriteDeadline(deadline)
	if err := r.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write relay frame: %w", err)
	}
	return nil
}

// Receive implements signaling.Transport.
func (r *WebsocketRelay) Receive() <-chan signaling.Inbound {
	return r.inbound
}

// Close implements signaling.Transport.
func (r *WebsocketRelay) Close() error {
	var err error
	r.once.Do(func() {
		close(r.done)
		r.writeMu.Lock()
		r.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		r.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		r.writeMu.Unlock()
		err = r.conn.Close()
	})
	return err
}

func (r *WebsocketRelay) readLoop() {
	defer close(r.inbound)
	for {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			select {
			case <-r.done:
			default:
				logrus.WithFields(logrus.Fields{
					"function": "readLoop",
					"error":    err.Error(),
				}).Warn("Relay read failed, stopping")
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "readLoop",
				"error":    err.Error(),
			}).Warn("Dropping malformed relay frame")
			continue
		}
		env, err := signaling.Unmarshal(f.Message)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "readLoop",
				"sender":   f.From,
				"error":    err.Error(),
			}).Warn("Dropping undecodable signaling envelope")
			continue
		}

		select {
		case r.inbound <- signaling.Inbound{Envelope: env, Sender: f.From}:
		case <-r.done:
			return
		}
	}
}

func (r *WebsocketRelay) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.writeMu.Lock()
			r.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := r.conn.WriteMessage(websocket.PingMessage, nil)
			r.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-r.done:
			return
		}
	}
}
