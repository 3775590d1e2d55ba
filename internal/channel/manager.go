// Package channel maintains the live publish-subscribe connection for one
// game session: chat today, other real-time events later. At most one
// connection exists at a time and it never outlives the manager.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"pyramidclient/pkg/types"
)

var ErrChannelNotReady = errors.New("channel not ready")
var ErrManagerClosed = errors.New("channel manager closed")

const (
	defaultReconnectDelay = 5 * time.Second
	writeTimeout          = 3 * time.Second
)

// Manager owns the single channel connection. Connect is idempotent per
// gameId; switching games retires the old connection completely before the
// new one is dialed. Establishment is asynchronous — Send reports
// ErrChannelNotReady until the subscription is live.
type Manager struct {
	url            string
	logger         *zap.Logger
	reconnectDelay time.Duration

	mu     sync.Mutex
	gameID string
	conn   *websocket.Conn // nil whenever no subscription is live
	cancel context.CancelFunc
	done   chan struct{}
	log    []types.ChatMessage
	closed bool
}

// Option configures a Manager.
type Option func(*Manager)

func WithReconnectDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.reconnectDelay = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func New(url string, opts ...Option) *Manager {
	m := &Manager{
		url:            url,
		logger:         zap.NewNop(),
		reconnectDelay: defaultReconnectDelay,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect binds the manager to gameID. Calling it again with the same id is
// a no-op, so repeated UI effects cannot stack subscriptions. A different id
// clears the message log, closes the old connection, and dials the new
// session's topic in the background.
func (m *Manager) Connect(ctx context.Context, gameID string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.gameID == gameID && m.cancel != nil {
		m.mu.Unlock()
		return nil
	}

	oldCancel := m.cancel
	oldDone := m.done

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	m.gameID = gameID
	m.log = nil
	m.conn = nil
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	// Fully retire the previous connection before the new one goes live so
	// two sessions' messages can never interleave.
	if oldCancel != nil {
		oldCancel()
		<-oldDone
	}

	go m.run(runCtx, gameID, done)
	return nil
}

// Send publishes one chat message scoped to gameID. It fails fast when no
// connection is live or the live connection belongs to another session;
// nothing is queued.
func (m *Manager) Send(ctx context.Context, gameID string, msg types.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil || m.gameID != gameID {
		return ErrChannelNotReady
	}

	frame := types.Frame{
		Type:  types.FramePublish,
		Topic: types.ChatSendTopic(gameID),
		Body:  &types.ChatBody{Sender: msg.Sender, Content: msg.Content},
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return m.conn.Write(wctx, websocket.MessageText, payload)
}

// Messages returns a copy of the message log in arrival order.
func (m *Manager) Messages() []types.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.ChatMessage, len(m.log))
	copy(out, m.log)
	return out
}

// Ready reports whether a subscription for gameID is currently live.
func (m *Manager) Ready(gameID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil && m.gameID == gameID
}

// Close tears the active connection down and rejects all further use.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// run dials, subscribes, and reads until the context ends, redialing after a
// fixed delay on any drop. Messages missed while disconnected are lost; the
// protocol has no replay.
func (m *Manager) run(ctx context.Context, gameID string, done chan struct{}) {
	defer close(done)

	for {
		err := m.runOnce(ctx, gameID)
		if ctx.Err() != nil {
			return
		}
		m.logger.Warn("channel connection lost",
			zap.String("gameId", gameID),
			zap.Duration("retryIn", m.reconnectDelay),
			zap.Error(err))

		select {
		case <-time.After(m.reconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) runOnce(ctx context.Context, gameID string) error {
	conn, _, err := websocket.Dial(ctx, m.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	sub := types.Frame{Type: types.FrameSubscribe, Topic: types.ChatTopic(gameID)}
	payload, _ := json.Marshal(sub)
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	err = conn.Write(wctx, websocket.MessageText, payload)
	cancel()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	m.logger.Info("channel connected", zap.String("gameId", gameID))

	defer func() {
		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
		}
		m.mu.Unlock()
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var frame types.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			m.logger.Warn("dropping malformed frame", zap.Error(err))
			continue
		}
		if frame.Type != types.FrameMessage || frame.Body == nil {
			continue
		}
		if frame.Topic != types.ChatTopic(gameID) {
			// Not our session's topic. Drop rather than mix sessions.
			continue
		}

		m.mu.Lock()
		m.log = append(m.log, types.ChatMessage{
			Sender:    frame.Body.Sender,
			Content:   frame.Body.Content,
			Timestamp: time.Now(),
		})
		m.mu.Unlock()
	}
}
