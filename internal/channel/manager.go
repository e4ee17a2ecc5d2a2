package channel

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cursyhq/cursy/internal/status"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Credentials supplies the bearer token and user id for the realtime
// session.
type Credentials interface {
	Token() string
	CurrentUserID() string
}

// OnlineLister is the one-shot REST fetch used to seed the presence map.
type OnlineLister interface {
	OnlineUsers(ctx context.Context) ([]string, error)
}

// Manager owns the single live socket connection per process. Start and
// Stop are safe to call repeatedly and concurrently: the connection
// handle is guarded by one mutex, so the already-connected check and the
// assignment are atomic and duplicate connections cannot appear.
type Manager struct {
	url      string
	dialer   *websocket.Dialer
	creds    Credentials
	machine  *status.Machine
	ingest   *Ingestor
	presence *Presence
	online   OnlineLister
	logger   *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewManager creates a channel manager dialing the given socket URL.
func NewManager(url string, creds Credentials, machine *status.Machine, ingest *Ingestor, presence *Presence, online OnlineLister, logger *zap.Logger) *Manager {
	return &Manager{
		url:      url,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		creds:    creds,
		machine:  machine,
		ingest:   ingest,
		presence: presence,
		online:   online,
		logger:   logger,
	}
}

// Start opens the socket connection. No-op when already connected. A
// missing auth token only logs: Start is invoked speculatively at
// startup, before the user may have logged in, and must not fail the
// caller. Dial failures likewise log and leave the manager Disconnected.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return
	}

	token := m.creds.Token()
	if token == "" {
		m.logger.Info("channel start skipped: no auth token")
		return
	}

	_ = m.machine.Transition(status.Connecting)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := m.dialer.Dial(m.url, header)
	if err != nil {
		m.logger.Error("channel dial failed", zap.Error(err), zap.String("url", m.url))
		_ = m.machine.Transition(status.Disconnected)
		return
	}

	m.conn = conn
	_ = m.machine.Transition(status.Connected)
	m.logger.Info("channel connected", zap.String("url", m.url))

	go m.readLoop(conn)
}

// Stop closes the channel with a normal-closure code. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return
	}
	// Best-effort close signal to the remote end.
	deadline := time.Now().Add(time.Second)
	_ = m.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"), deadline)
	_ = m.conn.Close()
	m.conn = nil
	_ = m.machine.Transition(status.Disconnected)
	m.logger.Info("channel closed")
}

// Connected reports whether a live connection exists.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// State returns the current connection state.
func (m *Manager) State() status.State {
	return m.machine.Current()
}

// Send transmits one envelope over the live connection.
func (m *Manager) Send(env Envelope) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	// gorilla/websocket allows one concurrent writer only.
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.WriteJSON(env); err != nil {
		return &TransportError{Err: err}
	}
	return nil
}

// Presence returns the live presence map.
func (m *Manager) Presence() *Presence {
	return m.presence
}

// SeedOnlineUsers fetches all currently-online users once over REST and
// merges them into the presence map, skipping the current user.
func (m *Manager) SeedOnlineUsers(ctx context.Context) error {
	ids, err := m.online.OnlineUsers(ctx)
	if err != nil {
		return err
	}
	self := m.creds.CurrentUserID()
	merged := ids[:0]
	for _, id := range ids {
		if id != self {
			merged = append(merged, id)
		}
	}
	m.presence.MergeOnline(merged)
	return nil
}

// readLoop processes frames strictly in arrival order until the
// connection drops. It runs on its own goroutine so parsing and dedup
// queries never block callers.
func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.dropConn(conn, err)
			return
		}
		m.ingest.HandleFrame(data)
	}
}

// dropConn clears the handle after a transport error, but only if it
// still refers to the failed connection; a newer connection from a
// subsequent Start must not be torn down.
func (m *Manager) dropConn(conn *websocket.Conn, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != conn {
		return
	}
	_ = m.conn.Close()
	m.conn = nil
	if m.machine.Current() != status.Disconnected {
		_ = m.machine.Transition(status.Disconnected)
	}
	if websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		m.logger.Info("channel closed by peer")
	} else {
		m.logger.Warn("channel read failed", zap.Error(cause))
	}
}
