package connection

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Manager owns the single logical push-channel connection for a session.
type Manager interface {
	// Connect initiates the handshake with the given bearer token.
	// Idempotent: a second call with the same token while the manager is
	// active is a no-op. A rejected credential returns *AuthError and
	// leaves the manager disconnected.
	Connect(ctx context.Context, token string) error

	// Disconnect tears the connection down. Always succeeds, always
	// terminal: rooms are cleared and the message channel is closed.
	Disconnect()

	// JoinRoom records room membership and, when connected, sends the
	// join command. Membership is replayed after every reconnect.
	JoinRoom(room string) error

	// LeaveRoom removes room membership and, when connected, sends the
	// leave command.
	LeaveRoom(room string) error

	// State returns the current connection state.
	State() State

	// WatchState registers a watcher channel that receives every state
	// transition. Slow watchers miss transitions rather than block the
	// manager.
	WatchState(buffer int) <-chan StateChange

	// Messages returns the raw message stream for the Event Router. The
	// channel is closed on Disconnect and on fatal connection loss.
	Messages() <-chan RawMessage

	// Stats returns current connection statistics.
	Stats() ManagerStats
}

// manager implements the Manager interface.
type manager struct {
	cfg    ManagerConfig
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	token    string
	epoch    int
	attempts int
	rooms    map[string]struct{}
	watchers []chan StateChange
	client   Client
	cancel   context.CancelFunc
	closed   bool

	out     chan RawMessage
	outOnce sync.Once
	wg      sync.WaitGroup

	// newClient is swappable for tests.
	newClient func(cfg ClientConfig, logger *slog.Logger) Client
}

// NewManager creates a new Connection Manager.
func NewManager(cfg ManagerConfig, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &manager{
		cfg:       cfg,
		logger:    logger,
		state:     StateDisconnected,
		rooms:     make(map[string]struct{}),
		out:       make(chan RawMessage, cfg.BufferSize),
		newClient: NewClient,
	}
}

// Connect initiates the handshake.
func (m *manager) Connect(ctx context.Context, token string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	if m.state != StateDisconnected {
		same := m.token == token
		m.mu.Unlock()
		if same {
			return nil
		}
		return ErrTokenMismatch
	}

	m.token = token
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.setStateLocked(StateConnecting, nil)
	m.mu.Unlock()

	client := m.newClient(m.clientConfig(token), m.logger)
	if err := client.Connect(ctx); err != nil {
		if authErr, ok := err.(*AuthError); ok {
			m.logger.Error("handshake rejected", "status", authErr.Status)
			m.fail(authErr)
			return authErr
		}

		// Transport failure on the first attempt enters the bounded
		// retry path in the background.
		m.logger.Warn("initial connect failed, retrying", "error", err)
		m.mu.Lock()
		m.setStateLocked(StateReconnecting, err)
		m.mu.Unlock()

		m.wg.Add(1)
		go m.retryLoop(runCtx)
		return nil
	}

	m.adopt(runCtx, client)
	return nil
}

// Disconnect tears everything down.
func (m *manager) Disconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.cancel != nil {
		m.cancel()
	}
	client := m.client
	m.client = nil
	m.rooms = make(map[string]struct{})
	m.setStateLocked(StateDisconnected, nil)
	m.closeWatchersLocked()
	m.mu.Unlock()

	if client != nil {
		client.Close()
	}

	m.closeOut()
	m.wg.Wait()

	m.logger.Info("connection manager disconnected")
}

// JoinRoom records membership and sends the join command when connected.
func (m *manager) JoinRoom(room string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	m.rooms[room] = struct{}{}
	client := m.client
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || client == nil {
		// Queued: membership is replayed on the next connect.
		return nil
	}
	return m.sendRoomCommand(client, "join", room)
}

// LeaveRoom removes membership and sends the leave command when connected.
func (m *manager) LeaveRoom(room string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	delete(m.rooms, room)
	client := m.client
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || client == nil {
		return nil
	}
	return m.sendRoomCommand(client, "leave", room)
}

// State returns the current state.
func (m *manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// WatchState registers a state transition watcher.
func (m *manager) WatchState(buffer int) <-chan StateChange {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan StateChange, buffer)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		close(ch)
		return ch
	}
	m.watchers = append(m.watchers, ch)
	return ch
}

// Messages returns the raw message stream.
func (m *manager) Messages() <-chan RawMessage {
	return m.out
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ManagerStats{
		State:    m.state,
		Epoch:    m.epoch,
		Rooms:    len(m.rooms),
		Attempts: m.attempts,
	}
}

// clientConfig builds the per-connection client configuration.
func (m *manager) clientConfig(token string) ClientConfig {
	return ClientConfig{
		URL:          m.cfg.WSURL,
		Token:        token,
		PingTimeout:  m.cfg.PingTimeout,
		WriteTimeout: m.cfg.WriteTimeout,
		BufferSize:   m.cfg.BufferSize,
	}
}

// adopt installs a freshly connected client: bumps the epoch, replays
// room membership, and starts the pump.
func (m *manager) adopt(runCtx context.Context, client Client) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		client.Close()
		return
	}
	m.client = client
	m.epoch++
	m.attempts = 0
	epoch := m.epoch
	rooms := make([]string, 0, len(m.rooms))
	for room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.setStateLocked(StateConnected, nil)
	m.mu.Unlock()

	for _, room := range rooms {
		if err := m.sendRoomCommand(client, "join", room); err != nil {
			m.logger.Warn("failed to replay room join", "room", room, "error", err)
		}
	}

	m.wg.Add(1)
	go m.pump(runCtx, client, epoch)

	m.logger.Info("push channel connected", "epoch", epoch, "rooms", len(rooms))
}

// pump forwards client messages to the router channel until the
// connection drops or the manager is torn down.
func (m *manager) pump(runCtx context.Context, client Client, epoch int) {
	defer m.wg.Done()

	for {
		select {
		case <-runCtx.Done():
			return

		case err := <-client.Errors():
			m.logger.Warn("push channel error", "epoch", epoch, "error", err)
			client.Close()

			m.mu.Lock()
			if m.closed {
				m.mu.Unlock()
				return
			}
			m.client = nil
			m.setStateLocked(StateReconnecting, err)
			m.mu.Unlock()

			m.wg.Add(1)
			go m.retryLoop(runCtx)
			return

		case msg, ok := <-client.Messages():
			if !ok {
				return
			}

			raw := RawMessage{
				Data:       msg.Data,
				ReceivedAt: msg.ReceivedAt,
				Epoch:      epoch,
			}

			select {
			case m.out <- raw:
			case <-runCtx.Done():
				return
			default:
				m.logger.Warn("router buffer full, dropping message", "epoch", epoch)
			}
		}
	}
}

// retryLoop reconnects with a fixed delay, bounded by MaxAttempts.
func (m *manager) retryLoop(runCtx context.Context) {
	defer m.wg.Done()

	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		select {
		case <-runCtx.Done():
			return
		case <-time.After(m.cfg.RetryDelay):
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		m.attempts = attempt
		token := m.token
		m.setStateLocked(StateConnecting, nil)
		m.mu.Unlock()

		m.logger.Info("attempting reconnection", "attempt", attempt, "max", m.cfg.MaxAttempts)

		client := m.newClient(m.clientConfig(token), m.logger)
		err := client.Connect(runCtx)
		if err == nil {
			m.adopt(runCtx, client)
			return
		}

		if authErr, ok := err.(*AuthError); ok {
			m.logger.Error("handshake rejected during reconnect", "status", authErr.Status)
			m.fail(authErr)
			return
		}

		m.logger.Warn("reconnection failed", "attempt", attempt, "error", err)
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		m.setStateLocked(StateReconnecting, err)
		m.mu.Unlock()
	}

	m.logger.Error("reconnect attempts exhausted", "attempts", m.cfg.MaxAttempts)
	m.fail(ErrRetriesExhausted)
}

// fail moves the manager to a fatal disconnected state.
func (m *manager) fail(err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.cancel != nil {
		m.cancel()
	}
	m.client = nil
	m.rooms = make(map[string]struct{})
	m.setStateLocked(StateDisconnected, err)
	m.closeWatchersLocked()
	m.mu.Unlock()

	m.closeOut()
}

// sendRoomCommand marshals and sends a join/leave command.
func (m *manager) sendRoomCommand(client Client, cmd, room string) error {
	data, err := json.Marshal(Command{
		Cmd:    cmd,
		Params: RoomParams{Room: room},
	})
	if err != nil {
		return err
	}
	return client.Send(data)
}

// setStateLocked transitions state and notifies watchers. Caller must
// hold m.mu.
func (m *manager) setStateLocked(to State, err error) {
	from := m.state
	if from == to && err == nil {
		return
	}
	m.state = to

	change := StateChange{
		From:  from,
		To:    to,
		At:    time.Now(),
		Epoch: m.epoch,
		Err:   err,
	}

	for _, ch := range m.watchers {
		select {
		case ch <- change:
		default:
			// Slow watcher: drop rather than block the manager.
		}
	}

	m.logger.Debug("connection state changed",
		"from", from.String(),
		"to", to.String(),
		"epoch", m.epoch,
	)
}

// closeWatchersLocked closes all watcher channels. Caller must hold m.mu.
func (m *manager) closeWatchersLocked() {
	for _, ch := range m.watchers {
		close(ch)
	}
	m.watchers = nil
}

// closeOut closes the outgoing message channel exactly once.
func (m *manager) closeOut() {
	m.outOnce.Do(func() {
		close(m.out)
	})
}
