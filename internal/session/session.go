// Package session wires the sync core together: one push channel
// connection, an event router feeding the read model, and a snapshot
// reconciliation loop. A Session owns the lifecycle of all four and
// tears them down in order.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openagora/dashsync/internal/api"
	"github.com/openagora/dashsync/internal/auth"
	"github.com/openagora/dashsync/internal/config"
	"github.com/openagora/dashsync/internal/connection"
	"github.com/openagora/dashsync/internal/dedup"
	"github.com/openagora/dashsync/internal/metrics"
	"github.com/openagora/dashsync/internal/model"
	"github.com/openagora/dashsync/internal/reconcile"
	"github.com/openagora/dashsync/internal/router"
	"github.com/openagora/dashsync/internal/state"
)

// Session is one dashboard sync session, alive from login to teardown.
type Session struct {
	logger *slog.Logger
	m      *metrics.Metrics

	tokens  auth.TokenStore
	client  *api.Client
	manager connection.Manager
	router  router.Router
	store   *state.Store
	sched   *reconcile.Scheduler

	regs   []router.Token
	closed bool

	stateWatch <-chan connection.StateChange
	watchDone  chan struct{}
}

// Option customizes session construction.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	m       *metrics.Metrics
	tokens  auth.TokenStore
	manager connection.Manager
	client  *api.Client
}

// WithLogger sets the logger for the session and all components.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.m = m }
}

// WithTokenStore overrides the token source from config.
func WithTokenStore(tokens auth.TokenStore) Option {
	return func(o *options) { o.tokens = tokens }
}

// WithManager injects a connection manager. Used in tests.
func WithManager(mgr connection.Manager) Option {
	return func(o *options) { o.manager = mgr }
}

// WithAPIClient injects an API client. Used in tests.
func WithAPIClient(client *api.Client) Option {
	return func(o *options) { o.client = client }
}

// New builds a session from configuration. The session is inert until
// Start is called.
func New(cfg *config.DashboardConfig, opts ...Option) (*Session, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	tokens := o.tokens
	if tokens == nil {
		if cfg.API.TokenPath == "" {
			return nil, fmt.Errorf("no token source: set api.token_path or provide a token store")
		}
		store, err := auth.NewFileStore(cfg.API.TokenPath)
		if err != nil {
			return nil, fmt.Errorf("token store: %w", err)
		}
		tokens = store
	}

	client := o.client
	if client == nil {
		client = api.NewClient(cfg.API.BaseURL, tokens,
			api.WithTimeout(cfg.API.Timeout),
			api.WithRetries(cfg.API.MaxRetries, time.Second),
			api.WithLogger(o.logger),
		)
	}

	mgr := o.manager
	if mgr == nil {
		mgr = connection.NewManager(connection.ManagerConfig{
			WSURL:        cfg.API.WSURL,
			RetryDelay:   cfg.Connection.RetryDelay,
			MaxAttempts:  cfg.Connection.MaxAttempts,
			PingTimeout:  cfg.Connection.PingTimeout,
			WriteTimeout: cfg.Connection.WriteTimeout,
			BufferSize:   cfg.Connection.BufferSize,
		}, o.logger)
	}

	store := state.NewStore(cfg.ReadModel.ActivityCap, cfg.ReadModel.FlaggedCap, o.logger)
	window := dedup.NewWindow(cfg.ReadModel.DedupWindow)
	rt := router.NewRouter(mgr.Messages(), window, o.m, o.logger)

	sched := reconcile.New(reconcile.Config{
		Interval: cfg.Reconcile.Interval,
		Timeout:  cfg.Reconcile.Timeout,
	}, client, store, mgr.WatchState(8), o.m, o.logger)

	var stateWatch <-chan connection.StateChange
	if o.m != nil {
		stateWatch = mgr.WatchState(8)
	}

	return &Session{
		logger:  o.logger,
		m:       o.m,
		tokens:  tokens,
		client:  client,
		manager: mgr,
		router:  rt,
		store:   store,
		sched:   sched,

		stateWatch: stateWatch,
	}, nil
}

// Start connects the push channel and begins routing and reconciling.
// The reducer is subscribed to every known event kind before the first
// message can arrive.
func (s *Session) Start(ctx context.Context) error {
	token, err := s.tokens.Token()
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}

	for _, kind := range model.Kinds() {
		s.regs = append(s.regs, s.router.Register(kind, s.store.Apply))
	}

	if s.stateWatch != nil {
		s.watchDone = make(chan struct{})
		go s.watchConnection()
	}

	if err := s.router.Start(ctx); err != nil {
		return fmt.Errorf("start router: %w", err)
	}
	if err := s.sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := s.manager.Connect(ctx, token); err != nil {
		return fmt.Errorf("connect push channel: %w", err)
	}

	s.logger.Info("dashboard session started")
	return nil
}

// watchConnection mirrors push channel state into the gauge and counts
// each reconnection dial. Exits when the manager closes its watchers.
func (s *Session) watchConnection() {
	defer close(s.watchDone)
	for change := range s.stateWatch {
		s.m.ConnectionState.Set(float64(change.To))
		if change.From == connection.StateReconnecting && change.To == connection.StateConnecting {
			s.m.ReconnectAttempts.Inc()
		}
	}
}

// JoinRoom subscribes the push channel to a room.
func (s *Session) JoinRoom(room string) error {
	return s.manager.JoinRoom(room)
}

// LeaveRoom unsubscribes the push channel from a room.
func (s *Session) LeaveRoom(room string) error {
	return s.manager.LeaveRoom(room)
}

// Snapshot returns a copy of the current read model.
func (s *Session) Snapshot() state.DashboardState {
	return s.store.Snapshot()
}

// Changes returns the read model's coalesced change notification channel.
func (s *Session) Changes() <-chan struct{} {
	return s.store.Changes()
}

// ConnectionState returns the push channel state.
func (s *Session) ConnectionState() connection.State {
	return s.manager.State()
}

// Refresh forces an out-of-band reconciliation run.
func (s *Session) Refresh() {
	s.sched.Refresh()
}

// Approve requests approval of a pending item. The state change arrives
// via the push channel, not the response.
func (s *Session) Approve(ctx context.Context, id string) error {
	return s.client.ApproveItem(ctx, id)
}

// Reject requests rejection of a pending item.
func (s *Session) Reject(ctx context.Context, id, reason string) error {
	return s.client.RejectItem(ctx, id, reason)
}

// RouterStats returns event routing statistics.
func (s *Session) RouterStats() router.RouterStats {
	return s.router.Stats()
}

// ConnectionStats returns push channel statistics.
func (s *Session) ConnectionStats() connection.ManagerStats {
	return s.manager.Stats()
}

// Close tears the session down: disconnect first so no new messages
// arrive, stop the scheduler, unregister handlers, then close the store
// so anything still in flight is dropped instead of applied.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.manager.Disconnect()
	if s.watchDone != nil {
		<-s.watchDone
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.sched.Stop(stopCtx); err != nil {
		s.logger.Warn("scheduler stop timed out", "error", err)
	}
	if err := s.router.Stop(stopCtx); err != nil {
		s.logger.Warn("router stop timed out", "error", err)
	}

	for _, tok := range s.regs {
		s.router.Unregister(tok)
	}
	s.regs = nil

	s.store.Close()

	s.logger.Info("dashboard session closed")
	return nil
}
