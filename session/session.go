// Package session owns one logical connection to a trading terminal.
//
// A Session wraps a terminal.Gateway handle and layers connection lifecycle
// on top of it: bounded retry with backoff on connect, on-demand launch of
// the terminal executable when the gateway reports the process is not
// running, idempotent disconnect, and a fail-fast connectivity guard used by
// every operation that talks to the terminal.
//
// A Session serializes its own lifecycle operations. Trade submissions
// against the underlying gateway are expected to come from one goroutine at
// a time; that is caller discipline, not enforced here.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rustyeddy/gomt5/errs"
	"github.com/rustyeddy/gomt5/terminal"
)

// Credentials identify one trading account. A nil *Credentials means "attach
// to whatever account the terminal is already logged into".
type Credentials struct {
	Login    int64
	Password string
	Server   string
}

// Config tunes the connect/retry behavior.
type Config struct {
	Retries    int           // connect attempts before giving up
	RetryDelay time.Duration // base delay between attempts
	Timeout    time.Duration // terminal call timeout, passed through
	LaunchWait time.Duration // settle time after launching the terminal
	Portable   bool

	// NewBackOff builds the delay schedule for one connect cycle. The
	// default is a constant RetryDelay; swap in an exponential schedule
	// for flaky links.
	NewBackOff func() backoff.BackOff

	// Launcher starts the terminal executable at the given path. The
	// default uses os/exec; tests substitute their own.
	Launcher func(path string) error
}

func (c *Config) fillDefaults() {
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.LaunchWait <= 0 {
		c.LaunchWait = 5 * time.Second
	}
	if c.NewBackOff == nil {
		delay := c.RetryDelay
		c.NewBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(delay) }
	}
	if c.Launcher == nil {
		c.Launcher = launchTerminal
	}
}

// Option configures a Session.
type Option func(*Session)

// WithConfig replaces the whole retry configuration.
func WithConfig(cfg Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

// WithRetries sets the connect attempt budget.
func WithRetries(n int) Option {
	return func(s *Session) { s.cfg.Retries = n }
}

// WithRetryDelay sets the base delay between connect attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Session) { s.cfg.RetryDelay = d }
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// Session is one logical terminal connection. The zero value is not usable;
// construct with New.
type Session struct {
	gw  terminal.Gateway
	cfg Config
	log *slog.Logger

	mu          sync.Mutex
	connected   bool
	creds       *Credentials
	path        string
	retryCount  int
	lastAttempt time.Time
}

// New wraps a gateway handle. The session takes exclusive ownership of it.
func New(gw terminal.Gateway, opts ...Option) *Session {
	s := &Session{gw: gw, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg.fillDefaults()
	return s
}

// Connect establishes a terminal session, retrying transient failures up to
// the configured attempt budget. When the terminal reports "IPC send failed"
// (process not running) and a path is known, the executable is launched once
// and the attempt repeated.
//
// creds may be nil to attach to the terminal's current account. path may be
// empty when the terminal is already running.
func (s *Session) Connect(ctx context.Context, creds *Credentials, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx, creds, path)
}

func (s *Session) connectLocked(ctx context.Context, creds *Credentials, path string) error {
	params := terminal.ConnectParams{
		Path:     path,
		Timeout:  s.cfg.Timeout,
		Portable: s.cfg.Portable,
	}
	if creds != nil {
		params.Login = creds.Login
		params.Password = creds.Password
		params.Server = creds.Server
	}

	bo := s.cfg.NewBackOff()
	launched := false
	lastCode, lastMsg := 0, ""

	for attempt := 1; attempt <= s.cfg.Retries; attempt++ {
		s.lastAttempt = time.Now()
		if s.gw.Initialize(params) {
			s.connected = true
			s.creds = creds
			s.path = path
			s.retryCount = attempt - 1
			s.log.Info("terminal connected", "login", params.Login, "server", params.Server, "attempt", attempt)
			return nil
		}

		lastCode, lastMsg = s.gw.LastError()
		s.retryCount = attempt
		s.log.Warn("terminal connect failed", "attempt", attempt, "retries", s.cfg.Retries, "code", lastCode, "msg", lastMsg)

		if lastCode == terminal.ErrIPCSendFailed && path != "" && !launched {
			launched = true
			if err := s.cfg.Launcher(path); err != nil {
				s.log.Warn("terminal launch failed", "path", path, "err", err)
			} else {
				s.log.Info("terminal launching", "path", path, "wait", s.cfg.LaunchWait)
				if err := sleep(ctx, s.cfg.LaunchWait); err != nil {
					return errs.Connection("connect", lastCode, "canceled while launching terminal: %v", err)
				}
				attempt-- // the launch retry does not consume the budget
				continue
			}
		}

		if attempt < s.cfg.Retries {
			if err := sleep(ctx, bo.NextBackOff()); err != nil {
				return errs.Connection("connect", lastCode, "canceled: %v", err)
			}
		}
	}

	s.connected = false
	return errs.Connection("connect", lastCode, "failed after %d attempts: %s", s.cfg.Retries, lastMsg)
}

// Disconnect releases the terminal session. Calling it on an already
// disconnected session is a no-op.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return
	}
	s.gw.Shutdown()
	s.connected = false
	s.log.Info("terminal disconnected")
}

// EnsureConnected fails fast when no terminal session is active. Every
// gateway-facing operation calls this before touching the terminal.
func (s *Session) EnsureConnected() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return errs.Connection("ensure_connected", 0, "not connected to terminal")
	}
	return nil
}

// IsConnected reports the session's view of connectivity.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Switch moves the session to different credentials. When a session is
// active, the terminal's login call is used so the process keeps running;
// otherwise a full connect cycle runs. The session lock is held throughout,
// so no caller observes a half-switched session.
func (s *Session) Switch(ctx context.Context, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return s.connectLocked(ctx, &creds, s.path)
	}
	if s.gw.Login(creds.Login, creds.Password, creds.Server, s.cfg.Timeout) {
		s.creds = &creds
		s.log.Info("account switched", "login", creds.Login, "server", creds.Server)
		return nil
	}
	code, msg := s.gw.LastError()
	// The previous account remains active on the terminal side.
	return errs.Connection("switch", code, "login %d failed: %s", creds.Login, msg)
}

// Credentials returns a copy of the credentials this session connected with,
// or nil when it attached to the terminal's current account.
func (s *Session) Credentials() *Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds == nil {
		return nil
	}
	cp := *s.creds
	return &cp
}

// RetryCount returns the number of failed attempts in the last connect cycle.
func (s *Session) RetryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryCount
}

// Terminal exposes the owned gateway handle. Callers must hold a successful
// EnsureConnected before using it and must not share it across goroutines.
func (s *Session) Terminal() terminal.Gateway { return s.gw }

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
