// Package registry coordinates named terminal sessions.
//
// A Registry maps account names to exclusively-owned sessions and tracks a
// single "active" account that unaddressed operations route to. It is the
// one shared structure in this library that arbitrary goroutines touch, so
// every map/pointer mutation happens under one mutex — and that mutex is
// never held across a gateway call: connects and disconnects run outside it,
// with the lock re-acquired only to install or remove the entry.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/rustyeddy/gomt5/errs"
	"github.com/rustyeddy/gomt5/session"
	"github.com/rustyeddy/gomt5/terminal"
)

// GatewayFactory builds a fresh gateway handle for each registered account.
// Every session owns its own handle; handles are never shared.
type GatewayFactory func() (terminal.Gateway, error)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithSessionOptions applies the given session options to every session the
// registry creates.
func WithSessionOptions(opts ...session.Option) Option {
	return func(r *Registry) { r.sessOpts = opts }
}

// Registry is a thread-safe set of named sessions plus an active pointer.
// Construct independent instances with New; there is deliberately no hidden
// package-level singleton.
type Registry struct {
	factory  GatewayFactory
	sessOpts []session.Option
	log      *slog.Logger

	mu       sync.Mutex
	accounts map[string]*session.Session // nil value = name reserved, connect in flight
	active   string
}

// New builds an empty registry. factory is required.
func New(factory GatewayFactory, opts ...Option) *Registry {
	r := &Registry{
		factory:  factory,
		log:      slog.Default(),
		accounts: make(map[string]*session.Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddAccount creates a session for name, connects it, and installs it. The
// name is reserved before the (slow) connect so concurrent adds of the same
// name fail immediately; on connect failure nothing is registered.
//
// The first successfully added account becomes the active account.
func (r *Registry) AddAccount(ctx context.Context, name string, creds session.Credentials, path string) error {
	r.mu.Lock()
	if _, exists := r.accounts[name]; exists {
		r.mu.Unlock()
		return errs.Validation("name", "account %q already exists", name)
	}
	r.accounts[name] = nil // reserve
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		delete(r.accounts, name)
		r.mu.Unlock()
	}

	gw, err := r.factory()
	if err != nil {
		release()
		return fmt.Errorf("add account %q: %w", name, err)
	}
	sess := session.New(gw, r.sessOpts...)
	if err := sess.Connect(ctx, &creds, path); err != nil {
		release()
		return fmt.Errorf("add account %q: %w", name, err)
	}

	r.mu.Lock()
	r.accounts[name] = sess
	if r.active == "" {
		r.active = name
	}
	r.mu.Unlock()

	r.log.Info("account added", "name", name, "login", creds.Login, "server", creds.Server)
	return nil
}

// RemoveAccount disconnects and discards the named session. Removing an
// unknown name is a no-op. If the removed account was active, the active
// pointer becomes empty.
func (r *Registry) RemoveAccount(name string) {
	r.mu.Lock()
	sess, ok := r.accounts[name]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.accounts, name)
	if r.active == name {
		r.active = ""
	}
	r.mu.Unlock()

	if sess != nil {
		sess.Disconnect()
	}
	r.log.Info("account removed", "name", name)
}

// SwitchAccount points subsequent unaddressed operations at name. It is a
// pointer reassignment only; it never reconnects and never blocks on I/O.
func (r *Registry) SwitchAccount(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.accounts[name]
	if !ok || sess == nil {
		return errs.Validation("name", "unknown account %q", name)
	}
	r.active = name
	return nil
}

// CurrentAccount returns the active session.
func (r *Registry) CurrentAccount() (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == "" {
		return nil, errs.Connection("current_account", 0, "no active account")
	}
	sess := r.accounts[r.active]
	if sess == nil {
		return nil, errs.Connection("current_account", 0, "no active account")
	}
	return sess, nil
}

// ActiveName returns the active account's name, or "" when none is set.
func (r *Registry) ActiveName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Account returns the named session.
func (r *Registry) Account(name string) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.accounts[name]
	if !ok || sess == nil {
		return nil, false
	}
	return sess, true
}

// Names lists the registered account names.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.accounts))
	for name, sess := range r.accounts {
		if sess != nil {
			names = append(names, name)
		}
	}
	return names
}

// Operation runs against one account's session during ExecuteOnAll.
type Operation func(ctx context.Context, name string, sess *session.Session) (any, error)

// Outcome is the per-account result of ExecuteOnAll.
type Outcome struct {
	Value any
	Err   error
}

// ExecuteOnAll applies op to every registered session and returns one
// outcome per account. A stable snapshot of the accounts is taken under the
// lock, then operations run concurrently without it, so switches and reads
// from other goroutines proceed meanwhile. One account's failure never
// aborts the others and is never raised: it lands in that account's outcome.
func (r *Registry) ExecuteOnAll(ctx context.Context, op Operation) map[string]Outcome {
	r.mu.Lock()
	snapshot := make(map[string]*session.Session, len(r.accounts))
	for name, sess := range r.accounts {
		if sess != nil {
			snapshot[name] = sess
		}
	}
	r.mu.Unlock()

	results := make(map[string]Outcome, len(snapshot))
	var resMu sync.Mutex

	p := pool.New().WithMaxGoroutines(len(snapshot) + 1)
	for name, sess := range snapshot {
		name, sess := name, sess
		p.Go(func() {
			var out Outcome
			defer func() {
				if rec := recover(); rec != nil {
					out = Outcome{Err: fmt.Errorf("account %q: panic: %v", name, rec)}
				}
				resMu.Lock()
				results[name] = out
				resMu.Unlock()
			}()
			if err := sess.EnsureConnected(); err != nil {
				out = Outcome{Err: err}
				return
			}
			v, err := op(ctx, name, sess)
			out = Outcome{Value: v, Err: err}
		})
	}
	p.Wait()
	return results
}

// Close disconnects every session and clears the registry. It runs the same
// way on normal exit and on error paths, and is safe to call repeatedly.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := make([]*session.Session, 0, len(r.accounts))
	for _, sess := range r.accounts {
		if sess != nil {
			sessions = append(sessions, sess)
		}
	}
	r.accounts = make(map[string]*session.Session)
	r.active = ""
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.Disconnect()
	}
	if len(sessions) > 0 {
		r.log.Info("registry closed", "accounts", len(sessions))
	}
}
