// Package info exposes the terminal's read-only queries: account state,
// instrument specifications and quotes, open positions, pending orders, and
// deal history. Every call fails fast when the session is disconnected and
// never mutates terminal state.
package info

import (
	"time"

	"github.com/rustyeddy/gomt5/errs"
	"github.com/rustyeddy/gomt5/session"
	"github.com/rustyeddy/gomt5/terminal"
)

// Client wraps one session's query surface.
type Client struct {
	sess *session.Session
}

// New builds a query client over sess.
func New(sess *session.Session) *Client {
	return &Client{sess: sess}
}

// Account returns the logged-in account's state snapshot.
func (c *Client) Account() (*terminal.AccountInfo, error) {
	if err := c.sess.EnsureConnected(); err != nil {
		return nil, err
	}
	gw := c.sess.Terminal()
	acct := gw.AccountInfo()
	if acct == nil {
		code, msg := gw.LastError()
		return nil, errs.Connection("account_info", code, "%s", msg)
	}
	return acct, nil
}

// Symbol returns the specification of one instrument.
func (c *Client) Symbol(name string) (*terminal.SymbolInfo, error) {
	if name == "" {
		return nil, errs.Validation("symbol", "must not be empty")
	}
	if err := c.sess.EnsureConnected(); err != nil {
		return nil, err
	}
	gw := c.sess.Terminal()
	sym := gw.SymbolInfo(name)
	if sym == nil {
		code, msg := gw.LastError()
		return nil, errs.Connection("symbol_info", code, "symbol %s: %s", name, msg)
	}
	return sym, nil
}

// Tick returns the latest quote for one instrument.
func (c *Client) Tick(name string) (*terminal.Tick, error) {
	if name == "" {
		return nil, errs.Validation("symbol", "must not be empty")
	}
	if err := c.sess.EnsureConnected(); err != nil {
		return nil, err
	}
	gw := c.sess.Terminal()
	tick := gw.SymbolTick(name)
	if tick == nil {
		code, msg := gw.LastError()
		return nil, errs.Connection("symbol_tick", code, "symbol %s: %s", name, msg)
	}
	return tick, nil
}

// Symbols lists instrument names, optionally filtered by group. An empty
// group lists everything.
func (c *Client) Symbols(group string) ([]string, error) {
	if err := c.sess.EnsureConnected(); err != nil {
		return nil, err
	}
	return c.sess.Terminal().Symbols(group), nil
}

// Positions lists open positions, all of them for a zero selector.
func (c *Client) Positions(sel terminal.Selector) ([]terminal.Position, error) {
	if err := c.sess.EnsureConnected(); err != nil {
		return nil, err
	}
	return c.sess.Terminal().PositionsGet(sel), nil
}

// Position fetches one open position by ticket.
func (c *Client) Position(ticket uint64) (*terminal.Position, error) {
	if ticket == 0 {
		return nil, errs.Validation("ticket", "must not be zero")
	}
	positions, err := c.Positions(terminal.Selector{Ticket: ticket})
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, errs.Validation("ticket", "no open position with ticket %d", ticket)
	}
	return &positions[0], nil
}

// Orders lists pending orders, all of them for a zero selector.
func (c *Client) Orders(sel terminal.Selector) ([]terminal.Order, error) {
	if err := c.sess.EnsureConnected(); err != nil {
		return nil, err
	}
	return c.sess.Terminal().OrdersGet(sel), nil
}

// Deals lists historical executions in [from, to].
func (c *Client) Deals(from, to time.Time) ([]terminal.Deal, error) {
	if to.Before(from) {
		return nil, errs.Validation("range", "to %s precedes from %s", to, from)
	}
	if err := c.sess.EnsureConnected(); err != nil {
		return nil, err
	}
	return c.sess.Terminal().HistoryDeals(from, to), nil
}
