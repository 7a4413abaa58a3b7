// Package bridge implements terminal.Gateway over a local stream socket.
//
// The bridge process sits next to the terminal and exposes its API as
// newline-delimited JSON request/response frames. Calls are strictly
// synchronous: one frame out, one frame back, serialized by a client-side
// mutex, with the configured call timeout applied as a socket deadline.
package bridge

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rustyeddy/gomt5/terminal"
)

const defaultTimeout = 60 * time.Second

var _ terminal.Gateway = (*Client)(nil)

// Client is a connected bridge endpoint. It is owned by a single session and
// must not be shared across sessions.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	enc     *json.Encoder
	dec     *json.Decoder
	timeout time.Duration
	nextID  uint64

	lastCode int
	lastMsg  string

	log *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call socket deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Dial connects to a bridge listening on network/addr ("tcp",
// "127.0.0.1:18812" or "unix", "/run/mt-bridge.sock").
func Dial(network, addr string, opts ...Option) (*Client, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial bridge %s/%s: %w", network, addr, err)
	}
	return NewClient(conn, opts...), nil
}

// NewClient wraps an established connection. Dial is the usual entry point;
// NewClient exists for callers that manage their own transport.
func NewClient(conn net.Conn, opts ...Option) *Client {
	c := &Client{
		conn:    conn,
		enc:     json.NewEncoder(conn),
		dec:     json.NewDecoder(bufio.NewReader(conn)),
		timeout: defaultTimeout,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close tears down the socket. The terminal session, if any, should be
// released with Shutdown first.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

type frame struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type reply struct {
	ID      uint64          `json:"id"`
	OK      bool            `json:"ok"`
	Code    int             `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// invoke performs one synchronous round trip. It returns false on transport
// failure or when the bridge reports ok=false; LastError carries the cause
// either way, mirroring the terminal's boolean-plus-last-error shape.
func (c *Client) invoke(method string, params, out any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	req := frame{ID: c.nextID, Method: method, Params: params}

	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		c.lastCode, c.lastMsg = terminal.ErrIPCInitFailed, err.Error()
		return false
	}
	if err := c.enc.Encode(req); err != nil {
		c.lastCode, c.lastMsg = terminal.ErrIPCSendFailed, err.Error()
		c.log.Debug("bridge send failed", "method", method, "err", err)
		return false
	}
	var r reply
	if err := c.dec.Decode(&r); err != nil {
		c.lastCode, c.lastMsg = terminal.ErrIPCRecvFailed, err.Error()
		c.log.Debug("bridge recv failed", "method", method, "err", err)
		return false
	}
	if r.ID != req.ID {
		c.lastCode, c.lastMsg = terminal.ErrIPCRecvFailed, fmt.Sprintf("frame id mismatch: sent %d, got %d", req.ID, r.ID)
		return false
	}
	if !r.OK {
		c.lastCode, c.lastMsg = r.Code, r.Message
		return false
	}
	c.lastCode, c.lastMsg = terminal.ErrOK, ""
	if out != nil && len(r.Result) > 0 {
		if err := json.Unmarshal(r.Result, out); err != nil {
			c.lastCode, c.lastMsg = terminal.ErrIPCRecvFailed, err.Error()
			return false
		}
	}
	return true
}

// Initialize implements terminal.Gateway.
func (c *Client) Initialize(p terminal.ConnectParams) bool {
	return c.invoke("initialize", p, nil)
}

// Login implements terminal.Gateway.
func (c *Client) Login(login int64, password, server string, timeout time.Duration) bool {
	return c.invoke("login", terminal.ConnectParams{
		Login: login, Password: password, Server: server, Timeout: timeout,
	}, nil)
}

// Shutdown implements terminal.Gateway.
func (c *Client) Shutdown() {
	c.invoke("shutdown", nil, nil)
}

// LastError implements terminal.Gateway.
func (c *Client) LastError() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCode, c.lastMsg
}

// OrderSend implements terminal.Gateway.
func (c *Client) OrderSend(req terminal.TradeRequest) *terminal.TradeResult {
	var res terminal.TradeResult
	if !c.invoke("order_send", req, &res) {
		return nil
	}
	return &res
}

// OrderCheck implements terminal.Gateway.
func (c *Client) OrderCheck(req terminal.TradeRequest) *terminal.CheckResult {
	var res terminal.CheckResult
	if !c.invoke("order_check", req, &res) {
		return nil
	}
	return &res
}

type selectorParams struct {
	Ticket uint64 `json:"ticket,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

// PositionsGet implements terminal.Gateway.
func (c *Client) PositionsGet(sel terminal.Selector) []terminal.Position {
	var res []terminal.Position
	if !c.invoke("positions_get", selectorParams{Ticket: sel.Ticket, Symbol: sel.Symbol}, &res) {
		return nil
	}
	return res
}

// OrdersGet implements terminal.Gateway.
func (c *Client) OrdersGet(sel terminal.Selector) []terminal.Order {
	var res []terminal.Order
	if !c.invoke("orders_get", selectorParams{Ticket: sel.Ticket, Symbol: sel.Symbol}, &res) {
		return nil
	}
	return res
}

type historyParams struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// HistoryDeals implements terminal.Gateway.
func (c *Client) HistoryDeals(from, to time.Time) []terminal.Deal {
	var res []terminal.Deal
	if !c.invoke("history_deals_get", historyParams{From: from, To: to}, &res) {
		return nil
	}
	return res
}

// AccountInfo implements terminal.Gateway.
func (c *Client) AccountInfo() *terminal.AccountInfo {
	var res terminal.AccountInfo
	if !c.invoke("account_info", nil, &res) {
		return nil
	}
	return &res
}

type symbolParams struct {
	Symbol string `json:"symbol"`
}

// SymbolInfo implements terminal.Gateway.
func (c *Client) SymbolInfo(symbol string) *terminal.SymbolInfo {
	var res terminal.SymbolInfo
	if !c.invoke("symbol_info", symbolParams{Symbol: symbol}, &res) {
		return nil
	}
	return &res
}

// SymbolTick implements terminal.Gateway.
func (c *Client) SymbolTick(symbol string) *terminal.Tick {
	var res terminal.Tick
	if !c.invoke("symbol_info_tick", symbolParams{Symbol: symbol}, &res) {
		return nil
	}
	return &res
}

type groupParams struct {
	Group string `json:"group,omitempty"`
}

// Symbols implements terminal.Gateway.
func (c *Client) Symbols(group string) []string {
	var res []string
	if !c.invoke("symbols_get", groupParams{Group: group}, &res) {
		return nil
	}
	return res
}

type calcParams struct {
	Type   terminal.OrderType `json:"type"`
	Symbol string             `json:"symbol"`
	Volume float64            `json:"volume"`
	Open   float64            `json:"price_open"`
	Close  float64            `json:"price_close,omitempty"`
}

// CalcMargin implements terminal.Gateway.
func (c *Client) CalcMargin(t terminal.OrderType, symbol string, volume, price float64) (float64, bool) {
	var res float64
	ok := c.invoke("order_calc_margin", calcParams{Type: t, Symbol: symbol, Volume: volume, Open: price}, &res)
	return res, ok
}

// CalcProfit implements terminal.Gateway.
func (c *Client) CalcProfit(t terminal.OrderType, symbol string, volume, open, close float64) (float64, bool) {
	var res float64
	ok := c.invoke("order_calc_profit", calcParams{Type: t, Symbol: symbol, Volume: volume, Open: open, Close: close}, &res)
	return res, ok
}
