// Package terminal defines the narrow synchronous surface of the trading
// terminal this library drives, along with the wire-level record types and
// the terminal's return-code tables.
//
// The terminal itself is opaque: calls either succeed, return a result
// carrying a trade retcode, or return nil to signal a local/transport
// failure whose cause is introspectable through LastError. Implementations
// live in terminal/bridge (real terminal over a local socket) and
// terminal/sim (in-memory simulator used by tests and demos).
package terminal

import "time"

// TradeAction selects the kind of trade operation in a TradeRequest.
type TradeAction int

const (
	ActionDeal    TradeAction = 1 // immediate market execution
	ActionPending TradeAction = 5 // place a pending order
	ActionSLTP    TradeAction = 6 // modify SL/TP of an open position
	ActionModify  TradeAction = 7 // modify a pending order
	ActionRemove  TradeAction = 8 // delete a pending order
)

// OrderType is the direction/trigger combination of an order.
type OrderType int

const (
	OrderBuy OrderType = iota
	OrderSell
	OrderBuyLimit
	OrderSellLimit
	OrderBuyStop
	OrderSellStop
)

func (t OrderType) String() string {
	switch t {
	case OrderBuy:
		return "buy"
	case OrderSell:
		return "sell"
	case OrderBuyLimit:
		return "buy_limit"
	case OrderSellLimit:
		return "sell_limit"
	case OrderBuyStop:
		return "buy_stop"
	case OrderSellStop:
		return "sell_stop"
	}
	return "unknown"
}

// Buy reports whether the order type is on the buy side.
func (t OrderType) Buy() bool {
	return t == OrderBuy || t == OrderBuyLimit || t == OrderBuyStop
}

// Order lifetime policies.
type TimeType int

const (
	TimeGTC TimeType = iota // good till cancelled
	TimeDay
	TimeSpecified
)

// Fill policies.
type FillType int

const (
	FillFOK FillType = iota // fill or kill
	FillIOC                 // immediate or cancel
	FillReturn
)

// Symbol fill-mode capability flags, as reported by SymbolInfo.FillingMode.
const (
	FillingFOK = 1 << 0
	FillingIOC = 1 << 1
)

// TradeRequest is the mapping submitted to OrderSend / OrderCheck.
type TradeRequest struct {
	Action      TradeAction `json:"action"`
	Symbol      string      `json:"symbol,omitempty"`
	Volume      float64     `json:"volume,omitempty"`
	Type        OrderType   `json:"type"`
	Price       float64     `json:"price,omitempty"`
	SL          float64     `json:"sl,omitempty"`
	TP          float64     `json:"tp,omitempty"`
	Deviation   int         `json:"deviation,omitempty"`
	Magic       int64       `json:"magic,omitempty"`
	Comment     string      `json:"comment,omitempty"`
	Position    uint64      `json:"position,omitempty"` // ticket to close/modify
	Order       uint64      `json:"order,omitempty"`    // pending ticket to modify/remove
	TypeTime    TimeType    `json:"type_time"`
	TypeFilling FillType    `json:"type_filling"`
}

// TradeResult is the terminal's answer to OrderSend.
type TradeResult struct {
	Retcode uint32  `json:"retcode"`
	Deal    uint64  `json:"deal,omitempty"`
	Order   uint64  `json:"order,omitempty"`
	Volume  float64 `json:"volume,omitempty"`
	Price   float64 `json:"price,omitempty"`
	Bid     float64 `json:"bid,omitempty"`
	Ask     float64 `json:"ask,omitempty"`
	Comment string  `json:"comment,omitempty"`
}

// CheckResult is the terminal's answer to OrderCheck: the projected account
// state if the request were executed.
type CheckResult struct {
	Retcode     uint32  `json:"retcode"`
	Balance     float64 `json:"balance"`
	Equity      float64 `json:"equity"`
	Profit      float64 `json:"profit"`
	Margin      float64 `json:"margin"`
	MarginFree  float64 `json:"margin_free"`
	MarginLevel float64 `json:"margin_level"`
	Comment     string  `json:"comment,omitempty"`
}

// Position is an open position record.
type Position struct {
	Ticket   uint64    `json:"ticket"`
	Symbol   string    `json:"symbol"`
	Type     OrderType `json:"type"` // OrderBuy or OrderSell
	Volume   float64   `json:"volume"`
	Open     float64   `json:"price_open"`
	Current  float64   `json:"price_current"`
	SL       float64   `json:"sl,omitempty"`
	TP       float64   `json:"tp,omitempty"`
	Profit   float64   `json:"profit"`
	Magic    int64     `json:"magic,omitempty"`
	Comment  string    `json:"comment,omitempty"`
	OpenTime time.Time `json:"time"`
}

// Order is a pending order record.
type Order struct {
	Ticket    uint64    `json:"ticket"`
	Symbol    string    `json:"symbol"`
	Type      OrderType `json:"type"`
	Volume    float64   `json:"volume_current"`
	Price     float64   `json:"price_open"`
	SL        float64   `json:"sl,omitempty"`
	TP        float64   `json:"tp,omitempty"`
	Magic     int64     `json:"magic,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	SetupTime time.Time `json:"time_setup"`
}

// Deal is a historical execution record.
type Deal struct {
	Ticket   uint64    `json:"ticket"`
	Order    uint64    `json:"order"`
	Position uint64    `json:"position_id"`
	Symbol   string    `json:"symbol"`
	Type     OrderType `json:"type"`
	Volume   float64   `json:"volume"`
	Price    float64   `json:"price"`
	Profit   float64   `json:"profit"`
	Magic    int64     `json:"magic,omitempty"`
	Comment  string    `json:"comment,omitempty"`
	Time     time.Time `json:"time"`
}

// AccountInfo is the terminal's snapshot of the logged-in account.
type AccountInfo struct {
	Login       int64   `json:"login"`
	Server      string  `json:"server"`
	Name        string  `json:"name,omitempty"`
	Currency    string  `json:"currency"`
	Leverage    int64   `json:"leverage"`
	Balance     float64 `json:"balance"`
	Equity      float64 `json:"equity"`
	Profit      float64 `json:"profit"`
	Margin      float64 `json:"margin"`
	MarginFree  float64 `json:"margin_free"`
	MarginLevel float64 `json:"margin_level"`
	TradeMode   int     `json:"trade_mode"`
}

// SymbolInfo is the terminal's specification of one instrument.
type SymbolInfo struct {
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	Digits        int     `json:"digits"`
	Point         float64 `json:"point"`
	VolumeMin     float64 `json:"volume_min"`
	VolumeMax     float64 `json:"volume_max"`
	VolumeStep    float64 `json:"volume_step"`
	ContractSize  float64 `json:"trade_contract_size"`
	FillingMode   int     `json:"filling_mode"`
	TradeStopsPts int     `json:"trade_stops_level"`
	Visible       bool    `json:"visible"`
}

// Tick is the most recent quote for one instrument.
type Tick struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Last   float64   `json:"last,omitempty"`
	Time   time.Time `json:"time"`
}

// Selector filters PositionsGet / OrdersGet. A zero Selector matches
// everything; a non-zero Ticket wins over Symbol.
type Selector struct {
	Ticket uint64
	Symbol string
}

// Matches reports whether the pair (ticket, symbol) satisfies the selector.
func (s Selector) Matches(ticket uint64, symbol string) bool {
	if s.Ticket != 0 {
		return s.Ticket == ticket
	}
	if s.Symbol != "" {
		return s.Symbol == symbol
	}
	return true
}

// ConnectParams carries everything Initialize needs. Zero-valued fields are
// omitted from the call: a zero Login means "attach to whatever account the
// terminal is already logged into".
type ConnectParams struct {
	Path     string        `json:"path,omitempty"`
	Login    int64         `json:"login,omitempty"`
	Password string        `json:"password,omitempty"`
	Server   string        `json:"server,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
	Portable bool          `json:"portable,omitempty"`
}

// Gateway is the call surface the rest of the library consumes. It mirrors
// the terminal's C-style API: boolean success plus LastError, and nil
// results to signal local/transport failure. Higher layers translate these
// shapes into typed errors; implementations never should.
//
// A Gateway handle is owned by exactly one Session and is not safe for
// concurrent use.
type Gateway interface {
	// Initialize establishes the IPC session, optionally logging into a
	// specific account. On false, LastError explains why.
	Initialize(p ConnectParams) bool
	// Login switches the already-initialized terminal to another account.
	Login(login int64, password, server string, timeout time.Duration) bool
	// Shutdown releases the IPC session. Safe to call repeatedly.
	Shutdown()
	// LastError returns the code and message of the most recent failure.
	LastError() (int, string)

	// OrderSend submits a trade request. A nil result is a transport
	// failure (the request may or may not have reached the server); a
	// non-nil result carries the server's retcode.
	OrderSend(req TradeRequest) *TradeResult
	// OrderCheck asks the server to validate a request without executing.
	OrderCheck(req TradeRequest) *CheckResult

	PositionsGet(sel Selector) []Position
	OrdersGet(sel Selector) []Order
	HistoryDeals(from, to time.Time) []Deal

	AccountInfo() *AccountInfo
	SymbolInfo(symbol string) *SymbolInfo
	SymbolTick(symbol string) *Tick
	Symbols(group string) []string

	// CalcMargin and CalcProfit are the terminal's pure trade calculators;
	// the bool is false when the terminal could not compute.
	CalcMargin(t OrderType, symbol string, volume, price float64) (float64, bool)
	CalcProfit(t OrderType, symbol string, volume, open, close float64) (float64, bool)
}

// PreferredFill picks the fill policy a symbol supports, preferring IOC.
func PreferredFill(info *SymbolInfo) FillType {
	if info == nil {
		return FillIOC
	}
	switch {
	case info.FillingMode&FillingIOC != 0:
		return FillIOC
	case info.FillingMode&FillingFOK != 0:
		return FillFOK
	default:
		return FillReturn
	}
}
