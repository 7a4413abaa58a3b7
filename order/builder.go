// Package order builds and executes trade requests.
//
// The Builder accumulates one order intent through a fluent chain and turns
// it into an immutable Request value; the Executor validates, submits, and
// retries requests against a session, translating terminal failures into the
// errs taxonomy.
package order

import (
	"github.com/rustyeddy/gomt5/errs"
	"github.com/rustyeddy/gomt5/terminal"
)

// Side is the direction of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// Kind is the execution style of an order.
type Kind int

const (
	Market Kind = iota
	Limit
	Stop
)

func (k Kind) String() string {
	switch k {
	case Limit:
		return "limit"
	case Stop:
		return "stop"
	}
	return "market"
}

// MaxCommentLen is the terminal-imposed comment limit.
const MaxCommentLen = 31

// Request is a validated, normalized order intent. It is a plain value:
// Build produces it once and nothing mutates it afterwards.
type Request struct {
	Symbol    string
	Side      Side
	Kind      Kind
	Volume    float64
	Price     float64 // entry price; zero for market orders
	SL        float64 // zero = no stop-loss
	TP        float64 // zero = no take-profit
	Deviation int
	Magic     int64
	Comment   string
	Position  uint64 // existing ticket, set when closing against a position
}

// OrderType maps the side/kind pair onto the terminal's order type.
func (r Request) OrderType() terminal.OrderType {
	switch r.Kind {
	case Limit:
		if r.Side == Buy {
			return terminal.OrderBuyLimit
		}
		return terminal.OrderSellLimit
	case Stop:
		if r.Side == Buy {
			return terminal.OrderBuyStop
		}
		return terminal.OrderSellStop
	default:
		if r.Side == Buy {
			return terminal.OrderBuy
		}
		return terminal.OrderSell
	}
}

// TradeRequest renders the wire-level mapping submitted to the terminal.
func (r Request) TradeRequest(fill terminal.FillType) terminal.TradeRequest {
	action := terminal.ActionDeal
	if r.Kind != Market {
		action = terminal.ActionPending
	}
	return terminal.TradeRequest{
		Action:      action,
		Symbol:      r.Symbol,
		Volume:      r.Volume,
		Type:        r.OrderType(),
		Price:       r.Price,
		SL:          r.SL,
		TP:          r.TP,
		Deviation:   r.Deviation,
		Magic:       r.Magic,
		Comment:     r.Comment,
		Position:    r.Position,
		TypeTime:    terminal.TimeGTC,
		TypeFilling: fill,
	}
}

// Builder assembles one order intent through chained calls. Violations are
// recorded on the first offending call and surfaced by Build, Send, or
// Check; later calls on a failed builder are no-ops.
//
// A Builder represents exactly one intent: calling a second directional
// method (MarketBuy after LimitSell, and so on) is an error.
type Builder struct {
	exec *Executor // nil for detached builders

	req        Request
	configured bool
	err        error
}

// NewBuilder starts a detached builder for symbol. Builders created through
// Executor.Order additionally inherit the executor's defaults and can Send.
func NewBuilder(symbol string) *Builder {
	return &Builder{req: Request{Symbol: symbol, Deviation: DefaultDeviation}}
}

func (b *Builder) direction(side Side, kind Kind, volume, price float64) *Builder {
	if b.err != nil {
		return b
	}
	if b.configured {
		b.err = errs.Validation("order", "builder already configured as %s %s; one builder holds one intent",
			b.req.Side, b.req.Kind)
		return b
	}
	b.configured = true
	b.req.Side = side
	b.req.Kind = kind
	b.req.Volume = volume
	b.req.Price = price
	return b
}

// MarketBuy configures an immediate buy. The fill price is resolved by the
// terminal at submission time.
func (b *Builder) MarketBuy(volume float64) *Builder {
	return b.direction(Buy, Market, volume, 0)
}

// MarketSell configures an immediate sell.
func (b *Builder) MarketSell(volume float64) *Builder {
	return b.direction(Sell, Market, volume, 0)
}

// LimitBuy places a pending buy below the market at price.
func (b *Builder) LimitBuy(volume, price float64) *Builder {
	return b.direction(Buy, Limit, volume, price)
}

// LimitSell places a pending sell above the market at price.
func (b *Builder) LimitSell(volume, price float64) *Builder {
	return b.direction(Sell, Limit, volume, price)
}

// StopBuy places a pending buy above the market at price.
func (b *Builder) StopBuy(volume, price float64) *Builder {
	return b.direction(Buy, Stop, volume, price)
}

// StopSell places a pending sell below the market at price.
func (b *Builder) StopSell(volume, price float64) *Builder {
	return b.direction(Sell, Stop, volume, price)
}

// WithSL sets the stop-loss price. Last call wins.
func (b *Builder) WithSL(sl float64) *Builder {
	b.req.SL = sl
	return b
}

// WithTP sets the take-profit price. Last call wins.
func (b *Builder) WithTP(tp float64) *Builder {
	b.req.TP = tp
	return b
}

// WithSLTP sets both protective prices at once.
func (b *Builder) WithSLTP(sl, tp float64) *Builder {
	b.req.SL = sl
	b.req.TP = tp
	return b
}

// WithDeviation sets the maximum slippage in points.
func (b *Builder) WithDeviation(points int) *Builder {
	if b.err == nil && points < 0 {
		b.err = errs.Validation("deviation", "must not be negative, got %d", points)
		return b
	}
	b.req.Deviation = points
	return b
}

// WithMagic tags the order with a strategy identifier.
func (b *Builder) WithMagic(magic int64) *Builder {
	b.req.Magic = magic
	return b
}

// WithComment attaches a comment, at most MaxCommentLen characters.
func (b *Builder) WithComment(comment string) *Builder {
	b.req.Comment = comment
	return b
}

// WithPosition closes against an existing position ticket instead of
// opening a new one.
func (b *Builder) WithPosition(ticket uint64) *Builder {
	b.req.Position = ticket
	return b
}

// Build validates the accumulated intent and returns the immutable Request.
// The first violated constraint is reported; no terminal call is made.
func (b *Builder) Build() (Request, error) {
	if b.err != nil {
		return Request{}, b.err
	}
	if !b.configured {
		return Request{}, errs.Validation("order", "no order type set; call MarketBuy, LimitSell, ...")
	}
	r := b.req
	if r.Symbol == "" {
		return Request{}, errs.Validation("symbol", "must not be empty")
	}
	if r.Volume <= 0 {
		return Request{}, errs.Validation("volume", "must be positive, got %v", r.Volume)
	}
	if r.Kind != Market && r.Price <= 0 {
		return Request{}, errs.Validation("price", "%s %s requires a positive price", r.Side, r.Kind)
	}
	if len(r.Comment) > MaxCommentLen {
		return Request{}, errs.Validation("comment", "longer than %d characters", MaxCommentLen)
	}
	if err := checkStops(r); err != nil {
		return Request{}, err
	}
	return r, nil
}

// checkStops verifies SL/TP sit on the correct side of the entry. Market
// orders have no resolvable entry at build time, so only the pending kinds
// are checked here; the terminal re-validates at submission.
func checkStops(r Request) error {
	if r.Kind == Market {
		return nil
	}
	entry := r.Price
	if r.Side == Buy {
		if r.SL != 0 && r.SL >= entry {
			return errs.Validation("sl", "stop-loss %v must be below the buy entry %v", r.SL, entry)
		}
		if r.TP != 0 && r.TP <= entry {
			return errs.Validation("tp", "take-profit %v must be above the buy entry %v", r.TP, entry)
		}
		return nil
	}
	if r.SL != 0 && r.SL <= entry {
		return errs.Validation("sl", "stop-loss %v must be above the sell entry %v", r.SL, entry)
	}
	if r.TP != 0 && r.TP >= entry {
		return errs.Validation("tp", "take-profit %v must be below the sell entry %v", r.TP, entry)
	}
	return nil
}
