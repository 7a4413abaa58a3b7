package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rustyeddy/gomt5/errs"
	"github.com/rustyeddy/gomt5/internal/id"
	"github.com/rustyeddy/gomt5/journal"
	"github.com/rustyeddy/gomt5/session"
	"github.com/rustyeddy/gomt5/terminal"
)

// DefaultDeviation is the slippage allowance, in points, applied when the
// caller does not set one.
const DefaultDeviation = 20

// Result is the outcome of one accepted submission. The executor never
// mutates a Result after returning it.
type Result struct {
	Retcode uint32
	Ticket  uint64 // position or pending-order ticket
	Deal    uint64
	Volume  float64 // volume filled
	Price   float64 // fill price, zero for pending placements
	Comment string
	Raw     *terminal.TradeResult // terminal's response, nil when recovered

	// Recovered marks results reconstructed from the position/order books
	// after a transport failure whose submission turned out to have been
	// accepted server-side.
	Recovered bool
}

// Config tunes submission retry behavior and request defaults.
type Config struct {
	Retries    int           // submission attempts for retryable conditions
	RetryDelay time.Duration // base delay between attempts
	Magic      int64         // default strategy tag
	Deviation  int           // default slippage allowance

	// NewBackOff builds the delay schedule for one send cycle.
	NewBackOff func() backoff.BackOff
}

func (c *Config) fillDefaults() {
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
	if c.Deviation <= 0 {
		c.Deviation = DefaultDeviation
	}
	if c.NewBackOff == nil {
		delay := c.RetryDelay
		c.NewBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(delay) }
	}
}

// Option configures an Executor.
type Option func(*Executor)

// WithConfig replaces the retry configuration.
func WithConfig(cfg Config) Option {
	return func(e *Executor) { e.cfg = cfg }
}

// WithJournal records every final submission outcome. account labels the
// journal rows.
func WithJournal(j journal.Journal, account string) Option {
	return func(e *Executor) {
		e.journal = j
		e.account = account
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

// Executor validates and submits requests against one session. Submissions
// against a given session must come from one goroutine at a time.
type Executor struct {
	sess    *session.Session
	cfg     Config
	journal journal.Journal
	account string
	log     *slog.Logger
}

// New builds an executor for sess.
func New(sess *session.Session, opts ...Option) *Executor {
	e := &Executor{sess: sess, journal: journal.Nop{}, log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.cfg.fillDefaults()
	return e
}

// Order starts a builder bound to this executor, inheriting its default
// magic and deviation.
func (e *Executor) Order(symbol string) *Builder {
	b := NewBuilder(symbol)
	b.exec = e
	b.req.Magic = e.cfg.Magic
	b.req.Deviation = e.cfg.Deviation
	return b
}

// Send builds the intent and submits it through the bound executor.
func (b *Builder) Send(ctx context.Context) (*Result, error) {
	req, err := b.Build()
	if err != nil {
		return nil, err
	}
	if b.exec == nil {
		return nil, errs.Validation("order", "builder not bound to an executor; use Executor.Order")
	}
	return b.exec.Send(ctx, req)
}

// Check builds the intent and dry-runs it through the bound executor.
func (b *Builder) Check(ctx context.Context) (*terminal.CheckResult, error) {
	req, err := b.Build()
	if err != nil {
		return nil, err
	}
	if b.exec == nil {
		return nil, errs.Validation("order", "builder not bound to an executor; use Executor.Order")
	}
	return b.exec.Check(ctx, req)
}

// Check asks the terminal to validate req without executing it. Margin,
// volume and price problems come back as OrderError with the terminal's
// retcode. Account state is never mutated.
func (e *Executor) Check(_ context.Context, req Request) (*terminal.CheckResult, error) {
	if err := e.sess.EnsureConnected(); err != nil {
		return nil, err
	}
	gw := e.sess.Terminal()

	res := gw.OrderCheck(req.TradeRequest(e.fill(req.Symbol)))
	if res == nil {
		code, msg := gw.LastError()
		return nil, &errs.OrderError{Op: "order_check", Code: code, Message: msg}
	}
	if !terminal.Succeeded(res.Retcode) && res.Retcode != 0 {
		return res, &errs.OrderError{Op: "order_check", Retcode: res.Retcode, Message: res.Comment}
	}
	return res, nil
}

// Send submits req. Retcodes classified as transient are retried up to the
// configured budget with backoff; rejections surface immediately as
// OrderError. A transport failure (nil response) is ambiguous — the server
// may have accepted the request — so the executor re-checks the position and
// order books before deciding to retry, never risking a duplicate fill.
func (e *Executor) Send(ctx context.Context, req Request) (*Result, error) {
	if err := e.sess.EnsureConnected(); err != nil {
		return nil, err
	}
	gw := e.sess.Terminal()

	tr := req.TradeRequest(e.fill(req.Symbol))
	pre := e.snapshot(gw, tr)
	bo := e.cfg.NewBackOff()

	for attempt := 1; ; attempt++ {
		res := gw.OrderSend(tr)

		if res == nil {
			code, msg := gw.LastError()
			e.log.Warn("order_send transport failure", "symbol", req.Symbol, "attempt", attempt, "code", code, "msg", msg)

			if rec := e.recover(gw, tr, pre); rec != nil {
				e.log.Info("submission recovered from books", "symbol", req.Symbol, "ticket", rec.Ticket)
				e.record(req, rec)
				return rec, nil
			}
			if attempt >= e.cfg.Retries {
				return nil, &errs.OrderError{Op: "order_send", Code: code, Message: fmt.Sprintf("transport failure after %d attempts: %s", attempt, msg), Transient: true}
			}
			if err := sleep(ctx, bo.NextBackOff()); err != nil {
				return nil, &errs.OrderError{Op: "order_send", Code: code, Message: "canceled during retry", Transient: true}
			}
			continue
		}

		if terminal.Succeeded(res.Retcode) {
			out := resultFrom(res)
			e.record(req, out)
			return out, nil
		}

		if terminal.RetryableRetcode(res.Retcode) {
			e.log.Warn("order_send transient rejection", "symbol", req.Symbol, "attempt", attempt, "retcode", res.Retcode, "comment", res.Comment)
			if attempt >= e.cfg.Retries {
				e.record(req, resultFrom(res))
				return nil, &errs.OrderError{Op: "order_send", Retcode: res.Retcode, Message: fmt.Sprintf("still transient after %d attempts: %s", attempt, res.Comment), Transient: true}
			}
			if err := sleep(ctx, bo.NextBackOff()); err != nil {
				return nil, &errs.OrderError{Op: "order_send", Retcode: res.Retcode, Message: "canceled during retry", Transient: true}
			}
			continue
		}

		// Hard rejection: never retried.
		e.record(req, resultFrom(res))
		return nil, &errs.OrderError{Op: "order_send", Retcode: res.Retcode, Message: res.Comment}
	}
}

// Modify replaces a position's protective prices. Passing nil keeps the
// existing value; passing nil for both is a validation error.
func (e *Executor) Modify(ctx context.Context, ticket uint64, sl, tp *float64) error {
	if sl == nil && tp == nil {
		return errs.Validation("modify", "at least one of sl, tp must be set")
	}
	if err := e.sess.EnsureConnected(); err != nil {
		return err
	}
	gw := e.sess.Terminal()

	positions := gw.PositionsGet(terminal.Selector{Ticket: ticket})
	if len(positions) == 0 {
		return &errs.OrderError{Op: "modify", Message: fmt.Sprintf("no open position with ticket %d", ticket)}
	}
	pos := positions[0]

	newSL, newTP := pos.SL, pos.TP
	if sl != nil {
		newSL = *sl
	}
	if tp != nil {
		newTP = *tp
	}

	res := gw.OrderSend(terminal.TradeRequest{
		Action:   terminal.ActionSLTP,
		Symbol:   pos.Symbol,
		Position: ticket,
		SL:       newSL,
		TP:       newTP,
	})
	if res == nil {
		code, msg := gw.LastError()
		return &errs.OrderError{Op: "modify", Code: code, Message: msg}
	}
	if !terminal.Succeeded(res.Retcode) {
		return &errs.OrderError{Op: "modify", Retcode: res.Retcode, Message: res.Comment}
	}
	return nil
}

// ClosePosition closes a position fully (volume zero) or partially.
func (e *Executor) ClosePosition(ctx context.Context, ticket uint64, volume float64) (*Result, error) {
	if err := e.sess.EnsureConnected(); err != nil {
		return nil, err
	}
	gw := e.sess.Terminal()

	positions := gw.PositionsGet(terminal.Selector{Ticket: ticket})
	if len(positions) == 0 {
		return nil, &errs.OrderError{Op: "close_position", Message: fmt.Sprintf("no open position with ticket %d", ticket)}
	}
	pos := positions[0]

	if volume == 0 {
		volume = pos.Volume
	}
	if volume < 0 || volume > pos.Volume {
		return nil, errs.Validation("volume", "close volume %v out of range (0, %v]", volume, pos.Volume)
	}

	side := Sell // closing a buy
	if pos.Type == terminal.OrderSell {
		side = Buy
	}
	return e.Send(ctx, Request{
		Symbol:    pos.Symbol,
		Side:      side,
		Kind:      Market,
		Volume:    volume,
		Position:  ticket,
		Deviation: e.cfg.Deviation,
		Magic:     e.cfg.Magic,
		Comment:   "close position",
	})
}

// Cancel deletes a pending order.
func (e *Executor) Cancel(ctx context.Context, ticket uint64) error {
	if err := e.sess.EnsureConnected(); err != nil {
		return err
	}
	gw := e.sess.Terminal()

	if len(gw.OrdersGet(terminal.Selector{Ticket: ticket})) == 0 {
		return &errs.OrderError{Op: "cancel", Message: fmt.Sprintf("ticket %d is not a pending order", ticket)}
	}
	res := gw.OrderSend(terminal.TradeRequest{Action: terminal.ActionRemove, Order: ticket})
	if res == nil {
		code, msg := gw.LastError()
		return &errs.OrderError{Op: "cancel", Code: code, Message: msg}
	}
	if !terminal.Succeeded(res.Retcode) {
		return &errs.OrderError{Op: "cancel", Retcode: res.Retcode, Message: res.Comment}
	}
	return nil
}

// fill resolves the symbol's supported fill policy, defaulting to IOC when
// the symbol is unknown.
func (e *Executor) fill(symbol string) terminal.FillType {
	return terminal.PreferredFill(e.sess.Terminal().SymbolInfo(symbol))
}

// snapshot captures the tickets (and volumes) a request could affect, taken
// before the first submission so an ambiguous outcome can be resolved.
func (e *Executor) snapshot(gw terminal.Gateway, tr terminal.TradeRequest) map[uint64]float64 {
	pre := make(map[uint64]float64)
	switch tr.Action {
	case terminal.ActionDeal:
		if tr.Position != 0 {
			for _, p := range gw.PositionsGet(terminal.Selector{Ticket: tr.Position}) {
				pre[p.Ticket] = p.Volume
			}
			return pre
		}
		for _, p := range gw.PositionsGet(terminal.Selector{Symbol: tr.Symbol}) {
			pre[p.Ticket] = p.Volume
		}
	case terminal.ActionPending:
		for _, o := range gw.OrdersGet(terminal.Selector{Symbol: tr.Symbol}) {
			pre[o.Ticket] = o.Volume
		}
	}
	return pre
}

// recover inspects the books after a transport failure. A new matching
// ticket (or a shrunk/vanished position for a close) means the server
// accepted the lost submission; the synthesized Result stops any retry.
func (e *Executor) recover(gw terminal.Gateway, tr terminal.TradeRequest, pre map[uint64]float64) *Result {
	switch tr.Action {
	case terminal.ActionDeal:
		if tr.Position != 0 {
			positions := gw.PositionsGet(terminal.Selector{Ticket: tr.Position})
			preVol, had := pre[tr.Position]
			if !had {
				return nil // nothing known to compare against
			}
			if len(positions) == 0 || positions[0].Volume < preVol {
				return &Result{Retcode: terminal.RetcodeDone, Ticket: tr.Position, Volume: tr.Volume, Recovered: true}
			}
			return nil
		}
		for _, p := range gw.PositionsGet(terminal.Selector{Symbol: tr.Symbol}) {
			if _, seen := pre[p.Ticket]; !seen && p.Magic == tr.Magic && p.Type == tr.Type {
				return &Result{Retcode: terminal.RetcodeDone, Ticket: p.Ticket, Volume: p.Volume, Price: p.Open, Recovered: true}
			}
		}
	case terminal.ActionPending:
		for _, o := range gw.OrdersGet(terminal.Selector{Symbol: tr.Symbol}) {
			if _, seen := pre[o.Ticket]; !seen && o.Magic == tr.Magic && o.Type == tr.Type {
				return &Result{Retcode: terminal.RetcodePlaced, Ticket: o.Ticket, Volume: o.Volume, Price: o.Price, Recovered: true}
			}
		}
	}
	return nil
}

func resultFrom(res *terminal.TradeResult) *Result {
	return &Result{
		Retcode: res.Retcode,
		Ticket:  res.Order,
		Deal:    res.Deal,
		Volume:  res.Volume,
		Price:   res.Price,
		Comment: res.Comment,
		Raw:     res,
	}
}

func (e *Executor) record(req Request, res *Result) {
	err := e.journal.RecordExecution(journal.Execution{
		ID:      id.New(),
		Account: e.account,
		Symbol:  req.Symbol,
		Type:    req.OrderType().String(),
		Volume:  req.Volume,
		Price:   res.Price,
		SL:      req.SL,
		TP:      req.TP,
		Retcode: res.Retcode,
		Ticket:  res.Ticket,
		Comment: req.Comment,
		Time:    time.Now().UTC(),
	})
	if err != nil {
		e.log.Warn("journal write failed", "symbol", req.Symbol, "err", err)
	}
}

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
