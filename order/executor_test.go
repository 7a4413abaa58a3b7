package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/gomt5/errs"
	"github.com/rustyeddy/gomt5/journal"
	"github.com/rustyeddy/gomt5/session"
	"github.com/rustyeddy/gomt5/terminal"
	"github.com/rustyeddy/gomt5/terminal/sim"
)

const (
	eurusdBid = 1.1000
	eurusdAsk = 1.1002
)

func newSim() *sim.Sim {
	gw := sim.New()
	gw.AddAccount(11111, "pass", "Demo", 100_000)
	gw.AddSymbol(terminal.SymbolInfo{
		Name: "EURUSD", Digits: 5, Point: 0.00001,
		VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01,
		ContractSize: 100_000,
	}, eurusdBid, eurusdAsk)
	return gw
}

func newExecutor(t *testing.T, gw *sim.Sim, opts ...Option) *Executor {
	t.Helper()
	sess := session.New(gw, session.WithRetryDelay(time.Millisecond))
	creds := &session.Credentials{Login: 11111, Password: "pass", Server: "Demo"}
	require.NoError(t, sess.Connect(context.Background(), creds, ""))

	opts = append([]Option{WithConfig(Config{Retries: 3, RetryDelay: time.Millisecond})}, opts...)
	return New(sess, opts...)
}

// capture is an in-memory journal for assertions.
type capture struct {
	rows []journal.Execution
}

func (c *capture) RecordExecution(e journal.Execution) error {
	c.rows = append(c.rows, e)
	return nil
}

func (c *capture) Close() error { return nil }

func TestSendMarketBuy(t *testing.T) {
	gw := newSim()
	exec := newExecutor(t, gw)

	res, err := exec.Order("EURUSD").
		MarketBuy(0.10).
		WithSLTP(1.0950, 1.1100).
		WithComment("entry").
		Send(context.Background())
	require.NoError(t, err)

	assert.Equal(t, terminal.RetcodeDone, res.Retcode)
	assert.Equal(t, eurusdAsk, res.Price) // buys fill at ask
	assert.Equal(t, 0.10, res.Volume)
	assert.NotZero(t, res.Ticket)
	assert.False(t, res.Recovered)

	positions := gw.PositionsGet(terminal.Selector{Symbol: "EURUSD"})
	require.Len(t, positions, 1)
	assert.Equal(t, terminal.OrderBuy, positions[0].Type)
	assert.Equal(t, 1.0950, positions[0].SL)
	assert.Equal(t, 1.1100, positions[0].TP)
	assert.Equal(t, 1, gw.Calls["order_send"])
}

func TestSendMarketSellFillsAtBid(t *testing.T) {
	gw := newSim()
	exec := newExecutor(t, gw)

	res, err := exec.Order("EURUSD").MarketSell(0.05).Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, eurusdBid, res.Price)
}

func TestSendPendingOrder(t *testing.T) {
	gw := newSim()
	exec := newExecutor(t, gw)

	res, err := exec.Order("EURUSD").LimitBuy(0.20, 1.0900).WithSLTP(1.0850, 1.1000).Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, terminal.RetcodePlaced, res.Retcode)

	orders := gw.OrdersGet(terminal.Selector{Ticket: res.Ticket})
	require.Len(t, orders, 1)
	assert.Equal(t, 1.0900, orders[0].Price)
}

func TestSendValidationNeverReachesGateway(t *testing.T) {
	gw := newSim()
	exec := newExecutor(t, gw)

	_, err := exec.Order("EURUSD").MarketBuy(-1).Send(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	assert.Zero(t, gw.Calls["order_send"])
	assert.Zero(t, gw.Calls["order_check"])
}

func TestSendNotConnected(t *testing.T) {
	gw := newSim()
	sess := session.New(gw)
	exec := New(sess)

	_, err := exec.Order("EURUSD").MarketBuy(0.1).Send(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsConnection(err))
	assert.Zero(t, gw.Calls["order_send"])
}

func TestSendHardRejectionNotRetried(t *testing.T) {
	gw := newSim()
	exec := newExecutor(t, gw)
	gw.ScriptSendRetcodes(terminal.RetcodeNoMoney)

	_, err := exec.Order("EURUSD").MarketBuy(0.1).Send(context.Background())
	require.Error(t, err)

	var oe *errs.OrderError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, terminal.RetcodeNoMoney, oe.Retcode)
	assert.False(t, oe.Transient)
	assert.Equal(t, 1, gw.Calls["order_send"])
	assert.Zero(t, gw.OpenPositions())
}

func TestSendRequoteRetriedThenFilled(t *testing.T) {
	gw := newSim()
	exec := newExecutor(t, gw)
	gw.ScriptSendRetcodes(terminal.RetcodeRequote, terminal.RetcodePriceChanged)

	res, err := exec.Order("EURUSD").MarketBuy(0.1).Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, terminal.RetcodeDone, res.Retcode)
	assert.Equal(t, 3, gw.Calls["order_send"])
	assert.Equal(t, 1, gw.OpenPositions())
}

func TestSendTransientExhaustsBudget(t *testing.T) {
	gw := newSim()
	exec := newExecutor(t, gw)
	gw.ScriptSendRetcodes(terminal.RetcodeRequote, terminal.RetcodeRequote, terminal.RetcodeRequote)

	_, err := exec.Order("EURUSD").MarketBuy(0.1).Send(context.Background())
	require.Error(t, err)

	var oe *errs.OrderError
	require.ErrorAs(t, err, &oe)
	assert.True(t, oe.Transient)
	assert.Equal(t, terminal.RetcodeRequote, oe.Retcode)
	// Exactly the attempt budget, never more.
	assert.Equal(t, 3, gw.Calls["order_send"])
}

func TestSendTransportFailureAcceptedServerSide(t *testing.T) {
	// The reply is lost but the server books the trade. The executor must
	// find the position instead of submitting a duplicate.
	gw := newSim()
	exec := newExecutor(t, gw)
	gw.ScriptSendDrop(1, true)

	res, err := exec.Order("EURUSD").MarketBuy(0.1).WithMagic(7).Send(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Recovered)
	assert.NotZero(t, res.Ticket)
	assert.Equal(t, 1, gw.OpenPositions())
	assert.Equal(t, 1, gw.Calls["order_send"])
}

func TestSendTransportFailureRetried(t *testing.T) {
	// The request never reached the server, so retrying is safe.
	gw := newSim()
	exec := newExecutor(t, gw)
	gw.ScriptSendDrop(1, false)

	res, err := exec.Order("EURUSD").MarketBuy(0.1).Send(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Recovered)
	assert.Equal(t, 2, gw.Calls["order_send"])
	assert.Equal(t, 1, gw.OpenPositions())
}

func TestSendTransportFailureExhausted(t *testing.T) {
	gw := newSim()
	exec := newExecutor(t, gw)
	gw.ScriptSendDrop(3, false)

	_, err := exec.Order("EURUSD").MarketBuy(0.1).Send(context.Background())
	require.Error(t, err)

	var oe *errs.OrderError
	require.ErrorAs(t, err, &oe)
	assert.True(t, oe.Transient)
	assert.Equal(t, 3, gw.Calls["order_send"])
	assert.Zero(t, gw.OpenPositions())
}

func TestSendRecoveredPendingOrder(t *testing.T) {
	gw := newSim()
	exec := newExecutor(t, gw)
	gw.ScriptSendDrop(1, true)

	res, err := exec.Order("EURUSD").LimitBuy(0.1, 1.0900).Send(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Recovered)
	assert.Equal(t, terminal.RetcodePlaced, res.Retcode)
	require.Len(t, gw.OrdersGet(terminal.Selector{Ticket: res.Ticket}), 1)
}

func TestCheck(t *testing.T) {
	gw := newSim()
	exec := newExecutor(t, gw)

	chk, err := exec.Order("EURUSD").MarketBuy(0.10).Check(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 110.02, chk.Margin, 0.01) // 0.1 * 100k * 1.1002 / 100
	assert.Zero(t, gw.OpenPositions())

	_, err = exec.Order("EURUSD").MarketBuy(100).Check(context.Background())
	require.Error(t, err)
	var oe *errs.OrderError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, terminal.RetcodeNoMoney, oe.Retcode)
}

func TestModify(t *testing.T) {
	gw := newSim()
	exec := newExecutor(t, gw)

	res, err := exec.Order("EURUSD").MarketBuy(0.1).WithSLTP(1.0950, 1.1100).Send(context.Background())
	require.NoError(t, err)

	sl := 1.0970
	require.NoError(t, exec.Modify(context.Background(), res.Ticket, &sl, nil))

	pos := gw.PositionsGet(terminal.Selector{Ticket: res.Ticket})
	require.Len(t, pos, 1)
	assert.Equal(t, 1.0970, pos[0].SL)
	assert.Equal(t, 1.1100, pos[0].TP) // untouched

	err = exec.Modify(context.Background(), res.Ticket, nil, nil)
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))

	err = exec.Modify(context.Background(), 999999, &sl, nil)
	require.Error(t, err)
	assert.True(t, errs.IsOrder(err))
}

func TestClosePosition(t *testing.T) {
	gw := newSim()
	exec := newExecutor(t, gw)

	res, err := exec.Order("EURUSD").MarketBuy(0.30).Send(context.Background())
	require.NoError(t, err)

	// Partial close leaves the remainder open.
	out, err := exec.ClosePosition(context.Background(), res.Ticket, 0.10)
	require.NoError(t, err)
	assert.Equal(t, eurusdBid, out.Price) // closing a buy sells at bid

	pos := gw.PositionsGet(terminal.Selector{Ticket: res.Ticket})
	require.Len(t, pos, 1)
	assert.InDelta(t, 0.20, pos[0].Volume, 1e-9)

	// Volume zero closes whatever remains.
	_, err = exec.ClosePosition(context.Background(), res.Ticket, 0)
	require.NoError(t, err)
	assert.Zero(t, gw.OpenPositions())

	_, err = exec.ClosePosition(context.Background(), res.Ticket, 0)
	require.Error(t, err)
	assert.True(t, errs.IsOrder(err))
}

func TestClosePositionVolumeOutOfRange(t *testing.T) {
	gw := newSim()
	exec := newExecutor(t, gw)

	res, err := exec.Order("EURUSD").MarketBuy(0.10).Send(context.Background())
	require.NoError(t, err)

	_, err = exec.ClosePosition(context.Background(), res.Ticket, 0.50)
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	assert.Equal(t, 1, gw.OpenPositions())
}

func TestCancel(t *testing.T) {
	gw := newSim()
	exec := newExecutor(t, gw)

	res, err := exec.Order("EURUSD").LimitSell(0.1, 1.1100).Send(context.Background())
	require.NoError(t, err)

	require.NoError(t, exec.Cancel(context.Background(), res.Ticket))
	assert.Empty(t, gw.OrdersGet(terminal.Selector{}))

	err = exec.Cancel(context.Background(), res.Ticket)
	require.Error(t, err)
	assert.True(t, errs.IsOrder(err))
}

func TestExecutorDefaultsFlowIntoBuilder(t *testing.T) {
	gw := newSim()
	exec := newExecutor(t, gw, WithConfig(Config{Magic: 1234, Deviation: 5, RetryDelay: time.Millisecond}))

	res, err := exec.Order("EURUSD").MarketBuy(0.1).Send(context.Background())
	require.NoError(t, err)

	pos := gw.PositionsGet(terminal.Selector{Ticket: res.Ticket})
	require.Len(t, pos, 1)
	assert.Equal(t, int64(1234), pos[0].Magic)
}

func TestJournalRecordsOutcomes(t *testing.T) {
	gw := newSim()
	rec := &capture{}
	exec := newExecutor(t, gw, WithJournal(rec, "demo"))

	_, err := exec.Order("EURUSD").MarketBuy(0.1).WithComment("in").Send(context.Background())
	require.NoError(t, err)

	gw.ScriptSendRetcodes(terminal.RetcodeNoMoney)
	_, err = exec.Order("EURUSD").MarketBuy(0.1).Send(context.Background())
	require.Error(t, err)

	require.Len(t, rec.rows, 2)
	assert.Equal(t, "demo", rec.rows[0].Account)
	assert.Equal(t, "buy", rec.rows[0].Type)
	assert.Equal(t, terminal.RetcodeDone, rec.rows[0].Retcode)
	assert.NotEmpty(t, rec.rows[0].ID)
	assert.Equal(t, terminal.RetcodeNoMoney, rec.rows[1].Retcode)
}

func TestSendCanceledContext(t *testing.T) {
	gw := newSim()
	exec := newExecutor(t, gw)
	gw.ScriptSendRetcodes(terminal.RetcodeRequote, terminal.RetcodeRequote)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Order("EURUSD").MarketBuy(0.1).Send(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, gw.Calls["order_send"]) // no retry after cancellation
}
