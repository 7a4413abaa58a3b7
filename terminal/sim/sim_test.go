package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/gomt5/terminal"
)

func newSim(t *testing.T) *Sim {
	t.Helper()
	s := New()
	s.AddAccount(1001, "pw", "Demo-1", 10000)
	s.AddSymbol(terminal.SymbolInfo{
		Name: "EURUSD", Digits: 5, Point: 0.00001,
		VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01,
		ContractSize: 100000,
	}, 1.1000, 1.1002)
	require.True(t, s.Initialize(terminal.ConnectParams{Login: 1001, Password: "pw", Server: "Demo-1"}))
	return s
}

func TestInitializeAuth(t *testing.T) {
	t.Parallel()

	s := New()
	s.AddAccount(1001, "pw", "Demo-1", 10000)

	assert.False(t, s.Initialize(terminal.ConnectParams{Login: 1001, Password: "bad"}))
	code, _ := s.LastError()
	assert.Equal(t, terminal.ErrAuthFailed, code)

	assert.True(t, s.Initialize(terminal.ConnectParams{Login: 1001, Password: "pw"}))
}

func TestInitializeWhileStopped(t *testing.T) {
	t.Parallel()

	s := New()
	s.AddAccount(1001, "pw", "Demo-1", 10000)
	s.SetRunning(false)

	assert.False(t, s.Initialize(terminal.ConnectParams{Login: 1001, Password: "pw"}))
	code, _ := s.LastError()
	assert.Equal(t, terminal.ErrIPCSendFailed, code)

	s.SetRunning(true)
	assert.True(t, s.Initialize(terminal.ConnectParams{Login: 1001, Password: "pw"}))
}

func TestDealOpenAndClose(t *testing.T) {
	t.Parallel()

	s := newSim(t)
	res := s.OrderSend(terminal.TradeRequest{
		Action: terminal.ActionDeal, Symbol: "EURUSD",
		Type: terminal.OrderBuy, Volume: 0.1,
	})
	require.NotNil(t, res)
	assert.Equal(t, terminal.RetcodeDone, res.Retcode)
	assert.InDelta(t, 1.1002, res.Price, 1e-9) // buys fill on ask
	require.Equal(t, 1, s.OpenPositions())

	ticket := res.Order
	closeRes := s.OrderSend(terminal.TradeRequest{
		Action: terminal.ActionDeal, Symbol: "EURUSD",
		Type: terminal.OrderSell, Volume: 0.1, Position: ticket,
	})
	require.NotNil(t, closeRes)
	assert.Equal(t, terminal.RetcodeDone, closeRes.Retcode)
	assert.Equal(t, 0, s.OpenPositions())
}

func TestPartialClose(t *testing.T) {
	t.Parallel()

	s := newSim(t)
	res := s.OrderSend(terminal.TradeRequest{
		Action: terminal.ActionDeal, Symbol: "EURUSD",
		Type: terminal.OrderBuy, Volume: 0.1,
	})
	require.NotNil(t, res)

	closeRes := s.OrderSend(terminal.TradeRequest{
		Action: terminal.ActionDeal, Symbol: "EURUSD",
		Type: terminal.OrderSell, Volume: 0.04, Position: res.Order,
	})
	require.NotNil(t, closeRes)
	assert.Equal(t, terminal.RetcodeDone, closeRes.Retcode)

	positions := s.PositionsGet(terminal.Selector{Ticket: res.Order})
	require.Len(t, positions, 1)
	assert.InDelta(t, 0.06, positions[0].Volume, 1e-9)
}

func TestPendingPlaceAndRemove(t *testing.T) {
	t.Parallel()

	s := newSim(t)
	res := s.OrderSend(terminal.TradeRequest{
		Action: terminal.ActionPending, Symbol: "EURUSD",
		Type: terminal.OrderBuyLimit, Volume: 0.1, Price: 1.0950,
	})
	require.NotNil(t, res)
	assert.Equal(t, terminal.RetcodePlaced, res.Retcode)
	require.Len(t, s.OrdersGet(terminal.Selector{}), 1)

	rm := s.OrderSend(terminal.TradeRequest{Action: terminal.ActionRemove, Order: res.Order})
	require.NotNil(t, rm)
	assert.Equal(t, terminal.RetcodeDone, rm.Retcode)
	assert.Empty(t, s.OrdersGet(terminal.Selector{}))
}

func TestScriptedRetcodes(t *testing.T) {
	t.Parallel()

	s := newSim(t)
	s.ScriptSendRetcodes(terminal.RetcodeRequote, terminal.RetcodeNoMoney)

	req := terminal.TradeRequest{Action: terminal.ActionDeal, Symbol: "EURUSD", Type: terminal.OrderBuy, Volume: 0.1}

	res := s.OrderSend(req)
	require.NotNil(t, res)
	assert.Equal(t, terminal.RetcodeRequote, res.Retcode)

	res = s.OrderSend(req)
	require.NotNil(t, res)
	assert.Equal(t, terminal.RetcodeNoMoney, res.Retcode)

	// Script drained, normal execution resumes.
	res = s.OrderSend(req)
	require.NotNil(t, res)
	assert.Equal(t, terminal.RetcodeDone, res.Retcode)
}

func TestDroppedSendMayStillBook(t *testing.T) {
	t.Parallel()

	s := newSim(t)
	s.ScriptSendDrop(1, true)

	res := s.OrderSend(terminal.TradeRequest{Action: terminal.ActionDeal, Symbol: "EURUSD", Type: terminal.OrderBuy, Volume: 0.1})
	assert.Nil(t, res)
	assert.Equal(t, 1, s.OpenPositions())
}

func TestOrderCheckMargin(t *testing.T) {
	t.Parallel()

	s := newSim(t)
	chk := s.OrderCheck(terminal.TradeRequest{Action: terminal.ActionDeal, Symbol: "EURUSD", Type: terminal.OrderBuy, Volume: 0.1})
	require.NotNil(t, chk)
	assert.Equal(t, terminal.RetcodeDone, chk.Retcode)
	// 0.1 lot * 100000 * 1.1002 / 100 leverage
	assert.InDelta(t, 110.02, chk.Margin, 1e-6)

	over := s.OrderCheck(terminal.TradeRequest{Action: terminal.ActionDeal, Symbol: "EURUSD", Type: terminal.OrderBuy, Volume: 50})
	require.NotNil(t, over)
	assert.Equal(t, terminal.RetcodeNoMoney, over.Retcode)
}
