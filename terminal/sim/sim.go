// Package sim provides an in-memory terminal.Gateway with scriptable
// failures. It backs the test suites of every package above the gateway and
// the CLI demo mode, so nothing in this repo needs a live terminal.
package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/gomt5/terminal"
)

var _ terminal.Gateway = (*Sim)(nil)

type account struct {
	password string
	server   string
	info     terminal.AccountInfo
}

type scriptedSend struct {
	retcode uint32
	drop    bool // return nil (transport failure)
	accept  bool // with drop: the server accepted the request anyway
}

// Sim is an in-memory trading terminal. All methods are safe for concurrent
// use; the lock covers every call so scripted sequences stay ordered.
type Sim struct {
	mu sync.Mutex

	running     bool
	initialized bool
	current     int64 // logged-in account, 0 = none

	accounts map[int64]*account
	symbols  map[string]*terminal.SymbolInfo
	ticks    map[string]terminal.Tick

	positions map[uint64]*terminal.Position
	orders    map[uint64]*terminal.Order
	deals     []terminal.Deal
	nextTick  uint64

	failConnects int
	failCode     int
	failMsg      string
	sendScript   []scriptedSend

	lastCode int
	lastMsg  string

	// Calls counts gateway invocations by method name, for assertions.
	Calls map[string]int
}

// New returns a running simulator with no accounts or symbols.
func New() *Sim {
	return &Sim{
		running:   true,
		accounts:  make(map[int64]*account),
		symbols:   make(map[string]*terminal.SymbolInfo),
		ticks:     make(map[string]terminal.Tick),
		positions: make(map[uint64]*terminal.Position),
		orders:    make(map[uint64]*terminal.Order),
		nextTick:  1000,
		Calls:     make(map[string]int),
	}
}

// AddAccount registers a login the simulator will accept.
func (s *Sim) AddAccount(login int64, password, server string, balance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[login] = &account{
		password: password,
		server:   server,
		info: terminal.AccountInfo{
			Login:      login,
			Server:     server,
			Currency:   "USD",
			Leverage:   100,
			Balance:    balance,
			Equity:     balance,
			MarginFree: balance,
		},
	}
}

// AddSymbol registers an instrument and its starting quote.
func (s *Sim) AddSymbol(info terminal.SymbolInfo, bid, ask float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := info
	if cp.FillingMode == 0 {
		cp.FillingMode = terminal.FillingIOC
	}
	cp.Visible = true
	s.symbols[info.Name] = &cp
	s.ticks[info.Name] = terminal.Tick{Symbol: info.Name, Bid: bid, Ask: ask, Time: time.Now()}
}

// SetTick updates an instrument's quote.
func (s *Sim) SetTick(symbol string, bid, ask float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks[symbol] = terminal.Tick{Symbol: symbol, Bid: bid, Ask: ask, Time: time.Now()}
}

// SetRunning toggles the simulated terminal process. While stopped,
// Initialize fails with ErrIPCSendFailed, which is what triggers the
// session's auto-launch path.
func (s *Sim) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

// FailConnects makes the next n Initialize/Login calls fail with the given
// terminal error.
func (s *Sim) FailConnects(n, code int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failConnects = n
	s.failCode = code
	s.failMsg = msg
}

// ScriptSendRetcodes queues retcodes for upcoming OrderSend calls. Once the
// queue drains, sends execute normally.
func (s *Sim) ScriptSendRetcodes(codes ...uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range codes {
		s.sendScript = append(s.sendScript, scriptedSend{retcode: c})
	}
}

// ScriptSendDrop queues n transport failures for OrderSend. When accepted is
// true the server still books the trade, which is the ambiguous-outcome case
// the executor must detect before retrying.
func (s *Sim) ScriptSendDrop(n int, accepted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.sendScript = append(s.sendScript, scriptedSend{drop: true, accept: accepted})
	}
}

// OpenPositions returns how many positions are currently open.
func (s *Sim) OpenPositions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}

func (s *Sim) setError(code int, msg string) {
	s.lastCode = code
	s.lastMsg = msg
}

// Initialize implements terminal.Gateway.
func (s *Sim) Initialize(p terminal.ConnectParams) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["initialize"]++

	if !s.running {
		// A path on the request does not launch the process; the caller
		// has to do that (the session's launcher does).
		s.setError(terminal.ErrIPCSendFailed, "IPC send failed")
		return false
	}
	if s.failConnects > 0 {
		s.failConnects--
		s.setError(s.failCode, s.failMsg)
		return false
	}

	if p.Login == 0 {
		if s.current == 0 {
			s.setError(terminal.ErrFail, "no account logged in")
			return false
		}
		s.initialized = true
		s.setError(terminal.ErrOK, "")
		return true
	}
	if !s.login(p.Login, p.Password, p.Server) {
		return false
	}
	s.initialized = true
	return true
}

// Login implements terminal.Gateway.
func (s *Sim) Login(login int64, password, server string, _ time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["login"]++

	if !s.initialized {
		s.setError(terminal.ErrFail, "terminal not initialized")
		return false
	}
	if s.failConnects > 0 {
		s.failConnects--
		s.setError(s.failCode, s.failMsg)
		return false
	}
	return s.login(login, password, server)
}

func (s *Sim) login(login int64, password, server string) bool {
	acct, ok := s.accounts[login]
	if !ok || (password != "" && acct.password != password) {
		s.setError(terminal.ErrAuthFailed, fmt.Sprintf("authorization failed for account %d", login))
		return false
	}
	if server != "" && acct.server != server {
		s.setError(terminal.ErrAuthFailed, fmt.Sprintf("account %d not on server %s", login, server))
		return false
	}
	s.current = login
	s.setError(terminal.ErrOK, "")
	return true
}

// Shutdown implements terminal.Gateway.
func (s *Sim) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["shutdown"]++
	s.initialized = false
}

// LastError implements terminal.Gateway.
func (s *Sim) LastError() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCode, s.lastMsg
}

// OrderSend implements terminal.Gateway.
func (s *Sim) OrderSend(req terminal.TradeRequest) *terminal.TradeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["order_send"]++

	if !s.initialized {
		s.setError(terminal.ErrIPCSendFailed, "IPC send failed")
		return nil
	}
	if len(s.sendScript) > 0 {
		step := s.sendScript[0]
		s.sendScript = s.sendScript[1:]
		if step.drop {
			s.setError(terminal.ErrIPCRecvFailed, "IPC recv failed")
			if step.accept {
				s.executeLocked(req) // booked server-side, answer lost
			}
			return nil
		}
		if !terminal.Succeeded(step.retcode) {
			return &terminal.TradeResult{Retcode: step.retcode, Comment: retcodeComment(step.retcode)}
		}
	}
	return s.executeLocked(req)
}

func retcodeComment(code uint32) string {
	switch code {
	case terminal.RetcodeRequote:
		return "Requote"
	case terminal.RetcodeTimeout:
		return "Request timeout"
	case terminal.RetcodeNoMoney:
		return "No money"
	case terminal.RetcodeMarketClosed:
		return "Market closed"
	case terminal.RetcodeInvalidVolume:
		return "Invalid volume"
	case terminal.RetcodeInvalidStops:
		return "Invalid stops"
	case terminal.RetcodeConnection:
		return "No connection"
	default:
		return fmt.Sprintf("Retcode %d", code)
	}
}

func (s *Sim) executeLocked(req terminal.TradeRequest) *terminal.TradeResult {
	switch req.Action {
	case terminal.ActionDeal:
		return s.dealLocked(req)
	case terminal.ActionPending:
		return s.pendingLocked(req)
	case terminal.ActionSLTP:
		return s.sltpLocked(req)
	case terminal.ActionRemove:
		return s.removeLocked(req)
	default:
		return &terminal.TradeResult{Retcode: terminal.RetcodeInvalid, Comment: "Unsupported action"}
	}
}

func (s *Sim) dealLocked(req terminal.TradeRequest) *terminal.TradeResult {
	tick, ok := s.ticks[req.Symbol]
	if !ok {
		return &terminal.TradeResult{Retcode: terminal.RetcodeInvalid, Comment: "Unknown symbol"}
	}
	price := tick.Ask
	if req.Type == terminal.OrderSell {
		price = tick.Bid
	}

	// Close (full or partial) against an existing position.
	if req.Position != 0 {
		pos, ok := s.positions[req.Position]
		if !ok {
			return &terminal.TradeResult{Retcode: terminal.RetcodeInvalid, Comment: "Position not found"}
		}
		vol := req.Volume
		if vol <= 0 || vol > pos.Volume {
			return &terminal.TradeResult{Retcode: terminal.RetcodeInvalidVolume, Comment: "Invalid volume"}
		}
		s.nextTick++
		deal := terminal.Deal{
			Ticket: s.nextTick, Position: pos.Ticket, Symbol: pos.Symbol,
			Type: req.Type, Volume: vol, Price: price, Magic: req.Magic,
			Comment: req.Comment, Time: time.Now(),
		}
		s.deals = append(s.deals, deal)
		if vol == pos.Volume {
			delete(s.positions, pos.Ticket)
		} else {
			pos.Volume -= vol
		}
		return &terminal.TradeResult{
			Retcode: terminal.RetcodeDone, Deal: deal.Ticket, Order: pos.Ticket,
			Volume: vol, Price: price, Bid: tick.Bid, Ask: tick.Ask,
		}
	}

	s.nextTick++
	pos := &terminal.Position{
		Ticket: s.nextTick, Symbol: req.Symbol, Type: req.Type,
		Volume: req.Volume, Open: price, Current: price,
		SL: req.SL, TP: req.TP, Magic: req.Magic, Comment: req.Comment,
		OpenTime: time.Now(),
	}
	s.positions[pos.Ticket] = pos
	s.deals = append(s.deals, terminal.Deal{
		Ticket: pos.Ticket, Position: pos.Ticket, Symbol: req.Symbol,
		Type: req.Type, Volume: req.Volume, Price: price, Magic: req.Magic,
		Comment: req.Comment, Time: pos.OpenTime,
	})
	return &terminal.TradeResult{
		Retcode: terminal.RetcodeDone, Deal: pos.Ticket, Order: pos.Ticket,
		Volume: req.Volume, Price: price, Bid: tick.Bid, Ask: tick.Ask,
	}
}

func (s *Sim) pendingLocked(req terminal.TradeRequest) *terminal.TradeResult {
	if _, ok := s.symbols[req.Symbol]; !ok {
		return &terminal.TradeResult{Retcode: terminal.RetcodeInvalid, Comment: "Unknown symbol"}
	}
	s.nextTick++
	ord := &terminal.Order{
		Ticket: s.nextTick, Symbol: req.Symbol, Type: req.Type,
		Volume: req.Volume, Price: req.Price, SL: req.SL, TP: req.TP,
		Magic: req.Magic, Comment: req.Comment, SetupTime: time.Now(),
	}
	s.orders[ord.Ticket] = ord
	return &terminal.TradeResult{Retcode: terminal.RetcodePlaced, Order: ord.Ticket, Volume: req.Volume, Price: req.Price}
}

func (s *Sim) sltpLocked(req terminal.TradeRequest) *terminal.TradeResult {
	pos, ok := s.positions[req.Position]
	if !ok {
		return &terminal.TradeResult{Retcode: terminal.RetcodeInvalid, Comment: "Position not found"}
	}
	pos.SL = req.SL
	pos.TP = req.TP
	return &terminal.TradeResult{Retcode: terminal.RetcodeDone, Order: pos.Ticket}
}

func (s *Sim) removeLocked(req terminal.TradeRequest) *terminal.TradeResult {
	if _, ok := s.orders[req.Order]; !ok {
		return &terminal.TradeResult{Retcode: terminal.RetcodeInvalid, Comment: "Order not found"}
	}
	delete(s.orders, req.Order)
	return &terminal.TradeResult{Retcode: terminal.RetcodeDone, Order: req.Order}
}

// OrderCheck implements terminal.Gateway.
func (s *Sim) OrderCheck(req terminal.TradeRequest) *terminal.CheckResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["order_check"]++

	if !s.initialized {
		s.setError(terminal.ErrIPCSendFailed, "IPC send failed")
		return nil
	}
	acct := s.accounts[s.current]
	if acct == nil {
		s.setError(terminal.ErrFail, "no account logged in")
		return nil
	}
	info, ok := s.symbols[req.Symbol]
	if !ok {
		return &terminal.CheckResult{Retcode: terminal.RetcodeInvalid, Comment: "Unknown symbol"}
	}
	if req.Volume < info.VolumeMin || req.Volume > info.VolumeMax {
		return &terminal.CheckResult{Retcode: terminal.RetcodeInvalidVolume, Comment: "Invalid volume"}
	}
	price := req.Price
	if price == 0 {
		tick := s.ticks[req.Symbol]
		price = tick.Ask
		if req.Type == terminal.OrderSell {
			price = tick.Bid
		}
	}
	margin := s.marginLocked(req.Symbol, req.Volume, price)
	if margin > acct.info.MarginFree {
		return &terminal.CheckResult{Retcode: terminal.RetcodeNoMoney, Margin: margin, Comment: "No money"}
	}
	return &terminal.CheckResult{
		Retcode:    terminal.RetcodeDone,
		Balance:    acct.info.Balance,
		Equity:     acct.info.Equity,
		Margin:     margin,
		MarginFree: acct.info.MarginFree - margin,
	}
}

func (s *Sim) marginLocked(symbol string, volume, price float64) float64 {
	info := s.symbols[symbol]
	acct := s.accounts[s.current]
	contract := info.ContractSize
	if contract == 0 {
		contract = 100000
	}
	lev := float64(acct.info.Leverage)
	if lev == 0 {
		lev = 100
	}
	return volume * contract * price / lev
}

// PositionsGet implements terminal.Gateway.
func (s *Sim) PositionsGet(sel terminal.Selector) []terminal.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["positions_get"]++

	var out []terminal.Position
	for _, p := range s.positions {
		if sel.Matches(p.Ticket, p.Symbol) {
			out = append(out, *p)
		}
	}
	return out
}

// OrdersGet implements terminal.Gateway.
func (s *Sim) OrdersGet(sel terminal.Selector) []terminal.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["orders_get"]++

	var out []terminal.Order
	for _, o := range s.orders {
		if sel.Matches(o.Ticket, o.Symbol) {
			out = append(out, *o)
		}
	}
	return out
}

// HistoryDeals implements terminal.Gateway.
func (s *Sim) HistoryDeals(from, to time.Time) []terminal.Deal {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["history_deals"]++

	var out []terminal.Deal
	for _, d := range s.deals {
		if !d.Time.Before(from) && !d.Time.After(to) {
			out = append(out, d)
		}
	}
	return out
}

// AccountInfo implements terminal.Gateway.
func (s *Sim) AccountInfo() *terminal.AccountInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["account_info"]++

	acct := s.accounts[s.current]
	if !s.initialized || acct == nil {
		s.setError(terminal.ErrFail, "no account logged in")
		return nil
	}
	cp := acct.info
	return &cp
}

// SymbolInfo implements terminal.Gateway.
func (s *Sim) SymbolInfo(symbol string) *terminal.SymbolInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["symbol_info"]++

	info, ok := s.symbols[symbol]
	if !ok {
		s.setError(terminal.ErrNotFound, "symbol not found")
		return nil
	}
	cp := *info
	return &cp
}

// SymbolTick implements terminal.Gateway.
func (s *Sim) SymbolTick(symbol string) *terminal.Tick {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["symbol_tick"]++

	tick, ok := s.ticks[symbol]
	if !ok {
		s.setError(terminal.ErrNotFound, "symbol not found")
		return nil
	}
	return &tick
}

// Symbols implements terminal.Gateway. The group filter accepts "*" or a
// literal name; the simulator does not implement wildcard grammar.
func (s *Sim) Symbols(group string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["symbols"]++

	var out []string
	for name := range s.symbols {
		if group == "" || group == "*" || group == name {
			out = append(out, name)
		}
	}
	return out
}

// CalcMargin implements terminal.Gateway.
func (s *Sim) CalcMargin(_ terminal.OrderType, symbol string, volume, price float64) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["calc_margin"]++

	if _, ok := s.symbols[symbol]; !ok || s.accounts[s.current] == nil {
		return 0, false
	}
	return s.marginLocked(symbol, volume, price), true
}

// CalcProfit implements terminal.Gateway.
func (s *Sim) CalcProfit(t terminal.OrderType, symbol string, volume, open, close float64) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["calc_profit"]++

	info, ok := s.symbols[symbol]
	if !ok {
		return 0, false
	}
	contract := info.ContractSize
	if contract == 0 {
		contract = 100000
	}
	move := close - open
	if !t.Buy() {
		move = -move
	}
	return volume * contract * move, true
}
