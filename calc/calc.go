// Package calc wraps the terminal's trade calculators and adds the pure risk
// arithmetic the terminal does not provide: reward/risk ratio, risk as a
// fraction of equity, and lot sizing from a risk budget.
package calc

import (
	"math"

	"github.com/rustyeddy/gomt5/errs"
	"github.com/rustyeddy/gomt5/session"
	"github.com/rustyeddy/gomt5/terminal"
)

// Calculator runs the terminal-backed computations over one session.
type Calculator struct {
	sess *session.Session
}

// New builds a calculator over sess.
func New(sess *session.Session) *Calculator {
	return &Calculator{sess: sess}
}

// Margin returns the margin, in account currency, required to open the trade.
func (c *Calculator) Margin(t terminal.OrderType, symbol string, volume, price float64) (float64, error) {
	if volume <= 0 {
		return 0, errs.Validation("volume", "must be positive, got %v", volume)
	}
	if err := c.sess.EnsureConnected(); err != nil {
		return 0, err
	}
	gw := c.sess.Terminal()
	margin, ok := gw.CalcMargin(t, symbol, volume, price)
	if !ok {
		code, msg := gw.LastError()
		return 0, errs.Connection("calc_margin", code, "symbol %s: %s", symbol, msg)
	}
	return margin, nil
}

// Profit returns the profit, in account currency, of moving from open to
// close. Negative for a losing move.
func (c *Calculator) Profit(t terminal.OrderType, symbol string, volume, open, close float64) (float64, error) {
	if volume <= 0 {
		return 0, errs.Validation("volume", "must be positive, got %v", volume)
	}
	if err := c.sess.EnsureConnected(); err != nil {
		return 0, err
	}
	gw := c.sess.Terminal()
	profit, ok := gw.CalcProfit(t, symbol, volume, open, close)
	if !ok {
		code, msg := gw.LastError()
		return 0, errs.Connection("calc_profit", code, "symbol %s: %s", symbol, msg)
	}
	return profit, nil
}

// RR is the reward/risk ratio of an entry with its protective prices. Zero
// when no risk is defined (stop at entry).
func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(takeProfit-entry) / risk
}

// RiskPct is the fraction of equity a planned loss represents. Infinite for
// a non-positive equity.
func RiskPct(riskAmount, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return riskAmount / equity
}

// SizingInputs describes a lot-sizing problem: how many lots keep the loss at
// the stop within the risk budget.
type SizingInputs struct {
	Equity  float64
	RiskPct float64 // fraction of equity to risk, e.g. 0.01
	Entry   float64
	Stop    float64

	// Instrument terms, from terminal.SymbolInfo.
	ContractSize float64
	VolumeMin    float64
	VolumeMax    float64
	VolumeStep   float64

	// QuoteToAccount converts quote-currency P/L to account currency; 1.0
	// when the quote currency is the account currency.
	QuoteToAccount float64
}

// SizingResult is the solved position size.
type SizingResult struct {
	Lots       float64 // rounded down to VolumeStep, clamped to [min, max]
	RiskAmount float64 // account-currency budget the lots were solved for
	StopDist   float64 // price distance to the stop
}

// LotsForRisk solves the largest lot count whose loss at the stop stays
// within Equity*RiskPct. Returns a ValidationError when the inputs do not
// define a solvable problem or the floor sits below the instrument minimum.
func LotsForRisk(in SizingInputs) (SizingResult, error) {
	if in.Equity <= 0 {
		return SizingResult{}, errs.Validation("equity", "must be positive, got %v", in.Equity)
	}
	if in.RiskPct <= 0 || in.RiskPct >= 1 {
		return SizingResult{}, errs.Validation("risk_pct", "must be in (0, 1), got %v", in.RiskPct)
	}
	stopDist := math.Abs(in.Entry - in.Stop)
	if stopDist == 0 {
		return SizingResult{}, errs.Validation("stop", "stop equals entry; no risk distance")
	}
	contract := in.ContractSize
	if contract == 0 {
		contract = 100_000
	}
	q := in.QuoteToAccount
	if q == 0 {
		q = 1
	}

	riskAmt := in.Equity * in.RiskPct
	// Loss per lot at the stop, in account currency.
	lossPerLot := stopDist * contract * q
	lots := riskAmt / lossPerLot

	if in.VolumeStep > 0 {
		lots = math.Floor(lots/in.VolumeStep) * in.VolumeStep
	}
	if in.VolumeMax > 0 && lots > in.VolumeMax {
		lots = in.VolumeMax
	}
	if in.VolumeMin > 0 && lots < in.VolumeMin {
		return SizingResult{}, errs.Validation("volume",
			"risk budget %v allows %v lots, below the instrument minimum %v", riskAmt, lots, in.VolumeMin)
	}

	return SizingResult{Lots: lots, RiskAmount: riskAmt, StopDist: stopDist}, nil
}
