// Package journal records every order submission outcome, successful or
// not, so executions can be audited after the fact.
package journal

import "time"

// Execution is one submission outcome as seen by the executor.
type Execution struct {
	ID      string // ULID, time-sortable
	Account string // registry account name, "" when unaddressed
	Symbol  string
	Type    string // "buy", "sell_limit", ...
	Volume  float64
	Price   float64
	SL      float64
	TP      float64
	Retcode uint32
	Ticket  uint64
	Comment string
	Time    time.Time
}

// Journal persists executions. Implementations: SQLite and CSV.
type Journal interface {
	RecordExecution(Execution) error
	Close() error
}

// Nop discards everything; the executor's default.
type Nop struct{}

func (Nop) RecordExecution(Execution) error { return nil }
func (Nop) Close() error                    { return nil }
