package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

type CSVJournal struct {
	w *csv.Writer
	f *os.File
}

func NewCSV(path string) (*CSVJournal, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "account", "symbol", "type", "volume", "price", "sl", "tp", "retcode", "ticket", "comment", "time"}); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return &CSVJournal{w: w, f: f}, nil
}

func (j *CSVJournal) RecordExecution(e Execution) error {
	err := j.w.Write([]string{
		e.ID,
		e.Account,
		e.Symbol,
		e.Type,
		f(e.Volume),
		f(e.Price),
		f(e.SL),
		f(e.TP),
		strconv.FormatUint(uint64(e.Retcode), 10),
		strconv.FormatUint(e.Ticket, 10),
		e.Comment,
		e.Time.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	j.w.Flush()
	return j.w.Error()
}

func (j *CSVJournal) Close() error {
	j.w.Flush()
	if err := j.w.Error(); err != nil {
		return err
	}
	return j.f.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
