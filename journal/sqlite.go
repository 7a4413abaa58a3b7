package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}
	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordExecution(e Execution) error {
	_, err := j.db.Exec(`
		INSERT INTO executions
		(id, account, symbol, type, volume, price, sl, tp, retcode, ticket, comment, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Account, e.Symbol, e.Type, e.Volume, e.Price, e.SL, e.TP,
		e.Retcode, e.Ticket, e.Comment, e.Time.UTC(),
	)
	return err
}

// ListExecutions returns records for one account, newest first. An empty
// account matches everything; limit <= 0 means no limit.
func (j *SQLiteJournal) ListExecutions(account string, limit int) ([]Execution, error) {
	query := `SELECT id, account, symbol, type, volume, price, sl, tp, retcode, ticket, comment, time
		FROM executions`
	args := []any{}
	if account != "" {
		query += ` WHERE account = ?`
		args = append(args, account)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		var e Execution
		var ts time.Time
		if err := rows.Scan(&e.ID, &e.Account, &e.Symbol, &e.Type, &e.Volume,
			&e.Price, &e.SL, &e.TP, &e.Retcode, &e.Ticket, &e.Comment, &ts); err != nil {
			return nil, err
		}
		e.Time = ts
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
