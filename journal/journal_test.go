package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(id, account string) Execution {
	return Execution{
		ID:      id,
		Account: account,
		Symbol:  "EURUSD",
		Type:    "buy",
		Volume:  0.1,
		Price:   1.1002,
		SL:      1.0950,
		TP:      1.1050,
		Retcode: 10009,
		Ticket:  1001,
		Comment: "test",
		Time:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.RecordExecution(sample("01A", "main")))
	require.NoError(t, j.RecordExecution(sample("01B", "demo")))
	require.NoError(t, j.RecordExecution(sample("01C", "main")))

	all, err := j.ListExecutions("", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	// Newest (highest ULID) first.
	assert.Equal(t, "01C", all[0].ID)

	main, err := j.ListExecutions("main", 0)
	require.NoError(t, err)
	assert.Len(t, main, 2)

	limited, err := j.ListExecutions("", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "01C", limited[0].ID)
	assert.Equal(t, uint32(10009), limited[0].Retcode)
	assert.InDelta(t, 1.1002, limited[0].Price, 1e-9)
}

func TestCSVWritesRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "executions.csv")
	j, err := NewCSV(path)
	require.NoError(t, err)

	require.NoError(t, j.RecordExecution(sample("01A", "main")))
	require.NoError(t, j.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2) // header + one record
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "01A", rows[1][0])
	assert.Equal(t, "EURUSD", rows[1][2])
	assert.Equal(t, "10009", rows[1][8])
}
