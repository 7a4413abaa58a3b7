package journal

const Schema = `
CREATE TABLE IF NOT EXISTS executions (
	id TEXT PRIMARY KEY,
	account TEXT NOT NULL,
	symbol TEXT NOT NULL,
	type TEXT NOT NULL,
	volume REAL NOT NULL,
	price REAL NOT NULL,
	sl REAL NOT NULL,
	tp REAL NOT NULL,
	retcode INTEGER NOT NULL,
	ticket INTEGER NOT NULL,
	comment TEXT NOT NULL,
	time DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS executions_account ON executions(account);
CREATE INDEX IF NOT EXISTS executions_symbol ON executions(symbol);
`
