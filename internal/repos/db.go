package repos

import (
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Sessions (id is the 'sid' cookie)
CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,
  account_id TEXT,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  last_seen  TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_account ON sessions(account_id);

-- Cart snapshots: present only while the cart is non-empty
CREATE TABLE IF NOT EXISTS cart_snapshots(
  session_id TEXT PRIMARY KEY,
  account_id TEXT NOT NULL,
  updated_at TEXT
);

CREATE TABLE IF NOT EXISTS cart_snapshot_lines(
  session_id TEXT NOT NULL REFERENCES cart_snapshots(session_id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  line_id TEXT,
  product_id TEXT NOT NULL,
  product_json TEXT NOT NULL,
  qty INTEGER NOT NULL CHECK (qty >= 1),
  credit_period TEXT NOT NULL DEFAULT '0',
  credit_percentage TEXT,
  PRIMARY KEY (session_id, position)
);

-- Order submissions (one row per placement attempt)
CREATE TABLE IF NOT EXISTS order_submissions(
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  account_id TEXT NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('PENDING','PLACED','FAILED')),
  order_id TEXT,
  payable TEXT,
  message TEXT,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_submissions_session ON order_submissions(session_id, status);
CREATE INDEX IF NOT EXISTS idx_submissions_account ON order_submissions(account_id);
`
	_, err := db.Exec(schema)
	return err
}
