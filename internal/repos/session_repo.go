package repos

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type SessionRepo struct{ DB *sqlx.DB }

func NewSessionRepo(db *sqlx.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Bind links sid to accountID and returns the account it was bound to
// before ("" if none).
func (r *SessionRepo) Bind(sid, accountID string) (string, error) {
	tx, err := r.DB.Beginx()
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	var prev sql.NullString
	if err := tx.Get(&prev, `SELECT account_id FROM sessions WHERE id=?`, sid); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	if _, err := tx.Exec(`INSERT INTO sessions(id,account_id,last_seen)
                          VALUES(?,?,CURRENT_TIMESTAMP)
                          ON CONFLICT(id) DO UPDATE SET account_id=excluded.account_id,last_seen=CURRENT_TIMESTAMP`, sid, accountID); err != nil {
		return "", err
	}
	return prev.String, tx.Commit()
}

// Account returns the account bound to sid, or "" when unbound.
func (r *SessionRepo) Account(sid string) (string, error) {
	var acct sql.NullString
	err := r.DB.Get(&acct, `SELECT account_id FROM sessions WHERE id=?`, sid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return acct.String, err
}

func (r *SessionRepo) Unbind(sid string) error {
	_, err := r.DB.Exec(`UPDATE sessions SET account_id=NULL,last_seen=CURRENT_TIMESTAMP WHERE id=?`, sid)
	return err
}
