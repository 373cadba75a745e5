package repos

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	SubmissionPending = "PENDING"
	SubmissionPlaced  = "PLACED"
	SubmissionFailed  = "FAILED"
)

// OrderRepo records every order placement attempt made through this
// service. The orders themselves live in the backend.
type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

type Submission struct {
	ID        string `db:"id" json:"id"`
	SessionID string `db:"session_id" json:"-"`
	AccountID string `db:"account_id" json:"account_id"`
	Status    string `db:"status" json:"status"`
	OrderID   string `db:"order_id" json:"order_id,omitempty"`
	Payable   string `db:"payable" json:"payable"`
	Message   string `db:"message" json:"message,omitempty"`
	CreatedAt string `db:"created_at" json:"created_at"`
	UpdatedAt string `db:"updated_at" json:"updated_at,omitempty"`
}

const submissionCols = `id, session_id, account_id, status, COALESCE(order_id,'') AS order_id,
	COALESCE(payable,'') AS payable, COALESCE(message,'') AS message, created_at, COALESCE(updated_at,'') AS updated_at`

// Begin inserts a PENDING submission.
func (r *OrderRepo) Begin(id, sessionID, accountID, payable string) error {
	_, err := r.db.Exec(`
	  INSERT INTO order_submissions(id, session_id, account_id, status, payable, created_at)
	  VALUES(?, ?, ?, 'PENDING', ?, CURRENT_TIMESTAMP)
	`, id, sessionID, accountID, payable)
	return err
}

func (r *OrderRepo) MarkPlaced(id, orderID string) error {
	_, err := r.db.Exec(`UPDATE order_submissions SET status='PLACED', order_id=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`, orderID, id)
	return err
}

func (r *OrderRepo) MarkFailed(id, message string) error {
	_, err := r.db.Exec(`UPDATE order_submissions SET status='FAILED', message=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`, message, id)
	return err
}

// Pending returns the in-flight submission of a session started at or
// after since, if any.
func (r *OrderRepo) Pending(sessionID string, since time.Time) (*Submission, error) {
	var s Submission
	err := r.db.Get(&s, `
		SELECT `+submissionCols+` FROM order_submissions
		WHERE session_id=? AND status='PENDING' AND datetime(created_at) >= datetime(?)
		LIMIT 1
	`, sessionID, sqlTime(since))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ExpirePending marks the session's PENDING submissions started before
// cutoff as FAILED and reports how many it touched.
func (r *OrderRepo) ExpirePending(sessionID string, cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`
		UPDATE order_submissions SET status='FAILED', message='expired', updated_at=CURRENT_TIMESTAMP
		WHERE session_id=? AND status='PENDING' AND datetime(created_at) < datetime(?)
	`, sessionID, sqlTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// sqlTime formats t the way CURRENT_TIMESTAMP stores it.
func sqlTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

func (r *OrderRepo) Get(id string) (Submission, error) {
	var s Submission
	err := r.db.Get(&s, `SELECT `+submissionCols+` FROM order_submissions WHERE id=?`, id)
	return s, err
}

// ListByAccount returns the newest submissions first.
func (r *OrderRepo) ListByAccount(accountID string, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = 100
	}
	out := []Submission{}
	err := r.db.Select(&out, `
		SELECT `+submissionCols+`
		FROM order_submissions
		WHERE account_id = ?
		ORDER BY datetime(created_at) DESC, rowid DESC
		LIMIT ?
	`, accountID, limit)
	return out, err
}
