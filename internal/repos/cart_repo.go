package repos

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"bulkmart/internal/domain"
)

// CartRepo keeps the last known cart of each session so a restart (or a
// backend outage) still has something to show.
type CartRepo struct{ db *sqlx.DB }

func NewCartRepo(db *sqlx.DB) *CartRepo { return &CartRepo{db: db} }

type snapshotLineRow struct {
	LineID           sql.NullString `db:"line_id"`
	ProductID        string         `db:"product_id"`
	ProductJSON      string         `db:"product_json"`
	Qty              int            `db:"qty"`
	CreditPeriod     string         `db:"credit_period"`
	CreditPercentage sql.NullString `db:"credit_percentage"`
}

// Save replaces the snapshot for sid. An empty cart removes it.
func (r *CartRepo) Save(sid, accountID string, lines []domain.CartLine) error {
	if len(lines) == 0 {
		return r.Clear(sid)
	}
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		INSERT INTO cart_snapshots(session_id, account_id, updated_at) VALUES(?,?,?)
		ON CONFLICT(session_id) DO UPDATE SET account_id=excluded.account_id, updated_at=excluded.updated_at
	`, sid, accountID, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM cart_snapshot_lines WHERE session_id=?`, sid); err != nil {
		return err
	}
	for i, l := range lines {
		pj, err := json.Marshal(l.Product)
		if err != nil {
			return err
		}
		var pct sql.NullString
		if l.CreditPercentage.IsSet() {
			pct = sql.NullString{String: l.CreditPercentage.Decimal().String(), Valid: true}
		}
		if _, err := tx.Exec(`
			INSERT INTO cart_snapshot_lines(session_id, position, line_id, product_id, product_json, qty, credit_period, credit_percentage)
			VALUES(?,?,?,?,?,?,?,?)
		`, sid, i, sql.NullString{String: l.LineID, Valid: l.LineID != ""}, l.ProductID, string(pj), l.Quantity, l.CreditPeriod, pct); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Load returns the snapshot for sid, or ("", nil) when none exists.
func (r *CartRepo) Load(sid string) (string, []domain.CartLine, error) {
	var accountID string
	err := r.db.Get(&accountID, `SELECT account_id FROM cart_snapshots WHERE session_id=?`, sid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, err
	}

	var rows []snapshotLineRow
	if err := r.db.Select(&rows, `
		SELECT line_id, product_id, product_json, qty, credit_period, credit_percentage
		FROM cart_snapshot_lines
		WHERE session_id=?
		ORDER BY position
	`, sid); err != nil {
		return "", nil, err
	}

	lines := make([]domain.CartLine, 0, len(rows))
	for _, row := range rows {
		l := domain.CartLine{
			LineID:       row.LineID.String,
			ProductID:    row.ProductID,
			Quantity:     row.Qty,
			CreditPeriod: row.CreditPeriod,
		}
		if err := json.Unmarshal([]byte(row.ProductJSON), &l.Product); err != nil {
			return "", nil, err
		}
		if row.CreditPercentage.Valid {
			l.CreditPercentage = domain.ParseNumber(row.CreditPercentage.String)
		}
		lines = append(lines, l)
	}
	return accountID, lines, nil
}

func (r *CartRepo) Clear(sid string) error {
	if _, err := r.db.Exec(`DELETE FROM cart_snapshot_lines WHERE session_id=?`, sid); err != nil {
		return err
	}
	_, err := r.db.Exec(`DELETE FROM cart_snapshots WHERE session_id=?`, sid)
	return err
}
