package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mvisser/groupledger/internal/models"
	"github.com/mvisser/groupledger/internal/storage"
)

// CreateTransaction persists a new transaction. The record always enters the
// database as pending; confirmation is a separate step so that balance
// effects ride the status edge.
func (s *SQLiteStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt == 0 {
		tx.CreatedAt = time.Now().Unix()
	}
	tx.Status = models.StatusPending

	// Empty hash is stored as NULL so the unique index only covers real
	// settlement hashes.
	var hash sql.NullString
	if tx.TxHash != "" {
		hash = sql.NullString{String: tx.TxHash, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions
		   (id, account_id, from_user_id, to_user_id, amount_cents, kind, token, status, description, tx_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.AccountID, tx.FromUserID, tx.ToUserID, tx.AmountCents,
		string(tx.Kind), string(tx.Token), string(tx.Status), tx.Description, hash, tx.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("settlement hash %s: %w", tx.TxHash, storage.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a transaction by id.
func (s *SQLiteStore) GetTransaction(ctx context.Context, txID string) (*models.Transaction, error) {
	tx := &models.Transaction{}
	var kind, token, status string
	var hash sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, from_user_id, to_user_id, amount_cents, kind, token, status, description, tx_hash, created_at
		   FROM transactions WHERE id = ?`,
		txID,
	).Scan(&tx.ID, &tx.AccountID, &tx.FromUserID, &tx.ToUserID, &tx.AmountCents,
		&kind, &token, &status, &tx.Description, &hash, &tx.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction %s: %w", txID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	tx.Kind = models.TransactionKind(kind)
	tx.Token = models.Token(token)
	tx.Status = models.TransactionStatus(status)
	tx.TxHash = hash.String
	return tx, nil
}

// ListRecentTransactions returns up to limit transactions of the account,
// newest first.
func (s *SQLiteStore) ListRecentTransactions(ctx context.Context, accountID string, limit int) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, from_user_id, to_user_id, amount_cents, kind, token, status, description, tx_hash, created_at
		   FROM transactions WHERE account_id = ?
		  ORDER BY created_at DESC, id DESC LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var kind, token, status string
		var hash sql.NullString
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.FromUserID, &tx.ToUserID, &tx.AmountCents,
			&kind, &token, &status, &tx.Description, &hash, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Kind = models.TransactionKind(kind)
		tx.Token = models.Token(token)
		tx.Status = models.TransactionStatus(status)
		tx.TxHash = hash.String
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}

// TxHashExists reports whether any transaction carries the given settlement
// hash.
func (s *SQLiteStore) TxHashExists(ctx context.Context, hash string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE tx_hash = ?`,
		hash,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check settlement hash: %w", err)
	}
	return count > 0, nil
}

// ConfirmTransaction transitions the transaction pending -> confirmed and
// applies all balance deltas in one database transaction. The status UPDATE
// is guarded on the current status: if the record is no longer pending the
// call is a no-op and returns false, which makes re-confirming safe.
//
// Balance mutation is an atomic add on the membership row, never a
// client-side read-modify-write, so concurrent confirmations against the
// same membership serialize at the database.
func (s *SQLiteStore) ConfirmTransaction(ctx context.Context, txID, accountID string, deltas []storage.BalanceDelta) (bool, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	res, err := dbTx.ExecContext(ctx,
		`UPDATE transactions SET status = ? WHERE id = ? AND status = ?`,
		string(models.StatusConfirmed), txID, string(models.StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update transaction status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		// Not pending anymore: already confirmed or otherwise terminal.
		return false, nil
	}

	for _, d := range deltas {
		res, err := dbTx.ExecContext(ctx,
			`UPDATE account_memberships SET balance_cents = balance_cents + ?
			  WHERE account_id = ? AND user_id = ?`,
			d.AmountCents, accountID, d.UserID,
		)
		if err != nil {
			return false, fmt.Errorf("failed to apply balance delta: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return false, fmt.Errorf("delta for user %s: %w", d.UserID, storage.ErrMembershipMissing)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit confirmation: %w", err)
	}
	return true, nil
}

// SetTransactionStatus transitions a pending transaction to a terminal
// status without any balance effect.
func (s *SQLiteStore) SetTransactionStatus(ctx context.Context, txID string, to models.TransactionStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET status = ? WHERE id = ? AND status = ?`,
		string(to), txID, string(models.StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update transaction status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// MonthlyExpenses sums confirmed expense amounts created inside the given
// calendar month (UTC).
func (s *SQLiteStore) MonthlyExpenses(ctx context.Context, accountID string, year int, month time.Month) (int64, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		  WHERE account_id = ? AND kind = 'expense' AND status = 'confirmed'
		    AND created_at >= ? AND created_at < ?`,
		accountID, start.Unix(), end.Unix(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum monthly expenses: %w", err)
	}
	return total, nil
}
