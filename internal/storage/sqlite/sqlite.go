// Package sqlite provides a SQLite-backed implementation of the
// storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mvisser/groupledger/internal/models"
	"github.com/mvisser/groupledger/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a SQLite uniqueness constraint
// failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateAccount persists a new account.
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt == 0 {
		account.CreatedAt = time.Now().Unix()
	}
	if account.SplitPolicy == "" {
		account.SplitPolicy = models.DefaultSplitPolicy
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts
		   (id, name, description, split_policy, auto_convert, notifications, min_deposit_cents, wallet_address, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.Name, account.Description, string(account.SplitPolicy),
		boolToInt(account.Settings.AutoConvert), boolToInt(account.Settings.Notifications),
		account.Settings.MinDepositCents, account.WalletAddress, account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by id.
func (s *SQLiteStore) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	account := &models.Account{}
	var policy string
	var autoConvert, notifications int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, split_policy, auto_convert, notifications, min_deposit_cents, wallet_address, created_at
		   FROM accounts WHERE id = ?`,
		accountID,
	).Scan(&account.ID, &account.Name, &account.Description, &policy,
		&autoConvert, &notifications, &account.Settings.MinDepositCents,
		&account.WalletAddress, &account.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %s: %w", accountID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	account.SplitPolicy = models.SplitPolicy(policy)
	account.Settings.AutoConvert = autoConvert != 0
	account.Settings.Notifications = notifications != 0
	return account, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
