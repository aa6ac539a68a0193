// Package storage provides abstractions for persistent ledger storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mvisser/groupledger/internal/models"
)

// Sentinel errors shared by all Store implementations.
var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when a uniqueness constraint would be
	// violated: a second membership for the same (account, user) pair or a
	// duplicate settlement hash.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrMembershipMissing is returned by ConfirmTransaction when a balance
	// delta targets a (account, user) pair with no membership row. The whole
	// confirmation is rolled back.
	ErrMembershipMissing = errors.New("membership missing for balance delta")
)

// BalanceDelta is one membership balance adjustment, in minor units.
type BalanceDelta struct {
	UserID      string
	AmountCents int64
}

// Store defines the persistence operations the ledger engine needs.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL,
// etc.) without changing the service layer.
type Store interface {
	// CreateAccount persists a new account. ID and CreatedAt are populated
	// by the store when unset.
	CreateAccount(ctx context.Context, account *models.Account) error

	// GetAccount retrieves an account by id.
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)

	// CreateMembership persists a new membership. JoinedAt is populated by
	// the store when unset. Returns ErrAlreadyExists if the (account, user)
	// pair already has a membership.
	CreateMembership(ctx context.Context, m *models.Membership) error

	// GetMembership retrieves the membership for (account, user).
	GetMembership(ctx context.Context, accountID, userID string) (*models.Membership, error)

	// ListMemberships returns all memberships of an account, including
	// revoked ones.
	ListMemberships(ctx context.Context, accountID string) ([]models.Membership, error)

	// ListActiveMemberships returns the account's active memberships.
	ListActiveMemberships(ctx context.Context, accountID string) ([]models.Membership, error)

	// SetMembershipState flips a membership between active and revoked.
	SetMembershipState(ctx context.Context, accountID, userID string, state models.MembershipState) error

	// CreateTransaction persists a new transaction in StatusPending. ID and
	// CreatedAt are populated by the store when unset. Returns
	// ErrAlreadyExists if the settlement hash is already taken.
	CreateTransaction(ctx context.Context, tx *models.Transaction) error

	// GetTransaction retrieves a transaction by id.
	GetTransaction(ctx context.Context, txID string) (*models.Transaction, error)

	// ListRecentTransactions returns up to limit transactions of the
	// account, newest first.
	ListRecentTransactions(ctx context.Context, accountID string, limit int) ([]models.Transaction, error)

	// TxHashExists reports whether any transaction carries the given
	// settlement hash.
	TxHashExists(ctx context.Context, hash string) (bool, error)

	// ConfirmTransaction atomically transitions the transaction from
	// pending to confirmed and applies all balance deltas, or does nothing.
	// The status update is the edge trigger: if the transaction is no
	// longer pending the call returns (false, nil) and applies no delta, so
	// re-confirming is harmless. Each delta is applied as an atomic add on
	// the membership row; a delta targeting a missing membership rolls the
	// whole confirmation back with ErrMembershipMissing.
	ConfirmTransaction(ctx context.Context, txID, accountID string, deltas []BalanceDelta) (bool, error)

	// SetTransactionStatus transitions a pending transaction to a terminal
	// status without balance effects (failed, cancelled). Returns
	// (false, nil) when the transaction was not pending.
	SetTransactionStatus(ctx context.Context, txID string, to models.TransactionStatus) (bool, error)

	// TotalBalance sums all membership balances of the account, including
	// revoked memberships.
	TotalBalance(ctx context.Context, accountID string) (int64, error)

	// MonthlyExpenses sums confirmed expense amounts recorded inside the
	// given calendar month (UTC).
	MonthlyExpenses(ctx context.Context, accountID string, year int, month time.Month) (int64, error)

	// ActiveMemberCount counts the account's active memberships.
	ActiveMemberCount(ctx context.Context, accountID string) (int, error)

	// ActiveAdminCount counts the account's active admin memberships.
	ActiveAdminCount(ctx context.Context, accountID string) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
