package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mvisser/groupledger/internal/models"
	"github.com/mvisser/groupledger/internal/storage"
)

// CreateMembership persists a new membership for (account, user).
func (s *SQLiteStore) CreateMembership(ctx context.Context, m *models.Membership) error {
	if m.JoinedAt == 0 {
		m.JoinedAt = time.Now().Unix()
	}
	if m.Role == "" {
		m.Role = models.DefaultRole
	}
	if m.State == "" {
		m.State = models.MembershipActive
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO account_memberships (account_id, user_id, role, balance_cents, state, joined_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.AccountID, m.UserID, string(m.Role), m.BalanceCents, string(m.State), m.JoinedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("membership %s/%s: %w", m.AccountID, m.UserID, storage.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	return nil
}

// GetMembership retrieves the membership for (account, user).
func (s *SQLiteStore) GetMembership(ctx context.Context, accountID, userID string) (*models.Membership, error) {
	m := &models.Membership{}
	var role, state string
	err := s.db.QueryRowContext(ctx,
		`SELECT account_id, user_id, role, balance_cents, state, joined_at
		   FROM account_memberships WHERE account_id = ? AND user_id = ?`,
		accountID, userID,
	).Scan(&m.AccountID, &m.UserID, &role, &m.BalanceCents, &state, &m.JoinedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("membership %s/%s: %w", accountID, userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	m.Role = models.Role(role)
	m.State = models.MembershipState(state)
	return m, nil
}

// ListMemberships returns all memberships of an account, including revoked
// ones, ordered by join time.
func (s *SQLiteStore) ListMemberships(ctx context.Context, accountID string) ([]models.Membership, error) {
	return s.listMemberships(ctx,
		`SELECT account_id, user_id, role, balance_cents, state, joined_at
		   FROM account_memberships WHERE account_id = ? ORDER BY joined_at, user_id`,
		accountID)
}

// ListActiveMemberships returns the account's active memberships ordered by
// join time.
func (s *SQLiteStore) ListActiveMemberships(ctx context.Context, accountID string) ([]models.Membership, error) {
	return s.listMemberships(ctx,
		`SELECT account_id, user_id, role, balance_cents, state, joined_at
		   FROM account_memberships WHERE account_id = ? AND state = 'active' ORDER BY joined_at, user_id`,
		accountID)
}

func (s *SQLiteStore) listMemberships(ctx context.Context, query string, args ...any) ([]models.Membership, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []models.Membership
	for rows.Next() {
		var m models.Membership
		var role, state string
		if err := rows.Scan(&m.AccountID, &m.UserID, &role, &m.BalanceCents, &state, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		m.Role = models.Role(role)
		m.State = models.MembershipState(state)
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}
	return memberships, nil
}

// SetMembershipState flips a membership between active and revoked.
func (s *SQLiteStore) SetMembershipState(ctx context.Context, accountID, userID string, state models.MembershipState) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE account_memberships SET state = ? WHERE account_id = ? AND user_id = ?`,
		string(state), accountID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update membership state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("membership %s/%s: %w", accountID, userID, storage.ErrNotFound)
	}
	return nil
}

// TotalBalance sums all membership balances of the account, including
// revoked memberships.
func (s *SQLiteStore) TotalBalance(ctx context.Context, accountID string) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(balance_cents), 0) FROM account_memberships WHERE account_id = ?`,
		accountID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum balances: %w", err)
	}
	return total, nil
}

// ActiveMemberCount counts the account's active memberships.
func (s *SQLiteStore) ActiveMemberCount(ctx context.Context, accountID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM account_memberships WHERE account_id = ? AND state = 'active'`,
		accountID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active members: %w", err)
	}
	return count, nil
}

// ActiveAdminCount counts the account's active admin memberships.
func (s *SQLiteStore) ActiveAdminCount(ctx context.Context, accountID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM account_memberships WHERE account_id = ? AND state = 'active' AND role = 'admin'`,
		accountID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active admins: %w", err)
	}
	return count, nil
}
