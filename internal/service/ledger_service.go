// Package service implements the ledger and settlement engine: membership
// lifecycle, the transaction state machine with its exactly-once balance
// apply, and the derived account views.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mvisser/groupledger/internal/metrics"
	"github.com/mvisser/groupledger/internal/models"
	"github.com/mvisser/groupledger/internal/split"
	"github.com/mvisser/groupledger/internal/storage"
)

// LedgerService is the engine the surrounding application calls into. It
// holds no mutable state of its own; everything lives in the store, so one
// instance is safely shared across concurrent request handlers.
type LedgerService struct {
	store storage.Store
}

// NewLedgerService creates a LedgerService backed by the given store.
func NewLedgerService(store storage.Store) *LedgerService {
	return &LedgerService{store: store}
}

// CreateAccountInput carries the parameters for CreateAccount.
type CreateAccountInput struct {
	Name          string
	Description   string
	SplitPolicy   models.SplitPolicy // default: equal
	Settings      *models.AccountSettings
	WalletAddress string
	CreatorUserID string
}

// CreateAccount creates an account and grants the creator an admin
// membership.
func (s *LedgerService) CreateAccount(ctx context.Context, in CreateAccountInput) (*models.Account, error) {
	name := strings.TrimSpace(in.Name)
	if len(name) < 3 || len(name) > 100 {
		return nil, fmt.Errorf("%w: account name must be 3-100 characters", ErrValidation)
	}
	if in.CreatorUserID == "" {
		return nil, fmt.Errorf("%w: creator user id is required", ErrValidation)
	}
	policy := in.SplitPolicy
	if policy == "" {
		policy = models.DefaultSplitPolicy
	}
	if !policy.Valid() {
		return nil, fmt.Errorf("%w: unknown split policy %q", ErrValidation, in.SplitPolicy)
	}
	settings := models.DefaultAccountSettings()
	if in.Settings != nil {
		settings = *in.Settings
	}

	account := &models.Account{
		Name:          name,
		Description:   in.Description,
		SplitPolicy:   policy,
		Settings:      settings,
		WalletAddress: in.WalletAddress,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	membership := &models.Membership{
		AccountID: account.ID,
		UserID:    in.CreatorUserID,
		Role:      models.RoleAdmin,
	}
	if err := s.store.CreateMembership(ctx, membership); err != nil {
		return nil, err
	}

	slog.Info("account created",
		"account_id", account.ID,
		"name", account.Name,
		"split_policy", account.SplitPolicy,
		"creator", in.CreatorUserID,
	)
	return account, nil
}

// GetAccount retrieves an account by id.
func (s *LedgerService) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	return s.store.GetAccount(ctx, accountID)
}

// GrantMembership adds a user to an account. Granting to a user whose
// membership was revoked reactivates the existing membership with its
// balance intact instead of creating a second row.
func (s *LedgerService) GrantMembership(ctx context.Context, accountID, userID string, role models.Role) (*models.Membership, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if role == "" {
		role = models.DefaultRole
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	existing, err := s.store.GetMembership(ctx, accountID, userID)
	switch {
	case err == nil:
		if existing.Active() {
			return nil, fmt.Errorf("%w: user %s is already a member", ErrValidation, userID)
		}
		if err := s.store.SetMembershipState(ctx, accountID, userID, models.MembershipActive); err != nil {
			return nil, err
		}
		existing.State = models.MembershipActive
		slog.Info("membership reactivated", "account_id", accountID, "user_id", userID)
		return existing, nil
	case errors.Is(err, storage.ErrNotFound):
		// fall through to create
	default:
		return nil, err
	}

	membership := &models.Membership{
		AccountID: accountID,
		UserID:    userID,
		Role:      role,
	}
	if err := s.store.CreateMembership(ctx, membership); err != nil {
		return nil, err
	}
	slog.Info("membership granted", "account_id", accountID, "user_id", userID, "role", role)
	return membership, nil
}

// RevokeMembership deactivates a membership. The row and its balance stay so
// historical transactions remain attributable. Revoking the last active
// admin is rejected while other active members remain.
func (s *LedgerService) RevokeMembership(ctx context.Context, accountID, userID string) error {
	membership, err := s.store.GetMembership(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !membership.Active() {
		return nil
	}

	if membership.Role == models.RoleAdmin {
		admins, err := s.store.ActiveAdminCount(ctx, accountID)
		if err != nil {
			return err
		}
		members, err := s.store.ActiveMemberCount(ctx, accountID)
		if err != nil {
			return err
		}
		if admins == 1 && members > 1 {
			return ErrLastAdmin
		}
	}

	if err := s.store.SetMembershipState(ctx, accountID, userID, models.MembershipRevoked); err != nil {
		return err
	}
	slog.Info("membership revoked", "account_id", accountID, "user_id", userID)
	return nil
}

// ListMemberships returns all memberships of the account, revoked included.
func (s *LedgerService) ListMemberships(ctx context.Context, accountID string) ([]models.Membership, error) {
	return s.store.ListMemberships(ctx, accountID)
}

// RecordTransactionInput carries the parameters for RecordTransaction.
type RecordTransactionInput struct {
	AccountID   string
	Kind        models.TransactionKind
	AmountCents int64
	Token       models.Token // default: EURe
	Description string
	FromUserID  string
	ToUserID    string // required iff Kind is transfer
	TxHash      string // optional settlement hash

	// Status resolves to confirmed when empty (auto-settlement). Pending is
	// the only other accepted value, for flows that confirm later.
	Status models.TransactionStatus
}

// RecordTransaction validates and persists a transaction, then applies its
// balance effects when the resolved status is confirmed.
//
// Two outcomes return the persisted transaction together with an error: an
// expense over zero active members (ErrInapplicableSplit, transaction stays
// pending) and a missing counterpart membership (ErrMissingMembership,
// transaction transitions to failed). In both cases no balance was touched.
func (s *LedgerService) RecordTransaction(ctx context.Context, in RecordTransactionInput) (*models.Transaction, error) {
	tx, err := s.validate(ctx, in)
	if err != nil {
		metrics.TransactionsRejected.Inc()
		slog.Warn("transaction rejected", "account_id", in.AccountID, "kind", in.Kind, "error", err)
		return nil, err
	}

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			metrics.TransactionsRejected.Inc()
			return nil, fmt.Errorf("%w: settlement hash already used", ErrValidation)
		}
		return nil, err
	}
	slog.Info("transaction recorded",
		"transaction_id", tx.ID,
		"account_id", tx.AccountID,
		"kind", tx.Kind,
		"amount_cents", tx.AmountCents,
	)

	if in.Status == models.StatusPending {
		return tx, nil
	}
	return s.confirm(ctx, tx)
}

// ConfirmTransaction transitions a pending transaction to confirmed and
// applies its balance effects. Confirming an already confirmed transaction
// is a no-op; failed and cancelled transactions cannot be confirmed.
func (s *LedgerService) ConfirmTransaction(ctx context.Context, txID string) (*models.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	switch tx.Status {
	case models.StatusConfirmed:
		return tx, nil
	case models.StatusFailed, models.StatusCancelled:
		return nil, fmt.Errorf("cannot confirm %s transaction %s: %w", tx.Status, txID, ErrTerminalStatus)
	}
	return s.confirm(ctx, tx)
}

// CancelTransaction transitions a pending transaction to cancelled.
func (s *LedgerService) CancelTransaction(ctx context.Context, txID string) (*models.Transaction, error) {
	return s.terminate(ctx, txID, models.StatusCancelled)
}

// FailTransaction transitions a pending transaction to failed.
func (s *LedgerService) FailTransaction(ctx context.Context, txID string) (*models.Transaction, error) {
	return s.terminate(ctx, txID, models.StatusFailed)
}

func (s *LedgerService) terminate(ctx context.Context, txID string, to models.TransactionStatus) (*models.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.Status.Terminal() {
		return nil, fmt.Errorf("cannot move %s transaction %s to %s: %w", tx.Status, txID, to, ErrTerminalStatus)
	}
	moved, err := s.store.SetTransactionStatus(ctx, txID, to)
	if err != nil {
		return nil, err
	}
	if !moved {
		// Lost a race with another transition; report the current state.
		return nil, fmt.Errorf("transaction %s changed concurrently: %w", txID, ErrTerminalStatus)
	}
	tx.Status = to
	slog.Info("transaction terminated", "transaction_id", txID, "status", to)
	return tx, nil
}

// BalanceOf returns the user's balance within the account, or zero when the
// user has no membership there.
func (s *LedgerService) BalanceOf(ctx context.Context, accountID, userID string) (int64, error) {
	membership, err := s.store.GetMembership(ctx, accountID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return membership.BalanceCents, nil
}

// TotalBalance returns the sum of all membership balances of the account,
// revoked memberships included.
func (s *LedgerService) TotalBalance(ctx context.Context, accountID string) (int64, error) {
	return s.store.TotalBalance(ctx, accountID)
}

// MonthlyExpenses returns the sum of confirmed expense amounts recorded in
// the given calendar month.
func (s *LedgerService) MonthlyExpenses(ctx context.Context, accountID string, year int, month time.Month) (int64, error) {
	return s.store.MonthlyExpenses(ctx, accountID, year, month)
}

// ActiveMemberCount returns the number of active memberships in the account.
func (s *LedgerService) ActiveMemberCount(ctx context.Context, accountID string) (int, error) {
	return s.store.ActiveMemberCount(ctx, accountID)
}

// RecentTransactions returns up to limit transactions, newest first.
func (s *LedgerService) RecentTransactions(ctx context.Context, accountID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.store.ListRecentTransactions(ctx, accountID, limit)
}

// validate checks the input independent of status and builds the record.
// A failing transaction is never persisted.
func (s *LedgerService) validate(ctx context.Context, in RecordTransactionInput) (*models.Transaction, error) {
	if in.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown transaction kind %q", ErrValidation, in.Kind)
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", ErrValidation)
	}
	if in.FromUserID == "" {
		return nil, fmt.Errorf("%w: from user is required", ErrValidation)
	}
	if in.Kind == models.KindTransfer && in.ToUserID == "" {
		return nil, fmt.Errorf("%w: to user is required for transfers", ErrValidation)
	}

	token := in.Token
	if token == "" {
		token = models.DefaultToken
	}
	if !token.Valid() {
		return nil, fmt.Errorf("%w: unknown token %q", ErrValidation, in.Token)
	}

	status := in.Status
	if status == "" {
		status = models.StatusConfirmed
	}
	if status != models.StatusPending && status != models.StatusConfirmed {
		return nil, fmt.Errorf("%w: transactions start pending or confirmed, not %q", ErrValidation, in.Status)
	}

	if in.TxHash != "" {
		if !models.ValidTxHash(in.TxHash) {
			return nil, fmt.Errorf("%w: malformed settlement hash", ErrValidation)
		}
		taken, err := s.store.TxHashExists(ctx, in.TxHash)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fmt.Errorf("%w: settlement hash already used", ErrValidation)
		}
	}

	if _, err := s.store.GetAccount(ctx, in.AccountID); err != nil {
		return nil, err
	}

	return &models.Transaction{
		AccountID:   in.AccountID,
		FromUserID:  in.FromUserID,
		ToUserID:    in.ToUserID,
		AmountCents: in.AmountCents,
		Kind:        in.Kind,
		Token:       token,
		Description: in.Description,
		TxHash:      in.TxHash,
	}, nil
}

// confirm applies the pending -> confirmed edge. Deltas are computed against
// the memberships as they are now, then handed to the store which performs
// the status flip and every delta in one atomic unit. The status flip is
// guarded on the record still being pending, so a concurrent or repeated
// confirmation applies nothing.
func (s *LedgerService) confirm(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	deltas, err := s.computeDeltas(ctx, tx)
	if err != nil {
		switch {
		case errors.Is(err, ErrInapplicableSplit):
			slog.Warn("expense has no active participants, staying pending", "transaction_id", tx.ID)
			return tx, err
		case errors.Is(err, ErrMissingMembership):
			return s.failConfirmation(ctx, tx, err)
		}
		return nil, err
	}

	applied, err := s.store.ConfirmTransaction(ctx, tx.ID, tx.AccountID, deltas)
	if errors.Is(err, storage.ErrMembershipMissing) {
		return s.failConfirmation(ctx, tx, fmt.Errorf("%w: %v", ErrMissingMembership, err))
	}
	if err != nil {
		return nil, err
	}
	if !applied {
		// Someone else moved the transaction out of pending first.
		return s.store.GetTransaction(ctx, tx.ID)
	}

	tx.Status = models.StatusConfirmed
	metrics.TransactionsConfirmed.WithLabelValues(string(tx.Kind)).Inc()
	slog.Info("transaction confirmed",
		"transaction_id", tx.ID,
		"account_id", tx.AccountID,
		"kind", tx.Kind,
		"deltas", len(deltas),
	)
	return tx, nil
}

// failConfirmation moves the transaction to failed with no balance effect.
func (s *LedgerService) failConfirmation(ctx context.Context, tx *models.Transaction, cause error) (*models.Transaction, error) {
	if _, err := s.store.SetTransactionStatus(ctx, tx.ID, models.StatusFailed); err != nil {
		return nil, err
	}
	tx.Status = models.StatusFailed
	metrics.TransactionsFailed.Inc()
	slog.Warn("transaction failed during confirmation",
		"transaction_id", tx.ID,
		"kind", tx.Kind,
		"error", cause,
	)
	return tx, cause
}

// computeDeltas resolves the balance effects of a confirmation:
//
//   - deposit: +amount on the source membership
//   - expense: -share on each active membership, per the account's policy;
//     participants are the active members at confirmation time
//   - transfer: -amount on the source, +amount on the destination
//
// Deposits and transfers require the referenced memberships to exist;
// otherwise the confirmation fails atomically rather than partially
// applying.
func (s *LedgerService) computeDeltas(ctx context.Context, tx *models.Transaction) ([]storage.BalanceDelta, error) {
	switch tx.Kind {
	case models.KindDeposit:
		if err := s.requireMembership(ctx, tx.AccountID, tx.FromUserID); err != nil {
			return nil, err
		}
		return []storage.BalanceDelta{
			{UserID: tx.FromUserID, AmountCents: tx.AmountCents},
		}, nil

	case models.KindTransfer:
		if err := s.requireMembership(ctx, tx.AccountID, tx.FromUserID); err != nil {
			return nil, err
		}
		if err := s.requireMembership(ctx, tx.AccountID, tx.ToUserID); err != nil {
			return nil, err
		}
		return []storage.BalanceDelta{
			{UserID: tx.FromUserID, AmountCents: -tx.AmountCents},
			{UserID: tx.ToUserID, AmountCents: tx.AmountCents},
		}, nil

	case models.KindExpense:
		account, err := s.store.GetAccount(ctx, tx.AccountID)
		if err != nil {
			return nil, err
		}
		participants, err := s.store.ListActiveMemberships(ctx, tx.AccountID)
		if err != nil {
			return nil, err
		}
		total, err := s.store.TotalBalance(ctx, tx.AccountID)
		if err != nil {
			return nil, err
		}
		shares, err := split.ComputeShares(tx.AmountCents, account.SplitPolicy, participants, tx.FromUserID, total)
		if errors.Is(err, split.ErrNoParticipants) {
			return nil, fmt.Errorf("%w: account %s has no active members", ErrInapplicableSplit, tx.AccountID)
		}
		if err != nil {
			return nil, err
		}
		// Pass-through policies may charge a payer who is not among the
		// active participants; the store rejects the confirmation if that
		// payer has no membership row at all.
		deltas := make([]storage.BalanceDelta, 0, len(shares))
		for userID, share := range shares {
			deltas = append(deltas, storage.BalanceDelta{UserID: userID, AmountCents: -share})
		}
		return deltas, nil
	}
	return nil, fmt.Errorf("%w: unknown transaction kind %q", ErrValidation, tx.Kind)
}

func (s *LedgerService) requireMembership(ctx context.Context, accountID, userID string) error {
	_, err := s.store.GetMembership(ctx, accountID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: user %s has no membership in account %s", ErrMissingMembership, userID, accountID)
	}
	return err
}
