package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mvisser/groupledger/internal/models"
	"github.com/mvisser/groupledger/internal/storage/sqlite"
)

func newTestService(t *testing.T) *LedgerService {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewLedgerService(store)
}

// newTestAccount creates an account with alice as admin plus the given extra
// members.
func newTestAccount(t *testing.T, svc *LedgerService, policy models.SplitPolicy, extraMembers ...string) *models.Account {
	t.Helper()
	account, err := svc.CreateAccount(context.Background(), CreateAccountInput{
		Name:          "Flat 12",
		SplitPolicy:   policy,
		CreatorUserID: "alice",
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	for _, user := range extraMembers {
		if _, err := svc.GrantMembership(context.Background(), account.ID, user, models.RoleMember); err != nil {
			t.Fatalf("GrantMembership(%s) failed: %v", user, err)
		}
	}
	return account
}

func balance(t *testing.T, svc *LedgerService, accountID, userID string) int64 {
	t.Helper()
	got, err := svc.BalanceOf(context.Background(), accountID, userID)
	if err != nil {
		t.Fatalf("BalanceOf(%s) failed: %v", userID, err)
	}
	return got
}

func total(t *testing.T, svc *LedgerService, accountID string) int64 {
	t.Helper()
	got, err := svc.TotalBalance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("TotalBalance failed: %v", err)
	}
	return got
}

func deposit(t *testing.T, svc *LedgerService, accountID, user string, amount int64) *models.Transaction {
	t.Helper()
	tx, err := svc.RecordTransaction(context.Background(), RecordTransactionInput{
		AccountID:   accountID,
		Kind:        models.KindDeposit,
		AmountCents: amount,
		Description: "deposit",
		FromUserID:  user,
	})
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	return tx
}

func TestCreateAccountGrantsAdmin(t *testing.T) {
	svc := newTestService(t)
	account := newTestAccount(t, svc, models.SplitEqual)

	memberships, err := svc.ListMemberships(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("ListMemberships failed: %v", err)
	}
	if len(memberships) != 1 {
		t.Fatalf("memberships = %d, want 1", len(memberships))
	}
	m := memberships[0]
	if m.UserID != "alice" || m.Role != models.RoleAdmin || !m.Active() {
		t.Errorf("creator membership = %+v, want active admin alice", m)
	}
}

// Scenario A: a confirmed deposit credits only the depositor.
func TestDepositCreditsSourceOnly(t *testing.T) {
	svc := newTestService(t)
	account := newTestAccount(t, svc, models.SplitEqual, "bob")

	tx := deposit(t, svc, account.ID, "alice", 10000)
	if tx.Status != models.StatusConfirmed {
		t.Fatalf("status = %q, want confirmed (auto-settlement default)", tx.Status)
	}

	if got := balance(t, svc, account.ID, "alice"); got != 10000 {
		t.Errorf("alice balance = %d, want 10000", got)
	}
	if got := balance(t, svc, account.ID, "bob"); got != 0 {
		t.Errorf("bob balance = %d, want 0", got)
	}
	if got := total(t, svc, account.ID); got != 10000 {
		t.Errorf("total balance = %d, want 10000", got)
	}
}

// Scenario B: an equal-split expense decrements every active member.
func TestExpenseSplitsEqually(t *testing.T) {
	svc := newTestService(t)
	account := newTestAccount(t, svc, models.SplitEqual, "bob")
	ctx := context.Background()

	before := total(t, svc, account.ID)
	_, err := svc.RecordTransaction(ctx, RecordTransactionInput{
		AccountID:   account.ID,
		Kind:        models.KindExpense,
		AmountCents: 6000,
		Description: "groceries",
		FromUserID:  "alice",
	})
	if err != nil {
		t.Fatalf("RecordTransaction failed: %v", err)
	}

	if got := balance(t, svc, account.ID, "alice"); got != -3000 {
		t.Errorf("alice balance = %d, want -3000", got)
	}
	if got := balance(t, svc, account.ID, "bob"); got != -3000 {
		t.Errorf("bob balance = %d, want -3000", got)
	}
	if got := total(t, svc, account.ID); got != before-6000 {
		t.Errorf("total balance = %d, want %d", got, before-6000)
	}
}

// Scenario C: the equal-split truncation remainder is not redistributed.
func TestExpenseTruncationRemainder(t *testing.T) {
	svc := newTestService(t)
	account := newTestAccount(t, svc, models.SplitEqual, "bob", "carol")
	ctx := context.Background()

	_, err := svc.RecordTransaction(ctx, RecordTransactionInput{
		AccountID:   account.ID,
		Kind:        models.KindExpense,
		AmountCents: 100,
		Description: "coffee",
		FromUserID:  "alice",
	})
	if err != nil {
		t.Fatalf("RecordTransaction failed: %v", err)
	}

	for _, user := range []string{"alice", "bob", "carol"} {
		if got := balance(t, svc, account.ID, user); got != -33 {
			t.Errorf("%s balance = %d, want -33", user, got)
		}
	}
	// 99 deducted in total, not 100.
	if got := total(t, svc, account.ID); got != -99 {
		t.Errorf("total balance = %d, want -99", got)
	}
}

// Scenario D: a transfer conserves the account total.
func TestTransferConservesTotal(t *testing.T) {
	svc := newTestService(t)
	account := newTestAccount(t, svc, models.SplitEqual, "bob")
	ctx := context.Background()

	deposit(t, svc, account.ID, "alice", 10000)
	before := total(t, svc, account.ID)

	_, err := svc.RecordTransaction(ctx, RecordTransactionInput{
		AccountID:   account.ID,
		Kind:        models.KindTransfer,
		AmountCents: 5000,
		Description: "settling up",
		FromUserID:  "alice",
		ToUserID:    "bob",
	})
	if err != nil {
		t.Fatalf("RecordTransaction failed: %v", err)
	}

	if got := balance(t, svc, account.ID, "alice"); got != 5000 {
		t.Errorf("alice balance = %d, want 5000", got)
	}
	if got := balance(t, svc, account.ID, "bob"); got != 5000 {
		t.Errorf("bob balance = %d, want 5000", got)
	}
	if got := total(t, svc, account.ID); got != before {
		t.Errorf("total balance = %d, want %d (transfers net to zero)", got, before)
	}
}

// Scenario E: an expense over zero active members stays pending with no
// balance effect, and confirms later once members exist.
func TestExpenseWithNoActiveMembersStaysPending(t *testing.T) {
	svc := newTestService(t)
	account := newTestAccount(t, svc, models.SplitEqual)
	ctx := context.Background()

	if err := svc.RevokeMembership(ctx, account.ID, "alice"); err != nil {
		t.Fatalf("RevokeMembership failed: %v", err)
	}

	tx, err := svc.RecordTransaction(ctx, RecordTransactionInput{
		AccountID:   account.ID,
		Kind:        models.KindExpense,
		AmountCents: 4000,
		Description: "utilities",
		FromUserID:  "alice",
	})
	if !errors.Is(err, ErrInapplicableSplit) {
		t.Fatalf("error = %v, want ErrInapplicableSplit", err)
	}
	if tx == nil || tx.Status != models.StatusPending {
		t.Fatalf("transaction = %+v, want a pending record", tx)
	}
	if got := total(t, svc, account.ID); got != 0 {
		t.Errorf("total balance = %d, want 0", got)
	}

	// Reactivating a member makes the split applicable again.
	if _, err := svc.GrantMembership(ctx, account.ID, "alice", models.RoleAdmin); err != nil {
		t.Fatalf("GrantMembership failed: %v", err)
	}
	confirmed, err := svc.ConfirmTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("ConfirmTransaction failed: %v", err)
	}
	if confirmed.Status != models.StatusConfirmed {
		t.Errorf("status = %q, want confirmed", confirmed.Status)
	}
	if got := balance(t, svc, account.ID, "alice"); got != -4000 {
		t.Errorf("alice balance = %d, want -4000", got)
	}
}

func TestConfirmIsExactlyOnce(t *testing.T) {
	svc := newTestService(t)
	account := newTestAccount(t, svc, models.SplitEqual)
	ctx := context.Background()

	tx := deposit(t, svc, account.ID, "alice", 2500)

	// Re-confirming an already confirmed transaction must not re-apply.
	again, err := svc.ConfirmTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("ConfirmTransaction failed: %v", err)
	}
	if again.Status != models.StatusConfirmed {
		t.Errorf("status = %q, want confirmed", again.Status)
	}
	if got := balance(t, svc, account.ID, "alice"); got != 2500 {
		t.Errorf("alice balance = %d, want 2500 (applied once)", got)
	}
}

func TestPendingTransactionHasNoEffectUntilConfirmed(t *testing.T) {
	svc := newTestService(t)
	account := newTestAccount(t, svc, models.SplitEqual)
	ctx := context.Background()

	tx, err := svc.RecordTransaction(ctx, RecordTransactionInput{
		AccountID:   account.ID,
		Kind:        models.KindDeposit,
		AmountCents: 777,
		Description: "later",
		FromUserID:  "alice",
		Status:      models.StatusPending,
	})
	if err != nil {
		t.Fatalf("RecordTransaction failed: %v", err)
	}
	if got := balance(t, svc, account.ID, "alice"); got != 0 {
		t.Fatalf("alice balance = %d, want 0 while pending", got)
	}

	if _, err := svc.ConfirmTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("ConfirmTransaction failed: %v", err)
	}
	if got := balance(t, svc, account.ID, "alice"); got != 777 {
		t.Errorf("alice balance = %d, want 777", got)
	}
}

func TestTerminalStatusesAbsorb(t *testing.T) {
	svc := newTestService(t)
	account := newTestAccount(t, svc, models.SplitEqual)
	ctx := context.Background()

	tx, err := svc.RecordTransaction(ctx, RecordTransactionInput{
		AccountID:   account.ID,
		Kind:        models.KindDeposit,
		AmountCents: 100,
		Description: "never happens",
		FromUserID:  "alice",
		Status:      models.StatusPending,
	})
	if err != nil {
		t.Fatalf("RecordTransaction failed: %v", err)
	}

	if _, err := svc.CancelTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("CancelTransaction failed: %v", err)
	}
	if _, err := svc.ConfirmTransaction(ctx, tx.ID); !errors.Is(err, ErrTerminalStatus) {
		t.Fatalf("confirm after cancel error = %v, want ErrTerminalStatus", err)
	}
	if _, err := svc.FailTransaction(ctx, tx.ID); !errors.Is(err, ErrTerminalStatus) {
		t.Fatalf("fail after cancel error = %v, want ErrTerminalStatus", err)
	}
	if got := balance(t, svc, account.ID, "alice"); got != 0 {
		t.Errorf("alice balance = %d, want 0", got)
	}
}

func TestTransferWithMissingMembershipFailsAtomically(t *testing.T) {
	svc := newTestService(t)
	account := newTestAccount(t, svc, models.SplitEqual)
	ctx := context.Background()

	deposit(t, svc, account.ID, "alice", 10000)

	tx, err := svc.RecordTransaction(ctx, RecordTransactionInput{
		AccountID:   account.ID,
		Kind:        models.KindTransfer,
		AmountCents: 5000,
		Description: "to a stranger",
		FromUserID:  "alice",
		ToUserID:    "ghost",
	})
	if !errors.Is(err, ErrMissingMembership) {
		t.Fatalf("error = %v, want ErrMissingMembership", err)
	}
	if tx == nil || tx.Status != models.StatusFailed {
		t.Fatalf("transaction = %+v, want a failed record", tx)
	}
	// No partial application: the sender keeps the full amount.
	if got := balance(t, svc, account.ID, "alice"); got != 10000 {
		t.Errorf("alice balance = %d, want 10000", got)
	}
}

func TestDepositWithMissingMembershipFails(t *testing.T) {
	svc := newTestService(t)
	account := newTestAccount(t, svc, models.SplitEqual)
	ctx := context.Background()

	tx, err := svc.RecordTransaction(ctx, RecordTransactionInput{
		AccountID:   account.ID,
		Kind:        models.KindDeposit,
		AmountCents: 100,
		Description: "outsider deposit",
		FromUserID:  "ghost",
	})
	if !errors.Is(err, ErrMissingMembership) {
		t.Fatalf("error = %v, want ErrMissingMembership", err)
	}
	if tx == nil || tx.Status != models.StatusFailed {
		t.Fatalf("transaction = %+v, want a failed record", tx)
	}
	if got := total(t, svc, account.ID); got != 0 {
		t.Errorf("total balance = %d, want 0", got)
	}
}

func TestRevokedMemberExcludedFromSplit(t *testing.T) {
	svc := newTestService(t)
	account := newTestAccount(t, svc, models.SplitEqual, "bob", "carol")
	ctx := context.Background()

	if err := svc.RevokeMembership(ctx, account.ID, "carol"); err != nil {
		t.Fatalf("RevokeMembership failed: %v", err)
	}

	_, err := svc.RecordTransaction(ctx, RecordTransactionInput{
		AccountID:   account.ID,
		Kind:        models.KindExpense,
		AmountCents: 6000,
		Description: "dinner",
		FromUserID:  "alice",
	})
	if err != nil {
		t.Fatalf("RecordTransaction failed: %v", err)
	}

	if got := balance(t, svc, account.ID, "alice"); got != -3000 {
		t.Errorf("alice balance = %d, want -3000", got)
	}
	if got := balance(t, svc, account.ID, "bob"); got != -3000 {
		t.Errorf("bob balance = %d, want -3000", got)
	}
	if got := balance(t, svc, account.ID, "carol"); got != 0 {
		t.Errorf("carol balance = %d, want 0 (revoked)", got)
	}
}

func TestProportionalSplit(t *testing.T) {
	svc := newTestService(t)
	account := newTestAccount(t, svc, models.SplitProportional, "bob")
	ctx := context.Background()

	deposit(t, svc, account.ID, "alice", 10000)
	deposit(t, svc, account.ID, "bob", 10000)

	// Alice holds half the 20000 total, so everyone is charged
	// round(1000 * 10000/20000) = 500.
	_, err := svc.RecordTransaction(ctx, RecordTransactionInput{
		AccountID:   account.ID,
		Kind:        models.KindExpense,
		AmountCents: 1000,
		Description: "wine",
		FromUserID:  "alice",
	})
	if err != nil {
		t.Fatalf("RecordTransaction failed: %v", err)
	}

	if got := balance(t, svc, account.ID, "alice"); got != 9500 {
		t.Errorf("alice balance = %d, want 9500", got)
	}
	if got := balance(t, svc, account.ID, "bob"); got != 9500 {
		t.Errorf("bob balance = %d, want 9500", got)
	}
}

func TestRecordTransactionValidation(t *testing.T) {
	svc := newTestService(t)
	account := newTestAccount(t, svc, models.SplitEqual, "bob")

	valid := RecordTransactionInput{
		AccountID:   account.ID,
		Kind:        models.KindDeposit,
		AmountCents: 100,
		Description: "ok",
		FromUserID:  "alice",
	}

	tests := []struct {
		name   string
		mutate func(in *RecordTransactionInput)
	}{
		{"zero amount", func(in *RecordTransactionInput) { in.AmountCents = 0 }},
		{"negative amount", func(in *RecordTransactionInput) { in.AmountCents = -5 }},
		{"unknown kind", func(in *RecordTransactionInput) { in.Kind = "withdrawal" }},
		{"empty description", func(in *RecordTransactionInput) { in.Description = "  " }},
		{"missing from user", func(in *RecordTransactionInput) { in.FromUserID = "" }},
		{"transfer without to user", func(in *RecordTransactionInput) { in.Kind = models.KindTransfer }},
		{"unknown token", func(in *RecordTransactionInput) { in.Token = "BTC" }},
		{"terminal initial status", func(in *RecordTransactionInput) { in.Status = models.StatusFailed }},
		{"malformed settlement hash", func(in *RecordTransactionInput) { in.TxHash = "0x1234" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := svc.RecordTransaction(context.Background(), in)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
		})
	}

	// Rejected transactions are never persisted.
	txs, err := svc.RecentTransactions(context.Background(), account.ID, 10)
	if err != nil {
		t.Fatalf("RecentTransactions failed: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("persisted transactions = %d, want 0", len(txs))
	}
}

func TestDuplicateSettlementHashRejected(t *testing.T) {
	svc := newTestService(t)
	account := newTestAccount(t, svc, models.SplitEqual)
	ctx := context.Background()

	hash := "0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
	in := RecordTransactionInput{
		AccountID:   account.ID,
		Kind:        models.KindDeposit,
		AmountCents: 100,
		Description: "on-chain",
		FromUserID:  "alice",
		TxHash:      hash,
	}
	if _, err := svc.RecordTransaction(ctx, in); err != nil {
		t.Fatalf("first RecordTransaction failed: %v", err)
	}
	if _, err := svc.RecordTransaction(ctx, in); !errors.Is(err, ErrValidation) {
		t.Fatalf("duplicate hash error = %v, want ErrValidation", err)
	}
}

func TestRevokeLastAdminGuard(t *testing.T) {
	svc := newTestService(t)
	account := newTestAccount(t, svc, models.SplitEqual, "bob")
	ctx := context.Background()

	err := svc.RevokeMembership(ctx, account.ID, "alice")
	if !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("error = %v, want ErrLastAdmin", err)
	}

	// With bob gone, alice may leave too: no active membership remains.
	if err := svc.RevokeMembership(ctx, account.ID, "bob"); err != nil {
		t.Fatalf("RevokeMembership(bob) failed: %v", err)
	}
	if err := svc.RevokeMembership(ctx, account.ID, "alice"); err != nil {
		t.Fatalf("RevokeMembership(alice) failed: %v", err)
	}

	count, err := svc.ActiveMemberCount(ctx, account.ID)
	if err != nil {
		t.Fatalf("ActiveMemberCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("active members = %d, want 0", count)
	}
}

func TestGrantMembershipReactivatesRevoked(t *testing.T) {
	svc := newTestService(t)
	account := newTestAccount(t, svc, models.SplitEqual, "bob")
	ctx := context.Background()

	deposit(t, svc, account.ID, "bob", 4200)
	if err := svc.RevokeMembership(ctx, account.ID, "bob"); err != nil {
		t.Fatalf("RevokeMembership failed: %v", err)
	}

	m, err := svc.GrantMembership(ctx, account.ID, "bob", models.RoleMember)
	if err != nil {
		t.Fatalf("GrantMembership failed: %v", err)
	}
	if !m.Active() {
		t.Error("expected membership to be active again")
	}
	if got := balance(t, svc, account.ID, "bob"); got != 4200 {
		t.Errorf("bob balance = %d, want 4200 (balance survives revocation)", got)
	}

	if _, err := svc.GrantMembership(ctx, account.ID, "bob", models.RoleMember); !errors.Is(err, ErrValidation) {
		t.Fatalf("re-grant of active membership error = %v, want ErrValidation", err)
	}
}

func TestBalanceOfUnknownUserIsZero(t *testing.T) {
	svc := newTestService(t)
	account := newTestAccount(t, svc, models.SplitEqual)

	if got := balance(t, svc, account.ID, "nobody"); got != 0 {
		t.Errorf("balance = %d, want 0", got)
	}
}

func TestCreateAccountValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateAccount(ctx, CreateAccountInput{Name: "ab", CreatorUserID: "alice"}); !errors.Is(err, ErrValidation) {
		t.Errorf("short name error = %v, want ErrValidation", err)
	}
	if _, err := svc.CreateAccount(ctx, CreateAccountInput{Name: "Flat 12"}); !errors.Is(err, ErrValidation) {
		t.Errorf("missing creator error = %v, want ErrValidation", err)
	}
	if _, err := svc.CreateAccount(ctx, CreateAccountInput{Name: "Flat 12", CreatorUserID: "alice", SplitPolicy: "random"}); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown policy error = %v, want ErrValidation", err)
	}
}
