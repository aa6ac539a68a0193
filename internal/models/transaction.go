package models

import "regexp"

// TransactionKind is the kind of money movement a transaction records.
type TransactionKind string

const (
	// KindDeposit credits the source user's balance with the amount.
	KindDeposit TransactionKind = "deposit"

	// KindExpense distributes the amount over the account's active members
	// according to the account's split policy.
	KindExpense TransactionKind = "expense"

	// KindTransfer moves the amount from the source member's balance to the
	// destination member's balance.
	KindTransfer TransactionKind = "transfer"
)

// Valid reports whether k is a known transaction kind.
func (k TransactionKind) Valid() bool {
	switch k {
	case KindDeposit, KindExpense, KindTransfer:
		return true
	}
	return false
}

// TransactionStatus is the lifecycle state of a transaction.
//
// Pending may transition to Confirmed, Failed or Cancelled; those three are
// terminal. Balance effects are applied exactly once, on the edge into
// Confirmed.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusConfirmed TransactionStatus = "confirmed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s TransactionStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed || s == StatusCancelled
}

// txHashPattern matches a settlement hash: 0x followed by 64 hex digits.
var txHashPattern = regexp.MustCompile(`\A0x[a-fA-F0-9]{64}\z`)

// ValidTxHash reports whether h is a well-formed settlement hash.
func ValidTxHash(h string) bool {
	return txHashPattern.MatchString(h)
}

// Transaction is an append-only record of a money movement within an
// account. Once created only the status changes; confirmed, failed and
// cancelled records never change again.
type Transaction struct {
	// ID is the unique identifier for the transaction (UUID format).
	ID string

	// AccountID is the account the movement belongs to.
	AccountID string

	// FromUserID is the user who initiated the movement: the depositor, the
	// expense payer, or the transfer sender.
	FromUserID string

	// ToUserID is the transfer recipient. Required iff Kind is KindTransfer.
	ToUserID string

	// AmountCents is the strictly positive amount in minor units.
	AmountCents int64

	// Kind is the movement kind.
	Kind TransactionKind

	// Token tags the amount's denomination.
	Token Token

	// Status is the lifecycle state. New transactions default to
	// StatusConfirmed (auto-settlement) unless the caller asks for
	// StatusPending.
	Status TransactionStatus

	// Description is required free text shown in activity feeds.
	Description string

	// TxHash is an optional external settlement reference (0x + 64 hex).
	// Unique across all transactions when present.
	TxHash string

	// CreatedAt is the Unix timestamp when the transaction was recorded.
	CreatedAt int64
}
