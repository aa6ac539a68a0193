package models

// SplitPolicy determines how an expense is distributed among the active
// members of an account.
type SplitPolicy string

const (
	// SplitEqual divides the amount by the active member count using integer
	// division. The truncation remainder is not redistributed, so the total
	// deducted may fall short of the expense amount by up to count-1 cents.
	SplitEqual SplitPolicy = "equal"

	// SplitProportional derives a per-member amount from the payer's share of
	// the account's total balance. Falls back to SplitEqual when the total
	// balance is not positive.
	SplitProportional SplitPolicy = "proportional"

	// SplitManual and SplitPercentage are accepted as account configuration
	// but have no distribution algorithm at this layer: the full amount is
	// charged to the payer. A richer allocation must come as explicit
	// per-transaction input from the caller.
	SplitManual     SplitPolicy = "manual"
	SplitPercentage SplitPolicy = "percentage"

	DefaultSplitPolicy = SplitEqual
)

// Valid reports whether p is a known split policy.
func (p SplitPolicy) Valid() bool {
	switch p {
	case SplitEqual, SplitProportional, SplitManual, SplitPercentage:
		return true
	}
	return false
}

// AccountSettings is the immutable configuration attached to an account at
// creation time.
type AccountSettings struct {
	// AutoConvert enables automatic conversion of incoming deposits to the
	// account's token. Default: true.
	AutoConvert bool

	// Notifications enables member notifications for account activity.
	// Default: true.
	Notifications bool

	// MinDepositCents is the advisory minimum deposit in minor units.
	// Default: 1000 (10.00). Not enforced by transaction validation.
	MinDepositCents int64
}

// DefaultAccountSettings returns the settings applied when an account is
// created without explicit configuration.
func DefaultAccountSettings() AccountSettings {
	return AccountSettings{
		AutoConvert:     true,
		Notifications:   true,
		MinDepositCents: 1000,
	}
}

// Account represents a named group whose members share expenses.
type Account struct {
	// ID is the unique identifier for the account (UUID format).
	ID string

	// Name is the display name of the account (e.g. "Flat 12", "Ski Trip").
	Name string

	// Description is optional free text.
	Description string

	// SplitPolicy determines how expenses are distributed among active
	// members.
	SplitPolicy SplitPolicy

	// Settings is the configuration fixed at creation time.
	Settings AccountSettings

	// WalletAddress is an optional on-chain address associated with the
	// account. It is stored for reconciliation only; nothing here executes
	// against a chain.
	WalletAddress string

	// CreatedAt is the Unix timestamp when the account was created.
	CreatedAt int64
}
