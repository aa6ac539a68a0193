package service

import "errors"

// Error taxonomy for ledger operations. Every error is scoped to one call;
// none of them corrupts balances already applied by other transactions.
var (
	// ErrValidation marks malformed input: non-positive amount, unknown
	// kind, missing description, missing transfer counterpart, duplicate or
	// malformed settlement hash. The transaction is never persisted.
	ErrValidation = errors.New("validation failed")

	// ErrInapplicableSplit marks an expense confirmation attempted with zero
	// active participants. The transaction stays pending with no balance
	// effect; it can be confirmed later once the account has active members.
	ErrInapplicableSplit = errors.New("expense split inapplicable")

	// ErrMissingMembership marks a deposit or transfer confirmation that
	// references a user with no membership in the account. The transaction
	// transitions to failed and no delta is applied.
	ErrMissingMembership = errors.New("membership missing")

	// ErrTerminalStatus marks a status transition attempted on a failed or
	// cancelled transaction.
	ErrTerminalStatus = errors.New("transaction is in a terminal status")

	// ErrLastAdmin marks an attempt to revoke the last active admin of an
	// account that still has other active members.
	ErrLastAdmin = errors.New("account must keep at least one active admin")
)
