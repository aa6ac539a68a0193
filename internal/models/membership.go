package models

// Role is a member's role within an account.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"

	DefaultRole = RoleMember
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// MembershipState is the lifecycle state of a membership. Memberships are
// never deleted: revoking flips the state so historical transactions remain
// attributable.
type MembershipState string

const (
	MembershipActive  MembershipState = "active"
	MembershipRevoked MembershipState = "revoked"
)

// Membership binds one user to one account. At most one membership exists
// per (account, user) pair.
type Membership struct {
	// AccountID is the account this membership belongs to.
	AccountID string

	// UserID identifies the member. The user entity itself lives outside
	// this module.
	UserID string

	// Role is the member's role within the account.
	Role Role

	// BalanceCents is the member's running balance in minor units. Negative
	// means the member owes the group, positive means the group owes them.
	BalanceCents int64

	// State is Active while the member participates in splits; Revoked
	// memberships keep their balance but are excluded from new expenses.
	State MembershipState

	// JoinedAt is the Unix timestamp when the membership was granted.
	JoinedAt int64
}

// Active reports whether the membership participates in expense splits.
func (m *Membership) Active() bool {
	return m.State == MembershipActive
}
