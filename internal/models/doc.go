// Package models defines the core domain models for the group ledger.
//
// # Models
//
//   - Account: a named group of people sharing expenses
//   - Membership: binds one user to one account and carries that user's
//     running balance within the account
//   - Transaction: an append-only record of a money movement (deposit,
//     expense or transfer) with a status lifecycle
//
// Users are referenced by id only; their lifecycle (registration, login,
// profile) lives outside this module. A membership's balance remains valid
// even after the referenced user is removed from the account, so historical
// transactions stay attributable.
//
// # Money
//
// All amounts are int64 counts of minor currency units (cents), tagged with a
// Token. Arithmetic never leaves minor units; conversion to and from decimal
// strings happens only at the boundary (API input parsing, display).
package models
