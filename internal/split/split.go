// Package split computes per-member shares of an expense. It is pure: it
// never touches storage and never mutates its inputs.
package split

import (
	"errors"
	"math"

	"github.com/mvisser/groupledger/internal/models"
)

// ErrNoParticipants is returned when an expense has no active members to
// split over. The caller decides what happens to the transaction; dividing
// by zero must never happen here.
var ErrNoParticipants = errors.New("no active participants to split over")

// ComputeShares returns how many minor units each participant is charged for
// an expense of amountCents under the given policy.
//
// participants must be the account's active memberships at the moment of
// confirmation, not at recording time. totalBalanceCents is the account's
// total balance across all memberships (including revoked ones); it is only
// consulted by the proportional policy.
//
// Share rules:
//   - equal: amountCents / len(participants), integer division. The
//     truncation remainder is not redistributed, so the sum of shares may be
//     up to len(participants)-1 cents short of amountCents.
//   - proportional: one per-member amount derived from the payer's share of
//     the account total, rounded to the nearest cent, charged to every
//     participant. Falls back to equal when totalBalanceCents <= 0.
//   - manual, percentage: no distribution is defined at this layer; the full
//     amount is charged to the payer.
func ComputeShares(amountCents int64, policy models.SplitPolicy, participants []models.Membership, payerID string, totalBalanceCents int64) (map[string]int64, error) {
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}

	shares := make(map[string]int64, len(participants))

	switch policy {
	case models.SplitEqual:
		per := amountCents / int64(len(participants))
		for _, p := range participants {
			shares[p.UserID] = per
		}
	case models.SplitProportional:
		if totalBalanceCents <= 0 {
			per := amountCents / int64(len(participants))
			for _, p := range participants {
				shares[p.UserID] = per
			}
			return shares, nil
		}
		var payerBalance int64
		for _, p := range participants {
			if p.UserID == payerID {
				payerBalance = p.BalanceCents
				break
			}
		}
		per := int64(math.Round(float64(amountCents) * float64(payerBalance) / float64(totalBalanceCents)))
		for _, p := range participants {
			shares[p.UserID] = per
		}
	default:
		// manual / percentage: pass-through to the payer.
		shares[payerID] = amountCents
	}

	return shares, nil
}
