// Package allowance computes the tiered peanut allowance for a user from
// their NFT holdings and the amount they already sent this cycle.
package allowance

import (
	"fmt"
	"strconv"
)

// MintSentinel is the remaining-allowance display for locked-out
// non-holders. The rendering layer branches its visual treatment on exactly
// this string, so it is part of the contract, not cosmetics.
const MintSentinel = "mint your allowance"

const ogUnitAllowance = 150

// User tiers derived from the new-collection holding count.
const (
	TierNoobie  = "Noobie"
	TierMember  = "Member"
	TierRegular = "Regular"
	TierActive  = "Active"
)

// Result is the outcome of a single allowance computation.
type Result struct {
	// MaxAllowance is the computed cap. Forced to zero for locked-out
	// non-holders regardless of their theoretical allowance.
	MaxAllowance int
	// Remaining is either "max / left" or MintSentinel.
	Remaining string
	// Overage is the amount sent beyond the cap, empty when none.
	Overage string
	// Excess is the numeric overage, the input to the cumulative ledger.
	Excess int
	// Tier is the display classification for the new collection.
	Tier string
}

// Compute is pure and total over ogCount, newCount, sentCount >= 0.
func Compute(ogCount, newCount, sentCount int, allowNonHolders bool) Result {
	ogAllowance := ogCount * ogUnitAllowance
	newAllowance := newTierAllowance(newCount)
	nonHolderAllowance := 0
	if ogCount == 0 && newCount == 0 && allowNonHolders {
		nonHolderAllowance = 30
	}
	maxAllowance := ogAllowance + newAllowance + nonHolderAllowance

	res := Result{Tier: TierName(newCount)}

	holder := ogCount > 0 || newCount > 0
	if !holder && !allowNonHolders {
		// Lockout: the cap collapses to zero, everything sent is overage.
		maxAllowance = 0
		res.MaxAllowance = 0
		res.Remaining = MintSentinel
		res.Excess = excessOver(sentCount, maxAllowance)
		res.Overage = overageDisplay(res.Excess)
		return res
	}

	res.MaxAllowance = maxAllowance
	left := maxAllowance - sentCount
	if left < 0 {
		left = 0
	}
	res.Remaining = fmt.Sprintf("%d / %d", maxAllowance, left)
	res.Excess = excessOver(sentCount, maxAllowance)
	res.Overage = overageDisplay(res.Excess)
	return res
}

// TierName maps a new-collection holding count to its display tier.
func TierName(newCount int) string {
	switch {
	case newCount >= 3:
		return TierActive
	case newCount == 2:
		return TierRegular
	case newCount == 1:
		return TierMember
	default:
		return TierNoobie
	}
}

func newTierAllowance(newCount int) int {
	switch {
	case newCount >= 3:
		return 60
	case newCount == 2:
		return 45
	case newCount == 1:
		return 30
	default:
		return 0
	}
}

func excessOver(sent, max int) int {
	if sent > max {
		return sent - max
	}
	return 0
}

func overageDisplay(excess int) string {
	if excess > 0 {
		return strconv.Itoa(excess)
	}
	return ""
}
