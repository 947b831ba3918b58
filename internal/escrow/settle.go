package escrow

// feeDenominator converts basis points to a fraction.
const feeDenominator = 10_000

// Settlement is the payout breakdown for a completed task. All
// arithmetic is integer base units with truncating division, so the
// burn fee rounds down and the helper keeps the remainder.
type Settlement struct {
	// BurnFee is removed from circulation: reward * feeBps / 10000.
	BurnFee uint64
	// HelperNet is the reward net of the burn fee.
	HelperNet uint64
	// HelperPayout is the single transfer issued to the helper:
	// net reward plus the returned collateral.
	HelperPayout uint64
}

// ComputeSettlement derives the completion payout for a task with the
// given reward, collateral hold, and fee rate.
func ComputeSettlement(reward, collateral, feeBps uint64) Settlement {
	burnFee := reward * feeBps / feeDenominator
	net := reward - burnFee
	return Settlement{
		BurnFee:      burnFee,
		HelperNet:    net,
		HelperPayout: net + collateral,
	}
}

// ComputeForfeiture splits a forfeited hold between the beneficiary and
// the burn: the same fee rate applies to the forfeited amount as to a
// settled reward.
func ComputeForfeiture(hold, feeBps uint64) (net, burnFee uint64) {
	burnFee = hold * feeBps / feeDenominator
	return hold - burnFee, burnFee
}
