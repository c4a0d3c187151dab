package rules

// Reward percentages for the two referral levels. These are part of the
// payout contract and are not runtime-configurable.
const (
	Level1Percent int64 = 10
	Level2Percent int64 = 5
)

// PercentOf returns floor(amount * percent / 100) without overflowing
// int64, using floor(a*p/100) == (a/100)*p + ((a%100)*p)/100 which holds
// for nonnegative inputs. Negative amounts never reach reward math.
func PercentOf(amount, percent int64) int64 {
	if amount <= 0 || percent <= 0 {
		return 0
	}
	return (amount/100)*percent + (amount%100)*percent/100
}
