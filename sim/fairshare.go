package sim

// UsageTracker accumulates per-account core-seconds consumed by completed
// and running occupancy, feeding the fair-share priority factor. Accounts
// that have consumed less of the cluster score higher.
type UsageTracker struct {
	byAccount map[string]float64
	total     float64
}

// NewUsageTracker creates an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		byAccount: make(map[string]float64),
	}
}

// AddUsage charges core-seconds to an account.
func (u *UsageTracker) AddUsage(account string, coreSeconds float64) {
	if coreSeconds <= 0 {
		return
	}
	u.byAccount[account] += coreSeconds
	u.total += coreSeconds
}

// Usage returns the account's accumulated core-seconds.
func (u *UsageTracker) Usage(account string) float64 {
	return u.byAccount[account]
}

// Factor returns the fair-share factor in [0, 1]: 1 for an account with no
// recorded usage, decreasing toward 0 as its share of total usage grows.
func (u *UsageTracker) Factor(account string) float64 {
	if u.total == 0 {
		return 1.0
	}
	return 1.0 - u.byAccount[account]/u.total
}
