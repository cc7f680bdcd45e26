package core

import "sync"

// DefaultRateLimit is the maximum number of mutating operations a single
// actor may commit within one round, per spec §4.4.
const DefaultRateLimit = 5

// RateLimiter is the process-wide, per-round mutation counter described in
// spec §3 ("Rate limiter") and §4.4 ("Rate limit"). A new round key resets
// every address's counter; only one round's counters are ever live,
// mirroring core/access_control.go's mutex-guarded in-memory accounting.
type RateLimiter struct {
	mu             sync.Mutex
	limit          int
	currentRound   string
	roundSeen      bool
	perAddrCount   map[string]int
}

// NewRateLimiter constructs a limiter enforcing at most `limit` mutating
// operations per (address, round). A limit <= 0 falls back to
// DefaultRateLimit.
func NewRateLimiter(limit int) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	return &RateLimiter{limit: limit, perAddrCount: make(map[string]int)}
}

// Enforce increments the counter for (owner, roundKey), resetting all
// counters first if roundKey differs from the stored round. Returns
// ErrRateLimitExceeded once the owner has already committed `limit`
// operations in this round.
func (rl *RateLimiter) Enforce(owner, roundKey string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.roundSeen || rl.currentRound != roundKey {
		rl.currentRound = roundKey
		rl.roundSeen = true
		rl.perAddrCount = make(map[string]int)
	}

	if rl.perAddrCount[owner] >= rl.limit {
		return newErr(ErrRateLimitExceeded, "actor %s exceeded %d operations in round %s", owner, rl.limit, roundKey)
	}
	rl.perAddrCount[owner]++
	return nil
}

// Counts returns a snapshot of the current round's per-address counters.
func (rl *RateLimiter) Counts() (round string, counts map[string]int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	out := make(map[string]int, len(rl.perAddrCount))
	for k, v := range rl.perAddrCount {
		out[k] = v
	}
	return rl.currentRound, out
}
