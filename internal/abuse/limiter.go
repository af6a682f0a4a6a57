package abuse

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limits configures the period/limit pair for one flood Kind, matching
// original_source's per-command int_flood_<kind>_{period,limit} config
// keys: at most Limit events per Period.
type Limits struct {
	Period time.Duration
	Limit  int
}

// Action describes what a flood check recommends the caller do.
type Action int

const (
	ActionNone Action = iota
	ActionWarn
	ActionDisconnect
	ActionTempBan
)

// ConnLimiter tracks per-connection, per-Kind flood buckets using token
// bucket limiters from golang.org/x/time/rate — one bucket per Kind,
// refilled continuously rather than the original's reset-on-period-roll
// counters, giving smoother admission under bursty legitimate traffic.
type ConnLimiter struct {
	mu       sync.Mutex
	buckets  [kindCount]*rate.Limiter
	configs  [kindCount]Limits
	warned   [kindCount]bool
}

// NewConnLimiter builds a limiter with the given per-kind configuration.
// Kinds left zero-valued in cfg get no limiting (unlimited burst).
func NewConnLimiter(cfg [kindCount]Limits) *ConnLimiter {
	cl := &ConnLimiter{configs: cfg}
	for k, c := range cfg {
		if c.Limit <= 0 || c.Period <= 0 {
			continue
		}
		every := c.Period / time.Duration(c.Limit)
		cl.buckets[k] = rate.NewLimiter(rate.Every(every), c.Limit)
	}
	return cl
}

// Allow records one event of the given kind and reports what the caller
// should do about it. The first violation after a fresh bucket returns
// ActionWarn; a further violation before the bucket admits an event again
// returns ActionDisconnect. Allow never returns ActionTempBan.
func (cl *ConnLimiter) Allow(k Kind) Action {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	b := cl.buckets[k]
	if b == nil {
		return ActionNone
	}
	if b.Allow() {
		cl.warned[k] = false
		return ActionNone
	}
	if !cl.warned[k] {
		cl.warned[k] = true
		return ActionWarn
	}
	return ActionDisconnect
}

// LockTransition reports a hub-wide flood bucket's locked-state change on
// a given Check call, if any.
type LockTransition int

const (
	NoTransition LockTransition = iota
	TransitionLocked
	TransitionUnlocked
)

// hubBucket tracks one hub-wide Kind's rolling event count and lock state,
// mirroring original_source's mProtoFloodAllCounts/Times/Locks: a bucket
// locks once its event count exceeds Limit within Period, and only
// unlocks once a full Period elapses with no further events.
type hubBucket struct {
	count  int
	start  time.Time
	locked bool
}

// HubLimiter tracks hub-wide flood buckets for the smaller set of kinds
// original_source rate-limits globally: Chat, Priv, MCTo, Search,
// RevConnectToMe.
type HubLimiter struct {
	mu      sync.Mutex
	configs map[Kind]Limits
	buckets map[Kind]*hubBucket
}

// NewHubLimiter builds a hub-wide limiter from per-kind configuration.
func NewHubLimiter(cfg map[Kind]Limits) *HubLimiter {
	return &HubLimiter{configs: cfg, buckets: make(map[Kind]*hubBucket)}
}

// Allow reports whether one more hub-wide event of kind k is admitted,
// discarding any lock-transition notification. Kept for callers that
// don't report flood state to operators; Check is preferred.
func (hl *HubLimiter) Allow(k Kind) bool {
	admitted, _ := hl.Check(k, time.Now())
	return admitted
}

// Check records one hub-wide event of kind k at now and reports whether
// it is admitted, plus any lock-state transition that just occurred. A
// bucket with no configured Limits always admits and never locks.
func (hl *HubLimiter) Check(k Kind, now time.Time) (admitted bool, transition LockTransition) {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	cfg, ok := hl.configs[k]
	if !ok || cfg.Limit <= 0 || cfg.Period <= 0 {
		return true, NoTransition
	}

	b := hl.buckets[k]
	if b == nil {
		b = &hubBucket{}
		hl.buckets[k] = b
	}

	if b.count == 0 {
		b.count = 1
		b.start = now
		return true, NoTransition
	}

	dif := now.Sub(b.start)
	if dif < 0 || dif > cfg.Period {
		b.count = 1
		b.start = now
		wasLocked := b.locked
		b.locked = false
		if wasLocked {
			return true, TransitionUnlocked
		}
		return true, NoTransition
	}

	b.count++
	if b.count > cfg.Limit {
		wasLocked := b.locked
		b.locked = true
		if !wasLocked {
			return false, TransitionLocked
		}
		return false, NoTransition
	}
	return true, NoTransition
}

// Locked reports whether kind k's hub-wide bucket is currently locked.
func (hl *HubLimiter) Locked(k Kind) bool {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	b := hl.buckets[k]
	return b != nil && b.locked
}
