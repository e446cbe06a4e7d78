package server

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// LimitReason describes why a connection was rejected.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

const limiterCleanupInterval = 5 * time.Minute

// ConnectionLimits guards the WebSocket endpoint with three stacked limits: a
// global concurrent connection cap, a per-IP concurrent cap, and a per-IP
// token bucket on connection attempts.
type ConnectionLimits struct {
	globalCurrent atomic.Int64
	globalMax     int64

	ipMu  sync.Mutex
	perIP map[string]int
	ipMax int

	rateMu    sync.Mutex
	buckets   map[string]*bucketEntry
	rateLimit rate.Limit
	burst     int
	cleanupAt time.Time
}

type bucketEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewConnectionLimits(globalMax int64, perIPMax int, connectionsPerSecond float64, burst int) *ConnectionLimits {
	return &ConnectionLimits{
		globalMax: globalMax,
		perIP:     make(map[string]int),
		ipMax:     perIPMax,
		buckets:   make(map[string]*bucketEntry),
		rateLimit: rate.Limit(connectionsPerSecond),
		burst:     burst,
		cleanupAt: time.Now().Add(limiterCleanupInterval),
	}
}

// Acquire claims a connection slot for the given IP. On rejection the reason
// names the limit that fired; nothing is held.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	if !l.allowRate(ip) {
		return false, LimitReasonRate
	}

	if !l.acquireGlobal() {
		return false, LimitReasonGlobal
	}

	if !l.acquirePerIP(ip) {
		l.globalCurrent.Add(-1)
		return false, LimitReasonPerIP
	}

	return true, ""
}

// Release returns the slots claimed by a successful Acquire.
func (l *ConnectionLimits) Release(ip string) {
	l.ipMu.Lock()
	if count := l.perIP[ip]; count > 0 {
		if count == 1 {
			delete(l.perIP, ip)
		} else {
			l.perIP[ip] = count - 1
		}
	}
	l.ipMu.Unlock()

	l.globalCurrent.Add(-1)
}

// Current returns the number of held connection slots.
func (l *ConnectionLimits) Current() int64 {
	return l.globalCurrent.Load()
}

func (l *ConnectionLimits) acquireGlobal() bool {
	for {
		current := l.globalCurrent.Load()
		if current >= l.globalMax {
			return false
		}
		if l.globalCurrent.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *ConnectionLimits) acquirePerIP(ip string) bool {
	l.ipMu.Lock()
	defer l.ipMu.Unlock()

	if l.perIP[ip] >= l.ipMax {
		return false
	}
	l.perIP[ip]++
	return true
}

func (l *ConnectionLimits) allowRate(ip string) bool {
	l.rateMu.Lock()
	defer l.rateMu.Unlock()

	now := time.Now()
	if now.After(l.cleanupAt) {
		l.cleanupBuckets(now)
		l.cleanupAt = now.Add(limiterCleanupInterval)
	}

	entry, exists := l.buckets[ip]
	if !exists {
		entry = &bucketEntry{limiter: rate.NewLimiter(l.rateLimit, l.burst)}
		l.buckets[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.Allow()
}

// cleanupBuckets drops token buckets idle for two cleanup intervals.
// Must be called with rateMu held.
func (l *ConnectionLimits) cleanupBuckets(now time.Time) {
	cutoff := now.Add(-2 * limiterCleanupInterval)
	for ip, entry := range l.buckets {
		if entry.lastSeen.Before(cutoff) {
			delete(l.buckets, ip)
		}
	}
}
