package lockout

import (
	"strings"
	"sync"
	"time"

	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/clock"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"go.uber.org/zap"
)

// Status reports the lockout state of one (identifier, origin) key.
type Status struct {
	IsLocked            bool
	LockedUntil         time.Time
	FailureCount        int
	ConsecutiveFailures int
}

// Guard throttles credential attempts per (identifier, origin address)
// key. State is held in process memory only: a restart clears all
// lockouts. The guard defends against brute-force bursts, not
// long-term ban lists.
type Guard struct {
	config *config.Config
	clock  clock.Clock
	logger *logging.Service

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	failureCount int
	consecutive  int
	offenses     int
	lockedUntil  time.Time
	lastFailure  time.Time
}

func NewGuard(cfg *config.Config, clk clock.Clock, logger *logging.Service) *Guard {
	g := &Guard{
		config:  cfg,
		clock:   clk,
		logger:  logger,
		entries: make(map[string]*entry),
	}

	go g.sweep()

	return g
}

func key(identifier, origin string) string {
	return strings.ToLower(identifier) + "|" + origin
}

// Check reports whether the key is currently locked. It never mutates
// state.
func (g *Guard) Check(identifier, origin string) Status {
	now := g.clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[key(identifier, origin)]
	if !ok {
		return Status{}
	}

	return Status{
		IsLocked:            now.Before(e.lockedUntil),
		LockedUntil:         e.lockedUntil,
		FailureCount:        e.failureCount,
		ConsecutiveFailures: e.consecutive,
	}
}

// RegisterFailure counts one failed attempt and locks the key once the
// consecutive-failure threshold is reached. The lock duration
// escalates with repeat offenses, doubling from the base up to the
// configured maximum.
func (g *Guard) RegisterFailure(identifier, origin string) Status {
	now := g.clock.Now()
	k := key(identifier, origin)

	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[k]
	if !ok {
		e = &entry{}
		g.entries[k] = e
	}

	// An expired lock window starts a fresh consecutive run; the
	// cumulative counter survives until a success.
	if !e.lockedUntil.IsZero() && !now.Before(e.lockedUntil) {
		e.consecutive = 0
		e.lockedUntil = time.Time{}
	}

	e.failureCount++
	e.consecutive++
	e.lastFailure = now

	if e.consecutive >= g.config.Lockout.Threshold && e.lockedUntil.IsZero() {
		e.offenses++
		e.lockedUntil = now.Add(g.lockDuration(e.offenses))

		g.logger.Warn("login key locked",
			zap.String("identifier", strings.ToLower(identifier)),
			zap.String("origin", origin),
			zap.Int("consecutive_failures", e.consecutive),
			zap.Int("offenses", e.offenses),
			zap.Time("locked_until", e.lockedUntil))
	}

	return Status{
		IsLocked:            now.Before(e.lockedUntil),
		LockedUntil:         e.lockedUntil,
		FailureCount:        e.failureCount,
		ConsecutiveFailures: e.consecutive,
	}
}

// RegisterSuccess clears all counters and any lock for the key.
func (g *Guard) RegisterSuccess(identifier, origin string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.entries, key(identifier, origin))
}

func (g *Guard) lockDuration(offenses int) time.Duration {
	d := g.config.Lockout.BaseDuration
	for i := 1; i < offenses; i++ {
		d *= 2
		if d >= g.config.Lockout.MaxDuration {
			return g.config.Lockout.MaxDuration
		}
	}
	if d > g.config.Lockout.MaxDuration {
		return g.config.Lockout.MaxDuration
	}
	return d
}

func (g *Guard) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := g.clock.Now()
		idle := 2 * g.config.Lockout.MaxDuration

		g.mu.Lock()
		for k, e := range g.entries {
			if now.Before(e.lockedUntil) {
				continue
			}
			if now.Sub(e.lastFailure) > idle {
				delete(g.entries, k)
			}
		}
		g.mu.Unlock()
	}
}
