// Package ratelimit budgets MCP tool calls with one token bucket per tool.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrLimited is returned by Check when a tool has used up its budget.
var ErrLimited = errors.New("rate limit exceeded")

// Policy is the request budget of one tool: a sustained rate and the number
// of calls that may arrive back to back.
type Policy struct {
	PerMinute float64
	Burst     int
}

// DefaultPolicies are the budgets of the wfsim MCP tools. wfsim_estimate
// runs a simulation while the client waits and gets the smallest budget.
var DefaultPolicies = map[string]Policy{
	"wfsim_estimate":  {PerMinute: 6, Burst: 2},
	"wfsim_runs":      {PerMinute: 60, Burst: 10},
	"wfsim_diffusion": {PerMinute: 120, Burst: 20},
}

// Limiter enforces a Policy per tool. Tools without a policy are unlimited.
// It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	policies map[string]Policy
	buckets  map[string]*rate.Limiter
	now      func() time.Time
}

// New returns a Limiter enforcing policies. Every bucket starts full.
func New(policies map[string]Policy) *Limiter {
	p := make(map[string]Policy, len(policies))
	for tool, policy := range policies {
		p[tool] = policy
	}
	return &Limiter{
		policies: p,
		buckets:  make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

// NewDefault returns a Limiter enforcing DefaultPolicies.
func NewDefault() *Limiter {
	return New(DefaultPolicies)
}

// Check takes one token from tool's bucket. When none is available it
// returns an error wrapping ErrLimited, with the wait until the next token
// when the bucket refills at all.
func (l *Limiter) Check(tool string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	policy, ok := l.policies[tool]
	if !ok {
		return nil
	}
	b, ok := l.buckets[tool]
	if !ok {
		b = rate.NewLimiter(rate.Limit(policy.PerMinute/60), policy.Burst)
		l.buckets[tool] = b
	}

	now := l.now()
	r := b.ReserveN(now, 1)
	if !r.OK() {
		return fmt.Errorf("%w for %s", ErrLimited, tool)
	}
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	r.CancelAt(now)
	if delay == rate.InfDuration || policy.PerMinute <= 0 {
		return fmt.Errorf("%w for %s", ErrLimited, tool)
	}
	return fmt.Errorf("%w for %s, retry in %s", ErrLimited, tool, delay.Round(time.Second))
}

// Policy returns the budget configured for tool.
func (l *Limiter) Policy(tool string) (Policy, bool) {
	p, ok := l.policies[tool]
	return p, ok
}
