package ratelimit

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock returns a Limiter over policies whose clock the test advances.
func fakeClock(policies map[string]Policy) (*Limiter, func(time.Duration)) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(policies)
	l.now = func() time.Time { return now }
	return l, func(d time.Duration) { now = now.Add(d) }
}

func TestCheck_Burst(t *testing.T) {
	l, _ := fakeClock(map[string]Policy{"tool": {PerMinute: 60, Burst: 3}})

	for i := 0; i < 3; i++ {
		if err := l.Check("tool"); err != nil {
			t.Fatalf("call %d: unexpected error %v", i+1, err)
		}
	}
	err := l.Check("tool")
	if !errors.Is(err, ErrLimited) {
		t.Fatalf("call 4 error = %v, want ErrLimited", err)
	}
	if !strings.Contains(err.Error(), "retry in 1s") {
		t.Errorf("error = %q, want a retry hint", err)
	}
}

func TestCheck_Refill(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		used    int
		advance time.Duration
		allowed int
	}{
		{"one token after a second", Policy{PerMinute: 60, Burst: 2}, 2, time.Second, 1},
		{"half a token is not enough", Policy{PerMinute: 60, Burst: 2}, 2, 500 * time.Millisecond, 0},
		{"refill capped at burst", Policy{PerMinute: 600, Burst: 3}, 3, time.Hour, 3},
		{"partial use keeps the rest", Policy{PerMinute: 6, Burst: 5}, 3, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, advance := fakeClock(map[string]Policy{"tool": tt.policy})
			for i := 0; i < tt.used; i++ {
				if err := l.Check("tool"); err != nil {
					t.Fatalf("setup call %d: %v", i+1, err)
				}
			}
			advance(tt.advance)

			got := 0
			for l.Check("tool") == nil {
				got++
				if got > tt.policy.Burst {
					t.Fatal("more calls allowed than the burst")
				}
			}
			if got != tt.allowed {
				t.Errorf("allowed %d calls, want %d", got, tt.allowed)
			}
		})
	}
}

func TestCheck_RejectedCallsDoNotBorrow(t *testing.T) {
	l, advance := fakeClock(map[string]Policy{"tool": {PerMinute: 60, Burst: 1}})

	l.Check("tool")
	for i := 0; i < 5; i++ {
		if l.Check("tool") == nil {
			t.Fatal("expected rejection")
		}
	}
	advance(time.Second)
	if err := l.Check("tool"); err != nil {
		t.Errorf("rejected calls consumed future tokens: %v", err)
	}
}

func TestCheck_ZeroRate(t *testing.T) {
	l, advance := fakeClock(map[string]Policy{"tool": {PerMinute: 0, Burst: 2}})

	l.Check("tool")
	l.Check("tool")
	advance(24 * time.Hour)

	err := l.Check("tool")
	if !errors.Is(err, ErrLimited) {
		t.Fatalf("error = %v, want ErrLimited", err)
	}
	if strings.Contains(err.Error(), "retry") {
		t.Errorf("a bucket that never refills should not suggest a retry: %q", err)
	}
}

func TestCheck_ToolsAreIndependent(t *testing.T) {
	l, _ := fakeClock(map[string]Policy{
		"slow": {PerMinute: 1, Burst: 1},
		"fast": {PerMinute: 60, Burst: 1},
	})

	l.Check("slow")
	if l.Check("slow") == nil {
		t.Error("slow should be exhausted")
	}
	if err := l.Check("fast"); err != nil {
		t.Errorf("fast should have its own bucket: %v", err)
	}
	for i := 0; i < 100; i++ {
		if err := l.Check("unlisted"); err != nil {
			t.Fatalf("tool without a policy was limited: %v", err)
		}
	}
}

func TestCheck_Concurrent(t *testing.T) {
	l, _ := fakeClock(map[string]Policy{"tool": {PerMinute: 60, Burst: 50}})

	var wg sync.WaitGroup
	var allowed atomic.Int32
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check("tool") == nil {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 50 {
		t.Errorf("allowed %d calls with a frozen clock, want exactly the burst of 50", got)
	}
}

func TestDefaultPolicies(t *testing.T) {
	l := NewDefault()

	tests := []struct {
		tool      string
		perMinute float64
		burst     int
	}{
		{"wfsim_estimate", 6, 2},
		{"wfsim_runs", 60, 10},
		{"wfsim_diffusion", 120, 20},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			p, ok := l.Policy(tt.tool)
			if !ok {
				t.Fatalf("no policy for %s", tt.tool)
			}
			if p.PerMinute != tt.perMinute || p.Burst != tt.burst {
				t.Errorf("policy = %+v, want %g/min burst %d", p, tt.perMinute, tt.burst)
			}
		})
	}

	if _, ok := l.Policy("wfsim_other"); ok {
		t.Error("unexpected policy for an unknown tool")
	}
}

func TestNew_CopiesPolicies(t *testing.T) {
	policies := map[string]Policy{"tool": {PerMinute: 60, Burst: 1}}
	l := New(policies)
	policies["tool"] = Policy{PerMinute: 60, Burst: 100}

	if p, _ := l.Policy("tool"); p.Burst != 1 {
		t.Errorf("Burst = %d, want 1; New must copy its input", p.Burst)
	}
}
