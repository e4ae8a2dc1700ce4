package urgency

import (
	"context"
	"testing"
	"time"

	"gigline/internal/clock"
)

var base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func deadlineIn(d time.Duration) *time.Time {
	t := base.Add(d)
	return &t
}

func TestClassifyTiers(t *testing.T) {
	cases := []struct {
		name     string
		deadline *time.Time
		want     Tier
	}{
		{"no deadline", nil, TierNone},
		{"expired", deadlineIn(-time.Minute), TierExpired},
		{"exactly due", deadlineIn(0), TierExpired},
		{"under an hour", deadlineIn(59 * time.Minute), TierCritical},
		{"under six hours", deadlineIn(5 * time.Hour), TierWarning},
		{"days away", deadlineIn(72 * time.Hour), TierStable},
	}
	for _, tc := range cases {
		if got := Classify(base, tc.deadline); got.Tier != tc.want {
			t.Errorf("%s: tier = %s, want %s", tc.name, got.Tier, tc.want)
		}
	}
}

func TestTierMonotone(t *testing.T) {
	// Tiers only escalate as the deadline approaches.
	rank := map[Tier]int{TierStable: 0, TierWarning: 1, TierCritical: 2, TierExpired: 3}
	prev := -1
	for d := 48 * time.Hour; d >= -time.Hour; d -= 7 * time.Minute {
		c := Classify(base, deadlineIn(d))
		r, ok := rank[c.Tier]
		if !ok {
			t.Fatalf("unexpected tier %s at %v", c.Tier, d)
		}
		if r < prev {
			t.Fatalf("tier regressed to %s at %v", c.Tier, d)
		}
		prev = r
	}
}

func TestCountdownLabels(t *testing.T) {
	cases := []struct {
		name     string
		deadline *time.Time
		want     string
	}{
		{"no deadline", nil, "POSTED"},
		{"expired", deadlineIn(-time.Second), "EXPIRED"},
		{"days out", deadlineIn(2*24*time.Hour + 3*time.Hour + 4*time.Minute), "CLOSING IN 2D 3H 4M"},
		{"hours out", deadlineIn(5*time.Hour + 6*time.Minute + 7*time.Second), "05:06:07"},
		{"minutes out", deadlineIn(42*time.Minute + 9*time.Second), "42:09"},
		{"final minute", deadlineIn(59 * time.Second), "00:59"},
	}
	for _, tc := range cases {
		if got := Classify(base, tc.deadline); got.Label != tc.want {
			t.Errorf("%s: label = %q, want %q", tc.name, got.Label, tc.want)
		}
	}
}

func TestProgressAndSegments(t *testing.T) {
	cases := []struct {
		name     string
		deadline *time.Time
		percent  float64
		segments int
	}{
		{"no deadline", nil, 0, 0},
		{"expired", deadlineIn(-time.Hour), 0, 0},
		{"half window", deadlineIn(24 * time.Hour), 50, 5},
		{"full window", deadlineIn(48 * time.Hour), 100, 10},
		{"beyond window clamps", deadlineIn(96 * time.Hour), 100, 10},
		{"one decile", deadlineIn(4*time.Hour + 48*time.Minute), 10, 1},
	}
	for _, tc := range cases {
		got := Classify(base, tc.deadline)
		if got.ProgressPercent != tc.percent {
			t.Errorf("%s: progress = %v, want %v", tc.name, got.ProgressPercent, tc.percent)
		}
		if got.Segments() != tc.segments {
			t.Errorf("%s: segments = %d, want %d", tc.name, got.Segments(), tc.segments)
		}
	}
}

type staticSource struct {
	deadlines map[string]*time.Time
}

func (s staticSource) Deadlines(context.Context) (map[string]*time.Time, error) {
	return s.deadlines, nil
}

func TestWatcherTicksOncePerSecond(t *testing.T) {
	fake := clock.NewFake(base)
	ticks := make(chan Tick, 16)
	w := &Watcher{
		Clock:  fake,
		Source: staticSource{deadlines: map[string]*time.Time{"m1": deadlineIn(30 * time.Minute)}},
		Sink:   func(tick Tick) { ticks <- tick },
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	first := <-ticks
	if first.MissionID != "m1" || first.Tier != TierCritical {
		t.Fatalf("first tick = %+v", first)
	}
	if first.Label != "30:00" {
		t.Fatalf("first label = %q, want 30:00", first.Label)
	}

	fake.BlockUntil(1)
	fake.Advance(time.Second)
	second := <-ticks
	if second.Label != "29:59" {
		t.Fatalf("second label = %q, want 29:59", second.Label)
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("run returned %v, want context.Canceled", err)
	}
}
