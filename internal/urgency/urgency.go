// Package urgency classifies time remaining to a deadline. Classification is
// a pure function of (now, deadline); nothing here writes mission state.
package urgency

import (
	"fmt"
	"time"
)

// Tier is the closed urgency classification.
type Tier string

const (
	TierNone     Tier = "none"
	TierStable   Tier = "stable"
	TierWarning  Tier = "warning"
	TierCritical Tier = "critical"
	TierExpired  Tier = "expired"
)

const (
	criticalWindow = time.Hour
	warningWindow  = 6 * time.Hour
	// Full span of the vitality indicator: a deadline 48h out (or further)
	// shows 100%.
	progressWindow = 48 * time.Hour

	segmentCount = 10

	postedLabel = "POSTED"
)

// Classification is a snapshot of a deadline's urgency.
type Classification struct {
	Tier            Tier    `json:"tier"`
	Label           string  `json:"label"`
	ProgressPercent float64 `json:"progress_percent"`
}

// Segments returns how many of the 10 vitality segments are lit: segment i
// lights once the progress crosses its decile threshold.
func (c Classification) Segments() int {
	lit := int(c.ProgressPercent) / (100 / segmentCount)
	if lit > segmentCount {
		lit = segmentCount
	}
	return lit
}

// Classify maps the remaining time to a tier, countdown label and progress.
// A nil deadline yields TierNone with the static posted indicator.
func Classify(now time.Time, deadline *time.Time) Classification {
	if deadline == nil {
		return Classification{Tier: TierNone, Label: postedLabel, ProgressPercent: 0}
	}
	diff := deadline.Sub(now)
	c := Classification{
		Label:           countdownLabel(diff),
		ProgressPercent: progress(diff),
	}
	switch {
	case diff <= 0:
		c.Tier = TierExpired
	case diff < criticalWindow:
		c.Tier = TierCritical
	case diff < warningWindow:
		c.Tier = TierWarning
	default:
		c.Tier = TierStable
	}
	return c
}

func countdownLabel(diff time.Duration) string {
	if diff <= 0 {
		return "EXPIRED"
	}
	days := int(diff / (24 * time.Hour))
	hours := int(diff/time.Hour) % 24
	minutes := int(diff/time.Minute) % 60
	seconds := int(diff/time.Second) % 60
	if days >= 1 {
		return fmt.Sprintf("CLOSING IN %dD %dH %dM", days, hours, minutes)
	}
	if hours != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

func progress(diff time.Duration) float64 {
	p := float64(diff) / float64(progressWindow) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
