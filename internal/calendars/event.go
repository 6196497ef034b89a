package calendars

import (
	"time"

	"github.com/eyerest/eyerest_backend/internal/models"
)

// Event priorities
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Event is a normalized calendar entry as seen by the interruption engine,
// regardless of which provider produced it.
type Event struct {
	Title     string
	StartTime time.Time
	EndTime   time.Time
	Busy      bool
	Priority  string
}

// Covers reports whether t falls inside the event. Both bounds are
// inclusive: a candidate at the exact end of a meeting is still busy.
func (e Event) Covers(t time.Time) bool {
	return !t.Before(e.StartTime) && !t.After(e.EndTime)
}

// ShouldBlock evaluates the connection's interruption rule against this
// event. Transparent (non-busy) events never block.
func (e Event) ShouldBlock(rule string, t time.Time) bool {
	if !e.Busy {
		return false
	}
	switch rule {
	case models.RuleNever, models.RuleBetweenMeetings:
		// Both rules forbid interruptions inside any busy event; they differ
		// only in how gaps are treated, which the busy check handles.
		return true
	case models.RuleLowPriority:
		return e.Priority == PriorityHigh
	case models.RuleBeforeEnd:
		// The final five minutes of a meeting are fair game.
		return t.Before(e.EndTime.Add(-5 * time.Minute))
	default:
		return true
	}
}
