package calendars

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/eyerest/eyerest_backend/internal/models"
)

// EventSource fetches events for a time range from one calendar backend.
type EventSource interface {
	Events(ctx context.Context, from, to time.Time) ([]Event, error)
}

// BusyStatus is the result of checking one connection around a candidate time.
type BusyStatus struct {
	Busy           bool
	BlockingEvents []Event
	NextFreeSlot   *time.Time
}

// busyWindow brackets the candidate instant: a quarter hour back, three
// quarters forward.
const (
	windowBefore = 15 * time.Minute
	windowAfter  = 45 * time.Minute
)

// CheckBusy determines whether the connection's calendar blocks an
// interruption at the candidate time. Source failures degrade to "not busy"
// so a broken calendar never silences break reminders.
func CheckBusy(ctx context.Context, src EventSource, conn *models.UserCalendarConnection, candidate time.Time) BusyStatus {
	from := candidate.Add(-windowBefore)
	to := candidate.Add(windowAfter)

	events, err := src.Events(ctx, from, to)
	if err != nil {
		slog.Warn("calendar source failed, allowing interruption",
			"connection_id", conn.ID, "error", err)
		return BusyStatus{}
	}

	var blocking []Event
	for _, ev := range events {
		if ev.ShouldBlock(conn.InterruptionRule, candidate) && ev.Covers(candidate) {
			blocking = append(blocking, ev)
		}
	}

	status := BusyStatus{Busy: len(blocking) > 0, BlockingEvents: blocking}
	if status.Busy {
		if slot := nextFreeSlot(events, conn, candidate, to); slot != nil {
			status.NextFreeSlot = slot
		}
	}
	return status
}

// nextFreeSlot scans blocking events in start order and returns the first
// instant at or after the candidate not covered by any of them, padded by the
// connection's minimum meeting gap. Nil when the whole window is blocked.
func nextFreeSlot(events []Event, conn *models.UserCalendarConnection, candidate, windowEnd time.Time) *time.Time {
	gap := time.Duration(conn.MinimumMeetingGapMinutes) * time.Minute

	blocking := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.Busy && ev.ShouldBlock(conn.InterruptionRule, ev.StartTime) {
			blocking = append(blocking, ev)
		}
	}
	sort.Slice(blocking, func(i, j int) bool {
		return blocking[i].StartTime.Before(blocking[j].StartTime)
	})

	cursor := candidate
	for _, ev := range blocking {
		if ev.StartTime.After(cursor.Add(gap)) {
			// Found a gap wide enough before this event.
			return &cursor
		}
		if end := ev.EndTime.Add(gap); end.After(cursor) {
			cursor = end
		}
	}
	if cursor.After(windowEnd) {
		return nil
	}
	return &cursor
}
