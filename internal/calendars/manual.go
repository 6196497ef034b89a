package calendars

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/models"
)

// ManualSource serves busy periods from user-entered weekly schedule blocks,
// for users who do not want to grant calendar access.
type ManualSource struct {
	db       *gorm.DB
	conn     *models.UserCalendarConnection
	location *time.Location
}

func NewManualSource(db *gorm.DB, conn *models.UserCalendarConnection, tz string) *ManualSource {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		loc = time.UTC
	}
	return &ManualSource{db: db, conn: conn, location: loc}
}

func (m *ManualSource) Events(ctx context.Context, from, to time.Time) ([]Event, error) {
	var blocks []models.ManualBusyBlock
	if err := m.db.WithContext(ctx).
		Where("connection_id_ref = ?", m.conn.ID).
		Find(&blocks).Error; err != nil {
		return nil, fmt.Errorf("manual busy blocks: %w", err)
	}

	var events []Event
	// Expand weekly blocks over each local day the window touches. Truncate
	// works in absolute time, so local midnight has to be built by hand.
	lf := from.In(m.location)
	first := time.Date(lf.Year(), lf.Month(), lf.Day(), 0, 0, 0, 0, m.location)
	for day := first; !day.After(to.In(m.location)); day = day.AddDate(0, 0, 1) {
		weekday := int(day.Weekday())
		for _, b := range blocks {
			if b.Weekday != weekday {
				continue
			}
			start, ok1 := onDay(day, b.StartTime, m.location)
			end, ok2 := onDay(day, b.EndTime, m.location)
			if !ok1 || !ok2 || !end.After(start) {
				continue
			}
			if end.Before(from) || start.After(to) {
				continue
			}
			title := b.Title
			if title == "" {
				title = "Busy"
			}
			events = append(events, Event{
				Title:     title,
				StartTime: start,
				EndTime:   end,
				Busy:      true,
				Priority:  PriorityNormal,
			})
		}
	}
	return events, nil
}

// onDay combines a date with a "15:04" wall-clock string in loc.
func onDay(day time.Time, clock string, loc *time.Location) (time.Time, bool) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), true
}
