package calendars

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eyerest/eyerest_backend/internal/models"
)

// Monday, fixed reference point for every test in this file.
var monday10 = time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.CalendarProvider{},
		&models.UserCalendarConnection{},
		&models.ManualBusyBlock{},
		&models.SmartInterruptionLog{},
	))
	return db
}

type stubSource struct {
	events []Event
	err    error
}

func (s stubSource) Events(ctx context.Context, from, to time.Time) ([]Event, error) {
	return s.events, s.err
}

func meeting(start, end time.Time, priority string) Event {
	return Event{Title: "Meeting", StartTime: start, EndTime: end, Busy: true, Priority: priority}
}

func TestEventCovers_InclusiveBounds(t *testing.T) {
	ev := meeting(monday10, monday10.Add(30*time.Minute), PriorityNormal)

	assert.True(t, ev.Covers(monday10))
	assert.True(t, ev.Covers(monday10.Add(29*time.Minute)))
	assert.True(t, ev.Covers(monday10.Add(30*time.Minute)), "candidate at the exact end is still busy")
	assert.False(t, ev.Covers(monday10.Add(30*time.Minute+time.Second)))
	assert.False(t, ev.Covers(monday10.Add(-time.Second)))
}

func TestShouldBlock_TransparentEventsNeverBlock(t *testing.T) {
	ev := meeting(monday10, monday10.Add(time.Hour), PriorityHigh)
	ev.Busy = false

	for _, rule := range []string{models.RuleNever, models.RuleLowPriority, models.RuleBeforeEnd, models.RuleBetweenMeetings} {
		assert.False(t, ev.ShouldBlock(rule, monday10), "rule %s", rule)
	}
}

func TestShouldBlock_NeverAndBetweenMeetings(t *testing.T) {
	ev := meeting(monday10, monday10.Add(time.Hour), PriorityLow)

	assert.True(t, ev.ShouldBlock(models.RuleNever, monday10.Add(5*time.Minute)))
	assert.True(t, ev.ShouldBlock(models.RuleBetweenMeetings, monday10.Add(5*time.Minute)))
}

func TestShouldBlock_LowPriorityRule(t *testing.T) {
	low := meeting(monday10, monday10.Add(time.Hour), PriorityLow)
	normal := meeting(monday10, monday10.Add(time.Hour), PriorityNormal)
	high := meeting(monday10, monday10.Add(time.Hour), PriorityHigh)

	assert.False(t, low.ShouldBlock(models.RuleLowPriority, monday10))
	assert.False(t, normal.ShouldBlock(models.RuleLowPriority, monday10))
	assert.True(t, high.ShouldBlock(models.RuleLowPriority, monday10))
}

func TestShouldBlock_BeforeEndFreesFinalMinutes(t *testing.T) {
	ev := meeting(monday10, monday10.Add(30*time.Minute), PriorityNormal)

	assert.True(t, ev.ShouldBlock(models.RuleBeforeEnd, monday10.Add(10*time.Minute)))
	// 10:25 onward is inside the final five minutes.
	assert.False(t, ev.ShouldBlock(models.RuleBeforeEnd, monday10.Add(25*time.Minute)))
	assert.False(t, ev.ShouldBlock(models.RuleBeforeEnd, monday10.Add(29*time.Minute)))
}

func TestCheckBusy_FreeCalendar(t *testing.T) {
	conn := &models.UserCalendarConnection{InterruptionRule: models.RuleBetweenMeetings}
	status := CheckBusy(context.Background(), stubSource{}, conn, monday10)

	assert.False(t, status.Busy)
	assert.Empty(t, status.BlockingEvents)
}

func TestCheckBusy_BlockingMeeting(t *testing.T) {
	conn := &models.UserCalendarConnection{
		InterruptionRule:         models.RuleBetweenMeetings,
		MinimumMeetingGapMinutes: 5,
	}
	src := stubSource{events: []Event{
		meeting(monday10.Add(-10*time.Minute), monday10.Add(15*time.Minute), PriorityNormal),
	}}

	status := CheckBusy(context.Background(), src, conn, monday10)
	require.True(t, status.Busy)
	require.Len(t, status.BlockingEvents, 1)
	require.NotNil(t, status.NextFreeSlot)
	// Meeting ends 10:15, plus the 5 minute gap.
	assert.Equal(t, monday10.Add(20*time.Minute), *status.NextFreeSlot)
}

func TestCheckBusy_SourceErrorFailsOpen(t *testing.T) {
	conn := &models.UserCalendarConnection{ID: 7, InterruptionRule: models.RuleNever}
	src := stubSource{err: errors.New("api unreachable")}

	status := CheckBusy(context.Background(), src, conn, monday10)
	assert.False(t, status.Busy, "a broken calendar must not suppress reminders")
}

func TestCheckBusy_EventNotCoveringCandidate(t *testing.T) {
	conn := &models.UserCalendarConnection{InterruptionRule: models.RuleBetweenMeetings}
	src := stubSource{events: []Event{
		meeting(monday10.Add(20*time.Minute), monday10.Add(40*time.Minute), PriorityNormal),
	}}

	status := CheckBusy(context.Background(), src, conn, monday10)
	assert.False(t, status.Busy)
}

func TestNextFreeSlot_FullyBlockedWindow(t *testing.T) {
	conn := &models.UserCalendarConnection{
		InterruptionRule:         models.RuleNever,
		MinimumMeetingGapMinutes: 5,
	}
	src := stubSource{events: []Event{
		meeting(monday10.Add(-time.Hour), monday10.Add(2*time.Hour), PriorityNormal),
	}}

	status := CheckBusy(context.Background(), src, conn, monday10)
	require.True(t, status.Busy)
	assert.Nil(t, status.NextFreeSlot, "no free slot inside the window")
}

func TestNextFreeSlot_BackToBackMeetings(t *testing.T) {
	conn := &models.UserCalendarConnection{
		InterruptionRule:         models.RuleBetweenMeetings,
		MinimumMeetingGapMinutes: 5,
	}
	src := stubSource{events: []Event{
		meeting(monday10.Add(-15*time.Minute), monday10.Add(10*time.Minute), PriorityNormal),
		meeting(monday10.Add(12*time.Minute), monday10.Add(30*time.Minute), PriorityNormal),
	}}

	status := CheckBusy(context.Background(), src, conn, monday10)
	require.True(t, status.Busy)
	require.NotNil(t, status.NextFreeSlot)
	// The two-minute gap at 10:10 is narrower than the 5 minute minimum; the
	// first usable instant is after the second meeting plus the gap.
	assert.Equal(t, monday10.Add(35*time.Minute), *status.NextFreeSlot)
}

func seedManualConnection(t *testing.T, db *gorm.DB, rule string) (*models.User, *models.UserCalendarConnection) {
	t.Helper()
	user := &models.User{UserID: "u-test", Email: "cal@example.com", Active: true, Timezone: "UTC"}
	require.NoError(t, db.Create(user).Error)

	provider := &models.CalendarProvider{Name: models.ProviderManual, DisplayName: "Manual", IsActive: true}
	require.NoError(t, db.Create(provider).Error)

	conn := &models.UserCalendarConnection{
		UserIDRef:                user.ID,
		ProviderIDRef:            provider.ID,
		IsActive:                 true,
		CheckBusyPeriods:         true,
		MinimumMeetingGapMinutes: 5,
		InterruptionRule:         rule,
	}
	require.NoError(t, db.Create(conn).Error)
	return user, conn
}

func TestManager_NoConnectionsAllows(t *testing.T) {
	db := testDB(t)
	user := &models.User{UserID: "u-free", Email: "free@example.com", Active: true}
	require.NoError(t, db.Create(user).Error)

	m := NewManager(db, OAuthConfig{})
	decision := m.ShouldAllowInterruption(context.Background(), user, monday10)

	assert.True(t, decision.Allowed)
	assert.Equal(t, models.DecisionAllowed, decision.Kind())
}

func TestManager_ManualBlockDelays(t *testing.T) {
	db := testDB(t)
	user, conn := seedManualConnection(t, db, models.RuleBetweenMeetings)

	// Monday block 09:00-10:15; candidate 10:00 sits inside it.
	require.NoError(t, db.Create(&models.ManualBusyBlock{
		ConnectionIDRef: conn.ID,
		Weekday:         1,
		StartTime:       "09:00",
		EndTime:         "10:15",
		Title:           "Standup",
	}).Error)

	m := NewManager(db, OAuthConfig{})
	decision := m.ShouldAllowInterruption(context.Background(), user, monday10)

	require.False(t, decision.Allowed)
	require.NotNil(t, decision.DelayUntil)
	assert.Equal(t, models.DecisionDelayed, decision.Kind())
	assert.Equal(t, monday10.Add(20*time.Minute), decision.DelayUntil.UTC())
	assert.Contains(t, decision.Reason, "Standup")
}

func TestManager_ExtendedBusySkips(t *testing.T) {
	db := testDB(t)
	user, conn := seedManualConnection(t, db, models.RuleNever)

	require.NoError(t, db.Create(&models.ManualBusyBlock{
		ConnectionIDRef: conn.ID,
		Weekday:         1,
		StartTime:       "08:00",
		EndTime:         "14:00",
		Title:           "Deep work",
	}).Error)

	m := NewManager(db, OAuthConfig{})
	decision := m.ShouldAllowInterruption(context.Background(), user, monday10)

	assert.False(t, decision.Allowed)
	assert.Nil(t, decision.DelayUntil)
	assert.Equal(t, models.DecisionSkipped, decision.Kind())
}

func TestManager_FreeDayAllows(t *testing.T) {
	db := testDB(t)
	user, conn := seedManualConnection(t, db, models.RuleBetweenMeetings)

	// Block on Tuesday, candidate is Monday.
	require.NoError(t, db.Create(&models.ManualBusyBlock{
		ConnectionIDRef: conn.ID,
		Weekday:         2,
		StartTime:       "09:00",
		EndTime:         "17:00",
	}).Error)

	m := NewManager(db, OAuthConfig{})
	decision := m.ShouldAllowInterruption(context.Background(), user, monday10)

	assert.True(t, decision.Allowed)
	assert.Equal(t, "user is available", decision.Reason)
}

func TestManualSource_NegativeOffsetTimezone(t *testing.T) {
	db := testDB(t)
	user, conn := seedManualConnection(t, db, models.RuleBetweenMeetings)
	user.Timezone = "America/New_York"
	require.NoError(t, db.Model(user).Update("timezone", user.Timezone).Error)

	require.NoError(t, db.Create(&models.ManualBusyBlock{
		ConnectionIDRef: conn.ID,
		Weekday:         1,
		StartTime:       "09:00",
		EndTime:         "10:15",
		Title:           "Planning",
	}).Error)

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// Monday 10:00 New York time, inside the block. In UTC this is still
	// Monday, but midnight-in-UTC lands on the previous local day.
	candidate := time.Date(2025, 3, 3, 10, 0, 0, 0, ny)

	src := NewManualSource(db, conn, user.Timezone)
	events, err := src.Events(context.Background(),
		candidate.Add(-windowBefore), candidate.Add(windowAfter))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Covers(candidate))

	m := NewManager(db, OAuthConfig{})
	decision := m.ShouldAllowInterruption(context.Background(), user, candidate)
	require.False(t, decision.Allowed)
	require.NotNil(t, decision.DelayUntil)
	// Block ends 10:15 local, plus the 5 minute gap.
	assert.Equal(t, time.Date(2025, 3, 3, 10, 20, 0, 0, ny).UTC(), decision.DelayUntil.UTC())
}

func TestManager_EvaluateWritesLog(t *testing.T) {
	db := testDB(t)
	user, conn := seedManualConnection(t, db, models.RuleBetweenMeetings)

	require.NoError(t, db.Create(&models.ManualBusyBlock{
		ConnectionIDRef: conn.ID,
		Weekday:         1,
		StartTime:       "09:00",
		EndTime:         "10:15",
	}).Error)

	m := NewManager(db, OAuthConfig{})
	sessionID := uint(42)
	decision := m.Evaluate(context.Background(), user, &sessionID, monday10)
	assert.Equal(t, models.DecisionDelayed, decision.Kind())

	var logs []models.SmartInterruptionLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, user.ID, logs[0].UserIDRef)
	assert.Equal(t, models.DecisionDelayed, logs[0].Decision)
	require.NotNil(t, logs[0].TimerSessionIDRef)
	assert.Equal(t, sessionID, *logs[0].TimerSessionIDRef)
	require.NotNil(t, logs[0].DelayedUntil)
}
