package timer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eyerest/eyerest_backend/internal/gamification"
	"github.com/eyerest/eyerest_backend/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.TimerSession{},
		&models.TimerInterval{},
		&models.BreakRecord{},
		&models.UserTimerSettings{},
		&models.DailyStats{},
		&models.UserLevel{},
		&models.Badge{},
		&models.UserBadge{},
		&models.Challenge{},
		&models.ChallengeParticipation{},
		&models.UserStreakData{},
		&models.LiveActivityFeed{},
		&models.WeeklyStats{},
		&models.Achievement{},
		&models.BreakReminder{},
	))
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testDB(t)
	return NewService(db, gamification.NewService(db), nil, 6), db
}

func freeUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{UserID: "u-free", Email: "free@example.com", Active: true,
		SubscriptionType: models.SubscriptionFree, Timezone: "UTC"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func premiumUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{UserID: "u-prem", Email: "prem@example.com", Active: true,
		SubscriptionType: models.SubscriptionPremium, Timezone: "UTC"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestStartSession_CreatesFirstInterval(t *testing.T) {
	svc, db := newTestService(t)
	user := freeUser(t, db)

	session, err := svc.StartSession(user)
	require.NoError(t, err)
	assert.True(t, session.IsActive)
	assert.Equal(t, uint(DefaultWorkIntervalMinutes), session.WorkIntervalMinutes)

	var interval models.TimerInterval
	require.NoError(t, db.Where("session_id_ref = ?", session.ID).First(&interval).Error)
	assert.Equal(t, uint(1), interval.IntervalNumber)
	assert.Equal(t, models.IntervalActive, interval.Status)
}

func TestStartSession_UsesStoredSettings(t *testing.T) {
	svc, db := newTestService(t)
	user := freeUser(t, db)

	require.NoError(t, db.Create(&models.UserTimerSettings{
		UserIDRef: user.ID, WorkIntervalMinutes: 25, BreakDurationSeconds: 30,
	}).Error)

	session, err := svc.StartSession(user)
	require.NoError(t, err)
	assert.Equal(t, uint(25), session.WorkIntervalMinutes)
	assert.Equal(t, uint(30), session.BreakDurationSeconds)
}

func TestStartSession_RejectsSecondActive(t *testing.T) {
	svc, db := newTestService(t)
	user := freeUser(t, db)

	_, err := svc.StartSession(user)
	require.NoError(t, err)

	_, err = svc.StartSession(user)
	assert.ErrorIs(t, err, ErrSessionAlreadyActive)
}

func TestCheckDailyLimit_FreeTier(t *testing.T) {
	svc, db := newTestService(t)
	user := freeUser(t, db)
	now := time.Now().UTC()

	session := models.TimerSession{UserIDRef: user.ID, StartTime: now}
	require.NoError(t, db.Create(&session).Error)
	for i := 1; i <= 6; i++ {
		require.NoError(t, db.Create(&models.TimerInterval{
			SessionIDRef:   session.ID,
			IntervalNumber: uint(i),
			StartTime:      now,
			Status:         models.IntervalCompleted,
		}).Error)
	}

	_, err := svc.CheckDailyLimit(user, now)
	assert.ErrorIs(t, err, ErrDailyLimitReached)

	_, err = svc.StartSession(user)
	assert.ErrorIs(t, err, ErrDailyLimitReached)
}

func TestCheckDailyLimit_PremiumUnlimited(t *testing.T) {
	svc, db := newTestService(t)
	user := premiumUser(t, db)
	now := time.Now().UTC()

	session := models.TimerSession{UserIDRef: user.ID, StartTime: now}
	require.NoError(t, db.Create(&session).Error)
	for i := 1; i <= 20; i++ {
		require.NoError(t, db.Create(&models.TimerInterval{
			SessionIDRef:   session.ID,
			IntervalNumber: uint(i),
			StartTime:      now,
			Status:         models.IntervalCompleted,
		}).Error)
	}

	_, err := svc.CheckDailyLimit(user, now)
	assert.NoError(t, err)
}

func TestBreakLifecycle(t *testing.T) {
	svc, db := newTestService(t)
	user := freeUser(t, db)

	session, err := svc.StartSession(user)
	require.NoError(t, err)

	record, err := svc.StartBreak(user, false)
	require.NoError(t, err)
	assert.Equal(t, models.BreakScheduled, record.BreakType)
	assert.Equal(t, session.ID, record.SessionIDRef)

	result, err := svc.CompleteBreak(user, record.ID, true)
	require.NoError(t, err)
	assert.True(t, result.LookedAtDistance)
	assert.Equal(t, uint(2), result.NextIntervalNumber, "next interval opens while the session runs")

	// The first interval is closed out.
	var first models.TimerInterval
	require.NoError(t, db.Where("session_id_ref = ? AND interval_number = 1", session.ID).
		First(&first).Error)
	assert.Equal(t, models.IntervalCompleted, first.Status)

	// Session counters follow.
	var reloaded models.TimerSession
	require.NoError(t, db.First(&reloaded, session.ID).Error)
	assert.Equal(t, uint(1), reloaded.TotalBreaksTaken)
	assert.Equal(t, uint(1), reloaded.TotalIntervalsCompleted)
}

func TestCompleteBreak_Twice(t *testing.T) {
	svc, db := newTestService(t)
	user := freeUser(t, db)

	_, err := svc.StartSession(user)
	require.NoError(t, err)
	record, err := svc.StartBreak(user, true)
	require.NoError(t, err)

	_, err = svc.CompleteBreak(user, record.ID, true)
	require.NoError(t, err)
	_, err = svc.CompleteBreak(user, record.ID, true)
	assert.ErrorIs(t, err, ErrBreakAlreadyCompleted)
	_ = db
}

func TestCompleteBreak_UnknownID(t *testing.T) {
	svc, db := newTestService(t)
	user := freeUser(t, db)
	_ = db

	_, err := svc.CompleteBreak(user, 9999, true)
	assert.ErrorIs(t, err, ErrBreakNotFound)
}

func TestStartBreak_WithoutSession(t *testing.T) {
	svc, db := newTestService(t)
	user := freeUser(t, db)
	_ = db

	_, err := svc.StartBreak(user, false)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestBreakReminders_FollowSessionLifecycle(t *testing.T) {
	svc, db := newTestService(t)
	user := freeUser(t, db)

	session, err := svc.StartSession(user)
	require.NoError(t, err)

	var reminder models.BreakReminder
	require.NoError(t, db.Where("user_id_ref = ?", user.ID).First(&reminder).Error)
	assert.Nil(t, reminder.DeliveredAt)
	assert.False(t, reminder.Dismissed)
	expected := session.StartTime.Add(time.Duration(session.WorkIntervalMinutes) * time.Minute)
	assert.WithinDuration(t, expected, reminder.ScheduledFor, time.Second)

	// Starting the break supersedes the nudge for that interval.
	record, err := svc.StartBreak(user, false)
	require.NoError(t, err)
	require.NoError(t, db.First(&reminder, reminder.ID).Error)
	require.NotNil(t, reminder.DeliveredAt)

	// Completing the break opens the next interval with its own reminder.
	_, err = svc.CompleteBreak(user, record.ID, true)
	require.NoError(t, err)
	var pending int64
	db.Model(&models.BreakReminder{}).
		Where("user_id_ref = ? AND delivered_at IS NULL AND dismissed = ?", user.ID, false).
		Count(&pending)
	assert.Equal(t, int64(1), pending)

	// Ending the session dismisses whatever is still outstanding.
	var active models.TimerSession
	require.NoError(t, db.First(&active, session.ID).Error)
	_, err = svc.EndSession(user, &active)
	require.NoError(t, err)
	db.Model(&models.BreakReminder{}).
		Where("user_id_ref = ? AND delivered_at IS NULL AND dismissed = ?", user.ID, false).
		Count(&pending)
	assert.Equal(t, int64(0), pending)
}

func TestEndSession_RollsUpTotals(t *testing.T) {
	svc, db := newTestService(t)
	user := freeUser(t, db)

	session, err := svc.StartSession(user)
	require.NoError(t, err)

	record, err := svc.StartBreak(user, true)
	require.NoError(t, err)
	_, err = svc.CompleteBreak(user, record.ID, true)
	require.NoError(t, err)

	var active models.TimerSession
	require.NoError(t, db.First(&active, session.ID).Error)
	summary, err := svc.EndSession(user, &active)
	require.NoError(t, err)

	assert.Equal(t, uint(1), summary.IntervalsCompleted)
	assert.Equal(t, uint(1), summary.BreaksTaken)
	assert.Equal(t, uint(1), summary.CurrentStreak)
	assert.Nil(t, summary.Gamification, "free users earn no session rewards")

	var reloaded models.TimerSession
	require.NoError(t, db.First(&reloaded, session.ID).Error)
	assert.False(t, reloaded.IsActive)
	require.NotNil(t, reloaded.EndTime)

	var daily models.DailyStats
	require.NoError(t, db.Where("user_id_ref = ?", user.ID).First(&daily).Error)
	assert.Equal(t, uint(1), daily.TotalSessions)
	assert.Equal(t, uint(1), daily.TotalBreaksTaken)

	var weekly models.WeeklyStats
	require.NoError(t, db.Where("user_id_ref = ?", user.ID).First(&weekly).Error)
	assert.Equal(t, uint(1), weekly.TotalSessions)
	assert.Equal(t, uint(1), weekly.ActiveDays)
	assert.True(t, weekly.WeekStartDate <= daily.Date && daily.Date <= weekly.WeekEndDate)
}

func TestEndSession_PremiumGetsRewards(t *testing.T) {
	svc, db := newTestService(t)
	user := premiumUser(t, db)

	session, err := svc.StartSession(user)
	require.NoError(t, err)

	summary, err := svc.EndSession(user, session)
	require.NoError(t, err)
	require.NotNil(t, summary.Gamification)
	assert.GreaterOrEqual(t, summary.Gamification.ExperienceGained, uint(10))

	var level models.UserLevel
	require.NoError(t, db.Where("user_id_ref = ?", user.ID).First(&level).Error)
	assert.GreaterOrEqual(t, level.TotalExperiencePoints, uint(10))
}

func TestEndSession_AlreadyEnded(t *testing.T) {
	svc, db := newTestService(t)
	user := freeUser(t, db)
	_ = db

	session, err := svc.StartSession(user)
	require.NoError(t, err)
	_, err = svc.EndSession(user, session)
	require.NoError(t, err)

	_, err = svc.EndSession(user, session)
	assert.ErrorIs(t, err, ErrSessionNotActive)
}

func TestSync_ActiveSessionState(t *testing.T) {
	svc, db := newTestService(t)
	user := freeUser(t, db)
	_ = db

	session, err := svc.StartSession(user)
	require.NoError(t, err)

	state := svc.Sync(session)
	assert.True(t, state.SessionActive)
	assert.Equal(t, uint(1), state.IntervalNumber)
	assert.LessOrEqual(t, state.IntervalRemainingSeconds, int(session.WorkIntervalMinutes)*60)
	assert.Greater(t, state.IntervalRemainingSeconds, 0)
}

func TestUpdateSettings_ClampsAndValidates(t *testing.T) {
	svc, db := newTestService(t)
	user := freeUser(t, db)
	_ = db

	volume := 3.5
	sound := "airhorn"
	work := uint(45)
	patch := SettingsUpdate{
		SoundVolume:         &volume,
		NotificationSound:   &sound,
		WorkIntervalMinutes: &work,
	}

	settings, err := svc.UpdateSettings(user, patch)
	require.NoError(t, err)
	assert.Equal(t, 1.0, settings.SoundVolume, "volume clamps to 1")
	assert.Equal(t, models.SoundGentle, settings.NotificationSoundType, "unknown sounds are dropped")
	assert.Equal(t, uint(45), settings.WorkIntervalMinutes)
}

func TestUpdateSettings_PremiumGate(t *testing.T) {
	svc, db := newTestService(t)

	auto := true
	patch := SettingsUpdate{AutoStartBreak: &auto}

	free := freeUser(t, db)
	settings, err := svc.UpdateSettings(free, patch)
	require.NoError(t, err)
	assert.False(t, settings.AutoStartBreak, "premium fields are ignored for free users")

	prem := premiumUser(t, db)
	settings, err = svc.UpdateSettings(prem, patch)
	require.NoError(t, err)
	assert.True(t, settings.AutoStartBreak)
}

func TestGetPeriodStatistics_EmptyWindow(t *testing.T) {
	svc, db := newTestService(t)
	user := freeUser(t, db)
	_ = db

	stats, err := svc.GetPeriodStatistics(user, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Days)
	assert.Empty(t, stats.Daily)
	assert.Equal(t, uint(0), stats.TotalWorkMinutes)
}
