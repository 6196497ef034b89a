package gamification

import (
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

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.TimerSession{},
		&models.BreakRecord{},
		&models.UserLevel{},
		&models.Badge{},
		&models.UserBadge{},
		&models.Challenge{},
		&models.ChallengeParticipation{},
		&models.UserStreakData{},
		&models.LiveActivityFeed{},
		&models.Achievement{},
	))
	return db
}

func testUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{UserID: "u-game", Email: "game@example.com", Active: true,
		SubscriptionType: models.SubscriptionPremium}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestAddExperience_NoLevelUp(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewService(db)

	level, err := svc.AddExperience(user, 50)
	require.NoError(t, err)
	assert.Equal(t, uint(1), level.CurrentLevel)
	assert.Equal(t, uint(50), level.TotalExperiencePoints)
	assert.Equal(t, uint(50), level.ExperienceThisLevel)
}

func TestAddExperience_SingleLevelUp(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewService(db)

	// Level 1 needs 100 XP.
	level, err := svc.AddExperience(user, 120)
	require.NoError(t, err)
	assert.Equal(t, uint(2), level.CurrentLevel)
	assert.Equal(t, uint(20), level.ExperienceThisLevel)

	var feed []models.LiveActivityFeed
	require.NoError(t, db.Where("activity_type = ?", models.ActivityLevelUp).Find(&feed).Error)
	assert.Len(t, feed, 1)
}

func TestAddExperience_MultiLevelUp(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewService(db)

	// 100 + 200 = 300 XP clears levels 1 and 2 exactly.
	level, err := svc.AddExperience(user, 350)
	require.NoError(t, err)
	assert.Equal(t, uint(3), level.CurrentLevel)
	assert.Equal(t, uint(50), level.ExperienceThisLevel)
	assert.Equal(t, uint(350), level.TotalExperiencePoints)
}

func TestExperienceToNextLevel(t *testing.T) {
	l := models.UserLevel{CurrentLevel: 7}
	assert.Equal(t, uint(700), l.ExperienceToNextLevel())
}

func TestUpdateStreak_FirstSession(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewService(db)
	session := &models.TimerSession{UserIDRef: user.ID, TotalWorkMinutes: 40}
	require.NoError(t, db.Create(session).Error)

	streak, err := svc.UpdateStreak(user, session, "2025-03-03")
	require.NoError(t, err)
	assert.Equal(t, uint(1), streak.CurrentDailyStreak)
	assert.Equal(t, "2025-03-03", streak.LastSessionDate)
	assert.Equal(t, "2025-03-03", streak.StreakStartDate)
	assert.Equal(t, uint(1), streak.TotalSessionsCompleted)
}

func TestUpdateStreak_SameDayIsNoOp(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewService(db)
	session := &models.TimerSession{UserIDRef: user.ID}
	require.NoError(t, db.Create(session).Error)

	_, err := svc.UpdateStreak(user, session, "2025-03-03")
	require.NoError(t, err)
	streak, err := svc.UpdateStreak(user, session, "2025-03-03")
	require.NoError(t, err)

	assert.Equal(t, uint(1), streak.CurrentDailyStreak, "second session same day keeps the streak")
	assert.Equal(t, uint(2), streak.TotalSessionsCompleted)
}

func TestUpdateStreak_ConsecutiveDayExtends(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewService(db)
	session := &models.TimerSession{UserIDRef: user.ID}
	require.NoError(t, db.Create(session).Error)

	_, err := svc.UpdateStreak(user, session, "2025-03-03")
	require.NoError(t, err)
	streak, err := svc.UpdateStreak(user, session, "2025-03-04")
	require.NoError(t, err)

	assert.Equal(t, uint(2), streak.CurrentDailyStreak)
	assert.Equal(t, uint(2), streak.BestDailyStreak)
	assert.Equal(t, "2025-03-03", streak.StreakStartDate, "start date survives an extension")
}

func TestUpdateStreak_GapResets(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewService(db)
	session := &models.TimerSession{UserIDRef: user.ID}
	require.NoError(t, db.Create(session).Error)

	_, err := svc.UpdateStreak(user, session, "2025-03-03")
	require.NoError(t, err)
	_, err = svc.UpdateStreak(user, session, "2025-03-04")
	require.NoError(t, err)
	streak, err := svc.UpdateStreak(user, session, "2025-03-07")
	require.NoError(t, err)

	assert.Equal(t, uint(1), streak.CurrentDailyStreak)
	assert.Equal(t, uint(2), streak.BestDailyStreak, "best streak is preserved across resets")
	assert.Equal(t, "2025-03-07", streak.StreakStartDate)
}

func TestUpdateStreak_SevenDaysAwardsAchievement(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewService(db)
	session := &models.TimerSession{UserIDRef: user.ID}
	require.NoError(t, db.Create(session).Error)

	require.NoError(t, db.Create(&models.UserStreakData{
		UserIDRef:          user.ID,
		CurrentDailyStreak: 6,
		BestDailyStreak:    6,
		LastSessionDate:    "2025-03-08",
		StreakStartDate:    "2025-03-03",
	}).Error)

	streak, err := svc.UpdateStreak(user, session, "2025-03-09")
	require.NoError(t, err)
	require.Equal(t, uint(7), streak.CurrentDailyStreak)

	var achievements []models.Achievement
	require.NoError(t, db.Where("user_id_ref = ?", user.ID).Find(&achievements).Error)
	require.Len(t, achievements, 1)
	assert.Equal(t, models.AchievementStreak7, achievements[0].AchievementType)

	// A second qualifying day does not duplicate the award.
	_, err = svc.UpdateStreak(user, session, "2025-03-10")
	require.NoError(t, err)
	var count int64
	db.Model(&models.Achievement{}).Where("user_id_ref = ?", user.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestStreakBonus_Scaling(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewService(db)

	set := func(days uint) {
		require.NoError(t, db.Where("user_id_ref = ?", user.ID).Delete(&models.UserStreakData{}).Error)
		require.NoError(t, db.Create(&models.UserStreakData{
			UserIDRef: user.ID, CurrentDailyStreak: days,
		}).Error)
	}

	set(3)
	assert.Equal(t, uint(15), svc.StreakBonus(user))

	set(7)
	assert.Equal(t, uint(35), svc.StreakBonus(user))

	set(10)
	assert.Equal(t, uint(65), svc.StreakBonus(user), "days past a week are worth 10 each")

	set(100)
	assert.Equal(t, uint(200), svc.StreakBonus(user), "bonus is capped")
}

func TestAwardSessionCompletion_XPBreakdown(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewService(db)

	session := &models.TimerSession{
		UserIDRef:               user.ID,
		TotalIntervalsCompleted: 4,
		TotalBreaksTaken:        4,
	}
	require.NoError(t, db.Create(session).Error)

	// Two of four completed breaks are compliant.
	for i := 0; i < 4; i++ {
		b := models.BreakRecord{
			UserIDRef:            user.ID,
			SessionIDRef:         session.ID,
			BreakCompleted:       true,
			BreakDurationSeconds: 25,
			LookedAtDistance:     i < 2,
		}
		require.NoError(t, db.Create(&b).Error)
	}

	summary, err := svc.AwardSessionCompletion(user, session)
	require.NoError(t, err)
	assert.Equal(t, uint(10), summary.BaseXP)
	assert.Equal(t, uint(10), summary.ComplianceBonus, "half compliance earns half the bonus")
	assert.Equal(t, uint(8), summary.LengthBonus)
	assert.Equal(t, uint(28), summary.ExperienceGained)
}

func TestAwardSessionCompletion_LengthBonusCap(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewService(db)

	session := &models.TimerSession{UserIDRef: user.ID, TotalIntervalsCompleted: 30}
	require.NoError(t, db.Create(session).Error)

	summary, err := svc.AwardSessionCompletion(user, session)
	require.NoError(t, err)
	assert.Equal(t, uint(20), summary.LengthBonus)
}

func TestCheckAndAwardBadges(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewService(db)

	require.NoError(t, db.Create(&models.Badge{
		Slug: "three-day-streak", Name: "Three Day Streak",
		RequiresStreakDays: 3, ExperienceReward: 25, IsActive: true,
	}).Error)
	require.NoError(t, db.Create(&models.Badge{
		Slug: "marathoner", Name: "Marathoner",
		RequiresSessions: 100, IsActive: true,
	}).Error)

	require.NoError(t, db.Create(&models.UserStreakData{
		UserIDRef: user.ID, CurrentDailyStreak: 3, TotalSessionsCompleted: 5,
	}).Error)

	awarded, err := svc.CheckAndAwardBadges(user)
	require.NoError(t, err)
	require.Len(t, awarded, 1)
	assert.Equal(t, "three-day-streak", awarded[0].Slug)

	// Badge XP is granted alongside the award.
	var level models.UserLevel
	require.NoError(t, db.Where("user_id_ref = ?", user.ID).First(&level).Error)
	assert.Equal(t, uint(25), level.TotalExperiencePoints)

	// A second sweep must not re-award.
	again, err := svc.CheckAndAwardBadges(user)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestChallengeProgress_CompletesAndRewards(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewService(db)

	now := time.Now().UTC()
	ch := models.Challenge{
		ChallengeType:    models.ChallengeDailySessions,
		Name:             "Session sprint",
		TargetValue:      2,
		ExperienceReward: 40,
		StartsAt:         now.Add(-time.Hour),
		EndsAt:           now.Add(time.Hour),
		IsActive:         true,
	}
	require.NoError(t, db.Create(&ch).Error)

	for i := 0; i < 2; i++ {
		require.NoError(t, db.Create(&models.TimerSession{
			UserIDRef: user.ID, StartTime: now.Add(-30 * time.Minute),
		}).Error)
	}

	session := &models.TimerSession{UserIDRef: user.ID, StartTime: now}
	require.NoError(t, db.Create(session).Error)
	_, err := svc.AwardSessionCompletion(user, session)
	require.NoError(t, err)

	var part models.ChallengeParticipation
	require.NoError(t, db.Where("user_id_ref = ? AND challenge_id_ref = ?", user.ID, ch.ID).
		First(&part).Error)
	assert.True(t, part.Completed)
	assert.GreaterOrEqual(t, part.CurrentProgress, uint(2))

	var level models.UserLevel
	require.NoError(t, db.Where("user_id_ref = ?", user.ID).First(&level).Error)
	assert.GreaterOrEqual(t, level.TotalExperiencePoints, uint(40))
}

func TestGetSummary(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	svc := NewService(db)

	_, err := svc.AddExperience(user, 150)
	require.NoError(t, err)

	badge := models.Badge{Slug: "starter", Name: "Starter", IsActive: true}
	require.NoError(t, db.Create(&badge).Error)
	require.NoError(t, db.Create(&models.UserBadge{
		UserIDRef: user.ID, BadgeIDRef: badge.ID, EarnedAt: time.Now().UTC(),
	}).Error)

	summary, err := svc.GetSummary(user)
	require.NoError(t, err)
	assert.Equal(t, uint(2), summary.Level)
	assert.Equal(t, uint(150), summary.TotalExperience)
	assert.Equal(t, uint(150), summary.ExperienceToNext, "level 2 needs 200, 50 already earned")
	assert.Equal(t, []string{"Starter"}, summary.Badges)
}
