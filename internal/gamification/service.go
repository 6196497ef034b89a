package gamification

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/models"
	"github.com/eyerest/eyerest_backend/internal/notify"
)

var ErrNegativeExperience = errors.New("experience points must be positive")

// Service implements the premium gamification layer: experience, levels,
// badges, challenges and streaks.
type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// AddExperience grants XP, handling multi-level-ups, and emits a level_up
// activity entry when the level changes.
func (s *Service) AddExperience(user *models.User, points uint) (*models.UserLevel, error) {
	var level models.UserLevel
	if err := s.DB.Where(models.UserLevel{UserIDRef: user.ID}).
		Attrs(models.UserLevel{CurrentLevel: 1}).
		FirstOrCreate(&level).Error; err != nil {
		return nil, err
	}
	if points == 0 {
		return &level, nil
	}

	initial := level.CurrentLevel
	level.TotalExperiencePoints += points
	level.ExperienceThisLevel += points
	for level.ExperienceThisLevel >= level.ExperienceToNextLevel() {
		level.ExperienceThisLevel -= level.ExperienceToNextLevel()
		level.CurrentLevel++
	}

	if err := s.DB.Save(&level).Error; err != nil {
		return nil, err
	}

	if level.CurrentLevel > initial {
		s.recordActivity(user.ID, models.ActivityLevelUp, map[string]any{
			"new_level":         level.CurrentLevel,
			"previous_level":    initial,
			"level_title":       level.LevelTitle(),
			"experience_gained": points,
		})
		notify.Send(s.DB, user.ID, "level-up", map[string]string{
			"level": strconv.FormatUint(uint64(level.CurrentLevel), 10),
		})
	}
	return &level, nil
}

// UserStats holds the aggregates badge checks run against.
type UserStats struct {
	CurrentStreak   uint
	TotalSessions   uint
	CompliantBreaks uint
}

func (s *Service) collectStats(user *models.User) (UserStats, error) {
	var stats UserStats

	var streak models.UserStreakData
	if err := s.DB.Where("user_id_ref = ?", user.ID).First(&streak).Error; err == nil {
		stats.CurrentStreak = streak.CurrentDailyStreak
		stats.TotalSessions = streak.TotalSessionsCompleted
	}

	var compliant int64
	if err := s.DB.Model(&models.BreakRecord{}).
		Where("user_id_ref = ? AND break_completed = ? AND break_duration_seconds >= ? AND looked_at_distance = ?",
			user.ID, true, 20, true).
		Count(&compliant).Error; err != nil {
		return stats, err
	}
	stats.CompliantBreaks = uint(compliant)
	return stats, nil
}

func meetsRequirements(b *models.Badge, stats UserStats) bool {
	if b.RequiresStreakDays > 0 && stats.CurrentStreak < b.RequiresStreakDays {
		return false
	}
	if b.RequiresSessions > 0 && stats.TotalSessions < b.RequiresSessions {
		return false
	}
	if b.RequiresCompliantBreaks > 0 && stats.CompliantBreaks < b.RequiresCompliantBreaks {
		return false
	}
	return true
}

// CheckAndAwardBadges sweeps the badge catalogue against the user's stats and
// awards anything newly earned, including the badge's XP reward.
func (s *Service) CheckAndAwardBadges(user *models.User) ([]models.Badge, error) {
	var earnedIDs []uint
	if err := s.DB.Model(&models.UserBadge{}).
		Where("user_id_ref = ?", user.ID).
		Pluck("badge_id_ref", &earnedIDs).Error; err != nil {
		return nil, err
	}

	q := s.DB.Where("is_active = ?", true)
	if len(earnedIDs) > 0 {
		q = q.Where("id NOT IN ?", earnedIDs)
	}
	var available []models.Badge
	if err := q.Find(&available).Error; err != nil {
		return nil, err
	}

	stats, err := s.collectStats(user)
	if err != nil {
		return nil, err
	}

	var awarded []models.Badge
	for _, badge := range available {
		if !meetsRequirements(&badge, stats) {
			continue
		}
		ub := models.UserBadge{UserIDRef: user.ID, BadgeIDRef: badge.ID, EarnedAt: time.Now().UTC()}
		if err := s.DB.Create(&ub).Error; err != nil {
			return awarded, err
		}
		awarded = append(awarded, badge)

		if badge.ExperienceReward > 0 {
			if _, err := s.AddExperience(user, badge.ExperienceReward); err != nil {
				return awarded, err
			}
		}
		s.recordActivity(user.ID, models.ActivityBadgeEarned, map[string]any{
			"badge_name":        badge.Name,
			"badge_rarity":      badge.Rarity,
			"experience_reward": badge.ExperienceReward,
		})
		notify.Send(s.DB, user.ID, "badge-earned", map[string]string{
			"badge":       badge.Name,
			"description": badge.Description,
		})
	}
	return awarded, nil
}

// RewardSummary is returned to the client when a session ends.
type RewardSummary struct {
	ExperienceGained uint     `json:"experience_gained"`
	BaseXP           uint     `json:"base"`
	ComplianceBonus  uint     `json:"compliance_bonus"`
	LengthBonus      uint     `json:"length_bonus"`
	BadgesEarned     []string `json:"badges_earned"`
}

// AwardSessionCompletion grants XP for a finished session: 10 base, up to 20
// for break compliance, up to 20 for session length, then runs the badge
// sweep and challenge progress.
func (s *Service) AwardSessionCompletion(user *models.User, session *models.TimerSession) (RewardSummary, error) {
	summary := RewardSummary{BaseXP: 10}

	if session.TotalBreaksTaken > 0 {
		var total, compliant int64
		s.DB.Model(&models.BreakRecord{}).
			Where("session_id_ref = ? AND break_completed = ?", session.ID, true).
			Count(&total)
		s.DB.Model(&models.BreakRecord{}).
			Where("session_id_ref = ? AND break_completed = ? AND break_duration_seconds >= ? AND looked_at_distance = ?",
				session.ID, true, 20, true).
			Count(&compliant)
		if total > 0 {
			summary.ComplianceBonus = uint(float64(compliant) / float64(total) * 20)
		}
	}

	summary.LengthBonus = session.TotalIntervalsCompleted * 2
	if summary.LengthBonus > 20 {
		summary.LengthBonus = 20
	}

	summary.ExperienceGained = summary.BaseXP + summary.ComplianceBonus + summary.LengthBonus
	if _, err := s.AddExperience(user, summary.ExperienceGained); err != nil {
		return summary, err
	}

	badges, err := s.CheckAndAwardBadges(user)
	if err != nil {
		return summary, err
	}
	for _, b := range badges {
		summary.BadgesEarned = append(summary.BadgesEarned, b.Name)
	}

	s.updateChallengeProgress(user)
	return summary, nil
}

// UpdateStreak advances the daily streak after a completed session. Same-day
// repeats are no-ops, a consecutive day extends, anything else resets to 1.
func (s *Service) UpdateStreak(user *models.User, session *models.TimerSession, today string) (*models.UserStreakData, error) {
	var streak models.UserStreakData
	if err := s.DB.Where(models.UserStreakData{UserIDRef: user.ID}).
		FirstOrCreate(&streak).Error; err != nil {
		return nil, err
	}

	streak.TotalSessionsCompleted++

	var totalBreakSeconds int64
	s.DB.Model(&models.BreakRecord{}).
		Where("session_id_ref = ? AND break_completed = ?", session.ID, true).
		Select("COALESCE(SUM(break_duration_seconds),0)").
		Scan(&totalBreakSeconds)
	streak.TotalBreakTimeMinutes += uint(totalBreakSeconds / 60)

	dur := float64(session.TotalWorkMinutes)
	if streak.TotalSessionsCompleted > 0 {
		n := float64(streak.TotalSessionsCompleted)
		streak.AverageSessionLength = (streak.AverageSessionLength*(n-1) + dur) / n
	}

	yesterday := previousDay(today)
	switch {
	case streak.LastSessionDate == today:
		// Already counted today.
	case streak.LastSessionDate == yesterday:
		streak.CurrentDailyStreak++
		if streak.CurrentDailyStreak > streak.BestDailyStreak {
			streak.BestDailyStreak = streak.CurrentDailyStreak
		}
	default:
		streak.CurrentDailyStreak = 1
		streak.StreakStartDate = today
	}
	streak.LastSessionDate = today

	if err := s.DB.Save(&streak).Error; err != nil {
		return nil, err
	}
	s.awardStreakAchievements(user, streak.CurrentDailyStreak)
	return &streak, nil
}

var streakMilestones = []struct {
	days uint
	kind string
	desc string
}{
	{7, models.AchievementStreak7, "Seven days of rested eyes in a row."},
	{30, models.AchievementStreak30, "A full month without missing a day."},
	{100, models.AchievementStreak100, "One hundred consecutive days of breaks."},
}

func (s *Service) awardStreakAchievements(user *models.User, days uint) {
	now := time.Now().UTC()
	for _, m := range streakMilestones {
		if days < m.days {
			continue
		}
		ach := models.Achievement{UserIDRef: user.ID, AchievementType: m.kind}
		if err := s.DB.Where(ach).
			Attrs(models.Achievement{Description: m.desc, EarnedAt: now}).
			FirstOrCreate(&ach).Error; err != nil {
			slog.Warn("achievement award failed", "user", user.UserID, "type", m.kind, "error", err)
		}
	}
}

func previousDay(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format("2006-01-02")
}

// StreakBonus scales with the streak: 5 XP per day for the first week, then
// 10 XP per day, capped at 200.
func (s *Service) StreakBonus(user *models.User) uint {
	var streak models.UserStreakData
	if err := s.DB.Where("user_id_ref = ?", user.ID).First(&streak).Error; err != nil {
		return 0
	}
	days := streak.CurrentDailyStreak
	var bonus uint
	if days <= 7 {
		bonus = days * 5
	} else {
		bonus = 7*5 + (days-7)*10
	}
	if bonus > 200 {
		bonus = 200
	}
	return bonus
}

func (s *Service) updateChallengeProgress(user *models.User) {
	now := time.Now().UTC()
	var challenges []models.Challenge
	if err := s.DB.Where("is_active = ? AND starts_at <= ? AND ends_at >= ?", true, now, now).
		Find(&challenges).Error; err != nil {
		return
	}

	for _, ch := range challenges {
		var part models.ChallengeParticipation
		if err := s.DB.Where(models.ChallengeParticipation{UserIDRef: user.ID, ChallengeIDRef: ch.ID}).
			FirstOrCreate(&part).Error; err != nil {
			continue
		}
		if part.Completed {
			continue
		}

		part.CurrentProgress = s.challengeProgress(user, &ch)
		if part.CurrentProgress >= ch.TargetValue {
			part.Completed = true
			part.CompletedAt = &now
			if _, err := s.AddExperience(user, ch.ExperienceReward); err != nil {
				slog.Warn("challenge reward failed", "user", user.UserID, "error", err)
			}
		}
		s.DB.Save(&part)
	}
}

func (s *Service) challengeProgress(user *models.User, ch *models.Challenge) uint {
	var count int64
	switch ch.ChallengeType {
	case models.ChallengeDailySessions:
		s.DB.Model(&models.TimerSession{}).
			Where("user_id_ref = ? AND start_time >= ?", user.ID, ch.StartsAt).
			Count(&count)
	case models.ChallengeWeeklyBreaks:
		s.DB.Model(&models.BreakRecord{}).
			Where("user_id_ref = ? AND break_completed = ? AND created_at >= ?", user.ID, true, ch.StartsAt).
			Count(&count)
	case models.ChallengeComplianceWeek:
		s.DB.Model(&models.BreakRecord{}).
			Where("user_id_ref = ? AND break_completed = ? AND break_duration_seconds >= ? AND looked_at_distance = ? AND created_at >= ?",
				user.ID, true, 20, true, ch.StartsAt).
			Count(&count)
	}
	return uint(count)
}

// Summary aggregates everything the gamification dashboard shows.
type Summary struct {
	Level              uint     `json:"level"`
	LevelTitle         string   `json:"level_title"`
	TotalExperience    uint     `json:"total_experience"`
	ExperienceToNext   uint     `json:"experience_to_next"`
	ProgressPercentage float64  `json:"progress_percentage"`
	CurrentStreak      uint     `json:"current_streak"`
	BestStreak         uint     `json:"best_streak"`
	Badges             []string `json:"badges"`
}

func (s *Service) GetSummary(user *models.User) (Summary, error) {
	var out Summary

	var level models.UserLevel
	if err := s.DB.Where(models.UserLevel{UserIDRef: user.ID}).
		Attrs(models.UserLevel{CurrentLevel: 1}).
		FirstOrCreate(&level).Error; err != nil {
		return out, err
	}
	out.Level = level.CurrentLevel
	out.LevelTitle = level.LevelTitle()
	out.TotalExperience = level.TotalExperiencePoints
	out.ExperienceToNext = level.ExperienceToNextLevel() - level.ExperienceThisLevel
	if next := level.ExperienceToNextLevel(); next > 0 {
		out.ProgressPercentage = float64(level.ExperienceThisLevel) / float64(next) * 100
	}

	var streak models.UserStreakData
	if err := s.DB.Where("user_id_ref = ?", user.ID).First(&streak).Error; err == nil {
		out.CurrentStreak = streak.CurrentDailyStreak
		out.BestStreak = streak.BestDailyStreak
	}

	rows := s.DB.Model(&models.UserBadge{}).
		Select("badges.name").
		Joins("JOIN badges ON badges.id = user_badges.badge_id_ref").
		Where("user_badges.user_id_ref = ?", user.ID)
	if err := rows.Pluck("badges.name", &out.Badges).Error; err != nil {
		return out, err
	}
	return out, nil
}

func (s *Service) recordActivity(userID uint, activityType string, data map[string]any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	entry := models.LiveActivityFeed{
		UserIDRef:    userID,
		ActivityType: activityType,
		ActivityData: payload,
		IsPublic:     true,
	}
	if err := s.DB.Create(&entry).Error; err != nil {
		slog.Warn("activity feed write failed", "type", activityType, "error", err)
	}
}
