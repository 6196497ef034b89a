package models

import "time"

// Badge rarities
const (
	RarityCommon    = "common"
	RarityUncommon  = "uncommon"
	RarityRare      = "rare"
	RarityLegendary = "legendary"
)

// UserLevel tracks experience and level for premium gamification.
type UserLevel struct {
	ID        uint `gorm:"primaryKey"`
	UserIDRef uint `gorm:"uniqueIndex"`

	CurrentLevel          uint `gorm:"default:1"`
	TotalExperiencePoints uint
	ExperienceThisLevel   uint

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExperienceToNextLevel is the XP needed to finish the current level.
func (l *UserLevel) ExperienceToNextLevel() uint {
	return l.CurrentLevel * 100
}

// LevelTitle maps levels to display titles shown on the dashboard.
func (l *UserLevel) LevelTitle() string {
	switch {
	case l.CurrentLevel >= 50:
		return "Eye Health Legend"
	case l.CurrentLevel >= 25:
		return "Vision Guardian"
	case l.CurrentLevel >= 10:
		return "Break Master"
	case l.CurrentLevel >= 5:
		return "Focused Achiever"
	default:
		return "Eye Care Novice"
	}
}

// Badge is an awardable with threshold requirements; a zero requirement is
// ignored during eligibility checks.
type Badge struct {
	ID          uint   `gorm:"primaryKey"`
	Slug        string `gorm:"size:50;uniqueIndex"`
	Name        string `gorm:"size:100"`
	Description string `gorm:"type:text"`
	Icon        string `gorm:"size:50"`
	Rarity      string `gorm:"size:10;default:common"`

	RequiresStreakDays      uint
	RequiresSessions        uint
	RequiresCompliantBreaks uint

	ExperienceReward uint
	IsActive         bool `gorm:"default:true"`

	CreatedAt time.Time
}

type UserBadge struct {
	ID         uint `gorm:"primaryKey"`
	UserIDRef  uint `gorm:"uniqueIndex:idx_user_badge,priority:1"`
	BadgeIDRef uint `gorm:"uniqueIndex:idx_user_badge,priority:2"`
	EarnedAt   time.Time
}

// Challenge types
const (
	ChallengeDailySessions  = "daily_sessions"
	ChallengeWeeklyBreaks   = "weekly_breaks"
	ChallengeComplianceWeek = "compliance_week"
)

type Challenge struct {
	ID               uint   `gorm:"primaryKey"`
	ChallengeType    string `gorm:"size:30"`
	Name             string `gorm:"size:100"`
	Description      string `gorm:"type:text"`
	TargetValue      uint
	ExperienceReward uint

	StartsAt time.Time
	EndsAt   time.Time
	IsActive bool `gorm:"default:true"`

	CreatedAt time.Time
}

type ChallengeParticipation struct {
	ID             uint `gorm:"primaryKey"`
	UserIDRef      uint `gorm:"uniqueIndex:idx_challenge_user,priority:1"`
	ChallengeIDRef uint `gorm:"uniqueIndex:idx_challenge_user,priority:2"`

	CurrentProgress uint
	Completed       bool
	CompletedAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Achievement types
const (
	AchievementStreak7        = "streak_7"
	AchievementStreak30       = "streak_30"
	AchievementStreak100      = "streak_100"
	AchievementEarlyBird      = "early_bird"
	AchievementNightOwl       = "night_owl"
	AchievementWeekendWarrior = "weekend_warrior"
	AchievementSessionMaster  = "session_master"
	AchievementPerfectWeek    = "eye_health_champion"
)

type Achievement struct {
	ID              uint   `gorm:"primaryKey"`
	UserIDRef       uint   `gorm:"uniqueIndex:idx_user_achievement,priority:1"`
	AchievementType string `gorm:"size:20;uniqueIndex:idx_user_achievement,priority:2"`
	Description     string `gorm:"type:text"`
	EarnedAt        time.Time
}

// UserStreakData tracks consecutive-day usage streaks.
type UserStreakData struct {
	ID        uint `gorm:"primaryKey"`
	UserIDRef uint `gorm:"uniqueIndex"`

	CurrentDailyStreak uint
	BestDailyStreak    uint

	LastSessionDate string `gorm:"size:10"` // "2006-01-02", empty until first session
	StreakStartDate string `gorm:"size:10"`

	TotalSessionsCompleted uint
	TotalBreakTimeMinutes  uint
	AverageSessionLength   float64

	CreatedAt time.Time
	UpdatedAt time.Time
}
