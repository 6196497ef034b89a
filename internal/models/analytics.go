package models

import "time"

// DailyStats aggregates one user's activity for one calendar day.
type DailyStats struct {
	ID        uint   `gorm:"primaryKey"`
	UserIDRef uint   `gorm:"uniqueIndex:idx_daily_user_date,priority:1"`
	Date      string `gorm:"size:10;uniqueIndex:idx_daily_user_date,priority:2;index"` // "2006-01-02"

	TotalWorkMinutes        uint
	TotalIntervalsCompleted uint
	TotalBreaksTaken        uint
	TotalSessions           uint

	BreaksOnTime         uint
	BreaksCompliant      uint
	AverageBreakDuration float64

	StreakMaintained  bool
	ProductivityScore float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ComplianceRate is the percentage of breaks that followed the 20-20-20 rule.
func (d *DailyStats) ComplianceRate() float64 {
	if d.TotalBreaksTaken == 0 {
		return 0
	}
	return float64(d.BreaksCompliant) / float64(d.TotalBreaksTaken) * 100
}

type WeeklyStats struct {
	ID            uint   `gorm:"primaryKey"`
	UserIDRef     uint   `gorm:"uniqueIndex:idx_weekly_user_week,priority:1"`
	WeekStartDate string `gorm:"size:10;uniqueIndex:idx_weekly_user_week,priority:2"` // Monday
	WeekEndDate   string `gorm:"size:10"`

	TotalWorkMinutes        uint
	TotalIntervalsCompleted uint
	TotalBreaksTaken        uint
	TotalSessions           uint
	ActiveDays              uint

	AverageDailyWorkMinutes float64
	AverageDailyBreaks      float64

	TotalBreaksCompliant uint
	WeeklyComplianceRate float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserBehaviorEvent is a raw clickstream-style event for funnel analysis.
type UserBehaviorEvent struct {
	ID        uint   `gorm:"primaryKey"`
	UserIDRef uint   `gorm:"index:idx_behavior_user_type,priority:1"`
	EventType string `gorm:"size:50;index:idx_behavior_user_type,priority:2"`
	EventData []byte `gorm:"type:jsonb"`
	PageURL   string
	CreatedAt time.Time `gorm:"index"`
}

// UserSession tracks one browser session for engagement metrics.
type UserSession struct {
	ID         uint   `gorm:"primaryKey"`
	UserIDRef  uint   `gorm:"index"`
	SessionKey string `gorm:"size:64;uniqueIndex"`
	IPAddress  string `gorm:"size:45"`
	UserAgent  string `gorm:"type:text"`

	PagesViewed          uint
	TimerSessionsStarted uint
	BreaksTakenInSession uint

	StartedAt    time.Time
	LastActivity time.Time `gorm:"index"`
}

// Activity feed entry types
const (
	ActivitySessionStarted = "session_started"
	ActivitySessionEnded   = "session_ended"
	ActivityBreakStarted   = "break_started"
	ActivityBreakTaken     = "break_taken"
	ActivityLevelUp        = "level_up"
	ActivityBadgeEarned    = "badge_earned"
)

// LiveActivityFeed feeds the realtime dashboard; public entries are also
// broadcast over the websocket hub.
type LiveActivityFeed struct {
	ID           uint      `gorm:"primaryKey"`
	UserIDRef    uint      `gorm:"index"`
	ActivityType string    `gorm:"size:30;index"`
	ActivityData []byte    `gorm:"type:jsonb"`
	IsPublic     bool      `gorm:"default:true;index"`
	CreatedAt    time.Time `gorm:"index"`
}
