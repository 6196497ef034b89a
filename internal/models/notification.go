package models

import "time"

// Notification statuses
const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationRead    = "read"
	NotificationClicked = "clicked"
)

// Notification types
const (
	NotifyBreakReminder = "break_reminder"
	NotifyDailySummary  = "daily_summary"
	NotifyWeeklyReport  = "weekly_report"
	NotifyAchievement   = "achievement"
	NotifySubscription  = "subscription"
	NotifySystem        = "system"
)

type NotificationTemplate struct {
	ID       uint   `gorm:"primaryKey"`
	Slug     string `gorm:"size:100;uniqueIndex"`
	Type     string `gorm:"size:30"`
	Subject  string `gorm:"size:255"`
	Body     string `gorm:"type:text"`
	IsActive bool   `gorm:"default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Notification struct {
	ID        uint `gorm:"primaryKey"`
	UserIDRef uint `gorm:"index:idx_notif_user_status,priority:1"`

	Type    string `gorm:"size:30"`
	Title   string `gorm:"size:255"`
	Message string `gorm:"type:text"`
	Status  string `gorm:"size:10;default:pending;index:idx_notif_user_status,priority:2"`

	SentAt    *time.Time
	ReadAt    *time.Time
	ClickedAt *time.Time

	CreatedAt time.Time `gorm:"index"`
}

func (n *Notification) MarkRead(now time.Time) {
	if n.Status == NotificationRead || n.Status == NotificationClicked {
		return
	}
	n.Status = NotificationRead
	n.ReadAt = &now
}

// BreakReminder is a pending nudge tied to a timer interval, snoozable by the
// user and subject to the smart-interruption decision.
type BreakReminder struct {
	ID            uint  `gorm:"primaryKey"`
	UserIDRef     uint  `gorm:"index"`
	IntervalIDRef *uint `gorm:"index"`

	ScheduledFor time.Time `gorm:"index"`
	SnoozedUntil *time.Time
	Dismissed    bool
	DeliveredAt  *time.Time

	CreatedAt time.Time
}

// Snooze pushes the reminder forward by the given number of minutes.
func (r *BreakReminder) Snooze(now time.Time, minutes uint) {
	if minutes == 0 {
		minutes = 5
	}
	until := now.Add(time.Duration(minutes) * time.Minute)
	r.SnoozedUntil = &until
}

type NotificationPreference struct {
	ID        uint `gorm:"primaryKey"`
	UserIDRef uint `gorm:"uniqueIndex"`

	BreakRemindersEnabled bool `gorm:"default:true"`
	DailySummaryEnabled   bool `gorm:"default:true"`
	WeeklyReportEnabled   bool `gorm:"default:true"`
	AchievementsEnabled   bool `gorm:"default:true"`
	MarketingEnabled      bool

	QuietHoursStart string `gorm:"size:5"` // "22:00"
	QuietHoursEnd   string `gorm:"size:5"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
