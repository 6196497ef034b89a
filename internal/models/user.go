package models

import (
	"time"
)

const (
	SubscriptionFree    = "free"
	SubscriptionPremium = "premium"
)

type User struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"uniqueIndex"`
	Email     string `gorm:"uniqueIndex"`
	Password  string
	FirstName string
	LastName  string
	IsAdmin   bool
	Verified  bool
	Active    bool

	// Subscription state, denormalized so the premium gate is one lookup.
	SubscriptionType      string `gorm:"size:20;default:free;index:idx_user_sub,priority:1"`
	StripeCustomerID      string `gorm:"size:100;index"`
	SubscriptionStartDate *time.Time
	SubscriptionEndDate   *time.Time `gorm:"index:idx_user_sub,priority:2"`

	// Notification preferences
	EmailNotifications bool `gorm:"default:true"`
	BreakReminders     bool `gorm:"default:true"`
	DailySummary       bool `gorm:"default:true"`
	WeeklyReport       bool `gorm:"default:true"`

	// Work schedule preferences
	WorkStartTime        string `gorm:"size:5"` // "09:00"
	WorkEndTime          string `gorm:"size:5"`
	BreakDurationSeconds uint   `gorm:"default:20"`
	ReminderSound        bool   `gorm:"default:true"`
	Timezone             string `gorm:"size:50;default:UTC"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

// IsPremium reports whether the user currently has premium access. A missing
// end date means the subscription runs until cancelled.
func (u *User) IsPremium(now time.Time) bool {
	if u.SubscriptionType != SubscriptionPremium {
		return false
	}
	if u.SubscriptionEndDate == nil {
		return true
	}
	return now.Before(*u.SubscriptionEndDate)
}

// UserProfile holds extended demographic and eye-health data.
type UserProfile struct {
	ID        uint `gorm:"primaryKey"`
	UserIDRef uint `gorm:"uniqueIndex"`

	Age                  *uint
	Occupation           string  `gorm:"size:100"`
	DailyScreenTimeHours float64 `gorm:"default:8"`

	WearsGlasses   bool
	HasEyeStrain   bool `gorm:"default:true"`
	LastEyeCheckup *time.Time

	TotalBreaksTaken       uint
	TotalScreenTimeMinutes uint
	LongestStreakDays      uint
	CurrentStreakDays      uint

	PreferredLanguage string `gorm:"size:10;default:en"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
