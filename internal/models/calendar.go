package models

import "time"

// Calendar provider names
const (
	ProviderGoogle   = "google"
	ProviderOutlook  = "outlook"
	ProviderApple    = "apple"
	ProviderExchange = "exchange"
	ProviderManual   = "manual"
)

// Interruption rules
const (
	RuleNever           = "never"            // never interrupt during meetings
	RuleLowPriority     = "low_priority"     // only low priority meetings may be interrupted
	RuleBeforeEnd       = "before_end"       // interrupt within 5 minutes of a meeting's end
	RuleBetweenMeetings = "between_meetings" // only interrupt between meetings
)

func ValidInterruptionRule(r string) bool {
	switch r {
	case RuleNever, RuleLowPriority, RuleBeforeEnd, RuleBetweenMeetings:
		return true
	}
	return false
}

type CalendarProvider struct {
	ID            uint   `gorm:"primaryKey"`
	Name          string `gorm:"size:20;uniqueIndex"`
	DisplayName   string `gorm:"size:100"`
	IsActive      bool   `gorm:"default:true"`
	RequiresOAuth bool   `gorm:"default:true"`
	APIEndpoint   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserCalendarConnection links a user to one provider account and carries the
// interruption preferences evaluated by the decision engine.
type UserCalendarConnection struct {
	ID            uint `gorm:"primaryKey"`
	UserIDRef     uint `gorm:"uniqueIndex:idx_conn_user_provider,priority:1"`
	ProviderIDRef uint `gorm:"uniqueIndex:idx_conn_user_provider,priority:2"`

	AccessToken    string `gorm:"type:text"`
	RefreshToken   string `gorm:"type:text"`
	TokenExpiresAt *time.Time

	CalendarID   string `gorm:"size:255"`
	CalendarName string `gorm:"size:255"`

	IsActive                 bool   `gorm:"default:true"`
	CheckBusyPeriods         bool   `gorm:"default:true"`
	RespectFocusTime         bool   `gorm:"default:true"`
	MinimumMeetingGapMinutes uint   `gorm:"default:5"`
	InterruptionRule         string `gorm:"size:20;default:between_meetings"`

	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastSyncAt *time.Time
}

// TokenExpired reports whether the stored access token is past its expiry.
func (c *UserCalendarConnection) TokenExpired(now time.Time) bool {
	if c.TokenExpiresAt == nil {
		return true
	}
	return !now.Before(*c.TokenExpiresAt)
}

// NeedsRefresh reports whether the token expires within the next ten minutes.
func (c *UserCalendarConnection) NeedsRefresh(now time.Time) bool {
	if c.TokenExpiresAt == nil {
		return true
	}
	return !now.Before(c.TokenExpiresAt.Add(-10 * time.Minute))
}

// ManualBusyBlock is a recurring weekly busy period for users without an OAuth
// calendar, keyed by weekday and wall-clock times in the user's timezone.
type ManualBusyBlock struct {
	ID              uint `gorm:"primaryKey"`
	ConnectionIDRef uint `gorm:"index"`

	Weekday   int    // 0=Sunday .. 6=Saturday
	StartTime string `gorm:"size:5"` // "13:00"
	EndTime   string `gorm:"size:5"`
	Title     string `gorm:"size:255"`

	CreatedAt time.Time
}

// OAuthState is a short-lived record tying an OAuth callback back to the
// user who started the flow.
type OAuthState struct {
	ID            uint   `gorm:"primaryKey"`
	State         string `gorm:"size:64;uniqueIndex"`
	UserIDRef     uint
	ProviderIDRef uint
	ExpiresAt     time.Time

	CreatedAt time.Time
}

// Interruption decisions
const (
	DecisionAllowed = "allowed"
	DecisionDelayed = "delayed"
	DecisionSkipped = "skipped"
)

// SmartInterruptionLog records every decision made by the interruption engine.
type SmartInterruptionLog struct {
	ID                uint `gorm:"primaryKey"`
	UserIDRef         uint `gorm:"index"`
	TimerSessionIDRef *uint

	ScheduledInterruptionTime time.Time
	Decision                  string `gorm:"size:10;index"`
	DelayedUntil              *time.Time
	Reason                    string `gorm:"type:text"`
	ContextData               []byte `gorm:"type:jsonb"`

	CreatedAt time.Time
}
