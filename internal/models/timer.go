package models

import "time"

// Interval statuses
const (
	IntervalActive    = "active"
	IntervalCompleted = "completed"
	IntervalSkipped   = "skipped"
	IntervalPaused    = "paused"
)

// Break types
const (
	BreakScheduled = "scheduled"
	BreakManual    = "manual"
	BreakExtended  = "extended"
)

// TimerSession is one continuous work session following the 20-20-20 rule:
// work intervals punctuated by short distance-look breaks.
type TimerSession struct {
	ID        uint `gorm:"primaryKey"`
	UserIDRef uint `gorm:"index:idx_session_user_start,priority:1;index:idx_session_user_active,priority:1"`

	StartTime time.Time `gorm:"index:idx_session_user_start,priority:2"`
	EndTime   *time.Time
	IsActive  bool `gorm:"index:idx_session_user_active,priority:2"`

	WorkIntervalMinutes  uint `gorm:"default:20"`
	BreakDurationSeconds uint `gorm:"default:20"`

	TotalIntervalsCompleted uint
	TotalBreaksTaken        uint
	TotalWorkMinutes        uint

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DurationMinutes is the session length up to its end time, or now when the
// session is still running.
func (s *TimerSession) DurationMinutes(now time.Time) uint {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	d := end.Sub(s.StartTime)
	if d < 0 {
		return 0
	}
	return uint(d.Minutes())
}

// TimerInterval is a single numbered work interval inside a session.
type TimerInterval struct {
	ID           uint `gorm:"primaryKey"`
	SessionIDRef uint `gorm:"uniqueIndex:idx_interval_session_number,priority:1;index"`

	IntervalNumber uint `gorm:"uniqueIndex:idx_interval_session_number,priority:2"`
	StartTime      time.Time
	EndTime        *time.Time
	Status         string `gorm:"size:10;default:active;index"`

	ReminderSent   bool
	ReminderSentAt *time.Time

	CreatedAt time.Time
}

// BreakRecord is one break taken during an interval.
type BreakRecord struct {
	ID            uint `gorm:"primaryKey"`
	UserIDRef     uint `gorm:"index"`
	SessionIDRef  uint `gorm:"index"`
	IntervalIDRef uint `gorm:"index"`

	BreakStartTime time.Time
	BreakEndTime   *time.Time

	BreakDurationSeconds uint
	LookedAtDistance     bool
	BreakCompleted       bool
	BreakType            string `gorm:"size:10;default:scheduled"`

	CreatedAt time.Time
}

// IsCompliant reports whether the break satisfies the 20-20-20 rule: at least
// twenty seconds spent looking at something twenty feet away.
func (b *BreakRecord) IsCompliant() bool {
	return b.BreakDurationSeconds >= 20 && b.LookedAtDistance
}

// Notification sound types
const (
	SoundGentle = "gentle"
	SoundChime  = "chime"
	SoundBeep   = "beep"
	SoundBell   = "bell"
)

// UserTimerSettings holds per-user timer customization.
type UserTimerSettings struct {
	ID        uint `gorm:"primaryKey"`
	UserIDRef uint `gorm:"uniqueIndex"`

	WorkIntervalMinutes  uint `gorm:"default:20"`
	BreakDurationSeconds uint `gorm:"default:20"`
	LongBreakMinutes     uint `gorm:"default:5"`

	SoundNotification     bool `gorm:"default:true"`
	DesktopNotification   bool `gorm:"default:true"`
	EmailNotification     bool
	NotificationSoundType string  `gorm:"size:10;default:gentle"`
	SoundVolume           float64 `gorm:"default:0.5"`

	ShowProgressBar   bool `gorm:"default:true"`
	ShowTimeRemaining bool `gorm:"default:true"`
	DarkMode          bool

	// Premium-only
	AutoStartBreak      bool
	AutoStartWork       bool
	CustomBreakMessages string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func ValidSoundType(s string) bool {
	switch s {
	case SoundGentle, SoundChime, SoundBeep, SoundBell:
		return true
	}
	return false
}
