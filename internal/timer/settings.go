package timer

import (
	"time"

	"github.com/eyerest/eyerest_backend/internal/models"
)

// SettingsUpdate carries optional fields for a settings patch. Nil fields are
// left unchanged.
type SettingsUpdate struct {
	WorkIntervalMinutes  *uint    `json:"work_interval_minutes"`
	BreakDurationSeconds *uint    `json:"break_duration_seconds"`
	LongBreakMinutes     *uint    `json:"long_break_minutes"`
	SoundNotification    *bool    `json:"sound_notification"`
	DesktopNotification  *bool    `json:"desktop_notification"`
	EmailNotification    *bool    `json:"email_notification"`
	NotificationSound    *string  `json:"notification_sound_type"`
	SoundVolume          *float64 `json:"sound_volume"`
	ShowProgressBar      *bool    `json:"show_progress_bar"`
	ShowTimeRemaining    *bool    `json:"show_time_remaining"`
	DarkMode             *bool    `json:"dark_mode"`

	// Premium-only; ignored for free users
	AutoStartBreak      *bool   `json:"auto_start_break"`
	AutoStartWork       *bool   `json:"auto_start_work"`
	CustomBreakMessages *string `json:"custom_break_messages"`
}

func (s *Service) GetOrCreateSettings(user *models.User) (*models.UserTimerSettings, error) {
	var settings models.UserTimerSettings
	err := s.DB.Where(models.UserTimerSettings{UserIDRef: user.ID}).
		Attrs(models.UserTimerSettings{
			WorkIntervalMinutes:   DefaultWorkIntervalMinutes,
			BreakDurationSeconds:  DefaultBreakDurationSeconds,
			LongBreakMinutes:      5,
			SoundNotification:     true,
			DesktopNotification:   true,
			NotificationSoundType: models.SoundGentle,
			SoundVolume:           0.5,
			ShowProgressBar:       true,
			ShowTimeRemaining:     true,
		}).
		FirstOrCreate(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateSettings applies a patch with clamping; invalid sound types are
// dropped, volume is clamped into [0,1], premium fields are gated.
func (s *Service) UpdateSettings(user *models.User, patch SettingsUpdate) (*models.UserTimerSettings, error) {
	settings, err := s.GetOrCreateSettings(user)
	if err != nil {
		return nil, err
	}

	if patch.WorkIntervalMinutes != nil && *patch.WorkIntervalMinutes > 0 {
		settings.WorkIntervalMinutes = *patch.WorkIntervalMinutes
	}
	if patch.BreakDurationSeconds != nil && *patch.BreakDurationSeconds > 0 {
		settings.BreakDurationSeconds = *patch.BreakDurationSeconds
	}
	if patch.LongBreakMinutes != nil && *patch.LongBreakMinutes > 0 {
		settings.LongBreakMinutes = *patch.LongBreakMinutes
	}
	if patch.SoundNotification != nil {
		settings.SoundNotification = *patch.SoundNotification
	}
	if patch.DesktopNotification != nil {
		settings.DesktopNotification = *patch.DesktopNotification
	}
	if patch.EmailNotification != nil {
		settings.EmailNotification = *patch.EmailNotification
	}
	if patch.NotificationSound != nil && models.ValidSoundType(*patch.NotificationSound) {
		settings.NotificationSoundType = *patch.NotificationSound
	}
	if patch.SoundVolume != nil {
		v := *patch.SoundVolume
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		settings.SoundVolume = v
	}
	if patch.ShowProgressBar != nil {
		settings.ShowProgressBar = *patch.ShowProgressBar
	}
	if patch.ShowTimeRemaining != nil {
		settings.ShowTimeRemaining = *patch.ShowTimeRemaining
	}
	if patch.DarkMode != nil {
		settings.DarkMode = *patch.DarkMode
	}

	if user.IsPremium(time.Now().UTC()) {
		if patch.AutoStartBreak != nil {
			settings.AutoStartBreak = *patch.AutoStartBreak
		}
		if patch.AutoStartWork != nil {
			settings.AutoStartWork = *patch.AutoStartWork
		}
		if patch.CustomBreakMessages != nil {
			settings.CustomBreakMessages = *patch.CustomBreakMessages
		}
	}

	if err := s.DB.Save(settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}
