package timer

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/gamification"
	"github.com/eyerest/eyerest_backend/internal/models"
)

// Defaults for users without stored settings.
const (
	DefaultWorkIntervalMinutes  = 20
	DefaultBreakDurationSeconds = 20
)

var (
	ErrSessionNotFound       = errors.New("no active timer session")
	ErrSessionAlreadyActive  = errors.New("an active session already exists")
	ErrSessionNotActive      = errors.New("session is not active")
	ErrIntervalNotFound      = errors.New("no active interval")
	ErrIntervalState         = errors.New("interval is not in a valid state")
	ErrDailyLimitReached     = errors.New("daily interval limit reached")
	ErrBreakAlreadyCompleted = errors.New("break is already completed")
	ErrBreakNotFound         = errors.New("break not found")
)

// FeedPublisher pushes public activity entries to live dashboards. Nil
// publishers are allowed; feed delivery is best effort.
type FeedPublisher interface {
	Publish(entry models.LiveActivityFeed)
}

// Service owns the timer session lifecycle: sessions, intervals, breaks,
// daily stats and streaks.
type Service struct {
	DB           *gorm.DB
	Rewards      *gamification.Service
	Feed         FeedPublisher
	FreeDailyCap uint
}

func NewService(db *gorm.DB, rewards *gamification.Service, feed FeedPublisher, freeDailyCap uint) *Service {
	if freeDailyCap == 0 {
		freeDailyCap = 6
	}
	return &Service{DB: db, Rewards: rewards, Feed: feed, FreeDailyCap: freeDailyCap}
}

// userToday formats today's date in the user's timezone.
func userToday(user *models.User, now time.Time) string {
	loc, err := time.LoadLocation(user.Timezone)
	if err != nil || user.Timezone == "" {
		loc = time.UTC
	}
	return now.In(loc).Format("2006-01-02")
}

func (s *Service) ActiveSession(user *models.User) (*models.TimerSession, error) {
	var session models.TimerSession
	err := s.DB.Where("user_id_ref = ? AND is_active = ?", user.ID, true).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Service) activeInterval(session *models.TimerSession) (*models.TimerInterval, error) {
	var interval models.TimerInterval
	err := s.DB.Where("session_id_ref = ? AND status = ?", session.ID, models.IntervalActive).
		Order("interval_number DESC").First(&interval).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIntervalNotFound
	}
	if err != nil {
		return nil, err
	}
	return &interval, nil
}

// intervalsToday counts work intervals started on the user's current day.
func (s *Service) intervalsToday(user *models.User, now time.Time) (uint, error) {
	loc, err := time.LoadLocation(user.Timezone)
	if err != nil || user.Timezone == "" {
		loc = time.UTC
	}
	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	var count int64
	err = s.DB.Model(&models.TimerInterval{}).
		Joins("JOIN timer_sessions ON timer_sessions.id = timer_intervals.session_id_ref").
		Where("timer_sessions.user_id_ref = ? AND timer_intervals.start_time >= ?", user.ID, dayStart.UTC()).
		Count(&count).Error
	return uint(count), err
}

// CheckDailyLimit enforces the free-tier interval cap. Premium is unlimited.
func (s *Service) CheckDailyLimit(user *models.User, now time.Time) (uint, error) {
	if user.IsPremium(now) {
		return 0, nil
	}
	count, err := s.intervalsToday(user, now)
	if err != nil {
		return 0, err
	}
	if count >= s.FreeDailyCap {
		return count, ErrDailyLimitReached
	}
	return count, nil
}

// StartSession opens a new session with its first interval. Only one active
// session per user is allowed.
func (s *Service) StartSession(user *models.User) (*models.TimerSession, error) {
	now := time.Now().UTC()

	if _, err := s.CheckDailyLimit(user, now); err != nil {
		return nil, err
	}
	if existing, err := s.ActiveSession(user); err == nil && existing != nil {
		return nil, ErrSessionAlreadyActive
	} else if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}

	workMinutes := uint(DefaultWorkIntervalMinutes)
	breakSeconds := uint(DefaultBreakDurationSeconds)
	var settings models.UserTimerSettings
	if err := s.DB.Where("user_id_ref = ?", user.ID).First(&settings).Error; err == nil {
		if settings.WorkIntervalMinutes > 0 {
			workMinutes = settings.WorkIntervalMinutes
		}
		if settings.BreakDurationSeconds > 0 {
			breakSeconds = settings.BreakDurationSeconds
		}
	}

	session := models.TimerSession{
		UserIDRef:            user.ID,
		StartTime:            now,
		IsActive:             true,
		WorkIntervalMinutes:  workMinutes,
		BreakDurationSeconds: breakSeconds,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&session).Error; err != nil {
			return err
		}
		first := models.TimerInterval{
			SessionIDRef:   session.ID,
			IntervalNumber: 1,
			StartTime:      now,
			Status:         models.IntervalActive,
		}
		if err := tx.Create(&first).Error; err != nil {
			return err
		}
		return scheduleReminder(tx, user.ID, &session, &first)
	})
	if err != nil {
		return nil, err
	}

	s.trackActivity(user, models.ActivitySessionStarted, map[string]any{
		"session_id":      session.ID,
		"interval_number": 1,
	})
	slog.Info("timer session started", "user", user.UserID, "session_id", session.ID)
	return &session, nil
}

// scheduleReminder queues a break nudge for when the interval's work period
// elapses.
func scheduleReminder(tx *gorm.DB, userID uint, session *models.TimerSession, interval *models.TimerInterval) error {
	due := interval.StartTime.Add(time.Duration(session.WorkIntervalMinutes) * time.Minute)
	reminder := models.BreakReminder{
		UserIDRef:     userID,
		IntervalIDRef: &interval.ID,
		ScheduledFor:  due,
	}
	return tx.Create(&reminder).Error
}

// EndSummary reports totals produced when a session is closed.
type EndSummary struct {
	SessionDurationMinutes uint                        `json:"session_duration"`
	IntervalsCompleted     uint                        `json:"intervals_completed"`
	BreaksTaken            uint                        `json:"breaks_taken"`
	WorkMinutes            uint                        `json:"work_minutes"`
	ComplianceRate         float64                     `json:"compliance_rate"`
	CurrentStreak          uint                        `json:"current_streak"`
	BestStreak             uint                        `json:"best_streak"`
	Gamification           *gamification.RewardSummary `json:"gamification,omitempty"`
}

// EndSession closes the session, rolls its totals into daily stats and
// streaks, and awards gamification rewards to premium users.
func (s *Service) EndSession(user *models.User, session *models.TimerSession) (*EndSummary, error) {
	if !session.IsActive {
		return nil, ErrSessionNotActive
	}
	now := time.Now().UTC()

	session.EndTime = &now
	session.IsActive = false

	var completed int64
	s.DB.Model(&models.TimerInterval{}).
		Where("session_id_ref = ? AND status = ?", session.ID, models.IntervalCompleted).
		Count(&completed)
	session.TotalIntervalsCompleted = uint(completed)
	session.TotalWorkMinutes = session.DurationMinutes(now)

	var breaks int64
	s.DB.Model(&models.BreakRecord{}).Where("session_id_ref = ?", session.ID).Count(&breaks)
	session.TotalBreaksTaken = uint(breaks)

	if err := s.DB.Save(session).Error; err != nil {
		return nil, err
	}

	s.DB.Model(&models.BreakReminder{}).
		Where("user_id_ref = ? AND dismissed = ? AND delivered_at IS NULL", user.ID, false).
		Update("dismissed", true)

	today := userToday(user, now)
	daily, err := s.updateDailyStats(user, session, today)
	if err != nil {
		return nil, err
	}
	if err := s.rollupWeeklyStats(user, today); err != nil {
		slog.Warn("weekly stats rollup failed", "user", user.UserID, "error", err)
	}

	streak, err := s.Rewards.UpdateStreak(user, session, today)
	if err != nil {
		return nil, err
	}

	summary := EndSummary{
		SessionDurationMinutes: session.DurationMinutes(now),
		IntervalsCompleted:     session.TotalIntervalsCompleted,
		BreaksTaken:            session.TotalBreaksTaken,
		WorkMinutes:            session.TotalWorkMinutes,
		ComplianceRate:         daily.ComplianceRate(),
		CurrentStreak:          streak.CurrentDailyStreak,
		BestStreak:             streak.BestDailyStreak,
	}

	if user.IsPremium(now) {
		rewards, err := s.Rewards.AwardSessionCompletion(user, session)
		if err != nil {
			slog.Warn("gamification rewards failed", "user", user.UserID, "error", err)
		} else {
			summary.Gamification = &rewards
		}
	}

	s.trackActivity(user, models.ActivitySessionEnded, map[string]any{
		"session_id":          session.ID,
		"session_duration":    summary.SessionDurationMinutes,
		"intervals_completed": summary.IntervalsCompleted,
		"breaks_taken":        summary.BreaksTaken,
	})
	slog.Info("timer session ended", "user", user.UserID, "session_id", session.ID,
		"intervals", summary.IntervalsCompleted)
	return &summary, nil
}

// SyncState is the current session snapshot for frontend synchronization.
type SyncState struct {
	SessionActive            bool   `json:"session_active"`
	SessionID                uint   `json:"session_id,omitempty"`
	IntervalID               uint   `json:"interval_id,omitempty"`
	IntervalNumber           uint   `json:"interval_number,omitempty"`
	IntervalElapsedSeconds   int    `json:"interval_elapsed_seconds"`
	IntervalRemainingSeconds int    `json:"interval_remaining_seconds"`
	IntervalDurationMinutes  uint   `json:"interval_duration_minutes,omitempty"`
	TotalIntervalsCompleted  uint   `json:"total_intervals_completed"`
	TotalBreaksTaken         uint   `json:"total_breaks_taken"`
	BreakDurationSeconds     uint   `json:"break_duration_seconds,omitempty"`
	Message                  string `json:"message,omitempty"`
}

func (s *Service) Sync(session *models.TimerSession) SyncState {
	if !session.IsActive {
		return SyncState{SessionID: session.ID, Message: "session has ended"}
	}
	state := SyncState{
		SessionActive:           true,
		SessionID:               session.ID,
		TotalIntervalsCompleted: session.TotalIntervalsCompleted,
		TotalBreaksTaken:        session.TotalBreaksTaken,
		BreakDurationSeconds:    session.BreakDurationSeconds,
	}

	interval, err := s.activeInterval(session)
	if err != nil {
		state.Message = "no active interval"
		return state
	}

	elapsed := int(time.Since(interval.StartTime).Seconds())
	remaining := int(session.WorkIntervalMinutes)*60 - elapsed
	if remaining < 0 {
		remaining = 0
	}
	state.IntervalID = interval.ID
	state.IntervalNumber = interval.IntervalNumber
	state.IntervalElapsedSeconds = elapsed
	state.IntervalRemainingSeconds = remaining
	state.IntervalDurationMinutes = session.WorkIntervalMinutes
	return state
}

// StartBreak records a break against the session's active interval.
func (s *Service) StartBreak(user *models.User, lookedAtDistance bool) (*models.BreakRecord, error) {
	session, err := s.ActiveSession(user)
	if err != nil {
		return nil, err
	}
	interval, err := s.activeInterval(session)
	if err != nil {
		return nil, err
	}
	if interval.Status != models.IntervalActive {
		return nil, ErrIntervalState
	}

	duration := session.BreakDurationSeconds
	if duration == 0 {
		duration = DefaultBreakDurationSeconds
	}

	record := models.BreakRecord{
		UserIDRef:            user.ID,
		SessionIDRef:         session.ID,
		IntervalIDRef:        interval.ID,
		BreakStartTime:       time.Now().UTC(),
		BreakDurationSeconds: duration,
		LookedAtDistance:     lookedAtDistance,
		BreakType:            models.BreakScheduled,
	}
	if err := s.DB.Create(&record).Error; err != nil {
		return nil, err
	}

	// The interval's reminder is moot once the break actually starts.
	s.DB.Model(&models.BreakReminder{}).
		Where("interval_id_ref = ? AND delivered_at IS NULL", interval.ID).
		Update("delivered_at", record.BreakStartTime)

	s.trackActivity(user, models.ActivityBreakStarted, map[string]any{
		"session_id":       session.ID,
		"interval_number":  interval.IntervalNumber,
		"break_id":         record.ID,
		"duration_seconds": duration,
	})
	return &record, nil
}

// BreakResult reports break completion and the interval handoff.
type BreakResult struct {
	BreakID            uint   `json:"break_id"`
	DurationSeconds    uint   `json:"duration_seconds"`
	Compliant          bool   `json:"is_compliant"`
	LookedAtDistance   bool   `json:"looked_at_distance"`
	ExperienceGained   uint   `json:"experience_gained"`
	NextIntervalID     uint   `json:"next_interval_id,omitempty"`
	NextIntervalNumber uint   `json:"next_interval_number,omitempty"`
	Message            string `json:"message"`
}

// CompleteBreak closes the break, completes its interval, and opens the next
// interval while the session is still active. Compliant breaks earn premium
// users a small XP bonus.
func (s *Service) CompleteBreak(user *models.User, breakID uint, lookedAtDistance bool) (*BreakResult, error) {
	var record models.BreakRecord
	err := s.DB.Where("id = ? AND user_id_ref = ?", breakID, user.ID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBreakNotFound
	}
	if err != nil {
		return nil, err
	}
	if record.BreakCompleted {
		return nil, ErrBreakAlreadyCompleted
	}

	now := time.Now().UTC()
	record.BreakEndTime = &now
	record.BreakDurationSeconds = uint(now.Sub(record.BreakStartTime).Seconds())
	record.LookedAtDistance = lookedAtDistance
	record.BreakCompleted = true

	var session models.TimerSession
	if err := s.DB.First(&session, record.SessionIDRef).Error; err != nil {
		return nil, err
	}
	var interval models.TimerInterval
	if err := s.DB.First(&interval, record.IntervalIDRef).Error; err != nil {
		return nil, err
	}

	result := &BreakResult{
		BreakID:          record.ID,
		LookedAtDistance: lookedAtDistance,
		Message:          "break completed",
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&record).Error; err != nil {
			return err
		}

		interval.Status = models.IntervalCompleted
		interval.EndTime = &now
		if err := tx.Save(&interval).Error; err != nil {
			return err
		}

		var breaks int64
		tx.Model(&models.BreakRecord{}).Where("session_id_ref = ?", session.ID).Count(&breaks)
		session.TotalBreaksTaken = uint(breaks)

		var completed int64
		tx.Model(&models.TimerInterval{}).
			Where("session_id_ref = ? AND status = ?", session.ID, models.IntervalCompleted).
			Count(&completed)
		session.TotalIntervalsCompleted = uint(completed)

		if err := tx.Save(&session).Error; err != nil {
			return err
		}

		if session.IsActive {
			next := models.TimerInterval{
				SessionIDRef:   session.ID,
				IntervalNumber: interval.IntervalNumber + 1,
				StartTime:      now,
				Status:         models.IntervalActive,
			}
			if err := tx.Create(&next).Error; err != nil {
				return err
			}
			if err := scheduleReminder(tx, user.ID, &session, &next); err != nil {
				return err
			}
			result.NextIntervalID = next.ID
			result.NextIntervalNumber = next.IntervalNumber
			result.Message = "break completed, starting next interval"
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.DurationSeconds = record.BreakDurationSeconds
	result.Compliant = record.IsCompliant()

	if result.Compliant && user.IsPremium(now) {
		const complianceXP = 5
		if _, err := s.Rewards.AddExperience(user, complianceXP); err == nil {
			result.ExperienceGained = complianceXP
		}
	}

	s.trackActivity(user, models.ActivityBreakTaken, map[string]any{
		"session_id":       session.ID,
		"interval_number":  interval.IntervalNumber,
		"break_id":         record.ID,
		"duration_seconds": record.BreakDurationSeconds,
		"compliant":        result.Compliant,
	})
	return result, nil
}

func (s *Service) updateDailyStats(user *models.User, session *models.TimerSession, today string) (*models.DailyStats, error) {
	var stats models.DailyStats
	if err := s.DB.Where(models.DailyStats{UserIDRef: user.ID, Date: today}).
		FirstOrCreate(&stats).Error; err != nil {
		return nil, err
	}

	stats.TotalWorkMinutes += session.TotalWorkMinutes
	stats.TotalIntervalsCompleted += session.TotalIntervalsCompleted
	stats.TotalBreaksTaken += session.TotalBreaksTaken
	stats.TotalSessions++

	var compliant int64
	s.DB.Model(&models.BreakRecord{}).
		Where("session_id_ref = ? AND break_completed = ? AND break_duration_seconds >= ? AND looked_at_distance = ?",
			session.ID, true, 20, true).
		Count(&compliant)
	stats.BreaksCompliant += uint(compliant)

	if stats.TotalBreaksTaken > 0 {
		stats.ProductivityScore = float64(stats.BreaksCompliant) / float64(stats.TotalBreaksTaken) * 100
	}

	if err := s.DB.Save(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

// trackActivity records a feed entry and pushes it to the live hub. Activity
// tracking is non-critical and never fails the calling operation.
func (s *Service) trackActivity(user *models.User, activityType string, data map[string]any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	entry := models.LiveActivityFeed{
		UserIDRef:    user.ID,
		ActivityType: activityType,
		ActivityData: payload,
		IsPublic:     true,
	}
	if err := s.DB.Create(&entry).Error; err != nil {
		slog.Warn("activity feed write failed", "user", user.UserID, "type", activityType, "error", err)
		return
	}
	if s.Feed != nil {
		s.Feed.Publish(entry)
	}
}
