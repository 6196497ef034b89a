package timer

import (
	"time"

	"github.com/eyerest/eyerest_backend/internal/models"
)

// DayStats is one day's row in the statistics response.
type DayStats struct {
	Date               string  `json:"date"`
	WorkMinutes        uint    `json:"work_minutes"`
	IntervalsCompleted uint    `json:"intervals_completed"`
	BreaksTaken        uint    `json:"breaks_taken"`
	Sessions           uint    `json:"sessions"`
	ComplianceRate     float64 `json:"compliance_rate"`
}

// PeriodStatistics aggregates daily stats for the trailing N days.
type PeriodStatistics struct {
	Days             int        `json:"days"`
	DateRange        string     `json:"date_range"`
	Daily            []DayStats `json:"daily"`
	TotalWorkMinutes uint       `json:"total_work_minutes"`
	TotalIntervals   uint       `json:"total_intervals"`
	TotalBreaks      uint       `json:"total_breaks"`
	TotalSessions    uint       `json:"total_sessions"`
	AvgCompliance    float64    `json:"avg_compliance"`
}

func (s *Service) GetPeriodStatistics(user *models.User, days int) (*PeriodStatistics, error) {
	if days <= 0 {
		days = 7
	}
	now := time.Now().UTC()
	end := userToday(user, now)
	start := userToday(user, now.AddDate(0, 0, -days))

	var rows []models.DailyStats
	if err := s.DB.Where("user_id_ref = ? AND date >= ? AND date <= ?", user.ID, start, end).
		Order("date").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := PeriodStatistics{
		Days:      days,
		DateRange: start + " to " + end,
	}
	var totalBreaks, compliantBreaks uint
	for _, r := range rows {
		out.Daily = append(out.Daily, DayStats{
			Date:               r.Date,
			WorkMinutes:        r.TotalWorkMinutes,
			IntervalsCompleted: r.TotalIntervalsCompleted,
			BreaksTaken:        r.TotalBreaksTaken,
			Sessions:           r.TotalSessions,
			ComplianceRate:     r.ComplianceRate(),
		})
		out.TotalWorkMinutes += r.TotalWorkMinutes
		out.TotalIntervals += r.TotalIntervalsCompleted
		out.TotalBreaks += r.TotalBreaksTaken
		out.TotalSessions += r.TotalSessions
		totalBreaks += r.TotalBreaksTaken
		compliantBreaks += r.BreaksCompliant
	}
	if totalBreaks > 0 {
		out.AvgCompliance = float64(compliantBreaks) / float64(totalBreaks) * 100
	}
	return &out, nil
}

// weekBounds returns the Monday and Sunday of the week containing date.
func weekBounds(date string) (string, string, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", "", err
	}
	offset := (int(t.Weekday()) + 6) % 7
	monday := t.AddDate(0, 0, -offset)
	return monday.Format("2006-01-02"), monday.AddDate(0, 0, 6).Format("2006-01-02"), nil
}

// rollupWeeklyStats recomputes the weekly aggregate containing the given day
// from its daily rows and upserts the row powering the weekly report.
func (s *Service) rollupWeeklyStats(user *models.User, today string) error {
	weekStart, weekEnd, err := weekBounds(today)
	if err != nil {
		return err
	}

	var rows []models.DailyStats
	if err := s.DB.Where("user_id_ref = ? AND date >= ? AND date <= ?", user.ID, weekStart, weekEnd).
		Find(&rows).Error; err != nil {
		return err
	}

	weekly := models.WeeklyStats{UserIDRef: user.ID, WeekStartDate: weekStart}
	if err := s.DB.Where(models.WeeklyStats{UserIDRef: user.ID, WeekStartDate: weekStart}).
		FirstOrCreate(&weekly).Error; err != nil {
		return err
	}

	weekly.WeekEndDate = weekEnd
	weekly.TotalWorkMinutes = 0
	weekly.TotalIntervalsCompleted = 0
	weekly.TotalBreaksTaken = 0
	weekly.TotalSessions = 0
	weekly.ActiveDays = 0
	weekly.TotalBreaksCompliant = 0
	for _, r := range rows {
		weekly.TotalWorkMinutes += r.TotalWorkMinutes
		weekly.TotalIntervalsCompleted += r.TotalIntervalsCompleted
		weekly.TotalBreaksTaken += r.TotalBreaksTaken
		weekly.TotalSessions += r.TotalSessions
		weekly.TotalBreaksCompliant += r.BreaksCompliant
		if r.TotalSessions > 0 {
			weekly.ActiveDays++
		}
	}
	if weekly.ActiveDays > 0 {
		weekly.AverageDailyWorkMinutes = float64(weekly.TotalWorkMinutes) / float64(weekly.ActiveDays)
		weekly.AverageDailyBreaks = float64(weekly.TotalBreaksTaken) / float64(weekly.ActiveDays)
	}
	if weekly.TotalBreaksTaken > 0 {
		weekly.WeeklyComplianceRate = float64(weekly.TotalBreaksCompliant) / float64(weekly.TotalBreaksTaken) * 100
	}
	return s.DB.Save(&weekly).Error
}

// RecentSessions returns the user's most recent sessions, newest first.
func (s *Service) RecentSessions(user *models.User, limit int) ([]models.TimerSession, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	var sessions []models.TimerSession
	err := s.DB.Where("user_id_ref = ?", user.ID).
		Order("start_time DESC").Limit(limit).Find(&sessions).Error
	return sessions, err
}
