package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/middleware"
	"github.com/eyerest/eyerest_backend/internal/models"
)

type AnalyticsController struct {
	DB *gorm.DB
}

// Dashboard summarizes today plus the trailing week for the main screen.
func (a *AnalyticsController) Dashboard(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	now := time.Now().UTC()

	loc, err := time.LoadLocation(user.Timezone)
	if err != nil || user.Timezone == "" {
		loc = time.UTC
	}
	today := now.In(loc).Format("2006-01-02")

	var daily models.DailyStats
	a.DB.Where("user_id_ref = ? AND date = ?", user.ID, today).First(&daily)

	weekAgo := now.In(loc).AddDate(0, 0, -6).Format("2006-01-02")
	var week []models.DailyStats
	a.DB.Where("user_id_ref = ? AND date >= ?", user.ID, weekAgo).
		Order("date").Find(&week)

	var weekWork, weekBreaks, weekCompliant, weekSessions uint
	for _, d := range week {
		weekWork += d.TotalWorkMinutes
		weekBreaks += d.TotalBreaksTaken
		weekCompliant += d.BreaksCompliant
		weekSessions += d.TotalSessions
	}
	weekCompliance := 0.0
	if weekBreaks > 0 {
		weekCompliance = float64(weekCompliant) / float64(weekBreaks) * 100
	}

	var streak models.UserStreakData
	a.DB.Where("user_id_ref = ?", user.ID).First(&streak)

	c.JSON(http.StatusOK, gin.H{
		"today": gin.H{
			"date":                today,
			"work_minutes":        daily.TotalWorkMinutes,
			"intervals_completed": daily.TotalIntervalsCompleted,
			"breaks_taken":        daily.TotalBreaksTaken,
			"breaks_compliant":    daily.BreaksCompliant,
			"compliance_rate":     daily.ComplianceRate(),
			"sessions":            daily.TotalSessions,
		},
		"week": gin.H{
			"work_minutes":    weekWork,
			"breaks_taken":    weekBreaks,
			"compliance_rate": weekCompliance,
			"sessions":        weekSessions,
			"active_days":     len(week),
		},
		"streak": gin.H{
			"current": streak.CurrentDailyStreak,
			"best":    streak.BestDailyStreak,
		},
	})
}

// WeeklyReport returns per-week aggregates for the trend chart.
func (a *AnalyticsController) WeeklyReport(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	weeks, _ := strconv.Atoi(c.DefaultQuery("weeks", "4"))
	if weeks < 1 || weeks > 26 {
		weeks = 4
	}

	var rows []models.WeeklyStats
	if err := a.DB.Where("user_id_ref = ?", user.ID).
		Order("week_start_date DESC").Limit(weeks).Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"weeks": rows})
}

type trackEventRequest struct {
	EventType string         `json:"event_type" binding:"required"`
	EventData map[string]any `json:"event_data"`
	PageURL   string         `json:"page_url"`
}

// TrackEvent records a behavior event; failures are deliberately swallowed so
// analytics never break the frontend.
func (a *AnalyticsController) TrackEvent(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req trackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload, _ := json.Marshal(req.EventData)
	event := models.UserBehaviorEvent{
		UserIDRef: user.ID,
		EventType: req.EventType,
		EventData: payload,
		PageURL:   req.PageURL,
	}
	a.DB.Create(&event)

	a.touchUserSession(c, user)

	c.JSON(http.StatusAccepted, gin.H{"message": "tracked"})
}

// touchUserSession upserts the engagement-session row keyed by a client
// cookie, creating one when absent.
func (a *AnalyticsController) touchUserSession(c *gin.Context, user *models.User) {
	key, err := c.Cookie("er_session")
	now := time.Now().UTC()
	if err != nil || key == "" {
		key = uuid.NewString()
		c.SetCookie("er_session", key, 86400, "/", "", false, true)
	}

	var session models.UserSession
	if a.DB.Where("session_key = ?", key).First(&session).Error != nil {
		session = models.UserSession{
			UserIDRef:  user.ID,
			SessionKey: key,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			StartedAt:  now,
		}
	}
	session.PagesViewed++
	session.LastActivity = now
	a.DB.Save(&session)
}

// RecentFeed returns the latest public activity entries for the live widget.
func (a *AnalyticsController) RecentFeed(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 50 {
		limit = 20
	}

	var entries []models.LiveActivityFeed
	if err := a.DB.Where("is_public = ?", true).
		Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		var data map[string]any
		_ = json.Unmarshal(e.ActivityData, &data)
		out = append(out, gin.H{
			"activity_type": e.ActivityType,
			"activity_data": data,
			"created_at":    e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"feed": out})
}

// RealtimeMetrics aggregates platform-wide activity for the admin dashboard.
func (a *AnalyticsController) RealtimeMetrics(c *gin.Context) {
	now := time.Now().UTC()
	fiveMinAgo := now.Add(-5 * time.Minute)
	hourAgo := now.Add(-time.Hour)
	dayAgo := now.Add(-24 * time.Hour)

	var activeSessions int64
	a.DB.Model(&models.TimerSession{}).Where("is_active = ?", true).Count(&activeSessions)

	var recentBreaks int64
	a.DB.Model(&models.BreakRecord{}).
		Where("break_start_time >= ?", fiveMinAgo).Count(&recentBreaks)

	var activeUsers int64
	a.DB.Model(&models.UserSession{}).
		Where("last_activity >= ?", hourAgo).Distinct("user_id_ref").Count(&activeUsers)

	var signupsToday int64
	a.DB.Model(&models.User{}).Where("created_at >= ?", dayAgo).Count(&signupsToday)

	var premiumUsers int64
	a.DB.Model(&models.User{}).
		Where("subscription_type = ?", models.SubscriptionPremium).Count(&premiumUsers)

	c.JSON(http.StatusOK, gin.H{
		"timestamp":             now,
		"active_timer_sessions": activeSessions,
		"breaks_last_5m":        recentBreaks,
		"active_users_hour":     activeUsers,
		"signups_24h":           signupsToday,
		"premium_users":         premiumUsers,
	})
}
