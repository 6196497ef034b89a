package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eyerest/eyerest_backend/internal/middleware"
	"github.com/eyerest/eyerest_backend/internal/timer"
)

type TimerController struct {
	Timer *timer.Service
}

func (t *TimerController) StartSession(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	session, err := t.Timer.StartSession(user)
	switch {
	case errors.Is(err, timer.ErrDailyLimitReached):
		c.JSON(http.StatusForbidden, gin.H{
			"error":       "daily limit reached",
			"message":     "free accounts are limited to a fixed number of work intervals per day",
			"daily_limit": t.Timer.FreeDailyCap,
			"upgrade_url": "/api/v1/subscriptions/plans",
		})
		return
	case errors.Is(err, timer.ErrSessionAlreadyActive):
		c.JSON(http.StatusConflict, gin.H{"error": "an active session already exists"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id":             session.ID,
		"start_time":             session.StartTime,
		"work_interval_minutes":  session.WorkIntervalMinutes,
		"break_duration_seconds": session.BreakDurationSeconds,
		"interval_number":        1,
	})
}

func (t *TimerController) EndSession(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	session, err := t.Timer.ActiveSession(user)
	if errors.Is(err, timer.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	summary, err := t.Timer.EndSession(user, session)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (t *TimerController) Sync(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	session, err := t.Timer.ActiveSession(user)
	if errors.Is(err, timer.ErrSessionNotFound) {
		c.JSON(http.StatusOK, gin.H{"session_active": false})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, t.Timer.Sync(session))
}

type breakStartRequest struct {
	LookedAtDistance bool `json:"looked_at_distance"`
}

func (t *TimerController) StartBreak(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req breakStartRequest
	_ = c.ShouldBindJSON(&req)

	record, err := t.Timer.StartBreak(user, req.LookedAtDistance)
	switch {
	case errors.Is(err, timer.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	case errors.Is(err, timer.ErrIntervalNotFound), errors.Is(err, timer.ErrIntervalState):
		c.JSON(http.StatusConflict, gin.H{"error": "no interval ready for a break"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"break_id":               record.ID,
		"break_start_time":       record.BreakStartTime,
		"break_duration_seconds": record.BreakDurationSeconds,
		"break_type":             record.BreakType,
	})
}

type breakCompleteRequest struct {
	BreakID          uint `json:"break_id" binding:"required"`
	LookedAtDistance bool `json:"looked_at_distance"`
}

func (t *TimerController) CompleteBreak(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req breakCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := t.Timer.CompleteBreak(user, req.BreakID, req.LookedAtDistance)
	switch {
	case errors.Is(err, timer.ErrBreakNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "break not found"})
		return
	case errors.Is(err, timer.ErrBreakAlreadyCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": "break is already completed"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (t *TimerController) GetSettings(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	settings, err := t.Timer.GetOrCreateSettings(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (t *TimerController) UpdateSettings(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var patch timer.SettingsUpdate
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := t.Timer.UpdateSettings(user, patch)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (t *TimerController) Statistics(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	stats, err := t.Timer.GetPeriodStatistics(user, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (t *TimerController) RecentSessions(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	sessions, err := t.Timer.RecentSessions(user, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	out := make([]gin.H, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, gin.H{
			"session_id":          s.ID,
			"start_time":          s.StartTime,
			"end_time":            s.EndTime,
			"is_active":           s.IsActive,
			"duration_minutes":    s.DurationMinutes(now),
			"intervals_completed": s.TotalIntervalsCompleted,
			"breaks_taken":        s.TotalBreaksTaken,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out, "count": len(out)})
}

// DailyLimit reports today's usage for the free-tier limit banner.
func (t *TimerController) DailyLimit(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	now := time.Now().UTC()

	if user.IsPremium(now) {
		c.JSON(http.StatusOK, gin.H{"unlimited": true})
		return
	}

	used, err := t.Timer.CheckDailyLimit(user, now)
	if err != nil && !errors.Is(err, timer.ErrDailyLimitReached) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	remaining := int(t.Timer.FreeDailyCap) - int(used)
	if remaining < 0 {
		remaining = 0
	}
	c.JSON(http.StatusOK, gin.H{
		"unlimited":       false,
		"daily_limit":     t.Timer.FreeDailyCap,
		"intervals_used":  used,
		"remaining_today": remaining,
	})
}
