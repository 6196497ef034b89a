package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/calendars"
	"github.com/eyerest/eyerest_backend/internal/middleware"
	"github.com/eyerest/eyerest_backend/internal/models"
)

type CalendarController struct {
	DB      *gorm.DB
	OAuth   calendars.OAuthConfig
	Manager *calendars.Manager
}

func (cc *CalendarController) ListProviders(c *gin.Context) {
	var providers []models.CalendarProvider
	if err := cc.DB.Where("is_active = ?", true).Order("name").Find(&providers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"providers": providers})
}

func (cc *CalendarController) ListConnections(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var conns []models.UserCalendarConnection
	if err := cc.DB.Where("user_id_ref = ?", user.ID).Find(&conns).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	out := make([]gin.H, 0, len(conns))
	for _, conn := range conns {
		var provider models.CalendarProvider
		cc.DB.First(&provider, conn.ProviderIDRef)
		out = append(out, gin.H{
			"connection_id":     conn.ID,
			"provider":          provider.Name,
			"calendar_name":     conn.CalendarName,
			"is_active":         conn.IsActive,
			"interruption_rule": conn.InterruptionRule,
			"token_expired":     provider.RequiresOAuth && conn.TokenExpired(now),
			"last_sync_at":      conn.LastSyncAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"connections": out})
}

type connectionUpdateRequest struct {
	IsActive                 *bool   `json:"is_active"`
	CheckBusyPeriods         *bool   `json:"check_busy_periods"`
	RespectFocusTime         *bool   `json:"respect_focus_time"`
	MinimumMeetingGapMinutes *uint   `json:"minimum_meeting_gap_minutes"`
	InterruptionRule         *string `json:"interruption_rule"`
}

func (cc *CalendarController) UpdateConnection(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection id"})
		return
	}

	var conn models.UserCalendarConnection
	if err := cc.DB.Where("id = ? AND user_id_ref = ?", id, user.ID).First(&conn).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
		return
	}

	var req connectionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.InterruptionRule != nil && !models.ValidInterruptionRule(*req.InterruptionRule) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown interruption rule"})
		return
	}

	updates := map[string]interface{}{}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.CheckBusyPeriods != nil {
		updates["check_busy_periods"] = *req.CheckBusyPeriods
	}
	if req.RespectFocusTime != nil {
		updates["respect_focus_time"] = *req.RespectFocusTime
	}
	if req.MinimumMeetingGapMinutes != nil {
		updates["minimum_meeting_gap_minutes"] = *req.MinimumMeetingGapMinutes
	}
	if req.InterruptionRule != nil {
		updates["interruption_rule"] = *req.InterruptionRule
	}
	if len(updates) > 0 {
		if err := cc.DB.Model(&conn).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "connection updated"})
}

func (cc *CalendarController) DeleteConnection(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection id"})
		return
	}

	var conn models.UserCalendarConnection
	if err := cc.DB.Where("id = ? AND user_id_ref = ?", id, user.ID).First(&conn).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
		return
	}

	err = cc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("connection_id_ref = ?", conn.ID).Delete(&models.ManualBusyBlock{}).Error; err != nil {
			return err
		}
		return tx.Delete(&conn).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "connection removed"})
}

// GoogleConnect begins the OAuth flow. The state carries the user id so the
// callback can attach tokens without an authenticated session.
func (cc *CalendarController) GoogleConnect(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var provider models.CalendarProvider
	if err := cc.DB.Where("name = ? AND is_active = ?", models.ProviderGoogle, true).First(&provider).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "google calendar is not available"})
		return
	}

	state := uuid.NewString()
	pending := models.OAuthState{
		State:         state,
		UserIDRef:     user.ID,
		ProviderIDRef: provider.ID,
		ExpiresAt:     time.Now().UTC().Add(10 * time.Minute),
	}
	if err := cc.DB.Create(&pending).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"authorization_url": cc.OAuth.AuthCodeURL(state)})
}

func (cc *CalendarController) GoogleCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code or state"})
		return
	}

	var pending models.OAuthState
	if err := cc.DB.Where("state = ?", state).First(&pending).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown state"})
		return
	}
	cc.DB.Delete(&pending)
	if time.Now().UTC().After(pending.ExpiresAt) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state expired, restart the connection flow"})
		return
	}

	conn := models.UserCalendarConnection{
		UserIDRef:        pending.UserIDRef,
		ProviderIDRef:    pending.ProviderIDRef,
		CalendarID:       "primary",
		CalendarName:     "Primary calendar",
		IsActive:         true,
		CheckBusyPeriods: true,
		RespectFocusTime: true,
		InterruptionRule: models.RuleBetweenMeetings,
	}
	if err := cc.DB.Where(models.UserCalendarConnection{
		UserIDRef:     pending.UserIDRef,
		ProviderIDRef: pending.ProviderIDRef,
	}).FirstOrCreate(&conn).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := cc.OAuth.Exchange(c.Request.Context(), cc.DB, &conn, code); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "token exchange failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "calendar connected", "connection_id": conn.ID})
}

// CreateManualConnection sets up the builtin manual-schedule provider.
func (cc *CalendarController) CreateManualConnection(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var provider models.CalendarProvider
	if err := cc.DB.Where("name = ?", models.ProviderManual).First(&provider).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "manual scheduling is not available"})
		return
	}

	conn := models.UserCalendarConnection{
		UserIDRef:        user.ID,
		ProviderIDRef:    provider.ID,
		CalendarName:     "Manual schedule",
		IsActive:         true,
		CheckBusyPeriods: true,
		InterruptionRule: models.RuleBetweenMeetings,
	}
	if err := cc.DB.Where(models.UserCalendarConnection{
		UserIDRef:     user.ID,
		ProviderIDRef: provider.ID,
	}).FirstOrCreate(&conn).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"connection_id": conn.ID})
}

type busyBlockRequest struct {
	Weekday   *int   `json:"weekday" binding:"required"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
	Title     string `json:"title"`
}

func (cc *CalendarController) manualConnection(c *gin.Context) (*models.UserCalendarConnection, bool) {
	user, _ := middleware.CurrentUser(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection id"})
		return nil, false
	}
	var conn models.UserCalendarConnection
	if err := cc.DB.Where("id = ? AND user_id_ref = ?", id, user.ID).First(&conn).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
		return nil, false
	}
	return &conn, true
}

func (cc *CalendarController) ListBusyBlocks(c *gin.Context) {
	conn, ok := cc.manualConnection(c)
	if !ok {
		return
	}
	var blocks []models.ManualBusyBlock
	if err := cc.DB.Where("connection_id_ref = ?", conn.ID).
		Order("weekday, start_time").Find(&blocks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"busy_blocks": blocks})
}

func (cc *CalendarController) CreateBusyBlock(c *gin.Context) {
	conn, ok := cc.manualConnection(c)
	if !ok {
		return
	}

	var req busyBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if *req.Weekday < 0 || *req.Weekday > 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "weekday must be 0 (Sunday) through 6 (Saturday)"})
		return
	}
	start, err := time.Parse("15:04", req.StartTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_time must be HH:MM"})
		return
	}
	end, err := time.Parse("15:04", req.EndTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time must be HH:MM"})
		return
	}
	if !end.After(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time must be after start_time"})
		return
	}

	block := models.ManualBusyBlock{
		ConnectionIDRef: conn.ID,
		Weekday:         *req.Weekday,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Title:           req.Title,
	}
	if err := cc.DB.Create(&block).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"busy_block": block})
}

func (cc *CalendarController) DeleteBusyBlock(c *gin.Context) {
	conn, ok := cc.manualConnection(c)
	if !ok {
		return
	}
	blockID, err := strconv.ParseUint(c.Param("blockId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid block id"})
		return
	}
	res := cc.DB.Where("id = ? AND connection_id_ref = ?", blockID, conn.ID).Delete(&models.ManualBusyBlock{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "busy block not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "busy block removed"})
}

// CheckInterruption previews the decision the engine would make for a break
// at the given time (default: now).
func (cc *CalendarController) CheckInterruption(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	when := time.Now().UTC()
	if raw := c.Query("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "at must be RFC3339"})
			return
		}
		when = parsed.UTC()
	}

	decision := cc.Manager.Evaluate(c.Request.Context(), user, nil, when)
	resp := gin.H{
		"decision": decision.Kind(),
		"allowed":  decision.Allowed,
		"reason":   decision.Reason,
	}
	if decision.DelayUntil != nil {
		resp["delayed_until"] = decision.DelayUntil
	}
	c.JSON(http.StatusOK, resp)
}

// InterruptionHistory lists recent decisions for debugging rule settings.
func (cc *CalendarController) InterruptionHistory(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var logs []models.SmartInterruptionLog
	if err := cc.DB.Where("user_id_ref = ?", user.ID).
		Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": logs})
}
