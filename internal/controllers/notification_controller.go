package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/middleware"
	"github.com/eyerest/eyerest_backend/internal/models"
)

type NotificationController struct {
	DB *gorm.DB
}

func (n *NotificationController) List(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	q := n.DB.Where("user_id_ref = ?", user.ID)
	if c.Query("unread") == "1" {
		q = q.Where("status IN ?", []string{models.NotificationPending, models.NotificationSent})
	}

	var notifications []models.Notification
	if err := q.Order("created_at DESC").Limit(limit).Find(&notifications).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (n *NotificationController) UnreadCount(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var count int64
	n.DB.Model(&models.Notification{}).
		Where("user_id_ref = ? AND status IN ?", user.ID,
			[]string{models.NotificationPending, models.NotificationSent}).
		Count(&count)
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func (n *NotificationController) MarkRead(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var notification models.Notification
	if err := n.DB.Where("id = ? AND user_id_ref = ?", c.Param("id"), user.ID).
		First(&notification).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}

	notification.MarkRead(time.Now().UTC())
	if err := n.DB.Save(&notification).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked read"})
}

func (n *NotificationController) MarkAllRead(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	now := time.Now().UTC()
	res := n.DB.Model(&models.Notification{}).
		Where("user_id_ref = ? AND status IN ?", user.ID,
			[]string{models.NotificationPending, models.NotificationSent}).
		Updates(map[string]interface{}{"status": models.NotificationRead, "read_at": &now})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all marked read", "updated": res.RowsAffected})
}

func (n *NotificationController) Delete(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	res := n.DB.Where("id = ? AND user_id_ref = ?", c.Param("id"), user.ID).
		Delete(&models.Notification{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (n *NotificationController) GetPreferences(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var prefs models.NotificationPreference
	n.DB.Where(models.NotificationPreference{UserIDRef: user.ID}).
		Attrs(models.NotificationPreference{
			BreakRemindersEnabled: true,
			DailySummaryEnabled:   true,
			WeeklyReportEnabled:   true,
			AchievementsEnabled:   true,
		}).FirstOrCreate(&prefs)
	c.JSON(http.StatusOK, prefs)
}

type notificationPrefsRequest struct {
	BreakRemindersEnabled *bool   `json:"break_reminders_enabled"`
	DailySummaryEnabled   *bool   `json:"daily_summary_enabled"`
	WeeklyReportEnabled   *bool   `json:"weekly_report_enabled"`
	AchievementsEnabled   *bool   `json:"achievements_enabled"`
	MarketingEnabled      *bool   `json:"marketing_enabled"`
	QuietHoursStart       *string `json:"quiet_hours_start"`
	QuietHoursEnd         *string `json:"quiet_hours_end"`
}

func (n *NotificationController) UpdatePreferences(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req notificationPrefsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, v := range []*string{req.QuietHoursStart, req.QuietHoursEnd} {
		if v != nil && *v != "" {
			if _, err := time.Parse("15:04", *v); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "quiet hours must be HH:MM"})
				return
			}
		}
	}

	var prefs models.NotificationPreference
	n.DB.Where(models.NotificationPreference{UserIDRef: user.ID}).FirstOrCreate(&prefs)

	updates := map[string]interface{}{}
	if req.BreakRemindersEnabled != nil {
		updates["break_reminders_enabled"] = *req.BreakRemindersEnabled
	}
	if req.DailySummaryEnabled != nil {
		updates["daily_summary_enabled"] = *req.DailySummaryEnabled
	}
	if req.WeeklyReportEnabled != nil {
		updates["weekly_report_enabled"] = *req.WeeklyReportEnabled
	}
	if req.AchievementsEnabled != nil {
		updates["achievements_enabled"] = *req.AchievementsEnabled
	}
	if req.MarketingEnabled != nil {
		updates["marketing_enabled"] = *req.MarketingEnabled
	}
	if req.QuietHoursStart != nil {
		updates["quiet_hours_start"] = *req.QuietHoursStart
	}
	if req.QuietHoursEnd != nil {
		updates["quiet_hours_end"] = *req.QuietHoursEnd
	}
	if len(updates) > 0 {
		if err := n.DB.Model(&prefs).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "preferences updated"})
}

// PendingReminders lists undelivered break reminders that are due.
func (n *NotificationController) PendingReminders(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	now := time.Now().UTC()

	var reminders []models.BreakReminder
	if err := n.DB.Where(
		"user_id_ref = ? AND dismissed = ? AND delivered_at IS NULL AND scheduled_for <= ? AND (snoozed_until IS NULL OR snoozed_until <= ?)",
		user.ID, false, now, now).
		Order("scheduled_for").Find(&reminders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reminders": reminders})
}

type snoozeRequest struct {
	Minutes uint `json:"minutes"`
}

func (n *NotificationController) SnoozeReminder(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var reminder models.BreakReminder
	if err := n.DB.Where("id = ? AND user_id_ref = ?", c.Param("id"), user.ID).
		First(&reminder).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "reminder not found"})
		return
	}
	if reminder.Dismissed {
		c.JSON(http.StatusConflict, gin.H{"error": "reminder is dismissed"})
		return
	}

	var req snoozeRequest
	_ = c.ShouldBindJSON(&req)

	reminder.Snooze(time.Now().UTC(), req.Minutes)
	if err := n.DB.Save(&reminder).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "snoozed", "snoozed_until": reminder.SnoozedUntil})
}

func (n *NotificationController) DismissReminder(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	res := n.DB.Model(&models.BreakReminder{}).
		Where("id = ? AND user_id_ref = ?", c.Param("id"), user.ID).
		Update("dismissed", true)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "reminder not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "dismissed"})
}
