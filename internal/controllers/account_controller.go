package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/middleware"
	"github.com/eyerest/eyerest_backend/internal/models"
	"github.com/eyerest/eyerest_backend/internal/utils"
)

type AccountController struct {
	DB *gorm.DB
}

func (a *AccountController) GetProfile(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var profile models.UserProfile
	a.DB.FirstOrCreate(&profile, models.UserProfile{UserIDRef: user.ID})

	c.JSON(http.StatusOK, gin.H{
		"user_id":                 user.UserID,
		"email":                   user.Email,
		"first_name":              user.FirstName,
		"last_name":               user.LastName,
		"timezone":                user.Timezone,
		"subscription_type":       user.SubscriptionType,
		"is_premium":              user.IsPremium(time.Now().UTC()),
		"age":                     profile.Age,
		"occupation":              profile.Occupation,
		"daily_screen_time_hours": profile.DailyScreenTimeHours,
		"wears_glasses":           profile.WearsGlasses,
		"has_eye_strain":          profile.HasEyeStrain,
		"preferred_language":      profile.PreferredLanguage,
		"total_breaks_taken":      profile.TotalBreaksTaken,
		"current_streak_days":     profile.CurrentStreakDays,
		"longest_streak_days":     profile.LongestStreakDays,
	})
}

type profileUpdateRequest struct {
	FirstName            *string  `json:"first_name"`
	LastName             *string  `json:"last_name"`
	Timezone             *string  `json:"timezone"`
	Age                  *uint    `json:"age"`
	Occupation           *string  `json:"occupation"`
	DailyScreenTimeHours *float64 `json:"daily_screen_time_hours"`
	WearsGlasses         *bool    `json:"wears_glasses"`
	HasEyeStrain         *bool    `json:"has_eye_strain"`
	PreferredLanguage    *string  `json:"preferred_language"`
}

func (a *AccountController) UpdateProfile(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req profileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown timezone"})
			return
		}
	}

	userUpdates := map[string]interface{}{}
	if req.FirstName != nil {
		userUpdates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		userUpdates["last_name"] = *req.LastName
	}
	if req.Timezone != nil {
		userUpdates["timezone"] = *req.Timezone
	}
	if len(userUpdates) > 0 {
		if err := a.DB.Model(user).Updates(userUpdates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	var profile models.UserProfile
	a.DB.FirstOrCreate(&profile, models.UserProfile{UserIDRef: user.ID})

	profileUpdates := map[string]interface{}{}
	if req.Age != nil {
		profileUpdates["age"] = *req.Age
	}
	if req.Occupation != nil {
		profileUpdates["occupation"] = *req.Occupation
	}
	if req.DailyScreenTimeHours != nil {
		profileUpdates["daily_screen_time_hours"] = *req.DailyScreenTimeHours
	}
	if req.WearsGlasses != nil {
		profileUpdates["wears_glasses"] = *req.WearsGlasses
	}
	if req.HasEyeStrain != nil {
		profileUpdates["has_eye_strain"] = *req.HasEyeStrain
	}
	if req.PreferredLanguage != nil {
		profileUpdates["preferred_language"] = *req.PreferredLanguage
	}
	if len(profileUpdates) > 0 {
		if err := a.DB.Model(&profile).Updates(profileUpdates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "profile updated"})
}

type schedulePreferencesRequest struct {
	EmailNotifications   *bool   `json:"email_notifications"`
	BreakReminders       *bool   `json:"break_reminders"`
	DailySummary         *bool   `json:"daily_summary"`
	WeeklyReport         *bool   `json:"weekly_report"`
	WorkStartTime        *string `json:"work_start_time"`
	WorkEndTime          *string `json:"work_end_time"`
	BreakDurationSeconds *uint   `json:"break_duration_seconds"`
	ReminderSound        *bool   `json:"reminder_sound"`
}

// UpdatePreferences covers the notification and work-schedule toggles that
// live directly on the user row.
func (a *AccountController) UpdatePreferences(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req schedulePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, v := range []*string{req.WorkStartTime, req.WorkEndTime} {
		if v != nil {
			if _, err := time.Parse("15:04", *v); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "times must be in HH:MM format"})
				return
			}
		}
	}

	updates := map[string]interface{}{}
	if req.EmailNotifications != nil {
		updates["email_notifications"] = *req.EmailNotifications
	}
	if req.BreakReminders != nil {
		updates["break_reminders"] = *req.BreakReminders
	}
	if req.DailySummary != nil {
		updates["daily_summary"] = *req.DailySummary
	}
	if req.WeeklyReport != nil {
		updates["weekly_report"] = *req.WeeklyReport
	}
	if req.WorkStartTime != nil {
		updates["work_start_time"] = *req.WorkStartTime
	}
	if req.WorkEndTime != nil {
		updates["work_end_time"] = *req.WorkEndTime
	}
	if req.BreakDurationSeconds != nil {
		updates["break_duration_seconds"] = *req.BreakDurationSeconds
	}
	if req.ReminderSound != nil {
		updates["reminder_sound"] = *req.ReminderSound
	}
	if len(updates) > 0 {
		if err := a.DB.Model(user).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "preferences updated"})
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

func (a *AccountController) ChangePassword(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req passwordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !utils.CheckPassword(user.Password, req.CurrentPassword) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "current password is incorrect"})
		return
	}

	pw, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}
	if err := a.DB.Model(user).Update("password", pw).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Drop all outstanding refresh tokens so stolen sessions die with the
	// old password.
	now := time.Now().UTC()
	a.DB.Model(&models.RefreshToken{}).
		Where("user_id_ref = ? AND revoked_at IS NULL", user.ID).
		Update("revoked_at", &now)

	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}
