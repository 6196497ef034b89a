package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/models"
)

type AdminController struct {
	DB *gorm.DB
}

func (a *AdminController) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "25"))
	if perPage < 1 || perPage > 100 {
		perPage = 25
	}

	q := a.DB.Model(&models.User{})
	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		q = q.Where("email LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like)
	}
	if tier := c.Query("subscription"); tier != "" {
		q = q.Where("subscription_type = ?", tier)
	}

	var total int64
	q.Count(&total)

	var users []models.User
	if err := q.Order("created_at DESC").
		Offset((page - 1) * perPage).Limit(perPage).Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, gin.H{
			"user_id":           u.UserID,
			"email":             u.Email,
			"full_name":         u.FullName(),
			"is_admin":          u.IsAdmin,
			"active":            u.Active,
			"subscription_type": u.SubscriptionType,
			"is_premium":        u.IsPremium(now),
			"created_at":        u.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"users":    out,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

func (a *AdminController) GetUser(c *gin.Context) {
	var user models.User
	if err := a.DB.Where("user_id = ?", c.Param("id")).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	var sessions int64
	a.DB.Model(&models.TimerSession{}).Where("user_id_ref = ?", user.ID).Count(&sessions)
	var breaks int64
	a.DB.Model(&models.BreakRecord{}).Where("user_id_ref = ?", user.ID).Count(&breaks)

	var streak models.UserStreakData
	a.DB.Where("user_id_ref = ?", user.ID).First(&streak)

	c.JSON(http.StatusOK, gin.H{
		"user_id":           user.UserID,
		"email":             user.Email,
		"first_name":        user.FirstName,
		"last_name":         user.LastName,
		"is_admin":          user.IsAdmin,
		"active":            user.Active,
		"verified":          user.Verified,
		"subscription_type": user.SubscriptionType,
		"timezone":          user.Timezone,
		"created_at":        user.CreatedAt,
		"total_sessions":    sessions,
		"total_breaks":      breaks,
		"current_streak":    streak.CurrentDailyStreak,
	})
}

type adminUserUpdateRequest struct {
	Active           *bool   `json:"active"`
	IsAdmin          *bool   `json:"is_admin"`
	Verified         *bool   `json:"verified"`
	SubscriptionType *string `json:"subscription_type"`
}

func (a *AdminController) UpdateUser(c *gin.Context) {
	var user models.User
	if err := a.DB.Where("user_id = ?", c.Param("id")).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	var req adminUserUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SubscriptionType != nil &&
		*req.SubscriptionType != models.SubscriptionFree &&
		*req.SubscriptionType != models.SubscriptionPremium {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown subscription type"})
		return
	}

	updates := map[string]interface{}{}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if req.IsAdmin != nil {
		updates["is_admin"] = *req.IsAdmin
	}
	if req.Verified != nil {
		updates["verified"] = *req.Verified
	}
	if req.SubscriptionType != nil {
		updates["subscription_type"] = *req.SubscriptionType
		if *req.SubscriptionType == models.SubscriptionPremium {
			// Admin-granted premium runs until manually revoked.
			updates["subscription_end_date"] = nil
		}
	}
	if len(updates) > 0 {
		if err := a.DB.Model(&user).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "user updated"})
}

// DeactivateUser disables login without destroying the user's history.
func (a *AdminController) DeactivateUser(c *gin.Context) {
	var user models.User
	if err := a.DB.Where("user_id = ?", c.Param("id")).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if user.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot deactivate an admin account"})
		return
	}

	now := time.Now().UTC()
	err := a.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("active", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.RefreshToken{}).
			Where("user_id_ref = ? AND revoked_at IS NULL", user.ID).
			Update("revoked_at", &now).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deactivated"})
}

type planRequest struct {
	Name                string `json:"name" binding:"required"`
	Slug                string `json:"slug" binding:"required"`
	Description         string `json:"description"`
	PriceCents          int64  `json:"price_cents"`
	Currency            string `json:"currency"`
	BillingPeriod       string `json:"billing_period" binding:"required"`
	MaxDailySessions    uint   `json:"max_daily_sessions"`
	AdvancedAnalytics   bool   `json:"advanced_analytics"`
	CustomBreakMessages bool   `json:"custom_break_messages"`
	PrioritySupport     bool   `json:"priority_support"`
	APIAccess           bool   `json:"api_access"`
	StripePriceID       string `json:"stripe_price_id"`
	IsFeatured          bool   `json:"is_featured"`
	SortOrder           uint   `json:"sort_order"`
}

func validBillingPeriod(p string) bool {
	switch p {
	case models.BillingMonthly, models.BillingYearly, models.BillingLifetime:
		return true
	}
	return false
}

func (a *AdminController) CreatePlan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validBillingPeriod(req.BillingPeriod) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown billing period"})
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	plan := models.SubscriptionPlan{
		Name:                req.Name,
		Slug:                req.Slug,
		Description:         req.Description,
		PriceCents:          req.PriceCents,
		Currency:            currency,
		BillingPeriod:       req.BillingPeriod,
		MaxDailySessions:    req.MaxDailySessions,
		AdvancedAnalytics:   req.AdvancedAnalytics,
		CustomBreakMessages: req.CustomBreakMessages,
		PrioritySupport:     req.PrioritySupport,
		APIAccess:           req.APIAccess,
		StripePriceID:       req.StripePriceID,
		IsActive:            true,
		IsFeatured:          req.IsFeatured,
		SortOrder:           req.SortOrder,
	}
	if err := a.DB.Create(&plan).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"plan_id": plan.ID, "slug": plan.Slug})
}

func (a *AdminController) UpdatePlan(c *gin.Context) {
	var plan models.SubscriptionPlan
	if err := a.DB.Where("id = ?", c.Param("id")).First(&plan).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
		return
	}

	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validBillingPeriod(req.BillingPeriod) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown billing period"})
		return
	}

	plan.Name = req.Name
	plan.Slug = req.Slug
	plan.Description = req.Description
	plan.PriceCents = req.PriceCents
	plan.BillingPeriod = req.BillingPeriod
	plan.MaxDailySessions = req.MaxDailySessions
	plan.AdvancedAnalytics = req.AdvancedAnalytics
	plan.CustomBreakMessages = req.CustomBreakMessages
	plan.PrioritySupport = req.PrioritySupport
	plan.APIAccess = req.APIAccess
	plan.StripePriceID = req.StripePriceID
	plan.IsFeatured = req.IsFeatured
	plan.SortOrder = req.SortOrder
	if req.Currency != "" {
		plan.Currency = req.Currency
	}
	if err := a.DB.Save(&plan).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "plan updated"})
}

// RetirePlan hides a plan from new signups; existing members keep it.
func (a *AdminController) RetirePlan(c *gin.Context) {
	res := a.DB.Model(&models.SubscriptionPlan{}).
		Where("id = ?", c.Param("id")).Update("is_active", false)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "plan retired"})
}

type challengeRequest struct {
	ChallengeType    string    `json:"challenge_type" binding:"required"`
	Name             string    `json:"name" binding:"required"`
	Description      string    `json:"description"`
	TargetValue      uint      `json:"target_value" binding:"required"`
	ExperienceReward uint      `json:"experience_reward"`
	StartsAt         time.Time `json:"starts_at" binding:"required"`
	EndsAt           time.Time `json:"ends_at" binding:"required"`
}

func (a *AdminController) CreateChallenge(c *gin.Context) {
	var req challengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch req.ChallengeType {
	case models.ChallengeDailySessions, models.ChallengeWeeklyBreaks, models.ChallengeComplianceWeek:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown challenge type"})
		return
	}
	if !req.EndsAt.After(req.StartsAt) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ends_at must be after starts_at"})
		return
	}

	ch := models.Challenge{
		ChallengeType:    req.ChallengeType,
		Name:             req.Name,
		Description:      req.Description,
		TargetValue:      req.TargetValue,
		ExperienceReward: req.ExperienceReward,
		StartsAt:         req.StartsAt,
		EndsAt:           req.EndsAt,
		IsActive:         true,
	}
	if err := a.DB.Create(&ch).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"challenge_id": ch.ID})
}
