package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/middleware"
	"github.com/eyerest/eyerest_backend/internal/models"
)

type SubscriptionController struct {
	DB *gorm.DB
}

func (s *SubscriptionController) ListPlans(c *gin.Context) {
	var plans []models.SubscriptionPlan
	if err := s.DB.Where("is_active = ?", true).
		Order("sort_order, price_cents").Find(&plans).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(plans))
	for _, p := range plans {
		out = append(out, gin.H{
			"plan_id":               p.ID,
			"slug":                  p.Slug,
			"name":                  p.Name,
			"description":           p.Description,
			"price_cents":           p.PriceCents,
			"monthly_price_cents":   p.MonthlyPriceCents(),
			"currency":              p.Currency,
			"billing_period":        p.BillingPeriod,
			"max_daily_sessions":    p.MaxDailySessions,
			"advanced_analytics":    p.AdvancedAnalytics,
			"custom_break_messages": p.CustomBreakMessages,
			"priority_support":      p.PrioritySupport,
			"api_access":            p.APIAccess,
			"is_featured":           p.IsFeatured,
		})
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}

func (s *SubscriptionController) MySubscription(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	now := time.Now().UTC()

	var sub models.UserSubscription
	if err := s.DB.Where("user_id_ref = ?", user.ID).First(&sub).Error; err != nil {
		c.JSON(http.StatusOK, gin.H{
			"subscription_type": user.SubscriptionType,
			"is_premium":        user.IsPremium(now),
			"has_subscription":  false,
		})
		return
	}

	var plan models.SubscriptionPlan
	s.DB.First(&plan, sub.PlanIDRef)

	c.JSON(http.StatusOK, gin.H{
		"subscription_type":    user.SubscriptionType,
		"is_premium":           user.IsPremium(now),
		"has_subscription":     true,
		"plan":                 plan.Slug,
		"status":               sub.Status,
		"current_period_end":   sub.CurrentPeriodEnd,
		"days_remaining":       sub.DaysRemaining(now),
		"cancel_at_period_end": sub.CancelAtPeriodEnd,
	})
}

// Cancel marks the subscription to lapse at period end. Access continues until
// the paid-through date.
func (s *SubscriptionController) Cancel(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var sub models.UserSubscription
	if err := s.DB.Where("user_id_ref = ?", user.ID).First(&sub).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no subscription found"})
		return
	}
	if sub.CancelAtPeriodEnd {
		c.JSON(http.StatusConflict, gin.H{"error": "subscription is already scheduled to cancel"})
		return
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"cancel_at_period_end": true,
		"canceled_at":          &now,
	}
	if err := s.DB.Model(&sub).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.recordEvent(user.ID, &sub.ID, models.EventSubscriptionCanceled, "user", map[string]any{
		"effective_at": sub.CurrentPeriodEnd,
	})

	c.JSON(http.StatusOK, gin.H{
		"message":      "subscription will cancel at period end",
		"effective_at": sub.CurrentPeriodEnd,
	})
}

func (s *SubscriptionController) Reactivate(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var sub models.UserSubscription
	if err := s.DB.Where("user_id_ref = ?", user.ID).First(&sub).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no subscription found"})
		return
	}
	if !sub.CancelAtPeriodEnd {
		c.JSON(http.StatusConflict, gin.H{"error": "subscription is not scheduled to cancel"})
		return
	}
	if !sub.CurrentPeriodEnd.After(time.Now().UTC()) {
		c.JSON(http.StatusConflict, gin.H{"error": "subscription period has already ended"})
		return
	}

	updates := map[string]interface{}{
		"cancel_at_period_end": false,
		"canceled_at":          nil,
	}
	if err := s.DB.Model(&sub).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.recordEvent(user.ID, &sub.ID, models.EventSubscriptionActivated, "user", nil)

	c.JSON(http.StatusOK, gin.H{"message": "subscription reactivated"})
}

func (s *SubscriptionController) ListInvoices(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var invoices []models.Invoice
	if err := s.DB.Where("user_id_ref = ?", user.ID).
		Order("created_at DESC").Limit(50).Find(&invoices).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	out := make([]gin.H, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, gin.H{
			"invoice_number":    inv.InvoiceNumber,
			"status":            inv.Status,
			"total_cents":       inv.TotalCents,
			"amount_paid_cents": inv.AmountPaidCents,
			"currency":          inv.Currency,
			"due_date":          inv.DueDate,
			"paid_at":           inv.PaidAt,
			"is_overdue":        inv.IsOverdue(now),
			"period_start":      inv.PeriodStart,
			"period_end":        inv.PeriodEnd,
		})
	}
	c.JSON(http.StatusOK, gin.H{"invoices": out})
}

// History lists the lifecycle audit trail for the user's subscriptions.
func (s *SubscriptionController) History(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var events []models.SubscriptionEvent
	if err := s.DB.Where("user_id_ref = ?", user.ID).
		Order("created_at DESC").Limit(50).Find(&events).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *SubscriptionController) recordEvent(userID uint, subID *uint, eventType, source string, data map[string]any) {
	payload, _ := json.Marshal(data)
	s.DB.Create(&models.SubscriptionEvent{
		UserIDRef:         userID,
		SubscriptionIDRef: subID,
		EventType:         eventType,
		EventData:         payload,
		Source:            source,
	})
}
