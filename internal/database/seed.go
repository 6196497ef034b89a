package database

import (
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/config"
	"github.com/eyerest/eyerest_backend/internal/models"
	"github.com/eyerest/eyerest_backend/internal/utils"
)

func SeedAdmin(db *gorm.DB, cfg *config.Config) error {
	var count int64
	if err := db.Model(&models.User{}).Where("is_admin = ?", true).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := utils.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	admin := models.User{
		UserID:           uuid.NewString(),
		Email:            cfg.AdminEmail,
		Password:         hashed,
		FirstName:        "Admin",
		IsAdmin:          true,
		Verified:         true,
		Active:           true,
		SubscriptionType: models.SubscriptionPremium,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	slog.Info("seeded initial admin", "email", cfg.AdminEmail)
	return nil
}

func SeedCalendarProviders(db *gorm.DB) error {
	providers := []models.CalendarProvider{
		{Name: models.ProviderGoogle, DisplayName: "Google Calendar", IsActive: true, RequiresOAuth: true},
		{Name: models.ProviderOutlook, DisplayName: "Microsoft Outlook/Office 365", IsActive: false, RequiresOAuth: true},
		{Name: models.ProviderApple, DisplayName: "Apple Calendar (iCloud)", IsActive: false, RequiresOAuth: true},
		{Name: models.ProviderExchange, DisplayName: "Microsoft Exchange", IsActive: false, RequiresOAuth: true},
		{Name: models.ProviderManual, DisplayName: "Manual Schedule", IsActive: true, RequiresOAuth: false},
	}

	for _, p := range providers {
		var count int64
		if err := db.Model(&models.CalendarProvider{}).Where("name = ?", p.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := db.Create(&p).Error; err != nil {
			return err
		}
	}
	slog.Info("seeded calendar providers")
	return nil
}

func SeedPlans(db *gorm.DB) error {
	plans := []models.SubscriptionPlan{
		{
			Name: "Free", Slug: "free",
			Description: "Up to 6 work intervals per day with basic statistics.",
			PriceCents:  0, Currency: "USD", BillingPeriod: models.BillingMonthly,
			MaxDailySessions: 6, IsActive: true, SortOrder: 0,
		},
		{
			Name: "Premium Monthly", Slug: "premium-monthly",
			Description: "Unlimited sessions, advanced analytics, gamification and smart interruptions.",
			PriceCents:  99, Currency: "USD", BillingPeriod: models.BillingMonthly,
			AdvancedAnalytics: true, CustomBreakMessages: true, PrioritySupport: true,
			IsActive: true, IsFeatured: true, SortOrder: 1,
		},
		{
			Name: "Premium Yearly", Slug: "premium-yearly",
			Description: "Everything in Premium, billed once a year.",
			PriceCents:  999, Currency: "USD", BillingPeriod: models.BillingYearly,
			AdvancedAnalytics: true, CustomBreakMessages: true, PrioritySupport: true, APIAccess: true,
			IsActive: true, SortOrder: 2,
		},
	}

	for _, p := range plans {
		var count int64
		if err := db.Model(&models.SubscriptionPlan{}).Where("slug = ?", p.Slug).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := db.Create(&p).Error; err != nil {
			return err
		}
	}
	slog.Info("seeded subscription plans")
	return nil
}

// SeedBadges installs the default badge catalogue awarded by the
// gamification sweep. Requirements of zero are ignored during checks.
func SeedBadges(db *gorm.DB) error {
	badges := []models.Badge{
		{Slug: "first-steps", Name: "First Steps", Description: "Complete your first session.", Icon: "footprints", Rarity: models.RarityCommon, RequiresSessions: 1, ExperienceReward: 10},
		{Slug: "getting-started", Name: "Getting Started", Description: "Complete 10 sessions.", Icon: "rocket", Rarity: models.RarityCommon, RequiresSessions: 10, ExperienceReward: 25},
		{Slug: "session-century", Name: "Session Century", Description: "Complete 100 sessions.", Icon: "trophy", Rarity: models.RarityRare, RequiresSessions: 100, ExperienceReward: 100},
		{Slug: "week-streak", Name: "Week Streak", Description: "Keep a 7 day streak.", Icon: "flame", Rarity: models.RarityUncommon, RequiresStreakDays: 7, ExperienceReward: 50},
		{Slug: "month-streak", Name: "Month Streak", Description: "Keep a 30 day streak.", Icon: "calendar", Rarity: models.RarityRare, RequiresStreakDays: 30, ExperienceReward: 150},
		{Slug: "century-streak", Name: "Century Streak", Description: "Keep a 100 day streak.", Icon: "crown", Rarity: models.RarityLegendary, RequiresStreakDays: 100, ExperienceReward: 500},
		{Slug: "eye-guardian", Name: "Eye Guardian", Description: "Take 50 fully compliant breaks.", Icon: "eye", Rarity: models.RarityUncommon, RequiresCompliantBreaks: 50, ExperienceReward: 75},
	}

	for _, b := range badges {
		var count int64
		if err := db.Model(&models.Badge{}).Where("slug = ?", b.Slug).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		b.IsActive = true
		if err := db.Create(&b).Error; err != nil {
			return err
		}
	}
	slog.Info("seeded default badges")
	return nil
}

// SeedNotificationTemplates installs the message templates rendered by the
// notify package. Placeholders use {name} syntax.
func SeedNotificationTemplates(db *gorm.DB) error {
	templates := []models.NotificationTemplate{
		{Slug: "badge-earned", Type: models.NotifyAchievement, Subject: "Badge earned: {badge}", Body: "You earned the {badge} badge. {description}"},
		{Slug: "level-up", Type: models.NotifyAchievement, Subject: "Level up!", Body: "You reached level {level}. Keep those eyes rested."},
		{Slug: "subscription-activated", Type: models.NotifySubscription, Subject: "Premium activated", Body: "Your premium subscription is now active. Enjoy unlimited sessions."},
		{Slug: "subscription-canceled", Type: models.NotifySubscription, Subject: "Subscription canceled", Body: "Your premium subscription has been canceled. You are back on the free tier."},
		{Slug: "payment-failed", Type: models.NotifySubscription, Subject: "Payment failed", Body: "We could not process your latest payment. Please update your payment method."},
	}

	for _, t := range templates {
		var count int64
		if err := db.Model(&models.NotificationTemplate{}).Where("slug = ?", t.Slug).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		t.IsActive = true
		if err := db.Create(&t).Error; err != nil {
			return err
		}
	}
	slog.Info("seeded notification templates")
	return nil
}
