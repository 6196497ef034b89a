package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/config"
	"github.com/eyerest/eyerest_backend/internal/models"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode,
	)
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.UserProfile{},
		&models.RefreshToken{},

		&models.TimerSession{},
		&models.TimerInterval{},
		&models.BreakRecord{},
		&models.UserTimerSettings{},

		&models.CalendarProvider{},
		&models.UserCalendarConnection{},
		&models.ManualBusyBlock{},
		&models.OAuthState{},
		&models.SmartInterruptionLog{},

		&models.DailyStats{},
		&models.WeeklyStats{},
		&models.UserBehaviorEvent{},
		&models.UserSession{},
		&models.LiveActivityFeed{},

		&models.UserLevel{},
		&models.Badge{},
		&models.UserBadge{},
		&models.Challenge{},
		&models.ChallengeParticipation{},
		&models.Achievement{},
		&models.UserStreakData{},

		&models.SubscriptionPlan{},
		&models.UserSubscription{},
		&models.Invoice{},
		&models.SubscriptionEvent{},
		&models.StripeSubscription{},
		&models.StripePayment{},
		&models.PayPalSubscription{},
		&models.PayPalPayment{},

		&models.NotificationTemplate{},
		&models.Notification{},
		&models.BreakReminder{},
		&models.NotificationPreference{},
	)
}
