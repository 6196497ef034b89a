package routes

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/calendars"
	"github.com/eyerest/eyerest_backend/internal/config"
	"github.com/eyerest/eyerest_backend/internal/controllers"
	"github.com/eyerest/eyerest_backend/internal/gamification"
	"github.com/eyerest/eyerest_backend/internal/middleware"
	"github.com/eyerest/eyerest_backend/internal/timer"
	"github.com/eyerest/eyerest_backend/internal/ws"
)

func intFromConfig(v string, fallback int) int {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// Register wires every route group onto the engine.
func Register(r *gin.Engine, db *gorm.DB, cfg *config.Config, hub *ws.FeedHub) {
	accessTTL := time.Duration(intFromConfig(cfg.AccessTokenTTLMinutes, 15)) * time.Minute
	refreshTTL := time.Duration(intFromConfig(cfg.RefreshTokenTTLDays, 30)) * 24 * time.Hour

	oauth := calendars.OAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	}

	rewards := gamification.NewService(db)
	timerSvc := timer.NewService(db, rewards, hub,
		uint(intFromConfig(cfg.FreeDailyIntervalLimit, 6)))

	auth := &controllers.AuthController{
		DB:            db,
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.RefreshJWTSecret,
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
	}
	account := &controllers.AccountController{DB: db}
	timers := &controllers.TimerController{Timer: timerSvc}
	cals := &controllers.CalendarController{
		DB:      db,
		OAuth:   oauth,
		Manager: calendars.NewManager(db, oauth),
	}
	analytics := &controllers.AnalyticsController{DB: db}
	game := &controllers.GamificationController{DB: db, Rewards: rewards}
	subs := &controllers.SubscriptionController{DB: db}
	checkout := controllers.NewCheckoutController(db,
		cfg.StripeSecretKey, cfg.StripePriceID, cfg.PayPalReceiverEmail)
	stripeCtl := &controllers.StripeController{DB: db, WebhookSecret: cfg.StripeWebhookSecret}
	paypalCtl := &controllers.PayPalController{
		DB:            db,
		ReceiverEmail: cfg.PayPalReceiverEmail,
		VerifyIPN:     cfg.PayPalVerifyIPN == "1",
		IPNEndpoint:   cfg.PayPalIPNEndpoint,
	}
	notif := &controllers.NotificationController{DB: db}
	admin := &controllers.AdminController{DB: db}

	authed := middleware.AuthMiddleware(db, middleware.AuthConfig{JWTSecret: cfg.JWTSecret})
	timerLimiter := middleware.NewUserRateLimiter(intFromConfig(cfg.TimerRateLimitPerMinute, 60))

	v1 := r.Group("/api/v1")

	// Public endpoints: auth, plan catalogue, payment provider callbacks.
	v1.POST("/auth/register", auth.Register)
	v1.POST("/auth/login", auth.Login)
	v1.POST("/auth/refresh", auth.Refresh)
	v1.GET("/subscriptions/plans", subs.ListPlans)
	v1.POST("/webhooks/stripe", stripeCtl.Webhook)
	v1.POST("/webhooks/paypal/ipn", paypalCtl.IPN)
	v1.GET("/calendars/google/callback", cals.GoogleCallback)

	protected := v1.Group("")
	protected.Use(authed)
	{
		protected.POST("/auth/logout", auth.Logout)
		protected.GET("/auth/me", auth.Me)

		protected.GET("/account/profile", account.GetProfile)
		protected.PATCH("/account/profile", account.UpdateProfile)
		protected.PATCH("/account/preferences", account.UpdatePreferences)
		protected.POST("/account/password", account.ChangePassword)

		t := protected.Group("/timer")
		t.GET("/sync", timers.Sync)
		t.GET("/settings", timers.GetSettings)
		t.PATCH("/settings", timers.UpdateSettings)
		t.GET("/statistics", timers.Statistics)
		t.GET("/sessions", timers.RecentSessions)
		t.GET("/daily-limit", timers.DailyLimit)

		tm := t.Group("")
		tm.Use(timerLimiter.Middleware())
		{
			tm.POST("/sessions", timers.StartSession)
			tm.POST("/sessions/end", timers.EndSession)
			tm.POST("/breaks", timers.StartBreak)
			tm.POST("/breaks/complete", timers.CompleteBreak)
		}

		cal := protected.Group("/calendars")
		cal.GET("/providers", cals.ListProviders)
		cal.GET("/connections", cals.ListConnections)
		cal.POST("/connections/manual", cals.CreateManualConnection)
		cal.PATCH("/connections/:id", cals.UpdateConnection)
		cal.DELETE("/connections/:id", cals.DeleteConnection)
		cal.GET("/connections/:id/busy-blocks", cals.ListBusyBlocks)
		cal.POST("/connections/:id/busy-blocks", cals.CreateBusyBlock)
		cal.DELETE("/connections/:id/busy-blocks/:blockId", cals.DeleteBusyBlock)
		cal.GET("/google/connect", cals.GoogleConnect)
		cal.GET("/interruptions/check", cals.CheckInterruption)
		cal.GET("/interruptions/history", cals.InterruptionHistory)

		an := protected.Group("/analytics")
		an.GET("/dashboard", analytics.Dashboard)
		an.GET("/weekly", analytics.WeeklyReport)
		an.POST("/events", analytics.TrackEvent)
		an.GET("/feed", analytics.RecentFeed)

		sub := protected.Group("/subscriptions")
		sub.GET("/me", subs.MySubscription)
		sub.POST("/checkout/stripe", checkout.CreateStripeSession)
		sub.GET("/checkout/paypal", checkout.PayPalCheckout)
		sub.POST("/cancel", subs.Cancel)
		sub.POST("/reactivate", subs.Reactivate)
		sub.GET("/invoices", subs.ListInvoices)
		sub.GET("/history", subs.History)

		nt := protected.Group("/notifications")
		nt.GET("", notif.List)
		nt.GET("/unread-count", notif.UnreadCount)
		nt.POST("/:id/read", notif.MarkRead)
		nt.POST("/read-all", notif.MarkAllRead)
		nt.DELETE("/:id", notif.Delete)
		nt.GET("/preferences", notif.GetPreferences)
		nt.PATCH("/preferences", notif.UpdatePreferences)
		nt.GET("/reminders", notif.PendingReminders)
		nt.POST("/reminders/:id/snooze", notif.SnoozeReminder)
		nt.POST("/reminders/:id/dismiss", notif.DismissReminder)

		// Gamification is a premium feature.
		gm := protected.Group("/gamification")
		gm.Use(middleware.RequirePremium())
		{
			gm.GET("/summary", game.Summary)
			gm.GET("/badges", game.ListBadges)
			gm.GET("/challenges", game.ListChallenges)
			gm.POST("/challenges/:id/join", game.JoinChallenge)
			gm.GET("/achievements", game.ListAchievements)
			gm.GET("/leaderboard", game.Leaderboard)
		}

		protected.GET("/ws/feed", ws.FeedHandler(hub))
	}

	adm := v1.Group("/admin")
	adm.Use(authed, middleware.RequireAdmin())
	{
		adm.GET("/users", admin.ListUsers)
		adm.GET("/users/:id", admin.GetUser)
		adm.PATCH("/users/:id", admin.UpdateUser)
		adm.POST("/users/:id/deactivate", admin.DeactivateUser)

		adm.POST("/plans", admin.CreatePlan)
		adm.PUT("/plans/:id", admin.UpdatePlan)
		adm.DELETE("/plans/:id", admin.RetirePlan)

		adm.POST("/challenges", admin.CreateChallenge)

		adm.GET("/metrics/realtime", analytics.RealtimeMetrics)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
