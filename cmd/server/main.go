package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/eyerest/eyerest_backend/internal/config"
	"github.com/eyerest/eyerest_backend/internal/database"
	"github.com/eyerest/eyerest_backend/internal/routes"
	"github.com/eyerest/eyerest_backend/internal/ws"
)

func main() {
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Load()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	if err := database.SeedAdmin(db, cfg); err != nil {
		log.Fatalf("failed to seed admin user: %v", err)
	}
	if err := database.SeedCalendarProviders(db); err != nil {
		log.Fatalf("failed to seed calendar providers: %v", err)
	}
	if err := database.SeedPlans(db); err != nil {
		log.Fatalf("failed to seed subscription plans: %v", err)
	}
	if err := database.SeedBadges(db); err != nil {
		log.Fatalf("failed to seed badges: %v", err)
	}
	if err := database.SeedNotificationTemplates(db); err != nil {
		log.Fatalf("failed to seed notification templates: %v", err)
	}

	hub := ws.NewFeedHub()
	go hub.Run()

	r := gin.Default()
	routes.Register(r, db, cfg, hub)

	slog.Info("server starting", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
