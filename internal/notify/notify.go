// Package notify creates in-app notifications from stored templates.
package notify

import (
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/models"
)

// Send renders the template identified by slug with the given placeholder
// values and stores a notification for the user. A missing or inactive
// template is logged and skipped; notification delivery must never fail the
// operation that triggered it.
func Send(db *gorm.DB, userID uint, slug string, vars map[string]string) {
	var tpl models.NotificationTemplate
	if err := db.Where("slug = ? AND is_active = ?", slug, true).First(&tpl).Error; err != nil {
		slog.Warn("notification template missing", "slug", slug, "error", err)
		return
	}

	now := time.Now().UTC()
	notification := models.Notification{
		UserIDRef: userID,
		Type:      tpl.Type,
		Title:     render(tpl.Subject, vars),
		Message:   render(tpl.Body, vars),
		Status:    models.NotificationSent,
		SentAt:    &now,
	}
	if err := db.Create(&notification).Error; err != nil {
		slog.Error("notification insert failed", "slug", slug, "user_id", userID, "error", err)
	}
}

func render(s string, vars map[string]string) string {
	for key, value := range vars {
		s = strings.ReplaceAll(s, "{"+key+"}", value)
	}
	return s
}
