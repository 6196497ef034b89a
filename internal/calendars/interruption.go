package calendars

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/models"
)

// maxDelay caps how long a break reminder may be postponed; beyond it the
// interruption is skipped entirely.
const maxDelay = time.Hour

// Decision is the outcome of the smart-interruption evaluation.
type Decision struct {
	Allowed    bool       `json:"allowed"`
	DelayUntil *time.Time `json:"delay_until,omitempty"`
	Reason     string     `json:"reason"`
}

func (d Decision) Kind() string {
	switch {
	case d.Allowed:
		return models.DecisionAllowed
	case d.DelayUntil != nil:
		return models.DecisionDelayed
	default:
		return models.DecisionSkipped
	}
}

// Manager combines every active calendar connection of a user into one
// interruption decision with fallback policies.
type Manager struct {
	db  *gorm.DB
	cfg OAuthConfig
}

func NewManager(db *gorm.DB, cfg OAuthConfig) *Manager {
	return &Manager{db: db, cfg: cfg}
}

// sourceFor picks the EventSource implementation for a connection. Providers
// without an implementation return nil and are skipped.
func (m *Manager) sourceFor(conn *models.UserCalendarConnection, user *models.User) EventSource {
	var provider models.CalendarProvider
	if err := m.db.First(&provider, conn.ProviderIDRef).Error; err != nil {
		return nil
	}
	switch provider.Name {
	case models.ProviderGoogle:
		return NewGoogleSource(m.db, m.cfg, conn)
	case models.ProviderManual:
		return NewManualSource(m.db, conn, user.Timezone)
	default:
		// outlook, apple, exchange: not implemented
		return nil
	}
}

// ShouldAllowInterruption decides whether a break reminder may fire at the
// scheduled time. A user with no usable connections is always interruptible;
// one free calendar is enough to allow; when every calendar is busy the
// reminder is delayed to the earliest free slot, or skipped when that slot is
// more than an hour away.
func (m *Manager) ShouldAllowInterruption(ctx context.Context, user *models.User, scheduled time.Time) Decision {
	var conns []models.UserCalendarConnection
	if err := m.db.WithContext(ctx).
		Where("user_id_ref = ? AND is_active = ?", user.ID, true).
		Find(&conns).Error; err != nil {
		slog.Warn("loading calendar connections failed, allowing interruption", "user", user.UserID, "error", err)
		return Decision{Allowed: true, Reason: "calendar check unavailable"}
	}
	if len(conns) == 0 {
		return Decision{Allowed: true, Reason: "no calendar connections configured"}
	}

	checked := 0
	var earliestFree *time.Time
	var blockingReasons []string

	for i := range conns {
		conn := &conns[i]
		src := m.sourceFor(conn, user)
		if src == nil {
			continue
		}
		checked++

		status := CheckBusy(ctx, src, conn, scheduled)
		if !status.Busy {
			return Decision{Allowed: true, Reason: "user is available"}
		}

		for _, ev := range status.BlockingEvents {
			blockingReasons = append(blockingReasons, fmt.Sprintf("%s (%s-%s)",
				ev.Title, ev.StartTime.Format("15:04"), ev.EndTime.Format("15:04")))
		}
		if status.NextFreeSlot != nil {
			if earliestFree == nil || status.NextFreeSlot.Before(*earliestFree) {
				earliestFree = status.NextFreeSlot
			}
		}
	}

	if checked == 0 {
		return Decision{Allowed: true, Reason: "no calendar connections configured"}
	}

	if len(blockingReasons) > 2 {
		blockingReasons = blockingReasons[:2]
	}
	detail := strings.Join(blockingReasons, ", ")

	if earliestFree != nil && !earliestFree.After(scheduled.Add(maxDelay)) {
		return Decision{
			DelayUntil: earliestFree,
			Reason:     fmt.Sprintf("busy until %s: %s", earliestFree.Format("15:04"), detail),
		}
	}
	return Decision{Reason: "extended busy period: " + detail}
}

// Evaluate makes the decision and records it in the interruption log.
// Logging failures never change the decision.
func (m *Manager) Evaluate(ctx context.Context, user *models.User, sessionID *uint, scheduled time.Time) Decision {
	decision := m.ShouldAllowInterruption(ctx, user, scheduled)

	contextData, _ := json.Marshal(gormJSON{
		"blocking_reason": decision.Reason,
	})
	entry := models.SmartInterruptionLog{
		UserIDRef:                 user.ID,
		TimerSessionIDRef:         sessionID,
		ScheduledInterruptionTime: scheduled,
		Decision:                  decision.Kind(),
		DelayedUntil:              decision.DelayUntil,
		Reason:                    decision.Reason,
		ContextData:               contextData,
	}
	if err := m.db.WithContext(ctx).Create(&entry).Error; err != nil {
		slog.Warn("failed to log interruption decision", "user", user.UserID, "error", err)
	}
	return decision
}

type gormJSON map[string]any
