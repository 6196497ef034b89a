package calendars

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/models"
)

// OAuthConfig carries the Google OAuth client settings from config.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (c OAuthConfig) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       []string{calendar.CalendarReadonlyScope},
		Endpoint:     google.Endpoint,
	}
}

// AuthCodeURL returns the Google consent URL for connecting a calendar.
func (c OAuthConfig) AuthCodeURL(state string) string {
	return c.oauth2Config().AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange swaps an auth code for tokens and stores them on the connection.
func (c OAuthConfig) Exchange(ctx context.Context, db *gorm.DB, conn *models.UserCalendarConnection, code string) error {
	tok, err := c.oauth2Config().Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("google token exchange: %w", err)
	}
	conn.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		conn.RefreshToken = tok.RefreshToken
	}
	conn.TokenExpiresAt = &tok.Expiry
	return db.Save(conn).Error
}

// GoogleSource reads events from the Google Calendar API using the stored
// OAuth tokens, refreshing them through the token source as needed.
type GoogleSource struct {
	db   *gorm.DB
	cfg  OAuthConfig
	conn *models.UserCalendarConnection
}

func NewGoogleSource(db *gorm.DB, cfg OAuthConfig, conn *models.UserCalendarConnection) *GoogleSource {
	return &GoogleSource{db: db, cfg: cfg, conn: conn}
}

func (g *GoogleSource) Events(ctx context.Context, from, to time.Time) ([]Event, error) {
	tok := &oauth2.Token{
		AccessToken:  g.conn.AccessToken,
		RefreshToken: g.conn.RefreshToken,
	}
	if g.conn.TokenExpiresAt != nil {
		tok.Expiry = *g.conn.TokenExpiresAt
	}
	ts := g.cfg.oauth2Config().TokenSource(ctx, tok)

	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("google calendar service: %w", err)
	}

	calID := g.conn.CalendarID
	if calID == "" {
		calID = "primary"
	}

	resp, err := svc.Events.List(calID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("google events list: %w", err)
	}

	// Persist refreshed tokens so the next check skips the refresh round trip.
	if fresh, err := ts.Token(); err == nil && fresh.AccessToken != g.conn.AccessToken {
		g.conn.AccessToken = fresh.AccessToken
		g.conn.TokenExpiresAt = &fresh.Expiry
		g.db.Save(g.conn)
	}

	var events []Event
	for _, item := range resp.Items {
		start, end, ok := parseEventTimes(item)
		if !ok {
			continue
		}
		events = append(events, Event{
			Title:     item.Summary,
			StartTime: start,
			EndTime:   end,
			Busy:      item.Transparency != "transparent",
			Priority:  priorityFromEvent(item),
		})
	}
	return events, nil
}

func parseEventTimes(item *calendar.Event) (time.Time, time.Time, bool) {
	if item.Start == nil || item.End == nil {
		return time.Time{}, time.Time{}, false
	}
	// All-day events carry only a date; they never block interruptions.
	if item.Start.DateTime == "" || item.End.DateTime == "" {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func priorityFromEvent(item *calendar.Event) string {
	// Google has no native priority; treat events with many attendees as
	// high priority so the low_priority rule has something to work with.
	if len(item.Attendees) >= 3 {
		return PriorityHigh
	}
	return PriorityNormal
}

// FreeBusy queries the free/busy endpoint for the connection's calendar.
func (g *GoogleSource) FreeBusy(ctx context.Context, from, to time.Time) ([]Event, error) {
	tok := &oauth2.Token{AccessToken: g.conn.AccessToken, RefreshToken: g.conn.RefreshToken}
	if g.conn.TokenExpiresAt != nil {
		tok.Expiry = *g.conn.TokenExpiresAt
	}
	svc, err := calendar.NewService(ctx, option.WithTokenSource(g.cfg.oauth2Config().TokenSource(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("google calendar service: %w", err)
	}

	calID := g.conn.CalendarID
	if calID == "" {
		calID = "primary"
	}

	resp, err := svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: calID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google freebusy query: %w", err)
	}

	var events []Event
	if cal, ok := resp.Calendars[calID]; ok {
		for _, period := range cal.Busy {
			start, err1 := time.Parse(time.RFC3339, period.Start)
			end, err2 := time.Parse(time.RFC3339, period.End)
			if err1 != nil || err2 != nil {
				continue
			}
			events = append(events, Event{Title: "Busy", StartTime: start, EndTime: end, Busy: true, Priority: PriorityNormal})
		}
	}
	return events, nil
}
