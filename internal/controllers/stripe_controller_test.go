package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/models"
)

const webhookSecret = "whsec_test"

func stripeSignature(payload string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func newStripeRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	ctl := &StripeController{DB: db, WebhookSecret: webhookSecret}
	r := gin.New()
	r.POST("/webhooks/stripe", ctl.Webhook)
	return r
}

func postWebhook(r *gin.Engine, payload, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signature)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func stripeCustomer(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		UserID: "u-stripe", Email: "stripe@example.com", Active: true,
		SubscriptionType: models.SubscriptionFree, StripeCustomerID: "cus_123",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestStripeWebhook_RejectsBadSignature(t *testing.T) {
	db := testDB(t)
	r := newStripeRouter(db)

	payload := `{"id":"evt_1","type":"invoice.payment_succeeded","data":{"object":{}}}`
	w := postWebhook(r, payload, "t=123,v1=deadbeef")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStripeWebhook_SubscriptionActivatesPremium(t *testing.T) {
	db := testDB(t)
	r := newStripeRouter(db)
	user := stripeCustomer(t, db)

	periodStart := time.Now().UTC().Unix()
	periodEnd := time.Now().UTC().Add(30 * 24 * time.Hour).Unix()
	payload := fmt.Sprintf(`{
		"id": "evt_sub_1",
		"api_version": "2023-10-16",
		"type": "customer.subscription.created",
		"data": {"object": {
			"id": "sub_abc",
			"object": "subscription",
			"customer": "cus_123",
			"status": "active",
			"current_period_start": %d,
			"current_period_end": %d,
			"cancel_at_period_end": false
		}}
	}`, periodStart, periodEnd)

	w := postWebhook(r, payload, stripeSignature(payload, time.Now()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, models.SubscriptionPremium, reloaded.SubscriptionType)
	assert.True(t, reloaded.IsPremium(time.Now().UTC()))

	var sub models.StripeSubscription
	require.NoError(t, db.Where("user_id_ref = ?", user.ID).First(&sub).Error)
	assert.Equal(t, "sub_abc", sub.StripeSubscriptionID)
	assert.Equal(t, models.ProviderSubActive, sub.Status)
	assert.Equal(t, "evt_sub_1", sub.LastEventID)

	var membership models.UserSubscription
	require.NoError(t, db.Where("user_id_ref = ?", user.ID).First(&membership).Error)
	assert.Equal(t, models.SubStatusActive, membership.Status)
}

func TestStripeWebhook_SubscriptionDeletedDowngrades(t *testing.T) {
	db := testDB(t)
	r := newStripeRouter(db)
	user := stripeCustomer(t, db)

	now := time.Now().UTC()
	end := now.Add(30 * 24 * time.Hour)
	require.NoError(t, db.Model(user).Updates(map[string]interface{}{
		"subscription_type":     models.SubscriptionPremium,
		"subscription_end_date": &end,
	}).Error)
	require.NoError(t, db.Create(&models.StripeSubscription{
		UserIDRef: user.ID, StripeSubscriptionID: "sub_abc", Status: models.ProviderSubActive,
	}).Error)

	payload := `{
		"id": "evt_del_1",
		"api_version": "2023-10-16",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_abc", "object": "subscription", "customer": "cus_123", "status": "canceled"}}
	}`
	w := postWebhook(r, payload, stripeSignature(payload, time.Now()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, models.SubscriptionFree, reloaded.SubscriptionType)
	assert.False(t, reloaded.IsPremium(time.Now().UTC().Add(time.Minute)))

	var sub models.StripeSubscription
	require.NoError(t, db.Where("user_id_ref = ?", user.ID).First(&sub).Error)
	assert.Equal(t, models.ProviderSubCancelled, sub.Status)
	require.NotNil(t, sub.CancelledAt)
}

func TestStripeWebhook_PaymentSucceededIsIdempotent(t *testing.T) {
	db := testDB(t)
	r := newStripeRouter(db)
	user := stripeCustomer(t, db)

	payload := `{
		"id": "evt_pay_1",
		"api_version": "2023-10-16",
		"type": "invoice.payment_succeeded",
		"data": {"object": {
			"id": "in_123",
			"object": "invoice",
			"customer": "cus_123",
			"amount_paid": 99,
			"currency": "usd",
			"payment_intent": "pi_123"
		}}
	}`

	w := postWebhook(r, payload, stripeSignature(payload, time.Now()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	// Stripe redelivers; the payment row must not duplicate.
	w = postWebhook(r, payload, stripeSignature(payload, time.Now()))
	require.Equal(t, http.StatusOK, w.Code)

	var payments []models.StripePayment
	require.NoError(t, db.Where("user_id_ref = ?", user.ID).Find(&payments).Error)
	require.Len(t, payments, 1)
	assert.Equal(t, "pi_123", payments[0].StripePaymentIntentID)
	assert.Equal(t, int64(99), payments[0].AmountCents)
	assert.Equal(t, models.PaymentCompleted, payments[0].PaymentStatus)
}

func TestStripeWebhook_PaymentFailedMarksPastDue(t *testing.T) {
	db := testDB(t)
	r := newStripeRouter(db)
	user := stripeCustomer(t, db)

	require.NoError(t, db.Create(&models.UserSubscription{
		UserIDRef: user.ID, Status: models.SubStatusActive,
		CurrentPeriodEnd: time.Now().UTC().Add(24 * time.Hour),
	}).Error)

	payload := `{
		"id": "evt_fail_1",
		"api_version": "2023-10-16",
		"type": "invoice.payment_failed",
		"data": {"object": {"id": "in_999", "object": "invoice", "customer": "cus_123", "amount_due": 99, "currency": "usd"}}
	}`
	w := postWebhook(r, payload, stripeSignature(payload, time.Now()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var membership models.UserSubscription
	require.NoError(t, db.Where("user_id_ref = ?", user.ID).First(&membership).Error)
	assert.Equal(t, models.SubStatusPastDue, membership.Status)

	var events []models.SubscriptionEvent
	require.NoError(t, db.Where("user_id_ref = ? AND event_type = ?",
		user.ID, models.EventPaymentFailed).Find(&events).Error)
	assert.Len(t, events, 1)
}

func TestStripeWebhook_UnknownCustomerIsAcknowledged(t *testing.T) {
	db := testDB(t)
	r := newStripeRouter(db)

	payload := `{
		"id": "evt_ghost",
		"api_version": "2023-10-16",
		"type": "invoice.payment_succeeded",
		"data": {"object": {"id": "in_1", "object": "invoice", "customer": "cus_ghost", "amount_paid": 99, "currency": "usd"}}
	}`
	w := postWebhook(r, payload, stripeSignature(payload, time.Now()))
	assert.Equal(t, http.StatusOK, w.Code, "unknown customers are acknowledged, not retried")
}
