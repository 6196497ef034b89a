package controllers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/models"
	"github.com/eyerest/eyerest_backend/internal/notify"
	"github.com/eyerest/eyerest_backend/internal/utils"
)

// PayPalController processes Instant Payment Notification (IPN) posts. IPN
// handlers must always answer 200 with a plain body or PayPal retries the
// delivery for days.
type PayPalController struct {
	DB            *gorm.DB
	ReceiverEmail string
	VerifyIPN     bool
	IPNEndpoint   string
	HTTPClient    *http.Client
}

func (p *PayPalController) client() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (p *PayPalController) IPN(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 65536))
	if err != nil {
		c.String(http.StatusOK, "OK")
		return
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		slog.Warn("paypal ipn with unparseable body")
		c.String(http.StatusOK, "OK")
		return
	}

	if p.VerifyIPN && !p.verify(c, string(body)) {
		slog.Warn("paypal ipn failed verification postback", "txn_id", values.Get("txn_id"))
		c.String(http.StatusOK, "OK")
		return
	}

	if p.ReceiverEmail != "" &&
		!strings.EqualFold(values.Get("receiver_email"), p.ReceiverEmail) {
		slog.Warn("paypal ipn for wrong receiver", "receiver", values.Get("receiver_email"))
		c.String(http.StatusOK, "OK")
		return
	}

	switch values.Get("txn_type") {
	case "subscr_signup":
		p.handleSignup(values)
	case "subscr_payment":
		p.handlePayment(values)
	case "subscr_cancel", "subscr_eot":
		p.handleCancel(values)
	default:
		slog.Debug("paypal ipn ignored", "txn_type", values.Get("txn_type"))
	}

	c.String(http.StatusOK, "OK")
}

// verify echoes the notification back to PayPal with _notify-validate
// prepended; only "VERIFIED" responses are trusted.
func (p *PayPalController) verify(c *gin.Context, rawBody string) bool {
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, p.IPNEndpoint,
		strings.NewReader("cmd=_notify-validate&"+rawBody))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client().Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	answer, err := io.ReadAll(io.LimitReader(resp.Body, 32))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(answer)) == "VERIFIED"
}

// userFromIPN resolves the user from the custom field, which carries the
// user's public id from the checkout button.
func (p *PayPalController) userFromIPN(values url.Values) (*models.User, bool) {
	custom := values.Get("custom")
	if custom == "" {
		return nil, false
	}
	var user models.User
	if err := p.DB.Where("user_id = ?", custom).First(&user).Error; err != nil {
		slog.Warn("paypal ipn for unknown user", "custom", custom)
		return nil, false
	}
	return &user, true
}

func amountCents(values url.Values) int64 {
	gross, err := strconv.ParseFloat(values.Get("mc_gross"), 64)
	if err != nil {
		return 0
	}
	return int64(gross*100 + 0.5)
}

func (p *PayPalController) handleSignup(values url.Values) {
	user, ok := p.userFromIPN(values)
	if !ok {
		return
	}

	sub := models.PayPalSubscription{UserIDRef: user.ID}
	if err := p.DB.Where(models.PayPalSubscription{UserIDRef: user.ID}).
		FirstOrCreate(&sub).Error; err != nil {
		slog.Error("paypal signup upsert failed", "user", user.UserID, "error", err)
		return
	}

	now := time.Now().UTC()
	sub.PayPalSubscriptionID = values.Get("subscr_id")
	sub.PayPalPayerID = values.Get("payer_id")
	sub.PayPalPayerEmail = values.Get("payer_email")
	sub.IPNTrackID = values.Get("ipn_track_id")
	sub.Status = models.ProviderSubActive
	if sub.ActivatedAt == nil {
		sub.ActivatedAt = &now
	}
	if amount := amountCents(values); amount > 0 {
		sub.AmountCents = amount
	}
	if err := p.DB.Save(&sub).Error; err != nil {
		slog.Error("paypal signup save failed", "user", user.UserID, "error", err)
		return
	}

	p.activatePremium(user, &sub, values)
	slog.Info("paypal subscription activated", "user", user.UserID, "subscr_id", sub.PayPalSubscriptionID)
}

func (p *PayPalController) handlePayment(values url.Values) {
	if values.Get("payment_status") != "Completed" {
		slog.Debug("paypal payment not completed", "status", values.Get("payment_status"),
			"txn_id", values.Get("txn_id"))
		return
	}
	user, ok := p.userFromIPN(values)
	if !ok {
		return
	}

	txnID := values.Get("txn_id")
	if txnID == "" {
		return
	}
	// Duplicate deliveries hit the unique transaction index and stop here.
	var existing models.PayPalPayment
	if p.DB.Where("pay_pal_transaction_id = ?", txnID).First(&existing).Error == nil {
		return
	}

	now := time.Now().UTC()
	var sub models.PayPalSubscription
	hasSub := p.DB.Where("user_id_ref = ?", user.ID).First(&sub).Error == nil

	payment := models.PayPalPayment{
		UserIDRef:           user.ID,
		PayPalTransactionID: txnID,
		PaymentStatus:       models.PaymentCompleted,
		AmountCents:         amountCents(values),
		Currency:            strings.ToUpper(values.Get("mc_currency")),
		PayPalPayerID:       values.Get("payer_id"),
		PayPalPayerEmail:    values.Get("payer_email"),
		PayPalReceiverEmail: values.Get("receiver_email"),
		IPNTrackID:          values.Get("ipn_track_id"),
		PaymentDate:         now,
	}
	if hasSub {
		payment.SubscriptionIDRef = &sub.ID
	}
	if err := p.DB.Create(&payment).Error; err != nil {
		slog.Error("paypal payment insert failed", "txn_id", txnID, "error", err)
		return
	}

	if hasSub {
		sub.Status = models.ProviderSubActive
		sub.LastPaymentDate = &now
		if sub.ActivatedAt == nil {
			sub.ActivatedAt = &now
		}
		p.DB.Save(&sub)
	}

	p.activatePremium(user, &sub, values)
	p.recordInvoice(user, payment)
	slog.Info("paypal payment recorded", "user", user.UserID, "txn_id", txnID,
		"amount_cents", payment.AmountCents)
}

func (p *PayPalController) handleCancel(values url.Values) {
	user, ok := p.userFromIPN(values)
	if !ok {
		return
	}

	now := time.Now().UTC()
	p.DB.Model(&models.PayPalSubscription{}).
		Where("user_id_ref = ?", user.ID).
		Updates(map[string]interface{}{
			"status":       models.ProviderSubCancelled,
			"cancelled_at": &now,
		})
	p.DB.Model(user).Updates(map[string]interface{}{
		"subscription_type":     models.SubscriptionFree,
		"subscription_end_date": &now,
	})
	p.DB.Model(&models.UserSubscription{}).
		Where("user_id_ref = ?", user.ID).
		Updates(map[string]interface{}{
			"status":      models.SubStatusCanceled,
			"canceled_at": &now,
		})

	payload, _ := json.Marshal(map[string]any{
		"subscr_id":    values.Get("subscr_id"),
		"ipn_track_id": values.Get("ipn_track_id"),
	})
	p.DB.Create(&models.SubscriptionEvent{
		UserIDRef: user.ID,
		EventType: models.EventSubscriptionCanceled,
		EventData: payload,
		Source:    "paypal",
	})
	notify.Send(p.DB, user.ID, "subscription-canceled", nil)
	slog.Info("paypal subscription cancelled", "user", user.UserID)
}

// activatePremium grants the premium tier for one month from now. PayPal
// recurring profiles bill monthly here.
func (p *PayPalController) activatePremium(user *models.User, sub *models.PayPalSubscription, values url.Values) {
	wasPremium := user.SubscriptionType == models.SubscriptionPremium
	now := time.Now().UTC()
	periodEnd := now.AddDate(0, 1, 0)

	p.DB.Model(user).Updates(map[string]interface{}{
		"subscription_type":       models.SubscriptionPremium,
		"subscription_start_date": &now,
		"subscription_end_date":   &periodEnd,
	})

	membership := models.UserSubscription{UserIDRef: user.ID}
	if err := p.DB.Where(models.UserSubscription{UserIDRef: user.ID}).
		FirstOrCreate(&membership).Error; err != nil {
		return
	}
	membership.Status = models.SubStatusActive
	membership.CurrentPeriodStart = now
	membership.CurrentPeriodEnd = periodEnd
	if membership.StartDate.IsZero() {
		membership.StartDate = now
	}
	if membership.PlanIDRef == 0 {
		var plan models.SubscriptionPlan
		if p.DB.Where("slug = ?", "premium-monthly").First(&plan).Error == nil {
			membership.PlanIDRef = plan.ID
		}
	}
	p.DB.Save(&membership)

	// Payment IPNs may arrive before the signup filled the profile id; prefer
	// the stored one and fall back to the notification field.
	subscrID := sub.PayPalSubscriptionID
	if subscrID == "" {
		subscrID = values.Get("subscr_id")
	}
	payload, _ := json.Marshal(map[string]any{
		"subscr_id":    subscrID,
		"ipn_track_id": values.Get("ipn_track_id"),
	})
	p.DB.Create(&models.SubscriptionEvent{
		UserIDRef:         user.ID,
		SubscriptionIDRef: &membership.ID,
		EventType:         models.EventSubscriptionActivated,
		EventData:         payload,
		Source:            "paypal",
	})
	if !wasPremium {
		notify.Send(p.DB, user.ID, "subscription-activated", nil)
	}
}

func (p *PayPalController) recordInvoice(user *models.User, payment models.PayPalPayment) {
	var membership models.UserSubscription
	if p.DB.Where("user_id_ref = ?", user.ID).First(&membership).Error != nil {
		return
	}
	now := time.Now().UTC()
	number, err := utils.GenerateInvoiceNumber(now)
	if err != nil {
		slog.Error("invoice number generation failed", "error", err)
		return
	}
	invoice := models.Invoice{
		UserIDRef:         user.ID,
		SubscriptionIDRef: membership.ID,
		InvoiceNumber:     number,
		SubtotalCents:     payment.AmountCents,
		TotalCents:        payment.AmountCents,
		AmountPaidCents:   payment.AmountCents,
		Currency:          payment.Currency,
		Status:            models.InvoicePaid,
		DueDate:           now,
		PaidAt:            &now,
		PeriodStart:       membership.CurrentPeriodStart,
		PeriodEnd:         membership.CurrentPeriodEnd,
	}
	p.DB.Create(&invoice)
}
