package controllers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/middleware"
	"github.com/eyerest/eyerest_backend/internal/models"
)

const paypalCheckoutURL = "https://www.paypal.com/cgi-bin/webscr"

// CheckoutController starts subscription upgrades. The Stripe flow creates a
// hosted checkout session through the API; the PayPal flow hands the client
// the subscription-button fields it posts to PayPal directly, with the user's
// public id in the custom field so the IPN can find them again.
type CheckoutController struct {
	DB                  *gorm.DB
	PriceID             string
	PayPalReceiverEmail string
	Stripe              *client.API
}

func NewCheckoutController(db *gorm.DB, stripeSecretKey, priceID, paypalReceiver string) *CheckoutController {
	ctl := &CheckoutController{
		DB:                  db,
		PriceID:             priceID,
		PayPalReceiverEmail: paypalReceiver,
	}
	if stripeSecretKey != "" {
		ctl.Stripe = &client.API{}
		ctl.Stripe.Init(stripeSecretKey, nil)
	}
	return ctl
}

// alreadySubscribed reports whether either payment provider holds an active
// subscription for the user.
func (ck *CheckoutController) alreadySubscribed(userID uint) bool {
	var n int64
	ck.DB.Model(&models.StripeSubscription{}).
		Where("user_id_ref = ? AND status = ?", userID, models.ProviderSubActive).
		Count(&n)
	if n > 0 {
		return true
	}
	ck.DB.Model(&models.PayPalSubscription{}).
		Where("user_id_ref = ? AND status = ?", userID, models.ProviderSubActive).
		Count(&n)
	return n > 0
}

func (ck *CheckoutController) premiumPlan() *models.SubscriptionPlan {
	var plan models.SubscriptionPlan
	if ck.DB.Where("slug = ?", "premium-monthly").First(&plan).Error != nil {
		return nil
	}
	return &plan
}

type checkoutRequest struct {
	SuccessURL string `json:"success_url" binding:"required,url"`
	CancelURL  string `json:"cancel_url" binding:"required,url"`
}

// CreateStripeSession opens a Stripe Checkout session in subscription mode
// and returns its id and hosted URL.
func (ck *CheckoutController) CreateStripeSession(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	priceID := ck.PriceID
	if plan := ck.premiumPlan(); plan != nil && plan.StripePriceID != "" {
		priceID = plan.StripePriceID
	}
	if ck.Stripe == nil || priceID == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stripe checkout is not configured"})
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if ck.alreadySubscribed(user.ID) {
		c.JSON(http.StatusConflict, gin.H{"error": "subscription already active"})
		return
	}

	customerID, err := ck.ensureCustomer(user)
	if err != nil {
		slog.Error("stripe customer setup failed", "user", user.UserID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to create checkout session"})
		return
	}

	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(priceID),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(req.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.AddMetadata("user_id", user.UserID)

	sess, err := ck.Stripe.CheckoutSessions.New(params)
	if err != nil {
		slog.Error("stripe checkout session failed", "user", user.UserID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to create checkout session"})
		return
	}

	slog.Info("stripe checkout session created", "user", user.UserID, "session", sess.ID)
	c.JSON(http.StatusOK, gin.H{
		"checkout_session_id": sess.ID,
		"checkout_url":        sess.URL,
	})
}

// ensureCustomer returns the user's Stripe customer id, creating the customer
// on first checkout.
func (ck *CheckoutController) ensureCustomer(user *models.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}
	cust, err := ck.Stripe.Customers.New(&stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.FullName()),
	})
	if err != nil {
		return "", err
	}
	if err := ck.DB.Model(user).Update("stripe_customer_id", cust.ID).Error; err != nil {
		return "", err
	}
	user.StripeCustomerID = cust.ID
	return cust.ID, nil
}

// PayPalCheckout returns the hosted subscription-button fields. PayPal posts
// the resulting IPNs to the webhook with the custom field echoed back.
func (ck *CheckoutController) PayPalCheckout(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	if ck.PayPalReceiverEmail == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "paypal checkout is not configured"})
		return
	}
	if ck.alreadySubscribed(user.ID) {
		c.JSON(http.StatusConflict, gin.H{"error": "subscription already active"})
		return
	}

	amount := "0.99"
	currency := "USD"
	itemName := "Premium Subscription"
	if plan := ck.premiumPlan(); plan != nil {
		amount = fmt.Sprintf("%d.%02d", plan.PriceCents/100, plan.PriceCents%100)
		currency = plan.Currency
		itemName = plan.Name
	}

	c.JSON(http.StatusOK, gin.H{
		"action_url": paypalCheckoutURL,
		"fields": gin.H{
			"business":      ck.PayPalReceiverEmail,
			"cmd":           "_xclick-subscriptions",
			"a3":            amount,
			"p3":            "1",
			"t3":            "M",
			"src":           "1",
			"sra":           "1",
			"no_note":       "1",
			"item_name":     itemName,
			"item_number":   "premium_monthly_paypal",
			"custom":        user.UserID,
			"currency_code": currency,
		},
	})
}
