package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eyerest/eyerest_backend/internal/middleware"
	"github.com/eyerest/eyerest_backend/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.UserProfile{},
		&models.RefreshToken{},
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
	))
	return db
}

const testSecret = "test-secret"

func newAuthRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := &AuthController{
		DB:            db,
		AccessSecret:  testSecret,
		RefreshSecret: testSecret + "-refresh",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	}

	r := gin.New()
	r.POST("/auth/register", auth.Register)
	r.POST("/auth/login", auth.Login)
	r.POST("/auth/refresh", auth.Refresh)

	authed := r.Group("")
	authed.Use(middleware.AuthMiddleware(db, middleware.AuthConfig{JWTSecret: testSecret}))
	authed.GET("/auth/me", auth.Me)
	authed.POST("/auth/logout", auth.Logout)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRegisterAndLogin(t *testing.T) {
	db := testDB(t)
	r := newAuthRouter(db)

	w := doJSON(t, r, http.MethodPost, "/auth/register", gin.H{
		"email":      "alice@example.com",
		"password":   "password123",
		"first_name": "Alice",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var user models.User
	require.NoError(t, db.Where("email = ?", "alice@example.com").First(&user).Error)
	assert.NotEqual(t, "password123", user.Password, "password must be hashed")
	assert.Equal(t, models.SubscriptionFree, user.SubscriptionType)

	var profile models.UserProfile
	assert.NoError(t, db.Where("user_id_ref = ?", user.ID).First(&profile).Error,
		"registration creates an empty profile")

	w = doJSON(t, r, http.MethodPost, "/auth/login", gin.H{
		"email":    "alice@example.com",
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.NotEmpty(t, resp["access_token"])
	assert.NotEmpty(t, resp["refresh_token"])
}

func TestLogin_WrongPassword(t *testing.T) {
	db := testDB(t)
	r := newAuthRouter(db)

	doJSON(t, r, http.MethodPost, "/auth/register", gin.H{
		"email": "bob@example.com", "password": "password123",
	}, "")

	w := doJSON(t, r, http.MethodPost, "/auth/login", gin.H{
		"email": "bob@example.com", "password": "wrong-password",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	db := testDB(t)
	r := newAuthRouter(db)

	body := gin.H{"email": "dup@example.com", "password": "password123"}
	w := doJSON(t, r, http.MethodPost, "/auth/register", body, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/auth/register", body, "")
	assert.NotEqual(t, http.StatusCreated, w.Code)
}

func TestMe_RequiresToken(t *testing.T) {
	db := testDB(t)
	r := newAuthRouter(db)

	w := doJSON(t, r, http.MethodGet, "/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe_ReturnsProfile(t *testing.T) {
	db := testDB(t)
	r := newAuthRouter(db)

	doJSON(t, r, http.MethodPost, "/auth/register", gin.H{
		"email": "carol@example.com", "password": "password123", "first_name": "Carol",
	}, "")
	login := decode(t, doJSON(t, r, http.MethodPost, "/auth/login", gin.H{
		"email": "carol@example.com", "password": "password123",
	}, ""))

	w := doJSON(t, r, http.MethodGet, "/auth/me", nil, login["access_token"].(string))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "carol@example.com", resp["email"])
	assert.Equal(t, false, resp["is_premium"])
}

func TestRefresh_RotatesToken(t *testing.T) {
	db := testDB(t)
	r := newAuthRouter(db)

	doJSON(t, r, http.MethodPost, "/auth/register", gin.H{
		"email": "dave@example.com", "password": "password123",
	}, "")
	login := decode(t, doJSON(t, r, http.MethodPost, "/auth/login", gin.H{
		"email": "dave@example.com", "password": "password123",
	}, ""))
	oldRefresh := login["refresh_token"].(string)

	w := doJSON(t, r, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": oldRefresh}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.NotEmpty(t, resp["access_token"])
	assert.NotEqual(t, oldRefresh, resp["refresh_token"])

	// The old token is revoked by rotation.
	w = doJSON(t, r, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": oldRefresh}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefresh_DeactivatedUserRejected(t *testing.T) {
	db := testDB(t)
	r := newAuthRouter(db)

	doJSON(t, r, http.MethodPost, "/auth/register", gin.H{
		"email": "frank@example.com", "password": "password123",
	}, "")
	login := decode(t, doJSON(t, r, http.MethodPost, "/auth/login", gin.H{
		"email": "frank@example.com", "password": "password123",
	}, ""))

	require.NoError(t, db.Model(&models.User{}).
		Where("email = ?", "frank@example.com").
		Update("active", false).Error)

	w := doJSON(t, r, http.MethodPost, "/auth/refresh", gin.H{
		"refresh_token": login["refresh_token"],
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code,
		"a deactivated account must not mint new tokens")
}

func TestRefresh_GarbageToken(t *testing.T) {
	db := testDB(t)
	r := newAuthRouter(db)

	w := doJSON(t, r, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": "not-a-jwt"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout_RevokesRefreshToken(t *testing.T) {
	db := testDB(t)
	r := newAuthRouter(db)

	doJSON(t, r, http.MethodPost, "/auth/register", gin.H{
		"email": "erin@example.com", "password": "password123",
	}, "")
	login := decode(t, doJSON(t, r, http.MethodPost, "/auth/login", gin.H{
		"email": "erin@example.com", "password": "password123",
	}, ""))

	w := doJSON(t, r, http.MethodPost, "/auth/logout", gin.H{
		"refresh_token": login["refresh_token"],
	}, login["access_token"].(string))
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/auth/refresh", gin.H{
		"refresh_token": login["refresh_token"],
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
