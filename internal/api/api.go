package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fenwick-labs/gatehouse/internal/auth"
	"github.com/fenwick-labs/gatehouse/internal/db"
	"github.com/fenwick-labs/gatehouse/internal/mail"
	"github.com/fenwick-labs/gatehouse/internal/models"
)

const sessionCookie = "jwt"

// Handler wires the auth flows to their collaborators: the token service,
// the user store, the mailer and the optional activity log.
type Handler struct {
	auth     *auth.Service
	users    db.UserStore
	mailer   mail.Mailer
	activity *db.Postgres
	logger   *zap.Logger

	cookieDays    int
	secureCookies bool
	frontendURL   string
	limiter       gin.HandlerFunc
}

// Options carries the request-independent knobs for a Handler.
type Options struct {
	CookieDays    int
	SecureCookies bool
	FrontendURL   string
	Logger        *zap.Logger
	RateLimiter   gin.HandlerFunc
}

func NewHandler(authService *auth.Service, users db.UserStore, mailer mail.Mailer, activity *db.Postgres, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cookieDays := opts.CookieDays
	if cookieDays <= 0 {
		cookieDays = 7
	}

	return &Handler{
		auth:          authService,
		users:         users,
		mailer:        mailer,
		activity:      activity,
		logger:        logger,
		cookieDays:    cookieDays,
		secureCookies: opts.SecureCookies,
		frontendURL:   opts.FrontendURL,
		limiter:       opts.RateLimiter,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	apiGroup := router.Group("/api")

	authGroup := apiGroup.Group("/auth")
	if h.limiter != nil {
		authGroup.POST("/login", h.limiter, h.handleLogin)
		authGroup.POST("/forgot-password", h.limiter, h.handleForgotPassword)
	} else {
		authGroup.POST("/login", h.handleLogin)
		authGroup.POST("/forgot-password", h.handleForgotPassword)
	}
	authGroup.POST("/signup", h.handleSignup)
	authGroup.GET("/logout", h.handleLogout)
	authGroup.PATCH("/reset-password/:token", h.handleResetPassword)
	authGroup.PATCH("/update-password", h.Protect(), h.handleUpdatePassword)

	apiGroup.GET("/users/me", h.Protect(), h.handleMe)

	adminGroup := apiGroup.Group("/admin", h.Protect(), h.RestrictTo(models.RoleAdmin))
	adminGroup.GET("/activity", h.handleActivity)
}

type signupRequest struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) handleSignup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if req.Password != req.PasswordConfirm {
		respondError(c, http.StatusBadRequest, "passwords do not match")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to process password")
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        db.NormalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         models.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, db.ErrEmailTaken) {
			respondError(c, http.StatusConflict, "email already in use")
			return
		}
		h.logger.Error("signup: create user failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to create user")
		return
	}

	// Welcome mail is best-effort; signup never fails on it.
	go func(to, name string) {
		if err := h.mailer.SendWelcome(context.Background(), to, name); err != nil {
			h.logger.Warn("signup: welcome email failed", zap.String("email", to), zap.Error(err))
		}
	}(user.Email, user.Name)

	h.issueSession(c, user, http.StatusCreated, models.ActivitySignup)
}

func (h *Handler) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "please provide email and password")
		return
	}

	user, err := h.users.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			respondError(c, http.StatusUnauthorized, "incorrect email or password")
			return
		}
		h.logger.Error("login: user lookup failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to log in")
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		h.record(c, user, models.ActivityLoginFailed)
		respondError(c, http.StatusUnauthorized, "incorrect email or password")
		return
	}

	h.issueSession(c, user, http.StatusOK, models.ActivityLogin)
}

// handleLogout overwrites the session cookie with a short-lived placeholder.
// The JWT itself stays valid until expiry; only the cookie carry is dropped.
func (h *Handler) handleLogout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, "loggedout", 10, "/", "", h.secureCookies, true)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) handleMe(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		abortUnauthorized(c, "you are not logged in; please log in to get access")
		return
	}
	respondUser(c, http.StatusOK, "", user.Sanitize())
}

func (h *Handler) handleActivity(c *gin.Context) {
	if h.activity == nil {
		respondError(c, http.StatusServiceUnavailable, "activity log not configured")
		return
	}

	activities, err := h.activity.Recent(c.Request.Context(), 100)
	if err != nil {
		h.logger.Error("activity: query failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to load activity")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"results": len(activities),
		"data":    gin.H{"activity": activities},
	})
}

// issueSession signs a token for the user, sets the session cookie, records
// the event and writes the success envelope.
func (h *Handler) issueSession(c *gin.Context, user *models.User, status int, event string) {
	token, _, err := h.auth.SignToken(user.ID)
	if err != nil {
		h.logger.Error("failed to sign session token", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to generate token")
		return
	}

	h.setSessionCookie(c, token)
	h.record(c, user, event)
	respondUser(c, status, token, user.Sanitize())
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	maxAge := h.cookieDays * 24 * 60 * 60
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, maxAge, "/", "", h.secureCookies, true)
}

// record appends to the activity log when one is wired. Failures are logged
// and swallowed; the log must never block an auth flow.
func (h *Handler) record(c *gin.Context, user *models.User, event string) {
	if event == "" {
		return
	}

	activity := models.Activity{UserID: user.ID, Email: user.Email, Event: event}
	if err := h.activity.Record(c.Request.Context(), activity); err != nil {
		h.logger.Warn("activity record failed", zap.String("event", event), zap.Error(err))
	}
}

func (h *Handler) resetURL(rawToken string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", h.frontendURL, rawToken)
}
