package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fenwick-labs/gatehouse/internal/auth"
	"github.com/fenwick-labs/gatehouse/internal/db"
	"github.com/fenwick-labs/gatehouse/internal/models"
)

// resetTokenTTL bounds the validity window of an emailed reset token.
const resetTokenTTL = 10 * time.Minute

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password" binding:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`
}

type updatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent" binding:"required"`
	Password        string `json:"password" binding:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`
}

func (h *Handler) handleForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()

	user, err := h.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, "there is no user with that email address")
			return
		}
		h.logger.Error("forgot password: user lookup failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to process request")
		return
	}

	raw, hash, err := auth.NewResetToken()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to generate reset token")
		return
	}

	expiresAt := time.Now().UTC().Add(resetTokenTTL)
	if err := h.users.SetResetToken(ctx, user.ID, hash, expiresAt); err != nil {
		h.logger.Error("forgot password: store token failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to process request")
		return
	}

	if err := h.mailer.SendPasswordReset(ctx, user.Email, h.resetURL(raw)); err != nil {
		// Roll the stored token back so a token the user never received
		// cannot linger.
		if clearErr := h.users.ClearResetToken(ctx, user.ID); clearErr != nil {
			h.logger.Error("forgot password: token rollback failed", zap.Error(clearErr))
		}
		h.logger.Error("forgot password: email failed", zap.String("email", user.Email), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "there was an error sending the email; try again later")
		return
	}

	h.record(c, user, models.ActivityResetRequested)
	respondMessage(c, http.StatusOK, "token sent to email")
}

func (h *Handler) handleResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if req.Password != req.PasswordConfirm {
		respondError(c, http.StatusBadRequest, "passwords do not match")
		return
	}

	ctx := c.Request.Context()
	raw := c.Param("token")

	user, err := h.users.FindByResetTokenHash(ctx, auth.HashResetToken(raw))
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			respondError(c, http.StatusBadRequest, "token is invalid or has expired")
			return
		}
		h.logger.Error("reset password: token lookup failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to process request")
		return
	}

	if user.ResetTokenExpired(time.Now().UTC()) {
		if clearErr := h.users.ClearResetToken(ctx, user.ID); clearErr != nil {
			h.logger.Error("reset password: clear expired token failed", zap.Error(clearErr))
		}
		respondError(c, http.StatusBadRequest, "token is invalid or has expired")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to process password")
		return
	}

	// UpdatePassword also clears the reset fields, making the token
	// single-use.
	if err := h.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		h.logger.Error("reset password: update failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to update password")
		return
	}

	h.issueSession(c, user, http.StatusOK, models.ActivityPasswordReset)
}

func (h *Handler) handleUpdatePassword(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		abortUnauthorized(c, "you are not logged in; please log in to get access")
		return
	}

	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if req.Password != req.PasswordConfirm {
		respondError(c, http.StatusBadRequest, "passwords do not match")
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.PasswordCurrent); err != nil {
		respondError(c, http.StatusUnauthorized, "your current password is wrong")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to process password")
		return
	}

	if err := h.users.UpdatePassword(c.Request.Context(), user.ID, hash); err != nil {
		h.logger.Error("update password: update failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to update password")
		return
	}

	h.issueSession(c, user, http.StatusOK, models.ActivityPasswordUpdated)
}
