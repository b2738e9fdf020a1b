package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/idprint/internal/auth"
	"github.com/geocoder89/idprint/internal/config"
	"github.com/geocoder89/idprint/internal/domain/session"
	"github.com/geocoder89/idprint/internal/domain/user"
	"github.com/geocoder89/idprint/internal/security"
	"github.com/gin-gonic/gin"
)

const refreshCookieName = "refresh_token"

type UserStore interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, p user.CreateParams) (user.User, error)
}

type RefreshTokenStore interface {
	Create(ctx context.Context, row session.RefreshToken) error
	Rotate(ctx context.Context, oldID, presentedHash string, next session.RefreshToken) error
	Revoke(ctx context.Context, id string) error
}

type AuthHandler struct {
	users   UserStore
	refresh RefreshTokenStore
	jwt     *auth.Manager
	cfg     config.Config
}

func NewAuthHandler(users UserStore, refresh RefreshTokenStore, jwtManager *auth.Manager, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		users:   users,
		refresh: refresh,
		jwt:     jwtManager,
		cfg:     cfg,
	}
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req user.SignUpRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	u, err := h.users.Create(cctx, user.CreateParams{
		Email:        req.Email,
		Username:     req.Username,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         user.RoleUser,
		Points:       h.cfg.StartingPoints,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailAlreadyUsed) {
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}
		RespondInternal(ctx, "Could not create user")
		return
	}

	h.issueSession(ctx, cctx, u, http.StatusCreated)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			slog.Default().ErrorContext(ctx.Request.Context(), "login lookup failed", "err", err)
		}
		RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	if err := security.CheckPassword(u.PasswordHash, req.Password); err != nil {
		RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	h.issueSession(ctx, cctx, u, http.StatusOK)
}

func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw, err := ctx.Cookie(refreshCookieName)
	if err != nil || raw == "" {
		RespondUnauthorized(ctx, "no_refresh", "Missing refresh token")
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)
	if err != nil {
		RespondUnauthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// role and email come from the stored user, not the old token
	u, err := h.users.GetByID(cctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondUnauthorized(ctx, "invalid_refresh", "Invalid refresh token")
			return
		}
		slog.Default().ErrorContext(ctx.Request.Context(), "refresh user lookup failed", "err", err)
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	newRaw, newJTI, newExpiresAt, err := h.jwt.GenerateRefreshToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	err = h.refresh.Rotate(cctx, claims.JTI, h.jwt.HashRefreshToken(raw), session.RefreshToken{
		ID:        newJTI,
		UserID:    u.ID,
		TokenHash: h.jwt.HashRefreshToken(newRaw),
		ExpiresAt: newExpiresAt,
		CreatedAt: time.Now().UTC(),
	})
	switch {
	case err == nil:
	case errors.Is(err, session.ErrRefreshExpired):
		RespondUnauthorized(ctx, "expired_refresh", "Refresh token expired.")
		return
	case errors.Is(err, session.ErrRefreshNotFound),
		errors.Is(err, session.ErrRefreshRevoked),
		errors.Is(err, session.ErrRefreshMismatch):
		RespondUnauthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	default:
		slog.Default().ErrorContext(ctx.Request.Context(), "refresh rotation failed", "err", err)
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.setRefreshCookie(ctx, newRaw, newExpiresAt)

	ctx.JSON(http.StatusOK, gin.H{"accessToken": accessToken})
}

// Logout always clears the cookie; revoking is best effort.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	defer func() {
		h.clearRefreshCookie(ctx)
		ctx.Status(http.StatusNoContent)
	}()

	raw, err := ctx.Cookie(refreshCookieName)
	if err != nil || raw == "" {
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)
	if err != nil {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.refresh.Revoke(cctx, claims.JTI); err != nil {
		slog.Default().WarnContext(ctx.Request.Context(), "refresh revoke failed", "err", err)
	}
}

func (h *AuthHandler) issueSession(ctx *gin.Context, cctx context.Context, u user.User, status int) {
	accessToken, err := h.jwt.GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	raw, jti, expiresAt, err := h.jwt.GenerateRefreshToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondInternal(ctx, "Could not generate refresh token")
		return
	}

	err = h.refresh.Create(cctx, session.RefreshToken{
		ID:        jti,
		UserID:    u.ID,
		TokenHash: h.jwt.HashRefreshToken(raw),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	h.setRefreshCookie(ctx, raw, expiresAt)

	ctx.JSON(status, gin.H{"accessToken": accessToken})
}

func (h *AuthHandler) setRefreshCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(refreshCookieName, raw, int(time.Until(expiresAt).Seconds()), "/auth", "", h.cfg.Env == "prod", true)
}

func (h *AuthHandler) clearRefreshCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(refreshCookieName, "", -1, "/auth", "", h.cfg.Env == "prod", true)
}
