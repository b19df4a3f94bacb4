package handlers

import (
	"net/http"
	"time"

	"github.com/geocoder89/accounthub/internal/config"
	"github.com/geocoder89/accounthub/internal/http/middlewares"
	"github.com/geocoder89/accounthub/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

type SessionHandler struct {
	sessions *service.SessionService
	cfg      config.Config
}

func NewSessionHandler(sessions *service.SessionService, cfg config.Config) *SessionHandler {
	return &SessionHandler{sessions: sessions, cfg: cfg}
}

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *SessionHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	result, appErr := h.sessions.Login(cctx, service.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})

	if appErr != nil {
		RespondAppError(ctx, appErr)
		return
	}

	h.setSessionCookies(ctx, result)

	Respond(ctx, http.StatusCreated, gin.H{
		"user":         result.User,
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
	}, "Logged in successfully")
}

func (h *SessionHandler) Refresh(ctx *gin.Context) {
	raw, err := ctx.Cookie(refreshCookieName)

	if err != nil || raw == "" {
		// fall back to the request body
		var req RefreshRequest

		_ = ctx.ShouldBindJSON(&req)

		raw = req.RefreshToken
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	result, appErr := h.sessions.Refresh(cctx, raw)

	if appErr != nil {
		RespondAppError(ctx, appErr)
		return
	}

	h.setSessionCookies(ctx, result)

	Respond(ctx, http.StatusOK, gin.H{
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
	}, "Session refreshed")
}

func (h *SessionHandler) Logout(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	h.sessions.Logout(cctx, userID)

	h.clearSessionCookies(ctx)

	Respond(ctx, http.StatusOK, nil, "Logged out successfully")
}

// Both session cookies are HttpOnly and Secure; the browser is the
// only intended holder of the raw tokens.

func (h *SessionHandler) setSessionCookies(ctx *gin.Context, result *service.SessionResult) {
	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		accessCookieName,
		result.AccessToken,
		int(h.cfg.AccessTokenTTL.Seconds()),
		"/",
		h.cfg.CookieDomain,
		true,
		true,
	)

	ctx.SetCookie(
		refreshCookieName,
		result.RefreshToken,
		int(time.Until(result.RefreshExpiresAt).Seconds()),
		"/",
		h.cfg.CookieDomain,
		true,
		true,
	)
}

func (h *SessionHandler) clearSessionCookies(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(accessCookieName, "", -1, "/", h.cfg.CookieDomain, true, true)
	ctx.SetCookie(refreshCookieName, "", -1, "/", h.cfg.CookieDomain, true, true)
}
