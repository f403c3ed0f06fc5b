package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"kinship/apperr"
	"kinship/security"
)

const oauthStateCookie = "oauth_state"

func (h *Handler) googleEnabled(c *gin.Context) bool {
	if h.Google == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": "Google sign-in is not configured"})
		return false
	}
	return true
}

// GoogleURL starts the OAuth code flow. The state is echoed back in a cookie
// and checked on the callback.
func (h *Handler) GoogleURL(c *gin.Context) {
	if !h.googleEnabled(c) {
		return
	}
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, 600, "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, gin.H{"url": h.Google.AuthURL(state)})
}

func (h *Handler) GoogleCallback(c *gin.Context) {
	if !h.googleEnabled(c) {
		return
	}
	code := c.Query("code")
	if code == "" {
		h.respondError(c, apperr.Field("code", "Authorization code missing"))
		return
	}
	if state, err := c.Cookie(oauthStateCookie); err != nil || state == "" || state != c.Query("state") {
		h.respondError(c, apperr.Field("state", "Invalid OAuth state"))
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, "/", "", c.Request.TLS != nil, true)

	identity, err := h.Google.Exchange(c.Request.Context(), code)
	if err != nil {
		h.googleFailed(c, err)
		return
	}
	session, err := h.Accounts.SignInExternal(c.Request.Context(), identity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type googleCredential struct {
	Credential string `json:"credential"`
}

// GoogleCredential signs in with a Google Identity Services ID token.
func (h *Handler) GoogleCredential(c *gin.Context) {
	if !h.googleEnabled(c) {
		return
	}
	var in googleCredential
	if err := bindJSON(c, &in); err != nil {
		h.respondError(c, err)
		return
	}
	if in.Credential == "" {
		h.respondError(c, apperr.Field("credential", "Credential is required"))
		return
	}

	identity, err := h.Google.VerifyCredential(c.Request.Context(), in.Credential)
	if err != nil {
		h.googleFailed(c, err)
		return
	}
	session, err := h.Accounts.SignInExternal(c.Request.Context(), identity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) googleFailed(c *gin.Context, err error) {
	if errors.Is(err, security.ErrGoogleDisabled) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": "Google sign-in is not configured"})
		return
	}
	h.log.Warn("google sign-in failed", zap.Error(err))
	h.respondError(c, apperr.Unauthorized("Google authentication failed"))
}
