package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kinship/middleware"
	"kinship/services"
)

func (h *Handler) Register(c *gin.Context) {
	var in services.RegisterInput
	if err := bindJSON(c, &in); err != nil {
		h.respondError(c, err)
		return
	}
	user, err := h.Accounts.Register(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) Login(c *gin.Context) {
	var in services.LoginInput
	if err := bindJSON(c, &in); err != nil {
		h.respondError(c, err)
		return
	}
	session, err := h.Accounts.Login(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) Current(c *gin.Context) {
	user, err := h.Accounts.Current(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
