package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kinship/middleware"
	"kinship/models"
)

// Like and Unlike are idempotent: repeating one returns the same state.
func (h *Handler) Like(t models.TargetType) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := h.Likes.Like(c.Request.Context(), middleware.UserID(c), t, c.Param("id"))
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func (h *Handler) Unlike(t models.TargetType) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := h.Likes.Unlike(c.Request.Context(), middleware.UserID(c), t, c.Param("id"))
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func (h *Handler) Likers(t models.TargetType) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := h.Likes.Likers(c.Request.Context(), t, c.Param("id"))
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}
