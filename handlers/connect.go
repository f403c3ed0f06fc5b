package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kinship/middleware"
	"kinship/models"
)

func (h *Handler) Followers(c *gin.Context) {
	h.connections(c, models.Followers)
}

func (h *Handler) Following(c *gin.Context) {
	h.connections(c, models.Following)
}

// connections lists the caller's edges, or those of ?userId= when given.
func (h *Handler) connections(c *gin.Context, dir models.Direction) {
	var (
		page models.Page[models.Connection]
		err  error
	)
	ctx := c.Request.Context()
	query := c.Query("q")
	if owner := c.Query("userId"); owner != "" {
		page, err = h.Graph.ConnectionsOf(ctx, owner, dir, query, pageRequest(c))
	} else {
		page, err = h.Graph.Connections(ctx, middleware.UserID(c), dir, query, pageRequest(c))
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) Follow(c *gin.Context) {
	if err := h.Graph.Follow(c.Request.Context(), middleware.UserID(c), c.Param("userId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Followed successfully"})
}

func (h *Handler) Unfollow(c *gin.Context) {
	if err := h.Graph.Unfollow(c.Request.Context(), middleware.UserID(c), c.Param("userId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Unfollowed successfully"})
}
