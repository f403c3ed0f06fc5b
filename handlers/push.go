package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kinship/middleware"
	"kinship/services"
)

// Notifications lists the caller's notifications; ?unread=true keeps only
// unread ones.
func (h *Handler) Notifications(c *gin.Context) {
	unread, _ := strconv.ParseBool(c.Query("unread"))
	page, err := h.Deps.Notifications.List(c.Request.Context(), middleware.UserID(c), unread, pageRequest(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	if err := h.Deps.Notifications.MarkRead(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.Deps.Notifications.MarkAllRead(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
}

func (h *Handler) VapidPublicKey(c *gin.Context) {
	key := h.Deps.Notifications.VAPIDPublicKey()
	if key == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Web Push is not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": key})
}

func (h *Handler) SubscribePush(c *gin.Context) {
	var in services.SubscribeInput
	if err := bindJSON(c, &in); err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.Deps.Notifications.Subscribe(c.Request.Context(), middleware.UserID(c), in); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Push subscription saved"})
}
