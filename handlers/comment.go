package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kinship/middleware"
	"kinship/services"
)

func (h *Handler) AddComment(c *gin.Context) {
	var in services.CommentInput
	if err := bindJSON(c, &in); err != nil {
		h.respondError(c, err)
		return
	}
	comment, err := h.Comments.Add(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// Thread returns the post with a page of its comments and their replies.
func (h *Handler) Thread(c *gin.Context) {
	thread, err := h.Comments.Thread(c.Request.Context(), c.Param("postId"), pageRequest(c), middleware.Viewer(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *Handler) EditComment(c *gin.Context) {
	var in services.ContentInput
	if err := bindJSON(c, &in); err != nil {
		h.respondError(c, err)
		return
	}
	comment, err := h.Comments.Edit(c.Request.Context(), middleware.UserID(c), c.Param("commentId"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *Handler) DeleteComment(c *gin.Context) {
	err := h.Comments.Delete(c.Request.Context(), middleware.UserID(c), c.Param("postId"), c.Param("commentId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Comment deleted"})
}

func (h *Handler) AddReply(c *gin.Context) {
	var in services.ContentInput
	if err := bindJSON(c, &in); err != nil {
		h.respondError(c, err)
		return
	}
	reply, err := h.Comments.AddReply(c.Request.Context(), middleware.UserID(c), c.Param("commentId"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reply)
}

func (h *Handler) EditReply(c *gin.Context) {
	var in services.ContentInput
	if err := bindJSON(c, &in); err != nil {
		h.respondError(c, err)
		return
	}
	reply, err := h.Comments.EditReply(c.Request.Context(), middleware.UserID(c), c.Param("replyId"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *Handler) DeleteReply(c *gin.Context) {
	if err := h.Comments.DeleteReply(c.Request.Context(), middleware.UserID(c), c.Param("replyId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Reply deleted"})
}
