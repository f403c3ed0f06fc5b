package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kinship/middleware"
	"kinship/services"
)

// CreatePost accepts JSON, or a multipart form whose media files are
// uploaded and appended after any media URLs.
func (h *Handler) CreatePost(c *gin.Context) {
	var in services.PostInput
	if err := bindBody(c, &in); err != nil {
		h.respondError(c, err)
		return
	}
	files, err := h.uploads(c, "media")
	if err != nil {
		h.respondError(c, err)
		return
	}

	post, err := h.Posts.Create(c.Request.Context(), middleware.UserID(c), in, files)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) ListPosts(c *gin.Context) {
	page, err := h.Posts.List(c.Request.Context(), pageRequest(c), middleware.Viewer(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) SearchPosts(c *gin.Context) {
	page, err := h.Posts.Search(c.Request.Context(), c.Query("query"), pageRequest(c), middleware.Viewer(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) MyPosts(c *gin.Context) {
	posts, err := h.Posts.Mine(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *Handler) GetPost(c *gin.Context) {
	post, err := h.Posts.Get(c.Request.Context(), c.Param("id"), middleware.Viewer(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) UpdatePost(c *gin.Context) {
	var in services.PostUpdate
	if err := bindBody(c, &in); err != nil {
		h.respondError(c, err)
		return
	}
	files, err := h.uploads(c, "media")
	if err != nil {
		h.respondError(c, err)
		return
	}

	post, err := h.Posts.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), in, files)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) DeletePost(c *gin.Context) {
	if err := h.Posts.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Post deleted"})
}
