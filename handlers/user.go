package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kinship/middleware"
	"kinship/services"
)

func (h *Handler) MyProfile(c *gin.Context) {
	view, err := h.Profiles.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CreateProfile accepts JSON, or a multipart form with an avatar file.
func (h *Handler) CreateProfile(c *gin.Context) {
	var in services.ProfileInput
	if err := bindBody(c, &in); err != nil {
		h.respondError(c, err)
		return
	}
	avatar, err := h.firstUpload(c, "avatar")
	if err != nil {
		h.respondError(c, err)
		return
	}

	view, err := h.Profiles.Create(c.Request.Context(), middleware.UserID(c), in, avatar)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) ListProfiles(c *gin.Context) {
	page, err := h.Profiles.List(c.Request.Context(), pageRequest(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) ProfileByUser(c *gin.Context) {
	view, err := h.Profiles.GetByUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) ProfileByID(c *gin.Context) {
	view, err := h.Profiles.GetByID(c.Request.Context(), c.Param("profileId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var in services.ProfileInput
	if err := bindBody(c, &in); err != nil {
		h.respondError(c, err)
		return
	}
	avatar, err := h.firstUpload(c, "avatar")
	if err != nil {
		h.respondError(c, err)
		return
	}

	view, err := h.Profiles.Update(c.Request.Context(), middleware.UserID(c), c.Param("profileId"), in, avatar)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteProfile removes the caller's profile, follow edges and account.
func (h *Handler) DeleteProfile(c *gin.Context) {
	if err := h.Profiles.Delete(c.Request.Context(), middleware.UserID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
