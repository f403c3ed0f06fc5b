// Package handlers adapts HTTP requests to the services. Handlers bind and
// shape requests; every rule lives in the services.
package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kinship/apperr"
	"kinship/models"
	"kinship/security"
	"kinship/services"
	"kinship/storage"
)

// Deps are the services the handlers call.
type Deps struct {
	Accounts      *services.Accounts
	Profiles      *services.Profiles
	Graph         *services.Graph
	Posts         *services.Posts
	Comments      *services.Comments
	Likes         *services.Likes
	Notifications *services.Notifications
	// Google is nil when Google sign-in is not configured.
	Google *security.Google
	// MaxUploadBytes caps each uploaded file.
	MaxUploadBytes int64
	Log            *zap.Logger
}

type Handler struct {
	Deps
	log *zap.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Deps: d, log: log.Named("http")}
}

// respondError writes err as {"message", "errors"}. Server-side failures are
// logged with their cause and reported without it.
func (h *Handler) respondError(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Internal(err)
	}
	status := apperr.Status(ae.Kind)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("requestId", c.GetString("requestId")),
			zap.Error(err),
		)
	}
	_ = c.Error(err)

	body := gin.H{"message": ae.Message}
	if len(ae.Fields) > 0 {
		body["errors"] = ae.Fields
	}
	c.AbortWithStatusJSON(status, body)
}

var errBadBody = apperr.New(apperr.KindValidation, "Invalid request body")

// bindJSON decodes the body. An empty body leaves dst at its zero value so
// the services report the missing fields.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return errBadBody
	}
	return nil
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// bindBody accepts JSON or, for routes with file fields, multipart forms.
func bindBody(c *gin.Context, dst any) error {
	if isMultipart(c) {
		if err := c.ShouldBind(dst); err != nil {
			return errBadBody
		}
		return nil
	}
	return bindJSON(c, dst)
}

// uploads reads and sniffs every file sent under field.
func (h *Handler) uploads(c *gin.Context, field string) ([]models.Upload, error) {
	if !isMultipart(c) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, errBadBody
	}
	files := form.File[field]
	out := make([]models.Upload, 0, len(files))
	for _, fh := range files {
		u, err := h.readUpload(field, fh)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (h *Handler) readUpload(field string, fh *multipart.FileHeader) (models.Upload, error) {
	if h.MaxUploadBytes > 0 && fh.Size > h.MaxUploadBytes {
		return models.Upload{}, apperr.Field(field, "File is too large")
	}
	f, err := fh.Open()
	if err != nil {
		return models.Upload{}, apperr.Internal(err)
	}
	defer f.Close()

	r := io.Reader(f)
	if h.MaxUploadBytes > 0 {
		r = io.LimitReader(f, h.MaxUploadBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return models.Upload{}, apperr.Internal(err)
	}
	return storage.Inspect(field, fh.Filename, data, h.MaxUploadBytes)
}

// firstUpload returns the single file under field, if any.
func (h *Handler) firstUpload(c *gin.Context, field string) (*models.Upload, error) {
	ups, err := h.uploads(c, field)
	if err != nil || len(ups) == 0 {
		return nil, err
	}
	return &ups[0], nil
}

// pageRequest reads page and limit. Malformed values fall back to defaults.
func pageRequest(c *gin.Context) models.PageRequest {
	var req models.PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		req = models.PageRequest{}
	}
	return req.Normalize()
}
