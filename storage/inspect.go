package storage

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"kinship/apperr"
	"kinship/models"
)

// Allowed media types, keyed by sniffed MIME type.
var allowed = map[string]bool{
	"image/jpeg":       true,
	"image/png":        true,
	"image/gif":        true,
	"video/mp4":        true,
	"video/x-msvideo":  true,
	"video/quicktime":  true,
	"video/x-matroska": true,
}

// Inspect sniffs the content of an uploaded file and rejects anything that
// is not an allowed image or video, or that is larger than maxBytes. The
// client supplied content type is ignored.
func Inspect(field, filename string, data []byte, maxBytes int64) (models.Upload, error) {
	if len(data) == 0 {
		return models.Upload{}, apperr.Field(field, "File is empty")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return models.Upload{}, apperr.Field(field, fmt.Sprintf("File exceeds %d MB", maxBytes>>20))
	}

	mt := mimetype.Detect(data)
	if !allowed[mt.String()] {
		return models.Upload{}, apperr.Field(field, "Unsupported file type: "+mt.String())
	}
	return models.Upload{Filename: filename, ContentType: mt.String(), Data: data}, nil
}

// IsVideo reports whether an inspected upload is a video.
func IsVideo(u models.Upload) bool {
	return strings.HasPrefix(u.ContentType, "video/")
}
