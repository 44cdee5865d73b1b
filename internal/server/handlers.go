package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/errors"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/logger"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/pipeline"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/providers"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/quota"
)

const maxUploadBytes = 10 << 20

type handlers struct {
	gate         *quota.Gate
	orchestrator *pipeline.Orchestrator
	projects     *pipeline.ProjectStore
	uploader     providers.BlobUploader
	logger       logger.Logger
}

// getUsage reports the caller's standing for one generation kind without
// consuming anything.
func (h *handlers) getUsage(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
		return
	}

	kind, err := quota.ParseKind(c.Param("kind"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	decision, err := h.gate.CheckAndAdvise(c.Request.Context(), user.ID, kind)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}

// createGeneration runs the whole pipeline synchronously and returns the
// finished project.
func (h *handlers) createGeneration(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
		return
	}

	var req pipeline.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperrors.NewValidationError("body", "malformed request: "+err.Error()))
		return
	}

	project, err := h.orchestrator.Run(c.Request.Context(), user.ID, user.Email, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

// getProject returns one of the caller's finished projects.
func (h *handlers) getProject(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
		return
	}

	project, err := h.projects.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if project.UserID != user.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such project"})
		return
	}

	c.JSON(http.StatusOK, project)
}

// uploadAsset stores a character reference photo and returns its public URL,
// which the caller then passes back in a generation request.
func (h *handlers) uploadAsset(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
		return
	}

	mimeType := c.ContentType()
	switch mimeType {
	case "image/png", "image/jpeg", "image/webp":
	default:
		h.writeError(c, apperrors.NewValidationError("content-type", "unsupported media type"))
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUploadBytes+1))
	if err != nil {
		h.writeError(c, apperrors.NewValidationError("body", "unreadable body"))
		return
	}
	if len(data) == 0 {
		h.writeError(c, apperrors.NewValidationError("body", "empty body"))
		return
	}
	if len(data) > maxUploadBytes {
		h.writeError(c, apperrors.NewValidationError("body", "upload too large"))
		return
	}

	url, err := h.uploader.UploadBlob(c.Request.Context(), data, mimeType)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"url": url})
}

// writeError maps the error taxonomy onto HTTP. Upstream provider detail is
// never echoed to clients.
func (h *handlers) writeError(c *gin.Context, err error) {
	std := apperrors.AsStandard(err)
	status := apperrors.HTTPStatus(std.Code)

	body := gin.H{
		"error": std.Message,
		"code":  string(std.Code),
	}
	switch std.Code {
	case apperrors.ErrCodeUpstreamRejected, apperrors.ErrCodeUpstreamUnavailable:
		body["error"] = "generation failed, please try again"
	case apperrors.ErrCodeQuotaExceeded:
		for key, value := range std.Metadata {
			body[key] = value
		}
	case apperrors.ErrCodeInternal:
		body["error"] = "internal error"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", map[string]interface{}{
			"path":  c.FullPath(),
			"code":  string(std.Code),
			"error": std.Message,
		})
	}

	c.JSON(status, body)
}
