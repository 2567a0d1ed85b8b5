package cvs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"cvgenius-backend/internal/extract"
	"cvgenius-backend/internal/llm"
	"cvgenius-backend/internal/shared/metrics"
	"cvgenius-backend/internal/shared/server/middleware"
	"cvgenius-backend/internal/shared/server/respond"
)

const (
	maxUploadSize  = 10 << 20 // 10MB
	maxPictureSize = 5 << 20  // 5MB
)

// PDFRenderer converts a CV page to PDF bytes.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc      *Service
	Renderer PDFRenderer
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, renderer PDFRenderer) *Handler {
	return &Handler{Svc: svc, Renderer: renderer}
}

// RegisterRoutes attaches owner-facing CV routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/cv/upload", h.upload)
	rg.GET("/cv", h.list)
	rg.GET("/cv/count", h.count)
	rg.GET("/cv/:urlId", h.get)
	rg.PUT("/cv/:urlId", h.update)
	rg.DELETE("/cv/:urlId", h.delete)
	rg.POST("/cv/:urlId/picture", h.uploadPicture)
	rg.POST("/cv/:urlId/repair", h.repair)
	rg.GET("/cv/:urlId/pdf", h.exportPDF)
}

// RegisterPublicRoutes attaches viewer routes that need no authentication.
func (h *Handler) RegisterPublicRoutes(r gin.IRouter) {
	r.GET("/view-cv/:urlId", h.viewHTML)
	r.GET("/placeholder/:urlId", h.viewPlaceholder)
	r.GET("/api/cv/:urlId/metadata", h.metadata)
	r.GET("/api/cv/:urlId/picture/*storageKey", h.servePicture)
}

// ViewByCustomName serves a CV page addressed by its custom URL name. It is
// registered as the router's fallback route.
func (h *Handler) ViewByCustomName(c *gin.Context) {
	name := c.Param("customUrlName")
	if name == "" || IsReservedURLName(name) {
		respond.Error(c, http.StatusNotFound, "not_found", "page not found", nil)
		return
	}

	cv, err := h.Svc.ViewByCustomName(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "cv not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to load cv", nil)
		return
	}
	h.serveHTML(c, cv.URLId)
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "unable to read file", nil)
		return
	}
	defer file.Close()

	mimeType := fileHeader.Header.Get("Content-Type")
	cv, err := h.Svc.Upload(c.Request.Context(), userID, fileHeader.Filename, mimeType, file)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, err.Error(), nil)
		case errors.Is(err, ErrQuotaExceeded):
			respond.Error(c, http.StatusForbidden, ErrorCodeQuota, "cv limit reached for your plan", nil)
		case errors.Is(err, extract.ErrUnsupportedType):
			respond.Error(c, http.StatusBadRequest, ErrorCodeExtraction, "unsupported file type, upload a PDF or Word document", nil)
		case errors.Is(err, extract.ErrEmptyInput):
			respond.Error(c, http.StatusBadRequest, ErrorCodeExtraction, "uploaded file is empty", nil)
		case errors.Is(err, extract.ErrNoExtractableText):
			respond.Error(c, http.StatusUnprocessableEntity, ErrorCodeExtraction, "no text could be extracted, the file may be scanned or protected", nil)
		case errors.Is(err, llm.ErrUnavailable):
			respond.Error(c, http.StatusServiceUnavailable, ErrorCodeLLM, "extraction service is unavailable, try again shortly", nil)
		case errors.Is(err, llm.ErrRejected):
			respond.Error(c, http.StatusBadGateway, ErrorCodeLLM, "extraction service rejected the request", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to process cv", nil)
		}
		return
	}

	respond.JSON(c, http.StatusCreated, toUploadResponse(cv))
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	cv, err := h.Svc.Get(c.Request.Context(), userID, c.Param("urlId"))
	if err != nil {
		h.respondCVError(c, err, "failed to fetch cv")
		return
	}
	respond.JSON(c, http.StatusOK, toDetailResponse(cv))
}

func (h *Handler) update(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req struct {
		StructuredData StructuredCV `json:"structuredData"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "invalid request body", nil)
		return
	}

	cv, err := h.Svc.Update(c.Request.Context(), userID, c.Param("urlId"), req.StructuredData)
	if err != nil {
		h.respondCVError(c, err, "failed to update cv")
		return
	}
	respond.JSON(c, http.StatusOK, toDetailResponse(cv))
}

func (h *Handler) delete(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	if err := h.Svc.Delete(c.Request.Context(), userID, c.Param("urlId")); err != nil {
		h.respondCVError(c, err, "failed to delete cv")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) list(c *gin.Context) {
	if isGuest, ok := c.Get("isGuest"); ok {
		if guest, ok2 := isGuest.(bool); ok2 && guest {
			respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to view your CVs", nil)
			return
		}
	}

	userID := middleware.UserIDFromContext(c)
	limit := parseQueryInt(c, "limit", 20, 50)
	offset := parseQueryInt(c, "offset", 0, 0)

	cvList, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to list cvs", nil)
		return
	}

	resp := make([]gin.H, 0, len(cvList))
	for _, cv := range cvList {
		resp = append(resp, toListItem(cv))
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) count(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	count, err := h.Svc.Count(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to count cvs", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"count": count})
}

func (h *Handler) uploadPicture(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPictureSize)

	fileHeader, err := c.FormFile("picture")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "picture is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "unable to read picture", nil)
		return
	}
	defer file.Close()

	url, err := h.Svc.UploadProfilePicture(
		c.Request.Context(),
		userID,
		c.Param("urlId"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
	)
	if err != nil {
		h.respondCVError(c, err, "failed to upload picture")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"profilePictureUrl": url})
}

func (h *Handler) repair(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	cv, err := h.Svc.Repair(c.Request.Context(), userID, c.Param("urlId"))
	if err != nil {
		switch {
		case errors.Is(err, llm.ErrUnavailable):
			respond.Error(c, http.StatusServiceUnavailable, ErrorCodeLLM, "extraction service is unavailable, try again shortly", nil)
		case errors.Is(err, llm.ErrRejected):
			respond.Error(c, http.StatusBadGateway, ErrorCodeLLM, "extraction service rejected the request", nil)
		default:
			h.respondCVError(c, err, "failed to repair cv")
		}
		return
	}
	respond.JSON(c, http.StatusOK, toDetailResponse(cv))
}

func (h *Handler) exportPDF(c *gin.Context) {
	if h.Renderer == nil {
		respond.Error(c, http.StatusNotImplemented, ErrorCodeInternal, "pdf export is not configured", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)
	urlID := c.Param("urlId")

	if _, err := h.Svc.Get(c.Request.Context(), userID, urlID); err != nil {
		h.respondCVError(c, err, "failed to fetch cv")
		return
	}

	page, err := h.Svc.GenerateHTML(c.Request.Context(), urlID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to build pdf page", nil)
		return
	}

	pdf, err := h.Renderer.RenderPDF(c.Request.Context(), page)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to render pdf", nil)
		return
	}

	metrics.IncPDFExported()
	c.Header("Content-Disposition", `attachment; filename="cv.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *Handler) viewHTML(c *gin.Context) {
	h.serveHTML(c, c.Param("urlId"))
}

func (h *Handler) serveHTML(c *gin.Context, urlID string) {
	html, err := h.Svc.GenerateHTML(c.Request.Context(), urlID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "cv not found", nil)
		case errors.Is(err, llm.ErrUnavailable):
			respond.Error(c, http.StatusServiceUnavailable, ErrorCodeLLM, "page generation is unavailable, try again shortly", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to generate page", nil)
		}
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (h *Handler) viewPlaceholder(c *gin.Context) {
	page, err := h.Svc.PlaceholderPage(c.Request.Context(), c.Param("urlId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "cv not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to build placeholder", nil)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

func (h *Handler) servePicture(c *gin.Context) {
	storageKey := strings.TrimPrefix(c.Param("storageKey"), "/")

	rc, err := h.Svc.ProfilePicture(c.Request.Context(), c.Param("urlId"), storageKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "picture not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to load picture", nil)
		return
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to read picture", nil)
		return
	}
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

func (h *Handler) metadata(c *gin.Context) {
	cv, err := h.Svc.View(c.Request.Context(), c.Param("urlId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "cv not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to fetch cv", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{
		"urlId":      cv.URLId,
		"customUrl":  publicCustomURL(cv),
		"fileName":   cv.FileName,
		"uploadDate": cv.UploadDate,
		"language":   cv.StructuredData.Language,
		"name":       cv.StructuredData.PersonalInfo.Name,
	})
}

func (h *Handler) respondCVError(c *gin.Context, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "cv not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, fallbackMsg, nil)
	}
}

func parseQueryInt(c *gin.Context, name string, def, max int) int {
	out := def
	if v := c.Query(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			out = parsed
		}
	}
	if out < 0 {
		out = 0
	}
	if max > 0 && out > max {
		out = max
	}
	return out
}

func publicCustomURL(cv CV) string {
	if cv.CustomURLName == "" {
		return ""
	}
	return "/" + cv.CustomURLName
}

func toUploadResponse(cv CV) gin.H {
	return gin.H{
		"urlId":          cv.URLId,
		"customUrlName":  cv.CustomURLName,
		"customUrl":      publicCustomURL(cv),
		"fileName":       cv.FileName,
		"structuredData": cv.StructuredData,
		"degraded":       cv.Degraded,
		"uploadDate":     cv.UploadDate,
	}
}

func toDetailResponse(cv CV) gin.H {
	return gin.H{
		"urlId":             cv.URLId,
		"customUrlName":     cv.CustomURLName,
		"customUrl":         publicCustomURL(cv),
		"fileName":          cv.FileName,
		"fileSize":          cv.FileSize,
		"fileType":          cv.FileType,
		"structuredData":    cv.StructuredData,
		"degraded":          cv.Degraded,
		"profilePictureUrl": cv.ProfilePictureURL,
		"uploadDate":        cv.UploadDate,
		"views":             cv.Views,
		"lastViewed":        cv.LastViewed,
	}
}

func toListItem(cv CV) gin.H {
	return gin.H{
		"urlId":      cv.URLId,
		"customUrl":  publicCustomURL(cv),
		"fileName":   cv.FileName,
		"name":       cv.StructuredData.PersonalInfo.Name,
		"degraded":   cv.Degraded,
		"uploadDate": cv.UploadDate,
		"views":      cv.Views,
	}
}
