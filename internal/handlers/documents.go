package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mediatheque/internal/models"
)

type documentRequest struct {
	Title       *string           `json:"title"`
	Author      *string           `json:"author"`
	Type        *string           `json:"type"`
	ISBN        *string           `json:"isbn"`
	PublishedAt *models.Timestamp `json:"published_at"`
}

func (r documentRequest) patch() models.DocumentPatch {
	return models.DocumentPatch{
		Title:       r.Title,
		Author:      r.Author,
		Type:        r.Type,
		ISBN:        r.ISBN,
		PublishedAt: r.PublishedAt,
	}
}

type availabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

func (h *LibraryHandler) createDocument(c *gin.Context) {
	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Availability and loans in the body are ignored: a new document is always available.
	document := &models.Document{
		Title:       deref(req.Title),
		Author:      deref(req.Author),
		Type:        deref(req.Type),
		ISBN:        deref(req.ISBN),
		PublishedAt: req.PublishedAt,
	}
	id, err := h.catalog.CreateDocument(c.Request.Context(), document)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// listDocuments serves the whole catalog or, in order of precedence, a text search,
// a type filter or an availability filter.
func (h *LibraryHandler) listDocuments(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		documents []models.Document
		err       error
	)
	switch {
	case c.Query("search") != "":
		documents, err = h.catalog.SearchDocuments(ctx, c.Query("search"))
	case c.Query("type") != "":
		documents, err = h.catalog.ListDocumentsByType(ctx, c.Query("type"))
	case c.Query("available") != "":
		available, perr := strconv.ParseBool(c.Query("available"))
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "available must be true or false"})
			return
		}
		documents, err = h.catalog.ListDocumentsByAvailability(ctx, available)
	default:
		documents, err = h.catalog.ListDocuments(ctx)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(documents))
}

func (h *LibraryHandler) getDocument(c *gin.Context) {
	id, ok := parseID(c, "document")
	if !ok {
		return
	}
	document, err := h.catalog.GetDocument(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, document)
}

func (h *LibraryHandler) updateDocument(c *gin.Context) {
	id, ok := parseID(c, "document")
	if !ok {
		return
	}
	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.catalog.UpdateDocument(c.Request.Context(), id, req.patch())
	if err != nil {
		writeError(c, err)
		return
	}
	writeAffected(c, "document updated", n)
}

func (h *LibraryHandler) deleteDocument(c *gin.Context) {
	id, ok := parseID(c, "document")
	if !ok {
		return
	}
	n, err := h.catalog.DeleteDocument(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeAffected(c, "document deleted", n)
}

func (h *LibraryHandler) updateAvailability(c *gin.Context) {
	id, ok := parseID(c, "document")
	if !ok {
		return
	}
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "available is required"})
		return
	}
	n, err := h.catalog.UpdateAvailability(c.Request.Context(), id, *req.Available)
	if err != nil {
		writeError(c, err)
		return
	}
	writeAffected(c, "availability updated", n)
}

func (h *LibraryHandler) documentStats(c *gin.Context) {
	stats, err := h.catalog.DocumentStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *LibraryHandler) documentTypes(c *gin.Context) {
	types, err := h.catalog.ListTypes(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(types))
}
