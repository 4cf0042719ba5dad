package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mediatheque/internal/services"
)

type LibraryHandler struct {
	catalog   services.Catalog
	directory services.SubscriberDirectory
	ledger    services.LoanLedger
	stats     services.StatsAggregator
}

func NewLibraryHandler(catalog services.Catalog, directory services.SubscriberDirectory, ledger services.LoanLedger, stats services.StatsAggregator) *LibraryHandler {
	return &LibraryHandler{catalog: catalog, directory: directory, ledger: ledger, stats: stats}
}

// RegisterRoutes mounts the API under /api. Middleware passed in applies to /api only.
func RegisterRoutes(r *gin.Engine, h *LibraryHandler, middleware ...gin.HandlerFunc) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api", middleware...)
	api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	// Subscriber endpoints
	api.GET("/subscribers", h.listSubscribers)
	api.POST("/subscribers", h.createSubscriber)
	api.GET("/subscribers/:id", h.getSubscriber)
	api.PUT("/subscribers/:id", h.updateSubscriber)
	api.DELETE("/subscribers/:id", h.deleteSubscriber)

	// Catalog endpoints
	api.GET("/documents", h.listDocuments)
	api.POST("/documents", h.createDocument)
	api.GET("/documents/stats", h.documentStats)
	api.GET("/documents/types", h.documentTypes)
	api.GET("/documents/:id", h.getDocument)
	api.PUT("/documents/:id", h.updateDocument)
	api.DELETE("/documents/:id", h.deleteDocument)
	api.PUT("/documents/:id/availability", h.updateAvailability)

	// Loan endpoints
	api.GET("/loans", h.listLoans)
	api.POST("/loans", h.createLoan)
	api.GET("/loans/overdue", h.listOverdueLoans)
	api.GET("/loans/subscriber/:id", h.listSubscriberLoans)
	api.POST("/loans/:id/return", h.returnLoan)
	api.DELETE("/loans/:id", h.deleteLoan)

	api.GET("/stats", h.libraryStats)
}

func (h *LibraryHandler) libraryStats(c *gin.Context) {
	stats, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// parseID reads the :id path parameter. On failure the 400 response is already written.
func parseID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + what + " id"})
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps service errors to HTTP statuses.
func writeError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":           verr.Error(),
			"missing_fields":  verr.Missing,
			"required_fields": services.DocumentRequiredFields,
		})
	case errors.Is(err, services.ErrNotLoanable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrLoanNotFound),
		errors.Is(err, services.ErrSubscriberNotFound),
		errors.Is(err, services.ErrDocumentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Printf("[ERROR] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func writeAffected(c *gin.Context, message string, affected int64) {
	c.JSON(http.StatusOK, gin.H{"message": message, "affected": affected})
}

// list keeps empty results as [] on the wire.
func list[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
