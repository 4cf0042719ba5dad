package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createLoanRequest struct {
	SubscriberID string `json:"subscriber_id" binding:"required,uuid"`
	DocumentID   string `json:"document_id" binding:"required,uuid"`
}

func (h *LibraryHandler) createLoan(c *gin.Context) {
	var req createLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	subscriberID, err := uuid.Parse(req.SubscriberID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscriber id"})
		return
	}
	documentID, err := uuid.Parse(req.DocumentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}

	loan, err := h.ledger.CreateLoan(c.Request.Context(), subscriberID, documentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": loan.ID, "due_at": loan.DueAt})
}

func (h *LibraryHandler) returnLoan(c *gin.Context) {
	id, ok := parseID(c, "loan")
	if !ok {
		return
	}
	loan, err := h.ledger.ReturnLoan(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "loan returned", "loan": loan})
}

func (h *LibraryHandler) deleteLoan(c *gin.Context) {
	id, ok := parseID(c, "loan")
	if !ok {
		return
	}
	if err := h.ledger.DeleteLoan(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	writeAffected(c, "loan deleted", 1)
}

func (h *LibraryHandler) listLoans(c *gin.Context) {
	loans, err := h.ledger.ListLoans(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(loans))
}

func (h *LibraryHandler) listSubscriberLoans(c *gin.Context) {
	id, ok := parseID(c, "subscriber")
	if !ok {
		return
	}
	loans, err := h.ledger.ListSubscriberLoans(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(loans))
}

func (h *LibraryHandler) listOverdueLoans(c *gin.Context) {
	loans, err := h.ledger.ListOverdueLoans(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(loans))
}
