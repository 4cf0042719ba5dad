package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mediatheque/internal/models"
)

type subscriberRequest struct {
	Name      *string `json:"name"`
	FirstName *string `json:"first_name"`
	Email     *string `json:"email"`
	Address   *string `json:"address"`
	Phone     *string `json:"phone"`
}

func (r subscriberRequest) patch() models.SubscriberPatch {
	return models.SubscriberPatch{
		Name:      r.Name,
		FirstName: r.FirstName,
		Email:     r.Email,
		Address:   r.Address,
		Phone:     r.Phone,
	}
}

func (h *LibraryHandler) createSubscriber(c *gin.Context) {
	var req subscriberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	subscriber := &models.Subscriber{
		Name:      deref(req.Name),
		FirstName: deref(req.FirstName),
		Email:     deref(req.Email),
		Address:   deref(req.Address),
		Phone:     deref(req.Phone),
	}
	id, err := h.directory.RegisterSubscriber(c.Request.Context(), subscriber)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *LibraryHandler) listSubscribers(c *gin.Context) {
	subscribers, err := h.directory.ListSubscribers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(subscribers))
}

func (h *LibraryHandler) getSubscriber(c *gin.Context) {
	id, ok := parseID(c, "subscriber")
	if !ok {
		return
	}
	subscriber, err := h.directory.GetSubscriber(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, subscriber)
}

func (h *LibraryHandler) updateSubscriber(c *gin.Context) {
	id, ok := parseID(c, "subscriber")
	if !ok {
		return
	}
	var req subscriberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.directory.UpdateSubscriber(c.Request.Context(), id, req.patch())
	if err != nil {
		writeError(c, err)
		return
	}
	writeAffected(c, "subscriber updated", n)
}

func (h *LibraryHandler) deleteSubscriber(c *gin.Context) {
	id, ok := parseID(c, "subscriber")
	if !ok {
		return
	}
	n, err := h.directory.DeleteSubscriber(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeAffected(c, "subscriber deleted", n)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
