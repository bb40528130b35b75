package chasers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchaser/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the chasers service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches chaser routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/chasers", h.create)
	rg.GET("/chasers", h.list)
	rg.GET("/chasers/:id", h.get)
	rg.PATCH("/chasers/:id", h.updateStatus)
	rg.DELETE("/chasers/:id", h.delete)
}

// RegisterWebhookRoutes attaches the response webhook. The group is expected
// to carry webhook authentication.
func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/response", h.webhook)
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	created, err := h.Svc.Create(c.Request.Context(), req.input())
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create chaser", nil)
		return
	}

	dto := toChaserDTO(created)
	respond.Created(c, gin.H{
		"chaser":   dto,
		"schedule": dto.Schedule,
		"message":  fmt.Sprintf("Chaser created successfully with %d scheduled outreach attempts", len(dto.Schedule)),
	})
}

func (h *Handler) list(c *gin.Context) {
	cases, err := h.Svc.List(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list chasers", nil)
		return
	}
	out := make([]chaserDTO, 0, len(cases))
	for _, cs := range cases {
		out = append(out, toChaserDTO(cs))
	}
	respond.OK(c, gin.H{"chasers": out, "total": len(out)})
}

func (h *Handler) get(c *gin.Context) {
	cs, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "failed to fetch chaser")
		return
	}
	respond.OK(c, toChaserDTO(cs))
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "status is required", nil)
		return
	}
	cs, err := h.Svc.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.writeError(c, err, "failed to update chaser")
		return
	}
	respond.OK(c, toChaserDTO(cs))
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err, "failed to delete chaser")
		return
	}
	respond.NoContent(c)
}

func (h *Handler) webhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Type == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "type is required", nil)
		return
	}
	ev := WebhookEvent{
		Type:          req.Type,
		CaseID:        req.ChaserID,
		AttemptNumber: req.AttemptNumber,
		MessageID:     req.MessageID,
	}
	if req.Timestamp != nil {
		ev.At = *req.Timestamp
	}
	attempt, err := h.Svc.HandleWebhook(c.Request.Context(), ev)
	if err != nil {
		h.writeError(c, err, "failed to process response")
		return
	}
	respond.OK(c, gin.H{
		"success": true,
		"message": "Response recorded successfully",
		"attempt": toAttemptDTO(attempt),
	})
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "chaser not found", nil)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidStatus):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
