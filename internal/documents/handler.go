package documents

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchaser/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document item routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/chasers/:id/documents", h.list)
	rg.PATCH("/chasers/:id/documents/:itemId", h.update)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.Svc.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list documents", nil)
		return
	}
	out := make([]ItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toResponse(it))
	}
	respond.OK(c, gin.H{"items": out, "total": len(out)})
}

func (h *Handler) update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	it, err := h.Svc.Update(c.Request.Context(), c.Param("id"), c.Param("itemId"), Update{Status: req.Status, Notes: req.Notes})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "document item not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to update document item", nil)
		}
		return
	}
	respond.OK(c, toResponse(it))
}
