package customers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchaser/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the directory service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches customer routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/customers", h.list)
	rg.POST("/customers", h.create)
	rg.GET("/customers/search", h.search)
	rg.GET("/customers/:id", h.get)
}

type createRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Notes   string `json:"notes"`
}

func (h *Handler) list(c *gin.Context) {
	out, err := h.Svc.List(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch customers", nil)
		return
	}
	respond.OK(c, gin.H{"customers": out, "total": len(out)})
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	created, err := h.Svc.Create(c.Request.Context(), CreateInput(req))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", "name and email are required", nil)
		case errors.Is(err, ErrDuplicateEmail):
			respond.Error(c, http.StatusConflict, "conflict", ErrDuplicateEmail.Error(), gin.H{"customer": created})
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create customer", nil)
		}
		return
	}
	respond.Created(c, created)
}

func (h *Handler) search(c *gin.Context) {
	q := c.Query("q")
	out, err := h.Svc.Search(c.Request.Context(), q)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to search customers", nil)
		return
	}
	body := gin.H{"customers": out, "total": len(out)}
	if len([]rune(q)) < minSearchLen {
		body["message"] = "Query must be at least 2 characters"
	}
	respond.OK(c, body)
}

func (h *Handler) get(c *gin.Context) {
	out, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "customer not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch customer", nil)
		return
	}
	respond.OK(c, out)
}
