package broadcast

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/locaro/venue-api/internal/handler"
	"github.com/locaro/venue-api/internal/model"
	"github.com/locaro/venue-api/internal/service/broadcast"
	apperrors "github.com/locaro/venue-api/pkg/errors"
)

type Handler struct {
	service broadcast.Service
}

func NewHandler(service broadcast.Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	group := r.Group("/broadcasts")
	{
		group.POST("", h.Dispatch)
		group.GET("/:id", h.Get)
		group.POST("/backfill", h.Backfill)
	}
}

type dispatchRequest struct {
	GuestCount   *int    `json:"guest_count"`
	Location     *string `json:"location"`
	Description  string  `json:"description"`
	Requirements string  `json:"requirements"`
	ContactName  string  `json:"contact_name" binding:"required"`
	ContactEmail string  `json:"contact_email" binding:"required,email"`
	ContactPhone string  `json:"contact_phone"`
}

func (h *Handler) Dispatch(c *gin.Context) {
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request: "+err.Error()))
		return
	}

	b, err := h.service.Dispatch(c.Request.Context(), &model.BroadcastCriteria{
		GuestCount:   req.GuestCount,
		Location:     req.Location,
		Description:  req.Description,
		Requirements: req.Requirements,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
	})
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(b))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid broadcast id"))
		return
	}

	b, logs, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"broadcast":  b,
		"recipients": logs,
	}))
}

func (h *Handler) Backfill(c *gin.Context) {
	deltas, err := h.service.Backfill(c.Request.Context())
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"repaired": len(deltas),
		"deltas":   deltas,
	}))
}
