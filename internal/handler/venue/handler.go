package venue

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/locaro/venue-api/internal/handler"
	"github.com/locaro/venue-api/internal/model"
	"github.com/locaro/venue-api/internal/service/listing"
)

type Handler struct {
	service listing.Service
}

func NewHandler(service listing.Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/venues", h.List)
}

func (h *Handler) List(c *gin.Context) {
	filter := model.VenueFilter{
		Query:    c.Query("q"),
		Category: c.Query("category"),
		District: c.Query("district"),
	}

	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	page, err := h.service.Page(c.Request.Context(), filter, c.Query("capacity"), pageSize, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(page))
}
