package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/halcyon-intra/portal-events-api/internal/service"
	appErrors "github.com/halcyon-intra/portal-events-api/pkg/errors"
	"github.com/halcyon-intra/portal-events-api/pkg/response"
)

// ResourceHandler manages location endpoints.
type ResourceHandler struct {
	service *service.ResourceService
}

// NewResourceHandler constructs handler.
func NewResourceHandler(svc *service.ResourceService) *ResourceHandler {
	return &ResourceHandler{service: svc}
}

// List godoc
// @Summary List locations
// @Tags Resources
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/resources [get]
func (h *ResourceHandler) List(c *gin.Context) {
	resources, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resources, nil)
}

// Create godoc
// @Summary Create a location
// @Tags Resources
// @Accept json
// @Produce json
// @Param payload body service.CreateResourceRequest true "Location payload"
// @Success 201 {object} response.Envelope
// @Router /admin/resources [post]
func (h *ResourceHandler) Create(c *gin.Context) {
	var req service.CreateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	res, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}
