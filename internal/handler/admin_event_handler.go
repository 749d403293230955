package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/halcyon-intra/portal-events-api/internal/models"
	"github.com/halcyon-intra/portal-events-api/internal/service"
	appErrors "github.com/halcyon-intra/portal-events-api/pkg/errors"
	"github.com/halcyon-intra/portal-events-api/pkg/response"
)

// AdminEventHandler serves the management endpoints: materializing recurrence
// requests, editing single occurrences and inspecting registrations.
type AdminEventHandler struct {
	events        *service.EventService
	registrations *service.RegistrationService
}

// NewAdminEventHandler constructs handler.
func NewAdminEventHandler(events *service.EventService, registrations *service.RegistrationService) *AdminEventHandler {
	return &AdminEventHandler{events: events, registrations: registrations}
}

// Create godoc
// @Summary Create event occurrences from a recurrence request
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body service.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Router /admin/events [post]
func (h *AdminEventHandler) Create(c *gin.Context) {
	var req service.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.events.Materialize(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// List godoc
// @Summary List all occurrences, drafts included
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/events [get]
func (h *AdminEventHandler) List(c *gin.Context) {
	filter := parseOccurrenceFilter(c)
	if status := c.Query("status"); status != "" {
		filter.Status = models.OccurrenceStatus(status)
	}
	if visibility := c.Query("visibility"); visibility != "" {
		filter.Visibility = models.Visibility(visibility)
	}
	items, total, err := h.events.ListAdmin(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get one occurrence
// @Tags Admin
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /admin/events/{id} [get]
func (h *AdminEventHandler) Get(c *gin.Context) {
	occ, err := h.events.GetAdmin(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occ, nil)
}

// Update godoc
// @Summary Update one occurrence in place
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body service.EventTemplateRequest true "Event payload"
// @Success 200 {object} response.Envelope
// @Router /admin/events/{id} [put]
func (h *AdminEventHandler) Update(c *gin.Context) {
	var req service.EventTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	occ, err := h.events.UpdateOccurrence(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occ, nil)
}

// Delete godoc
// @Summary Delete one occurrence
// @Tags Admin
// @Param id path string true "Event ID"
// @Success 204
// @Router /admin/events/{id} [delete]
func (h *AdminEventHandler) Delete(c *gin.Context) {
	if err := h.events.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Registrations godoc
// @Summary List registrations of one occurrence
// @Tags Admin
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /admin/events/{id}/registrations [get]
func (h *AdminEventHandler) Registrations(c *gin.Context) {
	regs, err := h.registrations.ListByEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, regs, nil)
}
