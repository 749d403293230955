package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/halcyon-intra/portal-events-api/internal/models"
	"github.com/halcyon-intra/portal-events-api/internal/service"
	appErrors "github.com/halcyon-intra/portal-events-api/pkg/errors"
	"github.com/halcyon-intra/portal-events-api/pkg/response"
)

// EventHandler serves the channel-facing event endpoints: the public portal
// listing and the authenticated intranet listing, plus registration.
type EventHandler struct {
	events        *service.EventService
	registrations *service.RegistrationService
}

// NewEventHandler constructs handler.
func NewEventHandler(events *service.EventService, registrations *service.RegistrationService) *EventHandler {
	return &EventHandler{events: events, registrations: registrations}
}

func parseOccurrenceFilter(c *gin.Context) models.OccurrenceFilter {
	var filter models.OccurrenceFilter
	filter.ResourceID = c.Query("resource_id")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = limit
	}
	if raw := c.Query("from"); raw != "" {
		if from, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.From = &from
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.To = &to
		}
	}
	return filter
}

func (h *EventHandler) list(c *gin.Context, channel models.Visibility) {
	filter := parseOccurrenceFilter(c)
	items, total, err := h.events.ListChannel(c.Request.Context(), channel, filter)
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

func (h *EventHandler) get(c *gin.Context, channel models.Visibility) {
	occ, err := h.events.GetChannel(c.Request.Context(), channel, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occ, nil)
}

func (h *EventHandler) register(c *gin.Context, channel models.Visibility) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	reg, err := h.registrations.Register(c.Request.Context(), c.Param("id"), channel, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reg)
}

// ListPublic godoc
// @Summary List published public events
// @Tags Events
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) ListPublic(c *gin.Context) {
	h.list(c, models.VisibilityPublic)
}

// GetPublic godoc
// @Summary Get one public event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) GetPublic(c *gin.Context) {
	h.get(c, models.VisibilityPublic)
}

// RegisterPublic godoc
// @Summary Register for a public event
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body service.RegisterRequest true "Attendee"
// @Success 201 {object} response.Envelope
// @Router /events/{id}/registrations [post]
func (h *EventHandler) RegisterPublic(c *gin.Context) {
	h.register(c, models.VisibilityPublic)
}

// ListPrivate godoc
// @Summary List published events for authenticated staff
// @Tags Events
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /intranet/events [get]
func (h *EventHandler) ListPrivate(c *gin.Context) {
	h.list(c, models.VisibilityPrivate)
}

// GetPrivate godoc
// @Summary Get one event for authenticated staff
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /intranet/events/{id} [get]
func (h *EventHandler) GetPrivate(c *gin.Context) {
	h.get(c, models.VisibilityPrivate)
}

// RegisterPrivate godoc
// @Summary Register for an event on the intranet channel
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body service.RegisterRequest true "Attendee"
// @Success 201 {object} response.Envelope
// @Router /intranet/events/{id}/registrations [post]
func (h *EventHandler) RegisterPrivate(c *gin.Context) {
	h.register(c, models.VisibilityPrivate)
}
