package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/halcyon-intra/portal-events-api/internal/models"
	"github.com/halcyon-intra/portal-events-api/internal/repository"
	"github.com/halcyon-intra/portal-events-api/internal/schedule"
	"github.com/halcyon-intra/portal-events-api/pkg/config"
	appErrors "github.com/halcyon-intra/portal-events-api/pkg/errors"
)

type occurrenceStore interface {
	List(ctx context.Context, filter models.OccurrenceFilter) ([]models.Occurrence, int, error)
	FindByID(ctx context.Context, id string) (*models.Occurrence, error)
	BatchInsert(ctx context.Context, occurrences []models.Occurrence) error
	Update(ctx context.Context, occ *models.Occurrence) error
	Delete(ctx context.Context, id string) error
}

type conflictChecker interface {
	Check(ctx context.Context, resourceID string, candidateStart, candidateEnd time.Time, excludeID string) ConflictCheck
}

type resourceResolver interface {
	Lookup(ctx context.Context, id, name, address string) (*models.Resource, bool, error)
	FindOrCreateByName(ctx context.Context, name string) (*models.Resource, error)
}

// EventTemplateRequest carries the fields shared by every occurrence a
// single save produces.
type EventTemplateRequest struct {
	Title             string                  `json:"title" validate:"required"`
	Description       string                  `json:"description"`
	DetailHTML        string                  `json:"detail_html"`
	ResourceID        string                  `json:"resource_id"`
	ResourceName      string                  `json:"resource_name"`
	ResourceAddress   string                  `json:"resource_address"`
	StartAt           time.Time               `json:"start_at" validate:"required"`
	EndAt             time.Time               `json:"end_at" validate:"required"`
	Status            models.OccurrenceStatus `json:"status" validate:"omitempty,oneof=draft published"`
	Visibility        models.Visibility       `json:"visibility" validate:"omitempty,oneof=public private"`
	AllowRegistration bool                    `json:"allow_registration"`
	Capacity          *int                    `json:"capacity" validate:"omitempty,gte=0"`
	RegOpensAt        *time.Time              `json:"reg_opens_at"`
	RegClosesAt       *time.Time              `json:"reg_closes_at"`
	ColorTag          string                  `json:"color_tag"`
	BannerRef         string                  `json:"banner_ref"`
}

// CreateEventRequest is an admin save: one template plus the recurrence rule
// describing how it repeats.
type CreateEventRequest struct {
	EventTemplateRequest
	Rule models.RecurrenceRule `json:"recurrence"`
}

type cachedListing struct {
	Items []models.Occurrence `json:"items"`
	Total int                 `json:"total"`
}

// EventService materializes recurrence requests into stored occurrences and
// serves the channel listings.
type EventService struct {
	repo      occurrenceStore
	conflicts conflictChecker
	resources resourceResolver
	cache     *repository.ListingCache
	cfg       config.EventsConfig
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewEventService instantiates EventService. cache may be nil.
func NewEventService(repo occurrenceStore, conflicts conflictChecker, resources resourceResolver, cache *repository.ListingCache, cfg config.EventsConfig, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxOccurrences <= 0 {
		cfg.MaxOccurrences = schedule.DefaultMaxOccurrences
	}
	return &EventService{
		repo:      repo,
		conflicts: conflicts,
		resources: resources,
		cache:     cache,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
	}
}

// Materialize expands one save request into concrete occurrences, drops the
// candidates that collide with existing bookings on the location, and stores
// the survivors atomically. The report keeps generation order for both the
// inserted and skipped sets.
func (s *EventService) Materialize(ctx context.Context, req CreateEventRequest) (*models.MaterializeReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if !req.EndAt.After(req.StartAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event end must be after start")
	}

	res, err := s.resolveResource(ctx, req.EventTemplateRequest)
	if err != nil {
		return nil, err
	}

	spans, err := schedule.Expand(schedule.Span{Start: req.StartAt, End: req.EndAt}, req.Rule, s.cfg.MaxOccurrences)
	if err != nil {
		if errors.Is(err, schedule.ErrOpenEndedRule) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "recurrence rule needs a count or an until date")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recurrence rule")
	}
	if len(spans) == 0 {
		return nil, appErrors.ErrNoOccurrences
	}

	report := &models.MaterializeReport{Requested: len(spans)}
	accepted := make([]schedule.Span, 0, len(spans))
	for _, span := range spans {
		check := s.conflicts.Check(ctx, res.ID, span.Start, span.End, "")
		if check.Degraded {
			report.Degraded = true
		}
		reason := ""
		if check.Conflict {
			reason = check.Message
		} else if prev, ok := overlapsSibling(accepted, span); ok {
			// Occurrences of one request must keep disjoint windows on their
			// resource. A duration longer than the recurrence step would
			// otherwise overlap the previous occurrence, and the store probe
			// cannot see siblings that are not persisted yet.
			reason = fmt.Sprintf("overlaps an earlier occurrence of the same series (%s - %s)",
				prev.Start.Format("2006-01-02 15:04"), prev.End.Format("15:04"))
		}
		if reason != "" {
			report.Skipped = append(report.Skipped, models.SkippedOccurrence{
				StartAt: span.Start,
				EndAt:   span.End,
				Reason:  reason,
			})
			continue
		}
		accepted = append(accepted, span)
	}

	if len(accepted) == 0 {
		return nil, appErrors.Clone(appErrors.ErrAllOccurrencesConflicted,
			fmt.Sprintf("every generated occurrence conflicts with an existing booking: %s", report.Skipped[0].Reason))
	}

	occurrences := make([]models.Occurrence, 0, len(accepted))
	for _, span := range accepted {
		occurrences = append(occurrences, s.buildOccurrence(req.EventTemplateRequest, res, span))
	}

	if err := s.repo.BatchInsert(ctx, occurrences); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTransactionFailed.Code, appErrors.ErrTransactionFailed.Status, "failed to store occurrences")
	}

	report.Inserted = occurrences
	s.metrics.RecordMaterialization(len(report.Inserted), len(report.Skipped))
	s.cache.Invalidate(ctx)
	s.logger.Info("materialized recurrence request",
		zap.String("title", req.Title),
		zap.String("resource_id", res.ID),
		zap.Int("requested", report.Requested),
		zap.Int("inserted", len(report.Inserted)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Bool("degraded", report.Degraded),
	)
	return report, nil
}

// UpdateOccurrence edits one occurrence in place. Siblings materialized from
// the same recurrence request are never touched. The conflict check excludes
// the occurrence itself so a shifted event does not collide with its own old
// slot.
func (s *EventService) UpdateOccurrence(ctx context.Context, id string, req EventTemplateRequest) (*models.Occurrence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if !req.EndAt.After(req.StartAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event end must be after start")
	}

	occ, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}

	res, err := s.resolveResource(ctx, req)
	if err != nil {
		return nil, err
	}

	check := s.conflicts.Check(ctx, res.ID, req.StartAt, req.EndAt, occ.ID)
	if check.Degraded {
		s.logger.Warn("updating occurrence without conflict check", zap.String("id", occ.ID))
	}
	if check.Conflict {
		return nil, appErrors.Clone(appErrors.ErrConflict, check.Message)
	}

	s.applyTemplate(occ, req, res)

	if err := s.repo.Update(ctx, occ); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	s.cache.Invalidate(ctx)
	return occ, nil
}

// Delete removes one occurrence.
func (s *EventService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	s.cache.Invalidate(ctx)
	return nil
}

// ListChannel serves the published listing for one channel, Redis-cached.
// Each channel sees its own visibility only: the portal lists public events,
// the intranet lists private ones.
func (s *EventService) ListChannel(ctx context.Context, channel models.Visibility, filter models.OccurrenceFilter) ([]models.Occurrence, int, error) {
	filter.Status = models.StatusPublished
	filter.Visibility = channel

	suffix := listingKey(channel, filter)
	var cached cachedListing
	if s.cache.Get(ctx, suffix, &cached) {
		s.metrics.RecordCacheLookup(true)
		return cached.Items, cached.Total, nil
	}
	s.metrics.RecordCacheLookup(false)

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	s.cache.Set(ctx, suffix, cachedListing{Items: items, Total: total})
	return items, total, nil
}

// GetChannel loads one occurrence as seen from a channel. Drafts and events
// outside the channel's visibility read as not found rather than forbidden.
func (s *EventService) GetChannel(ctx context.Context, channel models.Visibility, id string) (*models.Occurrence, error) {
	occ, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if !visibleOn(occ, channel) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}
	return occ, nil
}

// ListAdmin serves the unfiltered admin listing, drafts included.
func (s *EventService) ListAdmin(ctx context.Context, filter models.OccurrenceFilter) ([]models.Occurrence, int, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return items, total, nil
}

// GetAdmin loads one occurrence without channel gating.
func (s *EventService) GetAdmin(ctx context.Context, id string) (*models.Occurrence, error) {
	occ, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return occ, nil
}

func (s *EventService) resolveResource(ctx context.Context, req EventTemplateRequest) (*models.Resource, error) {
	if req.ResourceID == "" && req.ResourceName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a location is required")
	}
	res, found, err := s.resources.Lookup(ctx, req.ResourceID, req.ResourceName, req.ResourceAddress)
	if err != nil {
		return nil, err
	}
	if found {
		return res, nil
	}
	if req.ResourceName == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "location not found")
	}
	return s.resources.FindOrCreateByName(ctx, req.ResourceName)
}

func (s *EventService) buildOccurrence(req EventTemplateRequest, res *models.Resource, span schedule.Span) models.Occurrence {
	occ := models.Occurrence{
		Title:             req.Title,
		Description:       req.Description,
		DetailHTML:        req.DetailHTML,
		ResourceID:        res.ID,
		ResourceName:      res.Name,
		StartAt:           span.Start,
		EndAt:             span.End,
		Status:            req.Status,
		Visibility:        req.Visibility,
		AllowRegistration: req.AllowRegistration,
		ColorTag:          req.ColorTag,
		BannerRef:         req.BannerRef,
	}
	if occ.Status == "" {
		occ.Status = models.StatusDraft
	}
	if occ.Visibility == "" {
		occ.Visibility = models.VisibilityPrivate
	}
	if req.Capacity != nil {
		capacity := *req.Capacity
		remaining := capacity
		occ.Capacity = &capacity
		occ.Remaining = &remaining
	}
	if occ.AllowRegistration {
		occ.RegOpensAt, occ.RegClosesAt = s.registrationWindow(req, span.Start)
	}
	return occ
}

// applyTemplate copies a template onto an existing occurrence. When capacity
// is tracked, remaining is recomputed from the seats already sold so an edit
// never resurrects or strands attendees.
func (s *EventService) applyTemplate(occ *models.Occurrence, req EventTemplateRequest, res *models.Resource) {
	sold := 0
	if occ.Capacity != nil && occ.Remaining != nil {
		sold = *occ.Capacity - *occ.Remaining
		if sold < 0 {
			sold = 0
		}
	}

	occ.Title = req.Title
	occ.Description = req.Description
	occ.DetailHTML = req.DetailHTML
	occ.ResourceID = res.ID
	occ.ResourceName = res.Name
	occ.StartAt = req.StartAt
	occ.EndAt = req.EndAt
	if req.Status != "" {
		occ.Status = req.Status
	}
	if req.Visibility != "" {
		occ.Visibility = req.Visibility
	}
	occ.AllowRegistration = req.AllowRegistration
	occ.ColorTag = req.ColorTag
	occ.BannerRef = req.BannerRef

	if req.Capacity == nil {
		occ.Capacity = nil
		occ.Remaining = nil
	} else {
		capacity := *req.Capacity
		remaining := capacity - sold
		if remaining < 0 {
			remaining = 0
		}
		occ.Capacity = &capacity
		occ.Remaining = &remaining
	}

	if occ.AllowRegistration {
		occ.RegOpensAt, occ.RegClosesAt = s.registrationWindow(req, occ.StartAt)
	} else {
		occ.RegOpensAt = nil
		occ.RegClosesAt = nil
	}
}

// registrationWindow prefers an explicit window from the payload and falls
// back to the configured day offsets before the event start.
func (s *EventService) registrationWindow(req EventTemplateRequest, startAt time.Time) (*time.Time, *time.Time) {
	if req.RegOpensAt != nil && req.RegClosesAt != nil {
		opens, closes := *req.RegOpensAt, *req.RegClosesAt
		if !opens.Before(closes) {
			closes = opens.Add(30 * time.Minute)
		}
		return &opens, &closes
	}
	opens, closes := schedule.DeriveRegistrationWindow(startAt, s.cfg.RegOpensOffsetDays, s.cfg.RegClosesOffsetDays)
	return &opens, &closes
}

func overlapsSibling(accepted []schedule.Span, candidate schedule.Span) (schedule.Span, bool) {
	for _, prev := range accepted {
		if schedule.Overlaps(candidate.Start, candidate.End, prev.Start, prev.End) {
			return prev, true
		}
	}
	return schedule.Span{}, false
}

func visibleOn(occ *models.Occurrence, channel models.Visibility) bool {
	return occ.Status == models.StatusPublished && occ.Visibility == channel
}

func listingKey(channel models.Visibility, filter models.OccurrenceFilter) string {
	from, to := "", ""
	if filter.From != nil {
		from = filter.From.UTC().Format(time.RFC3339)
	}
	if filter.To != nil {
		to = filter.To.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("list:%s:%s:%d:%d:%s:%s", channel, filter.ResourceID, filter.Page, filter.PageSize, from, to)
}
