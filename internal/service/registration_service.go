package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/halcyon-intra/portal-events-api/internal/models"
	"github.com/halcyon-intra/portal-events-api/internal/notifier"
	"github.com/halcyon-intra/portal-events-api/internal/repository"
	appErrors "github.com/halcyon-intra/portal-events-api/pkg/errors"
)

type registrationRepository interface {
	Register(ctx context.Context, p repository.RegisterParams) (*models.Registration, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.Registration, error)
}

type occurrenceReader interface {
	FindByID(ctx context.Context, id string) (*models.Occurrence, error)
}

type notificationSink interface {
	Enqueue(msg notifier.Message) error
}

// RegisterRequest is one attendee's registration attempt.
type RegisterRequest struct {
	AttendeeName  string `json:"attendee_name" validate:"required"`
	AttendeeEmail string `json:"attendee_email" validate:"required,email"`
}

// RegistrationService validates and commits registrations, then notifies.
type RegistrationService struct {
	regs      registrationRepository
	occs      occurrenceReader
	sink      notificationSink
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	now       func() time.Time
}

// NewRegistrationService instantiates RegistrationService. sink may be nil
// when outbound mail is disabled.
func NewRegistrationService(regs registrationRepository, occs occurrenceReader, sink notificationSink, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		regs:      regs,
		occs:      occs,
		sink:      sink,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Register books one seat on the given channel. All business preconditions
// are judged inside the repository's transaction against the locked row;
// this layer normalizes input, maps rejections to API errors and emits the
// confirmation only after the commit.
func (s *RegistrationService) Register(ctx context.Context, occurrenceID string, channel models.Visibility, req RegisterRequest) (*models.Registration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	if occurrenceID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event id is required")
	}

	reg, err := s.regs.Register(ctx, repository.RegisterParams{
		OccurrenceID:  occurrenceID,
		AttendeeName:  req.AttendeeName,
		AttendeeEmail: models.NormalizeEmail(req.AttendeeEmail),
		Channel:       channel,
		Now:           s.now(),
	})
	if err != nil {
		mapped := mapRegistrationError(err)
		s.metrics.RecordRegistration(appErrors.FromError(mapped).Code)
		return nil, mapped
	}
	s.metrics.RecordRegistration("success")

	s.notifyConfirmation(ctx, reg)
	return reg, nil
}

// ListByEvent returns all registrations for an occurrence.
func (s *RegistrationService) ListByEvent(ctx context.Context, eventID string) ([]models.Registration, error) {
	if _, err := s.occs.FindByID(ctx, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	regs, err := s.regs.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	return regs, nil
}

// notifyConfirmation enqueues the confirmation for an already-committed
// registration. Failures are logged only; the registration stands.
func (s *RegistrationService) notifyConfirmation(ctx context.Context, reg *models.Registration) {
	if s.sink == nil {
		return
	}
	occ, err := s.occs.FindByID(ctx, reg.EventID)
	if err != nil {
		s.logger.Warn("skipping confirmation, could not load occurrence",
			zap.String("event_id", reg.EventID), zap.Error(err))
		s.metrics.RecordNotification("skipped")
		return
	}
	msg := notifier.Message{
		Kind: notifier.KindRegistrationConfirmation,
		Occurrence: notifier.OccurrencePayload{
			ID:           occ.ID,
			Title:        occ.Title,
			ResourceName: occ.ResourceName,
			StartAt:      occ.StartAt,
			EndAt:        occ.EndAt,
			DetailHTML:   occ.DetailHTML,
		},
		Attendee: notifier.AttendeePayload{Name: reg.AttendeeName, Email: reg.AttendeeEmail},
	}
	if err := s.sink.Enqueue(msg); err != nil {
		s.logger.Warn("failed to enqueue confirmation", zap.String("event_id", reg.EventID), zap.Error(err))
		s.metrics.RecordNotification("enqueue_failed")
		return
	}
	s.metrics.RecordNotification("enqueued")
}

func mapRegistrationError(err error) error {
	switch {
	case errors.Is(err, repository.ErrOccurrenceNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, "event not found")
	case errors.Is(err, repository.ErrNotOpenForChannel):
		return appErrors.ErrRegistrationClosed
	case errors.Is(err, repository.ErrRegistrationDisabled):
		return appErrors.ErrRegistrationDisabled
	case errors.Is(err, repository.ErrRegistrationNotOpen):
		return appErrors.ErrRegistrationNotOpen
	case errors.Is(err, repository.ErrRegistrationWindowClosed):
		return appErrors.ErrRegistrationEnded
	case errors.Is(err, repository.ErrEventStarted):
		return appErrors.ErrEventAlreadyStarted
	case errors.Is(err, repository.ErrDuplicateRegistration):
		return appErrors.ErrDuplicateRegistration
	case errors.Is(err, repository.ErrEventFull):
		return appErrors.ErrEventFull
	default:
		return appErrors.Wrap(err, appErrors.ErrTransactionFailed.Code, appErrors.ErrTransactionFailed.Status, "registration transaction failed")
	}
}
