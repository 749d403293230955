// Package reminder sweeps upcoming occurrences and queues a reminder for
// every registered attendee, once per occurrence.
package reminder

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/halcyon-intra/portal-events-api/internal/models"
	"github.com/halcyon-intra/portal-events-api/internal/notifier"
	"github.com/halcyon-intra/portal-events-api/pkg/config"
)

type occurrenceStore interface {
	ListDueForReminder(ctx context.Context, from, to time.Time) ([]models.Occurrence, error)
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
}

type registrationStore interface {
	ListByEvent(ctx context.Context, eventID string) ([]models.Registration, error)
}

type notificationSink interface {
	Enqueue(msg notifier.Message) error
}

// Sweeper periodically finds occurrences starting within the lead window and
// enqueues reminders for their attendees.
type Sweeper struct {
	occs   occurrenceStore
	regs   registrationStore
	sink   notificationSink
	lead   time.Duration
	spec   string
	logger *zap.Logger
	cron   *cron.Cron
	now    func() time.Time
}

// NewSweeper builds a sweeper from config.
func NewSweeper(occs occurrenceStore, regs registrationStore, sink notificationSink, cfg config.ReminderConfig, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	lead := cfg.Lead
	if lead <= 0 {
		lead = 24 * time.Hour
	}
	spec := cfg.CronSpec
	if spec == "" {
		spec = "@every 15m"
	}
	return &Sweeper{
		occs:   occs,
		regs:   regs,
		sink:   sink,
		lead:   lead,
		spec:   spec,
		logger: logger,
		now:    time.Now,
	}
}

// Start schedules the sweep on the configured cron spec.
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.spec, func() {
		if err := s.Run(ctx); err != nil {
			s.logger.Error("reminder sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Sugar().Infow("reminder sweeper started", "spec", s.spec, "lead", s.lead.String())
	return nil
}

// Stop halts the cron scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Sugar().Infow("reminder sweeper stopped")
}

// Run executes one sweep. An occurrence is stamped as swept only after all
// of its reminders were handed to the sink, so a mid-sweep crash retries the
// whole occurrence rather than silently skipping attendees.
func (s *Sweeper) Run(ctx context.Context) error {
	now := s.now()
	due, err := s.occs.ListDueForReminder(ctx, now, now.Add(s.lead))
	if err != nil {
		return err
	}

	for i := range due {
		occ := &due[i]
		if err := s.remind(ctx, occ); err != nil {
			s.logger.Warn("skipping occurrence in reminder sweep",
				zap.String("occurrence_id", occ.ID), zap.Error(err))
			continue
		}
		if err := s.occs.MarkReminderSent(ctx, occ.ID, now); err != nil {
			s.logger.Warn("failed to stamp reminder sweep",
				zap.String("occurrence_id", occ.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *Sweeper) remind(ctx context.Context, occ *models.Occurrence) error {
	regs, err := s.regs.ListByEvent(ctx, occ.ID)
	if err != nil {
		return err
	}
	payload := notifier.OccurrencePayload{
		ID:           occ.ID,
		Title:        occ.Title,
		ResourceName: occ.ResourceName,
		StartAt:      occ.StartAt,
		EndAt:        occ.EndAt,
	}
	for _, reg := range regs {
		msg := notifier.Message{
			Kind:       notifier.KindEventReminder,
			Occurrence: payload,
			Attendee:   notifier.AttendeePayload{Name: reg.AttendeeName, Email: reg.AttendeeEmail},
		}
		if err := s.sink.Enqueue(msg); err != nil {
			s.logger.Warn("failed to enqueue reminder",
				zap.String("occurrence_id", occ.ID),
				zap.String("email", reg.AttendeeEmail),
				zap.Error(err))
		}
	}
	return nil
}
