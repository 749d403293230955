package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/halcyon-intra/portal-events-api/internal/models"
	"github.com/halcyon-intra/portal-events-api/internal/schedule"
)

type conflictStore interface {
	ListByResourceOverlapping(ctx context.Context, resourceID string, start, end time.Time, limit int) ([]models.Occurrence, error)
}

// ConflictCheck is the outcome of one conflict probe. Degraded marks the
// fail-open path: the store query itself failed, so the save proceeds as if
// no conflict existed. Double-booking during such windows is a known,
// operator-correctable risk; blocking every save during a store outage is
// not acceptable.
type ConflictCheck struct {
	Conflict bool
	Degraded bool
	WithID   string
	Message  string
}

// ConflictDetector probes a resource's existing bookings for time overlap.
type ConflictDetector struct {
	store   conflictStore
	logger  *zap.Logger
	metrics *MetricsService
}

// NewConflictDetector constructs a ConflictDetector.
func NewConflictDetector(store conflictStore, logger *zap.Logger, metrics *MetricsService) *ConflictDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictDetector{store: store, logger: logger, metrics: metrics}
}

// Check reports whether [candidateStart, candidateEnd) overlaps any existing
// occurrence on the resource. excludeID skips one occurrence, so an edit does
// not conflict with itself. Intervals touching at a boundary do not conflict.
func (d *ConflictDetector) Check(ctx context.Context, resourceID string, candidateStart, candidateEnd time.Time, excludeID string) ConflictCheck {
	existing, err := d.store.ListByResourceOverlapping(ctx, resourceID, candidateStart, candidateEnd, 0)
	if err != nil {
		d.logger.Warn("conflict check degraded, proceeding without it",
			zap.String("resource_id", resourceID),
			zap.Time("candidate_start", candidateStart),
			zap.Error(err),
		)
		d.metrics.RecordDegradedConflictCheck()
		return ConflictCheck{Degraded: true}
	}

	for _, occ := range existing {
		if occ.ID == excludeID {
			continue
		}
		if schedule.Overlaps(candidateStart, candidateEnd, occ.StartAt, occ.EndAt) {
			return ConflictCheck{
				Conflict: true,
				WithID:   occ.ID,
				Message: fmt.Sprintf("overlaps %q (%s - %s)",
					occ.Title,
					occ.StartAt.Format("2006-01-02 15:04"),
					occ.EndAt.Format("15:04"),
				),
			}
		}
	}
	return ConflictCheck{}
}
