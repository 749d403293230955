package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/halcyon-intra/portal-events-api/internal/models"
)

const occurrenceColumns = `id, title, description, detail_html, resource_id, resource_name, start_at, end_at, status, visibility, allow_registration, capacity, remaining, reg_opens_at, reg_closes_at, color_tag, banner_ref, reminder_sent_at, created_at, updated_at`

// OccurrenceRepository persists event occurrences.
type OccurrenceRepository struct {
	db *sqlx.DB
}

// NewOccurrenceRepository constructs an occurrence repository.
func NewOccurrenceRepository(db *sqlx.DB) *OccurrenceRepository {
	return &OccurrenceRepository{db: db}
}

// List returns occurrences matching the filter, ordered by start ascending.
func (r *OccurrenceRepository) List(ctx context.Context, filter models.OccurrenceFilter) ([]models.Occurrence, int, error) {
	base := "FROM occurrences"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Visibility != "" {
		where = append(where, fmt.Sprintf("visibility = $%d", len(args)+1))
		args = append(args, filter.Visibility)
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.ResourceID != "" {
		where = append(where, fmt.Sprintf("resource_id = $%d", len(args)+1))
		args = append(args, filter.ResourceID)
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("end_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("start_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY start_at ASC LIMIT %d OFFSET %d", occurrenceColumns, base, whereClause, size, offset)
	var occurrences []models.Occurrence
	if err := r.db.SelectContext(ctx, &occurrences, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list occurrences: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count occurrences: %w", err)
	}
	return occurrences, total, nil
}

// FindByID loads one occurrence.
func (r *OccurrenceRepository) FindByID(ctx context.Context, id string) (*models.Occurrence, error) {
	query := fmt.Sprintf("SELECT %s FROM occurrences WHERE id = $1", occurrenceColumns)
	var occ models.Occurrence
	if err := r.db.GetContext(ctx, &occ, query, id); err != nil {
		return nil, err
	}
	return &occ, nil
}

// ListByResourceOverlapping returns occurrences on a resource whose window
// can overlap [start, end), ordered by start ascending. Bounding both sides
// keeps the row limit harmless: anything the limit would trim is already
// overlap-ineligible.
func (r *OccurrenceRepository) ListByResourceOverlapping(ctx context.Context, resourceID string, start, end time.Time, limit int) ([]models.Occurrence, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	query := fmt.Sprintf("SELECT %s FROM occurrences WHERE resource_id = $1 AND start_at < $2 AND end_at > $3 ORDER BY start_at ASC LIMIT %d", occurrenceColumns, limit)
	var occurrences []models.Occurrence
	if err := r.db.SelectContext(ctx, &occurrences, query, resourceID, end, start); err != nil {
		return nil, fmt.Errorf("list occurrences by resource: %w", err)
	}
	return occurrences, nil
}

// BatchInsert stores every occurrence within one transaction; either the
// whole batch commits or none of it does.
func (r *OccurrenceRepository) BatchInsert(ctx context.Context, occurrences []models.Occurrence) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch insert occurrences: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for i := range occurrences {
		payload := occurrences[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		if _, err = tx.NamedExecContext(ctx, `INSERT INTO occurrences (id, title, description, detail_html, resource_id, resource_name, start_at, end_at, status, visibility, allow_registration, capacity, remaining, reg_opens_at, reg_closes_at, color_tag, banner_ref, reminder_sent_at, created_at, updated_at) VALUES (:id, :title, :description, :detail_html, :resource_id, :resource_name, :start_at, :end_at, :status, :visibility, :allow_registration, :capacity, :remaining, :reg_opens_at, :reg_closes_at, :color_tag, :banner_ref, :reminder_sent_at, :created_at, :updated_at)`, &payload); err != nil {
			return fmt.Errorf("batch insert occurrence: %w", err)
		}
		occurrences[i] = payload
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit batch insert occurrences: %w", err)
	}
	return nil
}

// Update modifies a single occurrence in place. Sibling occurrences from the
// same recurrence request are never touched.
func (r *OccurrenceRepository) Update(ctx context.Context, occ *models.Occurrence) error {
	occ.UpdatedAt = time.Now().UTC()
	const query = `UPDATE occurrences SET title = :title, description = :description, detail_html = :detail_html, resource_id = :resource_id, resource_name = :resource_name, start_at = :start_at, end_at = :end_at, status = :status, visibility = :visibility, allow_registration = :allow_registration, capacity = :capacity, remaining = :remaining, reg_opens_at = :reg_opens_at, reg_closes_at = :reg_closes_at, color_tag = :color_tag, banner_ref = :banner_ref, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, occ); err != nil {
		return fmt.Errorf("update occurrence: %w", err)
	}
	return nil
}

// Delete removes one occurrence.
func (r *OccurrenceRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM occurrences WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete occurrence: %w", err)
	}
	return nil
}

// ListDueForReminder returns published occurrences starting inside
// [from, to] that have not been swept yet.
func (r *OccurrenceRepository) ListDueForReminder(ctx context.Context, from, to time.Time) ([]models.Occurrence, error) {
	query := fmt.Sprintf("SELECT %s FROM occurrences WHERE status = $1 AND start_at >= $2 AND start_at <= $3 AND reminder_sent_at IS NULL ORDER BY start_at ASC", occurrenceColumns)
	var occurrences []models.Occurrence
	if err := r.db.SelectContext(ctx, &occurrences, query, models.StatusPublished, from, to); err != nil {
		return nil, fmt.Errorf("list occurrences due for reminder: %w", err)
	}
	return occurrences, nil
}

// MarkReminderSent stamps the occurrence so the sweep does not pick it up
// again.
func (r *OccurrenceRepository) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE occurrences SET reminder_sent_at = $1 WHERE id = $2", at, id); err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}
