package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/halcyon-intra/portal-events-api/internal/models"
)

// Domain rejections surfaced by the registration transaction. The service
// layer maps each to its API error so attendees learn the specific reason.
var (
	ErrOccurrenceNotFound       = errors.New("occurrence not found")
	ErrNotOpenForChannel        = errors.New("occurrence is not open for registration on this channel")
	ErrRegistrationDisabled     = errors.New("registration is disabled")
	ErrRegistrationNotOpen      = errors.New("registration has not opened")
	ErrRegistrationWindowClosed = errors.New("registration window has closed")
	ErrEventStarted             = errors.New("event has already started")
	ErrDuplicateRegistration    = errors.New("attendee already registered")
	ErrEventFull                = errors.New("no seats remaining")
)

// RegisterParams carries one registration attempt into the transaction. The
// email must already be normalized; Now is the instant the attempt is judged
// against.
type RegisterParams struct {
	OccurrenceID  string
	AttendeeName  string
	AttendeeEmail string
	Channel       models.Visibility
	Now           time.Time
}

// RegistrationRepository persists registrations and owns the capacity-safe
// booking transaction.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs a registration repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Register books one seat inside a single transaction. The occurrence row is
// locked with SELECT ... FOR UPDATE so every precondition below is judged
// against the same snapshot the decrement writes to; two concurrent attempts
// against a last seat serialise on the row lock and the loser sees
// remaining = 0. The registration insert and the counter decrement commit
// together or not at all.
func (r *RegistrationRepository) Register(ctx context.Context, p RegisterParams) (*models.Registration, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin registration: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var (
		status      models.OccurrenceStatus
		visibility  models.Visibility
		allowReg    bool
		startAt     time.Time
		regOpensAt  sql.NullTime
		regClosesAt sql.NullTime
		remaining   sql.NullInt64
	)
	err = tx.QueryRowxContext(ctx,
		`SELECT status, visibility, allow_registration, start_at, reg_opens_at, reg_closes_at, remaining
		 FROM occurrences WHERE id = $1 FOR UPDATE`,
		p.OccurrenceID,
	).Scan(&status, &visibility, &allowReg, &startAt, &regOpensAt, &regClosesAt, &remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrOccurrenceNotFound
			return nil, err
		}
		return nil, fmt.Errorf("lock occurrence row: %w", err)
	}

	// Each channel serves its own visibility: public registrations go through
	// the portal, private ones through the intranet.
	if status != models.StatusPublished || visibility != p.Channel {
		err = ErrNotOpenForChannel
		return nil, err
	}
	if !allowReg {
		err = ErrRegistrationDisabled
		return nil, err
	}
	if regOpensAt.Valid && p.Now.Before(regOpensAt.Time) {
		err = ErrRegistrationNotOpen
		return nil, err
	}
	if regClosesAt.Valid && p.Now.After(regClosesAt.Time) {
		err = ErrRegistrationWindowClosed
		return nil, err
	}
	if p.Now.After(startAt) {
		err = ErrEventStarted
		return nil, err
	}

	key := models.RegistrationKey(p.OccurrenceID, p.AttendeeEmail)
	var exists bool
	err = tx.QueryRowxContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE id = $1 AND status = $2)`,
		key, models.StatusRegistered,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check duplicate registration: %w", err)
	}
	if exists {
		err = ErrDuplicateRegistration
		return nil, err
	}

	// Absent remaining means capacity is untracked: no enforcement.
	if remaining.Valid && remaining.Int64 <= 0 {
		err = ErrEventFull
		return nil, err
	}

	reg := &models.Registration{
		ID:            key,
		EventID:       p.OccurrenceID,
		AttendeeEmail: p.AttendeeEmail,
		AttendeeName:  p.AttendeeName,
		Status:        models.StatusRegistered,
		CreatedAt:     p.Now.UTC(),
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO registrations (id, event_id, attendee_email, attendee_name, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		reg.ID, reg.EventID, reg.AttendeeEmail, reg.AttendeeName, reg.Status, reg.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert registration: %w", err)
	}

	if remaining.Valid {
		if _, err = tx.ExecContext(ctx,
			`UPDATE occurrences SET remaining = remaining - 1 WHERE id = $1`,
			p.OccurrenceID,
		); err != nil {
			return nil, fmt.Errorf("decrement remaining: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit registration: %w", err)
	}
	return reg, nil
}

// ListByEvent returns all registrations for an occurrence, oldest first.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Registration, error) {
	const query = `SELECT id, event_id, attendee_email, attendee_name, status, created_at FROM registrations WHERE event_id = $1 ORDER BY created_at ASC`
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, eventID); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}
