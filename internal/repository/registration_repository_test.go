package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-intra/portal-events-api/internal/models"
)

func newRegistrationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func registerParams() RegisterParams {
	return RegisterParams{
		OccurrenceID:  "occ-1",
		AttendeeName:  "Jane Doe",
		AttendeeEmail: "jane@example.com",
		Channel:       models.VisibilityPublic,
		Now:           time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func lockedRow(remaining interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"status", "visibility", "allow_registration", "start_at", "reg_opens_at", "reg_closes_at", "remaining"}).
		AddRow(
			models.StatusPublished,
			models.VisibilityPublic,
			true,
			time.Date(2024, 6, 10, 18, 0, 0, 0, time.UTC),
			time.Date(2024, 5, 27, 18, 0, 0, 0, time.UTC),
			time.Date(2024, 6, 9, 18, 0, 0, 0, time.UTC),
			remaining,
		)
}

func expectLock(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, visibility, allow_registration, start_at, reg_opens_at, reg_closes_at, remaining")).
		WithArgs("occ-1").
		WillReturnRows(rows)
}

func expectDuplicateCheck(mock sqlmock.Sqlmock, exists bool) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("occ-1:jane@example.com", models.StatusRegistered).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
}

func TestRegisterCommitsInsertAndDecrementTogether(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	expectLock(mock, lockedRow(int64(5)))
	expectDuplicateCheck(mock, false)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).
		WithArgs("occ-1:jane@example.com", "occ-1", "jane@example.com", "Jane Doe", models.StatusRegistered, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE occurrences SET remaining = remaining - 1")).
		WithArgs("occ-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	reg, err := repo.Register(context.Background(), registerParams())
	require.NoError(t, err)
	assert.Equal(t, "occ-1:jane@example.com", reg.ID)
	assert.Equal(t, models.StatusRegistered, reg.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterUntrackedCapacitySkipsDecrement(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	expectLock(mock, lockedRow(nil))
	expectDuplicateCheck(mock, false)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := repo.Register(context.Background(), registerParams())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterFullRollsBack(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	expectLock(mock, lockedRow(int64(0)))
	expectDuplicateCheck(mock, false)
	mock.ExpectRollback()

	_, err := repo.Register(context.Background(), registerParams())
	require.ErrorIs(t, err, ErrEventFull)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDuplicateRollsBack(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	expectLock(mock, lockedRow(int64(5)))
	expectDuplicateCheck(mock, true)
	mock.ExpectRollback()

	_, err := repo.Register(context.Background(), registerParams())
	require.ErrorIs(t, err, ErrDuplicateRegistration)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterPreconditionOrder(t *testing.T) {
	started := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		rows    *sqlmock.Rows
		wantErr error
	}{
		{
			name: "draft",
			rows: sqlmock.NewRows([]string{"status", "visibility", "allow_registration", "start_at", "reg_opens_at", "reg_closes_at", "remaining"}).
				AddRow(models.StatusDraft, models.VisibilityPublic, true, started, nil, nil, nil),
			wantErr: ErrNotOpenForChannel,
		},
		{
			name: "private on public channel",
			rows: sqlmock.NewRows([]string{"status", "visibility", "allow_registration", "start_at", "reg_opens_at", "reg_closes_at", "remaining"}).
				AddRow(models.StatusPublished, models.VisibilityPrivate, true, started, nil, nil, nil),
			wantErr: ErrNotOpenForChannel,
		},
		{
			name: "registration disabled",
			rows: sqlmock.NewRows([]string{"status", "visibility", "allow_registration", "start_at", "reg_opens_at", "reg_closes_at", "remaining"}).
				AddRow(models.StatusPublished, models.VisibilityPublic, false, started, nil, nil, nil),
			wantErr: ErrRegistrationDisabled,
		},
		{
			name: "not open yet",
			rows: sqlmock.NewRows([]string{"status", "visibility", "allow_registration", "start_at", "reg_opens_at", "reg_closes_at", "remaining"}).
				AddRow(models.StatusPublished, models.VisibilityPublic, true,
					time.Date(2024, 7, 1, 18, 0, 0, 0, time.UTC),
					time.Date(2024, 6, 17, 18, 0, 0, 0, time.UTC),
					time.Date(2024, 6, 30, 18, 0, 0, 0, time.UTC),
					nil),
			wantErr: ErrRegistrationNotOpen,
		},
		{
			name: "event started",
			rows: sqlmock.NewRows([]string{"status", "visibility", "allow_registration", "start_at", "reg_opens_at", "reg_closes_at", "remaining"}).
				AddRow(models.StatusPublished, models.VisibilityPublic, true, started, nil, nil, nil),
			wantErr: ErrEventStarted,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, cleanup := newRegistrationRepoMock(t)
			defer cleanup()
			repo := NewRegistrationRepository(db)

			mock.ExpectBegin()
			expectLock(mock, tc.rows)
			mock.ExpectRollback()

			_, err := repo.Register(context.Background(), registerParams())
			require.ErrorIs(t, err, tc.wantErr)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRegisterUnknownOccurrence(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, visibility, allow_registration")).
		WithArgs("occ-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Register(context.Background(), registerParams())
	require.ErrorIs(t, err, ErrOccurrenceNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByEvent(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	rows := sqlmock.NewRows([]string{"id", "event_id", "attendee_email", "attendee_name", "status", "created_at"}).
		AddRow("occ-1:a@b.c", "occ-1", "a@b.c", "A", models.StatusRegistered, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, event_id, attendee_email, attendee_name, status, created_at FROM registrations WHERE event_id = $1 ORDER BY created_at ASC")).
		WithArgs("occ-1").
		WillReturnRows(rows)

	regs, err := repo.ListByEvent(context.Background(), "occ-1")
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "occ-1:a@b.c", regs[0].ID)
}
