package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-intra/portal-events-api/internal/models"
)

func newOccurrenceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
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

func occurrenceRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "title", "description", "detail_html", "resource_id", "resource_name", "start_at", "end_at", "status", "visibility", "allow_registration", "capacity", "remaining", "reg_opens_at", "reg_closes_at", "color_tag", "banner_ref", "reminder_sent_at", "created_at", "updated_at"})
	for i, id := range ids {
		start := time.Date(2024, 6, 10, 9+i, 0, 0, 0, time.UTC)
		rows.AddRow(id, "Event "+id, "", "", "res-1", "Main Hall", start, start.Add(time.Hour),
			models.StatusPublished, models.VisibilityPublic, true, nil, nil, nil, nil, "", "", nil, start, start)
	}
	return rows
}

func TestOccurrenceListBuildsFilter(t *testing.T) {
	db, mock, cleanup := newOccurrenceRepoMock(t)
	defer cleanup()
	repo := NewOccurrenceRepository(db)

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND visibility = $1 AND status = $2 AND end_at >= $3 ORDER BY start_at ASC")).
		WithArgs(models.VisibilityPublic, models.StatusPublished, from).
		WillReturnRows(occurrenceRows("occ-1", "occ-2"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM occurrences WHERE 1=1")).
		WithArgs(models.VisibilityPublic, models.StatusPublished, from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	items, total, err := repo.List(context.Background(), models.OccurrenceFilter{
		Visibility: models.VisibilityPublic,
		Status:     models.StatusPublished,
		From:       &from,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, "occ-1", items[0].ID)
}

func TestListByResourceOverlapping(t *testing.T) {
	db, mock, cleanup := newOccurrenceRepoMock(t)
	defer cleanup()
	repo := NewOccurrenceRepository(db)

	start := time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	// both bounds land in the WHERE clause, so the row limit can only trim
	// rows that could not overlap the candidate anyway
	mock.ExpectQuery(regexp.QuoteMeta("WHERE resource_id = $1 AND start_at < $2 AND end_at > $3 ORDER BY start_at ASC")).
		WithArgs("res-1", end, start).
		WillReturnRows(occurrenceRows("occ-1"))

	items, err := repo.ListByResourceOverlapping(context.Background(), "res-1", start, end, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestBatchInsertCommitsAllRows(t *testing.T) {
	db, mock, cleanup := newOccurrenceRepoMock(t)
	defer cleanup()
	repo := NewOccurrenceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO occurrences")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO occurrences")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	occurrences := []models.Occurrence{
		{Title: "One", StartAt: time.Now(), EndAt: time.Now().Add(time.Hour)},
		{Title: "Two", StartAt: time.Now(), EndAt: time.Now().Add(time.Hour)},
	}
	err := repo.BatchInsert(context.Background(), occurrences)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	// ids were assigned in place
	assert.NotEmpty(t, occurrences[0].ID)
	assert.NotEmpty(t, occurrences[1].ID)
}

func TestBatchInsertRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newOccurrenceRepoMock(t)
	defer cleanup()
	repo := NewOccurrenceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO occurrences")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO occurrences")).WillReturnError(errors.New("unique_violation"))
	mock.ExpectRollback()

	err := repo.BatchInsert(context.Background(), []models.Occurrence{
		{Title: "One"},
		{Title: "Two"},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListDueForReminder(t *testing.T) {
	db, mock, cleanup := newOccurrenceRepoMock(t)
	defer cleanup()
	repo := NewOccurrenceRepository(db)

	from := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("reminder_sent_at IS NULL ORDER BY start_at ASC")).
		WithArgs(models.StatusPublished, from, to).
		WillReturnRows(occurrenceRows("occ-1"))

	items, err := repo.ListDueForReminder(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestMarkReminderSent(t *testing.T) {
	db, mock, cleanup := newOccurrenceRepoMock(t)
	defer cleanup()
	repo := NewOccurrenceRepository(db)

	at := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE occurrences SET reminder_sent_at = $1 WHERE id = $2")).
		WithArgs(at, "occ-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkReminderSent(context.Background(), "occ-1", at))
	require.NoError(t, mock.ExpectationsWereMet())
}
