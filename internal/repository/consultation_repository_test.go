package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/ArbeitEmployee/studyabroad-api/internal/models"
)

func newConsultationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestConsultationRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newConsultationRepoMock(t)
	defer cleanup()

	repo := NewConsultationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO consultations")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	consultation := &models.Consultation{
		StudentID: "student-1",
		Topic:     "IELTS preparation",
		Message:   "need guidance on band requirements",
	}
	require.NoError(t, repo.Create(context.Background(), consultation))
	require.NotEmpty(t, consultation.ID)
	require.Equal(t, models.ConsultationStatusPending, consultation.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsultationRepositoryAssignOnlyPending(t *testing.T) {
	db, mock, cleanup := newConsultationRepoMock(t)
	defer cleanup()

	repo := NewConsultationRepository(db)
	when := time.Now().Add(48 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE consultations SET employee_id")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assigned, err := repo.Assign(context.Background(), "cons-1", "employee-1", &when)
	require.NoError(t, err)
	require.True(t, assigned)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE consultations SET employee_id")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assigned, err = repo.Assign(context.Background(), "cons-1", "employee-2", &when)
	require.NoError(t, err)
	require.False(t, assigned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsultationRepositoryUpdateStatusGuardsTerminal(t *testing.T) {
	db, mock, cleanup := newConsultationRepoMock(t)
	defer cleanup()

	repo := NewConsultationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE consultations SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	updated, err := repo.UpdateStatus(context.Background(), "cons-1", models.ConsultationStatusCancelled, nil)
	require.NoError(t, err)
	require.False(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}
