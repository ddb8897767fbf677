package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/ArbeitEmployee/studyabroad-api/internal/models"
)

func newVisaRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestVisaRepositoryCreateInstantiatesChildren(t *testing.T) {
	db, mock, cleanup := newVisaRepoMock(t)
	defer cleanup()

	repo := NewVisaRepository(db)
	template, ok := models.TemplateFor(models.VisaTypeStudent)
	require.True(t, ok)

	request := &models.VisaRequest{
		StudentID:          "student-1",
		DestinationCountry: "Canada",
		VisaType:           models.VisaTypeStudent,
		Purpose:            "masters program",
	}
	steps := make([]models.VisaStep, 0, len(template.Steps))
	for i, st := range template.Steps {
		steps = append(steps, models.VisaStep{
			Position:          i,
			Name:              st.Name,
			RequiredDocuments: pq.StringArray(st.RequiredDocuments),
		})
	}
	documents := make([]models.VisaDocument, 0, len(template.Documents))
	for _, name := range template.Documents {
		documents = append(documents, models.VisaDocument{Name: name})
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO visa_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	for range steps {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO visa_steps")).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	for range documents {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO visa_documents")).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), request, steps, documents))
	require.NotEmpty(t, request.ID)
	require.Equal(t, models.VisaStatusPending, request.Status)
	for _, st := range steps {
		require.Equal(t, request.ID, st.RequestID)
		require.Equal(t, models.StepStatusPending, st.Status)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisaRepositoryAdvanceStep(t *testing.T) {
	db, mock, cleanup := newVisaRepoMock(t)
	defer cleanup()

	repo := NewVisaRepository(db)
	notes := "biometrics booked"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE visa_requests SET current_step = current_step + 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE visa_steps SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	advanced, err := repo.AdvanceStep(context.Background(), "req-1", 2, &notes, false)
	require.NoError(t, err)
	require.True(t, advanced)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisaRepositoryAdvanceStepStaleIndex(t *testing.T) {
	db, mock, cleanup := newVisaRepoMock(t)
	defer cleanup()

	repo := NewVisaRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE visa_requests SET current_step = current_step + 1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	advanced, err := repo.AdvanceStep(context.Background(), "req-1", 2, nil, false)
	require.NoError(t, err)
	require.False(t, advanced)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisaRepositoryAdvanceFinalStepCompletesRequest(t *testing.T) {
	db, mock, cleanup := newVisaRepoMock(t)
	defer cleanup()

	repo := NewVisaRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE visa_requests SET current_step = current_step + 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE visa_steps SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE visa_requests SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	advanced, err := repo.AdvanceStep(context.Background(), "req-1", 4, nil, true)
	require.NoError(t, err)
	require.True(t, advanced)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisaRepositoryAssignOnlyPending(t *testing.T) {
	db, mock, cleanup := newVisaRepoMock(t)
	defer cleanup()

	repo := NewVisaRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE visa_requests SET assigned_consultant_id")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assigned, err := repo.Assign(context.Background(), "req-1", "employee-1")
	require.NoError(t, err)
	require.True(t, assigned)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE visa_requests SET assigned_consultant_id")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assigned, err = repo.Assign(context.Background(), "req-1", "employee-2")
	require.NoError(t, err)
	require.False(t, assigned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisaRepositoryUpdateStatusGuardsTerminal(t *testing.T) {
	db, mock, cleanup := newVisaRepoMock(t)
	defer cleanup()

	repo := NewVisaRepository(db)
	reason := "student withdrew"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE visa_requests SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	updated, err := repo.UpdateStatus(context.Background(), "req-1", models.VisaStatusCancelled, &reason)
	require.NoError(t, err)
	require.False(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisaRepositoryExistsOpen(t *testing.T) {
	db, mock, cleanup := newVisaRepoMock(t)
	defer cleanup()

	repo := NewVisaRepository(db)

	rows := sqlmock.NewRows([]string{"?column?"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM visa_requests")).
		WithArgs("student-1", "Canada", models.VisaTypeStudent, models.VisaStatusCompleted, models.VisaStatusCancelled).
		WillReturnRows(rows)

	exists, err := repo.ExistsOpen(context.Background(), "student-1", "Canada", models.VisaTypeStudent)
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM visa_requests")).
		WithArgs("student-2", "Canada", models.VisaTypeStudent, models.VisaStatusCompleted, models.VisaStatusCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err = repo.ExistsOpen(context.Background(), "student-2", "Canada", models.VisaTypeStudent)
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisaRepositoryFindDocument(t *testing.T) {
	db, mock, cleanup := newVisaRepoMock(t)
	defer cleanup()

	repo := NewVisaRepository(db)
	now := time.Now()
	path := "visa/req-1/passport.pdf"

	rows := sqlmock.NewRows([]string{"id", "request_id", "name", "status", "file_path", "feedback", "uploaded_at", "updated_at"}).
		AddRow("doc-1", "req-1", "Passport", "approved", path, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, request_id, name, status, file_path")).
		WithArgs("req-1", "Passport").
		WillReturnRows(rows)

	doc, err := repo.FindDocument(context.Background(), "req-1", "Passport")
	require.NoError(t, err)
	require.Equal(t, models.DocumentStatusApproved, doc.Status)
	require.NotNil(t, doc.FilePath)
	require.NoError(t, mock.ExpectationsWereMet())
}
