package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/genius-academy-api/internal/models"
)

func TestStudentRepositoryDeleteWithAccount(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM accounts WHERE id = (SELECT account_id FROM students WHERE id = $1) RETURNING id")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1"))

	accountID, err := repo.DeleteWithAccount(context.Background(), nil, "s1")
	require.NoError(t, err)
	assert.Equal(t, "a1", accountID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeleteWithAccountMissing(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("DELETE FROM accounts").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.DeleteWithAccount(context.Background(), nil, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStudentRepositoryListParents(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM parents p JOIN accounts a ON a.id = p.account_id")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "profile_id", "username", "first_name", "last_name", "email", "relationship"}).
			AddRow("a2", "p1", "mum@example.com", "Jane", "Doe", "mum@example.com", "MOTHER"))

	parents, err := repo.ListParents(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.Equal(t, "MOTHER", *parents[0].Relation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParentRepositoryDeleteWithAccount(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewParentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM parents WHERE id = $1 RETURNING account_id")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"account_id"}).AddRow("a2"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM accounts WHERE id = $1")).
		WithArgs("a2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	accountID, err := repo.DeleteWithAccount(context.Background(), nil, "p1")
	require.NoError(t, err)
	assert.Equal(t, "a2", accountID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryMarkIssuedOnlyOnce(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)
	now := time.Now().UTC()

	query := regexp.QuoteMeta("UPDATE teachers SET credential_status = $3, credential_issued_at = COALESCE($4, credential_issued_at) WHERE account_id = $1 AND credential_status = $2")
	mock.ExpectExec(query).
		WithArgs("a1", models.CredentialPending, models.CredentialIssued, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).
		WithArgs("a1", models.CredentialPending, models.CredentialIssued, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.MarkIssued(context.Background(), nil, "a1", now)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := repo.MarkIssued(context.Background(), nil, "a1", now)
	require.NoError(t, err)
	assert.False(t, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryGetOrCreate(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (account_id) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "a1", models.CredentialIssued, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + teacherColumns + " FROM teachers WHERE account_id = $1")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "speciality", "diploma", "bio", "available", "credential_status", "credential_issued_at", "created_at"}).
			AddRow("t1", "a1", "Physics", nil, nil, true, "ISSUED", time.Now(), time.Now()))

	teacher, err := repo.GetOrCreate(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "t1", teacher.ID)
	assert.Equal(t, models.CredentialIssued, teacher.CredentialStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminRoleRepositoryMarkPending(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewAdminRoleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE admin_roles SET credential_status = $3")).
		WithArgs("a9", models.CredentialIssued, models.CredentialPending, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	moved, err := repo.MarkPending(context.Background(), nil, "a9", time.Now())
	require.NoError(t, err)
	assert.True(t, moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}
