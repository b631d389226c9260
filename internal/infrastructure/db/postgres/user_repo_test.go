package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/miniapp-auth/internal/domain"
)

const testID = "5b0f8c5e-9a8e-4d6b-8f2c-0d6c7f3e2a11"

var userCols = []string{"id", "subject", "federation_id", "display_name", "avatar_uri", "created_at", "last_seen_at"}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *UserRepo) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock database")
	t.Cleanup(func() { _ = db.Close() })
	return db, mock, NewUserRepo(db)
}

func TestUserRepo_FindBySubject_Success(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	ts := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE subject = $1")).
		WithArgs("oA").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(testID, "oA", "uA", "Ann", "a.png", ts, ts))

	u, err := repo.FindBySubject(context.Background(), "oA")
	require.NoError(t, err)
	assert.Equal(t, testID, u.ID)
	assert.Equal(t, "uA", u.FederationID)
	assert.Equal(t, "Ann", u.DisplayName)
	assert.Equal(t, ts, u.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_FindBySubject_NullFederationID(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	ts := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE subject = $1")).
		WithArgs("oA").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(testID, "oA", nil, "", "", ts, ts))

	u, err := repo.FindBySubject(context.Background(), "oA")
	require.NoError(t, err)
	assert.Empty(t, u.FederationID)
}

func TestUserRepo_FindBySubject_NotFound(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE subject = $1")).
		WithArgs("oA").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindBySubject(context.Background(), "oA")
	assert.True(t, domain.Is(err, "user_not_found"))
}

func TestUserRepo_FindBySubject_DatabaseError(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE subject = $1")).
		WillReturnError(errors.New("connection refused"))

	_, err := repo.FindBySubject(context.Background(), "oA")
	assert.True(t, domain.Is(err, "db_unavailable"))
}

func TestUserRepo_Create_Success(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	ts := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (id, subject, federation_id)")).
		WithArgs(testID, "oA", nil).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(testID, "oA", nil, "", "", ts, ts))

	u, err := repo.Create(context.Background(), domain.User{ID: testID, Subject: "oA"})
	require.NoError(t, err)
	assert.Equal(t, testID, u.ID)
	assert.Empty(t, u.DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Create_UniqueViolation_ReturnsConflict(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_subject_key"})

	_, err := repo.Create(context.Background(), domain.User{ID: testID, Subject: "oA", FederationID: "uA"})
	assert.True(t, domain.Is(err, "subject_already_exists"))
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestUserRepo_Create_OtherError_ReturnsDBUnavailable(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(errors.New("duplicate-looking but not a pg error"))

	_, err := repo.Create(context.Background(), domain.User{ID: testID, Subject: "oA"})
	assert.True(t, domain.Is(err, "db_unavailable"))
}

func TestUserRepo_Create_MissingFields(t *testing.T) {
	_, _, repo := setupMockDB(t)

	_, err := repo.Create(context.Background(), domain.User{Subject: "oA"})
	assert.True(t, domain.Is(err, "missing_field"))

	_, err = repo.Create(context.Background(), domain.User{ID: testID})
	assert.True(t, domain.Is(err, "missing_field"))
}

func TestUserRepo_TouchLastSeen(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET last_seen_at = NOW() WHERE id = $1")).
		WithArgs(testID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.TouchLastSeen(context.Background(), testID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_TouchLastSeen_NotFound(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET last_seen_at")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.TouchLastSeen(context.Background(), testID)
	assert.True(t, domain.Is(err, "user_not_found"))
}

func TestUserRepo_Delete(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs(testID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), testID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Delete_DatabaseError(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users")).
		WillReturnError(errors.New("conn reset"))

	err := repo.Delete(context.Background(), testID)
	assert.True(t, domain.Is(err, "db_unavailable"))
}

func TestUserRepo_NonUUIDIDs_NeverHitDatabase(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	_, err := repo.GetByID(context.Background(), "not-a-uuid")
	assert.True(t, domain.Is(err, "user_not_found"))
	assert.True(t, domain.Is(repo.Delete(context.Background(), "x"), "user_not_found"))
	assert.True(t, domain.Is(repo.TouchLastSeen(context.Background(), "x"), "user_not_found"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_UpdateProfile(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	ts := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users")).
		WithArgs(testID, "Ann", "").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(testID, "oA", nil, "Ann", "old.png", ts, ts))

	u, err := repo.UpdateProfile(context.Background(), testID, "Ann", "")
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.DisplayName)
	assert.Equal(t, "old.png", u.AvatarURI)
	assert.Equal(t, "oA", u.Subject)
}

func TestUserRepo_UpdateProfile_NotFound(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.UpdateProfile(context.Background(), testID, "Ann", "")
	assert.True(t, domain.Is(err, "user_not_found"))
}
