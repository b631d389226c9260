package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/baechuer/miniapp-auth/internal/domain"
)

const uniqueViolation = "23505"

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// ---------- helpers ----------

const userColumns = `id, subject, federation_id, display_name, avatar_uri, created_at, last_seen_at`

func scanUser(row *sql.Row) (userRow, error) {
	var ur userRow
	err := row.Scan(
		&ur.ID,
		&ur.Subject,
		&ur.FederationID,
		&ur.DisplayName,
		&ur.AvatarURI,
		&ur.CreatedAt,
		&ur.LastSeenAt,
	)
	return ur, err
}

func toDomainUser(ur userRow) domain.User {
	return domain.User{
		ID:           ur.ID,
		Subject:      ur.Subject,
		FederationID: ur.FederationID.String,
		DisplayName:  ur.DisplayName,
		AvatarURI:    ur.AvatarURI,
		CreatedAt:    ur.CreatedAt,
		LastSeenAt:   ur.LastSeenAt,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// validID keeps non-uuid input away from the uuid column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *UserRepo) queryOne(ctx context.Context, q string, args ...any) (domain.User, error) {
	ur, err := scanUser(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound()
		}
		return domain.User{}, domain.ErrDBUnavailable(err)
	}
	return toDomainUser(ur), nil
}

// ---------- auth.UserDirectory ----------

func (r *UserRepo) FindBySubject(ctx context.Context, subject string) (domain.User, error) {
	if subject == "" {
		return domain.User{}, domain.ErrMissingField("subject")
	}

	q := `SELECT ` + userColumns + ` FROM users WHERE subject = $1 LIMIT 1;`
	return r.queryOne(ctx, q, subject)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	if !validID(id) {
		return domain.User{}, domain.ErrUserNotFound()
	}

	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1;`
	return r.queryOne(ctx, q, id)
}

func (r *UserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	if u.ID == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	if u.Subject == "" {
		return domain.User{}, domain.ErrMissingField("subject")
	}

	fed := sql.NullString{String: u.FederationID, Valid: u.FederationID != ""}

	q := `
INSERT INTO users (id, subject, federation_id)
VALUES ($1, $2, $3)
RETURNING ` + userColumns + `;`

	ur, err := scanUser(r.db.QueryRowContext(ctx, q, u.ID, u.Subject, fed))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrSubjectAlreadyExists()
		}
		return domain.User{}, domain.ErrDBUnavailable(err)
	}
	return toDomainUser(ur), nil
}

func (r *UserRepo) TouchLastSeen(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrUserNotFound()
	}
	return r.execOne(ctx, `UPDATE users SET last_seen_at = NOW() WHERE id = $1;`, id)
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrUserNotFound()
	}
	return r.execOne(ctx, `DELETE FROM users WHERE id = $1;`, id)
}

// UpdateProfile leaves a field unchanged when its new value is empty.
func (r *UserRepo) UpdateProfile(ctx context.Context, id, displayName, avatarURI string) (domain.User, error) {
	if !validID(id) {
		return domain.User{}, domain.ErrUserNotFound()
	}

	q := `
UPDATE users
SET display_name = COALESCE(NULLIF($2, ''), display_name),
    avatar_uri   = COALESCE(NULLIF($3, ''), avatar_uri)
WHERE id = $1
RETURNING ` + userColumns + `;`

	return r.queryOne(ctx, q, id, displayName, avatarURI)
}

func (r *UserRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *UserRepo) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	if n == 0 {
		return domain.ErrUserNotFound()
	}
	return nil
}
