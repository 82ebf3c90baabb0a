package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/types"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const userColumns = `id, username, email, full_name, avatar, cover_image, password_hash, refresh_token, created_at, updated_at`

// ImageColumn names a users column that holds a media URL.
type ImageColumn string

const (
	AvatarColumn     ImageColumn = "avatar"
	CoverImageColumn ImageColumn = "cover_image"
)

func (c ImageColumn) valid() bool {
	return c == AvatarColumn || c == CoverImageColumn
}

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// FindByUsernameOrEmail returns the first user whose username equals username
// or whose email equals email. Empty arguments never match.
func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
		ORDER BY id
		LIMIT 1`
	return scanUser(r.db.QueryRowContext(ctx, query, username, email))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.RefreshToken = ""

	const query = `
		INSERT INTO users (username, email, full_name, avatar, cover_image, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.Email,
		user.FullName,
		user.Avatar,
		user.CoverImage,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

// UpdateAccount sets the full name and email and returns the stored row.
func (r *UserRepository) UpdateAccount(ctx context.Context, id int, fullName, email string) (types.User, error) {
	const query = `
		UPDATE users
		SET full_name = $1,
			email = $2,
			updated_at = $3
		WHERE id = $4
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRowContext(ctx, query, fullName, email, time.Now(), id))
	if err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

// UpdateImage points column at url and returns the URL it replaced along with
// the updated row. The row stays locked between the read and the write, so
// the returned URL is the one this call overwrote.
func (r *UserRepository) UpdateImage(ctx context.Context, id int, column ImageColumn, url string) (string, types.User, error) {
	if !column.valid() {
		return "", types.User{}, fmt.Errorf("unknown image column %q", column)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", types.User{}, fmt.Errorf("begin image update: %w", err)
	}
	defer tx.Rollback()

	var previous string
	selectQuery := `SELECT ` + string(column) + ` FROM users WHERE id = $1 FOR UPDATE`
	if err := tx.QueryRowContext(ctx, selectQuery, id).Scan(&previous); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", types.User{}, ErrNotFound
		}
		return "", types.User{}, err
	}

	updateQuery := `
		UPDATE users
		SET ` + string(column) + ` = $1,
			updated_at = $2
		WHERE id = $3
		RETURNING ` + userColumns
	user, err := scanUser(tx.QueryRowContext(ctx, updateQuery, url, time.Now(), id))
	if err != nil {
		return "", types.User{}, err
	}

	if err := tx.Commit(); err != nil {
		return "", types.User{}, fmt.Errorf("commit image update: %w", err)
	}
	return previous, user, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, passwordHash, time.Now(), id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// SetRefreshToken replaces the stored refresh token. An empty token clears it.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id int, token string) error {
	const query = `
		UPDATE users
		SET refresh_token = $1,
			updated_at = $2
		WHERE id = $3`
	value := sql.NullString{String: token, Valid: token != ""}
	result, err := r.db.ExecContext(ctx, query, value, time.Now(), id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	var refreshToken sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.Avatar,
		&user.CoverImage,
		&user.PasswordHash,
		&refreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	user.RefreshToken = refreshToken.String
	return user, nil
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}
