package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/travo-ai/travo/internal/log"
)

var (
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")

	// ErrUserNotFound indicates no user exists for the given email.
	ErrUserNotFound = errors.New("user not found")
)

// User is an account row. PasswordHash never leaves this package.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// DB is the subset of pgxpool.Pool the user store needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Users reads and writes the users table.
// Safe for concurrent use by multiple goroutines.
type Users struct {
	db     DB
	logger log.Logger
}

// NewUsers creates a Users store.
func NewUsers(db DB, logger log.Logger) *Users {
	return &Users{db: db, logger: logger}
}

// uniqueViolation is the PostgreSQL error code for unique constraints.
const uniqueViolation = "23505"

// Create inserts a new user. Returns ErrEmailTaken when the email is
// already registered; duplicate detection relies on the unique index,
// not a prior existence check, so concurrent sign-ups are safe.
func (u *Users) Create(ctx context.Context, email, name, passwordHash string) (*User, error) {
	user := &User{
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
	}

	var id pgtype.UUID
	var createdAt pgtype.Timestamptz
	err := u.db.QueryRow(ctx,
		`INSERT INTO users (email, name, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		email, name, passwordHash,
	).Scan(&id, &createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrEmailTaken, email)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	user.ID = uuid.UUID(id.Bytes)
	user.CreatedAt = createdAt.Time
	u.logger.Info("user created", "user_id", user.ID, "email", email)
	return user, nil
}

// GetByEmail fetches a user by email. Returns ErrUserNotFound when no
// account exists.
func (u *Users) GetByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	var id pgtype.UUID
	var createdAt pgtype.Timestamptz
	err := u.db.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at
		 FROM users WHERE email = $1`,
		email,
	).Scan(&id, &user.Email, &user.Name, &user.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("fetching user by email: %w", err)
	}

	user.ID = uuid.UUID(id.Bytes)
	user.CreatedAt = createdAt.Time
	return &user, nil
}
