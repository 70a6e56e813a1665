package devapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// UserRecord is the stored form of an operator account.
type UserRecord struct {
	ID           int64
	Name         string
	Lastname     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// User drops the password hash.
func (r UserRecord) User() User {
	return User{ID: r.ID, Name: r.Name, Lastname: r.Lastname, Email: r.Email, CreatedAt: r.CreatedAt}
}

// UserRepository defines persistence operations for operator accounts.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*UserRecord, error)
	FindByID(ctx context.Context, id int64) (*UserRecord, error)
	Create(ctx context.Context, u UserRecord) (*UserRecord, error)
	HasAny(ctx context.Context) (bool, error)
}

// PgUserRepository implements UserRepository using pgxpool.
type PgUserRepository struct {
	db *pgxpool.Pool
}

func NewPgUserRepository(db *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{db: db}
}

func (r *PgUserRepository) FindByEmail(ctx context.Context, email string) (*UserRecord, error) {
	const q = `SELECT id, name, lastname, email, password_hash, created_at FROM users WHERE email=$1`
	return r.scanOne(ctx, q, email)
}

func (r *PgUserRepository) FindByID(ctx context.Context, id int64) (*UserRecord, error) {
	const q = `SELECT id, name, lastname, email, password_hash, created_at FROM users WHERE id=$1`
	return r.scanOne(ctx, q, id)
}

func (r *PgUserRepository) scanOne(ctx context.Context, q string, arg any) (*UserRecord, error) {
	var u UserRecord
	err := r.db.QueryRow(ctx, q, arg).Scan(&u.ID, &u.Name, &u.Lastname, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PgUserRepository) Create(ctx context.Context, u UserRecord) (*UserRecord, error) {
	const q = `INSERT INTO users (name, lastname, email, password_hash) VALUES ($1,$2,$3,$4) RETURNING id, created_at`
	err := r.db.QueryRow(ctx, q, u.Name, u.Lastname, u.Email, u.PasswordHash).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

func (r *PgUserRepository) HasAny(ctx context.Context) (bool, error) {
	const q = `SELECT 1 FROM users LIMIT 1`
	var one int
	if err := r.db.QueryRow(ctx, q).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
