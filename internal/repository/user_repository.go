package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/turf-booking/internal/model"
)

// UserRepo stores customer and admin accounts.
type UserRepo struct{ db *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

type userRow struct {
	ID           uint64       `db:"id"`
	Email        string       `db:"email"`
	PasswordHash string       `db:"password_hash"`
	Role         string       `db:"role"`
	IsActive     bool         `db:"is_active"`
	CreatedAt    sql.NullTime `db:"created_at"`
	UpdatedAt    sql.NullTime `db:"updated_at"`
}

func (r userRow) toModel() model.User {
	return model.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
	}
}

const userSelect = "SELECT id,email,password_hash,role,is_active,created_at,updated_at FROM users"

// NormalizeEmail lower-cases and trims an address the way it is stored.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create inserts a user with an already hashed password and returns its ID.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash, role string) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role) VALUES (?,?,?)",
		NormalizeEmail(email), passwordHash, role)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getOne(ctx, userSelect+" WHERE email=? LIMIT 1", NormalizeEmail(email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getOne(ctx, userSelect+" WHERE id=? LIMIT 1", id)
}

func (r *UserRepo) getOne(ctx context.Context, q string, args ...interface{}) (model.User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	return row.toModel(), nil
}

// EnsureAdmin creates the bootstrap admin account, or promotes and
// re-activates an existing account with that email.  The stored password
// of an existing account is left unchanged.  It reports whether a new row
// was inserted.
func (r *UserRepo) EnsureAdmin(ctx context.Context, email, passwordHash string) (bool, error) {
	_, err := r.Create(ctx, email, passwordHash, model.RoleAdmin)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ErrEmailExists) {
		return false, err
	}
	_, err = r.db.ExecContext(ctx,
		"UPDATE users SET role=?, is_active=1 WHERE email=?", model.RoleAdmin, NormalizeEmail(email))
	return false, err
}
