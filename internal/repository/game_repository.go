package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/turf-booking/internal/model"
)

// GameRepo reads the game catalog.  Catalog CRUD is handled elsewhere;
// the booking engine only needs lookups.
type GameRepo struct {
	db *sqlx.DB
}

// NewGameRepo returns a GameRepo bound to db.
func NewGameRepo(db *sqlx.DB) *GameRepo { return &GameRepo{db: db} }

// GetByID returns the game or ErrNotFound.
func (r *GameRepo) GetByID(ctx context.Context, id uint64) (model.Game, error) {
	var g model.Game
	err := r.db.GetContext(ctx, &g, `SELECT id, category_id, name, created_at FROM games WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Game{}, ErrNotFound
	}
	return g, err
}

// List returns all games ordered by name.
func (r *GameRepo) List(ctx context.Context) ([]model.Game, error) {
	games := []model.Game{}
	err := r.db.SelectContext(ctx, &games, `SELECT id, category_id, name, created_at FROM games ORDER BY name`)
	return games, err
}
