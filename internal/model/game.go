package model

import "time"

// Game is a bookable sport or court offered by the venue (e.g. "Football 5v5").
// Games are grouped by category for display only; slot and booking rules are
// always keyed by the game.
//
// Fields:
//  ID         – primary key identifier.
//  CategoryID – category the game is listed under.
//  Name       – display name.
//  CreatedAt  – creation timestamp.
type Game struct {
	ID         uint64    `json:"id" db:"id"`                   // games.id
	CategoryID uint64    `json:"category_id" db:"category_id"` // games.category_id
	Name       string    `json:"name" db:"name"`               // games.name
	CreatedAt  time.Time `json:"-" db:"created_at"`            // games.created_at
}
