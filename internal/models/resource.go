package models

import "time"

// Resource is a bookable location (room or venue). Name uniqueness is
// advisory: it is checked with an exact-match lookup before insert, not
// enforced by the store.
type Resource struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Address         string    `db:"address" json:"address"`
	DefaultCapacity int       `db:"default_capacity" json:"default_capacity"`
	MapRef          string    `db:"map_ref" json:"map_ref,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
