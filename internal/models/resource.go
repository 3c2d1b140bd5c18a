package models

import "time"

// Resource is a shared consumable or piece of equipment with a finite owned
// quantity.
type Resource struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	TotalQuantity int       `db:"total_quantity" json:"total_quantity"`
	Available     bool      `db:"available" json:"available"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
