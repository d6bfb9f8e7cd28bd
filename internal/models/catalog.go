package models

import "time"

// Item is a storefront catalog entry.
type Item struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	PriceCents int64     `db:"price_cents" json:"price_cents"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// CreateItemRequest holds the payload for adding a catalog entry.
type CreateItemRequest struct {
	Name       string `json:"name" validate:"required"`
	PriceCents int64  `json:"price_cents" validate:"gte=0"`
}
