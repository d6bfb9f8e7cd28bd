package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nordrail/storefront-api/internal/models"
)

// ItemRepository provides database access for the storefront catalog.
type ItemRepository struct {
	db *sqlx.DB
}

// NewItemRepository creates a new instance of ItemRepository.
func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// List returns catalog items, newest first.
func (r *ItemRepository) List(ctx context.Context) ([]models.Item, error) {
	const query = `SELECT id, name, price_cents, created_at FROM items ORDER BY created_at DESC`
	var items []models.Item
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// Create inserts a new catalog item.
func (r *ItemRepository) Create(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO items (id, name, price_cents, created_at) VALUES (:id, :name, :price_cents, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}
