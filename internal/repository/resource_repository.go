package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/halcyon-intra/portal-events-api/internal/models"
)

const resourceColumns = `id, name, address, default_capacity, map_ref, created_at, updated_at`

// ResourceRepository persists bookable locations.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository constructs a resource repository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// List returns all resources ordered by name.
func (r *ResourceRepository) List(ctx context.Context) ([]models.Resource, error) {
	query := fmt.Sprintf("SELECT %s FROM resources ORDER BY name ASC", resourceColumns)
	var resources []models.Resource
	if err := r.db.SelectContext(ctx, &resources, query); err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return resources, nil
}

// FindByID loads one resource.
func (r *ResourceRepository) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	query := fmt.Sprintf("SELECT %s FROM resources WHERE id = $1", resourceColumns)
	var res models.Resource
	if err := r.db.GetContext(ctx, &res, query, id); err != nil {
		return nil, err
	}
	return &res, nil
}

// FindByName returns resources matching a display name exactly. More than
// one row is possible because name uniqueness is advisory.
func (r *ResourceRepository) FindByName(ctx context.Context, name string) ([]models.Resource, error) {
	query := fmt.Sprintf("SELECT %s FROM resources WHERE name = $1 ORDER BY created_at ASC", resourceColumns)
	var resources []models.Resource
	if err := r.db.SelectContext(ctx, &resources, query, name); err != nil {
		return nil, fmt.Errorf("find resources by name: %w", err)
	}
	return resources, nil
}

// Create inserts a resource. The duplicate-name check is the caller's
// responsibility and is deliberately not transactional with this insert.
func (r *ResourceRepository) Create(ctx context.Context, res *models.Resource) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now

	const query = `INSERT INTO resources (id, name, address, default_capacity, map_ref, created_at, updated_at) VALUES (:id, :name, :address, :default_capacity, :map_ref, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, res); err != nil {
		return fmt.Errorf("create resource: %w", err)
	}
	return nil
}
