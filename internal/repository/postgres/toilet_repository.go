package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"toilet-map-service/internal/client"
	"toilet-map-service/internal/model"
	"toilet-map-service/internal/repository"
	"toilet-map-service/internal/util"
)

type ToiletRepository struct {
	client *client.PostgresClient
}

func NewToiletRepository(client *client.PostgresClient, logger *zap.Logger) *ToiletRepository {
	return &ToiletRepository{client: client}
}

func (r *ToiletRepository) ListByBuilding(ctx context.Context, buildingID string) ([]model.Toilet, error) {
	rows, err := r.client.Pool.Query(ctx, `
		SELECT id, building_id, location, created_at
		FROM toilets WHERE building_id = $1
		ORDER BY created_at ASC`, buildingID)
	if err != nil {
		util.Error("Failed to list toilets",
			zap.String("building_id", buildingID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list toilets: %w", err)
	}
	defer rows.Close()

	toilets := make([]model.Toilet, 0)
	for rows.Next() {
		var t model.Toilet
		if err := rows.Scan(&t.ID, &t.BuildingID, &t.Location, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan toilet row: %w", err)
		}
		toilets = append(toilets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate toilet rows: %w", err)
	}

	return toilets, nil
}

// GetInBuilding fetches a toilet only when it belongs to the given building,
// so review submissions cannot attach to a toilet elsewhere.
func (r *ToiletRepository) GetInBuilding(ctx context.Context, toiletID, buildingID string) (*model.Toilet, error) {
	toilet := &model.Toilet{}

	err := r.client.Pool.QueryRow(ctx, `
		SELECT id, building_id, location, created_at
		FROM toilets WHERE id = $1 AND building_id = $2`, toiletID, buildingID).
		Scan(&toilet.ID, &toilet.BuildingID, &toilet.Location, &toilet.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("toilet %s in building %s: %w", toiletID, buildingID, repository.ErrNotFound)
		}
		util.Error("Failed to get toilet",
			zap.String("toilet_id", toiletID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get toilet: %w", err)
	}

	return toilet, nil
}

// Upsert inserts a toilet or returns the existing one for the same
// (building, location) pair. The no-op DO UPDATE keeps RETURNING populated
// on the conflict path.
func (r *ToiletRepository) Upsert(ctx context.Context, buildingID, location string) (*model.Toilet, error) {
	toilet := &model.Toilet{}

	err := r.client.Pool.QueryRow(ctx, `
		INSERT INTO toilets (id, building_id, location)
		VALUES ($1, $2, $3)
		ON CONFLICT (building_id, location) DO UPDATE SET location = EXCLUDED.location
		RETURNING id, building_id, location, created_at`,
		uuid.New().String(), buildingID, location).
		Scan(&toilet.ID, &toilet.BuildingID, &toilet.Location, &toilet.CreatedAt)
	if err != nil {
		util.Error("Failed to upsert toilet",
			zap.String("building_id", buildingID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to upsert toilet: %w", err)
	}

	return toilet, nil
}
