package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"toilet-map-service/internal/client"
	"toilet-map-service/internal/ratelimit"
	"toilet-map-service/internal/util"
)

// RateLimitRepository implements ratelimit.Store over the rate_limits table.
// Rows are append-only; the age-based bulk delete is the only removal path.
type RateLimitRepository struct {
	client *client.PostgresClient
}

func NewRateLimitRepository(client *client.PostgresClient, logger *zap.Logger) *RateLimitRepository {
	return &RateLimitRepository{client: client}
}

func (r *RateLimitRepository) CountSince(ctx context.Context, identityHash string, action ratelimit.Action, targetID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM rate_limits
		WHERE ip_hash = $1 AND action = $2 AND created_at >= $3`
	args := []interface{}{identityHash, string(action), since}

	if targetID != "" {
		query += ` AND target_id = $4`
		args = append(args, targetID)
	}

	var count int
	if err := r.client.Pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		util.Error("Failed to count rate limit records",
			zap.String("action", string(action)),
			zap.Error(err))
		return 0, fmt.Errorf("failed to count rate limit records: %w", err)
	}

	return count, nil
}

func (r *RateLimitRepository) Insert(ctx context.Context, identityHash string, action ratelimit.Action, targetID string) error {
	var target *string
	if targetID != "" {
		target = &targetID
	}

	_, err := r.client.Pool.Exec(ctx, `
		INSERT INTO rate_limits (ip_hash, action, target_id)
		VALUES ($1, $2, $3)`,
		identityHash, string(action), target)
	if err != nil {
		util.Error("Failed to insert rate limit record",
			zap.String("action", string(action)),
			zap.Error(err))
		return fmt.Errorf("failed to insert rate limit record: %w", err)
	}

	return nil
}

func (r *RateLimitRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.client.Pool.Exec(ctx, `
		DELETE FROM rate_limits WHERE created_at < $1`, cutoff)
	if err != nil {
		util.Error("Failed to delete old rate limit records", zap.Error(err))
		return 0, fmt.Errorf("failed to delete old rate limit records: %w", err)
	}

	return tag.RowsAffected(), nil
}
