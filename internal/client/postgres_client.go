package client

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"toilet-map-service/internal/config"
	"toilet-map-service/internal/util"
)

// PostgresClient wraps the pgx connection pool shared by all repositories.
type PostgresClient struct {
	Pool   *pgxpool.Pool
	config *config.DatabaseConfig
}

func NewPostgresClient(cfg *config.Config, logger *zap.Logger) (*PostgresClient, error) {
	dbConfig := cfg.Database

	poolConfig, err := pgxpool.ParseConfig(dbConfig.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(dbConfig.MaxConns)
	poolConfig.MinConns = int32(dbConfig.MinConns)
	poolConfig.ConnConfig.ConnectTimeout = dbConfig.ConnectTimeout

	ctx, cancel := context.WithTimeout(context.Background(), dbConfig.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	util.Info("Postgres pool created",
		util.Int("max_conns", dbConfig.MaxConns),
		util.Int("min_conns", dbConfig.MinConns),
	)

	return &PostgresClient{
		Pool:   pool,
		config: &dbConfig,
	}, nil
}

func (c *PostgresClient) HealthCheck(ctx context.Context) error {
	if err := c.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

// EnsureSchema creates the tables and indexes this service needs. Statements
// are idempotent so startup is safe against an already-provisioned database.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	for _, query := range schemaQueries() {
		if _, err := c.Pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}
	util.Info("Database schema ensured")
	return nil
}

func (c *PostgresClient) Close() {
	c.Pool.Close()
}

func schemaQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS buildings (
			id UUID PRIMARY KEY,
			name TEXT,
			address TEXT UNIQUE NOT NULL,
			road_address TEXT,
			lat DOUBLE PRECISION NOT NULL,
			lng DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_buildings_lat_lng ON buildings (lat, lng)`,

		`CREATE TABLE IF NOT EXISTS toilets (
			id UUID PRIMARY KEY,
			building_id UUID NOT NULL REFERENCES buildings(id) ON DELETE CASCADE,
			location TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (building_id, location)
		)`,

		`CREATE TABLE IF NOT EXISTS passwords (
			id UUID PRIMARY KEY,
			toilet_id UUID NOT NULL REFERENCES toilets(id) ON DELETE CASCADE,
			password TEXT NOT NULL,
			confirm_count INT NOT NULL DEFAULT 0,
			wrong_count INT NOT NULL DEFAULT 0,
			report_count INT NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_confirmed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_passwords_toilet_id ON passwords (toilet_id)`,

		`CREATE TABLE IF NOT EXISTS reviews (
			id UUID PRIMARY KEY,
			toilet_id UUID NOT NULL REFERENCES toilets(id) ON DELETE CASCADE,
			cleanliness SMALLINT NOT NULL,
			has_toilet_paper BOOLEAN NOT NULL,
			is_unisex BOOLEAN NOT NULL,
			has_bidet BOOLEAN NOT NULL,
			has_accessible BOOLEAN NOT NULL,
			has_diaper_table BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_toilet_id ON reviews (toilet_id)`,

		`CREATE TABLE IF NOT EXISTS rate_limits (
			id BIGSERIAL PRIMARY KEY,
			ip_hash TEXT NOT NULL,
			action TEXT NOT NULL,
			target_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rate_limits_lookup ON rate_limits (ip_hash, action, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_rate_limits_created_at ON rate_limits (created_at)`,
	}
}
