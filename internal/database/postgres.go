package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/quantzone/zonekit/internal/config"
	"github.com/quantzone/zonekit/internal/models"
)

// PostgresDB wraps the connection pool the zone source reads from.
type PostgresDB struct {
	Pool   *pgxpool.Pool
	logger *logrus.Logger
}

// NewPostgresConnection opens a pool against the configured zone database
// and verifies connectivity before returning.
func NewPostgresConnection(ctx context.Context, cfg config.DatabaseConfig, logger *logrus.Logger) (*PostgresDB, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping zone database: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"host":     cfg.Host,
		"database": cfg.DBName,
	}).Info("Connected to zone database")
	return &PostgresDB{Pool: pool, logger: logger}, nil
}

func (db *PostgresDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info("Zone database connection closed")
	}
}

func (db *PostgresDB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// ZoneQuerier defines the database operations the zone source needs.
type ZoneQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// PostgresZoneSource loads externally labeled zones for the preloaded
// detection strategy from a table holding id/label/start_time/end_time rows.
type PostgresZoneSource struct {
	db     ZoneQuerier
	table  string
	logger *logrus.Logger
}

// NewPostgresZoneSource creates a zone source over a live pool.
func NewPostgresZoneSource(db *PostgresDB, table string, logger *logrus.Logger) *PostgresZoneSource {
	var querier ZoneQuerier
	if db != nil {
		querier = db.Pool
	}
	return newZoneSource(querier, table, logger)
}

// NewPostgresZoneSourceWithQuerier creates a zone source with a custom
// querier (for tests).
func NewPostgresZoneSourceWithQuerier(db ZoneQuerier, table string, logger *logrus.Logger) *PostgresZoneSource {
	return newZoneSource(db, table, logger)
}

func newZoneSource(db ZoneQuerier, table string, logger *logrus.Logger) *PostgresZoneSource {
	if table == "" {
		table = "external_zones"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PostgresZoneSource{db: db, table: table, logger: logger}
}

// Load fetches the zones recorded for a series, oldest first.
func (s *PostgresZoneSource) Load(ctx context.Context, seriesID string) ([]models.ExternalZone, error) {
	query := fmt.Sprintf(
		`SELECT id, label, start_time, end_time FROM %s WHERE series_id = $1 ORDER BY start_time`,
		s.table,
	)
	rows, err := s.db.Query(ctx, query, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to query external zones: %w", err)
	}
	defer rows.Close()

	var zones []models.ExternalZone
	for rows.Next() {
		var zone models.ExternalZone
		if err := rows.Scan(&zone.ID, &zone.Label, &zone.StartTime, &zone.EndTime); err != nil {
			return nil, fmt.Errorf("failed to scan external zone: %w", err)
		}
		zones = append(zones, zone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating external zone rows: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"series_id": seriesID,
		"zones":     len(zones),
	}).Debug("Loaded external zones")
	return zones, nil
}
