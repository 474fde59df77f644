package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/labelsense/labelsense/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it in
// tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// Statements prepared on each new connection for the hot read paths. The
// read methods execute them by name.
const (
	stmtGetScan    = "get_scan"
	stmtGetProfile = "get_profile"
	stmtListByUser = "list_by_user"
)

var preparedStatements = map[string]string{
	stmtGetScan:    `SELECT id, user_id, product_name, raw_text, summary_explanation, summary_risk, created_at FROM scans WHERE id = $1`,
	stmtGetProfile: `SELECT allergies, conditions, dietary_preferences FROM health_profiles WHERE user_id = $1`,
	stmtListByUser: `SELECT id, user_id, product_name, raw_text, summary_explanation, summary_risk, created_at FROM scans WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS scans (
	id                  TEXT PRIMARY KEY,
	user_id             TEXT NOT NULL,
	product_name        TEXT NOT NULL DEFAULT '',
	raw_text            TEXT NOT NULL,
	summary_explanation TEXT NOT NULL DEFAULT '',
	summary_risk        TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scan_ingredients (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	scan_id    TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL DEFAULT 0,
	name       TEXT NOT NULL,
	risk_level TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS scan_nutrients (
	id      TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	scan_id  TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
	position INTEGER NOT NULL DEFAULT 0,
	label    TEXT NOT NULL,
	value   DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS health_profiles (
	user_id             TEXT PRIMARY KEY,
	allergies           JSONB NOT NULL DEFAULT '[]',
	conditions          JSONB NOT NULL DEFAULT '[]',
	dietary_preferences JSONB NOT NULL DEFAULT '[]',
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_scans_user_id ON scans(user_id);
CREATE INDEX IF NOT EXISTS idx_scan_ingredients_scan_id ON scan_ingredients(scan_id);
CREATE INDEX IF NOT EXISTS idx_scan_nutrients_scan_id ON scan_nutrients(scan_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// SaveAnalysis persists the scan and its ingredient/nutrient rows in one
// transaction.
func (s *PostgresStore) SaveAnalysis(ctx context.Context, scan model.Scan, result *model.AnalysisResult) (*model.ScanDetail, error) {
	if scan.ID == "" {
		scan.ID = uuid.New().String()
	}
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = time.Now().UTC()
	}
	if result != nil {
		scan.Ingredients = result.Ingredients
		scan.SummaryExplanation = result.SummaryExplanation
		scan.SummaryRisk = result.SummaryRisk
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO scans (id, user_id, product_name, raw_text, summary_explanation, summary_risk, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		scan.ID, scan.UserID, scan.ProductName, scan.RawText, scan.SummaryExplanation, string(scan.SummaryRisk), scan.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert scan")
	}

	ingredients := ingredientRows(result)
	for i, row := range ingredients {
		if _, err := tx.Exec(ctx,
			`INSERT INTO scan_ingredients (id, scan_id, position, name, risk_level) VALUES ($1, $2, $3, $4, $5)`,
			uuid.New().String(), scan.ID, i, row.Name, string(row.RiskLevel),
		); err != nil {
			return nil, eris.Wrap(err, "postgres: insert ingredient")
		}
	}

	nutrients := nutrientRows(result)
	for i, row := range nutrients {
		if _, err := tx.Exec(ctx,
			`INSERT INTO scan_nutrients (id, scan_id, position, label, value) VALUES ($1, $2, $3, $4, $5)`,
			uuid.New().String(), scan.ID, i, row.Label, row.Value,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: insert nutrient")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit")
	}

	return &model.ScanDetail{Scan: scan, Ingredients: ingredients, Nutrients: nutrients}, nil
}

func (s *PostgresStore) GetScan(ctx context.Context, scanID string) (*model.ScanDetail, error) {
	var scan model.Scan
	err := s.pool.QueryRow(ctx, stmtGetScan, scanID).
		Scan(&scan.ID, &scan.UserID, &scan.ProductName, &scan.RawText, &scan.SummaryExplanation, &scan.SummaryRisk, &scan.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get scan %s", scanID)
	}

	detail := &model.ScanDetail{Scan: scan}

	rows, err := s.pool.Query(ctx,
		`SELECT name, risk_level FROM scan_ingredients WHERE scan_id = $1 ORDER BY position`,
		scanID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query ingredients")
	}
	defer rows.Close()
	for rows.Next() {
		var ing model.ScanIngredient
		if err := rows.Scan(&ing.Name, &ing.RiskLevel); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ingredient row")
		}
		detail.Ingredients = append(detail.Ingredients, ing)
		detail.Scan.Ingredients = append(detail.Scan.Ingredients, ing.Name)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: ingredient rows")
	}

	nrows, err := s.pool.Query(ctx,
		`SELECT label, value FROM scan_nutrients WHERE scan_id = $1 ORDER BY position`,
		scanID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query nutrients")
	}
	defer nrows.Close()
	for nrows.Next() {
		var n model.ScanNutrient
		if err := nrows.Scan(&n.Label, &n.Value); err != nil {
			return nil, eris.Wrap(err, "postgres: scan nutrient row")
		}
		detail.Nutrients = append(detail.Nutrients, n)
	}
	if err := nrows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: nutrient rows")
	}

	return detail, nil
}

func (s *PostgresStore) ListScans(ctx context.Context, filter ScanFilter) ([]model.Scan, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, stmtListByUser, filter.UserID, limit, filter.Offset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scans")
	}
	defer rows.Close()

	var scans []model.Scan
	for rows.Next() {
		var scan model.Scan
		if err := rows.Scan(&scan.ID, &scan.UserID, &scan.ProductName, &scan.RawText, &scan.SummaryExplanation, &scan.SummaryRisk, &scan.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan row")
		}
		scans = append(scans, scan)
	}
	return scans, eris.Wrap(rows.Err(), "postgres: list rows")
}

func (s *PostgresStore) DeleteScan(ctx context.Context, scanID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM scans WHERE id = $1`, scanID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete scan %s", scanID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetHealthProfile(ctx context.Context, userID string) (*model.HealthProfile, error) {
	var allergies, conditions, prefs []byte
	err := s.pool.QueryRow(ctx, stmtGetProfile, userID).
		Scan(&allergies, &conditions, &prefs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get profile %s", userID)
	}

	var profile model.HealthProfile
	for _, pair := range []struct {
		raw []byte
		dst *[]string
	}{
		{allergies, &profile.Allergies},
		{conditions, &profile.Conditions},
		{prefs, &profile.DietaryPreferences},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return nil, eris.Wrap(err, "postgres: decode profile")
		}
	}
	return &profile, nil
}

func (s *PostgresStore) UpsertHealthProfile(ctx context.Context, userID string, profile model.HealthProfile) error {
	allergies, err := json.Marshal(emptyIfNil(profile.Allergies))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal allergies")
	}
	conditions, err := json.Marshal(emptyIfNil(profile.Conditions))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal conditions")
	}
	prefs, err := json.Marshal(emptyIfNil(profile.DietaryPreferences))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal preferences")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO health_profiles (user_id, allergies, conditions, dietary_preferences, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET allergies = $2, conditions = $3, dietary_preferences = $4, updated_at = $5`,
		userID, allergies, conditions, prefs, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert profile %s", userID)
}

func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
