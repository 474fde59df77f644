package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/labelsense/labelsense/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS scans (
	id                  TEXT PRIMARY KEY,
	user_id             TEXT NOT NULL,
	product_name        TEXT NOT NULL DEFAULT '',
	raw_text            TEXT NOT NULL,
	summary_explanation TEXT NOT NULL DEFAULT '',
	summary_risk        TEXT NOT NULL DEFAULT '',
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS scan_ingredients (
	id         TEXT PRIMARY KEY,
	scan_id    TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL DEFAULT 0,
	name       TEXT NOT NULL,
	risk_level TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS scan_nutrients (
	id      TEXT PRIMARY KEY,
	scan_id  TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
	position INTEGER NOT NULL DEFAULT 0,
	label    TEXT NOT NULL,
	value   REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS health_profiles (
	user_id             TEXT PRIMARY KEY,
	allergies           TEXT NOT NULL DEFAULT '[]',
	conditions          TEXT NOT NULL DEFAULT '[]',
	dietary_preferences TEXT NOT NULL DEFAULT '[]',
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_scans_user_id ON scans(user_id);
CREATE INDEX IF NOT EXISTS idx_scan_ingredients_scan_id ON scan_ingredients(scan_id);
CREATE INDEX IF NOT EXISTS idx_scan_nutrients_scan_id ON scan_nutrients(scan_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, scan model.Scan, result *model.AnalysisResult) (*model.ScanDetail, error) {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO scans (id, user_id, product_name, raw_text, summary_explanation, summary_risk, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		scan.ID, scan.UserID, scan.ProductName, scan.RawText, scan.SummaryExplanation, string(scan.SummaryRisk), scan.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert scan")
	}

	ingredients := ingredientRows(result)
	for i, row := range ingredients {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scan_ingredients (id, scan_id, position, name, risk_level) VALUES (?, ?, ?, ?, ?)`,
			uuid.New().String(), scan.ID, i, row.Name, string(row.RiskLevel),
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: insert ingredient")
		}
	}

	nutrients := nutrientRows(result)
	for i, row := range nutrients {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scan_nutrients (id, scan_id, position, label, value) VALUES (?, ?, ?, ?, ?)`,
			uuid.New().String(), scan.ID, i, row.Label, row.Value,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: insert nutrient")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit")
	}

	return &model.ScanDetail{Scan: scan, Ingredients: ingredients, Nutrients: nutrients}, nil
}

func (s *SQLiteStore) GetScan(ctx context.Context, scanID string) (*model.ScanDetail, error) {
	var scan model.Scan
	var summaryRisk string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, product_name, raw_text, summary_explanation, summary_risk, created_at FROM scans WHERE id = ?`,
		scanID,
	).Scan(&scan.ID, &scan.UserID, &scan.ProductName, &scan.RawText, &scan.SummaryExplanation, &summaryRisk, &scan.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get scan %s", scanID)
	}
	scan.SummaryRisk = model.RiskLabel(summaryRisk)

	detail := &model.ScanDetail{Scan: scan}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, risk_level FROM scan_ingredients WHERE scan_id = ? ORDER BY position`,
		scanID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query ingredients")
	}
	defer rows.Close()
	for rows.Next() {
		var name, level string
		if err := rows.Scan(&name, &level); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ingredient row")
		}
		detail.Ingredients = append(detail.Ingredients, model.ScanIngredient{Name: name, RiskLevel: model.RiskLabel(level)})
		detail.Scan.Ingredients = append(detail.Scan.Ingredients, name)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: ingredient rows")
	}

	nrows, err := s.db.QueryContext(ctx,
		`SELECT label, value FROM scan_nutrients WHERE scan_id = ? ORDER BY position`,
		scanID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query nutrients")
	}
	defer nrows.Close()
	for nrows.Next() {
		var n model.ScanNutrient
		if err := nrows.Scan(&n.Label, &n.Value); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan nutrient row")
		}
		detail.Nutrients = append(detail.Nutrients, n)
	}
	if err := nrows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: nutrient rows")
	}

	return detail, nil
}

func (s *SQLiteStore) ListScans(ctx context.Context, filter ScanFilter) ([]model.Scan, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, product_name, raw_text, summary_explanation, summary_risk, created_at FROM scans WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		filter.UserID, limit, filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scans")
	}
	defer rows.Close()

	var scans []model.Scan
	for rows.Next() {
		var scan model.Scan
		var summaryRisk string
		if err := rows.Scan(&scan.ID, &scan.UserID, &scan.ProductName, &scan.RawText, &scan.SummaryExplanation, &summaryRisk, &scan.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		scan.SummaryRisk = model.RiskLabel(summaryRisk)
		scans = append(scans, scan)
	}
	return scans, eris.Wrap(rows.Err(), "sqlite: list rows")
}

func (s *SQLiteStore) DeleteScan(ctx context.Context, scanID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, scanID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete scan %s", scanID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetHealthProfile(ctx context.Context, userID string) (*model.HealthProfile, error) {
	var allergies, conditions, prefs string
	err := s.db.QueryRowContext(ctx,
		`SELECT allergies, conditions, dietary_preferences FROM health_profiles WHERE user_id = ?`,
		userID,
	).Scan(&allergies, &conditions, &prefs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get profile %s", userID)
	}

	var profile model.HealthProfile
	for _, pair := range []struct {
		raw string
		dst *[]string
	}{
		{allergies, &profile.Allergies},
		{conditions, &profile.Conditions},
		{prefs, &profile.DietaryPreferences},
	} {
		if pair.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(pair.raw), pair.dst); err != nil {
			return nil, eris.Wrap(err, "sqlite: decode profile")
		}
	}
	return &profile, nil
}

func (s *SQLiteStore) UpsertHealthProfile(ctx context.Context, userID string, profile model.HealthProfile) error {
	allergies, err := json.Marshal(emptyIfNil(profile.Allergies))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal allergies")
	}
	conditions, err := json.Marshal(emptyIfNil(profile.Conditions))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal conditions")
	}
	prefs, err := json.Marshal(emptyIfNil(profile.DietaryPreferences))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal preferences")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO health_profiles (user_id, allergies, conditions, dietary_preferences, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET allergies = excluded.allergies, conditions = excluded.conditions, dietary_preferences = excluded.dietary_preferences, updated_at = excluded.updated_at`,
		userID, string(allergies), string(conditions), string(prefs), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert profile %s", userID)
}
