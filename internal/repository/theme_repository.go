package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/themeorama/server/internal/models"
)

// DBTX is the subset of *sql.DB the repositories use. *observability.TraceDB satisfies it too.
type DBTX interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ThemeRepository defines operations for persisting user-imported theme documents
type ThemeRepository interface {
	GetAll(ctx context.Context) ([]*models.ThemeRecord, error)
	GetByName(ctx context.Context, name string) (*models.ThemeRecord, error)
	Save(ctx context.Context, record *models.ThemeRecord) error
	Delete(ctx context.Context, name string) error
}

type themeRepository struct {
	db DBTX
}

// NewThemeRepository creates a new theme repository
func NewThemeRepository(db DBTX) ThemeRepository {
	return &themeRepository{db: db}
}

// GetAll retrieves all stored themes ordered by name
func (r *themeRepository) GetAll(ctx context.Context) ([]*models.ThemeRecord, error) {
	query := `
		SELECT id, name, document, created_at, updated_at
		FROM themes
		ORDER BY name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.ThemeRecord
	for rows.Next() {
		record, err := r.scanTheme(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// GetByName retrieves a theme by its unique name
func (r *themeRepository) GetByName(ctx context.Context, name string) (*models.ThemeRecord, error) {
	query := `
		SELECT id, name, document, created_at, updated_at
		FROM themes
		WHERE name = $1
	`

	row := r.db.QueryRowContext(ctx, query, name)
	return r.scanTheme(row)
}

// Save inserts a theme or replaces the document of the theme with the same name.
// A missing ID is generated; CreatedAt is kept from the first save.
func (r *themeRepository) Save(ctx context.Context, record *models.ThemeRecord) error {
	if record.Name == "" {
		return models.ErrInvalidThemeName
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	query := `
		INSERT INTO themes (id, name, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.Name,
		record.Document,
		record.CreatedAt,
		record.UpdatedAt,
	)
	return err
}

// Delete removes a theme by name
func (r *themeRepository) Delete(ctx context.Context, name string) error {
	query := `DELETE FROM themes WHERE name = $1`

	result, err := r.db.ExecContext(ctx, query, name)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return models.ErrThemeNotFound
	}

	return nil
}

// scanTheme scans a row into a ThemeRecord
func (r *themeRepository) scanTheme(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.ThemeRecord, error) {
	var record models.ThemeRecord

	err := scanner.Scan(
		&record.ID,
		&record.Name,
		&record.Document,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrThemeNotFound
		}
		return nil, err
	}

	return &record, nil
}
