package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrVersionNotFound no version matches the query.
var ErrVersionNotFound = errors.New("config version not found")

// ConfigVersion one archived revision of a configuration document. A version
// is current while ValidTo is nil.
type ConfigVersion struct {
	VersionID   string     `json:"version_id"`
	LogicalPath string     `json:"logical_path"`
	Content     []byte     `json:"-"`
	ValidFrom   time.Time  `json:"valid_from"`
	ValidTo     *time.Time `json:"valid_to,omitempty"`
}

// ConfigVersionsRepository archive of every document the dispatcher wrote.
type ConfigVersionsRepository interface {
	CreateConfigVersion(ctx context.Context, v *ConfigVersion) (string, error)
	GetConfigVersionAtTime(ctx context.Context, logicalPath string, at time.Time) (*ConfigVersion, error)
	ListConfigVersions(ctx context.Context, logicalPath string, page, size int) ([]*ConfigVersion, int, error)
}

// Schema creates the archive table.
const Schema = `
CREATE TABLE IF NOT EXISTS config_versions (
	version_id   UUID PRIMARY KEY,
	logical_path TEXT NOT NULL,
	content      TEXT NOT NULL,
	valid_from   TIMESTAMPTZ NOT NULL,
	valid_to     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS config_versions_path_idx ON config_versions (logical_path, valid_from DESC);
`

// PostgresConfigVersionsRepository stores versions in Postgres.
type PostgresConfigVersionsRepository struct {
	db *sql.DB
}

// NewPostgresConfigVersionsRepository wraps db.
func NewPostgresConfigVersionsRepository(db *sql.DB) *PostgresConfigVersionsRepository {
	return &PostgresConfigVersionsRepository{db: db}
}

var _ ConfigVersionsRepository = (*PostgresConfigVersionsRepository)(nil)

// EnsureSchema creates the table and index when missing.
func (r *PostgresConfigVersionsRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create config_versions: %w", err)
	}
	return nil
}

// CreateConfigVersion inserts v and closes the previous current version of
// the same logical path at v.ValidFrom, in one transaction.
func (r *PostgresConfigVersionsRepository) CreateConfigVersion(ctx context.Context, v *ConfigVersion) (string, error) {
	if v.LogicalPath == "" {
		return "", fmt.Errorf("logical_path is required")
	}
	if v.ValidFrom.IsZero() {
		v.ValidFrom = time.Now()
	}
	if v.VersionID == "" {
		v.VersionID = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	closeOld := `
		UPDATE config_versions
		SET valid_to = $2
		WHERE logical_path = $1
			AND (valid_to IS NULL OR valid_to > $2)
	`
	if _, err := tx.ExecContext(ctx, closeOld, v.LogicalPath, v.ValidFrom); err != nil {
		return "", fmt.Errorf("failed to close previous config version: %w", err)
	}

	insert := `
		INSERT INTO config_versions (version_id, logical_path, content, valid_from, valid_to)
		VALUES ($1, $2, $3, $4, NULL)
	`
	if _, err := tx.ExecContext(ctx, insert, v.VersionID, v.LogicalPath, string(v.Content), v.ValidFrom); err != nil {
		return "", fmt.Errorf("failed to create config version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return v.VersionID, nil
}

const versionColumns = `version_id::text, logical_path, content, valid_from, valid_to`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(s rowScanner) (*ConfigVersion, error) {
	var v ConfigVersion
	var content string
	var validTo sql.NullTime
	if err := s.Scan(&v.VersionID, &v.LogicalPath, &content, &v.ValidFrom, &validTo); err != nil {
		return nil, err
	}
	v.Content = []byte(content)
	if validTo.Valid {
		t := validTo.Time
		v.ValidTo = &t
	}
	return &v, nil
}

// GetConfigVersionAtTime returns the version of logicalPath that was current
// at the given time.
func (r *PostgresConfigVersionsRepository) GetConfigVersionAtTime(ctx context.Context, logicalPath string, at time.Time) (*ConfigVersion, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM config_versions
		WHERE logical_path = $1
			AND valid_from <= $2
			AND (valid_to IS NULL OR valid_to > $2)
		ORDER BY valid_from DESC
		LIMIT 1
	`
	v, err := scanVersion(r.db.QueryRowContext(ctx, query, logicalPath, at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s at %v: %w", logicalPath, at, ErrVersionNotFound)
		}
		return nil, fmt.Errorf("failed to get config version at time: %w", err)
	}
	return v, nil
}

// ListConfigVersions returns the history of logicalPath, newest first.
func (r *PostgresConfigVersionsRepository) ListConfigVersions(ctx context.Context, logicalPath string, page, size int) ([]*ConfigVersion, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM config_versions WHERE logical_path = $1`, logicalPath,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count config versions: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	query := `
		SELECT ` + versionColumns + `
		FROM config_versions
		WHERE logical_path = $1
		ORDER BY valid_from DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, logicalPath, size, (page-1)*size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list config versions: %w", err)
	}
	defer rows.Close()

	versions := []*ConfigVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan config version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate config versions: %w", err)
	}
	return versions, total, nil
}
