package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/xaenox/commentgen/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(ctx context.Context, config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", config.Host),
		zap.String("dbname", config.DBName))

	return NewPostgresStorageFromDB(db, logger), nil
}

// NewPostgresStorageFromDB wraps an open handle whose schema is already in place.
func NewPostgresStorageFromDB(db *sql.DB, logger *zap.Logger) *PostgresStorage {
	return &PostgresStorage{db: db, logger: logger}
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

func (s *PostgresStorage) LatestComment(ctx context.Context, userID string) (string, error) {
	query := `
		SELECT generated_comment
		FROM generated_comments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var comment string
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&comment)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("error querying latest comment: %w", err)
	}
	return comment, nil
}

func (s *PostgresStorage) SaveComment(ctx context.Context, row *models.AuditRow) error {
	query := `
		INSERT INTO generated_comments (user_id, post_caption, tone, model, hint, generated_comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	hint := sql.NullString{String: row.Hint, Valid: row.Hint != ""}
	err := s.db.QueryRowContext(ctx, query,
		row.UserID,
		row.PostCaption,
		row.Tone,
		row.Model,
		hint,
		row.GeneratedComment,
	).Scan(&row.ID, &row.CreatedAt)
	if err != nil {
		return fmt.Errorf("error saving comment: %w", err)
	}

	s.logger.Debug("Saved generated comment",
		zap.Int64("id", row.ID),
		zap.String("user_id", row.UserID))
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
