package repository

import (
	"context"
	"errors"
	"fmt"

	"ecom-studio/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check to ensure pgUserFileRepository implements UserFileRepository
var _ UserFileRepository = (*pgUserFileRepository)(nil)

type pgUserFileRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgUserFileRepository creates a new PostgreSQL-backed UserFileRepository.
func NewPgUserFileRepository(db DBTX, logger *zap.Logger) UserFileRepository {
	return &pgUserFileRepository{
		db:     db,
		logger: logger.Named("PgUserFileRepo"),
	}
}

// Insert stores a new asset record.
func (r *pgUserFileRepository) Insert(ctx context.Context, file *models.UserFile) error {
	query := `
		INSERT INTO user_files (user_id, file_path, file_type, folder, file_size)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	r.logger.Debug("Executing query", zap.String("query", query), zap.String("userID", file.UserID.String()), zap.String("filePath", file.FilePath))
	err := r.db.QueryRow(ctx, query, file.UserID, file.FilePath, file.FileType, file.Folder, file.FileSize).Scan(&file.ID, &file.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert user file", zap.Error(err), zap.String("userID", file.UserID.String()))
		return fmt.Errorf("failed to insert user file: %w", err)
	}
	return nil
}

// GetByID retrieves a single file owned by the user.
func (r *pgUserFileRepository) GetByID(ctx context.Context, userID, fileID uuid.UUID) (*models.UserFile, error) {
	query := `
		SELECT id, user_id, file_path, file_type, folder, is_favorite, is_viewed, file_size, created_at
		FROM user_files
		WHERE id = $1 AND user_id = $2`
	file := &models.UserFile{}
	err := r.db.QueryRow(ctx, query, fileID, userID).Scan(
		&file.ID, &file.UserID, &file.FilePath, &file.FileType, &file.Folder,
		&file.IsFavorite, &file.IsViewed, &file.FileSize, &file.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrFileNotFound
		}
		r.logger.Error("Failed to get user file", zap.Error(err), zap.String("fileID", fileID.String()))
		return nil, fmt.Errorf("failed to get user file: %w", err)
	}
	return file, nil
}

// ListByUser loads all files matching the filter for one user.
// Сортировка и пагинация выполняются на уровне сервиса.
func (r *pgUserFileRepository) ListByUser(ctx context.Context, userID uuid.UUID, folder, fileType string, favoritesOnly bool) ([]models.UserFile, error) {
	query := `
		SELECT id, user_id, file_path, file_type, folder, is_favorite, is_viewed, file_size, created_at
		FROM user_files
		WHERE user_id = $1
		  AND ($2 = '' OR folder = $2)
		  AND ($3 = '' OR file_type = $3)
		  AND (NOT $4 OR is_favorite)`
	var files []models.UserFile
	if err := pgxscan.Select(ctx, r.db, &files, query, userID, folder, fileType, favoritesOnly); err != nil {
		r.logger.Error("Failed to list user files", zap.Error(err), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("failed to list user files: %w", err)
	}
	return files, nil
}

// SetFavorite persists the favorite flag.
func (r *pgUserFileRepository) SetFavorite(ctx context.Context, userID, fileID uuid.UUID, favorite bool) error {
	query := `UPDATE user_files SET is_favorite = $3 WHERE id = $1 AND user_id = $2`
	tag, err := r.db.Exec(ctx, query, fileID, userID, favorite)
	if err != nil {
		r.logger.Error("Failed to set favorite flag", zap.Error(err), zap.String("fileID", fileID.String()))
		return fmt.Errorf("failed to set favorite flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrFileNotFound
	}
	return nil
}

// SetViewed persists the viewed flag.
func (r *pgUserFileRepository) SetViewed(ctx context.Context, userID, fileID uuid.UUID, viewed bool) error {
	query := `UPDATE user_files SET is_viewed = $3 WHERE id = $1 AND user_id = $2`
	tag, err := r.db.Exec(ctx, query, fileID, userID, viewed)
	if err != nil {
		r.logger.Error("Failed to set viewed flag", zap.Error(err), zap.String("fileID", fileID.String()))
		return fmt.Errorf("failed to set viewed flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrFileNotFound
	}
	return nil
}
