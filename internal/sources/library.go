package sources

import (
	"context"

	"ecom-studio/internal/models"
	"ecom-studio/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LibrarySource exposes the user's previously uploaded images as candidates.
type LibrarySource interface {
	// Candidates returns all library images of the user as selectable
	// candidates. Returns models.ErrNoImagesFound when the library is empty.
	Candidates(ctx context.Context, userID uuid.UUID) ([]ImageCandidate, error)
}

// Compile-time check to ensure librarySource implements LibrarySource
var _ LibrarySource = (*librarySource)(nil)

type librarySource struct {
	fileRepo repository.UserFileRepository
	logger   *zap.Logger
}

// NewLibrarySource creates a new instance of librarySource.
func NewLibrarySource(fileRepo repository.UserFileRepository, logger *zap.Logger) LibrarySource {
	return &librarySource{
		fileRepo: fileRepo,
		logger:   logger.Named("LibrarySource"),
	}
}

// Candidates lists the user's library images newest first.
func (l *librarySource) Candidates(ctx context.Context, userID uuid.UUID) ([]ImageCandidate, error) {
	files, err := l.fileRepo.ListByUser(ctx, userID, models.FolderLibrary, models.FileTypeImage, false)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, models.ErrNoImagesFound
	}

	candidates := make([]ImageCandidate, 0, len(files))
	for _, f := range files {
		candidates = append(candidates, ImageCandidate{URL: f.FilePath})
	}
	return candidates, nil
}
