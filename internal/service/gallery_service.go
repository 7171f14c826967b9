package service

import (
	"context"
	"path"
	"sort"
	"strings"

	"ecom-studio/internal/models"
	"ecom-studio/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GalleryPage is one page of a gallery listing.
type GalleryPage struct {
	Files   []models.UserFile `json:"files"`
	Total   int               `json:"total"`
	Page    int               `json:"page"`
	HasMore bool              `json:"has_more"`
}

// GalleryService lists and mutates the user's image and video galleries.
type GalleryService interface {
	// List returns one page of files matching the filter. The sort order and
	// pagination are applied in memory over the full matching set.
	List(ctx context.Context, userID uuid.UUID, filter models.FileFilter) (*GalleryPage, error)

	// AddFile records a new gallery asset.
	AddFile(ctx context.Context, file *models.UserFile) error

	// GetFile returns a single file owned by the user.
	GetFile(ctx context.Context, userID, fileID uuid.UUID) (*models.UserFile, error)

	// SetFavorite toggles the favorite flag on a file.
	SetFavorite(ctx context.Context, userID, fileID uuid.UUID, favorite bool) error

	// MarkViewed marks a generated video as viewed (clears its "new" badge).
	MarkViewed(ctx context.Context, userID, fileID uuid.UUID) error
}

// Compile-time check to ensure galleryServiceImpl implements GalleryService
var _ GalleryService = (*galleryServiceImpl)(nil)

type galleryServiceImpl struct {
	fileRepo repository.UserFileRepository
	logger   *zap.Logger
}

// NewGalleryService creates a new instance of galleryServiceImpl.
func NewGalleryService(fileRepo repository.UserFileRepository, logger *zap.Logger) GalleryService {
	return &galleryServiceImpl{
		fileRepo: fileRepo,
		logger:   logger.Named("GalleryService"),
	}
}

// List fetches all matching files, sorts them and slices out the page.
func (s *galleryServiceImpl) List(ctx context.Context, userID uuid.UUID, filter models.FileFilter) (*GalleryPage, error) {
	files, err := s.fileRepo.ListByUser(ctx, userID, filter.Folder, filter.FileType, filter.FavoritesOnly)
	if err != nil {
		return nil, err
	}

	sortFiles(files, filter.Sort)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	total := len(files)
	start := (page - 1) * models.GalleryPageSize
	if start > total {
		start = total
	}
	end := start + models.GalleryPageSize
	if end > total {
		end = total
	}

	return &GalleryPage{
		Files:   files[start:end],
		Total:   total,
		Page:    page,
		HasMore: end < total,
	}, nil
}

// AddFile records a new gallery asset.
func (s *galleryServiceImpl) AddFile(ctx context.Context, file *models.UserFile) error {
	if err := s.fileRepo.Insert(ctx, file); err != nil {
		return err
	}
	s.logger.Debug("Gallery file added",
		zap.String("userID", file.UserID.String()),
		zap.String("fileType", file.FileType),
		zap.String("folder", file.Folder),
	)
	return nil
}

// GetFile returns a single file owned by the user.
func (s *galleryServiceImpl) GetFile(ctx context.Context, userID, fileID uuid.UUID) (*models.UserFile, error) {
	return s.fileRepo.GetByID(ctx, userID, fileID)
}

// SetFavorite toggles the favorite flag.
func (s *galleryServiceImpl) SetFavorite(ctx context.Context, userID, fileID uuid.UUID, favorite bool) error {
	return s.fileRepo.SetFavorite(ctx, userID, fileID, favorite)
}

// MarkViewed clears the unviewed badge on a generated video.
func (s *galleryServiceImpl) MarkViewed(ctx context.Context, userID, fileID uuid.UUID) error {
	return s.fileRepo.SetViewed(ctx, userID, fileID, true)
}

// sortFiles orders files in place. Unknown sort values fall back to newest.
func sortFiles(files []models.UserFile, order string) {
	switch order {
	case models.SortOldest:
		sort.SliceStable(files, func(i, j int) bool {
			return files[i].CreatedAt.Before(files[j].CreatedAt)
		})
	case models.SortName:
		sort.SliceStable(files, func(i, j int) bool {
			return strings.ToLower(path.Base(files[i].FilePath)) < strings.ToLower(path.Base(files[j].FilePath))
		})
	case models.SortSize:
		sort.SliceStable(files, func(i, j int) bool {
			return files[i].FileSize > files[j].FileSize
		})
	default: // models.SortNewest
		sort.SliceStable(files, func(i, j int) bool {
			return files[i].CreatedAt.After(files[j].CreatedAt)
		})
	}
}
