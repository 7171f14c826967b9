package sources

import (
	"context"
	"io"
	"strings"

	"ecom-studio/internal/models"
	"ecom-studio/internal/service"
	"ecom-studio/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UploadSource stores user-uploaded images and registers them in the library.
type UploadSource interface {
	// StoreUpload persists one uploaded image and returns its gallery record.
	// Returns models.ErrInvalidFileType for non-image content types.
	StoreUpload(ctx context.Context, userID uuid.UUID, filename, contentType string, content io.Reader) (*models.UserFile, error)
}

// Compile-time check to ensure uploadSource implements UploadSource
var _ UploadSource = (*uploadSource)(nil)

type uploadSource struct {
	store   storage.ObjectStorage
	gallery service.GalleryService
	logger  *zap.Logger
}

// NewUploadSource creates a new instance of uploadSource.
func NewUploadSource(store storage.ObjectStorage, gallery service.GalleryService, logger *zap.Logger) UploadSource {
	return &uploadSource{
		store:   store,
		gallery: gallery,
		logger:  logger.Named("UploadSource"),
	}
}

// StoreUpload validates the content type, writes the file and records it in
// the user's library folder.
func (u *uploadSource) StoreUpload(ctx context.Context, userID uuid.UUID, filename, contentType string, content io.Reader) (*models.UserFile, error) {
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		u.logger.Warn("Rejected non-image upload",
			zap.String("userID", userID.String()),
			zap.String("contentType", contentType),
		)
		return nil, models.ErrInvalidFileType
	}

	fileURL, _, size, err := u.store.Store(userID, filename, content)
	if err != nil {
		return nil, err
	}

	file := &models.UserFile{
		UserID:   userID,
		FilePath: fileURL,
		FileType: models.FileTypeImage,
		Folder:   models.FolderLibrary,
		FileSize: size,
	}
	if err := u.gallery.AddFile(ctx, file); err != nil {
		return nil, err
	}

	u.logger.Info("Image uploaded to library",
		zap.String("userID", userID.String()),
		zap.Int64("size", size),
	)
	return file, nil
}
