package models

import (
	"time"

	"github.com/google/uuid"
)

// File types stored in user_files.
const (
	FileTypeImage = "image"
	FileTypeVideo = "video"
)

// Folders grouping user files in the galleries.
const (
	FolderLibrary   = "library"
	FolderGenerated = "generated"
)

// Sort orders supported by the gallery listings.
const (
	SortNewest = "newest"
	SortOldest = "oldest"
	SortName   = "name"
	SortSize   = "size"
)

// GalleryPageSize - размер страницы для "load more" в галереях.
const GalleryPageSize = 18

// UserFile - запись о загруженном или сгенерированном ассете пользователя.
type UserFile struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	FilePath   string    `json:"file_path"`
	FileType   string    `json:"file_type"`
	Folder     string    `json:"folder"`
	IsFavorite bool      `json:"is_favorite"`
	IsViewed   bool      `json:"is_viewed"`
	FileSize   int64     `json:"file_size"`
	CreatedAt  time.Time `json:"created_at"`
}

// FileFilter describes a gallery listing request.
type FileFilter struct {
	Folder        string
	FileType      string
	FavoritesOnly bool
	Sort          string
	Page          int // 1-based; page size is GalleryPageSize
}
