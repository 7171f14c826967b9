package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrStoreFailed - ошибка при сохранении файла.
var ErrStoreFailed = errors.New("file store failed")

// ObjectStorage persists uploaded images and exposes them by public URL.
type ObjectStorage interface {
	// Store writes the content under the user's directory and returns the
	// public URL, the stored filename and the written size.
	Store(userID uuid.UUID, originalName string, content io.Reader) (url, filename string, size int64, err error)
}

type localStorage struct {
	baseDir   string
	publicURL string
	logger    *zap.Logger
}

// NewLocalStorage creates a disk-backed ObjectStorage rooted at baseDir.
func NewLocalStorage(baseDir, publicURL string, logger *zap.Logger) (ObjectStorage, error) {
	if baseDir == "" {
		return nil, errors.New("upload dir (UPLOAD_DIR) is not configured")
	}
	if publicURL == "" {
		return nil, errors.New("public base URL (PUBLIC_BASE_URL) is not configured")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &localStorage{
		baseDir:   baseDir,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger.Named("LocalStorage"),
	}, nil
}

// Store writes the uploaded content to disk.
// Имя файла генерируется заново, оригинальное имя сохраняется только как суффикс расширения.
func (s *localStorage) Store(userID uuid.UUID, originalName string, content io.Reader) (string, string, int64, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".jpg"
	}
	filename := fmt.Sprintf("%s%s", uuid.NewString(), ext)

	userDir := filepath.Join(s.baseDir, userID.String())
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		s.logger.Error("Failed to create user upload dir", zap.Error(err), zap.String("dir", userDir))
		return "", "", 0, fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}

	filePath := filepath.Join(userDir, filename)
	out, err := os.Create(filePath)
	if err != nil {
		s.logger.Error("Failed to create file", zap.Error(err), zap.String("path", filePath))
		return "", "", 0, fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}
	defer out.Close()

	size, err := io.Copy(out, content)
	if err != nil {
		// Убираем недописанный файл, чтобы не оставлять мусор
		os.Remove(filePath)
		s.logger.Error("Failed to write file", zap.Error(err), zap.String("path", filePath))
		return "", "", 0, fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}

	url := fmt.Sprintf("%s/%s/%s", s.publicURL, userID.String(), filename)
	s.logger.Info("File stored", zap.String("path", filePath), zap.Int64("size", size), zap.String("url", url))
	return url, filename, size, nil
}
