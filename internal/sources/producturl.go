package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ecom-studio/internal/models"

	"go.uber.org/zap"
)

// ProductURLFetcher asks the scraping backend for the images of a product page.
type ProductURLFetcher interface {
	FetchImages(ctx context.Context, productURL string) ([]ImageCandidate, error)
}

// Compile-time check to ensure productURLFetcher implements ProductURLFetcher
var _ ProductURLFetcher = (*productURLFetcher)(nil)

type productURLFetcher struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewProductURLFetcher creates a fetcher that posts product URLs to endpoint.
func NewProductURLFetcher(endpoint string, timeout time.Duration, logger *zap.Logger) ProductURLFetcher {
	return &productURLFetcher{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("ProductURLFetcher"),
	}
}

type fetchImagesRequest struct {
	ProductURL string `json:"productUrl"`
}

type fetchImagesResponse struct {
	Images []ImageCandidate `json:"images"`
}

// FetchImages posts {productUrl} to the backend and returns the candidates.
// Пустой список изображений считается ошибкой.
func (f *productURLFetcher) FetchImages(ctx context.Context, productURL string) ([]ImageCandidate, error) {
	productURL = strings.TrimSpace(productURL)
	if productURL == "" {
		return nil, models.ErrInvalidInput
	}
	// Импорт из таблиц часто приносит адреса без схемы
	if strings.HasPrefix(productURL, "www.") {
		productURL = "https://" + productURL
	}
	if parsed, err := url.Parse(productURL); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("%w: product url must be http(s)", models.ErrInvalidInput)
	}

	body, err := json.Marshal(fetchImagesRequest{ProductURL: productURL})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fetch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	f.logger.Debug("Fetching product images", zap.String("productURL", productURL))
	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.logger.Error("Fetch images request failed", zap.Error(err), zap.String("productURL", productURL))
		return nil, fmt.Errorf("fetch images request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		f.logger.Warn("Fetch images backend returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return nil, fmt.Errorf("%w: backend status %d", models.ErrNoImagesFound, resp.StatusCode)
	}

	var parsed fetchImagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode fetch images response: %w", err)
	}

	candidates := make([]ImageCandidate, 0, len(parsed.Images))
	for _, img := range parsed.Images {
		if strings.TrimSpace(img.URL) == "" {
			continue
		}
		candidates = append(candidates, img)
	}
	if len(candidates) == 0 {
		return nil, models.ErrNoImagesFound
	}

	f.logger.Info("Product images fetched",
		zap.String("productURL", productURL),
		zap.Int("count", len(candidates)),
	)
	return candidates, nil
}
