package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ecom-studio/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFetchImages(t *testing.T) {
	var gotBody fetchImagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(fetchImagesResponse{Images: []ImageCandidate{
			{URL: "https://cdn/img1.jpg", Thumbnail: "https://cdn/t1.jpg"},
			{URL: ""},
			{URL: "https://cdn/img2.jpg"},
		}})
	}))
	defer srv.Close()

	f := NewProductURLFetcher(srv.URL, 5*time.Second, zap.NewNop())
	got, err := f.FetchImages(context.Background(), "https://shop.example/p/42")
	require.NoError(t, err)

	// Тело запроса содержит productUrl, пустые кандидаты отброшены
	assert.Equal(t, "https://shop.example/p/42", gotBody.ProductURL)
	require.Len(t, got, 2)
	assert.Equal(t, "https://cdn/img1.jpg", got[0].URL)
}

func TestFetchImagesNormalizesSchemelessURL(t *testing.T) {
	var gotBody fetchImagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(fetchImagesResponse{Images: []ImageCandidate{
			{URL: "https://cdn/img.jpg"},
		}})
	}))
	defer srv.Close()

	f := NewProductURLFetcher(srv.URL, 5*time.Second, zap.NewNop())

	// Адреса вида www.… приходят из импорта таблиц без схемы
	_, err := f.FetchImages(context.Background(), "www.shop.example/p/3")
	require.NoError(t, err)
	assert.Equal(t, "https://www.shop.example/p/3", gotBody.ProductURL)
}

func TestFetchImagesEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(fetchImagesResponse{})
	}))
	defer srv.Close()

	f := NewProductURLFetcher(srv.URL, 5*time.Second, zap.NewNop())
	_, err := f.FetchImages(context.Background(), "https://shop.example/p/42")
	assert.ErrorIs(t, err, models.ErrNoImagesFound)
}

func TestFetchImagesBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "scrape failed", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewProductURLFetcher(srv.URL, 5*time.Second, zap.NewNop())
	_, err := f.FetchImages(context.Background(), "https://shop.example/p/42")
	assert.ErrorIs(t, err, models.ErrNoImagesFound)
}

func TestFetchImagesRejectsBadInput(t *testing.T) {
	f := NewProductURLFetcher("http://unused", 5*time.Second, zap.NewNop())

	_, err := f.FetchImages(context.Background(), "   ")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = f.FetchImages(context.Background(), "ftp://shop.example/p/1")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
