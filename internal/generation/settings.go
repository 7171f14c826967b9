package generation

import (
	"fmt"

	"ecom-studio/internal/models"
)

// Allowed video durations in seconds (kept as strings on the wire).
const (
	DurationShort = "5"
	DurationLong  = "10"
)

// ImageSettings are the per-image generation parameters.
type ImageSettings struct {
	Duration       string  `json:"duration"`
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negativePrompt"`
	Creativity     float64 `json:"creativity"`
}

// DefaultImageSettings returns the settings applied to a freshly selected image.
func DefaultImageSettings() ImageSettings {
	return ImageSettings{
		Duration:       DurationShort,
		Prompt:         "",
		NegativePrompt: "",
		Creativity:     0.5,
	}
}

// Validate checks the settings against the allowed ranges.
func (s ImageSettings) Validate() error {
	if s.Duration != DurationShort && s.Duration != DurationLong {
		return fmt.Errorf("%w: duration must be %q or %q", models.ErrInvalidSettings, DurationShort, DurationLong)
	}
	if s.Creativity < 0 || s.Creativity > 1 {
		return fmt.Errorf("%w: creativity must be between 0 and 1", models.ErrInvalidSettings)
	}
	return nil
}
