// Package sources resolves the candidate product images a batch unit can
// pick from: fetched from a product page URL, uploaded directly, reused from
// the user's library, or listed in an imported spreadsheet.
package sources

// ImageCandidate is one selectable product image.
type ImageCandidate struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Candidate source kinds.
const (
	SourceProductURL = "product_url"
	SourceUpload     = "upload"
	SourceLibrary    = "library"
	SourceExcel      = "excel"
)
