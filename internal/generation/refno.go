package generation

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
)

// nonAlphanumeric collapses everything outside [A-Za-z0-9] when deriving a
// product code from a URL segment.
var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]+`)

// NewRefNo builds the reference number sent to the generation backend.
// С кодом товара: {productCode}_{5 случайных цифр}.
// Без кода: Ecom_Studio_video_{10 случайных цифр}.
func NewRefNo(productCode string) string {
	productCode = sanitizeProductCode(productCode)
	if productCode != "" {
		return fmt.Sprintf("%s_%05d", productCode, rand.Intn(100000))
	}
	return fmt.Sprintf("Ecom_Studio_video_%010d", rand.Int63n(10000000000))
}

// sanitizeProductCode strips separators so the code is safe inside a refNo.
func sanitizeProductCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	return strings.Trim(nonAlphanumeric.ReplaceAllString(code, "_"), "_")
}
