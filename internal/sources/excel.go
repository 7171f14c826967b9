package sources

import (
	"fmt"
	"io"
	"strings"

	"ecom-studio/internal/models"

	"github.com/xuri/excelize/v2"
)

// Limits for spreadsheet imports.
const (
	// MaxImportRows - сканируются только первые 50 строк колонки A.
	MaxImportRows = 50
	// MaxImportURLs caps the number of product URLs taken from one workbook.
	MaxImportURLs = 50
)

// ParseProductURLs extracts product URLs from the first sheet of an xlsx
// workbook. Only column A of rows 1 through MaxImportRows is scanned, and a
// cell counts as a URL when it contains "http" or "www". Returns
// models.ErrEmptySheet when no usable URLs are found.
func ParseProductURLs(r io.Reader) ([]string, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidFileType, err)
	}
	defer wb.Close()

	sheet := wb.GetSheetName(0)
	if sheet == "" {
		return nil, models.ErrEmptySheet
	}

	urls := make([]string, 0, MaxImportURLs)
	for row := 1; row <= MaxImportRows; row++ {
		cell, err := wb.GetCellValue(sheet, fmt.Sprintf("A%d", row))
		if err != nil {
			return nil, fmt.Errorf("failed to read cell A%d: %w", row, err)
		}
		value := strings.TrimSpace(cell)
		if value == "" {
			continue
		}
		if !strings.Contains(value, "http") && !strings.Contains(value, "www") {
			continue
		}
		urls = append(urls, value)
		if len(urls) == MaxImportURLs {
			break
		}
	}

	if len(urls) == 0 {
		return nil, models.ErrEmptySheet
	}
	return urls, nil
}
