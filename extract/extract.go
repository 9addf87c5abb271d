package extract

import (
	"context"

	"schola/types"
)

// PageMapper extracts per-page text from a PDF document.
type PageMapper interface {
	PageMap(ctx context.Context, pdf []byte) (types.PageMap, error)
}

// Converter turns an office document into a PDF.
type Converter interface {
	ToPDF(ctx context.Context, data []byte, ext string) ([]byte, error)
}
