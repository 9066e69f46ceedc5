package scanning

import (
	"context"
	"errors"

	"github.com/zombor/invoice-scanner/internal/document"
)

// ErrNoData is returned when the model answers without any usable content
var ErrNoData = errors.New("no data returned from model")

// Extractor turns a document image into a draft record of one variant
type Extractor interface {
	// Extract analyzes an image or PDF and returns an uncommitted record
	Extract(ctx context.Context, imageData []byte, contentType string) (document.Record, error)
	// Close releases the underlying client
	Close() error
}
