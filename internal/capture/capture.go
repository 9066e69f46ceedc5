// Package capture acquires document images from a device or from a file the
// user picked.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnavailable is returned when a device cannot be opened or yields no
// image. Callers fall back to manual file selection.
var ErrUnavailable = errors.New("capture device unavailable")

// Image is one captured document image
type Image struct {
	Data        []byte
	ContentType string
	Name        string
}

// Device opens capture sessions
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open capture session. It must be closed on every path.
type Stream interface {
	Capture(ctx context.Context) (Image, error)
	Close() error
}

// Use opens a session on dev, runs fn with it and always closes the session
// afterwards, whether fn succeeds, fails or panics.
func Use(ctx context.Context, dev Device, fn func(Stream) error) (err error) {
	stream, err := dev.Open(ctx)
	if err != nil {
		return fmt.Errorf("opening device: %w: %w", ErrUnavailable, err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			slog.Warn("Failed to close capture stream", "error", cerr)
			if err == nil {
				err = fmt.Errorf("closing device: %w", cerr)
			}
		}
	}()

	return fn(stream)
}

// CaptureOne opens dev, takes a single image and releases the device
func CaptureOne(ctx context.Context, dev Device) (Image, error) {
	var img Image
	err := Use(ctx, dev, func(s Stream) error {
		var cerr error
		img, cerr = s.Capture(ctx)
		if cerr != nil {
			return fmt.Errorf("capturing image: %w: %w", ErrUnavailable, cerr)
		}
		return nil
	})
	if err != nil {
		return Image{}, err
	}
	return img, nil
}

// ReadFile loads a file the user selected manually
func ReadFile(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("reading file: %w", err)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("file %s is empty", path)
	}

	return Image{
		Data:        data,
		ContentType: ContentTypeFor(path),
		Name:        filepath.Base(path),
	}, nil
}

// ContentTypeFor guesses a content type from the file extension
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// Supported reports whether the file extension is one the scanner can read
func Supported(name string) bool {
	return ContentTypeFor(name) != "application/octet-stream"
}
