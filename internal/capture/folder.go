package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const processedDir = "processed"

// HotFolder is a device backed by a directory a scanner or phone drops
// images into. Each capture takes the newest supported file and moves it
// into a processed/ subdirectory so it is not picked up twice.
type HotFolder struct {
	dir string
}

// NewHotFolder creates a HotFolder watching dir
func NewHotFolder(dir string) *HotFolder {
	return &HotFolder{dir: dir}
}

// Open checks that the directory is usable
func (h *HotFolder) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.dir == "" {
		return nil, errors.New("no capture directory configured")
	}
	info, err := os.Stat(h.dir)
	if err != nil {
		return nil, fmt.Errorf("opening capture directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", h.dir)
	}
	return &folderStream{dir: h.dir}, nil
}

type folderStream struct {
	dir    string
	closed bool
}

func (s *folderStream) Capture(ctx context.Context) (Image, error) {
	if s.closed {
		return Image{}, errors.New("stream is closed")
	}
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}

	path, err := s.newest()
	if err != nil {
		return Image{}, err
	}

	img, err := ReadFile(path)
	if err != nil {
		return Image{}, err
	}

	if err := os.MkdirAll(filepath.Join(s.dir, processedDir), 0755); err != nil {
		return Image{}, fmt.Errorf("creating processed directory: %w", err)
	}
	if err := os.Rename(path, filepath.Join(s.dir, processedDir, img.Name)); err != nil {
		return Image{}, fmt.Errorf("moving captured file: %w", err)
	}

	slog.Info("Captured image from folder", "file", img.Name, "size", len(img.Data))
	return img, nil
}

func (s *folderStream) newest() (string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", fmt.Errorf("reading capture directory: %w", err)
	}

	var (
		newest   string
		newestAt time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || !Supported(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestAt) {
			newest = entry.Name()
			newestAt = info.ModTime()
		}
	}

	if newest == "" {
		return "", errors.New("no image waiting in capture directory")
	}
	return filepath.Join(s.dir, newest), nil
}

func (s *folderStream) Close() error {
	s.closed = true
	return nil
}
