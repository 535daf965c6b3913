// Package capture yields raw label images. A capture is one user action:
// a file named on the command line or a new photo landing in a drop folder.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrClosed is returned by Acquire once a source has been closed.
var ErrClosed = errors.New("capture source closed")

// Capture is one image blob as it came off the source.
type Capture struct {
	Data     []byte
	Filename string
}

// Source yields captures. Acquire blocks until one is available.
type Source interface {
	Acquire(ctx context.Context) (Capture, error)
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".heic": true,
	".gif":  true,
}

// IsImage reports whether name looks like a finished image file. Hidden
// files and partial downloads are skipped.
func IsImage(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return imageExtensions[strings.ToLower(filepath.Ext(base))]
}

// FileSource reads a single image from disk on each Acquire.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Acquire(ctx context.Context) (Capture, error) {
	if err := ctx.Err(); err != nil {
		return Capture{}, err
	}
	return readCapture(s.Path)
}

func readCapture(path string) (Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Capture{}, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return Capture{}, fmt.Errorf("image %s is empty", path)
	}
	return Capture{Data: data, Filename: filepath.Base(path)}, nil
}
