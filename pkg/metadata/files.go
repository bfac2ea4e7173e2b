package metadata

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageExtensions lists the recognized extensions, lower case and without dot
var ImageExtensions = []string{"jpg", "jpeg", "png", "gif", "bmp", "webp", "tiff", "tif"}

// IsImageFile checks the extension case-insensitively
func IsImageFile(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return ext != "" && slices.Contains(ImageExtensions, ext)
}

// FindImages walks root recursively in lexical order and returns every image
// file. Directories listed in skip are not entered. Unreadable entries are
// logged and skipped.
func FindImages(ctx context.Context, root string, logger zerolog.Logger, skip ...string) ([]string, error) {
	skipped := make(map[string]bool, len(skip))
	for _, dir := range skip {
		if abs, err := filepath.Abs(dir); err == nil {
			skipped[abs] = true
		}
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable entry")
			return nil
		}
		if d.IsDir() {
			if path != root && len(skipped) > 0 {
				if abs, err := filepath.Abs(path); err == nil && skipped[abs] {
					logger.Debug().Str("path", path).Msg("skipping directory")
					return filepath.SkipDir
				}
			}
			return nil
		}
		if IsImageFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return paths, nil
}

// Dimensions decodes only the image header and returns format, width and height
func Dimensions(path string) (string, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, 0, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return "", 0, 0, fmt.Errorf("failed to decode config for %s: %w", path, err)
	}
	return format, cfg.Width, cfg.Height, nil
}
