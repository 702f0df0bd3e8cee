package storage

import (
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/heic": ".heic",
	"image/avif": ".avif",
}

// ObjectName returns a unique key under folder with an extension for fileType.
func ObjectName(folder, fileType string) string {
	ext, ok := extensions[strings.ToLower(fileType)]
	if !ok {
		if exts, err := mime.ExtensionsByType(fileType); err == nil && len(exts) > 0 {
			ext = exts[0]
		} else {
			ext = ".bin"
		}
	}
	return path.Join(strings.Trim(folder, "/"), uuid.New().String()+ext)
}
