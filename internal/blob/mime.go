package blob

import "path/filepath"

// DefaultMimeType is used for every extension outside the table.
const DefaultMimeType = "application/octet-stream"

var mimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".mp4":  "video/mp4",
	".webm": "video/webm",
}

// MimeTypeFor maps a file name to the MIME type clients use to render it.
// Matching is on the exact extension, so "photo.PNG" is not an image.
func MimeTypeFor(name string) string {
	if mt, ok := mimeTypes[filepath.Ext(name)]; ok {
		return mt
	}
	return DefaultMimeType
}
