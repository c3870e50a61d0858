package constants

import "strings"

// DefaultArtifactExt is used when the resolved output URL carries no extension.
const DefaultArtifactExt = "jpg"

// DefaultContentType is stored when the download response has no Content-Type.
const DefaultContentType = "application/octet-stream"

// AllowedUploadExtensions holds the accepted extensions for uploaded originals.
var AllowedUploadExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
