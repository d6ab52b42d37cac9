package documents

import "strings"

// binaryContentTypePrefixes enumerates the exact content-type prefixes
// the orchestrator routes to the binary path rather than the HTML pipeline.
var binaryContentTypePrefixes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument",
	"application/zip",
	"application/octet-stream",
	"image/",
	"audio/",
	"video/",
}

// IsBinaryContentType reports whether contentType should be dispatched to
// the documents/ writer instead of the HTML extraction pipeline.
func IsBinaryContentType(contentType string) bool {
	mediaType := contentType
	if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))
	for _, prefix := range binaryContentTypePrefixes {
		if strings.HasPrefix(mediaType, prefix) {
			return true
		}
	}
	return false
}

// binaryExtensions enumerates the file extensions the
// resource-parameter rule treats as binary when found as the value of a
// `?resource=` query parameter.
var binaryExtensions = []string{
	".pdf", ".doc", ".docx", ".zip", ".png", ".jpg", ".jpeg", ".gif",
	".svg", ".webp", ".mp3", ".wav", ".mp4", ".mov", ".avi",
}

// HasBinaryExtension reports whether name ends in one of the extensions
// resource-parameter rule recognizes as binary.
func HasBinaryExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range binaryExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
