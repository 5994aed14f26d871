package mediacore

import (
	"strings"
	"time"
)

// ValidationPolicy is deployment configuration for the content-safety
// pipeline: what may be uploaded, how big it may be, and what the leading
// bytes must look like. It is not per-request data.
type ValidationPolicy struct {
	AllowedImageExtensions []string
	AllowedVideoExtensions []string
	AllowedOtherExtensions []string
	AllowedContentTypes    []string

	BlacklistedExtensions   []string
	BlacklistedContentTypes []string

	// Size ceilings per category. Images use the strictest fixed cap.
	MaxImageBytes int64
	MaxVideoBytes int64
	MaxFileBytes  int64

	// Hard ceiling applied during the reduced finalize re-validation.
	FinalizeMaxBytes int64

	MaxImageWidth  int
	MaxImageHeight int

	MaxFilesPerBatch int

	TempFileTTL  time.Duration
	SignedURLTTL time.Duration
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() ValidationPolicy {
	return ValidationPolicy{
		AllowedImageExtensions: []string{"jpg", "jpeg", "png", "gif", "webp"},
		AllowedVideoExtensions: []string{"mp4", "mov", "avi", "webm"},
		AllowedOtherExtensions: []string{"pdf", "txt"},
		AllowedContentTypes: []string{
			"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp",
			"video/mp4", "video/quicktime", "video/x-msvideo", "video/webm",
			"application/pdf", "text/plain",
		},
		BlacklistedExtensions: []string{
			"exe", "bat", "sh", "cmd", "com", "msi", "jar", "vbs", "ps1",
			"php", "jsp", "asp", "aspx", "cgi", "pl", "py", "rb",
		},
		BlacklistedContentTypes: []string{
			"application/x-msdownload", "application/x-sh", "application/x-bat",
			"application/java-archive", "application/x-php", "text/x-php",
			"application/x-httpd-php", "application/javascript",
		},
		MaxImageBytes:    10 << 20,
		MaxVideoBytes:    100 << 20,
		MaxFileBytes:     20 << 20,
		FinalizeMaxBytes: 400 << 20,
		MaxImageWidth:    10000,
		MaxImageHeight:   10000,
		MaxFilesPerBatch: 10,
		TempFileTTL:      24 * time.Hour,
		SignedURLTTL:     time.Hour,
	}
}

// IsImageExtension reports whether ext (without dot) is an allowed image
// extension.
func (p ValidationPolicy) IsImageExtension(ext string) bool {
	return containsFold(p.AllowedImageExtensions, ext)
}

// IsVideoExtension reports whether ext is an allowed video extension.
func (p ValidationPolicy) IsVideoExtension(ext string) bool {
	return containsFold(p.AllowedVideoExtensions, ext)
}

// ExtensionAllowed reports whether ext appears in any whitelist.
func (p ValidationPolicy) ExtensionAllowed(ext string) bool {
	return p.IsImageExtension(ext) || p.IsVideoExtension(ext) || containsFold(p.AllowedOtherExtensions, ext)
}

// ExtensionBlacklisted reports whether ext is explicitly forbidden,
// independent of the whitelists.
func (p ValidationPolicy) ExtensionBlacklisted(ext string) bool {
	return containsFold(p.BlacklistedExtensions, ext)
}

// ContentTypeAllowed reports whether ct is in the content-type whitelist.
func (p ValidationPolicy) ContentTypeAllowed(ct string) bool {
	return containsFold(p.AllowedContentTypes, ct)
}

// ContentTypeBlacklisted reports whether ct is explicitly forbidden.
func (p ValidationPolicy) ContentTypeBlacklisted(ct string) bool {
	return containsFold(p.BlacklistedContentTypes, ct)
}

// SizeCeiling returns the byte ceiling for a file with the given extension.
func (p ValidationPolicy) SizeCeiling(ext string) int64 {
	switch {
	case p.IsImageExtension(ext):
		return p.MaxImageBytes
	case p.IsVideoExtension(ext):
		return p.MaxVideoBytes
	default:
		return p.MaxFileBytes
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// fileExtension returns the extension of name without the dot, lowercased.
// A name with no extension, or only a leading dot, yields "".
func fileExtension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}
