package mediacore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// fileSignature is one acceptable leading-byte pattern for an extension.
type fileSignature struct {
	offset int
	sig    []byte
}

// Magic numbers per extension. An extension present here must match at
// least one signature.
var fileSignatures = map[string][]fileSignature{
	"jpg":  {{0, []byte{0xFF, 0xD8, 0xFF}}},
	"jpeg": {{0, []byte{0xFF, 0xD8, 0xFF}}},
	"png":  {{0, []byte{0x89, 0x50, 0x4E, 0x47}}},
	"gif":  {{0, []byte{0x47, 0x49, 0x46, 0x38}}},
	"webp": {{8, []byte("WEBP")}},
	"pdf":  {{0, []byte{0x25, 0x50, 0x44, 0x46}}},
	"mp4":  {{4, []byte("ftyp")}},
	"mov":  {{4, []byte("ftyp")}},
	"webm": {{0, []byte{0x1A, 0x45, 0xDF, 0xA3}}},
	"avi":  {{8, []byte("AVI ")}},
}

var (
	executableMZ  = []byte{0x4D, 0x5A}
	executableELF = []byte{0x7F, 0x45, 0x4C, 0x46}
)

// Double extensions hiding a script behind a benign suffix (photo.php.jpg).
var doubleExtensionRe = regexp.MustCompile(`(?i)\.(php|exe|sh|bat|jsp)\.`)

var folderNameRe = regexp.MustCompile(`^[a-zA-Z0-9/_\-]+$`)

// Engine runs the multi-stage content-safety pipeline against an in-memory
// buffer. All checks read the same bytes so declared/sniffed/signature/
// dimension decisions stay consistent. Validation never mutates store or
// database state.
type Engine struct {
	policy  ValidationPolicy
	scanner MalwareScanner
	logger  *slog.Logger
}

// NewEngine builds a validation engine. scanner may be nil to skip the
// external malware scan.
func NewEngine(policy ValidationPolicy, scanner MalwareScanner, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{policy: policy, scanner: scanner, logger: logger}
}

// Validate runs the ordered, short-circuiting check pipeline. A rejection
// is returned as *ValidationError with a specific reason; any other error
// is an infrastructure failure from the scanner.
func (e *Engine) Validate(ctx context.Context, data []byte, declaredName, declaredContentType string, declaredSize int64, expectedChecksum string) error {
	if len(data) == 0 {
		return reject(RejectEmptyFile, "file is empty")
	}
	if strings.TrimSpace(declaredName) == "" {
		return reject(RejectBlankName, "file name is blank")
	}

	size := int64(len(data))
	if declaredSize > size {
		size = declaredSize
	}
	ext := fileExtension(declaredName)
	if ceiling := e.policy.SizeCeiling(ext); size > ceiling {
		return reject(RejectTooLarge, "file size %d exceeds limit of %d bytes", size, ceiling)
	}

	if err := e.checkName(declaredName, ext); err != nil {
		return err
	}

	// Native executables are rejected no matter what the name or declared
	// type claims, before any type reasoning happens.
	if bytes.HasPrefix(data, executableMZ) {
		return reject(RejectExecutableSignature, "executable signature (MZ) detected")
	}
	if bytes.HasPrefix(data, executableELF) {
		return reject(RejectExecutableSignature, "executable signature (ELF) detected")
	}

	sniffed := sniffContentType(data)
	if err := e.checkContentType(declaredName, declaredContentType, sniffed, ext); err != nil {
		return err
	}

	if err := checkMagicNumbers(data, ext); err != nil {
		return err
	}

	if expectedChecksum != "" {
		sum := sha256.Sum256(data)
		if !strings.EqualFold(hex.EncodeToString(sum[:]), expectedChecksum) {
			return reject(RejectChecksumMismatch, "checksum does not match uploaded content")
		}
	}

	if strings.HasPrefix(sniffed, "image/") {
		if err := e.checkImageDimensions(data, declaredName); err != nil {
			return err
		}
	}

	if e.scanner != nil {
		if err := e.scanner.Scan(ctx, data); err != nil {
			if _, ok := IsValidationError(err); ok {
				return err
			}
			return reject(RejectMalware, "malware scan failed: %v", err)
		}
	}

	return nil
}

// ValidateMetadata is the reduced, byte-less pass used where the content is
// not at hand: direct-upload init and the finalize re-validation.
func (e *Engine) ValidateMetadata(name string, size int64, contentType string) error {
	if strings.TrimSpace(name) == "" {
		return reject(RejectBlankName, "file name is blank")
	}
	ext := fileExtension(name)
	if err := e.checkName(name, ext); err != nil {
		return err
	}
	if ceiling := e.policy.SizeCeiling(ext); size > ceiling {
		return reject(RejectTooLarge, "file size %d exceeds limit of %d bytes", size, ceiling)
	}
	if contentType != "" {
		if e.policy.ContentTypeBlacklisted(contentType) {
			return reject(RejectContentTypeNotAllowed, "content type %s is not allowed", contentType)
		}
		if !e.policy.ContentTypeAllowed(contentType) {
			return reject(RejectContentTypeNotAllowed, "content type %s is not allowed", contentType)
		}
	}
	return nil
}

// ValidateFolderName rejects traversal sequences, absolute paths, and any
// character outside the folder whitelist.
func (e *Engine) ValidateFolderName(folder string) error {
	if strings.TrimSpace(folder) == "" {
		return reject(RejectBadFolder, "folder name is empty")
	}
	if strings.Contains(folder, "..") || strings.Contains(folder, "~") ||
		strings.Contains(strings.ToLower(folder), "%2e%2e") || strings.HasPrefix(folder, "/") {
		return reject(RejectBadFolder, "invalid folder name")
	}
	if !folderNameRe.MatchString(folder) {
		return reject(RejectBadFolder, "folder contains invalid characters")
	}
	return nil
}

func (e *Engine) checkName(name, ext string) error {
	if ext == "" {
		return reject(RejectNoExtension, "file has no extension")
	}
	if e.policy.ExtensionBlacklisted(ext) {
		return reject(RejectBlacklistedExtension, "file extension %q is not allowed", ext)
	}
	if doubleExtensionRe.MatchString(name) {
		return reject(RejectDoubleExtension, "double extension detected in %q", sanitizeForLog(name))
	}
	if !e.policy.ExtensionAllowed(ext) {
		return reject(RejectExtensionNotAllowed, "file extension %q is not in the whitelist", ext)
	}
	return nil
}

func (e *Engine) checkContentType(name, declared, sniffed, ext string) error {
	if declared != "" && e.policy.ContentTypeBlacklisted(declared) {
		return reject(RejectContentTypeNotAllowed, "declared content type %s is not allowed", declared)
	}

	// The sniffer cannot identify every container we accept (notably mov
	// and some avi); an octet-stream sniff is tolerated when the declared
	// type is itself allow-listed, because the magic-number check still
	// runs against the extension.
	if !e.policy.ContentTypeAllowed(sniffed) {
		if sniffed == "application/octet-stream" && declared != "" && e.policy.ContentTypeAllowed(declared) {
			e.logger.Debug("content sniff inconclusive, deferring to magic numbers",
				"file", sanitizeForLog(name), "declared", declared)
		} else {
			return reject(RejectContentTypeNotAllowed, "detected content type %s is not allowed", sniffed)
		}
	}

	if declared != "" && !contentTypesAgree(declared, sniffed) {
		return reject(RejectContentTypeMismatch,
			"declared content type %s does not match detected type %s", declared, sniffed)
	}
	return nil
}

// contentTypesAgree applies the narrow enumerated exceptions to the strict
// declared-equals-sniffed rule.
func contentTypesAgree(declared, sniffed string) bool {
	d := normalizeContentType(declared)
	s := normalizeContentType(sniffed)
	if d == s {
		return true
	}
	switch {
	// jpeg is commonly declared as image/jpg
	case (d == "image/jpg" && s == "image/jpeg") || (d == "image/jpeg" && s == "image/jpg"):
		return true
	// the mp4 container is declared inconsistently across clients
	case strings.Contains(d, "mp4") && strings.Contains(s, "mp4"):
		return true
	case d == "video/quicktime" && (s == "video/mp4" || s == "application/octet-stream"):
		return true
	// formats the sniffer cannot name: the magic-number stage decides
	case s == "application/octet-stream":
		return true
	}
	return false
}

func checkMagicNumbers(data []byte, ext string) error {
	signatures, ok := fileSignatures[ext]
	if !ok {
		return nil
	}
	for _, s := range signatures {
		end := s.offset + len(s.sig)
		if end <= len(data) && bytes.Equal(data[s.offset:end], s.sig) {
			return nil
		}
	}
	return reject(RejectSignatureMismatch, "file signature does not match extension %q", ext)
}

func (e *Engine) checkImageDimensions(data []byte, name string) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		// Formats outside the registered decoders (webp) cannot be measured
		// here; the signature check has already vouched for the container.
		e.logger.Debug("could not decode image header", "file", sanitizeForLog(name), "error", err)
		return nil
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return reject(RejectBadDimensions, "degenerate image dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Width > e.policy.MaxImageWidth || cfg.Height > e.policy.MaxImageHeight {
		return reject(RejectBadDimensions, "image dimensions %dx%d exceed maximum %dx%d",
			cfg.Width, cfg.Height, e.policy.MaxImageWidth, e.policy.MaxImageHeight)
	}
	return nil
}

func sniffContentType(data []byte) string {
	return normalizeContentType(http.DetectContentType(data))
}

func normalizeContentType(ct string) string {
	ct, _, _ = strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

func sanitizeForLog(name string) string {
	if len(name) > 128 {
		name = name[:128]
	}
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return '_'
		}
		return r
	}, name)
}
