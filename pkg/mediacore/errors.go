package mediacore

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrAccessDenied indicates the principal may not perform the operation.
	// For existence-sensitive resources callers surface it exactly like a
	// not-found so hidden resources do not leak.
	ErrAccessDenied = errors.New("access denied")

	// ErrFileNotFound indicates an uploaded file record was not found.
	ErrFileNotFound = errors.New("file not found")

	// ErrTempFileNotFound indicates a temporary file record was not found.
	// During finalization this is a skip, not a batch failure.
	ErrTempFileNotFound = errors.New("temporary file not found")

	// ErrResourceNotFound indicates the owning resource was not found.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrListingNotFound indicates the listing lookup collaborator found
	// nothing. Authorization treats it as a denial.
	ErrListingNotFound = errors.New("listing not found")

	// ErrConflict indicates an optimistic-concurrency conflict: another
	// writer modified the record since it was read. Retried internally,
	// bounded, then fatal.
	ErrConflict = errors.New("concurrent modification conflict")
)

// RejectReason is the machine-readable cause of a validation rejection.
type RejectReason string

const (
	RejectEmptyFile            RejectReason = "empty_file"
	RejectBlankName            RejectReason = "blank_name"
	RejectTooLarge             RejectReason = "too_large"
	RejectNoExtension          RejectReason = "no_extension"
	RejectExtensionNotAllowed  RejectReason = "extension_not_allowed"
	RejectBlacklistedExtension RejectReason = "blacklisted_extension"
	RejectDoubleExtension      RejectReason = "double_extension"
	RejectContentTypeNotAllowed RejectReason = "content_type_not_allowed"
	RejectContentTypeMismatch  RejectReason = "content_type_mismatch"
	RejectSignatureMismatch    RejectReason = "signature_mismatch"
	RejectExecutableSignature  RejectReason = "executable_signature"
	RejectChecksumMismatch     RejectReason = "checksum_mismatch"
	RejectBadDimensions        RejectReason = "bad_dimensions"
	RejectMalware              RejectReason = "malware_detected"
	RejectBadFolder            RejectReason = "bad_folder"
	RejectSuspiciousURL        RejectReason = "suspicious_url"
	RejectTooManyFiles         RejectReason = "too_many_files"
)

// ValidationError reports why a file was rejected. The reason is always
// specific; rejections are never silently coerced into something else.
type ValidationError struct {
	Reason  RejectReason
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation rejected (%s): %s", e.Reason, e.Message)
}

func reject(reason RejectReason, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is a validation rejection and, if
// so, returns it.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// StorageError wraps a failed object-store operation.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
