package mediacore

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Finalize promotes temporary files to their permanent location. Each item is
// handled independently; a failed or missing item never aborts its siblings.
// The store has no atomic rename, so promotion is copy, persist, then delete
// of the source. A crash between copy and delete leaves a stray temp object
// for the TTL sweep, never a dangling permanent record.
func (s *service) Finalize(ctx context.Context, req FinalizeRequest) (*FinalizeResult, error) {
	result := &FinalizeResult{}
	for _, item := range req.Items {
		promoted, err := s.finalizeOne(ctx, req.Principal, item)
		if err != nil {
			result.Failed = append(result.Failed, BatchFailure{
				FileName: item.TempFileID.String(),
				Reason:   finalizeFailureReason(err),
			})
			continue
		}
		if promoted != nil {
			result.Promoted = append(result.Promoted, promoted)
		}
	}
	return result, nil
}

// finalizeOne returns (nil, nil) for an already-finalized or swept item, so
// retried batches are idempotent.
func (s *service) finalizeOne(ctx context.Context, principal Principal, item FinalizeItem) (*UploadedFile, error) {
	temp, err := s.repo.GetTemporaryFile(ctx, item.TempFileID)
	if err != nil {
		if errors.Is(err, ErrTempFileNotFound) {
			s.logger.Info("finalize skipping missing temp file", "temp_file_id", item.TempFileID)
			return nil, nil
		}
		return nil, err
	}

	// Only the original uploader (or an admin) may promote a temp file,
	// regardless of what the target folder would allow.
	if temp.UploadedBy != principal.ID && !principal.IsAdmin() {
		return nil, ErrAccessDenied
	}

	if err := s.engine.ValidateFolderName(item.TargetFolder); err != nil {
		return nil, err
	}
	if err := s.guard.CheckWrite(ctx, principal, item.TargetFolder); err != nil {
		return nil, err
	}

	// Reduced re-validation. The content was fully validated at completion
	// time; here only the name and the declared size are re-checked against
	// the finalize ceiling.
	ext := fileExtension(temp.FileName)
	if err := s.engine.checkName(temp.FileName, ext); err != nil {
		return nil, err
	}
	if temp.Size > s.policy.FinalizeMaxBytes {
		return nil, reject(RejectTooLarge, "file size %d exceeds finalize limit of %d bytes",
			temp.Size, s.policy.FinalizeMaxBytes)
	}

	destFolder := s.routeFinalFolder(item.TargetFolder, ext)
	destKey := s.keys.Generate(destFolder, temp.UploadedBy, temp.FileName)

	meta, err := s.blob.Copy(ctx, temp.ObjectKey, destKey)
	if err != nil {
		return nil, &StorageError{Op: "copy", Key: temp.ObjectKey, Err: err}
	}

	claim := ParseFolder(item.TargetFolder)
	ownerType, ownerID := deriveOwner(claim, principal)
	record := &UploadedFile{
		ID:               uuid.New(),
		FileURL:          s.buildFileURL(destKey),
		ObjectKey:        destKey,
		FileName:         temp.FileName,
		OriginalFileName: sanitizeDisplayName(temp.OriginalFileName),
		ContentType:      temp.ContentType,
		Size:             temp.Size,
		UploadedBy:       temp.UploadedBy,
		OwnerType:        ownerType,
		OwnerID:          ownerID,
		Checksum:         temp.Checksum,
		AccessType:       accessTypeFor(ownerType),
		StoreVersionID:   meta.VersionID,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.repo.CreateUploadedFile(ctx, record); err != nil {
		if derr := s.blob.Delete(ctx, destKey); derr != nil {
			s.logger.Error("orphaned object after failed finalize insert",
				"key", destKey, "error", derr)
		}
		return nil, err
	}

	// The permanent record exists; everything below is cleanup and must not
	// fail the item.
	if err := s.repo.DeleteTemporaryFile(ctx, temp.ID); err != nil {
		s.logger.Warn("could not delete temp file record, sweep will retry",
			"temp_file_id", temp.ID, "error", err)
	}
	if err := s.blob.DeleteVersion(ctx, temp.ObjectKey, temp.StoreVersionID); err != nil {
		s.logger.Warn("could not delete temp object, sweep will retry",
			"key", temp.ObjectKey, "error", err)
	}

	s.logger.Info("temp file promoted",
		"temp_file_id", temp.ID, "file_id", record.ID, "key", destKey)
	return record, nil
}

// routeFinalFolder appends the images/videos subfolder for bare listing
// folders so a listing's media lands sorted by kind. Folders that already
// name a subfolder, and non-listing folders, pass through unchanged.
func (s *service) routeFinalFolder(folder, ext string) string {
	claim := ParseFolder(folder)
	if !claim.Resolved || claim.OwnerType != OwnerTypeCarImage {
		return folder
	}
	if len(strings.Split(strings.Trim(folder, "/"), "/")) != 2 {
		return folder
	}
	if s.policy.IsVideoExtension(ext) {
		return folder + "/videos"
	}
	return folder + "/images"
}

func finalizeFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	default:
		if ve, ok := IsValidationError(err); ok {
			return string(ve.Reason)
		}
		return "finalize_failed"
	}
}
