package mediacore

import "github.com/google/uuid"

// FilePayload is one file's bytes plus the metadata the client declared for
// it. Checksum, when set, is a hex SHA-256 the content must hash to.
type FilePayload struct {
	Name        string
	ContentType string
	Data        []byte
	Checksum    string
}

// UploadFileRequest is a proxied upload of a single file.
type UploadFileRequest struct {
	Principal Principal
	Folder    string
	File      FilePayload
}

// UploadFilesRequest is a proxied upload of a batch of files into one folder.
type UploadFilesRequest struct {
	Principal Principal
	Folder    string
	Files     []FilePayload
}

// UploadResourceMediaRequest uploads a media batch for an owning resource and
// kicks off asynchronous processing of the resulting URLs.
type UploadResourceMediaRequest struct {
	Principal  Principal
	ResourceID uuid.UUID
	Files      []FilePayload
}

// InitDirectUploadRequest asks for a short-lived credential letting the
// client PUT one object straight to the store.
type InitDirectUploadRequest struct {
	Principal   Principal
	Folder      string
	FileName    string
	ContentType string
	Size        int64
	Checksum    string
}

// CompleteDirectUploadRequest reports that a direct upload finished and asks
// for the object to be registered as a temporary file.
type CompleteDirectUploadRequest struct {
	Principal Principal
	ObjectKey string
}

// FinalizeItem names one temporary file to promote and the folder it should
// land in.
type FinalizeItem struct {
	TempFileID   uuid.UUID
	TargetFolder string
}

// FinalizeRequest promotes a batch of temporary files to permanent storage.
// Items fail independently; one bad item never aborts its siblings.
type FinalizeRequest struct {
	Principal Principal
	Items     []FinalizeItem
}

// FinalizeResult reports the outcome of one finalize batch.
type FinalizeResult struct {
	Promoted []*UploadedFile `json:"promoted"`
	Failed   []BatchFailure  `json:"failed,omitempty"`
}
