// Package mediacore provides the embeddable media core of a marketplace:
// file validation, folder-based authorization, proxied and direct-to-store
// uploads, finalization of temporary uploads, asynchronous media processing,
// and temp-file cleanup.
//
// It exposes a single Service interface constructed with functional options.
// Persistence and object storage are pluggable through the Repository and
// BlobStore interfaces; memory and Postgres repositories and memory and S3
// blob stores are provided under subpackages. The host application supplies
// the resource-side collaborators (ListingDirectory, ChatAuthorizer,
// MediaResourceStore) and owns the transport layer.
//
// Upload Paths
//
// A proxied upload passes the bytes through Validate and lands directly at
// its permanent key. A direct upload is two-phase: InitDirectUpload issues a
// presigned PUT credential for a key under the temp/ namespace, and
// CompleteDirectUpload registers the object as a TemporaryFile. Temporary
// files become visible only through Finalize, which copies them to their
// permanent location; anything left behind is reaped by the TTL sweep.
package mediacore
