// Package assetversion manages the asset and model-version lifecycle for
// monuments: upload of new revisions, activation (rollback), guarded
// deletion, and cascade removal of a monument together with its dependent
// records and blobs.
//
// It exposes a single Service interface over two pluggable collaborators: a
// BlobStore for the bytes (memory, filesystem, S3 implementations live under
// storage/) and a Repository for version metadata (memory and Postgres
// implementations under repo/).
//
// # Invariants
//
// For any monument, at most one version record is active at a time; zero is
// allowed mid-transition or before the first upload. Activation always
// deactivates the previous record before activating the new one, so failures
// bias toward zero active records, never two. Storage keys are never reused
// across records, even after deletion. The active version cannot be deleted;
// a replacement must be activated first.
//
// Version-mutating operations are serialized per monument inside the
// service. Cascade deletion is best-effort on blobs and returns a
// DeletionReport instead of failing on storage errors.
package assetversion
