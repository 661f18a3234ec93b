// Package simplemedia provides a media ingestion library: uploads are
// validated against a folder taxonomy and a type/size policy, optionally
// re-encoded into a normalized image format, and written atomically under a
// storage root. Stored objects are addressed by a public path of the form
// "/<mount>/<folder>/<id>.<ext>" which can later be used to delete them.
//
// The Service interface is the entry point. Its collaborators (path
// resolution, validation, transcoding, blob storage, statistics) live in
// subpackages and are injected with functional options; pkg/simplemedia/config
// wires a complete Service from environment configuration.
//
// Storage Model
//
// The local filesystem is authoritative. There is no index: statistics are
// computed by listing folders, and an object exists exactly when its file
// exists. An optional replica BlobStore receives a best-effort copy of every
// write and delete.
package simplemedia
