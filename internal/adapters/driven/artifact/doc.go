// Package artifact builds the snapshot artifact store selected by settings.
//
// Backends live in subpackages: local files, Amazon S3 and MinIO. Any of
// them can be wrapped by the compress decorator.
package artifact
