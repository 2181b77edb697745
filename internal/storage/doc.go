// Package storage archives finished session recordings to an
// S3-compatible object store.
package storage
