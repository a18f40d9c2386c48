package domain

import (
	"context"
	"time"
)

// BlobWriter uploads a single object to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, key string, contentType string, data []byte) error
}

// Archiver moves aged fee decisions out of the primary store into blob
// storage. Archive uploads only; deletion from the store is a separate,
// explicit step once the archive has been verified.
type Archiver interface {
	ArchiveDecisions(ctx context.Context, before time.Time) (int64, error)
}
