package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"

	shared "github.com/fitglue/ledger/pkg"
)

// StorageAdapter archives run reports in Google Cloud Storage
type StorageAdapter struct {
	Client *storage.Client
}

var _ shared.BlobStore = (*StorageAdapter)(nil)

// Write stores data as a JSON object, replacing any previous report of the
// same execution.
func (a *StorageAdapter) Write(ctx context.Context, bucketName, objectName string, data []byte) error {
	wc := a.Client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = "application/json"
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("write %s: %w", objectName, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", objectName, err)
	}
	return nil
}
