package gcp

import (
	"context"
	// gcp uses MD5 hashes
	/* #nosec G501 */
	"crypto/md5"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/osbuild/cloud-image-import/internal/common"
)

// Upload uploads an OS image to specified Cloud Storage bucket and object.
// The bucket must exist. MD5 sum of the image file and uploaded object is
// compared after the upload to verify the integrity of the uploaded image.
//
// Uses:
//   - Storage API
func (g *GCP) Upload(ctx context.Context, filename, bucket, object string) error {
	storageClient, err := storage.NewClient(ctx, option.WithCredentials(g.creds))
	if err != nil {
		return fmt.Errorf("failed to get Storage client: %v", err)
	}
	defer storageClient.Close()

	imageFile, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("cannot open the image: %v", err)
	}
	defer imageFile.Close()

	// gcp uses MD5 hashes
	/* #nosec G401 */
	imageFileHash := md5.New()
	if _, err := io.Copy(imageFileHash, imageFile); err != nil {
		return fmt.Errorf("cannot create md5 of the image: %v", err)
	}
	if _, err := imageFile.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("cannot seek the image: %v", err)
	}

	common.Logger(ctx).Infof("[GCP] 🚀 Uploading image to gs://%s/%s", bucket, object)
	// The Bucket MUST exist and be of a STANDARD storage class
	wc := storageClient.Bucket(bucket).Object(object).NewWriter(ctx)

	// Uploaded data is rejected if its MD5 hash does not match the set value.
	wc.MD5 = imageFileHash.Sum(nil)

	if _, err = io.Copy(wc, imageFile); err != nil {
		_ = wc.Close()
		return apiError("uploading the image failed", err)
	}

	// The object will not be available until Close has been called.
	if err := wc.Close(); err != nil {
		return apiError("uploading the image failed", err)
	}
	return nil
}

// DeleteObject deletes the given object from a bucket.
//
// Uses:
//   - Storage API
func (g *GCP) DeleteObject(ctx context.Context, bucket, object string) error {
	storageClient, err := storage.NewClient(ctx, option.WithCredentials(g.creds))
	if err != nil {
		return fmt.Errorf("failed to get Storage client: %v", err)
	}
	defer storageClient.Close()

	common.Logger(ctx).Infof("[GCP] 🧹 Deleting gs://%s/%s", bucket, object)
	if err = storageClient.Bucket(bucket).Object(object).Delete(ctx); err != nil {
		return apiError("failed to delete image file object", err)
	}
	return nil
}
