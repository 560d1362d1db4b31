package azure

import (
	"bytes"
	"context"
	// azure uses MD5 hashes
	/* #nosec G501 */
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/pageblob"
	"golang.org/x/sync/errgroup"

	"github.com/osbuild/cloud-image-import/internal/common"
)

// DefaultUploadThreads defines a tested default value for the UploadPageBlob method's threads parameter.
const DefaultUploadThreads = 16

// PageBlobMaxUploadPagesBytes defines how much bytes can we upload in a single UploadPages call.
// See https://learn.microsoft.com/en-us/rest/api/storageservices/put-page
const PageBlobMaxUploadPagesBytes = 4 * 1024 * 1024

type pageBlobClient interface {
	Create(ctx context.Context, size int64, o *pageblob.CreateOptions) (pageblob.CreateResponse, error)
	UploadPages(ctx context.Context, body io.ReadSeekCloser, contentRange blob.HTTPRange, options *pageblob.UploadPagesOptions) (pageblob.UploadPagesResponse, error)
}

type blobClient interface {
	Delete(ctx context.Context, o *blob.DeleteOptions) (blob.DeleteResponse, error)
}

// StorageClient is a client for the Azure Storage API,
// see the docs: https://docs.microsoft.com/en-us/rest/api/storageservices/
type StorageClient struct {
	newPageBlob func(blobURL string) (pageBlobClient, error)
	newBlob     func(blobURL string) (blobClient, error)
}

// NewStorageClient creates a new client for Azure Storage API that
// authenticates with cred.
func NewStorageClient(cred azcore.TokenCredential) *StorageClient {
	return &StorageClient{
		newPageBlob: func(blobURL string) (pageBlobClient, error) {
			return pageblob.NewClient(blobURL, cred, nil)
		},
		newBlob: func(blobURL string) (blobClient, error) {
			return blob.NewClient(blobURL, cred, nil)
		},
	}
}

// BlobMetadata contains information needed to store the image in a proper place.
// In case of Azure cloud storage this includes container name and blob name.
type BlobMetadata struct {
	StorageAccount string
	ContainerName  string
	BlobName       string
}

// BlobURL returns the https URL of the blob.
func (m BlobMetadata) BlobURL() string {
	return BlobURL(m.StorageAccount, m.ContainerName, m.BlobName)
}

func BlobURL(storageAccount, container, blobName string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s", storageAccount, container, blobName)
}

// UploadPageBlob uploads the image specified by `fileName` as a page blob.
// Pages are uploaded in parallel, bounded by the `threads` argument.
// Pages containing only zeros are skipped as the blob is zero-initialized.
//
// Note that if you want to create an image out of the page blob, make sure that metadata.BlobName
// has a .vhd extension, see EnsureVHDExtension.
func (c StorageClient) UploadPageBlob(ctx context.Context, metadata BlobMetadata, fileName string, threads int) error {
	client, err := c.newPageBlob(metadata.BlobURL())
	if err != nil {
		return fmt.Errorf("cannot create a pageblob client: %w", err)
	}

	imageFile, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("cannot open the image: %w", err)
	}
	defer imageFile.Close()

	stat, err := imageFile.Stat()
	if err != nil {
		return fmt.Errorf("cannot stat the image: %w", err)
	}

	if stat.Size()%512 != 0 {
		return errors.New("size for azure image must be aligned to 512 bytes")
	}

	// azure uses MD5 hashes
	/* #nosec G401 */
	imageFileHash := md5.New()
	if _, err := io.Copy(imageFileHash, imageFile); err != nil {
		return fmt.Errorf("cannot create md5 of the image: %w", err)
	}
	if _, err := imageFile.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("cannot seek the image: %w", err)
	}

	common.Logger(ctx).Infof("[Azure] 🚀 Uploading image to %s", metadata.BlobURL())
	// Page blob is required for VM images
	_, err = client.Create(ctx, stat.Size(), &pageblob.CreateOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentMD5: imageFileHash.Sum(nil),
		},
	})
	if err != nil {
		return apiError("cannot create a new page blob", err)
	}

	if threads <= 0 {
		threads = DefaultUploadThreads
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)

	zeros := make([]byte, PageBlobMaxUploadPagesBytes)
	for offset := int64(0); ; offset += PageBlobMaxUploadPagesBytes {
		if gctx.Err() != nil {
			break
		}

		buffer := make([]byte, PageBlobMaxUploadPagesBytes)
		n, err := io.ReadFull(imageFile, buffer)
		if err == io.EOF {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			_ = g.Wait()
			return fmt.Errorf("reading the image failed: %w", err)
		}

		if bytes.Equal(zeros[:n], buffer[:n]) {
			continue
		}

		uploadRange := blob.HTTPRange{
			Offset: offset,
			Count:  int64(n),
		}
		g.Go(func() error {
			_, err := client.UploadPages(gctx, streaming.NopCloser(bytes.NewReader(buffer[:n])), uploadRange, nil)
			if err != nil {
				return apiError("uploading a page failed", err)
			}
			return nil
		})

		if n < PageBlobMaxUploadPagesBytes {
			break
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (c StorageClient) DeleteBlob(ctx context.Context, metadata BlobMetadata) error {
	client, err := c.newBlob(metadata.BlobURL())
	if err != nil {
		return fmt.Errorf("cannot create a blob client: %w", err)
	}
	_, err = client.Delete(ctx, nil)
	if err != nil {
		return apiError("cannot delete the blob", err)
	}
	return nil
}

// EnsureVHDExtension returns the given string with .vhd suffix if it already
// doesn't have one.
func EnsureVHDExtension(s string) string {
	if strings.HasSuffix(s, ".vhd") {
		return s
	}

	return s + ".vhd"
}
