// Package azure uploads VHD images to Azure Storage and registers them as
// managed images using the Azure SDK.
package azure

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"

	"github.com/osbuild/cloud-image-import/internal/clienterrors"
	"github.com/osbuild/cloud-image-import/internal/common"
	"github.com/osbuild/cloud-image-import/internal/target"
)

type imageCreator interface {
	CreateOrUpdate(ctx context.Context, resourceGroup, name string, image armcompute.Image) (string, error)
}

// imagesClientWrapper waits for the long running operation to finish.
type imagesClientWrapper struct {
	client *armcompute.ImagesClient
}

func (w imagesClientWrapper) CreateOrUpdate(ctx context.Context, resourceGroup, name string, image armcompute.Image) (string, error) {
	poller, err := w.client.BeginCreateOrUpdate(ctx, resourceGroup, name, image, nil)
	if err != nil {
		return "", err
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", err
	}
	if resp.ID == nil {
		return "", fmt.Errorf("image %s has no ID", name)
	}
	return *resp.ID, nil
}

// Client implements blob upload and image registration using the Azure
// SDK. Credentials are resolved with azidentity.DefaultAzureCredential:
// environment, workload identity, managed identity and the az CLI login.
type Client struct {
	storage *StorageClient
	images  imageCreator
	threads int
}

// NewClient creates a client for the given subscription. The subscription
// is only needed for registering images and may be empty otherwise.
func NewClient(subscriptionID string, threads int) (*Client, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("creating an azure credential failed: %w", err)
	}

	c := &Client{
		storage: NewStorageClient(cred),
		threads: threads,
	}
	if subscriptionID != "" {
		images, err := armcompute.NewImagesClient(subscriptionID, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("creating an images client failed: %w", err)
		}
		c.images = imagesClientWrapper{images}
	}
	return c, nil
}

func newForTest(storage *StorageClient, images imageCreator) *Client {
	return &Client{
		storage: storage,
		images:  images,
		threads: 2,
	}
}

func (c *Client) UploadBlob(ctx context.Context, storageAccount, container, blobName, filename string) error {
	return c.storage.UploadPageBlob(ctx, BlobMetadata{
		StorageAccount: storageAccount,
		ContainerName:  container,
		BlobName:       EnsureVHDExtension(blobName),
	}, filename, c.threads)
}

func (c *Client) DeleteBlob(ctx context.Context, storageAccount, container, blobName string) error {
	common.Logger(ctx).Infof("[Azure] 🧹 Deleting blob %s/%s", container, blobName)
	return c.storage.DeleteBlob(ctx, BlobMetadata{
		StorageAccount: storageAccount,
		ContainerName:  container,
		BlobName:       EnsureVHDExtension(blobName),
	})
}

// CreateImage creates a generalized Linux image from the blob at sourceURI
// and returns its resource ID. UEFI images are created as Hyper-V
// generation 2.
func (c *Client) CreateImage(ctx context.Context, resourceGroup, location, name, sourceURI, bootMode string) (string, error) {
	if c.images == nil {
		return "", &clienterrors.MissingParameterError{
			Provider:   target.ProviderAzure.String(),
			Parameters: []string{"--subscription-id"},
		}
	}

	common.Logger(ctx).Infof("[Azure] 📋 Registering image %s in %s", name, resourceGroup)
	id, err := c.images.CreateOrUpdate(ctx, resourceGroup, name, ImageParameters(location, sourceURI, bootMode))
	if err != nil {
		return "", apiError("creating the image failed", err)
	}
	common.Logger(ctx).Infof("[Azure] 🎉 Image registered: %s", id)
	return id, nil
}

// ImageParameters returns the managed image created from a VHD blob.
func ImageParameters(location, blobURI, bootMode string) armcompute.Image {
	generation := armcompute.HyperVGenerationTypesV1
	if bootMode == target.BootModeUEFI {
		generation = armcompute.HyperVGenerationTypesV2
	}

	return armcompute.Image{
		Location: to.Ptr(location),
		Properties: &armcompute.ImageProperties{
			HyperVGeneration: to.Ptr(generation),
			StorageProfile: &armcompute.ImageStorageProfile{
				OSDisk: &armcompute.ImageOSDisk{
					OSType:  to.Ptr(armcompute.OperatingSystemTypesLinux),
					OSState: to.Ptr(armcompute.OperatingSystemStateTypesGeneralized),
					BlobURI: to.Ptr(blobURI),
				},
			},
		},
	}
}

// apiError wraps a failed Azure call into a ProviderCommandError.
func apiError(msg string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return &clienterrors.ProviderCommandError{
			Err: fmt.Errorf("%s: %s (HTTP %d)", msg, respErr.ErrorCode, respErr.StatusCode),
		}
	}
	return &clienterrors.ProviderCommandError{
		Err: fmt.Errorf("%s: %w", msg, err),
	}
}
