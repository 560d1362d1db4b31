package azure_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/pageblob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/cloud-image-import/internal/clienterrors"
	"github.com/osbuild/cloud-image-import/internal/cloud/azure"
	"github.com/osbuild/cloud-image-import/internal/target"
)

type pageBlobMock struct {
	mu        sync.Mutex
	size      int64
	md5       []byte
	pages     map[int64][]byte
	uploadErr error
}

func (m *pageBlobMock) Create(ctx context.Context, size int64, o *pageblob.CreateOptions) (pageblob.CreateResponse, error) {
	m.size = size
	m.md5 = o.HTTPHeaders.BlobContentMD5
	return pageblob.CreateResponse{}, nil
}

func (m *pageBlobMock) UploadPages(ctx context.Context, body io.ReadSeekCloser, contentRange blob.HTTPRange, options *pageblob.UploadPagesOptions) (pageblob.UploadPagesResponse, error) {
	if m.uploadErr != nil {
		return pageblob.UploadPagesResponse{}, m.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return pageblob.UploadPagesResponse{}, err
	}
	if int64(len(data)) != contentRange.Count {
		return pageblob.UploadPagesResponse{}, errors.New("range does not match the body")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pages == nil {
		m.pages = make(map[int64][]byte)
	}
	m.pages[contentRange.Offset] = data
	return pageblob.UploadPagesResponse{}, nil
}

type blobMock struct {
	deleted int
}

func (m *blobMock) Delete(ctx context.Context, o *blob.DeleteOptions) (blob.DeleteResponse, error) {
	m.deleted++
	return blob.DeleteResponse{}, nil
}

type imageCreatorMock struct {
	resourceGroup string
	name          string
	image         armcompute.Image
	err           error
}

func (m *imageCreatorMock) CreateOrUpdate(ctx context.Context, resourceGroup, name string, image armcompute.Image) (string, error) {
	m.resourceGroup = resourceGroup
	m.name = name
	m.image = image
	if m.err != nil {
		return "", m.err
	}
	return "/subscriptions/s/resourceGroups/" + resourceGroup + "/providers/Microsoft.Compute/images/" + name, nil
}

func writeImage(t *testing.T, size int, data map[int]byte) string {
	t.Helper()
	buf := make([]byte, size)
	for off, b := range data {
		buf[off] = b
	}
	p := filepath.Join(t.TempDir(), "disk.vhd")
	require.NoError(t, os.WriteFile(p, buf, 0600))
	return p
}

func TestUploadPageBlob(t *testing.T) {
	// first page is all zeros, second page is partial
	image := writeImage(t, azure.PageBlobMaxUploadPagesBytes+1024, map[int]byte{
		azure.PageBlobMaxUploadPagesBytes + 10: 0xff,
	})

	pages := &pageBlobMock{}
	var urls []string
	client := azure.NewForTest(azure.NewStorageClientForTest(pages, nil, &urls), nil)

	require.NoError(t, client.UploadBlob(context.Background(), "sa", "images", "disk_1", image))

	assert.Equal(t, []string{"https://sa.blob.core.windows.net/images/disk_1.vhd"}, urls)
	assert.Equal(t, int64(azure.PageBlobMaxUploadPagesBytes+1024), pages.size)
	assert.Len(t, pages.md5, 16)
	require.Len(t, pages.pages, 1)
	page := pages.pages[azure.PageBlobMaxUploadPagesBytes]
	require.Len(t, page, 1024)
	assert.Equal(t, byte(0xff), page[10])
}

func TestUploadPageBlobManyPages(t *testing.T) {
	data := map[int]byte{}
	for i := 0; i < 5; i++ {
		data[i*azure.PageBlobMaxUploadPagesBytes] = byte(i + 1)
	}
	image := writeImage(t, 5*azure.PageBlobMaxUploadPagesBytes, data)

	pages := &pageBlobMock{}
	var urls []string
	client := azure.NewForTest(azure.NewStorageClientForTest(pages, nil, &urls), nil)
	require.NoError(t, client.UploadBlob(context.Background(), "sa", "images", "disk.vhd", image))

	require.Len(t, pages.pages, 5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, byte(i+1), pages.pages[int64(i*azure.PageBlobMaxUploadPagesBytes)][0])
	}
}

func TestUploadPageBlobUnaligned(t *testing.T) {
	image := writeImage(t, 1000, nil)
	var urls []string
	client := azure.NewForTest(azure.NewStorageClientForTest(&pageBlobMock{}, nil, &urls), nil)
	assert.ErrorContains(t, client.UploadBlob(context.Background(), "sa", "c", "b.vhd", image), "aligned to 512 bytes")
}

func TestUploadPageBlobError(t *testing.T) {
	image := writeImage(t, 4096, map[int]byte{0: 1})
	pages := &pageBlobMock{uploadErr: &azcore.ResponseError{ErrorCode: "AuthorizationFailure", StatusCode: 403}}
	var urls []string
	client := azure.NewForTest(azure.NewStorageClientForTest(pages, nil, &urls), nil)

	err := client.UploadBlob(context.Background(), "sa", "c", "b.vhd", image)
	var cmdErr *clienterrors.ProviderCommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Contains(t, err.Error(), "AuthorizationFailure (HTTP 403)")
}

func TestDeleteBlob(t *testing.T) {
	blobs := &blobMock{}
	var urls []string
	client := azure.NewForTest(azure.NewStorageClientForTest(nil, blobs, &urls), nil)

	require.NoError(t, client.DeleteBlob(context.Background(), "sa", "c", "disk_1.vhd"))
	assert.Equal(t, 1, blobs.deleted)
	assert.Equal(t, []string{"https://sa.blob.core.windows.net/c/disk_1.vhd"}, urls)
}

func TestCreateImage(t *testing.T) {
	images := &imageCreatorMock{}
	client := azure.NewForTest(nil, images)

	id, err := client.CreateImage(context.Background(), "rg", "eastus", "disk_1.vhd-2", "https://sa.blob.core.windows.net/c/disk_1.vhd", target.BootModeUEFI)
	require.NoError(t, err)
	assert.Equal(t, "/subscriptions/s/resourceGroups/rg/providers/Microsoft.Compute/images/disk_1.vhd-2", id)
	assert.Equal(t, "rg", images.resourceGroup)
	assert.Equal(t, "disk_1.vhd-2", images.name)
	assert.Equal(t, armcompute.HyperVGenerationTypesV2, *images.image.Properties.HyperVGeneration)
}

func TestCreateImageWithoutSubscription(t *testing.T) {
	client := azure.NewForTest(nil, nil)
	_, err := client.CreateImage(context.Background(), "rg", "eastus", "n", "https://x", "")

	var paramErr *clienterrors.MissingParameterError
	require.True(t, errors.As(err, &paramErr))
	assert.Equal(t, []string{"--subscription-id"}, paramErr.Parameters)
}

func TestCreateImageCanceled(t *testing.T) {
	client := azure.NewForTest(nil, &imageCreatorMock{err: context.Canceled})
	_, err := client.CreateImage(context.Background(), "rg", "eastus", "n", "https://x", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImageParameters(t *testing.T) {
	img := azure.ImageParameters("westeurope", "https://sa.blob.core.windows.net/c/b.vhd", target.BootModeBIOS)

	assert.Equal(t, "westeurope", *img.Location)
	assert.Equal(t, armcompute.HyperVGenerationTypesV1, *img.Properties.HyperVGeneration)
	osDisk := img.Properties.StorageProfile.OSDisk
	assert.Equal(t, armcompute.OperatingSystemTypesLinux, *osDisk.OSType)
	assert.Equal(t, armcompute.OperatingSystemStateTypesGeneralized, *osDisk.OSState)
	assert.Equal(t, "https://sa.blob.core.windows.net/c/b.vhd", *osDisk.BlobURI)
}

func TestEnsureVHDExtension(t *testing.T) {
	tests := []struct {
		s    string
		want string
	}{
		{s: "disk_20240101000000.vhdfixed", want: "disk_20240101000000.vhdfixed.vhd"},
		{s: "disk_20240101000000.vhd", want: "disk_20240101000000.vhd"},
	}
	for _, tt := range tests {
		t.Run(tt.s, func(t *testing.T) {
			require.Equal(t, tt.want, azure.EnsureVHDExtension(tt.s))
		})
	}
}
