package azure

var NewForTest = newForTest

// NewStorageClientForTest returns a StorageClient using the given page blob
// and blob clients for every URL, and records the URLs.
func NewStorageClientForTest(pages PageBlobClient, blobs BlobClient, urls *[]string) *StorageClient {
	return &StorageClient{
		newPageBlob: func(blobURL string) (pageBlobClient, error) {
			*urls = append(*urls, blobURL)
			return pages, nil
		},
		newBlob: func(blobURL string) (blobClient, error) {
			*urls = append(*urls, blobURL)
			return blobs, nil
		},
	}
}

type PageBlobClient = pageBlobClient
type BlobClient = blobClient
type ImageCreator = imageCreator
