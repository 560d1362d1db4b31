package importer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/cloud-image-import/internal/cloud/azure"
	"github.com/osbuild/cloud-image-import/internal/target"
)

func (i *Importer) importAzure(ctx context.Context, logger *logrus.Entry, req target.ImportRequest, diskPath string) (*target.TargetResult, error) {
	if i.azure == nil {
		return nil, i.missingBackend(req.Provider)
	}

	now := i.now()
	blob := AzureBlobName(diskPath, now)
	logger.Infof("[Azure] 🚀 Uploading %s to %s", diskPath, azure.BlobURL(req.StorageAccountName, req.Bucket, blob))
	if err := i.azure.UploadBlob(ctx, req.StorageAccountName, req.Bucket, blob, diskPath); err != nil {
		return nil, fmt.Errorf("uploading image: %w", err)
	}
	fmt.Fprintf(i.stdout, "Uploaded as: %s\n", blob)

	name := AzureImageName(blob, now)
	if req.ImageName != "" {
		name = req.ImageName
	}
	logger.Infof("[Azure] 📋 Creating image %s in %s", name, req.ResourceGroup)
	imageID, err := i.azure.CreateImage(ctx, req.ResourceGroup, req.Region, name, azure.BlobURL(req.StorageAccountName, req.Bucket, blob), req.BootMode)
	if err != nil {
		return nil, fmt.Errorf("registering image: %w", err)
	}
	logger.Infof("[Azure] 🎉 Image created: %s", imageID)

	fmt.Fprintf(i.stdout, "Resulting image ID: %s\n", imageID)

	deleted := i.cleanupObject(logger, req, "Bucket object", blob, func() error {
		return i.azure.DeleteBlob(ctx, req.StorageAccountName, req.Bucket, blob)
	})

	return target.NewTargetResult(&target.AzureResult{
		ImageID:   imageID,
		ImageName: name,
		Object: target.UploadedObject{
			Bucket:  req.Bucket,
			Name:    blob,
			Deleted: deleted,
		},
	}), nil
}
