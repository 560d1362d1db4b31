package importer

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/cloud-image-import/internal/target"
)

func (i *Importer) importGCP(ctx context.Context, logger *logrus.Entry, req target.ImportRequest, diskPath string) (*target.TargetResult, error) {
	if i.gcp == nil {
		return nil, i.missingBackend(req.Provider)
	}

	object := GCPObjectName(diskPath)
	sourceURI := fmt.Sprintf("gs://%s/%s", req.Bucket, object)
	logger.Infof("[GCP] 🚀 Uploading %s to %s", diskPath, sourceURI)
	if err := i.gcp.Upload(ctx, diskPath, req.Bucket, object); err != nil {
		return nil, fmt.Errorf("uploading image: %w", err)
	}
	fmt.Fprintf(i.stdout, "Uploaded as: %s\n", object)

	name := GCPImageName(object, i.now())
	if req.ImageName != "" {
		name = req.ImageName
	}
	logger.Infof("[GCP] 📋 Creating image %s", name)
	imagePath, err := i.gcp.CreateImage(ctx, name, sourceURI, req.Region, req.BootMode)
	if err != nil {
		return nil, fmt.Errorf("registering image: %w", err)
	}
	logger.Infof("[GCP] 🎉 Image created: %s", imagePath)

	fmt.Fprintf(i.stdout, "Resulting image name: %s\n", imagePath)

	deleted := i.cleanupObject(logger, req, "Google cloud object", object, func() error {
		return i.gcp.DeleteObject(ctx, req.Bucket, object)
	})

	return target.NewTargetResult(&target.GCPResult{
		Image:     imagePath,
		ImageName: path.Base(imagePath),
		ProjectID: imageProject(imagePath),
		Object: target.UploadedObject{
			Bucket:  req.Bucket,
			Name:    object,
			Deleted: deleted,
		},
	}), nil
}

// imageProject returns the project of projects/<project>/global/images/<name>.
func imageProject(imagePath string) string {
	parts := strings.Split(imagePath, "/")
	if len(parts) >= 2 && parts[0] == "projects" {
		return parts[1]
	}
	return ""
}
