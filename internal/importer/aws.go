package importer

import (
	"context"
	"fmt"

	"github.com/osbuild/images/pkg/arch"
	"github.com/sirupsen/logrus"

	"github.com/osbuild/cloud-image-import/internal/target"
)

func (i *Importer) importAWS(ctx context.Context, logger *logrus.Entry, req target.ImportRequest, diskPath string) (*target.TargetResult, error) {
	if i.aws == nil {
		return nil, i.missingBackend(req.Provider)
	}
	architecture, err := ec2Architecture(req.Arch)
	if err != nil {
		return nil, fmt.Errorf("validating request: %w", err)
	}

	key := AWSObjectKey(diskPath, i.now())
	logger.Infof("[AWS] 🚀 Uploading %s to s3://%s/%s", diskPath, req.Bucket, key)
	if err := i.aws.Upload(ctx, diskPath, req.Bucket, key); err != nil {
		return nil, fmt.Errorf("uploading image: %w", err)
	}
	fmt.Fprintf(i.stdout, "Uploaded as: %s\n", key)

	logger.Info("[AWS] 📥 Importing snapshot")
	snapshotID, err := i.aws.ImportSnapshot(ctx, req.Bucket, key)
	if err != nil {
		return nil, fmt.Errorf("importing snapshot: %w", err)
	}

	name := key
	if req.ImageName != "" {
		name = req.ImageName
	}
	logger.Infof("[AWS] 📋 Registering AMI %s from %s", name, snapshotID)
	ami, err := i.aws.RegisterImage(ctx, name, snapshotID, architecture, req.BootMode)
	if err != nil {
		return nil, fmt.Errorf("registering image: %w", err)
	}
	logger.Infof("[AWS] 🎉 AMI registered: %s", ami)

	fmt.Fprintf(i.stdout, "Resulting AMI ID: %s\n", ami)

	deleted := i.cleanupObject(logger, req, "S3 object", key, func() error {
		return i.aws.DeleteObject(ctx, req.Bucket, key)
	})

	return target.NewTargetResult(&target.AWSResult{
		AMI:        ami,
		SnapshotID: snapshotID,
		Region:     i.aws.Region(),
		Object: target.UploadedObject{
			Bucket:  req.Bucket,
			Name:    key,
			Deleted: deleted,
		},
	}), nil
}

// ec2Architecture returns the EC2 name of an architecture, x86_64 when it
// is empty.
func ec2Architecture(name string) (string, error) {
	if name == "" {
		return "x86_64", nil
	}
	a, err := arch.FromString(name)
	if err != nil {
		return "", err
	}
	switch a {
	case arch.ARCH_X86_64:
		return "x86_64", nil
	case arch.ARCH_AARCH64:
		return "arm64", nil
	default:
		return "", fmt.Errorf("architecture %s is not supported by EC2", a)
	}
}
