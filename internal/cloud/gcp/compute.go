package gcp

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/compute/v1"
	"google.golang.org/api/option"

	"github.com/osbuild/cloud-image-import/internal/clienterrors"
	"github.com/osbuild/cloud-image-import/internal/common"
	"github.com/osbuild/cloud-image-import/internal/target"
)

const operationPollInterval = 10 * time.Second

// ImageResource returns the Compute Engine image created from a disk.raw
// tar.gz archive at sourceURI.
func ImageResource(name, sourceURI, region, bootMode string) *compute.Image {
	image := &compute.Image{
		Name: name,
		RawDisk: &compute.ImageRawDisk{
			Source: sourceURI,
		},
	}
	if bootMode == target.BootModeUEFI {
		for _, f := range target.GCPGuestOSFeaturesUEFI {
			image.GuestOsFeatures = append(image.GuestOsFeatures, &compute.GuestOsFeature{Type: f})
		}
	}
	if region != "" {
		image.StorageLocations = []string{region}
	}
	return image
}

// CreateImage creates an image from the uploaded archive and waits for the
// operation to finish. It returns projects/<project>/global/images/<name>.
//
// Uses:
//   - Compute Engine API
func (g *GCP) CreateImage(ctx context.Context, name, sourceURI, region, bootMode string) (string, error) {
	project := g.GetProjectID()
	if project == "" {
		return "", &clienterrors.MissingParameterError{
			Provider:   target.ProviderGCP.String(),
			Parameters: []string{"--project"},
		}
	}

	computeService, err := compute.NewService(ctx, option.WithCredentials(g.creds))
	if err != nil {
		return "", fmt.Errorf("failed to get Compute Engine client: %v", err)
	}

	common.Logger(ctx).Infof("[GCP] 📋 Creating image %s from %s", name, sourceURI)
	op, err := computeService.Images.Insert(project, ImageResource(name, sourceURI, region, bootMode)).Context(ctx).Do()
	if err != nil {
		return "", apiError("failed to create the image", err)
	}

	for op.Status != "DONE" {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(operationPollInterval):
		}
		// Wait returns early when the operation is done, or after about two
		// minutes otherwise.
		op, err = computeService.GlobalOperations.Wait(project, op.Name).Context(ctx).Do()
		if err != nil {
			return "", apiError("failed to wait for the image", err)
		}
	}
	if err := OperationError(op); err != nil {
		return "", err
	}

	common.Logger(ctx).Infof("[GCP] 🎉 Image created: %s", name)
	return fmt.Sprintf("projects/%s/global/images/%s", project, name), nil
}

// OperationError returns the error a finished operation failed with, or nil.
func OperationError(op *compute.Operation) error {
	if op.Error == nil || len(op.Error.Errors) == 0 {
		return nil
	}
	first := op.Error.Errors[0]
	return &clienterrors.ProviderCommandError{
		Err: fmt.Errorf("operation %s failed: %s: %s", op.Name, first.Code, first.Message),
	}
}
