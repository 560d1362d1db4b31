// Package importer uploads a prepared disk image to a cloud provider and
// registers it as a bootable image.
package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/cloud-image-import/internal/archive"
	"github.com/osbuild/cloud-image-import/internal/clienterrors"
	"github.com/osbuild/cloud-image-import/internal/common"
	"github.com/osbuild/cloud-image-import/internal/target"
)

// AWS is implemented by the aws CLI wrapper and the SDK client.
type AWS interface {
	Upload(ctx context.Context, filename, bucket, key string) error
	ImportSnapshot(ctx context.Context, bucket, key string) (string, error)
	RegisterImage(ctx context.Context, name, snapshotID, architecture, bootMode string) (string, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	Region() string
}

// Azure is implemented by the az CLI wrapper and the SDK client.
type Azure interface {
	UploadBlob(ctx context.Context, storageAccount, container, blob, filename string) error
	CreateImage(ctx context.Context, resourceGroup, location, name, sourceURI, bootMode string) (string, error)
	DeleteBlob(ctx context.Context, storageAccount, container, blob string) error
}

// GCP is implemented by the gcloud CLI wrapper and the SDK client.
// CreateImage returns the image path projects/<project>/global/images/<name>.
type GCP interface {
	Upload(ctx context.Context, filename, bucket, object string) error
	CreateImage(ctx context.Context, name, sourceURI, region, bootMode string) (string, error)
	DeleteObject(ctx context.Context, bucket, object string) error
}

// Prompter asks the user a yes/no question.
type Prompter interface {
	Confirm(question string) (bool, error)
}

type Options struct {
	AWS   AWS
	Azure Azure
	GCP   GCP

	// Prompter decides whether to delete the uploaded object when the
	// request does not ask for it. Without one the object is kept.
	Prompter Prompter
	// Workdir is where composer archives are extracted, the system
	// temporary directory when empty.
	Workdir string
	// Stdout receives the user facing result lines, os.Stdout when nil.
	Stdout io.Writer
	// Progress receives the extraction progress bar, none when nil.
	Progress io.Writer
	// Now is used for timestamped names, time.Now when nil.
	Now func() time.Time
}

type Importer struct {
	aws      AWS
	azure    Azure
	gcp      GCP
	prompter Prompter
	workdir  string
	stdout   io.Writer
	progress io.Writer
	now      func() time.Time
}

func New(options Options) *Importer {
	i := &Importer{
		aws:      options.AWS,
		azure:    options.Azure,
		gcp:      options.GCP,
		prompter: options.Prompter,
		workdir:  options.Workdir,
		stdout:   options.Stdout,
		progress: options.Progress,
		now:      options.Now,
	}
	if i.stdout == nil {
		i.stdout = os.Stdout
	}
	if i.now == nil {
		i.now = time.Now
	}
	return i
}

// Import runs the whole import of req. Every returned error is prefixed with
// the stage that failed and wraps one of the clienterrors types when the
// failure is classified.
func (i *Importer) Import(ctx context.Context, req target.ImportRequest) (*target.TargetResult, error) {
	logger := common.Logger(ctx).WithField("provider", req.Provider.String())

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validating request: %w", err)
	}

	desc, err := archive.Inspect(req.Path, req.Provider)
	if err != nil {
		return nil, fmt.Errorf("inspecting archive: %w", err)
	}
	logger.Debugf("%s is a %s archive with a %s disk", req.Path, desc.Kind, desc.Format)

	img, err := archive.Prepare(ctx, desc, i.workdir, i.progress)
	if err != nil {
		return nil, fmt.Errorf("preparing image: %w", err)
	}
	defer func() {
		if err := img.Cleanup(); err != nil {
			logger.Warnf("cannot remove extracted image: %v", err)
		}
	}()

	switch req.Provider {
	case target.ProviderAWS:
		return i.importAWS(ctx, logger, req, img.Path)
	case target.ProviderAzure:
		return i.importAzure(ctx, logger, req, img.Path)
	case target.ProviderGCP:
		return i.importGCP(ctx, logger, req, img.Path)
	default:
		return nil, fmt.Errorf("validating request: %w", &clienterrors.UnknownProviderError{Provider: req.Provider.String()})
	}
}

// cleanupObject deletes the uploaded object when asked to, or when the user
// agrees to it. It reports whether the object is gone. The image already
// exists at this point, so a failed delete only leaves the object behind.
func (i *Importer) cleanupObject(logger *logrus.Entry, req target.ImportRequest, what, name string, remove func() error) bool {
	del := req.Delete
	if !del && i.prompter != nil {
		var err error
		del, err = i.prompter.Confirm(fmt.Sprintf("Do you want to delete the %s '%s' after import? (y/n): ", what, name))
		if err != nil {
			logger.Warnf("cannot read the answer, keeping %s: %v", name, err)
			return false
		}
	}

	if !del {
		fmt.Fprintf(i.stdout, "%s '%s' not deleted.\n", what, name)
		return false
	}
	if err := remove(); err != nil {
		logger.Warnf("deleting uploaded object %s: %v", name, err)
		fmt.Fprintf(i.stdout, "%s '%s' not deleted.\n", what, name)
		return false
	}
	fmt.Fprintf(i.stdout, "%s '%s' deleted.\n", what, name)
	return true
}

func (i *Importer) missingBackend(provider target.Provider) error {
	return fmt.Errorf("no %s backend configured", provider)
}
