package cloudcli

import (
	"context"
	"fmt"
	"strings"

	"github.com/osbuild/cloud-image-import/internal/clienterrors"
	"github.com/osbuild/cloud-image-import/internal/command"
	"github.com/osbuild/cloud-image-import/internal/target"
)

type GCPOptions struct {
	// CLI is the gcloud executable, "gcloud" when empty.
	CLI string
	// Project overrides the active gcloud project.
	Project string
}

type GCP struct {
	runner  command.Runner
	cli     string
	project string
}

func NewGCP(runner command.Runner, options GCPOptions) *GCP {
	return &GCP{
		runner:  runner,
		cli:     orDefault(options.CLI, "gcloud"),
		project: options.Project,
	}
}

func (g *GCP) command(args ...string) []string {
	argv := append([]string{g.cli}, args...)
	if g.project != "" {
		argv = append(argv, "--project", g.project)
	}
	return argv
}

func (g *GCP) Upload(ctx context.Context, filename, bucket, object string) error {
	_, err := run(ctx, g.runner, g.command("storage", "cp", filename, fmt.Sprintf("gs://%s/%s", bucket, object)))
	return err
}

type gcpImage struct {
	Name     string `json:"name"`
	SelfLink string `json:"selfLink"`
}

// CreateImage creates a Compute Engine image from the disk.raw tar.gz at
// sourceURI and returns it as projects/<project>/global/images/<name>. The
// image is stored in region, or multi-regionally when region is empty.
func (g *GCP) CreateImage(ctx context.Context, name, sourceURI, region, bootMode string) (string, error) {
	args := []string{"compute", "images", "create", name,
		"--source-uri", sourceURI,
	}
	if bootMode == target.BootModeUEFI {
		args = append(args, "--guest-os-features="+strings.Join(target.GCPGuestOSFeaturesUEFI, ","))
	}
	if region != "" {
		args = append(args, "--storage-location", region)
	}
	args = append(args, "--format=json")

	argv := g.command(args...)
	// gcloud prints a list of the created resources
	var created []gcpImage
	if err := runJSON(ctx, g.runner, argv, &created); err != nil {
		return "", err
	}
	if len(created) == 0 {
		return "", &clienterrors.ProviderCommandError{
			Argv: argv,
			Err:  fmt.Errorf("no image returned"),
		}
	}

	if name, ok := ImagePath(created[0].SelfLink); ok {
		return name, nil
	}
	if g.project == "" {
		return "", &clienterrors.ProviderCommandError{
			Argv: argv,
			Err:  fmt.Errorf("cannot determine the project of image %s", created[0].Name),
		}
	}
	return fmt.Sprintf("projects/%s/global/images/%s", g.project, created[0].Name), nil
}

// ImagePath extracts projects/<project>/global/images/<name> from an image
// self link.
func ImagePath(selfLink string) (string, bool) {
	idx := strings.Index(selfLink, "projects/")
	if idx < 0 {
		return "", false
	}
	p := selfLink[idx:]
	parts := strings.Split(p, "/")
	if len(parts) != 5 || parts[2] != "global" || parts[3] != "images" || parts[1] == "" || parts[4] == "" {
		return "", false
	}
	return p, true
}

func (g *GCP) DeleteObject(ctx context.Context, bucket, object string) error {
	_, err := run(ctx, g.runner, g.command("storage", "rm", fmt.Sprintf("gs://%s/%s", bucket, object)))
	return err
}
