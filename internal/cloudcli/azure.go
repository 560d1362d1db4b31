package cloudcli

import (
	"context"
	"fmt"

	"github.com/osbuild/cloud-image-import/internal/clienterrors"
	"github.com/osbuild/cloud-image-import/internal/command"
	"github.com/osbuild/cloud-image-import/internal/target"
)

type AzureOptions struct {
	// CLI is the az executable, "az" when empty.
	CLI string
}

type Azure struct {
	runner command.Runner
	cli    string
}

func NewAzure(runner command.Runner, options AzureOptions) *Azure {
	return &Azure{
		runner: runner,
		cli:    orDefault(options.CLI, "az"),
	}
}

// UploadBlob uploads filename as a page blob, which is what managed images
// are created from.
func (a *Azure) UploadBlob(ctx context.Context, storageAccount, container, blob, filename string) error {
	_, err := run(ctx, a.runner, []string{a.cli, "storage", "blob", "upload",
		"--account-name", storageAccount,
		"--container-name", container,
		"--name", blob,
		"--file", filename,
		"--type", "page",
	})
	return err
}

type createImageOutput struct {
	ID string `json:"id"`
}

// CreateImage creates a Linux managed image from the VHD at sourceURI and
// returns its resource ID.
func (a *Azure) CreateImage(ctx context.Context, resourceGroup, location, name, sourceURI, bootMode string) (string, error) {
	argv := []string{a.cli, "image", "create",
		"--resource-group", resourceGroup,
		"--name", name,
		"--source", sourceURI,
		"--os-type", "Linux",
		"--location", location,
	}
	if bootMode == target.BootModeUEFI {
		argv = append(argv, "--hyper-v-generation", "V2")
	}
	argv = append(argv, "--output", "json")

	var created createImageOutput
	if err := runJSON(ctx, a.runner, argv, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", &clienterrors.ProviderCommandError{
			Argv: argv,
			Err:  fmt.Errorf("no image ID returned"),
		}
	}
	return created.ID, nil
}

func (a *Azure) DeleteBlob(ctx context.Context, storageAccount, container, blob string) error {
	_, err := run(ctx, a.runner, []string{a.cli, "storage", "blob", "delete",
		"--account-name", storageAccount,
		"--container-name", container,
		"--name", blob,
	})
	return err
}
