package cloudcli_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/cloud-image-import/internal/clienterrors"
	"github.com/osbuild/cloud-image-import/internal/cloudcli"
	runner_mock "github.com/osbuild/cloud-image-import/internal/mocks/runner"
	"github.com/osbuild/cloud-image-import/internal/target"
)

func TestAzureUploadAndDelete(t *testing.T) {
	r := runner_mock.New()
	az := cloudcli.NewAzure(r, cloudcli.AzureOptions{})

	require.NoError(t, az.UploadBlob(context.Background(), "sa", "c", "disk_1.vhd", "/tmp/disk.vhd"))
	require.NoError(t, az.DeleteBlob(context.Background(), "sa", "c", "disk_1.vhd"))

	assert.Equal(t, []string{
		"az storage blob upload --account-name sa --container-name c --name disk_1.vhd --file /tmp/disk.vhd --type page",
		"az storage blob delete --account-name sa --container-name c --name disk_1.vhd",
	}, r.Commands())
}

func TestAzureCreateImage(t *testing.T) {
	for name, tc := range map[string]struct {
		bootMode   string
		generation string
	}{
		"default": {},
		"uefi":    {target.BootModeUEFI, "V2"},
		"bios":    {target.BootModeBIOS, ""},
	} {
		t.Run(name, func(t *testing.T) {
			r := runner_mock.New(runner_mock.Response{
				Prefix: []string{"az", "image", "create"},
				Stdout: `{"id": "/subscriptions/s/resourceGroups/rg/providers/Microsoft.Compute/images/disk_1.vhd-2", "name": "disk_1.vhd-2"}`,
			})
			az := cloudcli.NewAzure(r, cloudcli.AzureOptions{})

			id, err := az.CreateImage(context.Background(), "rg", "eastus", "disk_1.vhd-2",
				"https://sa.blob.core.windows.net/c/disk_1.vhd", tc.bootMode)
			require.NoError(t, err)
			assert.Equal(t, "/subscriptions/s/resourceGroups/rg/providers/Microsoft.Compute/images/disk_1.vhd-2", id)

			require.Len(t, r.Calls, 1)
			argv := r.Calls[0]
			assert.Equal(t, "rg", runner_mock.ArgValue(argv, "--resource-group"))
			assert.Equal(t, "eastus", runner_mock.ArgValue(argv, "--location"))
			assert.Equal(t, "Linux", runner_mock.ArgValue(argv, "--os-type"))
			assert.Equal(t, "https://sa.blob.core.windows.net/c/disk_1.vhd", runner_mock.ArgValue(argv, "--source"))
			assert.Equal(t, tc.generation, runner_mock.ArgValue(argv, "--hyper-v-generation"))
		})
	}
}

func TestAzureCreateImageFails(t *testing.T) {
	r := runner_mock.New(runner_mock.Response{
		Prefix:   []string{"az", "image", "create"},
		ExitCode: 3,
		Stderr:   "ERROR: (ResourceGroupNotFound) Resource group 'rg' could not be found.",
	})
	_, err := cloudcli.NewAzure(r, cloudcli.AzureOptions{}).CreateImage(context.Background(), "rg", "eastus", "n", "https://x", "")

	var cmdErr *clienterrors.ProviderCommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, clienterrors.ExitCode(err))
	assert.Contains(t, err.Error(), "ResourceGroupNotFound")
}

func TestAzureCommandNotFound(t *testing.T) {
	r := runner_mock.New(runner_mock.Response{
		Prefix: []string{"/opt/az"},
		Err:    errors.New("exec: \"/opt/az\": stat /opt/az: no such file or directory"),
	})
	err := cloudcli.NewAzure(r, cloudcli.AzureOptions{CLI: "/opt/az"}).UploadBlob(context.Background(), "sa", "c", "b", "f")

	var cmdErr *clienterrors.ProviderCommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 0, cmdErr.ExitCode)
	assert.Equal(t, 1, clienterrors.ExitCode(err))
}
