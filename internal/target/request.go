package target

import (
	"github.com/osbuild/images/pkg/arch"

	"github.com/osbuild/cloud-image-import/internal/clienterrors"
)

// Boot modes accepted by --boot.
const (
	BootModeUEFI = "uefi"
	BootModeBIOS = "bios"
)

// GCPGuestOSFeaturesUEFI are set on Compute Engine images that boot with UEFI.
var GCPGuestOSFeaturesUEFI = []string{"UEFI_COMPATIBLE", "VIRTIO_SCSI_MULTIQUEUE", "SEV_CAPABLE"}

// ImportRequest describes a single import. It is built once from the command
// line and the configuration file and passed by value afterwards.
type ImportRequest struct {
	Path     string
	Provider Provider

	// Bucket is the S3 bucket, the Azure storage container or the GCS bucket.
	Bucket             string
	Region             string
	ResourceGroup      string
	StorageAccountName string

	// ImageName overrides the generated image name.
	ImageName string
	// BootMode is empty, BootModeUEFI or BootModeBIOS.
	BootMode string
	// Arch is the AMI architecture in any spelling arch.FromString accepts,
	// x86_64 when empty.
	Arch string
	// Delete removes the uploaded object after a successful import without
	// asking.
	Delete bool

	// GCP project, the active project of the credentials when empty.
	Project string
	// Azure subscription, only needed by the SDK backend.
	SubscriptionID string
}

// Validate checks the request before anything is read or executed.
func (r ImportRequest) Validate() error {
	if r.Path == "" {
		return clienterrors.NewArgumentError("--path is required")
	}
	if _, err := ParseProvider(string(r.Provider)); err != nil {
		return err
	}

	switch r.BootMode {
	case "", BootModeUEFI, BootModeBIOS:
	default:
		return clienterrors.NewArgumentError("unknown boot mode %q, must be one of: uefi, bios", r.BootMode)
	}

	if r.Arch != "" {
		if _, err := arch.FromString(r.Arch); err != nil {
			return clienterrors.NewArgumentError("--arch: %v", err)
		}
	}

	if missing := r.missingParameters(); len(missing) > 0 {
		return &clienterrors.MissingParameterError{
			Provider:   r.Provider.String(),
			Parameters: missing,
		}
	}
	return nil
}

func (r ImportRequest) missingParameters() []string {
	var missing []string
	check := func(value, flag string) {
		if value == "" {
			missing = append(missing, flag)
		}
	}

	switch r.Provider {
	case ProviderAzure:
		// These identify billing and ownership boundaries and have no defaults.
		check(r.Bucket, "--bucket")
		check(r.Region, "--region")
		check(r.ResourceGroup, "--resource_group")
		check(r.StorageAccountName, "--storage_account_name")
	case ProviderAWS, ProviderGCP:
		check(r.Bucket, "--bucket")
	}
	return missing
}
