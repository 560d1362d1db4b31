package target

import (
	"encoding/json"
	"fmt"

	"github.com/osbuild/cloud-image-import/internal/clienterrors"
)

// TargetName identifies the kind of resource an import produced.
type TargetName string

const (
	TargetNameAWS        TargetName = "org.osbuild.aws"
	TargetNameAzureImage TargetName = "org.osbuild.azure.image"
	TargetNameGCP        TargetName = "org.osbuild.gcp"
)

// UploadedObject is the storage object an image was created from.
type UploadedObject struct {
	Bucket  string `json:"bucket"`
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
}

type AWSResult struct {
	AMI        string         `json:"ami"`
	SnapshotID string         `json:"snapshot_id"`
	Region     string         `json:"region,omitempty"`
	Object     UploadedObject `json:"object"`
}

type AzureResult struct {
	ImageID   string         `json:"image_id"`
	ImageName string         `json:"image_name"`
	Object    UploadedObject `json:"object"`
}

type GCPResult struct {
	// Image is projects/<project>/global/images/<name>.
	Image     string         `json:"image"`
	ImageName string         `json:"image_name"`
	ProjectID string         `json:"project_id"`
	Object    UploadedObject `json:"object"`
}

// ResultOptions is one of AWSResult, AzureResult and GCPResult.
type ResultOptions interface {
	targetName() TargetName
}

func (*AWSResult) targetName() TargetName   { return TargetNameAWS }
func (*AzureResult) targetName() TargetName { return TargetNameAzureImage }
func (*GCPResult) targetName() TargetName   { return TargetNameGCP }

var resultOptions = map[TargetName]func() ResultOptions{
	TargetNameAWS:        func() ResultOptions { return new(AWSResult) },
	TargetNameAzureImage: func() ResultOptions { return new(AzureResult) },
	TargetNameGCP:        func() ResultOptions { return new(GCPResult) },
}

// TargetResult is the record of one import, written by --output. Exactly
// one of Options and TargetError is set.
type TargetResult struct {
	Name        TargetName          `json:"name"`
	Options     ResultOptions       `json:"options,omitempty"`
	TargetError *clienterrors.Error `json:"target_error,omitempty"`
}

func NewTargetResult(options ResultOptions) *TargetResult {
	return &TargetResult{
		Name:    options.targetName(),
		Options: options,
	}
}

// NewFailedTargetResult records a failed import for the given provider.
func NewFailedTargetResult(provider Provider, err error) *TargetResult {
	return &TargetResult{
		Name:        provider.TargetName(),
		TargetError: clienterrors.FromError(err),
	}
}

func (tr *TargetResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name        TargetName          `json:"name"`
		Options     json.RawMessage     `json:"options"`
		TargetError *clienterrors.Error `json:"target_error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	newOptions, ok := resultOptions[raw.Name]
	if !ok {
		return fmt.Errorf("unexpected target result name: %s", raw.Name)
	}

	var options ResultOptions
	// failed imports have no options
	if len(raw.Options) > 0 && string(raw.Options) != "null" {
		options = newOptions()
		if err := json.Unmarshal(raw.Options, options); err != nil {
			return fmt.Errorf("cannot decode %s options: %w", raw.Name, err)
		}
	}

	tr.Name = raw.Name
	tr.Options = options
	tr.TargetError = raw.TargetError
	return nil
}
