package target

import (
	"github.com/osbuild/cloud-image-import/internal/clienterrors"
)

// Provider is one of the supported clouds. The set is closed; ParseProvider
// is the only way to obtain a valid value from user input.
type Provider string

const (
	ProviderAWS   Provider = "aws"
	ProviderAzure Provider = "azure"
	ProviderGCP   Provider = "gcp"
)

// Providers lists the supported providers in the order they are presented
// to the user.
var Providers = []Provider{ProviderAWS, ProviderAzure, ProviderGCP}

// ParseProvider matches s exactly, so case or surrounding spaces make it
// unknown.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(s); p {
	case ProviderAWS, ProviderAzure, ProviderGCP:
		return p, nil
	default:
		return "", &clienterrors.UnknownProviderError{Provider: s}
	}
}

func (p Provider) String() string {
	return string(p)
}

// TargetName returns the name the provider's results are recorded under.
func (p Provider) TargetName() TargetName {
	switch p {
	case ProviderAWS:
		return TargetNameAWS
	case ProviderAzure:
		return TargetNameAzureImage
	case ProviderGCP:
		return TargetNameGCP
	default:
		return TargetName("org.osbuild." + string(p))
	}
}
