package gcp

import (
	"context"
	"errors"
	"fmt"
	"os"

	computeapi "cloud.google.com/go/compute/apiv1"
	"cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"

	"github.com/osbuild/cloud-image-import/internal/clienterrors"
)

// GCPCredentialsEnvName contains name of the environment variable used
// to specify the path to file with CGP service account credentials
const (
	//nolint:gosec
	GCPCredentialsEnvName string = "GOOGLE_APPLICATION_CREDENTIALS"
)

// GCP structure holds necessary information to authenticate and interact with GCP.
type GCP struct {
	creds   *google.Credentials
	project string
}

// New returns an authenticated GCP instance, allowing to interact with GCP API.
// With nil credentials the application default credentials are used. The
// project of the credentials is used unless project is set.
func New(ctx context.Context, credentials []byte, project string) (*GCP, error) {
	scopes := []string{storage.ScopeReadWrite}                 // file upload
	scopes = append(scopes, computeapi.DefaultAuthScopes()...) // permissions to image

	var creds *google.Credentials
	var err error
	if credentials != nil {
		creds, err = google.CredentialsFromJSON(ctx, credentials, scopes...)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, scopes...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get Google credentials: %v", err)
	}

	return &GCP{creds: creds, project: project}, nil
}

// NewFromFile loads the credentials from a file and returns an authenticated
// *GCP object instance.
func NewFromFile(ctx context.Context, path, project string) (*GCP, error) {
	gcpCredentials, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load GCP credentials from file %q: %v", path, err)
	}
	return New(ctx, gcpCredentials, project)
}

// GetProjectID returns a string with the Project ID of the project, used for
// all GCP operations.
func (g *GCP) GetProjectID() string {
	if g.project != "" {
		return g.project
	}
	if g.creds == nil {
		return ""
	}
	return g.creds.ProjectID
}

// apiError wraps a failed Google API call into a ProviderCommandError.
func apiError(msg string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return &clienterrors.ProviderCommandError{
			Err: fmt.Errorf("%s: %s (HTTP %d)", msg, gErr.Message, gErr.Code),
		}
	}
	return &clienterrors.ProviderCommandError{
		Err: fmt.Errorf("%s: %w", msg, err),
	}
}
