package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/osbuild/cloud-image-import/internal/clienterrors"
	"github.com/osbuild/cloud-image-import/internal/cloud/awscloud"
	"github.com/osbuild/cloud-image-import/internal/cloud/azure"
	"github.com/osbuild/cloud-image-import/internal/cloud/gcp"
	"github.com/osbuild/cloud-image-import/internal/cloudcli"
	"github.com/osbuild/cloud-image-import/internal/command"
	"github.com/osbuild/cloud-image-import/internal/importer"
	"github.com/osbuild/cloud-image-import/internal/target"
)

// newRunner returns the runner used by the cli backend, stream receives the
// stderr of the tools in verbose mode.
var newRunner = func(stream io.Writer) command.Runner {
	r := command.NewExecRunner()
	r.Stream = stream
	return r
}

// cliBackends drives the aws, az and gcloud tools.
func cliBackends(config *importConfig, req target.ImportRequest, stream io.Writer) importer.Options {
	runner := newRunner(stream)
	return importer.Options{
		AWS: cloudcli.NewAWS(runner, cloudcli.AWSOptions{
			CLI:          config.AWS.CLI,
			Region:       req.Region,
			Endpoint:     config.AWS.Endpoint,
			PollInterval: config.PollInterval,
		}),
		Azure: cloudcli.NewAzure(runner, cloudcli.AzureOptions{
			CLI: config.Azure.CLI,
		}),
		GCP: cloudcli.NewGCP(runner, cloudcli.GCPOptions{
			CLI:     config.GCP.CLI,
			Project: req.Project,
		}),
	}
}

// sdkBackends creates an API client for the requested provider only, the
// others would need credentials that are not there.
func sdkBackends(ctx context.Context, config *importConfig, req target.ImportRequest) (importer.Options, error) {
	var opts importer.Options
	switch req.Provider {
	case target.ProviderAWS:
		var client *awscloud.AWS
		var err error
		switch {
		case config.AWS.Endpoint != "":
			client, err = awscloud.NewForEndpoint(ctx, config.AWS.Endpoint, req.Region, config.AWS.Credentials)
		case config.AWS.Credentials != "":
			client, err = awscloud.NewFromFile(ctx, config.AWS.Credentials, req.Region)
		default:
			client, err = awscloud.NewDefault(ctx, req.Region)
		}
		if err != nil {
			return opts, fmt.Errorf("cannot create the AWS client: %w", err)
		}
		opts.AWS = client
	case target.ProviderAzure:
		subscription := req.SubscriptionID
		if subscription == "" {
			subscription = os.Getenv("AZURE_SUBSCRIPTION_ID")
		}
		if subscription == "" {
			return opts, &clienterrors.MissingParameterError{
				Provider:   req.Provider.String(),
				Parameters: []string{"--subscription-id"},
			}
		}
		client, err := azure.NewClient(subscription, config.Azure.UploadThreads)
		if err != nil {
			return opts, fmt.Errorf("cannot create the Azure client: %w", err)
		}
		opts.Azure = client
	case target.ProviderGCP:
		var client *gcp.GCP
		var err error
		if config.GCP.Credentials != "" {
			client, err = gcp.NewFromFile(ctx, config.GCP.Credentials, req.Project)
		} else {
			client, err = gcp.New(ctx, nil, req.Project)
		}
		if err != nil {
			return opts, fmt.Errorf("cannot create the GCP client: %w", err)
		}
		opts.GCP = client
	default:
		return opts, &clienterrors.UnknownProviderError{Provider: req.Provider.String()}
	}
	return opts, nil
}
