package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/osbuild/cloud-image-import/internal/clienterrors"
	"github.com/osbuild/cloud-image-import/internal/common"
	"github.com/osbuild/cloud-image-import/internal/importer"
	"github.com/osbuild/cloud-image-import/internal/target"
)

type cmdFlags struct {
	path               string
	image              string
	cloud              string
	bucket             string
	region             string
	resourceGroup      string
	storageAccountName string
	boot               string
	del                bool
	name               string
	arch               string
	project            string
	subscriptionID     string
	backend            string
	config             string
	workdir            string
	output             string
	verbose            bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f cmdFlags

	cmd := &cobra.Command{
		Use:   "cloud-image-import",
		Short: "Upload a disk image to AWS, Azure or GCP and register it as a bootable image",
		Example: `  cloud-image-import -p custom_aws_image.tar -c aws --bucket my-images
  cloud-image-import -p custom_azure_image.tar -c azure --bucket images --region eastus \
      --resource_group rg --storage_account_name account
  cloud-image-import -i disk.raw.tar.gz -c gcp --bucket my-images --boot uefi`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return clienterrors.NewArgumentError("unexpected arguments: %s", strings.Join(args, " "))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd, &f, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clienterrors.NewArgumentError("%v", err)
	})

	flags := cmd.Flags()
	flags.StringVarP(&f.path, "path", "p", "", "path to the image archive or file")
	flags.StringVarP(&f.image, "image", "i", "", "path to a disk file, same as --path")
	flags.StringVarP(&f.cloud, "cloud", "c", "", "cloud provider: aws, azure or gcp")
	flags.StringVar(&f.bucket, "bucket", "", "S3 bucket, Azure storage container or GCS bucket")
	flags.StringVar(&f.region, "region", "", "target region")
	flags.StringVar(&f.resourceGroup, "resource_group", "", "Azure resource group")
	flags.StringVar(&f.storageAccountName, "storage_account_name", "", "Azure storage account")
	flags.StringVar(&f.boot, "boot", "", "boot mode: uefi or bios")
	flags.BoolVar(&f.del, "delete", false, "delete the uploaded object after the import without asking")
	flags.StringVar(&f.name, "name", "", "name of the resulting image")
	flags.StringVar(&f.arch, "arch", "", "architecture of the AMI, x86_64 or aarch64 (default x86_64)")
	flags.StringVar(&f.project, "project", "", "GCP project")
	flags.StringVar(&f.subscriptionID, "subscription-id", "", "Azure subscription, sdk backend only")
	flags.StringVar(&f.backend, "backend", "", "cli to run the provider tools or sdk to call the APIs (default from config, cli)")
	flags.StringVar(&f.config, "config", "", fmt.Sprintf("configuration file (default %s)", DefaultConfigFile))
	flags.StringVar(&f.workdir, "workdir", "", "directory to extract composer archives in")
	flags.StringVar(&f.output, "output", "", "write the JSON result to this file")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging, show the output of the provider tools")

	return cmd
}

func setupLogging(verbose bool, stderr io.Writer) {
	logrus.SetOutput(stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: !verbose,
	})
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func runImport(ctx context.Context, cmd *cobra.Command, f *cmdFlags, stdout, stderr io.Writer) error {
	setupLogging(f.verbose, stderr)
	ctx = common.WithOperationID(ctx)
	logger := common.Logger(ctx)

	req, config, err := buildRequest(cmd, f)
	if err != nil {
		return err
	}
	logger.Debugf("request: %+v", req)
	if f.verbose {
		var buf strings.Builder
		if err := dumpConfig(config, &buf); err == nil {
			logger.Debugf("configuration:\n%s", buf.String())
		}
	}

	result, err := doImport(ctx, config, req, f.verbose, stdout, stderr)
	if err != nil {
		result = target.NewFailedTargetResult(req.Provider, err)
	}
	if f.output != "" {
		if werr := writeResult(f.output, result); werr != nil {
			logger.Errorf("cannot write the result: %v", werr)
			if err == nil {
				err = werr
			}
		}
	}
	return err
}

// buildRequest merges the flags and the configuration file into a request.
func buildRequest(cmd *cobra.Command, f *cmdFlags) (target.ImportRequest, *importConfig, error) {
	var req target.ImportRequest

	configFile := f.config
	mustExist := cmd.Flags().Changed("config")
	if !mustExist {
		configFile = DefaultConfigFile
	}
	config, err := parseConfig(configFile, mustExist)
	if err != nil {
		return req, nil, clienterrors.NewArgumentError("%v", err)
	}

	switch {
	case f.path != "" && f.image != "":
		return req, nil, clienterrors.NewArgumentError("--path and --image cannot be used together")
	case f.path == "" && f.image == "":
		return req, nil, clienterrors.NewArgumentError("either --path or --image is required")
	}
	if f.cloud == "" {
		return req, nil, clienterrors.NewArgumentError("--cloud is required, must be one of: aws, azure, gcp")
	}
	provider, err := target.ParseProvider(f.cloud)
	if err != nil {
		return req, nil, err
	}

	if f.backend != "" {
		config.Backend = f.backend
	}
	if config.Backend != BackendCLI && config.Backend != BackendSDK {
		return req, nil, clienterrors.NewArgumentError("invalid backend %q, must be one of: %s, %s", config.Backend, BackendCLI, BackendSDK)
	}
	if f.workdir != "" {
		config.Workdir = f.workdir
	}

	req = target.ImportRequest{
		Path:               f.path + f.image,
		Provider:           provider,
		Bucket:             f.bucket,
		Region:             f.region,
		ResourceGroup:      f.resourceGroup,
		StorageAccountName: f.storageAccountName,
		ImageName:          f.name,
		BootMode:           f.boot,
		Arch:               f.arch,
		Delete:             f.del,
		Project:            f.project,
		SubscriptionID:     f.subscriptionID,
	}

	// Azure parameters have no defaults
	switch provider {
	case target.ProviderAWS:
		req.Bucket = withDefault(req.Bucket, config.AWS.Bucket)
		req.Region = withDefault(req.Region, config.AWS.Region)
	case target.ProviderGCP:
		req.Bucket = withDefault(req.Bucket, config.GCP.Bucket)
		req.Project = withDefault(req.Project, config.GCP.Project)
	case target.ProviderAzure:
		req.SubscriptionID = withDefault(req.SubscriptionID, config.Azure.SubscriptionID)
	}

	return req, config, nil
}

func withDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

func doImport(ctx context.Context, config *importConfig, req target.ImportRequest, verbose bool, stdout, stderr io.Writer) (*target.TargetResult, error) {
	// nothing is created before the request is known to be complete
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validating request: %w", err)
	}

	var opts importer.Options
	switch config.Backend {
	case BackendSDK:
		var err error
		opts, err = sdkBackends(ctx, config, req)
		if err != nil {
			return nil, err
		}
	default:
		var stream io.Writer
		if verbose {
			stream = stderr
		}
		opts = cliBackends(config, req, stream)
	}

	opts.Workdir = config.Workdir
	opts.Stdout = stdout
	if isTerminal(stderr) {
		opts.Progress = stderr
	}
	if p := importer.NewTerminalPrompter(); p != nil {
		opts.Prompter = p
	}

	return importer.New(opts).Import(ctx, req)
}

func writeResult(path string, result *target.TargetResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}

// run executes the command line and returns the exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, "Error: interrupted")
	} else {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	var argErr *clienterrors.ArgumentError
	if errors.As(err, &argErr) {
		fmt.Fprintln(stderr, "Run 'cloud-image-import --help' for usage.")
	}
	return clienterrors.ExitCode(err)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
