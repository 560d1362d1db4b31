package awscloud

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/osbuild/cloud-image-import/internal/clienterrors"
	"github.com/osbuild/cloud-image-import/internal/common"
	"github.com/osbuild/cloud-image-import/internal/target"
)

// The snapshot import of a large disk can take hours.
const snapshotImportTimeout = 24 * time.Hour

type AWS struct {
	ec2        EC2
	s3         S3
	s3uploader S3Manager
	region     string
}

// Allow to mock the EC2 SnapshotImportedWaiter for testing purposes
var newSnapshotImportedWaiter = func(client ec2.DescribeImportSnapshotTasksAPIClient, optFns ...func(*ec2.SnapshotImportedWaiterOptions)) SnapshotImportedWaiter {
	return ec2.NewSnapshotImportedWaiter(client, optFns...)
}

func newForTest(ec2cli EC2, s3cli S3, upldr S3Manager) *AWS {
	return &AWS{
		ec2:        ec2cli,
		s3:         s3cli,
		s3uploader: upldr,
	}
}

func newAwsFromConfig(cfg aws.Config, s3optFns ...func(*s3.Options)) *AWS {
	s3cli := s3.NewFromConfig(cfg, s3optFns...)
	return &AWS{
		ec2:        ec2.NewFromConfig(cfg),
		s3:         s3cli,
		s3uploader: manager.NewUploader(s3cli),
		region:     cfg.Region,
	}
}

// Initialize a new AWS object from defaults.
// Looks for env variables, shared credential file, and EC2 Instance Roles.
// An empty region is taken from the shared configuration.
func NewDefault(ctx context.Context, region string) (*AWS, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return newAwsFromConfig(cfg), nil
}

// Initializes a new AWS object with the credentials info found at filename's location.
// The credential files should match the AWS format, such as:
// [default]
// aws_access_key_id = secretString1
// aws_secret_access_key = secretString2
func NewFromFile(ctx context.Context, filename string, region string) (*AWS, error) {
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(region),
		config.WithSharedCredentialsFiles([]string{filename}),
	)
	if err != nil {
		return nil, err
	}
	return newAwsFromConfig(cfg), nil
}

// NewForEndpoint uploads to an S3 compatible endpoint instead of AWS S3.
// EC2 calls still go to AWS. filename may be empty to use the default
// credential chain.
func NewForEndpoint(ctx context.Context, endpoint, region, filename string) (*AWS, error) {
	optFns := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if filename != "" {
		optFns = append(optFns, config.WithSharedCredentialsFiles([]string{filename}))
	}
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, err
	}
	return newAwsFromConfig(cfg, func(options *s3.Options) {
		options.BaseEndpoint = aws.String(endpoint)
		options.UsePathStyle = true
	}), nil
}

func (a *AWS) Region() string {
	return a.region
}

func (a *AWS) Upload(ctx context.Context, filename, bucket, key string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}

	defer func() {
		err := file.Close()
		if err != nil {
			common.Logger(ctx).Warnf("[AWS] ‼ Failed to close the file uploaded to S3: %v", err)
		}
	}()

	common.Logger(ctx).Infof("[AWS] 🚀 Uploading image to S3: %s/%s", bucket, key)
	_, err = a.s3uploader.Upload(
		ctx,
		&s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   file,
		},
	)
	return apiError("PutObject", err)
}

// ImportSnapshot imports the raw disk at bucket/key as an EBS snapshot,
// waits for the import to finish and tags the snapshot with the key.
func (a *AWS) ImportSnapshot(ctx context.Context, bucket, key string) (string, error) {
	common.Logger(ctx).Infof("[AWS] 📥 Importing snapshot from image: %s/%s", bucket, key)
	importTaskOutput, err := a.ec2.ImportSnapshot(
		ctx,
		&ec2.ImportSnapshotInput{
			Description: aws.String(fmt.Sprintf("Imported snapshot from raw file %s", key)),
			DiskContainer: &ec2types.SnapshotDiskContainer{
				Format: aws.String("raw"),
				UserBucket: &ec2types.UserBucket{
					S3Bucket: aws.String(bucket),
					S3Key:    aws.String(key),
				},
			},
		},
	)
	if err != nil {
		return "", apiError("ImportSnapshot", err)
	}
	taskID := aws.ToString(importTaskOutput.ImportTaskId)

	common.Logger(ctx).Infof("[AWS] 🚚 Waiting for snapshot to finish importing: %s", taskID)
	snapWaiter := newSnapshotImportedWaiter(a.ec2)
	snapWaitOutput, err := snapWaiter.WaitForOutput(
		ctx,
		&ec2.DescribeImportSnapshotTasksInput{
			ImportTaskIds: []string{taskID},
		},
		snapshotImportTimeout,
	)
	if err != nil {
		return "", apiError("DescribeImportSnapshotTasks", err)
	}
	if len(snapWaitOutput.ImportSnapshotTasks) == 0 || snapWaitOutput.ImportSnapshotTasks[0].SnapshotTaskDetail == nil {
		return "", &clienterrors.ProviderCommandError{Err: fmt.Errorf("import task %s not found", taskID)}
	}

	detail := snapWaitOutput.ImportSnapshotTasks[0].SnapshotTaskDetail
	if status := aws.ToString(detail.Status); status != "completed" {
		return "", &clienterrors.ProviderCommandError{
			Err: fmt.Errorf("unable to import snapshot, task result: %v, msg: %v", status, aws.ToString(detail.StatusMessage)),
		}
	}

	snapshotID := aws.ToString(detail.SnapshotId)
	if err := a.tag(ctx, snapshotID, key); err != nil {
		return "", err
	}
	return snapshotID, nil
}

// RegisterImage registers an AMI backed by snapshotID. architecture is the
// EC2 name, bootMode a target boot mode or empty for the instance type
// default.
func (a *AWS) RegisterImage(ctx context.Context, name, snapshotID, architecture, bootMode string) (string, error) {
	ec2Arch := ec2types.ArchitectureValues(architecture)
	if architecture == "" {
		ec2Arch = ec2types.ArchitectureValuesX8664
	}
	if !validArchitecture(ec2Arch) {
		return "", fmt.Errorf("ec2 doesn't support the following arch: %s", architecture)
	}

	var ec2BootMode ec2types.BootModeValues
	switch bootMode {
	case "":
	case target.BootModeUEFI:
		ec2BootMode = ec2types.BootModeValuesUefi
	case target.BootModeBIOS:
		ec2BootMode = ec2types.BootModeValuesLegacyBios
	default:
		return "", fmt.Errorf("ec2 doesn't support the following boot mode: %s", bootMode)
	}

	common.Logger(ctx).Infof("[AWS] 📋 Registering AMI from imported snapshot: %s", snapshotID)
	registerOutput, err := a.ec2.RegisterImage(
		ctx,
		&ec2.RegisterImageInput{
			Architecture:       ec2Arch,
			BootMode:           ec2BootMode,
			VirtualizationType: aws.String("hvm"),
			Name:               aws.String(name),
			RootDeviceName:     aws.String("/dev/sda1"),
			EnaSupport:         aws.Bool(true),
			BlockDeviceMappings: []ec2types.BlockDeviceMapping{
				{
					DeviceName: aws.String("/dev/sda1"),
					Ebs: &ec2types.EbsBlockDevice{
						SnapshotId: aws.String(snapshotID),
					},
				},
			},
		},
	)
	if err != nil {
		return "", apiError("RegisterImage", err)
	}

	imageID := aws.ToString(registerOutput.ImageId)
	common.Logger(ctx).Infof("[AWS] 🎉 AMI registered: %s", imageID)
	if err := a.tag(ctx, imageID, name); err != nil {
		return "", err
	}
	return imageID, nil
}

func (a *AWS) DeleteObject(ctx context.Context, bucket, key string) error {
	common.Logger(ctx).Infof("[AWS] 🧹 Deleting image from S3: %s/%s", bucket, key)
	_, err := a.s3.DeleteObject(
		ctx,
		&s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		},
	)
	return apiError("DeleteObject", err)
}

// tag sets the Name tag of an EC2 resource.
func (a *AWS) tag(ctx context.Context, resource, name string) error {
	_, err := a.ec2.CreateTags(
		ctx,
		&ec2.CreateTagsInput{
			Resources: []string{resource},
			Tags: []ec2types.Tag{
				{
					Key:   aws.String("Name"),
					Value: aws.String(name),
				},
			},
		},
	)
	return apiError("CreateTags", err)
}

func validArchitecture(a ec2types.ArchitectureValues) bool {
	for _, v := range a.Values() {
		if v == a {
			return true
		}
	}
	return false
}

// apiError wraps a failed API call into a ProviderCommandError. Cancellation
// is passed through unchanged.
func apiError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &clienterrors.ProviderCommandError{
			Err: fmt.Errorf("%s: %s: %s", operation, apiErr.ErrorCode(), apiErr.ErrorMessage()),
		}
	}
	return &clienterrors.ProviderCommandError{
		Err: fmt.Errorf("%s: %w", operation, err),
	}
}
