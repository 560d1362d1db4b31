package cloudcli

import (
	"context"
	"fmt"
	"time"

	"github.com/osbuild/cloud-image-import/internal/clienterrors"
	"github.com/osbuild/cloud-image-import/internal/command"
	"github.com/osbuild/cloud-image-import/internal/common"
	"github.com/osbuild/cloud-image-import/internal/target"
)

const DefaultPollInterval = 10 * time.Second

type AWSOptions struct {
	// CLI is the aws executable, "aws" when empty.
	CLI    string
	Region string
	// Endpoint of an S3 compatible storage used instead of AWS S3.
	Endpoint     string
	PollInterval time.Duration
}

type AWS struct {
	runner       command.Runner
	cli          string
	region       string
	endpoint     string
	pollInterval time.Duration
}

func NewAWS(runner command.Runner, options AWSOptions) *AWS {
	interval := options.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &AWS{
		runner:       runner,
		cli:          orDefault(options.CLI, "aws"),
		region:       options.Region,
		endpoint:     options.Endpoint,
		pollInterval: interval,
	}
}

func (a *AWS) Region() string {
	return a.region
}

func (a *AWS) command(args ...string) []string {
	argv := append([]string{a.cli}, args...)
	if a.region != "" {
		argv = append(argv, "--region", a.region)
	}
	return argv
}

func (a *AWS) s3Command(args ...string) []string {
	argv := a.command(args...)
	if a.endpoint != "" {
		argv = append(argv, "--endpoint-url", a.endpoint)
	}
	return argv
}

func (a *AWS) Upload(ctx context.Context, filename, bucket, key string) error {
	_, err := run(ctx, a.runner, a.s3Command("s3", "cp", filename, fmt.Sprintf("s3://%s/%s", bucket, key)))
	return err
}

type importSnapshotOutput struct {
	ImportTaskId string `json:"ImportTaskId"`
}

type describeImportSnapshotTasksOutput struct {
	ImportSnapshotTasks []struct {
		ImportTaskId       string `json:"ImportTaskId"`
		SnapshotTaskDetail struct {
			Status        string `json:"Status"`
			StatusMessage string `json:"StatusMessage"`
			Progress      string `json:"Progress"`
			SnapshotId    string `json:"SnapshotId"`
		} `json:"SnapshotTaskDetail"`
	} `json:"ImportSnapshotTasks"`
}

// ImportSnapshot imports s3://bucket/key as an EBS snapshot and waits until
// the import task finishes. It returns the snapshot ID.
func (a *AWS) ImportSnapshot(ctx context.Context, bucket, key string) (string, error) {
	argv := a.command("ec2", "import-snapshot",
		"--disk-container", fmt.Sprintf("Format=raw,UserBucket={S3Bucket=%s,S3Key=%s}", bucket, key),
		"--description", "Imported snapshot from raw file "+key,
		"--output", "json")
	var imported importSnapshotOutput
	if err := runJSON(ctx, a.runner, argv, &imported); err != nil {
		return "", err
	}
	if imported.ImportTaskId == "" {
		return "", &clienterrors.ProviderCommandError{
			Argv: argv,
			Err:  fmt.Errorf("no import task ID returned"),
		}
	}
	common.Logger(ctx).Infof("[AWS] 🚚 Waiting for import task %s to finish", imported.ImportTaskId)

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	for {
		snapshotID, done, err := a.importStatus(ctx, imported.ImportTaskId)
		if err != nil {
			return "", err
		}
		if done {
			return snapshotID, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *AWS) importStatus(ctx context.Context, taskID string) (string, bool, error) {
	argv := a.command("ec2", "describe-import-snapshot-tasks",
		"--import-task-ids", taskID,
		"--output", "json")
	var tasks describeImportSnapshotTasksOutput
	if err := runJSON(ctx, a.runner, argv, &tasks); err != nil {
		return "", false, err
	}
	if len(tasks.ImportSnapshotTasks) == 0 {
		return "", false, &clienterrors.ProviderCommandError{
			Argv: argv,
			Err:  fmt.Errorf("import task %s not found", taskID),
		}
	}

	detail := tasks.ImportSnapshotTasks[0].SnapshotTaskDetail
	switch detail.Status {
	case "completed":
		if detail.SnapshotId == "" {
			return "", false, &clienterrors.ProviderCommandError{
				Argv: argv,
				Err:  fmt.Errorf("import task %s completed without a snapshot", taskID),
			}
		}
		return detail.SnapshotId, true, nil
	case "error", "deleting", "deleted":
		return "", false, &clienterrors.ProviderCommandError{
			Argv: argv,
			Err:  fmt.Errorf("import task %s %s: %s", taskID, detail.Status, detail.StatusMessage),
		}
	default:
		common.Logger(ctx).Infof("[AWS] Import task status: %s, progress: %s%%", detail.Status, orDefault(detail.Progress, "0"))
		return "", false, nil
	}
}

// EC2BootMode translates a boot mode into the value EC2 expects.
func EC2BootMode(bootMode string) string {
	switch bootMode {
	case target.BootModeUEFI:
		return "uefi"
	case target.BootModeBIOS:
		return "legacy-bios"
	default:
		return ""
	}
}

type registerImageOutput struct {
	ImageId string `json:"ImageId"`
}

// RegisterImage creates an AMI from snapshotID. architecture is the EC2
// name (x86_64, arm64), bootMode one of the target boot modes or empty.
func (a *AWS) RegisterImage(ctx context.Context, name, snapshotID, architecture, bootMode string) (string, error) {
	args := []string{"ec2", "register-image",
		"--name", name,
		"--architecture", orDefault(architecture, "x86_64"),
		"--block-device-mappings", fmt.Sprintf("DeviceName=/dev/sda1,Ebs={SnapshotId=%s}", snapshotID),
		"--virtualization-type", "hvm",
		"--root-device-name", "/dev/sda1",
		"--ena-support",
	}
	if mode := EC2BootMode(bootMode); mode != "" {
		args = append(args, "--boot-mode", mode)
	}
	args = append(args, "--output", "json")

	argv := a.command(args...)
	var registered registerImageOutput
	if err := runJSON(ctx, a.runner, argv, &registered); err != nil {
		return "", err
	}
	if registered.ImageId == "" {
		return "", &clienterrors.ProviderCommandError{
			Argv: argv,
			Err:  fmt.Errorf("no image ID returned"),
		}
	}
	return registered.ImageId, nil
}

func (a *AWS) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := run(ctx, a.runner, a.s3Command("s3", "rm", fmt.Sprintf("s3://%s/%s", bucket, key)))
	return err
}
