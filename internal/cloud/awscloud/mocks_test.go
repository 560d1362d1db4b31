package awscloud_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

type ec2mock struct {
	t *testing.T

	calledFn      map[string]int
	importErr     error
	registerInput *ec2.RegisterImageInput
	tagged        map[string]string
}

func newEc2Mock(t *testing.T) *ec2mock {
	return &ec2mock{
		t:        t,
		calledFn: make(map[string]int),
		tagged:   make(map[string]string),
	}
}

func (m *ec2mock) ImportSnapshot(ctx context.Context, input *ec2.ImportSnapshotInput, optfns ...func(*ec2.Options)) (*ec2.ImportSnapshotOutput, error) {
	m.calledFn["ImportSnapshot"] += 1
	if m.importErr != nil {
		return nil, m.importErr
	}
	require.Equal(m.t, "raw", aws.ToString(input.DiskContainer.Format))
	require.Equal(m.t, "bucket", aws.ToString(input.DiskContainer.UserBucket.S3Bucket))
	require.Equal(m.t, "object-key", aws.ToString(input.DiskContainer.UserBucket.S3Key))
	return &ec2.ImportSnapshotOutput{
		ImportTaskId: aws.String("import-task-id"),
	}, nil
}

func (m *ec2mock) DescribeImportSnapshotTasks(ctx context.Context, input *ec2.DescribeImportSnapshotTasksInput, optfns ...func(*ec2.Options)) (*ec2.DescribeImportSnapshotTasksOutput, error) {
	m.calledFn["DescribeImportSnapshotTasks"] += 1
	return &ec2.DescribeImportSnapshotTasksOutput{}, nil
}

func (m *ec2mock) RegisterImage(ctx context.Context, input *ec2.RegisterImageInput, optfns ...func(*ec2.Options)) (*ec2.RegisterImageOutput, error) {
	m.calledFn["RegisterImage"] += 1
	m.registerInput = input
	return &ec2.RegisterImageOutput{
		ImageId: aws.String("image-id"),
	}, nil
}

func (m *ec2mock) CreateTags(ctx context.Context, input *ec2.CreateTagsInput, optfns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	m.calledFn["CreateTags"] += 1
	for _, r := range input.Resources {
		m.tagged[r] = aws.ToString(input.Tags[0].Value)
	}
	return &ec2.CreateTagsOutput{}, nil
}

type waitermock struct {
	status  string
	message string
	calls   int
}

func (w *waitermock) WaitForOutput(ctx context.Context, params *ec2.DescribeImportSnapshotTasksInput, maxWaitDur time.Duration, optFns ...func(*ec2.SnapshotImportedWaiterOptions)) (*ec2.DescribeImportSnapshotTasksOutput, error) {
	w.calls += 1
	return &ec2.DescribeImportSnapshotTasksOutput{
		ImportSnapshotTasks: []ec2types.ImportSnapshotTask{
			{
				ImportTaskId: aws.String(params.ImportTaskIds[0]),
				SnapshotTaskDetail: &ec2types.SnapshotTaskDetail{
					Status:        aws.String(w.status),
					StatusMessage: aws.String(w.message),
					SnapshotId:    aws.String("snapshot-id"),
				},
			},
		},
	}, nil
}

type s3mock struct {
	t      *testing.T
	bucket string
	key    string
	calls  int
}

func (m *s3mock) DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, optfns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.calls += 1
	require.Equal(m.t, m.bucket, *input.Bucket)
	require.Equal(m.t, m.key, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

type uploadermock struct {
	t    *testing.T
	body []byte
	err  error
}

func (m *uploadermock) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, err := io.ReadAll(input.Body)
	require.NoError(m.t, err)
	m.body = data
	return &manager.UploadOutput{Key: input.Key}, nil
}
