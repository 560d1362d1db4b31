package awscloud

import (
	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

var NewForTest = newForTest

// MockSnapshotImportedWaiter replaces the EC2 snapshot waiter and returns a
// function that can be called to restore the original.
func MockSnapshotImportedWaiter(waiter SnapshotImportedWaiter) (restore func()) {
	original := newSnapshotImportedWaiter
	newSnapshotImportedWaiter = func(ec2.DescribeImportSnapshotTasksAPIClient, ...func(*ec2.SnapshotImportedWaiterOptions)) SnapshotImportedWaiter {
		return waiter
	}
	return func() {
		newSnapshotImportedWaiter = original
	}
}
