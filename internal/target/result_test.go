package target

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/cloud-image-import/internal/clienterrors"
)

func TestTargetResultUnmarshal(t *testing.T) {
	testCases := map[string]struct {
		resultJSON string
		expected   *TargetResult
		err        string
	}{
		"aws": {
			resultJSON: `{"name":"org.osbuild.aws","options":{"ami":"ami-123456789","snapshot_id":"snap-1","region":"eu-west-1","object":{"bucket":"images","name":"disk_20240102030405.raw","deleted":true}}}`,
			expected: NewTargetResult(&AWSResult{
				AMI:        "ami-123456789",
				SnapshotID: "snap-1",
				Region:     "eu-west-1",
				Object:     UploadedObject{Bucket: "images", Name: "disk_20240102030405.raw", Deleted: true},
			}),
		},
		"gcp": {
			resultJSON: `{"name":"org.osbuild.gcp","options":{"image":"projects/p/global/images/i","image_name":"i","project_id":"p","object":{"bucket":"b","name":"disk.raw.tar.gz"}}}`,
			expected: NewTargetResult(&GCPResult{
				Image:     "projects/p/global/images/i",
				ImageName: "i",
				ProjectID: "p",
				Object:    UploadedObject{Bucket: "b", Name: "disk.raw.tar.gz"},
			}),
		},
		"azure": {
			resultJSON: `{"name":"org.osbuild.azure.image","options":{"image_id":"/subscriptions/s/images/i","image_name":"i","object":{"bucket":"c","name":"disk.vhd"}}}`,
			expected: NewTargetResult(&AzureResult{
				ImageID:   "/subscriptions/s/images/i",
				ImageName: "i",
				Object:    UploadedObject{Bucket: "c", Name: "disk.vhd"},
			}),
		},
		"error-without-options": {
			resultJSON: `{"name":"org.osbuild.aws","target_error":{"id":5,"reason":"failed to upload image","details":"detail"}}`,
			expected: &TargetResult{
				Name:        TargetNameAWS,
				TargetError: clienterrors.ClientError(clienterrors.ErrorProviderCommand, "failed to upload image", "detail"),
			},
		},
		"unknown-name": {
			resultJSON: `{"name":"org.osbuild.made.up.target","options":{}}`,
			err:        "unexpected target result name: org.osbuild.made.up.target",
		},
		"bad-options": {
			resultJSON: `{"name":"org.osbuild.gcp","options":{"image":42}}`,
			err:        "cannot decode org.osbuild.gcp options",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			var got TargetResult
			err := json.Unmarshal([]byte(tc.resultJSON), &got)
			if tc.err != "" {
				assert.ErrorContains(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, &got)
		})
	}
}

func TestTargetResultRoundTrip(t *testing.T) {
	result := NewTargetResult(&AzureResult{ImageID: "id", ImageName: "name"})
	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"org.osbuild.azure.image","options":{"image_id":"id","image_name":"name","object":{"bucket":"","name":"","deleted":false}}}`, string(data))
}

func TestFailedTargetResultMarshal(t *testing.T) {
	err := fmt.Errorf("uploading image: %w", &clienterrors.ProviderCommandError{
		Argv:     []string{"gcloud", "storage", "cp"},
		ExitCode: 1,
		Stderr:   "AccessDeniedException: 403\n",
	})
	result := NewFailedTargetResult(ProviderGCP, err)

	data, jsonErr := json.Marshal(result)
	require.NoError(t, jsonErr)

	var got TargetResult
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, TargetNameGCP, got.Name)
	assert.Nil(t, got.Options)
	require.NotNil(t, got.TargetError)
	assert.Equal(t, clienterrors.ErrorProviderCommand, got.TargetError.ID)
	assert.Contains(t, got.TargetError.Reason, "AccessDeniedException")
}
