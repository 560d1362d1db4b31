package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/osbuild/cloud-image-import/internal/cloud/azure"
	"github.com/osbuild/cloud-image-import/internal/cloudcli"
)

const DefaultConfigFile = "/etc/cloud-image-import/cloud-image-import.toml"

const (
	BackendCLI = "cli"
	BackendSDK = "sdk"
)

type awsConfig struct {
	CLI    string `toml:"cli"`
	Bucket string `toml:"bucket"`
	Region string `toml:"region"`
	// S3 compatible storage used instead of AWS S3
	Endpoint string `toml:"endpoint"`
	// shared credentials file, sdk backend only
	Credentials string `toml:"credentials"`
}

type azureConfig struct {
	CLI            string `toml:"cli"`
	SubscriptionID string `toml:"subscription_id"`
	UploadThreads  int    `toml:"upload_threads"`
}

type gcpConfig struct {
	CLI     string `toml:"cli"`
	Bucket  string `toml:"bucket"`
	Project string `toml:"project"`
	// service account JSON, sdk backend only
	Credentials string `toml:"credentials"`
}

type importConfig struct {
	Workdir      string        `toml:"workdir"`
	Backend      string        `toml:"backend"`
	PollInterval time.Duration `toml:"poll_interval"`

	AWS   awsConfig   `toml:"aws"`
	Azure azureConfig `toml:"azure"`
	GCP   gcpConfig   `toml:"gcp"`
}

func defaultConfig() *importConfig {
	return &importConfig{
		Backend:      BackendCLI,
		PollInterval: cloudcli.DefaultPollInterval,
		AWS: awsConfig{
			CLI: "aws",
		},
		Azure: azureConfig{
			CLI:           "az",
			UploadThreads: azure.DefaultUploadThreads,
		},
		GCP: gcpConfig{
			CLI: "gcloud",
		},
	}
}

// parseConfig reads file on top of the defaults. A missing file is only an
// error when mustExist is set.
func parseConfig(file string, mustExist bool) (*importConfig, error) {
	config := defaultConfig()

	_, err := toml.DecodeFile(file, config)
	if err != nil {
		if !os.IsNotExist(err) || mustExist {
			return nil, fmt.Errorf("could not load config file %q: %w", file, err)
		}
		logrus.Debugf("configuration file %s not found, using defaults", file)
	}

	switch config.Backend {
	case BackendCLI, BackendSDK:
	default:
		return nil, fmt.Errorf("invalid backend %q, must be one of: %s, %s", config.Backend, BackendCLI, BackendSDK)
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("invalid poll interval: %s", config.PollInterval)
	}
	if config.Azure.UploadThreads == 0 {
		config.Azure.UploadThreads = azure.DefaultUploadThreads
	} else if config.Azure.UploadThreads < 0 {
		return nil, fmt.Errorf("invalid number of Azure upload threads: %d", config.Azure.UploadThreads)
	}

	return config, nil
}

func dumpConfig(config *importConfig, w io.Writer) error {
	return toml.NewEncoder(w).Encode(config)
}
