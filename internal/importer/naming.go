package importer

import (
	"path/filepath"
	"strings"
	"time"
)

// TimestampFormat is appended to uploaded objects and image names.
const TimestampFormat = "20060102150405"

// GCP resource names are at most 63 characters long.
const gcpNameMaxLength = 63

func splitExt(p string) (string, string) {
	base := filepath.Base(p)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext), ext
}

// AWSObjectKey returns <base>_<timestamp>.raw for the disk at p.
func AWSObjectKey(p string, now time.Time) string {
	base, _ := splitExt(p)
	return base + "_" + now.Format(TimestampFormat) + ".raw"
}

// AzureBlobName returns <base>_<timestamp>.vhd for the disk at p.
func AzureBlobName(p string, now time.Time) string {
	base, ext := splitExt(p)
	if !strings.EqualFold(ext, ".vhd") {
		base += ext
	}
	return base + "_" + now.Format(TimestampFormat) + ".vhd"
}

func AzureImageName(blob string, now time.Time) string {
	return blob + "-" + now.Format(TimestampFormat)
}

// GCPObjectName is the base name of the archive, uploaded as is.
func GCPObjectName(p string) string {
	return filepath.Base(p)
}

// GCPImageName returns image-<base>-<timestamp>, where base is derived from
// the uploaded object and reduced to the characters Compute Engine accepts.
func GCPImageName(object string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(object), ".tar.gz")
	base = strings.TrimSuffix(base, ".raw")
	base = strings.TrimSuffix(base, "-image")

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(base) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			b.WriteRune('-')
			dash = true
		}
	}

	suffix := "-" + now.Format(TimestampFormat)
	name := "image-" + strings.Trim(b.String(), "-")
	name = strings.TrimSuffix(name, "-")
	if len(name)+len(suffix) > gcpNameMaxLength {
		name = strings.TrimRight(name[:gcpNameMaxLength-len(suffix)], "-")
	}
	return name + suffix
}
