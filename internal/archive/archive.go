// Package archive classifies image files handed to cloud-image-import and
// prepares the disk that is uploaded to the provider.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"

	"github.com/osbuild/cloud-image-import/internal/clienterrors"
	"github.com/osbuild/cloud-image-import/internal/target"
)

// Kind tells how the image was created.
type Kind string

const (
	KindComposerTar Kind = "composer_tar"
	KindManualRaw   Kind = "manual_raw"
	KindManualVHD   Kind = "manual_vhd"
)

// Format is the format of the disk inside the archive, or of the file
// itself for manual images.
type Format string

const (
	FormatRawXZ      Format = "raw_xz"
	FormatVHDFixedXZ Format = "vhdfixed_xz"
	FormatRawTarGz   Format = "raw_targz"
	FormatRaw        Format = "raw"
	FormatVHD        Format = "vhd"
	FormatAMI        Format = "ami"
)

// Descriptor is the result of Inspect.
type Descriptor struct {
	Kind   Kind
	Format Format
	// Path of the inspected file.
	Path string
	// Member is the name of the disk inside a composer tar.
	Member string
}

type rule struct {
	provider target.Provider
	kind     Kind
	format   Format
	pattern  glob.Glob
}

var tarPattern = glob.MustCompile("*.tar")

// Disks inside composer tars.
var memberRules = []rule{
	{target.ProviderAWS, KindComposerTar, FormatRawXZ, glob.MustCompile("*.raw.xz")},
	{target.ProviderAzure, KindComposerTar, FormatVHDFixedXZ, glob.MustCompile("*.vhdfixed.xz")},
	{target.ProviderGCP, KindComposerTar, FormatRawTarGz, glob.MustCompile("*.tar.gz")},
}

// Manually created images.
var fileRules = []rule{
	{target.ProviderAWS, KindManualRaw, FormatRaw, glob.MustCompile("*.raw")},
	{target.ProviderAWS, KindManualRaw, FormatAMI, glob.MustCompile("*.ami")},
	{target.ProviderAzure, KindManualVHD, FormatVHD, glob.MustCompile("*.vhd")},
	{target.ProviderGCP, KindManualRaw, FormatRawTarGz, glob.MustCompile("*.tar.gz")},
}

// Inspect classifies path for provider. Only file names and tar headers are
// looked at. A file that matches no known pattern for the provider is
// reported as an UnsupportedFormatError.
func Inspect(path string, provider target.Provider) (*Descriptor, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, clienterrors.NewArgumentError("image %s does not exist", path)
	} else if err != nil {
		return nil, clienterrors.NewArgumentError("cannot access image %s: %v", path, err)
	}
	if fi.IsDir() {
		return nil, clienterrors.NewArgumentError("image %s is a directory", path)
	}

	name := filepath.Base(path)
	if tarPattern.Match(name) {
		return inspectTar(path, provider)
	}

	for _, r := range fileRules {
		if r.provider == provider && r.pattern.Match(name) {
			return &Descriptor{
				Kind:   r.kind,
				Format: r.format,
				Path:   path,
			}, nil
		}
	}

	return nil, &clienterrors.UnsupportedFormatError{
		Path:     path,
		Provider: provider.String(),
	}
}

func inspectTar(path string, provider target.Provider) (*Descriptor, error) {
	unsupported := func(reason string) error {
		return &clienterrors.UnsupportedFormatError{
			Path:     path,
			Provider: provider.String(),
			Reason:   reason,
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, clienterrors.NewArgumentError("cannot open image %s: %v", path, err)
	}
	defer f.Close()

	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, unsupported(fmt.Sprintf("cannot read tar archive: %v", err))
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		member := filepath.Base(hdr.Name)
		for _, r := range memberRules {
			if r.provider == provider && r.pattern.Match(member) {
				return &Descriptor{
					Kind:   r.kind,
					Format: r.format,
					Path:   path,
					Member: hdr.Name,
				}, nil
			}
		}
	}

	return nil, unsupported("archive contains no disk image for " + provider.String())
}
