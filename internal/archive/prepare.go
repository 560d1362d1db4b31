package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/osbuild/cloud-image-import/internal/clienterrors"
)

// PreparedImage is the disk ready to be uploaded.
type PreparedImage struct {
	Path string
	// directory created by Prepare, empty for manual images
	dir string
}

// Cleanup removes everything Prepare created. It is safe to call on a
// manual image.
func (p *PreparedImage) Cleanup() error {
	if p == nil || p.dir == "" {
		return nil
	}
	return os.RemoveAll(p.dir)
}

// Prepare makes the disk described by desc available as a plain file. Disks
// of composer tars are extracted into a new directory under workdir and
// decompressed. Manual images are used in place. When progress is not nil a
// progress bar is drawn there while extracting.
func Prepare(ctx context.Context, desc *Descriptor, workdir string, progress io.Writer) (*PreparedImage, error) {
	if desc.Kind != KindComposerTar {
		if desc.Format == FormatRawTarGz {
			if err := validateTarGz(desc.Path); err != nil {
				return nil, err
			}
		}
		return &PreparedImage{Path: desc.Path}, nil
	}

	dir, err := os.MkdirTemp(workdir, "cloud-image-import-")
	if err != nil {
		return nil, fmt.Errorf("cannot create work directory: %w", err)
	}
	img := &PreparedImage{dir: dir}

	img.Path, err = extract(ctx, desc, dir, progress)
	if err != nil {
		_ = img.Cleanup()
		return nil, err
	}

	if desc.Format == FormatRawTarGz {
		if err := validateTarGz(img.Path); err != nil {
			_ = img.Cleanup()
			return nil, err
		}
	}
	return img, nil
}

func extract(ctx context.Context, desc *Descriptor, dir string, progress io.Writer) (string, error) {
	name := path.Base(strings.ReplaceAll(desc.Member, "\\", "/"))
	if name == "." || name == ".." || name == "/" {
		return "", &clienterrors.UnsupportedFormatError{
			Path:   desc.Path,
			Reason: fmt.Sprintf("invalid member name %q", desc.Member),
		}
	}

	f, err := os.Open(desc.Path)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", desc.Path, err)
	}
	defer f.Close()

	tr := tar.NewReader(f)
	var hdr *tar.Header
	for {
		hdr, err = tr.Next()
		if err == io.EOF {
			return "", fmt.Errorf("member %s not found in %s", desc.Member, desc.Path)
		}
		if err != nil {
			return "", fmt.Errorf("cannot read %s: %w", desc.Path, err)
		}
		if hdr.Name == desc.Member {
			break
		}
	}

	var r io.Reader = &contextReader{ctx: ctx, r: tr}
	if progress != nil {
		p := mpb.NewWithContext(ctx, mpb.WithOutput(progress), mpb.WithWidth(64))
		bar := p.AddBar(hdr.Size,
			mpb.PrependDecorators(decor.Name(name, decor.WC{C: decor.DindentRight | decor.DextraSpace})),
			mpb.AppendDecorators(decor.CountersKibiByte("% .2f / % .2f"), decor.Percentage(decor.WCSyncSpace)),
		)
		proxy := bar.ProxyReader(r)
		defer func() {
			proxy.Close()
			bar.Abort(false)
			p.Wait()
		}()
		r = proxy
	}

	if strings.HasSuffix(name, ".xz") {
		xzr, err := xz.NewReader(r)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if err != nil {
			return "", &clienterrors.UnsupportedFormatError{
				Path:   desc.Path,
				Reason: fmt.Sprintf("%s is not a valid xz stream: %v", desc.Member, err),
			}
		}
		r = xzr
		name = strings.TrimSuffix(name, ".xz")
	}

	out := filepath.Join(dir, name)
	logrus.Debugf("extracting %s from %s to %s", desc.Member, desc.Path, out)
	if err := writeFile(out, r); err != nil {
		return "", err
	}

	if strings.HasSuffix(out, ".vhdfixed") {
		vhd := strings.TrimSuffix(out, ".vhdfixed") + ".vhd"
		if err := os.Rename(out, vhd); err != nil {
			return "", fmt.Errorf("cannot rename %s: %w", out, err)
		}
		out = vhd
	}
	return out, nil
}

func writeFile(name string, r io.Reader) error {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("cannot write %s: %w", name, err)
	}
	return f.Close()
}

// validateTarGz checks that path is a gzip compressed tar whose first entry
// is disk.raw, which is what Compute Engine imports.
func validateTarGz(p string) error {
	unsupported := func(reason string) error {
		return &clienterrors.UnsupportedFormatError{
			Path:     p,
			Provider: "gcp",
			Reason:   reason,
		}
	}

	f, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", p, err)
	}
	defer f.Close()

	zr, err := pgzip.NewReader(f)
	if err != nil {
		return unsupported(fmt.Sprintf("not a gzip file: %v", err))
	}
	defer zr.Close()

	hdr, err := tar.NewReader(zr).Next()
	if err != nil {
		return unsupported(fmt.Sprintf("not a tar archive: %v", err))
	}
	if path.Clean(hdr.Name) != "disk.raw" {
		return unsupported(fmt.Sprintf("first entry must be disk.raw, found %s", hdr.Name))
	}
	return nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
