// Package installer unpacks toolchain archives (ARM GNU toolchain releases and
// similar) into a destination tree.
package installer

import (
	"archive/tar" // For reading .tar archives
	"archive/zip" // For reading .zip archives
	"compress/bzip2"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bodgit/sevenzip"          // For reading .7z archives
	"github.com/klauspost/compress/gzip" // For reading .gz compressed data
	"github.com/xi2/xz"                  // For reading .xz compressed data

	"lumos/internal/logger"
)

// SupportedFormats lists the archive suffixes ExtractArchive understands.
var SupportedFormats = []string{".tar", ".tar.gz", ".tgz", ".tar.bz2", ".tar.xz", ".zip", ".7z"}

// IsSupported reports whether path has a known archive suffix.
func IsSupported(path string) bool {
	for _, ext := range SupportedFormats {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// ExtractArchive routes to the appropriate extraction function based on the
// archive suffix and returns the path of the archive's top-level entry
// inside dest.
func ExtractArchive(src, dest string, log *logger.Logger) (string, error) {
	if log == nil {
		log = logger.Discard()
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", err
	}

	switch {
	case strings.HasSuffix(src, ".zip"):
		log.Debug("[DEBUG] compression type is zip\n")
		return extractZip(src, dest)
	case strings.HasSuffix(src, ".7z"):
		log.Debug("[DEBUG] compression type is 7z\n")
		return extract7z(src, dest)
	case strings.HasSuffix(src, ".tar"), strings.HasSuffix(src, ".tar.gz"), strings.HasSuffix(src, ".tgz"),
		strings.HasSuffix(src, ".tar.bz2"), strings.HasSuffix(src, ".tar.xz"):
		log.Debug("[DEBUG] uncompressing %s to %s\n", src, dest)
		return extractTarArchive(src, dest)
	default:
		return "", fmt.Errorf("unsupported archive format: %s", src)
	}
}

// extractTarArchive handles tar and compressed tar variants
func extractTarArchive(src, dest string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var reader io.Reader = f
	switch {
	case strings.HasSuffix(src, ".tar.gz"), strings.HasSuffix(src, ".tgz"):
		gr, err := gzip.NewReader(f)
		if err != nil {
			return "", err
		}
		defer gr.Close()
		reader = gr
	case strings.HasSuffix(src, ".tar.bz2"):
		reader = bzip2.NewReader(f)
	case strings.HasSuffix(src, ".tar.xz"):
		xzr, err := xz.NewReader(f, 0)
		if err != nil {
			return "", err
		}
		reader = xzr
	}

	tr := tar.NewReader(reader)
	var top topLevel

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return "", err
		}
		top.observe(hdr.Name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return "", err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return "", err
			}
		case tar.TypeSymlink:
			// Toolchain bin directories are full of symlinks; keep them relative.
			if filepath.IsAbs(hdr.Linkname) {
				return "", fmt.Errorf("archive entry %s links outside destination", hdr.Name)
			}
			if _, err := safeJoin(dest, filepath.Join(filepath.Dir(hdr.Name), hdr.Linkname)); err != nil {
				return "", err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return "", err
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return "", err
			}
		}
	}
	return top.path(dest), nil
}

// extractZip extracts a .zip archive
func extractZip(src, dest string) (string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return "", err
	}
	defer r.Close()

	var top topLevel
	for _, f := range r.File {
		path, err := safeJoin(dest, f.Name)
		if err != nil {
			return "", err
		}
		top.observe(f.Name)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return "", err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		err = writeFile(path, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return "", err
		}
	}
	return top.path(dest), nil
}

// extract7z handles .7z extraction using the sevenzip library
func extract7z(src, dest string) (string, error) {
	r, err := sevenzip.OpenReader(src)
	if err != nil {
		return "", fmt.Errorf("failed to open 7z archive: %w", err)
	}
	defer r.Close()

	var top topLevel
	for _, f := range r.File {
		path, err := safeJoin(dest, f.Name)
		if err != nil {
			return "", err
		}
		top.observe(f.Name)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return "", err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		err = writeFile(path, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return "", err
		}
	}
	return top.path(dest), nil
}

// FindExecutables walks root and returns, sorted, every regular executable
// file whose name starts with prefix.
func FindExecutables(root, prefix string) ([]string, error) {
	var executables []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasPrefix(d.Name(), prefix) {
			return nil
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil
		}
		if info.Mode().IsRegular() && info.Mode().Perm()&0111 != 0 {
			executables = append(executables, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(executables) == 0 {
		return nil, fmt.Errorf("no %s executables found in %s", prefix, root)
	}
	sort.Strings(executables)
	return executables, nil
}

// topLevel remembers the first path component seen in an archive.
type topLevel struct {
	name string
}

func (t *topLevel) observe(entry string) {
	if t.name != "" {
		return
	}
	entry = strings.TrimPrefix(filepath.ToSlash(entry), "./")
	if first, _, _ := strings.Cut(entry, "/"); first != "" {
		t.name = first
	}
}

func (t *topLevel) path(dest string) string {
	return filepath.Join(dest, t.name)
}

// safeJoin joins an archive entry name onto dest, refusing names that would
// escape it.
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return target, nil
}

func writeFile(path string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0644
	}
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
