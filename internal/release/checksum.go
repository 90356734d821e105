package release

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ChecksumSuffix is appended to the archive path to name its checksum file.
const ChecksumSuffix = ".sha256"

// HashFile returns the SHA-256 digest of the file at path.
func HashFile(path string) ([32]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return [32]byte{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return [32]byte{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// FormatDigest renders a digest as lowercase hex.
func FormatDigest(digest [32]byte) string {
	return hex.EncodeToString(digest[:])
}

// ChecksumLine is the shasum-compatible line "<hex>  <name>".
func ChecksumLine(digest [32]byte, name string) string {
	return FormatDigest(digest) + "  " + name
}

// WriteChecksum hashes archive and writes <archive>.sha256 next to it.
// It returns the checksum file path and the written line.
func WriteChecksum(archive string) (string, string, error) {
	digest, err := HashFile(archive)
	if err != nil {
		return "", "", err
	}
	line := ChecksumLine(digest, filepath.Base(archive))
	path := archive + ChecksumSuffix
	if err := os.WriteFile(path, []byte(line+"\n"), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write checksum: %w", err)
	}
	return path, line, nil
}

// Verify recomputes the archive digest and compares it with <archive>.sha256.
func Verify(archive string) error {
	raw, err := os.ReadFile(archive + ChecksumSuffix)
	if err != nil {
		return fmt.Errorf("failed to read checksum: %w", err)
	}
	fields := strings.Fields(string(raw))
	if len(fields) < 2 {
		return fmt.Errorf("malformed checksum file %s%s", archive, ChecksumSuffix)
	}
	want, name := strings.ToLower(fields[0]), fields[1]
	if name != filepath.Base(archive) {
		return fmt.Errorf("checksum file names %s, not %s", name, filepath.Base(archive))
	}

	digest, err := HashFile(archive)
	if err != nil {
		return err
	}
	if got := FormatDigest(digest); got != want {
		return fmt.Errorf("%w: %s has %s, expected %s", ErrChecksumMismatch, name, got, want)
	}
	return nil
}
