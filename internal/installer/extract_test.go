package installer

import (
	"archive/tar"
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name string
	body string
	mode int64
	link string
	dir  bool
}

func writeTarGz(t *testing.T, path string, entries []entry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: e.mode}
		switch {
		case e.dir:
			hdr.Typeflag = tar.TypeDir
		case e.link != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.link
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.body))
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
}

func TestExtractTarGzToolchain(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "arm-gnu-toolchain.tar.gz")
	writeTarGz(t, archive, []entry{
		{name: "arm-gnu-toolchain/", dir: true, mode: 0755},
		{name: "arm-gnu-toolchain/bin/arm-none-eabi-gcc", body: "#!/bin/sh\n", mode: 0755},
		{name: "arm-gnu-toolchain/bin/arm-none-eabi-cc", link: "arm-none-eabi-gcc", mode: 0777},
		{name: "arm-gnu-toolchain/share/doc.txt", body: "docs", mode: 0644},
	})

	dest := filepath.Join(dir, "out")
	top, err := ExtractArchive(archive, dest, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "arm-gnu-toolchain"), top)

	gcc := filepath.Join(top, "bin", "arm-none-eabi-gcc")
	info, err := os.Stat(gcc)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0100)

	link, err := os.Readlink(filepath.Join(top, "bin", "arm-none-eabi-cc"))
	require.NoError(t, err)
	assert.Equal(t, "arm-none-eabi-gcc", link)

	found, err := FindExecutables(top, "arm-none-eabi-gcc")
	require.NoError(t, err)
	assert.Equal(t, []string{gcc}, found)
}

func TestExtractRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.tar.gz")
	writeTarGz(t, archive, []entry{{name: "../escape.txt", body: "x", mode: 0644}})

	_, err := ExtractArchive(archive, filepath.Join(dir, "out"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes destination")
	assert.NoFileExists(t, filepath.Join(dir, "escape.txt"))
}

func TestExtractZip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "hal.zip")

	f, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("hal/Inc/stm32h7xx_hal.h")
	require.NoError(t, err)
	_, err = w.Write([]byte("#pragma once\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	top, err := ExtractArchive(archive, filepath.Join(dir, "out"), nil)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(top, "Inc", "stm32h7xx_hal.h"))
	require.NoError(t, err)
	assert.Equal(t, "#pragma once\n", string(data))
}

func TestExtractUnsupported(t *testing.T) {
	_, err := ExtractArchive("toolchain.rar", t.TempDir(), nil)
	assert.ErrorContains(t, err, "unsupported archive format")
	assert.False(t, IsSupported("toolchain.rar"))
	assert.True(t, IsSupported("gcc-arm.tar.xz"))
}

func TestFindExecutablesNone(t *testing.T) {
	_, err := FindExecutables(t.TempDir(), "arm-none-eabi-gcc")
	assert.Error(t, err)
}
