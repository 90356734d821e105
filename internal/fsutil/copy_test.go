package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFilePreservesMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "install.sh")
	require.NoError(t, os.WriteFile(src, []byte("#!/bin/bash\n"), 0755))

	dst := filepath.Join(dir, "out", "nested", "install.sh")
	require.NoError(t, CopyFile(src, dst, 0))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	require.NoError(t, CopyFile(src, dst, 0600))
	info, err = os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestCopyFileMissingSource(t *testing.T) {
	err := CopyFile(filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "x"), 0)
	assert.Error(t, err)
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "h7", "startup"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "h7", "startup", "startup_stm32h723xx.s"), []byte("asm"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "README"), []byte("boards"), 0644))

	dst := filepath.Join(t.TempDir(), "share", "boards")
	require.NoError(t, CopyTree(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "h7", "startup", "startup_stm32h723xx.s"))
	require.NoError(t, err)
	assert.Equal(t, "asm", string(data))
	assert.FileExists(t, filepath.Join(dst, "README"))

	assert.Error(t, CopyTree(filepath.Join(src, "README"), dst))
}

func TestWriteFileIfMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.cpp")

	wrote, err := WriteFileIfMissing(path, []byte("first"), 0644)
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = WriteFileIfMissing(path, []byte("second"), 0644)
	require.NoError(t, err)
	assert.False(t, wrote)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}
