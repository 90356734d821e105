package release

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestLoadS3ConfigFromEnvironment(t *testing.T) {
	cfg, err := LoadS3Config(t.TempDir(), envMap(map[string]string{
		EnvS3Endpoint:  "minio.local:9000",
		EnvS3AccessKey: "AKIA",
		EnvS3SecretKey: "secret",
		EnvS3Bucket:    "releases",
		EnvS3UseSSL:    "false",
		EnvS3Prefix:    "/lumos/macos/",
	}))
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.False(t, cfg.UseSSL)
	assert.Equal(t, "lumos/macos/lumos-macos-1.0.0.tar.gz", cfg.Key("lumos-macos-1.0.0.tar.gz"))
}

func TestLoadS3ConfigDotenvFallback(t *testing.T) {
	root := t.TempDir()
	body := EnvS3Endpoint + "=s3.example.com\n" + EnvS3AccessKey + "=from-file\n" +
		EnvS3SecretKey + "=s\n" + EnvS3Bucket + "=b\n" + EnvS3Region + "=eu-west-1\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte(body), 0644))

	cfg, err := LoadS3Config(root, envMap(map[string]string{EnvS3AccessKey: "from-env"}))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.AccessKey)
	assert.Equal(t, "s3.example.com", cfg.Endpoint)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.True(t, cfg.UseSSL)
	assert.Equal(t, "file.tar.gz", cfg.Key("file.tar.gz"))
}

func TestLoadS3ConfigMissing(t *testing.T) {
	_, err := LoadS3Config(t.TempDir(), envMap(map[string]string{EnvS3Bucket: "b"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvS3AccessKey+", "+EnvS3Endpoint+", "+EnvS3SecretKey)

	_, err = LoadS3Config(t.TempDir(), envMap(map[string]string{EnvS3UseSSL: "maybe"}))
	assert.Error(t, err)
}

func TestNewS3Uploader(t *testing.T) {
	up, err := NewS3Uploader(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "b", Region: "us-east-1"})
	require.NoError(t, err)
	assert.NotNil(t, up)
	var _ Uploader = up
}
