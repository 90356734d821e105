package release

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Environment variables configuring the publish step.
const (
	EnvS3Endpoint  = "LUMOS_RELEASE_S3_ENDPOINT"
	EnvS3Region    = "LUMOS_RELEASE_S3_REGION"
	EnvS3AccessKey = "LUMOS_RELEASE_S3_ACCESS_KEY"
	EnvS3SecretKey = "LUMOS_RELEASE_S3_SECRET_KEY"
	EnvS3Bucket    = "LUMOS_RELEASE_S3_BUCKET"
	EnvS3UseSSL    = "LUMOS_RELEASE_S3_USE_SSL"
	EnvS3Prefix    = "LUMOS_RELEASE_S3_PREFIX"
)

// Uploader stores a local file under name in the release location.
type Uploader interface {
	Upload(ctx context.Context, name, file, contentType string) error
}

// S3Config holds the bucket settings of the publish step.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
}

// LoadS3Config reads the publish settings from getenv, falling back to
// root/.env. The process environment wins.
func LoadS3Config(root string, getenv func(string) string) (S3Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	dotenv, err := godotenv.Read(filepath.Join(root, ".env"))
	if err != nil {
		dotenv = map[string]string{}
	}
	get := func(key string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return strings.TrimSpace(dotenv[key])
	}

	cfg := S3Config{
		Endpoint:  get(EnvS3Endpoint),
		Region:    get(EnvS3Region),
		AccessKey: get(EnvS3AccessKey),
		SecretKey: get(EnvS3SecretKey),
		Bucket:    get(EnvS3Bucket),
		UseSSL:    true,
		Prefix:    strings.Trim(get(EnvS3Prefix), "/"),
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if raw := get(EnvS3UseSSL); raw != "" {
		useSSL, err := strconv.ParseBool(raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s %q: %w", EnvS3UseSSL, raw, err)
		}
		cfg.UseSSL = useSSL
	}

	var missing []string
	for key, v := range map[string]string{
		EnvS3Endpoint:  cfg.Endpoint,
		EnvS3AccessKey: cfg.AccessKey,
		EnvS3SecretKey: cfg.SecretKey,
		EnvS3Bucket:    cfg.Bucket,
	} {
		if v == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return cfg, fmt.Errorf("publish is not configured, missing %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

// Key joins the configured prefix and name into an object key.
func (c S3Config) Key(name string) string {
	if c.Prefix == "" {
		return name
	}
	return path.Join(c.Prefix, name)
}

// S3Uploader uploads release files to an S3-compatible bucket.
type S3Uploader struct {
	client   *minio.Client
	cfg      S3Config
	initOnce sync.Once
	initErr  error
}

// NewS3Uploader builds a MinIO client for cfg.
func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Uploader{client: client, cfg: cfg}, nil
}

func (u *S3Uploader) ensureBucket(ctx context.Context) error {
	u.initOnce.Do(func() {
		exists, err := u.client.BucketExists(ctx, u.cfg.Bucket)
		if err != nil {
			u.initErr = err
			return
		}
		if exists {
			return
		}
		u.initErr = u.client.MakeBucket(ctx, u.cfg.Bucket, minio.MakeBucketOptions{Region: u.cfg.Region})
	})
	return u.initErr
}

// Upload implements Uploader.
func (u *S3Uploader) Upload(ctx context.Context, name, file, contentType string) error {
	key := u.cfg.Key(name)
	if err := u.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	_, err := u.client.FPutObject(ctx, u.cfg.Bucket, key, file, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
