package config

import (
	"context"
	"testing"

	s3storage "github.com/tendant/simple-blog/pkg/blog/storage/s3"
)

const testSecret = "test-secret"

func TestDefaults(t *testing.T) {
	cfg, err := Load(WithJWTSecret(testSecret))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.DatabaseType != DatabaseMemory {
		t.Errorf("expected memory database, got: %s", cfg.DatabaseType)
	}
	if cfg.StorageType != StorageMemory {
		t.Errorf("expected memory storage, got: %s", cfg.StorageType)
	}
	if cfg.BasePath != "/api/post" {
		t.Errorf("expected base path /api/post, got: %s", cfg.BasePath)
	}
	if cfg.PageSize != 6 {
		t.Errorf("expected page size 6, got: %d", cfg.PageSize)
	}
	if !cfg.OwnershipCheck {
		t.Error("expected ownership check enabled by default")
	}
}

func TestJWTSecretRequired(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Error("expected error without a jwt secret, got nil")
	}
	if _, err := Load(WithJWTSecret("")); err == nil {
		t.Error("expected error for empty jwt secret, got nil")
	}
}

func TestWithEnvironment(t *testing.T) {
	cfg, err := Load(WithJWTSecret(testSecret), WithEnvironment("production"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Environment != "production" {
		t.Errorf("expected environment production, got: %s", cfg.Environment)
	}

	if _, err := Load(WithJWTSecret(testSecret), WithEnvironment("")); err == nil {
		t.Error("expected error for empty environment, got nil")
	}
}

func TestWithDatabase(t *testing.T) {
	tests := []struct {
		name      string
		dbType    string
		url       string
		wantError bool
	}{
		{"memory valid", "memory", "", false},
		{"postgres valid", "postgres", "postgresql://localhost/test", false},
		{"mongodb valid", "mongodb", "mongodb://localhost:27017", false},
		{"postgres missing url", "postgres", "", true},
		{"mongodb missing url", "mongodb", "", true},
		{"invalid type", "mysql", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(WithJWTSecret(testSecret), WithDatabase(tt.dbType, tt.url))
			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if cfg.DatabaseType != tt.dbType {
				t.Errorf("expected database type %s, got: %s", tt.dbType, cfg.DatabaseType)
			}
		})
	}
}

func TestWithMongoDatabaseEmpty(t *testing.T) {
	_, err := Load(
		WithJWTSecret(testSecret),
		WithDatabase(DatabaseMongo, "mongodb://localhost:27017"),
		WithMongoDatabase(""),
	)
	if err == nil {
		t.Error("expected error for empty mongo database name, got nil")
	}
}

func TestWithS3Storage(t *testing.T) {
	cfg, err := Load(WithJWTSecret(testSecret), WithS3Storage(s3storage.Config{Bucket: "images", Region: "ap-northeast-2"}))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.StorageType != StorageS3 {
		t.Errorf("expected s3 storage, got: %s", cfg.StorageType)
	}
	if cfg.S3.Bucket != "images" {
		t.Errorf("expected bucket images, got: %s", cfg.S3.Bucket)
	}

	if _, err := Load(WithJWTSecret(testSecret), WithS3Storage(s3storage.Config{})); err == nil {
		t.Error("expected error for empty bucket, got nil")
	}
}

func TestWithFSStorage(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(WithJWTSecret(testSecret), WithFSStorage(dir, ""))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.StorageType != StorageFS {
		t.Errorf("expected fs storage, got: %s", cfg.StorageType)
	}

	services, err := cfg.BuildService(context.Background(), nil)
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	defer services.Close()
	if got := services.BlobStore.PublicURL("upload/a.png"); got != "/uploads/upload/a.png" {
		t.Errorf("expected /uploads/upload/a.png, got: %s", got)
	}

	if _, err := Load(WithJWTSecret(testSecret), WithFSStorage("", "")); err == nil {
		t.Error("expected error for empty base directory, got nil")
	}
}

func TestWithUploadKeyStrategy(t *testing.T) {
	cfg, err := Load(WithJWTSecret(testSecret), WithUploadKeyStrategy("sharded"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.UploadKeyStrategy != "sharded" {
		t.Errorf("expected sharded strategy, got: %s", cfg.UploadKeyStrategy)
	}
	if _, err := cfg.BuildService(context.Background(), nil); err != nil {
		t.Fatalf("failed to build service: %v", err)
	}

	if _, err := Load(WithJWTSecret(testSecret), WithUploadKeyStrategy("random")); err == nil {
		t.Error("expected error for unknown key strategy, got nil")
	}
}

func TestWithPageSize(t *testing.T) {
	cfg, err := Load(WithJWTSecret(testSecret), WithPageSize(10))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.PageSize != 10 {
		t.Errorf("expected page size 10, got: %d", cfg.PageSize)
	}

	if _, err := Load(WithJWTSecret(testSecret), WithPageSize(0)); err == nil {
		t.Error("expected error for zero page size, got nil")
	}
}

func TestWithBasePathInvalid(t *testing.T) {
	if _, err := Load(WithJWTSecret(testSecret), WithBasePath("api/post")); err == nil {
		t.Error("expected error for relative base path, got nil")
	}
}

func TestBuildServiceMemory(t *testing.T) {
	cfg, err := Load(
		WithJWTSecret(testSecret),
		WithMemoryStorage("/files/"),
		WithUploadKeyPrefix("img/"),
		WithOwnershipCheck(false),
		WithEventLogging(false),
	)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	services, err := cfg.BuildService(context.Background(), nil)
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	defer services.Close()

	if services.Blog == nil {
		t.Fatal("expected a blog service")
	}
	if got := services.BlobStore.PublicURL("img/a.png"); got != "/files/img/a.png" {
		t.Errorf("expected /files/img/a.png, got: %s", got)
	}

	if cfg.BuildAuth() == nil {
		t.Error("expected an auth verifier")
	}
}
