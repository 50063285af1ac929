package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-blog/pkg/blog"
	"github.com/tendant/simple-blog/pkg/blog/api"
	"github.com/tendant/simple-blog/pkg/blog/objectkey"
	"github.com/tendant/simple-blog/pkg/blog/repo/memory"
	repomongo "github.com/tendant/simple-blog/pkg/blog/repo/mongo"
	repopg "github.com/tendant/simple-blog/pkg/blog/repo/postgres"
	fsstorage "github.com/tendant/simple-blog/pkg/blog/storage/fs"
	memorystorage "github.com/tendant/simple-blog/pkg/blog/storage/memory"
	s3storage "github.com/tendant/simple-blog/pkg/blog/storage/s3"
)

// Database types
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
	DatabaseMongo    = "mongodb"
)

// Storage types
const (
	StorageMemory = "memory"
	StorageS3     = "s3"
	StorageFS     = "fs"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Environment:        "development",
		DatabaseType:       DatabaseMemory,
		MongoDatabase:      "simple_blog",
		AutoMigrate:        true,
		StorageType:        StorageMemory,
		UploadURLPrefix:    memorystorage.DefaultURLPrefix,
		UploadKeyPrefix:    objectkey.DefaultPrefix,
		UploadKeyStrategy:  objectkey.StrategyTimestamp,
		BasePath:           api.DefaultBasePath,
		CORSAllowedOrigins: []string{"*"},
		OwnershipCheck:     true,
		PageSize:           blog.DefaultPageSize,
		EnableEventLogging: true,
	}
}

// ServerConfig represents server configuration for the blog service
type ServerConfig struct {
	Environment string // development, production, testing

	// Database configuration
	DatabaseType  string // "memory", "postgres", "mongodb"
	DatabaseURL   string
	MongoDatabase string
	AutoMigrate   bool // create tables or indexes on startup

	// Storage configuration
	StorageType       string // "memory", "s3", "fs"
	S3                s3storage.Config
	FSBaseDir         string
	UploadURLPrefix   string // memory and fs storage
	UploadKeyPrefix   string
	UploadKeyStrategy string // "timestamp" or "sharded"

	// HTTP
	JWTSecret          string
	BasePath           string
	CORSAllowedOrigins []string

	// Behaviour
	OwnershipCheck     bool
	PageSize           int
	EnableEventLogging bool
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	switch c.DatabaseType {
	case DatabaseMemory:
	case DatabasePostgres, DatabaseMongo:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required when using %s", c.DatabaseType)
		}
		if c.DatabaseType == DatabaseMongo && c.MongoDatabase == "" {
			return errors.New("mongo database name is required")
		}
	default:
		return fmt.Errorf("database_type must be one of memory, postgres, mongodb, got %q", c.DatabaseType)
	}

	switch c.StorageType {
	case StorageMemory:
	case StorageS3:
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when using s3 storage")
		}
	case StorageFS:
		if c.FSBaseDir == "" {
			return errors.New("base directory is required when using fs storage")
		}
	default:
		return fmt.Errorf("storage_type must be memory, s3 or fs, got %q", c.StorageType)
	}

	if _, err := objectkey.New(c.UploadKeyStrategy, c.UploadKeyPrefix); err != nil {
		return err
	}

	if c.JWTSecret == "" {
		return errors.New("jwt secret is required")
	}
	if !strings.HasPrefix(c.BasePath, "/") {
		return fmt.Errorf("base path must start with '/', got %q", c.BasePath)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", c.PageSize)
	}

	return nil
}

// Services is what BuildService wires together. Close releases database
// connections.
type Services struct {
	Blog      blog.Service
	BlobStore blog.BlobStore
	closers   []func()
}

func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	services := &Services{}

	repo, err := c.buildRepository(ctx, services)
	if err != nil {
		services.Close()
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	store, err := c.buildBlobStore()
	if err != nil {
		services.Close()
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.StorageType, err)
	}
	services.BlobStore = store

	keys, err := objectkey.New(c.UploadKeyStrategy, c.UploadKeyPrefix)
	if err != nil {
		services.Close()
		return nil, err
	}

	options := []blog.Option{
		blog.WithRepository(repo),
		blog.WithBlobStore(store),
		blog.WithKeyGenerator(keys),
		blog.WithLogger(logger),
		blog.WithPageSize(c.PageSize),
		blog.WithOwnershipCheck(c.OwnershipCheck),
	}
	if c.EnableEventLogging {
		options = append(options, blog.WithEventSink(blog.NewLoggingEventSink(logger)))
	}

	svc, err := blog.New(options...)
	if err != nil {
		services.Close()
		return nil, err
	}
	services.Blog = svc
	return services, nil
}

// BuildAuth creates the token verifier for the HTTP layer
func (c *ServerConfig) BuildAuth() *api.Auth {
	return api.NewAuth(c.JWTSecret)
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, services *Services) (blog.Repository, error) {
	switch c.DatabaseType {
	case DatabaseMemory:
		return memory.New(), nil

	case DatabasePostgres:
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		services.closers = append(services.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
		repo := repopg.NewWithPool(pool)
		if c.AutoMigrate {
			if err := repo.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		return repo, nil

	case DatabaseMongo:
		repo, err := repomongo.Connect(ctx, c.DatabaseURL, c.MongoDatabase)
		if err != nil {
			return nil, err
		}
		services.closers = append(services.closers, func() {
			_ = repo.Close(context.Background())
		})
		if c.AutoMigrate {
			if err := repo.EnsureIndexes(ctx); err != nil {
				return nil, err
			}
		}
		return repo, nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// buildBlobStore creates a BlobStore based on the configuration
func (c *ServerConfig) buildBlobStore() (blog.BlobStore, error) {
	switch c.StorageType {
	case StorageMemory:
		return memorystorage.NewWithURLPrefix(c.UploadURLPrefix), nil
	case StorageS3:
		store, err := s3storage.New(c.S3)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StorageFS:
		store, err := fsstorage.New(fsstorage.Config{BaseDir: c.FSBaseDir, URLPrefix: c.UploadURLPrefix})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.StorageType)
	}
}
