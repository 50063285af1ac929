package config

import (
	"fmt"

	s3storage "github.com/tendant/simple-blog/pkg/blog/storage/s3"
)

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		switch dbType {
		case DatabaseMemory:
		case DatabasePostgres, DatabaseMongo:
			if url == "" {
				return fmt.Errorf("database URL is required for %s", dbType)
			}
		default:
			return fmt.Errorf("database type must be 'memory', 'postgres' or 'mongodb', got: %s", dbType)
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithMongoDatabase sets the database name used with mongodb
func WithMongoDatabase(name string) Option {
	return func(c *ServerConfig) error {
		c.MongoDatabase = name
		return nil
	}
}

func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithMemoryStorage serves uploads from memory under urlPrefix
func WithMemoryStorage(urlPrefix string) Option {
	return func(c *ServerConfig) error {
		c.StorageType = StorageMemory
		if urlPrefix != "" {
			c.UploadURLPrefix = urlPrefix
		}
		return nil
	}
}

// WithFSStorage stores uploads under baseDir and serves them under urlPrefix
func WithFSStorage(baseDir, urlPrefix string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("base directory cannot be empty")
		}
		c.StorageType = StorageFS
		c.FSBaseDir = baseDir
		if urlPrefix != "" {
			c.UploadURLPrefix = urlPrefix
		}
		return nil
	}
}

// WithS3Storage stores uploads in S3
func WithS3Storage(s3Config s3storage.Config) Option {
	return func(c *ServerConfig) error {
		if s3Config.Bucket == "" {
			return fmt.Errorf("s3 bucket cannot be empty")
		}
		c.StorageType = StorageS3
		c.S3 = s3Config
		return nil
	}
}

// WithUploadKeyPrefix sets the object key prefix for uploaded images
func WithUploadKeyPrefix(prefix string) Option {
	return func(c *ServerConfig) error {
		c.UploadKeyPrefix = prefix
		return nil
	}
}

// WithUploadKeyStrategy selects how object keys are generated: "timestamp"
// keeps the file name, "sharded" adds a random id
func WithUploadKeyStrategy(strategy string) Option {
	return func(c *ServerConfig) error {
		c.UploadKeyStrategy = strategy
		return nil
	}
}

// WithJWTSecret sets the HS256 secret used to verify tokens
func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		if secret == "" {
			return fmt.Errorf("jwt secret cannot be empty")
		}
		c.JWTSecret = secret
		return nil
	}
}

// WithBasePath sets where the post routes are mounted
func WithBasePath(path string) Option {
	return func(c *ServerConfig) error {
		c.BasePath = path
		return nil
	}
}

func WithCORSAllowedOrigins(origins ...string) Option {
	return func(c *ServerConfig) error {
		c.CORSAllowedOrigins = origins
		return nil
	}
}

// WithOwnershipCheck toggles creator checks on edit and delete
func WithOwnershipCheck(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.OwnershipCheck = enabled
		return nil
	}
}

// WithPageSize sets how many posts a listing page holds
func WithPageSize(size int) Option {
	return func(c *ServerConfig) error {
		if size <= 0 {
			return fmt.Errorf("page size must be positive, got %d", size)
		}
		c.PageSize = size
		return nil
	}
}

// WithEventLogging enables or disables event logging
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}
