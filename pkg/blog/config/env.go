package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// EnvConfig is the environment surface read by WithEnv.
//
//	DATABASE_URL  "memory" (default), "postgres://...", or "mongodb://..."
//	STORAGE_URL   "memory://" (default), "file:///var/lib/blog" or "s3://bucket?region=...&endpoint=...&path_style=true"
//	JWT_SECRET    HS256 secret shared with the token issuer
type EnvConfig struct {
	Environment string `env:"ENVIRONMENT" env-default:"development" env-description:"development, production or testing"`

	DatabaseURL   string `env:"DATABASE_URL" env-default:"memory" env-description:"memory, postgres://... or mongodb://..."`
	MongoDatabase string `env:"MONGO_DATABASE" env-default:"simple_blog" env-description:"database name when DATABASE_URL is mongodb"`
	AutoMigrate   bool   `env:"DB_AUTO_MIGRATE" env-default:"true" env-description:"create tables or indexes on startup"`

	StorageURL        string `env:"STORAGE_URL" env-default:"memory://" env-description:"memory://, file:///dir or s3://bucket"`
	UploadURLPrefix   string `env:"UPLOAD_URL_PREFIX" env-default:"/uploads/" env-description:"public URL prefix for memory and file storage"`
	UploadKeyPrefix   string `env:"UPLOAD_KEY_PREFIX" env-default:"upload/" env-description:"object key prefix for uploaded images"`
	UploadKeyStrategy string `env:"UPLOAD_KEY_STRATEGY" env-default:"timestamp" env-description:"timestamp or sharded object keys"`
	S3                S3EnvConfig

	JWTSecret          string   `env:"JWT_SECRET" env-description:"HS256 secret used to verify tokens"`
	BasePath           string   `env:"BASE_PATH" env-default:"/api/post" env-description:"mount point of the post routes"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-default:"*" env-separator:"," env-description:"comma separated origins"`

	OwnershipCheck bool `env:"OWNERSHIP_CHECK" env-default:"true" env-description:"only creators may edit or delete"`
	PageSize       int  `env:"PAGE_SIZE" env-default:"6" env-description:"posts per listing page"`
	EventLogging   bool `env:"EVENT_LOGGING" env-default:"true" env-description:"log domain events"`
}

// S3EnvConfig holds S3 settings not carried by STORAGE_URL.
type S3EnvConfig struct {
	Region          string `env:"AWS_REGION" env-default:"us-east-1"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint        string `env:"AWS_S3_ENDPOINT"`
	UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	PublicBaseURL   string `env:"S3_PUBLIC_BASE_URL"`
	PublicRead      bool   `env:"S3_PUBLIC_READ" env-default:"false"`
	EnableSSE       bool   `env:"S3_ENABLE_SSE" env-default:"false"`
	SSEAlgorithm    string `env:"S3_SSE_ALGORITHM" env-default:"AES256"`
	SSEKMSKeyID     string `env:"S3_SSE_KMS_KEY_ID"`
	CreateBucket    bool   `env:"S3_CREATE_BUCKET" env-default:"false"`
}

// EnvUsage describes every variable WithEnv reads.
func EnvUsage() (string, error) {
	header := "Environment variables:"
	return cleanenv.GetDescription(&EnvConfig{}, &header)
}

// WithEnv applies environment variables. Unset variables fall back to the
// library defaults, so apply WithEnv before programmatic overrides.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env EnvConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		c.Environment = env.Environment
		c.MongoDatabase = env.MongoDatabase
		c.AutoMigrate = env.AutoMigrate
		c.UploadURLPrefix = env.UploadURLPrefix
		c.UploadKeyPrefix = env.UploadKeyPrefix
		c.UploadKeyStrategy = env.UploadKeyStrategy
		c.BasePath = env.BasePath
		c.CORSAllowedOrigins = env.CORSAllowedOrigins
		c.OwnershipCheck = env.OwnershipCheck
		c.PageSize = env.PageSize
		c.EnableEventLogging = env.EventLogging
		if env.JWTSecret != "" {
			c.JWTSecret = env.JWTSecret
		}

		if err := applyDatabaseURL(env.DatabaseURL, c); err != nil {
			return err
		}
		return applyStorageURL(env.StorageURL, env.S3, c)
	}
}

// applyDatabaseURL detects the database type from the URL scheme
func applyDatabaseURL(dbURL string, c *ServerConfig) error {
	switch {
	case dbURL == "" || dbURL == "memory":
		c.DatabaseType = DatabaseMemory
		c.DatabaseURL = ""
	case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
		c.DatabaseType = DatabasePostgres
		c.DatabaseURL = dbURL
	case strings.HasPrefix(dbURL, "mongodb://"), strings.HasPrefix(dbURL, "mongodb+srv://"):
		c.DatabaseType = DatabaseMongo
		c.DatabaseURL = dbURL
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgres://...' or 'mongodb://...')", dbURL)
	}
	return nil
}

// applyStorageURL configures storage from URL
// Format: memory://, file:///path or s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true
func applyStorageURL(storageURL string, s3env S3EnvConfig, c *ServerConfig) error {
	if storageURL == "" || storageURL == "memory" || storageURL == "memory://" {
		c.StorageType = StorageMemory
		return nil
	}
	if dir, ok := strings.CutPrefix(storageURL, "file://"); ok {
		if dir == "" {
			return fmt.Errorf("directory cannot be empty in STORAGE_URL")
		}
		c.StorageType = StorageFS
		c.FSBaseDir = dir
		return nil
	}
	if !strings.HasPrefix(storageURL, "s3://") {
		return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...' or 's3://...')", storageURL)
	}

	u, err := url.Parse(storageURL)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
	}

	c.StorageType = StorageS3
	c.S3.Bucket = u.Host
	c.S3.Region = s3env.Region
	c.S3.AccessKeyID = s3env.AccessKeyID
	c.S3.SecretAccessKey = s3env.SecretAccessKey
	c.S3.Endpoint = s3env.Endpoint
	c.S3.UsePathStyle = s3env.UsePathStyle
	c.S3.PublicBaseURL = s3env.PublicBaseURL
	c.S3.PublicRead = s3env.PublicRead
	c.S3.EnableSSE = s3env.EnableSSE
	c.S3.SSEAlgorithm = s3env.SSEAlgorithm
	c.S3.SSEKMSKeyID = s3env.SSEKMSKeyID
	c.S3.CreateBucketIfNotExist = s3env.CreateBucket

	q := u.Query()
	if v := q.Get("region"); v != "" {
		c.S3.Region = v
	}
	if v := q.Get("endpoint"); v != "" {
		c.S3.Endpoint = v
	}
	if v := q.Get("path_style"); v != "" {
		pathStyle, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid path_style in STORAGE_URL: %w", err)
		}
		c.S3.UsePathStyle = pathStyle
	}
	return nil
}
