package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/historiar/monument-assets/pkg/assetversion"
	repomemory "github.com/historiar/monument-assets/pkg/assetversion/repo/memory"
	repopg "github.com/historiar/monument-assets/pkg/assetversion/repo/postgres"
	fsstorage "github.com/historiar/monument-assets/pkg/assetversion/storage/fs"
	memorystorage "github.com/historiar/monument-assets/pkg/assetversion/storage/memory"
	s3storage "github.com/historiar/monument-assets/pkg/assetversion/storage/s3"
	"github.com/historiar/monument-assets/pkg/assetversion/urlresolve"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of
// library defaults.
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
		Port:                  "8080",
		Environment:           "development",
		DatabaseType:          "memory",
		DBSchema:              "assets",
		DefaultStorageBackend: "memory",
		StorageBackends: []StorageBackendConfig{
			{Name: "memory", Type: "memory", Config: map[string]interface{}{}},
		},
		EnableEventLogging: true,
	}
}

// ServerConfig represents server configuration for the monument assets service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use (default: assets)

	// Storage configuration
	DefaultStorageBackend string
	StorageBackends       []StorageBackendConfig

	// CDNBaseURL, when set, makes public URLs point at the CDN instead of
	// asking the backend for presigned URLs
	CDNBaseURL string

	EnableEventLogging bool
}

// StorageBackendConfig represents configuration for a storage backend
type StorageBackendConfig struct {
	Name   string
	Type   string // "memory", "fs", "s3"
	Config map[string]interface{}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	found := false
	for _, backend := range c.StorageBackends {
		if backend.Name == c.DefaultStorageBackend {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("default storage backend '%s' not found in configured backends", c.DefaultStorageBackend)
	}

	return nil
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService() (assetversion.Service, error) {
	var options []assetversion.Option

	repo, err := c.BuildRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	options = append(options, assetversion.WithRepository(repo))

	for _, backendConfig := range c.StorageBackends {
		store, err := c.buildStorageBackend(backendConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to build storage backend %s: %w", backendConfig.Name, err)
		}
		options = append(options, assetversion.WithBlobStore(backendConfig.Name, store))
	}
	options = append(options, assetversion.WithDefaultBackend(c.DefaultStorageBackend))

	if c.CDNBaseURL != "" {
		options = append(options, assetversion.WithURLResolver(urlresolve.NewCDNResolver(c.CDNBaseURL)))
	}

	if c.EnableEventLogging {
		options = append(options, assetversion.WithEventSink(assetversion.NewLoggingEventSink(nil)))
	}

	return assetversion.New(options...)
}

// BuildRepository creates a Repository based on the configuration
func (c *ServerConfig) BuildRepository() (assetversion.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return repomemory.New(), nil
	case "postgres":
		if c.DatabaseURL == "" {
			return nil, errors.New("database_url is required for postgres")
		}
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		schema := c.DBSchema
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if schema == "" {
				return nil
			}
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
			return err
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// BuildStorageBackend creates the named storage backend from configuration
func (c *ServerConfig) BuildStorageBackend(name string) (assetversion.BlobStore, error) {
	for _, backendConfig := range c.StorageBackends {
		if backendConfig.Name == name {
			return c.buildStorageBackend(backendConfig)
		}
	}
	return nil, fmt.Errorf("%w: %s", assetversion.ErrStorageBackendNotFound, name)
}

func (c *ServerConfig) buildStorageBackend(backendConfig StorageBackendConfig) (assetversion.BlobStore, error) {
	switch backendConfig.Type {
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		fsConfig := fsstorage.Config{
			BaseDir:   stringValue(backendConfig.Config, "base_dir"),
			URLPrefix: stringValue(backendConfig.Config, "url_prefix"),
		}
		return fsstorage.New(fsConfig)
	case "s3":
		s3Config := s3storage.Config{
			Region:                 stringValue(backendConfig.Config, "region"),
			Bucket:                 stringValue(backendConfig.Config, "bucket"),
			AccessKeyID:            stringValue(backendConfig.Config, "access_key_id"),
			SecretAccessKey:        stringValue(backendConfig.Config, "secret_access_key"),
			Endpoint:               stringValue(backendConfig.Config, "endpoint"),
			UsePathStyle:           boolValue(backendConfig.Config, "use_path_style"),
			PresignDuration:        intValue(backendConfig.Config, "presign_duration"),
			CreateBucketIfNotExist: boolValue(backendConfig.Config, "create_bucket_if_not_exist"),
		}
		return s3storage.New(s3Config)
	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", backendConfig.Type)
	}
}

func stringValue(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func boolValue(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

func intValue(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
