package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	DatabasePath   string         `json:"databasePath"`
	DatabaseURL    string         `json:"databaseUrl"`
	ThemeStorage   ThemeStorage   `json:"themeStorage"`
	ProjectStorage ProjectStorage `json:"projectStorage"`
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// ThemeStorage configuration for the on-disk theme store
type ThemeStorage struct {
	BasePath         string `json:"basePath"`
	MaxPackageSizeMB int64  `json:"maxPackageSizeMB"`
	GeneratePreviews bool   `json:"generatePreviews"`
}

// ProjectStorage configuration for project working folders
type ProjectStorage struct {
	BasePath string `json:"basePath"`
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		DatabasePath: "loomsite.db",
		ThemeStorage: ThemeStorage{
			BasePath:         "./themes",
			MaxPackageSizeMB: 100,
			GeneratePreviews: true,
		},
		ProjectStorage: ProjectStorage{
			BasePath: "./projects",
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	// Try to load from config file
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override from environment variables
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if basePath := os.Getenv("THEME_STORAGE_PATH"); basePath != "" {
		cfg.ThemeStorage.BasePath = basePath
	}
	if basePath := os.Getenv("PROJECT_STORAGE_PATH"); basePath != "" {
		cfg.ProjectStorage.BasePath = basePath
	}
	if maxSize := os.Getenv("THEME_MAX_PACKAGE_SIZE_MB"); maxSize != "" {
		if mb, err := strconv.ParseInt(maxSize, 10, 64); err == nil && mb > 0 {
			cfg.ThemeStorage.MaxPackageSizeMB = mb
		}
	}
	if previews := os.Getenv("THEME_GENERATE_PREVIEWS"); previews != "" {
		cfg.ThemeStorage.GeneratePreviews = previews == "true" || previews == "1"
	}

	// Ensure storage directories exist and are absolute
	for _, basePath := range []*string{&cfg.ThemeStorage.BasePath, &cfg.ProjectStorage.BasePath} {
		if err := os.MkdirAll(*basePath, 0755); err != nil {
			return nil, err
		}
		absPath, err := filepath.Abs(*basePath)
		if err != nil {
			return nil, err
		}
		*basePath = absPath
	}

	return cfg, nil
}
