// Package config provides configuration loading and management for GoDBVault
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LocalStorageConfig defines local filesystem storage settings
type LocalStorageConfig struct {
	Directory string `yaml:"directory"`
}

// S3StorageConfig defines S3 storage settings
type S3StorageConfig struct {
	Bucket             string `yaml:"bucket"`
	Region             string `yaml:"region"`
	Endpoint           string `yaml:"endpoint"`
	AccessKey          string `yaml:"accessKey"`
	SecretKey          string `yaml:"secretKey"`
	Prefix             string `yaml:"prefix"`
	PathStyle          bool   `yaml:"pathStyle"`          // Use path-style access for S3
	UseSSL             bool   `yaml:"useSSL"`
	CustomCAPath       string `yaml:"customCAPath"`       // Path to custom CA certificate
	SkipCertValidation bool   `yaml:"skipCertValidation"` // Skip certificate validation
}

// FTPStorageConfig defines FTP storage settings
type FTPStorageConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Directory string `yaml:"directory"`
}

// StorageConfig selects and configures the backup storage backend
type StorageConfig struct {
	Type  string             `yaml:"type"` // local, s3, or ftp
	Local LocalStorageConfig `yaml:"local"`
	S3    S3StorageConfig    `yaml:"s3"`
	FTP   FTPStorageConfig   `yaml:"ftp"`
}

// RegistryDBConfig defines connection settings for the profile/artifact registry
type RegistryDBConfig struct {
	Driver          string `yaml:"driver"` // sqlite, mysql, or postgres
	Path            string `yaml:"path"`   // sqlite file path
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnMaxLifetime string `yaml:"connMaxLifetime"`
	AutoMigrate     bool   `yaml:"autoMigrate"`
}

// EncryptionConfig defines the credential cipher settings
type EncryptionConfig struct {
	Key string `yaml:"key"`
}

// PoolConfig defines the connection pool manager settings
type PoolConfig struct {
	Size int `yaml:"size"` // physical connections per fingerprint
}

// TasksConfig defines background task runner settings
type TasksConfig struct {
	HistoryPath string `yaml:"historyPath"` // optional JSON snapshot of task history
}

// ScheduleConfig defines one recurring backup job
type ScheduleConfig struct {
	Name    string `yaml:"name"`
	Profile string `yaml:"profile"` // connection profile name to back up
	Cron    string `yaml:"cron"`
}

// APIConfig defines API server settings
type APIConfig struct {
	Port string `yaml:"port"`
}

// MetricsConfig defines metrics server settings
type MetricsConfig struct {
	Port string `yaml:"port"`
}

// AppConfig contains the complete application configuration
type AppConfig struct {
	Storage    StorageConfig    `yaml:"storage"`
	RegistryDB RegistryDBConfig `yaml:"registry_database"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Pool       PoolConfig       `yaml:"pool"`
	Tasks      TasksConfig      `yaml:"tasks"`
	Schedules  []ScheduleConfig `yaml:"schedules"`
	API        APIConfig        `yaml:"api"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Debug      bool             `yaml:"debug"`
	ConfigFile string           `yaml:"-"`
}

// CFG is the global configuration object
var CFG AppConfig

// LoadConfiguration loads configuration from an optional YAML file and the
// environment. Environment variables take precedence over file values.
func LoadConfiguration() {
	log.Println("Loading configuration...")

	// Defaults that are true must be seeded before the file overlay, or an
	// explicit false in the file could not be told apart from unset.
	CFG.RegistryDB.AutoMigrate = true

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFromFile(path); err != nil {
			log.Fatalf("Failed to load config file %s: %v", path, err)
		}
		CFG.ConfigFile = path
	}

	loadFromEnvironment()
}

// loadFromFile overlays configuration from a YAML file onto CFG
func loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &CFG); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	log.Printf("Loaded configuration from file: %s", path)
	return nil
}

// loadFromEnvironment loads configuration from environment variables. Values
// already set from the config file survive unless an env var overrides them.
func loadFromEnvironment() {
	// Debug setting
	CFG.Debug = parseEnvBool("DEBUG", CFG.Debug)

	// Storage settings
	CFG.Storage.Type = getEnvOrDefault("STORAGE_TYPE", CFG.Storage.Type)
	CFG.Storage.Local.Directory = getEnvOrDefault("LOCAL_BACKUP_DIRECTORY", CFG.Storage.Local.Directory)

	CFG.Storage.S3.Bucket = getEnvOrDefault("S3_BUCKET", CFG.Storage.S3.Bucket)
	CFG.Storage.S3.Region = getEnvOrDefault("S3_REGION", CFG.Storage.S3.Region)
	CFG.Storage.S3.Endpoint = getEnvOrDefault("S3_ENDPOINT", CFG.Storage.S3.Endpoint)
	CFG.Storage.S3.AccessKey = getEnvOrDefault("S3_ACCESS_KEY", CFG.Storage.S3.AccessKey)
	CFG.Storage.S3.SecretKey = getEnvOrDefault("S3_SECRET_KEY", CFG.Storage.S3.SecretKey)
	CFG.Storage.S3.Prefix = getEnvOrDefault("S3_PREFIX", CFG.Storage.S3.Prefix)
	CFG.Storage.S3.PathStyle = parseEnvBool("S3_PATH_STYLE", CFG.Storage.S3.PathStyle)
	CFG.Storage.S3.UseSSL = parseEnvBool("S3_USE_SSL", CFG.Storage.S3.UseSSL)
	CFG.Storage.S3.CustomCAPath = getEnvOrDefault("S3_CUSTOM_CA_PATH", CFG.Storage.S3.CustomCAPath)
	CFG.Storage.S3.SkipCertValidation = parseEnvBool("S3_SKIP_CERT_VALIDATION", CFG.Storage.S3.SkipCertValidation)

	CFG.Storage.FTP.Host = getEnvOrDefault("FTP_HOST", CFG.Storage.FTP.Host)
	CFG.Storage.FTP.Port = parseEnvInt("FTP_PORT", CFG.Storage.FTP.Port)
	CFG.Storage.FTP.Username = getEnvOrDefault("FTP_USER", CFG.Storage.FTP.Username)
	CFG.Storage.FTP.Password = getEnvOrDefault("FTP_PASSWORD", CFG.Storage.FTP.Password)
	CFG.Storage.FTP.Directory = getEnvOrDefault("FTP_DIR", CFG.Storage.FTP.Directory)

	// Registry database settings
	CFG.RegistryDB.Driver = getEnvOrDefault("REGISTRY_DB_DRIVER", CFG.RegistryDB.Driver)
	CFG.RegistryDB.Path = getEnvOrDefault("REGISTRY_DB_PATH", CFG.RegistryDB.Path)
	CFG.RegistryDB.Host = getEnvOrDefault("REGISTRY_DB_HOST", CFG.RegistryDB.Host)
	CFG.RegistryDB.Port = parseEnvInt("REGISTRY_DB_PORT", CFG.RegistryDB.Port)
	CFG.RegistryDB.Username = getEnvOrDefault("REGISTRY_DB_USERNAME", CFG.RegistryDB.Username)
	CFG.RegistryDB.Password = getEnvOrDefault("REGISTRY_DB_PASSWORD", CFG.RegistryDB.Password)
	CFG.RegistryDB.Database = getEnvOrDefault("REGISTRY_DB_DATABASE", CFG.RegistryDB.Database)
	CFG.RegistryDB.MaxOpenConns = parseEnvInt("REGISTRY_DB_MAX_OPEN_CONNS", CFG.RegistryDB.MaxOpenConns)
	CFG.RegistryDB.MaxIdleConns = parseEnvInt("REGISTRY_DB_MAX_IDLE_CONNS", CFG.RegistryDB.MaxIdleConns)
	CFG.RegistryDB.ConnMaxLifetime = getEnvOrDefault("REGISTRY_DB_CONN_MAX_LIFETIME", CFG.RegistryDB.ConnMaxLifetime)
	CFG.RegistryDB.AutoMigrate = parseEnvBool("REGISTRY_DB_AUTO_MIGRATE", CFG.RegistryDB.AutoMigrate)

	// Encryption settings
	CFG.Encryption.Key = getEnvOrDefault("ENCRYPTION_KEY", CFG.Encryption.Key)

	// Pool settings
	CFG.Pool.Size = parseEnvInt("POOL_SIZE", CFG.Pool.Size)

	// Task runner settings
	CFG.Tasks.HistoryPath = getEnvOrDefault("TASK_HISTORY_PATH", CFG.Tasks.HistoryPath)

	// Server ports
	CFG.API.Port = getEnvOrDefault("API_PORT", CFG.API.Port)
	CFG.Metrics.Port = getEnvOrDefault("METRICS_PORT", CFG.Metrics.Port)

	// Note: backup schedules can only be configured via the config file
	setDefaults()

	if CFG.Debug {
		log.Println("Configuration loaded from environment")
	}
}

// setDefaults ensures all config fields have reasonable default values
func setDefaults() {
	if CFG.Storage.Type == "" {
		CFG.Storage.Type = "local"
	}
	CFG.Storage.Type = strings.ToLower(CFG.Storage.Type)

	if CFG.Storage.Local.Directory == "" {
		CFG.Storage.Local.Directory = "/backups"
	}

	if CFG.Storage.S3.Region == "" {
		CFG.Storage.S3.Region = "us-east-1"
	}

	if CFG.Storage.FTP.Port == 0 {
		CFG.Storage.FTP.Port = 21
	}
	if CFG.Storage.FTP.Directory == "" {
		CFG.Storage.FTP.Directory = "/"
	}

	if CFG.RegistryDB.Driver == "" {
		CFG.RegistryDB.Driver = "sqlite"
	}
	CFG.RegistryDB.Driver = strings.ToLower(CFG.RegistryDB.Driver)

	if CFG.RegistryDB.Path == "" {
		CFG.RegistryDB.Path = "godbvault.db"
	}
	if CFG.RegistryDB.Host == "" {
		CFG.RegistryDB.Host = "localhost"
	}
	if CFG.RegistryDB.Port == 0 {
		switch CFG.RegistryDB.Driver {
		case "postgres":
			CFG.RegistryDB.Port = 5432
		default:
			CFG.RegistryDB.Port = 3306
		}
	}
	if CFG.RegistryDB.Database == "" {
		CFG.RegistryDB.Database = "godbvault"
	}
	if CFG.RegistryDB.MaxOpenConns == 0 {
		CFG.RegistryDB.MaxOpenConns = 10
	}
	if CFG.RegistryDB.MaxIdleConns == 0 {
		CFG.RegistryDB.MaxIdleConns = 5
	}
	if CFG.RegistryDB.ConnMaxLifetime == "" {
		CFG.RegistryDB.ConnMaxLifetime = "5m"
	}

	if CFG.Pool.Size == 0 {
		CFG.Pool.Size = 10
	}

	if CFG.API.Port == "" {
		CFG.API.Port = "8888"
	}
	if CFG.Metrics.Port == "" {
		CFG.Metrics.Port = "8080"
	}
}

// Helper functions for environment variables

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if defaultValue != "" && os.Getenv("DEBUG") == "true" {
		log.Printf("Environment variable %s not set. Using default: %s", key, defaultValue)
	}
	return defaultValue
}

func parseEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value = strings.ToLower(value)

	// Handle additional truthy and falsy values
	switch value {
	case "1", "t", "true", "yes", "on", "enabled":
		return true
	case "0", "f", "false", "no", "off", "disabled":
		return false
	default:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("Error parsing %s as bool: %v. Using default value: %t", key, err, defaultValue)
			return defaultValue
		}
		return boolValue
	}
}

func parseEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error parsing %s as int: %v. Using default value: %d", key, err, defaultValue)
		return defaultValue
	}
	return intValue
}

// DisplayConfiguration outputs the current configuration in a readable format
// while masking sensitive information
func DisplayConfiguration() {
	log.Println("========== GoDBVault Configuration ==========")

	log.Printf("Debug Mode: %t", CFG.Debug)
	if CFG.ConfigFile != "" {
		log.Printf("Config File: %s", CFG.ConfigFile)
	}

	log.Println("\n----- Storage Configuration -----")
	log.Printf("Type: %s", CFG.Storage.Type)
	switch CFG.Storage.Type {
	case "s3":
		log.Printf("Bucket: %s", CFG.Storage.S3.Bucket)
		log.Printf("Region: %s", CFG.Storage.S3.Region)
		log.Printf("Endpoint: %s", CFG.Storage.S3.Endpoint)
		log.Printf("Access Key: %s", maskSensitiveInfo(CFG.Storage.S3.AccessKey))
		log.Printf("Secret Key: %s", maskSensitiveInfo(CFG.Storage.S3.SecretKey))
		log.Printf("Prefix: %s", CFG.Storage.S3.Prefix)
		log.Printf("Path Style: %t", CFG.Storage.S3.PathStyle)
		log.Printf("Use SSL: %t", CFG.Storage.S3.UseSSL)
		log.Printf("Custom CA Path: %s", CFG.Storage.S3.CustomCAPath)
		log.Printf("Skip Cert Validation: %t", CFG.Storage.S3.SkipCertValidation)
	case "ftp":
		log.Printf("Host: %s", CFG.Storage.FTP.Host)
		log.Printf("Port: %d", CFG.Storage.FTP.Port)
		log.Printf("Username: %s", CFG.Storage.FTP.Username)
		log.Printf("Password: %s", maskSensitiveInfo(CFG.Storage.FTP.Password))
		log.Printf("Directory: %s", CFG.Storage.FTP.Directory)
	default:
		log.Printf("Directory: %s", CFG.Storage.Local.Directory)
	}

	log.Println("\n----- Registry Database Configuration -----")
	log.Printf("Driver: %s", CFG.RegistryDB.Driver)
	if CFG.RegistryDB.Driver == "sqlite" {
		log.Printf("Path: %s", CFG.RegistryDB.Path)
	} else {
		log.Printf("Host: %s", CFG.RegistryDB.Host)
		log.Printf("Port: %d", CFG.RegistryDB.Port)
		log.Printf("Username: %s", CFG.RegistryDB.Username)
		log.Printf("Password: %s", maskSensitiveInfo(CFG.RegistryDB.Password))
		log.Printf("Database: %s", CFG.RegistryDB.Database)
	}
	log.Printf("Max Open Connections: %d", CFG.RegistryDB.MaxOpenConns)
	log.Printf("Max Idle Connections: %d", CFG.RegistryDB.MaxIdleConns)
	log.Printf("Connection Max Lifetime: %s", CFG.RegistryDB.ConnMaxLifetime)
	log.Printf("Auto Migrate: %t", CFG.RegistryDB.AutoMigrate)

	log.Println("\n----- Connection Pool Configuration -----")
	log.Printf("Connections per fingerprint: %d", CFG.Pool.Size)

	log.Println("\n----- Encryption Configuration -----")
	log.Printf("Key: %s", maskSensitiveInfo(CFG.Encryption.Key))

	log.Println("\n----- Schedules -----")
	if len(CFG.Schedules) > 0 {
		for _, s := range CFG.Schedules {
			log.Printf("  %s: profile=%s cron=%q", s.Name, s.Profile, s.Cron)
		}
	} else {
		log.Println("  [No recurring backups configured]")
	}

	log.Println("\n----- Servers -----")
	log.Printf("API Port: %s", CFG.API.Port)
	log.Printf("Metrics Port: %s", CFG.Metrics.Port)
	if CFG.Tasks.HistoryPath != "" {
		log.Printf("Task History: %s", CFG.Tasks.HistoryPath)
	}

	log.Println("============================================")
}

// maskSensitiveInfo masks sensitive information for logging
func maskSensitiveInfo(info string) string {
	if info == "" {
		return "[not set]"
	}

	if len(info) <= 4 {
		return "****"
	}

	// Show first and last character, mask the rest
	return info[:2] + "****" + info[len(info)-2:]
}

// ValidateConfig validates the configuration
func ValidateConfig() error {
	switch CFG.Storage.Type {
	case "local":
		if CFG.Storage.Local.Directory == "" {
			return fmt.Errorf("local backup directory must be specified when local storage is selected")
		}
	case "s3":
		if CFG.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket must be specified when S3 storage is selected")
		}
		if CFG.Storage.S3.AccessKey == "" || CFG.Storage.S3.SecretKey == "" {
			return fmt.Errorf("S3 access key and secret key must be specified when S3 storage is selected")
		}
		if CFG.Storage.S3.CustomCAPath != "" {
			if _, err := os.Stat(CFG.Storage.S3.CustomCAPath); err != nil {
				return fmt.Errorf("custom CA path %s is not accessible: %w", CFG.Storage.S3.CustomCAPath, err)
			}
		}
		if CFG.Storage.S3.CustomCAPath != "" && CFG.Storage.S3.SkipCertValidation {
			log.Printf("Warning: Both custom CA path and skip certificate validation are set. Custom CA will be ignored.")
		}
	case "ftp":
		if CFG.Storage.FTP.Host == "" {
			return fmt.Errorf("FTP host must be specified when FTP storage is selected")
		}
	default:
		return fmt.Errorf("unsupported storage type: %q (expected local, s3, or ftp)", CFG.Storage.Type)
	}

	switch CFG.RegistryDB.Driver {
	case "sqlite":
		if CFG.RegistryDB.Path == "" {
			return fmt.Errorf("registry database path is required for the sqlite driver")
		}
	case "mysql", "postgres":
		if CFG.RegistryDB.Host == "" {
			return fmt.Errorf("registry database host is required for the %s driver", CFG.RegistryDB.Driver)
		}
		if CFG.RegistryDB.Username == "" {
			return fmt.Errorf("registry database username is required for the %s driver", CFG.RegistryDB.Driver)
		}
		if CFG.RegistryDB.Database == "" {
			return fmt.Errorf("registry database name is required for the %s driver", CFG.RegistryDB.Driver)
		}
	default:
		return fmt.Errorf("unsupported registry database driver: %q (expected sqlite, mysql, or postgres)", CFG.RegistryDB.Driver)
	}

	if CFG.Encryption.Key == "" {
		return fmt.Errorf("ENCRYPTION_KEY must be set: profile credentials are encrypted at rest")
	}

	if CFG.Pool.Size < 1 {
		return fmt.Errorf("pool size must be at least 1")
	}

	for _, s := range CFG.Schedules {
		if s.Profile == "" {
			return fmt.Errorf("schedule %q has no profile", s.Name)
		}
		if s.Cron == "" {
			return fmt.Errorf("schedule %q has no cron expression", s.Name)
		}
	}

	return nil
}
