package config

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/driftworks/syncbridge/pkg/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var configTemplate = `# config.toml

# Check for updates
# Default is: true
check_for_updates = true

# Session secret
# This is a randomly generated secret key for session management.
# It will be generated automatically on the first run if not set.
session_secret = "{{ .sessionSecret }}"

[server]
  # Hostname or IP address for the server to listen on.
  # Default: "{{ .host }}" (e.g., "127.0.0.1" for local access, "0.0.0.0" for all interfaces, especially in Docker)
  host = "{{ .host }}"

  # Port for the server to listen on.
  # Default: 8282
  port = 8282

  # Base URL for serving the application under a subdirectory.
  # Leave empty if serving from the root or using a subdomain.
  # Optional.
  # Default: ""
  #base_url = ""

[database]
  # Database type to use.
  # Supported: "sqlite", "postgres"
  # Optional.
  # Default: "sqlite"
  type = "sqlite"

  # --- PostgreSQL Settings ---
  # These settings are only used if database.type is set to "postgres".
  [database.postgres]
    # Hostname or IP address of the PostgreSQL server.
    # Default: "localhost"
    host = "localhost"

    # Port of the PostgreSQL server.
    # Default: 5432
    port = 5432

    # Name of the PostgreSQL database.
    # Default: "postgres"
    database = "postgres"

    # Username for connecting to the PostgreSQL database.
    # Default: "postgres"
    user = "postgres"

    # Password for the PostgreSQL user.
    # Default: "postgres"
    pass = "postgres"

    # PostgreSQL SSL mode.
    # Options: "disable", "allow", "prefer", "require", "verify-ca", "verify-full"
    # Default: "disable"
    ssl_mode = "disable"

[logging]
  # Log file path.
  # If empty or not set, logs will be written to standard output (stdout).
  # Use forward slashes for paths (e.g., "log/").
  # Optional.
  # Default: ""
  path = "log/"

  # Log level.
  # Options: "ERROR", "WARN", "INFO", "DEBUG", "TRACE"
  # Default: "DEBUG"
  level = "DEBUG"

  # Maximum size of a log file in megabytes (MB) before it is rotated.
  # Default: 50
  max_file_size = 50

  # Maximum number of old log files to keep.
  # Default: 3
  max_backup_count = 3

[valkey]
  # Valkey server address (e.g., "localhost:6379").
  # Default: "localhost:6379"
  address = "localhost:6379"

  # Password for Valkey server.
  # Default: "syncbridge" (matches Docker configuration)
  password = "syncbridge"

  # Valkey database number.
  # Default: 0
  db = 0

[rate_limit]
  # Enable rate limiting for sync and connect endpoints
  # Default: true
  enabled = true

  # Maximum number of requests allowed per time window
  # Default: 20
  requests_per_minute = 20

  # Time window in seconds for rate limiting
  # Default: 60 (1 minute)
  window_seconds = 60

  # Comma-separated list of internal IPs exempt from rate limiting
  # Default: "127.0.0.1,::1"
  exempt_internal_ips = "127.0.0.1,::1"

[oauth]
  # Failed callback attempts per state before the state is locked out.
  # Default: 5
  max_callback_failures = 5

  # How long a locked out state stays blocked, in minutes.
  # Default: 30
  lockout_minutes = 30

  # Each provider needs an app registration with the redirect URL below.
  # A provider with an empty client_id is not connectable.
  [oauth.google]
    client_id = ""
    client_secret = ""
    redirect_url = "http://127.0.0.1:8282/api/oauth/callback"

  [oauth.azure]
    client_id = ""
    client_secret = ""
    redirect_url = "http://127.0.0.1:8282/api/oauth/callback"
    # Azure AD tenant. "common" accepts any directory.
    tenant = "common"

  [oauth.dropbox]
    client_id = ""
    client_secret = ""
    redirect_url = "http://127.0.0.1:8282/api/oauth/callback"

  [oauth.notion]
    client_id = ""
    client_secret = ""
    redirect_url = "http://127.0.0.1:8282/api/oauth/callback"

  [oauth.github]
    client_id = ""
    client_secret = ""
    redirect_url = "http://127.0.0.1:8282/api/oauth/callback"

[sync_sweep]
  # Enable scheduled cleanup of sync users whose connect flow never finished
  # Default: true
  enabled = true

  # Cron schedule for the sweep job
  # Default: "0 3 * * *" (3 AM daily)
  schedule = "0 3 * * *"

  # Age in hours after which a credential-less sync user counts as abandoned
  # Default: 24
  max_age_hours = 24

  # Maximum number of sync users removed per run
  # Default: 500
  batch_size = 500
`

var generateRandomString = func(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func writeConfig(configPath string, configFile string) error {
	cfgPath := filepath.Join(configPath, configFile)

	// check if configPath exists, if not create it
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		err := os.MkdirAll(configPath, os.ModePerm)
		if err != nil {
			log.Println(err)
			return err
		}
	}

	// check if config exists, if not create it
	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		// set default host
		host := "127.0.0.1"

		if _, dockerErr := os.Stat("/.dockerenv"); dockerErr == nil {
			host = "0.0.0.0"
		} else if pd, cgroupErr := os.Open("/proc/1/cgroup"); cgroupErr == nil {
			defer func(pd *os.File) {
				if errClose := pd.Close(); errClose != nil {
					log.Printf("error closing proc/cgroup: %q", errClose)
				}
			}(pd)
			b := make([]byte, 4096)
			_, readErr := pd.Read(b)
			if readErr != nil {
				log.Printf("error reading /proc/1/cgroup: %v", readErr)
			} else {
				if strings.Contains(string(b), "/docker") || strings.Contains(string(b), "/lxc") {
					host = "0.0.0.0"
				}
			}
		}

		f, createErr := os.Create(cfgPath)
		if createErr != nil {
			log.Printf("error creating file: %q", createErr)
			return createErr
		}
		defer func(f *os.File) {
			if errClose := f.Close(); errClose != nil {
				log.Printf("error closing file: %q", errClose)
			}
		}(f)

		sessionSecretVal, secretErr := generateRandomString(16)
		if secretErr != nil {
			log.Printf("Failed to generate session secret: %v. Using a default placeholder.", secretErr)
			sessionSecretVal = "fallback-please-replace-this-secret-immediately"
		}

		tmpl, tmplErr := template.New("config").Parse(configTemplate)
		if tmplErr != nil {
			return errors.Wrap(tmplErr, "could not create config template")
		}

		tmplVars := map[string]string{
			"host":          host,
			"sessionSecret": sessionSecretVal,
		}

		var buffer bytes.Buffer
		if execErr := tmpl.Execute(&buffer, &tmplVars); execErr != nil {
			return errors.Wrap(execErr, "could not write config template output")
		}

		if _, writeErr := f.WriteString(buffer.String()); writeErr != nil {
			log.Printf("error writing contents to file: %v %q", configPath, writeErr)
			return writeErr
		}

		return f.Sync()
	}

	return nil
}

type AppConfig struct {
	Config *domain.Config
	m      sync.Mutex
}

func New(configPath string, version string) *AppConfig {
	c := &AppConfig{}
	c.defaults()
	c.Config.Version = version
	c.Config.ConfigPath = configPath

	c.load(configPath)

	return c
}

func (c *AppConfig) defaults() {
	c.Config = &domain.Config{
		Version:         "dev", // internal, not from toml
		ConfigPath:      "",
		CheckForUpdates: true,
		SessionSecret:   "secret-session-key", // overwritten by generated secret on first run
		Server: domain.ServerConfig{
			Host:    "127.0.0.1",
			Port:    8282,
			BaseURL: "",
		},
		Database: domain.DatabaseConfig{
			Type: "sqlite",
			Postgres: domain.PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "postgres",
				User:     "postgres",
				Pass:     "postgres",
				SslMode:  "disable",
			},
		},
		Logging: domain.LoggingConfig{
			Path:           "",
			Level:          "DEBUG",
			MaxFileSize:    50,
			MaxBackupCount: 3,
		},
		Valkey: domain.ValkeyConfig{
			Address:  "localhost:6379",
			Password: "syncbridge",
			DB:       0,
		},
		OAuth: domain.OAuthConfig{
			MaxCallbackFailures: 5,
			LockoutMinutes:      30,
		},
		RateLimit: domain.RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 20,
			WindowSeconds:     60,
			ExemptInternalIPs: "127.0.0.1,::1",
		},
		SyncSweep: domain.SyncSweepConfig{
			Enabled:     true,
			Schedule:    "0 3 * * *",
			MaxAgeHours: 24,
			BatchSize:   500,
		},
	}
}

func (c *AppConfig) load(configPath string) {
	viper.SetConfigType("toml")
	configPath = path.Clean(configPath)

	if configPath != "" {
		if err := writeConfig(configPath, "config.toml"); err != nil {
			log.Printf("writeConfig error during load: %q", err)
			// continue; defaults still apply and the file may exist partially
		}
		viper.SetConfigFile(path.Join(configPath, "config.toml"))
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/syncbridge")
		viper.AddConfigPath("$HOME/.syncbridge")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Config file not found, using defaults: %s", viper.ConfigFileUsed())
		} else {
			log.Printf("Config read error: %q. Using defaults.", err)
		}
	}

	if err := viper.Unmarshal(&c.Config); err != nil {
		log.Fatalf("Could not unmarshal config file into struct: %v. Config file used: %s", err, viper.ConfigFileUsed())
	}
}

func (c *AppConfig) DynamicReload(log logger.Logger) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		c.m.Lock()
		defer c.m.Unlock()

		log.Info().Msgf("Config file changed: %s. Reloading configuration.", e.Name)

		if err := viper.ReadInConfig(); err != nil {
			log.Error().Err(err).Msg("Error reading config file during dynamic reload")
			return
		}

		var newConfig domain.Config
		// version and configPath are not file-backed
		newConfig.Version = c.Config.Version
		newConfig.ConfigPath = c.Config.ConfigPath

		if err := viper.Unmarshal(&newConfig); err != nil {
			log.Error().Err(err).Msg("Error unmarshalling config during dynamic reload")
			return
		}

		c.Config = &newConfig

		log.SetLogLevel(c.Config.Logging.Level)

		log.Debug().Msg("Configuration reloaded successfully!")
	})
	viper.WatchConfig()
}
