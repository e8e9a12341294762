package domain

// ServerConfig holds server-related settings
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
}

// PostgresConfig holds PostgreSQL-specific settings
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"username"`
	Pass     string `mapstructure:"password"`
	SslMode  string `mapstructure:"ssl_mode"`
}

// DatabaseConfig holds general database settings and nested specific configs
type DatabaseConfig struct {
	Type     string         `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Path           string `mapstructure:"path"`
	Level          string `mapstructure:"level"`
	MaxFileSize    int    `mapstructure:"max_file_size"`
	MaxBackupCount int    `mapstructure:"max_backup_count"`
}

// ValkeyConfig holds Valkey-specific settings
type ValkeyConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// OAuthProviderConfig holds one provider's app registration. Tenant is only
// meaningful for azure, where it selects the directory endpoint.
type OAuthProviderConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
	Tenant       string   `mapstructure:"tenant"`
}

// OAuthConfig holds the connect flow settings for every supported provider
// plus the callback lockout knobs backed by valkey.
type OAuthConfig struct {
	Google  OAuthProviderConfig `mapstructure:"google"`
	Azure   OAuthProviderConfig `mapstructure:"azure"`
	Dropbox OAuthProviderConfig `mapstructure:"dropbox"`
	Notion  OAuthProviderConfig `mapstructure:"notion"`
	GitHub  OAuthProviderConfig `mapstructure:"github"`

	MaxCallbackFailures int `mapstructure:"max_callback_failures"`
	LockoutMinutes      int `mapstructure:"lockout_minutes"`
}

// RateLimitConfig holds settings for the sliding-window request limiter
// backed by valkey.
type RateLimitConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	WindowSeconds     int    `mapstructure:"window_seconds"`
	ExemptInternalIPs string `mapstructure:"exempt_internal_ips"`
}

// SyncSweepConfig holds settings for the scheduled job that removes connect
// attempts whose OAuth callback never arrived.
type SyncSweepConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Schedule    string `mapstructure:"schedule"`
	MaxAgeHours int    `mapstructure:"max_age_hours"`
	BatchSize   int    `mapstructure:"batch_size"`
}

// Config holds the application's configuration, mapped from config.toml
type Config struct {
	Version         string // not from config file
	ConfigPath      string // internal use
	CheckForUpdates bool   `mapstructure:"check_for_updates"`
	SessionSecret   string `mapstructure:"session_secret"`

	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	OAuth     OAuthConfig     `mapstructure:"oauth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	SyncSweep SyncSweepConfig `mapstructure:"sync_sweep"`
}

// ConfigUpdate carries the fields the config API may patch at runtime.
type ConfigUpdate struct {
	Host            *string `json:"host,omitempty"`
	Port            *int    `json:"port,omitempty"`
	LogLevel        *string `json:"log_level,omitempty"`
	LogPath         *string `json:"log_path,omitempty"`
	BaseURL         *string `json:"base_url,omitempty"`
	CheckForUpdates *bool   `json:"check_for_updates,omitempty"`
}
