// Package config provides configuration types and loading for the gateway.
package config

// Config is the top-level gateway configuration.
type Config struct {
	// Server configures the inbound HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Upstream configures the outbound session client.
	Upstream UpstreamConfig `yaml:"upstream" mapstructure:"upstream"`

	// Auth configures inbound API key authentication.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Classifier overrides how upstream responses are judged.
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`

	// Trail configures the persistent call trail.
	Trail TrailConfig `yaml:"trail" mapstructure:"trail"`

	// Telemetry configures tracing.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// ServerConfig configures the inbound HTTP server. TLS on the inbound side
// is delegated to a reverse proxy; the mTLS identity lives on the outbound
// side.
type ServerConfig struct {
	// Addr is the listen address. Defaults to "127.0.0.1:8000".
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level: debug, info, warn, error.
	// Defaults to "info".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// UpstreamConfig configures the outbound session client.
type UpstreamConfig struct {
	// BaseURL is the upstream REST base, e.g.
	// "https://financiart.anaf.ro/BANCIWS/rest/".
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`

	// ClientCert and ClientKey are the PEM files of the mTLS identity the
	// access-control layer authenticates.
	ClientCert string `yaml:"client_cert" mapstructure:"client_cert" validate:"required"`
	ClientKey  string `yaml:"client_key" mapstructure:"client_key" validate:"required"`

	// TrustPolicy is "system", "insecure", or a CA bundle path.
	// Defaults to "system".
	TrustPolicy string `yaml:"trust_policy" mapstructure:"trust_policy" validate:"omitempty,trust_policy"`

	// ClientID is the distinguishing User-Agent on every outbound call.
	ClientID string `yaml:"client_id" mapstructure:"client_id"`

	// BootstrapEndpoint is the endpoint probed to establish the session.
	// Defaults to "listaMesaje".
	BootstrapEndpoint string `yaml:"bootstrap_endpoint" mapstructure:"bootstrap_endpoint"`

	// BootstrapTimeout bounds the probe and its redirect chain, e.g. "30s".
	BootstrapTimeout string `yaml:"bootstrap_timeout" mapstructure:"bootstrap_timeout" validate:"omitempty,duration"`

	// RequestTimeout bounds business POSTs, e.g. "60s".
	RequestTimeout string `yaml:"request_timeout" mapstructure:"request_timeout" validate:"omitempty,duration"`
}

// AuthConfig configures inbound authentication. An empty key list disables
// it, the local deployment mode.
type AuthConfig struct {
	// APIKeys are stored hashes: bare SHA-256 hex, "sha256:<hex>", or
	// Argon2id PHC strings. Generate with the hash-key command.
	APIKeys []string `yaml:"api_keys" mapstructure:"api_keys"`
}

// ClassifierConfig overrides session-invalidity detection.
type ClassifierConfig struct {
	// InvalidStatuses replaces the built-in status set treated as session
	// loss. Empty keeps the defaults.
	InvalidStatuses []int `yaml:"invalid_statuses" mapstructure:"invalid_statuses"`

	// BootstrapStatuses replaces the bootstrap acceptance set. Empty keeps
	// the defaults.
	BootstrapStatuses []int `yaml:"bootstrap_statuses" mapstructure:"bootstrap_statuses"`

	// Expression is an optional CEL expression judging business responses.
	// Variables: status (int), content_type (string), body_prefix (string,
	// lowercased). Must return bool; true means session invalid. When set,
	// it replaces the status-set heuristic for business calls.
	Expression string `yaml:"expression" mapstructure:"expression" validate:"omitempty,cel_expression"`
}

// TrailConfig configures the persistent call trail.
type TrailConfig struct {
	// Dir is the trail directory. Empty writes JSON lines to stdout
	// instead of files.
	Dir string `yaml:"dir" mapstructure:"dir"`

	// RetentionDays is how long trail files are kept. Defaults to 30.
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days" validate:"omitempty,min=1"`

	// MaxFileSizeMB caps a trail file before rotation. Defaults to 100.
	MaxFileSizeMB int `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb" validate:"omitempty,min=1"`

	// CacheSize is the recent-records buffer size. Defaults to 1000.
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size" validate:"omitempty,min=1"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	// Enabled turns on span export to stdout.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Environment tags exported spans, e.g. "production".
	Environment string `yaml:"environment" mapstructure:"environment"`
}

// SetDefaults fills optional fields with their defaults.
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8000"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Upstream.TrustPolicy == "" {
		c.Upstream.TrustPolicy = "system"
	}
	if c.Upstream.ClientID == "" {
		c.Upstream.ClientID = "ifn-gateway/1.0"
	}
	if c.Upstream.BootstrapEndpoint == "" {
		c.Upstream.BootstrapEndpoint = "listaMesaje"
	}
	if c.Upstream.BootstrapTimeout == "" {
		c.Upstream.BootstrapTimeout = "30s"
	}
	if c.Upstream.RequestTimeout == "" {
		c.Upstream.RequestTimeout = "60s"
	}
	if c.Trail.RetentionDays == 0 {
		c.Trail.RetentionDays = 30
	}
	if c.Trail.MaxFileSizeMB == 0 {
		c.Trail.MaxFileSizeMB = 100
	}
	if c.Trail.CacheSize == 0 {
		c.Trail.CacheSize = 1000
	}
}
