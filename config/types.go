package config

// ServerConfig contains server configuration
type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=0"`
}

// PollingConfig contains session defaults; CLI flags override per run.
type PollingConfig struct {
	IntervalSeconds    int     `yaml:"intervalSeconds" validate:"gte=0"`
	Iterations         int     `yaml:"iterations" validate:"gte=0"`
	TimeoutMS          int     `yaml:"timeoutMS" validate:"gte=0"`
	FetchRetries       int     `yaml:"fetchRetries" validate:"gte=0"`
	RateLimitPerSecond float64 `yaml:"rateLimitPerSecond" validate:"gte=0"`
	SaveDir            string  `yaml:"saveDir"`
	SQLitePath         string  `yaml:"sqlitePath"`
}

// SystemConfig registers one bikeshare system by its GBFS auto-discovery URL
type SystemConfig struct {
	Name         string `yaml:"name" validate:"required"`
	DiscoveryURL string `yaml:"discoveryURL" validate:"required,url"`
}

// FieldsConfig overrides or extends the field classification for one
// city+feed pair. A config entry replaces the built-in table entirely.
type FieldsConfig struct {
	City     string   `yaml:"city" validate:"required"`
	Feed     string   `yaml:"feed" validate:"required"`
	Metadata []string `yaml:"metadata"`
	Data     []string `yaml:"data"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server  ServerConfig   `yaml:"server"`
	Polling PollingConfig  `yaml:"polling"`
	Systems []SystemConfig `yaml:"systems"`
	Fields  []FieldsConfig `yaml:"fields"`
}
