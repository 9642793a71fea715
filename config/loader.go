package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the global application configuration
var Config AppConfig

// LoadAppConfig loads and validates the application configuration from
// config.yml. A missing file yields the built-in defaults.
func LoadAppConfig() error {
	paths := []string{"config.yml", "./config/config.yml"}
	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		Config = AppConfig{}
		applyDefaults(&Config)
		return nil
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}
	v := validator.New()
	if err := v.Struct(cfg.Server); err != nil {
		return err
	}
	if err := v.Struct(cfg.Polling); err != nil {
		return err
	}
	// systems and field tables are optional; if present validate each
	for _, s := range cfg.Systems {
		if err := v.Struct(s); err != nil {
			return err
		}
	}
	for _, f := range cfg.Fields {
		if err := v.Struct(f); err != nil {
			return err
		}
	}
	Config = cfg
	applyDefaults(&Config)
	return nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 16080
	}
	if cfg.Polling.IntervalSeconds == 0 {
		cfg.Polling.IntervalSeconds = 60
	}
	if cfg.Polling.Iterations == 0 {
		cfg.Polling.Iterations = 60
	}
	if cfg.Polling.TimeoutMS == 0 {
		cfg.Polling.TimeoutMS = 15000
	}
	if cfg.Polling.FetchRetries == 0 {
		cfg.Polling.FetchRetries = 3
	}
}

// DiscoveryURL resolves a city to its GBFS auto-discovery URL. Config
// systems take precedence over the built-in registry.
func (c *AppConfig) DiscoveryURL(city string) (string, bool) {
	for _, s := range c.Systems {
		if s.Name == city {
			return s.DiscoveryURL, true
		}
	}
	url, ok := builtinSystems[city]
	return url, ok
}

// SystemNames lists every known system: built-ins first, then config
// additions.
func (c *AppConfig) SystemNames() []string {
	names := make([]string, 0, len(builtinSystemOrder)+len(c.Systems))
	names = append(names, builtinSystemOrder...)
	for _, s := range c.Systems {
		if _, builtin := builtinSystems[s.Name]; !builtin {
			names = append(names, s.Name)
		}
	}
	return names
}

// FieldLists resolves the metadata and data field lists for a city+feed
// pair. Config entries replace built-ins; the built-in metadata tables are
// combined with the feed type's default data fields. The second return is
// false when the feed is not classified for that city at all.
func (c *AppConfig) FieldLists(city, feed string) (metadata, data []string, ok bool) {
	for _, f := range c.Fields {
		if f.City == city && f.Feed == feed {
			return f.Metadata, f.Data, true
		}
	}
	cityTables, ok := builtinMetadata[city]
	if !ok {
		return nil, nil, false
	}
	meta, ok := cityTables[feed]
	if !ok {
		return nil, nil, false
	}
	return meta, defaultDataFields[feed], true
}
