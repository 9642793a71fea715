// Package config handles application configuration loading and validation.
//
// Configuration is loaded from config.yml and validated using struct tags.
// It covers the server port, polling defaults, the per-city system registry
// (GBFS auto-discovery URLs), and the per-city per-feed field classification
// tables. Built-in defaults cover the documented bikeshare systems; config
// entries override or extend them, since field availability varies by
// provider even within one feed type.
package config
