// Package config loads and validates VentSync Core configuration.
//
// Configuration is read from a YAML file, merged over hardcoded defaults,
// and finally overridden by VENTSYNC_* environment variables. Validate()
// is always run as part of Load(), so a returned *Config is usable as-is.
//
// Example config.yaml:
//
//	server:
//	  host: "0.0.0.0"
//	  port: 8081
//	websocket:
//	  path: "/ws"
//	  max_message_size: 8192
//	database:
//	  path: "./data/ventsync.db"
//	  wal_mode: true
//	logging:
//	  level: "info"
//	  format: "json"
package config
