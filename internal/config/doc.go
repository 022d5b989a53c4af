// Package config handles configuration loading for face-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from FACE_GATEWAY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/face/gateway.yaml
//  3. ~/.config/face/gateway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	tailscale:
//	  auth_key: "${TS_AUTHKEY}"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  grpc_addr: "localhost:50061"  # face service
//	  http_addr: "localhost:8090"   # MCP and health
//
// Faces:
//
//	faces:
//	  kinds: [test, cmd, tmux]      # overridden by FACE_KINDS
//	  base_dir: "~/.local/share/face/homes"
//	  hostname: "localhost"
//
// Idle shutdown:
//
//	idle:
//	  timeout: "10m"                # 0 or unset disables
//
// Database:
//
//	database:
//	  path: "~/.local/share/face/ledger.db"
//
// Tailscale:
//
//	tailscale:
//	  enabled: false
//	  hostname: "faces"
//	  auth_key: "${TS_AUTHKEY}"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Face Kinds
//
// FACE_KINDS is a comma separated list of kind ids. It must be non-empty,
// name only known kinds and not repeat any. Violations wrap ErrConfiguration
// and stop startup.
package config
