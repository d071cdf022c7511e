// Package config handles configuration loading for chat-relay.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from CHAT_RELAY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/chat-relay/relay.yaml
//  3. ~/.config/chat-relay/relay.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	session:
//	  secret: "${CHAT_RELAY_SESSION_SECRET}"
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8787"
//	  cors_origins: ["https://chat.example.com"]
//
//	store:
//	  backend: "sqlite"          # sqlite, redis, memory
//	  path: "/var/lib/chat-relay/cache.db"
//	  ttl: "168h"                # sliding, refreshed on every save
//	  janitor_interval: "1h"     # sqlite only
//	  redis:
//	    addr: "localhost:6379"
//
//	upstream:
//	  provider: "workers-ai"     # workers-ai, openai
//	  account_id: "${CF_ACCOUNT_ID}"
//	  api_token: "${CF_API_TOKEN}"
//	  model: "@cf/meta/llama-3.1-8b-instruct"
//
//	session:
//	  cookie_name: "session"
//	  secret: "${CHAT_RELAY_SESSION_SECRET}"   # at least 32 bytes
//	  max_age: "168h"
//	  secure: true
//
//	completion:
//	  system_prompt: "You are a helpful assistant."
//	  serialize_sessions: true
//	  max_message_bytes: 32768
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	metrics:
//	  enabled: false
//	  path: "/metrics"
package config
