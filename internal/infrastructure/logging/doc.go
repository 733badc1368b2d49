// Package logging provides structured logging for prodev.
//
// It wraps the standard log/slog package so every component logs the same
// way: JSON for production, text for development, default service and
// version fields, and level-based filtering.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stderr"   # stdout, stderr
//
// Components log through log.Component("name"), which shares the root
// level, so SetLevel on the root changes every component at once.
//
// Attributes named password, token or dsn are replaced with [REDACTED].
// Bound query values are never logged; the access layer logs query text at
// debug level only.
package logging
