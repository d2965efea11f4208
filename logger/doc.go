// Package logger provides structured logging for pingstream services
// using zerolog.
//
// It supports JSON and console output, log level configuration, and
// component-scoped loggers with structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.WithComponent("sse")
//	log.Debug("Session opened", logger.Fields("session_id", id))
package logger
