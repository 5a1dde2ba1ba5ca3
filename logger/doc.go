// Package logger provides structured logging for diarkit using zerolog.
//
// Loggers are scoped by component and carry map-based fields:
//
//	log := logger.Get("normalize")
//	log.Warn("record rejected", logger.Fields(logger.FieldRecord, 4, logger.FieldReason, "start is NaN"))
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"   # json | console | text
//	  output: "stderr" # stdout | stderr | path to a file
package logger
