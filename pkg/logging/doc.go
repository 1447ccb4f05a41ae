// Package logging provides structured logging configuration for pulsed.
//
// This package wraps log/slog to provide consistent logging across all
// engine components. It supports configurable log levels and output formats.
//
// # Usage
//
// Create a logger with desired configuration:
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//
//	logger.Info("service started", "service", "payments", "port", 8042)
//	logger.Error("definition rejected", "error", err)
//
// # Integration
//
// Components accept a *slog.Logger in their constructor or via a setter.
// If no logger is provided, use logging.Nop() for a no-op logger.
package logging
